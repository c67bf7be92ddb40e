package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService and KeyringUser locate the Notion integration token in
	// the OS credential store.
	KeyringService = "planit-app"
	KeyringUser    = "notion-token"
)

// ErrNoToken is returned when no provider has a Notion token.
var ErrNoToken = errors.New("no Notion token configured; run 'planit token set'")

// ErrNotStored is returned when deleting a token the keyring does not hold.
var ErrNotStored = errors.New("no token stored")

// TokenProvider supplies the Notion integration token.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a fixed token, e.g. one taken from the environment.
type StaticToken string

func (s StaticToken) Token() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore returns a store using the default service and user names.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: KeyringService, User: KeyringUser}
}

func (k *KeyringStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to store an empty token")
	}
	if err := keyring.Set(k.Service, k.User, token); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Token() (string, error) {
	tok, err := keyring.Get(k.Service, k.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return tok, nil
}

func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(k.Service, k.User); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotStored
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// Chain tries each provider in turn and returns the first token found.
// Providers answering ErrNoToken are skipped; any other error stops the walk.
type Chain []TokenProvider

func (c Chain) Token() (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		tok, err := p.Token()
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrNoToken) {
			return "", err
		}
	}
	return "", ErrNoToken
}
