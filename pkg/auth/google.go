package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ClientSecretsFile is the OAuth client downloaded from the Google Cloud console.
	ClientSecretsFile = "credentials.json"
	// GoogleTokenFile caches the access and refresh token between runs.
	GoogleTokenFile = "token.json"
	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// GoogleOAuth runs and caches the Google authorization used by the
// calendar mirror. Dir holds both the client secrets and the cached token.
type GoogleOAuth struct {
	Dir string
}

func (g *GoogleOAuth) TokenPath() string {
	return filepath.Join(g.Dir, GoogleTokenFile)
}

// Config reads the client secrets and pins the redirect to the local listener.
func (g *GoogleOAuth) Config(scopes []string) (*oauth2.Config, error) {
	path := filepath.Join(g.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	cfg.RedirectURL = localRedirect(cfg.RedirectURL)
	return cfg, nil
}

// localRedirect forces loopback and out-of-band redirects onto LocalhostAuthPort.
func localRedirect(redirect string) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		return fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	}
	u, err := url.Parse(redirect)
	if err != nil {
		log.Printf("Warning: could not parse redirect URL %q: %v", redirect, err)
		return redirect
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.Printf("Warning: redirect URL %s is not a localhost callback", redirect)
		return redirect
	}
	if u.Port() != LocalhostAuthPort {
		u.Host = net.JoinHostPort(u.Hostname(), LocalhostAuthPort)
	}
	return u.String()
}

// Client returns an HTTP client that refreshes its token as needed. With
// no cached token it starts the browser flow.
func (g *GoogleOAuth) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	cfg, err := g.Config(scopes)
	if err != nil {
		return nil, err
	}

	tok, err := g.loadToken()
	if err != nil {
		log.Printf("No usable token at %s. Starting web authorization flow...", g.TokenPath())
		tok, err = authorizeInBrowser(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := g.saveToken(tok); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	src := cfg.TokenSource(ctx, tok)
	if fresh, err := src.Token(); err == nil && fresh.AccessToken != tok.AccessToken {
		if err := g.saveToken(fresh); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	return oauth2.NewClient(ctx, src), nil
}

// Reset removes the cached token so the next Client call reauthorizes.
func (g *GoogleOAuth) Reset() error {
	err := os.Remove(g.TokenPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file %s: %w", g.TokenPath(), err)
	}
	return nil
}

func (g *GoogleOAuth) loadToken() (*oauth2.Token, error) {
	f, err := os.Open(g.TokenPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", g.TokenPath(), err)
	}
	return tok, nil
}

func (g *GoogleOAuth) saveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(g.Dir, 0700); err != nil {
		return fmt.Errorf("could not create token directory %s: %w", g.Dir, err)
	}
	f, err := os.OpenFile(g.TokenPath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", g.TokenPath(), err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// authorizeInBrowser serves the redirect on LocalhostAuthPort and exchanges
// the returned code.
func authorizeInBrowser(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- fmt.Errorf("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize planit:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timed out. Please try again")
	}
}
