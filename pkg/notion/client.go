package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/planit/pkg/auth"
	"github.com/harrisonrobin/planit/pkg/model"
)

const (
	DefaultTimeout  = 30 * time.Second
	maxRetryElapsed = 30 * time.Second
	snippetLen      = 500
	searchPageSize  = 100
)

// ErrUnauthorized matches API errors for a missing or revoked token.
var ErrUnauthorized = errors.New("notion: unauthorized")

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Notion API Error: %s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("Notion API Error: %s (status %d)", e.Body, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to the Notion REST API.
type Client struct {
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

// NewClient returns a client that authenticates every request with the
// token from tokens.
func NewClient(baseURL, version string, tokens auth.TokenProvider) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Version: version,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &oauth2.Transport{
				Source: tokenSource{tokens},
				Base:   http.DefaultTransport,
			},
		},
	}
}

// tokenSource adapts a TokenProvider to oauth2's bearer token plumbing.
type tokenSource struct {
	p auth.TokenProvider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.p.Token()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// request sends one API call, retrying rate limits and server errors.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var respBody []byte
	op := func() error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Notion-Version", c.Version)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if errors.Is(err, auth.ErrNoToken) {
				return backoff.Permanent(auth.ErrNoToken)
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := newAPIError(resp.StatusCode, b)
			if apiErr.retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		respBody = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: string(body)}
	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &detail) == nil {
		e.Code = detail.Code
		e.Message = detail.Message
	}
	return e
}

// dueTasksFilter selects unchecked tasks dated on or before today.
func dueTasksFilter(today string) map[string]any {
	return map[string]any{
		"filter": map[string]any{
			"and": []any{
				map[string]any{
					"property": PropCheckbox,
					"checkbox": map[string]any{"equals": false},
				},
				map[string]any{
					"property": PropDate,
					"date":     map[string]any{"on_or_before": today},
				},
			},
		},
	}
}

// QueryDueTasks fetches the open tasks due on or before today (YYYY-MM-DD).
func (c *Client) QueryDueTasks(ctx context.Context, databaseID, today string) ([]model.Task, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database ID not configured")
	}
	path := fmt.Sprintf("/databases/%s/query", url.PathEscape(databaseID))
	body, err := c.request(ctx, http.MethodPost, path, dueTasksFilter(today))
	if err != nil {
		return nil, err
	}
	pages, err := decodeQuery(body)
	if err != nil {
		return nil, err
	}
	return AssembleAll(pages), nil
}

// SetCompleted ticks or clears a page's checkbox.
func (c *Client) SetCompleted(ctx context.Context, pageID string, completed bool) error {
	if pageID == "" {
		return fmt.Errorf("page ID is required")
	}
	body := map[string]any{
		"properties": map[string]any{
			PropCheckbox: map[string]any{"checkbox": completed},
		},
	}
	_, err := c.request(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), body)
	return err
}

// SearchDatabases lists the databases shared with the integration.
func (c *Client) SearchDatabases(ctx context.Context) ([]model.DatabaseInfo, error) {
	body := map[string]any{
		"filter": map[string]any{
			"value":    "database",
			"property": "object",
		},
		"page_size": searchPageSize,
	}
	resp, err := c.request(ctx, http.MethodPost, "/search", body)
	if err != nil {
		return nil, err
	}
	var sr SearchResponse
	if err := json.Unmarshal(resp, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	dbs := make([]model.DatabaseInfo, 0, len(sr.Results))
	for _, db := range sr.Results {
		title, ok := firstText(db.Title)
		if !ok {
			title = model.UntitledDatabase
		}
		dbs = append(dbs, model.DatabaseInfo{ID: db.ID, Title: title})
	}
	return dbs, nil
}

// ParsePages reads a saved query response, e.g. from a file or stdin.
func ParsePages(r io.Reader) ([]Page, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}
	return decodeQuery(b)
}

func decodeQuery(body []byte) ([]Page, error) {
	var qr QueryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("JSON Parse Error: %v. Snippet: %s", err, snippet(body))
	}
	return qr.Results, nil
}

func snippet(b []byte) string {
	r := []rune(string(b))
	if len(r) > snippetLen {
		r = r[:snippetLen]
	}
	return string(r)
}
