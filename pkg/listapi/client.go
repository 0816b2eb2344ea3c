// Package listapi provides bearer-token access to a remote pantry list
// source: a field catalog describing the source's columns and a
// cursor-paginated item feed.
package listapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Field describes one column in the remote source's catalog. ID is the
// source-native column identifier used in sync mappings, not a display name.
type Field struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// ItemPage is one page of remote list items. Items are field bags keyed by
// source-native column identifiers; values may be structured (e.g. hyperlink
// objects). NextCursor is empty on the last page.
type ItemPage struct {
	Items      []map[string]any `json:"items"`
	NextCursor string           `json:"nextCursor"`
}

// Client defines the remote list operations used by the ingestion pipeline.
type Client interface {
	FieldCatalog(ctx context.Context) ([]Field, error)
	Items(ctx context.Context, cursor string) (*ItemPage, error)
}

// TokenSource exchanges source credentials for a bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AuthenticationError means the credential exchange with the remote source
// failed. Terminal for a sync run; no partial output.
type AuthenticationError struct {
	Status  int
	Message string
}

func (e AuthenticationError) Error() string {
	return fmt.Sprintf("listapi: authentication failed (status %d): %s", e.Status, e.Message)
}

// SourceUnavailableError is a transient network or HTTP failure from the
// remote source. Terminal for the current run; the core does not retry.
type SourceUnavailableError struct {
	Status int
	Cause  error
}

func (e SourceUnavailableError) Error() string {
	if e.Cause != nil {
		return "listapi: source unavailable: " + e.Cause.Error()
	}
	return fmt.Sprintf("listapi: source unavailable (status %d)", e.Status)
}

func (e SourceUnavailableError) Unwrap() error { return e.Cause }

// ClientOption configures the HTTP client.
type ClientOption func(*httpClient)

// WithRateLimit sets a per-second request limit for list API calls.
func WithRateLimit(rps float64) ClientOption {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	base    string
	listID  string
	tokens  TokenSource
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a rate-limited list API client for one remote list.
func NewClient(baseURL, listID string, tokens TokenSource, opts ...ClientOption) Client {
	c := &httpClient{
		base:    baseURL,
		listID:  listID,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(4), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "listapi: rate limit")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "listapi: build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SourceUnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return AuthenticationError{Status: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SourceUnavailableError{Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "listapi: decode response")
	}
	return nil
}

func (c *httpClient) FieldCatalog(ctx context.Context) ([]Field, error) {
	var out struct {
		Fields []Field `json:"fields"`
	}
	if err := c.get(ctx, "/lists/"+c.listID+"/fields", nil, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (c *httpClient) Items(ctx context.Context, cursor string) (*ItemPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var page ItemPage
	if err := c.get(ctx, "/lists/"+c.listID+"/items", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CredentialTokenSource implements TokenSource against the source's token
// endpoint, caching the token until it expires.
type CredentialTokenSource struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client

	token   string
	expires time.Time
}

// Token exchanges the client credentials for a bearer token, reusing a
// cached token while it remains valid.
func (s *CredentialTokenSource) Token(ctx context.Context) (string, error) {
	if s.token != "" && time.Now().Before(s.expires) {
		return s.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
	})
	if err != nil {
		return "", eris.Wrap(err, "listapi: marshal credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "listapi: build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	hc := s.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", AuthenticationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", AuthenticationError{Status: resp.StatusCode, Message: string(msg)}
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", AuthenticationError{Message: "malformed token response"}
	}
	if out.AccessToken == "" {
		return "", AuthenticationError{Message: "empty access token"}
	}

	s.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s.expires = time.Now().Add(ttl - 30*time.Second)
	return s.token, nil
}
