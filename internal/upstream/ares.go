// Package upstream holds the HTTP clients for the external collaborators:
// the Ares authorization backend and the Otus API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tecrolabs/otus-mcp/internal/config"
)

// UpstreamError is a non-2xx response from the Ares backend. ErrorCode and
// Message are parsed from the body's error/error_message fields when present.
type UpstreamError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}

// AresClient translates calls to the proprietary Ares authorization backend.
// Every call carries a fresh trace id header.
type AresClient struct {
	authorizeURL string
	tokenURL     string
	refreshURL   string
	traceHeader  string
	client       *http.Client
}

// NewAresClient creates a client from settings.
func NewAresClient(cfg config.Settings) *AresClient {
	return &AresClient{
		authorizeURL: cfg.AuthServerAuthorizeURL,
		tokenURL:     cfg.AuthServerTokenURL,
		refreshURL:   cfg.AuthServerRefreshURL,
		traceHeader:  cfg.TraceIDHeader,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Authorize asks Ares to start an authorization transaction for the given
// callback URL and returns the redirect URL the end user should be sent to.
func (c *AresClient) Authorize(ctx context.Context, callbackURL string) (string, error) {
	endpoint := c.authorizeURL + "?" + url.Values{"callback_url": {callbackURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(c.traceHeader, uuid.New().String())

	body, upErr := c.do(req)
	if upErr != nil {
		return "", upErr
	}

	var payload struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding authorize response: %w", err)
	}
	if payload.RedirectURL == "" {
		return "", fmt.Errorf("no redirect_url from authorization server")
	}
	return payload.RedirectURL, nil
}

// ExchangeCode exchanges an authorization code for tokens via the Ares login
// endpoint. The returned map is the raw token payload.
func (c *AresClient) ExchangeCode(ctx context.Context, code, callbackURL string) (map[string]interface{}, error) {
	endpoint := c.tokenURL + "?" + url.Values{
		"code":         {code},
		"callback_url": {callbackURL},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.traceHeader, uuid.New().String())
	req.Header.Set("Content-Type", "application/json")

	return c.tokenPayload(req)
}

// Refresh exchanges a refresh token for fresh tokens.
func (c *AresClient) Refresh(ctx context.Context, refreshToken string) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.traceHeader, uuid.New().String())
	req.Header.Set("Content-Type", "application/json")

	return c.tokenPayload(req)
}

func (c *AresClient) tokenPayload(req *http.Request) (map[string]interface{}, error) {
	body, upErr := c.do(req)
	if upErr != nil {
		return nil, upErr
	}

	var tokens map[string]interface{}
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return tokens, nil
}

// do executes the request and returns the body, or an *UpstreamError for any
// non-2xx status.
func (c *AresClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseUpstreamError(resp.StatusCode, body)
	}
	return body, nil
}

func parseUpstreamError(status int, body []byte) *UpstreamError {
	upErr := &UpstreamError{
		StatusCode: status,
		Message:    string(body),
		Body:       string(body),
	}
	var fields struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &fields); err == nil {
		if fields.Error != "" {
			upErr.ErrorCode = fields.Error
		}
		if fields.ErrorMessage != "" {
			upErr.Message = fields.ErrorMessage
		}
	}
	return upErr
}
