package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tecrolabs/otus-mcp/internal/config"
)

// OtusError is a failed Otus API call. 401 and 403 keep their upstream
// status so callers can distinguish bad credentials from missing
// permissions; connection failures surface as 502.
type OtusError struct {
	StatusCode int
	Message    string
}

func (e *OtusError) Error() string {
	return fmt.Sprintf("Otus API error %d: %s", e.StatusCode, e.Message)
}

// OtusClient forwards authenticated requests to the Otus API, passing the
// caller's bearer token through for authorization.
type OtusClient struct {
	teamsURL string
	client   *http.Client
}

// NewOtusClient creates the client. Redirects are not followed so the bearer
// token cannot leak to another host.
func NewOtusClient(cfg config.Settings) *OtusClient {
	return &OtusClient{
		teamsURL: cfg.OtusTeamsURL(),
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// GetTeams fetches teams from Otus and returns the raw response body
// verbatim.
func (c *OtusClient) GetTeams(ctx context.Context, bearerToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.teamsURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Otus request failed: %v", err)
		return "", &OtusError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("failed to connect to Otus: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &OtusError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("reading Otus response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		log.Warn("Otus returned 401, token may be invalid or expired")
		return "", &OtusError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized - invalid or expired token"}
	case resp.StatusCode == http.StatusForbidden:
		log.Warn("Otus returned 403, insufficient permissions")
		return "", &OtusError{StatusCode: http.StatusForbidden, Message: "Forbidden - insufficient permissions"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Errorf("Otus API error: %d", resp.StatusCode)
		return "", &OtusError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return string(body), nil
}
