package oauth

import "time"

// Client represents a dynamically registered OAuth client.
type Client struct {
	ClientID                string
	ClientSecretHash        string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scope                   string
	TokenEndpointAuthMethod string
	ClientName              string
	ClientURI               string
	ClientIDIssuedAt        int64
	ClientSecretExpiresAt   int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
