// Package auth implements bearer-token authentication for the server: JWT
// validation against a remote JWKS, the request-gating middleware and the
// OAuth metadata documents that tell clients how to obtain a token.
package auth

import "strings"

// Claims holds the verified claims of an access token. Claims values are
// immutable once constructed and scoped to a single request.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt int64
	IssuedAt  int64
	Scope     string
	// Raw is the full claim mapping, including vendor-namespaced custom
	// claims.
	Raw map[string]interface{}

	namespace string
}

// Scopes parses the space-delimited scope claim. Returns an empty list, never
// nil, when the claim is absent.
func (c *Claims) Scopes() []string {
	if c.Scope == "" {
		return []string{}
	}
	return strings.Fields(c.Scope)
}

// CustomClaim looks up a claim under the configured vendor namespace.
func (c *Claims) CustomClaim(name string) (interface{}, bool) {
	val, ok := c.Raw[c.namespace+name]
	return val, ok
}

// Email returns the namespaced email claim, if present.
func (c *Claims) Email() string {
	if val, ok := c.CustomClaim("email"); ok {
		if email, ok := val.(string); ok {
			return email
		}
	}
	return ""
}

// Role returns the namespaced role claim, if present.
func (c *Claims) Role() string {
	if val, ok := c.CustomClaim("role"); ok {
		if role, ok := val.(string); ok {
			return role
		}
	}
	return ""
}

// Teams returns the namespaced team-membership claim, if present.
func (c *Claims) Teams() map[string]interface{} {
	if val, ok := c.CustomClaim("teams"); ok {
		if teams, ok := val.(map[string]interface{}); ok {
			return teams
		}
	}
	return nil
}
