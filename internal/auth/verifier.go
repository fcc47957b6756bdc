package auth

import "context"

// AccessTokenInfo describes a validated access token. It is created once per
// successful verification and is read-only for the rest of the request.
type AccessTokenInfo struct {
	// Token is the raw bearer token, kept for forwarding downstream.
	Token     string
	ClientID  string
	Scopes    []string
	ExpiresAt int64
	Claims    *Claims
}

// Email returns the namespaced email claim.
func (t *AccessTokenInfo) Email() string { return t.Claims.Email() }

// Role returns the namespaced role claim.
func (t *AccessTokenInfo) Role() string { return t.Claims.Role() }

// TokenVerifier adapts the Validator for the authentication gate.
type TokenVerifier struct {
	validator *Validator
}

// NewTokenVerifier wraps a Validator.
func NewTokenVerifier(validator *Validator) *TokenVerifier {
	return &TokenVerifier{validator: validator}
}

// VerifyToken validates a bearer token and returns its descriptor, or the
// classified validation error.
func (v *TokenVerifier) VerifyToken(ctx context.Context, token string) (*AccessTokenInfo, error) {
	claims, err := v.validator.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	return &AccessTokenInfo{
		Token:     token,
		ClientID:  claims.Subject,
		Scopes:    claims.Scopes(),
		ExpiresAt: claims.ExpiresAt,
		Claims:    claims,
	}, nil
}
