package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tecrolabs/otus-mcp/internal/config"
)

// Validation failures classify into exactly one of these sentinels.
var (
	// ErrTokenExpired means the token's expiration is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidAudience means the expected audience is absent from the
	// token's audience set.
	ErrInvalidAudience = errors.New("invalid audience")
	// ErrInvalidToken covers bad signatures, malformed structure, wrong
	// issuer and missing required claims.
	ErrInvalidToken = errors.New("invalid token")
)

// Validator cryptographically validates access tokens against a remote key
// set and produces Claims.
type Validator struct {
	keys       *KeyCache
	issuer     string
	audience   string
	algorithms []string
	namespace  string
}

// NewValidator creates a validator using the given key cache.
func NewValidator(cfg config.Settings, keys *KeyCache) *Validator {
	return &Validator{
		keys:       keys,
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		algorithms: cfg.JWTAlgorithms,
		namespace:  cfg.CustomClaimsNamespace,
	}
}

// Validate verifies the token's signature, expiration, issuer and audience
// and returns its claims. Only the configured algorithms are accepted; the
// algorithm asserted by the token itself is never trusted beyond that
// allow-list.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mapClaims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("missing kid in token header")
		}
		return v.keys.SigningKey(ctx, kid)
	},
		jwt.WithValidMethods(v.algorithms),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	iss, _ := mapClaims["iss"].(string)
	if sub == "" || iss == "" {
		return nil, fmt.Errorf("%w: missing required claim", ErrInvalidToken)
	}

	aud := normalizeAudience(mapClaims["aud"])
	if len(aud) == 0 {
		return nil, fmt.Errorf("%w: missing required claim: aud", ErrInvalidToken)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing required claim: exp", ErrInvalidToken)
	}

	var issuedAt int64
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Unix()
	}

	scope, _ := mapClaims["scope"].(string)

	return &Claims{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		ExpiresAt: exp.Unix(),
		IssuedAt:  issuedAt,
		Scope:     scope,
		Raw:       map[string]interface{}(mapClaims),
		namespace: v.namespace,
	}, nil
}

func classifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrInvalidAudience, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// normalizeAudience folds the aud claim's two wire forms (bare string or
// array of strings) into one set.
func normalizeAudience(raw interface{}) []string {
	switch aud := raw.(type) {
	case string:
		if aud == "" {
			return nil
		}
		return []string{aud}
	case []string:
		return aud
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, val := range aud {
			if str, ok := val.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
