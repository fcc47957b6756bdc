package auth

import "context"

type contextKey string

const (
	accessTokenKey contextKey = "access_token"
	bearerTokenKey contextKey = "bearer_token"
)

// WithAccessToken attaches the verified token descriptor to the request
// context. The value dies with the request context, so it can never leak
// across requests.
func WithAccessToken(ctx context.Context, info *AccessTokenInfo) context.Context {
	return context.WithValue(ctx, accessTokenKey, info)
}

// AccessTokenFromContext extracts the verified token descriptor.
func AccessTokenFromContext(ctx context.Context) (*AccessTokenInfo, bool) {
	info, ok := ctx.Value(accessTokenKey).(*AccessTokenInfo)
	return info, ok
}

// WithBearerToken attaches the raw bearer token to the request context for
// layers (MCP tool handlers) that have no direct access to the request.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// BearerTokenFromContext extracts the raw bearer token.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerTokenKey).(string)
	return token, ok
}
