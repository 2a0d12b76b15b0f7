// Package auth carries the request principal and bearer-token parsing.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type Principal struct {
	APIKey string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the bearer token from the Authorization header.
// Browser WebSocket clients cannot set headers, so an api_key query
// parameter is accepted as a fallback.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
		if token == "" {
			return "", false
		}
		return token, true
	}
	if token := strings.TrimSpace(r.URL.Query().Get("api_key")); token != "" {
		return token, true
	}
	return "", false
}
