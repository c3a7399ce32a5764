// Package auth resolves bearer tokens to user principals. Production
// deployments verify tokens against the identity service; dev deployments
// use a static token map.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated user a request acts for.
type Principal struct {
	UserID      string
	DisplayName string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// Verifier turns an ID token into a principal.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Principal, error)
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
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
