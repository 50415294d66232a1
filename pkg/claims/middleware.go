package claims

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is the type for context keys.
type contextKey string

// claimsKey is the context key for verified claims.
const claimsKey contextKey = "crew_claims"

// WithClaims adds verified claims to a context.
func WithClaims(ctx context.Context, c *CrewClaims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// FromContext retrieves verified claims from a context, or nil.
func FromContext(ctx context.Context) *CrewClaims {
	if c, ok := ctx.Value(claimsKey).(*CrewClaims); ok {
		return c
	}
	return nil
}

// Middleware enforces claim-based authorization on HTTP handlers.
type Middleware struct {
	tokener *Tokener
}

// NewMiddleware creates claims middleware backed by a Tokener.
func NewMiddleware(tokener *Tokener) *Middleware {
	return &Middleware{tokener: tokener}
}

// RequireAuth verifies the bearer token and stores its claims in the request
// context. Requests without a valid token get 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		c, err := m.tokener.Parse(strings.TrimSpace(auth[7:]))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

// RequireHierarchy gates a handler on a minimum effective hierarchy.
func (m *Middleware) RequireHierarchy(min int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := FromContext(r.Context())
			if c == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if c.EffectiveHierarchy < min {
				http.Error(w, "Insufficient privileges", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a handler on a named permission claim.
func (m *Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := FromContext(r.Context())
			if c == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if !c.HasPermission(name) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrganization gates a handler on the claims belonging to the
// organization named by pathOrg. The organization id comes from the signed
// token, never from client-supplied role data.
func (m *Middleware) RequireOrganization(pathOrg func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := FromContext(r.Context())
			if c == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if org := pathOrg(r); org == "" || org != c.OrganizationID {
				http.Error(w, "Organization mismatch", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
