package middleware

import (
	"net/http"
	"strings"

	"github.com/alexdean/worst-idea/internal/identity"
)

// AuthMiddleware resolves bearer tokens into principals. The resolved
// principal rides the request context so the rule engine downstream sees the
// same identity the token proved.
type AuthMiddleware struct {
	provider *identity.Provider
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(provider *identity.Provider) *AuthMiddleware {
	return &AuthMiddleware{provider: provider}
}

// RequirePrincipal validates any signed identity token.
func (m *AuthMiddleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		principal, err := m.provider.Verify(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
	})
}

// RequireOperator validates a token carrying the operator claim.
func (m *AuthMiddleware) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		principal, err := m.provider.Verify(token)
		if err != nil || !principal.Operator {
			http.Error(w, `{"error":"operator access required"}`, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
