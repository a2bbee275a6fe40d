// Package rbac authenticates requests and gates routes by role.
package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// SessionResolver maps a request token to a principal.
type SessionResolver interface {
	TokenFromRequest(r *http.Request) string
	Resolve(ctx context.Context, token string) (shared.Principal, error)
}

// Middleware wires authentication and role checks for HTTP handlers.
type Middleware struct {
	Sessions SessionResolver
	Logger   *slog.Logger
}

// Authenticate resolves the session principal and stores it in the request
// context. Requests without a valid session are rejected with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Sessions == nil {
			httpx.RespondError(w, shared.ErrNoPrincipal)
			return
		}
		principal, err := m.Sessions.Resolve(r.Context(), m.Sessions.TokenFromRequest(r))
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthorized) && m.Logger != nil {
				m.Logger.Error("rbac resolve session", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the current principal holds at least one of roles.
func (m Middleware) RequireAny(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrNoPrincipal)
				return
			}
			if hasAnyRole(principal.Role, roles) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

// Writers is the role set allowed to mutate business data.
var Writers = []shared.Role{shared.RoleAdmin, shared.RoleStaff}

func hasAnyRole(granted shared.Role, required []shared.Role) bool {
	for _, r := range required {
		if granted == r {
			return true
		}
	}
	return false
}
