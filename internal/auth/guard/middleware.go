package guard

import (
	"context"
	"net/http"
	"slices"

	"learnhub/internal/auth/models"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/httputil"
	"learnhub/pkg/requestcontext"
)

type contextKey struct{}

var authenticatedKey = contextKey{}

// WithAuthenticated stores the resolved outcome for downstream handlers.
func WithAuthenticated(ctx context.Context, a *Authenticated) context.Context {
	ctx = requestcontext.WithUserID(ctx, a.Auth.UserID)
	return context.WithValue(ctx, authenticatedKey, a)
}

func AuthenticatedFrom(ctx context.Context) (*Authenticated, bool) {
	a, ok := ctx.Value(authenticatedKey).(*Authenticated)
	return a, ok && a != nil
}

// RequireSession admits only requests that resolve to an authenticated
// session. Rotated tokens are written back as cookies before the handler runs.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch outcome := g.ResolveSession(r).(type) {
		case *Authenticated:
			if outcome.Rotated != nil {
				g.cookies.SetTokens(w, outcome.Rotated)
			}
			next.ServeHTTP(w, r.WithContext(WithAuthenticated(r.Context(), outcome)))
		case *Rejected:
			httputil.WriteError(w, outcome.Err())
		}
	})
}

// RequireRole must run after RequireSession.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := AuthenticatedFrom(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !HasRole(a.Auth, roles...) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func HasRole(auth models.AuthContext, roles ...models.Role) bool {
	return slices.Contains(roles, auth.Role)
}
