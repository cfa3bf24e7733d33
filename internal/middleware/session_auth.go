package middleware

import (
	"context"
	"net/http"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/auth"
)

type contextKey string

const ctxSessionKey contextKey = "session"

// Verifier resolves an Authorization header to a session, or nil.
type Verifier interface {
	Verify(authorization string) *auth.Session
}

// SessionAuth rejects requests without a valid bearer token and puts the
// verified session into the request context.
func SessionAuth(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := v.Verify(r.Header.Get("Authorization"))
			if sess == nil {
				apierr.WriteMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// SessionFromCtx returns the authenticated session or nil.
func SessionFromCtx(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(ctxSessionKey).(*auth.Session)
	return s
}

// WithSession returns a context carrying the given session.
func WithSession(ctx context.Context, s *auth.Session) context.Context {
	return context.WithValue(ctx, ctxSessionKey, s)
}
