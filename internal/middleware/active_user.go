package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
)

// UserLookup loads a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ActiveUser runs after SessionAuth. A token stays valid until it expires,
// so this re-reads the user and rejects sessions whose user no longer
// exists or has been deactivated.
func ActiveUser(users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromCtx(r.Context())
			if sess == nil {
				apierr.WriteMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id, err := uuid.Parse(sess.UserID)
			if err != nil {
				apierr.WriteMessage(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					apierr.WriteMessage(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				log.Error("liveness check failed", "user_id", sess.UserID, "error", err)
				apierr.WriteMessage(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !user.Active {
				log.Info("rejected inactive user", "user_id", sess.UserID)
				apierr.WriteMessage(w, http.StatusUnauthorized, "account inactive")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
