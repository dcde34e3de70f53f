package handler

import (
	"context"
	"net/http"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"
	"github.com/naijastore/naijastore-api/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	authErrorKey contextKey = "authError"
)

// IdentityMiddleware resolves the caller from the bearer token and the
// guest session header. A bad token does not reject public routes; it is
// kept so RequireAuth can report it.
func IdentityMiddleware(sessions *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.Resolve(r)
			ctx := context.WithValue(r.Context(), identityKey, id)
			if err != nil {
				logger.Debug("auth: bearer token rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				ctx = context.WithValue(ctx, authErrorKey, err)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a valid Supabase access token.
func RequireAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()).Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if err, ok := r.Context().Value(authErrorKey).(error); ok {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			writeError(w, http.StatusUnauthorized, "authentication required")
		})
	}
}

// RequireAdmin lets through only users whose profile has the admin role.
func RequireAdmin(profiles *service.ProfileService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			ok, err := profiles.IsAdmin(r.Context(), id.UserID)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			if !ok {
				logger.Warn("auth: admin route denied",
					zap.String("path", r.URL.Path),
					zap.String("user_id", id.UserID),
				)
				handleServiceError(w, &domain.ErrForbidden{Action: "admin access required"}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the identity resolved for the request.
func IdentityFromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}
