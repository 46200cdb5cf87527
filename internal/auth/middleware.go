package auth

import (
	"log/slog"
	"net/http"

	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/shared"
)

// Sessions resolves the session presented by the request and exposes it,
// with its actor, on the request context. Anonymous requests pass through.
func Sessions(manager *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Load(r.Context(), r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "session store unavailable")
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := shared.ContextWithSession(r.Context(), sess)
			ctx = shared.ContextWithActor(ctx, sess.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := shared.ActorFromContext(r.Context()); !ok || actor.IsZero() {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
