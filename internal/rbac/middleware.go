package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/shared"
)

// PermissionSource resolves the permissions granted to a user.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Middleware guards routes with permission checks.
type Middleware struct {
	Service PermissionSource
	Logger  *slog.Logger
}

// permissionSet is the lower-cased set of granted permission names.
type permissionSet map[string]struct{}

func (s permissionSet) any(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if _, ok := s[r]; ok {
			return true
		}
	}
	return false
}

func (s permissionSet) all(required []string) bool {
	for _, r := range required {
		if _, ok := s[r]; !ok {
			return false
		}
	}
	return true
}

type grantedKey struct{}

// RequireAny lets the request through when the actor holds at least one of perms.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.require(required, func(s permissionSet) bool { return s.any(required) })
}

// RequireAll lets the request through when the actor holds every one of perms.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.require(required, func(s permissionSet) bool { return s.all(required) })
}

func (m Middleware) require(required []string, allowed func(permissionSet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, granted, err := m.granted(r.Context())
			switch {
			case errors.Is(err, shared.ErrUnauthorized):
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			case err != nil:
				m.logger().Error("rbac lookup", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "permission lookup failed")
				return
			}
			if !allowed(granted) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "requires "+strings.Join(required, ", "))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Has reports whether the actor on ctx holds perm. Handlers use it for
// checks that depend on the payload rather than the route.
func (m Middleware) Has(ctx context.Context, perm string) (bool, error) {
	_, granted, err := m.granted(ctx)
	if err != nil {
		return false, err
	}
	return granted.any(normalizePermissions([]string{perm})), nil
}

// granted loads the actor's permissions once per request and memoises
// them on the returned context.
func (m Middleware) granted(ctx context.Context) (context.Context, permissionSet, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok || actor.ID == 0 {
		return ctx, nil, shared.ErrUnauthorized
	}
	if set, ok := ctx.Value(grantedKey{}).(permissionSet); ok {
		return ctx, set, nil
	}
	perms, err := m.Service.EffectivePermissions(ctx, actor.ID)
	if err != nil {
		return ctx, nil, err
	}
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[strings.ToLower(p)] = struct{}{}
	}
	return context.WithValue(ctx, grantedKey{}, set), set, nil
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
