package app

import (
	"context"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// CurrentUser identifies the caller on whose behalf a request runs. The core never
// authenticates; transports fill it from whatever identity they trust.
type CurrentUser struct {
	ID   string
	Role domain.Role
}

// CanManage reports whether the caller may manage projects and tasks.
func (u CurrentUser) CanManage() bool {
	return u.Role.CanManage()
}

// WithCurrentUser attaches a normalized current user to context.
func WithCurrentUser(ctx context.Context, user CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserContextKey{}, normalizeCurrentUser(user))
}

// CurrentUserFromContext returns the current user when present.
func CurrentUserFromContext(ctx context.Context) (CurrentUser, bool) {
	user, ok := ctx.Value(currentUserContextKey{}).(CurrentUser)
	if !ok || user.ID == "" {
		return CurrentUser{}, false
	}
	return user, true
}

// currentUserContextKey stores context keys for current-user values.
type currentUserContextKey struct{}

// normalizeCurrentUser trims and canonicalizes identity fields.
func normalizeCurrentUser(user CurrentUser) CurrentUser {
	user.ID = strings.TrimSpace(user.ID)
	user.Role = domain.NormalizeRole(user.Role)
	if !domain.IsValidRole(user.Role) {
		user.Role = domain.RoleViewer
	}
	return user
}
