package access

import (
	"context"
	"fmt"

	"github.com/trezcool/tasksphere/core"
)

// Actor is the principal a service call is made on behalf of.
// Role lookups made through an Actor are memoized in its Scope.
type Actor struct {
	core.Principal
	scope *Scope
}

func (a Actor) ID() string { return a.UserID }

func (a Actor) GlobalRole(ctx context.Context) (Role, error) {
	return a.scope.GlobalRole(ctx, a.UserID)
}

func (a Actor) IsSuperAdmin(ctx context.Context) (bool, error) {
	return a.scope.isSuperAdmin(ctx, a.UserID)
}

func (a Actor) GroupRole(ctx context.Context, groupID string) (Role, error) {
	return a.scope.GroupRole(ctx, groupID, a.UserID)
}

func (a Actor) HasGroupPermission(ctx context.Context, groupID string, required Role) (bool, error) {
	return a.scope.HasGroupPermission(ctx, groupID, a.UserID, required)
}

// LandingRole never fails: store errors resolve to student.
func (a Actor) LandingRole(ctx context.Context) Role {
	role, err := a.GlobalRole(ctx)
	if err != nil {
		a.scope.resolver.logger.Warn(fmt.Sprintf("resolving landing role, falling back to %s: %v", RoleStudent, err), err, a.Principal)
		return RoleStudent
	}
	return role
}

// Refresh forgets memoized roles of the actor.
func (a Actor) Refresh() {
	a.scope.Forget(a.UserID)
}

// RequireGlobal denies unless the actor's global role is at least min.
// Store errors deny too.
func RequireGlobal(ctx context.Context, actor Actor, min Role) error {
	role, err := actor.GlobalRole(ctx)
	if err != nil {
		actor.scope.resolver.logger.Error("resolving global role: "+err.Error(), err, actor.Principal)
		return core.ErrPermissionDenied
	}
	if RolePriority(role) < RolePriority(min) {
		return core.ErrPermissionDenied
	}
	return nil
}

// RequireSuperAdmin is RequireGlobal(ctx, actor, RoleSuperAdmin).
func RequireSuperAdmin(ctx context.Context, actor Actor) error {
	return RequireGlobal(ctx, actor, RoleSuperAdmin)
}

// RequireGroup denies unless the actor holds at least `required` in the group (super admins pass).
// Non members get ErrNotMember; store errors deny.
func RequireGroup(ctx context.Context, actor Actor, groupID string, required Role) error {
	ok, err := actor.HasGroupPermission(ctx, groupID, required)
	if err != nil {
		actor.scope.resolver.logger.Error("resolving group role: "+err.Error(), err, actor.Principal)
		return core.ErrPermissionDenied
	}
	if ok {
		return nil
	}
	if _, err := actor.GroupRole(ctx, groupID); err == ErrNotMember {
		return ErrNotMember
	}
	return core.ErrPermissionDenied
}
