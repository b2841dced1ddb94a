package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/user"
)

var (
	// errors
	ErrNotMember = core.NewForbiddenError("you are not a member of this group")
)

type (
	UserReader interface {
		GetUser(ctx context.Context, id string) (user.User, error)
	}

	MembershipReader interface {
		// MemberRoles returns the role of every membership the user holds.
		MemberRoles(ctx context.Context, userID string) ([]Role, error)
		// MemberRole returns the user's role in the group, ErrNotMember if there is none.
		MemberRole(ctx context.Context, groupID, userID string) (Role, error)
	}

	// Resolver combines the user directory flag and group memberships into roles.
	// It holds no state; per-request memoization lives in a Scope.
	Resolver struct {
		users   UserReader
		members MembershipReader
		logger  core.Logger
	}
)

func NewResolver(users UserReader, members MembershipReader, logger core.Logger) *Resolver {
	return &Resolver{users: users, members: members, logger: logger}
}

func (r *Resolver) isSuperAdmin(ctx context.Context, userID string) (bool, error) {
	usr, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound { // principal not synced yet
			return false, nil
		}
		return false, errors.Wrap(err, "finding user by ID")
	}
	return usr.IsSuperAdmin, nil
}

// GlobalRole resolves the user's global tier:
// super_admin if flagged, else the highest role held on any membership, else student.
func (r *Resolver) GlobalRole(ctx context.Context, userID string) (Role, error) {
	isSuper, err := r.isSuperAdmin(ctx, userID)
	if err != nil {
		return "", err
	}
	if isSuper {
		return RoleSuperAdmin, nil
	}
	return r.membershipTier(ctx, userID)
}

func (r *Resolver) membershipTier(ctx context.Context, userID string) (Role, error) {
	roles, err := r.members.MemberRoles(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "listing memberships")
	}
	var hasAdmin bool
	for _, role := range roles {
		switch role {
		case RoleTopAdmin:
			return RoleTopAdmin, nil
		case RoleAdmin:
			hasAdmin = true
		}
	}
	if hasAdmin {
		return RoleAdmin, nil
	}
	return RoleStudent, nil
}

// GroupRole returns the role the user holds in the group, ErrNotMember if none.
func (r *Resolver) GroupRole(ctx context.Context, groupID, userID string) (Role, error) {
	role, err := r.members.MemberRole(ctx, groupID, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotMember {
			return "", ErrNotMember
		}
		return "", errors.Wrap(err, "finding membership")
	}
	return role, nil
}

// HasGroupPermission reports whether the user's role in the group is at least `required`.
// A super admin passes unconditionally.
func (r *Resolver) HasGroupPermission(ctx context.Context, groupID, userID string, required Role) (bool, error) {
	isSuper, err := r.isSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isSuper {
		return true, nil
	}
	role, err := r.GroupRole(ctx, groupID, userID)
	if err != nil {
		if err == ErrNotMember {
			return false, nil
		}
		return false, err
	}
	return RolePriority(role) >= RolePriority(required), nil
}

// LandingRole is GlobalRole for the default landing experience:
// if the stores cannot be reached, it logs and falls back to student.
func (r *Resolver) LandingRole(ctx context.Context, userID string) Role {
	role, err := r.GlobalRole(ctx, userID)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("resolving role of %s, falling back to %s: %v", userID, RoleStudent, err), err)
		return RoleStudent
	}
	return role
}

// Actor binds a principal to a fresh request-scoped cache.
// The returned Actor must not outlive the request it was created for.
func (r *Resolver) Actor(p core.Principal) Actor {
	return Actor{Principal: p, scope: newScope(r)}
}

type groupKey struct {
	groupID, userID string
}

// Scope memoizes role lookups for the duration of one request.
type Scope struct {
	resolver *Resolver

	mu         sync.Mutex
	superAdmin map[string]bool
	global     map[string]Role
	group      map[groupKey]Role // "" means not a member
}

func newScope(r *Resolver) *Scope {
	return &Scope{
		resolver:   r,
		superAdmin: make(map[string]bool),
		global:     make(map[string]Role),
		group:      make(map[groupKey]Role),
	}
}

func (s *Scope) isSuperAdmin(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	isSuper, ok := s.superAdmin[userID]
	s.mu.Unlock()
	if ok {
		return isSuper, nil
	}
	isSuper, err := s.resolver.isSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.superAdmin[userID] = isSuper
	s.mu.Unlock()
	return isSuper, nil
}

func (s *Scope) GlobalRole(ctx context.Context, userID string) (Role, error) {
	s.mu.Lock()
	role, ok := s.global[userID]
	s.mu.Unlock()
	if ok {
		return role, nil
	}

	isSuper, err := s.isSuperAdmin(ctx, userID)
	if err != nil {
		return "", err
	}
	if isSuper {
		role = RoleSuperAdmin
	} else if role, err = s.resolver.membershipTier(ctx, userID); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.global[userID] = role
	s.mu.Unlock()
	return role, nil
}

func (s *Scope) GroupRole(ctx context.Context, groupID, userID string) (Role, error) {
	key := groupKey{groupID, userID}
	s.mu.Lock()
	role, ok := s.group[key]
	s.mu.Unlock()
	if !ok {
		var err error
		role, err = s.resolver.GroupRole(ctx, groupID, userID)
		if err != nil && err != ErrNotMember {
			return "", err
		}
		s.mu.Lock()
		s.group[key] = role
		s.mu.Unlock()
	}
	if role == "" {
		return "", ErrNotMember
	}
	return role, nil
}

func (s *Scope) HasGroupPermission(ctx context.Context, groupID, userID string, required Role) (bool, error) {
	isSuper, err := s.isSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if isSuper {
		return true, nil
	}
	role, err := s.GroupRole(ctx, groupID, userID)
	if err != nil {
		if err == ErrNotMember {
			return false, nil
		}
		return false, err
	}
	return RolePriority(role) >= RolePriority(required), nil
}

// Forget drops what the scope knows about the user, eg: after their memberships changed.
func (s *Scope) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.superAdmin, userID)
	delete(s.global, userID)
	for key := range s.group {
		if key.userID == userID {
			delete(s.group, key)
		}
	}
}
