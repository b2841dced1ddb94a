package user

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tasksphere/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user not found")
	ErrEmailExists = core.NewConflictError("a user with this email already exists")
	ErrNoEmail     = core.NewInvalidError("the identity provider did not supply an email")
	ErrStillOwner  = core.NewConflictError("this user still owns groups or tasks")
)

type (
	Repository interface {
		GetUser(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Sync upserts the directory record of a signed-in principal.
// The merge is non-destructive: a blank value never overwrites a stored one,
// and a name or avatar the user already has is kept.
func (svc *Service) Sync(ctx context.Context, p core.Principal) (User, error) {
	email := core.CleanString(p.Email, true /* lower */)
	name := core.CleanString(p.Name)
	avatar := core.CleanString(p.AvatarURL)

	usr, err := svc.repo.GetUser(ctx, p.UserID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "finding user by ID")
		}
		if email == "" {
			return User{}, ErrNoEmail
		}
		now := time.Now().UTC()
		created, err := svc.repo.CreateUser(ctx, User{
			ID:        p.UserID,
			Email:     email,
			FullName:  null.NewString(name, name != ""),
			AvatarURL: null.NewString(avatar, avatar != ""),
			AIEnabled: true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err == nil {
			svc.logger.Info(fmt.Sprintf("user %s signed in for the first time", created.ID))
			return created, nil
		}
		if errors.Cause(err) != ErrEmailExists {
			return User{}, errors.Wrap(err, "creating user")
		}
		// a concurrent sign-in of the same principal may have inserted it first
		if usr, err = svc.repo.GetUser(ctx, p.UserID); err != nil {
			if errors.Cause(err) == ErrNotFound {
				return User{}, ErrEmailExists
			}
			return User{}, errors.Wrap(err, "finding user by ID")
		}
	}

	changed := false
	if email != "" && email != usr.Email {
		usr.Email = email
		changed = true
	}
	if name != "" && (!usr.FullName.Valid || usr.FullName.String == "") {
		usr.FullName = null.StringFrom(name)
		changed = true
	}
	if avatar != "" && (!usr.AvatarURL.Valid || usr.AvatarURL.String == "") {
		usr.AvatarURL = null.StringFrom(avatar)
		changed = true
	}
	if !changed {
		return usr, nil
	}
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// ApplyIdentityEvent mirrors an identity provider lifecycle event into the directory.
func (svc *Service) ApplyIdentityEvent(ctx context.Context, ev IdentityEvent) error {
	switch ev.Type {
	case EventUserCreated, EventUserUpdated:
		_, err := svc.Sync(ctx, ev.Principal)
		return errors.Wrap(err, "syncing user")
	case EventUserDeleted:
		if err := svc.repo.DeleteUser(ctx, ev.Principal.UserID); err != nil && errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "deleting user")
		}
		return nil
	default:
		svc.logger.Debug(fmt.Sprintf("ignoring identity event %q", ev.Type))
		return nil
	}
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if up.FullName != nil && *up.FullName != "" {
		usr.FullName = null.StringFrom(*up.FullName)
	}
	if up.AvatarURL != nil && *up.AvatarURL != "" {
		usr.AvatarURL = null.StringFrom(*up.AvatarURL)
	}
	if up.InstituteName != nil {
		usr.InstituteName = null.NewString(*up.InstituteName, *up.InstituteName != "")
	}
	if up.AIEnabled != nil {
		usr.AIEnabled = *up.AIEnabled
	}
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// SetSuperAdmin grants or revokes the super admin flag of the user with the given email.
func (svc *Service) SetSuperAdmin(ctx context.Context, email string, isSuperAdmin bool) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if usr.IsSuperAdmin == isSuperAdmin {
		return usr, nil
	}
	usr.IsSuperAdmin = isSuperAdmin
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}
