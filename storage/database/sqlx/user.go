package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/user"
)

const userColumns = `id, email, full_name, avatar_url, is_super_admin, ai_enabled, institute_name, created_at, updated_at`

var userOrderings = map[string]string{
	"email":      "email",
	"full_name":  "full_name",
	"created_at": "created_at",
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func utcUser(usr user.User) user.User {
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()
	return usr
}

func (repo *userRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &usr, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return utcUser(usr), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var usr user.User
	err := sqlx.GetContext(ctx, repo.db.exec(ctx), &usr, `SELECT `+userColumns+` FROM "user" WHERE email = $1`, email)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return utcUser(usr), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// users with FullName or Email matching the search keyword
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			p := "$" + strconv.Itoa(len(args))
			where = append(where, "(full_name ILIKE "+p+" OR email ILIKE "+p+")")
		}
		if filter.IsSuperAdmin != nil {
			args = append(args, *filter.IsSuperAdmin)
			where = append(where, "is_super_admin = $"+strconv.Itoa(len(args)))
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, userOrderings, "created_at DESC")

	users := make([]user.User, 0)
	if err := sqlx.SelectContext(ctx, repo.db.exec(ctx), &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	for i := range users {
		users[i] = utcUser(users[i])
	}
	return users, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :email, :full_name, :avatar_url, :is_super_admin, :ai_enabled, :institute_name, :created_at, :updated_at)`,
		usr,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db.exec(ctx), `
		UPDATE "user"
		SET email = :email, full_name = :full_name, avatar_url = :avatar_url, is_super_admin = :is_super_admin,
			ai_enabled = :ai_enabled, institute_name = :institute_name, updated_at = :updated_at
		WHERE id = :id`,
		usr,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := repo.db.exec(ctx).ExecContext(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return user.ErrStillOwner
		}
		return errors.Wrap(err, "deleting user")
	}
	return checkAffected(res, user.ErrNotFound)
}
