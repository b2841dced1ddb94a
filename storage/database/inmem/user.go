package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) GetUser(_ context.Context, id string) (user.User, error) {
	var usr user.User
	err := repo.db.read(func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return user.ErrNotFound
		}
		usr = u
		return nil
	})
	return usr, err
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	var usr user.User
	err := repo.db.read(func(t *tables) error {
		for _, u := range t.users {
			if u.Email == email {
				usr = u
				return nil
			}
		}
		return user.ErrNotFound
	})
	return usr, err
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	_ = repo.db.read(func(t *tables) error {
		for _, u := range t.users {
			if filter != nil {
				if filter.Search != "" {
					search := strings.ToLower(filter.Search)
					if !strings.Contains(strings.ToLower(u.FullName.String), search) &&
						!strings.Contains(u.Email, search) {
						continue
					}
				}
				if filter.IsSuperAdmin != nil && u.IsSuperAdmin != *filter.IsSuperAdmin {
					continue
				}
			}
			users = append(users, u)
		}
		return nil
	})
	sortUsers(users, ordering)
	return users, nil
}

// sortUsers supports ordering on the columns the sql repository allows.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "email":
				less, greater = users[i].Email < users[j].Email, users[i].Email > users[j].Email
			case "full_name":
				a, b := users[i].FullName.String, users[j].FullName.String
				less, greater = a < b, a > b
			default: // created_at
				a, b := users[i].CreatedAt, users[j].CreatedAt
				less, greater = a.Before(b), a.After(b)
			}
			if less || greater {
				return less == ord.Ascending
			}
		}
		return false
	})
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.users[usr.ID]; ok {
			return user.ErrEmailExists
		}
		for _, u := range t.users {
			if u.Email == usr.Email {
				return user.ErrEmailExists
			}
		}
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.users[usr.ID]; !ok {
			return user.ErrNotFound
		}
		for _, u := range t.users {
			if u.Email == usr.Email && u.ID != usr.ID {
				return user.ErrEmailExists
			}
		}
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	return repo.db.write(ctx, func(t *tables) error {
		if _, ok := t.users[id]; !ok {
			return user.ErrNotFound
		}
		delete(t.users, id)
		// cascade
		for k := range t.members {
			if k.userID == id {
				delete(t.members, k)
			}
		}
		for k, req := range t.joinRequests {
			if req.UserID == id {
				delete(t.joinRequests, k)
			}
		}
		return nil
	})
}
