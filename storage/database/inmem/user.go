package inmemdb

import (
	"context"
	"strings"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	"github.com/uzielB/backend-sistemagem-sub000/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

var userCmps = map[string]func(a, b user.User) int{
	"id":         func(a, b user.User) int { return a.ID - b.ID },
	"name":       func(a, b user.User) int { return strings.Compare(a.Name, b.Name) },
	"curp":       func(a, b user.User) int { return strings.Compare(a.CURP, b.CURP) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"last_login": func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
}

func (repo *userRepository) CheckCURPUniqueness(ctx context.Context, curp, email string, excludedUsers ...user.User) error {
	defer repo.db.acquire(ctx)()

	for _, usr := range values(repo.db.t.users) {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if usr.CURP == curp {
			return user.ErrCURPExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.acquire(ctx)()

	usr.ID = repo.db.nextPK("users")
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	defer repo.db.acquire(ctx)()

	users := make([]user.User, 0)
	for _, usr := range values(repo.db.t.users) {
		if filter.Search != "" &&
			!(containsFold(usr.Name, filter.Search) || containsFold(usr.CURP, filter.Search) || containsFold(usr.Email, filter.Search)) {
			continue
		}
		if len(filter.Roles) > 0 && !hasAnyRolePrefix(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, usr)
	}
	orderRows(users, ordering, userCmps)
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	defer repo.db.acquire(ctx)()

	if usr, ok := repo.db.t.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) find(ctx context.Context, match func(usr user.User) bool) (user.User, error) {
	defer repo.db.acquire(ctx)()

	for _, usr := range values(repo.db.t.users) {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByCURP(ctx context.Context, curp string) (user.User, error) {
	curp = strings.ToUpper(curp)
	return repo.find(ctx, func(usr user.User) bool { return usr.CURP == curp })
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.find(ctx, func(usr user.User) bool { return email != "" && usr.Email == email })
}

func (repo *userRepository) GetUserByCURPOrEmail(ctx context.Context, login string) (user.User, error) {
	return repo.find(ctx, func(usr user.User) bool {
		return usr.CURP == strings.ToUpper(login) || (usr.Email != "" && usr.Email == strings.ToLower(login))
	})
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.acquire(ctx)()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	defer repo.db.acquire(ctx)()

	for _, id := range ids {
		delete(repo.db.t.users, id)
	}
	return nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

func hasAnyRolePrefix(usr user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		if usr.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}
