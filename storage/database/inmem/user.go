package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var userFields = fieldGetters[user.User]{
	"id":         func(u user.User) interface{} { return u.ID },
	"name":       func(u user.User) interface{} { return u.Name },
	"username":   func(u user.User) interface{} { return u.Username },
	"email":      func(u user.User) interface{} { return u.Email },
	"role":       func(u user.User) interface{} { return string(u.Role) },
	"is_active":  func(u user.User) interface{} { return u.IsActive },
	"created_at": func(u user.User) interface{} { return u.CreatedAt },
	"updated_at": func(u user.User) interface{} { return u.UpdatedAt },
	"last_login": func(u user.User) interface{} { return u.LastLogin },
}

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) checkUniqueness(tenantID int64, username, email string, excludedID int64) error {
	username = strings.ToLower(username)
	email = strings.ToLower(email)
	for _, usr := range repo.db.users.rows {
		if usr.TenantID != tenantID || usr.ID == excludedID {
			continue
		}
		if username != "" && strings.ToLower(usr.Username) == username {
			return user.ErrUsernameExists
		}
		if email != "" && strings.ToLower(usr.Email) == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, tenantID int64, username, email string, excludedID int64) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(tenantID, username, email, excludedID)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.TenantID, usr.Username, usr.Email, 0); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.users.nextID()
	repo.db.users.rows[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, tenantID int64, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var match func(user.User) bool
	switch {
	case filter.ID != 0:
		match = func(u user.User) bool { return u.ID == filter.ID }
	case filter.Username != "":
		match = func(u user.User) bool { return strings.EqualFold(u.Username, filter.Username) }
	case filter.Email != "":
		match = func(u user.User) bool { return strings.EqualFold(u.Email, filter.Email) }
	case filter.UsernameOrEmail != "":
		match = func(u user.User) bool {
			return strings.EqualFold(u.Username, filter.UsernameOrEmail) || strings.EqualFold(u.Email, filter.UsernameOrEmail)
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.users.rows {
		if usr.TenantID == tenantID && match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, tenantID int64, filter *user.QueryFilter, opts core.ListOptions) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(user.QueryFilter)
	}
	rows := repo.db.users.list(func(u user.User) bool {
		if u.TenantID != tenantID {
			return false
		}
		if s := filter.Search; s != "" && !(containsFold(u.Name, s) || containsFold(u.Username, s) || containsFold(u.Email, s)) {
			return false
		}
		if len(filter.Roles) > 0 && !hasRole(filter.Roles, u.Role) {
			return false
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	})
	return orderAndPage(rows, opts, userFields, desc("created_at")), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users.rows[usr.ID]
	if !ok || orig.TenantID != usr.TenantID {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users.rows[usr.ID] = usr
	return usr, nil
}

func hasRole(roles []user.Role, role user.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
