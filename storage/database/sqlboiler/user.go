package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var userSortable = []string{"id", "name", "username", "email", "role", "is_active", "created_at", "updated_at", "last_login"}

type userRow struct {
	ID           int64       `boil:"id"`
	TenantID     int64       `boil:"tenant_id"`
	Name         string      `boil:"name"`
	Username     null.String `boil:"username"`
	Email        null.String `boil:"email"`
	Role         string      `boil:"role"`
	IsActive     bool        `boil:"is_active"`
	PasswordHash []byte      `boil:"password_hash"`
	Bio          string      `boil:"bio"`
	AvatarURL    string      `boil:"avatar_url"`
	CreatedAt    time.Time   `boil:"created_at"`
	UpdatedAt    time.Time   `boil:"updated_at"`
	LastLogin    null.Time   `boil:"last_login"`
}

func boilUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		TenantID:     usr.TenantID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         string(usr.Role),
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		Bio:          usr.Bio,
		AvatarURL:    usr.AvatarURL,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) unboil() user.User {
	usr := user.User{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Role:         user.Role(r.Role),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		Bio:          r.Bio,
		AvatarURL:    r.AvatarURL,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{exec: exec}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, tenantID int64, username, email string, excludedID int64) error {
	var takenUsername, takenEmail bool
	err := queries.Raw(
		`SELECT
			COALESCE(bool_or(lower(username) = lower($2)), false),
			COALESCE(bool_or(lower(email) = lower($3)), false)
		FROM users WHERE tenant_id = $1 AND id <> $4`,
		tenantID, username, email, excludedID,
	).QueryRowContext(ctx, repo.exec).Scan(&takenUsername, &takenEmail)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	switch {
	case username != "" && takenUsername:
		return user.ErrUsernameExists
	case email != "" && takenEmail:
		return user.ErrEmailExists
	}
	return nil
}

// trapUniqueErr maps violations of the users' unique constraints to their errors.
func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	switch constraint, _ := uniqueConstraint(err); constraint {
	case "users_tenant_username_key":
		return user.ErrUsernameExists
	case "users_tenant_email_key":
		return user.ErrEmailExists
	default:
		return errors.Wrap(err, msg)
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := boilUser(usr)
	err := queries.Raw(
		`INSERT INTO users (tenant_id, name, username, email, role, is_active, password_hash, bio, avatar_url, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		r.TenantID, r.Name, r.Username, r.Email, r.Role, r.IsActive, r.PasswordHash, r.Bio, r.AvatarURL, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	).QueryRowContext(ctx, repo.exec).Scan(&usr.ID)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, tenantID int64, filter user.GetFilter) (user.User, error) {
	var mod qm.QueryMod
	switch {
	case filter.ID != 0:
		mod = qm.Where("id = ?", filter.ID)
	case filter.Username != "":
		mod = qm.Where("lower(username) = lower(?)", filter.Username)
	case filter.Email != "":
		mod = qm.Where("lower(email) = lower(?)", filter.Email)
	case filter.UsernameOrEmail != "":
		mod = qm.Where("(lower(username) = lower(?) OR lower(email) = lower(?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := newQuery("users", qm.Where("tenant_id = ?", tenantID), mod).Bind(ctx, repo.exec, &row); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.unboil(), nil
}

func userQueryMods(tenantID int64, filter *user.QueryFilter, opts core.ListOptions) []qm.QueryMod {
	mods := []qm.QueryMod{qm.Where("tenant_id = ?", tenantID)}

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := likeArg(filter.Search)
			mods = append(mods, qm.Where("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val))
		}
		if len(filter.Roles) > 0 {
			roles := make([]interface{}, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, string(r))
			}
			mods = append(mods, qm.WhereIn("role IN ?", roles...))
		}
		if filter.IsActive != nil {
			mods = append(mods, qm.Where("is_active = ?", *filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			mods = append(mods, qm.Where("created_at >= ?", filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			mods = append(mods, qm.Where("created_at <= ?", filter.CreatedTo.UTC()))
		}
	}

	return append(mods, listMods(opts, userSortable, core.DBOrdering{Field: "created_at"})...)
}

func (repo *userRepository) QueryUsers(ctx context.Context, tenantID int64, filter *user.QueryFilter, opts core.ListOptions) ([]user.User, error) {
	var rows []userRow
	if err := newQuery("users", userQueryMods(tenantID, filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unboil())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := boilUser(usr)
	res, err := queries.Raw(
		`UPDATE users SET name = $3, username = $4, email = $5, role = $6, is_active = $7, password_hash = $8,
			bio = $9, avatar_url = $10, updated_at = $11, last_login = $12
		WHERE tenant_id = $1 AND id = $2`,
		r.TenantID, r.ID, r.Name, r.Username, r.Email, r.Role, r.IsActive, r.PasswordHash, r.Bio, r.AvatarURL, r.UpdatedAt, r.LastLogin,
	).ExecContext(ctx, repo.exec)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if err = checkAffected(res, nil, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return usr, nil
}
