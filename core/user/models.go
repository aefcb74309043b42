package user

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Portal is the part of the application a user works in.
type Portal int

const (
	PortalStudent Portal = iota
	PortalAdmin
)

var (
	AllRoles   = []Role{RoleStudent, RoleAdmin, RoleSuperAdmin}
	AdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

	rolePriorities = map[Role]int{
		RoleSuperAdmin: 30,
		RoleAdmin:      21,
		RoleStudent:    1,
	}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleSuperAdmin},
	}
)

func (r Role) IsValid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// Portal maps the role to its portal. Unknown roles get the least privileged portal.
func (r Role) Portal() Portal {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return PortalAdmin
	case RoleStudent:
		return PortalStudent
	default:
		return PortalStudent
	}
}

func (p Portal) String() string {
	switch p {
	case PortalAdmin:
		return "admin"
	case PortalStudent:
		return "student"
	default:
		return "unknown"
	}
}

func (p Portal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Portal) UnmarshalText(text []byte) error {
	switch string(text) {
	case "admin":
		*p = PortalAdmin
	case "student":
		*p = PortalStudent
	default:
		return fmt.Errorf("unknown portal %q", text)
	}
	return nil
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsStudent() bool    { return u.Role == RoleStudent }
func (u User) IsAdmin() bool      { return u.Role.Portal() == PortalAdmin }
func (u User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }
func (u User) Portal() Portal     { return u.Role.Portal() }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,max=120"`
	Username        string `json:"username" validate:"omitempty,min=3,max=64,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            Role   `json:"role" validate:"omitempty,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name" validate:"max=120"`
	Username        string  `json:"username" validate:"omitempty,min=3,max=64,alphanum_"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            Role    `json:"role" validate:"omitempty,role"`
	IsActive        *bool   `json:"is_active"`
	Bio             *string `json:"bio" validate:"omitempty,max=2000"`
	AvatarURL       *string `json:"avatar_url" validate:"omitempty,url"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// AdminOnly reports whether the update touches fields only admins may change.
func (uu *UpdateUser) AdminOnly() bool {
	return uu.IsActive != nil || uu.Role != "" || uu.Username != "" || uu.Email != ""
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	return validate.Struct(uu)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single User by the first non-empty field.
type GetFilter struct {
	ID              int64
	Username        string
	Email           string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []Role    `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
