package user

import (
	"context"
	"errors"
	"net/mail"

	"github.com/kat-co/vala"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrRoleTooHigh    = errors.New("not enough rights to set this role")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another User of the tenant
		// (other than excludedID) already uses username or email.
		CheckUniqueness(ctx context.Context, tenantID int64, username, email string, excludedID int64) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, tenantID int64, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service interface {
		// Register signs a new student up within tnt.
		Register(ctx context.Context, tnt tenant.Tenant, nu NewUser) (User, error)
		// Create creates a User of any role on behalf of an admin.
		Create(ctx context.Context, tenantID int64, nu NewUser) (User, error)
		Get(ctx context.Context, tenantID, id int64) (User, error)
		GetByUsernameOrEmail(ctx context.Context, tenantID int64, uname string) (User, error)
		Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// Deactivate replaces deletion: users are never removed.
		Deactivate(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, tenantID int64, email string) error
		ResetPassword(ctx context.Context, tenantID int64, data ResetUserPassword) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		logger   core.Logger
		tokenGen tokenGenerator
		async    func(func()) // runs background work, eg. sending mails
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	return newService(repo, mailSvc, logger, conf)
}

func newService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		logger:   logger,
		tokenGen: tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
		async:    func(f func()) { go f() },
	}
}

func (svc *service) checkUniqueness(ctx context.Context, tenantID int64, uname, email string, excludedID int64) error {
	if err := svc.repo.CheckUniqueness(ctx, tenantID, uname, email, excludedID); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) create(ctx context.Context, tenantID int64, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, tenantID, nu.Username, nu.Email, 0); err != nil {
		return User{}, err
	}

	role := nu.Role
	if role == "" {
		role = RoleStudent
	}
	now := nowFunc().UTC()
	usr := User{
		TenantID:  tenantID,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Register(ctx context.Context, tnt tenant.Tenant, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	usr, err := svc.create(ctx, tnt.ID, nu)
	if err != nil {
		return User{}, err
	}
	if usr.Email != "" {
		svc.async(func() { svc.sendWelcomeMail(tnt, usr) })
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, tenantID int64, nu NewUser) (User, error) {
	return svc.create(ctx, tenantID, nu)
}

func (svc *service) Get(ctx context.Context, tenantID, id int64) (User, error) {
	return svc.repo.GetUser(ctx, tenantID, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, tenantID int64, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, tenantID, GetFilter{UsernameOrEmail: uname})
}

func (svc *service) Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]User, error) {
	return svc.repo.QueryUsers(ctx, tenantID, filter, opts)
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := svc.checkUniqueness(ctx, usr.TenantID, uu.Username, uu.Email, usr.ID); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Bio != nil {
		usr.Bio = core.CleanString(*uu.Bio)
	}
	if uu.AvatarURL != nil {
		usr.AvatarURL = core.CleanString(*uu.AvatarURL)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Deactivate(ctx context.Context, usr User) (User, error) {
	usr.IsActive = false
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, tenantID int64, email string) error {
	usr, err := svc.repo.GetUser(ctx, tenantID, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if !usr.IsActive {
		svc.logger.Info("password reset requested for a deactivated user", map[string]interface{}{"user_id": usr.ID}, usr)
		return ErrNotFound
	}
	svc.async(func() { svc.sendPasswordResetMail(usr) })
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, tenantID int64, data ResetUserPassword) error {
	invalid := core.NewValidationError(errors.New("invalid reset link"), core.FieldError{Field: "token", Error: "invalid or expired token"})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.Get(ctx, tenantID, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid
		}
		return err
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return invalid
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return err
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	})
}

func (svc *service) sendWelcomeMail(tnt tenant.Tenant, usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + tnt.Name,
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"TenantName": tnt.Name,
			"Name":       usr.Name,
			"Username":   usr.Username,
		},
	})
}

// CanAssign reports whether actor may give role to a User.
func CanAssign(actor User, role Role) bool {
	return RolePriority(role) <= RolePriority(actor.Role)
}
