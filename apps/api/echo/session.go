package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/user"
)

type sessionApi struct {
	sessions   *sessionManager
	svc        user.Service
	activities activity.Service
	validate   *validator.Validate
	logger     core.Logger
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, sm *sessionManager, opts *Options) {
	api := sessionApi{
		sessions:   sm,
		svc:        opts.UserSvc,
		activities: opts.ActivitySvc,
		validate:   opts.Validate,
		logger:     opts.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/login", api.login)
	ag.POST("/register", api.register)
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	g.GET("/access", api.decide)

	// authed endpoints
	ag.GET("/me", api.me, authed)
	ag.POST("/refresh", api.refresh, authed)
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.sessions.authenticate(ctx, data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	res, err := api.sessions.start(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}

	api.activities.Record(ctx.Request().Context(), usr.TenantID, usr.ID, activity.ResourceUser, usr.ID, activity.TypeLogin)
	return ctx.JSON(http.StatusOK, res)
}

// register signs a student up within the current tenant and logs them in.
func (api *sessionApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), contextTenant(ctx), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	res, err := api.sessions.start(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	api.sessions.clear(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	res := newSessionResponse(mustContextUser(ctx), timeFromUnix(claims.ExpiresAt))
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	res, err := api.sessions.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), tenantID(ctx), data.Email)
	if err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", err, map[string]interface{}{"tenant_id": tenantID(ctx)})
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *sessionApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), tenantID(ctx), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

// decide tells the client what to do with a route for the current session, anonymous or not.
func (api *sessionApi) decide(ctx echo.Context) error {
	path := ctx.QueryParam("path")
	if path == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "path", Error: "path is required"})
	}

	usr, err := api.sessions.optionalUser(ctx)
	if err != nil {
		return errors.Wrap(err, "loading session user")
	}
	return ctx.JSON(http.StatusOK, access.Resolve(usr, path))
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
