package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type userApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := userApi{
		svc:      opts.UserSvc,
		validate: opts.Validate,
	}

	ug := g.Group("/users", authed)
	ug.GET("", api.query, adminOnly)
	ug.POST("", api.create, adminOnly)
	ug.GET("/roles", api.queryRoles, adminOnly)

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.deactivate, adminOnly)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	if data.Role == "" {
		data.Role = user.RoleStudent
	}
	if !user.CanAssign(mustContextUser(ctx), data.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter, err := bindUserFilter(ctx)
	if err != nil {
		return err
	}
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	users, err := api.svc.Query(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	filter := &user.QueryFilter{Search: ctx.QueryParam("search")}
	for _, r := range ctx.QueryParams()["role"] {
		filter.Roles = append(filter.Roles, user.Role(r))
	}

	var err error
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return nil, err
	}
	if filter.CreatedFrom, err = queryTime(ctx, "created_from"); err != nil {
		return nil, err
	}
	if filter.CreatedTo, err = queryTime(ctx, "created_to"); err != nil {
		return nil, err
	}
	filter.Clean()
	return filter, nil
}

func (api *userApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[user.User](ctx))
}

func (api *userApi) update(ctx echo.Context) error {
	usr := contextObject[user.User](ctx)

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr := mustContextUser(ctx)
	// `IsActive`, `Role`, `Username` and `Email` can only be changed by admins
	if !ctxUsr.IsAdmin() && data.AdminOnly() {
		return errHttpForbidden
	}
	if err := data.Validate(usr, api.validate); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	if data.Role != usr.Role && !user.CanAssign(ctxUsr, data.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// deactivate replaces deletion: users are never removed.
func (api *userApi) deactivate(ctx echo.Context) error {
	usr := contextObject[user.User](ctx)

	// Say No to Suicide! ctxUser cannot deactivate themselves
	ctxUsr := mustContextUser(ctx)
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}
	// nor someone with a higher role
	if !user.CanAssign(ctxUsr, usr.Role) {
		return errHttpForbidden
	}

	if _, err := api.svc.Deactivate(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// ctxUserOrAdminMiddleware loads the User of the `:id` route param, which only admins
// and the user themselves may see. Others get a 404.
func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return loadObject(func(ctx echo.Context, tenantID, id int64) (user.User, error) {
		ctxUsr := mustContextUser(ctx)
		if id != ctxUsr.ID && !ctxUsr.IsAdmin() {
			return user.User{}, errHttpNotFound
		}
		return svc.Get(ctx.Request().Context(), tenantID, id)
	})
}
