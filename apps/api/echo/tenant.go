package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

type tenantApi struct {
	svc      tenant.Service
	validate *validator.Validate
}

func registerTenantAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := tenantApi{
		svc:      opts.TenantSvc,
		validate: opts.Validate,
	}

	g.GET("/tenant", api.current)

	tg := g.Group("/tenants", authed, roleMiddleware(user.RoleSuperAdmin))
	tg.GET("", api.query)
	tg.POST("", api.create)

	dg := tg.Group("/:id", loadObject(func(ctx echo.Context, _, id int64) (tenant.Tenant, error) {
		return api.svc.Get(ctx.Request().Context(), id)
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
}

// current describes the tenant the request was resolved to.
func (api *tenantApi) current(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextTenant(ctx))
}

func (api *tenantApi) create(ctx echo.Context) error {
	var data tenant.NewTenant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTenant")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tnt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating tenant")
	}
	return ctx.JSON(http.StatusCreated, tnt)
}

func (api *tenantApi) query(ctx echo.Context) error {
	filter := &tenant.QueryFilter{Search: ctx.QueryParam("search")}
	var err error
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return err
	}
	filter.Clean()
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	tenants, err := api.svc.Query(ctx.Request().Context(), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying tenants")
	}
	if tenants == nil {
		tenants = []tenant.Tenant{}
	}
	return ctx.JSON(http.StatusOK, tenants)
}

func (api *tenantApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[tenant.Tenant](ctx))
}

func (api *tenantApi) update(ctx echo.Context) error {
	tnt := contextObject[tenant.Tenant](ctx)

	var data tenant.UpdateTenant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTenant")
	}
	if err := data.Validate(tnt, api.validate); err != nil {
		return err
	}

	// the current tenant cannot be deactivated from within
	if data.IsActive != nil && !*data.IsActive && tnt.ID == tenantID(ctx) {
		return errHttpForbidden
	}

	tnt, err := api.svc.Update(ctx.Request().Context(), tnt, data)
	if err != nil {
		return errors.Wrap(err, "updating tenant")
	}
	return ctx.JSON(http.StatusOK, tnt)
}
