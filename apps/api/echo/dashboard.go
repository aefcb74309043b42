package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/user"
)

type dashboardApi struct {
	svc dashboard.Service
}

func registerDashboardAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := dashboardApi{svc: opts.DashboardSvc}

	g.GET("/dashboard", api.mine, authed)
	g.GET("/admin/dashboard", api.admin, authed, adminOnly)
	g.GET("/student/dashboard", api.student, authed, roleMiddleware(user.RoleStudent))
}

// mine returns the dashboard of the session user's portal.
func (api *dashboardApi) mine(ctx echo.Context) error {
	d, err := api.svc.For(ctx.Request().Context(), mustContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	d, err := api.svc.Admin(ctx.Request().Context(), mustContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dashboardApi) student(ctx echo.Context) error {
	d, err := api.svc.Student(ctx.Request().Context(), mustContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
