package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/activity"
)

type activityApi struct {
	svc      activity.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := activityApi{
		svc:      opts.ActivitySvc,
		validate: opts.Validate,
	}

	ag := g.Group("/activity-logs", authed)
	ag.GET("", api.query)
	ag.POST("", api.create)
}

// create records an activity of the session user reported by the client, eg. a course view.
func (api *activityApi) create(ctx echo.Context) error {
	var data activity.NewLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr := mustContextUser(ctx)
	l, err := api.svc.Create(ctx.Request().Context(), usr.TenantID, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating activity log")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *activityApi) query(ctx echo.Context) error {
	filter := &activity.QueryFilter{
		ResourceType: activity.ResourceType(ctx.QueryParam("resource_type")),
		ActivityType: activity.Type(ctx.QueryParam("activity_type")),
	}
	var err error
	if filter.UserID, err = optionalID(ctx, "user_id"); err != nil {
		return err
	}
	if filter.ResourceID, err = optionalID(ctx, "resource_id"); err != nil {
		return err
	}
	if filter.Since, err = queryTime(ctx, "since"); err != nil {
		return err
	}
	if usr := mustContextUser(ctx); !usr.IsAdmin() {
		filter.UserID = usr.ID
	}
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	logs, err := api.svc.Query(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying activity logs")
	}
	if logs == nil {
		logs = []activity.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}
