package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/enrollment"
)

type enrollmentApi struct {
	svc        enrollment.Service
	activities activity.Service
	validate   *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := enrollmentApi{
		svc:        opts.EnrollmentSvc,
		activities: opts.ActivitySvc,
		validate:   opts.Validate,
	}

	eg := g.Group("/enrollments", authed)
	eg.GET("", api.query)
	eg.POST("", api.create)

	// students only see their own enrollments
	dg := eg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (enrollment.Enrollment, error) {
		e, err := api.svc.Get(ctx.Request().Context(), tenantID, id)
		if err != nil {
			return e, err
		}
		if usr := mustContextUser(ctx); !usr.IsAdmin() && e.UserID != usr.ID {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return e, nil
	}))
	dg.GET("", api.retrieve)
	dg.PUT("", api.updateProgress, adminOnly)
	dg.DELETE("", api.destroy)
}

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), mustContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}

	api.activities.Record(ctx.Request().Context(), e.TenantID, e.UserID, activity.ResourceCourse, e.CourseID, activity.TypeEnrolled)
	return ctx.JSON(http.StatusCreated, e)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	var err error
	if filter.UserID, err = optionalID(ctx, "user_id"); err != nil {
		return err
	}
	if filter.CourseID, err = optionalID(ctx, "course_id"); err != nil {
		return err
	}
	if filter.Completed, err = queryBool(ctx, "completed"); err != nil {
		return err
	}
	if usr := mustContextUser(ctx); !usr.IsAdmin() {
		filter.UserID = usr.ID
	}
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	enrollments, err := api.svc.Query(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[enrollment.Enrollment](ctx))
}

func (api *enrollmentApi) updateProgress(ctx echo.Context) error {
	e := contextObject[enrollment.Enrollment](ctx)

	var data enrollment.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.SetProgress(ctx.Request().Context(), e, *data.Progress)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Unenroll(ctx.Request().Context(), contextObject[enrollment.Enrollment](ctx)); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}
