package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/batch"
)

type batchApi struct {
	svc      batch.Service
	validate *validator.Validate
}

func registerBatchAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := batchApi{
		svc:      opts.BatchSvc,
		validate: opts.Validate,
	}

	bg := g.Group("/batches", authed)
	bg.GET("", api.queryBatches)
	bg.POST("", api.createBatch, adminOnly)
	bdg := bg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (batch.Batch, error) {
		return api.svc.Get(ctx.Request().Context(), tenantID, id)
	}))
	bdg.GET("", api.retrieveBatch)
	bdg.PUT("", api.updateBatch, adminOnly)
	bdg.DELETE("", api.destroyBatch, adminOnly)

	mg := g.Group("/batch-enrollments", authed)
	mg.GET("", api.queryMembers)
	mg.POST("", api.addMember, adminOnly)
	// students only see their own memberships
	mdg := mg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (batch.Enrollment, error) {
		e, err := api.svc.GetMember(ctx.Request().Context(), tenantID, id)
		if err != nil {
			return e, err
		}
		if usr := mustContextUser(ctx); !usr.IsAdmin() && e.UserID != usr.ID {
			return batch.Enrollment{}, batch.ErrEnrollmentNotFound
		}
		return e, nil
	}))
	mdg.GET("", api.retrieveMember)
	mdg.PUT("", api.updateMember, adminOnly)
	mdg.DELETE("", api.removeMember, adminOnly)
}

// Batches

func (api *batchApi) createBatch(ctx echo.Context) error {
	var data batch.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *batchApi) queryBatches(ctx echo.Context) error {
	filter := &batch.QueryFilter{Search: ctx.QueryParam("search")}
	var err error
	if filter.CourseID, err = optionalID(ctx, "course_id"); err != nil {
		return err
	}
	if filter.TrainerID, err = optionalID(ctx, "trainer_id"); err != nil {
		return err
	}
	filter.Clean()
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	batches, err := api.svc.Query(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *batchApi) retrieveBatch(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[batch.Batch](ctx))
}

func (api *batchApi) updateBatch(ctx echo.Context) error {
	b := contextObject[batch.Batch](ctx)

	var data batch.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}
	if err := data.Validate(b, api.validate); err != nil {
		return err
	}

	b, err := api.svc.Update(ctx.Request().Context(), b, data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) destroyBatch(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextObject[batch.Batch](ctx)); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Members

func (api *batchApi) addMember(ctx echo.Context) error {
	var data batch.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.AddMember(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "adding batch member")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *batchApi) queryMembers(ctx echo.Context) error {
	filter := &batch.EnrollmentFilter{Status: batch.Status(ctx.QueryParam("status"))}
	var err error
	if filter.BatchID, err = optionalID(ctx, "batch_id"); err != nil {
		return err
	}
	if filter.UserID, err = optionalID(ctx, "user_id"); err != nil {
		return err
	}
	if usr := mustContextUser(ctx); !usr.IsAdmin() {
		filter.UserID = usr.ID
	}
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	members, err := api.svc.QueryMembers(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying batch members")
	}
	if members == nil {
		members = []batch.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *batchApi) retrieveMember(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[batch.Enrollment](ctx))
}

func (api *batchApi) updateMember(ctx echo.Context) error {
	e := contextObject[batch.Enrollment](ctx)

	var data batch.UpdateEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.SetMemberStatus(ctx.Request().Context(), e, data.Status)
	if err != nil {
		return errors.Wrap(err, "updating batch member")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *batchApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), contextObject[batch.Enrollment](ctx)); err != nil {
		return errors.Wrap(err, "removing batch member")
	}
	return ctx.NoContent(http.StatusNoContent)
}
