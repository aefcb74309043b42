package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/exam"
)

type examApi struct {
	svc        exam.Service
	activities activity.Service
	validate   *validator.Validate
}

func registerExamAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := examApi{
		svc:        opts.ExamSvc,
		activities: opts.ActivitySvc,
		validate:   opts.Validate,
	}

	eg := g.Group("/exams", authed)
	eg.GET("", api.queryExams)
	eg.POST("", api.createExam, adminOnly)
	edg := eg.Group("/:id", loadObject(api.getVisibleExam))
	edg.GET("", api.retrieveExam)
	edg.PUT("", api.updateExam, adminOnly)
	edg.DELETE("", api.destroyExam, adminOnly)

	qg := g.Group("/questions", authed)
	qg.GET("", api.queryQuestions)
	qg.POST("", api.createQuestion, adminOnly)
	qdg := qg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (exam.Question, error) {
		q, err := api.svc.GetQuestion(ctx.Request().Context(), tenantID, id)
		if err != nil {
			return q, err
		}
		// the questions of unpublished exams are hidden from students
		if _, err = api.getVisibleExam(ctx, tenantID, q.ExamID); err != nil {
			if core.IsNotFound(err) {
				return exam.Question{}, exam.ErrQuestionNotFound
			}
			return exam.Question{}, err
		}
		return q, nil
	}))
	qdg.GET("", api.retrieveQuestion)
	qdg.PUT("", api.updateQuestion, adminOnly)
	qdg.DELETE("", api.destroyQuestion, adminOnly)

	ag := g.Group("/exam-attempts", authed)
	ag.GET("", api.queryAttempts)
	ag.POST("", api.submitAttempt)
	adg := ag.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (exam.Attempt, error) {
		a, err := api.svc.GetAttempt(ctx.Request().Context(), tenantID, id)
		if err != nil {
			return a, err
		}
		if usr := mustContextUser(ctx); !usr.IsAdmin() && a.UserID != usr.ID {
			return exam.Attempt{}, exam.ErrAttemptNotFound
		}
		return a, nil
	}))
	adg.GET("", api.retrieveAttempt)
	adg.POST("/review", api.reviewAttempt, adminOnly)
}

// getVisibleExam returns the exam, unless it is unpublished and the session user is a student.
func (api *examApi) getVisibleExam(ctx echo.Context, tenantID, id int64) (exam.Exam, error) {
	e, err := api.svc.GetExam(ctx.Request().Context(), tenantID, id)
	if err != nil {
		return e, err
	}
	if !e.IsPublished && !mustContextUser(ctx).IsAdmin() {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

// Exams

func (api *examApi) createExam(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.CreateExam(ctx.Request().Context(), tenantID(ctx), mustContextUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) queryExams(ctx echo.Context) error {
	filter := &exam.ExamFilter{Search: ctx.QueryParam("search")}
	var err error
	if filter.CourseID, err = optionalID(ctx, "course_id"); err != nil {
		return err
	}
	if filter.IsPublished, err = queryBool(ctx, "is_published"); err != nil {
		return err
	}
	if !mustContextUser(ctx).IsAdmin() {
		published := true
		filter.IsPublished = &published
	}
	filter.Clean()
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	exams, err := api.svc.QueryExams(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieveExam(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[exam.Exam](ctx))
}

func (api *examApi) updateExam(ctx echo.Context) error {
	e := contextObject[exam.Exam](ctx)

	var data exam.UpdateExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err := data.Validate(e, api.validate); err != nil {
		return err
	}

	e, err := api.svc.UpdateExam(ctx.Request().Context(), e, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) destroyExam(ctx echo.Context) error {
	if err := api.svc.DeleteExam(ctx.Request().Context(), contextObject[exam.Exam](ctx)); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Questions

func (api *examApi) createQuestion(ctx echo.Context) error {
	var data exam.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.CreateQuestion(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *examApi) queryQuestions(ctx echo.Context) error {
	examID, err := optionalID(ctx, "exam_id")
	if err != nil {
		return err
	}
	// students list the questions of one published exam at a time
	if !mustContextUser(ctx).IsAdmin() {
		if examID == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "exam_id", Error: "exam_id is required"})
		}
		if _, err = api.getVisibleExam(ctx, tenantID(ctx), examID); err != nil {
			return err
		}
	}

	questions, err := api.svc.QueryQuestions(ctx.Request().Context(), tenantID(ctx), &exam.QuestionFilter{ExamID: examID})
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []exam.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *examApi) retrieveQuestion(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[exam.Question](ctx))
}

func (api *examApi) updateQuestion(ctx echo.Context) error {
	q := contextObject[exam.Question](ctx)

	var data exam.UpdateQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err := data.Validate(q, api.validate); err != nil {
		return err
	}

	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), q, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *examApi) destroyQuestion(ctx echo.Context) error {
	if err := api.svc.DeleteQuestion(ctx.Request().Context(), contextObject[exam.Question](ctx)); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attempts

func (api *examApi) submitAttempt(ctx echo.Context) error {
	var data exam.NewAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr := mustContextUser(ctx)
	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}

	api.activities.Record(ctx.Request().Context(), a.TenantID, usr.ID, activity.ResourceExam, a.ExamID, activity.TypeExamSubmitted)
	return ctx.JSON(http.StatusCreated, a)
}

func (api *examApi) queryAttempts(ctx echo.Context) error {
	filter := new(exam.AttemptFilter)
	var err error
	if filter.ExamID, err = optionalID(ctx, "exam_id"); err != nil {
		return err
	}
	if filter.UserID, err = optionalID(ctx, "user_id"); err != nil {
		return err
	}
	if filter.Pending, err = queryBool(ctx, "pending"); err != nil {
		return err
	}
	if usr := mustContextUser(ctx); !usr.IsAdmin() {
		filter.UserID = usr.ID
	}
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	attempts, err := api.svc.QueryAttempts(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []exam.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *examApi) retrieveAttempt(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[exam.Attempt](ctx))
}

func (api *examApi) reviewAttempt(ctx echo.Context) error {
	a := contextObject[exam.Attempt](ctx)

	var data exam.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reviewer := mustContextUser(ctx)
	a, err := api.svc.ReviewAttempt(ctx.Request().Context(), reviewer, a, data)
	if err != nil {
		return errors.Wrap(err, "reviewing attempt")
	}

	api.activities.Record(ctx.Request().Context(), a.TenantID, reviewer.ID, activity.ResourceAttempt, a.ID, activity.TypeExamReviewed)
	return ctx.JSON(http.StatusOK, a)
}
