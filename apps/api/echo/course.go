package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/quiz"
)

const assetBodyLimit = "512M"

type courseApi struct {
	svc      course.Service
	progress progress.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, authed echo.MiddlewareFunc, opts *Options) {
	api := courseApi{
		svc:      opts.CourseSvc,
		progress: opts.ProgressSvc,
		validate: opts.Validate,
	}

	cg := g.Group("/courses", authed)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, adminOnly)
	cdg := cg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (course.Course, error) {
		return api.svc.GetCourse(ctx.Request().Context(), tenantID, id)
	}))
	cdg.GET("", api.retrieveCourse)
	cdg.PUT("", api.updateCourse, adminOnly)
	cdg.DELETE("", api.destroyCourse, adminOnly)

	mg := g.Group("/modules", authed)
	mg.GET("", api.queryModules)
	mg.POST("", api.createModule, adminOnly)
	mdg := mg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (course.Module, error) {
		return api.svc.GetModule(ctx.Request().Context(), tenantID, id)
	}))
	mdg.GET("", api.retrieveModule)
	mdg.PUT("", api.updateModule, adminOnly)
	mdg.DELETE("", api.destroyModule, adminOnly)

	lg := g.Group("/lessons", authed)
	lg.GET("", api.queryLessons)
	lg.POST("", api.createLesson, adminOnly)
	ldg := lg.Group("/:id", loadObject(func(ctx echo.Context, tenantID, id int64) (course.Lesson, error) {
		return api.svc.GetLesson(ctx.Request().Context(), tenantID, id)
	}))
	ldg.GET("", api.retrieveLesson)
	ldg.PUT("", api.updateLesson, adminOnly)
	ldg.DELETE("", api.destroyLesson, adminOnly)
	ldg.GET("/quiz", api.retrieveQuiz)
	ldg.POST("/quiz/submit", api.submitQuiz)
	ldg.POST("/complete", api.completeLesson)
	ldg.GET("/asset", api.retrieveAsset)
	ldg.PUT("/asset", api.uploadAsset, adminOnly, middleware.BodyLimit(assetBodyLimit))
}

// Courses

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.CreateCourse(ctx.Request().Context(), tenantID(ctx), mustContextUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) queryCourses(ctx echo.Context) error {
	filter := &course.CourseFilter{
		Search:     ctx.QueryParam("search"),
		Category:   ctx.QueryParam("category"),
		Difficulty: course.Difficulty(ctx.QueryParam("difficulty")),
	}
	var err error
	if filter.CreatedBy, err = optionalID(ctx, "created_by"); err != nil {
		return err
	}
	filter.Clean()
	opts, err := listOptions(ctx)
	if err != nil {
		return err
	}

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), tenantID(ctx), filter, opts)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[course.Course](ctx))
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	c := contextObject[course.Course](ctx)

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(c, api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), contextObject[course.Course](ctx)); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *courseApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.CreateModule(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	courseID, err := optionalID(ctx, "course_id")
	if err != nil {
		return err
	}

	modules, err := api.svc.QueryModules(ctx.Request().Context(), tenantID(ctx), &course.ModuleFilter{CourseID: courseID})
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextObject[course.Module](ctx))
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	m := contextObject[course.Module](ctx)

	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(m, api.validate); err != nil {
		return err
	}

	m, err := api.svc.UpdateModule(ctx.Request().Context(), m, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	if err := api.svc.DeleteModule(ctx.Request().Context(), contextObject[course.Module](ctx)); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *courseApi) createLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.CreateLesson(ctx.Request().Context(), tenantID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	filter := &course.LessonFilter{ContentType: course.ContentType(ctx.QueryParam("content_type"))}
	var err error
	if filter.CourseID, err = optionalID(ctx, "course_id"); err != nil {
		return err
	}
	if filter.ModuleID, err = optionalID(ctx, "module_id"); err != nil {
		return err
	}

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), tenantID(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	if !mustContextUser(ctx).IsAdmin() {
		for i := range lessons {
			lessons[i] = lessons[i].ForStudent()
		}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	l := contextObject[course.Lesson](ctx)
	if !mustContextUser(ctx).IsAdmin() {
		l = l.ForStudent()
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *courseApi) updateLesson(ctx echo.Context) error {
	l := contextObject[course.Lesson](ctx)

	var data course.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err := data.Validate(l, api.validate); err != nil {
		return err
	}

	l, err := api.svc.UpdateLesson(ctx.Request().Context(), l, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), contextObject[course.Lesson](ctx)); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// retrieveQuiz delivers the quiz of a lesson without its answers.
func (api *courseApi) retrieveQuiz(ctx echo.Context) error {
	l := contextObject[course.Lesson](ctx)
	if l.ContentType != course.ContentQuiz {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, l.QuizPayload().Public())
}

func (api *courseApi) submitQuiz(ctx echo.Context) error {
	var data quiz.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to quiz.Submission")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.progress.SubmitQuiz(ctx.Request().Context(), mustContextUser(ctx), contextObject[course.Lesson](ctx), data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	e, err := api.progress.CompleteLesson(ctx.Request().Context(), mustContextUser(ctx), contextObject[course.Lesson](ctx))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, e)
}

// Assets

type assetResponse struct {
	URL string `json:"url"`
}

func (api *courseApi) retrieveAsset(ctx echo.Context) error {
	url, err := api.svc.LessonAssetURL(ctx.Request().Context(), contextObject[course.Lesson](ctx))
	if err != nil {
		if errors.Cause(err) == course.ErrStorageDisabled {
			return errStorageDisabled
		}
		return errors.Wrap(err, "getting lesson asset url")
	}
	return ctx.JSON(http.StatusOK, assetResponse{URL: url})
}

func (api *courseApi) uploadAsset(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"file": "a file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	l := contextObject[course.Lesson](ctx)
	l, err = api.svc.UploadLessonAsset(ctx.Request().Context(), l, fh.Filename, f, fh.Size, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		if errors.Cause(err) == course.ErrStorageDisabled {
			return errStorageDisabled
		}
		return errors.Wrap(err, "uploading lesson asset")
	}
	return ctx.JSON(http.StatusOK, l)
}
