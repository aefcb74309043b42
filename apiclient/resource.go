package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

const (
	PathTenants          = "/api/tenants"
	PathUsers            = "/api/users"
	PathCourses          = "/api/courses"
	PathModules          = "/api/modules"
	PathLessons          = "/api/lessons"
	PathEnrollments      = "/api/enrollments"
	PathExams            = "/api/exams"
	PathQuestions        = "/api/questions"
	PathExamAttempts     = "/api/exam-attempts"
	PathActivityLogs     = "/api/activity-logs"
	PathBatches          = "/api/batches"
	PathBatchEnrollments = "/api/batch-enrollments"

	pathDashboards = "/api/dashboard"
	pathAdmin      = "/api/admin"
	pathStudent    = "/api/student"
)

// Resource gives list/get/create/update/delete access to the records of one resource path.
type Resource[T any] struct {
	c    *Client
	path string
	// paths holding data derived from this resource (counts, cascades, dashboards),
	// dropped with everything under them on every mutation
	dependents []string
}

func NewResource[T any](c *Client, path string, dependents ...string) *Resource[T] {
	return &Resource[T]{c: c, path: path, dependents: dependents}
}

func (r *Resource[T]) Path() string { return r.path }

func (r *Resource[T]) itemKey(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

// List returns the records matching query (filters, ordering, limit and offset).
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	var objs []T
	if err := r.c.getInto(ctx, cacheKey(r.path, query), &objs); err != nil {
		return nil, err
	}
	return objs, nil
}

func (r *Resource[T]) Get(ctx context.Context, id int64) (T, error) {
	var obj T
	err := r.c.getInto(ctx, r.itemKey(id), &obj)
	return obj, err
}

func (r *Resource[T]) Create(ctx context.Context, data interface{}) (T, error) {
	var obj T
	body, err := r.c.send(ctx, http.MethodPost, r.path, data, &obj)
	if err != nil {
		return obj, err
	}
	r.stored(body)
	return obj, nil
}

func (r *Resource[T]) Update(ctx context.Context, id int64, data interface{}) (T, error) {
	var obj T
	body, err := r.c.send(ctx, http.MethodPut, r.itemKey(id), data, &obj)
	if err != nil {
		return obj, err
	}
	r.stored(body)
	return obj, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	if _, err := r.c.send(ctx, http.MethodDelete, r.itemKey(id), nil, nil); err != nil {
		return err
	}
	r.c.cache.invalidatePrefix(r.itemKey(id))
	r.c.cache.invalidateLists(r.path)
	r.c.cache.invalidatePrefix(r.dependents...)
	return nil
}

// stored writes a record returned by a mutation into its item key and drops the lists it may appear in,
// along with the sub-resources of the record (e.g. the quiz of a lesson).
func (r *Resource[T]) stored(body []byte) {
	var ref struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &ref); err == nil && ref.ID != 0 {
		r.c.cache.invalidatePrefix(r.itemKey(ref.ID))
		r.c.cache.set(r.itemKey(ref.ID), body)
	}
	r.c.cache.invalidateLists(r.path)
	r.c.cache.invalidatePrefix(r.dependents...)
}

// Typed resources

func (c *Client) Tenants() *Resource[tenant.Tenant] {
	return NewResource[tenant.Tenant](c, PathTenants)
}

func (c *Client) Users() *Resource[user.User] {
	return NewResource[user.User](c, PathUsers, pathDashboards, pathAdmin)
}

func (c *Client) Courses() *Resource[course.Course] {
	return NewResource[course.Course](c, PathCourses,
		PathModules, PathLessons, PathEnrollments, PathExams, PathQuestions, PathExamAttempts, PathBatches, PathBatchEnrollments,
		pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Modules() *Resource[course.Module] {
	return NewResource[course.Module](c, PathModules, PathCourses, PathLessons, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Lessons() *Resource[course.Lesson] {
	return NewResource[course.Lesson](c, PathLessons, PathCourses, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Enrollments() *Resource[enrollment.Enrollment] {
	return NewResource[enrollment.Enrollment](c, PathEnrollments, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Exams() *Resource[exam.Exam] {
	return NewResource[exam.Exam](c, PathExams, PathQuestions, PathExamAttempts, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Questions() *Resource[exam.Question] {
	return NewResource[exam.Question](c, PathQuestions, PathExamAttempts)
}

func (c *Client) ExamAttempts() *Resource[exam.Attempt] {
	return NewResource[exam.Attempt](c, PathExamAttempts, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) ActivityLogs() *Resource[activity.Log] {
	return NewResource[activity.Log](c, PathActivityLogs, pathDashboards, pathAdmin, pathStudent)
}

func (c *Client) Batches() *Resource[batch.Batch] {
	return NewResource[batch.Batch](c, PathBatches, PathBatchEnrollments)
}

func (c *Client) BatchEnrollments() *Resource[batch.Enrollment] {
	return NewResource[batch.Enrollment](c, PathBatchEnrollments, PathBatches)
}

// ReviewAttempt grades an exam attempt.
func (c *Client) ReviewAttempt(ctx context.Context, attemptID int64, review exam.Review) (exam.Attempt, error) {
	attempts := c.ExamAttempts()
	var a exam.Attempt
	body, err := c.send(ctx, http.MethodPost, attempts.itemKey(attemptID)+"/review", review, &a)
	if err != nil {
		return a, errors.Wrap(err, "reviewing attempt")
	}
	attempts.stored(body)
	return a, nil
}
