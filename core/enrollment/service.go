package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrEnrollmentRequired = errors.New("this course requires enrollment by an administrator")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, tenantID, id int64) (Enrollment, error)
		// FindEnrollment returns the enrollment of a user in a course.
		FindEnrollment(ctx context.Context, tenantID, userID, courseID int64) (Enrollment, error)
		QueryEnrollments(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, tenantID, id int64) error
	}

	Service interface {
		// Enroll registers a User in a Course on behalf of actor. Students may only enroll themselves,
		// in courses that do not require an administrator.
		Enroll(ctx context.Context, actor user.User, ne NewEnrollment) (Enrollment, error)
		Get(ctx context.Context, tenantID, id int64) (Enrollment, error)
		Find(ctx context.Context, tenantID, userID, courseID int64) (Enrollment, error)
		Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Enrollment, error)
		// SetProgress sets CompletedAt when progress reaches 100 and clears it below.
		SetProgress(ctx context.Context, e Enrollment, progress int) (Enrollment, error)
		// RaiseProgress sets the progress of a user in a course to completed/total lessons,
		// never lowering it. It is a no-op for users not enrolled.
		RaiseProgress(ctx context.Context, tenantID, userID, courseID int64, completed, total int) (Enrollment, error)
		Unenroll(ctx context.Context, e Enrollment) error
	}

	service struct {
		repo    Repository
		courses course.Service
		users   user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courses course.Service, users user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()

	return &service{repo: repo, courses: courses, users: users}
}

func (svc *service) Enroll(ctx context.Context, actor user.User, ne NewEnrollment) (Enrollment, error) {
	tenantID := actor.TenantID
	if ne.UserID == 0 {
		ne.UserID = actor.ID
	}

	c, err := svc.courses.GetCourse(ctx, tenantID, ne.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: "course not found"})
		}
		return Enrollment{}, err
	}

	if !actor.IsAdmin() {
		if ne.UserID != actor.ID {
			return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "students can only enroll themselves"})
		}
		if c.EnrollmentRequired {
			return Enrollment{}, core.NewValidationError(ErrEnrollmentRequired, core.FieldError{Field: "course_id", Error: ErrEnrollmentRequired.Error()})
		}
	} else if ne.UserID != actor.ID {
		if _, err = svc.users.Get(ctx, tenantID, ne.UserID); err != nil {
			if core.IsNotFound(err) {
				return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: "user not found"})
			}
			return Enrollment{}, err
		}
	}

	if _, err = svc.repo.FindEnrollment(ctx, tenantID, ne.UserID, c.ID); err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "course_id", Error: ErrAlreadyEnrolled.Error()})
	} else if !core.IsNotFound(err) {
		return Enrollment{}, err
	}

	return svc.repo.CreateEnrollment(ctx, Enrollment{
		TenantID:   tenantID,
		UserID:     ne.UserID,
		CourseID:   c.ID,
		EnrolledAt: nowFunc().UTC(),
	})
}

func (svc *service) Get(ctx context.Context, tenantID, id int64) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, tenantID, id)
}

func (svc *service) Find(ctx context.Context, tenantID, userID, courseID int64) (Enrollment, error) {
	return svc.repo.FindEnrollment(ctx, tenantID, userID, courseID)
}

func (svc *service) Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, tenantID, filter, opts)
}

func (svc *service) SetProgress(ctx context.Context, e Enrollment, progress int) (Enrollment, error) {
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}

	e.Progress = progress
	switch {
	case progress == 100 && e.CompletedAt == nil:
		now := nowFunc().UTC()
		e.CompletedAt = &now
	case progress < 100:
		e.CompletedAt = nil
	}
	return svc.repo.UpdateEnrollment(ctx, e)
}

func (svc *service) RaiseProgress(ctx context.Context, tenantID, userID, courseID int64, completed, total int) (Enrollment, error) {
	e, err := svc.repo.FindEnrollment(ctx, tenantID, userID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if total <= 0 {
		return e, nil
	}
	progress := completed * 100 / total
	if progress <= e.Progress {
		return e, nil
	}
	return svc.SetProgress(ctx, e, progress)
}

func (svc *service) Unenroll(ctx context.Context, e Enrollment) error {
	return svc.repo.DeleteEnrollment(ctx, e.TenantID, e.ID)
}
