package batch

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
	ErrNotFound           = core.NewNotFoundError("batch")
	ErrEnrollmentNotFound = core.NewNotFoundError("batch enrollment")
	ErrAlreadyInBatch     = errors.New("user is already in this batch")
	ErrTrainerNotAdmin    = errors.New("trainer must be an administrator")
	ErrNotStudent         = errors.New("only students can join a batch")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateBatch(ctx context.Context, b Batch) (Batch, error)
		GetBatch(ctx context.Context, tenantID, id int64) (Batch, error)
		QueryBatches(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Batch, error)
		UpdateBatch(ctx context.Context, b Batch) (Batch, error)
		// DeleteBatch deletes the batch with its enrollments.
		DeleteBatch(ctx context.Context, tenantID, id int64) error

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, tenantID, id int64) (Enrollment, error)
		// FindEnrollment returns the enrollment of a user in a batch.
		FindEnrollment(ctx context.Context, tenantID, batchID, userID int64) (Enrollment, error)
		QueryEnrollments(ctx context.Context, tenantID int64, filter *EnrollmentFilter, opts core.ListOptions) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, tenantID, id int64) error
	}

	Service interface {
		Create(ctx context.Context, tenantID int64, nb NewBatch) (Batch, error)
		Get(ctx context.Context, tenantID, id int64) (Batch, error)
		Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Batch, error)
		Update(ctx context.Context, b Batch, ub UpdateBatch) (Batch, error)
		Delete(ctx context.Context, b Batch) error

		AddMember(ctx context.Context, tenantID int64, ne NewEnrollment) (Enrollment, error)
		GetMember(ctx context.Context, tenantID, id int64) (Enrollment, error)
		QueryMembers(ctx context.Context, tenantID int64, filter *EnrollmentFilter, opts core.ListOptions) ([]Enrollment, error)
		SetMemberStatus(ctx context.Context, e Enrollment, status Status) (Enrollment, error)
		RemoveMember(ctx context.Context, e Enrollment) error
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

func (svc *service) checkTrainer(ctx context.Context, tenantID, trainerID int64) error {
	trainer, err := svc.users.Get(ctx, tenantID, trainerID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "trainer_id", Error: "user not found"})
		}
		return err
	}
	if !trainer.IsAdmin() {
		return core.NewValidationError(ErrTrainerNotAdmin, core.FieldError{Field: "trainer_id", Error: ErrTrainerNotAdmin.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, tenantID int64, nb NewBatch) (Batch, error) {
	if _, err := svc.courses.GetCourse(ctx, tenantID, nb.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Batch{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: "course not found"})
		}
		return Batch{}, err
	}
	if err := svc.checkTrainer(ctx, tenantID, nb.TrainerID); err != nil {
		return Batch{}, err
	}

	now := nowFunc().UTC()
	return svc.repo.CreateBatch(ctx, Batch{
		TenantID:  tenantID,
		CourseID:  nb.CourseID,
		TrainerID: nb.TrainerID,
		Name:      nb.Name,
		Schedule:  nb.Schedule,
		StartsOn:  nb.StartsOn,
		EndsOn:    nb.EndsOn,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Get(ctx context.Context, tenantID, id int64) (Batch, error) {
	return svc.repo.GetBatch(ctx, tenantID, id)
}

func (svc *service) Query(ctx context.Context, tenantID int64, filter *QueryFilter, opts core.ListOptions) ([]Batch, error) {
	return svc.repo.QueryBatches(ctx, tenantID, filter, opts)
}

func (svc *service) Update(ctx context.Context, b Batch, ub UpdateBatch) (Batch, error) {
	if ub.TrainerID != b.TrainerID {
		if err := svc.checkTrainer(ctx, b.TenantID, ub.TrainerID); err != nil {
			return Batch{}, err
		}
	}

	b.TrainerID = ub.TrainerID
	b.Name = ub.Name
	if ub.Schedule != nil {
		b.Schedule = core.CleanString(*ub.Schedule)
	}
	b.StartsOn = ub.StartsOn
	b.EndsOn = ub.EndsOn
	b.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateBatch(ctx, b)
}

func (svc *service) Delete(ctx context.Context, b Batch) error {
	return svc.repo.DeleteBatch(ctx, b.TenantID, b.ID)
}

func (svc *service) AddMember(ctx context.Context, tenantID int64, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetBatch(ctx, tenantID, ne.BatchID); err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "batch_id", Error: "batch not found"})
		}
		return Enrollment{}, err
	}
	usr, err := svc.users.Get(ctx, tenantID, ne.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: "user not found"})
		}
		return Enrollment{}, err
	}
	if !usr.IsStudent() {
		return Enrollment{}, core.NewValidationError(ErrNotStudent, core.FieldError{Field: "user_id", Error: ErrNotStudent.Error()})
	}

	if _, err = svc.repo.FindEnrollment(ctx, tenantID, ne.BatchID, ne.UserID); err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyInBatch, core.FieldError{Field: "user_id", Error: ErrAlreadyInBatch.Error()})
	} else if !core.IsNotFound(err) {
		return Enrollment{}, err
	}

	now := nowFunc().UTC()
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		TenantID:  tenantID,
		BatchID:   ne.BatchID,
		UserID:    ne.UserID,
		Status:    ne.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) GetMember(ctx context.Context, tenantID, id int64) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, tenantID, id)
}

func (svc *service) QueryMembers(ctx context.Context, tenantID int64, filter *EnrollmentFilter, opts core.ListOptions) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, tenantID, filter, opts)
}

func (svc *service) SetMemberStatus(ctx context.Context, e Enrollment, status Status) (Enrollment, error) {
	e.Status = status
	e.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, e)
}

func (svc *service) RemoveMember(ctx context.Context, e Enrollment) error {
	return svc.repo.DeleteEnrollment(ctx, e.TenantID, e.ID)
}
