package batch

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDropped   Status = "dropped"
)

var Statuses = []string{string(StatusActive), string(StatusCompleted), string(StatusDropped)}

// Batch is a cohort of students following a Course under a trainer.
type Batch struct {
	ID        int64      `json:"id"`
	TenantID  int64      `json:"tenant_id"`
	CourseID  int64      `json:"course_id"`
	TrainerID int64      `json:"trainer_id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	StartsOn  *time.Time `json:"starts_on"` // date only
	EndsOn    *time.Time `json:"ends_on"`   // date only
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Enrollment struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	BatchID   int64     `json:"batch_id"`
	UserID    int64     `json:"user_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBatch contains information needed to create a new Batch.
type NewBatch struct {
	CourseID  int64      `json:"course_id" validate:"required"`
	TrainerID int64      `json:"trainer_id" validate:"required"`
	Name      string     `json:"name" validate:"required,max=120"`
	Schedule  string     `json:"schedule" validate:"max=500"`
	StartsOn  *time.Time `json:"starts_on"`
	EndsOn    *time.Time `json:"ends_on"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Schedule = core.CleanString(nb.Schedule)
	nb.StartsOn = truncDate(nb.StartsOn)
	nb.EndsOn = truncDate(nb.EndsOn)
	if err := validate.Struct(nb); err != nil {
		return err
	}
	return checkDates(nb.StartsOn, nb.EndsOn)
}

// UpdateBatch defines what information may be provided to modify an existing Batch.
type UpdateBatch struct {
	TrainerID int64      `json:"trainer_id"`
	Name      string     `json:"name" validate:"max=120"`
	Schedule  *string    `json:"schedule" validate:"omitempty,max=500"`
	StartsOn  *time.Time `json:"starts_on"`
	EndsOn    *time.Time `json:"ends_on"`
}

func (ub *UpdateBatch) Validate(orig Batch, validate *validator.Validate) error {
	if name := core.CleanString(ub.Name); name != "" {
		ub.Name = name
	} else {
		ub.Name = orig.Name
	}
	if ub.TrainerID == 0 {
		ub.TrainerID = orig.TrainerID
	}
	if ub.StartsOn == nil {
		ub.StartsOn = orig.StartsOn
	}
	if ub.EndsOn == nil {
		ub.EndsOn = orig.EndsOn
	}
	ub.StartsOn = truncDate(ub.StartsOn)
	ub.EndsOn = truncDate(ub.EndsOn)
	if err := validate.Struct(ub); err != nil {
		return err
	}
	return checkDates(ub.StartsOn, ub.EndsOn)
}

type QueryFilter struct {
	Search    string `query:"search"`
	CourseID  int64  `query:"course_id"`
	TrainerID int64  `query:"trainer_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type NewEnrollment struct {
	BatchID int64  `json:"batch_id" validate:"required"`
	UserID  int64  `json:"user_id" validate:"required"`
	Status  Status `json:"status" validate:"omitempty,batchstatus"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	if ne.Status == "" {
		ne.Status = StatusActive
	}
	return validate.Struct(ne)
}

type UpdateEnrollment struct {
	Status Status `json:"status" validate:"required,batchstatus"`
}

func (ue *UpdateEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ue)
}

type EnrollmentFilter struct {
	BatchID int64  `query:"batch_id"`
	UserID  int64  `query:"user_id"`
	Status  Status `query:"status"`
}

func checkDates(startsOn, endsOn *time.Time) error {
	if startsOn != nil && endsOn != nil && endsOn.Before(*startsOn) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_on", Error: "ends_on must not be before starts_on"})
	}
	return nil
}

func truncDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
