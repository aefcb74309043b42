package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Enrollment struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	UserID      int64      `json:"user_id"`
	CourseID    int64      `json:"course_id"`
	Progress    int        `json:"progress"` // 0..100
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (e Enrollment) IsCompleted() bool { return e.CompletedAt != nil }

// NewEnrollment contains information needed to enroll a User in a Course.
// UserID defaults to the requesting User.
type NewEnrollment struct {
	UserID   int64 `json:"user_id"`
	CourseID int64 `json:"course_id" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}

type UpdateProgress struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

func (up *UpdateProgress) Validate(validate *validator.Validate) error {
	return validate.Struct(up)
}

type QueryFilter struct {
	UserID    int64 `query:"user_id"`
	CourseID  int64 `query:"course_id"`
	Completed *bool `query:"completed"`
}
