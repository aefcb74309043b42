package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Exam struct {
	ID               int64     `json:"id"`
	TenantID         int64     `json:"tenant_id"`
	CourseID         int64     `json:"course_id"`
	CreatedBy        int64     `json:"created_by"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	TimeLimitMinutes int       `json:"time_limit_minutes"` // 0: unlimited
	IsPublished      bool      `json:"is_published"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

type Question struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	ExamID    int64     `json:"exam_id"`
	Prompt    string    `json:"prompt"`
	Position  int       `json:"position"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Attempt is a student's submission for an Exam.
// Answers maps question ids (decimal) to free-text answers.
type Attempt struct {
	ID          int64             `json:"id"`
	TenantID    int64             `json:"tenant_id"`
	ExamID      int64             `json:"exam_id"`
	UserID      int64             `json:"user_id"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Feedback    string            `json:"feedback"`
	Score       *int              `json:"score"`
	ReviewedAt  *time.Time        `json:"reviewed_at"`
	ReviewedBy  *int64            `json:"reviewed_by"`
}

func (a Attempt) IsReviewed() bool { return a.ReviewedAt != nil }

// NewExam contains information needed to create a new Exam.
type NewExam struct {
	CourseID         int64  `json:"course_id" validate:"required"`
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description" validate:"max=10000"`
	TimeLimitMinutes int    `json:"time_limit_minutes" validate:"min=0"`
	IsPublished      bool   `json:"is_published"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}

// UpdateExam defines what information may be provided to modify an existing Exam.
type UpdateExam struct {
	Title            string  `json:"title" validate:"max=200"`
	Description      *string `json:"description" validate:"omitempty,max=10000"`
	TimeLimitMinutes *int    `json:"time_limit_minutes" validate:"omitempty,min=0"`
	IsPublished      *bool   `json:"is_published"`
}

func (ue *UpdateExam) Validate(orig Exam, validate *validator.Validate) error {
	if title := core.CleanString(ue.Title); title != "" {
		ue.Title = title
	} else {
		ue.Title = orig.Title
	}
	return validate.Struct(ue)
}

type ExamFilter struct {
	Search      string `query:"search"`
	CourseID    int64  `query:"course_id"`
	IsPublished *bool  `query:"is_published"`
}

func (ef *ExamFilter) Clean() {
	ef.Search = core.CleanString(ef.Search)
}

// NewQuestion contains information needed to add a Question to an Exam.
type NewQuestion struct {
	ExamID   int64  `json:"exam_id" validate:"required"`
	Prompt   string `json:"prompt" validate:"required,max=10000"`
	Position *int   `json:"position" validate:"omitempty,min=1"`
	Points   int    `json:"points" validate:"min=0,max=1000"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Prompt = core.CleanString(nq.Prompt)
	if nq.Points == 0 {
		nq.Points = 1
	}
	return validate.Struct(nq)
}

type UpdateQuestion struct {
	Prompt   string `json:"prompt" validate:"max=10000"`
	Position *int   `json:"position" validate:"omitempty,min=1"`
	Points   *int   `json:"points" validate:"omitempty,min=0,max=1000"`
}

func (uq *UpdateQuestion) Validate(orig Question, validate *validator.Validate) error {
	if prompt := core.CleanString(uq.Prompt); prompt != "" {
		uq.Prompt = prompt
	} else {
		uq.Prompt = orig.Prompt
	}
	return validate.Struct(uq)
}

type QuestionFilter struct {
	ExamID int64 `query:"exam_id"`
}

// NewAttempt contains a student's answers to an Exam.
type NewAttempt struct {
	ExamID  int64             `json:"exam_id" validate:"required"`
	Answers map[string]string `json:"answers" validate:"required,dive,max=20000"`
}

func (na *NewAttempt) Validate(validate *validator.Validate) error {
	for qid, ans := range na.Answers {
		na.Answers[qid] = core.CleanString(ans)
	}
	return validate.Struct(na)
}

// Review is an instructor's assessment of an Attempt.
type Review struct {
	Feedback string `json:"feedback" validate:"required_without=Score,max=10000"`
	Score    *int   `json:"score" validate:"omitempty,min=0"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Feedback = core.CleanString(r.Feedback)
	return validate.Struct(r)
}

type AttemptFilter struct {
	ExamID  int64 `query:"exam_id"`
	UserID  int64 `query:"user_id"`
	Pending *bool `query:"pending"` // pending review
}
