package course

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/quiz"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentText  ContentType = "text"
	ContentPDF   ContentType = "pdf"
	ContentQuiz  ContentType = "quiz"
)

var (
	Difficulties = []string{string(DifficultyBeginner), string(DifficultyIntermediate), string(DifficultyAdvanced)}
	ContentTypes = []string{string(ContentVideo), string(ContentText), string(ContentPDF), string(ContentQuiz)}
)

// HasAsset reports whether lessons of this type carry an uploaded file.
func (ct ContentType) HasAsset() bool { return ct == ContentVideo || ct == ContentPDF }

type Course struct {
	ID                 int64      `json:"id"`
	TenantID           int64      `json:"tenant_id"`
	CreatedBy          int64      `json:"created_by"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	Difficulty         Difficulty `json:"difficulty"`
	DurationMinutes    int        `json:"duration_minutes"`
	ModuleCount        int        `json:"module_count"`
	LessonCount        int        `json:"lesson_count"`
	EnrollmentRequired bool       `json:"enrollment_required"`
	CreatedAt          time.Time  `json:"created_at"` // UTC
	UpdatedAt          time.Time  `json:"updated_at"` // UTC
}

type Module struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	CourseID    int64     `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Lesson struct {
	ID              int64         `json:"id"`
	TenantID        int64         `json:"tenant_id"`
	CourseID        int64         `json:"course_id"`
	ModuleID        int64         `json:"module_id"`
	Title           string        `json:"title"`
	ContentType     ContentType   `json:"content_type"`
	Body            string        `json:"body"`
	AssetKey        string        `json:"asset_key,omitempty"`
	Quiz            *quiz.Payload `json:"quiz,omitempty"`
	Position        int           `json:"position"`
	DurationMinutes int           `json:"duration_minutes"`
	CreatedAt       time.Time     `json:"created_at"` // UTC
	UpdatedAt       time.Time     `json:"updated_at"` // UTC
}

// QuizPayload returns the lesson's quiz, empty for non-quiz lessons.
func (l Lesson) QuizPayload() quiz.Payload {
	if l.ContentType != ContentQuiz || l.Quiz == nil {
		return quiz.Payload{}
	}
	return *l.Quiz
}

// ForStudent hides the quiz answers.
func (l Lesson) ForStudent() Lesson {
	if l.Quiz != nil {
		pub := l.Quiz.Public()
		l.Quiz = &pub
	}
	return l
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description" validate:"max=10000"`
	Category           string     `json:"category" validate:"max=100"`
	Difficulty         Difficulty `json:"difficulty" validate:"omitempty,difficulty"`
	DurationMinutes    int        `json:"duration_minutes" validate:"min=0"`
	EnrollmentRequired bool       `json:"enrollment_required"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category)
	if nc.Difficulty == "" {
		nc.Difficulty = DifficultyBeginner
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title              string     `json:"title" validate:"max=200"`
	Description        *string    `json:"description" validate:"omitempty,max=10000"`
	Category           *string    `json:"category" validate:"omitempty,max=100"`
	Difficulty         Difficulty `json:"difficulty" validate:"omitempty,difficulty"`
	DurationMinutes    *int       `json:"duration_minutes" validate:"omitempty,min=0"`
	EnrollmentRequired *bool      `json:"enrollment_required"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if uc.Difficulty == "" {
		uc.Difficulty = orig.Difficulty
	}
	return validate.Struct(uc)
}

type CourseFilter struct {
	Search     string     `query:"search"`
	Category   string     `query:"category"`
	Difficulty Difficulty `query:"difficulty"`
	CreatedBy  int64      `query:"created_by"`
}

func (cf *CourseFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
	cf.Category = core.CleanString(cf.Category)
}

// NewModule contains information needed to create a new Module.
type NewModule struct {
	CourseID    int64  `json:"course_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
	Position    *int   `json:"position" validate:"omitempty,min=1"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// UpdateModule defines what information may be provided to modify an existing Module.
type UpdateModule struct {
	Title       string  `json:"title" validate:"max=200"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Position    *int    `json:"position" validate:"omitempty,min=1"`
}

func (um *UpdateModule) Validate(orig Module, validate *validator.Validate) error {
	if title := core.CleanString(um.Title); title != "" {
		um.Title = title
	} else {
		um.Title = orig.Title
	}
	return validate.Struct(um)
}

type ModuleFilter struct {
	CourseID int64 `query:"course_id"`
}

// NewLesson contains information needed to create a new Lesson.
// Quiz is decoded into Payload by Validate.
type NewLesson struct {
	ModuleID        int64           `json:"module_id" validate:"required"`
	Title           string          `json:"title" validate:"required,max=200"`
	ContentType     ContentType     `json:"content_type" validate:"required,contenttype"`
	Body            string          `json:"body" validate:"max=100000"`
	Quiz            json.RawMessage `json:"quiz"`
	Position        *int            `json:"position" validate:"omitempty,min=1"`
	DurationMinutes int             `json:"duration_minutes" validate:"min=0"`

	Payload *quiz.Payload `json:"-"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Body = core.CleanString(nl.Body)
	if err := validate.Struct(nl); err != nil {
		return err
	}

	if nl.ContentType == ContentText && nl.Body == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "body", Error: "text lessons require a body"})
	}
	p, err := decodeLessonQuiz(nl.ContentType, nl.Quiz)
	if err != nil {
		return err
	}
	nl.Payload = p
	return nil
}

// UpdateLesson defines what information may be provided to modify an existing Lesson.
type UpdateLesson struct {
	Title           string          `json:"title" validate:"max=200"`
	Body            *string         `json:"body" validate:"omitempty,max=100000"`
	Quiz            json.RawMessage `json:"quiz"`
	Position        *int            `json:"position" validate:"omitempty,min=1"`
	DurationMinutes *int            `json:"duration_minutes" validate:"omitempty,min=0"`

	Payload *quiz.Payload `json:"-"`
}

func (ul *UpdateLesson) Validate(orig Lesson, validate *validator.Validate) error {
	if title := core.CleanString(ul.Title); title != "" {
		ul.Title = title
	} else {
		ul.Title = orig.Title
	}
	if err := validate.Struct(ul); err != nil {
		return err
	}

	if len(ul.Quiz) == 0 {
		return nil
	}
	p, err := decodeLessonQuiz(orig.ContentType, ul.Quiz)
	if err != nil {
		return err
	}
	ul.Payload = p
	return nil
}

// decodeLessonQuiz decodes and validates the quiz of a quiz lesson; other lessons have none.
func decodeLessonQuiz(ct ContentType, raw json.RawMessage) (*quiz.Payload, error) {
	if ct != ContentQuiz {
		return nil, nil
	}
	p, err := quiz.Parse(raw)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "quiz", Error: "malformed quiz payload"})
	}
	if err = p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

type LessonFilter struct {
	CourseID    int64       `query:"course_id"`
	ModuleID    int64       `query:"module_id"`
	ContentType ContentType `query:"content_type"`
}
