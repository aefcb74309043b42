package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Type string

const (
	TypeLogin          Type = "login"
	TypeViewed         Type = "viewed"
	TypeEnrolled       Type = "enrolled"
	TypeLessonComplete Type = "lesson_completed"
	TypeQuizCompleted  Type = "quiz_completed"
	TypeExamSubmitted  Type = "exam_submitted"
	TypeExamReviewed   Type = "exam_reviewed"
)

type ResourceType string

const (
	ResourceCourse  ResourceType = "course"
	ResourceLesson  ResourceType = "lesson"
	ResourceExam    ResourceType = "exam"
	ResourceAttempt ResourceType = "exam_attempt"
	ResourceBatch   ResourceType = "batch"
	ResourceUser    ResourceType = "user"
)

var (
	Types = []string{
		string(TypeLogin), string(TypeViewed), string(TypeEnrolled), string(TypeLessonComplete),
		string(TypeQuizCompleted), string(TypeExamSubmitted), string(TypeExamReviewed),
	}
	ResourceTypes = []string{
		string(ResourceCourse), string(ResourceLesson), string(ResourceExam),
		string(ResourceAttempt), string(ResourceBatch), string(ResourceUser),
	}
)

// Log is an append-only record of something a User did.
type Log struct {
	ID           int64        `json:"id"`
	TenantID     int64        `json:"tenant_id"`
	UserID       int64        `json:"user_id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	ActivityType Type         `json:"activity_type"`
	CreatedAt    time.Time    `json:"created_at"` // UTC
}

// NewLog is what clients may report about the requesting User.
type NewLog struct {
	ResourceType ResourceType `json:"resource_type" validate:"required,resourcetype"`
	ResourceID   int64        `json:"resource_id" validate:"required"`
	ActivityType Type         `json:"activity_type" validate:"required,activitytype"`
}

func (nl *NewLog) Validate(validate *validator.Validate) error {
	nl.ResourceType = ResourceType(core.CleanString(string(nl.ResourceType), true /* lower */))
	nl.ActivityType = Type(core.CleanString(string(nl.ActivityType), true /* lower */))
	return validate.Struct(nl)
}

type QueryFilter struct {
	UserID       int64        `query:"user_id"`
	ResourceType ResourceType `query:"resource_type"`
	ResourceID   int64        `query:"resource_id"`
	ActivityType Type         `query:"activity_type"`
	Since        time.Time    `query:"since"`
}

// RoutingKey is the key the Log is published under, eg. `activity.lesson.quiz_completed`.
func (l Log) RoutingKey() string {
	return "activity." + string(l.ResourceType) + "." + string(l.ActivityType)
}
