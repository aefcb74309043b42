// Package progress ties learner actions on lessons to their activity log and enrollment progress.
package progress

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/quiz"
	"github.com/trezcool/darasa/core/user"
)

var ErrNotQuiz = errors.New("this lesson is not a quiz")

type (
	Service interface {
		// SubmitQuiz grades the answers of usr to a quiz lesson.
		// A completed run is recorded as activity and raises the user's course progress.
		SubmitQuiz(ctx context.Context, usr user.User, l course.Lesson, sub quiz.Submission) (quiz.Result, error)
		// CompleteLesson marks a non-quiz lesson as done by usr.
		CompleteLesson(ctx context.Context, usr user.User, l course.Lesson) (enrollment.Enrollment, error)
	}

	service struct {
		courses     course.Service
		enrollments enrollment.Service
		activities  activity.Service
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(courses course.Service, enrollments enrollment.Service, activities activity.Service, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(enrollments, "enrollments"),
		vala.IsNotNil(activities, "activities"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{courses: courses, enrollments: enrollments, activities: activities, logger: logger}
}

func (svc *service) SubmitQuiz(ctx context.Context, usr user.User, l course.Lesson, sub quiz.Submission) (quiz.Result, error) {
	if l.ContentType != course.ContentQuiz {
		return quiz.Result{}, core.NewValidationError(ErrNotQuiz, core.FieldError{Field: "lesson", Error: ErrNotQuiz.Error()})
	}

	var completed bool
	res, err := quiz.Grade(l.QuizPayload(), sub.Answers, func(score, total int) { completed = true })
	if err != nil {
		if err == quiz.ErrNoQuestions {
			return quiz.Result{}, core.NewValidationError(err, core.FieldError{Field: "quiz", Error: err.Error()})
		}
		return quiz.Result{}, err
	}
	if completed {
		if err = svc.markCompleted(ctx, usr, l, activity.TypeQuizCompleted); err != nil {
			return quiz.Result{}, err
		}
		if usr.IsStudent() {
			if _, err = svc.refresh(ctx, usr, l.CourseID); err != nil && !core.IsNotFound(err) {
				svc.logger.Warn("refreshing course progress", err, map[string]interface{}{"lesson_id": l.ID}, usr)
			}
		}
	}
	return res, nil
}

func (svc *service) CompleteLesson(ctx context.Context, usr user.User, l course.Lesson) (enrollment.Enrollment, error) {
	if l.ContentType == course.ContentQuiz {
		return enrollment.Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "lesson", Error: "quizzes are completed by submitting them"})
	}
	if _, err := svc.enrollments.Find(ctx, usr.TenantID, usr.ID, l.CourseID); err != nil {
		return enrollment.Enrollment{}, err
	}
	if err := svc.markCompleted(ctx, usr, l, activity.TypeLessonComplete); err != nil {
		return enrollment.Enrollment{}, err
	}
	return svc.refresh(ctx, usr, l.CourseID)
}

// markCompleted stores the completion log progress is computed from. Unlike Record, a failed write is returned.
func (svc *service) markCompleted(ctx context.Context, usr user.User, l course.Lesson, at activity.Type) error {
	nl := activity.NewLog{ResourceType: activity.ResourceLesson, ResourceID: l.ID, ActivityType: at}
	if _, err := svc.activities.Create(ctx, usr.TenantID, usr.ID, nl); err != nil {
		return errors.Wrap(err, "recording lesson completion")
	}
	return nil
}

// refresh raises the enrollment progress to the share of the course's lessons usr completed.
func (svc *service) refresh(ctx context.Context, usr user.User, courseID int64) (enrollment.Enrollment, error) {
	lessons, err := svc.courses.QueryLessons(ctx, usr.TenantID, &course.LessonFilter{CourseID: courseID})
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "listing course lessons")
	}
	done, err := svc.completedLessons(ctx, usr)
	if err != nil {
		return enrollment.Enrollment{}, err
	}

	var completed int
	for _, l := range lessons {
		if done[l.ID] {
			completed++
		}
	}
	return svc.enrollments.RaiseProgress(ctx, usr.TenantID, usr.ID, courseID, completed, len(lessons))
}

func (svc *service) completedLessons(ctx context.Context, usr user.User) (map[int64]bool, error) {
	done := make(map[int64]bool)
	for _, at := range []activity.Type{activity.TypeLessonComplete, activity.TypeQuizCompleted} {
		filter := &activity.QueryFilter{UserID: usr.ID, ResourceType: activity.ResourceLesson, ActivityType: at}
		page := core.Pagination{Limit: core.MaxPageLimit}
		for {
			logs, err := svc.activities.Query(ctx, usr.TenantID, filter, core.ListOptions{Page: page})
			if err != nil {
				return nil, errors.Wrap(err, "querying completed lessons")
			}
			for _, l := range logs {
				done[l.ResourceID] = true
			}
			if len(logs) < page.Limit {
				break
			}
			page.Offset += page.Limit
		}
	}
	return done, nil
}
