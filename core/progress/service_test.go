package progress_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/quiz"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func TestService_SubmitQuiz(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	c := env.CreateCourse(t, admin, "Go 101", false)
	m := env.CreateModule(t, c, "Basics")
	text := env.CreateLesson(t, m, "Read me", course.ContentText, nil)
	q := env.CreateLesson(t, m, "Check", course.ContentQuiz, testutil.SampleQuiz(3))
	env.Enroll(t, jane, c)

	tests := []struct {
		name      string
		lesson    course.Lesson
		answers   map[string]string
		wantField string
		want      quiz.Result
	}{
		{name: "not a quiz", lesson: text, answers: map[string]string{"q1": "a"}, wantField: "lesson"},
		{name: "unanswered question", lesson: q, answers: map[string]string{"q1": "a", "q2": "a"}, wantField: "answers.q3"},
		{name: "unknown option", lesson: q, answers: map[string]string{"q1": "a", "q2": "z", "q3": "a"}, wantField: "answers.q2"},
		{
			name: "graded", lesson: q, answers: map[string]string{"q1": "a", "q2": "b", "q3": "a"},
			want: quiz.Result{Score: 2, Total: 3, Percentage: 66},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.Progress.SubmitQuiz(ctx, jane, tt.lesson, quiz.Submission{Answers: tt.answers})
			if tt.wantField != "" {
				assert.Contains(t, testutil.FieldNames(err), tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Score, res.Score)
			assert.Equal(t, tt.want.Total, res.Total)
		})
	}

	logs, err := env.Activities.Query(ctx, acme.ID, &activity.QueryFilter{UserID: jane.ID}, core.ListOptions{})
	require.NoError(t, err)
	require.Len(t, logs, 1, "only the graded submission is recorded")
	assert.Equal(t, activity.TypeQuizCompleted, logs[0].ActivityType)
	assert.Equal(t, q.ID, logs[0].ResourceID)

	e, err := env.Enrollments.Find(ctx, acme.ID, jane.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)

	events := env.Events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "activity.lesson.quiz_completed", events[0].RoutingKey)
}

func TestService_CompleteLesson(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	john := env.CreateUser(t, acme.ID, "John", "john", "john@acme.test", "", user.RoleStudent, true)
	c := env.CreateCourse(t, admin, "Go 101", false)
	m := env.CreateModule(t, c, "Basics")
	l1 := env.CreateLesson(t, m, "One", course.ContentText, nil)
	l2 := env.CreateLesson(t, m, "Two", course.ContentText, nil)
	q := env.CreateLesson(t, m, "Check", course.ContentQuiz, testutil.SampleQuiz(1))
	env.Enroll(t, jane, c)

	_, err := env.Progress.CompleteLesson(ctx, john, l1)
	assert.Equal(t, enrollment.ErrNotFound, err)
	_, err = env.Progress.CompleteLesson(ctx, jane, q)
	assert.Equal(t, []string{"lesson"}, testutil.FieldNames(err))

	tests := []struct {
		name          string
		lesson        course.Lesson
		wantProgress  int
		wantCompleted bool
	}{
		{name: "first lesson", lesson: l1, wantProgress: 33},
		{name: "same lesson again", lesson: l1, wantProgress: 33},
		{name: "second lesson", lesson: l2, wantProgress: 66},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := env.Progress.CompleteLesson(ctx, jane, tt.lesson)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProgress, e.Progress)
			assert.Nil(t, e.CompletedAt)
		})
	}

	_, err = env.Progress.SubmitQuiz(ctx, jane, q, quiz.Submission{Answers: map[string]string{"q1": "b"}})
	require.NoError(t, err)
	e, err := env.Enrollments.Find(ctx, acme.ID, jane.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Progress, "a graded quiz completes the lesson whatever the score")
	assert.NotNil(t, e.CompletedAt)
}

// brokenLogs fails every write.
type brokenLogs struct{ activity.Repository }

var errLogsDown = errors.New("activity_logs: connection refused")

func (brokenLogs) CreateLog(context.Context, activity.Log) (activity.Log, error) {
	return activity.Log{}, errLogsDown
}

func TestService_completionWriteFailure(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	c := env.CreateCourse(t, admin, "Go 101", false)
	m := env.CreateModule(t, c, "Basics")
	text := env.CreateLesson(t, m, "Read me", course.ContentText, nil)
	q := env.CreateLesson(t, m, "Check", course.ContentQuiz, testutil.SampleQuiz(1))
	env.Enroll(t, jane, c)

	activities := activity.NewService(brokenLogs{}, env.Events, env.Logger)
	svc := progress.NewService(env.Courses, env.Enrollments, activities, env.Logger)

	_, err := svc.CompleteLesson(ctx, jane, text)
	assert.Equal(t, errLogsDown, errors.Cause(err), "%v", err)

	_, err = svc.SubmitQuiz(ctx, jane, q, quiz.Submission{Answers: map[string]string{"q1": "a"}})
	assert.Error(t, err)

	e, err := env.Enrollments.Find(ctx, acme.ID, jane.ID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, e.Progress)
	assert.Empty(t, env.Events.Events())
}
