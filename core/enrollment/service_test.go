package enrollment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	john := env.CreateUser(t, acme.ID, "John", "john", "john@acme.test", "", user.RoleStudent, true)
	open := env.CreateCourse(t, admin, "Open", false)
	closed := env.CreateCourse(t, admin, "Closed", true)

	tests := []struct {
		name      string
		actor     user.User
		ne        enrollment.NewEnrollment
		wantField string
	}{
		{name: "self enroll", actor: jane, ne: enrollment.NewEnrollment{CourseID: open.ID}},
		{name: "already enrolled", actor: jane, ne: enrollment.NewEnrollment{CourseID: open.ID}, wantField: "course_id"},
		{name: "enrolling someone else", actor: jane, ne: enrollment.NewEnrollment{UserID: john.ID, CourseID: open.ID}, wantField: "user_id"},
		{name: "enrollment required", actor: jane, ne: enrollment.NewEnrollment{CourseID: closed.ID}, wantField: "course_id"},
		{name: "unknown course", actor: jane, ne: enrollment.NewEnrollment{CourseID: 999}, wantField: "course_id"},
		{name: "admin enrolls student", actor: admin, ne: enrollment.NewEnrollment{UserID: jane.ID, CourseID: closed.ID}},
		{name: "admin enrolls unknown user", actor: admin, ne: enrollment.NewEnrollment{UserID: 999, CourseID: closed.ID}, wantField: "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := env.Enrollments.Enroll(ctx, tt.actor, tt.ne)
			if tt.wantField != "" {
				assert.Equal(t, []string{tt.wantField}, testutil.FieldNames(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, jane.ID, e.UserID)
			assert.Equal(t, tt.ne.CourseID, e.CourseID)
			assert.Zero(t, e.Progress)
			assert.Nil(t, e.CompletedAt)
		})
	}
}

func TestService_progress(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	c := env.CreateCourse(t, admin, "Go 101", false)
	e := env.Enroll(t, jane, c)

	tests := []struct {
		name          string
		progress      int
		wantProgress  int
		wantCompleted bool
	}{
		{name: "partial", progress: 40, wantProgress: 40},
		{name: "clamped high", progress: 250, wantProgress: 100, wantCompleted: true},
		{name: "reopened", progress: 90, wantProgress: 90},
		{name: "clamped low", progress: -5, wantProgress: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			e, err = env.Enrollments.SetProgress(ctx, e, tt.progress)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProgress, e.Progress)
			assert.Equal(t, tt.wantCompleted, e.CompletedAt != nil)
		})
	}

	e, err := env.Enrollments.RaiseProgress(ctx, acme.ID, jane.ID, c.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress)

	e, err = env.Enrollments.RaiseProgress(ctx, acme.ID, jane.ID, c.ID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Progress, "progress never goes down")

	e, err = env.Enrollments.RaiseProgress(ctx, acme.ID, jane.ID, c.ID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 100, e.Progress)
	assert.NotNil(t, e.CompletedAt)

	_, err = env.Enrollments.RaiseProgress(ctx, acme.ID, admin.ID, c.ID, 1, 1)
	assert.Equal(t, enrollment.ErrNotFound, err)
}
