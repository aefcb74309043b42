package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func TestSession_lifecycle(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "admin", user.RoleAdmin)
	ts.createUser(t, "jane", user.RoleStudent)
	ts.CreateCourse(t, admin, "Go 101", false)

	sess := NewSession(ts.newClient(t))

	t.Run("anonymous", func(t *testing.T) {
		state, err := sess.Restore(ctxBg)
		require.NoError(t, err)
		assert.Nil(t, state)
		assert.Nil(t, sess.Current())
		assert.Equal(t, access.Decision{Outcome: access.Redirect, Location: "/auth?next=%2Fstudent"}, sess.Decide("/student"))
		assert.Equal(t, access.Decision{Outcome: access.Render}, sess.Decide("/auth"))

		_, err = sess.Client().Courses().List(ctxBg, nil)
		assert.True(t, IsUnauthorized(err), "%v", err)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := sess.Login(ctxBg, "jane", "nope")
		apiErr, ok := AsError(err)
		require.True(t, ok, "%v", err)
		assert.True(t, apiErr.IsValidation())
		assert.Equal(t, "authentication failed", apiErr.Message)
		assert.Nil(t, sess.Current())
	})

	t.Run("login", func(t *testing.T) {
		state, err := sess.Login(ctxBg, "JANE", testutil.Password)
		require.NoError(t, err)
		assert.Equal(t, "jane", state.User.Username)
		assert.Equal(t, user.PortalStudent, state.Portal)
		assert.Equal(t, access.StudentHomePath, state.Home)
		assert.NotEmpty(t, state.Navigation)
		assert.False(t, state.ExpiresAt.IsZero())

		assert.Equal(t, access.Decision{Outcome: access.Render}, sess.Decide("/student/courses"))
		assert.Equal(t, access.Decision{Outcome: access.Redirect, Location: access.StudentHomePath}, sess.Decide("/admin"))
		assert.Equal(t, access.Decision{Outcome: access.NotFound}, sess.Decide("/nowhere"))

		courses, err := sess.Client().Courses().List(ctxBg, nil)
		require.NoError(t, err)
		assert.Len(t, courses, 1)
	})

	t.Run("restore from the cookie", func(t *testing.T) {
		other := NewSession(sess.Client())
		state, err := other.Restore(ctxBg)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "jane", state.User.Username)
	})

	t.Run("current is a copy", func(t *testing.T) {
		state := sess.Current()
		state.User.Name = "Mallory"
		assert.Equal(t, "jane", sess.Current().User.Name)
	})

	t.Run("refresh", func(t *testing.T) {
		state, err := sess.Refresh(ctxBg)
		require.NoError(t, err)
		assert.Equal(t, "jane", state.User.Username)
	})

	t.Run("update profile", func(t *testing.T) {
		bio := "  Gopher  "
		usr, err := sess.UpdateProfile(ctxBg, user.UpdateUser{Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, "Gopher", usr.Bio)
		assert.Equal(t, "Gopher", sess.Current().User.Bio)

		_, err = sess.UpdateProfile(ctxBg, user.UpdateUser{Role: user.RoleAdmin})
		apiErr, ok := AsError(err)
		require.True(t, ok, "%v", err)
		assert.True(t, apiErr.IsForbidden())
		assert.Equal(t, user.RoleStudent, sess.Current().User.Role)
	})

	t.Run("logout", func(t *testing.T) {
		require.NoError(t, sess.Logout(ctxBg))
		assert.Nil(t, sess.Current())
		assert.Zero(t, sess.Client().cache.len(), "the cache is torn down")

		_, err := sess.Client().Courses().List(ctxBg, nil)
		assert.True(t, IsUnauthorized(err), "%v", err)

		_, err = sess.UpdateProfile(ctxBg, user.UpdateUser{})
		assert.True(t, IsUnauthorized(err), "%v", err)
	})
}

func TestSession_register(t *testing.T) {
	ts := newTestServer(t)
	sess := NewSession(ts.newClient(t))

	_, err := sess.Register(ctxBg, user.NewUser{Name: "Jane", Username: "jane", Password: testutil.Password, PasswordConfirm: "nope"})
	apiErr, ok := AsError(err)
	require.True(t, ok, "%v", err)
	assert.Contains(t, apiErr.Fields, "password_confirm")

	state, err := sess.Register(ctxBg, user.NewUser{
		Name: "Jane", Username: "jane", Email: "jane@acme.test",
		Password: testutil.Password, PasswordConfirm: testutil.Password,
	})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, state.User.Role)
	assert.Equal(t, user.PortalStudent, state.Portal)

	d, err := sess.Client().Dashboard(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, user.PortalStudent, d.Portal)
	require.NotNil(t, d.Student)
	assert.Nil(t, d.Admin)

	_, err = sess.Client().AdminDashboard(ctxBg)
	apiErr, ok = AsError(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
