package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/user"
)

func Test_enrollmentApi(t *testing.T) {
	ae := setup(t)
	admin := ae.createUser(t, "admin", user.RoleAdmin)
	jane := ae.createUser(t, "jane", user.RoleStudent)
	john := ae.createUser(t, "john", user.RoleStudent)
	adminSession := ae.login(t, "admin")
	janeSession := ae.login(t, "jane")
	johnSession := ae.login(t, "john")

	open := ae.CreateCourse(t, admin, "Open", false)
	closed := ae.CreateCourse(t, admin, "Closed", true)

	runHTTPTests(t, ae, []httpTest{
		{
			name: "enrolling someone else", method: http.MethodPost, path: "/api/enrollments", session: janeSession,
			body: marchallObj(t, enrollment.NewEnrollment{UserID: john.ID, CourseID: open.ID}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"user_id": "students can only enroll themselves"}),
		},
		{
			name: "enrollment required", method: http.MethodPost, path: "/api/enrollments", session: janeSession,
			body: marchallObj(t, enrollment.NewEnrollment{CourseID: closed.ID}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "this course requires enrollment by an administrator"}),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/api/enrollments", session: janeSession,
			body: []byte(`{"course_id":999}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "course not found"}),
		},
	})

	var janeOpen enrollment.Enrollment
	t.Run("self enrollment", func(t *testing.T) {
		ae.Events.Reset()
		rec := ae.do(http.MethodPost, "/api/enrollments", janeSession, marchallObj(t, enrollment.NewEnrollment{CourseID: open.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &janeOpen)
		assert.Equal(t, jane.ID, janeOpen.UserID)
		assert.Zero(t, janeOpen.Progress)

		events := ae.Events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "activity.course.enrolled", events[0].RoutingKey)
	})

	t.Run("admin enrolls into a closed course", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/enrollments", adminSession, marchallObj(t, enrollment.NewEnrollment{UserID: john.ID, CourseID: closed.ID}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	enrollmentPath := fmt.Sprintf("/api/enrollments/%d", janeOpen.ID)
	runHTTPTests(t, ae, []httpTest{
		{
			name: "already enrolled", method: http.MethodPost, path: "/api/enrollments", session: janeSession,
			body: marchallObj(t, enrollment.NewEnrollment{CourseID: open.ID}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"course_id": "already enrolled in this course"}),
		},
		{name: "others' enrollments are hidden", path: enrollmentPath, session: johnSession, wantCode: http.StatusNotFound},
		{
			name: "students cannot set progress", method: http.MethodPut, path: enrollmentPath, session: janeSession,
			body: []byte(`{"progress":100}`), wantCode: http.StatusForbidden,
		},
		{
			name: "progress out of range", method: http.MethodPut, path: enrollmentPath, session: adminSession,
			body: []byte(`{"progress":101}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("students list their enrollments", func(t *testing.T) {
		rec := ae.do(http.MethodGet, fmt.Sprintf("/api/enrollments?user_id=%d", john.ID), janeSession)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var enrollments []enrollment.Enrollment
		decode(t, rec, &enrollments)
		require.Len(t, enrollments, 1)
		assert.Equal(t, janeOpen.ID, enrollments[0].ID)
	})

	t.Run("admin sets progress", func(t *testing.T) {
		rec := ae.do(http.MethodPut, enrollmentPath, adminSession, []byte(`{"progress":100}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var e enrollment.Enrollment
		decode(t, rec, &e)
		assert.Equal(t, 100, e.Progress)
		assert.True(t, e.IsCompleted())
	})

	t.Run("unenroll", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, ae.do(http.MethodDelete, enrollmentPath, janeSession).Code)
		assert.Equal(t, http.StatusNotFound, ae.do(http.MethodGet, enrollmentPath, adminSession).Code)
	})
}

func Test_activityApi(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "admin", user.RoleAdmin)
	jane := ae.createUser(t, "jane", user.RoleStudent)
	ae.createUser(t, "john", user.RoleStudent)
	janeSession := ae.login(t, "jane")
	johnSession := ae.login(t, "john")

	runHTTPTests(t, ae, []httpTest{
		{
			name: "unknown activity", method: http.MethodPost, path: "/api/activity-logs", session: janeSession,
			body: []byte(`{"resource_type":"course","resource_id":1,"activity_type":"danced"}`), wantCode: http.StatusBadRequest,
		},
		{name: "bad since", path: "/api/activity-logs?since=yesterday", session: janeSession, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"since": "must be a date"})},
	})

	t.Run("record a view", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/activity-logs", janeSession, []byte(`{"resource_type":"Course","resource_id":7,"activity_type":"viewed"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var l activity.Log
		decode(t, rec, &l)
		assert.Equal(t, jane.ID, l.UserID)
		assert.Equal(t, activity.ResourceCourse, l.ResourceType)
	})

	t.Run("students only see their own", func(t *testing.T) {
		rec := ae.do(http.MethodGet, "/api/activity-logs?activity_type=viewed", johnSession)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var logs []activity.Log
		decode(t, rec, &logs)
		assert.Empty(t, logs)

		rec = ae.do(http.MethodGet, "/api/activity-logs?activity_type=viewed", ae.login(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &logs)
		assert.Len(t, logs, 1)
	})
}

func Test_dashboardApi(t *testing.T) {
	ae := setup(t)
	admin := ae.createUser(t, "admin", user.RoleAdmin)
	jane := ae.createUser(t, "jane", user.RoleStudent)
	adminSession := ae.login(t, "admin")
	janeSession := ae.login(t, "jane")
	ae.Enroll(t, jane, ae.CreateCourse(t, admin, "Go 101", false))

	runHTTPTests(t, ae, []httpTest{
		{name: "students are kept out of the admin dashboard", path: "/api/admin/dashboard", session: janeSession, wantCode: http.StatusForbidden},
		{name: "admins have no student dashboard", path: "/api/student/dashboard", session: adminSession, wantCode: http.StatusForbidden},
		{name: "auth required", path: "/api/dashboard", wantCode: http.StatusUnauthorized},
	})

	type portalDashboard struct {
		Portal  string                      `json:"portal"`
		Admin   *dashboard.AdminDashboard   `json:"admin"`
		Student *dashboard.StudentDashboard `json:"student"`
	}

	t.Run("student", func(t *testing.T) {
		rec := ae.do(http.MethodGet, "/api/dashboard", janeSession)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d portalDashboard
		decode(t, rec, &d)
		assert.Equal(t, user.PortalStudent.String(), d.Portal)
		assert.Nil(t, d.Admin)
		require.NotNil(t, d.Student)
		assert.Len(t, d.Student.Courses, 1)
	})

	t.Run("admin", func(t *testing.T) {
		rec := ae.do(http.MethodGet, "/api/admin/dashboard", adminSession)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d dashboard.AdminDashboard
		decode(t, rec, &d)
		assert.Equal(t, 1, d.Stats.Students)
		assert.Equal(t, 1, d.Stats.Courses)
		assert.Equal(t, 1, d.Stats.Enrollments)
	})
}

func Test_metrics(t *testing.T) {
	ae := setup(t)
	ae.do(http.MethodGet, "/api/tenant", nil)
	ae.do(http.MethodGet, "/api/nowhere", nil)

	families, err := ae.registry.Gather()
	require.NoError(t, err)

	routes := make(map[string]bool)
	for _, mf := range families {
		if mf.GetName() != "darasa_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "route" {
					routes[lp.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, routes["/api/tenant"], "%v", routes)
	assert.Len(t, routes, 2, "%v", routes)
}
