package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

type sessionBody struct {
	User       user.User        `json:"user"`
	Portal     string           `json:"portal"`
	Home       string           `json:"home"`
	Navigation []access.NavItem `json:"navigation"`
}

func Test_tenantResolution(t *testing.T) {
	ae := setup(t)
	closed := ae.CreateTenant(t, "Closed", "closed")
	inactive := false
	_, err := ae.Tenants.Update(context.Background(), closed, tenant.UpdateTenant{Name: closed.Name, IsActive: &inactive})
	require.NoError(t, err)

	tests := []struct {
		name     string
		host     string
		header   string
		wantCode int
		wantData []byte
	}{
		{name: "no tenant", host: "example.com", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "tenant not found"})},
		{name: "unknown subdomain", host: "nope.darasa.test", wantCode: http.StatusNotFound},
		{name: "inactive tenant", host: "closed.darasa.test", wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "tenant unavailable"})},
		{name: "subdomain", host: "ACME.darasa.test:8080", wantCode: http.StatusOK},
		{name: "header wins", host: "example.com", header: "acme", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := newRequest(http.MethodGet, "/api/tenant", nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set("X-Tenant", tt.header)
			}
			rec := ae.serve(req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
			if tt.wantCode == http.StatusOK {
				var tnt tenant.Tenant
				decode(t, rec, &tnt)
				assert.Equal(t, ae.acme.ID, tnt.ID)
			}
		})
	}
}

func Test_sessionApi_login(t *testing.T) {
	ae := setup(t)
	jane := ae.createUser(t, "jane", user.RoleStudent)
	ae.CreateUser(t, ae.acme.ID, "Gone", "gone", "gone@acme.test", testutil.Password, user.RoleStudent, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	path := "/api/auth/login"

	runHTTPTests(t, ae, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: path, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: path, body: login("jane", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: path, body: login("john", testutil.Password),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: path, body: login("gone", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("ok", func(t *testing.T) {
		ae.Events.Reset()
		rec := ae.do(http.MethodPost, path, nil, login("JANE@acme.test", testutil.Password))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		cookie := sessionCookie(t, ae, rec)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		assert.NotEmpty(t, cookie.Value)

		var body sessionBody
		decode(t, rec, &body)
		assert.Equal(t, jane.ID, body.User.ID)
		assert.Equal(t, "student", body.Portal)
		assert.Equal(t, access.StudentHomePath, body.Home)
		assert.Equal(t, access.Navigation(user.PortalStudent), body.Navigation)
		assert.False(t, body.User.LastLogin.IsZero())

		events := ae.Events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "activity."+string(activity.ResourceUser)+"."+string(activity.TypeLogin), events[0].RoutingKey)
	})
}

func Test_sessionApi_session(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "jane", user.RoleStudent)
	admin := ae.createUser(t, "admin", user.RoleAdmin)
	janeSession := ae.login(t, "jane")

	globex := ae.CreateTenant(t, "Globex", "globex")
	ae.CreateUser(t, globex.ID, "Other", "other", "other@globex.test", testutil.Password, user.RoleAdmin, true)
	req, _ := newRequest(http.MethodPost, "/api/auth/login", nil, marchallObj(t, echoapi.LoginRequest{Username: "other", Password: testutil.Password}))
	req.Header.Set("X-Tenant", "globex")
	rec := ae.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	foreignSession := sessionCookie(t, ae, rec)

	runHTTPTests(t, ae, []httpTest{
		{name: "auth required", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "other tenant's session", path: "/api/auth/me", session: foreignSession,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "tampered session", path: "/api/auth/me", session: &http.Cookie{Name: janeSession.Name, Value: janeSession.Value + "x"},
			wantCode: http.StatusUnauthorized,
		},
	})

	t.Run("me", func(t *testing.T) {
		rec := ae.do(http.MethodGet, "/api/auth/me", ae.login(t, "admin"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body sessionBody
		decode(t, rec, &body)
		assert.Equal(t, admin.ID, body.User.ID)
		assert.Equal(t, "admin", body.Portal)
		assert.Equal(t, access.AdminHomePath, body.Home)
	})

	t.Run("refresh", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/auth/refresh", janeSession)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, sessionCookie(t, ae, rec).Value)
	})

	t.Run("deactivated user loses their session", func(t *testing.T) {
		john := ae.createUser(t, "john", user.RoleStudent)
		session := ae.login(t, "john")
		_, err := ae.Users.Deactivate(context.Background(), john)
		require.NoError(t, err)

		rec := ae.do(http.MethodGet, "/api/auth/me", session)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}, rec)
	})

	t.Run("logout", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/auth/logout", janeSession)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		cookie := sessionCookie(t, ae, rec)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
	})
}

func Test_sessionApi_register(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "jane", user.RoleStudent)

	newUser := func(uname string, role user.Role) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New User",
			Username:        uname,
			Email:           uname + "@acme.test",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	runHTTPTests(t, ae, []httpTest{
		{
			name: "username taken", method: http.MethodPost, path: "/api/auth/register", body: newUser("jane", ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/api/auth/register",
			body:     []byte(`{"name":"X","username":"xavier","password":"` + testutil.Password + `","password_confirm":"other"}`),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("ok", func(t *testing.T) {
		ae.Mail.Reset()
		rec := ae.do(http.MethodPost, "/api/auth/register", nil, newUser("newbie", user.RoleAdmin))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotEmpty(t, sessionCookie(t, ae, rec).Value)

		var body sessionBody
		decode(t, rec, &body)
		assert.Equal(t, user.RoleStudent, body.User.Role, "self registration always yields a student")
		assert.Equal(t, ae.acme.ID, body.User.TenantID)
		assert.Len(t, ae.Mail.SentMessages(), 1)
	})
}

func Test_sessionApi_passwordReset(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "jane", user.RoleStudent)

	tests := []struct {
		name     string
		email    string
		wantMail int
	}{
		{name: "unknown email", email: "nobody@acme.test"},
		{name: "known email", email: "jane@acme.test", wantMail: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae.Mail.Reset()
			rec := ae.do(http.MethodPost, "/api/auth/password-reset", nil, marchallObj(t, echoapi.PasswordResetRequest{Email: tt.email}))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, ae.Mail.SentMessages(), tt.wantMail)
		})
	}

	t.Run("bad token", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/auth/password-reset-confirm", nil, marchallObj(t, user.ResetUserPassword{
			Token: "nope", UID: "1", Password: testutil.Password, PasswordConfirm: testutil.Password,
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_sessionApi_decide(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "jane", user.RoleStudent)
	ae.createUser(t, "admin", user.RoleAdmin)
	student := ae.login(t, "jane")
	admin := ae.login(t, "admin")

	decision := func(d access.Decision) []byte { return marchallObj(t, d) }

	runHTTPTests(t, ae, []httpTest{
		{
			name: "path required", path: "/api/access", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"path": "path is required"}),
		},
		{
			name: "anonymous on admin route", path: "/api/access?path=/admin/courses", wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.Redirect, Location: "/auth?next=%2Fadmin%2Fcourses"}),
		},
		{
			name: "anonymous on auth", path: "/api/access?path=/auth", wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.Render}),
		},
		{
			name: "student on admin route", path: "/api/access?path=/admin", session: student, wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.Redirect, Location: access.StudentHomePath}),
		},
		{
			name: "admin on admin route", path: "/api/access?path=/admin/courses", session: admin, wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.Render}),
		},
		{
			name: "logged in on auth", path: "/api/access?path=/auth", session: admin, wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.Redirect, Location: access.AdminHomePath}),
		},
		{
			name: "unknown route", path: "/api/access?path=/nowhere", session: student, wantCode: http.StatusOK,
			wantData: decision(access.Decision{Outcome: access.NotFound}),
		},
		{
			name: "invalid session is anonymous", path: "/api/access?path=/student",
			session:  &http.Cookie{Name: student.Name, Value: "garbage"},
			wantCode: http.StatusOK, wantData: decision(access.Decision{Outcome: access.Redirect, Location: "/auth?next=%2Fstudent"}),
		},
	})
}
