package tests

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func Test_userApi_query(t *testing.T) {
	ae := setup(t)

	path := func(search, ordering string, createdFrom time.Time, isActive *bool, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", string(r))
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }
	names := func(users []user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.Username)
		}
		return out
	}

	now := time.Now().UTC().Truncate(time.Second)
	ae.CreateUser(t, ae.acme.ID, "Awe", "awe", "awe@acme.test", testutil.Password, user.RoleStudent, true, now.Add(-3*time.Hour))
	ae.CreateUser(t, ae.acme.ID, "King", "king", "king@acme.test", testutil.Password, user.RoleStudent, true, now.Add(-2*time.Hour))
	ae.CreateUser(t, ae.acme.ID, "Admin", "admin", "admin@acme.test", testutil.Password, user.RoleAdmin, true, now.Add(-time.Hour))
	ae.CreateUser(t, ae.acme.ID, "N Dog", "ndog", "ndog@acme.test", testutil.Password, user.RoleStudent, false, now)
	globex := ae.CreateTenant(t, "Globex", "globex")
	ae.CreateUser(t, globex.ID, "Other", "other", "other@globex.test", testutil.Password, user.RoleStudent, true)

	adminSession := ae.login(t, "admin")

	runHTTPTests(t, ae, []httpTest{
		{name: "auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/api/users", session: ae.login(t, "king"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "bad limit", path: "/api/users?limit=lots", session: adminSession, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"limit": "must be a positive integer"}),
		},
		{
			name: "bad is_active", path: "/api/users?is_active=maybe", session: adminSession, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "must be a boolean"}),
		},
	})

	tests := []struct {
		name  string
		path  string
		wantU []string
	}{
		{name: "all, newest first", path: "/api/users", wantU: []string{"ndog", "admin", "king", "awe"}},
		{name: "ordering", path: path("", "username", time.Time{}, nil), wantU: []string{"admin", "awe", "king", "ndog"}},
		{name: "ordering camelCase", path: path("", "-createdAt", time.Time{}, nil), wantU: []string{"ndog", "admin", "king", "awe"}},
		{name: "search", path: path("KIN", "", time.Time{}, nil), wantU: []string{"king"}},
		{name: "role", path: path("", "username", time.Time{}, nil, user.RoleAdmin), wantU: []string{"admin"}},
		{name: "inactive", path: path("", "", time.Time{}, bPtr(false)), wantU: []string{"ndog"}},
		{name: "created_from", path: path("", "username", now.Add(-90*time.Minute), nil), wantU: []string{"admin", "ndog"}},
		{name: "page", path: "/api/users?ordering=username&limit=2&offset=1", wantU: []string{"awe", "king"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ae.do(http.MethodGet, tt.path, adminSession)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var users []user.User
			decode(t, rec, &users)
			assert.Equal(t, tt.wantU, names(users))
		})
	}
}

func Test_userApi_create(t *testing.T) {
	ae := setup(t)
	ae.createUser(t, "admin", user.RoleAdmin)
	ae.createUser(t, "root", user.RoleSuperAdmin)
	adminSession := ae.login(t, "admin")

	newUser := func(uname string, role user.Role) []byte {
		return marchallObj(t, user.NewUser{
			Name: "New", Username: uname, Email: uname + "@acme.test",
			Password: testutil.Password, PasswordConfirm: testutil.Password, Role: role,
		})
	}

	runHTTPTests(t, ae, []httpTest{
		{
			name: "role above own", method: http.MethodPost, path: "/api/users", session: adminSession,
			body: newUser("boss", user.RoleSuperAdmin), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "not enough rights to set this role"}),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/api/users", session: adminSession,
			body:     []byte(`{"name":"Weak","username":"weak","password":"123","password_confirm":"123"}`),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("ok", func(t *testing.T) {
		rec := ae.do(http.MethodPost, "/api/users", ae.login(t, "root"), newUser("boss", user.RoleSuperAdmin))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, user.RoleSuperAdmin, usr.Role)
		assert.Equal(t, ae.acme.ID, usr.TenantID)
	})

	t.Run("roles", func(t *testing.T) {
		rec := ae.do(http.MethodGet, "/api/users/roles", adminSession)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
	})
}

func Test_userApi_detail(t *testing.T) {
	ae := setup(t)
	jane := ae.createUser(t, "jane", user.RoleStudent)
	john := ae.createUser(t, "john", user.RoleStudent)
	admin := ae.createUser(t, "admin", user.RoleAdmin)
	root := ae.createUser(t, "root", user.RoleSuperAdmin)
	janeSession := ae.login(t, "jane")
	adminSession := ae.login(t, "admin")

	userPath := func(u user.User) string { return "/api/users/" + strconv.FormatInt(u.ID, 10) }

	runHTTPTests(t, ae, []httpTest{
		{name: "students only see themselves", path: userPath(john), session: janeSession, wantCode: http.StatusNotFound},
		{name: "bad id", path: "/api/users/abc", session: adminSession, wantCode: http.StatusNotFound},
		{name: "unknown id", path: "/api/users/999", session: adminSession, wantCode: http.StatusNotFound},
		{
			name: "student cannot change own role", method: http.MethodPut, path: userPath(jane), session: janeSession,
			body: []byte(`{"role":"admin"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot promote above own role", method: http.MethodPut, path: userPath(jane), session: adminSession,
			body: []byte(`{"role":"superadmin"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "not enough rights to set this role"}),
		},
		{name: "no self deactivation", method: http.MethodDelete, path: userPath(admin), session: adminSession, wantCode: http.StatusForbidden},
		{name: "no deactivating a higher role", method: http.MethodDelete, path: userPath(root), session: adminSession, wantCode: http.StatusForbidden},
		{name: "students cannot deactivate", method: http.MethodDelete, path: userPath(john), session: janeSession, wantCode: http.StatusNotFound},
	})

	t.Run("own profile", func(t *testing.T) {
		rec := ae.do(http.MethodPut, userPath(jane), janeSession, []byte(`{"name":"Jane Doe","bio":"  Gopher  "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Jane Doe", usr.Name)
		assert.Equal(t, "Gopher", usr.Bio)
		assert.Equal(t, user.RoleStudent, usr.Role)
	})

	t.Run("admin deactivates", func(t *testing.T) {
		rec := ae.do(http.MethodDelete, userPath(john), adminSession)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = ae.do(http.MethodGet, userPath(john), adminSession)
		var usr user.User
		decode(t, rec, &usr)
		assert.False(t, usr.IsActive, "users are deactivated, never deleted")
	})
}
