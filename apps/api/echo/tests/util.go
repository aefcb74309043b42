package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	session  *http.Cookie
	wantCode int
	wantData []byte
}

// apiEnv is a server over an in-memory database, with one tenant (`acme`) ready.
type apiEnv struct {
	*testutil.Env
	app      echoapi.Server
	registry *prometheus.Registry
	acme     tenant.Tenant
}

// setup builds the server; overrides may swap services before it starts.
func setup(t *testing.T, overrides ...func(env *testutil.Env, opts *echoapi.Options)) *apiEnv {
	env := testutil.NewEnv()
	registry := prometheus.NewRegistry()
	opts := &echoapi.Options{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		Registerer:     registry,
		DisableReqLogs: true,
		TenantSvc:      env.Tenants,
		UserSvc:        env.Users,
		CourseSvc:      env.Courses,
		EnrollmentSvc:  env.Enrollments,
		ExamSvc:        env.Exams,
		ActivitySvc:    env.Activities,
		BatchSvc:       env.Batches,
		DashboardSvc:   env.Dashboards,
		ProgressSvc:    env.Progress,
	}
	for _, override := range overrides {
		override(env, opts)
	}
	app := echoapi.NewServer(opts)

	return &apiEnv{
		Env:      env,
		app:      app,
		registry: registry,
		acme:     env.CreateTenant(t, "Acme", "acme"),
	}
}

// createUser stores an active user of acme, whose password is testutil.Password.
func (ae *apiEnv) createUser(t *testing.T, uname string, role user.Role) user.User {
	return ae.CreateUser(t, ae.acme.ID, uname, uname, uname+"@acme.test", testutil.Password, role, true)
}

func newRequest(method, path string, session *http.Cookie, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Host = "acme.darasa.test"
	req.Header.Set("Content-Type", "application/json")
	if session != nil {
		req.AddCookie(session)
	}
	return req, httptest.NewRecorder()
}

func (ae *apiEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ae.app.ServeHTTP(rec, req)
	return rec
}

func (ae *apiEnv) do(method, path string, session *http.Cookie, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, session, data...)
	ae.app.ServeHTTP(rec, req)
	return rec
}

// login returns the session cookie of uname.
func (ae *apiEnv) login(t *testing.T, uname string) *http.Cookie {
	t.Helper()
	rec := ae.do(http.MethodPost, "/api/auth/login", nil, marchallObj(t, echoapi.LoginRequest{
		Username: uname,
		Password: testutil.Password,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, ae, rec)
}

func sessionCookie(t *testing.T, ae *apiEnv, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == ae.Conf.Server.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, ae *apiEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, ae.do(method, tt.path, tt.session, tt.body))
		})
	}
}
