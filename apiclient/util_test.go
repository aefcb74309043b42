package apiclient

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

// testServer runs the API over an in-memory database and counts the requests it serves.
type testServer struct {
	*testutil.Env
	srv  *httptest.Server
	acme tenant.Tenant

	mu   sync.Mutex
	hits map[string]int // "METHOD /path?query" -> count
}

func newTestServer(t *testing.T) *testServer {
	env := testutil.NewEnv()
	app := echoapi.NewServer(&echoapi.Options{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		Registerer:     prometheus.NewRegistry(),
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
	})

	ts := &testServer{Env: env, hits: make(map[string]int)}
	ts.acme = env.CreateTenant(t, "Acme", "acme")
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.hits[r.Method+" "+r.URL.RequestURI()]++
		ts.mu.Unlock()
		app.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) hitCount(method, uri string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hits[method+" "+uri]
}

func (ts *testServer) createUser(t *testing.T, uname string, role user.Role) user.User {
	return ts.CreateUser(t, ts.acme.ID, uname, uname, uname+"@acme.test", testutil.Password, role, true)
}

func (ts *testServer) newClient(t *testing.T) *Client {
	c, err := New(ts.srv.URL, WithTenant(ts.acme.Subdomain))
	require.NoError(t, err)
	return c
}

// loggedIn returns a session of uname, whose password is testutil.Password.
func (ts *testServer) loggedIn(t *testing.T, uname string) *Session {
	sess := NewSession(ts.newClient(t))
	_, err := sess.Login(ctxBg, uname, testutil.Password)
	require.NoError(t, err)
	return sess
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
