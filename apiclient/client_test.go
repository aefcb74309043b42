package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/quiz"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

var ctxBg = context.Background()

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "relative", baseURL: "/api", wantErr: true},
		{name: "no scheme", baseURL: "acme.darasa.app", wantErr: true},
		{name: "ok", baseURL: "https://acme.darasa.app/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://acme.darasa.app", c.baseURL)
			assert.NotNil(t, c.http.Jar)
		})
	}
}

func Test_newError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantFields  map[string]string
	}{
		{name: "error message", status: http.StatusForbidden, body: `{"error":"permission denied"}`, wantMessage: "permission denied"},
		{name: "echo message", status: http.StatusNotFound, body: `{"message":"Not Found"}`, wantMessage: "Not Found"},
		{
			name: "field errors", status: http.StatusBadRequest, body: `{"title":"this field is required","progress":"must be 100 or less"}`,
			wantMessage: "Bad Request", wantFields: map[string]string{"title": "this field is required", "progress": "must be 100 or less"},
		},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down\n", wantMessage: "upstream down"},
		{name: "empty body", status: http.StatusInternalServerError, wantMessage: "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.wantMessage, err.Message)
			if tt.wantFields == nil {
				assert.Empty(t, err.Fields)
			} else {
				assert.Equal(t, tt.wantFields, err.Fields)
			}
		})
	}

	err := newError(http.StatusBadRequest, []byte(`{"title":"too long","body":"required"}`))
	assert.Equal(t, "400 body: required; title: too long", err.Error())
	assert.True(t, err.IsValidation())
	assert.False(t, err.IsUnauthorized())
}

func Test_cache(t *testing.T) {
	c := newCache()
	for _, key := range []string{"/api/courses", "/api/courses?limit=1", "/api/courses/1", "/api/courses-archive", "/api/lessons"} {
		c.set(key, []byte("{}"))
	}

	c.invalidateLists("/api/courses")
	_, listed := c.get("/api/courses?limit=1")
	assert.False(t, listed)
	_, item := c.get("/api/courses/1")
	assert.True(t, item, "items survive list invalidation")
	_, other := c.get("/api/courses-archive")
	assert.True(t, other, "only whole path segments match")
	assert.Equal(t, 3, c.len())

	c.invalidatePrefix("/api/courses")
	assert.Equal(t, 2, c.len())

	gen := c.generation()
	c.delete("/api/lessons")
	assert.False(t, c.storeIfCurrent("/api/lessons", []byte("[]"), gen), "reads started before an invalidation are dropped")
	assert.True(t, c.storeIfCurrent("/api/lessons", []byte("[]"), c.generation()))

	c.reset()
	assert.Zero(t, c.len())
}

func TestClient_get_deduplicates(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"title":"Go 101"}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	courses := c.Courses()

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]course.Course, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = courses.List(ctxBg, url.Values{"ordering": {"title"}})
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let the other callers join the in-flight request
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	for _, res := range results {
		require.Len(t, res, 1)
		assert.Equal(t, "Go 101", res[0].Title)
	}
}

func TestClient_transportErrorsAreNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Courses().Get(ctxBg, 1)
	apiErr, ok := AsError(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Zero(t, c.cache.len(), "errors are not cached")
}

func TestResource_cache(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "admin", user.RoleAdmin)
	goCourse := ts.CreateCourse(t, admin, "Go 101", false)
	sess := ts.loggedIn(t, "admin")
	courses := sess.Client().Courses()

	listURI := "/api/courses?ordering=title"
	itemURI := PathCourses + "/" + itoa(goCourse.ID)
	query := url.Values{"ordering": {"title"}}

	// reads are cached
	for i := 0; i < 2; i++ {
		list, err := courses.List(ctxBg, query)
		require.NoError(t, err)
		require.Len(t, list, 1)
		got, err := courses.Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go 101", got.Title)
	}
	assert.Equal(t, 1, ts.hitCount(http.MethodGet, listURI))
	assert.Equal(t, 1, ts.hitCount(http.MethodGet, itemURI))

	t.Run("failed mutation leaves the cache untouched", func(t *testing.T) {
		_, err := courses.Update(ctxBg, goCourse.ID, map[string]interface{}{"title": strings.Repeat("x", 201)})
		apiErr, ok := AsError(err)
		require.True(t, ok, "%v", err)
		assert.True(t, apiErr.IsValidation())
		assert.Contains(t, apiErr.Fields, "title")

		got, err := courses.Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go 101", got.Title)
		_, err = courses.List(ctxBg, query)
		require.NoError(t, err)
		assert.Equal(t, 1, ts.hitCount(http.MethodGet, listURI))
		assert.Equal(t, 1, ts.hitCount(http.MethodGet, itemURI))
	})

	t.Run("update writes the record and drops the lists", func(t *testing.T) {
		updated, err := courses.Update(ctxBg, goCourse.ID, course.UpdateCourse{Title: "Go 102"})
		require.NoError(t, err)
		assert.Equal(t, "Go 102", updated.Title)

		got, err := courses.Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, "Go 102", got.Title)
		assert.Equal(t, 1, ts.hitCount(http.MethodGet, itemURI), "served from the cache")

		list, err := courses.List(ctxBg, query)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Go 102", list[0].Title)
		assert.Equal(t, 2, ts.hitCount(http.MethodGet, listURI))
	})

	var rust course.Course
	t.Run("create", func(t *testing.T) {
		var err error
		rust, err = courses.Create(ctxBg, course.NewCourse{Title: "Rust 101"})
		require.NoError(t, err)

		list, err := courses.List(ctxBg, query)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		assert.Equal(t, 3, ts.hitCount(http.MethodGet, listURI))

		_, err = courses.Get(ctxBg, rust.ID)
		require.NoError(t, err)
		assert.Zero(t, ts.hitCount(http.MethodGet, PathCourses+"/"+itoa(rust.ID)))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, courses.Delete(ctxBg, rust.ID))
		_, err := courses.Get(ctxBg, rust.ID)
		assert.True(t, IsNotFound(err), "%v", err)

		list, err := courses.List(ctxBg, query)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestClient_quiz(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "admin", user.RoleAdmin)
	jane := ts.createUser(t, "jane", user.RoleStudent)
	goCourse := ts.CreateCourse(t, admin, "Go 101", false)
	mod := ts.CreateModule(t, goCourse, "Basics")
	quizLesson := ts.CreateLesson(t, mod, "Check", course.ContentQuiz, testutil.SampleQuiz(2))
	textLesson := ts.CreateLesson(t, mod, "Read", course.ContentText, nil)
	ts.Enroll(t, jane, goCourse)

	c := ts.loggedIn(t, "jane").Client()

	_, err := c.StartQuiz(ctxBg, textLesson.ID)
	assert.True(t, IsNotFound(err), "%v", err)

	run, err := c.StartQuiz(ctxBg, quizLesson.ID)
	require.NoError(t, err)
	require.Equal(t, quiz.StateAnswering, run.State())
	assert.Equal(t, 2, run.Total())
	for _, q := range run.payload.Questions {
		for _, opt := range q.Options {
			assert.False(t, opt.IsCorrect, "answers are hidden from students")
		}
	}

	_, err = c.Finish(ctxBg, quizLesson.ID, run)
	assert.EqualError(t, err, "quiz run is not finished")

	enrollments, err := c.Enrollments().List(ctxBg, nil)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Zero(t, enrollments[0].Progress)

	require.NoError(t, run.Select(0, "a"))
	run.Advance()
	require.NoError(t, run.Select(1, "b"))
	run.Advance()
	require.Equal(t, quiz.StateResults, run.State())

	res, err := c.Finish(ctxBg, quizLesson.ID, run)
	require.NoError(t, err)
	assert.Equal(t, quiz.Result{Score: 1, Total: 2, Percentage: 50}, res)

	enrollments, err = c.Enrollments().List(ctxBg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ts.hitCount(http.MethodGet, PathEnrollments), "submitting drops the cached enrollments")
	assert.Positive(t, enrollments[0].Progress)
}

func TestResource_cacheDropsDerivedData(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createUser(t, "admin", user.RoleAdmin)
	goCourse := ts.CreateCourse(t, admin, "Go 101", false)
	mod := ts.CreateModule(t, goCourse, "Basics")
	quizLesson := ts.CreateLesson(t, mod, "Check", course.ContentQuiz, testutil.SampleQuiz(2))
	c := ts.loggedIn(t, "admin").Client()

	t.Run("quiz of an updated lesson", func(t *testing.T) {
		p, err := c.Quiz(ctxBg, quizLesson.ID)
		require.NoError(t, err)
		require.Len(t, p.Questions, 2)
		for _, opt := range p.Questions[0].Options {
			assert.False(t, opt.IsCorrect, "the quiz endpoint never reveals answers")
		}

		_, err = c.Lessons().Update(ctxBg, quizLesson.ID, map[string]interface{}{"quiz": testutil.SampleQuiz(3)})
		require.NoError(t, err)

		p, err = c.Quiz(ctxBg, quizLesson.ID)
		require.NoError(t, err)
		assert.Len(t, p.Questions, 3)
	})

	t.Run("course counts follow lesson mutations", func(t *testing.T) {
		before, err := c.Courses().Get(ctxBg, goCourse.ID)
		require.NoError(t, err)

		l, err := c.Lessons().Create(ctxBg, course.NewLesson{ModuleID: mod.ID, Title: "Read", ContentType: course.ContentText})
		require.NoError(t, err)
		after, err := c.Courses().Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, before.LessonCount+1, after.LessonCount)

		require.NoError(t, c.Lessons().Delete(ctxBg, l.ID))
		after, err = c.Courses().Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, before.LessonCount, after.LessonCount)
	})

	t.Run("course counts follow module mutations", func(t *testing.T) {
		before, err := c.Courses().Get(ctxBg, goCourse.ID)
		require.NoError(t, err)

		_, err = c.Modules().Create(ctxBg, course.NewModule{CourseID: goCourse.ID, Title: "Advanced"})
		require.NoError(t, err)
		after, err := c.Courses().Get(ctxBg, goCourse.ID)
		require.NoError(t, err)
		assert.Equal(t, before.ModuleCount+1, after.ModuleCount)
	})

	t.Run("quiz of a deleted lesson", func(t *testing.T) {
		require.NoError(t, c.Lessons().Delete(ctxBg, quizLesson.ID))
		_, err := c.Quiz(ctxBg, quizLesson.ID)
		assert.True(t, IsNotFound(err), "%v", err)
	})
}
