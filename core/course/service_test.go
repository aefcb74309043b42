package course_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

func TestService_contentCounts(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)

	c := env.CreateCourse(t, admin, "Go 101", false)
	m1 := env.CreateModule(t, c, "Basics")
	m2 := env.CreateModule(t, c, "Concurrency")
	assert.Equal(t, 1, m1.Position)
	assert.Equal(t, 2, m2.Position)

	l1 := env.CreateLesson(t, m1, "Hello", course.ContentText, nil)
	l2 := env.CreateLesson(t, m1, "Check", course.ContentQuiz, testutil.SampleQuiz(2))
	env.CreateLesson(t, m2, "Goroutines", course.ContentText, nil)
	assert.Equal(t, 1, l1.Position)
	assert.Equal(t, 2, l2.Position)
	assert.Equal(t, c.ID, l2.CourseID)

	c, err := env.Courses.GetCourse(ctx, acme.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ModuleCount)
	assert.Equal(t, 3, c.LessonCount)

	require.NoError(t, env.Courses.DeleteModule(ctx, m1))
	c, err = env.Courses.GetCourse(ctx, acme.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ModuleCount)
	assert.Equal(t, 1, c.LessonCount)

	_, err = env.Courses.GetLesson(ctx, acme.ID, l1.ID)
	assert.Equal(t, course.ErrLessonNotFound, err)
}

func TestService_lessonOrdering(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)

	c := env.CreateCourse(t, admin, "Go 101", false)
	m1 := env.CreateModule(t, c, "First")
	m2 := env.CreateModule(t, c, "Second")
	b := env.CreateLesson(t, m2, "B", course.ContentText, nil)
	a := env.CreateLesson(t, m1, "A", course.ContentText, nil)

	one := 1
	_, err := env.Courses.UpdateModule(ctx, m2, course.UpdateModule{Title: m2.Title, Position: &one})
	require.NoError(t, err)
	two := 2
	_, err = env.Courses.UpdateModule(ctx, m1, course.UpdateModule{Title: m1.Title, Position: &two})
	require.NoError(t, err)

	lessons, err := env.Courses.QueryLessons(ctx, acme.ID, &course.LessonFilter{CourseID: c.ID})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, []int64{b.ID, a.ID}, []int64{lessons[0].ID, lessons[1].ID})
}

func TestNewLesson_Validate(t *testing.T) {
	env := testutil.NewEnv()
	quizJSON, err := json.Marshal(testutil.SampleQuiz(1))
	require.NoError(t, err)

	tests := []struct {
		name      string
		nl        course.NewLesson
		wantField string
		wantQuiz  bool
	}{
		{name: "text", nl: course.NewLesson{ModuleID: 1, Title: "T", ContentType: course.ContentText, Body: "hi"}},
		{name: "text without body", nl: course.NewLesson{ModuleID: 1, Title: "T", ContentType: course.ContentText}, wantField: "body"},
		{name: "unknown type", nl: course.NewLesson{ModuleID: 1, Title: "T", ContentType: "podcast"}, wantField: "content_type"},
		{
			name:     "quiz",
			nl:       course.NewLesson{ModuleID: 1, Title: "Q", ContentType: course.ContentQuiz, Quiz: quizJSON},
			wantQuiz: true,
		},
		{
			name:      "malformed quiz",
			nl:        course.NewLesson{ModuleID: 1, Title: "Q", ContentType: course.ContentQuiz, Quiz: json.RawMessage(`[1,2]`)},
			wantField: "quiz",
		},
		{
			name: "quiz ignored on video",
			nl:   course.NewLesson{ModuleID: 1, Title: "V", ContentType: course.ContentVideo, Quiz: quizJSON},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nl.Validate(env.Validate)
			if tt.wantField != "" {
				require.Error(t, err)
				if names := testutil.FieldNames(err); names != nil {
					assert.Contains(t, names, tt.wantField)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuiz, tt.nl.Payload != nil)
		})
	}
}

func TestService_lessonAssets(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	c := env.CreateCourse(t, admin, "Go 101", false)
	m := env.CreateModule(t, c, "Basics")
	video := env.CreateLesson(t, m, "Intro", course.ContentVideo, nil)
	text := env.CreateLesson(t, m, "Notes", course.ContentText, nil)

	_, err := env.Courses.LessonAssetURL(ctx, video)
	assert.Equal(t, course.ErrNoAsset, err)

	tests := []struct {
		name        string
		lesson      course.Lesson
		contentType string
		wantErr     bool
	}{
		{name: "text lessons take no file", lesson: text, contentType: "video/mp4", wantErr: true},
		{name: "wrong mime", lesson: video, contentType: "application/pdf", wantErr: true},
		{name: "ok", lesson: video, contentType: "video/mp4; codecs=avc1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "0123456789"
			l, err := env.Courses.UploadLessonAsset(ctx, tt.lesson, "Intro.MP4", strings.NewReader(data), int64(len(data)), tt.contentType)
			if tt.wantErr {
				assert.Equal(t, []string{"file"}, testutil.FieldNames(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(l.AssetKey, "tenants/"))
			assert.True(t, strings.HasSuffix(l.AssetKey, ".mp4"))
			obj, ok := env.Storage.Get(l.AssetKey)
			require.True(t, ok)
			assert.Equal(t, data, string(obj.Data))
			video = l
		})
	}

	url, err := env.Courses.LessonAssetURL(ctx, video)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://files.test/"+video.AssetKey))

	// replacing the file drops the previous one
	_, err = env.Courses.UploadLessonAsset(ctx, video, "v2.mp4", strings.NewReader("x"), 1, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, 1, env.Storage.Len())

	require.NoError(t, env.Courses.DeleteCourse(ctx, c))
	assert.Zero(t, env.Storage.Len())
	_, err = env.Courses.GetModule(ctx, acme.ID, m.ID)
	assert.Equal(t, course.ErrModuleNotFound, err)
}

func TestService_storageDisabled(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	svc := course.NewService(inmemdb.NewCourseRepository(env.DB), nil, env.Logger, 0)

	l := course.Lesson{TenantID: 1, ID: 1, ContentType: course.ContentVideo, AssetKey: "tenants/1/lessons/1/x.mp4"}
	_, err := svc.UploadLessonAsset(ctx, l, "x.mp4", strings.NewReader("x"), 1, "video/mp4")
	assert.Equal(t, course.ErrStorageDisabled, err)
	_, err = svc.LessonAssetURL(ctx, l)
	assert.Equal(t, course.ErrStorageDisabled, err)

	assert.Panics(t, func() { course.NewService(nil, nil, env.Logger, 0) })
}

func TestService_tenantIsolation(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	globex := env.CreateTenant(t, "Globex", "globex")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	c := env.CreateCourse(t, admin, "Go 101", false)

	_, err := env.Courses.GetCourse(ctx, globex.ID, c.ID)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = env.Courses.CreateModule(ctx, globex.ID, course.NewModule{CourseID: c.ID, Title: "Sneaky"})
	assert.Equal(t, []string{"course_id"}, testutil.FieldNames(err))

	courses, err := env.Courses.QueryCourses(ctx, globex.ID, nil, core.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

// countlessRepo fails to count course content.
type countlessRepo struct{ course.Repository }

var errCountDown = errors.New("lessons: connection reset")

func (countlessRepo) CountContent(context.Context, int64, int64) (int, int, error) {
	return 0, 0, errCountDown
}

func TestService_wrapsRepositoryErrors(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	admin := env.CreateUser(t, acme.ID, "Admin", "admin", "admin@acme.test", "", user.RoleAdmin, true)
	c := env.CreateCourse(t, admin, "Go 101", false)

	svc := course.NewService(countlessRepo{inmemdb.NewCourseRepository(env.DB)}, nil, env.Logger, 0)
	_, err := svc.CreateModule(ctx, acme.ID, course.NewModule{CourseID: c.ID, Title: "Basics"})
	require.Error(t, err)
	assert.Equal(t, errCountDown, errors.Cause(err))
	assert.Equal(t, "counting course content: lessons: connection reset", err.Error())
}
