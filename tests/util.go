// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/quiz"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/validation"
	emailsvc "github.com/trezcool/darasa/services/email"
	eventsvc "github.com/trezcool/darasa/services/events"
	logsvc "github.com/trezcool/darasa/services/logger"
	storagesvc "github.com/trezcool/darasa/services/storage"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

// Password satisfies the password policy.
const Password = "Tr1cky#Horse9"

// Env holds every service, backed by an in-memory database and in-memory side effects.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	Mail       *emailsvc.ConsoleServiceMock
	Events     *eventsvc.Recorder
	Storage    *storagesvc.MemoryStorage

	UserRepo user.Repository

	Tenants     tenant.Service
	Users       user.Service
	Courses     course.Service
	Enrollments enrollment.Service
	Exams       exam.Service
	Activities  activity.Service
	Batches     batch.Service
	Dashboards  dashboard.Service
	Progress    progress.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(logger, true /* strict */)
	validate, translator := validation.New()

	db := inmemdb.Open()
	env := &Env{
		Conf:       conf,
		DB:         db,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		Events:     eventsvc.NewRecorder(0),
		Storage:    storagesvc.NewMemoryStorage("http://files.test"),
		UserRepo:   inmemdb.NewUserRepository(db),
	}

	env.Tenants = tenant.NewService(inmemdb.NewTenantRepository(db))
	env.Users = user.NewServiceMock(env.UserRepo, env.Mail, logger, conf)
	env.Courses = course.NewService(inmemdb.NewCourseRepository(db), env.Storage, logger, conf.Storage.PresignExpiry)
	env.Enrollments = enrollment.NewService(inmemdb.NewEnrollmentRepository(db), env.Courses, env.Users)
	env.Exams = exam.NewServiceMock(inmemdb.NewExamRepository(db), env.Courses, env.Users, env.Mail, logger)
	env.Activities = activity.NewService(inmemdb.NewActivityRepository(db), env.Events, logger)
	env.Batches = batch.NewService(inmemdb.NewBatchRepository(db), env.Courses, env.Users)
	env.Dashboards = dashboard.NewService(inmemdb.NewDashboardRepository(db), env.Activities)
	env.Progress = progress.NewService(env.Courses, env.Enrollments, env.Activities, logger)
	return env
}

// Reset empties the database and forgets the sent emails & published events.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mail.Reset()
	env.Events.Reset()
}

func (env *Env) CreateTenant(t *testing.T, name, subdomain string) tenant.Tenant {
	t.Helper()
	tnt, err := env.Tenants.Create(context.Background(), tenant.NewTenant{Name: name, Subdomain: subdomain})
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	return tnt
}

// CreateUser stores a user directly, bypassing the password policy.
func (env *Env) CreateUser(
	t *testing.T,
	tenantID int64,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		TenantID:  tenantID,
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := env.UserRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateCourse(t *testing.T, admin user.User, title string, enrollmentRequired bool) course.Course {
	t.Helper()
	c, err := env.Courses.CreateCourse(context.Background(), admin.TenantID, admin.ID, course.NewCourse{
		Title:              title,
		Difficulty:         course.DifficultyBeginner,
		EnrollmentRequired: enrollmentRequired,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func (env *Env) CreateModule(t *testing.T, c course.Course, title string) course.Module {
	t.Helper()
	m, err := env.Courses.CreateModule(context.Background(), c.TenantID, course.NewModule{CourseID: c.ID, Title: title})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return m
}

// CreateLesson adds a lesson to m. A quiz lesson gets p as its quiz.
func (env *Env) CreateLesson(t *testing.T, m course.Module, title string, ct course.ContentType, p *quiz.Payload) course.Lesson {
	t.Helper()
	nl := course.NewLesson{ModuleID: m.ID, Title: title, ContentType: ct, Body: "body", Payload: p}
	l, err := env.Courses.CreateLesson(context.Background(), m.TenantID, nl)
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return l
}

// Enroll enrolls usr in c on behalf of an administrator, so courses requiring enrollment are accepted.
func (env *Env) Enroll(t *testing.T, usr user.User, c course.Course) enrollment.Enrollment {
	t.Helper()
	admin := user.User{TenantID: usr.TenantID, Role: user.RoleAdmin}
	e, err := env.Enrollments.Enroll(context.Background(), admin, enrollment.NewEnrollment{UserID: usr.ID, CourseID: c.ID})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return e
}

// SampleQuiz has n questions whose correct option is "a".
func SampleQuiz(n int) *quiz.Payload {
	p := quiz.Payload{Questions: make([]quiz.Question, 0, n)}
	for i := 1; i <= n; i++ {
		p.Questions = append(p.Questions, quiz.Question{
			ID:     "q" + strconv.Itoa(i),
			Prompt: "Question?",
			Options: []quiz.Option{
				{ID: "a", Label: "A", IsCorrect: true},
				{ID: "b", Label: "B"},
			},
		})
	}
	return &p
}

// FieldNames returns the invalid fields of a validation error, nil for any other error.
func FieldNames(err error) []string {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}
