// Package setup builds the dependencies shared by the executables from the configuration.
package setup

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/exam"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/validation"
	emailsvc "github.com/trezcool/darasa/services/email"
	eventsvc "github.com/trezcool/darasa/services/events"
	logsvc "github.com/trezcool/darasa/services/logger"
	storagesvc "github.com/trezcool/darasa/services/storage"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	boiledrepos "github.com/trezcool/darasa/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

const (
	EngineInMem    = "inmem"
	EnginePostgres = "postgres"

	recorderLimit = 1000
)

type (
	Repositories struct {
		Tenants     tenant.Repository
		Users       user.Repository
		Courses     course.Repository
		Enrollments enrollment.Repository
		Exams       exam.Repository
		Activities  activity.Repository
		Batches     batch.Repository
		Dashboards  dashboard.Repository
	}

	Services struct {
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

	// App holds everything an executable needs. Close releases the connections it opened.
	App struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		DB         *sql.DB // nil on the in-memory engine
		Repos      Repositories
		Services   Services

		closers []io.Closer
	}
)

// NewLogger returns the application logger, tagging its entries with the component name.
func NewLogger(conf *core.Config, component string) core.Logger {
	if conf.Debug {
		return logsvc.NewConsoleWriterLogger(os.Stdout).Named(component)
	}
	return logsvc.NewRollbarLogger(os.Stdout, conf).Named(component)
}

// OpenDB provisions the Postgres database if needed, connects to it and applies the pending migrations.
func OpenDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewRepositories returns the repositories of the configured database engine.
// db is only used, and required, by the postgres engine.
func NewRepositories(engine string, db *sql.DB) (Repositories, error) {
	switch engine {
	case EngineInMem:
		mem := inmemdb.Open()
		return Repositories{
			Tenants:     inmemdb.NewTenantRepository(mem),
			Users:       inmemdb.NewUserRepository(mem),
			Courses:     inmemdb.NewCourseRepository(mem),
			Enrollments: inmemdb.NewEnrollmentRepository(mem),
			Exams:       inmemdb.NewExamRepository(mem),
			Activities:  inmemdb.NewActivityRepository(mem),
			Batches:     inmemdb.NewBatchRepository(mem),
			Dashboards:  inmemdb.NewDashboardRepository(mem),
		}, nil
	case EnginePostgres:
		if db == nil {
			return Repositories{}, errors.New("the postgres engine needs a database connection")
		}
		return Repositories{
			Tenants:     boiledrepos.NewTenantRepository(db),
			Users:       boiledrepos.NewUserRepository(db),
			Courses:     boiledrepos.NewCourseRepository(db),
			Enrollments: boiledrepos.NewEnrollmentRepository(db),
			Exams:       boiledrepos.NewExamRepository(db),
			Activities:  boiledrepos.NewActivityRepository(db),
			Batches:     boiledrepos.NewBatchRepository(db),
			Dashboards:  sqlxrepos.NewDashboardRepository(db),
		}, nil
	default:
		return Repositories{}, errors.Errorf("unknown database engine %q", engine)
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newFileStorage returns nil when no storage endpoint is configured: lesson files are then disabled.
func newFileStorage(conf *core.Config, logger core.Logger) (core.FileStorage, error) {
	if !conf.StorageEnabled() {
		logger.Warn("file storage is not configured, lesson files are disabled")
		return nil, nil
	}
	return storagesvc.NewMinIOStorage(conf.Storage, logger)
}

// newEventPublisher falls back to an in-memory recorder when no broker is configured.
func newEventPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, error) {
	if !conf.BrokerEnabled() {
		logger.Info("no broker configured, activity events are kept in memory")
		return eventsvc.NewRecorder(recorderLimit), nil
	}
	return eventsvc.NewAMQPPublisher(conf.Broker, logger)
}

// NewServices wires the domain services over repos.
func NewServices(conf *core.Config, logger core.Logger, repos Repositories, mailSvc core.EmailService, storage core.FileStorage, publisher core.EventPublisher) Services {
	var svcs Services
	svcs.Tenants = tenant.NewService(repos.Tenants)
	svcs.Users = user.NewService(repos.Users, mailSvc, logger, conf)
	svcs.Courses = course.NewService(repos.Courses, storage, logger, conf.Storage.PresignExpiry)
	svcs.Enrollments = enrollment.NewService(repos.Enrollments, svcs.Courses, svcs.Users)
	svcs.Exams = exam.NewService(repos.Exams, svcs.Courses, svcs.Users, mailSvc, logger)
	svcs.Activities = activity.NewService(repos.Activities, publisher, logger)
	svcs.Batches = batch.NewService(repos.Batches, svcs.Courses, svcs.Users)
	svcs.Dashboards = dashboard.NewService(repos.Dashboards, svcs.Activities)
	svcs.Progress = progress.NewService(svcs.Courses, svcs.Enrollments, svcs.Activities, logger)
	return svcs
}

// New builds the whole App from conf.
func New(conf *core.Config, logger core.Logger) (*App, error) {
	app := &App{Conf: conf, Logger: logger}
	app.Validate, app.Translator = validation.New()
	core.ParseEmailTemplates(logger, false /* strict */)

	if conf.Database.Engine == EnginePostgres {
		db, err := OpenDB(conf)
		if err != nil {
			return nil, errors.Wrap(err, "setting up database")
		}
		app.DB = db
		app.closers = append(app.closers, db)
	}

	repos, err := NewRepositories(conf.Database.Engine, app.DB)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Repos = repos

	storage, err := newFileStorage(conf, logger)
	if err != nil {
		app.Close()
		return nil, errors.Wrap(err, "setting up file storage")
	}
	publisher, err := newEventPublisher(conf, logger)
	if err != nil {
		app.Close()
		return nil, errors.Wrap(err, "setting up event publisher")
	}
	app.closers = append(app.closers, publisher)

	app.Services = NewServices(conf, logger, repos, newEmailService(conf, logger), storage, publisher)
	return app, nil
}

// Close releases the connections in the reverse order they were opened.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.Logger.Error(fmt.Sprintf("closing %T", app.closers[i]), err)
		}
	}
	app.closers = nil
}
