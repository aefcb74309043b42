// Package echoapi is the JSON API of Darasa, served with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

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
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Registerer     prometheus.Registerer // no metrics when nil
		DisableReqLogs bool

		TenantSvc     tenant.Service
		UserSvc       user.Service
		CourseSvc     course.Service
		EnrollmentSvc enrollment.Service
		ExamSvc       exam.Service
		ActivitySvc   activity.Service
		BatchSvc      batch.Service
		DashboardSvc  dashboard.Service
		ProgressSvc   progress.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		sessions *sessionManager
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "Conf"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Translator, "Translator"),
		vala.IsNotNil(opts.TenantSvc, "TenantSvc"),
		vala.IsNotNil(opts.UserSvc, "UserSvc"),
		vala.IsNotNil(opts.CourseSvc, "CourseSvc"),
		vala.IsNotNil(opts.EnrollmentSvc, "EnrollmentSvc"),
		vala.IsNotNil(opts.ExamSvc, "ExamSvc"),
		vala.IsNotNil(opts.ActivitySvc, "ActivitySvc"),
		vala.IsNotNil(opts.BatchSvc, "BatchSvc"),
		vala.IsNotNil(opts.DashboardSvc, "DashboardSvc"),
		vala.IsNotNil(opts.ProgressSvc, "ProgressSvc"),
	).CheckAndPanic()

	s := &server{
		opts:     opts,
		app:      echo.New(),
		sessions: newSessionManager(opts.Conf, opts.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: `{"time":"${time_rfc3339}","id":"${id}","method":"${method}","uri":"${uri}",` +
				`"status":${status},"latency":"${latency_human}","error":"${error}"}` + "\n",
		}))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSAllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     conf.Server.CORSAllowedOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXRequestID, tenantHeader},
		}))
	}
	if s.opts.Registerer != nil {
		s.app.Use(newMetrics(s.opts.Registerer).middleware)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api", tenantMiddleware(conf, s.opts.TenantSvc))
	authed := s.sessions.required()

	registerAuthAPI(api, authed, s.sessions, s.opts)
	registerUserAPI(api, authed, s.opts)
	registerTenantAPI(api, authed, s.opts)
	registerCourseAPI(api, authed, s.opts)
	registerEnrollmentAPI(api, authed, s.opts)
	registerExamAPI(api, authed, s.opts)
	registerActivityAPI(api, authed, s.opts)
	registerBatchAPI(api, authed, s.opts)
	registerDashboardAPI(api, authed, s.opts)
}

func (s *server) Start() {
	srv := &http.Server{
		Addr:         s.opts.Conf.Server.Address,
		ReadTimeout:  s.opts.Conf.Server.ReadTimeout,
		WriteTimeout: s.opts.Conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(srv); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
