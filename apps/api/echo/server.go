package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Transactor core.Transactor

		UserSvc       user.Service
		ProfileSvc    *profile.Service
		LessonSvc     *lesson.Service
		AISvc         *ai.Service
		Analyzer      assignment.Analyzer
		AssignmentSvc *assignment.Service
		FeeSvc        *fee.Service

		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	limiter := newIPRateLimiter(conf.Server.RateLimit, conf.Server.RateBurst)

	registerUserAPI(v1, jwt, limiter.middleware(), s.deps.Transactor, s.deps.UserSvc, s.deps.ProfileSvc)
	registerProfileAPI(v1, jwt, s.deps.UserSvc, s.deps.ProfileSvc)
	registerLessonAPI(v1, jwt, s.deps.UserSvc, s.deps.ProfileSvc, s.deps.LessonSvc)
	registerAssignmentAPI(v1, jwt, conf.Server.MaxUploadSize, s.deps.UserSvc, s.deps.ProfileSvc, s.deps.LessonSvc, s.deps.AssignmentSvc)
	registerFeeAPI(v1, jwt, s.deps.UserSvc, s.deps.FeeSvc)
	registerAIAPI(v1, jwt, limiter.middleware(), conf.Server.MaxUploadSize, s.deps.UserSvc, s.deps.AISvc, s.deps.Analyzer)
}

// Start listens on the configured address. Errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the application to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Muziki API!")
}
