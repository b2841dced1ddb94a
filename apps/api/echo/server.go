package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
	"github.com/trezcool/tasksphere/core/assistant"
	"github.com/trezcool/tasksphere/core/group"
	"github.com/trezcool/tasksphere/core/message"
	"github.com/trezcool/tasksphere/core/social"
	"github.com/trezcool/tasksphere/core/task"
	"github.com/trezcool/tasksphere/core/user"
	identitysvc "github.com/trezcool/tasksphere/services/identity"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Jobs       core.Dispatcher
		Storage    core.ObjectStore
		Identity   *identitysvc.Verifier
		Resolver   *access.Resolver

		UserSvc      *user.Service
		GroupSvc     *group.Service
		TaskSvc      *task.Service
		SocialSvc    *social.Service
		MessageSvc   *message.Service
		AssistantSvc *assistant.Service
	}

	Server struct {
		address  string
		deps     *Deps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

// NewServer builds the API server listening on address.
// If shutdown is nil, the server listens for SIGINT & SIGTERM on its own channel.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s := &Server{
		address:  address,
		deps:     deps,
		app:      echo.New(),
		shutdown: shutdown,
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(translatorMiddleware(s.deps.Translator))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	if conf.Storage.Dir != "" && conf.Storage.PublicPath != "" {
		s.app.Static(conf.Storage.PublicPath, conf.Storage.Dir)
	}

	v1 := s.app.Group("/v1")

	// un-authed endpoints
	registerWebhookAPI(v1, s.deps)

	// authed endpoints
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	ag := v1.Group("", jwt, principalMiddleware(s.deps))

	registerUserAPI(ag, s.deps)
	registerGroupAPI(ag, s.deps)
	registerAssistantAPI(ag, s.deps)
	registerTaskAPI(ag, s.deps)
	registerSocialAPI(ag, s.deps)
	registerMessageAPI(ag, s.deps)
	registerUploadAPI(ag, s.deps)
}

func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server, if any.
func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
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

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
