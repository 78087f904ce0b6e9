// Package web is the browser shell: a local echo server that renders the
// sign-in form or the task list according to the observed session.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"supatodo/internal/service"
	"supatodo/internal/session"
	"supatodo/internal/shell"
	"supatodo/internal/tasklist"
)

// shutdownTimeout bounds graceful shutdown once the context ends.
const shutdownTimeout = 5 * time.Second

// Server renders one shell for the signed-in user of the local machine.
type Server struct {
	ctx   context.Context
	be    *service.Backend
	shell *shell.Shell
	obs   *session.Observer
	echo  *echo.Echo

	mu       sync.Mutex
	alerts   []string
	draft    string
	observed int // sessions applied from the observer
}

// New observes the backend's session and registers the routes. Close
// releases the session subscription.
func New(ctx context.Context, be *service.Backend) *Server {
	s := &Server{ctx: ctx, be: be}
	s.shell = shell.New(be.Store, tasklist.NotifierFunc(s.alert))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newRenderer()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(log.Fields{"method": v.Method, "uri": v.URI, "status": v.Status}).Debug("request")
			return nil
		},
	}))
	e.Use(sameOrigin)
	e.Use(csrf())
	register(e, s)
	s.echo = e

	s.obs = session.Observe(ctx, be.Auth)
	go s.follow(s.obs.Updates())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Close stops observing the session.
func (s *Server) Close() {
	s.obs.Close()
}

// Run serves on addr until ctx ends.
func Run(ctx context.Context, be *service.Backend, addr string) error {
	s := New(ctx, be)
	defer s.Close()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", addr).Info("serving")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// follow applies every observed session to the shell until the observer
// closes.
func (s *Server) follow(updates <-chan session.Session) {
	for sess := range updates {
		s.apply(sess)
		s.mu.Lock()
		s.observed++
		s.mu.Unlock()
	}
}

func (s *Server) observedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observed
}

// apply routes on sess and starts the initial load of a newly mounted list.
func (s *Server) apply(sess session.Session) {
	route, mounted := s.shell.Apply(sess)
	if route == shell.RouteSignIn {
		s.setDraft("")
	}
	if mounted != nil {
		go func() {
			_ = mounted.Load(s.ctx)
		}()
	}
}

// applyCurrent re-reads the session so a redirect after sign-in or
// sign-out renders the new route without waiting for the notification.
func (s *Server) applyCurrent(ctx context.Context) {
	sess, err := s.be.Auth.CurrentSession(ctx)
	if err != nil {
		log.WithError(err).Debug("current session")
		return
	}
	s.apply(sess)
}

func (s *Server) alert(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, msg)
}

// takeAlert returns the oldest pending alert and clears it.
func (s *Server) takeAlert() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) == 0 {
		return ""
	}
	msg := s.alerts[0]
	s.alerts = s.alerts[1:]
	return msg
}

func (s *Server) setDraft(v string) {
	s.mu.Lock()
	s.draft = v
	s.mu.Unlock()
}

func (s *Server) getDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}
