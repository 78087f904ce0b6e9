package web

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"supatodo/internal/output"
	"supatodo/internal/service"
	"supatodo/internal/shell"
)

// register wires up all routes on e.
func register(e *echo.Echo, s *Server) {
	e.GET("/", index(s))
	e.POST("/signin", signIn(s))
	e.POST("/signout", signOut(s))
	e.POST("/todos", addTodo(s))
	e.POST("/todos/:id/toggle", toggleTodo(s))
	e.POST("/todos/:id/delete", deleteTodo(s))
}

type pageData struct {
	Alert   string
	SignIn  bool
	Loading bool
	Tasks   []service.Task
	Done    int
	Pending int
	Draft   string
	CSRF    string
}

func index(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		data := pageData{Alert: s.takeAlert(), CSRF: csrfToken(c)}

		sync := s.shell.Tasks()
		switch {
		case s.shell.Route() == shell.RouteSignIn || sync == nil:
			data.SignIn = true
		case sync.Loading():
			data.Loading = true
		default:
			data.Tasks = sync.Tasks()
			data.Done, data.Pending = output.Tally(data.Tasks)
			data.Draft = s.getDraft()
		}
		return c.Render(http.StatusOK, "page", data)
	}
}

func back(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}

func signIn(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		creds := service.Credentials{
			Email:    strings.TrimSpace(c.FormValue("email")),
			Password: c.FormValue("password"),
		}
		if creds.Email == "" || creds.Password == "" {
			s.alert("email and password required")
			return back(c)
		}

		ctx := c.Request().Context()
		if err := s.be.Auth.SignIn(ctx, creds, nil); err != nil {
			log.WithError(err).Debug("sign in failed")
			s.alert(service.Message(err))
			return back(c)
		}
		s.applyCurrent(ctx)
		return back(c)
	}
}

func signOut(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := s.be.Auth.SignOut(ctx); err != nil {
			s.alert(service.Message(err))
		}
		s.applyCurrent(ctx)
		return back(c)
	}
}

func addTodo(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		sync := s.shell.Tasks()
		if sync == nil {
			return back(c)
		}
		title := c.FormValue("title")
		added, err := sync.Add(c.Request().Context(), title)
		switch {
		case err != nil:
			s.setDraft(title)
		case added:
			s.setDraft("")
		}
		return back(c)
	}
}

func toggleTodo(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		sync := s.shell.Tasks()
		if sync == nil {
			return back(c)
		}
		task, ok := sync.Find(c.Param("id"))
		if !ok {
			return back(c)
		}
		_ = sync.Toggle(c.Request().Context(), task.ID, task.Completed)
		return back(c)
	}
}

func deleteTodo(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		sync := s.shell.Tasks()
		if sync == nil {
			return back(c)
		}
		_ = sync.Delete(c.Request().Context(), c.Param("id"))
		return back(c)
	}
}
