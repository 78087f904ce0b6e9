// Package shell routes between the sign-in view and the task-list view by
// session presence. The TUI, the browser shell and the CLI render its routes.
package shell

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"supatodo/internal/service"
	"supatodo/internal/session"
	"supatodo/internal/tasklist"
)

// Route is the view to render.
type Route int

const (
	RouteSignIn Route = iota
	RouteTaskList
)

func (r Route) String() string {
	if r == RouteTaskList {
		return "tasks"
	}
	return "signin"
}

// Shell holds the current route and the Synchronizer mounted for the
// signed-in user.
type Shell struct {
	store  service.Service
	notify tasklist.Notifier

	mu      sync.Mutex
	route   Route
	mounted *tasklist.Synchronizer
}

// New returns a Shell on the sign-in route.
func New(store service.Service, notify tasklist.Notifier) *Shell {
	return &Shell{store: store, notify: notify}
}

// Apply routes on s. It returns the current route and, when a new
// Synchronizer was mounted, that Synchronizer; the caller runs its initial
// load exactly once. An Authenticated value for the already mounted user
// keeps the existing Synchronizer.
func (sh *Shell) Apply(s session.Session) (Route, *tasklist.Synchronizer) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	user, ok := session.UserOf(s)
	if !ok {
		if sh.mounted != nil {
			log.WithField("user", sh.mounted.UserID()).Debug("unmounting task list")
		}
		sh.route = RouteSignIn
		sh.mounted = nil
		return sh.route, nil
	}

	sh.route = RouteTaskList
	if sh.mounted != nil && sh.mounted.UserID() == user.UserID {
		return sh.route, nil
	}
	sh.mounted = tasklist.New(sh.store, user.UserID, sh.notify)
	log.WithField("user", user.UserID).Debug("mounted task list")
	return sh.route, sh.mounted
}

// Route returns the current route.
func (sh *Shell) Route() Route {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.route
}

// Tasks returns the mounted Synchronizer, or nil on the sign-in route.
func (sh *Shell) Tasks() *tasklist.Synchronizer {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.mounted
}

// IsMounted reports whether s is the currently mounted Synchronizer.
// Results of calls issued through an unmounted Synchronizer are discarded.
func (sh *Shell) IsMounted(s *tasklist.Synchronizer) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return s != nil && sh.mounted == s
}
