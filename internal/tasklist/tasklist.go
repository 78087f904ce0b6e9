// Package tasklist keeps a local task collection in step with the remote
// todos table for one signed-in user.
package tasklist

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"supatodo/internal/service"
)

// Notifier shows a blocking notification to the user.
type Notifier interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Alert calls f(message).
func (f NotifierFunc) Alert(message string) { f(message) }

// Synchronizer owns the local task collection of one session.
//
// Each operation issues a single remote call outside the lock and applies its
// patch atomically when the response arrives. Operations are independent;
// concurrent calls resolve in arrival order. Local state only changes after
// the remote call succeeds.
type Synchronizer struct {
	store  service.Service
	userID string
	notify Notifier

	mu      sync.Mutex
	tasks   []service.Task
	loading bool
}

// New returns a Synchronizer for userID. It starts in the loading state.
func New(store service.Service, userID string, notify Notifier) *Synchronizer {
	if notify == nil {
		notify = NotifierFunc(func(string) {})
	}
	return &Synchronizer{
		store:   store,
		userID:  userID,
		notify:  notify,
		loading: true,
	}
}

// UserID returns the user whose rows this Synchronizer mirrors.
func (s *Synchronizer) UserID() string { return s.userID }

// Loading reports whether the initial load is still pending.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Tasks returns a copy of the local collection.
func (s *Synchronizer) Tasks() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Find returns the local record with the given id.
func (s *Synchronizer) Find(id string) (service.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// Load fetches every row, newest first, and replaces the collection.
// On failure the collection is left empty. Loading is false afterwards
// in every case.
func (s *Synchronizer) Load(ctx context.Context) error {
	tasks, err := s.store.ListTasks(ctx)

	s.mu.Lock()
	s.loading = false
	if err == nil {
		s.tasks = append([]service.Task(nil), tasks...)
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail("load", "", err)
	}
	log.WithFields(log.Fields{"user": s.userID, "count": len(tasks)}).Debug("tasks loaded")
	return nil
}

// Add inserts a task titled title and prepends the created rows.
// A title that is empty after trimming is ignored without a remote call.
// It reports whether rows were added, so the caller can clear its input.
func (s *Synchronizer) Add(ctx context.Context, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, nil
	}

	created, err := s.store.InsertTask(ctx, service.NewTask{Title: title, UserID: s.userID})
	if err != nil {
		return false, s.fail("insert", "", err)
	}

	s.mu.Lock()
	tasks := make([]service.Task, 0, len(created)+len(s.tasks))
	tasks = append(tasks, created...)
	s.tasks = append(tasks, s.tasks...)
	s.mu.Unlock()
	return true, nil
}

// Toggle sets completed to !current for the row with id, then stores the
// value it sent on the matching local record. Two toggles issued with the
// same current therefore leave both sides at !current.
func (s *Synchronizer) Toggle(ctx context.Context, id string, current bool) error {
	next := !current
	if err := s.store.SetCompleted(ctx, id, next); err != nil {
		return s.fail("update", id, err)
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = next
		}
	}
	s.mu.Unlock()
	return nil
}

// Delete removes the row with id remotely, then locally.
// An id missing from the collection is a local no-op.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return s.fail("delete", id, err)
	}

	s.mu.Lock()
	kept := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()
	return nil
}

func (s *Synchronizer) fail(op, id string, err error) error {
	fields := log.Fields{"op": op, "user": s.userID}
	if id != "" {
		fields["task"] = id
	}
	log.WithFields(fields).WithError(err).Debug("remote operation failed")
	s.notify.Alert(service.Message(err))
	return err
}
