// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"supatodo/internal/service"
)

// FakeStore is an in-memory implementation of service.Service for testing.
type FakeStore struct {
	mu    sync.Mutex
	rows  []service.Task
	clock time.Time

	// Error injection for testing
	ListErr   error
	InsertErr error
	UpdateErr error
	DeleteErr error

	// NextIDs, when non-empty, supplies ids for inserted rows in order.
	NextIDs []string

	// Call counters
	ListCalls   int
	InsertCalls int
	UpdateCalls int
	DeleteCalls int
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// Seed adds a row directly, as if created by the given user.
// Each seeded row is one minute newer than the previous one.
func (f *FakeStore) Seed(id, title string, completed bool, userID string) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{
		ID:        id,
		Title:     title,
		Completed: completed,
		CreatedAt: f.tick(),
		UserID:    userID,
	}
	f.rows = append(f.rows, t)
	return t
}

// Row returns the stored row with id.
func (f *FakeStore) Row(id string) (service.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// Len returns the number of stored rows.
func (f *FakeStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *FakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// ListTasks implements service.Service.
func (f *FakeStore) ListTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]service.Task, len(f.rows))
	copy(out, f.rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InsertTask implements service.Service.
func (f *FakeStore) InsertTask(ctx context.Context, nt service.NewTask) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InsertCalls++
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}

	id := uuid.NewString()
	if len(f.NextIDs) > 0 {
		id = f.NextIDs[0]
		f.NextIDs = f.NextIDs[1:]
	}
	t := service.Task{
		ID:        id,
		Title:     nt.Title,
		CreatedAt: f.tick(),
		UserID:    nt.UserID,
	}
	f.rows = append(f.rows, t)
	return []service.Task{t}, nil
}

// SetCompleted implements service.Service.
// Updating an id that doesn't exist matches zero rows and succeeds.
func (f *FakeStore) SetCompleted(ctx context.Context, id string, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Completed = completed
		}
	}
	return nil
}

// DeleteTask implements service.Service.
// Deleting an id that doesn't exist matches zero rows and succeeds.
func (f *FakeStore) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i, t := range f.rows {
		if t.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}
