package service

import (
	"context"
	"io"

	"supatodo/internal/session"
)

// Service defines the data store boundary for the todos table.
// Every call is scoped to the signed-in user by the backend.
// Shells never import a backend SDK directly.
type Service interface {
	// ListTasks returns all rows ordered by creation time, newest first.
	ListTasks(ctx context.Context) ([]Task, error)

	// InsertTask inserts a row and returns the created rows.
	InsertTask(ctx context.Context, t NewTask) ([]Task, error)

	// SetCompleted updates the completed flag of the row with the given id.
	SetCompleted(ctx context.Context, id string, completed bool) error

	// DeleteTask deletes the row with the given id.
	DeleteTask(ctx context.Context, id string) error
}

// Auth is the hosted authentication boundary.
type Auth interface {
	session.Provider

	// SignIn starts a session. prompt receives instructions for browser
	// based flows. A successful sign-in publishes session.SignedIn.
	SignIn(ctx context.Context, creds Credentials, prompt io.Writer) error

	// SignOut ends the session and publishes session.SignedOut.
	SignOut(ctx context.Context) error
}

// Backend bundles the two remote boundaries of one platform.
type Backend struct {
	Auth  Auth
	Store Service
}
