package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"supatodo/internal/service"
	"supatodo/internal/session"
)

// ErrInvalidCredentials is returned by FakeAuth for a wrong password.
var ErrInvalidCredentials = errors.New("Invalid login credentials")

// FakeAuth is an in-memory implementation of service.Auth for testing.
type FakeAuth struct {
	session.Broker

	mu      sync.Mutex
	current session.Session

	// Password accepted by SignIn; any password when empty.
	Password string

	// UserID assigned on sign-in.
	UserID string

	// Error injection for testing
	CurrentErr error
	SignInErr  error
	SignOutErr error

	SignInCalls  int
	SignOutCalls int
}

// NewFakeAuth creates a FakeAuth with no session.
func NewFakeAuth() *FakeAuth {
	return &FakeAuth{current: session.Absent{}, UserID: "u1"}
}

// NewSignedInAuth creates a FakeAuth already holding a session for userID.
func NewSignedInAuth(userID string) *FakeAuth {
	return &FakeAuth{
		current: session.Authenticated{UserID: userID, Email: userID + "@example.com"},
		UserID:  userID,
	}
}

// Emit replaces the held session and notifies subscribers.
func (f *FakeAuth) Emit(kind session.Kind, s session.Session) {
	f.mu.Lock()
	f.current = s
	f.mu.Unlock()
	f.Publish(session.Event{Kind: kind, Session: s})
}

// CurrentSession implements session.Provider.
func (f *FakeAuth) CurrentSession(ctx context.Context) (session.Session, error) {
	if f.CurrentErr != nil {
		return nil, f.CurrentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

// SignIn implements service.Auth.
func (f *FakeAuth) SignIn(ctx context.Context, creds service.Credentials, prompt io.Writer) error {
	f.mu.Lock()
	f.SignInCalls++
	f.mu.Unlock()
	if f.SignInErr != nil {
		return f.SignInErr
	}
	if f.Password != "" && creds.Password != f.Password {
		return &service.RemoteError{Op: "sign in", Status: 400, Message: ErrInvalidCredentials.Error()}
	}
	f.Emit(session.SignedIn, session.Authenticated{UserID: f.UserID, Email: creds.Email})
	return nil
}

// SignOut implements service.Auth.
func (f *FakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.SignOutCalls++
	f.mu.Unlock()
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.Emit(session.SignedOut, session.Absent{})
	return nil
}
