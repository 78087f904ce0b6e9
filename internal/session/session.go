// Package session models the authenticated-identity context and observes its
// changes as reported by the hosted auth service.
package session

import "context"

// Session is either Absent or Authenticated.
type Session interface {
	isSession()
}

// Absent is the unauthenticated session.
type Absent struct{}

// Authenticated carries the identity that scopes which rows are visible.
type Authenticated struct {
	UserID string
	Email  string
}

func (Absent) isSession()        {}
func (Authenticated) isSession() {}

// UserOf returns the authenticated user of s, if any.
func UserOf(s Session) (Authenticated, bool) {
	a, ok := s.(Authenticated)
	return a, ok
}

// Kind identifies what caused a session change.
type Kind int

const (
	InitialSession Kind = iota
	SignedIn
	SignedOut
	TokenRefreshed
)

func (k Kind) String() string {
	switch k {
	case InitialSession:
		return "INITIAL_SESSION"
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single session change notification.
type Event struct {
	Kind    Kind
	Session Session
}

// Subscription is the handle returned by Provider.Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Provider is the auth boundary consumed by the Observer.
type Provider interface {
	// CurrentSession requests the existing session once.
	CurrentSession(ctx context.Context) (Session, error)

	// Subscribe registers fn for every future session change.
	// fn may be called from any goroutine.
	Subscribe(fn func(Event)) Subscription
}
