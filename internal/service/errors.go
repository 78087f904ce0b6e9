package service

import (
	"errors"
	"fmt"
)

// ErrNotSignedIn is returned when an operation needs a session and none exists.
var ErrNotSignedIn = errors.New("not signed in")

// RemoteError is a failed remote operation. Its message is the
// human-readable text reported by the backend.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
	return e.Op + " failed"
}

// Message returns the text to show the user for err.
func Message(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Error()
	}
	return err.Error()
}
