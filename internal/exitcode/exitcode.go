// Package exitcode maps command outcomes to process exit statuses.
package exitcode

import (
	"errors"

	"supatodo/internal/service"
)

const (
	Success = 0

	// UserError covers bad arguments and task references that do not resolve.
	UserError = 1

	// AuthError covers configuration problems and a missing or expired session.
	AuthError = 2

	// BackendError covers failed reads and writes against the todos table.
	BackendError = 3
)

// ForError maps an error from the task store or auth service to an exit
// status. A nil error is Success.
func ForError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, service.ErrNotSignedIn):
		return AuthError
	default:
		return BackendError
	}
}
