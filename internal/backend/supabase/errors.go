package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"supatodo/internal/service"
)

// errorBody covers the error shapes of GoTrue and PostgREST.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error"`
}

// decodeError turns a non-2xx response into a service.RemoteError carrying
// the backend's human-readable message.
func decodeError(op string, status int, data []byte) error {
	re := &service.RemoteError{Op: op, Status: status}

	var body errorBody
	if err := sonic.Unmarshal(data, &body); err == nil {
		for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.ErrorCode} {
			if m != "" {
				re.Message = m
				break
			}
		}
	}
	if re.Message == "" {
		re.Message = strings.TrimSpace(string(data))
	}
	if re.Message == "" {
		re.Message = http.StatusText(status)
	}
	return re
}

// wrapError maps transport failures to user-facing messages.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var re *service.RemoteError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, service.ErrNotSignedIn) {
		return service.ErrNotSignedIn
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &service.RemoteError{Op: op, Message: "request timed out"}
	}
	return &service.RemoteError{Op: op, Message: err.Error()}
}
