// Package oauthflow runs the browser half of an OAuth authorization-code
// flow: it binds a local callback server, prints the authorization URL and
// waits for the code.
package oauthflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds the wait for the browser callback.
	DefaultTimeout = 5 * time.Minute

	// DefaultStartPort is the first port tried for the callback server.
	DefaultStartPort = 8085

	// DefaultMaxPortAttempts is how many consecutive ports are tried.
	DefaultMaxPortAttempts = 5

	callbackPath = "/callback"
)

// ErrNoPort is returned when no callback port could be bound.
var ErrNoPort = errors.New("could not bind to local port for OAuth callback")

// Flow configures the local callback server.
type Flow struct {
	StartPort       int
	MaxPortAttempts int
	Timeout         time.Duration

	// Prompt receives the authorization URL.
	Prompt io.Writer
}

// Result is what the browser sent back.
type Result struct {
	Code        string
	RedirectURL string
}

// AuthURLFunc builds the authorization URL for the given redirect URL and
// state value.
type AuthURLFunc func(redirectURL, state string) string

// Run prints the URL built by authURL and waits for the callback.
// If the callback carries a state parameter it must match the one passed to
// authURL.
func (f Flow) Run(ctx context.Context, authURL AuthURLFunc) (Result, error) {
	f.defaults()

	port, listener, err := findAvailablePort(f.StartPort, f.MaxPortAttempts)
	if err != nil {
		return Result{}, err
	}
	defer listener.Close()

	redirectURL := fmt.Sprintf("http://localhost:%d%s", port, callbackPath)
	state := uuid.NewString()

	fmt.Fprintln(f.Prompt, "Open this URL in your browser:")
	fmt.Fprintln(f.Prompt, authURL(redirectURL, state))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("state"); got != "" && got != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			sendErr(errCh, errors.New("oauth state mismatch"))
			return
		}
		if desc := q.Get("error_description"); desc != "" {
			http.Error(w, desc, http.StatusBadRequest)
			sendErr(errCh, errors.New(desc))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			sendErr(errCh, errors.New("no code in callback"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Debug("callback server shutdown")
		}
	}()

	select {
	case code := <-codeCh:
		return Result{Code: code, RedirectURL: redirectURL}, nil
	case err := <-errCh:
		return Result{}, err
	case <-time.After(f.Timeout):
		return Result{}, errors.New("oauth callback timed out")
	case <-ctx.Done():
		return Result{}, errors.New("cancelled")
	}
}

func (f *Flow) defaults() {
	if f.StartPort == 0 {
		f.StartPort = DefaultStartPort
	}
	if f.MaxPortAttempts == 0 {
		f.MaxPortAttempts = DefaultMaxPortAttempts
	}
	if f.Timeout == 0 {
		f.Timeout = DefaultTimeout
	}
	if f.Prompt == nil {
		f.Prompt = io.Discard
	}
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// findAvailablePort tries to bind start, start+1, ... on localhost.
func findAvailablePort(start, attempts int) (int, net.Listener, error) {
	for i := 0; i < attempts; i++ {
		port := start + i
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return listener.Addr().(*net.TCPAddr).Port, listener, nil
		}
	}
	return 0, nil, ErrNoPort
}
