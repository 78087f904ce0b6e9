// Package googletasks implements service.Auth and service.Service on the
// user's default Google Tasks list.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"supatodo/internal/config"
	"supatodo/internal/oauthflow"
	"supatodo/internal/service"
	"supatodo/internal/session"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// ErrNoOAuthClient is returned when oauth_client.json is missing.
var ErrNoOAuthClient = errors.New("oauth_client.json not found")

// Client implements service.Auth and service.Service using Google Tasks API.
type Client struct {
	session.Broker

	oauth     *oauth2.Config
	tokenPath string
	http      *http.Client
	opts      []option.ClientOption

	// Flow runs the browser half of sign-in.
	Flow oauthflow.Flow

	mu     sync.Mutex
	loaded bool
	stored *storedToken
	svc    *tasks.Service
}

// New creates a new Google Tasks client.
// oauth_client.json is needed to sign in or refresh; without it the client
// still reports the stored session.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	return NewWithHTTPClient(ctx, cfg, &http.Client{})
}

// NewWithHTTPClient creates a client with a custom HTTP client and API
// options (for testing).
func NewWithHTTPClient(ctx context.Context, cfg *config.Config, hc *http.Client, opts ...option.ClientOption) (*Client, error) {
	c := &Client{
		tokenPath: cfg.TokenPath(),
		http:      hc,
		opts:      opts,
	}

	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	default:
		c.oauth, err = google.ConfigFromJSON(clientJSON, tasksScope, "openid", "email")
		if err != nil {
			return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
		}
	}
	return c, nil
}

// service returns the Tasks API service for the stored token, creating it
// on first use.
func (c *Client) service(ctx context.Context) (*tasks.Service, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return nil, service.ErrNotSignedIn
	}
	if c.svc != nil {
		return c.svc, nil
	}
	if c.oauth == nil {
		return nil, ErrNoOAuthClient
	}

	// Token refreshes go through c.http too.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	src := persistingSource{c: c, src: c.oauth.TokenSource(tokenCtx, c.stored.Token)}
	httpClient := oauth2.NewClient(tokenCtx, src)

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	c.svc = svc
	return svc, nil
}

func (c *Client) userID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return ""
	}
	return c.stored.UserID
}

// taskOf maps an API task onto a row. The Tasks API records no creation
// time, so CreatedAt carries the last-modified time instead.
func taskOf(t *tasks.Task, userID string) service.Task {
	out := service.Task{
		ID:        t.Id,
		Title:     t.Title,
		Completed: t.Status == statusCompleted,
		UserID:    userID,
	}
	if ts, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		out.CreatedAt = ts
	}
	return out
}

// ListTasks implements service.Service. Google Tasks has no creation time
// to order by; rows come back sorted by the list's position key instead.
// Inserts land at the top of the list, so this is newest first until the
// user reorders the list in another client.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var items []*tasks.Task
	err = svc.Tasks.List(DefaultListID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowDeleted(false).
		ShowHidden(true).
		Pages(ctx, func(resp *tasks.Tasks) error {
			items = append(items, resp.Items...)
			return nil
		})
	if err != nil {
		return nil, wrapError("select", err)
	}

	// Positions are zero-padded, so string order is list order.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	userID := c.userID()
	result := make([]service.Task, 0, len(items))
	for _, t := range items {
		result = append(result, taskOf(t, userID))
	}
	return result, nil
}

// InsertTask implements service.Service. The owner comes from the session.
func (c *Client) InsertTask(ctx context.Context, t service.NewTask) ([]service.Task, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := svc.Tasks.Insert(DefaultListID, &tasks.Task{Title: t.Title}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("insert", err)
	}
	return []service.Task{taskOf(created, c.userID())}, nil
}

// SetCompleted implements service.Service.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	status := statusNeedsAction
	if completed {
		status = statusCompleted
	}
	_, err = svc.Tasks.Patch(DefaultListID, id, &tasks.Task{Status: status}).Context(ctx).Do()
	if err != nil {
		return wrapError("update", err)
	}
	log.WithFields(log.Fields{"task": id, "status": status}).Debug("task patched")
	return nil
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := svc.Tasks.Delete(DefaultListID, id).Context(ctx).Do(); err != nil {
		return wrapError("delete", err)
	}
	return nil
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var re *service.RemoteError
	if errors.As(err, &re) {
		return re
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return &service.RemoteError{Op: op, Status: status, Message: "token expired or revoked (run: supatodo login)"}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return &service.RemoteError{Op: op, Status: gerr.Code, Message: "token expired or revoked (run: supatodo login)"}
		case http.StatusNotFound:
			return &service.RemoteError{Op: op, Status: gerr.Code, Message: "not found"}
		}
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &service.RemoteError{Op: op, Status: gerr.Code, Message: msg}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &service.RemoteError{Op: op, Message: "request timed out"}
	}
	return &service.RemoteError{Op: op, Message: err.Error()}
}
