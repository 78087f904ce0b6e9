package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"supatodo/internal/service"
)

// row is the wire shape of a todos row.
type row struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at"`
	UserID    string `json:"user_id"`
}

// timestamp layouts PostgREST emits for timestamptz and timestamp columns.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
}

func (r row) task() service.Task {
	t := service.Task{
		ID:        r.ID,
		Title:     r.Title,
		Completed: r.Completed,
		UserID:    r.UserID,
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, r.CreatedAt); err == nil {
			t.CreatedAt = ts
			break
		}
	}
	return t
}

func tasksOf(rows []row) []service.Task {
	out := make([]service.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.task())
	}
	return out
}

func tablePath() string {
	return restPath + "/" + service.Table
}

func byID(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

// ListTasks implements service.Service.
// Row-level security scopes the result to the signed-in user.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rows []row
	err = c.do(ctx, hc, request{
		op:     "select",
		method: http.MethodGet,
		path:   tablePath(),
		query:  url.Values{"select": {"*"}, "order": {"created_at.desc"}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return tasksOf(rows), nil
}

// InsertTask implements service.Service.
func (c *Client) InsertTask(ctx context.Context, t service.NewTask) ([]service.Task, error) {
	hc, err := c.authorized()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rows []row
	err = c.do(ctx, hc, request{
		op:     "insert",
		method: http.MethodPost,
		path:   tablePath(),
		query:  url.Values{"select": {"*"}},
		body:   []service.NewTask{t},
		prefer: "return=representation",
	}, &rows)
	if err != nil {
		return nil, err
	}
	return tasksOf(rows), nil
}

// SetCompleted implements service.Service.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) error {
	hc, err := c.authorized()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	return c.do(ctx, hc, request{
		op:     "update",
		method: http.MethodPatch,
		path:   tablePath(),
		query:  byID(id),
		body:   map[string]bool{"completed": completed},
		prefer: "return=minimal",
	}, nil)
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	hc, err := c.authorized()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	return c.do(ctx, hc, request{
		op:     "delete",
		method: http.MethodDelete,
		path:   tablePath(),
		query:  byID(id),
	}, nil)
}
