// Package service defines the backend-agnostic boundaries for task storage
// and authentication.
package service

import "time"

// Table is the remote table holding task rows.
const Table = "todos"

// Task is a single row of the todos table.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// NewTask is the insert payload for a task row.
type NewTask struct {
	Title  string `json:"title"`
	UserID string `json:"user_id"`
}

// Credentials select a sign-in method. Password sign-in is used when Email is
// set; otherwise Provider names a browser OAuth provider.
type Credentials struct {
	Email    string
	Password string
	Provider string
}
