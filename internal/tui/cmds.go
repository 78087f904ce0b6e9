package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"supatodo/internal/service"
	"supatodo/internal/tasklist"
)

// Each command runs one remote call off the UI loop. Failures reach the
// user through the Synchronizer's notifier, so only completion is reported.

func loadTasks(ctx context.Context, sync *tasklist.Synchronizer) tea.Cmd {
	return func() tea.Msg {
		_ = sync.Load(ctx)
		return syncedMsg{sync: sync}
	}
}

func addTask(ctx context.Context, sync *tasklist.Synchronizer, title string) tea.Cmd {
	return func() tea.Msg {
		added, _ := sync.Add(ctx, title)
		return addedMsg{sync: sync, added: added}
	}
}

func toggleTask(ctx context.Context, sync *tasklist.Synchronizer, t service.Task) tea.Cmd {
	return func() tea.Msg {
		_ = sync.Toggle(ctx, t.ID, t.Completed)
		return syncedMsg{sync: sync}
	}
}

func deleteTask(ctx context.Context, sync *tasklist.Synchronizer, id string) tea.Cmd {
	return func() tea.Msg {
		_ = sync.Delete(ctx, id)
		return syncedMsg{sync: sync}
	}
}

// signIn reports failures through notify; success arrives as a session
// change.
func signIn(ctx context.Context, auth service.Auth, creds service.Credentials, notify tasklist.Notifier) tea.Cmd {
	return func() tea.Msg {
		if err := auth.SignIn(ctx, creds, nil); err != nil {
			notify.Alert(service.Message(err))
		}
		return signInDoneMsg{}
	}
}

func signOut(ctx context.Context, auth service.Auth, notify tasklist.Notifier) tea.Cmd {
	return func() tea.Msg {
		if err := auth.SignOut(ctx); err != nil {
			notify.Alert(service.Message(err))
		}
		return signOutDoneMsg{}
	}
}
