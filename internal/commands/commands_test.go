package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"supatodo/internal/commands"
	"supatodo/internal/config"
	"supatodo/internal/exitcode"
	"supatodo/internal/service"
	"supatodo/internal/testutil"
)

// runCommand is a helper to run a command against an in-memory backend.
func runCommand(t *testing.T, cmd commands.Command, be *service.Backend, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:    t.TempDir(),
		Listen: config.DefaultListen,
		Quiet:  quiet,
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, be, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// signedIn returns a backend with a session for u1 over store.
func signedIn(store *testutil.FakeStore) *service.Backend {
	return &service.Backend{Auth: testutil.NewSignedInAuth("u1"), Store: store}
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "supatodo 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.GoldenString(t, "help", stdout)
}

// Tests for list command
func TestListCommand_NewestFirst(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	store.Seed("2", "Milk", true, "u1")

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, signedIn(store), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "   1  [x] Milk\n   2  [ ] Eggs\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_WithIDs(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("a1", "Eggs", false, "u1")

	cmd := &commands.ListCmd{}
	cmd.SetShowIDs(true)
	stdout, _, code := runCommand(t, cmd, signedIn(store), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "   1  [ ] Eggs  (a1)\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, signedIn(testutil.NewFakeStore()), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ListCmd{}, signedIn(testutil.NewFakeStore()), nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestListCommand_NotLoggedIn(t *testing.T) {
	store := testutil.NewFakeStore()
	be := &service.Backend{Auth: testutil.NewFakeAuth(), Store: store}

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, be, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: not logged in (run: supatodo login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if store.ListCalls != 0 {
		t.Errorf("expected no fetch, got %d", store.ListCalls)
	}
}

func TestListCommand_RemoteError(t *testing.T) {
	store := testutil.NewFakeStore()
	store.ListErr = &service.RemoteError{Op: "select", Status: 500, Message: "relation \"todos\" does not exist"}

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, signedIn(store), nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: relation \"todos\" does not exist\n" {
		t.Errorf("expected exactly one notification, got %q", stderr)
	}
}

func TestListCommand_SessionLookupFails(t *testing.T) {
	auth := testutil.NewFakeAuth()
	auth.CurrentErr = errors.New("session file unreadable")

	_, stderr, code := runCommand(t, &commands.ListCmd{}, &service.Backend{Auth: auth, Store: testutil.NewFakeStore()}, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: session file unreadable\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_UnexpectedArg(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ListCmd{}, signedIn(testutil.NewFakeStore()), []string{"extra"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected argument: extra\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	store.NextIDs = []string{"2"}

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, signedIn(store), []string{"Buy", "milk"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}

	row, ok := store.Row("2")
	if !ok {
		t.Fatal("expected row 2 to be inserted")
	}
	if row.Title != "Buy milk" || row.UserID != "u1" || row.Completed {
		t.Errorf("unexpected row %+v", row)
	}
	// add does not need a prior load
	if store.ListCalls != 0 {
		t.Errorf("expected no fetch, got %d", store.ListCalls)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	store := testutil.NewFakeStore()

	stdout, _, code := runCommand(t, &commands.AddCmd{}, signedIn(store), []string{"Test"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
	if store.Len() != 1 {
		t.Errorf("expected one row, got %d", store.Len())
	}
}

func TestAddCommand_BlankTitle(t *testing.T) {
	store := testutil.NewFakeStore()

	for _, args := range [][]string{nil, {"   "}, {"", "\t"}} {
		stdout, stderr, code := runCommand(t, &commands.AddCmd{}, signedIn(store), args, false)

		if code != exitcode.UserError {
			t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
		}
		if stdout != "" {
			t.Errorf("expected no stdout, got %q", stdout)
		}
		if stderr != "error: title required\n" {
			t.Errorf("expected title required error, got %q", stderr)
		}
	}
	if store.InsertCalls != 0 {
		t.Errorf("expected no remote call, got %d", store.InsertCalls)
	}
}

func TestAddCommand_KeepsTitleAsTyped(t *testing.T) {
	store := testutil.NewFakeStore()
	store.NextIDs = []string{"x"}

	_, _, code := runCommand(t, &commands.CreateCmd{}, signedIn(store), []string{" padded "}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if row, _ := store.Row("x"); row.Title != " padded " {
		t.Errorf("expected title sent as typed, got %q", row.Title)
	}
}

func TestAddCommand_RemoteError(t *testing.T) {
	store := testutil.NewFakeStore()
	store.InsertErr = &service.RemoteError{Op: "insert", Status: 403, Message: "new row violates row-level security policy"}

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, signedIn(store), []string{"Buy milk"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: new row violates row-level security policy\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for toggle command
func TestToggleCommand_ByPosition(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	store.Seed("2", "Milk", true, "u1")

	stdout, stderr, code := runCommand(t, &commands.ToggleCmd{}, signedIn(store), []string{"1", "2"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}

	if row, _ := store.Row("2"); row.Completed {
		t.Error("expected Milk reopened")
	}
	if row, _ := store.Row("1"); !row.Completed {
		t.Error("expected Eggs completed")
	}
}

func TestToggleCommand_TwiceRestores(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	be := signedIn(store)

	runCommand(t, &commands.ToggleCmd{}, be, []string{"id:1"}, true)
	runCommand(t, &commands.ToggleCmd{}, be, []string{"id:1"}, true)

	if row, _ := store.Row("1"); row.Completed {
		t.Error("expected completed restored after two toggles")
	}
	if store.UpdateCalls != 2 {
		t.Errorf("expected 2 updates, got %d", store.UpdateCalls)
	}
}

func TestToggleCommand_NoRef(t *testing.T) {
	store := testutil.NewFakeStore()

	stdout, stderr, code := runCommand(t, &commands.ToggleCmd{}, signedIn(store), nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("expected task reference required error, got %q", stderr)
	}
	if store.ListCalls != 0 {
		t.Errorf("expected no fetch, got %d", store.ListCalls)
	}
}

func TestToggleCommand_OutOfRangeChangesNothing(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Only task", false, "u1")

	stdout, stderr, code := runCommand(t, &commands.ToggleCmd{}, signedIn(store), []string{"1", "5"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: task number out of range: 5\n" {
		t.Errorf("expected out of range error, got %q", stderr)
	}
	if store.UpdateCalls != 0 {
		t.Errorf("expected no updates, got %d", store.UpdateCalls)
	}
}

func TestToggleCommand_RemoteErrorStops(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	store.Seed("2", "Milk", false, "u1")
	store.UpdateErr = &service.RemoteError{Op: "update", Status: 500, Message: "boom"}

	_, stderr, code := runCommand(t, &commands.ToggleCmd{}, signedIn(store), []string{"1", "2"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: boom\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if store.UpdateCalls != 1 {
		t.Errorf("expected to stop after the first failure, got %d calls", store.UpdateCalls)
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("1", "Eggs", false, "u1")
	store.Seed("2", "Milk", false, "u1")

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, signedIn(store), []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if _, ok := store.Row("2"); ok {
		t.Error("expected newest task deleted")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 row remaining, got %d", store.Len())
	}
}

func TestRmCommand_DuplicateRefsDeleteOnce(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("abc", "Eggs", false, "u1")

	_, _, code := runCommand(t, &commands.RmCmd{}, signedIn(store), []string{"abc", "1"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if store.DeleteCalls != 1 {
		t.Errorf("expected one delete, got %d", store.DeleteCalls)
	}
}

func TestRmCommand_UnknownID(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("abc", "Eggs", false, "u1")

	_, stderr, code := runCommand(t, &commands.RmCmd{}, signedIn(store), []string{"nope"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task not found: nope\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if store.DeleteCalls != 0 {
		t.Errorf("expected no delete, got %d", store.DeleteCalls)
	}
}

func TestRmCommand_NoRef(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.RmCmd{}, signedIn(testutil.NewFakeStore()), nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("expected task reference required error, got %q", stderr)
	}
}

// Tests for ui and serve commands
func TestUICommand_LogsToFile(t *testing.T) {
	prev := log.StandardLogger().Out
	t.Cleanup(func() { log.SetOutput(prev) })

	cmd := &commands.UICmd{}
	cmd.SetRunner(func(ctx context.Context, be *service.Backend) error {
		log.Warn("from the ui")
		return nil
	})

	var outBuf, errBuf bytes.Buffer
	cfg := &config.Config{Dir: t.TempDir()}
	code := cmd.Run(context.Background(), cfg, signedIn(testutil.NewFakeStore()), nil, &outBuf, &errBuf)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, errBuf.String())
	}
	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "from the ui") {
		t.Errorf("expected log line in %s, got %q", cfg.LogPath(), data)
	}
	if log.StandardLogger().Out != prev {
		t.Error("expected log output restored")
	}
}

func TestUICommand_RunError(t *testing.T) {
	prev := log.StandardLogger().Out
	t.Cleanup(func() { log.SetOutput(prev) })

	cmd := &commands.UICmd{}
	cmd.SetRunner(func(ctx context.Context, be *service.Backend) error {
		return errors.New("could not open a new TTY")
	})

	_, stderr, code := runCommand(t, cmd, signedIn(testutil.NewFakeStore()), nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "error: could not open a new TTY\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestServeCommand_ListenAddress(t *testing.T) {
	var got string
	cmd := &commands.ServeCmd{}
	cmd.SetRunner(func(ctx context.Context, be *service.Backend, addr string) error {
		got = addr
		return nil
	})

	stdout, _, code := runCommand(t, cmd, signedIn(testutil.NewFakeStore()), nil, false)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if got != config.DefaultListen {
		t.Errorf("expected default address, got %q", got)
	}
	if stdout != "serving on http://"+config.DefaultListen+"\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}

	cmd.SetListen("127.0.0.1:9999")
	runCommand(t, cmd, signedIn(testutil.NewFakeStore()), nil, true)
	if got != "127.0.0.1:9999" {
		t.Errorf("expected --listen to win, got %q", got)
	}
}
