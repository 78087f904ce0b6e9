package googletasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"supatodo/internal/config"
	"supatodo/internal/oauthflow"
	"supatodo/internal/service"
	"supatodo/internal/session"
)

const (
	testSub   = "g-123"
	testEmail = "ann@example.com"
	listPath  = "/tasks/v1/lists/@default/tasks"
)

type apiTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Updated  string `json:"updated"`
	Position string `json:"position,omitempty"`
}

// fakeGoogle emulates the token endpoint and the Tasks API.
type fakeGoogle struct {
	t *testing.T

	mu            sync.Mutex
	access        string
	refresh       string
	rejectRefresh bool
	issued        int
	items         []apiTask
	lastForm      url.Values
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func apiError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": map[string]any{"code": code, "message": msg}})
}

func (g *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r.URL.Path == "/token" {
		g.token(w, r)
		return
	}
	if !strings.HasPrefix(r.URL.Path, listPath) {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+g.access {
		apiError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, listPath), "/")
	switch {
	case id == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"kind": "tasks#tasks", "items": g.items})
	case id == "" && r.Method == http.MethodPost:
		var in apiTask
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&in); err != nil {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.ID = fmt.Sprintf("gt-%d", len(g.items)+1)
		in.Status = statusNeedsAction
		in.Updated = "2024-05-01T10:00:00.000Z"
		g.items = append([]apiTask{in}, g.items...)
		writeJSON(w, http.StatusOK, in)
	default:
		idx := -1
		for i, it := range g.items {
			if it.ID == id {
				idx = i
			}
		}
		if idx < 0 {
			apiError(w, http.StatusNotFound, "Task not found")
			return
		}
		switch r.Method {
		case http.MethodPatch:
			var in apiTask
			if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&in); err != nil {
				apiError(w, http.StatusBadRequest, err.Error())
				return
			}
			g.items[idx].Status = in.Status
			writeJSON(w, http.StatusOK, g.items[idx])
		case http.MethodDelete:
			g.items = append(g.items[:idx], g.items[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (g *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	g.lastForm = r.PostForm

	resp := map[string]any{"token_type": "Bearer", "expires_in": 3600}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != "code-1" || r.PostForm.Get("code_verifier") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp["id_token"] = idToken(g.t, testSub, testEmail)
		g.refresh = "refresh-1"
		resp["refresh_token"] = g.refresh
	case "refresh_token":
		if g.rejectRefresh || r.PostForm.Get("refresh_token") != g.refresh {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Token has been expired or revoked.",
			})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	g.issued++
	g.access = fmt.Sprintf("access-%d", g.issued)
	resp["access_token"] = g.access
	writeJSON(w, http.StatusOK, resp)
}

func idToken(t *testing.T, sub, email string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return s
}

type fixture struct {
	g   *fakeGoogle
	c   *Client
	dir string
}

func newFixture(t *testing.T, withOAuthClient bool) *fixture {
	t.Helper()
	g := &fakeGoogle{t: t}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	if withOAuthClient {
		clientJSON := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"secret",`+
			`"auth_uri":"%s/auth","token_uri":"%s/token","redirect_uris":["http://localhost"]}}`, srv.URL, srv.URL)
		if err := os.WriteFile(filepath.Join(dir, config.OAuthClientFile), []byte(clientJSON), 0600); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{Dir: dir}
	c, err := NewWithHTTPClient(context.Background(), cfg, srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	return &fixture{g: g, c: c, dir: dir}
}

// signedIn stores a token for the fake server. expired forces a refresh on
// first use.
func (f *fixture) signedIn(t *testing.T, expired bool) {
	t.Helper()
	expiry := time.Now().Add(time.Hour)
	if expired {
		expiry = time.Now().Add(-time.Hour)
	}
	f.g.mu.Lock()
	f.g.access = "access-0"
	f.g.refresh = "refresh-0"
	f.g.mu.Unlock()

	err := saveToken(filepath.Join(f.dir, config.TokenFile), &storedToken{
		Token: &oauth2.Token{
			AccessToken:  "access-0",
			TokenType:    "Bearer",
			RefreshToken: "refresh-0",
			Expiry:       expiry,
		},
		UserID: testSub,
		Email:  testEmail,
	})
	if err != nil {
		t.Fatalf("saveToken: %v", err)
	}
}

func events(c *Client) <-chan session.Event {
	ch := make(chan session.Event, 8)
	c.Subscribe(func(e session.Event) { ch <- e })
	return ch
}

func expectEvent(t *testing.T, ch <-chan session.Event, kind session.Kind) session.Event {
	t.Helper()
	select {
	case e := <-ch:
		if e.Kind != kind {
			t.Fatalf("expected %s event, got %s", kind, e.Kind)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s event", kind)
	}
	return session.Event{}
}

func TestCurrentSession(t *testing.T) {
	f := newFixture(t, false)

	s, err := f.c.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if _, ok := s.(session.Absent); !ok {
		t.Errorf("expected Absent, got %#v", s)
	}

	f = newFixture(t, false)
	f.signedIn(t, false)
	s, err = f.c.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	want := session.Authenticated{UserID: testSub, Email: testEmail}
	if s != want {
		t.Errorf("expected %#v, got %#v", want, s)
	}
}

func TestStore_NotSignedIn(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.c.ListTasks(context.Background()); !errors.Is(err, service.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestStore_NoOAuthClient(t *testing.T) {
	f := newFixture(t, false)
	f.signedIn(t, false)
	if _, err := f.c.ListTasks(context.Background()); !errors.Is(err, ErrNoOAuthClient) {
		t.Errorf("expected ErrNoOAuthClient, got %v", err)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, false)
	ctx := context.Background()

	created, err := f.c.InsertTask(ctx, service.NewTask{Title: "Buy milk", UserID: testSub})
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if len(created) != 1 || created[0].Title != "Buy milk" || created[0].Completed {
		t.Fatalf("unexpected insert result %#v", created)
	}
	if created[0].UserID != testSub {
		t.Errorf("expected owner %s, got %s", testSub, created[0].UserID)
	}
	if created[0].CreatedAt.IsZero() {
		t.Error("expected timestamp to be parsed")
	}

	if _, err := f.c.InsertTask(ctx, service.NewTask{Title: "Walk dog", UserID: testSub}); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}

	tasks, err := f.c.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Walk dog" || tasks[1].Title != "Buy milk" {
		t.Fatalf("expected newest first, got %#v", tasks)
	}

	id := created[0].ID
	if err := f.c.SetCompleted(ctx, id, true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	tasks, _ = f.c.ListTasks(ctx)
	if !tasks[1].Completed {
		t.Error("expected task to be completed")
	}
	if err := f.c.SetCompleted(ctx, id, false); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	tasks, _ = f.c.ListTasks(ctx)
	if tasks[1].Completed {
		t.Error("expected task to be open again")
	}

	if err := f.c.DeleteTask(ctx, id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	tasks, _ = f.c.ListTasks(ctx)
	if len(tasks) != 1 || tasks[0].ID == id {
		t.Errorf("expected %s deleted, got %#v", id, tasks)
	}
}

func TestStore_ListFollowsPosition(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, false)
	f.g.mu.Lock()
	f.g.items = []apiTask{
		{ID: "c", Title: "third", Status: statusNeedsAction, Position: "00000000000000000002"},
		{ID: "a", Title: "first", Status: statusCompleted, Position: "00000000000000000000"},
		{ID: "b", Title: "second", Status: statusNeedsAction, Position: "00000000000000000001"},
	}
	f.g.mu.Unlock()

	tasks, err := f.c.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	var got []string
	for _, task := range tasks {
		got = append(got, task.ID)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("expected position order a,b,c, got %v", got)
	}
	if !tasks[0].Completed || tasks[1].Completed {
		t.Errorf("unexpected completion flags %#v", tasks)
	}
}

func TestStore_NotFound(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, false)

	err := f.c.DeleteTask(context.Background(), "missing")
	var re *service.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Status != http.StatusNotFound || re.Message != "not found" {
		t.Errorf("unexpected error %#v", re)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, true)
	ch := events(f.c)

	if _, err := f.c.ListTasks(context.Background()); err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	expectEvent(t, ch, session.TokenRefreshed)

	stored, err := loadToken(filepath.Join(f.dir, config.TokenFile))
	if err != nil || stored == nil {
		t.Fatalf("loadToken: %v", err)
	}
	if stored.Token.AccessToken != "access-1" {
		t.Errorf("expected refreshed token persisted, got %q", stored.Token.AccessToken)
	}
	if stored.UserID != testSub {
		t.Errorf("expected user id kept, got %q", stored.UserID)
	}
}

func TestRefresh_RejectedSignsOut(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, true)
	f.g.mu.Lock()
	f.g.rejectRefresh = true
	f.g.mu.Unlock()
	ch := events(f.c)

	_, err := f.c.ListTasks(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := service.Message(err); !strings.Contains(got, "run: supatodo login") {
		t.Errorf("unexpected message %q", got)
	}
	expectEvent(t, ch, session.SignedOut)

	if _, err := os.Stat(filepath.Join(f.dir, config.TokenFile)); !os.IsNotExist(err) {
		t.Errorf("expected token.json removed, stat err = %v", err)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, false)
	ch := events(f.c)

	if err := f.c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	expectEvent(t, ch, session.SignedOut)
	if _, err := os.Stat(filepath.Join(f.dir, config.TokenFile)); !os.IsNotExist(err) {
		t.Errorf("expected token.json removed, stat err = %v", err)
	}

	if err := f.c.SignOut(context.Background()); err != nil {
		t.Fatalf("second SignOut: %v", err)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected event %s", e.Kind)
	default:
	}
}

func TestSignIn_RejectsPassword(t *testing.T) {
	f := newFixture(t, true)
	err := f.c.SignIn(context.Background(), service.Credentials{Email: "a@b.c", Password: "x"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSignIn_NoOAuthClient(t *testing.T) {
	f := newFixture(t, false)
	err := f.c.SignIn(context.Background(), service.Credentials{Provider: "google"}, nil)
	if !errors.Is(err, ErrNoOAuthClient) {
		t.Errorf("expected ErrNoOAuthClient, got %v", err)
	}
}

// lineWriter forwards every written line to a channel.
type lineWriter struct {
	lines chan string
}

func (w lineWriter) Write(b []byte) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		w.lines <- sc.Text()
	}
	return len(b), nil
}

func TestSignIn_Browser(t *testing.T) {
	f := newFixture(t, true)
	f.c.Flow = oauthflow.Flow{StartPort: 38800, MaxPortAttempts: 50, Timeout: 5 * time.Second}
	ch := events(f.c)

	prompt := lineWriter{lines: make(chan string, 4)}
	done := make(chan error, 1)
	go func() {
		done <- f.c.SignIn(context.Background(), service.Credentials{Provider: "google"}, prompt)
	}()

	var authURL *url.URL
	for authURL == nil {
		select {
		case line := <-prompt.lines:
			if strings.HasPrefix(line, "http") {
				u, err := url.Parse(line)
				if err != nil {
					t.Fatalf("parse auth url: %v", err)
				}
				authURL = u
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no authorization URL printed")
		}
	}

	q := authURL.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("access_type") != "offline" {
		t.Errorf("unexpected authorization query %v", q)
	}
	if !strings.Contains(q.Get("scope"), "openid") {
		t.Errorf("expected openid scope, got %q", q.Get("scope"))
	}

	resp, err := http.Get(q.Get("redirect_uri") + "?code=code-1&state=" + url.QueryEscape(q.Get("state")))
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	resp.Body.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SignIn: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("SignIn did not finish")
	}

	e := expectEvent(t, ch, session.SignedIn)
	want := session.Authenticated{UserID: testSub, Email: testEmail}
	if e.Session != want {
		t.Errorf("expected %#v, got %#v", want, e.Session)
	}

	f.g.mu.Lock()
	verifier := f.g.lastForm.Get("code_verifier")
	f.g.mu.Unlock()
	if oauth2.S256ChallengeFromVerifier(verifier) != q.Get("code_challenge") {
		t.Error("verifier does not match the challenge")
	}

	if _, err := f.c.ListTasks(context.Background()); err != nil {
		t.Errorf("ListTasks after sign-in: %v", err)
	}
}

func TestStore_DeadlineReportsTimeout(t *testing.T) {
	f := newFixture(t, true)
	f.signedIn(t, false)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := f.c.ListTasks(ctx)
	if got := service.Message(err); got != "request timed out" {
		t.Errorf("expected timeout message, got %q (%v)", got, err)
	}
}
