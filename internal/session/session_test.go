package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/apitest"
	"github.com/r1cksync/poils-cli/internal/session"
)

var ctx = context.Background()

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *memTokens) Save(token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *recordingNotifier) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recordingNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

type recordingNavigator struct {
	mu      sync.Mutex
	toChat  int
	toLogin int
}

func (r *recordingNavigator) ToChat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toChat++
}

func (r *recordingNavigator) ToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toLogin++
}

type fixture struct {
	srv    *apitest.Server
	tokens *memTokens
	client *api.Client
	sess   *session.Session
	notify *recordingNotifier
	nav    *recordingNavigator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := apitest.New(t)
	tokens := &memTokens{}
	client, err := api.New(api.Options{BaseURL: srv.URL, Tokens: tokens})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	notify := &recordingNotifier{}
	nav := &recordingNavigator{}
	sess := session.New(client, tokens, session.Options{Notifier: notify, Navigator: nav})

	return &fixture{srv: srv, tokens: tokens, client: client, sess: sess, notify: notify, nav: nav}
}

func TestCurrentBeforeInit(t *testing.T) {
	f := newFixture(t)

	if _, err := f.sess.Current(); !errors.Is(err, session.ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestInitWithoutToken(t *testing.T) {
	f := newFixture(t)

	f.sess.Init(ctx)

	if got := f.sess.State(); got != session.StateAnonymous {
		t.Fatalf("state = %v, want anonymous", got)
	}
	if _, err := f.sess.Current(); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("got %v, want ErrNotAuthenticated", err)
	}
}

func TestInitWithValidToken(t *testing.T) {
	f := newFixture(t)
	f.tokens.token = f.srv.IssueToken()

	f.sess.Init(ctx)

	user, err := f.sess.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if user.Email != "dev@poils.example" {
		t.Errorf("user = %+v", user)
	}
}

func TestInitWithRejectedTokenResolvesAnonymousQuietly(t *testing.T) {
	f := newFixture(t)
	f.tokens.token = "stale"

	f.sess.Init(ctx)

	if got := f.sess.State(); got != session.StateAnonymous {
		t.Fatalf("state = %v, want anonymous", got)
	}
	if f.tokens.Token() != "" {
		t.Error("rejected token should be discarded")
	}
	if len(f.notify.errors) != 0 {
		t.Errorf("init must not surface errors, got %v", f.notify.errors)
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	f := newFixture(t)
	f.sess.Init(ctx)

	if err := f.sess.Login(ctx, "dev@poils.example", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if got := f.sess.State(); got != session.StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", got)
	}
	if f.tokens.Token() == "" {
		t.Error("token should be persisted")
	}
	if len(f.notify.successes) != 1 || f.notify.successes[0] != "Login successful!" {
		t.Errorf("successes = %v", f.notify.successes)
	}
	if f.nav.toChat != 1 {
		t.Errorf("toChat = %d, want 1", f.nav.toChat)
	}
}

func TestLoginFailureNotifiesBackendReason(t *testing.T) {
	f := newFixture(t)
	f.sess.Init(ctx)

	err := f.sess.Login(ctx, "dev@poils.example", "wrong")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if len(f.notify.errors) != 1 || f.notify.errors[0] != "Invalid credentials" {
		t.Errorf("errors = %v", f.notify.errors)
	}
	if got := f.sess.State(); got != session.StateAnonymous {
		t.Errorf("state = %v, failed login must leave state untouched", got)
	}
}

func TestSignupEstablishesSession(t *testing.T) {
	f := newFixture(t)
	f.sess.Init(ctx)

	if err := f.sess.Signup(ctx, "New User", "new@poils.example", "s3cret"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, err := f.sess.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if user.Email != "new@poils.example" {
		t.Errorf("user = %+v", user)
	}
	if len(f.notify.successes) != 1 || f.notify.successes[0] != "Account created successfully!" {
		t.Errorf("successes = %v", f.notify.successes)
	}
}

func TestLogoutAlwaysEndsAnonymous(t *testing.T) {
	f := newFixture(t)
	f.sess.Init(ctx)
	if err := f.sess.Login(ctx, "dev@poils.example", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Backend rejects the logout; local state still ends anonymous.
	f.srv.RevokeAll()
	f.sess.Logout(ctx)

	if got := f.sess.State(); got != session.StateAnonymous {
		t.Fatalf("state = %v, want anonymous", got)
	}
	if f.tokens.Token() != "" {
		t.Error("token should be cleared")
	}
	if f.nav.toLogin == 0 {
		t.Error("logout should navigate to login")
	}
}

func TestBackendExpiryDropsSessionOnce(t *testing.T) {
	f := newFixture(t)
	f.sess.Init(ctx)
	if err := f.sess.Login(ctx, "dev@poils.example", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	f.srv.RevokeAll()
	if _, err := f.client.Chats.List(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}

	if got := f.sess.State(); got != session.StateAnonymous {
		t.Fatalf("state = %v, want anonymous after 401", got)
	}
	if f.tokens.Token() != "" {
		t.Error("token should be cleared after 401")
	}
	if f.nav.toLogin != 1 {
		t.Errorf("toLogin = %d, want exactly 1", f.nav.toLogin)
	}

	// A second unauthorized call must not bounce the user again.
	f.client.Chats.List(ctx)
	if f.nav.toLogin != 1 {
		t.Errorf("toLogin = %d after second 401, want 1", f.nav.toLogin)
	}
}
