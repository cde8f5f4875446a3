// Package session owns the client-side authentication lifecycle: one
// explicitly constructed Session object per program run, moving through
// initializing → anonymous | authenticated and back.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/r1cksync/poils-cli/internal/api"
)

// State is the session lifecycle position.
type State int

const (
	StateInitializing State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

var (
	// ErrNotInitialized means Current was called before Init completed —
	// a caller wiring bug, reported instead of panicking.
	ErrNotInitialized = errors.New("session: not initialized")
	// ErrNotAuthenticated means no user is logged in.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// Notifier receives the single user-visible notification each failure is
// converted into.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator abstracts "go to the chat surface" / "go to the login surface"
// for whichever frontend hosts the session (CLI prints a hint, TUI switches
// screens).
type Navigator interface {
	ToChat()
	ToLogin()
}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Error(string)   {}

type noopNavigator struct{}

func (noopNavigator) ToChat()  {}
func (noopNavigator) ToLogin() {}

// Session is the single source of truth for "is someone logged in, and as
// whom". It is constructed at program start and torn down with the program.
type Session struct {
	client *api.Client
	tokens TokenStore
	notify Notifier
	nav    Navigator
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
	user  *api.User
}

// Options are the optional session collaborators.
type Options struct {
	Notifier  Notifier
	Navigator Navigator
	Logger    *slog.Logger
}

// New builds a Session in the initializing state and registers the global
// 401 hook on the client: an expired session anywhere drops the user to the
// login surface.
func New(client *api.Client, tokens TokenStore, opts Options) *Session {
	s := &Session{
		client: client,
		tokens: tokens,
		notify: opts.Notifier,
		nav:    opts.Navigator,
		logger: opts.Logger,
		now:    time.Now,
		state:  StateInitializing,
	}
	if s.notify == nil {
		s.notify = noopNotifier{}
	}
	if s.nav == nil {
		s.nav = noopNavigator{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	client.OnUnauthorized(s.expire)
	return s
}

// SetNotifier swaps the notification sink, e.g. when a command hands the
// session from terminal output to a full-screen surface.
func (s *Session) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		n = noopNotifier{}
	}
	s.notify = n
}

// SetNavigator swaps the navigation sink, see SetNotifier.
func (s *Session) SetNavigator(n Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		n = noopNavigator{}
	}
	s.nav = n
}

func (s *Session) notifier() Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notify
}

func (s *Session) navigator() Navigator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

// Init resolves the persisted token, if any, into an identity. Any failure
// of the identity check — network, expired token, backend error — discards
// the token and resolves to anonymous without surfacing the error: this runs
// on every start, including ones that never need auth.
func (s *Session) Init(ctx context.Context) {
	token := s.tokens.Token()
	if token == "" {
		s.setState(StateAnonymous, nil)
		return
	}

	user, err := s.client.Auth.Me(ctx)
	if err != nil {
		s.logger.Debug("identity check failed, resolving anonymous", "error", err)
		if clearErr := s.tokens.Clear(); clearErr != nil {
			s.logger.Warn("clearing stale token", "error", clearErr)
		}
		s.setState(StateAnonymous, nil)
		return
	}
	s.setState(StateAuthenticated, user)
}

// Login authenticates, persists the token with a 7-day expiry, and moves to
// the chat surface. On failure the user is notified once and the error is
// returned unchanged so callers can react; state is untouched.
func (s *Session) Login(ctx context.Context, email, password string) error {
	creds, err := s.client.Auth.Login(ctx, email, password)
	if err != nil {
		s.notifier().Error(failureMessage(err, "Login failed"))
		return err
	}
	return s.establish(creds, "Login successful!")
}

// Signup creates an account and authenticates with the same contract as
// Login.
func (s *Session) Signup(ctx context.Context, name, email, password string) error {
	creds, err := s.client.Auth.Signup(ctx, name, email, password)
	if err != nil {
		s.notifier().Error(failureMessage(err, "Signup failed"))
		return err
	}
	return s.establish(creds, "Account created successfully!")
}

func (s *Session) establish(creds *api.Credentials, successMsg string) error {
	if err := s.tokens.Save(creds.Token, s.now().Add(TokenTTL)); err != nil {
		s.notifier().Error("Could not persist session")
		return err
	}
	user := creds.User
	s.setState(StateAuthenticated, &user)
	s.notifier().Success(successMsg)
	s.navigator().ToChat()
	return nil
}

// Logout invalidates the backend session best-effort, then always clears
// local state and returns to the login surface — even when the remote call
// fails.
func (s *Session) Logout(ctx context.Context) {
	if err := s.client.Auth.Logout(ctx); err != nil {
		s.logger.Warn("backend logout failed, clearing local session anyway", "error", err)
	}
	if err := s.tokens.Clear(); err != nil {
		s.logger.Warn("clearing token", "error", err)
	}
	s.setState(StateAnonymous, nil)
	s.notifier().Success("Logged out successfully")
	s.navigator().ToLogin()
}

// expire handles a backend 401: the api.Client has already cleared the
// token; drop the in-memory identity and navigate to login.
func (s *Session) expire() {
	s.setState(StateAnonymous, nil)
	s.navigator().ToLogin()
}

// Current returns the authenticated user, or a sentinel describing why there
// is none.
func (s *Session) Current() (api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateInitializing:
		return api.User{}, ErrNotInitialized
	case StateAuthenticated:
		return *s.user, nil
	default:
		return api.User{}, ErrNotAuthenticated
	}
}

// State reports the lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State, user *api.User) {
	s.mu.Lock()
	s.state = state
	s.user = user
	s.mu.Unlock()
}

// failureMessage prefers the backend-reported error string over the generic
// fallback.
func failureMessage(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr.Reason
	}
	return fallback
}
