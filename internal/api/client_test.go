package api_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/apitest"
)

type memTokens struct{ token string }

func (m *memTokens) Token() string { return m.token }

func (m *memTokens) Save(token string, _ time.Time) error {
	m.token = token
	return nil
}

func (m *memTokens) Clear() error {
	m.token = ""
	return nil
}

var ctx = context.Background()

func newClient(t *testing.T, srv *apitest.Server, tokens api.TokenStore) *api.Client {
	t.Helper()
	client, err := api.New(api.Options{BaseURL: srv.URL, Tokens: tokens})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return client
}

func TestRequestCarriesBearerAndRequestID(t *testing.T) {
	srv := apitest.New(t)
	tokens := &memTokens{token: srv.IssueToken()}
	client := newClient(t, srv, tokens)

	if _, err := client.Chats.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}

	last := srv.LastRequest()
	if want := "Bearer " + tokens.token; last.Auth != want {
		t.Errorf("Authorization = %q, want %q", last.Auth, want)
	}
	if _, err := uuid.Parse(last.RequestID); err != nil {
		t.Errorf("X-Request-Id %q is not a UUID: %v", last.RequestID, err)
	}
}

func TestBackendFailureSurfacesReason(t *testing.T) {
	srv := apitest.New(t)
	tokens := &memTokens{token: srv.IssueToken()}
	client := newClient(t, srv, tokens)
	srv.ForceStatus["GET /api/chats"] = 500

	_, err := client.Chats.List(ctx)
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, want *api.Error", err)
	}
	if apiErr.StatusCode != 500 || apiErr.Reason != "forced failure" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestLoginRejectionIsUnauthorized(t *testing.T) {
	srv := apitest.New(t)
	tokens := &memTokens{}
	client := newClient(t, srv, tokens)

	_, err := client.Auth.Login(ctx, "dev@poils.example", "wrong")
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if tokens.token != "" {
		t.Error("failed login must not store a token")
	}
}

func TestLoginReturnsCredentials(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{})

	creds, err := client.Auth.Login(ctx, "dev@poils.example", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if creds.Token == "" {
		t.Error("expected a token")
	}
	if creds.User.Email != "dev@poils.example" {
		t.Errorf("user = %+v", creds.User)
	}
}

func TestExpiredTokenClearedAndHookFiredOnce(t *testing.T) {
	srv := apitest.New(t)
	tokens := &memTokens{token: "stale-token"}
	client := newClient(t, srv, tokens)

	fired := 0
	client.OnUnauthorized(func() { fired++ })

	if _, err := client.Chats.List(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if tokens.token != "" {
		t.Error("rejected token should be cleared")
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}

	// Further unauthorized calls find no held token and stay quiet.
	if _, err := client.Chats.List(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times after second call, want 1", fired)
	}
}

func TestCreateChatEchoesAssistantReply(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{token: srv.IssueToken()})

	chat, err := client.Chats.Create(ctx, "hello there", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !chat.HasMessages() || len(chat.Messages) != 2 {
		t.Fatalf("messages = %v", chat.Messages)
	}
	if chat.Messages[0].Role != api.RoleUser || chat.Messages[1].Role != api.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", chat.Messages[0].Role, chat.Messages[1].Role)
	}
}

func TestListChatsOmitsHistory(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{token: srv.IssueToken()})
	srv.SeedChat("Lease", api.Message{Role: api.RoleUser, Content: "hi", Timestamp: time.Now().UTC()})

	chats, err := client.Chats.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("chats = %d, want 1", len(chats))
	}
	if chats[0].HasMessages() {
		t.Error("list entries must not carry message history")
	}
	if chats[0].MessageCount != 1 {
		t.Errorf("message count = %d, want 1", chats[0].MessageCount)
	}
}

func TestUploadSendsMultipartFile(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{token: srv.IssueToken()})

	doc, err := client.Documents.Upload(ctx, strings.NewReader("%PDF-1.4 test"), "lease.pdf", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.OriginalName != "lease.pdf" {
		t.Errorf("original name = %q", doc.OriginalName)
	}

	last := srv.LastRequest()
	if last.Form["file"] != "%PDF-1.4 test" {
		t.Errorf("file field = %q", last.Form["file"])
	}
	if _, ok := last.Form["chatId"]; ok {
		t.Error("chatId must be omitted when empty")
	}
}

func TestUploadAttachesChat(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{token: srv.IssueToken()})
	seeded := srv.SeedChat("Lease")

	if _, err := client.Documents.Upload(ctx, strings.NewReader("data"), "scan.jpg", seeded.ID); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got := srv.LastRequest().Form["chatId"]; got != seeded.ID {
		t.Errorf("chatId = %q, want %q", got, seeded.ID)
	}
}

func TestDeleteChatRemovesIt(t *testing.T) {
	srv := apitest.New(t)
	client := newClient(t, srv, &memTokens{token: srv.IssueToken()})
	seeded := srv.SeedChat("Lease")

	if err := client.Chats.Delete(ctx, seeded.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if srv.ChatCount() != 0 {
		t.Fatalf("backend still has %d chats", srv.ChatCount())
	}
}

func TestTransportErrorMentionsBackend(t *testing.T) {
	client, err := api.New(api.Options{BaseURL: "http://127.0.0.1:1", Tokens: &memTokens{}, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	_, err = client.Chats.List(ctx)
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if !strings.Contains(err.Error(), "backend not reachable") {
		t.Errorf("error %q should mention reachability", err)
	}
}
