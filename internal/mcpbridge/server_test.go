package mcpbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/apitest"
	"github.com/r1cksync/poils-cli/internal/session"
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

func newTestDeps(t *testing.T) (Deps, *apitest.Server) {
	t.Helper()

	srv := apitest.New(t)
	tokens := &memTokens{token: srv.IssueToken()}
	client, err := api.New(api.Options{BaseURL: srv.URL, Tokens: tokens})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	sess := session.New(client, tokens, session.Options{})
	sess.Init(context.Background())

	return Deps{Client: client, Session: sess}, srv
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestListChats(t *testing.T) {
	deps, srv := newTestDeps(t)
	srv.SeedChat("Lease questions", api.Message{
		Role: api.RoleUser, Content: "hi", Timestamp: time.Now().UTC(),
	})
	handler := mcpListChats(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_chats", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var chats []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &chats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(chats) != 1 || chats[0].Title != "Lease questions" {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}

func TestGetChat_RequiresID(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpGetChat(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_chat", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result without chat_id")
	}
}

func TestSendMessage_StartsNewChat(t *testing.T) {
	deps, srv := newTestDeps(t)
	handler := mcpSendMessage(deps)

	result, err := handler(context.Background(), makeCallToolRequest("send_message", map[string]interface{}{
		"message": "what does my rent agreement say",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var out struct {
		ChatID string `json:"chat_id"`
		Reply  string `json:"reply"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.ChatID == "" || out.Reply == "" {
		t.Fatalf("expected chat id and reply, got %+v", out)
	}
	if srv.ChatCount() != 1 {
		t.Fatalf("backend has %d chats, want 1", srv.ChatCount())
	}
}

func TestSendMessage_AppendsToExistingChat(t *testing.T) {
	deps, srv := newTestDeps(t)
	seeded := srv.SeedChat("Lease questions", api.Message{
		Role: api.RoleUser, Content: "hi", Timestamp: time.Now().UTC(),
	})
	handler := mcpSendMessage(deps)

	result, err := handler(context.Background(), makeCallToolRequest("send_message", map[string]interface{}{
		"message": "and the deposit?",
		"chat_id": seeded.ID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if srv.ChatCount() != 1 {
		t.Fatalf("appending must not create a chat, backend has %d", srv.ChatCount())
	}
}

func TestListDocuments_Empty(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpListDocuments(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_documents", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "[]" && got != "null" {
		var docs []json.RawMessage
		if err := json.Unmarshal([]byte(got), &docs); err != nil || len(docs) != 0 {
			t.Fatalf("expected empty list, got %s", got)
		}
	}
}

func TestSessionResource(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := mcpResourceSession(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "poils://session"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected one resource, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var out struct {
		State string `json:"state"`
		User  *struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		t.Fatalf("failed to parse resource: %v", err)
	}
	if out.State != "authenticated" || out.User == nil || out.User.Email != "dev@poils.example" {
		t.Fatalf("unexpected session resource: %s", tc.Text)
	}
}
