package cache

import (
	"testing"
	"time"

	"github.com/r1cksync/poils-cli/internal/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChatsRoundTripPreservesOrder(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	in := []api.Chat{
		{ID: "chat-2", Title: "Newest", LastMessage: "reply", MessageCount: 4, CreatedAt: now, UpdatedAt: now},
		{ID: "chat-1", Title: "Older", MessageCount: 2, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
	}
	if err := store.PutChats("user-1", in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := store.Chats("user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("chats = %d, want 2", len(out))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Title != in[i].Title || out[i].MessageCount != in[i].MessageCount {
			t.Errorf("chat %d = %+v, want %+v", i, out[i], in[i])
		}
		if !out[i].UpdatedAt.Equal(in[i].UpdatedAt) {
			t.Errorf("chat %d updated at = %v, want %v", i, out[i].UpdatedAt, in[i].UpdatedAt)
		}
	}
}

func TestPutChatsReplacesWholesale(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutChats("user-1", []api.Chat{{ID: "chat-old", Title: "Old"}}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.PutChats("user-1", []api.Chat{{ID: "chat-new", Title: "New"}}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	out, err := store.Chats("user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 || out[0].ID != "chat-new" {
		t.Fatalf("chats = %+v, want only chat-new", out)
	}
}

func TestChatsAreScopedByUser(t *testing.T) {
	store := openTestStore(t)

	if err := store.PutChats("user-1", []api.Chat{{ID: "chat-1", Title: "Mine"}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := store.Chats("user-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("user-2 sees %d chats, want 0", len(out))
	}
}

func TestDocumentsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	in := []api.Document{
		{
			ID:           "doc-1",
			FileName:     "abc123.pdf",
			OriginalName: "lease.pdf",
			FileSize:     2048,
			MimeType:     "application/pdf",
			Status:       api.StatusCompleted,
			ChatID:       "chat-1",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           "doc-2",
			FileName:     "def456.jpg",
			OriginalName: "scan.jpg",
			FileSize:     512,
			MimeType:     "image/jpeg",
			Status:       api.StatusFailed,
			ErrorMessage: "unreadable scan",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	if err := store.PutDocuments("user-1", in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := store.Documents("user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("documents = %d, want 2", len(out))
	}
	if out[0].OriginalName != "lease.pdf" || out[0].Status != api.StatusCompleted {
		t.Errorf("doc 0 = %+v", out[0])
	}
	if out[1].ErrorMessage != "unreadable scan" {
		t.Errorf("doc 1 error = %q", out[1].ErrorMessage)
	}
}

func TestOpenOnDiskCreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if err := store.PutChats("user-1", []api.Chat{{ID: "chat-1", Title: "Persisted"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.Close()

	// Reopening runs migrations idempotently and sees the data.
	store, err = Open(dir)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer store.Close()
	out, err := store.Chats("user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Persisted" {
		t.Fatalf("chats = %+v", out)
	}
}
