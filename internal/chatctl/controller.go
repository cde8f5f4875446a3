// Package chatctl owns the list of conversations and the active
// conversation, mediating between presentation surfaces and the chat
// service. The backend stays authoritative: local list edits (prepend on
// create, filter on delete) hold only until the next full refresh.
package chatctl

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/r1cksync/poils-cli/internal/api"
)

// ErrSendInFlight rejects a send while another one is outstanding. There is
// no queue; the caller repeats the action.
var ErrSendInFlight = errors.New("chatctl: a send is already in flight")

// Notifier receives the single user-visible notification each failure is
// converted into.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Error(string)   {}

// Cache is the optional display cache the controller keeps warm. Failures
// are logged, never surfaced: cached data is advisory.
type Cache interface {
	PutChats(userID string, chats []api.Chat) error
	Chats(userID string) ([]api.Chat, error)
	PutDocuments(userID string, docs []api.Document) error
	Documents(userID string) ([]api.Document, error)
}

// Controller mediates between presentation and the chat/document services.
type Controller struct {
	client *api.Client
	notify Notifier
	cache  Cache
	userID string
	logger *slog.Logger

	mu        sync.Mutex
	chats     []api.Chat
	documents []api.Document
	active    *api.Chat
	loading   bool
	sending   bool
}

// Options are the optional controller collaborators.
type Options struct {
	Notifier Notifier
	Cache    Cache
	// UserID keys cache entries; required when Cache is set.
	UserID string
	Logger *slog.Logger
}

func New(client *api.Client, opts Options) *Controller {
	c := &Controller{
		client: client,
		notify: opts.Notifier,
		cache:  opts.Cache,
		userID: opts.UserID,
		logger: opts.Logger,
		// Loading until the first LoadChats completes, so hosts don't
		// redirect or render an empty list during the initial fetch.
		loading: true,
	}
	if c.notify == nil {
		c.notify = noopNotifier{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// LoadChats fetches the full chat list and replaces the local one. On
// failure the prior list is left untouched and the user is notified. The
// loading flag clears either way.
func (c *Controller) LoadChats(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	chats, err := c.client.Chats.List(ctx)
	if err != nil {
		c.notify.Error("Failed to load chats")
		return err
	}

	c.mu.Lock()
	c.chats = chats
	c.mu.Unlock()

	c.cacheChats(chats)
	return nil
}

// LoadCached fills the chat and document lists from the display cache
// without touching the network. Used for first paint and offline listing;
// a miss leaves state empty.
func (c *Controller) LoadCached() {
	if c.cache == nil {
		return
	}
	chats, err := c.cache.Chats(c.userID)
	if err != nil {
		c.logger.Debug("chat cache read failed", "error", err)
		return
	}
	docs, err := c.cache.Documents(c.userID)
	if err != nil {
		c.logger.Debug("document cache read failed", "error", err)
		docs = nil
	}

	c.mu.Lock()
	c.chats = chats
	c.documents = docs
	c.mu.Unlock()
}

// CreateChat seeds a brand-new conversation with message. On success the
// returned chat is prepended to the list and made active. Returns nil after
// notifying on failure.
func (c *Controller) CreateChat(ctx context.Context, message string) *api.Chat {
	chat, err := c.client.Chats.Create(ctx, message, "")
	if err != nil {
		c.notify.Error("Failed to create chat")
		return nil
	}

	c.mu.Lock()
	c.chats = append([]api.Chat{*chat}, c.chats...)
	c.active = chat
	c.mu.Unlock()

	c.cacheChats(c.Chats())
	return chat
}

// SelectChat fetches the full detail for id (including message history) and
// makes it active. On failure the previous active chat is unchanged.
func (c *Controller) SelectChat(ctx context.Context, id string) error {
	chat, err := c.client.Chats.Get(ctx, id)
	if err != nil {
		c.notify.Error("Failed to load chat")
		return err
	}

	c.mu.Lock()
	c.active = chat
	c.mu.Unlock()
	return nil
}

// SendMessage routes text to the right endpoint: chat creation when no chat
// is active, message append otherwise. After an append the active chat's
// detail is re-fetched so the assistant reply shows up. At most one send is
// in flight; further sends are rejected with ErrSendInFlight until it
// completes.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	active := c.active
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	if active == nil {
		if chat := c.CreateChat(ctx, text); chat == nil {
			return errors.New("chat creation failed")
		}
		return nil
	}

	if _, err := c.client.Chats.SendMessage(ctx, active.ID, text, ""); err != nil {
		c.notify.Error("Failed to send message")
		return err
	}
	// Refresh the detail; a failure here is already notified by SelectChat
	// but the send itself succeeded.
	if err := c.SelectChat(ctx, active.ID); err != nil {
		c.logger.Debug("post-send refresh failed", "chat", active.ID, "error", err)
	}
	return nil
}

// DeleteChat removes a chat. On success it disappears from the local list;
// the active chat is cleared only when it was the one deleted. No optimistic
// removal happens, so failure needs no rollback.
func (c *Controller) DeleteChat(ctx context.Context, id string) error {
	if err := c.client.Chats.Delete(ctx, id); err != nil {
		c.notify.Error("Failed to delete chat")
		return err
	}

	c.mu.Lock()
	kept := c.chats[:0]
	for _, chat := range c.chats {
		if chat.ID != id {
			kept = append(kept, chat)
		}
	}
	c.chats = kept
	if c.active != nil && c.active.ID == id {
		c.active = nil
	}
	c.mu.Unlock()

	c.notify.Success("Chat deleted")
	c.cacheChats(c.Chats())
	return nil
}

// Refresh reloads the chat and document lists concurrently and replaces
// local state with the authoritative server lists, ending any provisional
// local edits.
func (c *Controller) Refresh(ctx context.Context) error {
	var (
		chats []api.Chat
		docs  []api.Document
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		chats, err = c.client.Chats.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = c.client.Documents.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.notify.Error("Failed to refresh")
		return err
	}

	c.mu.Lock()
	c.chats = chats
	c.documents = docs
	c.mu.Unlock()

	c.cacheChats(chats)
	c.cacheDocuments(docs)
	return nil
}

// Chats returns a copy of the current list.
func (c *Controller) Chats() []api.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Chat(nil), c.chats...)
}

// Documents returns a copy of the current document list.
func (c *Controller) Documents() []api.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Document(nil), c.documents...)
}

// Active returns the currently selected chat, or nil.
func (c *Controller) Active() *api.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	chat := *c.active
	return &chat
}

// ClearActive deselects the current chat (the sidebar's "new chat"
// affordance).
func (c *Controller) ClearActive() {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
}

// Loading reports whether the initial chat list fetch is still outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

func (c *Controller) cacheChats(chats []api.Chat) {
	if c.cache == nil {
		return
	}
	if err := c.cache.PutChats(c.userID, chats); err != nil {
		c.logger.Debug("chat cache write failed", "error", err)
	}
}

func (c *Controller) cacheDocuments(docs []api.Document) {
	if c.cache == nil {
		return
	}
	if err := c.cache.PutDocuments(c.userID, docs); err != nil {
		c.logger.Debug("document cache write failed", "error", err)
	}
}
