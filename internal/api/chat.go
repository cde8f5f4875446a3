package api

import (
	"context"
	"net/url"
)

// ChatService wraps the /api/chats endpoints.
type ChatService struct {
	c *Client
}

type createChatRequest struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
}

// UpdateChatRequest carries the mutable chat fields; zero fields are omitted.
type UpdateChatRequest struct {
	Message string `json:"message,omitempty"`
	Title   string `json:"title,omitempty"`
	Role    string `json:"role,omitempty"`
}

type sendMessageRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId,omitempty"`
}

// SendMessageResult is the reply to a message append: the assistant's answer
// plus the refreshed chat.
type SendMessageResult struct {
	Message string `json:"message"`
	Chat    Chat   `json:"chat"`
}

// List fetches the caller's chats. Entries carry lastMessage/messageCount
// but not the full message history.
func (s *ChatService) List(ctx context.Context) ([]Chat, error) {
	resp, err := s.c.get(ctx, "/api/chats")
	if err != nil {
		return nil, err
	}
	var data struct {
		Chats []Chat `json:"chats"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return data.Chats, nil
}

// Get fetches one chat including its message history.
func (s *ChatService) Get(ctx context.Context, id string) (*Chat, error) {
	resp, err := s.c.get(ctx, "/api/chats/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var data struct {
		Chat Chat `json:"chat"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.Chat, nil
}

// Create starts a new conversation seeded with message. Title is optional;
// the backend derives one when empty.
func (s *ChatService) Create(ctx context.Context, message, title string) (*Chat, error) {
	resp, err := s.c.post(ctx, "/api/chats", createChatRequest{Message: message, Title: title})
	if err != nil {
		return nil, err
	}
	var data struct {
		Chat Chat `json:"chat"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.Chat, nil
}

// Update changes chat metadata or content.
func (s *ChatService) Update(ctx context.Context, id string, req UpdateChatRequest) (*Chat, error) {
	resp, err := s.c.put(ctx, "/api/chats/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	var data struct {
		Chat Chat `json:"chat"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.Chat, nil
}

// SendMessage appends a message to an existing chat and returns the
// assistant's reply. documentID optionally scopes the question to one
// uploaded document.
func (s *ChatService) SendMessage(ctx context.Context, id, message, documentID string) (*SendMessageResult, error) {
	resp, err := s.c.post(ctx, "/api/chats/"+url.PathEscape(id)+"/message",
		sendMessageRequest{Message: message, DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	var result SendMessageResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a chat.
func (s *ChatService) Delete(ctx context.Context, id string) error {
	resp, err := s.c.delete(ctx, "/api/chats/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}
