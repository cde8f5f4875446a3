package api

import (
	"time"
)

// Message roles as the backend reports them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Document processing states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// User is the authenticated identity as resolved by the backend.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Message is one entry of a conversation, ordered by insertion.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a conversation thread. List endpoints omit Messages and carry the
// denormalized LastMessage/MessageCount instead; the detail endpoint includes
// the full history. A nil Messages slice means "not fetched", an empty
// non-nil slice means "fetched and empty" — use HasMessages to tell them
// apart.
type Chat struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	MessageCount int       `json:"messageCount,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasMessages reports whether the message history was included in the
// response this Chat was decoded from.
func (c *Chat) HasMessages() bool {
	return c.Messages != nil
}

// Document is an uploaded file tracked through the backend's processing
// pipeline.
type Document struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	ChatID        string    `json:"chatId,omitempty"`
	FileName      string    `json:"fileName"`
	OriginalName  string    `json:"originalName"`
	FileSize      int64     `json:"fileSize"`
	MimeType      string    `json:"mimeType"`
	S3Key         string    `json:"s3Key"`
	S3URL         string    `json:"s3Url"`
	Status        string    `json:"status"`
	ExtractedText string    `json:"extractedText,omitempty"`
	ProcessedData any       `json:"processedData,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	SignedURL     string    `json:"signedUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
