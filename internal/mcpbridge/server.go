// Package mcpbridge exposes the authenticated backend session over the
// Model Context Protocol, so an MCP-capable assistant can browse chats and
// documents and send messages on the user's behalf.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/session"
)

// Deps holds the collaborators the bridge serves from. The client must
// carry a valid token; tools answer with an error result otherwise.
type Deps struct {
	Client  *api.Client
	Session *session.Session
}

// NewServer registers every tool and resource on a stdio-ready MCP server.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"poils",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Poils — chat with your Hindi documents through the Poils backend."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_chats",
			mcp.WithDescription("List the user's conversations, most recent first."),
		),
		mcpListChats(deps),
	)

	s.AddTool(
		mcp.NewTool("get_chat",
			mcp.WithDescription("Fetch one conversation including its full message history."),
			mcp.WithString("chat_id", mcp.Description("Conversation identifier"), mcp.Required()),
		),
		mcpGetChat(deps),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a message. Appends to an existing conversation when chat_id is given, starts a new one otherwise. Returns the assistant reply."),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
			mcp.WithString("chat_id", mcp.Description("Conversation to append to; omit to start a new one")),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List the user's uploaded documents with their processing status."),
		),
		mcpListDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("get_document",
			mcp.WithDescription("Fetch one document's metadata, including extracted-text status and any processing error."),
			mcp.WithString("document_id", mcp.Description("Document identifier"), mcp.Required()),
		),
		mcpGetDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"poils://session",
			"Session",
			mcp.WithResourceDescription("Current session state and signed-in user as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSession(deps),
	)

	return s
}

// ServeStdio blocks serving the bridge on stdin/stdout.
func ServeStdio(deps Deps) error {
	return server.ServeStdio(NewServer(deps))
}

type chatSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	LastMessage  string `json:"last_message,omitempty"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

func mcpListChats(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chats, err := deps.Client.Chats.List(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list chats: %v", err)), nil
		}

		summaries := make([]chatSummary, len(chats))
		for i, c := range chats {
			summaries[i] = chatSummary{
				ID:           c.ID,
				Title:        c.Title,
				LastMessage:  c.LastMessage,
				MessageCount: c.MessageCount,
				UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
			}
		}

		return mcpJSON(summaries)
	}
}

func mcpGetChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("chat_id")
		if err != nil {
			return mcpError("chat_id is required"), nil
		}

		chat, err := deps.Client.Chats.Get(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load chat: %v", err)), nil
		}

		type message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			Timestamp string `json:"timestamp"`
		}
		out := struct {
			ID       string    `json:"id"`
			Title    string    `json:"title"`
			Messages []message `json:"messages"`
		}{ID: chat.ID, Title: chat.Title}
		for _, m := range chat.Messages {
			out.Messages = append(out.Messages, message{
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.Timestamp.Format(time.RFC3339),
			})
		}

		return mcpJSON(out)
	}
}

func mcpSendMessage(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		chatID := req.GetString("chat_id", "")

		if chatID == "" {
			chat, err := deps.Client.Chats.Create(ctx, text, "")
			if err != nil {
				return mcpError(fmt.Sprintf("failed to start chat: %v", err)), nil
			}
			reply := ""
			if n := len(chat.Messages); n > 0 && chat.Messages[n-1].Role == api.RoleAssistant {
				reply = chat.Messages[n-1].Content
			}
			return mcpJSON(map[string]string{"chat_id": chat.ID, "reply": reply})
		}

		result, err := deps.Client.Chats.SendMessage(ctx, chatID, text, "")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to send message: %v", err)), nil
		}
		return mcpJSON(map[string]string{"chat_id": chatID, "reply": result.Message})
	}
}

type documentSummary struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Status       string `json:"status"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
	ChatID       string `json:"chat_id,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func documentToSummary(d api.Document) documentSummary {
	return documentSummary{
		ID:           d.ID,
		OriginalName: d.OriginalName,
		Status:       d.Status,
		FileSize:     d.FileSize,
		MimeType:     d.MimeType,
		ChatID:       d.ChatID,
		Error:        d.ErrorMessage,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

func mcpListDocuments(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Client.Documents.List(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		summaries := make([]documentSummary, len(docs))
		for i, d := range docs {
			summaries[i] = documentToSummary(d)
		}
		return mcpJSON(summaries)
	}
}

func mcpGetDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		doc, err := deps.Client.Documents.Get(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load document: %v", err)), nil
		}
		return mcpJSON(documentToSummary(*doc))
	}
}

func mcpResourceSession(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out := struct {
			State string    `json:"state"`
			User  *api.User `json:"user,omitempty"`
		}{State: deps.Session.State().String()}
		if user, err := deps.Session.Current(); err == nil {
			out.User = &user
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
