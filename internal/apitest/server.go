// Package apitest runs an in-memory stand-in for the Poils backend. It
// implements the REST contract the client consumes — envelope responses,
// bearer auth, chats with assistant echoes, multipart document uploads — and
// records every request so tests can assert on what went over the wire.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r1cksync/poils-cli/internal/api"
)

// RecordedRequest captures one request for later assertions.
type RecordedRequest struct {
	Method    string
	Path      string
	Body      string
	Auth      string
	RequestID string
	// Form holds multipart fields (file content under "file", plus any
	// plain fields) when the request was multipart.
	Form map[string]string
}

// Server is the fake backend. All exported state is guarded by Mu.
type Server struct {
	*httptest.Server

	Mu       sync.Mutex
	Requests []RecordedRequest

	// ForceStatus maps "METHOD /path" to an HTTP status the next matching
	// request should fail with. The entry is consumed on use.
	ForceStatus map[string]int

	// Delay holds the handler for "METHOD /path" before responding, for
	// tests that need a request to stay in flight. Not consumed.
	Delay map[string]time.Duration

	users     map[string]credentials // by email
	tokens    map[string]string      // token -> user id
	chats     []*api.Chat
	documents []*api.Document
}

type credentials struct {
	password string
	user     api.User
}

// New starts a fake backend with one registered account
// (dev@poils.example / hunter2) and no chats or documents.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		ForceStatus: make(map[string]int),
		Delay:       make(map[string]time.Duration),
		users:       make(map[string]credentials),
		tokens:      make(map[string]string),
	}
	s.users["dev@poils.example"] = credentials{
		password: "hunter2",
		user: api.User{
			ID:        "user-1",
			Email:     "dev@poils.example",
			Name:      "Dev",
			Role:      "user",
			CreatedAt: time.Now().UTC(),
		},
	}

	r := chi.NewRouter()
	r.Use(s.record)

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/signup", s.handleSignup)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/api/auth/logout", s.handleLogout)
		r.Get("/api/auth/me", s.handleMe)

		r.Get("/api/chats", s.handleListChats)
		r.Post("/api/chats", s.handleCreateChat)
		r.Get("/api/chats/{id}", s.handleGetChat)
		r.Put("/api/chats/{id}", s.handleUpdateChat)
		r.Post("/api/chats/{id}/message", s.handleSendMessage)
		r.Delete("/api/chats/{id}", s.handleDeleteChat)

		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents", s.handleUploadDocument)
		r.Get("/api/documents/{id}", s.handleGetDocument)
		r.Delete("/api/documents/{id}", s.handleDeleteDocument)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// IssueToken registers a valid token for the seeded account and returns it.
func (s *Server) IssueToken() string {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	token := "tok-" + uuid.New().String()
	s.tokens[token] = "user-1"
	return token
}

// RevokeAll invalidates every issued token, so subsequent authenticated
// requests come back 401.
func (s *Server) RevokeAll() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.tokens = make(map[string]string)
}

// SeedChat installs a chat owned by the seeded account.
func (s *Server) SeedChat(title string, messages ...api.Message) *api.Chat {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	now := time.Now().UTC()
	chat := &api.Chat{
		ID:        "chat-" + uuid.New().String(),
		Title:     title,
		Messages:  append([]api.Message{}, messages...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(messages) > 0 {
		chat.LastMessage = messages[len(messages)-1].Content
	}
	chat.MessageCount = len(messages)
	s.chats = append([]*api.Chat{chat}, s.chats...)
	return chat
}

// ChatCount reports how many chats the fake backend holds.
func (s *Server) ChatCount() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return len(s.chats)
}

// LastRequest returns the most recent recorded request.
func (s *Server) LastRequest() RecordedRequest {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if len(s.Requests) == 0 {
		return RecordedRequest{}
	}
	return s.Requests[len(s.Requests)-1]
}

// --- middleware ---

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:    r.Method,
			Path:      r.URL.RequestURI(),
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-Id"),
		}

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				rec.Form = make(map[string]string)
				for k, vs := range r.MultipartForm.Value {
					if len(vs) > 0 {
						rec.Form[k] = vs[0]
					}
				}
				if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
					f, err := fhs[0].Open()
					if err == nil {
						data, _ := io.ReadAll(f)
						f.Close()
						rec.Form["file"] = string(data)
					}
				}
			}
		} else if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			rec.Body = string(data)
			r.Body = io.NopCloser(strings.NewReader(rec.Body))
		}

		s.Mu.Lock()
		s.Requests = append(s.Requests, rec)
		key := r.Method + " " + r.URL.Path
		status, forced := s.ForceStatus[key]
		if forced {
			delete(s.ForceStatus, key)
		}
		delay := s.Delay[key]
		s.Mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if forced {
			writeError(w, status, "forced failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.Mu.Lock()
		_, ok := s.tokens[auth[len(prefix):]]
		s.Mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- auth handlers ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.Mu.Lock()
	cred, ok := s.users[req.Email]
	s.Mu.Unlock()
	if !ok || cred.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := "tok-" + uuid.New().String()
	s.Mu.Lock()
	s.tokens[token] = cred.user.ID
	s.Mu.Unlock()

	writeData(w, map[string]any{"user": cred.user, "token": token})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.Mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.Mu.Unlock()
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	user := api.User{
		ID:        "user-" + uuid.New().String(),
		Email:     req.Email,
		Name:      req.Name,
		Role:      "user",
		CreatedAt: time.Now().UTC(),
	}
	s.users[req.Email] = credentials{password: req.Password, user: user}
	token := "tok-" + uuid.New().String()
	s.tokens[token] = user.ID
	s.Mu.Unlock()

	writeData(w, map[string]any{"user": user, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	s.Mu.Lock()
	delete(s.tokens, strings.TrimPrefix(auth, "Bearer "))
	s.Mu.Unlock()
	writeData(w, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.Mu.Lock()
	userID := s.tokens[auth]
	var user api.User
	for _, cred := range s.users {
		if cred.user.ID == userID {
			user = cred.user
		}
	}
	s.Mu.Unlock()
	writeData(w, map[string]any{"user": user})
}

// --- chat handlers ---

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	s.Mu.Lock()
	list := make([]api.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		summary := *c
		summary.Messages = nil // list view omits history
		list = append(list, summary)
	}
	s.Mu.Unlock()
	writeData(w, map[string]any{"chats": list})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	title := req.Title
	if title == "" {
		title = req.Message
		if len(title) > 40 {
			title = title[:40]
		}
	}

	now := time.Now().UTC()
	reply := assistantReply(req.Message)
	chat := &api.Chat{
		ID:    "chat-" + uuid.New().String(),
		Title: title,
		Messages: []api.Message{
			{Role: api.RoleUser, Content: req.Message, Timestamp: now},
			{Role: api.RoleAssistant, Content: reply, Timestamp: now},
		},
		LastMessage:  reply,
		MessageCount: 2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.Mu.Lock()
	s.chats = append([]*api.Chat{chat}, s.chats...)
	s.Mu.Unlock()

	writeData(w, map[string]any{"chat": chat})
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	s.Mu.Lock()
	chat := s.findChat(chi.URLParam(r, "id"))
	s.Mu.Unlock()
	if chat == nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeData(w, map[string]any{"chat": chat})
}

func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.Mu.Lock()
	chat := s.findChat(chi.URLParam(r, "id"))
	if chat != nil && req.Title != "" {
		chat.Title = req.Title
		chat.UpdatedAt = time.Now().UTC()
	}
	s.Mu.Unlock()
	if chat == nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeData(w, map[string]any{"chat": chat})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.Mu.Lock()
	chat := s.findChat(chi.URLParam(r, "id"))
	if chat == nil {
		s.Mu.Unlock()
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	now := time.Now().UTC()
	reply := assistantReply(req.Message)
	chat.Messages = append(chat.Messages,
		api.Message{Role: api.RoleUser, Content: req.Message, Timestamp: now},
		api.Message{Role: api.RoleAssistant, Content: reply, Timestamp: now},
	)
	chat.LastMessage = reply
	chat.MessageCount = len(chat.Messages)
	chat.UpdatedAt = now
	s.Mu.Unlock()

	writeData(w, map[string]any{"message": reply, "chat": chat})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.Mu.Lock()
	found := false
	kept := s.chats[:0]
	for _, c := range s.chats {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	s.chats = kept
	s.Mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeData(w, nil)
}

func (s *Server) findChat(id string) *api.Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// --- document handlers ---

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	s.Mu.Lock()
	list := make([]api.Document, 0, len(s.documents))
	for _, d := range s.documents {
		list = append(list, *d)
	}
	s.Mu.Unlock()
	writeData(w, map[string]any{"documents": list})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	fh := fhs[0]

	now := time.Now().UTC()
	doc := &api.Document{
		ID:           "doc-" + uuid.New().String(),
		UserID:       "user-1",
		ChatID:       r.FormValue("chatId"),
		FileName:     fh.Filename,
		OriginalName: fh.Filename,
		FileSize:     fh.Size,
		MimeType:     fh.Header.Get("Content-Type"),
		S3Key:        "uploads/" + fh.Filename,
		S3URL:        "https://s3.example/uploads/" + fh.Filename,
		Status:       api.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.Mu.Lock()
	s.documents = append(s.documents, doc)
	s.Mu.Unlock()

	writeData(w, map[string]any{"document": doc})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.Mu.Lock()
	var doc *api.Document
	for _, d := range s.documents {
		if d.ID == id {
			doc = d
		}
	}
	s.Mu.Unlock()
	if doc == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeData(w, map[string]any{"document": doc})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.Mu.Lock()
	found := false
	kept := s.documents[:0]
	for _, d := range s.documents {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	s.documents = kept
	s.Mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeData(w, nil)
}

func assistantReply(message string) string {
	return fmt.Sprintf("You said: %s", message)
}

// --- envelope helpers ---

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
