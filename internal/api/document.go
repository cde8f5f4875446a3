package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// DocumentService wraps the /api/documents endpoints.
type DocumentService struct {
	c *Client
}

// List fetches the caller's documents.
func (s *DocumentService) List(ctx context.Context) ([]Document, error) {
	resp, err := s.c.get(ctx, "/api/documents")
	if err != nil {
		return nil, err
	}
	var data struct {
		Documents []Document `json:"documents"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return data.Documents, nil
}

// Get fetches one document, including processing status and any extracted
// text.
func (s *DocumentService) Get(ctx context.Context, id string) (*Document, error) {
	resp, err := s.c.get(ctx, "/api/documents/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var data struct {
		Document Document `json:"document"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.Document, nil
}

// Upload sends one file as a multipart request. The chatId field is written
// only when chatID is non-empty. Success means the upload was accepted;
// processing continues asynchronously on the backend.
func (s *DocumentService) Upload(ctx context.Context, file io.Reader, filename, chatID string) (*Document, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filename, err)
	}
	if chatID != "" {
		if err := w.WriteField("chatId", chatID); err != nil {
			return nil, fmt.Errorf("building multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.baseURL+"/api/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.c.send(req)
	if err != nil {
		return nil, err
	}
	var data struct {
		Document Document `json:"document"`
	}
	if err := decode(resp, &data); err != nil {
		return nil, err
	}
	return &data.Document, nil
}

// Delete removes a document and its stored file.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	resp, err := s.c.delete(ctx, "/api/documents/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}
