package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL mirrors the 7-day cookie expiry the product uses.
const TokenTTL = 7 * 24 * time.Hour

// TokenStore persists the bearer token between runs. It satisfies
// api.TokenStore.
type TokenStore interface {
	Token() string
	Save(token string, expiresAt time.Time) error
	Clear() error
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileTokenStore keeps the token in a 0600 JSON file, the CLI's equivalent
// of the browser cookie.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// DefaultTokenPath is $XDG_CONFIG_HOME/poils/token.json.
func DefaultTokenPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "poils", "token.json")
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Token returns the stored token, or "" when none is stored or the stored
// one has expired. Expired tokens are removed on read.
func (s *FileTokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return ""
	}
	if !st.ExpiresAt.IsZero() && time.Now().After(st.ExpiresAt) {
		os.Remove(s.path)
		return ""
	}
	return st.Token
}

// Save writes the token to disk, creating the parent directory as needed.
func (s *FileTokenStore) Save(token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	data, err := json.Marshal(storedToken{Token: token, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the persisted token. Missing files are not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TokenClaims is what the client can read out of the backend's JWT without
// verifying it (the signing key lives server-side).
type TokenClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// PeekClaims decodes token as an unverified JWT for display purposes only.
// Opaque (non-JWT) tokens return an error; callers must treat that as
// "nothing to show", not as an invalid session.
func PeekClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("not a decodable JWT: %w", err)
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}
