// Package cache keeps the last-fetched chat and document lists in a local
// SQLite database so list surfaces can paint before the network answers.
// The backend is the source of truth; entries here are advisory and
// replaced wholesale on every successful fetch.
package cache

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/r1cksync/poils-cli/internal/api"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite display cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "poils-cache.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// PutChats replaces the cached chat list for userID. Message history is
// never cached; only the list-view fields survive.
func (s *Store) PutChats(userID string, chats []api.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning chat cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cached_chats WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing chat cache: %w", err)
	}
	for i, chat := range chats {
		_, err := tx.Exec(`
			INSERT INTO cached_chats (user_id, id, position, title, last_message, message_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, chat.ID, i, chat.Title, chat.LastMessage, chat.MessageCount,
			chat.CreatedAt.UTC().Format(time.RFC3339), chat.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("caching chat %s: %w", chat.ID, err)
		}
	}
	return tx.Commit()
}

// Chats returns the cached chat list for userID in its original order.
func (s *Store) Chats(userID string) ([]api.Chat, error) {
	rows, err := s.db.Query(`
		SELECT id, title, last_message, message_count, created_at, updated_at
		FROM cached_chats WHERE user_id = ? ORDER BY position ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []api.Chat
	for rows.Next() {
		var c api.Chat
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Title, &c.LastMessage, &c.MessageCount, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// PutDocuments replaces the cached document list for userID.
func (s *Store) PutDocuments(userID string, docs []api.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning document cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cached_documents WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing document cache: %w", err)
	}
	for i, doc := range docs {
		_, err := tx.Exec(`
			INSERT INTO cached_documents (user_id, id, position, file_name, original_name, file_size, mime_type, status, chat_id, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, doc.ID, i, doc.FileName, doc.OriginalName, doc.FileSize,
			doc.MimeType, doc.Status, doc.ChatID, doc.ErrorMessage,
			doc.CreatedAt.UTC().Format(time.RFC3339), doc.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("caching document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Documents returns the cached document list for userID in its original
// order.
func (s *Store) Documents(userID string) ([]api.Document, error) {
	rows, err := s.db.Query(`
		SELECT id, file_name, original_name, file_size, mime_type, status, chat_id, error_message, created_at, updated_at
		FROM cached_documents WHERE user_id = ? ORDER BY position ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []api.Document
	for rows.Next() {
		var d api.Document
		var createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.FileName, &d.OriginalName, &d.FileSize, &d.MimeType, &d.Status, &d.ChatID, &d.ErrorMessage, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
