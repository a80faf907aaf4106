// Package documents stores narration sources and resolves localized variants.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/narrator/internal/narration"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no document has the requested ID.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument is returned when a document lacks an ID or text.
	ErrInvalidDocument = errors.New("document requires an id and text")
)

// Document is a stored narration source. Language is the language the
// untranslated text is written in.
type Document struct {
	ID        string
	Title     string
	Text      string
	Language  string
	CreatedAt time.Time
}

// Resolved is the variant returned by Get.
type Resolved struct {
	ID    string
	Title string
	Text  string
	// Language is the language of the returned text, empty when the
	// untranslated record was used and it has no language.
	Language string
	// Translated is true when a translation was used.
	Translated bool
}

// Store is a SQLite-backed document provider.
type Store struct {
	db              *sql.DB
	defaultLanguage string
	log             *slog.Logger
	clock           func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a private
// in-memory store. defaultLanguage is the second choice when the preferred
// translation is missing.
func Open(ctx context.Context, path, defaultLanguage string, log *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		db:              db,
		defaultLanguage: normalizeLanguage(defaultLanguage),
		log:             log.With("component", "documents"),
		clock:           time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS translations (
    document_id TEXT NOT NULL,
    language TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    PRIMARY KEY(document_id, language),
    FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init documents schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the untranslated record.
func (s *Store) Put(ctx context.Context, doc Document) error {
	if doc.ID == "" || strings.TrimSpace(doc.Text) == "" {
		return ErrInvalidDocument
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, title, body, language, created_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, body=excluded.body, language=excluded.language`,
		doc.ID, doc.Title, doc.Text, normalizeLanguage(doc.Language), created.UnixNano())
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	s.log.Debug("document stored", "document_id", doc.ID)
	return nil
}

// PutTranslation stores the variant of document id in language.
func (s *Store) PutTranslation(ctx context.Context, id, language, title, text string) error {
	language = normalizeLanguage(language)
	if id == "" || language == "" || strings.TrimSpace(text) == "" {
		return ErrInvalidDocument
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations(document_id, language, title, body)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(document_id, language) DO UPDATE SET title=excluded.title, body=excluded.body`,
		id, language, title, text)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("put translation %s/%s: %w", id, language, err)
	}
	return nil
}

// Delete removes a document and its translations.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get resolves document id for the preferred language. It tries the preferred
// translation, then its base language (de for de-AT), then the default
// language translation, and finally the untranslated record.
func (s *Store) Get(ctx context.Context, id, preferred string) (Resolved, error) {
	var doc Resolved
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, language FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Title, &doc.Text, &doc.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return Resolved{}, ErrNotFound
	}
	if err != nil {
		return Resolved{}, fmt.Errorf("get document %s: %w", id, err)
	}

	for _, lang := range candidates(preferred, s.defaultLanguage) {
		if lang == doc.Language {
			return doc, nil
		}
		var title, text string
		err := s.db.QueryRowContext(ctx,
			`SELECT title, body FROM translations WHERE document_id = ? AND language = ?`, id, lang).
			Scan(&title, &text)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return Resolved{}, fmt.Errorf("get translation %s/%s: %w", id, lang, err)
		}
		if title == "" {
			title = doc.Title
		}
		return Resolved{ID: id, Title: title, Text: text, Language: lang, Translated: true}, nil
	}
	return doc, nil
}

// Resolve is Get shaped as a narration document, for the API and bus.
func (s *Store) Resolve(ctx context.Context, id, language string) (narration.Document, error) {
	doc, err := s.Get(ctx, id, language)
	if err != nil {
		return narration.Document{}, err
	}
	return narration.Document{ID: doc.ID, Title: doc.Title, Text: doc.Text, Language: doc.Language}, nil
}

// candidates lists languages to try in order, without duplicates.
func candidates(preferred, fallback string) []string {
	var out []string
	add := func(lang string) {
		if lang == "" {
			return
		}
		for _, l := range out {
			if l == lang {
				return
			}
		}
		out = append(out, lang)
	}
	preferred = normalizeLanguage(preferred)
	add(preferred)
	if base, _, ok := strings.Cut(preferred, "-"); ok {
		add(base)
	}
	add(fallback)
	return out
}

func normalizeLanguage(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "_", "-")
}

func isForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
