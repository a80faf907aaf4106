package documents

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/narrator/internal/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "docs", "documents.db"), "en-US", logging.New("error", "text"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Put(ctx, Document{ID: "guide", Title: "Guide", Text: "Original text.", Language: "fr"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.PutTranslation(ctx, "guide", "en-US", "Guide (EN)", "English text."); err != nil {
		t.Fatalf("PutTranslation() error = %v", err)
	}
	if err := s.PutTranslation(ctx, "guide", "de", "", "Deutscher Text."); err != nil {
		t.Fatalf("PutTranslation() error = %v", err)
	}
}

func TestStore_GetFallbackChain(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	tests := []struct {
		name      string
		preferred string
		wantText  string
		wantTitle string
		wantLang  string
	}{
		{"exact translation", "en-US", "English text.", "Guide (EN)", "en-us"},
		{"case and underscore", "EN_us", "English text.", "Guide (EN)", "en-us"},
		{"base language", "de-AT", "Deutscher Text.", "Guide", "de"},
		{"default language", "es", "English text.", "Guide (EN)", "en-us"},
		{"no preference", "", "English text.", "Guide (EN)", "en-us"},
		{"original language", "fr", "Original text.", "Guide", "fr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Get(context.Background(), "guide", tt.preferred)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Text != tt.wantText || got.Title != tt.wantTitle || got.Language != tt.wantLang {
				t.Errorf("Get(%q) = %+v", tt.preferred, got)
			}
		})
	}
}

func TestStore_GetUntranslated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, Document{ID: "memo", Title: "Memo", Text: "Only one version."}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "memo", "ja")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != "Only one version." || got.Translated {
		t.Errorf("Get() = %+v, want untranslated record", got)
	}
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing", "en"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.PutTranslation(ctx, "missing", "en", "", "text"); !errors.Is(err, ErrNotFound) {
		t.Errorf("PutTranslation() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_InvalidInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, Document{ID: "x", Text: "   "}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Put(blank) error = %v", err)
	}
	if err := s.Put(ctx, Document{Text: "text"}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Put(no id) error = %v", err)
	}
	if err := s.PutTranslation(ctx, "x", "", "", "text"); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("PutTranslation(no language) error = %v", err)
	}
}

func TestStore_PutReplacesAndDeleteCascades(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.Put(ctx, Document{ID: "guide", Title: "Guide v2", Text: "Revised.", Language: "fr"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "guide", "fr")
	if err != nil || got.Text != "Revised." {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	if err := s.Delete(ctx, "guide"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Put(ctx, Document{ID: "guide", Text: "Fresh."}); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "guide", "en-US")
	if err != nil {
		t.Fatal(err)
	}
	if got.Translated {
		t.Errorf("translations survived delete: %+v", got)
	}
}

func TestStore_Resolve(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)

	doc, err := s.Resolve(context.Background(), "guide", "de-AT")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if doc.ID != "guide" || doc.Title != "Guide" || doc.Text != "Deutscher Text." || doc.Language != "de" {
		t.Errorf("Resolve() = %+v", doc)
	}

	if _, err := s.Resolve(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}
}
