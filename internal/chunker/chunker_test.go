package chunker

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func joinChunks(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// repeatedSentences builds count sentences of exactly size characters each.
func repeatedSentences(count, size int) string {
	sentence := strings.Repeat("a", size-1) + "."
	parts := make([]string, count)
	for i := range parts {
		parts[i] = sentence
	}
	return strings.Join(parts, " ")
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	text := "Hello there. How are you? I am fine!"

	chunks := Split(text, MaxChunkChars)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].Index != 0 {
		t.Errorf("chunk index = %d, want 0", chunks[0].Index)
	}
	if chunks[0].Length != utf8.RuneCountInString(text) {
		t.Errorf("chunk length = %d, want %d", chunks[0].Length, utf8.RuneCountInString(text))
	}
}

func TestSplit_FiveThousandCharactersTwoChunks(t *testing.T) {
	text := repeatedSentences(100, 50)
	if len(text) < 5000 {
		t.Fatalf("test document too short: %d", len(text))
	}

	chunks := Split(text, 4000)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Length > 4000 {
		t.Errorf("chunk 0 length = %d, exceeds 4000", chunks[0].Length)
	}
	if stripSpace(joinChunks(chunks)) != stripSpace(text) {
		t.Error("chunks do not reconstruct the source text")
	}
}

func TestSplit_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		if chunks := Split(text, 100); len(chunks) != 0 {
			t.Errorf("Split(%q) returned %d chunks, want 0", text, len(chunks))
		}
	}
}

func TestSplit_DefaultLimit(t *testing.T) {
	text := repeatedSentences(200, 50)

	chunks := Split(text, 0)

	for _, c := range chunks {
		if c.Length > MaxChunkChars {
			t.Errorf("chunk %d length %d exceeds default limit", c.Index, c.Length)
		}
	}
	if len(chunks) < 3 {
		t.Errorf("expected at least 3 chunks with default limit, got %d", len(chunks))
	}
}

func TestSplit_OversizedSentenceIsNotSubSplit(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	text := "Short one. " + long + " Another short one."

	chunks := Split(text, 50)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != strings.TrimSpace(long) {
		t.Errorf("oversized sentence was altered: %q", chunks[1].Text)
	}
	if chunks[1].Length <= 50 {
		t.Errorf("expected oversized chunk, got length %d", chunks[1].Length)
	}
}

func TestSplit_CoverageAndBound(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
	}{
		{"mixed punctuation", "Wait!! Really?! Yes... It is. Done", 12},
		{"newlines", "Line one.\n\nLine two!\nLine three?", 15},
		{"unicode", "Ça va? Très bien. Überall schön! 日本語の文です。End.", 20},
		{"no punctuation", "just a run of words without any terminal mark", 10},
		{"tight limit", repeatedSentences(30, 7), 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.maxChars)

			if stripSpace(joinChunks(chunks)) != stripSpace(tt.text) {
				t.Errorf("coverage mismatch:\n got %q\nwant %q", joinChunks(chunks), tt.text)
			}

			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d has index %d", i, c.Index)
				}
				if c.Length != utf8.RuneCountInString(c.Text) {
					t.Errorf("chunk %d length %d != rune count %d", i, c.Length, utf8.RuneCountInString(c.Text))
				}
				if c.Length > tt.maxChars && len(SplitSentences(c.Text)) > 1 {
					t.Errorf("chunk %d (%d chars) exceeds limit and holds more than one sentence", i, c.Length)
				}
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"Hey?!? Ok...", []string{"Hey?!?", "Ok..."}},
		{"trailing text", []string{"trailing text"}},
		{"  spaced.   out.  ", []string{"spaced.", "out."}},
		{"", nil},
	}

	for _, tt := range tests {
		got := SplitSentences(tt.text)
		if len(got) != len(tt.want) {
			t.Errorf("SplitSentences(%q) = %q, want %q", tt.text, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitSentences(%q)[%d] = %q, want %q", tt.text, i, got[i], tt.want[i])
			}
		}
	}
}
