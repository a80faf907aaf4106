// Package chunker splits document text into bounded, sentence-aligned chunks
// sized for a single synthesis request.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// MaxChunkChars is the default upper bound on chunk length in characters.
// It keeps each request under the synthesis backend's safe request size.
const MaxChunkChars = 4000

// Chunk is one immutable slice of the source document.
type Chunk struct {
	Index  int
	Text   string
	Length int
}

// Split divides text into chunks of at most maxChars characters, breaking only
// at sentence boundaries. A maxChars of zero or less selects MaxChunkChars.
//
// Sentences are never split further, so a single sentence longer than
// maxChars becomes one oversized chunk. Whitespace between sentences is
// normalised to a single space; everything else is preserved in order.
func Split(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = MaxChunkChars
	}

	var chunks []Chunk
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   buf.String(),
			Length: bufLen,
		})
		buf.Reset()
		bufLen = 0
	}

	for _, sentence := range SplitSentences(text) {
		n := utf8.RuneCountInString(sentence)

		if bufLen > 0 && bufLen+1+n > maxChars {
			flush()
		}

		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += n
	}
	flush()

	return chunks
}

// SplitSentences breaks text into trimmed sentences. A sentence ends after a
// run of '.', '!' or '?'; the terminal punctuation stays with its sentence.
// Trailing text without terminal punctuation forms the last sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	emit := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !isTerminal(r) {
			continue
		}
		for i+1 < len(runes) && isTerminal(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		emit()
	}
	emit()

	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
