// Package chunker splits composed documents into overlapping windows for embedding.
//
// Windows are measured in Unicode code points. Each window ends on the best boundary
// available inside its allowed range, preferring paragraph breaks, then line breaks,
// then sentence ends, then spaces, and cutting hard only when none exist.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/upb/rag-chatbot/services"
)

const (
	// DefaultChunkSize is the target window length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by adjacent windows.
	DefaultChunkOverlap = 200

	untitled = "Untitled"
)

// boundaries lists separator groups from most to least preferred.
var boundaries = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// Span is the half-open rune range [Start, End) of one chunk within its source text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in runes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Chunker produces deterministic overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Overlap must be non-negative and strictly smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("invalid chunk size %d", size), services.ErrInvalidChunkSize)
	}
	if overlap < 0 || overlap >= size {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("invalid chunk overlap %d for size %d", overlap, size), services.ErrInvalidChunkOverlap).
			WithDetail("chunk_size", size).
			WithDetail("chunk_overlap", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// ComposeDocument renders the text that is chunked for a source document.
func ComposeDocument(title, content string) string {
	if title == "" {
		title = untitled
	}
	return "Title: " + title + "\n\n" + content
}

// Chunk splits text into ordered chunks. Empty or whitespace-only text yields nil.
func (c *Chunker) Chunk(text string) []string {
	spans := c.Spans(text)
	if len(spans) == 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, string(runes[s.Start:s.End]))
	}
	return chunks
}

// Spans returns the rune ranges Chunk would emit. Windows holding only whitespace are
// dropped, so every non-whitespace rune is covered but blank runs may fall between spans.
func (c *Chunker) Spans(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= c.size {
		return []Span{{Start: 0, End: n}}
	}

	// Every window but the last must be long enough to satisfy the minimum length
	// and to move the next start forward past the overlap.
	minLen := c.size - c.overlap
	if minLen < c.overlap+1 {
		minLen = c.overlap + 1
	}

	var spans []Span
	start := 0
	for {
		if n-start <= c.size {
			if !isBlank(runes[start:n]) {
				spans = append(spans, Span{Start: start, End: n})
			}
			return spans
		}

		end := findBoundary(runes, start+minLen, start+c.size)
		if !isBlank(runes[start:end]) {
			spans = append(spans, Span{Start: start, End: end})
		}

		start = wordStart(runes, end-c.overlap, end)
	}
}

// findBoundary returns the largest end in [lo, hi] that follows a separator of the
// most preferred group present, or hi if no separator fits.
func findBoundary(runes []rune, lo, hi int) int {
	for _, group := range boundaries {
		best := -1
		for _, sep := range group {
			if end := lastSeparatorEnd(runes, []rune(sep), lo, hi); end > best {
				best = end
			}
		}
		if best >= 0 {
			return best
		}
	}
	return hi
}

// lastSeparatorEnd finds the last occurrence of sep whose end lies in [lo, hi].
func lastSeparatorEnd(runes, sep []rune, lo, hi int) int {
	for end := hi; end >= lo; end-- {
		p := end - len(sep)
		if p < 0 {
			break
		}
		if matchAt(runes, sep, p) {
			return end
		}
	}
	return -1
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func matchAt(runes, sep []rune, p int) bool {
	if p+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[p+i] != r {
			return false
		}
	}
	return true
}

// wordStart moves pos forward to the first word start before limit. When no word
// starts in [pos, limit) it returns pos unchanged.
func wordStart(runes []rune, pos, limit int) int {
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			continue
		}
		if i == 0 || unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return pos
}
