// Package chunker splits documents into verbatim, size-bounded chunks.
//
// Text is cut at the coarsest boundary that fits: paragraphs, then lines,
// then sentences, then words, then single characters. Separators stay attached
// to the piece before them, so concatenating the chunks of a document in index
// order yields the original text byte for byte. Sizes are counted in runes.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// DefaultSize is the maximum chunk length in characters.
const DefaultSize = 1000

// level is one rung of the separator hierarchy, coarsest first.
type level struct {
	name string
	sep  *regexp.Regexp // nil means split by rune count
}

var levels = []level{
	{name: "paragraph", sep: regexp.MustCompile(`\n{2,}`)},
	{name: "line", sep: regexp.MustCompile(`\n`)},
	{name: "sentence", sep: regexp.MustCompile(`[.!?]+\s+`)},
	{name: "word", sep: regexp.MustCompile(`\s+`)},
	{name: "char"},
}

// Recursive is a deterministic recursive character splitter. Safe for concurrent use.
type Recursive struct {
	size int
}

// New creates a splitter producing chunks of at most size characters.
func New(size int) (*Recursive, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidConfiguration)
	}
	return &Recursive{size: size}, nil
}

// Size returns the configured maximum chunk length.
func (r *Recursive) Size() int { return r.size }

// Split cuts doc into ordered chunks. Empty content yields no chunks.
func (r *Recursive) Split(doc domain.Document) []domain.Chunk {
	if doc.Content == "" {
		return nil
	}

	texts := merge(r.pieces(doc.Content, 0), r.size)

	chunks := make([]domain.Chunk, 0, len(texts))
	offset := 0
	line := 1
	for i, text := range texts {
		lineTo := line + strings.Count(strings.TrimSuffix(text, "\n"), "\n")
		chunks = append(chunks, domain.Chunk{
			Path:  doc.Path,
			Index: i,
			Text:  text,
			Span: domain.Span{
				Start:    offset,
				End:      offset + len(text),
				LineFrom: line,
				LineTo:   lineTo,
			},
		})
		offset += len(text)
		line += strings.Count(text, "\n")
	}
	return chunks
}

// pieces returns verbatim fragments of text, each at most r.size runes.
func (r *Recursive) pieces(text string, depth int) []string {
	if utf8.RuneCountInString(text) <= r.size {
		return []string{text}
	}

	lv := levels[depth]
	if lv.sep == nil {
		return splitRunes(text, r.size)
	}

	parts := splitAfter(text, lv.sep)
	if len(parts) == 1 {
		return r.pieces(text, depth+1)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) <= r.size {
			out = append(out, p)
			continue
		}
		out = append(out, r.pieces(p, depth+1)...)
	}
	return out
}

// splitAfter cuts text right after every separator match.
func splitAfter(text string, sep *regexp.Regexp) []string {
	var parts []string
	start := 0
	for _, m := range sep.FindAllStringIndex(text, -1) {
		if m[1] <= start {
			continue
		}
		parts = append(parts, text[start:m[1]])
		start = m[1]
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func splitRunes(text string, size int) []string {
	var parts []string
	for text != "" {
		n, cut := 0, len(text)
		for i := range text {
			if n == size {
				cut = i
				break
			}
			n++
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return parts
}

// merge greedily joins adjacent pieces while the result stays within size runes.
func merge(pieces []string, size int) []string {
	var (
		out     []string
		cur     strings.Builder
		curSize int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curSize > 0 && curSize+n > size {
			out = append(out, cur.String())
			cur.Reset()
			curSize = 0
		}
		cur.WriteString(p)
		curSize += n
	}
	if curSize > 0 {
		out = append(out, cur.String())
	}
	return out
}
