package domain

import "fmt"

// Document is a unit of source text. Path is unique within an ingestion run.
type Document struct {
	Path    string
	Content string
}

// Span locates a chunk inside its document.
// Start/End are byte offsets (End exclusive); LineFrom/LineTo are 1-based and inclusive.
type Span struct {
	Start    int
	End      int
	LineFrom int
	LineTo   int
}

// Chunk is a contiguous, verbatim slice of a document. Identity is (Path, Index).
type Chunk struct {
	Path  string
	Index int
	Text  string
	Span  Span
}

// ID returns the index record id for this chunk.
func (c Chunk) ID() string {
	return RecordID(c.Path, c.Index)
}

// RecordID builds the deterministic record id "{path}-{index}".
// Re-ingesting the same path overwrites the same ids.
func RecordID(path string, index int) string {
	return fmt.Sprintf("%s-%d", path, index)
}
