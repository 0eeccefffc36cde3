// Package loader reads a directory of text and PDF documents into memory.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".pdf"}

// Extractor turns the raw bytes of a file into document text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(content []byte) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(content []byte) (string, error) { return f(content) }

// PlainText returns the file content unchanged.
var PlainText = ExtractorFunc(func(content []byte) (string, error) {
	return string(content), nil
})

// Loader walks a file tree and returns matching files as documents.
// Document paths are slash-separated and relative to the tree root.
// Files are decoded by the extractor registered for their extension,
// or read as plain text when none is.
type Loader struct {
	fsys       fs.FS
	exts       map[string]struct{}
	extractors map[string]Extractor
	logger     *zap.Logger
}

// New creates a Loader rooted at dir.
func New(dir string, logger *zap.Logger) *Loader {
	return NewFS(os.DirFS(dir), logger)
}

// NewFS creates a Loader over an arbitrary file system.
func NewFS(fsys fs.FS, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		fsys:       fsys,
		extractors: map[string]Extractor{".pdf": PDF},
		logger:     logger,
	}
	return l.WithExtensions(DefaultExtensions...)
}

// WithExtensions replaces the accepted file extensions. Matching is case-insensitive.
func (l *Loader) WithExtensions(exts ...string) *Loader {
	l.exts = make(map[string]struct{}, len(exts))
	for _, e := range exts {
		l.exts[normalizeExt(e)] = struct{}{}
	}
	return l
}

// WithExtractor registers e for ext and accepts that extension.
func (l *Loader) WithExtractor(ext string, e Extractor) *Loader {
	ext = normalizeExt(ext)
	l.extractors[ext] = e
	l.exts[ext] = struct{}{}
	return l
}

func normalizeExt(e string) string {
	e = strings.ToLower(e)
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}

// Load returns every matching file in lexical path order. Hidden directories
// are skipped. Empty files are loaded too; chunking yields nothing for them.
// A file that cannot be read or extracted fails the whole load.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if _, ok := l.exts[ext]; !ok {
			return nil
		}
		content, err := fs.ReadFile(l.fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		ex, ok := l.extractors[ext]
		if !ok {
			ex = PlainText
		}
		text, err := ex.Extract(content)
		if err != nil {
			return fmt.Errorf("extract %s: %w", p, err)
		}
		docs = append(docs, domain.Document{Path: p, Content: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	l.logger.Info("Documents loaded", zap.Int("count", len(docs)))
	return docs, nil
}
