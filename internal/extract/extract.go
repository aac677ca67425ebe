// Package extract produces positioned, font-annotated spans from source
// documents: PDFs, Word documents, and span archives.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"galley/internal/doc"
)

// Source yields one document's spans in reading order.
type Source interface {
	Extract(path string) (*doc.Document, error)
}

// ForFile returns the span source for a filename. The logger receives
// per-span warnings (malformed archive spans, unreadable pages).
func ForFile(filename string, log *slog.Logger) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return &PDFSource{Log: log}, nil
	case ".docx":
		return &DocxSource{}, nil
	case ".json":
		return &ArchiveSource{Log: log}, nil
	default:
		return nil, fmt.Errorf("unsupported source format: %s", filepath.Ext(filename))
	}
}

// IsSupportedExtension reports whether the filename has a recognized
// source extension.
func IsSupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".json":
		return true
	}
	return false
}

func logOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
