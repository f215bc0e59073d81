// Package upload performs file-level validation of recipient CSV uploads
// before the import pipeline runs: extension, size ceiling, encoding and
// a coarse structural sniff. The importer re-validates encoding and
// structure itself and does not trust this gate.
package upload

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrBadExtension = errors.New("please upload a .csv file")
	ErrTooLarge     = errors.New("csv file too large")
	ErrNotUTF8      = errors.New("csv file must be UTF-8 encoded")
	ErrEmpty        = errors.New("csv file appears to be empty")
	ErrNotCSV       = errors.New("csv file does not appear to be in CSV format")
)

// DefaultMaxSize is the upload size ceiling (2 MiB)
const DefaultMaxSize = 2 * 1024 * 1024

type Gatekeeper struct {
	maxSize int64
}

func NewGatekeeper(maxSize int64) *Gatekeeper {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Gatekeeper{maxSize: maxSize}
}

// Check validates an uploaded file. Content is the full upload; size is
// checked against the configured ceiling before anything else so callers
// can pass a bounded reader's output directly.
func (g *Gatekeeper) Check(filename string, size int64, content []byte) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return ErrBadExtension
	}

	if size > g.maxSize {
		return fmt.Errorf("%w (max %d bytes, got %d)", ErrTooLarge, g.maxSize, size)
	}

	if !utf8.Valid(content) {
		return ErrNotUTF8
	}

	text := string(content)
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}

	// Coarse sniff: a CSV of more than one column has commas or tabs.
	if !strings.ContainsAny(text, ",\t") {
		return ErrNotCSV
	}

	return nil
}

// MaxSize returns the configured upload ceiling
func (g *Gatekeeper) MaxSize() int64 {
	return g.maxSize
}
