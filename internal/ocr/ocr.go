// Package ocr provides the client for the external OCR service and helpers
// for working with its per-page output.
package ocr

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrTransient marks provider failures worth retrying (network errors,
// 429 and 5xx responses). Everything else is permanent.
var ErrTransient = errors.New("transient OCR provider error")

// Result is the output of one OCR pass over a document.
type Result struct {
	NPages     int
	Blocks     []byte   // raw blocks JSON array
	PageTexts  []string // one entry per page, 1-based order
	PageImages [][]byte // rasterized PNG per page
}

// Text joins the per-page text with form feeds, the canonical whole-document
// text representation.
func (r *Result) Text() string {
	return strings.Join(r.PageTexts, "\f")
}

// preTextExtensions are formats that already carry their text; documents in
// these formats skip the OCR provider entirely.
var preTextExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// IsPreText reports whether a file name denotes a pre-text format.
func IsPreText(fileName string) bool {
	return preTextExtensions[strings.ToLower(filepath.Ext(fileName))]
}
