// Package document fetches source documents and turns them into bounded,
// model-sized text chunks.
package document

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrUnavailable     = errors.New("document storage unavailable")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrUnparseable     = errors.New("document could not be parsed")
)

const (
	TypePDF  = "pdf"
	TypeTXT  = "txt"
	TypeCSV  = "csv"
	TypeXLSX = "xlsx"
)

// Fetcher reads raw document bytes by storage key. Errors wrap ErrNotFound or
// ErrUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// TypeOf returns the lower-cased text after the final '.' of key, or "" when
// key has no '.'.
func TypeOf(key string) string {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(key[i+1:])
}

// Supported reports whether docType can be normalized.
func Supported(docType string) bool {
	switch docType {
	case TypePDF, TypeTXT, TypeCSV, TypeXLSX:
		return true
	}
	return false
}
