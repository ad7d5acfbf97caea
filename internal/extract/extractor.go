// Package extract turns uploaded documents into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatXLSX    Format = "xlsx"
	FormatText    Format = "text"
)

var ErrNoText = errors.New("no text content found")

// ExtractionError wraps a parser failure for one file.
type ExtractionError struct {
	File   string
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.File, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func IsExtractionError(err error) bool {
	var exErr *ExtractionError
	return errors.As(err, &exErr)
}

// Part is one independently labelled slice of a document, such as a
// spreadsheet sheet. Label is empty for single-part formats.
type Part struct {
	Label string
	Text  string
}

var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       FormatXLSX,
	"text/plain":    FormatText,
	"text/markdown": FormatText,
}

var extFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".xlsx": FormatXLSX,
	".txt":  FormatText,
	".md":   FormatText,
}

// FormatOf picks the parser by MIME type, falling back to the file
// extension when the MIME type is missing or generic.
func FormatOf(filename, mimeType string) Format {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if f, ok := mimeFormats[mt]; ok {
		return f
	}
	return extFormats[strings.ToLower(filepath.Ext(filename))]
}

func Supported(filename, mimeType string) bool {
	return FormatOf(filename, mimeType) != FormatUnknown
}

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the document text. Unsupported formats yield an empty
// string and no error.
func (e *Extractor) Extract(buf []byte, filename, mimeType string) (string, error) {
	parts, err := e.ExtractParts(buf, filename, mimeType)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}

func (e *Extractor) ExtractParts(buf []byte, filename, mimeType string) ([]Part, error) {
	format := FormatOf(filename, mimeType)

	var (
		parts []Part
		err   error
	)
	switch format {
	case FormatPDF:
		var text string
		text, err = extractPDF(buf)
		parts = single(text)
	case FormatDOCX:
		var text string
		text, err = extractDOCX(buf)
		parts = single(text)
	case FormatXLSX:
		parts, err = extractXLSX(buf)
	case FormatText:
		parts = single(string(buf))
	default:
		return nil, nil
	}
	if err != nil {
		return nil, &ExtractionError{File: filename, Format: format, Err: err}
	}
	return parts, nil
}

func single(text string) []Part {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Part{{Text: text}}
}
