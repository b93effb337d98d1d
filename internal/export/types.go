// Package export renders a published book to HTML, PDF or DOCX.
package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatHTML, FormatPDF, FormatDOCX:
		return f, nil
	case "":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", raw)
	}
}

// Localized holds the English and French renditions of a field.
type Localized struct {
	En string
	Fr string
}

// In returns the text for lang, falling back to the other locale.
func (l Localized) In(lang string) string {
	primary, secondary := l.En, l.Fr
	if lang == "fr" {
		primary, secondary = l.Fr, l.En
	}
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return secondary
}

// Book is the published content of one book, already ordered.
type Book struct {
	ID       int64
	Number   int
	Title    Localized
	Intro    Localized
	Chapters []Chapter
}

type Chapter struct {
	Number   int
	Position int
	Title    Localized
	Intro    Localized
	Sections []Section
}

type Section struct {
	OrderIndex int
	Title      Localized
	Intro      Localized
	Paragraphs []Paragraph
}

type Paragraph struct {
	Number  int
	Content Localized
}

// Request contains parameters for an export operation
type Request struct {
	Book   Book
	Format Format
	Lang   string // "en" or "fr"
	Paper  Paper  // PDF page size; A4 when empty
}

// Result contains the export output
type Result struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Key      string `json:"key,omitempty"`
	URL      string `json:"url,omitempty"`
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
