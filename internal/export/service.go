package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// document is one rendered book handed to a converter.
type document struct {
	html  string
	data  TemplateData
	paper Paper
}

// filename names an artifact after the book: book-<number>-<title>-<lang>.
func (d document) filename(ext string) string {
	name := fmt.Sprintf("book-%d", d.data.Number)
	if title := sanitizeFilename(d.data.Title); title != "" {
		name += "-" + title
	}
	return name + "-" + d.data.Lang + "." + ext
}

type renderFunc func(ctx context.Context, doc document) (*Result, error)

// Service renders books and optionally uploads the artifact.
type Service struct {
	objects ObjectStore
	linkTTL time.Duration
	now     func() time.Time
	pdf     renderFunc
	docx    renderFunc
}

// NewService creates an export service. objects may be nil, in which case
// artifacts are only returned inline.
func NewService(objects ObjectStore, linkTTL time.Duration) *Service {
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &Service{
		objects: objects,
		linkTTL: linkTTL,
		now:     time.Now,
		pdf:     exportPDF,
		docx:    exportDOCX,
	}
}

// Uploads reports whether artifacts go to object storage.
func (s *Service) Uploads() bool {
	return s.objects != nil
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	data := newTemplateData(req.Book, req.Lang)
	html, err := RenderBookHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	paper := req.Paper
	if paper == "" {
		paper = PaperA4
	}
	doc := document{html: html, data: data, paper: paper}

	var result *Result
	switch req.Format {
	case FormatHTML, "":
		result = &Result{
			Data:     []byte(html),
			Filename: doc.filename("html"),
			MimeType: "text/html; charset=utf-8",
		}
	case FormatPDF:
		result, err = s.pdf(ctx, doc)
	case FormatDOCX:
		result, err = s.docx(ctx, doc)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
	if err != nil {
		return nil, err
	}

	if s.objects == nil {
		return result, nil
	}
	result.Key = fmt.Sprintf("exports/book-%d/%s-%s", req.Book.ID, s.now().UTC().Format("20060102T150405Z"), result.Filename)
	if err := s.objects.Put(ctx, result.Key, bytes.NewReader(result.Data), int64(len(result.Data)), result.MimeType); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.objects.PresignGet(ctx, result.Key, s.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("sign export link: %w", err)
	}
	result.URL = url
	return result, nil
}

// sanitizeFilename keeps the ASCII letters, digits and dashes of a title,
// capped at 50 characters.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}
