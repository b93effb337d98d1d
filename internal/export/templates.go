package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var bookTemplate = template.Must(
	template.New("book.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
	}).ParseFS(templateFS, "templates/book.html"),
)

// TemplateData holds data for book template rendering
type TemplateData struct {
	Lang     string
	Title    string
	Intro    string
	Number   int
	Chapters []TemplateChapter
}

type TemplateChapter struct {
	Number   int
	Title    string
	Intro    string
	Sections []TemplateSection
}

type TemplateSection struct {
	Title      string
	Intro      string
	Paragraphs []TemplateParagraph
}

type TemplateParagraph struct {
	Number  int
	Content string
}

func newTemplateData(book Book, lang string) TemplateData {
	if lang != "fr" {
		lang = "en"
	}
	data := TemplateData{
		Lang:   lang,
		Title:  book.Title.In(lang),
		Intro:  book.Intro.In(lang),
		Number: book.Number,
	}
	for _, ch := range book.Chapters {
		tc := TemplateChapter{Number: ch.Number, Title: ch.Title.In(lang), Intro: ch.Intro.In(lang)}
		for _, sec := range ch.Sections {
			ts := TemplateSection{Title: sec.Title.In(lang), Intro: sec.Intro.In(lang)}
			for _, p := range sec.Paragraphs {
				ts.Paragraphs = append(ts.Paragraphs, TemplateParagraph{Number: p.Number, Content: p.Content.In(lang)})
			}
			tc.Sections = append(tc.Sections, ts)
		}
		data.Chapters = append(data.Chapters, tc)
	}
	return data
}

// RenderBookHTML renders the book template with provided data
func RenderBookHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := bookTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
