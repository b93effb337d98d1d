package export

import (
	"context"
	"fmt"
	"html"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Paper is the page size a printed book is laid out on.
type Paper string

const (
	PaperA4     Paper = "a4"
	PaperLetter Paper = "letter"
)

// ParsePaper accepts "a4" or "letter"; empty selects A4.
func ParsePaper(raw string) (Paper, error) {
	switch p := Paper(strings.ToLower(strings.TrimSpace(raw))); p {
	case PaperA4, PaperLetter:
		return p, nil
	case "":
		return PaperA4, nil
	default:
		return "", fmt.Errorf("unsupported paper: %s", raw)
	}
}

// pageSetup is a printable page in inches.
type pageSetup struct {
	width  float64
	height float64
	margin float64
}

func (p Paper) setup() pageSetup {
	if p == PaperLetter {
		return pageSetup{width: 8.5, height: 11, margin: 0.75}
	}
	return pageSetup{width: 8.27, height: 11.69, margin: 0.75}
}

// pageLabels are the running header and footer Chrome stamps on every page.
// Chrome fills the pageNumber and totalPages spans itself.
func pageLabels(data TemplateData) (header, footer string) {
	const style = `font-family: Georgia, serif; font-size: 8px; color: #555; width: 100%; margin: 0 0.75in;`
	label := "Book"
	if data.Lang == "fr" {
		label = "Livre"
	}
	title := html.EscapeString(data.Title)
	header = fmt.Sprintf(`<div lang="%s" style="%s">%s %d · %s</div>`, data.Lang, style, label, data.Number, title)
	footer = fmt.Sprintf(`<div style="%s text-align: right;"><span class="pageNumber"></span> / <span class="totalPages"></span></div>`, style)
	return header, footer
}

// exportPDF prints the rendered book with headless Chrome on the book's
// paper, stamping its number and title on every page.
func exportPDF(parent context.Context, doc document) (*Result, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
		}
	}

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", doc.data.Lang),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()
	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	setup := doc.paper.setup()
	header, footer := pageLabels(doc.data)

	var pdfData []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc.html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(setup.width).
				WithPaperHeight(setup.height).
				WithMarginTop(setup.margin).
				WithMarginBottom(setup.margin).
				WithMarginLeft(setup.margin).
				WithMarginRight(setup.margin).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(header).
				WithFooterTemplate(footer).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print book %d to pdf: %w", doc.data.Number, err)
	}

	return &Result{
		Data:     pdfData,
		Filename: doc.filename("pdf"),
		MimeType: "application/pdf",
	}, nil
}
