package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/mohammad-safakhou/glpisum/internal/helpers"
	"go.uber.org/zap"
)

// Source identifies one document a report result was derived from.
type Source struct {
	ID   string
	Type string
}

// Report is the content of one rendered summary.
type Report struct {
	Title   string
	Query   string
	Result  string
	Sources []Source
}

// page geometry, in inches
const (
	margin      = 1.0
	spacer      = 0.2
	smallSpacer = 0.1

	normalSize   = 10.0
	normalLeader = 12.0 / 72
	h1Size       = 18.0
	h1Leader     = 22.0 / 72
	h2Size       = 14.0
	h2Leader     = 18.0 / 72
)

// Renderer writes reports as US Letter PDFs using the core Helvetica fonts.
type Renderer struct {
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger.Named("report")}
}

// Render writes r as a PDF document to w.
func (rd *Renderer) Render(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "in", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(helpers.PlainText(s)) }

	pdf.SetTitle(helpers.PlainText(r.Title), true)
	pdf.SetCreator("glpisum", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", h1Size)
	pdf.MultiCell(0, h1Leader, text(r.Title), "", "L", false)
	pdf.Ln(spacer)

	pdf.SetFont("Helvetica", "B", normalSize)
	pdf.Write(normalLeader, "Query: ")
	pdf.SetFont("Helvetica", "", normalSize)
	pdf.Write(normalLeader, text(r.Query))
	pdf.Ln(normalLeader)
	pdf.Ln(spacer)

	pdf.SetFont("Helvetica", "B", normalSize)
	pdf.MultiCell(0, normalLeader, "Result:", "", "L", false)
	pdf.SetFont("Helvetica", "", normalSize)
	pdf.MultiCell(0, normalLeader, text(r.Result), "", "L", false)
	pdf.Ln(spacer)

	pdf.SetFont("Helvetica", "B", h2Size)
	pdf.MultiCell(0, h2Leader, "Source Information:", "", "L", false)
	pdf.SetFont("Helvetica", "", normalSize)
	for _, s := range r.Sources {
		pdf.MultiCell(0, normalLeader, "Source ID: "+orNA(text(s.ID)), "", "L", false)
		pdf.MultiCell(0, normalLeader, "Source Type: "+orNA(text(s.Type)), "", "L", false)
		pdf.Ln(smallSpacer)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// RenderFile renders r into a new file at path. On failure the partially
// written file is left for the caller to remove.
func (rd *Renderer) RenderFile(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := rd.Render(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	rd.logger.Debug("report written", zap.String("path", path))
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
