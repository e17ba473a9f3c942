package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/gaurav-prasanna/pagemeta/core"
)

// PDFRenderer renders a metadata record as a one-document PDF card.
// Images are not embedded.
type PDFRenderer struct{}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render lays out the card and returns the PDF bytes.
func (r *PDFRenderer) Render(meta *core.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("no metadata to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 8, tr(firstNonEmpty(meta.Title, meta.URL, meta.RequestURL)), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 5, tr("Source: "+meta.URL), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if meta.Description != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5.5, tr(meta.Description), "", "L", false)
		pdf.Ln(4)
	}

	for _, f := range cardFields(meta) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 5, tr(f.label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(f.value), "", "L", false)
	}

	if len(meta.Headings) > 0 {
		renderHeading(pdf, "Outline", 2)
		pdf.SetFont("Helvetica", "", 10)
		for _, h := range meta.Headings {
			indent := strings.Repeat("    ", max(h.Level-1, 0))
			pdf.MultiCell(0, 5, tr(indent+"- "+h.Text), "", "L", false)
		}
	}

	if meta.Markdown != "" {
		renderHeading(pdf, "Content", 2)
		renderMarkdown(pdf, tr, meta.Markdown)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Extension returns the file extension for PDF output.
func (r *PDFRenderer) Extension() string {
	return ".pdf"
}

var numberedItem = regexp.MustCompile(`^\d+\.\s`)

// renderMarkdown writes Markdown line by line: headings, fenced code,
// list items and paragraphs.
func renderMarkdown(pdf *gofpdf.Fpdf, tr func(string) string, markdown string) {
	inCodeBlock := false
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			pdf.Ln(2)
			continue
		}
		if inCodeBlock {
			pdf.SetFont("Courier", "", 9)
			pdf.SetFillColor(245, 245, 245)
			pdf.MultiCell(0, 4.5, tr(line), "", "L", true)
			continue
		}

		switch {
		case trimmed == "":
			pdf.Ln(3)
		case strings.HasPrefix(trimmed, "#"):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			renderHeading(pdf, tr(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))), level)
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr("- "+cleanInlineMarkdown(trimmed[2:])), "", "L", false)
		case numberedItem.MatchString(trimmed):
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(cleanInlineMarkdown(trimmed)), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(cleanInlineMarkdown(line)), "", "L", false)
		}
	}
}

// renderHeading sets the font size based on heading level and writes text.
func renderHeading(pdf *gofpdf.Fpdf, text string, level int) {
	sizes := map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 10}
	size, ok := sizes[level]
	if !ok {
		size = 10
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", size)
	pdf.MultiCell(0, size*0.6, cleanInlineMarkdown(text), "", "L", false)
	pdf.Ln(2)
}

var (
	italicRe = regexp.MustCompile(`(?:^|\s)\*([^*]+)\*(?:\s|$)`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
	linkRe   = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
)

// cleanInlineMarkdown strips inline Markdown formatting for PDF rendering.
func cleanInlineMarkdown(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = italicRe.ReplaceAllString(text, " $1 ")
	text = codeRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
