package render

import (
	"fmt"
	"strings"

	"github.com/gaurav-prasanna/pagemeta/core"
)

// MarkdownRenderer writes a metadata card: the title as a heading, the
// description as a quote, a field list and, when present, the page content.
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render builds the Markdown card for meta.
func (r *MarkdownRenderer) Render(meta *core.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("no metadata to render")
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "# %s\n\n", firstNonEmpty(meta.Title, meta.URL, meta.RequestURL))
	if meta.Description != "" {
		fmt.Fprintf(&buf, "> %s\n\n", strings.ReplaceAll(meta.Description, "\n", " "))
	}
	if meta.Image != "" {
		fmt.Fprintf(&buf, "![%s](%s)\n\n", escapeBrackets(meta.Title), meta.Image)
	}

	for _, f := range cardFields(meta) {
		fmt.Fprintf(&buf, "- **%s:** %s\n", f.label, f.value)
	}

	if len(meta.Headings) > 0 {
		buf.WriteString("\n## Outline\n\n")
		for _, h := range meta.Headings {
			fmt.Fprintf(&buf, "%s- %s\n", strings.Repeat("  ", max(h.Level-1, 0)), h.Text)
		}
	}

	if meta.Markdown != "" {
		buf.WriteString("\n---\n\n")
		buf.WriteString(strings.TrimSpace(meta.Markdown))
		buf.WriteString("\n")
	}
	return []byte(buf.String()), nil
}

// Extension returns the file extension for Markdown output.
func (r *MarkdownRenderer) Extension() string {
	return ".md"
}

func escapeBrackets(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
