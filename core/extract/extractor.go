// Package extract builds metadata records from decoded HTML.
//
// MetadataExtractor reads document-level metadata (title, description,
// social-card tags, canonical URL, icons, JSON-LD). ContentExtractor isolates
// the readable part of a page for the optional Markdown rendition by:
//  1. Removing noise elements (nav, footer, scripts, forms, etc.)
//  2. Picking the best content container (<main>, <article>, or <body>)
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed before the main content is taken.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "footer", "header", "aside",
	"iframe", "video", "audio",
	"svg", "canvas",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement", ".cookie-banner",
	"[role=navigation]", "[aria-hidden=true]",
}

// containerSelectors are tried in order; the first match wins.
var containerSelectors = []string{"main", "[role=main]", "article", "body"}

// ContentExtractor strips noise from HTML and returns the main content fragment.
type ContentExtractor struct{}

// NewContentExtractor creates a ContentExtractor.
func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Extract returns the outer HTML of the page's main content container.
func (e *ContentExtractor) Extract(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return mainContent(doc)
}

func mainContent(doc *goquery.Document) (string, error) {
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	for _, sel := range containerSelectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		result, err := goquery.OuterHtml(found.First())
		if err != nil {
			return "", fmt.Errorf("serializing content: %w", err)
		}
		return result, nil
	}
	return "", fmt.Errorf("no content container found in HTML")
}
