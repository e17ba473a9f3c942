package extract

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"github.com/gaurav-prasanna/pagemeta/core"
	"github.com/gaurav-prasanna/pagemeta/core/normalize"
)

// MetadataExtractor implements core.MetadataExtractor.
type MetadataExtractor struct {
	content    core.ContentExtractor
	normalizer core.Normalizer
}

// NewMetadataExtractor creates a MetadataExtractor with the default content
// extractor and Markdown normalizer.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{
		content:    NewContentExtractor(),
		normalizer: normalize.New(),
	}
}

// Extract builds the metadata record for a decoded page. requestURL is the
// URL the caller asked for, destinationURL the one that finally answered.
func (e *MetadataExtractor) Extract(requestURL, destinationURL, text string, opts core.Options) (*core.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("parsing OpenGraph: %w", err)
	}

	if destinationURL == "" {
		destinationURL = requestURL
	}
	base, _ := url.Parse(destinationURL)
	tags := metaTags(doc)

	meta := &core.Metadata{
		RequestURL:    requestURL,
		URL:           destinationURL,
		Canonical:     resolve(base, attr(doc, `link[rel="canonical"]`, "href")),
		Lang:          attr(doc, "html", "lang"),
		Charset:       documentCharset(doc),
		Title:         firstNonEmpty(collapse(doc.Find("head title").First().Text()), og.Title, tags["twitter:title"]),
		Description:   truncate(firstNonEmpty(tags["description"], og.Description, tags["twitter:description"]), opts.DescriptionLength),
		Image:         pageImage(doc, og, tags, base, opts.SecureImages()),
		Favicons:      favicons(doc, base),
		Author:        tags["author"],
		Keywords:      tags["keywords"],
		Price:         firstNonEmpty(tags["product:price:amount"], tags["og:price:amount"]),
		PriceCurrency: firstNonEmpty(tags["product:price:currency"], tags["og:price:currency"]),
		Availability:  firstNonEmpty(tags["product:availability"], tags["og:availability"]),
		Robots:        tags["robots"],
		JSONLD:        jsonLD(doc),
		Headings:      headings(doc),
		ImgTags:       imgTags(doc, base),
		Meta:          tags,
		OpenGraph:     og,
	}
	if base != nil {
		meta.Source = base.Host
	}

	if opts.IncludeResponseBody {
		meta.ResponseBody = text
	}
	if opts.IncludeMarkdown {
		md, err := e.markdown(text, destinationURL)
		if err != nil {
			return nil, err
		}
		meta.Markdown = md
	}
	return meta, nil
}

// markdown renders the main content of the page as Markdown.
func (e *MetadataExtractor) markdown(text, baseURL string) (string, error) {
	content, err := e.content.Extract(text)
	if err != nil {
		return "", fmt.Errorf("extracting main content: %w", err)
	}
	md, err := e.normalizer.Normalize(content, baseURL)
	if err != nil {
		return "", fmt.Errorf("normalizing content: %w", err)
	}
	return md, nil
}

// metaTags maps every <meta> name, property or itemprop (lowercased) to its
// content. The first occurrence of a key wins.
func metaTags(doc *goquery.Document) map[string]string {
	tags := make(map[string]string)
	doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		key := firstNonEmpty(s.AttrOr("name", ""), s.AttrOr("property", ""), s.AttrOr("itemprop", ""))
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		if _, seen := tags[key]; seen {
			return
		}
		tags[key] = strings.TrimSpace(s.AttrOr("content", ""))
	})
	return tags
}

// documentCharset returns the charset the document declares for itself.
func documentCharset(doc *goquery.Document) string {
	if cs := attr(doc, "meta[charset]", "charset"); cs != "" {
		return strings.ToLower(cs)
	}
	var cs string
	doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "content-type") {
			return true
		}
		if _, params, err := mime.ParseMediaType(s.AttrOr("content", "")); err == nil {
			cs = strings.ToLower(params["charset"])
		}
		return false
	})
	return cs
}

// pageImage picks the preview image: og:image, twitter:image, then
// <link rel="image_src">.
func pageImage(doc *goquery.Document, og *opengraph.OpenGraph, tags map[string]string, base *url.URL, secure bool) string {
	var image string
	if len(og.Images) > 0 {
		image = firstNonEmpty(og.Images[0].URL, og.Images[0].SecureURL)
	}
	image = firstNonEmpty(image, tags["twitter:image"], tags["twitter:image:src"], attr(doc, `link[rel="image_src"]`, "href"))
	if image == "" {
		return ""
	}
	image = resolve(base, image)
	if secure && strings.HasPrefix(image, "http:") {
		image = "https:" + strings.TrimPrefix(image, "http:")
	}
	return image
}

func favicons(doc *goquery.Document, base *url.URL) []core.Favicon {
	var icons []core.Favicon
	doc.Find(`link[rel*="icon"][href]`).Each(func(_ int, s *goquery.Selection) {
		icons = append(icons, core.Favicon{
			Rel:   s.AttrOr("rel", ""),
			Href:  resolve(base, s.AttrOr("href", "")),
			Sizes: s.AttrOr("sizes", ""),
			Type:  s.AttrOr("type", ""),
		})
	})
	return icons
}

func headings(doc *goquery.Document) []core.Heading {
	var out []core.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if text == "" {
			return
		}
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		out = append(out, core.Heading{Level: level, Text: text})
	})
	return out
}

func imgTags(doc *goquery.Document, base *url.URL) []core.ImgTag {
	var out []core.ImgTag
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		out = append(out, core.ImgTag{
			Src: resolve(base, src),
			Alt: strings.TrimSpace(s.AttrOr("alt", "")),
		})
	})
	return out
}

// jsonLD returns every well-formed JSON-LD block; malformed ones are skipped.
func jsonLD(doc *goquery.Document) []json.RawMessage {
	var out []json.RawMessage
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !json.Valid([]byte(raw)) {
			return
		}
		out = append(out, json.RawMessage(raw))
	})
	return out
}

func attr(doc *goquery.Document, selector, name string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr(name, ""))
}

// resolve makes href absolute against base. Unparsable input is returned
// unchanged.
func resolve(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
