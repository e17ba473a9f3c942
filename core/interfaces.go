// Package core defines the pipeline interfaces and records for PageMeta.
// Each collaborator of the fetch pipeline is a small, testable interface.
package core

import (
	"encoding/json"
	"net/http"

	"github.com/dyatlov/go-opengraph/opengraph"
)

// FetchOutcome is the terminal response accepted by the fetch pipeline.
type FetchOutcome struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the raw content-type header of the response.
func (o *FetchOutcome) ContentType() string {
	return o.Header.Get("Content-Type")
}

// Favicon is a <link rel="icon"> style reference.
type Favicon struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Sizes string `json:"sizes,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Heading represents a single heading found in the page.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// ImgTag is an <img> element found in the page.
type ImgTag struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// Metadata is the record returned to callers. Everything except AllowsEmbed
// and ContentType is produced by a MetadataExtractor.
type Metadata struct {
	RequestURL    string               `json:"requestUrl"`
	URL           string               `json:"url"`
	Canonical     string               `json:"canonical"`
	Lang          string               `json:"lang"`
	Charset       string               `json:"charset"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Image         string               `json:"image"`
	Favicons      []Favicon            `json:"favicons"`
	Author        string               `json:"author"`
	Keywords      string               `json:"keywords"`
	Source        string               `json:"source"`
	Price         string               `json:"price"`
	PriceCurrency string               `json:"priceCurrency"`
	Availability  string               `json:"availability"`
	Robots        string               `json:"robots"`
	JSONLD        []json.RawMessage    `json:"jsonld"`
	Headings      []Heading            `json:"headings"`
	ImgTags       []ImgTag             `json:"imgTags"`
	Meta          map[string]string    `json:"meta"`
	OpenGraph     *opengraph.OpenGraph `json:"openGraph,omitempty"`
	ResponseBody  string               `json:"responseBody,omitempty"`
	Markdown      string               `json:"markdown,omitempty"`
	AllowsEmbed   bool                 `json:"allowsEmbed"`
	ContentType   string               `json:"contentType"`
}

// AgentProvider hands out the transport that gates outbound connections for
// a URL. A nil result means "use the default transport".
type AgentProvider interface {
	Agent(rawURL string, opts *FilterOptions) http.RoundTripper
}

// CharsetResolver picks a charset label for a response body.
type CharsetResolver interface {
	Resolve(contentType string, body []byte) string
}

// Decoder turns raw bytes into text using the named charset.
type Decoder interface {
	Decode(body []byte, label string) (string, error)
}

// MetadataExtractor builds a metadata record from decoded page text.
type MetadataExtractor interface {
	Extract(requestURL, destinationURL, text string, opts Options) (*Metadata, error)
}

// ContentExtractor pulls the main content from raw HTML, stripping noise.
type ContentExtractor interface {
	Extract(html string) (string, error)
}

// Normalizer converts cleaned HTML into Markdown.
type Normalizer interface {
	Normalize(html, baseURL string) (string, error)
}

// Renderer converts a metadata record into a final output format.
type Renderer interface {
	Render(meta *Metadata) ([]byte, error)
	// Extension returns the file extension for this renderer (e.g. ".md", ".pdf").
	Extension() string
}
