package render

import (
	"strconv"
	"strings"

	"github.com/gaurav-prasanna/pagemeta/core"
)

type field struct {
	label string
	value string
}

// cardFields lists the non-empty scalar fields shown on Markdown and PDF
// cards, in display order.
func cardFields(meta *core.Metadata) []field {
	candidates := []field{
		{"URL", meta.URL},
		{"Requested", requestedURL(meta)},
		{"Canonical", meta.Canonical},
		{"Source", meta.Source},
		{"Author", meta.Author},
		{"Keywords", meta.Keywords},
		{"Language", meta.Lang},
		{"Charset", meta.Charset},
		{"Content type", meta.ContentType},
		{"Allows embed", strconv.FormatBool(meta.AllowsEmbed)},
		{"Price", strings.TrimSpace(meta.Price + " " + meta.PriceCurrency)},
		{"Availability", meta.Availability},
		{"Robots", meta.Robots},
	}
	if meta.OpenGraph != nil {
		candidates = append(candidates,
			field{"Type", meta.OpenGraph.Type},
			field{"Site", meta.OpenGraph.SiteName},
		)
	}

	out := make([]field, 0, len(candidates))
	for _, f := range candidates {
		if f.value != "" {
			out = append(out, f)
		}
	}
	return out
}

// requestedURL is shown only when a redirect moved the page.
func requestedURL(meta *core.Metadata) string {
	if meta.RequestURL == meta.URL {
		return ""
	}
	return meta.RequestURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
