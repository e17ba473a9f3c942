package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/ptr"

	"github.com/gaurav-prasanna/pagemeta/core"
)

const articlePage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>  Example
    Article </title>
  <meta name="description" content="A short description of the article.">
  <meta name="author" content="Jane Doe">
  <meta name="keywords" content="go, html, metadata">
  <meta name="robots" content="index, follow">
  <meta property="og:title" content="OG Title">
  <meta property="og:type" content="article">
  <meta property="og:image" content="http://cdn.example.com/cover.png">
  <meta property="og:site_name" content="Example Site">
  <meta name="twitter:card" content="summary_large_image">
  <meta property="product:price:amount" content="9.99">
  <meta property="product:price:currency" content="EUR">
  <link rel="canonical" href="/articles/1">
  <link rel="icon" href="/favicon.ico" type="image/x-icon">
  <link rel="apple-touch-icon" href="/touch.png" sizes="180x180">
  <script type="application/ld+json">{"@type": "Article", "headline": "Example"}</script>
  <script type="application/ld+json">{not json</script>
</head>
<body>
  <nav>Home | About</nav>
  <main>
    <h1>Example <em>Article</em></h1>
    <p>Body text with a <a href="/more">link</a>.</p>
    <h2>Details</h2>
    <img src="/img/a.png" alt="A picture">
    <img src="">
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	e := NewMetadataExtractor()
	meta, err := e.Extract("http://short.ly/a", "https://www.example.com/articles/1?ref=x", articlePage, core.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "http://short.ly/a", meta.RequestURL)
	assert.Equal(t, "https://www.example.com/articles/1?ref=x", meta.URL)
	assert.Equal(t, "https://www.example.com/articles/1", meta.Canonical)
	assert.Equal(t, "en", meta.Lang)
	assert.Equal(t, "utf-8", meta.Charset)
	assert.Equal(t, "Example Article", meta.Title)
	assert.Equal(t, "A short description of the article.", meta.Description)
	assert.Equal(t, "https://cdn.example.com/cover.png", meta.Image)
	assert.Equal(t, "Jane Doe", meta.Author)
	assert.Equal(t, "go, html, metadata", meta.Keywords)
	assert.Equal(t, "index, follow", meta.Robots)
	assert.Equal(t, "www.example.com", meta.Source)
	assert.Equal(t, "9.99", meta.Price)
	assert.Equal(t, "EUR", meta.PriceCurrency)
	assert.Equal(t, "summary_large_image", meta.Meta["twitter:card"])

	require.NotNil(t, meta.OpenGraph)
	assert.Equal(t, "article", meta.OpenGraph.Type)
	assert.Equal(t, "Example Site", meta.OpenGraph.SiteName)

	require.Len(t, meta.Favicons, 2)
	assert.Equal(t, "https://www.example.com/favicon.ico", meta.Favicons[0].Href)
	assert.Equal(t, "180x180", meta.Favicons[1].Sizes)

	require.Len(t, meta.JSONLD, 1)
	assert.JSONEq(t, `{"@type": "Article", "headline": "Example"}`, string(meta.JSONLD[0]))

	assert.Equal(t, []core.Heading{{Level: 1, Text: "Example Article"}, {Level: 2, Text: "Details"}}, meta.Headings)
	assert.Equal(t, []core.ImgTag{{Src: "https://www.example.com/img/a.png", Alt: "A picture"}}, meta.ImgTags)

	assert.Empty(t, meta.ResponseBody)
	assert.Empty(t, meta.Markdown)
}

func TestExtractFallbacks(t *testing.T) {
	page := `<html><head>
<meta http-equiv="Content-Type" content="text/html; charset=ISO-8859-1">
<meta name="twitter:title" content="Tweet Title">
<meta property="og:description" content="From OG">
<meta name="twitter:image" content="/tw.png">
</head><body></body></html>`

	opts := core.Options{EnsureSecureImageRequest: ptr.Ptr(false)}.WithDefaults()
	meta, err := NewMetadataExtractor().Extract("http://example.com/p", "", page, opts)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/p", meta.URL)
	assert.Equal(t, "iso-8859-1", meta.Charset)
	assert.Equal(t, "Tweet Title", meta.Title)
	assert.Equal(t, "From OG", meta.Description)
	assert.Equal(t, "http://example.com/tw.png", meta.Image)
}

func TestExtractTruncatesDescription(t *testing.T) {
	page := `<meta name="description" content="` + strings.Repeat("é", 20) + `">`
	meta, err := NewMetadataExtractor().Extract("https://example.com", "https://example.com", page, core.Options{DescriptionLength: 5}.WithDefaults())
	require.NoError(t, err)
	assert.Equal(t, "ééééé", meta.Description)
}

func TestExtractOptionalBodies(t *testing.T) {
	opts := core.Options{IncludeResponseBody: true, IncludeMarkdown: true}.WithDefaults()
	meta, err := NewMetadataExtractor().Extract("https://www.example.com/articles/1", "https://www.example.com/articles/1", articlePage, opts)
	require.NoError(t, err)

	assert.Equal(t, articlePage, meta.ResponseBody)
	assert.Contains(t, meta.Markdown, "# Example")
	assert.Contains(t, meta.Markdown, "/more")
	assert.NotContains(t, meta.Markdown, "Home | About")
	assert.NotContains(t, meta.Markdown, "Copyright")
}

func TestContentExtractorPrefersMain(t *testing.T) {
	html, err := NewContentExtractor().Extract(`<body><article>outer</article><main><p>inner</p><script>x()</script></main></body>`)
	require.NoError(t, err)
	assert.Equal(t, "<main><p>inner</p></main>", html)
}
