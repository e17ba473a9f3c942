// Package fetch implements the fetch-resolve-decode pipeline.
// A Fetch call follows redirects manually up to a bound, validates the
// terminal response, decodes its body with the resolved charset and hands the
// text to a metadata extractor.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/pagemeta/core"
	"github.com/gaurav-prasanna/pagemeta/core/charset"
	"github.com/gaurav-prasanna/pagemeta/core/extract"
	"github.com/gaurav-prasanna/pagemeta/core/filter"
)

var errEmptyRecord = errors.New("extracting metadata: empty record")

// Fetcher runs the pipeline. It holds no per-request state and is safe for
// concurrent use.
type Fetcher struct {
	transport http.RoundTripper
	agents    core.AgentProvider
	resolver  core.CharsetResolver
	decoder   core.Decoder
	extractor core.MetadataExtractor
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTransport sets the HTTP transport. Without WithAgentProvider the
// default request filter is built on top of it; with one, it is used
// whenever the provider returns no transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// WithAgentProvider sets the transport agent provider.
func WithAgentProvider(p core.AgentProvider) Option {
	return func(f *Fetcher) { f.agents = p }
}

// WithCharsetResolver sets the resolver used in "auto" decode mode.
func WithCharsetResolver(r core.CharsetResolver) Option {
	return func(f *Fetcher) { f.resolver = r }
}

// WithDecoder sets the byte-to-text decoder.
func WithDecoder(d core.Decoder) Option {
	return func(f *Fetcher) { f.decoder = d }
}

// WithExtractor sets the metadata extractor.
func WithExtractor(e core.MetadataExtractor) Option {
	return func(f *Fetcher) { f.extractor = e }
}

// New creates a Fetcher. Unset collaborators get the package defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	if f.transport == nil {
		f.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if f.agents == nil {
		f.agents = filter.Detect(f.transport)
	}
	if f.resolver == nil {
		f.resolver = charset.NewSniffer()
	}
	if f.decoder == nil {
		f.decoder = charset.NewTextDecoder()
	}
	if f.extractor == nil {
		f.extractor = extract.NewMetadataExtractor()
	}
	return f
}

// Fetch retrieves rawURL and returns its metadata record.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts core.Options) (*core.Metadata, error) {
	opts = opts.WithDefaults()

	if rawURL == "" {
		if opts.Prefetched != nil {
			return opts.Prefetched, nil
		}
		return nil, core.ErrMissingURL
	}

	outcome, err := f.resolve(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	if err := validate(outcome); err != nil {
		return nil, err
	}

	text, err := f.decode(outcome, opts)
	if err != nil {
		return nil, err
	}

	meta, err := f.extractor.Extract(rawURL, outcome.URL, text, opts)
	if err != nil {
		return nil, fmt.Errorf("extracting metadata: %w", err)
	}
	if meta == nil {
		return nil, errEmptyRecord
	}
	frameOptions := outcome.Header.Get("X-Frame-Options")
	meta.AllowsEmbed = frameOptions != "SAMEORIGIN" && frameOptions != "DENY"
	meta.ContentType = outcome.ContentType()
	return meta, nil
}

// resolve follows redirects from requestURL and returns the terminal
// response. Redirect targets are resolved against requestURL, not against
// the hop that produced them. The hop counter is checked with "greater
// than" before each request, so a chain may be MaxRedirects+1 requests long.
func (f *Fetcher) resolve(ctx context.Context, requestURL string, opts core.Options) (*core.FetchOutcome, error) {
	log := zerolog.Ctx(ctx)
	client := f.client(requestURL, opts)
	limit := opts.RedirectLimit()

	current := requestURL
	for hops := 0; ; hops++ {
		if hops > limit {
			return nil, core.ErrTooManyRedirects
		}

		outcome, location, err := f.hop(ctx, client, current, opts)
		if err != nil {
			return nil, err
		}
		if location == "" {
			log.Debug().Str("url", current).Int("status", outcome.StatusCode).Int("hops", hops).Msg("Fetched page")
			return outcome, nil
		}

		next, err := resolveReference(requestURL, location)
		if err != nil {
			return nil, fmt.Errorf("resolving redirect %q: %w", location, err)
		}
		log.Debug().Str("from", current).Str("to", next).Int("hop", hops+1).Msg("Following redirect")
		current = next
	}
}

// client builds the HTTP client for one invocation. The agent is chosen once
// for the caller's URL.
func (f *Fetcher) client(requestURL string, opts core.Options) *http.Client {
	rt := f.agents.Agent(requestURL, opts.FilterOptions)
	if rt == nil {
		rt = f.transport
	}
	return &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// hop performs a single request. It returns a non-empty location for a
// redirect response, or the complete outcome with its body otherwise.
func (f *Fetcher) hop(ctx context.Context, client *http.Client, rawURL string, opts core.Options) (*core.FetchOutcome, string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := newRequest(ctx, rawURL, opts)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if location := resp.Header.Get("Location"); isRedirect(resp.StatusCode) && location != "" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &core.FetchOutcome{URL: rawURL, StatusCode: resp.StatusCode, Header: resp.Header}, location, nil
	}

	body, err := readBody(resp, opts.MaxBodyBytes)
	if err != nil {
		return nil, "", err
	}
	return &core.FetchOutcome{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, "", nil
}

func newRequest(ctx context.Context, rawURL string, opts core.Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	for k, v := range cacheHeaders(opts.CacheMode) {
		req.Header.Set(k, v)
	}
	if opts.CorsMode != "" {
		req.Header.Set("Sec-Fetch-Mode", opts.CorsMode)
	}
	// Caller headers go last so they can override any of the above.
	for k, v := range opts.RequestHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// cacheHeaders maps a fetch cache mode onto request directives.
func cacheHeaders(mode string) map[string]string {
	switch mode {
	case "no-cache", "reload":
		return map[string]string{"Cache-Control": "no-cache", "Pragma": "no-cache"}
	case "no-store":
		return map[string]string{"Cache-Control": "no-store", "Pragma": "no-cache"}
	case "force-cache":
		return map[string]string{"Cache-Control": "max-stale"}
	case "only-if-cached":
		return map[string]string{"Cache-Control": "only-if-cached"}
	default:
		return nil
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func resolveReference(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// validate applies the acceptance checks in order: presence, status, then
// content type.
func validate(outcome *core.FetchOutcome) error {
	if outcome == nil {
		return core.ErrEmptyResponse
	}
	if outcome.StatusCode < 200 || outcome.StatusCode >= 300 {
		return &core.StatusError{Code: outcome.StatusCode}
	}
	contentType := outcome.ContentType()
	if !strings.HasPrefix(contentType, "text") || !strings.Contains(contentType, "html") {
		return &core.ContentTypeError{ContentType: contentType}
	}
	return nil
}

// decode turns the body into text with either the forced or the resolved
// charset.
func (f *Fetcher) decode(outcome *core.FetchOutcome, opts core.Options) (string, error) {
	label := opts.Decode
	if label == core.DecodeAuto {
		label = f.resolver.Resolve(outcome.ContentType(), outcome.Body)
	}
	text, err := f.decoder.Decode(outcome.Body, label)
	if err != nil {
		return "", &core.DecodeError{Charset: label, Err: err}
	}
	return text, nil
}
