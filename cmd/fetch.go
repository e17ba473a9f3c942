package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/ptr"
	"golang.org/x/sync/errgroup"

	"github.com/gaurav-prasanna/pagemeta/core"
	"github.com/gaurav-prasanna/pagemeta/core/fetch"
	"github.com/gaurav-prasanna/pagemeta/core/output"
	"github.com/gaurav-prasanna/pagemeta/core/render"
)

// Flag variables.
var (
	flagJSON            bool
	flagMarkdown        bool
	flagPDF             bool
	flagOutputDir       string
	flagMirror          bool
	flagConfig          string
	flagMaxRedirects    int
	flagTimeout         time.Duration
	flagDecode          string
	flagHeaders         []string
	flagIncludeBody     bool
	flagIncludeMarkdown bool
	flagConcurrency     int
	flagAllowPrivate    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Fetch URLs and print or write their metadata",
	Long: `Fetch retrieves each URL, follows redirects, decodes the page and extracts
its metadata. Records are printed to stdout unless --output_dir is set.

Examples:
  pagemeta fetch https://example.com
  pagemeta fetch https://example.com --markdown --include_markdown
  pagemeta fetch https://a.example https://b.example --json --output_dir ./out --mirror
  pagemeta fetch https://example.com --config pagemeta.yaml --header "Accept-Language: de"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Output format flags (mutually exclusive, JSON by default).
	fetchCmd.Flags().BoolVar(&flagJSON, "json", false, "Output the record as JSON (default)")
	fetchCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Output a Markdown metadata card")
	fetchCmd.Flags().BoolVar(&flagPDF, "pdf", false, "Output a PDF metadata card (requires --output_dir)")

	fetchCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Write one file per URL into this directory instead of stdout")
	fetchCmd.Flags().BoolVar(&flagMirror, "mirror", false, "Mirror host and URL path as directories under --output_dir")

	fetchCmd.Flags().StringVar(&flagConfig, "config", "", "YAML file with request options")
	fetchCmd.Flags().IntVar(&flagMaxRedirects, "max_redirects", core.DefaultMaxRedirects, "Maximum number of redirects to follow")
	fetchCmd.Flags().DurationVar(&flagTimeout, "timeout", core.DefaultTimeout, "Timeout for each request")
	fetchCmd.Flags().StringVar(&flagDecode, "decode", core.DecodeAuto, `Charset to decode with, or "auto" to detect it`)
	fetchCmd.Flags().StringArrayVar(&flagHeaders, "header", nil, `Extra request header as "Name: value" (repeatable)`)
	fetchCmd.Flags().BoolVar(&flagIncludeBody, "include_body", false, "Include the decoded response body in the record")
	fetchCmd.Flags().BoolVar(&flagIncludeMarkdown, "include_markdown", false, "Include the main content as Markdown in the record")
	fetchCmd.Flags().IntVar(&flagConcurrency, "concurrency", 4, "Number of URLs fetched in parallel")
	fetchCmd.Flags().BoolVar(&flagAllowPrivate, "allow_private", false, "Allow requests to private and loopback addresses")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if err := validateFlags(); err != nil {
		return err
	}
	for _, rawURL := range args {
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid URL: %s (must include scheme, e.g. https://example.com)", rawURL)
		}
	}

	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}
	renderer := selectRenderer()

	var writer *output.Writer
	if flagOutputDir != "" {
		writer, err = output.New(flagOutputDir, flagMirror)
		if err != nil {
			return fmt.Errorf("initializing output writer: %w", err)
		}
	}

	ctx := cmd.Context()
	fetcher := fetch.New()
	results := make([][]byte, len(args))
	failed := make([]bool, len(args))

	var g errgroup.Group
	g.SetLimit(flagConcurrency)
	for i, rawURL := range args {
		g.Go(func() error {
			log := zerolog.Ctx(ctx).With().Str("url", rawURL).Logger()
			data, err := processURL(log.WithContext(ctx), fetcher, renderer, rawURL, opts)
			if err != nil {
				log.Err(err).Msg("Failed to fetch metadata")
				failed[i] = true
				return nil
			}
			if writer == nil {
				results[i] = data
				return nil
			}
			path, err := writer.Write(rawURL, data, renderer.Extension())
			if err != nil {
				log.Err(err).Msg("Failed to write output")
				failed[i] = true
				return nil
			}
			log.Info().Str("path", path).Msg("Written")
			return nil
		})
	}
	_ = g.Wait()

	// Printed after the fact so stdout keeps argument order.
	out := cmd.OutOrStdout()
	for _, data := range results {
		if data != nil {
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}

	var errCount int
	for _, f := range failed {
		if f {
			errCount++
		}
	}
	if errCount > 0 {
		return fmt.Errorf("%d/%d URLs failed", errCount, len(args))
	}
	return nil
}

// processURL runs one URL through fetch and render.
func processURL(ctx context.Context, fetcher *fetch.Fetcher, renderer core.Renderer, rawURL string, opts core.Options) ([]byte, error) {
	meta, err := fetcher.Fetch(ctx, rawURL, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	data, err := renderer.Render(meta)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return data, nil
}

// buildOptions loads --config when given and lets explicitly set flags
// override it.
func buildOptions(cmd *cobra.Command) (core.Options, error) {
	var opts core.Options
	if flagConfig != "" {
		var err error
		if opts, err = core.LoadOptions(flagConfig); err != nil {
			return core.Options{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("max_redirects") {
		opts.MaxRedirects = ptr.Ptr(flagMaxRedirects)
	}
	if flags.Changed("timeout") {
		opts.Timeout = flagTimeout
	}
	if flags.Changed("decode") {
		opts.Decode = flagDecode
	}
	if flags.Changed("include_body") {
		opts.IncludeResponseBody = flagIncludeBody
	}
	if flags.Changed("include_markdown") {
		opts.IncludeMarkdown = flagIncludeMarkdown
	}
	if flagAllowPrivate {
		filter := core.FilterOptions{}
		if opts.FilterOptions != nil {
			filter = *opts.FilterOptions
		}
		filter.AllowPrivateIPAddress = true
		opts.FilterOptions = &filter
	}

	if len(flagHeaders) > 0 {
		extra, err := parseHeaders(flagHeaders)
		if err != nil {
			return core.Options{}, err
		}
		opts.RequestHeaders = mergeHeaders(opts.RequestHeaders, extra)
	}
	return opts, nil
}

// parseHeaders turns "Name: value" pairs into a map.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --header %q (expected \"Name: value\")", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// mergeHeaders layers extra on top of base, or on top of the default
// headers when base is unset.
func mergeHeaders(base, extra map[string]string) map[string]string {
	if base == nil {
		base = core.DefaultHeaders()
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// validateFlags checks that at most one output format is chosen.
func validateFlags() error {
	formatCount := 0
	for _, f := range []bool{flagJSON, flagMarkdown, flagPDF} {
		if f {
			formatCount++
		}
	}
	if formatCount > 1 {
		return fmt.Errorf("only one output format allowed per run (got %d)", formatCount)
	}
	if flagPDF && flagOutputDir == "" {
		return fmt.Errorf("--pdf requires --output_dir")
	}
	if flagMirror && flagOutputDir == "" {
		return fmt.Errorf("--mirror requires --output_dir")
	}
	if flagConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}
	return nil
}

// selectRenderer creates the Renderer chosen by flags.
func selectRenderer() core.Renderer {
	switch {
	case flagMarkdown:
		return render.NewMarkdownRenderer()
	case flagPDF:
		return render.NewPDFRenderer()
	default:
		return render.NewJSONRenderer()
	}
}
