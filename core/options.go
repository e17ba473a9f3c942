package core

import (
	"fmt"
	"os"
	"time"

	"go.mau.fi/util/ptr"
	"gopkg.in/yaml.v3"
)

const (
	// DecodeAuto resolves the charset from the response itself.
	DecodeAuto = "auto"

	DefaultUserAgent         = "pagemeta"
	DefaultFrom              = "example@example.com"
	DefaultCacheMode         = "no-cache"
	DefaultCorsMode          = "cors"
	DefaultMaxRedirects      = 10
	DefaultTimeout           = 10 * time.Second
	DefaultDescriptionLength = 750
	DefaultMaxBodyBytes      = 10 * 1024 * 1024 // 10MB
)

// FilterOptions controls which addresses the request-filtering transport may
// connect to. Entries in the allow and deny lists are IPs or CIDRs.
type FilterOptions struct {
	AllowPrivateIPAddress bool     `yaml:"allow_private_ip_address"`
	AllowMetaIPAddress    bool     `yaml:"allow_meta_ip_address"`
	AllowIPAddressList    []string `yaml:"allow_ip_address_list"`
	DenyIPAddressList     []string `yaml:"deny_ip_address_list"`
}

// Options is the request configuration for a single fetch.
//
// Merging with the defaults is shallow: any field the caller sets replaces the
// default wholesale, including the header map. Pointer fields distinguish an
// explicit zero value from "unset".
type Options struct {
	RequestHeaders           map[string]string `yaml:"request_headers"`
	FilterOptions            *FilterOptions    `yaml:"request_filtering"`
	CacheMode                string            `yaml:"cache"`
	CorsMode                 string            `yaml:"mode"`
	MaxRedirects             *int              `yaml:"max_redirects"`
	Timeout                  time.Duration     `yaml:"timeout"`
	Decode                   string            `yaml:"decode"`
	DescriptionLength        int               `yaml:"description_length"`
	EnsureSecureImageRequest *bool             `yaml:"ensure_secure_image_request"`
	IncludeResponseBody      bool              `yaml:"include_response_body"`
	IncludeMarkdown          bool              `yaml:"include_markdown"`
	MaxBodyBytes             int64             `yaml:"max_body_bytes"`

	// Prefetched is returned as-is when no URL is given.
	Prefetched *Metadata `yaml:"-"`
}

// DefaultHeaders returns the headers sent when the caller supplies none.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": DefaultUserAgent,
		"From":       DefaultFrom,
	}
}

// DefaultOptions returns a fully populated Options value.
func DefaultOptions() Options {
	return Options{}.WithDefaults()
}

// WithDefaults fills every unset field with its default.
func (o Options) WithDefaults() Options {
	if o.RequestHeaders == nil {
		o.RequestHeaders = DefaultHeaders()
	}
	if o.CacheMode == "" {
		o.CacheMode = DefaultCacheMode
	}
	if o.CorsMode == "" {
		o.CorsMode = DefaultCorsMode
	}
	if o.MaxRedirects == nil {
		o.MaxRedirects = ptr.Ptr(DefaultMaxRedirects)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Decode == "" {
		o.Decode = DecodeAuto
	}
	if o.DescriptionLength <= 0 {
		o.DescriptionLength = DefaultDescriptionLength
	}
	if o.EnsureSecureImageRequest == nil {
		o.EnsureSecureImageRequest = ptr.Ptr(true)
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// RedirectLimit returns the configured redirect bound.
func (o Options) RedirectLimit() int {
	if o.MaxRedirects == nil {
		return DefaultMaxRedirects
	}
	return *o.MaxRedirects
}

// SecureImages reports whether image URLs should be upgraded to https.
func (o Options) SecureImages() bool {
	if o.EnsureSecureImageRequest == nil {
		return true
	}
	return *o.EnsureSecureImageRequest
}

// LoadOptions reads Options from a YAML file. Unknown keys are ignored.
func LoadOptions(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return opts, nil
}
