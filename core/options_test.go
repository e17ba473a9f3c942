package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/ptr"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, map[string]string{"User-Agent": DefaultUserAgent, "From": DefaultFrom}, opts.RequestHeaders)
	assert.Nil(t, opts.FilterOptions)
	assert.Equal(t, "no-cache", opts.CacheMode)
	assert.Equal(t, "cors", opts.CorsMode)
	assert.Equal(t, 10, opts.RedirectLimit())
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, DecodeAuto, opts.Decode)
	assert.Equal(t, 750, opts.DescriptionLength)
	assert.True(t, opts.SecureImages())
	assert.False(t, opts.IncludeResponseBody)
	assert.Nil(t, opts.Prefetched)
}

func TestWithDefaultsIsShallow(t *testing.T) {
	opts := Options{
		RequestHeaders:           map[string]string{"Accept-Language": "de"},
		MaxRedirects:             ptr.Ptr(0),
		EnsureSecureImageRequest: ptr.Ptr(false),
		Decode:                   "shift_jis",
	}.WithDefaults()

	assert.Equal(t, map[string]string{"Accept-Language": "de"}, opts.RequestHeaders)
	assert.Equal(t, 0, opts.RedirectLimit())
	assert.False(t, opts.SecureImages())
	assert.Equal(t, "shift_jis", opts.Decode)
	assert.Equal(t, "no-cache", opts.CacheMode)
}

func TestDefaultHeadersAreNotShared(t *testing.T) {
	a := DefaultOptions()
	a.RequestHeaders["X-Test"] = "1"
	assert.NotContains(t, DefaultOptions().RequestHeaders, "X-Test")
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagemeta.yaml")
	config := `
request_headers:
  User-Agent: yaml-agent
request_filtering:
  allow_private_ip_address: true
  deny_ip_address_list: ["10.0.0.1"]
max_redirects: 2
timeout: 3s
decode: windows-1252
description_length: 100
ensure_secure_image_request: false
unknown_key: ignored
`
	require.NoError(t, os.WriteFile(path, []byte(config), 0644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"User-Agent": "yaml-agent"}, opts.RequestHeaders)
	require.NotNil(t, opts.FilterOptions)
	assert.True(t, opts.FilterOptions.AllowPrivateIPAddress)
	assert.Equal(t, []string{"10.0.0.1"}, opts.FilterOptions.DenyIPAddressList)
	assert.Equal(t, 2, opts.RedirectLimit())
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, "windows-1252", opts.Decode)
	assert.Equal(t, 100, opts.DescriptionLength)
	assert.False(t, opts.SecureImages())
	assert.Empty(t, opts.CacheMode, "defaults are applied by the fetcher, not the loader")
}

func TestLoadOptionsMissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, &StatusError{Code: 500}, "response code 500")
	assert.EqualError(t, &ContentTypeError{ContentType: "image/png"}, "unsupported content type: image/png")

	inner := errors.New("boom")
	err := &DecodeError{Charset: "utf-16", Err: inner}
	assert.EqualError(t, err, "decoding with charset: utf-16")
	assert.ErrorIs(t, err, inner)
}
