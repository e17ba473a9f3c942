// Package charset resolves and applies character encodings for fetched pages.
// Resolution follows the HTML sniffing order: byte order mark, the
// content-type charset parameter, then a <meta> prescan of the first 1024 bytes.
package charset

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// fallbackCharset is used when nothing in the response declares an encoding.
const fallbackCharset = "utf-8"

// Sniffer implements core.CharsetResolver.
type Sniffer struct{}

// NewSniffer creates a Sniffer.
func NewSniffer() *Sniffer {
	return &Sniffer{}
}

// Resolve returns the charset label for body.
func (s *Sniffer) Resolve(contentType string, body []byte) string {
	_, name, certain := htmlcharset.DetermineEncoding(body, contentType)
	// DetermineEncoding only looks at the first 1024 bytes and otherwise
	// guesses windows-1252, even for ASCII documents. A body that is valid
	// UTF-8 throughout reads correctly as UTF-8.
	if !certain && name == "windows-1252" && utf8.Valid(body) {
		return fallbackCharset
	}
	return name
}

// TextDecoder implements core.Decoder using WHATWG encoding labels.
type TextDecoder struct{}

// NewTextDecoder creates a TextDecoder.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{}
}

// byteOrderMarks are stripped only when they match the decoding charset.
var byteOrderMarks = map[string][]byte{
	"utf-8":    {0xef, 0xbb, 0xbf},
	"utf-16le": {0xff, 0xfe},
	"utf-16be": {0xfe, 0xff},
}

// Decode converts body to UTF-8 text using label. A leading byte order mark
// for that same charset is stripped; any other one is decoded as content.
// Malformed sequences are replaced with U+FFFD.
func (d *TextDecoder) Decode(body []byte, label string) (string, error) {
	enc, name := htmlcharset.Lookup(label)
	if enc == nil {
		return "", fmt.Errorf("unsupported charset %q", label)
	}
	if bom, ok := byteOrderMarks[name]; ok {
		body = bytes.TrimPrefix(body, bom)
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(out), nil
}
