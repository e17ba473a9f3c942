// Package output writes rendered records to disk.
// Flat mode names files after the page (example_com_docs_intro.json);
// mirror mode recreates host and path as directories
// (example.com/docs/intro.json).
package output

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Writer writes rendered output below a directory.
type Writer struct {
	OutputDir string
	Mirror    bool
}

// New creates a Writer targeting the given output directory, creating it if
// needed. An empty outputDir means the current working directory.
func New(outputDir string, mirror bool) (*Writer, error) {
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		outputDir = wd
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Writer{OutputDir: outputDir, Mirror: mirror}, nil
}

// Write stores data for the page at rawURL and returns the file path.
func (w *Writer) Write(rawURL string, data []byte, ext string) (string, error) {
	path, err := w.Path(rawURL, ext)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	return path, nil
}

// Path returns where Write would store the page at rawURL.
func (w *Writer) Path(rawURL string, ext string) (string, error) {
	if !w.Mirror {
		return filepath.Join(w.OutputDir, filenameFromURL(rawURL)+ext), nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	urlPath := strings.Trim(parsed.Path, "/")
	if urlPath == "" {
		urlPath = "index"
	}
	segments := []string{w.OutputDir, sanitize(parsed.Host)}
	for _, seg := range strings.Split(urlPath, "/") {
		// Dot segments would climb out of the host directory.
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, sanitize(seg))
	}
	if len(segments) == 2 {
		segments = append(segments, "index")
	}
	return filepath.Join(segments...) + ext, nil
}

// filenameFromURL converts a URL into a flat filename.
// Example: https://example.com/docs/intro -> example_com_docs_intro
func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return flatten(rawURL)
	}

	parts := []string{flatten(parsed.Host)}
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		for _, seg := range strings.Split(path, "/") {
			parts = append(parts, flatten(seg))
		}
	}
	return strings.Join(parts, "_")
}

// flatten replaces non-alphanumeric characters with underscores.
func flatten(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if isAlnum(ch) {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// sanitize keeps a path segment readable, replacing only characters that
// are unsafe in file names.
func sanitize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if isAlnum(ch) || ch == '.' || ch == '-' || ch == '_' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func isAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
