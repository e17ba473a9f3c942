// Package render turns metadata records into output documents.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/gaurav-prasanna/pagemeta/core"
)

// JSONRenderer produces the metadata record as indented JSON.
type JSONRenderer struct{}

// NewJSONRenderer creates a JSONRenderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

// Render marshals the record as-is.
func (r *JSONRenderer) Render(meta *core.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("no metadata to render")
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Extension returns the file extension for JSON output.
func (r *JSONRenderer) Extension() string {
	return ".json"
}
