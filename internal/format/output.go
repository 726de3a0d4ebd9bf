// Package format renders CLI results. Every command writes one document; json
// is the default so scripts can rely on it.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formats lists the accepted --format values.
var Formats = []string{"json", "yaml"}

// Normalize maps a --format value onto one of Formats.
func Normalize(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "json":
		return "json", nil
	case "yaml", "yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid: %s)", format, strings.Join(Formats, ", "))
	}
}

func Write(w io.Writer, v any, format string, pretty bool) error {
	f, err := Normalize(format)
	if err != nil {
		return err
	}
	if f == "yaml" {
		return WriteYAML(w, v)
	}
	return WriteJSON(w, v, pretty)
}

// WriteJSON writes one JSON document and a newline. Page content is markup,
// so HTML characters are left unescaped.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
