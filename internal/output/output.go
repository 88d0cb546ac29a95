// Package output renders match and moderation results as tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ValidateFormat reports an error for unknown output formats.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatTable, FormatJSON, "":
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// JSONTo writes data as indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func isJSON(format string) bool {
	return strings.EqualFold(format, FormatJSON)
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
