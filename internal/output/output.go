// Package output renders CLI results as tables, markdown or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// JSON renders value as two-space indented JSON.
func JSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// render emits value as JSON, or the table built by build in the tabular formats.
func render(format Format, value any, build func() table.Writer) (string, error) {
	if format == FormatJSON {
		return JSON(value)
	}

	t := build()
	if format == FormatMarkdown {
		return t.RenderMarkdown(), nil
	}
	t.SetStyle(table.StyleRounded)
	return t.Render(), nil
}
