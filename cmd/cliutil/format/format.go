package format

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/storacha/silo/pkg/config"
)

// OutputFormat represents the format for CLI output
type OutputFormat string

const (
	TableFormat OutputFormat = "table"
	JSONFormat  OutputFormat = "json"
	TOMLFormat  OutputFormat = "toml"
)

var allFormats = []OutputFormat{TableFormat, JSONFormat, TOMLFormat}

// ParseOutputFormat parses s, empty meaning table. When allowed is given only
// those formats are accepted.
func ParseOutputFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	if len(allowed) == 0 {
		allowed = allFormats
	}
	f := OutputFormat(strings.ToLower(s))
	if f == "" {
		f = TableFormat
	}
	if !slices.Contains(allowed, f) {
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return "", fmt.Errorf("unknown output format: %s (valid formats: %s)", s, strings.Join(names, ", "))
	}
	return f, nil
}

type Formatter interface {
	Format(data any) error
}

func NewFormatter(format OutputFormat, writer io.Writer) Formatter {
	switch format {
	case JSONFormat:
		return &JSONFormatter{writer: writer}
	case TOMLFormat:
		return &TOMLFormatter{writer: writer}
	default:
		return &TableFormatter{writer: writer}
	}
}

type JSONFormatter struct {
	writer io.Writer
}

func (f *JSONFormatter) Format(data any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// TOMLFormatter writes data as a TOML document. A layer list is written as
// an array of tables named "layers", a TOML document cannot be an array.
type TOMLFormatter struct {
	writer io.Writer
}

func (f *TOMLFormatter) Format(data any) error {
	if layers, ok := data.([]config.Layer); ok {
		data = map[string]any{"layers": layers}
	}
	return toml.NewEncoder(f.writer).Encode(data)
}
