package config

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

const redacted = "[redacted]"

// Redacted returns a copy of o that is safe to print.
func (o Options) Redacted() Options {
	out := o
	if out.Storage.ConnectionString != "" {
		out.Storage.ConnectionString = redacted
	}
	if out.Telemetry != nil && len(out.Telemetry.Headers) > 0 {
		t := *out.Telemetry
		t.Headers = make(map[string]string, len(o.Telemetry.Headers))
		for k := range o.Telemetry.Headers {
			t.Headers[k] = redacted
		}
		out.Telemetry = &t
	}
	return out
}

// Render encodes the redacted options as "toml" or "json".
func Render(o Options, format string) ([]byte, error) {
	safe := o.Redacted()
	switch format {
	case "toml", "":
		return toml.Marshal(safe)
	case "json":
		return json.MarshalIndent(safe, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format %q, expected toml or json", format)
	}
}
