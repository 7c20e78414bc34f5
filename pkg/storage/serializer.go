package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Serializer is the one serialization policy shared by every storage binding.
// Object keys are written in camelCase, reads match field names case
// insensitively and timestamps are RFC 3339 with their UTC offset kept.
type Serializer struct{}

func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal encodes v as JSON with every object key converted to camelCase.
func (s *Serializer) Marshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %T: %w", v, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("re-reading %T: %w", v, err)
	}

	out, err := json.Marshal(camelKeys(generic))
	if err != nil {
		return nil, fmt.Errorf("marshaling %T: %w", v, err)
	}
	return out, nil
}

// Unmarshal decodes data into v. Struct fields match keys regardless of case,
// so payloads written with any casing still load.
func (s *Serializer) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling into %T: %w", v, err)
	}
	return nil
}

func camelKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[CamelCase(k)] = camelKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = camelKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// CamelCase lowercases the leading run of upper case letters of name, keeping
// the last one when it starts the next word: "ETag" becomes "eTag", "ID"
// becomes "id" and "URLValue" becomes "urlValue".
func CamelCase(name string) string {
	if name == "" {
		return name
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return name
	}

	runes := []rune(name)
	for i := range runes {
		if i == 1 && !unicode.IsUpper(runes[i]) {
			break
		}
		hasNext := i+1 < len(runes)
		if i > 0 && hasNext && !unicode.IsUpper(runes[i+1]) {
			if runes[i+1] == ' ' {
				runes[i] = unicode.ToLower(runes[i])
			}
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
