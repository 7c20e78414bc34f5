package config

import (
	"sort"
	"strings"
)

// KeyDelimiter separates path segments of a normalized configuration key.
const KeyDelimiter = "."

// NormalizeKey maps every accepted spelling of a configuration key onto its
// canonical form. Segments may be separated by "__", ":" or "." and compare
// case-insensitively, so "Storage__ConnectionString", "STORAGE__CONNECTIONSTRING"
// and "storage:connectionString" all become "storage.connectionstring".
func NormalizeKey(raw string) string {
	raw = strings.ReplaceAll(raw, "__", KeyDelimiter)
	raw = strings.ReplaceAll(raw, ":", KeyDelimiter)

	parts := strings.Split(raw, KeyDelimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, KeyDelimiter)
}

// setNestedValue sets a value in a nested map using a normalized dot-notation key.
// e.g., "storage.connectionstring" -> m["storage"]["connectionstring"]
// Maps on both sides are merged, anything else is overwritten.
func setNestedValue(m map[string]any, key string, value any) {
	if key == "" {
		return
	}
	parts := strings.Split(key, KeyDelimiter)
	current := m

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			// path is absent or holds a scalar, a later layer replaces it
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	leaf := parts[len(parts)-1]
	if sub, ok := value.(map[string]any); ok {
		if existing, ok := current[leaf].(map[string]any); ok {
			mergeInto(existing, sub)
			return
		}
		fresh := make(map[string]any, len(sub))
		mergeInto(fresh, sub)
		current[leaf] = fresh
		return
	}
	current[leaf] = value
}

// mergeInto deep merges src into dst, src wins on every leaf collision.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		setNestedValue(dst, k, v)
	}
}

// normalizeMap rewrites every key of a decoded document into canonical form.
func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	// sorted so that colliding spellings resolve the same way on every run
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := in[k]
		switch tv := v.(type) {
		case map[string]any:
			v = normalizeMap(tv)
		case map[any]any:
			conv := make(map[string]any, len(tv))
			for ik, iv := range tv {
				if s, ok := ik.(string); ok {
					conv[s] = iv
				}
			}
			v = normalizeMap(conv)
		}
		setNestedValue(out, NormalizeKey(k), v)
	}
	return out
}

// flatten returns the leaf keys of a nested map in dot-notation.
func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + KeyDelimiter + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}
