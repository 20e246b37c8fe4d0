package pipeline

import (
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// Config is the opaque configuration a pipeline is built with.
// Pipelines treat it as read-only once constructed.
type Config map[string]any

// Clone returns a copy of c. Nested maps and slices are copied too.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Config(t).Clone())
	case Config:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Has reports whether key is present, even with a nil value.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Keys returns the keys in sorted order.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Missing returns the required keys absent from c, in declaration order
// and without duplicates.
func (c Config) Missing(required ...string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, k := range required {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// String returns key as a string, or def when absent or not convertible.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// IntE returns key as an int, def when absent, and an error when the value
// cannot be converted.
func (c Config) IntE(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def, &ValueError{Key: key, Value: v, Want: "integer"}
	}
	return n, nil
}

// Int is IntE without the error.
func (c Config) Int(key string, def int) int {
	n, _ := c.IntE(key, def)
	return n
}

// BoolE returns key as a bool, def when absent, and an error when the value
// cannot be converted. "yes"/"no" are not accepted.
func (c Config) BoolE(key string, def bool) (bool, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def, &ValueError{Key: key, Value: v, Want: "boolean"}
	}
	return b, nil
}

// Bool is BoolE without the error.
func (c Config) Bool(key string, def bool) bool {
	b, _ := c.BoolE(key, def)
	return b
}

// StringSlice returns key as a []string. A single string is split on commas.
func (c Config) StringSlice(key string) []string {
	v, ok := c[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return splitList(s)
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
