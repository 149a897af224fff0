package hash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"
)

// Any serializes the given value and returns its FNV-1a 64-bit hash as a hex string.
func Any(a any) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}

	h := fnv.New64a()
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("failed to hash data: %w", err)
	}

	return fmt.Sprintf("%x", h.Sum64()), nil
}

// Encode builds a deterministic cache key from named parameters.
// Keys are sorted at every nesting level, so two maps holding the same pairs
// produce the same key regardless of insertion order.
func Encode(params map[string]any) (string, error) {
	norm, err := normalize(params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := writeValue(&b, norm); err != nil {
		return "", err
	}
	return b.String(), nil
}

// normalize converts structs and typed maps into generic JSON values.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber() // keep number formatting stable
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to normalize: %w", err)
	}
	return out, nil
}

// writeValue writes v with object keys in lexicographic order.
func writeValue(b *strings.Builder, v any) error {
	switch x := v.(type) {
	case map[string]any:
		b.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(x)) {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeScalar(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeValue(b, x[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		return writeScalar(b, x)
	}
	return nil
}

// writeScalar writes the JSON form of a string, number, bool or null.
func writeScalar(b *strings.Builder, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	b.Write(raw)
	return nil
}
