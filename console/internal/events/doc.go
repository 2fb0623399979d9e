// Package events turns loosely typed gateway payloads into the console's
// closed vocabulary: lifecycle states, extracted content, send results and
// history items.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Doc is a decoded JSON object. Payloads are decoded into a Doc at the
// transport boundary and projected through the getters below; nothing past
// this package inspects raw JSON.
type Doc map[string]any

// ParseDoc decodes raw into a Doc. Numbers are kept as json.Number.
func ParseDoc(raw []byte) (Doc, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Doc{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[string]any:
		return Doc(m), nil
	case nil:
		return Doc{}, nil
	default:
		return nil, errors.New("payload is not an object")
	}
}

// Get returns the raw value at key.
func (d Doc) Get(key string) (any, bool) {
	v, ok := d[key]
	return v, ok && v != nil
}

// Str returns the string at key.
func (d Doc) Str(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// Bool returns the bool at key.
func (d Doc) Bool(key string) (bool, bool) {
	b, ok := d[key].(bool)
	return b, ok
}

// Int returns the integer at key.
func (d Doc) Int(key string) (int64, bool) {
	switch n := d[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// Obj returns the object at key.
func (d Doc) Obj(key string) (Doc, bool) {
	return asDoc(d[key])
}

// Arr returns the array at key.
func (d Doc) Arr(key string) ([]any, bool) {
	a, ok := d[key].([]any)
	return a, ok
}

// Docs returns the objects of the array at key, skipping other elements.
func (d Doc) Docs(key string) []Doc {
	arr, _ := d.Arr(key)
	out := make([]Doc, 0, len(arr))
	for _, v := range arr {
		if o, ok := asDoc(v); ok {
			out = append(out, o)
		}
	}
	return out
}

func asDoc(v any) (Doc, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Doc(m), true
	case Doc:
		return m, true
	default:
		return nil, false
	}
}

// compactJSON renders v as JSON without HTML escaping.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}
