// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldError reports the first expected key missing from a webhook payload
// Extraction stops at the first one, no partial results are produced
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func missing(path string) error {
	return &FieldError{Path: path, Reason: "missing key"}
}

func wrongType(path, want string) error {
	return &FieldError{Path: path, Reason: "expected " + want}
}

// Object wraps a decoded JSON object with strict, path-aware accessors
// Ref: https://developers.facebook.com/docs/graph-api/webhooks/getting-started
type Object struct {
	path   string
	fields map[string]any
}

// NewObject wraps a decoded JSON object rooted at path
func NewObject(path string, fields map[string]any) Object {
	return Object{path: path, fields: fields}
}

func (o Object) child(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

// Has reports whether key is present (even when null)
func (o Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// Object returns the nested object under key
func (o Object) Object(key string) (Object, error) {
	p := o.child(key)
	v, ok := o.fields[key]
	if !ok {
		return Object{}, missing(p)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Object{}, wrongType(p, "object")
	}
	return Object{path: p, fields: m}, nil
}

// OptObject returns the nested object under key, an empty object when absent
func (o Object) OptObject(key string) Object {
	m, _ := o.fields[key].(map[string]any)
	return Object{path: o.child(key), fields: m}
}

// First returns the first element of the array under key, which must be an object
func (o Object) First(key string) (Object, error) {
	p := o.child(key)
	v, ok := o.fields[key]
	if !ok {
		return Object{}, missing(p)
	}
	list, ok := v.([]any)
	if !ok {
		return Object{}, wrongType(p, "array")
	}
	p += "[0]"
	if len(list) == 0 {
		return Object{}, &FieldError{Path: p, Reason: "index out of range"}
	}
	m, ok := list[0].(map[string]any)
	if !ok {
		return Object{}, wrongType(p, "object")
	}
	return Object{path: p, fields: m}, nil
}

// String returns the scalar under key rendered as a string; the key must exist
func (o Object) String(key string) (string, error) {
	p := o.child(key)
	v, ok := o.fields[key]
	if !ok {
		return "", missing(p)
	}
	s, ok := scalarString(v)
	if !ok {
		return "", wrongType(p, "scalar")
	}
	return s, nil
}

// OptString returns the scalar under key or empty string when absent or null
func (o Object) OptString(key string) string {
	s, _ := scalarString(o.fields[key])
	return s
}

// OptInt returns the integer under key or zero
func (o Object) OptInt(key string) int64 {
	switch v := o.fields[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// OptList returns the array under key, an empty slice when absent or null
func (o Object) OptList(key string) []any {
	if list, ok := o.fields[key].([]any); ok {
		return list
	}
	return []any{}
}

// Raw returns the underlying map
func (o Object) Raw() map[string]any {
	return o.fields
}

// scalarString renders JSON scalars; null yields empty string
// Graph ids occasionally arrive as numbers, so numbers are accepted too
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// ParamString renders a verification query parameter value
// Accepts plain strings, url.Values style slices and JSON scalars
func ParamString(params map[string]any, key string) (string, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return "", false, nil
		}
		return t[0], true, nil
	case []any:
		if len(t) == 0 {
			return "", false, nil
		}
		v = t[0]
	}
	s, ok := scalarString(v)
	if !ok {
		return "", false, wrongType(key, "scalar")
	}
	return s, true, nil
}

// DecodePayload decodes a raw webhook body into a generic JSON object
// Numbers are kept as json.Number so large ids survive intact
func DecodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if payload == nil {
		return nil, &FieldError{Path: "$", Reason: "expected object"}
	}
	return payload, nil
}
