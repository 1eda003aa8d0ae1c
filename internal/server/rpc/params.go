package rpc

import (
	"bytes"
	"encoding/json"
)

// Params holds the named parameters of a call, undecoded.
type Params map[string]json.RawMessage

// Lookup returns the raw value of name. Absent and null values both
// report false.
func (p Params) Lookup(name string) (json.RawMessage, bool) {
	raw, ok := p[name]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

// Get decodes name into v. It reports false, leaving v untouched, when the
// parameter is absent or null.
func (p Params) Get(name string, v any) (bool, error) {
	raw, ok := p.Lookup(name)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
