// Package protocol defines the wire-level names and shapes shared by the
// gateline client core and the ticketing gateway.
package protocol

import (
	"bytes"
	"encoding/json"
)

// envelope is the optional wrapper some gateway endpoints put around their
// response body. Older endpoints return the payload bare.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Unwrap normalizes a response body: if it is a JSON object carrying a
// non-null "data" field, the field's raw bytes are returned, otherwise the
// body is returned as-is. Callers never see the wrapped/bare ambiguity.
func Unwrap(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	inner := bytes.TrimSpace(env.Data)
	if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
		return trimmed
	}
	return inner
}

// IsJSONArray reports whether raw is a JSON array. Used to guard list-shaped
// fields that some endpoints return as objects on error paths.
func IsJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
