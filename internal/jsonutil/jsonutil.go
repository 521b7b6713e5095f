// Package jsonutil centralizes JSON encode/decode on top of json-iterator,
// matching golang/cmd/mqtt-kafka-bridge/message/message.go's use of jsoniter
// instead of encoding/json.
package jsonutil

import (
	jsoniter "github.com/json-iterator/go"
)

var std = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal serializes v to JSON text.
func Marshal(v interface{}) ([]byte, error) {
	return std.Marshal(v)
}

// MarshalIndent serializes v to pretty-printed JSON text, used for the
// on-disk config files (spec.md §4.4.1 "canonical pretty form").
func MarshalIndent(v interface{}) ([]byte, error) {
	return std.MarshalIndent(v, "", "  ")
}

// Unmarshal decodes JSON text into v.
func Unmarshal(data []byte, v interface{}) error {
	return std.Unmarshal(data, v)
}

// Valid reports whether data is syntactically valid JSON.
func Valid(data []byte) bool {
	return std.Valid(data)
}

// ToString serializes v and panics-free converts to string, returning "{}"
// on error (used by latestData()-style "never fail the hot path" callers).
func ToString(v interface{}) string {
	b, err := std.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
