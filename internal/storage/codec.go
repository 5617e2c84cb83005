package storage

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"strings"
	"time"
)

// codec serializes a whole namespace map to and from a file payload.
type codec interface {
	// name identifies the codec in errors and logs.
	name() string

	// ext is the namespace file extension, including the dot.
	ext() string

	// encode serializes the full namespace map.
	encode(data map[string]any) ([]byte, error)

	// decode deserializes a full namespace map.
	decode(payload []byte) (map[string]any, error)

	// validate checks a single value for serializability without storing it.
	// Used by Set/SetMany to fail fast before mutating state.
	validate(value any) error
}

func init() {
	// Concrete types that may appear inside `any` values of gob payloads.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]string{})
	gob.Register(map[string]string{})
	gob.Register(time.Time{})
}

// RegisterType makes a custom concrete type storable in gob-backed
// namespaces. Call it once at startup for each such type, mirroring
// encoding/gob's registration contract.
func RegisterType(value any) {
	gob.Register(value)
}

// jsonCodec is the structured, human-inspectable codec. Values must be
// JSON-interchangeable; time.Time round-trips through RFC 3339 strings
// under keys ending in "_at".
type jsonCodec struct{}

func (jsonCodec) name() string { return "json" }
func (jsonCodec) ext() string  { return ".json" }

func (jsonCodec) encode(data map[string]any) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

func (jsonCodec) decode(payload []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}
	reviveTimestamps(data)
	return data, nil
}

func (jsonCodec) validate(value any) error {
	_, err := json.Marshal(value)
	return err
}

// reviveTimestamps converts string fields whose key ends in "_at" back to
// time.Time, recursing through nested maps and slices. Strings that do not
// parse as RFC 3339 are left untouched.
func reviveTimestamps(data map[string]any) {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if strings.HasSuffix(key, "_at") {
				if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
					data[key] = ts
				}
			}
		case map[string]any:
			reviveTimestamps(v)
		case []any:
			reviveSlice(v)
		}
	}
}

func reviveSlice(items []any) {
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			reviveTimestamps(v)
		case []any:
			reviveSlice(v)
		}
	}
}

// gobCodec is the opaque binary codec. It accepts any gob-encodable value,
// including custom types registered via RegisterType.
type gobCodec struct{}

func (gobCodec) name() string { return "gob" }
func (gobCodec) ext() string  { return ".bin" }

func (gobCodec) encode(data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) decode(payload []byte) (map[string]any, error) {
	var data map[string]any
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func (gobCodec) validate(value any) error {
	// Validate the value as it will actually be stored: inside a map with
	// interface values, which is where gob requires type registration.
	var buf bytes.Buffer
	return gob.NewEncoder(&buf).Encode(map[string]any{"v": value})
}
