// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{
		"zulu":   1,
		"alpha":  "two",
		"mike":   true,
		"nested": map[string]any{"b": 2, "a": 1},
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("deterministic encoding produced different bytes for same value")
	}
}

func TestUnmarshalDefaultMapType(t *testing.T) {
	data, err := Marshal(map[string]any{"key": map[string]any{"inner": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["key"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["key"])
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	type message struct {
		Action  string `cbor:"action"`
		Session string `cbor:"session,omitempty"`
	}

	var buffer bytes.Buffer
	if err := NewEncoder(&buffer).Encode(message{Action: "power-on", Session: "s1"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded message
	if err := NewDecoder(&buffer).Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Action != "power-on" || decoded.Session != "s1" {
		t.Fatalf("decoded = %+v", decoded)
	}
}
