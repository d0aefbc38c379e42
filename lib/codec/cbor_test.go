// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

type sample struct {
	Name   string     `cbor:"n"`
	Values [3]float32 `cbor:"v"`
	Count  int        `cbor:"c,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sample{Name: "probe", Values: [3]float32{256, 0, 46}, Count: 3}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestFloat32ExactAfterStep(t *testing.T) {
	value := math.Nextafter32(256, float32(math.Inf(1)))
	data, err := Marshal(sample{Values: [3]float32{value, 0, 0}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Values[0] != value {
		t.Errorf("value = %v, want %v", decoded.Values[0], value)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs: %x vs %x", i, again, first)
		}
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for i := 1; i <= 3; i++ {
		if err := encoder.Encode(sample{Name: "probe", Count: i}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i := 1; i <= 3; i++ {
		var decoded sample
		if err := decoder.Decode(&decoded); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if decoded.Count != i {
			t.Errorf("record %d Count = %d", i, decoded.Count)
		}
	}
	var extra sample
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end = %v, want io.EOF", err)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded sample
	if err := Unmarshal([]byte{0xff, 0xfe}, &decoded); err == nil {
		t.Error("Unmarshal accepted invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnosis, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnosis, `"a"`) {
		t.Errorf("notation %q does not contain \"a\"", diagnosis)
	}
}
