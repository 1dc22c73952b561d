// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package chunk

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func sampleBuffer() *Buffer {
	b := NewBuffer(3, Size{2, 4, 5})
	for i := range b.Data() {
		if i%7 != 0 {
			b.Data()[i] = float64(i) * 0.25
		}
	}
	b.Data()[1] = math.Inf(-1)
	return b
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := map[string]*Buffer{
		"values":   sampleBuffer(),
		"all nan":  NewBuffer(2, Size{3, 3, 3}),
		"no bands": NewBuffer(0, Size{1, 1, 1}),
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			out, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !in.Equal(out) {
				t.Error("decoded buffer differs")
			}
		})
	}
}

func TestCodec_Stream(t *testing.T) {
	t.Parallel()

	var w bytes.Buffer
	a, b := sampleBuffer(), NewBuffer(1, Size{1, 2, 2})
	if err := Encode(&w, a); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&w, b); err != nil {
		t.Fatal(err)
	}
	first, err := Decode(&w)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Decode(&w)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(a) || !second.Equal(b) {
		t.Error("sequential decode mismatch")
	}
}

func TestCodec_Corruption(t *testing.T) {
	t.Parallel()

	good, err := Marshal(sampleBuffer())
	if err != nil {
		t.Fatal(err)
	}

	mutate := func(f func([]byte) []byte) []byte {
		c := append([]byte(nil), good...)
		return f(c)
	}

	tests := map[string][]byte{
		"empty":     {},
		"magic":     mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"version":   mutate(func(b []byte) []byte { b[4] = 99; return b }),
		"shape":     mutate(func(b []byte) []byte { b[12]++; return b }),
		"truncated": mutate(func(b []byte) []byte { return b[:len(b)-3] }),
		"checksum":  mutate(func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }),
		"payload":   mutate(func(b []byte) []byte { b[headerSize+len(b[headerSize:])/2] ^= 0x55; return b }),
		"huge":      mutate(func(b []byte) []byte { b[8], b[9], b[10], b[11] = 0xff, 0xff, 0xff, 0xff; return b }),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := Unmarshal(data); !errors.Is(err, ErrCorruptChunk) {
				t.Errorf("error = %v, want ErrCorruptChunk", err)
			}
		})
	}
}
