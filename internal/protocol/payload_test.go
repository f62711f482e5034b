// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"bytes"
	"testing"
)

func TestSetPayloadRoundTrip(t *testing.T) {
	in := SetPayload{Key: []byte("hello"), Value: []byte("world"), TTLSeconds: 60}
	out, err := DecodeSetPayload(EncodeSetPayload(in))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in.Key, out.Key) || !bytes.Equal(in.Value, out.Value) || in.TTLSeconds != out.TTLSeconds {
		t.Fatalf("mismatch: %+v vs %+v", in, out)
	}
}

func TestVAddPayloadRoundTrip(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	out, err := DecodeVAddPayload(EncodeVAddPayload([]byte("v1"), vec))
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Key) != "v1" || len(out.Vector) != 3 || out.Vector[1] != 0.2 {
		t.Fatalf("mismatch: %+v", out)
	}
}

func TestVSearchPayloadRoundTrip(t *testing.T) {
	vec := []float32{1, 2, 3, 4}
	out, err := DecodeVSearchPayload(EncodeVSearchPayload(vec, 5))
	if err != nil {
		t.Fatal(err)
	}
	if out.K != 5 || len(out.Vector) != 4 {
		t.Fatalf("mismatch: %+v", out)
	}
}

func TestArrayPayloadRoundTrip(t *testing.T) {
	items := [][]byte{[]byte("a"), []byte(""), []byte("ccc")}
	out, err := DecodeArray(EncodeArray(items))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || string(out[0]) != "a" || string(out[2]) != "ccc" {
		t.Fatalf("mismatch: %v", out)
	}
}

func TestMalformedKeyPayloadRejected(t *testing.T) {
	if _, err := DecodeKeyPayload([]byte{0, 0, 0, 5, 'a'}); err != ErrMalformedPayload {
		t.Fatalf("want ErrMalformedPayload, got %v", err)
	}
}

func TestMSetPayloadRoundTrip(t *testing.T) {
	entries := []MSetEntry{
		{Key: []byte("a"), Value: []byte("1"), TTLSeconds: 0},
		{Key: []byte("b"), Value: []byte("22"), TTLSeconds: 30},
	}
	out, err := DecodeMSetPayload(EncodeMSetPayload(entries))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || string(out[1].Key) != "b" || out[1].TTLSeconds != 30 {
		t.Fatalf("mismatch: %+v", out)
	}
}

func TestScanResultRoundTrip(t *testing.T) {
	cursor, keys, err := DecodeScanResult(EncodeScanResult(3, [][]byte{[]byte("x"), []byte("y")}))
	if err != nil {
		t.Fatal(err)
	}
	if cursor != 3 || len(keys) != 2 {
		t.Fatalf("mismatch: cursor=%d keys=%v", cursor, keys)
	}
}
