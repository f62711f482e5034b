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

func TestRoundTripFrame(t *testing.T) {
	cases := []*Frame{
		NewFrame(OpPing, 42, nil),
		NewFrame(OpSet, 7, EncodeSetPayload(SetPayload{Key: []byte("hello"), Value: []byte("world"), TTLSeconds: 0})),
		NewFrame(OpValue, 1, []byte("world")),
		NewFrame(OpArray, 9, EncodeArray([][]byte{[]byte("a"), []byte("bb"), []byte("ccc")})),
	}
	for _, f := range cases {
		encoded := f.Bytes()
		got, n, err := Decode(encoded, DefaultMaxPayload)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if n != len(encoded) {
			t.Fatalf("consumed %d, want %d", n, len(encoded))
		}
		if got.Opcode != f.Opcode || got.RequestID != f.RequestID || got.Flags != f.Flags {
			t.Fatalf("header mismatch: got %+v, want %+v", got, f)
		}
		if !bytes.Equal(got.Payload, f.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, f.Payload)
		}
	}
}

func TestDecodeNeedMoreOnShortHeader(t *testing.T) {
	buf := make([]byte, HeaderSize-1)
	_, _, err := Decode(buf, DefaultMaxPayload)
	if err != ErrNeedMore {
		t.Fatalf("want ErrNeedMore, got %v", err)
	}
}

func TestDecodeNeedMoreOnShortPayload(t *testing.T) {
	f := NewFrame(OpSet, 1, []byte("0123456789"))
	full := f.Bytes()
	for cut := HeaderSize; cut < len(full); cut++ {
		_, _, err := Decode(full[:cut], DefaultMaxPayload)
		if err != ErrNeedMore {
			t.Fatalf("cut=%d: want ErrNeedMore, got %v", cut, err)
		}
	}
}

func TestIncrementalDecodeMatchesWhole(t *testing.T) {
	f := NewFrame(OpVAdd, 5, []byte("payload-bytes-of-some-length"))
	full := f.Bytes()

	// Splitting the stream at any point and feeding the halves sequentially
	// through an accumulating buffer must yield the same result as decoding
	// the whole thing at once (spec.md §8 invariant 2).
	for split := 0; split <= len(full); split++ {
		var buf []byte
		buf = append(buf, full[:split]...)
		_, _, err := Decode(buf, DefaultMaxPayload)
		if split < HeaderSize || split < f.EncodedLen() {
			if err != ErrNeedMore {
				t.Fatalf("split=%d: want ErrNeedMore, got %v", split, err)
			}
		}
		buf = append(buf, full[split:]...)
		got, n, err := Decode(buf, DefaultMaxPayload)
		if err != nil {
			t.Fatalf("split=%d: unexpected error %v", split, err)
		}
		if n != len(full) || got.Opcode != f.Opcode {
			t.Fatalf("split=%d: mismatch after reassembly", split)
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	f := NewFrame(OpPing, 1, nil)
	buf := f.Bytes()
	buf[0] = 'X'
	_, _, err := Decode(buf, DefaultMaxPayload)
	if err != ErrBadMagic {
		t.Fatalf("want ErrBadMagic, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatalf("BadMagic must be fatal")
	}
}

func TestDecodeBadVersion(t *testing.T) {
	f := NewFrame(OpPing, 1, nil)
	buf := f.Bytes()
	buf[4] = 2
	_, _, err := Decode(buf, DefaultMaxPayload)
	if err != ErrBadVersion {
		t.Fatalf("want ErrBadVersion, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatalf("BadVersion must be fatal")
	}
}

func TestDecodePayloadTooLarge(t *testing.T) {
	f := NewFrame(OpSet, 1, make([]byte, 100))
	buf := f.Bytes()
	_, _, err := Decode(buf, 10)
	if err != ErrPayloadTooLarge {
		t.Fatalf("want ErrPayloadTooLarge, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatalf("PayloadTooLarge must be fatal")
	}
}

func TestDecodeTrailingBytesLeftForNextFrame(t *testing.T) {
	f1 := NewFrame(OpPing, 1, nil)
	f2 := NewFrame(OpPing, 2, nil)
	buf := append(f1.Bytes(), f2.Bytes()...)

	got1, n1, err := Decode(buf, DefaultMaxPayload)
	if err != nil || got1.RequestID != 1 {
		t.Fatalf("first decode failed: %v %+v", err, got1)
	}
	got2, n2, err := Decode(buf[n1:], DefaultMaxPayload)
	if err != nil || got2.RequestID != 2 {
		t.Fatalf("second decode failed: %v %+v", err, got2)
	}
	if n1+n2 != len(buf) {
		t.Fatalf("did not consume whole buffer")
	}
}
