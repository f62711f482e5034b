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

import "encoding/binary"

// Payload shapes for the extended KV opcodes supplemented in SPEC_FULL.md §12
// (MGET/MSET/INCR/DECR/SCAN). They reuse the same length-prefixed encoding
// conventions as the baseline opcodes so a single incremental decode loop
// handles all of them uniformly.

// EncodeMGetPayload / DecodeMGetPayload: a plain key array, reusing the
// Array wire shape.
func EncodeMGetPayload(keys [][]byte) []byte { return EncodeArray(keys) }
func DecodeMGetPayload(b []byte) ([][]byte, error) { return DecodeArray(b) }

// MSetEntry is one key/value/ttl triple within an MSet payload.
type MSetEntry struct {
	Key        []byte
	Value      []byte
	TTLSeconds uint64
}

// EncodeMSetPayload encodes u32 count followed by count SetPayload-shaped
// entries.
func EncodeMSetPayload(entries []MSetEntry) []byte {
	size := 4
	for _, e := range entries {
		size += 4 + len(e.Key) + 4 + len(e.Value) + 8
	}
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(entries)))
	off += 4
	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Key)))
		off += 4
		off += copy(buf[off:], e.Key)
		binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Value)))
		off += 4
		off += copy(buf[off:], e.Value)
		binary.BigEndian.PutUint64(buf[off:], e.TTLSeconds)
		off += 8
	}
	return buf
}

func DecodeMSetPayload(b []byte) ([]MSetEntry, error) {
	if len(b) < 4 {
		return nil, ErrMalformedPayload
	}
	count := binary.BigEndian.Uint32(b[0:4])
	off := 4
	entries := make([]MSetEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < off+4 {
			return nil, ErrMalformedPayload
		}
		klen := int(binary.BigEndian.Uint32(b[off:]))
		off += 4
		if len(b) < off+klen+4 {
			return nil, ErrMalformedPayload
		}
		key := b[off : off+klen]
		off += klen
		vlen := int(binary.BigEndian.Uint32(b[off:]))
		off += 4
		if len(b) < off+vlen+8 {
			return nil, ErrMalformedPayload
		}
		val := b[off : off+vlen]
		off += vlen
		ttl := binary.BigEndian.Uint64(b[off:])
		off += 8
		entries = append(entries, MSetEntry{Key: key, Value: val, TTLSeconds: ttl})
	}
	if off != len(b) {
		return nil, ErrMalformedPayload
	}
	return entries, nil
}

// IncrDecrPayload is the shared shape for Incr/Decr: a key and a signed
// delta magnitude to apply.
type IncrDecrPayload struct {
	Key   []byte
	Delta int64
}

func EncodeIncrDecrPayload(key []byte, delta int64) []byte {
	buf := make([]byte, 4+len(key)+8)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	off += copy(buf[off:], key)
	binary.BigEndian.PutUint64(buf[off:], uint64(delta))
	return buf
}

func DecodeIncrDecrPayload(b []byte) (IncrDecrPayload, error) {
	if len(b) < 4 {
		return IncrDecrPayload{}, ErrMalformedPayload
	}
	klen := int(binary.BigEndian.Uint32(b[0:4]))
	off := 4
	if len(b) != off+klen+8 {
		return IncrDecrPayload{}, ErrMalformedPayload
	}
	key := b[off : off+klen]
	off += klen
	delta := int64(binary.BigEndian.Uint64(b[off:]))
	return IncrDecrPayload{Key: key, Delta: delta}, nil
}

// ScanPayload requests up to Count keys starting after Cursor (an opaque
// shard/slot position; 0 begins a new scan).
type ScanPayload struct {
	Cursor uint32
	Count  uint32
}

func EncodeScanPayload(cursor, count uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], cursor)
	binary.BigEndian.PutUint32(buf[4:8], count)
	return buf
}

func DecodeScanPayload(b []byte) (ScanPayload, error) {
	if len(b) != 8 {
		return ScanPayload{}, ErrMalformedPayload
	}
	return ScanPayload{
		Cursor: binary.BigEndian.Uint32(b[0:4]),
		Count:  binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// ScanResult encodes a Scan response: the next cursor (0 means the scan is
// complete) followed by the matched keys, reusing the Array wire shape.
func EncodeScanResult(nextCursor uint32, keys [][]byte) []byte {
	body := EncodeArray(keys)
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[0:4], nextCursor)
	copy(buf[4:], body)
	return buf
}

func DecodeScanResult(b []byte) (uint32, [][]byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrMalformedPayload
	}
	cursor := binary.BigEndian.Uint32(b[0:4])
	keys, err := DecodeArray(b[4:])
	if err != nil {
		return 0, nil, err
	}
	return cursor, keys, nil
}
