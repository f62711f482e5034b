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
	"encoding/binary"
	"math"
)

// Payload sub-codecs are pure functions over byte slices, one pair per
// opcode shape in spec.md §6. They never touch the network or the store.

// KeyPayload is the shared shape of Get/Del/Exists/VDel: a single length-
// prefixed key.
type KeyPayload struct {
	Key []byte
}

func EncodeKeyPayload(key []byte) []byte {
	buf := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(key)))
	copy(buf[4:], key)
	return buf
}

func DecodeKeyPayload(b []byte) (KeyPayload, error) {
	if len(b) < 4 {
		return KeyPayload{}, ErrMalformedPayload
	}
	klen := binary.BigEndian.Uint32(b[0:4])
	if uint64(4+klen) != uint64(len(b)) {
		return KeyPayload{}, ErrMalformedPayload
	}
	return KeyPayload{Key: b[4 : 4+klen]}, nil
}

// SetPayload is the Set opcode's shape: key, value, ttl in seconds.
type SetPayload struct {
	Key        []byte
	Value      []byte
	TTLSeconds uint64
}

func EncodeSetPayload(p SetPayload) []byte {
	buf := make([]byte, 4+len(p.Key)+4+len(p.Value)+8)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(p.Key)))
	off += 4
	off += copy(buf[off:], p.Key)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(p.Value)))
	off += 4
	off += copy(buf[off:], p.Value)
	binary.BigEndian.PutUint64(buf[off:], p.TTLSeconds)
	return buf
}

func DecodeSetPayload(b []byte) (SetPayload, error) {
	if len(b) < 4 {
		return SetPayload{}, ErrMalformedPayload
	}
	klen := int(binary.BigEndian.Uint32(b[0:4]))
	off := 4
	if len(b) < off+klen+4 {
		return SetPayload{}, ErrMalformedPayload
	}
	key := b[off : off+klen]
	off += klen
	vlen := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+vlen+8 {
		return SetPayload{}, ErrMalformedPayload
	}
	val := b[off : off+vlen]
	off += vlen
	ttl := binary.BigEndian.Uint64(b[off:])
	off += 8
	if off != len(b) {
		return SetPayload{}, ErrMalformedPayload
	}
	return SetPayload{Key: key, Value: val, TTLSeconds: ttl}, nil
}

// EncodeInt encodes the Integer response payload: a big-endian i64.
func EncodeInt(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func DecodeInt(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, ErrMalformedPayload
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// EncodeArray encodes the Array response payload: u32 count, then count ×
// (u32 len, bytes).
func EncodeArray(items [][]byte) []byte {
	size := 4
	for _, it := range items {
		size += 4 + len(it)
	}
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(items)))
	off += 4
	for _, it := range items {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(it)))
		off += 4
		off += copy(buf[off:], it)
	}
	return buf
}

func DecodeArray(b []byte) ([][]byte, error) {
	if len(b) < 4 {
		return nil, ErrMalformedPayload
	}
	count := binary.BigEndian.Uint32(b[0:4])
	off := 4
	items := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < off+4 {
			return nil, ErrMalformedPayload
		}
		l := int(binary.BigEndian.Uint32(b[off:]))
		off += 4
		if len(b) < off+l {
			return nil, ErrMalformedPayload
		}
		items = append(items, b[off:off+l])
		off += l
	}
	if off != len(b) {
		return nil, ErrMalformedPayload
	}
	return items, nil
}

// VAddPayload is the VAdd opcode's shape: key, then a dim-length f32 vector.
type VAddPayload struct {
	Key    []byte
	Vector []float32
}

func EncodeVAddPayload(key []byte, vec []float32) []byte {
	buf := make([]byte, 4+len(key)+4+4*len(vec))
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	off += copy(buf[off:], key)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(vec)))
	off += 4
	for _, f := range vec {
		binary.BigEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	return buf
}

func DecodeVAddPayload(b []byte) (VAddPayload, error) {
	if len(b) < 4 {
		return VAddPayload{}, ErrMalformedPayload
	}
	klen := int(binary.BigEndian.Uint32(b[0:4]))
	off := 4
	if len(b) < off+klen+4 {
		return VAddPayload{}, ErrMalformedPayload
	}
	key := b[off : off+klen]
	off += klen
	dim := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if len(b) != off+4*dim {
		return VAddPayload{}, ErrMalformedPayload
	}
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		vec[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
		off += 4
	}
	return VAddPayload{Key: key, Vector: vec}, nil
}

// VSearchPayload is the VSearch opcode's shape: a dim-length f32 query
// vector followed by the requested result count k.
type VSearchPayload struct {
	Vector []float32
	K      uint32
}

func EncodeVSearchPayload(vec []float32, k uint32) []byte {
	buf := make([]byte, 4+4*len(vec)+4)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(vec)))
	off += 4
	for _, f := range vec {
		binary.BigEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:], k)
	return buf
}

func DecodeVSearchPayload(b []byte) (VSearchPayload, error) {
	if len(b) < 4 {
		return VSearchPayload{}, ErrMalformedPayload
	}
	dim := int(binary.BigEndian.Uint32(b[0:4]))
	off := 4
	if len(b) != off+4*dim+4 {
		return VSearchPayload{}, ErrMalformedPayload
	}
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		vec[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off:]))
		off += 4
	}
	k := binary.BigEndian.Uint32(b[off:])
	return VSearchPayload{Vector: vec, K: k}, nil
}

// EncodeError encodes the Error response payload: a UTF-8 message.
func EncodeError(msg string) []byte { return []byte(msg) }
