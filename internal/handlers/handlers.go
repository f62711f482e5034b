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

// Package handlers maps each VCP opcode to the store/vectorindex call that
// implements it, translating between wire payloads and domain calls. This
// is the one place request handling touches both internal/protocol and the
// two data planes; internal/conn and internal/dispatcher never import
// internal/store or internal/vectorindex directly, mirroring the way the
// teacher's cmd/tfd-proxy HTTP handlers are the only place that calls into
// plugin/tfd on behalf of an external request.
package handlers

import (
	"errors"
	"time"

	"celrix/internal/protocol"
	"celrix/internal/store"
	"celrix/internal/vectorindex"
)

// Handlers owns the two data planes and exposes Handle, satisfying
// dispatcher.Handler.
type Handlers struct {
	Store *store.Store
	Index *vectorindex.Index
}

// New constructs a Handlers bound to the given store and vector index.
func New(s *store.Store, idx *vectorindex.Index) *Handlers {
	return &Handlers{Store: s, Index: idx}
}

// Handle executes frame's opcode against the data planes and returns the
// response frame, tagged with the same request id (spec.md §4.2: "The
// server MUST preserve each request id unmodified").
func (h *Handlers) Handle(frame *protocol.Frame) *protocol.Frame {
	id := frame.RequestID
	switch frame.Opcode {
	case protocol.OpPing:
		return protocol.NewFrame(protocol.OpPong, id, nil)

	case protocol.OpGet:
		return h.handleGet(frame)
	case protocol.OpSet:
		return h.handleSet(frame)
	case protocol.OpDel:
		return h.handleDel(frame)
	case protocol.OpExists:
		return h.handleExists(frame)
	case protocol.OpMGet:
		return h.handleMGet(frame)
	case protocol.OpMSet:
		return h.handleMSet(frame)
	case protocol.OpIncr:
		return h.handleIncr(frame, 1)
	case protocol.OpDecr:
		return h.handleIncr(frame, -1)
	case protocol.OpScan:
		return h.handleScan(frame)

	case protocol.OpVAdd:
		return h.handleVAdd(frame)
	case protocol.OpVSearch:
		return h.handleVSearch(frame)
	case protocol.OpVDel:
		return h.handleVDel(frame)

	default:
		return errFrame(id, "UnknownOpcode")
	}
}

func errFrame(id uint64, msg string) *protocol.Frame {
	return protocol.NewFrame(protocol.OpError, id, protocol.EncodeError(msg))
}

func (h *Handlers) handleGet(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeKeyPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	v, ok := h.Store.Get(string(p.Key))
	if !ok {
		return protocol.NewFrame(protocol.OpNil, frame.RequestID, nil)
	}
	return protocol.NewFrame(protocol.OpValue, frame.RequestID, v)
}

func (h *Handlers) handleSet(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeSetPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	ttl := secondsToDuration(p.TTLSeconds)
	if err := h.Store.Set(string(p.Key), p.Value, ttl); err != nil {
		return errFrame(frame.RequestID, storeErrMessage(err))
	}
	return protocol.NewFrame(protocol.OpOk, frame.RequestID, nil)
}

func (h *Handlers) handleDel(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeKeyPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	deleted := h.Store.Del(string(p.Key))
	n := int64(0)
	if deleted {
		n = 1
	}
	return protocol.NewFrame(protocol.OpInt, frame.RequestID, protocol.EncodeInt(n))
}

func (h *Handlers) handleExists(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeKeyPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	exists := int64(0)
	if h.Store.Exists(string(p.Key)) {
		exists = 1
	}
	return protocol.NewFrame(protocol.OpInt, frame.RequestID, protocol.EncodeInt(exists))
}

func (h *Handlers) handleMGet(frame *protocol.Frame) *protocol.Frame {
	rawKeys, err := protocol.DecodeMGetPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	keys := make([]string, len(rawKeys))
	for i, k := range rawKeys {
		keys[i] = string(k)
	}
	values := h.Store.MGet(keys)
	return protocol.NewFrame(protocol.OpArray, frame.RequestID, protocol.EncodeArray(values))
}

func (h *Handlers) handleMSet(frame *protocol.Frame) *protocol.Frame {
	entries, err := protocol.DecodeMSetPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	storeEntries := make([]store.MSetEntry, len(entries))
	for i, e := range entries {
		storeEntries[i] = store.MSetEntry{
			Key:   string(e.Key),
			Value: e.Value,
			TTL:   secondsToDuration(e.TTLSeconds),
		}
	}
	if err := h.Store.MSet(storeEntries); err != nil {
		return errFrame(frame.RequestID, storeErrMessage(err))
	}
	return protocol.NewFrame(protocol.OpOk, frame.RequestID, nil)
}

func (h *Handlers) handleIncr(frame *protocol.Frame, sign int64) *protocol.Frame {
	p, err := protocol.DecodeIncrDecrPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	var result int64
	if sign < 0 {
		result, err = h.Store.Decr(string(p.Key), p.Delta)
	} else {
		result, err = h.Store.Incr(string(p.Key), p.Delta)
	}
	if err != nil {
		return errFrame(frame.RequestID, storeErrMessage(err))
	}
	return protocol.NewFrame(protocol.OpInt, frame.RequestID, protocol.EncodeInt(result))
}

func (h *Handlers) handleScan(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeScanPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	keys, next := h.Store.Scan(p.Cursor, int(p.Count))
	rawKeys := make([][]byte, len(keys))
	for i, k := range keys {
		rawKeys[i] = []byte(k)
	}
	return protocol.NewFrame(protocol.OpArray, frame.RequestID, protocol.EncodeScanResult(next, rawKeys))
}

func (h *Handlers) handleVAdd(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeVAddPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	if err := h.Index.Add(string(p.Key), p.Vector); err != nil {
		return errFrame(frame.RequestID, vectorErrMessage(err))
	}
	return protocol.NewFrame(protocol.OpOk, frame.RequestID, nil)
}

func (h *Handlers) handleVSearch(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeVSearchPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	results, err := h.Index.Search(p.Vector, int(p.K))
	if err != nil {
		return errFrame(frame.RequestID, vectorErrMessage(err))
	}
	// spec.md §4.5/§6: VSearch's response is Array(key, ...) — keys only,
	// already ranked by the index; similarity scores are not part of the
	// wire shape.
	items := make([][]byte, len(results))
	for i, r := range results {
		items[i] = []byte(r.Key)
	}
	return protocol.NewFrame(protocol.OpArray, frame.RequestID, protocol.EncodeArray(items))
}

func (h *Handlers) handleVDel(frame *protocol.Frame) *protocol.Frame {
	p, err := protocol.DecodeKeyPayload(frame.Payload)
	if err != nil {
		return errFrame(frame.RequestID, "MalformedPayload")
	}
	deleted := h.Index.Delete(string(p.Key))
	n := int64(0)
	if deleted {
		n = 1
	}
	return protocol.NewFrame(protocol.OpInt, frame.RequestID, protocol.EncodeInt(n))
}

// secondsToDuration converts a wire TTL (whole seconds, 0 meaning "no
// expiry") into the time.Duration the store API expects.
func secondsToDuration(seconds uint64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func storeErrMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrKeyTooLarge):
		return "KeyTooLarge"
	case errors.Is(err, store.ErrValueTooLarge):
		return "ValueTooLarge"
	case errors.Is(err, store.ErrNotInteger):
		return "NotInteger"
	default:
		return "internal"
	}
}

func vectorErrMessage(err error) string {
	if errors.Is(err, vectorindex.ErrDimensionMismatch) {
		return "DimensionMismatch"
	}
	return "internal"
}
