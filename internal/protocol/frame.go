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
	"errors"
	"fmt"
)

// HeaderSize is the fixed size, in bytes, of every VCP frame header.
const HeaderSize = 22

// Magic identifies the start of a VCP frame: the four bytes "CELX".
var Magic = [4]byte{'C', 'E', 'L', 'X'}

// Version is the only wire version this codec understands.
const Version = 1

// DefaultMaxPayload is the default cap on a frame's payload length, matching
// spec.md §4.1 ("PayloadTooLarge ... default 16 MiB").
const DefaultMaxPayload = 16 << 20

// Protocol-level errors. BadMagic, BadVersion, and PayloadTooLarge are fatal
// to the connection (spec.md §7, see IsFatal): the caller must close the
// socket on sight of any of these. MalformedPayload and UnknownOpcode are per-frame and are
// reported back to the client as an Error frame instead.
var (
	ErrNeedMore        = errors.New("protocol: need more data")
	ErrBadMagic        = errors.New("protocol: bad magic")
	ErrBadVersion      = errors.New("protocol: bad version")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrMalformedPayload = errors.New("protocol: malformed payload")
	ErrUnknownOpcode    = errors.New("protocol: unknown opcode")
)

// Frame is a single bidirectional unit of VCP exchange: a fixed header plus
// an opaque, opcode-defined payload.
type Frame struct {
	Version   uint8
	Opcode    Opcode
	Flags     uint16
	RequestID uint64
	Payload   []byte
}

// NewFrame builds a response/request frame with sane defaults (Version=1,
// Flags=0).
func NewFrame(op Opcode, requestID uint64, payload []byte) *Frame {
	return &Frame{Version: Version, Opcode: op, RequestID: requestID, Payload: payload}
}

// EncodedLen returns the number of bytes Encode will write for this frame.
func (f *Frame) EncodedLen() int {
	return HeaderSize + len(f.Payload)
}

// Encode writes the frame's 22-byte header followed by its payload into dst,
// which must have at least f.EncodedLen() bytes of capacity from offset 0.
// It returns the number of bytes written.
func (f *Frame) Encode(dst []byte) int {
	dst[0], dst[1], dst[2], dst[3] = Magic[0], Magic[1], Magic[2], Magic[3]
	dst[4] = Version
	dst[5] = byte(f.Opcode)
	binary.BigEndian.PutUint16(dst[6:8], f.Flags)
	binary.BigEndian.PutUint32(dst[8:12], uint32(len(f.Payload)))
	binary.BigEndian.PutUint64(dst[12:20], f.RequestID)
	dst[20], dst[21] = 0, 0
	n := copy(dst[HeaderSize:], f.Payload)
	return HeaderSize + n
}

// Bytes is a convenience wrapper around Encode that allocates its own buffer.
func (f *Frame) Bytes() []byte {
	buf := make([]byte, f.EncodedLen())
	f.Encode(buf)
	return buf
}

// Decode attempts to parse a single frame from the front of buf.
//
// Three outcomes, matching spec.md §4.1:
//   - (frame, n, nil): a complete frame was parsed; it spans buf[:n].
//   - (nil, 0, ErrNeedMore): buf does not yet contain a whole frame; the
//     caller should read more bytes and retry without discarding buf.
//   - (nil, 0, err) for any other err: the frame is invalid and the
//     connection must be closed (BadMagic, BadVersion, PayloadTooLarge).
//
// maxPayload bounds the accepted payload length; pass DefaultMaxPayload if
// the caller has no override configured.
func Decode(buf []byte, maxPayload int) (*Frame, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, ErrNeedMore
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return nil, 0, ErrBadMagic
	}
	if buf[4] != Version {
		return nil, 0, ErrBadVersion
	}
	opcode := Opcode(buf[5])
	flags := binary.BigEndian.Uint16(buf[6:8])
	payloadLen := binary.BigEndian.Uint32(buf[8:12])
	requestID := binary.BigEndian.Uint64(buf[12:20])

	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if int64(payloadLen) > int64(maxPayload) {
		return nil, 0, ErrPayloadTooLarge
	}

	total := HeaderSize + int(payloadLen)
	if len(buf) < total {
		return nil, 0, ErrNeedMore
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[HeaderSize:total])

	return &Frame{
		Version:   Version,
		Opcode:    opcode,
		Flags:     flags,
		RequestID: requestID,
		Payload:   payload,
	}, total, nil
}

// IsFatal reports whether err, as returned by Decode, requires the caller to
// close the connection rather than emit an Error response (spec.md §7).
func IsFatal(err error) bool {
	return errors.Is(err, ErrBadMagic) || errors.Is(err, ErrBadVersion) || errors.Is(err, ErrPayloadTooLarge)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{op=%s flags=%d id=%d payload=%dB}", f.Opcode, f.Flags, f.RequestID, len(f.Payload))
}
