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

// Package protocol implements the VCP wire format: a 22-byte fixed header
// followed by an opcode-defined payload. It only converts between bytes and
// Frames; it knows nothing about stores, dispatch, or connections.
package protocol

// Opcode identifies the kind of a frame and, implicitly, its payload shape.
type Opcode uint8

const (
	OpPing Opcode = 0x01
	OpPong Opcode = 0x02

	OpGet    Opcode = 0x03
	OpSet    Opcode = 0x04
	OpDel    Opcode = 0x05
	OpExists Opcode = 0x06

	// Extended KV lane opcodes, anticipated by spec.md §4.3 ("MGET, MSET, INCR,
	// DECR, SCAN when present") and supplemented here.
	OpMGet Opcode = 0x07
	OpMSet Opcode = 0x08
	OpIncr Opcode = 0x09
	OpDecr Opcode = 0x0A
	OpScan Opcode = 0x0B

	OpOk     Opcode = 0x10
	OpError  Opcode = 0x11
	OpValue  Opcode = 0x12
	OpNil    Opcode = 0x13
	OpInt    Opcode = 0x14
	OpArray  Opcode = 0x15

	OpVAdd    Opcode = 0x20
	OpVSearch Opcode = 0x21
	// OpVDel supplements spec.md §3's "removed by VDEL (if exposed)".
	OpVDel Opcode = 0x22
)

// IsVectorLane reports whether the opcode belongs to the CPU-heavy vector
// lane (spec.md §4.3) as opposed to the latency-critical KV lane.
func (o Opcode) IsVectorLane() bool {
	switch o {
	case OpVAdd, OpVSearch, OpVDel:
		return true
	default:
		return false
	}
}

// IsRequest reports whether the opcode is a client→server request opcode.
func (o Opcode) IsRequest() bool {
	switch o {
	case OpPing, OpGet, OpSet, OpDel, OpExists,
		OpMGet, OpMSet, OpIncr, OpDecr, OpScan,
		OpVAdd, OpVSearch, OpVDel:
		return true
	default:
		return false
	}
}

func (o Opcode) String() string {
	switch o {
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	case OpGet:
		return "Get"
	case OpSet:
		return "Set"
	case OpDel:
		return "Del"
	case OpExists:
		return "Exists"
	case OpMGet:
		return "MGet"
	case OpMSet:
		return "MSet"
	case OpIncr:
		return "Incr"
	case OpDecr:
		return "Decr"
	case OpScan:
		return "Scan"
	case OpOk:
		return "Ok"
	case OpError:
		return "Error"
	case OpValue:
		return "Value"
	case OpNil:
		return "Nil"
	case OpInt:
		return "Integer"
	case OpArray:
		return "Array"
	case OpVAdd:
		return "VAdd"
	case OpVSearch:
		return "VSearch"
	case OpVDel:
		return "VDel"
	default:
		return "Unknown"
	}
}
