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

// Integration tests for Server exercise the real TCP listener, dispatcher,
// worker pools, and data planes together end to end, the same way the
// teacher's core_integration_test.go and worker_integration_test.go drive
// real components instead of mocks.
package server

import (
	"encoding/binary"
	"flag"
	"io"
	"net"
	"testing"
	"time"

	"celrix/internal/config"
	"celrix/internal/protocol"
)

func startTestServer(t *testing.T) (addr string, srv *Server, stop func()) {
	t.Helper()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := config.Parse(fs, []string{"-addr", "127.0.0.1:0", "-kv_pool_size", "2", "-vector_pool_size", "1"})
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}

	// Reserve an ephemeral port up front so the dial loop below has an
	// address to retry against before the listener inside srv exists.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	cfg.Addr = probe.Addr().String()
	probe.Close()

	srv = New(cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := net.Dial("tcp", cfg.Addr)
		if err == nil {
			c.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return cfg.Addr, srv, func() {
		srv.Stop()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop in time")
		}
	}
}

func writeFrame(t *testing.T, w io.Writer, f *protocol.Frame) {
	t.Helper()
	if _, err := w.Write(f.Bytes()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, r io.Reader) *protocol.Frame {
	t.Helper()
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	payloadLen := int(binary.BigEndian.Uint32(header[8:12]))
	full := make([]byte, protocol.HeaderSize+payloadLen)
	copy(full, header)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, full[protocol.HeaderSize:]); err != nil {
			t.Fatalf("read payload: %v", err)
		}
	}
	frame, _, err := protocol.Decode(full, 16<<20)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestServerEndToEndSetGetOverTCP(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))

	set := protocol.NewFrame(protocol.OpSet, 1, protocol.EncodeSetPayload(protocol.SetPayload{
		Key: []byte("greeting"), Value: []byte("hello"),
	}))
	writeFrame(t, c, set)
	if resp := readFrame(t, c); resp.Opcode != protocol.OpOk {
		t.Fatalf("set failed: %+v", resp)
	}

	get := protocol.NewFrame(protocol.OpGet, 2, protocol.EncodeKeyPayload([]byte("greeting")))
	writeFrame(t, c, get)
	resp := readFrame(t, c)
	if resp.Opcode != protocol.OpValue || string(resp.Payload) != "hello" {
		t.Fatalf("unexpected get response: %+v", resp)
	}
}

// TestServerPingStaysResponsiveDuringVectorLoad exercises lane isolation
// (spec.md §4.3, scenario S8): a VSearch in flight on one connection must
// not block a Ping answered on another.
func TestServerPingStaysResponsiveDuringVectorLoad(t *testing.T) {
	addr, _, stop := startTestServer(t)
	defer stop()

	vc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer vc.Close()
	vc.SetDeadline(time.Now().Add(5 * time.Second))

	dim := 64
	vec := make([]float32, dim)
	for i := 0; i < 256; i++ {
		vec[0] = float32(i)
		writeFrame(t, vc, protocol.NewFrame(protocol.OpVAdd, uint64(i), protocol.EncodeVAddPayload([]byte{byte(i), byte(i >> 8)}, vec)))
		readFrame(t, vc)
	}

	writeFrame(t, vc, protocol.NewFrame(protocol.OpVSearch, 1000, protocol.EncodeVSearchPayload(vec, 5)))

	pc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial ping conn: %v", err)
	}
	defer pc.Close()
	pc.SetDeadline(time.Now().Add(2 * time.Second))
	writeFrame(t, pc, protocol.NewFrame(protocol.OpPing, 1, nil))
	resp := readFrame(t, pc)
	if resp.Opcode != protocol.OpPong {
		t.Fatalf("expected Pong even under vector load, got %+v", resp)
	}

	searchResp := readFrame(t, vc)
	if searchResp.Opcode != protocol.OpArray {
		t.Fatalf("expected vsearch array response, got %+v", searchResp)
	}
}

func TestHealthAndMetricsSnapshotReportActivity(t *testing.T) {
	addr, srv, stop := startTestServer(t)
	defer stop()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))
	writeFrame(t, c, protocol.NewFrame(protocol.OpSet, 1, protocol.EncodeSetPayload(protocol.SetPayload{Key: []byte("k"), Value: []byte("v")})))
	readFrame(t, c)

	// The connection above is still open when we sample; Health should
	// report at least one live connection and one stored entry.
	h := srv.Health()
	if !h.Serving {
		t.Fatal("expected Serving to be true")
	}
	if h.Connections < 1 {
		t.Fatalf("expected at least one connection, got %d", h.Connections)
	}
	if h.StoreEntries < 1 {
		t.Fatalf("expected at least one stored entry, got %d", h.StoreEntries)
	}

	snap := srv.MetricsSnapshot()
	foundSet := false
	for _, op := range snap.Ops {
		if op.Opcode == "Set" && op.OK >= 1 {
			foundSet = true
		}
	}
	if !foundSet {
		t.Fatalf("expected a Set counter in the snapshot, got %+v", snap.Ops)
	}
}
