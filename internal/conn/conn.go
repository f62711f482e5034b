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

// Package conn implements the per-connection state machine: an incremental
// read loop that feeds whole frames to the dispatcher, and a serialized
// write queue that posts responses back in whatever order they complete.
// It is grounded on the teacher's internal/ratelimiter/core/worker.go
// accept/serve-loop idiom (read goroutine, stop channel, WaitGroup drain)
// generalized from a single rate-limiter worker to a full-duplex
// request/response connection.
package conn

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"celrix/internal/dispatcher"
	"celrix/internal/metrics"
	"celrix/internal/protocol"
)

// State is the connection's lifecycle stage (spec.md §4.2).
type State int32

const (
	// StateReading accepts and dispatches new frames.
	StateReading State = iota
	// StateDraining has seen EOF from the peer; it refuses new frames but
	// still flushes responses for work already enqueued.
	StateDraining
	// StateClosed is terminal; a queued VSearch that has not started is
	// skipped, while other queued work still runs once dequeued.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "Reading"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const (
	defaultReadBuffer  = 64 * 1024
	defaultWriteQueue  = 256
)

// Conn wraps one accepted TCP connection and drives it through the VCP
// state machine.
type Conn struct {
	nc         net.Conn
	dispatcher *dispatcher.Dispatcher
	handler    dispatcher.Handler
	maxPayload int
	metrics    *metrics.Metrics

	state     atomic.Int32
	writeCh   chan *protocol.Frame
	closeCh   chan struct{}
	closeOnce sync.Once
	pending   sync.WaitGroup
	writerWG  sync.WaitGroup
}

// New constructs a Conn. handler executes domain logic for every
// non-protocol-error frame; it is invoked on a worker-pool goroutine, except
// for Ping, which the dispatcher answers inline on the read goroutine.
func New(nc net.Conn, d *dispatcher.Dispatcher, handler dispatcher.Handler, maxPayload int, m *metrics.Metrics) *Conn {
	if maxPayload <= 0 {
		maxPayload = protocol.DefaultMaxPayload
	}
	c := &Conn{
		nc:         nc,
		dispatcher: d,
		handler:    handler,
		maxPayload: maxPayload,
		metrics:    m,
		writeCh:    make(chan *protocol.Frame, defaultWriteQueue),
		closeCh:    make(chan struct{}),
	}
	return c
}

// Serve runs the connection to completion: it starts the writer goroutine,
// drives the read loop on the calling goroutine, and blocks until the
// connection is fully closed. Callers typically invoke Serve in its own
// goroutine per accepted connection.
func (c *Conn) Serve() {
	if c.metrics != nil {
		c.metrics.ConnectionOpened()
		defer c.metrics.ConnectionClosed()
	}
	c.writerWG.Add(1)
	go c.writeLoop()

	c.readLoop()

	// Reading stopped (EOF, protocol error, or the connection was closed
	// from elsewhere). Wait for work already enqueued to finish posting its
	// response before tearing down the writer (spec.md §4.2 Draining).
	c.pending.Wait()
	c.Close()
	c.writerWG.Wait()
}

// Close transitions the connection to Closed, unblocking anything waiting
// on closeCh (in-flight dispatcher backpressure, the writer loop) and
// closing the socket. Safe to call multiple times and from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.closeCh)
		c.nc.Close()
	})
}

// State reports the connection's current lifecycle stage.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) readLoop() {
	buf := make([]byte, 0, defaultReadBuffer)
	tmp := make([]byte, defaultReadBuffer)

	for {
		if c.State() != StateReading {
			return
		}

		for {
			frame, consumed, err := protocol.Decode(buf, c.maxPayload)
			if err == protocol.ErrNeedMore {
				break
			}
			if err != nil {
				log.Printf("conn: closing after frame error: %v", err)
				c.Close()
				return
			}
			buf = buf[consumed:]
			if !c.handle(frame) {
				// The connection was closed (e.g. backpressure cancellation
				// lost the race); stop reading further frames.
				return
			}
		}

		n, err := c.nc.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.beginDraining()
			} else {
				log.Printf("conn: read error: %v", err)
			}
			return
		}
	}
}

// beginDraining marks the connection Draining if it is still Reading. No
// new frames are accepted afterward, but work already dispatched is still
// allowed to post its response (spec.md §4.2).
func (c *Conn) beginDraining() {
	c.state.CompareAndSwap(int32(StateReading), int32(StateDraining))
}

// handle dispatches one decoded frame. Ping answers inline; everything else
// is enqueued on its lane, tracked by c.pending so Serve can wait for
// in-flight responses to post before closing the socket. Returns false if
// the dispatch lost the backpressure race against connection close.
func (c *Conn) handle(frame *protocol.Frame) bool {
	c.pending.Add(1)
	run := c.handler
	if frame.Opcode == protocol.OpVSearch {
		// spec.md §5: only the expensive vector search path may abandon
		// already-queued work for a dead sink; every other dequeued
		// operation (KV writes included) runs to completion regardless of
		// connection state, to keep worker logic simple.
		run = func(f *protocol.Frame) *protocol.Frame {
			if c.State() == StateClosed {
				return nil
			}
			return c.handler(f)
		}
	}
	ok := c.dispatcher.Dispatch(frame, run, func(resp *protocol.Frame) {
		defer c.pending.Done()
		if resp == nil {
			return
		}
		c.post(resp)
	}, c.closeCh)
	if !ok {
		c.pending.Done()
		return false
	}
	return true
}

// post hands a completed response to the write queue, respecting close.
func (c *Conn) post(f *protocol.Frame) {
	select {
	case c.writeCh <- f:
	case <-c.closeCh:
	}
}

func (c *Conn) writeLoop() {
	defer c.writerWG.Done()
	for {
		select {
		case frame := <-c.writeCh:
			if err := c.writeFrame(frame); err != nil {
				log.Printf("conn: write error: %v", err)
				c.Close()
				return
			}
		case <-c.closeCh:
			// Drain whatever is already queued before exiting so responses
			// for work that finished just before close still go out.
			for {
				select {
				case frame := <-c.writeCh:
					_ = c.writeFrame(frame)
				default:
					return
				}
			}
		}
	}
}

func (c *Conn) writeFrame(f *protocol.Frame) error {
	_, err := c.nc.Write(f.Bytes())
	return err
}
