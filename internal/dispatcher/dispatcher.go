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

// Package dispatcher routes a decoded frame to its lane's worker pool. It is
// the CELRIX analogue of the teacher's plugin/tfd/pipeline.go Handle method:
// a thin façade that classifies an already-parsed unit of work and hands it
// to the right queue, leaving the actual domain logic to an injected
// handler. Unlike the teacher's Pipeline, which always enqueues (and falls
// back from TryIngest to a blocking Ingest), Dispatch enforces backpressure
// by blocking the caller — the connection's read loop — until the lane's
// queue has room, except for Ping, which answers inline so health checks
// stay responsive under saturation (spec.md §4.3).
package dispatcher

import (
	"time"

	"celrix/internal/metrics"
	"celrix/internal/protocol"
	"celrix/internal/workerpool"
)

// Handler executes one request's domain logic and returns the response
// frame to send back. Handlers run on a worker goroutine, except for Ping,
// which Dispatch runs inline on the calling (read) goroutine.
type Handler func(frame *protocol.Frame) *protocol.Frame

// Responder delivers a completed response frame back to its connection.
type Responder func(frame *protocol.Frame)

// Dispatcher classifies frames into the KV lane or the vector lane and
// enqueues them on the corresponding bounded queue.
type Dispatcher struct {
	kvQueue     *workerpool.Queue
	vectorQueue *workerpool.Queue
	metrics     *metrics.Metrics
}

// New constructs a Dispatcher over the two lane queues. m may be nil, in
// which case no metrics are recorded.
func New(kvQueue, vectorQueue *workerpool.Queue, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{kvQueue: kvQueue, vectorQueue: vectorQueue, metrics: m}
}

// queueFor returns the lane queue that owns opcode.
func (d *Dispatcher) queueFor(opcode protocol.Opcode) *workerpool.Queue {
	if opcode.IsVectorLane() {
		return d.vectorQueue
	}
	return d.kvQueue
}

// Dispatch routes frame to its lane. Ping bypasses both queues entirely and
// is answered inline on the calling goroutine (spec.md §4.3: "Ping MAY
// bypass the queue and answer inline to keep health checks responsive even
// under saturation").
//
// For every other opcode, Dispatch enqueues a task on the opcode's lane
// queue and blocks — applying backpressure to the connection's read loop —
// until either the task is accepted or cancel fires (e.g. the connection
// closed while waiting). It returns false only in the cancel case; the
// caller should then stop reading from the socket, since the request was
// dropped rather than queued.
func (d *Dispatcher) Dispatch(frame *protocol.Frame, handle Handler, respond Responder, cancel <-chan struct{}) bool {
	start := time.Now()
	if frame.Opcode == protocol.OpPing {
		respond(d.run(frame, handle, start))
		return true
	}

	queue := d.queueFor(frame.Opcode)
	task := func() {
		respond(d.run(frame, handle, start))
	}
	return queue.Enqueue(task, cancel)
}

// run executes handle and records result and latency metrics; latency is
// measured from start, taken when Dispatch received the frame, so it
// includes any time spent waiting in the lane queue. run does not recover
// panics itself: for queued tasks the recover in
// workerpool.runTaskIsolated provides panic isolation (spec.md §7), while a
// panic in the inline Ping path propagates to Dispatch's caller.
func (d *Dispatcher) run(frame *protocol.Frame, handle Handler, start time.Time) *protocol.Frame {
	resp := handle(frame)
	if d.metrics != nil {
		isError := resp == nil || resp.Opcode == protocol.OpError
		d.metrics.RecordResult(frame.Opcode.String(), isError)
		d.metrics.ObserveLatency(frame.Opcode.String(), time.Since(start))
	}
	return resp
}

// QueueDepths returns the current depth of each lane, for periodic
// publication to metrics.
func (d *Dispatcher) QueueDepths() (kv, vector int) {
	return d.kvQueue.Depth(), d.vectorQueue.Depth()
}
