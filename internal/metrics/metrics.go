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

// Package metrics implements the counters, latency histograms, and
// queue-depth/connection gauges behind the metrics-snapshot hook spec.md
// §4.9 says the core exposes to an (out-of-scope) admin layer. Counters are
// kept as plain atomics — the same idiom as the teacher's
// internal/ratelimiter/core/metrics.go — so Snapshot() is lock-free and
// internally consistent, and are mirrored into
// github.com/prometheus/client_golang collectors (as
// internal/ratelimiter/telemetry/churn/prom_counters.go does) so an
// external admin binary can mount them on its own /metrics registry without
// this package ever opening a socket itself.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// opSlot holds the atomic counters for a single opcode.
type opSlot struct {
	ok     atomic.Int64
	errors atomic.Int64
}

// Metrics is the process-local metrics registry for one CELRIX instance.
// It is safe for concurrent use from every connection and worker goroutine.
type Metrics struct {
	mu  sync.RWMutex
	ops map[string]*opSlot

	connections  atomic.Int64
	kvQueueDepth atomic.Int64
	vecQueueDepth atomic.Int64

	registry   *prometheus.Registry
	opCounter  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	connGauge  prometheus.Gauge
	kvDepthGauge  prometheus.Gauge
	vecDepthGauge prometheus.Gauge
}

// New constructs a Metrics instance with its own Prometheus registry (never
// the global default registry, so multiple instances — e.g. in tests — can
// coexist without MustRegister panicking on duplicate collectors).
func New() *Metrics {
	m := &Metrics{
		ops:      make(map[string]*opSlot),
		registry: prometheus.NewRegistry(),
	}
	m.opCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "celrix_requests_total",
		Help: "Total requests processed, by opcode and result.",
	}, []string{"opcode", "result"})
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "celrix_request_latency_seconds",
		Help:    "Wall-clock time from frame parsed to response enqueued, by opcode.",
		Buckets: prometheus.DefBuckets,
	}, []string{"opcode"})
	m.connGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "celrix_connections",
		Help: "Currently open client connections.",
	})
	m.kvDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "celrix_kv_queue_depth",
		Help: "Number of KV-lane tasks currently queued.",
	})
	m.vecDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "celrix_vector_queue_depth",
		Help: "Number of vector-lane tasks currently queued.",
	})
	m.registry.MustRegister(m.opCounter, m.latency, m.connGauge, m.kvDepthGauge, m.vecDepthGauge)
	return m
}

// Registry returns the Prometheus registry backing this instance, for an
// external admin HTTP layer to mount behind promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordResult records the outcome of one request for opcode.
func (m *Metrics) RecordResult(opcode string, isError bool) {
	slot := m.slotFor(opcode)
	result := "ok"
	if isError {
		slot.errors.Add(1)
		result = "error"
	} else {
		slot.ok.Add(1)
	}
	m.opCounter.WithLabelValues(opcode, result).Inc()
}

// ObserveLatency records the wall-clock duration from frame-parsed to
// response-enqueued for opcode.
func (m *Metrics) ObserveLatency(opcode string, d time.Duration) {
	m.latency.WithLabelValues(opcode).Observe(d.Seconds())
}

// ConnectionOpened/ConnectionClosed maintain the live connection gauge.
func (m *Metrics) ConnectionOpened() {
	m.connections.Add(1)
	m.connGauge.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.connections.Add(-1)
	m.connGauge.Dec()
}

// SetKVQueueDepth/SetVectorQueueDepth publish the lanes' current depth;
// Server.MetricsSnapshot calls them when a snapshot is taken rather than
// per-enqueue, keeping the hot path free of extra atomics.
func (m *Metrics) SetKVQueueDepth(n int) {
	m.kvQueueDepth.Store(int64(n))
	m.kvDepthGauge.Set(float64(n))
}

func (m *Metrics) SetVectorQueueDepth(n int) {
	m.vecQueueDepth.Store(int64(n))
	m.vecDepthGauge.Set(float64(n))
}

func (m *Metrics) slotFor(opcode string) *opSlot {
	m.mu.RLock()
	slot, ok := m.ops[opcode]
	m.mu.RUnlock()
	if ok {
		return slot
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.ops[opcode]; ok {
		return slot
	}
	slot = &opSlot{}
	m.ops[opcode] = slot
	return slot
}

// OpCounters is one opcode's snapshot counters.
type OpCounters struct {
	Opcode string
	OK     int64
	Errors int64
}

// Snapshot is an internally consistent point-in-time view of every counter
// (spec.md §4.9: "the snapshot is internally consistent (monotonic counters
// read atomically)"). Each field is read with a single atomic load; there
// is no cross-field transaction, matching the spec's own qualifier.
type Snapshot struct {
	Ops              []OpCounters
	Connections      int64
	KVQueueDepth     int64
	VectorQueueDepth int64
}

// Snapshot takes a point-in-time reading of every counter.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ops := make([]OpCounters, 0, len(m.ops))
	for op, slot := range m.ops {
		ops = append(ops, OpCounters{Opcode: op, OK: slot.ok.Load(), Errors: slot.errors.Load()})
	}
	return Snapshot{
		Ops:              ops,
		Connections:      m.connections.Load(),
		KVQueueDepth:     m.kvQueueDepth.Load(),
		VectorQueueDepth: m.vecQueueDepth.Load(),
	}
}
