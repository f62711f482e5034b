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

// Package server wires the store, vector index, worker pools, dispatcher,
// and TTL reaper into a running VCP listener. It plays the role the
// teacher's internal/ratelimiter/api.Server plays for HTTP: a thin
// ListenAndServe/Stop façade over already-built components, generalized
// here from net/http's built-in graceful shutdown to a raw TCP accept loop
// with the same start/track-connections/stop shape.
package server

import (
	"log"
	"net"
	"sync"

	"celrix/internal/config"
	"celrix/internal/conn"
	"celrix/internal/dispatcher"
	"celrix/internal/handlers"
	"celrix/internal/metrics"
	"celrix/internal/store"
	"celrix/internal/vectorindex"
	"celrix/internal/workerpool"
)

// Server owns every CELRIX component for one running instance.
type Server struct {
	cfg *config.Config

	store   *store.Store
	index   *vectorindex.Index
	reaper  *store.Reaper
	metrics *metrics.Metrics

	kvQueue     *workerpool.Queue
	vectorQueue *workerpool.Queue
	kvPool      *workerpool.KVPool
	vectorPool  *workerpool.VectorPool

	dispatcher *dispatcher.Dispatcher
	handlers   *handlers.Handlers

	listener net.Listener
	conns    sync.WaitGroup
	mu       sync.Mutex
	closing  bool
}

// New wires every component from cfg without starting anything.
func New(cfg *config.Config) *Server {
	s := store.NewWithOptions(store.Options{
		Shards:       cfg.Shards,
		Seed:         cfg.ShardSeed,
		MaxKeySize:   cfg.MaxKeySize,
		MaxValueSize: cfg.MaxValueSize,
	})
	idx := vectorindex.New()
	m := metrics.New()

	kvQueue := workerpool.NewQueue(cfg.KVQueueDepth)
	vectorQueue := workerpool.NewQueue(cfg.VectorQueueDepth)

	return &Server{
		cfg:         cfg,
		store:       s,
		index:       idx,
		metrics:     m,
		kvQueue:     kvQueue,
		vectorQueue: vectorQueue,
		kvPool:      workerpool.NewKVPool(kvQueue, cfg.KVPoolSize),
		vectorPool:  workerpool.NewVectorPool(vectorQueue, cfg.VectorPoolSize),
		dispatcher:  dispatcher.New(kvQueue, vectorQueue, m),
		handlers:    handlers.New(s, idx),
		reaper: store.NewReaper(s, store.ReaperOptions{
			Interval:          cfg.ReaperInterval,
			SampleSize:        cfg.ReaperSampleSize,
			AdaptiveThreshold: cfg.ReaperAdaptiveThreshold,
		}),
	}
}

// ListenAndServe binds cfg.Addr, starts the worker pools and reaper, and
// accepts connections until Stop is called. It blocks until the listener
// closes.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.kvPool.Start()
	s.vectorPool.Start()
	s.reaper.Start()

	log.Printf("celrix: listening on %s", ln.Addr())
	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				s.conns.Wait()
				return nil
			}
			return err
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			c := conn.New(nc, s.dispatcher, s.handlers.Handle, s.cfg.MaxFramePayload, s.metrics)
			c.Serve()
		}()
	}
}

// Stop closes the listener (refusing new connections), waits for every
// in-flight connection to finish draining, then stops the worker pools and
// reaper. Grounded on the teacher's SService.Stop: signal, then wait.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	s.conns.Wait()
	s.kvPool.Stop()
	s.vectorPool.Stop()
	s.reaper.Stop()
}

// Health reports whether the instance is serving (spec.md §4.9's admin
// layer consumes this to answer liveness/readiness probes).
type Health struct {
	Serving          bool
	Connections      int64
	KVQueueDepth     int
	VectorQueueDepth int
	StoreEntries     int
	VectorEntries    int
}

// Health returns a point-in-time liveness/readiness snapshot.
func (s *Server) Health() Health {
	kvDepth, vecDepth := s.dispatcher.QueueDepths()
	snap := s.metrics.Snapshot()
	return Health{
		Serving:          s.listener != nil && !s.closing,
		Connections:      snap.Connections,
		KVQueueDepth:      kvDepth,
		VectorQueueDepth:  vecDepth,
		StoreEntries:      s.store.Len(),
		VectorEntries:     s.index.Len(),
	}
}

// MetricsSnapshot exposes the counters/gauges described in spec.md §4.9 to
// an (external, out-of-scope) admin HTTP layer, after first publishing the
// lanes' current depth so the snapshot reflects this instant; nothing else
// updates the queue-depth gauges.
func (s *Server) MetricsSnapshot() metrics.Snapshot {
	kvDepth, vecDepth := s.dispatcher.QueueDepths()
	s.metrics.SetKVQueueDepth(kvDepth)
	s.metrics.SetVectorQueueDepth(vecDepth)
	return s.metrics.Snapshot()
}

// Metrics exposes the underlying Metrics instance (and, through its own
// Registry method, the Prometheus registry) for an external admin binary to
// mount behind promhttp.HandlerFor (spec.md §1: the scrape endpoint itself
// stays out of this package).
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }
