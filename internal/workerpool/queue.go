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

// Package workerpool implements the two lane pools described in spec.md
// §4.4 and §4.5: a fixed set of pinned workers for KV operations and a
// fixed set of unpinned workers for vector operations, each fed by its own
// bounded queue. A Go buffered channel is already a correct bounded MPMC
// queue, so Queue is a thin, typed wrapper around one rather than a
// reimplementation.
package workerpool

// Task is one unit of dispatched work. It runs on a lane's worker
// goroutine; it must not block on anything outside the store/index it
// touches (spec.md §5: "No worker is permitted to hold a shard lock across
// a suspension point").
type Task func()

// Queue is the bounded MPMC queue feeding one lane's worker pool.
type Queue struct {
	ch chan Task
}

// NewQueue constructs a queue with the given bounded capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Task, capacity)}
}

// Enqueue blocks until the task is accepted or ctx-like cancellation is
// signaled via done. This is the backpressure path mandated by spec.md §4.3:
// the dispatcher suspends the connection's read loop rather than dropping
// work. Returns false if done fired before the task was accepted.
func (q *Queue) Enqueue(t Task, done <-chan struct{}) bool {
	select {
	case q.ch <- t:
		return true
	case <-done:
		return false
	}
}

// TryEnqueue attempts to enqueue without blocking. Returns false if the
// queue is at capacity.
func (q *Queue) TryEnqueue(t Task) bool {
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Depth reports the current number of queued-but-undispatched tasks, used
// by internal/metrics for the per-lane queue-depth gauge (spec.md §4.9).
func (q *Queue) Depth() int { return len(q.ch) }

// Capacity returns the queue's configured bound.
func (q *Queue) Capacity() int { return cap(q.ch) }

// Chan exposes the underlying channel so a pool (or a test standing in for
// one) can select on it directly alongside its own stop signal.
func (q *Queue) Chan() chan Task { return q.ch }
