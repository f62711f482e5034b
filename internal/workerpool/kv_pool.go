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

package workerpool

import (
	"log"
	"runtime"
	"sync"
)

// KVPool is the fixed set of workers draining the KV lane's queue (spec.md
// §4.4). Each worker locks itself to its own OS thread and, where the
// platform allows it, pins that thread to a distinct CPU, so the
// latency-critical lane never shares a core with vector compute.
type KVPool struct {
	queue *Queue
	size  int

	wg      sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

// NewKVPool constructs a pool of size workers feeding off queue. size
// defaults to runtime.NumCPU() when 0 (spec.md §4.4: "default = core
// count").
func NewKVPool(queue *Queue, size int) *KVPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &KVPool{queue: queue, size: size, stopCh: make(chan struct{})}
}

// Start launches the pool's worker goroutines.
func (p *KVPool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals all workers to exit after their current task and waits for
// them to drain. It does not cancel in-flight tasks (spec.md §5: writes
// complete regardless of cancellation to keep worker logic simple).
func (p *KVPool) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Size returns the configured worker count.
func (p *KVPool) Size() int { return p.size }

func (p *KVPool) worker(index int) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := pinToCPU(index % runtime.NumCPU()); err != nil {
		log.Printf("kv worker %d: CPU pinning unavailable, continuing unpinned: %v", index, err)
	}

	for {
		select {
		case task := <-p.queueChan():
			runTaskIsolated(task)
		case <-p.stopCh:
			return
		}
	}
}

func (p *KVPool) queueChan() chan Task { return p.queue.ch }

// runTaskIsolated executes a task, recovering any panic so a single
// malformed or buggy operation cannot bring down the worker (and therefore
// the rest of the pool and every other connection) — spec.md §7: "Internal
// panics in a worker must NOT bring down other workers or connections".
func runTaskIsolated(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: recovered from panic: %v", r)
		}
	}()
	task()
}
