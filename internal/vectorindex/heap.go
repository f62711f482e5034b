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

package vectorindex

import "container/heap"

// scored is one candidate result: a key and its cosine similarity to the
// query vector.
type scored struct {
	key        string
	similarity float32
}

// less implements the ranking in spec.md §4.5: descending similarity, ties
// broken by ascending key byte order.
func less(a, b scored) bool {
	if a.similarity != b.similarity {
		return a.similarity < b.similarity
	}
	return a.key > b.key // reversed: the *worst* of two ties sorts first in a min-heap
}

// topKHeap is a bounded min-heap of size k: the root is always the current
// worst-ranked candidate, so a new candidate only needs one comparison
// against the root to know whether it belongs in the top k.
type topKHeap struct {
	items []scored
	k     int
}

func newTopKHeap(k int) *topKHeap {
	h := &topKHeap{items: make([]scored, 0, k), k: k}
	heap.Init(h)
	return h
}

func (h *topKHeap) offer(s scored) {
	if h.k <= 0 {
		return
	}
	if len(h.items) < h.k {
		heap.Push(h, s)
		return
	}
	if less(h.items[0], s) {
		h.items[0] = s
		heap.Fix(h, 0)
	}
}

// sorted drains the heap into a slice ordered best-first (descending
// similarity, ties ascending by key), independent of internal heap order.
func (h *topKHeap) sorted() []scored {
	out := make([]scored, len(h.items))
	copy(out, h.items)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j-1], out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// container/heap.Interface implementation; items[0] is always the minimum
// per less().
func (h *topKHeap) Len() int            { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool  { return less(h.items[i], h.items[j]) }
func (h *topKHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x interface{})  { h.items = append(h.items, x.(scored)) }
func (h *topKHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
