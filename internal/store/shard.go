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

// Package store implements the sharded, in-memory KV data plane (spec.md
// §4.6) and its TTL reaper (§4.7). Each shard is independently lockable so
// concurrent writers on different shards never contend, matching the
// multi-reader/single-writer contract in spec.md §5.
package store

import (
	"sync"
	"time"
)

// entry is a single stored value plus its optional absolute expiry. A zero
// expiresAt means "no TTL". expiresAt is always derived from time.Now(), so
// comparisons retain the monotonic clock reading and are immune to wall
// clock adjustments (spec.md §3 "absolute, monotonic").
type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// shard is one independently lockable slice of the KV store.
type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

func newShard() *shard {
	return &shard{data: make(map[string]entry)}
}

// get returns the value for key if present and not expired.
func (s *shard) get(key string, now time.Time) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok || e.expired(now) {
		return nil, false
	}
	return e.value, true
}

// set overwrites (or creates) key unconditionally.
func (s *shard) set(key string, value []byte, expiresAt time.Time) {
	s.mu.Lock()
	s.data[key] = entry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

// del removes key if present and not already logically expired, returning
// whether a live entry was removed.
func (s *shard) del(key string, now time.Time) bool {
	s.mu.Lock()
	e, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	s.mu.Unlock()
	return ok && !e.expired(now)
}

// exists reports whether key is present and not expired, without copying
// the value.
func (s *shard) exists(key string, now time.Time) bool {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	return ok && !e.expired(now)
}

// addInt implements INCR/DECR: creates the key at 0 if absent, adds delta,
// and returns the resulting value. TTL, if the key already had one, is
// preserved; a freshly created counter has no TTL.
func (s *shard) addInt(key string, delta int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	var cur int64
	var expiresAt time.Time
	if ok && !e.expired(now) {
		v, err := parseInt64(e.value)
		if err != nil {
			return 0, err
		}
		cur = v
		expiresAt = e.expiresAt
	}
	cur += delta
	s.data[key] = entry{value: formatInt64(cur), expiresAt: expiresAt}
	return cur, nil
}

// forEachKey walks the shard's live map (not a copy); f is called with the
// lock held for read, so it must not call back into the shard.
func (s *shard) forEachKey(f func(key string, e entry)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.data {
		f(k, e)
	}
}

// deleteIfExpired removes key if, at the time of the call, it is expired.
// Returns whether it was removed. Used by the TTL reaper so eviction
// decisions are made under the shard's own lock rather than a stale read.
func (s *shard) deleteIfExpired(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || !e.expired(now) {
		return false
	}
	delete(s.data, key)
	return true
}

// sampleKeys returns up to n keys chosen without any particular order, for
// use by the TTL reaper's random sampling (spec.md §4.7). Go's map
// iteration order is already randomized per-process, so a prefix of a
// single range is an adequate "random sample" without extra bookkeeping.
func (s *shard) sampleKeys(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.data) {
		n = len(s.data)
	}
	out := make([]string, 0, n)
	for k := range s.data {
		if len(out) >= n {
			break
		}
		out = append(out, k)
	}
	return out
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
