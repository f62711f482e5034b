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

package store

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is the default shard count when the caller passes 0.
// spec.md §3: "N = next power of two >= worker count (default 16)".
const DefaultShardCount = 16

// Resource errors, surfaced to clients as Error frames (spec.md §4.4, §7).
var (
	ErrKeyTooLarge   = errors.New("store: key exceeds maximum size")
	ErrValueTooLarge = errors.New("store: value exceeds maximum size")
)

// Default size caps, matching spec.md §3 ("key ... <= 64 KiB", "value ...
// <= configured max, default 512 MiB logical but payload-capped" — the VCP
// frame's own PayloadTooLarge cap is usually the tighter bound in practice).
const (
	DefaultMaxKeySize   = 64 << 10
	DefaultMaxValueSize = 512 << 20
)

// Options configures a Store.
type Options struct {
	// Shards is the shard count. It is rounded up to the next power of two
	// and clamped to at least 1. 0 uses DefaultShardCount.
	Shards int
	// Seed randomizes the hash applied to keys, hardening against
	// collision attacks on untrusted input (spec.md §4.6). 0 picks a
	// process-local random seed.
	Seed uint64
	MaxKeySize   int
	MaxValueSize int
}

// Store is the sharded, in-memory KV data plane. A key lives in exactly one
// shard for its lifetime (spec.md §3); shard membership never changes at
// runtime.
type Store struct {
	shards       []*shard
	mask         uint64
	seed         uint64
	maxKeySize   int
	maxValueSize int
}

// New constructs a Store with default options.
func New() *Store { return NewWithOptions(Options{}) }

// NewWithOptions constructs a Store with explicit tuning.
func NewWithOptions(opts Options) *Store {
	n := opts.Shards
	if n <= 0 {
		n = DefaultShardCount
	}
	n = nextPow2(n)

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	maxKeySize := opts.MaxKeySize
	if maxKeySize <= 0 {
		maxKeySize = DefaultMaxKeySize
	}
	maxValueSize := opts.MaxValueSize
	if maxValueSize <= 0 {
		maxValueSize = DefaultMaxValueSize
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Store{shards: shards, mask: uint64(n - 1), seed: seed, maxKeySize: maxKeySize, maxValueSize: maxValueSize}
}

// ShardCount returns the number of shards.
func (s *Store) ShardCount() int { return len(s.shards) }

// shardIndex returns the shard index for key: an xxhash-class, non-
// cryptographic 64-bit hash masked to N-1 (spec.md §4.6).
func (s *Store) shardIndex(key string) int {
	h := xxhash.Sum64String(key) ^ s.seed
	return int(h & s.mask)
}

func (s *Store) shardFor(key string) *shard { return s.shards[s.shardIndex(key)] }

// Get implements GET (spec.md §4.4): O(1) shard lookup, honoring TTL.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.shardFor(key).get(key, time.Now())
}

// Set implements SET. ttl == 0 means no expiry. Overwrites any existing
// entry unconditionally.
func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	if len(key) > s.maxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > s.maxValueSize {
		return ErrValueTooLarge
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.shardFor(key).set(key, value, expiresAt)
	return nil
}

// Del implements DEL: returns whether a live entry was removed.
func (s *Store) Del(key string) bool {
	return s.shardFor(key).del(key, time.Now())
}

// Exists implements EXISTS, honoring TTL.
func (s *Store) Exists(key string) bool {
	return s.shardFor(key).exists(key, time.Now())
}

// MGet implements MGET: a batch of independent Get calls in key order, each
// honoring its own shard's TTL state.
func (s *Store) MGet(keys []string) [][]byte {
	now := time.Now()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.shardFor(k).get(k, now); ok {
			out[i] = v
		}
	}
	return out
}

// MSetEntry is one key/value/ttl triple for MSet.
type MSetEntry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// MSet implements MSET: a batch of independent Set calls. It validates all
// entries before applying any of them, so a single oversized entry leaves
// the store untouched (spec.md §4.4 resource errors apply per-entry).
func (s *Store) MSet(entries []MSetEntry) error {
	for _, e := range entries {
		if len(e.Key) > s.maxKeySize {
			return ErrKeyTooLarge
		}
		if len(e.Value) > s.maxValueSize {
			return ErrValueTooLarge
		}
	}
	now := time.Now()
	for _, e := range entries {
		var expiresAt time.Time
		if e.TTL > 0 {
			expiresAt = now.Add(e.TTL)
		}
		s.shardFor(e.Key).set(e.Key, e.Value, expiresAt)
	}
	return nil
}

// Incr implements INCR: adds delta (positive) to the integer stored at key,
// creating it at 0 first if absent.
func (s *Store) Incr(key string, delta int64) (int64, error) {
	return s.shardFor(key).addInt(key, delta, time.Now())
}

// Decr implements DECR: equivalent to Incr with a negated delta.
func (s *Store) Decr(key string, delta int64) (int64, error) {
	return s.shardFor(key).addInt(key, -delta, time.Now())
}

// Scan implements SCAN: cursor encodes a shard index and an offset into
// that shard's live keys (0 begins a new scan); it returns up to count live
// keys and the next cursor, or nextCursor == 0 when the scan has covered
// every shard. A shard's live keys are sorted before paging so repeated
// calls resume at the same logical position even though Go's map iteration
// order is randomized per range. Because shard membership is fixed, a
// cursor is stable across calls even under concurrent writes elsewhere in
// the store (writes that land before or after the cursor's offset within
// the shard may or may not be observed, the same loose guarantee SCAN gives
// in spec.md §4.4).
func (s *Store) Scan(cursor uint32, count int) (keys []string, nextCursor uint32) {
	if count <= 0 {
		count = 100
	}
	now := time.Now()
	shardIdx, offset := decodeScanCursor(cursor)
	for shardIdx < len(s.shards) {
		sh := s.shards[shardIdx]
		var live []string
		sh.forEachKey(func(k string, e entry) {
			if !e.expired(now) {
				live = append(live, k)
			}
		})
		sort.Strings(live)

		if offset >= len(live) {
			shardIdx++
			offset = 0
			continue
		}

		end := offset + count
		if end > len(live) {
			end = len(live)
		}
		page := live[offset:end]

		if end < len(live) {
			return page, encodeScanCursor(shardIdx, end)
		}
		shardIdx++
		if shardIdx >= len(s.shards) {
			return page, 0
		}
		return page, encodeScanCursor(shardIdx, 0)
	}
	return nil, 0
}

// scanCursorShardBits splits a cursor into a shard index and an offset
// within that shard's sorted live-key list; 12 bits comfortably covers any
// realistic shard count (Shards is rounded to a power of two) while leaving
// 20 bits, over a million positions, for the offset.
const scanCursorShardBits = 12

func encodeScanCursor(shardIdx, offset int) uint32 {
	return uint32(shardIdx)<<(32-scanCursorShardBits) | uint32(offset)&(1<<(32-scanCursorShardBits)-1)
}

func decodeScanCursor(cursor uint32) (shardIdx, offset int) {
	return int(cursor >> (32 - scanCursorShardBits)), int(cursor & (1<<(32-scanCursorShardBits) - 1))
}

// Len returns the total number of entries across all shards, including any
// not-yet-reaped expired entries (an approximate, non-atomic count).
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.len()
	}
	return total
}

func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
