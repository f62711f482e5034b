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

// Package config defines CELRIX's runtime tunables and the flag.FlagSet
// that populates them, in the same style as cmd/tfd-proxy/main.go: every
// knob is a flag with a sane default, and zero/negative values supplied on
// the command line are normalized back to that default rather than
// propagated as invalid state.
package config

import (
	"flag"
	"runtime"
	"time"
)

// Config holds every tunable CELRIX needs at startup.
type Config struct {
	// Addr is the TCP listen address for the VCP server.
	Addr string

	// Shards is the KV store's shard count; must end up a power of two
	// (internal/store rounds up).
	Shards int
	// ShardSeed, when non-zero, pins the shard-hash seed for reproducible
	// tests; zero means process-randomized (spec.md §3 Shard).
	ShardSeed uint64
	MaxKeySize   int
	MaxValueSize int

	// ReaperInterval/ReaperSampleSize/ReaperAdaptiveThreshold tune the TTL
	// reaper's sweep cadence (spec.md §6.2 TTL Reaper).
	ReaperInterval          time.Duration
	ReaperSampleSize        int
	ReaperAdaptiveThreshold float64

	// KVPoolSize/VectorPoolSize size the two lane worker pools (spec.md
	// §4.4/§4.5). Zero means the package default (core count / 4).
	KVPoolSize     int
	VectorPoolSize int
	// KVQueueDepth/VectorQueueDepth bound each lane's MPMC queue.
	KVQueueDepth     int
	VectorQueueDepth int

	// MaxFramePayload bounds a single frame's payload (spec.md §4.1).
	MaxFramePayload int
}

// Parse builds a Config from the given flag.FlagSet (typically
// flag.CommandLine) and args, applying the teacher's zero-value
// normalization idiom after Parse.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.Addr, "addr", ":6380", "VCP listen address")
	fs.IntVar(&cfg.Shards, "shards", 16, "KV store shard count (rounded up to a power of two)")
	shardSeed := fs.Uint64("shard_seed", 0, "shard-hash seed; 0 means process-randomized")
	fs.IntVar(&cfg.MaxKeySize, "max_key_size", 64<<10, "maximum accepted key size in bytes")
	fs.IntVar(&cfg.MaxValueSize, "max_value_size", 512<<20, "maximum accepted value size in bytes")
	fs.DurationVar(&cfg.ReaperInterval, "reaper_interval", 100*time.Millisecond, "TTL reaper sweep cadence")
	fs.IntVar(&cfg.ReaperSampleSize, "reaper_sample_size", 20, "keys sampled per shard per reaper sweep")
	fs.Float64Var(&cfg.ReaperAdaptiveThreshold, "reaper_adaptive_threshold", 0.25, "expired-sample ratio that triggers an immediate re-sweep")
	fs.IntVar(&cfg.KVPoolSize, "kv_pool_size", 0, "KV worker pool size; 0 means runtime.NumCPU()")
	fs.IntVar(&cfg.VectorPoolSize, "vector_pool_size", 4, "vector worker pool size")
	fs.IntVar(&cfg.KVQueueDepth, "kv_queue_depth", 4096, "KV lane bounded queue depth")
	fs.IntVar(&cfg.VectorQueueDepth, "vector_queue_depth", 1024, "vector lane bounded queue depth")
	fs.IntVar(&cfg.MaxFramePayload, "max_frame_payload", 16<<20, "maximum accepted frame payload size in bytes")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.ShardSeed = *shardSeed

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Addr == "" {
		c.Addr = ":6380"
	}
	if c.Shards <= 0 {
		c.Shards = 16
	}
	if c.MaxKeySize <= 0 {
		c.MaxKeySize = 64 << 10
	}
	if c.MaxValueSize <= 0 {
		c.MaxValueSize = 512 << 20
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 100 * time.Millisecond
	}
	if c.ReaperSampleSize <= 0 {
		c.ReaperSampleSize = 20
	}
	if c.ReaperAdaptiveThreshold <= 0 {
		c.ReaperAdaptiveThreshold = 0.25
	}
	if c.KVPoolSize <= 0 {
		c.KVPoolSize = runtime.NumCPU()
	}
	if c.VectorPoolSize <= 0 {
		c.VectorPoolSize = 4
	}
	if c.KVQueueDepth <= 0 {
		c.KVQueueDepth = 4096
	}
	if c.VectorQueueDepth <= 0 {
		c.VectorQueueDepth = 1024
	}
	if c.MaxFramePayload <= 0 {
		c.MaxFramePayload = 16 << 20
	}
}
