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

// celrix-loadgen is a tiny, dependency-free VCP load generator, the
// protocol-native descendant of the teacher's http-loadgen: instead of
// issuing HTTP requests over a pooled *http.Client, it dials raw TCP
// connections and speaks VCP frames directly, so demo scripts can drive a
// celrix-server instance without any external tooling.
//
// Modes:
//   - kv:  Set then Get a deterministic skew of keys (hot/cold, like the
//     teacher's zipf mode: hot_every-1 of every hot_every requests hit the
//     hot key)
//   - vec: VAdd a batch of random-ish vectors once, then issue repeated
//     VSearch requests against them
//
// Usage examples:
//
//	celrix-loadgen -addr=127.0.0.1:9443 -mode=kv -n=20000 -c=16
//	celrix-loadgen -addr=127.0.0.1:9443 -mode=vec -dim=64 -vectors=2000 -n=5000 -c=8
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"celrix/internal/protocol"
)

type modeType string

const (
	modeKV  modeType = "kv"
	modeVec modeType = "vec"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:9443", "celrix-server address, host:port")
		modeS    = flag.String("mode", string(modeKV), "Mode: kv|vec")
		hotKey   = flag.String("hot_key", "hot-1", "Hot key for kv mode")
		coldN    = flag.Int("cold_keys", 50, "Number of cold keys to round-robin in kv mode")
		hotEvery = flag.Int("hot_every", 5, "Skew period (all but 1 of this period go to the hot key; minimum 2)")
		dim      = flag.Int("dim", 32, "Vector dimension for vec mode")
		vectors  = flag.Int("vectors", 1000, "Number of vectors to seed before searching in vec mode")
		topK     = flag.Uint("top_k", 5, "Top-K for VSearch requests in vec mode")
		N        = flag.Int("n", 20000, "Total requests to send, split across all connections (excluding vec-mode seeding)")
		conc     = flag.Int("c", 8, "Number of concurrent connections")
		timeout  = flag.Duration("timeout", 30*time.Second, "Overall timeout for the loadgen run")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeKV && m != modeVec {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want kv|vec)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m == modeKV {
		if *coldN <= 0 {
			fmt.Fprintln(os.Stderr, "-cold_keys must be > 0 in kv mode")
			os.Exit(2)
		}
		if *hotEvery < 2 {
			*hotEvery = 2
		}
	}

	var seedVecs [][]float32
	if m == modeVec {
		seedVecs = seedVectors(*addr, *dim, *vectors, *timeout)
	}

	start := time.Now()
	var done int64
	var failed int64

	worker := func(id, count int) {
		conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
		if err != nil {
			atomic.AddInt64(&failed, int64(count))
			return
		}
		defer conn.Close()

		var reqID uint64 = uint64(id) << 32
		for i := 0; i < count; i++ {
			reqID++
			var frame *protocol.Frame
			if m == modeKV {
				k := skewedKey(i, id, *hotEvery, *coldN, *hotKey)
				if i%2 == 0 {
					frame = protocol.NewFrame(protocol.OpSet, reqID, protocol.EncodeSetPayload(protocol.SetPayload{
						Key: []byte(k), Value: []byte("v"),
					}))
				} else {
					frame = protocol.NewFrame(protocol.OpGet, reqID, protocol.EncodeKeyPayload([]byte(k)))
				}
			} else {
				vec := seedVecs[i%len(seedVecs)]
				frame = protocol.NewFrame(protocol.OpVSearch, reqID, protocol.EncodeVSearchPayload(vec, uint32(*topK)))
			}

			if err := writeFrame(conn, frame); err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			if _, err := readFrame(conn); err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			atomic.AddInt64(&done, 1)
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}

	doneCh := make(chan struct{})
	go func() { wg.Wait(); close(doneCh) }()
	select {
	case <-doneCh:
	case <-time.After(*timeout):
		fmt.Fprintln(os.Stderr, "celrix-loadgen: timed out waiting for workers")
	}

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(done) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d ok=%d failed=%d Duration=%s Throughput=%.0f req/s\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), done, failed, elapsed.Truncate(time.Millisecond), ops)
}

// skewedKey deterministically reproduces the teacher's 80/20-ish skew: most
// iterations hit the hot key, the rest round-robin across cold keys.
func skewedKey(i, id, hotEvery, coldN int, hotKey string) string {
	if ((i + id) % hotEvery) != 0 {
		return hotKey
	}
	idx := ((i + id) % coldN) + 1
	return "cold-" + strconv.Itoa(idx)
}

// seedVectors dials a short-lived connection, VAdds count vectors of the
// given dimension, and returns them so worker goroutines can reuse them as
// VSearch queries.
func seedVectors(addr string, dim, count int, timeout time.Duration) [][]float32 {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "celrix-loadgen: seed dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	vecs := make([][]float32, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = float32((i+d)%97) / 97.0
		}
		vecs[i] = vec

		key := []byte("seed-" + strconv.Itoa(i))
		frame := protocol.NewFrame(protocol.OpVAdd, uint64(i+1), protocol.EncodeVAddPayload(key, vec))
		if err := writeFrame(conn, frame); err != nil {
			fmt.Fprintf(os.Stderr, "celrix-loadgen: seed write: %v\n", err)
			os.Exit(1)
		}
		if _, err := readFrame(conn); err != nil {
			fmt.Fprintf(os.Stderr, "celrix-loadgen: seed read: %v\n", err)
			os.Exit(1)
		}
	}
	return vecs
}

func writeFrame(conn net.Conn, f *protocol.Frame) error {
	_, err := conn.Write(f.Bytes())
	return err
}

// readFrame blocks until a full frame is available, growing its read buffer
// as needed. It is a minimal client-side counterpart to conn.Conn's
// incremental server-side readLoop.
func readFrame(conn net.Conn) (*protocol.Frame, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		frame, _, err := protocol.Decode(buf, protocol.DefaultMaxPayload)
		if err == nil {
			return frame, nil
		}
		if err != protocol.ErrNeedMore {
			return nil, err
		}
		n, rerr := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}
