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

import (
	"math/rand"
	"testing"
)

func flat(val float32, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = val
	}
	return v
}

func TestVAddVSearchRoundTrip(t *testing.T) {
	ix := New()
	if err := ix.Add("v1", flat(0.1, 8)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("v2", flat(0.9, 8)); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(flat(0.1, 8), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Key != "v1" {
		t.Fatalf("got %+v, want v1 first", results)
	}
}

func TestDimensionMismatchOnAdd(t *testing.T) {
	ix := New()
	if err := ix.Add("v1", flat(1, 1536)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("v2", flat(1, 768)); err != ErrDimensionMismatch {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestDimensionMismatchOnSearch(t *testing.T) {
	ix := New()
	if err := ix.Add("v1", flat(1, 1536)); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Search(flat(1, 768), 1); err != ErrDimensionMismatch {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchOnEmptyIndexReturnsEmpty(t *testing.T) {
	ix := New()
	results, err := ix.Search(flat(1, 4), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("want empty, got %v", results)
	}
}

func TestSearchTieBreakAscendingKey(t *testing.T) {
	ix := New()
	// Identical vectors tie on similarity; ascending key order must win.
	for _, k := range []string{"zeta", "alpha", "mid"} {
		if err := ix.Add(k, flat(0.5, 4)); err != nil {
			t.Fatal(err)
		}
	}
	results, err := ix.Search(flat(0.5, 4), 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if results[i].Key != w {
			t.Fatalf("position %d: got %s, want %s (%v)", i, results[i].Key, w, results)
		}
	}
}

func TestSearchResultsSortedDescendingAndBoundedByK(t *testing.T) {
	ix := New()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		v := make([]float32, 16)
		for j := range v {
			v[j] = rng.Float32()
		}
		if err := ix.Add(keyFor(i), v); err != nil {
			t.Fatal(err)
		}
	}
	query := make([]float32, 16)
	for j := range query {
		query[j] = rng.Float32()
	}
	results, err := ix.Search(query, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("want 5 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Fatalf("not sorted descending at %d: %+v", i, results)
		}
	}
	known := map[string]bool{}
	for i := 0; i < 50; i++ {
		known[keyFor(i)] = true
	}
	for _, r := range results {
		if !known[r.Key] {
			t.Fatalf("result key %s not among inserted keys", r.Key)
		}
	}
}

func keyFor(i int) string {
	return string(rune('a'+i%26)) + string(rune('A'+(i/26)%26))
}

func TestDeleteRemovesEntry(t *testing.T) {
	ix := New()
	_ = ix.Add("v1", flat(1, 4))
	if !ix.Delete("v1") {
		t.Fatal("expected delete to report removal")
	}
	if ix.Delete("v1") {
		t.Fatal("second delete should report no-op")
	}
	if ix.Len() != 0 {
		t.Fatalf("want empty index, got %d", ix.Len())
	}
}
