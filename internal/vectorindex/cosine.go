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

// Package vectorindex implements the brute-force cosine-similarity vector
// index (spec.md §4.8). It maintains one mapping from key to embedding and
// its precomputed L2 norm, and it is deliberately simple: the CPU cost of a
// search is meant to be absorbed by the vector worker pool (spec.md §4.5),
// not hidden behind index cleverness.
package vectorindex

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

// hasWideDot is detected once at process start. cpuid.CPU.Supports reports
// the running CPU's real feature set (github.com/klauspost/cpuid/v2, the
// actively maintained successor to the cpuid dependency pulled in
// transitively by the kafka client examples in the retrieval pack).
var hasWideDot = cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3)

// dot computes the dot product of a and b, which must have equal length.
// It dispatches to an 8-wide unrolled accumulator when the CPU advertises
// AVX2+FMA3 (letting the compiler's own auto-vectorizer pack the
// independent accumulator chain into SIMD instructions) and otherwise
// falls back to a plain scalar loop. Both paths must agree within 1e-6
// relative error (spec.md §8 invariant 9); see cosine_test.go.
func dot(a, b []float32) float32 {
	if hasWideDot && len(a) >= 8 {
		return dotWide(a, b)
	}
	return dotScalar(a, b)
}

func dotScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// dotWide keeps eight independent partial sums so that the additions in
// each lane have no dependency on one another, which is what lets the
// compiler (or a future assembly replacement) execute them as one 8-wide
// SIMD op instead of a single serialized accumulator chain.
func dotWide(a, b []float32) float32 {
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += a[i+0] * b[i+0]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// l2Norm computes the Euclidean norm of v.
func l2Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// cosineSimilarity returns dot(q, v) / (|q|·|v|). qNorm and vNorm must be
// precomputed. A zero norm on either side yields 0 rather than NaN/Inf.
func cosineSimilarity(q, v []float32, qNorm, vNorm float32) float32 {
	denom := qNorm * vNorm
	if denom == 0 {
		return 0
	}
	return dot(q, v) / denom
}
