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

//go:build linux

package workerpool

import "golang.org/x/sys/unix"

// pinToCPU restricts the calling OS thread's scheduling affinity to a
// single CPU; the caller must already have locked its goroutine to that
// thread with runtime.LockOSThread. KV workers do both once at startup (spec.md §4.4, §9 "Worker pinning"); vector
// workers deliberately never do, so the long vector computations stay off
// the cores KV latency depends on.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
