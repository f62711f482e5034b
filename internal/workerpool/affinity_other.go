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

//go:build !linux

package workerpool

// pinToCPU is a no-op on platforms without a scheduling-affinity syscall.
// Per spec.md §9, lane separation (distinct pool sizes, distinct queues)
// still holds without core pinning; only the jitter guarantee is lost.
func pinToCPU(cpu int) error {
	return nil
}
