// Copyright 2018 The gVisor Authors.
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

// Package execctl implements the execution-control core of a source-level
// debugger: the thread plan stack, stop-reason arbitration, the stack
// unwinder contract, and thread-spec matching. It does not parse debug
// info, lay out types, compile expressions, or speak any wire protocol;
// those are external collaborators referenced through the interfaces in
// external.go.
package execctl

import "math"

// ThreadID identifies a single native thread within a target process.
// The zero value is not a valid id; use InvalidThreadID as the sentinel.
type ThreadID uint64

// InvalidThreadID is the sentinel distinguishing "no thread" / "unset".
const InvalidThreadID ThreadID = math.MaxUint64

// ThreadIndex is the debugger-assigned 1-based index of a thread within
// its process, stable across stops, distinct from the OS thread id.
type ThreadIndex uint32

// unsetIndex is the sentinel for an absent ThreadSpec.index field.
const unsetIndex ThreadIndex = math.MaxUint32

// StopID is a monotonically increasing counter incremented on every
// resume. It identifies a stop epoch: a StopInfo or checkpoint captured
// at StopID N is stale once the process has resumed and stopped again.
type StopID uint64

// SiteID identifies a breakpoint site installed through BreakpointRegistry.
type SiteID uint64

// WatchID identifies a watchpoint.
type WatchID uint64

// Addr is a target-process virtual address.
type Addr uint64
