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

package nativeptrace

import (
	"testing"

	"golang.org/x/time/rate"

	"github.com/tracewalk/execctl/pkg/execctl"
)

func TestLogTracerNeverExplainsStop(t *testing.T) {
	tr := NewLogTracer(rate.Inf, 10)
	if tr.OnStop() {
		t.Fatalf("LogTracer must be purely observational: OnStop() should always report false")
	}
}

func TestLogTracerRecordsEntries(t *testing.T) {
	tr := NewLogTracer(rate.Inf, 10)
	tr.Log(execctl.FrameSnapshot{Index: 0, PC: 0x400000, CFA: 0x1000})
	tr.Log(execctl.FrameSnapshot{Index: 1, PC: 0x400100, CFA: 0x1100})

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d frames, want 2", len(entries))
	}
	if entries[0].PC != 0x400000 || entries[1].PC != 0x400100 {
		t.Fatalf("Entries() out of order or corrupted: %+v", entries)
	}
}

func TestLogTracerEntriesAreDefensiveCopies(t *testing.T) {
	tr := NewLogTracer(rate.Inf, 10)
	tr.Log(execctl.FrameSnapshot{Index: 0, PC: 0x400000})

	entries := tr.Entries()
	entries[0].PC = 0xDEAD

	again := tr.Entries()
	if again[0].PC == 0xDEAD {
		t.Fatalf("mutating a slice returned by Entries() must not corrupt the tracer's own record")
	}
}

func TestLogTracerDropsOverRateLimit(t *testing.T) {
	tr := NewLogTracer(rate.Limit(0), 1)
	tr.Log(execctl.FrameSnapshot{Index: 0})
	tr.Log(execctl.FrameSnapshot{Index: 1})

	if len(tr.Entries()) != 1 {
		t.Fatalf("a zero refill rate with burst 1 should admit exactly one entry, got %d", len(tr.Entries()))
	}
}
