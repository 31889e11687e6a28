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

package execctl

import "testing"

func TestStopInfoIsValid(t *testing.T) {
	si := BreakpointStopInfo(5, 1, 9)
	if !si.IsValid(5) {
		t.Fatalf("StopInfo snapshotted at stop-id 5 should be valid at stop-id 5")
	}
	if si.IsValid(6) {
		t.Fatalf("a StopInfo must be invalid once the process has moved to a newer stop-id")
	}
}

func TestInvalidStopInfoNeverValid(t *testing.T) {
	si := InvalidStopInfo(1)
	if si.IsValid(0) {
		t.Fatalf("the StopInvalid sentinel must never report valid, even at stop-id 0")
	}
}

func TestStopInfoShouldStopDefaults(t *testing.T) {
	cases := []struct {
		name string
		si   StopInfo
		want bool
	}{
		{"breakpoint", BreakpointStopInfo(1, 1, 1), true},
		{"exception", ExceptionStopInfo(1, 1, 0, "x"), true},
		{"watchpoint", WatchpointStopInfo(1, 1, 1, WatchWrite), true},
		{"signal", SignalStopInfo(1, 1, 11), true},
		{"trace", TraceStopInfo(1, 1), false},
		{"none", NoneStopInfo(1, 1), false},
	}
	for _, c := range cases {
		if got := c.si.ShouldStop(); got != c.want {
			t.Errorf("%s.ShouldStop() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestStopInfoShouldStopOverride(t *testing.T) {
	si := BreakpointStopInfo(1, 1, 1)
	no := false
	si.ShouldStopOverride = &no
	if si.ShouldStop() {
		t.Fatalf("ShouldStopOverride=false must suppress the breakpoint default")
	}
}

func TestStopInfoWithLocationID(t *testing.T) {
	si := BreakpointStopInfo(1, 1, 1)
	if _, ok := si.LocationIDValue(); ok {
		t.Fatalf("a fresh BreakpointStopInfo should carry no location id")
	}
	si = si.WithLocationID(42)
	id, ok := si.LocationIDValue()
	if !ok || id != 42 {
		t.Fatalf("LocationIDValue() = (%d, %v), want (42, true)", id, ok)
	}
}
