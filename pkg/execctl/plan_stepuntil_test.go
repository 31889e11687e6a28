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

func TestStepUntilPlanStopsAtAnyAddress(t *testing.T) {
	thr, _, bp := newTestThread(1)
	plan := NewStepUntilPlan(thr, []Addr{0x500000, 0x500010}, 0)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	thr.PrepareResume()

	for _, a := range []Addr{0x500000, 0x500010} {
		if _, ok := bp.FindSite(a); !ok {
			t.Fatalf("expected a one-shot site at %#x", a)
		}
	}

	site, _ := bp.FindSite(0x500010)
	res := thr.NotifyStop(2, BreakpointStopInfo(2, thr.id, site.ID()))
	if !res.StopHere {
		t.Fatalf("hitting any until-address should complete the plan")
	}
	for _, a := range []Addr{0x500000, 0x500010} {
		if _, ok := bp.FindSite(a); ok {
			t.Fatalf("all until-sites must be removed once the plan pops, site at %#x still present", a)
		}
	}
}

func TestStepUntilPlanStopsOnEarlyReturn(t *testing.T) {
	thr, uw, _ := newTestThread(1)
	plan := NewStepUntilPlan(thr, []Addr{0x500000}, 0)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	thr.PrepareResume() // captures baseFrameCount == 1

	// Simulate the frame having returned: the unwinder now reports zero
	// frames for this stop.
	uw.frames = nil
	res := thr.NotifyStop(2, TraceStopInfo(2, thr.id))
	if !res.StopHere {
		t.Fatalf("returning from the frame before hitting any until-address must still complete the plan")
	}
}
