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

func TestRunToAddressPlanRemovesSiteOnPop(t *testing.T) {
	thr, _, bp := newTestThread(1)
	const target = Addr(0x500000)
	plan := NewRunToAddressPlan(thr, target, false)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	thr.PrepareResume()
	if _, ok := bp.FindSite(target); !ok {
		t.Fatalf("expected the run-to site to be installed after PrepareResume")
	}

	site, _ := bp.FindSite(target)
	thr.NotifyStop(2, BreakpointStopInfo(2, thr.ID(), site.ID()))

	if _, ok := bp.FindSite(target); ok {
		t.Fatalf("the one-shot site should be removed once the plan is popped")
	}
}

func TestStepOutPlanImmediateAtBottomFrame(t *testing.T) {
	thr, _, _ := newTestThread(1) // single frame: no caller
	plan := NewStepOutPlan(thr, 0, false)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	if !plan.immediate {
		t.Fatalf("StepOutPlan at the bottom frame must be immediate")
	}
	// An immediate StepOutPlan explains (and completes) any stop handed
	// to it without ever having installed a site.
	res := thr.NotifyStop(2, TraceStopInfo(2, thr.ID()))
	if !res.StopHere {
		t.Fatalf("an immediate StepOutPlan should report done on the very next stop")
	}
}

func TestStepOutPlanUsesCallerPC(t *testing.T) {
	thr, uw, _ := newTestThread(1)
	uw.frames = []Addr{0x400000, 0x400050}
	plan := NewStepOutPlan(thr, 0, false)
	if plan.immediate {
		t.Fatalf("a frame with a caller must not be treated as immediate")
	}
	if plan.returnAddr != 0x400050 {
		t.Fatalf("returnAddr = %#x, want the caller frame's PC 0x400050", plan.returnAddr)
	}
}
