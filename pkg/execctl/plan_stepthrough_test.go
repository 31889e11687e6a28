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

func TestStepThroughPlanPushesRunToForEachHop(t *testing.T) {
	thr, _, _ := newTestThread(1)
	hops := map[Addr]Addr{
		0x400000: 0x410000, // PLT stub -> trampoline
		0x410000: 0x420000, // trampoline -> real target
	}
	resolver := HopResolver(func(pc Addr) (Addr, bool) {
		next, ok := hops[pc]
		return next, ok
	})
	plan := NewStepThroughPlan(thr, resolver)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}

	thr.PrepareResume()
	if thr.Plans().Top().Kind() != PlanRunToAddress {
		t.Fatalf("WillResume should have pushed a child RunToAddressPlan for the first hop")
	}
	if plan.done {
		t.Fatalf("the plan must not be done while hops remain")
	}
}

func TestStepThroughPlanCompletesWhenResolverGivesUp(t *testing.T) {
	thr, _, _ := newTestThread(1)
	resolver := HopResolver(func(Addr) (Addr, bool) { return 0, false })
	plan := NewStepThroughPlan(thr, resolver)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}

	thr.PrepareResume()
	if !plan.done {
		t.Fatalf("WillResume should mark the plan done once the resolver reports no further hop")
	}
	res := thr.NotifyStop(2, TraceStopInfo(2, thr.id))
	if !res.StopHere {
		t.Fatalf("a done StepThroughPlan should report complete on its next stop")
	}
}
