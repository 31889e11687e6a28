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

func TestThreadPlanStackFreshHasOnlyBase(t *testing.T) {
	thr, _, _ := newTestThread(1)
	if thr.Plans().Len() != 1 {
		t.Fatalf("expected a fresh stack to contain only Base, got len=%d", thr.Plans().Len())
	}
	if thr.Plans().Top().Kind() != PlanBase {
		t.Fatalf("expected Base on top of a fresh stack")
	}
}

func TestThreadPlanStackPushTopAt(t *testing.T) {
	thr, _, _ := newTestThread(1)
	step := NewStepInstructionPlan(thr, false)
	thr.Plans().Push(step)

	if thr.Plans().Len() != 2 {
		t.Fatalf("len after push = %d, want 2", thr.Plans().Len())
	}
	if thr.Plans().Top() != ThreadPlan(step) {
		t.Fatalf("Top() did not return the pushed plan")
	}
	if thr.Plans().At(0) != ThreadPlan(step) {
		t.Fatalf("At(0) did not return the top plan")
	}
	if thr.Plans().At(1).Kind() != PlanBase {
		t.Fatalf("At(1) did not return Base")
	}
}

func TestThreadPlanStackDrainForResume(t *testing.T) {
	thr, _, _ := newTestThread(1)
	s := thr.Plans()
	s.Push(NewStepInstructionPlan(thr, false))
	s.pop()
	if len(s.Completed()) != 1 {
		t.Fatalf("expected one completed plan before drain")
	}
	s.DrainForResume()
	if len(s.Completed()) != 0 {
		t.Fatalf("DrainForResume did not clear the completed buffer")
	}
}

func TestQueuePlanRejectsFailedValidation(t *testing.T) {
	thr, _, _ := newTestThread(1)
	p := &failingValidatePlan{planCommon: planCommon{kind: PlanStepInstruction, thread: thr}}
	if err := thr.QueuePlan(p); err == nil {
		t.Fatalf("expected QueuePlan to reject a plan that fails Validate")
	}
	if thr.Plans().Len() != 1 {
		t.Fatalf("a plan that failed Validate must never be pushed, stack len=%d", thr.Plans().Len())
	}
}

// failingValidatePlan is a minimal ThreadPlan stub whose Validate
// always fails, used to exercise QueuePlan's synchronous rejection
// path without dragging in a real stepping plan's preconditions.
type failingValidatePlan struct {
	planCommon
}

func (p *failingValidatePlan) String() string               { return "failing-validate" }
func (p *failingValidatePlan) Validate() error               { return NewError(ErrPlanValidationFailed, p.thread.id, nil, "nope") }
func (p *failingValidatePlan) ExplainsStop(StopInfo) bool    { return false }
func (p *failingValidatePlan) ShouldStop(StopInfo) bool      { return true }
