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

func TestPrepareResumeStepsWhenTopIsStepping(t *testing.T) {
	thr, _, _ := newTestThread(1)
	thr.plans.Push(NewStepInstructionPlan(thr, false))

	action := thr.PrepareResume()
	if !action.Step {
		t.Fatalf("PrepareResume should request a single step while a StepInstructionPlan is on top")
	}
	if action.Thread != thr.id {
		t.Fatalf("action.Thread = %d, want %d", action.Thread, thr.id)
	}
}

func TestPrepareResumeAutoInsertsStepOverBreakpoint(t *testing.T) {
	thr, _, bp := newTestThread(1)
	// frame 0's PC is 0x400000 by construction; install an enabled site
	// right there so PrepareResume's step-4 check fires.
	if _, err := bp.Install(0x400000, NewThreadSpec()); err != nil {
		t.Fatalf("Install: %v", err)
	}

	thr.PrepareResume()
	if thr.Plans().Top().Kind() != PlanStepOverBreakpoint {
		t.Fatalf("PrepareResume must push a StepOverBreakpointPlan when resuming on an enabled site, got %v", thr.Plans().Top().Kind())
	}
}

func TestPrepareResumeClearsStopInfoAndSignal(t *testing.T) {
	thr, _, _ := newTestThread(1)
	thr.lastStopInfo = SignalStopInfo(1, thr.id, 5)
	thr.SetResumeSignal(5)

	thr.PrepareResume()

	if thr.lastStopInfo.Kind != StopInvalid {
		t.Fatalf("PrepareResume must invalidate the previous StopInfo")
	}
	if thr.resumeSignal != invalidSignal {
		t.Fatalf("PrepareResume must clear the one-shot resume signal")
	}
	if thr.runState != ThreadRunning {
		t.Fatalf("runState after PrepareResume = %v, want ThreadRunning", thr.runState)
	}
}

func TestPrepareResumeNotifiesTracer(t *testing.T) {
	thr, _, _ := newTestThread(1)
	plan := NewStepInstructionPlan(thr, false)
	tracer := &recordingTracer{}
	plan.SetTracer(tracer)
	thr.plans.Push(plan)

	thr.PrepareResume()
	if tracer.resumes != 1 {
		t.Fatalf("PrepareResume must notify the top plan's tracer via OnResume, resumes=%d", tracer.resumes)
	}
}

func TestPrepareResumeAggregatesReportRun(t *testing.T) {
	thr, _, _ := newTestThread(1)
	plan := &reportRunPlan{
		planCommon: planCommon{kind: PlanStepInstruction, thread: thr, okToDiscard: true},
		vote:       VoteYes,
	}
	thr.plans.Push(plan)

	action := thr.PrepareResume()
	if action.Report != VoteYes {
		t.Fatalf("PrepareResume.Report = %v, want VoteYes from the pushed plan's ShouldReportRun", action.Report)
	}
}
