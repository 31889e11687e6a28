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

// PrepareResume runs the §4.6 pre-resume protocol and returns the
// ThreadResumeAction the coordinator should hand to the
// NativeProcessController. It must be called for every thread that is
// about to be resumed, in the order: drain buffers, notify StopInfo,
// will_resume top-down, auto-insert StepOverBreakpoint, clear StopInfo.
func (t *Thread) PrepareResume() ThreadResumeAction {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()

	// Step 1: drain completed/discarded buffers.
	t.plans.DrainForResume()

	// Step 2: notify the current StopInfo of the imminent resume so
	// watchpoint/breakpoint state can be prepared. StopInfo itself is
	// immutable data, so "notifying" it is a no-op placeholder for
	// collaborators (e.g. a watchpoint owner) that key off of it; the
	// core's own obligation is only to clear it in step 5.

	// Step 3: will_resume, top plan as current, then the rest beneath.
	// Each plan's own tracer (§6 "on_resume(state)") is notified
	// alongside WillResume, not instead of it: the two are independent
	// per-plan hooks fired on the same pre-resume pass.
	before := t.plans.Len()
	top := t.plans.Top()
	top.WillResume(top.RunState(), true)
	notifyTracerResume(top)
	// A plan may push a child from WillResume (StepInstruction's
	// StepOverBreakpoint, StepThrough's RunToAddress). The child is now
	// the current plan, so it gets the is_current hook in turn.
	for seen := before; t.plans.Len() > seen; {
		seen = t.plans.Len()
		child := t.plans.Top()
		child.WillResume(child.RunState(), true)
		notifyTracerResume(child)
	}
	for d := t.plans.Len() - before + 1; d < t.plans.Len(); d++ {
		p := t.plans.At(d)
		p.WillResume(p.RunState(), false)
		notifyTracerResume(p)
	}

	// Step 4: if PC sits on an enabled breakpoint site and the top plan
	// isn't already a StepOverBreakpoint, push one.
	if t.breakpoints != nil {
		if pc, err := t.currentPC(); err == nil {
			if site, ok := t.breakpoints.FindSite(pc); ok && site.Enabled() && t.plans.Top().Kind() != PlanStepOverBreakpoint {
				autoContinue := t.plans.Top().RunState() != RunStateStepping
				sob := newStepOverBreakpointPlan(t, site.ID(), autoContinue)
				t.plans.Push(sob)
				sob.WillResume(sob.RunState(), true)
			}
		}
	}

	// §4.4 should_report_run: give the stack a chance to ask that this
	// resume itself, not just a later stop, be surfaced to the user.
	// Computed against the StopInfo being resumed from, before step 5
	// clears it.
	reportRun := t.aggregateReportRunVote(t.lastStopInfo)

	action := ThreadResumeAction{
		Thread: t.id,
		Step:   t.plans.Top().RunState() == RunStateStepping,
		Signal: t.resumeSignal,
		Report: reportRun,
	}

	// Step 5: clear the previous StopInfo and the resume signal.
	t.lastStopInfo = InvalidStopInfo(t.id)
	t.resumeSignal = invalidSignal
	t.runState = ThreadRunning
	return action
}

// notifyTracerResume fires a plan's attached tracer's on_resume hook
// (§6), if it has one.
func notifyTracerResume(p ThreadPlan) {
	if tracer := p.Tracer(); tracer != nil {
		tracer.OnResume(p.RunState())
	}
}

// currentPC reads the live PC via frame 0 of a freshly-cleared
// unwinder; it does not use currentFrames, since PrepareResume may run
// before any frame materialization this stop.
func (t *Thread) currentPC() (Addr, error) {
	_, pc, err := t.unwind.FrameInfo(0)
	return pc, err
}

// SetResumeSignal sets the signal to deliver on the next resume (the
// "resume-signal" field of §3's Thread data model).
func (t *Thread) SetResumeSignal(sig int) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	t.resumeSignal = sig
}
