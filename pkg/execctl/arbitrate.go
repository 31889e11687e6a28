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

// ArbitrationResult is what Thread.NotifyStop reports back to the
// ProcessStopCoordinator for one thread's stop.
type ArbitrationResult struct {
	StopHere bool
	Report   Vote
	Explainer ThreadPlan
}

// NotifyStop runs the central stop-reason arbitration algorithm (§4.5)
// for a single native stop event delivered to this thread. stopID is
// the process's new current stop-id; event is the StopInfo resolved by
// the caller (typically the coordinator, consulting the native layer
// and the thread's own StopInfo provider) from the native stop event.
//
// NotifyStop is only ever called by the monitor thread (§5); it is
// mutually exclusive with any ThreadControl API call on the same
// thread via apiMu.
func (t *Thread) NotifyStop(stopID StopID, event StopInfo) ArbitrationResult {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()

	// Step 1: mark the StopInfo valid for the new epoch.
	t.stopID = stopID
	event.SnapshotStopID = stopID
	t.lastStopInfo = event
	t.runState = ThreadStopped
	t.currentFrames = newFrameList(t)
	t.unwind.Clear()

	// Step 3: resolve the explainer.
	explainer, depth, traceOnly := t.resolveExplainer(event)
	if traceOnly {
		// 3b: the top plan's tracer consumed the stop. No user-visible
		// stop; pop nothing.
		t.logFrameToTracer(t.plans.Top())
		return ArbitrationResult{StopHere: false, Report: VoteNoOpinion, Explainer: nil}
	}

	// Step 4: collect the explainer's decision.
	stopHere := explainer.ShouldStop(event)
	reported := event
	if explainer.MischiefManaged() {
		// §8 scenario 1: a managed (popped) plan reports as plan-complete,
		// not as whatever the raw native event happened to be.
		if stopHere {
			reported = PlanCompleteStopInfo(stopID, t.id, explainer, completedPlanReturn(explainer))
		}
		t.popThrough(depth, stopHere)
		popped := len(t.plans.Completed())
		// Step 5: cascade above the (now-removed) explainer.
		stopHere = t.cascade(stopHere)
		// A plan popped by the cascade voted to stop, so a halting stop
		// reports its completion too (e.g. a StepInstruction beneath a
		// StepOverBreakpoint that itself continued).
		if done := t.plans.Completed(); stopHere && len(done) > popped {
			last := done[len(done)-1]
			reported = PlanCompleteStopInfo(stopID, t.id, last, completedPlanReturn(last))
		}
	}
	t.lastStopInfo = reported

	// Step 6: auto-continue override.
	if explainer.AutoContinue() {
		stopHere = false
	}

	// Step 7: reporting vote, aggregated over the completed stack,
	// falling back to the new top-of-stack's vote.
	report := t.aggregateReportVote(reported)

	t.logFrameToTracer(explainer)

	result := ArbitrationResult{StopHere: stopHere, Report: report, Explainer: explainer}
	t.logArbitration(result, reported)
	return result
}

// completedPlanReturn extracts a CallFunction/CallUserExpression result
// from a just-completed plan, or nil for plan kinds that don't carry
// one (ordinary stepping plans report completion with no return value).
func completedPlanReturn(p ThreadPlan) *CallReturn {
	if cf, ok := p.(*CallFunctionPlan); ok {
		return &cf.Result
	}
	return nil
}

// logFrameToTracer implements the §6 "log(frame)" obligation: the
// explaining plan's attached tracer, if any, gets a snapshot of frame 0
// for every stop it explains.
func (t *Thread) logFrameToTracer(explainer ThreadPlan) {
	if explainer == nil {
		return
	}
	tracer := explainer.Tracer()
	if tracer == nil {
		return
	}
	frame, err := t.currentFrames.Frame(0)
	if err != nil {
		return
	}
	tracer.Log(FrameSnapshot{Index: frame.Index, PC: frame.PC, CFA: frame.CFA})
}

// resolveExplainer implements §4.5 step 3: the top plan if it explains
// the stop; else, if the top plan's tracer consumed it, a trace-only
// stop; else the first plan walking down the stack that explains it
// (Base always does, so this never falls through the bottom). depth is
// measured from the top (0 == top-of-stack).
func (t *Thread) resolveExplainer(event StopInfo) (explainer ThreadPlan, depth int, traceOnly bool) {
	top := t.plans.Top()
	if top.ExplainsStop(event) {
		return top, 0, false
	}
	if top.TracerExplainsStop() {
		return nil, -1, true
	}
	for d := 1; d < t.plans.Len(); d++ {
		p := t.plans.At(d)
		if p.ExplainsStop(event) {
			return p, d, false
		}
	}
	// Unreachable in a well-formed stack: Base always explains every
	// stop, and is always present at the bottom.
	return t.plans.Base(), t.plans.Len() - 1, false
}

// popThrough pops the explainer (at the given depth from the top) and
// every plan above it. WillStop is called on each only if stopHere;
// regardless, each popped plan lands in the completed buffer (drained
// on the next resume).
func (t *Thread) popThrough(depth int, stopHere bool) {
	for i := 0; i <= depth; i++ {
		p := t.plans.Top()
		if stopHere {
			p.WillStop()
		}
		t.plans.pop()
	}
}

// cascade implements §4.5 step 5: walk from the new top downward,
// consulting each plan's ShouldStop, stopping at a master plan that
// refuses discard, popping plans that report mischief_managed, and
// otherwise stopping the cascade at the first plan that does not
// consider itself done.
func (t *Thread) cascade(stopHere bool) bool {
	for {
		p := t.plans.Top()
		if p.Kind() == PlanBase {
			if vote := p.ShouldReportStop(t.lastStopInfo); vote != VoteNoOpinion {
				return vote == VoteYes
			}
			return stopHere
		}
		cascadeStop := p.ShouldStop(t.lastStopInfo)
		if !cascadeStop {
			return stopHere
		}
		if p.IsMasterPlan() && !p.OkToDiscard() {
			// Leave the master on top; its own stop decision wins.
			return cascadeStop
		}
		if !p.MischiefManaged() {
			return cascadeStop
		}
		p.WillStop()
		t.plans.pop()
		stopHere = cascadeStop
	}
}

// aggregateReportVote implements §4.5 step 7: the completed stack's
// votes (if any has an opinion) win over the current top's vote; if
// every vote is no-opinion, default to yes when the StopInfo is a
// breakpoint or exception, else no.
func (t *Thread) aggregateReportVote(event StopInfo) Vote {
	vote := VoteNoOpinion
	for _, p := range t.plans.Completed() {
		vote = combineVotes(vote, p.ShouldReportStop(event))
	}
	if vote == VoteNoOpinion {
		vote = t.plans.Top().ShouldReportStop(event)
	}
	if vote != VoteNoOpinion {
		return vote
	}
	switch event.Kind {
	case StopBreakpoint, StopException:
		return VoteYes
	default:
		return VoteNo
	}
}

// aggregateReportRunVote is §4.4's should_report_run counterpart to
// aggregateReportVote: it gives every plan on the stack a chance to ask
// that the act of resuming (not stopping) be surfaced to the user --
// e.g. a plan that wants "resuming thread 3 to step over a call"
// reported even though nothing will stop here. Unlike the stop side,
// there is no implicit default: silence from every plan means the
// resume itself is routine and unreported.
func (t *Thread) aggregateReportRunVote(event StopInfo) Vote {
	vote := VoteNoOpinion
	for _, p := range t.plans.Completed() {
		vote = combineVotes(vote, p.ShouldReportRun(event))
	}
	return combineVotes(vote, t.plans.Top().ShouldReportRun(event))
}
