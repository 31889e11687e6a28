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

// CallSetup is the ABI-specific collaborator that knows how to build an
// artificial call frame: the raw register image to install (argument
// registers, stack pointer, and return address pointed at a sentinel),
// and how to pull a return value back out of registers/memory once the
// sentinel is hit. The core never encodes calling-convention knowledge
// itself.
type CallSetup interface {
	// PrepareCall returns the register image to install for the call and
	// the address the sentinel one-shot breakpoint must watch.
	PrepareCall(t *Thread) (regs []byte, sentinel Addr, err error)
	// ExtractReturn reads the call's result after the sentinel fires.
	ExtractReturn(t *Thread) CallReturn
}

// CallFunctionPlan evaluates a function call (or a user expression
// compiled down to one) as a side-trip: it checkpoints the thread,
// installs an artificial frame whose return address is a sentinel
// one-shot breakpoint, and restores the checkpoint once the sentinel
// fires or an error aborts the call. It is the plan run_thread_plan
// drives for CallFunction and CallUserExpression requests.
type CallFunctionPlan struct {
	planCommon
	setup          CallSetup
	discardOnError bool

	haveCheckpoint bool
	checkpoint     ThreadStateCheckpoint

	sentinel    Addr
	site        SiteID
	haveSite    bool
	setupFailed error

	Result CallReturn
	done   bool
}

// NewCallFunctionPlan returns a plan that performs one call-and-return
// side trip. discardOnError controls whether a stop unrelated to the
// sentinel (e.g. a crash inside the called function) aborts the call
// and restores the checkpoint, or is left for an enclosing arbitration
// pass to decide (§4.7 discard_on_error semantics).
func NewCallFunctionPlan(t *Thread, setup CallSetup, discardOnError bool) *CallFunctionPlan {
	return &CallFunctionPlan{
		planCommon:     planCommon{kind: PlanCallFunction, thread: t, okToDiscard: discardOnError, master: true},
		setup:          setup,
		discardOnError: discardOnError,
	}
}

func (p *CallFunctionPlan) String() string { return "CallFunction" }

func (p *CallFunctionPlan) RunState() RunState { return RunStateRunning }

func (p *CallFunctionPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent || p.done {
		return
	}
	if p.haveCheckpoint {
		return
	}
	ck, err := SaveCheckpoint(p.thread)
	if err != nil {
		p.setupFailed = err
		return
	}
	regs, sentinel, err := p.setup.PrepareCall(p.thread)
	if err != nil {
		p.setupFailed = err
		return
	}
	if err := p.thread.nativeRegs.WriteRegisters(p.thread.id, regs); err != nil {
		p.setupFailed = err
		return
	}
	p.haveCheckpoint = true
	p.checkpoint = ck
	p.sentinel = sentinel

	if p.thread.breakpoints != nil {
		site, err := p.thread.breakpoints.Install(sentinel, NewThreadSpec().WithID(p.thread.id))
		if err == nil {
			p.site = site.ID()
			p.haveSite = true
		}
	}
}

func (p *CallFunctionPlan) unwindCall() {
	if p.haveSite && p.thread.breakpoints != nil {
		_ = p.thread.breakpoints.Remove(p.site)
		p.haveSite = false
	}
	if p.haveCheckpoint {
		_ = Restore(p.thread, p.checkpoint)
	}
	p.done = true
}

func (p *CallFunctionPlan) WillPop() {
	p.unwindCall()
}

func (p *CallFunctionPlan) ExplainsStop(event StopInfo) bool {
	if p.setupFailed != nil {
		return true
	}
	if p.haveSite && event.Kind == StopBreakpoint && event.SiteID == p.site {
		return true
	}
	// Any other stop while a call is in flight is ours to decide about
	// if discard_on_error is set; otherwise we defer to whatever plan
	// beneath us would have explained it had the call not been pushed.
	return p.discardOnError
}

func (p *CallFunctionPlan) ShouldStop(event StopInfo) bool {
	if p.setupFailed != nil {
		p.Result = CallReturn{Err: p.setupFailed}
		p.unwindCall()
		p.managed = true
		return true
	}
	if p.haveSite && event.Kind == StopBreakpoint && event.SiteID == p.site {
		p.Result = p.setup.ExtractReturn(p.thread)
		p.unwindCall()
		p.managed = true
		return true
	}
	if p.discardOnError {
		p.Result = CallReturn{Err: NewError(ErrTargetLost, p.thread.id, nil, "call aborted by unrelated stop")}
		p.unwindCall()
		p.managed = true
		return true
	}
	return false
}

func (p *CallFunctionPlan) ShouldReportStop(StopInfo) Vote {
	if p.private {
		return VoteNo
	}
	return VoteYes
}

// NewCallUserExpressionPlan is NewCallFunctionPlan with the
// CallUserExpression tag: a user expression is, at this layer, just a
// call whose argument setup happened to come from compiling source
// text rather than a direct address/argument list.
func NewCallUserExpressionPlan(t *Thread, setup CallSetup, discardOnError bool) *CallFunctionPlan {
	p := NewCallFunctionPlan(t, setup, discardOnError)
	p.kind = PlanCallUserExpression
	return p
}
