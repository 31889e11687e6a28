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

import "fmt"

// StepOverBreakpointPlan single-steps over an enabled breakpoint site
// sitting at the current PC, then re-enables it and reports done. It
// is pushed automatically by PrepareResume (§4.6 step 4) whenever the
// thread is about to resume on top of an enabled site, and can also be
// pushed explicitly as the inner half of a step-over instruction step.
type StepOverBreakpointPlan struct {
	planCommon
	site SiteID
}

func newStepOverBreakpointPlan(t *Thread, site SiteID, autoContinue bool) *StepOverBreakpointPlan {
	return &StepOverBreakpointPlan{
		planCommon: planCommon{
			kind:         PlanStepOverBreakpoint,
			thread:       t,
			private:      true,
			autoContinue: autoContinue,
			okToDiscard:  true,
		},
		site: site,
	}
}

func (p *StepOverBreakpointPlan) String() string {
	return fmt.Sprintf("StepOverBreakpoint(site=%d)", p.site)
}

func (p *StepOverBreakpointPlan) RunState() RunState { return RunStateStepping }

// WillResume disables the site for the one instruction we're about to
// single-step over it; the site is re-enabled in ShouldStop once the
// step lands.
func (p *StepOverBreakpointPlan) WillResume(state RunState, isCurrent bool) {
	if isCurrent && p.thread.breakpoints != nil {
		_ = p.thread.breakpoints.Disable(p.site)
	}
}

// ExplainsStop claims any trace stop while this plan is active: it is
// the only thing that issued the single step.
func (p *StepOverBreakpointPlan) ExplainsStop(event StopInfo) bool {
	return event.Kind == StopTrace
}

func (p *StepOverBreakpointPlan) ShouldStop(event StopInfo) bool {
	if p.thread.breakpoints != nil {
		_ = p.thread.breakpoints.Enable(p.site)
	}
	p.managed = true
	return false
}

// StepInstructionPlan steps exactly one machine instruction, either
// stepping into calls (over=false) or, when the PC is on an enabled
// site, transparently delegating to a child StepOverBreakpointPlan
// (over=true semantics share the same single-instruction granularity;
// the "step over a call" behavior belongs to StepOverRange).
type StepInstructionPlan struct {
	planCommon
	over bool
}

// NewStepInstructionPlan returns a plan that executes exactly one
// instruction and reports PlanComplete.
func NewStepInstructionPlan(t *Thread, over bool) *StepInstructionPlan {
	return &StepInstructionPlan{
		planCommon: planCommon{kind: PlanStepInstruction, thread: t, okToDiscard: true},
		over:       over,
	}
}

func (p *StepInstructionPlan) String() string {
	return fmt.Sprintf("StepInstruction(over=%v)", p.over)
}

func (p *StepInstructionPlan) RunState() RunState { return RunStateStepping }

func (p *StepInstructionPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent {
		return
	}
	if p.over && p.thread.breakpoints != nil {
		if pc, err := p.thread.currentPC(); err == nil {
			if site, ok := p.thread.breakpoints.FindSite(pc); ok && site.Enabled() {
				p.thread.plans.Push(newStepOverBreakpointPlan(p.thread, site.ID(), false))
			}
		}
	}
}

func (p *StepInstructionPlan) ExplainsStop(event StopInfo) bool {
	return event.Kind == StopTrace
}

func (p *StepInstructionPlan) ShouldStop(event StopInfo) bool {
	p.managed = true
	return true
}

func (p *StepInstructionPlan) ShouldReportStop(StopInfo) Vote { return VoteYes }
