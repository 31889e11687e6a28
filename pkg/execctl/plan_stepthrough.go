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

// HopResolver is the language-runtime-specific collaborator StepThrough
// consults to traverse dynamic dispatch / trampoline sequences: given
// the current PC, it returns the address of the next hop, or ok=false
// once the real target has been reached. The core treats it as an
// opaque callback; resolving interface-method trampolines, PLT stubs,
// or similar is entirely the caller's concern.
type HopResolver func(pc Addr) (next Addr, ok bool)

// StepThroughPlan traverses a chain of trampoline hops by pushing a
// private RunToAddressPlan child for each one, per §4.4's
// "language-runtime-specific" description.
type StepThroughPlan struct {
	planCommon
	resolver HopResolver
	done     bool
}

// NewStepThroughPlan returns a plan that repeatedly consults resolver
// to hop through trampolines until it reports no further hop.
func NewStepThroughPlan(t *Thread, resolver HopResolver) *StepThroughPlan {
	return &StepThroughPlan{
		planCommon: planCommon{kind: PlanStepThrough, thread: t, okToDiscard: true, master: true},
		resolver:   resolver,
	}
}

func (p *StepThroughPlan) String() string { return "StepThrough" }

func (p *StepThroughPlan) RunState() RunState { return RunStateStepping }

func (p *StepThroughPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent || p.done {
		return
	}
	pc, err := p.thread.currentPC()
	if err != nil {
		p.done = true
		return
	}
	next, ok := p.resolver(pc)
	if !ok {
		p.done = true
		return
	}
	p.thread.plans.Push(NewRunToAddressPlan(p.thread, next, true))
}

func (p *StepThroughPlan) ExplainsStop(event StopInfo) bool {
	return event.Kind == StopTrace
}

func (p *StepThroughPlan) ShouldStop(event StopInfo) bool {
	if p.done {
		p.managed = true
		return true
	}
	return false
}

func (p *StepThroughPlan) ShouldReportStop(StopInfo) Vote {
	if p.managed {
		return VoteYes
	}
	return VoteNoOpinion
}
