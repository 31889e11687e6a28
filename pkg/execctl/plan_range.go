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

// RangePlan is the shared range-stepping helper trait behind
// StepInRangePlan and StepOverRangePlan (§9 design note: the two share
// a helper rather than duplicating the range-exit logic; runtime
// dispatch stays flat through the ThreadPlan interface).
type RangePlan struct {
	planCommon
	low, high    Addr
	stepOver     bool // true: StepOverRange: skip over calls. false: StepInRange.
	avoidNoDebug bool
	resolver     SymbolResolver

	baseFrameCount int
	haveBase       bool
}

func newRangePlan(t *Thread, kind PlanKind, low, high Addr, stepOver, avoidNoDebug bool, resolver SymbolResolver) *RangePlan {
	return &RangePlan{
		planCommon: planCommon{kind: kind, thread: t, okToDiscard: true, master: true},
		low:        low,
		high:       high,
		stepOver:   stepOver,
		avoidNoDebug: avoidNoDebug,
		resolver:   resolver,
	}
}

// NewStepInRangePlan steps while PC stays in [low, high), optionally
// pushing a child plan to avoid stepping into functions with no debug
// info (avoidNoDebug).
func NewStepInRangePlan(t *Thread, low, high Addr, avoidNoDebug bool, resolver SymbolResolver) *RangePlan {
	return newRangePlan(t, PlanStepInRange, low, high, false, avoidNoDebug, resolver)
}

// NewStepOverRangePlan steps while PC stays in [low, high), stepping
// over (not into) any calls made from within the range.
func NewStepOverRangePlan(t *Thread, low, high Addr, resolver SymbolResolver) *RangePlan {
	return newRangePlan(t, PlanStepOverRange, low, high, true, false, resolver)
}

func (p *RangePlan) String() string {
	name := "StepInRange"
	if p.stepOver {
		name = "StepOverRange"
	}
	return fmt.Sprintf("%s(%#x-%#x)", name, p.low, p.high)
}

func (p *RangePlan) RunState() RunState { return RunStateStepping }

func (p *RangePlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent {
		return
	}
	if !p.haveBase {
		if n, err := p.thread.unwind.FrameCount(); err == nil {
			p.baseFrameCount = n
			p.haveBase = true
		}
	}
}

// resetRangeState implements rangeStateResetter: a full checkpoint
// restore invalidates our notion of "how many frames deep we started",
// since the restored register state may belong to an entirely
// different point in the call tree.
func (p *RangePlan) resetRangeState() {
	p.haveBase = false
}

func (p *RangePlan) ExplainsStop(event StopInfo) bool {
	return event.Kind == StopTrace
}

func (p *RangePlan) ShouldStop(event StopInfo) bool {
	pc, err := p.thread.currentPC()
	if err != nil {
		p.managed = true
		return true
	}
	frameCount, err := p.thread.unwind.FrameCount()
	if err != nil {
		p.managed = true
		return true
	}

	if p.haveBase && frameCount < p.baseFrameCount {
		// PC left the range by returning out of the starting frame.
		p.managed = true
		return true
	}

	if p.haveBase && frameCount > p.baseFrameCount {
		// PC left the range into a callee. StepOverRange always runs
		// back out; StepInRange only avoids no-debug-info callees.
		push := p.stepOver
		if !push && p.avoidNoDebug && p.resolver != nil {
			if _, _, _, ok := p.resolver.FunctionForAddress(pc); !ok {
				push = true
			}
		}
		if push {
			child := NewStepOutPlan(p.thread, 0, true)
			p.thread.plans.Push(child)
		}
		// Either way, we are not managed yet: wait for the child (or
		// the callee itself) to return control to us.
		return false
	}

	if pc >= p.low && pc < p.high {
		// Still inside the range: keep stepping.
		return false
	}

	// Left the range some other way (jump outside the range without a
	// frame-depth change, e.g. a tail call or a goto past the range).
	p.managed = true
	return true
}

func (p *RangePlan) ShouldReportStop(event StopInfo) Vote {
	if p.managed {
		return VoteYes
	}
	return VoteNoOpinion
}
