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

// StepOutPlan runs until the return address of a designated frame is
// reached: it installs a one-shot breakpoint there and reports
// PlanComplete when it is hit. If the designated frame has no caller
// (it is the bottom frame), the plan installs no site and reports
// complete on the next stop of any kind; it does not complete when
// queued, and the target still resumes until that stop.
type StepOutPlan struct {
	planCommon
	targetFrame int
	site        SiteID
	haveSite    bool
	returnAddr  Addr
	immediate   bool
}

// NewStepOutPlan returns a plan that runs until targetFrame returns.
// private marks it as pushed internally (by RangePlan or StepThrough)
// rather than by a direct ThreadControl API call.
func NewStepOutPlan(t *Thread, targetFrame int, private bool) *StepOutPlan {
	p := &StepOutPlan{
		planCommon:  planCommon{kind: PlanStepOut, thread: t, private: private, okToDiscard: true},
		targetFrame: targetFrame,
	}
	if _, pc, err := t.unwind.FrameInfo(targetFrame + 1); err != nil {
		p.immediate = true
	} else {
		p.returnAddr = pc
	}
	return p
}

func (p *StepOutPlan) String() string {
	return fmt.Sprintf("StepOut(frame=%d)", p.targetFrame)
}

func (p *StepOutPlan) RunState() RunState { return RunStateRunning }

func (p *StepOutPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent || p.immediate || p.haveSite || p.thread.breakpoints == nil {
		return
	}
	site, err := p.thread.breakpoints.Install(p.returnAddr, NewThreadSpec().WithID(p.thread.id))
	if err == nil {
		p.site = site.ID()
		p.haveSite = true
	}
}

func (p *StepOutPlan) WillPop() {
	if p.haveSite && p.thread.breakpoints != nil {
		_ = p.thread.breakpoints.Remove(p.site)
	}
}

func (p *StepOutPlan) ExplainsStop(event StopInfo) bool {
	if p.immediate {
		return true
	}
	return p.haveSite && event.Kind == StopBreakpoint && event.SiteID == p.site
}

func (p *StepOutPlan) ShouldStop(event StopInfo) bool {
	p.managed = true
	return true
}

func (p *StepOutPlan) ShouldReportStop(StopInfo) Vote {
	if p.private {
		return VoteNo
	}
	return VoteYes
}
