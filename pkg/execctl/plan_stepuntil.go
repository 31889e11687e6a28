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

// StepUntilPlan installs a one-shot breakpoint at each of a set of
// addresses (typically every line-start in a source line's range other
// than the one we are stepping off of) and also guards against the
// frame returning before any of them are hit: a debugger-level "step
// until" is defined relative to a source line, and a function that
// returns mid-line has left the line regardless of PC.
type StepUntilPlan struct {
	planCommon
	untilAddrs     []Addr
	frame          int
	sites          []SiteID
	haveSites      bool
	baseFrameCount int
	haveBase       bool
	hitSite        SiteID
}

// NewStepUntilPlan returns a plan that runs until PC reaches any of
// untilAddrs, or until frame returns, whichever happens first.
func NewStepUntilPlan(t *Thread, untilAddrs []Addr, frame int) *StepUntilPlan {
	return &StepUntilPlan{
		planCommon: planCommon{kind: PlanStepUntil, thread: t, okToDiscard: true, master: true},
		untilAddrs: untilAddrs,
		frame:      frame,
	}
}

func (p *StepUntilPlan) String() string {
	return fmt.Sprintf("StepUntil(%d addrs)", len(p.untilAddrs))
}

func (p *StepUntilPlan) RunState() RunState { return RunStateRunning }

func (p *StepUntilPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent {
		return
	}
	if !p.haveBase {
		if n, err := p.thread.unwind.FrameCount(); err == nil {
			p.baseFrameCount = n
			p.haveBase = true
		}
	}
	if p.haveSites || p.thread.breakpoints == nil {
		return
	}
	spec := NewThreadSpec().WithID(p.thread.id)
	p.sites = make([]SiteID, 0, len(p.untilAddrs))
	for _, addr := range p.untilAddrs {
		site, err := p.thread.breakpoints.Install(addr, spec)
		if err != nil {
			continue
		}
		p.sites = append(p.sites, site.ID())
	}
	p.haveSites = true
}

func (p *StepUntilPlan) WillPop() {
	if p.thread.breakpoints == nil {
		return
	}
	for _, s := range p.sites {
		_ = p.thread.breakpoints.Remove(s)
	}
}

func (p *StepUntilPlan) ExplainsStop(event StopInfo) bool {
	if event.Kind == StopBreakpoint {
		for _, s := range p.sites {
			if s == event.SiteID {
				return true
			}
		}
		return false
	}
	return event.Kind == StopTrace
}

func (p *StepUntilPlan) ShouldStop(event StopInfo) bool {
	if event.Kind == StopBreakpoint {
		p.hitSite = event.SiteID
		p.managed = true
		return true
	}
	if frameCount, err := p.thread.unwind.FrameCount(); err == nil && p.haveBase && frameCount < p.baseFrameCount {
		// Returned from the frame before hitting any until-address.
		p.managed = true
		return true
	}
	return false
}

func (p *StepUntilPlan) ShouldReportStop(StopInfo) Vote {
	if p.managed {
		return VoteYes
	}
	return VoteNoOpinion
}
