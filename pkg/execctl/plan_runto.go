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

// RunToAddressPlan installs a one-shot breakpoint at target and reports
// PlanComplete the first time it is hit on this thread. It is the
// building block StepThrough and "run to cursor" both push as a child.
type RunToAddressPlan struct {
	planCommon
	target   Addr
	site     SiteID
	haveSite bool
}

// NewRunToAddressPlan returns a plan that runs target's thread until it
// reaches target. private marks it as pushed internally rather than via
// a direct ThreadControl API call.
func NewRunToAddressPlan(t *Thread, target Addr, private bool) *RunToAddressPlan {
	return &RunToAddressPlan{
		planCommon: planCommon{kind: PlanRunToAddress, thread: t, private: private, okToDiscard: true},
		target:     target,
	}
}

func (p *RunToAddressPlan) String() string {
	return fmt.Sprintf("RunToAddress(%#x)", p.target)
}

func (p *RunToAddressPlan) RunState() RunState { return RunStateRunning }

func (p *RunToAddressPlan) WillResume(state RunState, isCurrent bool) {
	if !isCurrent || p.haveSite || p.thread.breakpoints == nil {
		return
	}
	site, err := p.thread.breakpoints.Install(p.target, NewThreadSpec().WithID(p.thread.id))
	if err == nil {
		p.site = site.ID()
		p.haveSite = true
	}
}

func (p *RunToAddressPlan) WillPop() {
	if p.haveSite && p.thread.breakpoints != nil {
		_ = p.thread.breakpoints.Remove(p.site)
	}
}

func (p *RunToAddressPlan) ExplainsStop(event StopInfo) bool {
	return p.haveSite && event.Kind == StopBreakpoint && event.SiteID == p.site
}

func (p *RunToAddressPlan) ShouldStop(event StopInfo) bool {
	p.managed = true
	return true
}

func (p *RunToAddressPlan) ShouldReportStop(StopInfo) Vote {
	if p.private {
		return VoteNo
	}
	return VoteYes
}
