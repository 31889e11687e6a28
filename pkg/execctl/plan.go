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

// RunState is a plan's notion of what the target is doing while the
// plan is live.
type RunState int

const (
	RunStateRunning RunState = iota
	RunStateStepping
	RunStateSuspended
)

func (s RunState) String() string {
	switch s {
	case RunStateRunning:
		return "running"
	case RunStateStepping:
		return "stepping"
	case RunStateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Vote is the tri-state opinion a plan can offer on whether a stop (or
// a continued run) should be reported to the user.
type Vote int

const (
	VoteNoOpinion Vote = iota
	VoteNo
	VoteYes
)

// combineVotes implements the §4.5 step 7 precedence: yes beats no
// beats no-opinion. The caller is responsible for the "all no-opinion"
// default (which depends on the StopInfo kind, not just on votes).
func combineVotes(a, b Vote) Vote {
	if a > b {
		return a
	}
	return b
}

// PlanKind tags which of the closed set of plan variants a ThreadPlan
// value is. The variant set is closed: a third party cannot add a new
// kind, only compose the existing ones (§6 "Plan SPI").
type PlanKind int

const (
	PlanBase PlanKind = iota
	PlanStepOverBreakpoint
	PlanStepInstruction
	PlanStepInRange
	PlanStepOverRange
	PlanStepOut
	PlanStepThrough
	PlanStepUntil
	PlanRunToAddress
	PlanCallFunction
	PlanCallUserExpression
)

func (k PlanKind) String() string {
	switch k {
	case PlanBase:
		return "Base"
	case PlanStepOverBreakpoint:
		return "StepOverBreakpoint"
	case PlanStepInstruction:
		return "StepInstruction"
	case PlanStepInRange:
		return "StepInRange"
	case PlanStepOverRange:
		return "StepOverRange"
	case PlanStepOut:
		return "StepOut"
	case PlanStepThrough:
		return "StepThrough"
	case PlanStepUntil:
		return "StepUntil"
	case PlanRunToAddress:
		return "RunToAddress"
	case PlanCallFunction:
		return "CallFunction"
	case PlanCallUserExpression:
		return "CallUserExpression"
	default:
		return "Unknown"
	}
}

// ThreadPlan is a node in a thread's plan stack: the stepping / calling
// state-machine interface every variant implements. See §4.4.
type ThreadPlan interface {
	Kind() PlanKind
	String() string
	Thread() *Thread

	// Validate reports whether this plan can run at all given the
	// current target state. Called once, synchronously, at queue time.
	Validate() error

	// ExplainsStop reports whether this plan is the one that caused or
	// anticipated the given stop.
	ExplainsStop(event StopInfo) bool

	// ShouldStop is called only on the explainer. It decides whether
	// execution should halt here, and may set the plan's managed flag
	// (read back via MischiefManaged) to indicate it has finished.
	ShouldStop(event StopInfo) bool

	// MischiefManaged reports whether this plan has completed its work
	// and should be popped.
	MischiefManaged() bool

	ShouldReportStop(event StopInfo) Vote
	ShouldReportRun(event StopInfo) Vote

	// WillResume is the pre-resume hook: it may mutate cached state,
	// install one-shot breakpoints, or push child plans. is_current is
	// true only for the top-of-stack plan.
	WillResume(state RunState, isCurrent bool)

	// WillStop is called when the plan is about to be popped with
	// stop=true.
	WillStop()

	// WillPop is cleanup on pop, called regardless of stop/continue.
	WillPop()

	RunState() RunState
	IsMasterPlan() bool
	OkToDiscard() bool
	AutoContinue() bool

	// TracerExplainsStop reports whether this plan's attached tracer
	// consumed the current stop.
	TracerExplainsStop() bool
	SetTracer(t Tracer)
	Tracer() Tracer

	// IsPrivate marks a plan pushed internally by another plan (e.g. a
	// child StepOut pushed by StepInRange) rather than by a
	// ThreadControl API call.
	IsPrivate() bool
}

// planCommon is embedded by every concrete plan and provides the
// shared bookkeeping (§3 "common fields") plus default method bodies;
// concrete plans override whichever methods their semantics require.
// This is the Go rendering of the "tagged union with a shared method
// surface" called for in the design notes: dispatch through the
// ThreadPlan interface is flat (no virtual base class), and adding a
// plan kind means adding a new embedder, not touching this one.
type planCommon struct {
	kind         PlanKind
	thread       *Thread
	private      bool
	autoContinue bool
	master       bool
	okToDiscard  bool
	managed      bool
	tracer       Tracer
}

func (p *planCommon) Kind() PlanKind    { return p.kind }
func (p *planCommon) Thread() *Thread   { return p.thread }
func (p *planCommon) Validate() error   { return nil }
func (p *planCommon) MischiefManaged() bool { return p.managed }
func (p *planCommon) WillResume(RunState, bool) {}
func (p *planCommon) WillStop()                 {}
func (p *planCommon) WillPop()                  {}
func (p *planCommon) RunState() RunState        { return RunStateStepping }
func (p *planCommon) IsMasterPlan() bool        { return p.master }
func (p *planCommon) OkToDiscard() bool         { return p.okToDiscard }
func (p *planCommon) AutoContinue() bool        { return p.autoContinue }
func (p *planCommon) IsPrivate() bool           { return p.private }
func (p *planCommon) SetTracer(t Tracer)        { p.tracer = t }
func (p *planCommon) Tracer() Tracer            { return p.tracer }

func (p *planCommon) TracerExplainsStop() bool {
	if p.tracer == nil {
		return false
	}
	return p.tracer.OnStop()
}

// ShouldReportStop and ShouldReportRun default to no-opinion: most
// plans let the Base plan or an explicit breakpoint/exception presence
// decide (§4.5 step 7's default).
func (p *planCommon) ShouldReportStop(StopInfo) Vote { return VoteNoOpinion }
func (p *planCommon) ShouldReportRun(StopInfo) Vote  { return VoteNoOpinion }

// BasePlan is the bottom-of-stack sentinel: always present on every
// ThreadPlanStack, never popped. It explains every stop that no other
// plan explains, and defers the stop decision to the StopInfo itself.
type BasePlan struct {
	planCommon
}

// NewBasePlan constructs the sentinel plan for a freshly created
// thread.
func NewBasePlan(t *Thread) *BasePlan {
	return &BasePlan{planCommon: planCommon{
		kind:        PlanBase,
		thread:      t,
		master:      true,
		okToDiscard: false,
	}}
}

func (p *BasePlan) String() string { return "Base" }

// ExplainsStop always returns true: the Base plan is the explainer of
// last resort.
func (p *BasePlan) ExplainsStop(StopInfo) bool { return true }

// ShouldStop delegates entirely to the StopInfo's own opinion; Base
// never sets managed (it is never popped).
func (p *BasePlan) ShouldStop(event StopInfo) bool {
	return event.ShouldStop()
}

// ShouldReportStop mirrors ShouldStop: a breakpoint/exception/watchpoint
// stop is reported, a bare trace or none is not.
func (p *BasePlan) ShouldReportStop(event StopInfo) Vote {
	if event.ShouldStop() {
		return VoteYes
	}
	return VoteNoOpinion
}
