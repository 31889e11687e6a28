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

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ThreadRunState is a thread's own lifecycle state, distinct from the
// plan-level RunState (which is "what is the current plan doing").
type ThreadRunState int

const (
	ThreadRunning ThreadRunState = iota
	ThreadStopped
	ThreadExited
	ThreadDetached
)

// Thread is the execution-control arbitrator (component G): it
// orchestrates the register checkpoint, unwinder, plan stack, and
// native register access across one stop/resume cycle. Thread
// exclusively owns its plan stack, unwinder, and register context; it
// holds no strong reference back to its coordinator beyond the shared
// API mutex pointer, matching the acyclic ownership described in §9 of
// the design.
type Thread struct {
	id    ThreadID
	index ThreadIndex
	name  string
	queue string

	// apiMu is the per-target API mutex (§5): shared by every Thread of
	// the same target, acquired by every externally visible entry
	// point that reads or mutates plan stacks, frame lists, or register
	// contexts. It is intentionally coarse.
	apiMu *sync.Mutex

	runState ThreadRunState

	plans  *ThreadPlanStack
	unwind *Unwind

	currentFrames  *FrameList
	previousFrames *FrameList
	selectedFrame  int

	lastStopInfo StopInfo
	stopID       StopID

	resumeSignal int
	stepping     bool

	nativeRegs  registerReaderWriter
	breakpoints BreakpointRegistry

	log *logrus.Entry
}

// invalidSignal is the "unset" resume-signal sentinel.
const invalidSignal = -1

// NewThread constructs a Thread with exactly one Base plan on its
// stack, per the lifecycle rule in §3: "A Thread is created with one
// Base plan and lives until the native thread is reported gone."
func NewThread(id ThreadID, index ThreadIndex, name, queue string, apiMu *sync.Mutex, unwindImpl UnwindImpl, regs registerReaderWriter, bps BreakpointRegistry) *Thread {
	t := &Thread{
		id:           id,
		index:        index,
		name:         name,
		queue:        queue,
		apiMu:        apiMu,
		runState:     ThreadStopped,
		unwind:       NewUnwind(unwindImpl),
		resumeSignal: invalidSignal,
		nativeRegs:   regs,
		breakpoints:  bps,
		log:          packageLogger.WithField("thread", id),
	}
	base := NewBasePlan(t)
	t.plans = newThreadPlanStack(base)
	t.currentFrames = newFrameList(t)
	return t
}

// threadDescriptor implementation, used by ThreadSpec.Matches.
func (t *Thread) ID() ThreadID        { return t.id }
func (t *Thread) Index() ThreadIndex  { return t.index }
func (t *Thread) Name() string        { return t.name }
func (t *Thread) QueueName() string   { return t.queue }
func (t *Thread) RunState() ThreadRunState { return t.runState }
func (t *Thread) StopID() StopID      { return t.stopID }

// Plans exposes the plan stack for introspection (tests, `bt`/`plans`
// CLI commands); mutating it outside the arbitration/resume protocols
// voids the invariants in §8.
func (t *Thread) Plans() *ThreadPlanStack { return t.plans }

func (t *Thread) topFrameStackID() uint64 {
	cfa, _, err := t.unwind.FrameInfo(0)
	if err != nil {
		return 0
	}
	return uint64(cfa)
}

// GetStopInfo returns the thread's current StopInfo. If it is no
// longer valid for the current stop-id, the caller is expected to have
// already refreshed it via NotifyStop; GetStopInfo itself never talks
// to the native layer (that boundary belongs to the coordinator).
func (t *Thread) GetStopInfo() StopInfo {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.lastStopInfo
}

// GetFrame returns frame idx of the thread's current frame list,
// materializing it on demand via the unwinder.
func (t *Thread) GetFrame(idx int) (*Frame, error) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.currentFrames.Frame(idx)
}

// SelectedFrame returns the index of the frame selected as the default
// target of frame-relative commands (SPEC_FULL §11).
func (t *Thread) SelectedFrame() int {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	return t.selectedFrame
}

// SetSelectedFrame updates the selected-frame index.
func (t *Thread) SetSelectedFrame(idx int) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	t.selectedFrame = idx
}

// QueuePlan validates and pushes p onto the active stack. Per §7
// propagation policy, a validation failure is returned synchronously
// and the plan is never pushed.
func (t *Thread) QueuePlan(p ThreadPlan) error {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if err := p.Validate(); err != nil {
		return NewError(ErrPlanValidationFailed, t.id, err, "plan failed validation")
	}
	t.plans.Push(p)
	return nil
}
