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
	"bytes"
	"testing"
)

type fakeCallSetup struct {
	sentinel  Addr
	prepErr   error
	prepared  []byte
	returnVal []byte
}

func (s *fakeCallSetup) PrepareCall(t *Thread) ([]byte, Addr, error) {
	if s.prepErr != nil {
		return nil, 0, s.prepErr
	}
	return s.prepared, s.sentinel, nil
}

func (s *fakeCallSetup) ExtractReturn(t *Thread) CallReturn {
	return CallReturn{Value: s.returnVal}
}

func TestCallFunctionPlanHappyPath(t *testing.T) {
	thr, _, bp := newTestThread(1)
	if err := thr.nativeRegs.WriteRegisters(thr.id, []byte{1, 1, 1, 1, 1, 1, 1, 1}); err != nil {
		t.Fatalf("seed registers: %v", err)
	}
	setup := &fakeCallSetup{sentinel: 0x600000, prepared: []byte{2, 2, 2, 2, 2, 2, 2, 2}, returnVal: []byte{0xAB}}
	plan := NewCallFunctionPlan(thr, setup, false)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}

	thr.PrepareResume()
	regs, _ := thr.nativeRegs.ReadRegisters(thr.id)
	if !bytes.Equal(regs, setup.prepared) {
		t.Fatalf("PrepareResume should have installed the call's register image, got %v", regs)
	}
	site, ok := bp.FindSite(setup.sentinel)
	if !ok {
		t.Fatalf("the sentinel one-shot site must be installed")
	}

	res := thr.NotifyStop(2, BreakpointStopInfo(2, thr.id, site.ID()))
	if !res.StopHere {
		t.Fatalf("hitting the sentinel must complete the call")
	}
	if !bytes.Equal(plan.Result.Value, []byte{0xAB}) {
		t.Fatalf("Result.Value = %v, want the extracted return value", plan.Result.Value)
	}
	if plan.Result.Err != nil {
		t.Fatalf("a successful call must not carry an error, got %v", plan.Result.Err)
	}

	regsAfter, _ := thr.nativeRegs.ReadRegisters(thr.id)
	if !bytes.Equal(regsAfter, []byte{1, 1, 1, 1, 1, 1, 1, 1}) {
		t.Fatalf("the checkpoint must be restored after the call completes, got %v", regsAfter)
	}
	if _, ok := bp.FindSite(setup.sentinel); ok {
		t.Fatalf("the sentinel site must be removed once the call completes")
	}
}

func TestCallFunctionPlanSetupFailure(t *testing.T) {
	thr, _, _ := newTestThread(1)
	setup := &fakeCallSetup{prepErr: NewError(ErrResourceUnavailable, thr.id, nil, "boom")}
	plan := NewCallFunctionPlan(thr, setup, false)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}

	thr.PrepareResume()
	res := thr.NotifyStop(2, TraceStopInfo(2, thr.id))
	if !res.StopHere {
		t.Fatalf("a PrepareCall failure must surface as an immediate stop")
	}
	if plan.Result.Err == nil {
		t.Fatalf("Result.Err should carry the setup failure")
	}
}

func TestCallFunctionPlanDiscardOnErrorAbortsOnUnrelatedStop(t *testing.T) {
	thr, _, _ := newTestThread(1)
	setup := &fakeCallSetup{sentinel: 0x600000, prepared: make([]byte, 8)}
	plan := NewCallFunctionPlan(thr, setup, true)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	thr.PrepareResume()

	// A signal unrelated to the sentinel arrives mid-call.
	res := thr.NotifyStop(2, SignalStopInfo(2, thr.id, 11))
	if !res.StopHere {
		t.Fatalf("discard_on_error must abort the call on any unrelated stop")
	}
	if plan.Result.Err == nil {
		t.Fatalf("an aborted call must report an error result")
	}
}

func TestCallFunctionPlanKeepsCallInFlightWithoutDiscardOnError(t *testing.T) {
	thr, _, _ := newTestThread(1)
	setup := &fakeCallSetup{sentinel: 0x600000, prepared: make([]byte, 8)}
	plan := NewCallFunctionPlan(thr, setup, false)
	if err := thr.QueuePlan(plan); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}
	thr.PrepareResume()

	// An unrelated trace stop must not claim to explain anything: the
	// call should remain in flight, deferring to whatever's beneath it.
	if plan.ExplainsStop(TraceStopInfo(2, thr.id)) {
		t.Fatalf("without discard_on_error, an unrelated stop must not be claimed by the in-flight call")
	}
}
