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
	"context"
	"testing"
	"time"
)

func TestRunThreadPlanCompletesOnSentinelHit(t *testing.T) {
	c, bp := newTestCoordinator()
	uw := &fakeUnwind{frames: []Addr{0x400000}}
	thr := NewThread(1, 1, "", "", c.ApiMu(), uw, newFakeRegs(), bp)
	c.AddThread(thr)

	setup := &fakeCallSetup{sentinel: 0x600000, prepared: make([]byte, 8), returnVal: []byte{0xAB}}
	plan := NewCallFunctionPlan(thr, setup, false)

	poll := func(context.Context) (NativeStopEvent, error) {
		// PrepareResumeAll (run by the loop before poll is called) has
		// already installed the sentinel site; simulate the inferior
		// having run to it.
		uw.frames[0] = setup.sentinel
		return NativeStopEvent{State: ProcessStopped, Thread: 1, Trap: true}, nil
	}

	cr, err := RunThreadPlan(context.Background(), c, thr, plan, RunThreadPlanOptions{}, poll)
	if err != nil {
		t.Fatalf("RunThreadPlan: %v", err)
	}
	if !bytes.Equal(cr.Value, []byte{0xAB}) {
		t.Fatalf("CallReturn.Value = %v, want the extracted return value", cr.Value)
	}
	if !plan.MischiefManaged() {
		t.Fatalf("a completed call must be MischiefManaged")
	}
}

func TestRunThreadPlanTimeoutDiscardsPlan(t *testing.T) {
	c, bp := newTestCoordinator()
	uw := &fakeUnwind{frames: []Addr{0x400000}}
	thr := NewThread(1, 1, "", "", c.ApiMu(), uw, newFakeRegs(), bp)
	c.AddThread(thr)

	setup := &fakeCallSetup{sentinel: 0x600000, prepared: make([]byte, 8)}
	plan := NewCallFunctionPlan(thr, setup, false)

	// The inferior never reaches the sentinel; poll blocks until ctx
	// expires, mirroring WaitForStop under a cancelled context.
	poll := func(ctx context.Context) (NativeStopEvent, error) {
		<-ctx.Done()
		return NativeStopEvent{}, ctx.Err()
	}

	opts := RunThreadPlanOptions{
		Timeout:        20 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		DiscardOnError: true,
	}
	_, err := RunThreadPlan(context.Background(), c, thr, plan, opts, poll)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if !IsKind(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if thr.Plans().Top().Kind() != PlanBase {
		t.Fatalf("discard_on_error must force the stuck plan off the stack on timeout")
	}
}

func TestRunThreadPlanSurfacesResumeFailure(t *testing.T) {
	bp := newFakeBreakpoints()
	failing := &failingNative{err: NewError(ErrTargetLost, 1, nil, "process exited")}
	c := NewProcessStopCoordinator(failing, bp)

	uw := &fakeUnwind{frames: []Addr{0x400000}}
	thr := NewThread(1, 1, "", "", c.ApiMu(), uw, newFakeRegs(), bp)
	c.AddThread(thr)

	setup := &fakeCallSetup{sentinel: 0x600000, prepared: make([]byte, 8)}
	plan := NewCallFunctionPlan(thr, setup, false)

	poll := func(context.Context) (NativeStopEvent, error) {
		t.Fatalf("poll should never be reached if Resume fails")
		return NativeStopEvent{}, nil
	}

	_, err := RunThreadPlan(context.Background(), c, thr, plan, RunThreadPlanOptions{}, poll)
	if err == nil || !IsKind(err, ErrTargetLost) {
		t.Fatalf("a Resume failure must surface as ErrTargetLost, got %v", err)
	}
}

// failingNative is a NativeProcessController whose Resume always fails,
// for exercising run_thread_plan's abort path before any poll happens.
type failingNative struct {
	err error
}

func (n *failingNative) Launch(context.Context, string, []string) error { return nil }
func (n *failingNative) Attach(context.Context, int) error               { return nil }
func (n *failingNative) Resume(context.Context, []ThreadResumeAction) error {
	return n.err
}
func (n *failingNative) Halt(context.Context) error                      { return nil }
func (n *failingNative) ReadMemory(Addr, int) ([]byte, error)            { return nil, nil }
func (n *failingNative) WriteMemory(Addr, []byte) error                  { return nil }
func (n *failingNative) ReadRegisters(ThreadID) ([]byte, error)          { return make([]byte, 8), nil }
func (n *failingNative) WriteRegisters(ThreadID, []byte) error           { return nil }
func (n *failingNative) WaitForStop(context.Context) (NativeStopEvent, error) {
	return NativeStopEvent{}, nil
}
