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
	"context"
	"testing"
)

func newTestCoordinator() (*ProcessStopCoordinator, *fakeBreakpoints) {
	bp := newFakeBreakpoints()
	c := NewProcessStopCoordinator(&fakeNative{}, bp)
	return c, bp
}

func addTestThread(c *ProcessStopCoordinator, id ThreadID) *Thread {
	uw := &fakeUnwind{frames: []Addr{0x400000}}
	t := NewThread(id, ThreadIndex(id), "", "", c.ApiMu(), uw, newFakeRegs(), nil)
	c.AddThread(t)
	return t
}

func TestCoordinatorAddRemoveThreadSelection(t *testing.T) {
	c, _ := newTestCoordinator()
	a := addTestThread(c, 1)
	addTestThread(c, 2)

	if c.SelectedThread() != a {
		t.Fatalf("the first registered thread should be selected by default")
	}

	c.RemoveThread(1, false)
	if c.SelectedThread() == nil || c.SelectedThread().ID() != 2 {
		t.Fatalf("removing the selected thread should fall over to the next one")
	}
	if len(c.Threads()) != 1 {
		t.Fatalf("RemoveThread should drop the thread from the roster")
	}
}

func TestHandleStopOneThreadHaltsWholeProcess(t *testing.T) {
	c, _ := newTestCoordinator()
	stopping := addTestThread(c, 1)
	addTestThread(c, 2)
	if err := stopping.QueuePlan(NewStepInstructionPlan(stopping, false)); err != nil {
		t.Fatalf("QueuePlan: %v", err)
	}

	ev := NativeStopEvent{State: ProcessStopped, Thread: 1, Trap: true}
	res, err := c.HandleStop(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandleStop: %v", err)
	}
	if !res.StopHere {
		t.Fatalf("one thread reporting StopHere must halt the whole process (OR-reduce)")
	}
	if len(res.PerThread) != 2 {
		t.Fatalf("every registered thread should appear in PerThread, got %d", len(res.PerThread))
	}
}

func TestHandleStopAssignsFreshStopID(t *testing.T) {
	c, _ := newTestCoordinator()
	t1 := addTestThread(c, 1)
	_, err := c.HandleStop(context.Background(), NativeStopEvent{State: ProcessStopped, Thread: 1, Trap: false, Signal: 5})
	if err != nil {
		t.Fatalf("HandleStop: %v", err)
	}
	if t1.StopID() != 1 {
		t.Fatalf("first HandleStop should assign stop-id 1, got %d", t1.StopID())
	}
	if _, err := c.HandleStop(context.Background(), NativeStopEvent{State: ProcessStopped, Thread: 1, Trap: false, Signal: 5}); err != nil {
		t.Fatalf("HandleStop: %v", err)
	}
	if t1.StopID() != 2 {
		t.Fatalf("stop-id must increase monotonically across HandleStop calls, got %d", t1.StopID())
	}
}

func TestHandleStopResolvesBreakpointFromSite(t *testing.T) {
	c, bp := newTestCoordinator()
	t1 := addTestThread(c, 1)
	site, err := bp.Install(0x400000, NewThreadSpec())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	ev := NativeStopEvent{State: ProcessStopped, Thread: 1, Trap: true}
	res, err := c.HandleStop(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandleStop: %v", err)
	}
	per := res.PerThread[1]
	if per.Explainer == nil || per.Explainer.Kind() != PlanBase {
		t.Fatalf("with no active plan, Base should explain the resolved breakpoint stop")
	}
	if !per.StopHere {
		t.Fatalf("hitting an enabled site with no owning plan should halt (Base defers to StopInfo.ShouldStop)")
	}
	_ = t1
	_ = site
}

func TestPrepareResumeAllCoversEveryThread(t *testing.T) {
	c, _ := newTestCoordinator()
	addTestThread(c, 1)
	addTestThread(c, 2)
	actions := c.PrepareResumeAll()
	if len(actions) != 2 {
		t.Fatalf("PrepareResumeAll should return one action per registered thread, got %d", len(actions))
	}
}
