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
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProcessStopResult is what HandleStop reports back to whoever drives
// the event loop (run_thread_plan, or a command-layer REPL): whether
// the process-wide stop should be surfaced to the user, an aggregated
// report vote, and the per-thread arbitration detail for anyone that
// wants it (e.g. to print "thread 3 hit breakpoint 1").
type ProcessStopResult struct {
	StopHere bool
	Report   Vote
	PerThread map[ThreadID]ArbitrationResult
}

// ProcessStopCoordinator is component H: it owns the thread roster and
// the process-wide stop-id counter, translates native stop events into
// per-thread StopInfo, fans arbitration out across every thread
// concurrently, and OR-reduces the per-thread verdicts into one
// process-level decision (§5's "every thread gets a chance to vote"
// rule: a single thread wanting to stop halts the whole process).
type ProcessStopCoordinator struct {
	apiMu *sync.Mutex

	mu       sync.Mutex
	threads  map[ThreadID]*Thread
	order    []ThreadID
	selected ThreadID
	stopID   StopID
	state    ProcessState

	native      NativeProcessController
	breakpoints BreakpointRegistry

	log *logrus.Entry
}

// NewProcessStopCoordinator returns a coordinator with no threads yet;
// threads are added as the native layer reports them (typically right
// after Launch/Attach).
func NewProcessStopCoordinator(native NativeProcessController, breakpoints BreakpointRegistry) *ProcessStopCoordinator {
	return &ProcessStopCoordinator{
		apiMu:       &sync.Mutex{},
		threads:     make(map[ThreadID]*Thread),
		native:      native,
		breakpoints: breakpoints,
		state:       ProcessUnloaded,
		selected:    InvalidThreadID,
		log:         logrus.WithField("component", "coordinator"),
	}
}

// ApiMu returns the shared per-target API mutex new Threads must be
// constructed with, so every Thread of this coordinator's target
// serializes against the same lock.
func (c *ProcessStopCoordinator) ApiMu() *sync.Mutex { return c.apiMu }

// AddThread registers a newly discovered thread. If no thread is yet
// selected, t becomes the selected thread.
func (c *ProcessStopCoordinator) AddThread(t *Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[t.id] = t
	c.order = append(c.order, t.id)
	if c.selected == InvalidThreadID {
		c.selected = t.id
	}
}

// RemoveThread drops a thread that the native layer has reported gone,
// discarding its plans without WillStop per the §7 target-lost policy.
// If the removed thread was selected, selection falls to the next
// thread in registration order, or InvalidThreadID if none remain.
func (c *ProcessStopCoordinator) RemoveThread(id ThreadID, detached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[id]
	if !ok {
		return
	}
	t.targetLost(detached)
	delete(c.threads, id)
	for i, tid := range c.order {
		if tid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.selected == id {
		if len(c.order) > 0 {
			c.selected = c.order[0]
		} else {
			c.selected = InvalidThreadID
		}
	}
}

// Thread looks up a registered thread by id.
func (c *ProcessStopCoordinator) Thread(id ThreadID) (*Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[id]
	return t, ok
}

// Threads returns a stable snapshot of the registered threads, in
// registration order.
func (c *ProcessStopCoordinator) Threads() []*Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Thread, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.threads[id])
	}
	return out
}

// SelectedThread returns the thread currently selected for
// thread-unqualified commands, or nil if none are registered.
func (c *ProcessStopCoordinator) SelectedThread() *Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == InvalidThreadID {
		return nil
	}
	return c.threads[c.selected]
}

// SetSelectedThread updates the selected thread; it is a no-op if id is
// not currently registered.
func (c *ProcessStopCoordinator) SetSelectedThread(id ThreadID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.threads[id]; ok {
		c.selected = id
	}
}

// State reports the coarse process state.
func (c *ProcessStopCoordinator) State() ProcessState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// resolveStopInfo turns one native stop event into the StopInfo for the
// thread it names; siblings are handed NoneStopInfo for the same new
// stop-id in HandleStop's fan-out.
func (c *ProcessStopCoordinator) resolveStopInfo(stopID StopID, ev NativeStopEvent) StopInfo {
	if !ev.Trap {
		return SignalStopInfo(stopID, ev.Thread, ev.Signal)
	}
	t, ok := c.threads[ev.Thread]
	if !ok {
		return NoneStopInfo(stopID, ev.Thread)
	}
	if c.breakpoints != nil {
		if pc, err := t.currentPC(); err == nil {
			if site, found := c.breakpoints.FindSite(pc); found && site.Enabled() {
				return BreakpointStopInfo(stopID, ev.Thread, site.ID())
			}
		}
	}
	return TraceStopInfo(stopID, ev.Thread)
}

// HandleStop is the monitor-thread entry point (§5): given one native
// stop event, it assigns a new process-wide stop-id, resolves the
// event's own thread's StopInfo, hands every other registered thread a
// StopNone refresh for the same epoch, and fans NotifyStop out
// concurrently across all of them, OR-reducing the per-thread
// "stop here" verdicts into one process-level decision.
func (c *ProcessStopCoordinator) HandleStop(ctx context.Context, ev NativeStopEvent) (ProcessStopResult, error) {
	c.mu.Lock()
	c.stopID++
	stopID := c.stopID
	c.state = ev.State
	threads := make([]*Thread, 0, len(c.threads))
	for _, id := range c.order {
		threads = append(threads, c.threads[id])
	}
	c.mu.Unlock()

	primary := c.resolveStopInfo(stopID, ev)

	results := make(map[ThreadID]ArbitrationResult, len(threads))
	var resultsMu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, t := range threads {
		t := t
		event := NoneStopInfo(stopID, t.id)
		if t.id == ev.Thread {
			event = primary
		}
		g.Go(func() error {
			// A panic in one thread's arbitration is logged and leaves
			// that thread without a vote; the others still report theirs.
			defer func() {
				if r := recover(); r != nil {
					c.log.WithField("thread", t.id).Errorf("arbitration panicked: %v", r)
				}
			}()
			res := t.NotifyStop(stopID, event)
			resultsMu.Lock()
			results[t.id] = res
			resultsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProcessStopResult{}, err
	}

	out := ProcessStopResult{Report: VoteNoOpinion, PerThread: results}
	for _, res := range results {
		if res.StopHere {
			out.StopHere = true
		}
		out.Report = combineVotes(out.Report, res.Report)
	}
	return out, nil
}

// PrepareResumeAll runs PrepareResume on every registered thread and
// returns the resulting actions, in registration order, ready to hand
// to NativeProcessController.Resume.
func (c *ProcessStopCoordinator) PrepareResumeAll() []ThreadResumeAction {
	threads := c.Threads()
	actions := make([]ThreadResumeAction, 0, len(threads))
	for _, t := range threads {
		actions = append(actions, t.PrepareResume())
	}
	return actions
}
