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

// ThreadPlanStack is a thread's per-stop bookkeeping of plans: the
// active LIFO (top = current plan, bottom always Base), plus the
// completed and discarded buffers, which exist purely for one cycle of
// introspection/testing and are drained at the start of every resume.
type ThreadPlanStack struct {
	active    []ThreadPlan
	completed []ThreadPlan
	discarded []ThreadPlan
}

// newThreadPlanStack returns a stack containing only base.
func newThreadPlanStack(base *BasePlan) *ThreadPlanStack {
	return &ThreadPlanStack{active: []ThreadPlan{base}}
}

// Top returns the current plan (top of the active stack). The active
// stack is never empty, so Top never returns nil.
func (s *ThreadPlanStack) Top() ThreadPlan {
	return s.active[len(s.active)-1]
}

// Len reports the number of active plans, including Base.
func (s *ThreadPlanStack) Len() int {
	return len(s.active)
}

// At returns the plan at depth i from the top (0 == Top()).
func (s *ThreadPlanStack) At(i int) ThreadPlan {
	return s.active[len(s.active)-1-i]
}

// Push installs p as the new top-of-stack plan. A plan pushed during
// WillResume is visible to the very next stop (§5 ordering guarantee).
func (s *ThreadPlanStack) Push(p ThreadPlan) {
	s.active = append(s.active, p)
}

// pop removes and returns the top plan, calling WillPop on it, and
// appends it to the completed buffer. The base plan is never popped;
// callers must not call pop when len(active) == 1.
func (s *ThreadPlanStack) pop() ThreadPlan {
	n := len(s.active)
	p := s.active[n-1]
	s.active = s.active[:n-1]
	p.WillPop()
	s.completed = append(s.completed, p)
	return p
}

// popDiscard removes and returns the top plan, calling WillPop on it,
// and appends it to the discarded buffer instead of completed (used by
// DiscardPlansUpTo/DiscardAllPlans, which do not call WillStop).
func (s *ThreadPlanStack) popDiscard() ThreadPlan {
	n := len(s.active)
	p := s.active[n-1]
	s.active = s.active[:n-1]
	p.WillPop()
	s.discarded = append(s.discarded, p)
	return p
}

// Completed returns the plans popped (normally) since the last resume,
// top-pushed-first order preserved (i.e. the order they were popped
// in, which is top-of-stack-first).
func (s *ThreadPlanStack) Completed() []ThreadPlan {
	return s.completed
}

// Discarded returns the plans discarded since the last resume. Kept
// only for introspection/testing, as the spec's data model notes.
func (s *ThreadPlanStack) Discarded() []ThreadPlan {
	return s.discarded
}

// DrainForResume clears the completed and discarded buffers. Called at
// the start of every resume (§4.6 step 1, and invariant §8.3).
func (s *ThreadPlanStack) DrainForResume() {
	s.completed = nil
	s.discarded = nil
}

// Base returns the bottom-of-stack sentinel.
func (s *ThreadPlanStack) Base() *BasePlan {
	return s.active[0].(*BasePlan)
}

// contains reports whether p is present in the active stack.
func (s *ThreadPlanStack) contains(p ThreadPlan) bool {
	for _, a := range s.active {
		if a == p {
			return true
		}
	}
	return false
}

// indexOf returns the active-stack index of p, or -1.
func (s *ThreadPlanStack) indexOf(p ThreadPlan) int {
	for i, a := range s.active {
		if a == p {
			return i
		}
	}
	return -1
}
