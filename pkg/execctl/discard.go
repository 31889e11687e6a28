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

// DiscardPlansUpTo pops plans from the top down to and including p,
// calling WillPop on each but never WillStop (§4.7). If p is not on
// the active stack, this is a no-op (the "discard-up-to monotone" law
// in §8).
func (t *Thread) DiscardPlansUpTo(p ThreadPlan) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	if !t.plans.contains(p) {
		return
	}
	for {
		top := t.plans.Top()
		t.plans.popDiscard()
		if top == p {
			return
		}
	}
}

// DiscardAllPlans walks from the top, discarding plans, and skips
// (stops at) ok-to-discard=false master plans unless force is set. The
// base plan is never discarded.
func (t *Thread) DiscardAllPlans(force bool) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	for t.plans.Len() > 1 {
		top := t.plans.Top()
		if top.IsMasterPlan() && !top.OkToDiscard() && !force {
			return
		}
		t.plans.popDiscard()
	}
}

// targetLost transitions the thread to exited/detached and discards
// every plan without calling WillStop, per the §7 target-lost
// propagation policy.
func (t *Thread) targetLost(detached bool) {
	t.apiMu.Lock()
	defer t.apiMu.Unlock()
	for t.plans.Len() > 1 {
		t.plans.popDiscard()
	}
	if detached {
		t.runState = ThreadDetached
	} else {
		t.runState = ThreadExited
	}
}
