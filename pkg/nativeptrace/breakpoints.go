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

package nativeptrace

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// int3 is the x86-64 software breakpoint trap opcode.
const int3 = 0xCC

// site is one installed breakpoint: the address, the original byte it
// overwrote, and whether it is currently patched into the inferior's
// text.
type site struct {
	id      execctl.SiteID
	addr    execctl.Addr
	orig    byte
	enabled bool
	spec    execctl.ThreadSpec
}

func (s *site) ID() execctl.SiteID         { return s.id }
func (s *site) Addr() execctl.Addr         { return s.addr }
func (s *site) Enabled() bool              { return s.enabled }
func (s *site) Spec() execctl.ThreadSpec   { return s.spec }

// byAddr orders sites by address for btree storage, and is also used
// as the search key (only Addr is compared).
type byAddr struct {
	addr execctl.Addr
	s    *site
}

func (a byAddr) Less(than btree.Item) bool {
	return a.addr < than.(byAddr).addr
}

// Registry is a google/btree-indexed execctl.BreakpointRegistry: sites
// are stored ordered by address so FindSite (called on every resume
// and every stop) is an O(log n) lookup rather than a linear scan over
// however many breakpoints a long debugging session has accumulated.
type Registry struct {
	mu    sync.Mutex
	tree  *btree.BTree
	byID  map[execctl.SiteID]*site
	nextID execctl.SiteID
	proc  *Process
}

// NewRegistry returns an empty registry bound to proc, which it
// patches/restores breakpoint bytes through.
func NewRegistry(proc *Process) *Registry {
	return &Registry{
		tree: btree.New(32),
		byID: make(map[execctl.SiteID]*site),
		proc: proc,
	}
}

func (r *Registry) FindSite(addr execctl.Addr) (execctl.BreakpointSite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.tree.Get(byAddr{addr: addr})
	if item == nil {
		return nil, false
	}
	return item.(byAddr).s, true
}

func (r *Registry) Install(addr execctl.Addr, spec execctl.ThreadSpec) (execctl.BreakpointSite, error) {
	r.mu.Lock()
	if existing := r.tree.Get(byAddr{addr: addr}); existing != nil {
		s := existing.(byAddr).s
		r.mu.Unlock()
		return s, nil
	}
	r.nextID++
	s := &site{id: r.nextID, addr: addr, spec: spec}
	r.mu.Unlock()

	orig, err := r.proc.ReadMemory(addr, 1)
	if err != nil {
		return nil, fmt.Errorf("reading original byte at %#x: %w", addr, err)
	}
	s.orig = orig[0]
	if err := r.proc.WriteMemory(addr, []byte{int3}); err != nil {
		return nil, fmt.Errorf("patching breakpoint at %#x: %w", addr, err)
	}
	s.enabled = true

	r.mu.Lock()
	r.tree.ReplaceOrInsert(byAddr{addr: addr, s: s})
	r.byID[s.id] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) Enable(id execctl.SiteID) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such breakpoint site %d", id)
	}
	if s.enabled {
		return nil
	}
	if err := r.proc.WriteMemory(s.addr, []byte{int3}); err != nil {
		return err
	}
	s.enabled = true
	return nil
}

func (r *Registry) Disable(id execctl.SiteID) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such breakpoint site %d", id)
	}
	if !s.enabled {
		return nil
	}
	if err := r.proc.WriteMemory(s.addr, []byte{s.orig}); err != nil {
		return err
	}
	s.enabled = false
	return nil
}

func (r *Registry) Remove(id execctl.SiteID) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if s.enabled {
		if err := r.Disable(id); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.tree.Delete(byAddr{addr: s.addr})
	delete(r.byID, id)
	r.mu.Unlock()
	return nil
}

var _ execctl.BreakpointRegistry = (*Registry)(nil)
