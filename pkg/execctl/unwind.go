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

import "sync"

// RegisterContext is the opaque per-frame register view produced by
// Unwind.CreateRegisterContext. It is only ever read; only the live
// (frame-0) thread registers are ever written.
type RegisterContext interface {
	PC() Addr
	Bytes() []byte
}

// UnwindImpl is the pluggable, thread-scoped call-frame enumerator
// contract (§4.3). Implementations might walk DWARF CFI or a
// frame-pointer chain; the core requires only the guarantees
// documented on each method, not a particular algorithm.
//
// UnwindImpl itself is not required to be safe for concurrent use; Unwind
// (below) provides the single-mutex serialization the spec requires.
type UnwindImpl interface {
	// FrameCount returns the number of frames discovered so far. Within
	// one stop, it is non-decreasing as frames are discovered lazily.
	FrameCount() (int, error)
	// FrameInfo returns the CFA and PC of frame idx. For any idx
	// previously returned successfully, the result is stable for the
	// rest of the stop.
	FrameInfo(idx int) (cfa, pc Addr, err error)
	// CreateRegisterContext returns a register view for frame idx.
	CreateRegisterContext(idx int) (RegisterContext, error)
	// Clear discards all cached frame state. Idempotent: calling Clear
	// on an already-clear unwinder is a no-op.
	Clear()
}

// Unwind wraps an UnwindImpl with the single per-unwinder mutex the
// spec requires (§4.3, §5): frame enumeration is safe to call from
// multiple readers, serialized internally.
type Unwind struct {
	mu   sync.Mutex
	impl UnwindImpl
}

// NewUnwind wraps impl for safe concurrent use.
func NewUnwind(impl UnwindImpl) *Unwind {
	return &Unwind{impl: impl}
}

func (u *Unwind) FrameCount() (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.impl.FrameCount()
}

func (u *Unwind) FrameInfo(idx int) (cfa, pc Addr, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.impl.FrameInfo(idx)
}

func (u *Unwind) CreateRegisterContext(idx int) (RegisterContext, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.impl.CreateRegisterContext(idx)
}

// Clear invalidates all cached frames. Must be called after any
// register write or resume, before further queries (§4.3 invalidation
// rule).
func (u *Unwind) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.impl.Clear()
}

// frameUnavailableError and registerUnavailableError are the two
// unwinder-specific, non-fatal error kinds named in §4.3; both are
// ErrResourceUnavailable CoreErrors with distinguishable messages.
func frameUnavailableError(thread ThreadID, idx int) error {
	return NewError(ErrResourceUnavailable, thread, nil, "frame-unavailable: index past end")
}

func registerUnavailableError(thread ThreadID) error {
	return NewError(ErrResourceUnavailable, thread, nil, "register-unavailable")
}

// Frame is a materialized call frame: immutable once created, and
// invalidated (by the owning FrameList no longer being current) when
// register state is overwritten.
type Frame struct {
	Index int
	CFA   Addr
	PC    Addr
	Regs  RegisterContext
}

// FrameList is the lazily-materialized, immutable-once-built sequence
// of frames for one stop. A thread's previous FrameList may be
// retained across one resume to allow stale-frame queries, per the
// ownership model in §3.
type FrameList struct {
	thread *Thread
	frames []*Frame
}

// newFrameList returns an empty FrameList bound to t; frames are
// materialized on demand by Frame(idx).
func newFrameList(t *Thread) *FrameList {
	return &FrameList{thread: t}
}

// Frame returns the frame at idx, materializing it (and any frames
// before it) via the thread's Unwind if necessary.
func (fl *FrameList) Frame(idx int) (*Frame, error) {
	for len(fl.frames) <= idx {
		next := len(fl.frames)
		count, err := fl.thread.unwind.FrameCount()
		if err != nil {
			return nil, err
		}
		if next >= count {
			return nil, NewError(ErrResourceUnavailable, fl.thread.id, frameUnavailableError(fl.thread.id, next), "frame-unavailable")
		}
		cfa, pc, err := fl.thread.unwind.FrameInfo(next)
		if err != nil {
			return nil, err
		}
		regs, err := fl.thread.unwind.CreateRegisterContext(next)
		if err != nil {
			return nil, NewError(ErrResourceUnavailable, fl.thread.id, registerUnavailableError(fl.thread.id), "register-unavailable")
		}
		fl.frames = append(fl.frames, &Frame{Index: next, CFA: cfa, PC: pc, Regs: regs})
	}
	return fl.frames[idx], nil
}

// Len returns the number of frames materialized so far (not
// necessarily the total frame count; call Frame to materialize more).
func (fl *FrameList) Len() int {
	return len(fl.frames)
}
