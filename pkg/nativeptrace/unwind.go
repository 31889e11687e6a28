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
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// FrameWalker is execctl.UnwindImpl for the reference backend: a
// classic frame-pointer (rbp chain) walker. It is not suitable for
// code built without frame pointers, but needs no debug info, matching
// what a minimal reference backend can offer without a DWARF parser.
type FrameWalker struct {
	proc  *Process
	tid   execctl.ThreadID
	cache []frameEntry
}

type frameEntry struct {
	cfa, pc execctl.Addr
}

// NewFrameWalker returns an unwinder for tid, lazily walking the frame
// pointer chain starting from tid's live registers.
func NewFrameWalker(proc *Process, tid execctl.ThreadID) *FrameWalker {
	return &FrameWalker{proc: proc, tid: tid}
}

func (w *FrameWalker) ensure(idx int) error {
	for len(w.cache) <= idx {
		if len(w.cache) == 0 {
			raw, err := w.proc.ReadRegisters(w.tid)
			if err != nil {
				return err
			}
			var regs unix.PtraceRegs
			if err := bytesToRegs(raw, &regs); err != nil {
				return err
			}
			w.cache = append(w.cache, frameEntry{cfa: execctl.Addr(regs.Rbp), pc: execctl.Addr(regs.Rip)})
			continue
		}
		top := w.cache[len(w.cache)-1]
		if top.cfa == 0 {
			return execctl.NewError(execctl.ErrResourceUnavailable, w.tid, nil, "frame-unavailable: null frame pointer")
		}
		// Standard x86-64 frame layout: [rbp] = saved rbp, [rbp+8] = return address.
		saved, err := w.proc.ReadMemory(top.cfa, 16)
		if err != nil || len(saved) < 16 {
			return execctl.NewError(execctl.ErrResourceUnavailable, w.tid, err, "frame-unavailable: could not read frame chain")
		}
		nextCFA := execctl.Addr(binary.LittleEndian.Uint64(saved[0:8]))
		retAddr := execctl.Addr(binary.LittleEndian.Uint64(saved[8:16]))
		if retAddr == 0 {
			return execctl.NewError(execctl.ErrResourceUnavailable, w.tid, nil, "frame-unavailable: end of chain")
		}
		w.cache = append(w.cache, frameEntry{cfa: nextCFA, pc: retAddr})
	}
	return nil
}

func (w *FrameWalker) FrameCount() (int, error) {
	// Walk at most one frame beyond what's cached; a frame found this way
	// is added to the cache and counted, so each call grows the count by
	// at most one until the chain ends.
	if err := w.ensure(len(w.cache)); err != nil {
		return len(w.cache), nil
	}
	return len(w.cache), nil
}

func (w *FrameWalker) FrameInfo(idx int) (cfa, pc execctl.Addr, err error) {
	if err := w.ensure(idx); err != nil {
		return 0, 0, err
	}
	e := w.cache[idx]
	return e.cfa, e.pc, nil
}

func (w *FrameWalker) CreateRegisterContext(idx int) (execctl.RegisterContext, error) {
	if idx == 0 {
		raw, err := w.proc.ReadRegisters(w.tid)
		if err != nil {
			return nil, err
		}
		return liveRegisterContext{raw: raw}, nil
	}
	if err := w.ensure(idx); err != nil {
		return nil, err
	}
	e := w.cache[idx]
	return syntheticRegisterContext{pc: e.pc, sp: e.cfa}, nil
}

func (w *FrameWalker) Clear() {
	w.cache = nil
}

// liveRegisterContext wraps the frame-0 live register image.
type liveRegisterContext struct {
	raw []byte
}

func (c liveRegisterContext) PC() execctl.Addr {
	var regs unix.PtraceRegs
	_ = bytesToRegs(c.raw, &regs)
	return execctl.Addr(regs.Rip)
}
func (c liveRegisterContext) Bytes() []byte { return c.raw }

// syntheticRegisterContext is the minimal (PC, SP) view available for
// frames reconstructed purely from the rbp chain, without a saved
// general-purpose register image.
type syntheticRegisterContext struct {
	pc, sp execctl.Addr
}

func (c syntheticRegisterContext) PC() execctl.Addr { return c.pc }
func (c syntheticRegisterContext) Bytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.sp))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(c.pc))
	return buf
}

var _ execctl.UnwindImpl = (*FrameWalker)(nil)
