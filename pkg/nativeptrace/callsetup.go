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
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// SysVCallSetup is execctl.CallSetup for the x86-64 System V ABI: up to
// six integer/pointer arguments in rdi, rsi, rdx, rcx, r8, r9, return
// value in rax. The sentinel return address is the thread's own
// current PC: it is guaranteed executable and, since the plan removes
// its breakpoint the moment the sentinel fires, leaves no trace once
// the call completes.
type SysVCallSetup struct {
	proc   *Process
	Target execctl.Addr
	Args   []uint64
}

// NewSysVCallSetup returns a CallSetup that calls target with args.
func NewSysVCallSetup(proc *Process, target execctl.Addr, args []uint64) *SysVCallSetup {
	return &SysVCallSetup{proc: proc, Target: target, Args: args}
}

var argRegs = 6

func (s *SysVCallSetup) PrepareCall(t *execctl.Thread) ([]byte, execctl.Addr, error) {
	if len(s.Args) > argRegs {
		return nil, 0, fmt.Errorf("SysVCallSetup supports at most %d register arguments, got %d", argRegs, len(s.Args))
	}
	raw, err := s.proc.ReadRegisters(t.ID())
	if err != nil {
		return nil, 0, err
	}
	var regs unix.PtraceRegs
	if err := bytesToRegs(raw, &regs); err != nil {
		return nil, 0, err
	}

	sentinel := execctl.Addr(regs.Rip)

	sp := regs.Rsp
	sp &^= 0xf // 16-byte align before pushing the return address
	sp -= 8
	retAddrBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(retAddrBuf, uint64(sentinel))
	if err := s.proc.WriteMemory(execctl.Addr(sp), retAddrBuf); err != nil {
		return nil, 0, fmt.Errorf("writing artificial return address: %w", err)
	}

	argDst := []*uint64{&regs.Rdi, &regs.Rsi, &regs.Rdx, &regs.Rcx, &regs.R8, &regs.R9}
	for i, v := range s.Args {
		*argDst[i] = v
	}
	regs.Rsp = sp
	regs.Rip = uint64(s.Target)

	return regsToBytes(&regs), sentinel, nil
}

func (s *SysVCallSetup) ExtractReturn(t *execctl.Thread) execctl.CallReturn {
	raw, err := s.proc.ReadRegisters(t.ID())
	if err != nil {
		return execctl.CallReturn{Err: err}
	}
	var regs unix.PtraceRegs
	if err := bytesToRegs(raw, &regs); err != nil {
		return execctl.CallReturn{Err: err}
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, regs.Rax)
	return execctl.CallReturn{Value: buf}
}

var _ execctl.CallSetup = (*SysVCallSetup)(nil)
