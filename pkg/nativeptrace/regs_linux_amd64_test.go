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

//go:build linux && amd64

package nativeptrace

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestRegsToBytesRoundTrip(t *testing.T) {
	var regs unix.PtraceRegs
	regs.Rip = 0x400000
	regs.Rsp = 0x7ffeeffff000
	regs.Rax = 42

	raw := regsToBytes(&regs)
	if len(raw) != int(unsafe.Sizeof(regs)) {
		t.Fatalf("regsToBytes length = %d, want sizeof(PtraceRegs)", len(raw))
	}

	var out unix.PtraceRegs
	if err := bytesToRegs(raw, &out); err != nil {
		t.Fatalf("bytesToRegs: %v", err)
	}
	if out != regs {
		t.Fatalf("round-tripped registers = %+v, want %+v", out, regs)
	}
}

func TestBytesToRegsRejectsWrongSize(t *testing.T) {
	var out unix.PtraceRegs
	if err := bytesToRegs([]byte{1, 2, 3}, &out); err == nil {
		t.Fatalf("expected an error for a short register image")
	}
}

func TestPCAccessors(t *testing.T) {
	var regs unix.PtraceRegs
	setPC(&regs, 0x401000)
	if pc(&regs) != 0x401000 {
		t.Fatalf("pc() = %#x, want 0x401000", pc(&regs))
	}
}
