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
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// regsToBytes views a PtraceRegs struct as its raw byte image. The
// layout is fixed by the kernel's user_regs_struct ABI, so this is a
// stable wire format between ReadRegisters and WriteRegisters, never
// interpreted by the execctl core itself.
func regsToBytes(regs *unix.PtraceRegs) []byte {
	size := int(unsafe.Sizeof(*regs))
	src := unsafe.Slice((*byte)(unsafe.Pointer(regs)), size)
	out := make([]byte, size)
	copy(out, src)
	return out
}

// bytesToRegs is the inverse of regsToBytes.
func bytesToRegs(data []byte, regs *unix.PtraceRegs) error {
	size := int(unsafe.Sizeof(*regs))
	if len(data) != size {
		return fmt.Errorf("register image is %d bytes, want %d", len(data), size)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(regs)), size)
	copy(dst, data)
	return nil
}

// pc returns the program counter carried in a raw register image.
func pc(regs *unix.PtraceRegs) uint64 { return regs.Rip }

// setPC overwrites the program counter in a raw register image.
func setPC(regs *unix.PtraceRegs, addr uint64) { regs.Rip = addr }
