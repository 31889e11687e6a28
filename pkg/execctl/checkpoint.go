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

// RegisterCheckpoint is an opaque snapshot of a thread's register file,
// plus the stack-id of the top frame at save time (used to detect
// whether the stack shape itself has changed across a side-trip).
type RegisterCheckpoint struct {
	StackID uint64
	bytes   []byte
}

// ThreadStateCheckpoint is a full saved tuple suitable for restoring a
// thread after a side-trip: registers, plus the StopInfo and stop-id
// that were current at save time.
type ThreadStateCheckpoint struct {
	Registers RegisterCheckpoint
	StopInfo  StopInfo
	StopID    StopID
}

// SaveCheckpoint captures t's full register file, current top-frame
// stack-id, and current StopInfo. The register bytes are copied
// defensively so a later write to the live thread's registers can
// never alias (and thus corrupt) a previously saved checkpoint.
func SaveCheckpoint(t *Thread) (ThreadStateCheckpoint, error) {
	raw, err := t.nativeRegs.ReadRegisters(t.id)
	if err != nil {
		return ThreadStateCheckpoint{}, NewError(ErrResourceUnavailable, t.id, err, "register-access-failed")
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return ThreadStateCheckpoint{
		Registers: RegisterCheckpoint{StackID: t.topFrameStackID(), bytes: cp},
		StopInfo:  t.lastStopInfo,
		StopID:    t.stopID,
	}, nil
}

// Restore writes ck's registers back to t, invalidates the unwinder
// and frame list, and reinstates ck's StopInfo, re-stamped as valid at
// t's current stop-id (so IsValid/get_stop_info behave as if it had
// just been produced fresh). On a partial register write failure, t is
// left exactly as it was: the write is attempted as a single call to
// the native layer, which either fully succeeds or is assumed (per the
// NativeProcessController contract) to leave registers unmodified.
func Restore(t *Thread, ck ThreadStateCheckpoint) error {
	if err := t.nativeRegs.WriteRegisters(t.id, ck.Registers.bytes); err != nil {
		return NewError(ErrResourceUnavailable, t.id, err, "register-access-failed")
	}
	t.unwind.Clear()
	t.currentFrames = newFrameList(t)
	restored := ck.StopInfo
	restored.SnapshotStopID = t.stopID
	t.lastStopInfo = restored
	// A full register restore also invalidates any plan's cached
	// "last known range/frame" state, mirroring the original Thread.cpp
	// behavior of resetting plan bookkeeping on a full state restore,
	// not just the registers (see SPEC_FULL §11).
	for i := 0; i < t.plans.Len(); i++ {
		if rp, ok := t.plans.At(i).(rangeStateResetter); ok {
			rp.resetRangeState()
		}
	}
	return nil
}

// rangeStateResetter is implemented by plans (StepInRange/StepOverRange)
// that cache range-local state invalidated by a full restore.
type rangeStateResetter interface {
	resetRangeState()
}

// registerReaderWriter is the subset of NativeProcessController that
// checkpointing needs; Thread is constructed with one.
type registerReaderWriter interface {
	ReadRegisters(tid ThreadID) ([]byte, error)
	WriteRegisters(tid ThreadID, regs []byte) error
}
