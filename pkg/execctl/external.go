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

import "context"

// This file names the contracts the execution-control core consumes from
// (DWARF parsing, symbol lookup, the OS-specific process monitor, I/O
// transports) and exposes to (command dispatch, formatters) external
// collaborators. The core never imports an implementation of these; it
// is handed one at construction time.

// ProcessState is the coarse state of the native target process.
type ProcessState int

const (
	ProcessUnloaded ProcessState = iota
	ProcessLaunching
	ProcessRunning
	ProcessStopped
	ProcessExited
	ProcessDetached
)

// ThreadResumeAction describes, for a single thread, how it should be
// resumed: continue freely, single-step, or stay suspended while its
// siblings run.
type ThreadResumeAction struct {
	Thread ThreadID
	Step   bool
	Signal int
	// Report is the §4.4 should_report_run vote aggregated over this
	// thread's plan stack: VoteYes means the resume itself (not just a
	// later stop) should be surfaced to the user.
	Report Vote
}

// NativeStopEvent is what NativeProcessController.WaitForStop reports:
// the process-level state transition plus, if a thread actually
// stopped, which one and why at the native level. Resolving "why" into
// a StopInfo plan-shaped reason is the Thread arbitrator's job, not the
// controller's.
type NativeStopEvent struct {
	State  ProcessState
	Thread ThreadID
	// Trap is true if the stop was a trap (breakpoint, single-step, or
	// watchpoint) as opposed to an external signal.
	Trap bool
	// Signal carries the delivered signal number when State indicates
	// the process is stopped or exited because of one; for a normal exit
	// it carries the exit status instead.
	Signal int
}

// NativeProcessController is the external process/thread monitor
// collaborator (ptrace, Mach, or a remote stub on the other side of a
// wire protocol -- the core does not care which). It is consumed, never
// implemented, by this package; pkg/nativeptrace provides one reference
// adapter for Linux.
type NativeProcessController interface {
	Launch(ctx context.Context, path string, args []string) error
	Attach(ctx context.Context, pid int) error
	Resume(ctx context.Context, actions []ThreadResumeAction) error
	Halt(ctx context.Context) error
	ReadMemory(addr Addr, size int) ([]byte, error)
	WriteMemory(addr Addr, data []byte) error
	ReadRegisters(tid ThreadID) ([]byte, error)
	WriteRegisters(tid ThreadID, regs []byte) error
	WaitForStop(ctx context.Context) (NativeStopEvent, error)
}

// BreakpointSite is the read-only view of an installed breakpoint site
// that the core needs in order to decide whether it explains a stop and
// whether the stopped thread is one the site applies to.
type BreakpointSite interface {
	ID() SiteID
	Addr() Addr
	Enabled() bool
	Spec() ThreadSpec
}

// BreakpointRegistry is the external collaborator owning breakpoint
// site state shared between the core and the rest of the debugger
// (e.g. a command layer that creates sites by source line).
type BreakpointRegistry interface {
	FindSite(addr Addr) (BreakpointSite, bool)
	Install(addr Addr, spec ThreadSpec) (BreakpointSite, error)
	Enable(site SiteID) error
	Disable(site SiteID) error
	Remove(site SiteID) error
}

// SymbolResolver is the read-only debug-info collaborator: DWARF and
// symbol-table lookups the core needs to bound stepping ranges and
// describe frames, but never to interpret debug info itself.
type SymbolResolver interface {
	FunctionForAddress(addr Addr) (fn Function, lowPC, highPC Addr, ok bool)
	LineForAddress(addr Addr) (file string, line int, ok bool)
	ReturnTypeOf(fn Function) (typeName string, ok bool)
}

// Function is an opaque handle into SymbolResolver's own model; the
// core only ever carries it around to pass to ReturnTypeOf and to
// compare for identity.
type Function interface {
	Name() string
}

// Tracer is an optional, per-plan observer. When a plan's tracer
// reports that it consumed the stop (TracerExplainsStop), arbitration
// treats the stop as trace-only: no user-visible stop is reported and
// nothing is popped (§4.5 step 3b).
type Tracer interface {
	OnResume(state RunState)
	OnStop() (explains bool)
	Log(frame FrameSnapshot)
}

// FrameSnapshot is the minimal frame information handed to a Tracer.Log
// sink; it is a value copy, never a live *Frame, so a sink cannot
// observe or corrupt unwinder state.
type FrameSnapshot struct {
	Index int
	PC    Addr
	CFA   Addr
}

// CallReturn carries the result of a completed CallFunction /
// CallUserExpression invocation.
type CallReturn struct {
	Value []byte
	Err   error
}
