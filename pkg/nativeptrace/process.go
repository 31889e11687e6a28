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

// Package nativeptrace is the reference Linux backend for the
// execution-control core: it implements execctl.NativeProcessController
// on top of golang.org/x/sys/unix's ptrace wrappers, launching the
// inferior under a pty and reporting stop events the way the core's
// ProcessStopCoordinator expects them.
package nativeptrace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/containerd/console"
	"github.com/creack/pty"
	"github.com/moby/sys/capability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// Process is the reference NativeProcessController: one traced inferior
// started (or attached to) via ptrace, with every thread sharing the
// same address space and a master pty for its controlling terminal.
type Process struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	pty     *os.File
	con     console.Console
	pid     int
	exited  bool
	threads map[execctl.ThreadID]struct{}

	log *logrus.Entry
}

// New returns an unstarted Process.
func New() *Process {
	return &Process{
		threads: make(map[execctl.ThreadID]struct{}),
		log:     logrus.WithField("component", "nativeptrace"),
	}
}

// Pty returns the master side of the inferior's controlling terminal,
// valid once Launch has returned successfully.
func (p *Process) Pty() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// dropCaps clears every capability this process holds beyond the bare
// minimum needed to ptrace (CAP_SYS_PTRACE) before spawning the
// inferior, so the inferior and anything it execs never inherit a
// capability set broader than "may be traced".
func dropCaps() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		// Capability introspection is unavailable on this kernel/build
		// (e.g. no file capabilities support); proceed without dropping,
		// the way an unprivileged launcher already would.
		return nil
	}
	if err := caps.Load(); err != nil {
		return nil
	}
	caps.Clear(capability.CAPS | capability.BOUNDING | capability.AMBIENT)
	caps.Set(capability.PERMITTED|capability.EFFECTIVE, capability.CAP_SYS_PTRACE)
	return caps.Apply(capability.CAPS | capability.BOUNDING | capability.AMBIENT)
}

// Launch starts path as a traced child under a fresh pty, per the §6
// "reference native backend" contract: the child calls PTRACE_TRACEME
// before exec (via SysProcAttr.Ptrace) and stops on the exec trap,
// which Launch consumes before returning so the caller's first
// WaitForStop sees the inferior already parked at its entry point.
func (p *Process) Launch(ctx context.Context, path string, args []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := dropCaps(); err != nil {
		p.log.WithError(err).Warn("failed to drop capabilities before launch")
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.SysProcAttr = &unix.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}

	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("opening pty: %w", err)
	}
	defer slave.Close()
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave

	if err := cmd.Start(); err != nil {
		master.Close()
		return fmt.Errorf("starting %s: %w", path, err)
	}

	// Put the master side in raw mode so the inferior's own line
	// discipline (echo, signal-generating control characters) governs
	// its terminal, the way a real launching debugger leaves a target's
	// stdio untouched by the controlling tty.
	if con, err := console.ConsoleFromFile(master); err != nil {
		p.log.WithError(err).Warn("failed to wrap pty master as a console")
	} else if err := con.SetRaw(); err != nil {
		p.log.WithError(err).Warn("failed to place inferior console in raw mode")
	} else {
		p.con = con
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(cmd.Process.Pid, &ws, 0, nil); err != nil {
		master.Close()
		return fmt.Errorf("waiting for initial exec-stop: %w", err)
	}
	if !ws.Stopped() {
		master.Close()
		return fmt.Errorf("inferior did not stop at exec, wait status %#x", ws)
	}

	p.cmd = cmd
	p.pty = master
	p.pid = cmd.Process.Pid
	p.threads[execctl.ThreadID(p.pid)] = struct{}{}

	const opts = unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_TRACECLONE |
		unix.PTRACE_O_TRACEFORK | unix.PTRACE_O_TRACEVFORK | unix.PTRACE_O_EXITKILL
	if err := unix.PtraceSetOptions(p.pid, opts); err != nil {
		return fmt.Errorf("ptrace setoptions: %w", err)
	}
	return nil
}

// Attach begins tracing an already-running process.
func (p *Process) Attach(ctx context.Context, pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := unix.PtraceAttach(pid); err != nil {
		return fmt.Errorf("ptrace attach %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("waiting for attach-stop: %w", err)
	}
	p.pid = pid
	p.threads[execctl.ThreadID(pid)] = struct{}{}
	return nil
}

// Resume continues or single-steps every thread named in actions.
// Threads of this process not named in actions are left stopped, the
// coarse group-stop semantics the coordinator's whole-process resume
// assumes.
func (p *Process) Resume(ctx context.Context, actions []execctl.ThreadResumeAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range actions {
		tid := int(a.Thread)
		if _, ok := p.threads[a.Thread]; !ok {
			continue
		}
		var err error
		if a.Step {
			err = unix.PtraceSingleStep(tid)
		} else {
			err = unix.PtraceCont(tid, a.Signal)
		}
		if err != nil {
			return fmt.Errorf("resuming thread %d: %w", tid, err)
		}
	}
	return nil
}

// Halt sends SIGSTOP to the inferior's whole process group.
func (p *Process) Halt(ctx context.Context) error {
	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()
	if pid == 0 {
		return fmt.Errorf("halt: no inferior")
	}
	return unix.Kill(-pid, unix.SIGSTOP)
}

// ReadMemory reads size bytes from addr in the inferior's address
// space via /proc/<pid>/mem, which (unlike PTRACE_PEEKDATA) does not
// require word-aligned, word-sized transfers.
func (p *Process) ReadMemory(addr execctl.Addr, size int) ([]byte, error) {
	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(addr))
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

// WriteMemory writes data to addr in the inferior's address space via
// /proc/<pid>/mem.
func (p *Process) WriteMemory(addr execctl.Addr, data []byte) error {
	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(data, int64(addr))
	return err
}

// ReadRegisters returns the raw PTRACE_GETREGS image for tid, as an
// opaque byte slice the execctl core never interprets.
func (p *Process) ReadRegisters(tid execctl.ThreadID) ([]byte, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(int(tid), &regs); err != nil {
		return nil, fmt.Errorf("ptrace getregs %d: %w", tid, err)
	}
	return regsToBytes(&regs), nil
}

// WriteRegisters installs regs (as previously returned by
// ReadRegisters, possibly mutated by an arch-aware collaborator) back
// into tid via PTRACE_SETREGS.
func (p *Process) WriteRegisters(tid execctl.ThreadID, regs []byte) error {
	var native unix.PtraceRegs
	if err := bytesToRegs(regs, &native); err != nil {
		return err
	}
	if err := unix.PtraceSetRegs(int(tid), &native); err != nil {
		return fmt.Errorf("ptrace setregs %d: %w", tid, err)
	}
	return nil
}

// WaitForStop blocks for the next ptrace-stop, signal-delivery-stop, or
// exit of any thread in this process, translating it into a
// NativeStopEvent the coordinator can resolve into a StopInfo.
func (p *Process) WaitForStop(ctx context.Context) (execctl.NativeStopEvent, error) {
	type result struct {
		ev  execctl.NativeStopEvent
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var ws unix.WaitStatus
		tid, err := unix.Wait4(-1, &ws, 0, nil)
		if err != nil {
			ch <- result{err: fmt.Errorf("wait4: %w", err)}
			return
		}
		ch <- result{ev: p.classify(tid, ws)}
	}()

	select {
	case <-ctx.Done():
		return execctl.NativeStopEvent{}, ctx.Err()
	case r := <-ch:
		return r.ev, r.err
	}
}

// resetConsole restores the pty master's line discipline once the
// inferior is gone; callers hold p.mu.
func (p *Process) resetConsole() {
	if p.con == nil {
		return
	}
	if err := p.con.Reset(); err != nil {
		p.log.WithError(err).Warn("failed to reset inferior console")
	}
}

func (p *Process) classify(tid int, ws unix.WaitStatus) execctl.NativeStopEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := execctl.ThreadID(tid)
	switch {
	case ws.Exited():
		delete(p.threads, id)
		state := execctl.ProcessRunning
		if len(p.threads) == 0 {
			state = execctl.ProcessExited
			p.exited = true
			p.resetConsole()
		}
		return execctl.NativeStopEvent{State: state, Thread: id, Signal: ws.ExitStatus()}
	case ws.Signaled():
		delete(p.threads, id)
		state := execctl.ProcessRunning
		if len(p.threads) == 0 {
			state = execctl.ProcessExited
			p.exited = true
			p.resetConsole()
		}
		return execctl.NativeStopEvent{State: state, Thread: id, Signal: int(ws.Signal())}
	case ws.Stopped():
		p.threads[id] = struct{}{}
		sig := ws.StopSignal()
		trap := sig == unix.SIGTRAP
		return execctl.NativeStopEvent{State: execctl.ProcessStopped, Thread: id, Trap: trap, Signal: int(sig)}
	default:
		return execctl.NativeStopEvent{State: execctl.ProcessStopped, Thread: id}
	}
}

var _ execctl.NativeProcessController = (*Process)(nil)
