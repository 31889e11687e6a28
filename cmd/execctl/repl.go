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

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// replCmd attaches to an already-running pid and opens the same
// command loop launchCmd drops into after starting a fresh inferior.
type replCmd struct {
	configPath string
	pid        int
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "attach to a running process and open a command loop" }
func (*replCmd) Usage() string    { return "repl -pid <pid>\n" }

func (c *replCmd) SetFlags(f *flag.FlagSet) {
	home, _ := os.UserHomeDir()
	f.StringVar(&c.configPath, "config", home+"/.execctl.toml", "path to a TOML config file")
	f.IntVar(&c.pid, "pid", 0, "pid of the process to attach to")
}

func (c *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.pid == 0 {
		fmt.Fprintln(os.Stderr, "repl: -pid is required")
		return subcommands.ExitUsageError
	}
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repl: loading config: %v\n", err)
		return subcommands.ExitFailure
	}

	sess, err := attachSession(ctx, cfg, c.pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "repl: %v\n", err)
		return subcommands.ExitFailure
	}
	defer sess.transcript.Close()

	fmt.Printf("attached to pid %d, session %s\n", c.pid, sess.id)
	return runLoop(ctx, sess)
}

// runLoop reads line-oriented commands from stdin and drives sess's
// coordinator until EOF or "quit". It is intentionally small: a real
// front end would parse expressions and symbols properly; this one
// exists to exercise the execution-control core end to end.
func runLoop(ctx context.Context, sess *session) subcommands.ExitStatus {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("(execctl) ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		_ = sess.transcript.Append("> " + line)
		if line == "" {
			fmt.Print("(execctl) ")
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return subcommands.ExitSuccess
		case "threads":
			for _, t := range sess.coord.Threads() {
				fmt.Printf("thread %d\n", t.ID())
			}
		case "break":
			if len(fields) < 2 {
				fmt.Println("usage: break <hex-addr>")
				break
			}
			addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
			if err != nil {
				fmt.Printf("break: %v\n", err)
				break
			}
			site, err := sess.registry.Install(execctl.Addr(addr), execctl.NewThreadSpec())
			if err != nil {
				fmt.Printf("break: %v\n", err)
				break
			}
			fmt.Printf("breakpoint %d at %#x\n", site.ID(), addr)
		case "continue", "c":
			runResumeCycle(ctx, sess, nil)
		case "step", "s":
			t := sess.coord.SelectedThread()
			if t == nil {
				fmt.Println("step: no selected thread")
				break
			}
			plan := execctl.NewStepInstructionPlan(t, false)
			if err := t.QueuePlan(plan); err != nil {
				fmt.Printf("step: %v\n", err)
				break
			}
			runResumeCycle(ctx, sess, nil)
		case "bt":
			t := sess.coord.SelectedThread()
			if t == nil {
				fmt.Println("bt: no selected thread")
				break
			}
			for i := 0; ; i++ {
				frame, err := t.GetFrame(i)
				if err != nil {
					break
				}
				fmt.Printf("#%d pc=%#x cfa=%#x\n", frame.Index, frame.PC, frame.CFA)
			}
		default:
			fmt.Printf("unknown command: %s\n", fields[0])
		}
		fmt.Print("(execctl) ")
	}
	fmt.Println()
	return subcommands.ExitSuccess
}

// runResumeCycle resumes every thread and blocks for exactly one
// process-wide stop, logging the outcome to the transcript.
func runResumeCycle(ctx context.Context, sess *session, _ []execctl.ThreadResumeAction) {
	actions := sess.coord.PrepareResumeAll()
	for _, a := range actions {
		if a.Report == execctl.VoteYes {
			_ = sess.transcript.Append(fmt.Sprintf("resuming thread %d (reported)", a.Thread))
		}
	}
	if err := sess.proc.Resume(ctx, actions); err != nil {
		fmt.Printf("resume failed: %v\n", err)
		return
	}
	ev, err := sess.proc.WaitForStop(ctx)
	if err != nil {
		fmt.Printf("wait failed: %v\n", err)
		return
	}
	result, err := sess.coord.HandleStop(ctx, ev)
	if err != nil {
		fmt.Printf("arbitration failed: %v\n", err)
		return
	}
	_ = sess.transcript.Append(fmt.Sprintf("stop: report=%v stop_here=%v", result.Report, result.StopHere))
	fmt.Printf("stopped (report=%v)\n", result.Report)
}
