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
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/tracewalk/execctl/pkg/execctl"
	"github.com/tracewalk/execctl/pkg/nativeptrace"
)

// session bundles everything one execctl invocation builds: the native
// backend, the coordinator, and the config/transcript the REPL logs
// through.
type session struct {
	cfg        Config
	proc       *nativeptrace.Process
	coord      *execctl.ProcessStopCoordinator
	registry   *nativeptrace.Registry
	symbols    *nativeptrace.ELFSymbolResolver
	transcript *Transcript
	id         string
}

type launchCmd struct {
	configPath string
}

func (*launchCmd) Name() string     { return "launch" }
func (*launchCmd) Synopsis() string { return "launch an inferior under the reference ptrace backend and open a command loop" }
func (*launchCmd) Usage() string {
	return "launch [-config path] <path> [args...]\n"
}

func (c *launchCmd) SetFlags(f *flag.FlagSet) {
	home, _ := os.UserHomeDir()
	f.StringVar(&c.configPath, "config", filepath.Join(home, ".execctl.toml"), "path to a TOML config file")
}

func (c *launchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "launch: missing inferior path")
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	args := f.Args()[1:]

	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launch: loading config: %v\n", err)
		return subcommands.ExitFailure
	}

	sess, err := newSession(ctx, cfg, path, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "launch: %v\n", err)
		return subcommands.ExitFailure
	}
	defer sess.transcript.Close()

	fmt.Printf("launched %s, session %s\n", path, sess.id)
	return runLoop(ctx, sess)
}

// newSession launches path under the reference ptrace backend, wires a
// ProcessStopCoordinator and breakpoint registry around it, and opens
// a locked transcript for the new session.
func newSession(ctx context.Context, cfg Config, path string, args []string) (*session, error) {
	proc := nativeptrace.New()
	if err := proc.Launch(ctx, path, args); err != nil {
		return nil, err
	}

	registry := nativeptrace.NewRegistry(proc)
	coord := execctl.NewProcessStopCoordinator(proc, registry)

	symbols, err := nativeptrace.NewELFSymbolResolver(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: reading symbols from %s: %v\n", path, err)
	}

	sessID := uuid.NewString()
	transcript, err := OpenTranscript(cfg.TranscriptDir, sessID)
	if err != nil {
		return nil, err
	}
	_ = transcript.Append(fmt.Sprintf("launched %s %v", path, args))

	return &session{
		cfg:        cfg,
		proc:       proc,
		coord:      coord,
		registry:   registry,
		symbols:    symbols,
		transcript: transcript,
		id:         sessID,
	}, nil
}

// attachSession is newSession's counterpart for repl: it seizes an
// already-running pid instead of forking a fresh inferior. The ELF path
// is read from /proc/<pid>/exe; if that link or the ELF file cannot be
// read, symbol resolution is left nil.
func attachSession(ctx context.Context, cfg Config, pid int) (*session, error) {
	proc := nativeptrace.New()
	if err := proc.Attach(ctx, pid); err != nil {
		return nil, err
	}

	registry := nativeptrace.NewRegistry(proc)
	coord := execctl.NewProcessStopCoordinator(proc, registry)

	var symbols *nativeptrace.ELFSymbolResolver
	if exe, err := os.Readlink(filepath.Join("/proc", fmt.Sprint(pid), "exe")); err == nil {
		if resolved, err := nativeptrace.NewELFSymbolResolver(exe); err == nil {
			symbols = resolved
		}
	}

	sessID := uuid.NewString()
	transcript, err := OpenTranscript(cfg.TranscriptDir, sessID)
	if err != nil {
		return nil, err
	}
	_ = transcript.Append(fmt.Sprintf("attached to pid %d", pid))

	return &session{
		cfg:        cfg,
		proc:       proc,
		coord:      coord,
		registry:   registry,
		symbols:    symbols,
		transcript: transcript,
		id:         sessID,
	}, nil
}
