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
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is execctl's on-disk session configuration, loaded from
// ~/.execctl.toml if present.
type Config struct {
	// TranscriptDir is where session transcripts are written.
	TranscriptDir string `toml:"transcript_dir"`
	// StepTimeout is a timeout for a CallFunction/CallUserExpression side
	// trip (run_thread_plan's Timeout option); no CLI command reads it.
	StepTimeout time.Duration `toml:"step_timeout"`
	// TraceRateLimit is a LogTracer entries-per-second limit; no CLI
	// command reads it.
	TraceRateLimit float64 `toml:"trace_rate_limit"`
	// TraceBurst is a LogTracer burst allowance; no CLI command reads it.
	TraceBurst int `toml:"trace_burst"`
}

// DefaultConfig returns the configuration used when no config file is
// found.
func DefaultConfig() Config {
	return Config{
		TranscriptDir:  filepath.Join(os.TempDir(), "execctl-sessions"),
		StepTimeout:    5 * time.Second,
		TraceRateLimit: 50,
		TraceBurst:     10,
	}
}

// LoadConfig reads path (typically ~/.execctl.toml), falling back to
// DefaultConfig for any field the file doesn't set and returning
// DefaultConfig outright if the file does not exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
