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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Transcript appends every command and stop notification to a
// per-session log file, guarded by an flock so two execctl processes
// attached to the same inferior (e.g. a second terminal running
// `execctl repl -pid <pid>`) never interleave partial lines.
type Transcript struct {
	path string
	lock *flock.Flock
	f    *os.File
}

// OpenTranscript creates (or appends to) dir/<name>.log, acquiring an
// exclusive advisory lock on a sibling .lock file for the duration of
// each Append call.
func OpenTranscript(dir, name string) (*Transcript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	return &Transcript{
		path: path,
		lock: flock.New(path + ".lock"),
		f:    f,
	}, nil
}

// Append writes one timestamped line to the transcript, serialized
// against concurrent writers via the sibling lock file.
func (t *Transcript) Append(line string) error {
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("locking transcript: %w", err)
	}
	defer t.lock.Unlock()

	_, err := fmt.Fprintf(t.f, "%s %s\n", time.Now().Format(time.RFC3339Nano), line)
	return err
}

// Close releases the transcript file. The sibling lock file is left on
// disk (flock releases the advisory lock on process exit regardless).
func (t *Transcript) Close() error {
	return t.f.Close()
}
