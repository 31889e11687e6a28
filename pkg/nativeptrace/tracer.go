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
	"sync"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tracewalk/execctl/pkg/execctl"
)

// LogTracer is the reference execctl.Tracer: it logs every frame a
// plan reports through Log, rate-limited so a tight stepping loop
// attached to a tracer cannot flood the log, and never reports that it
// "explains" a stop -- it observes without consuming.
type LogTracer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	log     *logrus.Entry
	entries []execctl.FrameSnapshot
}

// NewLogTracer returns a tracer permitting up to burst immediate log
// entries and refilling at rate r per second thereafter.
func NewLogTracer(r rate.Limit, burst int) *LogTracer {
	return &LogTracer{
		limiter: rate.NewLimiter(r, burst),
		log:     logrus.WithField("component", "tracer"),
	}
}

func (t *LogTracer) OnResume(state execctl.RunState) {
	t.log.WithField("state", state).Trace("resume")
}

// OnStop never claims the stop: this tracer is purely observational.
func (t *LogTracer) OnStop() bool { return false }

// Log records a defensive copy of snap (via mohae/deepcopy, so a
// caller that keeps mutating its own FrameSnapshot after logging can
// never corrupt what was recorded) if the rate limiter allows it;
// otherwise the entry is silently dropped.
func (t *LogTracer) Log(snap execctl.FrameSnapshot) {
	if !t.limiter.Allow() {
		return
	}
	copied := deepcopy.Copy(snap).(execctl.FrameSnapshot)
	t.mu.Lock()
	t.entries = append(t.entries, copied)
	t.mu.Unlock()
	t.log.WithFields(logrus.Fields{
		"index": copied.Index,
		"pc":    copied.PC,
		"cfa":   copied.CFA,
	}).Debug("frame")
}

// Entries returns the frames recorded so far, in log order.
func (t *LogTracer) Entries() []execctl.FrameSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]execctl.FrameSnapshot, len(t.entries))
	copy(out, t.entries)
	return out
}

var _ execctl.Tracer = (*LogTracer)(nil)
