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

import "testing"

type fakeThreadDescriptor struct {
	id    ThreadID
	index ThreadIndex
	name  string
	queue string
}

func (f fakeThreadDescriptor) ID() ThreadID       { return f.id }
func (f fakeThreadDescriptor) Index() ThreadIndex { return f.index }
func (f fakeThreadDescriptor) Name() string       { return f.name }
func (f fakeThreadDescriptor) QueueName() string  { return f.queue }

func TestThreadSpecUnsetMatchesAnything(t *testing.T) {
	s := NewThreadSpec()
	if !s.IsUnset() {
		t.Fatalf("a freshly constructed ThreadSpec must be unset")
	}
	td := fakeThreadDescriptor{id: 7, index: 2, name: "main", queue: "q"}
	if !s.Matches(td) {
		t.Fatalf("an unset ThreadSpec must match every thread")
	}
}

func TestThreadSpecWithIDNarrows(t *testing.T) {
	s := NewThreadSpec().WithID(7)
	if s.IsUnset() {
		t.Fatalf("WithID must mark the spec as set")
	}
	if !s.Matches(fakeThreadDescriptor{id: 7}) {
		t.Fatalf("spec should match thread id 7")
	}
	if s.Matches(fakeThreadDescriptor{id: 8}) {
		t.Fatalf("spec should not match thread id 8")
	}
}

func TestThreadSpecCombinesFields(t *testing.T) {
	s := NewThreadSpec().WithName("worker").WithQueueName("io")
	if !s.Matches(fakeThreadDescriptor{name: "worker", queue: "io"}) {
		t.Fatalf("spec should match a thread satisfying both name and queue")
	}
	if s.Matches(fakeThreadDescriptor{name: "worker", queue: "compute"}) {
		t.Fatalf("spec should reject a thread matching name but not queue")
	}
}

func TestThreadSpecIsValueType(t *testing.T) {
	base := NewThreadSpec()
	narrowed := base.WithID(3)
	if !base.IsUnset() {
		t.Fatalf("With* must return a copy, leaving the original spec unset")
	}
	if narrowed.IsUnset() {
		t.Fatalf("the narrowed copy must report set")
	}
}
