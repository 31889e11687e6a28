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

// ThreadSpec is a data-only predicate used by breakpoints and plans to
// filter which threads an action applies to. Any field left unset
// matches every thread for that field.
//
// +stateify savable
type ThreadSpec struct {
	id    ThreadID
	index ThreadIndex
	name  string
	queue string
}

// NewThreadSpec returns a spec with every field unset, matching any
// thread. Use the With* methods to narrow it.
func NewThreadSpec() ThreadSpec {
	return ThreadSpec{id: InvalidThreadID, index: unsetIndex}
}

// WithID returns a copy of s that additionally requires thread.id == id.
func (s ThreadSpec) WithID(id ThreadID) ThreadSpec {
	s.id = id
	return s
}

// WithIndex returns a copy of s that additionally requires
// thread.index == index.
func (s ThreadSpec) WithIndex(index ThreadIndex) ThreadSpec {
	s.index = index
	return s
}

// WithName returns a copy of s that additionally requires thread.name
// to equal name.
func (s ThreadSpec) WithName(name string) ThreadSpec {
	s.name = name
	return s
}

// WithQueueName returns a copy of s that additionally requires
// thread.queue to equal queue.
func (s ThreadSpec) WithQueueName(queue string) ThreadSpec {
	s.queue = queue
	return s
}

// threadDescriptor is the minimal view of a Thread that ThreadSpec needs
// to evaluate a match; Thread implements it directly.
type threadDescriptor interface {
	ID() ThreadID
	Index() ThreadIndex
	Name() string
	QueueName() string
}

// Matches reports whether t satisfies every field s has set.
func (s ThreadSpec) Matches(t threadDescriptor) bool {
	if s.id != InvalidThreadID && s.id != t.ID() {
		return false
	}
	if s.index != unsetIndex && s.index != t.Index() {
		return false
	}
	if s.name != "" && s.name != t.Name() {
		return false
	}
	if s.queue != "" && s.queue != t.QueueName() {
		return false
	}
	return true
}

// IsUnset reports whether s has no fields set, and therefore matches
// every thread.
func (s ThreadSpec) IsUnset() bool {
	return s.id == InvalidThreadID && s.index == unsetIndex && s.name == "" && s.queue == ""
}
