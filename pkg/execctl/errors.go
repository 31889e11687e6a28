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

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies a CoreError. Kinds are closed: see §7 of the design.
type ErrKind int

const (
	// ErrInvalidState means the operation is not legal in the target's
	// current state (e.g. resume while detached).
	ErrInvalidState ErrKind = iota
	// ErrResourceUnavailable means registers, frames, or memory could
	// not be read/written.
	ErrResourceUnavailable
	// ErrPlanValidationFailed means a plan's validate() rejected it at
	// queue time; the plan was never pushed.
	ErrPlanValidationFailed
	// ErrTimeout means a bounded wait (run_thread_plan) expired.
	ErrTimeout
	// ErrTargetLost means the process died mid-operation.
	ErrTargetLost
	// ErrUserAborted means a caller explicitly cancelled an in-flight
	// operation.
	ErrUserAborted
)

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidState:
		return "invalid-state"
	case ErrResourceUnavailable:
		return "resource-unavailable"
	case ErrPlanValidationFailed:
		return "plan-validation-failed"
	case ErrTimeout:
		return "timeout"
	case ErrTargetLost:
		return "target-lost"
	case ErrUserAborted:
		return "user-aborted"
	default:
		return "unknown"
	}
}

// CoreError is the error type returned across the execctl package
// boundary. It never leaks a bare error from a collaborator without
// attaching a kind, so callers can switch on Kind() instead of string
// matching.
type CoreError struct {
	Kind   ErrKind
	Thread ThreadID
	cause  error
}

// NewError builds a CoreError, wrapping cause (if non-nil) with a stack
// trace via pkg/errors so %+v on the returned error prints a backtrace
// to the original failure.
func NewError(kind ErrKind, thread ThreadID, cause error, msg string) *CoreError {
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, msg)
	} else {
		wrapped = errors.New(msg)
	}
	return &CoreError{Kind: kind, Thread: thread, cause: wrapped}
}

func (e *CoreError) Error() string {
	if e.Thread == InvalidThreadID {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s (thread %d): %v", e.Kind, e.Thread, e.cause)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *CoreError) Unwrap() error { return e.cause }

// Format implements fmt.Formatter so %+v forwards to the wrapped
// pkg/errors cause, which prints a stack trace.
func (e *CoreError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s (thread %d): %+v", e.Kind, e.Thread, e.cause)
		return
	}
	fmt.Fprint(s, e.Error())
}

// IsKind reports whether err is a *CoreError of the given kind.
func IsKind(err error, kind ErrKind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == kind
}
