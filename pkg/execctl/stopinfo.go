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

import "fmt"

// StopKind tags the variant carried by a StopInfo.
type StopKind int

const (
	// StopNone means no stop reason is known yet.
	StopNone StopKind = iota
	// StopTrace means a single-step completed.
	StopTrace
	// StopBreakpoint means an enabled breakpoint site was hit.
	StopBreakpoint
	// StopWatchpoint means a watchpoint fired.
	StopWatchpoint
	// StopSignal means an asynchronous signal was delivered.
	StopSignal
	// StopException means a platform exception was raised.
	StopException
	// StopPlanComplete means a plan (typically CallFunction) finished
	// and is reporting its result directly, rather than the stop being
	// discovered from the wait-status.
	StopPlanComplete
	// StopInvalid is the sentinel used to force recomputation from the
	// native layer on next query; it is never a "real" reason.
	StopInvalid
)

func (k StopKind) String() string {
	switch k {
	case StopNone:
		return "none"
	case StopTrace:
		return "trace"
	case StopBreakpoint:
		return "breakpoint"
	case StopWatchpoint:
		return "watchpoint"
	case StopSignal:
		return "signal"
	case StopException:
		return "exception"
	case StopPlanComplete:
		return "plan-complete"
	case StopInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// WatchAccessKind describes how a watchpoint was triggered.
type WatchAccessKind int

const (
	WatchRead WatchAccessKind = iota
	WatchWrite
	WatchReadWrite
)

// StopInfo is an immutable, tagged description of why a thread stopped.
// A StopInfo is only trustworthy while its SnapshotStopID equals the
// process's current stop-id (see IsValid); any newer resume invalidates
// it and forces recomputation from the native layer on the next query.
// StopInfo values are never mutated after construction: invalidation is
// modeled by comparing stop-ids at read time, not by writing through
// the value (see the design notes on why: preserves StopInfo
// immutability while avoiding a dangling-pointer class of bug).
type StopInfo struct {
	Kind StopKind

	// Breakpoint payload.
	SiteID           SiteID
	LocationID       uint64
	hasLocationID    bool
	ShouldStopOverride *bool

	// Watchpoint payload.
	WatchID WatchID
	Access  WatchAccessKind

	// Signal payload.
	Signal int

	// Exception payload.
	ExceptionKind int
	ExceptionDesc string

	// PlanComplete payload.
	CompletedPlan ThreadPlan
	ReturnValue   *CallReturn

	// SnapshotStopID is the stop-id in effect when this StopInfo was
	// created; compare against the owning process's current stop-id to
	// determine validity (IsValid).
	SnapshotStopID StopID

	// owner is a weak reference: StopInfo never keeps a Thread alive.
	owner ThreadID
}

// NoneStopInfo returns a StopInfo carrying no reason, stamped with the
// given stop-id and owner.
func NoneStopInfo(stopID StopID, owner ThreadID) StopInfo {
	return StopInfo{Kind: StopNone, SnapshotStopID: stopID, owner: owner}
}

// TraceStopInfo returns a StopInfo reporting a completed single step.
func TraceStopInfo(stopID StopID, owner ThreadID) StopInfo {
	return StopInfo{Kind: StopTrace, SnapshotStopID: stopID, owner: owner}
}

// BreakpointStopInfo returns a StopInfo reporting a breakpoint hit.
func BreakpointStopInfo(stopID StopID, owner ThreadID, site SiteID) StopInfo {
	return StopInfo{Kind: StopBreakpoint, SnapshotStopID: stopID, owner: owner, SiteID: site}
}

// WithLocationID attaches a per-location id to a breakpoint StopInfo.
func (si StopInfo) WithLocationID(id uint64) StopInfo {
	si.LocationID = id
	si.hasLocationID = true
	return si
}

// LocationIDValue returns the per-location id and whether one was set.
func (si StopInfo) LocationIDValue() (uint64, bool) {
	return si.LocationID, si.hasLocationID
}

// WatchpointStopInfo returns a StopInfo reporting a watchpoint hit.
func WatchpointStopInfo(stopID StopID, owner ThreadID, w WatchID, access WatchAccessKind) StopInfo {
	return StopInfo{Kind: StopWatchpoint, SnapshotStopID: stopID, owner: owner, WatchID: w, Access: access}
}

// SignalStopInfo returns a StopInfo reporting signal delivery.
func SignalStopInfo(stopID StopID, owner ThreadID, signal int) StopInfo {
	return StopInfo{Kind: StopSignal, SnapshotStopID: stopID, owner: owner, Signal: signal}
}

// ExceptionStopInfo returns a StopInfo reporting a platform exception.
func ExceptionStopInfo(stopID StopID, owner ThreadID, kind int, desc string) StopInfo {
	return StopInfo{Kind: StopException, SnapshotStopID: stopID, owner: owner, ExceptionKind: kind, ExceptionDesc: desc}
}

// PlanCompleteStopInfo returns a StopInfo reporting that plan finished,
// optionally carrying a return value (e.g. from CallFunction).
func PlanCompleteStopInfo(stopID StopID, owner ThreadID, plan ThreadPlan, ret *CallReturn) StopInfo {
	return StopInfo{Kind: StopPlanComplete, SnapshotStopID: stopID, owner: owner, CompletedPlan: plan, ReturnValue: ret}
}

// InvalidStopInfo returns the sentinel used to force recomputation.
func InvalidStopInfo(owner ThreadID) StopInfo {
	return StopInfo{Kind: StopInvalid, SnapshotStopID: StopID(0), owner: owner}
}

// IsValid reports whether si is still current: its snapshot stop-id
// must equal the process's current stop-id, and it must not be the
// StopInvalid sentinel.
func (si StopInfo) IsValid(currentStopID StopID) bool {
	return si.Kind != StopInvalid && si.SnapshotStopID == currentStopID
}

// Owner returns the thread this StopInfo was created for.
func (si StopInfo) Owner() ThreadID { return si.owner }

// ShouldStop implements the Base plan's delegation: in the absence of
// any plan expressing an opinion, a breakpoint or exception stop halts
// execution unless ShouldStopOverride says otherwise, a watchpoint or
// signal stop also halts, and anything else (trace, none, plan-complete,
// invalid) does not.
func (si StopInfo) ShouldStop() bool {
	switch si.Kind {
	case StopBreakpoint, StopException:
		if si.ShouldStopOverride != nil {
			return *si.ShouldStopOverride
		}
		return true
	case StopWatchpoint:
		return true
	case StopSignal:
		// Signals other than the single-step trap are asynchronous and
		// by default should surface to the user; the trap itself is
		// consumed by whichever plan issued the step (handled via
		// StopTrace, not StopSignal, for that case -- see Design Note
		// (b): Signal only takes precedence over a race with a
		// watchpoint stop when it is not the step-trap signal).
		return true
	default:
		return false
	}
}

// Description returns a short human-readable explanation of the stop,
// computed lazily rather than stored, mirroring FreeBSDStopInfo's
// lazily-built extended description.
func (si StopInfo) Description() string {
	switch si.Kind {
	case StopNone:
		return "no stop reason"
	case StopTrace:
		return "single step completed"
	case StopBreakpoint:
		if id, ok := si.LocationIDValue(); ok {
			return fmt.Sprintf("breakpoint %d.%d hit", si.SiteID, id)
		}
		return fmt.Sprintf("breakpoint %d hit", si.SiteID)
	case StopWatchpoint:
		return fmt.Sprintf("watchpoint %d hit (%v)", si.WatchID, si.Access)
	case StopSignal:
		return fmt.Sprintf("signal %d received", si.Signal)
	case StopException:
		return fmt.Sprintf("exception %d: %s", si.ExceptionKind, si.ExceptionDesc)
	case StopPlanComplete:
		if si.CompletedPlan != nil {
			return fmt.Sprintf("plan complete: %s", si.CompletedPlan.String())
		}
		return "plan complete"
	case StopInvalid:
		return "stop reason invalidated, re-query required"
	default:
		return "unknown stop reason"
	}
}
