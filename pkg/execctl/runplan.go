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
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RunThreadPlanOptions configures one synchronous side-trip through
// run_thread_plan.
type RunThreadPlanOptions struct {
	// Timeout bounds the whole side-trip; zero means no bound.
	Timeout time.Duration
	// PollInterval is the interval of the constant backoff wrapped around
	// each poll. Every poll error is treated as permanent, so poll is not
	// retried and the interval delays nothing. Defaults to 10ms if zero.
	PollInterval time.Duration
	// DiscardOnError, when true, causes the plan to be force-discarded
	// (rather than left on the stack for normal arbitration to unwind)
	// if the side-trip errors out or times out.
	DiscardOnError bool
}

// RunThreadPlan drives one thread through a synchronous call/expression
// side-trip: it queues plan, repeatedly resumes and waits for the next
// stop via poll, and returns once plan reports MischiefManaged (or the
// timeout/context expires). This is the engine behind CallFunction and
// CallUserExpression requests; ordinary stepping plans are driven by
// the coordinator's normal event loop instead.
//
// poll is called after each resume to retrieve the next native stop
// event for this thread; it is expected to block until one is
// available or ctx is cancelled, mirroring NativeProcessController.WaitForStop.
func RunThreadPlan(ctx context.Context, c *ProcessStopCoordinator, t *Thread, plan ThreadPlan, opts RunThreadPlanOptions, poll func(context.Context) (NativeStopEvent, error)) (CallReturn, error) {
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := t.QueuePlan(plan); err != nil {
		return CallReturn{}, err
	}

	abort := func(cause error) (CallReturn, error) {
		if opts.DiscardOnError {
			t.DiscardPlansUpTo(plan)
		}
		return CallReturn{Err: cause}, cause
	}

	boff := backoff.WithContext(backoff.NewConstantBackOff(opts.PollInterval), ctx)

	for {
		actions := c.PrepareResumeAll()
		if err := c.native.Resume(ctx, actions); err != nil {
			return abort(NewError(ErrTargetLost, t.id, err, "resume failed during run_thread_plan"))
		}

		var ev NativeStopEvent
		op := func() error {
			e, err := poll(ctx)
			if err != nil {
				return backoff.Permanent(err)
			}
			ev = e
			return nil
		}
		if err := backoff.Retry(op, boff); err != nil {
			if ctx.Err() != nil {
				return abort(NewError(ErrTimeout, t.id, ctx.Err(), "run_thread_plan timed out"))
			}
			return abort(NewError(ErrTargetLost, t.id, err, "wait-for-stop failed during run_thread_plan"))
		}

		result, err := c.HandleStop(ctx, ev)
		if err != nil {
			return abort(NewError(ErrTargetLost, t.id, err, "arbitration failed during run_thread_plan"))
		}
		_ = result

		if plan.MischiefManaged() {
			if cf, ok := plan.(*CallFunctionPlan); ok {
				return cf.Result, cf.Result.Err
			}
			return CallReturn{}, nil
		}

		if ctx.Err() != nil {
			return abort(NewError(ErrTimeout, t.id, ctx.Err(), "run_thread_plan timed out"))
		}
	}
}
