// Package executor submits backend operations to a worker pool and waits
// for them with a deadline, distinguishing a task that never started from
// one still running when that deadline elapses. It wraps every call with
// a circuit breaker so a backend that is failing hard stops receiving new
// load.
package executor

import (
	"time"

	"github.com/gatewayfs/gatewayfs/internal/circuit"
	"github.com/gatewayfs/gatewayfs/internal/workerpool"
	"github.com/gatewayfs/gatewayfs/pkg/errors"
)

// Executor submits operations to a worker pool and enforces per-call
// deadlines.
type Executor struct {
	pool    *workerpool.Pool
	breaker *circuit.CircuitBreaker
}

// New creates an Executor over the given pool. breaker may be nil to
// disable circuit-breaking (tests, or a backend that manages its own).
func New(pool *workerpool.Pool, breaker *circuit.CircuitBreaker) *Executor {
	return &Executor{pool: pool, breaker: breaker}
}

// SubmitAwait enqueues op at high priority and waits up to deadline for
// it to complete. If the deadline elapses before a worker dequeues op,
// the result is RequestUninitialized (retriable) — the work is discarded,
// the caller can safely retry. If the deadline elapses after a worker has
// already started op, the result is RequestWaiting (not retriable) — the
// in-flight work is abandoned, not cancelled, since there is no way to
// interrupt it safely mid-flight.
func SubmitAwait[T any](ex *Executor, deadline time.Duration, op func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	started := make(chan struct{}, 1)
	done := make(chan result, 1)

	ex.pool.SubmitPriority(func() {
		close(started)
		var res result
		if ex.breaker != nil {
			err := ex.breaker.Execute(func() error {
				v, e := op()
				res.val, res.err = v, e
				return e
			})
			if err != nil && res.err == nil {
				res.err = err
			}
		} else {
			res.val, res.err = op()
		}
		done <- res
	})

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.val, res.err
	case <-timer.C:
		select {
		case <-started:
			var zero T
			return zero, errors.NewError(errors.RequestWaiting, "request still running at deadline")
		default:
			var zero T
			return zero, errors.NewError(errors.RequestUninitialized, "request never started before deadline")
		}
	}
}

// SubmitDetached enqueues op at normal priority; when it completes,
// handler runs on the same worker with op's result. Used for
// fire-and-forget directory moves, where the caller does not wait for
// every child move to finish.
func SubmitDetached[T any](ex *Executor, op func() (T, error), handler func(T, error)) {
	ex.pool.Submit(func() {
		var val T
		var err error
		if ex.breaker != nil {
			cbErr := ex.breaker.Execute(func() error {
				v, e := op()
				val, err = v, e
				return e
			})
			if cbErr != nil && err == nil {
				err = cbErr
			}
		} else {
			val, err = op()
		}
		handler(val, err)
	})
}
