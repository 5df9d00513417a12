package sim

import (
	"errors"
	"fmt"
)

// Void is the payload of futures that carry a completion signal and no value.
type Void struct{}

// Sentinel errors surfaced by the substrate. Callers match them with errors.Is.
var (
	// ErrCancelled flows out of Await/Select/WaitNext when the calling actor
	// has been cancelled, and is the error carried by a cancelled future.
	ErrCancelled = errors.New("simulation actor cancelled")

	// ErrSourceExhausted reports that the driving RandomSource ran out of
	// bytes. The harness treats it as a clean end of the run.
	ErrSourceExhausted = errors.New("random source exhausted")

	// ErrLockClosed fails queued lock takers when the lock is closed.
	ErrLockClosed = errors.New("admission lock closed")
)

type futureState uint8

const (
	statePending futureState = iota
	stateReady
	stateFailed
	stateCancelled
)

// waiter is one registered observer of a cell. Waiters survive in the cell's
// slice until it settles; removal is a tombstone so that iteration during a
// delivery cascade stays stable.
type waiter struct {
	notify  func()
	removed bool
}

// cell is the shared single-assignment state behind a Promise/Future pair.
// All access happens under the scheduler baton, so there is no locking.
type cell[T any] struct {
	state   futureState
	value   T
	err     error
	waiters []*waiter
	dead    int // tombstoned entries in waiters

	// onCancel, when set, intercepts Cancel() on a pending cell. Producers
	// (spawned actors, collections, stream ready signals) install it so that
	// abandoning the future tears down whatever feeds it.
	onCancel func()
}

func (c *cell[T]) settle(st futureState, v T, err error) {
	if c.state != statePending {
		panic(fmt.Sprintf("future settled twice (state %d)", c.state))
	}
	c.state = st
	c.value = v
	c.err = err
	c.onCancel = nil
	ws := c.waiters
	c.waiters = nil
	c.dead = 0
	for _, w := range ws {
		if !w.removed {
			w.removed = true
			w.notify()
		}
	}
}

func (c *cell[T]) settleCancelled() {
	var zero T
	c.settle(stateCancelled, zero, ErrCancelled)
}

// result reports the settled value or error. Calling it on a pending cell is
// a programming defect.
func (c *cell[T]) result() (T, error) {
	switch c.state {
	case stateReady:
		return c.value, nil
	case stateFailed, stateCancelled:
		var zero T
		return zero, c.err
	}
	panic("result read from a pending future")
}

func (c *cell[T]) addWaiter(notify func()) *waiter {
	w := &waiter{notify: notify}
	c.waiters = append(c.waiters, w)
	return w
}

// removeWaiter tombstones w and compacts the slice once half the entries are
// dead, so long-lived pending cells (a lock's broken signal, Never) do not
// accumulate garbage across many register/unregister cycles.
func (c *cell[T]) removeWaiter(w *waiter) {
	if w == nil || w.removed {
		return
	}
	w.removed = true
	c.dead++
	if c.dead*2 > len(c.waiters) {
		kept := c.waiters[:0]
		for _, o := range c.waiters {
			if !o.removed {
				kept = append(kept, o)
			}
		}
		c.waiters = kept
		c.dead = 0
	}
}

// Promise is the producer handle of a single-assignment cell. The zero value
// is unusable; construct with NewPromise.
type Promise[T any] struct {
	c *cell[T]
}

// NewPromise returns a pending promise/future pair.
func NewPromise[T any]() Promise[T] {
	return Promise[T]{c: &cell[T]{}}
}

// Future returns the consumer handle sharing this promise's cell.
func (p Promise[T]) Future() Future[T] {
	return Future[T]{c: p.c}
}

// Send fulfills the promise and synchronously delivers to waiters in
// registration order. Sending to an already fulfilled or failed promise
// panics; sending to a cancelled one is a no-op (the producer lost the race
// with abandonment and the value is discarded).
func (p Promise[T]) Send(v T) {
	if p.c.state == stateCancelled {
		return
	}
	p.c.settle(stateReady, v, nil)
}

// Fail settles the promise with err. Same settlement rules as Send.
func (p Promise[T]) Fail(err error) {
	if p.c.state == stateCancelled {
		return
	}
	if err == nil {
		panic("Fail called with nil error")
	}
	var zero T
	if errors.Is(err, ErrCancelled) {
		p.c.settle(stateCancelled, zero, err)
		return
	}
	p.c.settle(stateFailed, zero, err)
}

// IsSet reports whether the promise has settled in any terminal state.
func (p Promise[T]) IsSet() bool {
	return p.c.state != statePending
}

// Future is the consumer handle of a single-assignment cell. Futures are
// freely copyable; all copies observe the same cell.
type Future[T any] struct {
	c *cell[T]
}

// IsReady reports whether the future has settled (including with an error).
func (f Future[T]) IsReady() bool {
	return f.c.state != statePending
}

// IsError reports whether the future settled with an error or cancellation.
func (f Future[T]) IsError() bool {
	return f.c.state == stateFailed || f.c.state == stateCancelled
}

// Get returns the settled result. It panics if the future is still pending;
// suspend with Await instead.
func (f Future[T]) Get() (T, error) {
	return f.c.result()
}

// Cancel abandons a pending future: the producer (if any) is torn down and
// pending waiters observe ErrCancelled. Cancelling a settled future is a
// no-op, so `f.Cancel()` after an Await is always safe cleanup.
func (f Future[T]) Cancel() {
	c := f.c
	if c == nil || c.state != statePending {
		return
	}
	if h := c.onCancel; h != nil {
		c.onCancel = nil
		h()
		return
	}
	c.settleCancelled()
}

// Resolved returns a future already fulfilled with v.
func Resolved[T any](v T) Future[T] {
	c := &cell[T]{state: stateReady, value: v}
	return Future[T]{c: c}
}

// Failed returns a future already settled with err.
func Failed[T any](err error) Future[T] {
	p := NewPromise[T]()
	p.Fail(err)
	return p.Future()
}

// Never returns a future that never settles. It is still cancellable, which
// is the only way code blocked on it ever unwinds.
func Never[T any]() Future[T] {
	return Future[T]{c: &cell[T]{}}
}
