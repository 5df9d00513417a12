package sim

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Actor is a cooperative coroutine. Exactly one actor (or the code that
// spawned it) runs at any instant: control is a baton handed over unbuffered
// channels, so the goroutines behind actors never run concurrently and the
// whole simulation stays deterministic.
//
// An actor suspends only at explicit calls (Await, Select, WaitNext). Between
// suspension points its body runs to completion without preemption.
type Actor struct {
	name    string
	resume  chan error
	yielded chan struct{}

	cancelled bool
	done      bool

	// unpark removes the waiter registrations of the current suspension so a
	// canceller can detach the actor before resuming it. Nil while running.
	unpark func()
}

// Name returns the label given at spawn time.
func (a *Actor) Name() string { return a.name }

// sourceExhausted is the panic payload raised by byte-backed random sources
// when they run dry. It is converted to ErrSourceExhausted at actor
// boundaries and by CatchExhaustion; any other panic propagates.
type sourceExhausted struct{}

// Spawn starts body as a new actor and returns the future of its result.
// The first segment of body runs synchronously: by the time Spawn returns,
// the actor has either suspended or finished. Cancelling the returned future
// cancels the actor.
func Spawn[T any](name string, body func(*Actor) (T, error)) Future[T] {
	a := &Actor{
		name:    name,
		resume:  make(chan error),
		yielded: make(chan struct{}),
	}
	p := NewPromise[T]()
	p.c.onCancel = a.requestCancel
	logrus.Debugf("spawning actor %s", name)
	go func() {
		v, err := runBody(a, body)
		a.done = true
		if err == nil {
			p.c.settle(stateReady, v, nil)
		} else {
			var zero T
			if errors.Is(err, ErrCancelled) {
				p.c.settle(stateCancelled, zero, err)
			} else {
				p.c.settle(stateFailed, zero, err)
			}
		}
		a.yielded <- struct{}{}
	}()
	<-a.yielded
	return p.Future()
}

func runBody[T any](a *Actor, body func(*Actor) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(sourceExhausted); ok {
				err = ErrSourceExhausted
				return
			}
			panic(r)
		}
	}()
	return body(a)
}

// park hands the baton back to whoever resumed (or spawned) this actor and
// blocks until the next resume. The returned error is nil when the awaited
// cell settled and ErrCancelled when the actor was cancelled while parked.
func (a *Actor) park() error {
	a.yielded <- struct{}{}
	return <-a.resume
}

// wake transfers the baton to the parked actor and blocks until it suspends
// again or finishes. Callers must hold the baton.
func (a *Actor) wake(err error) {
	a.resume <- err
	<-a.yielded
}

// requestCancel marks the actor cancelled. A parked actor is detached from
// whatever it awaits and resumed with ErrCancelled so its defers run; a
// running actor observes the flag at its next suspension point.
func (a *Actor) requestCancel() {
	if a.done || a.cancelled {
		return
	}
	a.cancelled = true
	if a.unpark != nil {
		detach := a.unpark
		a.unpark = nil
		detach()
		a.wake(ErrCancelled)
	}
}

// Await suspends the actor until f settles and returns its result. If the
// actor is already cancelled, or is cancelled while suspended, it returns
// ErrCancelled without waiting further. A future that is already settled is
// returned immediately with no suspension.
func Await[T any](a *Actor, f Future[T]) (T, error) {
	var zero T
	if a.cancelled {
		return zero, ErrCancelled
	}
	c := f.c
	if c == nil {
		panic("Await on a zero Future")
	}
	if c.state != statePending {
		return c.result()
	}
	w := c.addWaiter(func() { a.wake(nil) })
	a.unpark = func() { c.removeWaiter(w) }
	err := a.park()
	a.unpark = nil
	if err != nil {
		return zero, err
	}
	return c.result()
}

// Select races arms and returns the index of the winner plus the winner's
// error, if any. If several arms are already settled the first in argument
// order wins, without suspension. Losing arms remain pending and untouched;
// a caller that owns them should Cancel them.
func Select(a *Actor, arms ...Future[Void]) (int, error) {
	if a.cancelled {
		return -1, ErrCancelled
	}
	if len(arms) == 0 {
		panic("Select with no arms")
	}
	for i, f := range arms {
		if f.c == nil {
			panic("Select on a zero Future")
		}
		if f.c.state != statePending {
			_, err := f.c.result()
			return i, err
		}
	}
	winner := -1
	ws := make([]*waiter, len(arms))
	for i, f := range arms {
		i := i
		ws[i] = f.c.addWaiter(func() {
			if winner >= 0 {
				return
			}
			winner = i
			a.wake(nil)
		})
	}
	a.unpark = func() {
		for i, f := range arms {
			f.c.removeWaiter(ws[i])
		}
	}
	err := a.park()
	a.unpark = nil
	for i, f := range arms {
		if i != winner {
			f.c.removeWaiter(ws[i])
		}
	}
	if err != nil {
		return -1, err
	}
	_, werr := arms[winner].c.result()
	return winner, werr
}

// CatchExhaustion runs fn and converts a random-source exhaustion raised on
// the caller's own stack (for example inside RandomSim.Run's dispatch loop)
// into ErrSourceExhausted. Other panics propagate unchanged.
func CatchExhaustion(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(sourceExhausted); ok {
				err = ErrSourceExhausted
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
