package sim

import "fmt"

// Quorum returns a future that is fulfilled once required of the inputs have
// succeeded, and fails with the first recorded error once enough inputs have
// failed that success is impossible (len(futures)-required+1 failures).
// A cancelled input counts as a failed one. Cancelling the quorum future
// detaches it from all inputs without touching them.
func Quorum[T any](futures []Future[T], required int) Future[Void] {
	if required < 0 || required > len(futures) {
		panic(fmt.Sprintf("Quorum: required %d outside [0, %d]", required, len(futures)))
	}
	if required == 0 {
		return Resolved(Void{})
	}
	q := &quorumState[T]{
		inputs:       futures,
		need:         required,
		failsAllowed: len(futures) - required,
		result:       NewPromise[Void](),
	}
	q.result.c.onCancel = func() {
		q.detach()
		q.result.c.settleCancelled()
	}
	q.hooks = make([]*waiter, len(futures))
	for i, f := range futures {
		if q.result.IsSet() {
			break
		}
		if f.IsReady() {
			q.count(f)
			continue
		}
		f := f
		q.hooks[i] = f.c.addWaiter(func() {
			if q.result.IsSet() {
				return
			}
			q.count(f)
		})
	}
	return q.result.Future()
}

type quorumState[T any] struct {
	inputs       []Future[T]
	hooks        []*waiter
	need         int
	failsAllowed int
	failures     int
	firstErr     error
	result       Promise[Void]
}

func (q *quorumState[T]) count(f Future[T]) {
	if _, err := f.Get(); err != nil {
		q.failures++
		if q.firstErr == nil {
			q.firstErr = err
		}
		if q.failures > q.failsAllowed {
			q.detach()
			q.result.Fail(q.firstErr)
		}
		return
	}
	q.need--
	if q.need == 0 {
		q.detach()
		q.result.Send(Void{})
	}
}

func (q *quorumState[T]) detach() {
	for i, w := range q.hooks {
		if w != nil {
			q.inputs[i].c.removeWaiter(w)
			q.hooks[i] = nil
		}
	}
}

// WaitForAll settles once every input has succeeded and fails fast on the
// first input error.
func WaitForAll[T any](futures []Future[T]) Future[Void] {
	return Quorum(futures, len(futures))
}

// WaitForAny settles once any input has succeeded and fails only when all
// inputs have failed.
func WaitForAny[T any](futures []Future[T]) Future[Void] {
	if len(futures) == 0 {
		panic("WaitForAny with no inputs")
	}
	return Quorum(futures, 1)
}
