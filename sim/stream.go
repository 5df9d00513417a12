package sim

// streamCore is the queue shared by a PromiseStream/FutureStream pair.
type streamCore[T any] struct {
	queue   []T
	parked  []*streamWaiter
	readies []Promise[Void]
}

type streamWaiter struct {
	a       *Actor
	removed bool
}

// PromiseStream is the producer side of an unbounded FIFO channel with
// promise semantics. Construct with NewPromiseStream.
type PromiseStream[T any] struct {
	s *streamCore[T]
}

// FutureStream is the consumer side. Values are consumed with WaitNext, or
// raced in a Select via Ready + Pop.
type FutureStream[T any] struct {
	s *streamCore[T]
}

// NewPromiseStream returns an empty stream.
func NewPromiseStream[T any]() PromiseStream[T] {
	return PromiseStream[T]{s: &streamCore[T]{}}
}

// Future returns the consumer handle of this stream.
func (ps PromiseStream[T]) Future() FutureStream[T] {
	return FutureStream[T]{s: ps.s}
}

// Send enqueues v, waking the longest-parked consumer if one is suspended in
// WaitNext, and settling any outstanding Ready signals.
func (ps PromiseStream[T]) Send(v T) {
	s := ps.s
	s.queue = append(s.queue, v)
	for len(s.parked) > 0 {
		w := s.parked[0]
		s.parked = s.parked[1:]
		if w.removed {
			continue
		}
		w.removed = true
		w.a.wake(nil)
		break
	}
	if len(s.queue) == 0 {
		return
	}
	rs := s.readies
	s.readies = nil
	for _, r := range rs {
		r.Send(Void{})
	}
}

// WaitNext returns the next value, suspending the actor while the stream is
// empty. Consumers parked here are served in FIFO order.
func WaitNext[T any](a *Actor, fs FutureStream[T]) (T, error) {
	var zero T
	if a.cancelled {
		return zero, ErrCancelled
	}
	s := fs.s
	if len(s.queue) > 0 {
		return fs.Pop(), nil
	}
	w := &streamWaiter{a: a}
	s.parked = append(s.parked, w)
	a.unpark = func() { w.removed = true }
	err := a.park()
	a.unpark = nil
	if err != nil {
		return zero, err
	}
	return fs.Pop(), nil
}

// Ready returns a future that settles once the stream is non-empty, for use
// as a Select arm. The caller pops the value itself and should Cancel the
// future when the Select was won by another arm. Ready signals assume a
// single consumer: with several, a signalled consumer may find the queue
// already drained.
func (fs FutureStream[T]) Ready() Future[Void] {
	s := fs.s
	if len(s.queue) > 0 {
		return Resolved(Void{})
	}
	p := NewPromise[Void]()
	s.readies = append(s.readies, p)
	p.c.onCancel = func() {
		for i, r := range s.readies {
			if r.c == p.c {
				s.readies = append(s.readies[:i], s.readies[i+1:]...)
				break
			}
		}
		p.c.settleCancelled()
	}
	return p.Future()
}

// Pop dequeues the front value. Popping an empty stream is a programming
// defect; gate on Ready or use WaitNext.
func (fs FutureStream[T]) Pop() T {
	s := fs.s
	if len(s.queue) == 0 {
		panic("Pop on an empty stream")
	}
	v := s.queue[0]
	s.queue = s.queue[1:]
	return v
}

// Len reports the number of buffered values.
func (fs FutureStream[T]) Len() int {
	return len(fs.s.queue)
}
