package sim

import (
	"container/list"
	"fmt"
)

// Grant-path buggification: with this probability a granted taker is held for
// a short random delay before it proceeds, widening the window in which
// release/cancel interleavings can go wrong.
const (
	lockGrantDelayProb = 0.001
	lockGrantDelayMax  = 1.0
)

// AdmissionLock is a weighted semaphore over a simulator. Takers queue FIFO;
// an idle lock grants even a request larger than its capacity, so a single
// oversized operation is admitted rather than wedged. Grants never run the
// holder's code inside Release: every granted taker goes through one
// scheduler yield first.
type AdmissionLock struct {
	sim      Simulator
	capacity int64
	active   int64
	takers   *list.List // of *lockTaker, front is next to grant
	broken   Promise[Void]
	closed   bool
}

type lockTaker struct {
	grant  Promise[Void]
	amount int64
	elem   *list.Element
}

// NewAdmissionLock returns an open lock with the given capacity.
func NewAdmissionLock(s Simulator, capacity int64) *AdmissionLock {
	if capacity <= 0 {
		panic(fmt.Sprintf("AdmissionLock: capacity %d must be positive", capacity))
	}
	return &AdmissionLock{
		sim:      s,
		capacity: capacity,
		takers:   list.New(),
		broken:   NewPromise[Void](),
	}
}

// Take reserves amount, suspending behind earlier takers when the lock is
// contended. The returned future settles once the reservation is held and the
// holder has been through one scheduler round. Cancelling it at any point
// returns whatever was reserved.
func (l *AdmissionLock) Take(pri TaskPriority, amount int64) Future[Void] {
	if l.closed {
		return Failed[Void](ErrLockClosed)
	}
	if l.active+amount <= l.capacity || l.active == 0 {
		l.active += amount
		return Spawn("lockTake", func(a *Actor) (Void, error) {
			return Void{}, l.holdGrant(a, pri, amount)
		})
	}
	t := &lockTaker{grant: NewPromise[Void](), amount: amount}
	t.elem = l.takers.PushBack(t)
	return Spawn("lockTake", func(a *Actor) (Void, error) {
		f := t.grant.Future()
		if _, err := Await(a, f); err != nil {
			f.Cancel()
			if t.elem != nil {
				l.takers.Remove(t.elem)
				t.elem = nil
			}
			l.Release(0)
			return Void{}, err
		}
		return Void{}, l.holdGrant(a, pri, amount)
	})
}

// holdGrant parks a freshly granted holder for one scheduler round (or a rare
// buggified delay). Cancellation here returns the reservation; the broken
// signal waves the holder through instead, since closing does not revoke
// grants already made.
func (l *AdmissionLock) holdGrant(a *Actor, pri TaskPriority, amount int64) error {
	wait := l.sim.YieldWithPriority(pri)
	if l.sim.Buggify(lockGrantDelayProb) {
		wait.Cancel()
		wait = l.sim.DelayWithPriority(l.sim.Random01()*lockGrantDelayMax, pri)
	}
	_, err := Select(a, wait, l.broken.Future())
	if err != nil {
		wait.Cancel()
		l.Release(amount)
		return err
	}
	wait.Cancel()
	return nil
}

// Release returns amount to the lock and grants queued takers from the front
// while capacity (or an idle lock) allows. Releasing more than is active, or
// a positive amount on an idle lock, is a programming defect.
func (l *AdmissionLock) Release(amount int64) {
	if !(l.active > 0 || amount == 0) || l.active-amount < 0 {
		panic(fmt.Sprintf("AdmissionLock: release %d with %d active", amount, l.active))
	}
	l.active -= amount
	if l.closed {
		return
	}
	for l.takers.Len() > 0 {
		front := l.takers.Front()
		t := front.Value.(*lockTaker)
		if l.active+t.amount > l.capacity && l.active != 0 {
			break
		}
		l.takers.Remove(front)
		t.elem = nil
		l.active += t.amount
		t.grant.Send(Void{})
	}
}

// TakeMore reserves one unit, waiting if necessary, then claims up to
// amount-1 more from whatever is immediately available. It reports the total
// actually reserved; the caller releases exactly that much.
func (l *AdmissionLock) TakeMore(a *Actor, amount int64) (int64, error) {
	f := l.Take(TaskDefault, 1)
	_, err := Await(a, f)
	f.Cancel()
	if err != nil {
		return 0, err
	}
	extra := min(l.Available(), amount-1)
	if extra < 0 {
		extra = 0
	}
	l.active += extra
	return 1 + extra, nil
}

// ReleaseWhen returns amount once signal resolves successfully. A failed or
// cancelled signal releases nothing and propagates its error.
func (l *AdmissionLock) ReleaseWhen(signal Future[Void], amount int64) Future[Void] {
	return Spawn("releaseWhen", func(a *Actor) (Void, error) {
		if _, err := Await(a, signal); err != nil {
			return Void{}, err
		}
		l.Release(amount)
		return Void{}, nil
	})
}

// Available reports the uncommitted capacity, never negative even while an
// idle-grant over-commit is outstanding.
func (l *AdmissionLock) Available() int64 {
	if l.active >= l.capacity {
		return 0
	}
	return l.capacity - l.active
}

// ActiveCount reports the currently reserved amount.
func (l *AdmissionLock) ActiveCount() int64 {
	return l.active
}

// Waiters reports the number of queued takers.
func (l *AdmissionLock) Waiters() int {
	return l.takers.Len()
}

// Close fires the broken signal exactly once. Queued takers fail with
// ErrLockClosed; holders parked on the post-grant yield are waved through
// without further capacity changes. Close is idempotent.
func (l *AdmissionLock) Close() {
	if l.closed {
		return
	}
	l.closed = true
	for l.takers.Len() > 0 {
		front := l.takers.Front()
		t := front.Value.(*lockTaker)
		l.takers.Remove(front)
		t.elem = nil
		t.grant.Fail(ErrLockClosed)
	}
	l.broken.Send(Void{})
}
