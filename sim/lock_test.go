package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmissionLock_NewPanicsOnNonPositiveCapacity(t *testing.T) {
	s := newInOrderSim(1)
	assert.Panics(t, func() { NewAdmissionLock(s, 0) })
	assert.Panics(t, func() { NewAdmissionLock(s, -3) })
}

func TestAdmissionLock_GrantWaitsForOneSchedulerRound(t *testing.T) {
	// GIVEN an uncontended lock
	s := newInOrderSim(1)
	l := NewAdmissionLock(s, 4)

	// WHEN a taker reserves within capacity
	f := l.Take(TaskDefault, 2)

	// THEN the reservation is committed at once but the grant settles only
	// after a trip through the scheduler
	assert.Equal(t, int64(2), l.ActiveCount())
	if f.IsReady() {
		t.Fatal("grant settled without a scheduler round")
	}
	s.Run()
	if !f.IsReady() || f.IsError() {
		t.Fatalf("grant after Run: IsReady=%v IsError=%v", f.IsReady(), f.IsError())
	}
	l.Release(2)
	assert.Equal(t, int64(0), l.ActiveCount())
}

func TestAdmissionLock_CapacityNeverExceeded(t *testing.T) {
	// GIVEN ten holders cycling through a capacity-3 lock
	s := newInOrderSim(2)
	l := NewAdmissionLock(s, 3)
	maxActive := int64(0)
	sample := func() {
		if l.ActiveCount() > maxActive {
			maxActive = l.ActiveCount()
		}
	}
	for i := 0; i < 10; i++ {
		i := i
		Spawn("holder", func(a *Actor) (Void, error) {
			f := l.Take(TaskDefault, 1)
			_, err := Await(a, f)
			f.Cancel()
			if err != nil {
				return Void{}, err
			}
			sample()
			d := s.Delay(0.1 * float64(i+1))
			_, err = Await(a, d)
			d.Cancel()
			sample()
			l.Release(1)
			return Void{}, err
		})
	}

	// WHEN the simulation runs to completion
	s.Run()

	// THEN the committed amount never passed the capacity and all was returned
	if maxActive > 3 {
		t.Errorf("active peaked at %d with capacity 3", maxActive)
	}
	assert.Equal(t, int64(0), l.ActiveCount())
	assert.Equal(t, 0, l.Waiters())
}

func TestAdmissionLock_TakersGrantedFIFO(t *testing.T) {
	// GIVEN five takers queued against a capacity-1 lock
	s := newInOrderSim(3)
	l := NewAdmissionLock(s, 1)
	var grants []int
	for i := 0; i < 5; i++ {
		i := i
		Spawn("taker", func(a *Actor) (Void, error) {
			f := l.Take(TaskDefault, 1)
			_, err := Await(a, f)
			f.Cancel()
			if err != nil {
				return Void{}, err
			}
			grants = append(grants, i)
			l.Release(1)
			return Void{}, nil
		})
	}

	s.Run()

	// THEN grants follow arrival order
	assert.Equal(t, []int{0, 1, 2, 3, 4}, grants)
}

func TestAdmissionLock_OversizedRequestGrantedWhenIdle(t *testing.T) {
	// GIVEN an idle lock of capacity 2
	s := newInOrderSim(4)
	l := NewAdmissionLock(s, 2)

	// WHEN a request for 5 arrives
	f := l.Take(TaskDefault, 5)

	// THEN it is admitted rather than wedged, over-committing the lock
	assert.Equal(t, int64(5), l.ActiveCount())
	assert.Equal(t, int64(0), l.Available())

	// A follow-up taker queues until the giant releases.
	follow := l.Take(TaskDefault, 1)
	assert.Equal(t, 1, l.Waiters())

	granted := false
	Spawn("watch", func(a *Actor) (Void, error) {
		_, err := Await(a, follow)
		granted = true
		return Void{}, err
	})
	s.Run()
	if !f.IsReady() || f.IsError() {
		t.Fatalf("oversized grant: IsReady=%v IsError=%v", f.IsReady(), f.IsError())
	}
	if granted {
		t.Fatal("queued taker granted while the oversized hold was active")
	}

	l.Release(5)
	s.Run()
	if !granted {
		t.Error("queued taker not granted after the oversized release")
	}
	assert.Equal(t, int64(1), l.ActiveCount())
	l.Release(1)
}

func TestAdmissionLock_ReleaseGrantsWithoutRunningHolderInline(t *testing.T) {
	// GIVEN a full lock with one queued taker
	s := newInOrderSim(5)
	l := NewAdmissionLock(s, 1)
	done := false
	Spawn("pair", func(a *Actor) (Void, error) {
		first := l.Take(TaskDefault, 1)
		if _, err := Await(a, first); err != nil {
			return Void{}, err
		}
		first.Cancel()
		second := l.Take(TaskDefault, 1)
		assert.Equal(t, 1, l.Waiters())

		// WHEN the holder releases
		l.Release(1)

		// THEN the successor is granted but not yet through its post-grant
		// round when Release returns
		assert.Equal(t, 0, l.Waiters())
		assert.Equal(t, int64(1), l.ActiveCount())
		if second.IsReady() {
			t.Error("grant ran the successor inline inside Release")
		}
		if _, err := Await(a, second); err != nil {
			return Void{}, err
		}
		second.Cancel()
		l.Release(1)
		done = true
		return Void{}, nil
	})

	s.Run()
	if !done {
		t.Fatal("scenario did not run to completion")
	}
}

func TestAdmissionLock_CancelQueuedTaker_LeavesNoResidue(t *testing.T) {
	// GIVEN a held lock with one queued taker
	s := newInOrderSim(6)
	l := NewAdmissionLock(s, 1)
	holder := l.Take(TaskDefault, 1)
	s.Run() // holder through its grant round
	if !holder.IsReady() {
		t.Fatal("holder not granted")
	}
	queued := l.Take(TaskDefault, 1)
	assert.Equal(t, 1, l.Waiters())

	// WHEN the queued taker is abandoned
	queued.Cancel()

	// THEN the queue empties and nothing was committed for it
	assert.Equal(t, 0, l.Waiters())
	assert.Equal(t, int64(1), l.ActiveCount())
	if _, err := queued.Get(); !errors.Is(err, ErrCancelled) {
		t.Errorf("queued taker error = %v, want ErrCancelled", err)
	}
	l.Release(1)
	assert.Equal(t, int64(0), l.ActiveCount())
}

func TestAdmissionLock_CancelAfterGrant_ReturnsReservation(t *testing.T) {
	// GIVEN a fast-path taker still parked on its post-grant round
	s := newInOrderSim(7)
	l := NewAdmissionLock(s, 1)
	f := l.Take(TaskDefault, 1)
	assert.Equal(t, int64(1), l.ActiveCount())

	// WHEN it is cancelled before the round completes
	f.Cancel()

	// THEN the reservation came back
	assert.Equal(t, int64(0), l.ActiveCount())
	if _, err := f.Get(); !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
}

func TestAdmissionLock_TakeMore_ClaimsWhatIsFree(t *testing.T) {
	s := newInOrderSim(8)
	l := NewAdmissionLock(s, 5)
	var first, second int64
	done := false
	Spawn("greedy", func(a *Actor) (Void, error) {
		var err error
		// Lock idle: one guaranteed unit plus two of the four free.
		first, err = l.TakeMore(a, 3)
		if err != nil {
			return Void{}, err
		}
		// Two free now: one guaranteed unit plus one remaining.
		second, err = l.TakeMore(a, 10)
		if err != nil {
			return Void{}, err
		}
		done = true
		return Void{}, nil
	})

	s.Run()

	if !done {
		t.Fatal("scenario did not complete")
	}
	assert.Equal(t, int64(3), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(5), l.ActiveCount())
	l.Release(first + second)
	assert.Equal(t, int64(0), l.ActiveCount())
}

func TestAdmissionLock_ReleaseWhen_ReleasesOnSignalSuccess(t *testing.T) {
	s := newInOrderSim(9)
	l := NewAdmissionLock(s, 2)
	taken := l.Take(TaskDefault, 2)
	s.Run()
	if !taken.IsReady() {
		t.Fatal("take did not complete")
	}

	sig := NewPromise[Void]()
	rw := l.ReleaseWhen(sig.Future(), 2)
	assert.Equal(t, int64(2), l.ActiveCount())

	sig.Send(Void{})

	assert.Equal(t, int64(0), l.ActiveCount())
	if !rw.IsReady() || rw.IsError() {
		t.Errorf("ReleaseWhen future: IsReady=%v IsError=%v", rw.IsReady(), rw.IsError())
	}
}

func TestAdmissionLock_ReleaseWhen_FailedSignalReleasesNothing(t *testing.T) {
	boom := errors.New("boom")
	s := newInOrderSim(10)
	l := NewAdmissionLock(s, 2)
	taken := l.Take(TaskDefault, 1)
	s.Run()
	if !taken.IsReady() {
		t.Fatal("take did not complete")
	}

	sig := NewPromise[Void]()
	rw := l.ReleaseWhen(sig.Future(), 1)
	sig.Fail(boom)

	assert.Equal(t, int64(1), l.ActiveCount())
	if _, err := rw.Get(); !errors.Is(err, boom) {
		t.Errorf("ReleaseWhen error = %v, want boom", err)
	}
	l.Release(1)
}

func TestAdmissionLock_Close_FailsQueuedTakers(t *testing.T) {
	// GIVEN a held lock with two queued takers
	s := newInOrderSim(11)
	l := NewAdmissionLock(s, 1)
	holder := l.Take(TaskDefault, 1)
	s.Run()
	if !holder.IsReady() {
		t.Fatal("holder not granted")
	}
	q1 := l.Take(TaskDefault, 1)
	q2 := l.Take(TaskDefault, 1)
	assert.Equal(t, 2, l.Waiters())

	// WHEN the lock closes
	l.Close()

	// THEN queued takers fail with ErrLockClosed and the queue is empty
	for i, q := range []Future[Void]{q1, q2} {
		if _, err := q.Get(); !errors.Is(err, ErrLockClosed) {
			t.Errorf("queued taker %d error = %v, want ErrLockClosed", i, err)
		}
	}
	assert.Equal(t, 0, l.Waiters())

	// The holder's release still balances, with no further grants.
	l.Release(1)
	assert.Equal(t, int64(0), l.ActiveCount())
}

func TestAdmissionLock_Close_WavesThroughGrantedHolder(t *testing.T) {
	// GIVEN a granted holder still parked on its post-grant round
	s := newInOrderSim(12)
	l := NewAdmissionLock(s, 1)
	f := l.Take(TaskDefault, 1)
	if f.IsReady() {
		t.Fatal("grant settled early")
	}

	// WHEN the lock closes before the scheduler ever runs
	l.Close()

	// THEN the broken signal waves the holder through with its reservation
	if !f.IsReady() || f.IsError() {
		t.Fatalf("holder after Close: IsReady=%v IsError=%v", f.IsReady(), f.IsError())
	}
	assert.Equal(t, int64(1), l.ActiveCount())
	l.Release(1)
	assert.Equal(t, int64(0), l.ActiveCount())
}

func TestAdmissionLock_CloseIsIdempotent(t *testing.T) {
	s := newInOrderSim(13)
	l := NewAdmissionLock(s, 1)
	l.Close()
	l.Close()
	f := l.Take(TaskDefault, 1)
	if _, err := f.Get(); !errors.Is(err, ErrLockClosed) {
		t.Errorf("Take after Close error = %v, want ErrLockClosed", err)
	}
}

func TestAdmissionLock_ReleaseMisuse_Panics(t *testing.T) {
	s := newInOrderSim(14)
	l := NewAdmissionLock(s, 2)
	assert.Panics(t, func() { l.Release(1) }, "release on an idle lock")
}
