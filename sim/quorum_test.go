package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pendingBools(n int) ([]Promise[bool], []Future[bool]) {
	ps := make([]Promise[bool], n)
	fs := make([]Future[bool], n)
	for i := range ps {
		ps[i] = NewPromise[bool]()
		fs[i] = ps[i].Future()
	}
	return ps, fs
}

func TestQuorum_RequiredZero_ImmediatelyReady(t *testing.T) {
	_, fs := pendingBools(3)
	q := Quorum(fs, 0)
	if !q.IsReady() || q.IsError() {
		t.Errorf("Quorum(_, 0): IsReady=%v IsError=%v, want true/false", q.IsReady(), q.IsError())
	}
}

func TestQuorum_RequiredOutOfRange_Panics(t *testing.T) {
	_, fs := pendingBools(2)
	assert.Panics(t, func() { Quorum(fs, -1) })
	assert.Panics(t, func() { Quorum(fs, 3) })
}

func TestQuorum_SettlesAtThreshold(t *testing.T) {
	// GIVEN a 2-of-3 quorum
	ps, fs := pendingBools(3)
	q := Quorum(fs, 2)

	// WHEN inputs succeed one at a time
	ps[0].Send(true)
	if q.IsReady() {
		t.Fatal("quorum settled after one success")
	}
	ps[2].Send(false)

	// THEN the second success settles it; the third input no longer matters
	if !q.IsReady() || q.IsError() {
		t.Fatalf("quorum after two successes: IsReady=%v IsError=%v", q.IsReady(), q.IsError())
	}
	ps[1].Send(true)
}

func TestQuorum_ToleratesFailuresWhileStillPossible(t *testing.T) {
	// GIVEN a 2-of-3 quorum with one failed input
	boom := errors.New("boom")
	ps, fs := pendingBools(3)
	q := Quorum(fs, 2)
	ps[0].Fail(boom)

	// THEN one failure is survivable
	if q.IsReady() {
		t.Fatal("quorum failed while success was still possible")
	}

	// WHEN the remaining inputs succeed
	ps[1].Send(true)
	ps[2].Send(true)
	if !q.IsReady() || q.IsError() {
		t.Errorf("quorum: IsReady=%v IsError=%v, want true/false", q.IsReady(), q.IsError())
	}
}

func TestQuorum_FailsWithFirstErrorWhenImpossible(t *testing.T) {
	// GIVEN a 2-of-3 quorum
	first := errors.New("first")
	second := errors.New("second")
	ps, fs := pendingBools(3)
	q := Quorum(fs, 2)

	// WHEN two inputs fail
	ps[1].Fail(first)
	ps[0].Fail(second)

	// THEN the quorum fails carrying the first recorded error
	if !q.IsError() {
		t.Fatal("quorum did not fail")
	}
	_, err := q.Get()
	if !errors.Is(err, first) {
		t.Errorf("error = %v, want the first failure", err)
	}
}

func TestQuorum_PreSettledInputsCountAtConstruction(t *testing.T) {
	ps, fs := pendingBools(3)
	ps[0].Send(true)
	ps[1].Send(true)
	q := Quorum(fs, 2)
	if !q.IsReady() || q.IsError() {
		t.Errorf("quorum over pre-settled inputs: IsReady=%v IsError=%v", q.IsReady(), q.IsError())
	}
}

func TestQuorum_CancelDetachesWithoutTouchingInputs(t *testing.T) {
	// GIVEN a pending quorum
	ps, fs := pendingBools(2)
	q := Quorum(fs, 2)

	// WHEN the aggregate is cancelled
	q.Cancel()

	// THEN it reads cancelled and the inputs are still pending and deliverable
	_, err := q.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
	if ps[0].IsSet() || ps[1].IsSet() {
		t.Error("cancelling the quorum settled an input")
	}
	ps[0].Send(true)
	ps[1].Send(true)
}

func TestQuorum_CancelledInputCountsAsFailure(t *testing.T) {
	// GIVEN a 2-of-2 quorum
	_, fs := pendingBools(2)
	q := Quorum(fs, 2)

	// WHEN one input is abandoned
	fs[0].Cancel()

	// THEN the quorum is impossible and settles cancelled
	if !q.IsError() {
		t.Fatal("quorum survived a cancelled required input")
	}
	_, err := q.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("error = %v, want ErrCancelled", err)
	}
}

func TestWaitForAll_AllSucceed(t *testing.T) {
	ps, fs := pendingBools(3)
	all := WaitForAll(fs)
	for i := range ps {
		ps[i].Send(true)
	}
	if !all.IsReady() || all.IsError() {
		t.Errorf("WaitForAll: IsReady=%v IsError=%v", all.IsReady(), all.IsError())
	}
}

func TestWaitForAll_FailsFastOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	ps, fs := pendingBools(3)
	all := WaitForAll(fs)
	ps[1].Fail(boom)
	if !all.IsError() {
		t.Fatal("WaitForAll still pending after an input failed")
	}
	_, err := all.Get()
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestWaitForAll_Empty_ImmediatelyReady(t *testing.T) {
	all := WaitForAll([]Future[bool]{})
	if !all.IsReady() {
		t.Error("WaitForAll over no inputs is pending")
	}
}

func TestWaitForAny_FirstSuccessWins(t *testing.T) {
	ps, fs := pendingBools(3)
	any := WaitForAny(fs)
	ps[2].Send(false)
	if !any.IsReady() || any.IsError() {
		t.Errorf("WaitForAny: IsReady=%v IsError=%v", any.IsReady(), any.IsError())
	}
}

func TestWaitForAny_AllFail_ReportsFirstError(t *testing.T) {
	first := errors.New("first")
	ps, fs := pendingBools(2)
	any := WaitForAny(fs)
	ps[0].Fail(first)
	if any.IsReady() {
		t.Fatal("WaitForAny settled while an input could still succeed")
	}
	ps[1].Fail(errors.New("second"))
	_, err := any.Get()
	if !errors.Is(err, first) {
		t.Errorf("error = %v, want the first failure", err)
	}
}

func TestWaitForAny_Empty_Panics(t *testing.T) {
	assert.Panics(t, func() { WaitForAny([]Future[bool]{}) })
}
