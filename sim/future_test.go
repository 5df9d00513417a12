package sim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// === Promise/Future settlement ===

func TestPromise_SendThenGet(t *testing.T) {
	// GIVEN a pending promise/future pair
	p := NewPromise[int]()
	f := p.Future()
	if f.IsReady() {
		t.Fatal("future ready before Send")
	}

	// WHEN the promise is fulfilled
	p.Send(42)

	// THEN the future is ready with the value and no error
	if !f.IsReady() || f.IsError() {
		t.Fatalf("after Send: IsReady=%v IsError=%v, want true/false", f.IsReady(), f.IsError())
	}
	v, err := f.Get()
	if err != nil || v != 42 {
		t.Errorf("Get() = (%d, %v), want (42, nil)", v, err)
	}
}

func TestPromise_FailThenGet(t *testing.T) {
	boom := errors.New("boom")
	p := NewPromise[int]()
	f := p.Future()

	p.Fail(boom)

	if !f.IsReady() || !f.IsError() {
		t.Fatalf("after Fail: IsReady=%v IsError=%v, want true/true", f.IsReady(), f.IsError())
	}
	_, err := f.Get()
	if !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want boom", err)
	}
}

func TestPromise_DoubleSend_Panics(t *testing.T) {
	p := NewPromise[int]()
	p.Send(1)
	assert.Panics(t, func() { p.Send(2) }, "second Send must panic")
	assert.Panics(t, func() { p.Fail(errors.New("x")) }, "Fail after Send must panic")
}

func TestPromise_FailNil_Panics(t *testing.T) {
	p := NewPromise[int]()
	assert.Panics(t, func() { p.Fail(nil) })
}

func TestFuture_GetWhilePending_Panics(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()
	assert.Panics(t, func() { f.Get() })
}

// === Cancellation ===

func TestFuture_CancelPending_BecomesCancelled(t *testing.T) {
	// GIVEN a pending future
	p := NewPromise[int]()
	f := p.Future()

	// WHEN it is cancelled
	f.Cancel()

	// THEN it settles with ErrCancelled
	if !f.IsReady() || !f.IsError() {
		t.Fatalf("after Cancel: IsReady=%v IsError=%v, want true/true", f.IsReady(), f.IsError())
	}
	_, err := f.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Get() error = %v, want ErrCancelled", err)
	}
}

func TestFuture_CancelSettled_NoOp(t *testing.T) {
	// GIVEN a fulfilled future
	p := NewPromise[int]()
	f := p.Future()
	p.Send(7)

	// WHEN Cancel is called after settlement
	f.Cancel()

	// THEN the value survives
	v, err := f.Get()
	if err != nil || v != 7 {
		t.Errorf("Get() after late Cancel = (%d, %v), want (7, nil)", v, err)
	}
}

func TestFuture_CancelZeroValue_NoOp(t *testing.T) {
	var f Future[Void]
	f.Cancel() // must not panic
}

func TestPromise_SendAfterCancel_NoOp(t *testing.T) {
	// GIVEN a future the consumer abandoned
	p := NewPromise[int]()
	f := p.Future()
	f.Cancel()

	// WHEN the producer still delivers
	p.Send(99)
	p.Fail(errors.New("late"))

	// THEN both are silently discarded and cancellation stands
	_, err := f.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Get() error = %v, want ErrCancelled", err)
	}
}

func TestPromise_FailWithWrappedCancelled_SettlesAsCancelled(t *testing.T) {
	// GIVEN a failure that wraps ErrCancelled
	p := NewPromise[int]()
	f := p.Future()
	p.Fail(fmt.Errorf("actor unwound: %w", ErrCancelled))

	// THEN the future reads as cancelled, and a late Send is discarded
	_, err := f.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("Get() error = %v, want wrapped ErrCancelled", err)
	}
	p.Send(1) // no panic: cancelled futures absorb late deliveries
	if _, err := f.Get(); !errors.Is(err, ErrCancelled) {
		t.Errorf("late Send overwrote cancellation: %v", err)
	}
}

// === Constructors ===

func TestResolved_ImmediatelyReady(t *testing.T) {
	f := Resolved("done")
	v, err := f.Get()
	if err != nil || v != "done" {
		t.Errorf("Resolved.Get() = (%q, %v), want (done, nil)", v, err)
	}
}

func TestFailed_ImmediatelyErrored(t *testing.T) {
	boom := errors.New("boom")
	f := Failed[int](boom)
	if !f.IsError() {
		t.Fatal("Failed future not IsError")
	}
	_, err := f.Get()
	if !errors.Is(err, boom) {
		t.Errorf("Failed.Get() error = %v, want boom", err)
	}
}

func TestNever_StaysPendingUntilCancelled(t *testing.T) {
	f := Never[int]()
	if f.IsReady() {
		t.Fatal("Never is ready")
	}
	f.Cancel()
	_, err := f.Get()
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("cancelled Never error = %v, want ErrCancelled", err)
	}
}

// === Waiter bookkeeping ===

func TestCell_RemoveWaiterCompaction(t *testing.T) {
	// GIVEN a long-lived pending cell with many register/unregister cycles
	c := &cell[Void]{}
	for i := 0; i < 100; i++ {
		w := c.addWaiter(func() {})
		c.removeWaiter(w)
	}

	// THEN tombstones are compacted away rather than accumulating
	if len(c.waiters) > 2 {
		t.Errorf("waiters grew to %d entries after balanced add/remove", len(c.waiters))
	}
	if c.dead > len(c.waiters) {
		t.Errorf("dead count %d exceeds slice length %d", c.dead, len(c.waiters))
	}
}
