package sim

import (
	"github.com/sirupsen/logrus"
)

// onEqual returns a future that is fulfilled when f resolves to equalTo and
// fails if f fails. If f resolves to a different value the future stays
// pending forever, so it is only useful inside a composition that cancels it
// from outside.
func onEqual[T comparable](f Future[T], equalTo T) Future[Void] {
	p := NewPromise[Void]()
	settle := func() {
		v, err := f.Get()
		switch {
		case err != nil:
			p.Fail(err)
		case v == equalTo:
			p.Send(Void{})
		}
	}
	if f.IsReady() {
		settle()
		return p.Future()
	}
	w := f.c.addWaiter(func() {
		if !p.IsSet() {
			settle()
		}
	})
	p.c.onCancel = func() {
		f.c.removeWaiter(w)
		p.c.settleCancelled()
	}
	return p.Future()
}

// ReturnIfTrue is fulfilled when f resolves true and propagates f's error.
// On false it never settles; the caller is expected to cancel it.
func ReturnIfTrue(f Future[bool]) Future[Void] {
	return onEqual(f, true)
}

// AllTrue awaits each input in order and resolves false at the first false
// without waiting for the rest. An input error aborts with that error.
func AllTrue(futures []Future[bool]) Future[bool] {
	return Spawn("allTrue", func(a *Actor) (bool, error) {
		for _, f := range futures {
			v, err := Await(a, f)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	})
}

// AnyTrue continuously republishes the OR of the input variables into out,
// recomputing whenever any input changes. It never settles on its own; cancel
// the returned future to stop it.
func AnyTrue(vars []*AsyncVar[bool], out *AsyncVar[bool]) Future[Void] {
	return Spawn("anyTrue", func(a *Actor) (Void, error) {
		for {
			oneTrue := false
			changes := make([]Future[Void], len(vars))
			for i, v := range vars {
				if v.Get() {
					oneTrue = true
				}
				changes[i] = v.OnChange()
			}
			out.Set(oneTrue)
			if _, err := Select(a, changes...); err != nil {
				return Void{}, err
			}
		}
	})
}

// QuorumEqualsTrue resolves true once required inputs have resolved true and
// false once len(futures)-required+1 have resolved false. Input errors and
// cancellations propagate through whichever side's quorum they break first.
func QuorumEqualsTrue(futures []Future[bool], required int) Future[bool] {
	return Spawn("quorumEqualsTrue", func(a *Actor) (bool, error) {
		n := len(futures)
		trues := make([]Future[Void], n)
		falses := make([]Future[Void], n)
		for i, f := range futures {
			trues[i] = onEqual(f, true)
			falses[i] = onEqual(f, false)
		}
		yes := Quorum(trues, required)
		no := Quorum(falses, n-required+1)
		defer func() {
			yes.Cancel()
			no.Cancel()
			for i := range futures {
				trues[i].Cancel()
				falses[i].Cancel()
			}
		}()
		idx, err := Select(a, yes, no)
		if err != nil {
			return false, err
		}
		return idx == 0, nil
	})
}

// ShortCircuitAny resolves true as soon as any input resolves true. If every
// input settles first, the resolved values are re-checked and their OR is
// returned: a true that arrived in the same instant as the last settlement
// must still win over the completion path.
func ShortCircuitAny(futures []Future[bool]) Future[bool] {
	return Spawn("shortCircuitAny", func(a *Actor) (bool, error) {
		shortCircuits := make([]Future[Void], len(futures))
		for i, f := range futures {
			shortCircuits[i] = ReturnIfTrue(f)
		}
		all := WaitForAll(futures)
		any := WaitForAny(shortCircuits)
		defer func() {
			all.Cancel()
			any.Cancel()
			for i := range shortCircuits {
				shortCircuits[i].Cancel()
			}
		}()
		idx, err := Select(a, all, any)
		if err != nil {
			return false, err
		}
		if idx == 1 {
			return true, nil
		}
		for _, f := range futures {
			if v, _ := f.Get(); v {
				return true, nil
			}
		}
		return false, nil
	})
}

// TimeoutWarningCollector counts items arriving on input and, every logDelay
// virtual seconds, emits one structured warning naming the late-item count if
// any arrived during the window. It runs until cancelled or input errors.
func TimeoutWarningCollector(s Simulator, input FutureStream[Void], logDelay float64, context string) Future[Void] {
	return Spawn("timeoutWarningCollector", func(a *Actor) (Void, error) {
		counter := 0
		end := s.Delay(logDelay)
		for {
			ready := input.Ready()
			idx, err := Select(a, ready, end)
			if err != nil {
				ready.Cancel()
				end.Cancel()
				return Void{}, err
			}
			if idx == 0 {
				input.Pop()
				counter++
				continue
			}
			ready.Cancel()
			if counter > 0 {
				logrus.WithFields(logrus.Fields{
					"late_process_count": counter,
					"logging_delay":      logDelay,
				}).Warn(context)
			}
			counter = 0
			end = s.Delay(logDelay)
		}
	})
}

// lowPriorityDelayCount is the number of slices a low-priority delay is cut
// into, so that normal-priority work with the same deadlines runs first at
// each boundary.
const lowPriorityDelayCount = 5

// LowPriorityDelay waits out total seconds as a sequence of equal
// low-priority delays.
func LowPriorityDelay(s Simulator, total float64) Future[Void] {
	return Spawn("lowPriorityDelay", func(a *Actor) (Void, error) {
		slice := total / lowPriorityDelayCount
		for i := 0; i < lowPriorityDelayCount; i++ {
			f := s.DelayWithPriority(slice, TaskLow)
			_, err := Await(a, f)
			f.Cancel()
			if err != nil {
				return Void{}, err
			}
		}
		return Void{}, nil
	})
}

// OrYield returns f unchanged while it is pending. If f is already settled it
// forces one trip through the scheduler before handing back f's result, so a
// loop spinning on a hot future cannot starve the task queue.
func OrYield(s Simulator, f Future[Void]) Future[Void] {
	if !f.IsReady() {
		return f
	}
	y := s.Yield()
	if _, ferr := f.Get(); ferr != nil {
		p := NewPromise[Void]()
		w := y.c.addWaiter(func() {
			if _, yerr := y.Get(); yerr != nil {
				p.Fail(yerr)
				return
			}
			p.Fail(ferr)
		})
		p.c.onCancel = func() {
			y.c.removeWaiter(w)
			y.Cancel()
			p.c.settleCancelled()
		}
		return p.Future()
	}
	return y
}

// CancelOnly never settles; it exists to hold futures alive until it is
// cancelled, at which point it cancels them.
func CancelOnly(futures ...Future[Void]) Future[Void] {
	return Spawn("cancelOnly", func(a *Actor) (Void, error) {
		_, err := Await(a, Never[Void]())
		for _, f := range futures {
			f.Cancel()
		}
		return Void{}, err
	})
}
