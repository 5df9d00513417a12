package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// TaskPriority orders tasks that share a deadline: higher priorities fire
// first, insertion order breaks remaining ties.
type TaskPriority int

const (
	TaskLow TaskPriority = iota
	TaskDefault
	TaskHigh
)

// SchedulingStrategy selects how the simulator picks the next task.
type SchedulingStrategy int

const (
	// ScheduleInOrder fires tasks in (deadline, priority, insertion) order,
	// the way a well-behaved event loop would.
	ScheduleInOrder SchedulingStrategy = iota
	// ScheduleRandomOrder fires a uniformly chosen pending task regardless of
	// deadline. Legal schedules that in-order execution can never produce
	// become reachable, which is what shakes out interleaving bugs.
	ScheduleRandomOrder
)

// ParseSchedulingStrategy maps config spellings to strategies.
func ParseSchedulingStrategy(name string) (SchedulingStrategy, error) {
	switch name {
	case "in-order":
		return ScheduleInOrder, nil
	case "random-order":
		return ScheduleRandomOrder, nil
	}
	return 0, fmt.Errorf("unknown scheduling strategy %q (want in-order or random-order)", name)
}

func (s SchedulingStrategy) String() string {
	if s == ScheduleInOrder {
		return "in-order"
	}
	return "random-order"
}

// Simulator is the virtual-time substrate handed to actors: timers, yields,
// randomness and the clock. Run drives the whole simulation to completion on
// the calling goroutine.
type Simulator interface {
	Delay(seconds float64) Future[Void]
	DelayWithPriority(seconds float64, pri TaskPriority) Future[Void]
	Yield() Future[Void]
	YieldWithPriority(pri TaskPriority) Future[Void]
	Now() float64
	Random01() float64
	RandomInt(min, maxPlusOne int) int
	// Buggify reports true with the given probability when buggification is
	// enabled, and always false otherwise. Fault-injection sites gate on it.
	Buggify(prob float64) bool
	Run()
	Stop()
}

// Delay buggification: a quarter of delays are stretched by a skewed random
// extension, at most maxBuggifiedDelay (itself drawn once per simulator).
// pow(u, 1000) keeps the typical extension near zero with a heavy tail.
const (
	buggifyDelayProb     = 0.25
	buggifyDelayMaxScale = 0.2
	buggifyDelayPow      = 1000
)

// simTask is one scheduled wakeup.
type simTask struct {
	deadline float64
	pri      TaskPriority
	seq      uint64
	promise  Promise[Void]
}

// taskQueue implements heap.Interface. It is kept heap-ordered in in-order
// mode and used as a plain slice in random-order mode; both share the
// storage.
type taskQueue []*simTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	if q[i].pri != q[j].pri {
		return q[i].pri > q[j].pri
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) {
	*q = append(*q, x.(*simTask))
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// RandomSim is the concrete simulator: a virtual clock, a task queue and a
// RandomSource. Identical sources and identical task-creation order MUST
// produce identical runs; there is no wall clock and no real concurrency
// anywhere in the dispatch path.
type RandomSim struct {
	src      RandomSource
	strategy SchedulingStrategy

	buggifyEnabled    bool
	maxBuggifiedDelay float64

	now     float64
	seq     uint64
	tasks   taskQueue
	running bool

	tasksFired      int64
	buggifiedDelays int64
}

// NewRandomSim returns a simulator over src. When buggify is set, the
// maximum buggified delay extension is drawn from src immediately, so the
// flag changes the draw stream from the first event on; record and replay
// must agree on it.
func NewRandomSim(src RandomSource, strategy SchedulingStrategy, buggify bool) *RandomSim {
	s := &RandomSim{src: src, strategy: strategy, buggifyEnabled: buggify}
	if buggify {
		s.maxBuggifiedDelay = buggifyDelayMaxScale * s.Random01()
	}
	return s
}

// Now returns the virtual clock in seconds.
func (s *RandomSim) Now() float64 { return s.now }

func (s *RandomSim) Random01() float64 {
	return s.src.Random01()
}

func (s *RandomSim) RandomInt(min, maxPlusOne int) int {
	return s.src.RandomInt(min, maxPlusOne)
}

// Buggify reports true with probability prob when buggification is enabled.
// It consumes no randomness when disabled, so the sites it gates do not
// disturb the draw stream of a non-buggified run.
func (s *RandomSim) Buggify(prob float64) bool {
	if !s.buggifyEnabled {
		return false
	}
	return s.Random01() < prob
}

// Delay schedules a wakeup seconds from now at default priority.
func (s *RandomSim) Delay(seconds float64) Future[Void] {
	return s.DelayWithPriority(seconds, TaskDefault)
}

// DelayWithPriority schedules a wakeup seconds from now. Negative durations
// schedule at the current time. A quarter of delays get a buggified
// extension when buggification is on.
func (s *RandomSim) DelayWithPriority(seconds float64, pri TaskPriority) Future[Void] {
	d := seconds
	if d < 0 {
		d = 0
	}
	if s.buggifyEnabled && s.Random01() < buggifyDelayProb {
		d += s.maxBuggifiedDelay * math.Pow(s.Random01(), buggifyDelayPow)
		s.buggifiedDelays++
	}
	return s.schedule(s.now+d, pri)
}

// Yield schedules a wakeup at the current time, never buggified. Awaiting it
// parks the caller for exactly one trip through the scheduler.
func (s *RandomSim) Yield() Future[Void] {
	return s.YieldWithPriority(TaskDefault)
}

// YieldWithPriority is Yield at a chosen priority.
func (s *RandomSim) YieldWithPriority(pri TaskPriority) Future[Void] {
	return s.schedule(s.now, pri)
}

func (s *RandomSim) schedule(deadline float64, pri TaskPriority) Future[Void] {
	t := &simTask{deadline: deadline, pri: pri, seq: s.seq, promise: NewPromise[Void]()}
	s.seq++
	if s.strategy == ScheduleInOrder {
		heap.Push(&s.tasks, t)
	} else {
		s.tasks = append(s.tasks, t)
	}
	return t.promise.Future()
}

// Run dispatches tasks until Stop is called, the source exhausts, or no task
// remains. Each dispatch advances the clock (never backwards), settles the
// task's promise, and synchronously runs every waiter up to its next
// suspension point before the loop continues.
func (s *RandomSim) Run() {
	s.running = true
	logrus.Debugf("simulation starting: strategy=%s buggify=%v", s.strategy, s.buggifyEnabled)
	for s.running && !s.src.Exhausted() && len(s.tasks) > 0 {
		var t *simTask
		if s.strategy == ScheduleInOrder {
			t = heap.Pop(&s.tasks).(*simTask)
		} else {
			i := s.RandomInt(0, len(s.tasks))
			last := len(s.tasks) - 1
			s.tasks[i], s.tasks[last] = s.tasks[last], s.tasks[i]
			t = s.tasks[last]
			s.tasks[last] = nil
			s.tasks = s.tasks[:last]
		}
		if t.deadline > s.now {
			s.now = t.deadline
		}
		s.tasksFired++
		logrus.Debugf("[%12.6f] firing task %d (pri=%d, deadline=%.6f)", s.now, t.seq, t.pri, t.deadline)
		t.promise.Send(Void{})
	}
	logrus.Debugf("simulation stopped at %.6f after %d tasks (%d still queued)", s.now, s.tasksFired, len(s.tasks))
}

// Stop ends the dispatch loop after the current dispatch completes. Tasks
// still queued are abandoned, not fired.
func (s *RandomSim) Stop() {
	s.running = false
}

// TasksFired reports the number of dispatches so far.
func (s *RandomSim) TasksFired() int64 { return s.tasksFired }

// BuggifiedDelays reports how many delays received a buggified extension.
func (s *RandomSim) BuggifiedDelays() int64 { return s.buggifiedDelays }
