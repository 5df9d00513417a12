package workload

import (
	"errors"
	"fmt"

	"github.com/detsim/detsim/sim"
)

// RunStats aggregates what happened during one simulation run.
type RunStats struct {
	TasksFired       int64   // scheduler dispatches
	BuggifiedDelays  int64   // delays that received a buggified extension
	Swaps            int64   // completed swap operations
	InvariantChecks  int64   // invariant checks executed
	FinalVirtualTime float64 // clock when the run ended
}

// Print displays the run summary.
func (st RunStats) Print() {
	fmt.Println("=== Simulation Summary ===")
	fmt.Printf("Virtual time         : %.4f s\n", st.FinalVirtualTime)
	fmt.Printf("Tasks fired          : %d\n", st.TasksFired)
	fmt.Printf("Buggified delays     : %d\n", st.BuggifiedDelays)
	fmt.Printf("Completed swaps      : %d\n", st.Swaps)
	fmt.Printf("Invariant checks     : %d\n", st.InvariantChecks)
}

// Run executes one complete simulation over src: build the service, start
// the clients and the stop timer, dispatch to completion, then tear
// everything down. Source exhaustion and the timed stop are both clean ends;
// an invariant violation comes back as the error.
func Run(src sim.RandomSource, cfg sim.Config) (RunStats, error) {
	var st RunStats
	if err := cfg.Validate(); err != nil {
		return st, err
	}
	strategy, err := sim.ParseSchedulingStrategy(cfg.Scheduling)
	if err != nil {
		return st, err
	}

	var (
		s      *sim.RandomSim
		svc    *SwapService
		runErr error
	)
	caught := sim.CatchExhaustion(func() {
		s = sim.NewRandomSim(src, strategy, cfg.Buggify)
		svc = NewSwapService(s, cfg.ServiceSize)

		var lock *sim.AdmissionLock
		if cfg.MaxConcurrentSwaps > 0 {
			lock = sim.NewAdmissionLock(s, cfg.MaxConcurrentSwaps)
		}
		var slowWarn sim.Future[sim.Void]
		if cfg.SlowSwapWarnSeconds > 0 {
			ps := sim.NewPromiseStream[sim.Void]()
			svc.ReportSlowSwaps(ps, cfg.SlowSwapWarnSeconds)
			slowWarn = sim.TimeoutWarningCollector(s, ps.Future(), 1.0, "slow swaps")
		}

		clients := Clients(s, svc, lock, cfg)
		stop := StopAfterSeconds(s, cfg.DurationSeconds)
		// A client failure (invariant violation, exhaustion) should end the
		// run, not idle until the stop timer.
		watch := sim.Spawn("stopOnFailure", func(a *sim.Actor) (sim.Void, error) {
			_, werr := sim.Await(a, clients)
			if werr != nil && !errors.Is(werr, sim.ErrCancelled) {
				s.Stop()
			}
			return sim.Void{}, nil
		})

		// The dispatch draw can exhaust inside Run itself, unwinding past
		// this point; teardown must still run then, or every parked actor
		// goroutine is stranded on its resume channel.
		defer func() {
			watch.Cancel()
			clients.Cancel()
			stop.Cancel()
			slowWarn.Cancel()
			if lock != nil {
				lock.Close()
			}
		}()

		s.Run()

		if clients.IsReady() {
			if _, cerr := clients.Get(); cerr != nil &&
				!errors.Is(cerr, sim.ErrCancelled) &&
				!errors.Is(cerr, sim.ErrSourceExhausted) {
				runErr = cerr
			}
		}
	})
	if caught != nil && !errors.Is(caught, sim.ErrSourceExhausted) {
		return st, caught
	}

	if s != nil {
		st.TasksFired = s.TasksFired()
		st.BuggifiedDelays = s.BuggifiedDelays()
		st.FinalVirtualTime = s.Now()
	}
	if svc != nil {
		st.Swaps = svc.Swaps()
		st.InvariantChecks = svc.Checks()
	}
	return st, runErr
}
