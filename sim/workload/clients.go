package workload

import (
	"fmt"
	"math"

	"github.com/detsim/detsim/sim"

	"github.com/sirupsen/logrus"
)

// Poisson advances *last by an exponentially distributed inter-arrival time
// with the given mean and suspends until that absolute virtual time. Keeping
// the schedule in *last makes the arrival PROCESS Poisson even when the
// actor falls behind: a late wakeup shortens the next wait instead of
// shifting every later arrival.
func Poisson(a *sim.Actor, s sim.Simulator, last *float64, meanSeconds float64) error {
	*last += meanSeconds * -math.Log(s.Random01())
	f := s.Delay(*last - s.Now())
	_, err := sim.Await(a, f)
	f.Cancel()
	return err
}

// SampleDistinctOrderedPair draws i uniformly from [0, size-1) and j
// uniformly from [i+1, size), so i < j always holds.
func SampleDistinctOrderedPair(s sim.Simulator, size int) (int, int) {
	i := s.RandomInt(0, size-1)
	j := s.RandomInt(i+1, size)
	return i, j
}

// client loops forever: Poisson-wait, then either check the service
// invariant (one in cfg.InvariantCheckOneIn operations) or swap a random
// pair. When lock is non-nil each swap holds one admission unit.
func client(s sim.Simulator, svc *SwapService, lock *sim.AdmissionLock, cfg sim.Config, id int) sim.Future[sim.Void] {
	return sim.Spawn(fmt.Sprintf("client-%d", id), func(a *sim.Actor) (sim.Void, error) {
		last := s.Now()
		for {
			if err := Poisson(a, s, &last, cfg.MeanSwapIntervalSeconds); err != nil {
				return sim.Void{}, err
			}
			if s.RandomInt(0, cfg.InvariantCheckOneIn) == 0 {
				if err := svc.CheckInvariant(); err != nil {
					logrus.Errorf("client %d: %v", id, err)
					return sim.Void{}, err
				}
				continue
			}
			i, j := SampleDistinctOrderedPair(s, svc.Len())
			if lock != nil {
				lf := lock.Take(sim.TaskDefault, 1)
				_, err := sim.Await(a, lf)
				lf.Cancel()
				if err != nil {
					return sim.Void{}, err
				}
			}
			f := svc.Swap(i, j)
			_, err := sim.Await(a, f)
			f.Cancel()
			if lock != nil {
				lock.Release(1)
			}
			if err != nil {
				return sim.Void{}, err
			}
		}
	})
}

// Clients runs cfg.Clients client loops in an ActorCollection and propagates
// the first failure. The clients never finish on their own, so a successful
// aggregate is impossible.
func Clients(s sim.Simulator, svc *SwapService, lock *sim.AdmissionLock, cfg sim.Config) sim.Future[sim.Void] {
	return sim.Spawn("clients", func(a *sim.Actor) (sim.Void, error) {
		ac := sim.NewActorCollection(false)
		for i := 0; i < cfg.Clients; i++ {
			ac.Add(client(s, svc, lock, cfg, i))
		}
		r := ac.GetResult()
		_, err := sim.Await(a, r)
		r.Cancel()
		if err != nil {
			return sim.Void{}, err
		}
		panic("actor collection emptied with returnWhenEmptied disabled")
	})
}

// StopAfterSeconds stops the simulator once the virtual clock has advanced
// by seconds.
func StopAfterSeconds(s sim.Simulator, seconds float64) sim.Future[sim.Void] {
	return sim.Spawn("stopAfter", func(a *sim.Actor) (sim.Void, error) {
		f := s.Delay(seconds)
		_, err := sim.Await(a, f)
		f.Cancel()
		if err != nil {
			return sim.Void{}, err
		}
		s.Stop()
		return sim.Void{}, nil
	})
}
