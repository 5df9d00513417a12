// Package workload drives the substrate end to end: a shared-array swap
// service with a deliberately reentrant swap, Poisson clients that hammer
// it, and the harness that wires a whole run together.
package workload

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/detsim/detsim/sim"
)

// ErrInvariantViolated reports that the swap service array is no longer a
// permutation of its initial contents. This is the bug the simulator hunts;
// sequential swaps can never cause it.
var ErrInvariantViolated = errors.New("swap service invariant violated")

// SwapService holds a fixed-size array, initially the identity permutation
// a[i] = i. Swap exchanges two elements with a suspension in the middle, so
// overlapping swaps that share an index can clobber each other. That lost
// update is exactly what the simulator exists to surface.
type SwapService struct {
	sim      sim.Simulator
	elements []int

	nextSwapID int64
	swaps      int64
	checks     int64

	slowSwaps     sim.PromiseStream[sim.Void]
	slowThreshold float64
	reportSlow    bool
}

// NewSwapService returns a service over size elements.
func NewSwapService(s sim.Simulator, size int) *SwapService {
	if size < 2 {
		panic(fmt.Sprintf("NewSwapService: size %d must be at least 2", size))
	}
	elements := make([]int, size)
	for i := range elements {
		elements[i] = i
	}
	return &SwapService{sim: s, elements: elements}
}

// Len returns the element count.
func (svc *SwapService) Len() int { return len(svc.elements) }

// Elements returns a snapshot of the array.
func (svc *SwapService) Elements() []int {
	out := make([]int, len(svc.elements))
	copy(out, svc.elements)
	return out
}

// Swaps reports completed swaps; Checks reports invariant checks run.
func (svc *SwapService) Swaps() int64  { return svc.swaps }
func (svc *SwapService) Checks() int64 { return svc.checks }

// ReportSlowSwaps sends one signal per swap that takes longer than threshold
// virtual seconds, typically into a TimeoutWarningCollector.
func (svc *SwapService) ReportSlowSwaps(ps sim.PromiseStream[sim.Void], threshold float64) {
	svc.slowSwaps = ps
	svc.slowThreshold = threshold
	svc.reportSlow = true
}

// Swap exchanges elements i and j. The returned future settles when both
// writes have happened.
func (svc *SwapService) Swap(i, j int) sim.Future[sim.Void] {
	if i < 0 || j < 0 || i >= len(svc.elements) || j >= len(svc.elements) {
		panic(fmt.Sprintf("Swap(%d, %d) out of range [0, %d)", i, j, len(svc.elements)))
	}
	id := svc.nextSwapID
	svc.nextSwapID++
	return sim.Spawn(fmt.Sprintf("swap-%d", id), func(a *sim.Actor) (sim.Void, error) {
		start := svc.sim.Now()
		x := svc.elements[i]
		y := svc.elements[j]
		logrus.Debugf("swap %d: read a[%d]=%d a[%d]=%d", id, i, x, j, y)
		f := svc.sim.Delay(0)
		_, err := sim.Await(a, f)
		f.Cancel()
		if err != nil {
			return sim.Void{}, err
		}
		// This suspension is the bug: the reads above go stale whenever
		// another swap touching i or j fires in between.
		svc.elements[i] = y
		svc.elements[j] = x
		svc.swaps++
		logrus.Debugf("swap %d: wrote a[%d]=%d a[%d]=%d", id, i, y, j, x)
		if svc.reportSlow && svc.sim.Now()-start > svc.slowThreshold {
			svc.slowSwaps.Send(sim.Void{})
		}
		return sim.Void{}, nil
	})
}

// CheckInvariant verifies the array is still a permutation of 0..size-1.
// The check itself runs atomically, with no suspension.
func (svc *SwapService) CheckInvariant() error {
	svc.checks++
	sorted := svc.Elements()
	sort.Ints(sorted)
	for k, v := range sorted {
		if v != k {
			return fmt.Errorf("%w: sorted slot %d holds %d", ErrInvariantViolated, k, v)
		}
	}
	return nil
}
