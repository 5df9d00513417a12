// Package sim provides a deterministic cooperative-concurrency substrate for
// simulation testing: futures and actors over a virtual clock, driven by a
// replaceable source of randomness.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - future.go: single-assignment Promise/Future cells and their waiters
//   - actor.go: cooperative coroutines (Spawn, Await, Select) and the baton
//     discipline that keeps exactly one goroutine runnable
//   - simulator.go: the virtual clock, the task queue, and the two dispatch
//     strategies (in-order and random-order)
//
// Then the layers on top:
//   - combinators.go, quorum.go: allTrue, anyTrue, quorumEqualsTrue,
//     shortCircuitAny, timeout warnings, low-priority delays
//   - lock.go: the weighted admission lock
//   - collection.go: aggregate lifecycle for populations of actors
//   - stream.go, asyncvar.go: promise streams and change-notifying variables
//   - random.go: fair, fuzz, recording and replaying randomness with a
//     shared byte encoding
//
// # Determinism
//
// Everything observable is a function of the Config and the RandomSource
// draw sequence. Actors run one at a time and suspend only at explicit
// calls; the dispatch path contains no wall clock, no map iteration and no
// real concurrency. Record a run's draws and replaying them MUST reproduce
// the run bit for bit.
//
// The demo workload living in sim/workload exercises the substrate end to
// end: a swap service with a deliberate reentrancy bug that random-order
// scheduling flushes out.
package sim
