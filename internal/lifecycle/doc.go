// Package lifecycle pairs scan start and stop signals and launches a
// reconciliation run for every completed scan window.
//
// The Gate is a two-state machine. A start signal while idle retains the
// scan metadata and waits for the stop; a second start overwrites it, so the
// last start wins. A stop while waiting hands the retained metadata and the
// current tree to a Spawner and returns to idle. A stop while idle does
// nothing. Pairing is deliberately lossy: overlapping scans collapse into a
// single run for the newest one.
//
// # Spawning
//
// GoSpawner starts one untracked goroutine per run. PoolSpawner bounds the
// work with a fixed set of workers fed by a buffered queue; runs that do not
// fit the queue are dropped and logged.
//
// Design decision: We keep both spawners because:
//  1. The unbounded form matches how rarely scans complete in practice
//  2. Long-running sessions with scripted scans need a hard bound
package lifecycle
