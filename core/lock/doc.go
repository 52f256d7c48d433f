// Package lock provides per-concert distributed mutual exclusion.
//
// The coordinator serializes seat-count mutations across independent
// processes. A lock is acquired with a bounded wait and held under a lease
// that auto-expires if the holder crashes, which prevents deadlock from
// process failure. The reservation pipeline performs every remaining-seats
// check and decrement inside this critical section.
package lock
