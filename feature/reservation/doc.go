// Package reservation implements the oversell-safe reservation pipeline.
//
// # Paths
//
// The synchronous path (Reserve) acquires the per-concert lock, checks and
// decrements the durable seat count and persists a COMPLETED record in one
// transaction. At most TotalSeats reservations can ever complete because the
// check and the decrement execute under mutual exclusion.
//
// The asynchronous path (ReserveAsync) acquires the same lock, atomically
// decrements the fast counter in the inventory cache, publishes an event
// keyed by concert ID and returns a request ID immediately. A consumer drains
// the events in ordered per-partition batches, persists the outcomes and
// commits the offset once per batch. Events that exhaust their retry budget
// are routed to the dead-letter topic with failure metadata for triage and
// manual replay.
//
// # Consistency
//
// Batch acknowledgment after processing yields at-least-once delivery.
// Duplicate redelivery is guarded by the RequestID uniqueness constraint in
// the durable store, not by the queue. The window of cache/store divergence
// opened by releasing the lock before the durable write is healed by the
// reconciliation service in feature/inventory/sync.
package reservation
