// Package kafka provides Sarama producer and consumer group factories.
//
// Events are published keyed by concert ID, which pins every event for one
// concert to a single partition and therefore guarantees in-order consumption
// per concert. Offset auto-commit is disabled; the reservation consumer marks
// and commits offsets once per processed batch.
package kafka
