// Package inventory maintains the fast seat counters backing the async
// reservation path.
//
// The counters are a derived, expendable view of the durable store: they
// carry a TTL and can be rebuilt at any time. A missing counter is a signal
// to cold-start from the database, not an error state.
//
// Decrement semantics are atomic at the Redis level. A decrement that would
// go negative is compensated in place and reported as ErrInsufficient, so the
// check and the mutation can never race under concurrent callers.
package inventory
