// Package redis provides the shared Redis client.
//
// Redis serves two roles in the system: the inventory cache (atomic seat
// counters with TTL) and the backing store for the per-concert distributed
// locks. Both roles share a single connection pool created by Connect.
package redis
