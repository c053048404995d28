// Package series implements the per-channel storage engine: an append-only
// raw sample level plus a pyramid of zoom levels holding precomputed
// min/max aggregate buckets.
//
// Each zoom level folds FANOUT consecutive entries of the level below into
// one bucket. The rightmost bucket of every level is an in-progress
// accumulator; once it has received its full quota of constituents it is
// sealed and never mutated again. Appends are O(1) amortized: a sample
// triggers a seal at level k with probability 1/FANOUT^k.
//
// Concurrency model: single writer per series, any number of concurrent
// readers. Sealed buckets and appended raw samples are immutable, so read
// accessors hand out capacity-clamped slice views that stay valid after
// the lock is released.
package series
