// Package query implements the range query planner: given a time span and
// a point budget, it selects the zoom level of a series that satisfies the
// budget while preserving the min/max envelope of the underlying data.
package query

import (
	"fmt"

	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// summaryRawLimit is the raw sample count below which a summary is
// computed exactly from level 0 instead of from the coarsest level.
const summaryRawLimit = 256

// Source is the read-only view of a series the planner operates on.
// *series.Series satisfies it; the planner never mutates. The Within
// accessors count and fetch under a single lock acquisition so results
// honor their limit even while a writer is appending.
type Source interface {
	TimeRange() (types.Span, bool)
	RawWithin(sp types.Span, limit int) ([]types.Sample, bool)
	NumLevels() int
	LevelBuckets(k int, sp types.Span) []types.Bucket
	LevelBucketsWithin(k int, sp types.Span, limit int) ([]types.Bucket, bool)
}

// Planner selects zoom levels to satisfy point budgets.
type Planner struct{}

// New creates a planner.
func New() *Planner {
	return &Planner{}
}

// Range returns at most budget buckets covering the span, or fewer when
// the underlying data has fewer entries in range. An empty span result is
// not an error. Buckets partially overlapping the span are returned whole;
// the returned min/max envelope is a superset of the true raw envelope.
func (p *Planner) Range(src Source, sp types.Span, budget int) ([]types.Bucket, error) {
	if budget < 1 {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidBudget, budget)
	}

	// Raw pass-through: every sample fits in the budget.
	if samples, ok := src.RawWithin(sp, budget); ok {
		if len(samples) == 0 {
			return nil, nil
		}
		out := make([]types.Bucket, len(samples))
		for i, s := range samples {
			out[i] = types.FromSample(s)
		}
		return out, nil
	}

	// Walk up the pyramid to the lowest level fitting the budget. More
	// samples than the budget implies a non-empty series, so level 1 exists.
	top := src.NumLevels()
	for k := 1; k <= top; k++ {
		if buckets, ok := src.LevelBucketsWithin(k, sp, budget); ok {
			return buckets, nil
		}
	}

	// Even the topmost level exceeds the budget: merge adjacent buckets
	// pairwise until the count fits.
	buckets := src.LevelBuckets(top, sp)
	for len(buckets) > budget {
		buckets = mergePairs(buckets)
	}
	return buckets, nil
}

// Summary reduces the span to a single bucket, used for axis auto-scaling.
// ok is false when the span contains no data.
func (p *Planner) Summary(src Source, sp types.Span) (types.Bucket, bool) {
	if samples, ok := src.RawWithin(sp, summaryRawLimit); ok {
		if len(samples) == 0 {
			return types.Bucket{}, false
		}
		var out types.Bucket
		for _, s := range samples {
			out.Absorb(types.FromSample(s))
		}
		return out, true
	}

	// Coarsest level covering the span; partial-overlap buckets widen the
	// summary rather than corrupt its extrema. Exceeding the raw limit
	// implies a non-empty series, so at least one level exists.
	buckets := src.LevelBuckets(src.NumLevels(), sp)
	return types.MergeBuckets(buckets), true
}

// Metrics reduces the whole series to a single bucket.
func (p *Planner) Metrics(src Source) (types.Bucket, bool) {
	sp, ok := src.TimeRange()
	if !ok {
		return types.Bucket{}, false
	}
	return p.Summary(src, sp)
}

// mergePairs merges adjacent buckets pairwise, halving the count.
// A trailing odd bucket is carried over unmerged.
func mergePairs(buckets []types.Bucket) []types.Bucket {
	out := make([]types.Bucket, 0, (len(buckets)+1)/2)
	for i := 0; i < len(buckets); i += 2 {
		merged := buckets[i]
		if i+1 < len(buckets) {
			merged.Absorb(buckets[i+1])
		}
		out = append(out, merged)
	}
	return out
}
