package series

import (
	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// accum is the in-progress rightmost bucket of a zoom level. It absorbs
// constituent entries from the level below until it has fanout of them,
// at which point the series seals it.
type accum struct {
	bucket types.Bucket
	n      int // constituents absorbed so far

	// sketch tracks the value distribution when percentiles are enabled.
	sketch *ddsketch.DDSketch
}

// newAccum starts an accumulator from its first constituent entry.
// entrySketch is the constituent's own sketch (nil for raw samples).
func newAccum(entry types.Bucket, entrySketch *ddsketch.DDSketch, opts Options) *accum {
	a := &accum{bucket: entry, n: 1}
	a.bucket.P50, a.bucket.P90, a.bucket.P95, a.bucket.P99 = nil, nil, nil, nil

	if opts.PercentileEnabled {
		sketch, err := ddsketch.NewDefaultDDSketch(opts.PercentileAccuracy)
		if err == nil {
			a.sketch = sketch
			a.observe(entry, entrySketch)
		}
	}

	return a
}

// absorb folds the next constituent entry into the accumulator.
func (a *accum) absorb(entry types.Bucket, entrySketch *ddsketch.DDSketch) {
	a.bucket.Absorb(entry)
	a.n++
	a.observe(entry, entrySketch)
}

// observe feeds the constituent into the sketch. Raw samples contribute
// their value directly; upper-level constituents merge their own sketch.
func (a *accum) observe(entry types.Bucket, entrySketch *ddsketch.DDSketch) {
	if a.sketch == nil {
		return
	}
	if entrySketch != nil {
		a.sketch.MergeWith(entrySketch)
		return
	}
	a.sketch.Add(entry.Last)
}

// seal finalizes the accumulator into an immutable bucket, attaching
// percentiles when a sketch is present.
func (a *accum) seal() types.Bucket {
	sealed := a.bucket

	if a.sketch != nil && a.sketch.GetCount() > 0 {
		p50, err50 := a.sketch.GetValueAtQuantile(0.50)
		p90, err90 := a.sketch.GetValueAtQuantile(0.90)
		p95, err95 := a.sketch.GetValueAtQuantile(0.95)
		p99, err99 := a.sketch.GetValueAtQuantile(0.99)
		if err50 == nil && err90 == nil && err95 == nil && err99 == nil {
			sealed.SetPercentiles(p50, p90, p95, p99)
		}
	}

	return sealed
}

// snapshot returns a copy of the in-progress bucket with current
// percentiles attached, for readers and snapshot enumeration.
func (a *accum) snapshot() types.Bucket {
	return a.seal()
}
