package types

// Bucket is an aggregate summary of a contiguous, non-overlapping range of
// entries from the level directly below it in a series' zoom pyramid.
// Level 0 entries are raw samples, represented as degenerate buckets where
// Min == Max == First == Last and Count == 1.
//
// Invariants: StartTime <= EndTime; Min <= First, Last <= Max; Count >= 1.
type Bucket struct {
	// Time range: timestamps of the first and last constituent entry.
	StartTime float64
	EndTime   float64

	// Basic statistics (always present).
	Count int64   // Number of constituent raw samples
	Sum   float64 // Sum of all values (exact mean without revisiting raw data)
	Min   float64 // Minimum value over the range
	Max   float64 // Maximum value over the range

	// Boundary values, for continuity when stitching adjacent buckets.
	First float64
	Last  float64

	// Percentiles (optional, nil if not enabled).
	P50 *float64
	P90 *float64
	P95 *float64
	P99 *float64
}

// FromSample wraps a raw sample as a degenerate bucket.
func FromSample(s Sample) Bucket {
	return Bucket{
		StartTime: s.Timestamp,
		EndTime:   s.Timestamp,
		Count:     1,
		Sum:       s.Value,
		Min:       s.Value,
		Max:       s.Value,
		First:     s.Value,
		Last:      s.Value,
	}
}

// Mean returns the arithmetic mean of the constituent values.
func (b *Bucket) Mean() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / float64(b.Count)
}

// Span returns the bucket's time range.
func (b *Bucket) Span() Span {
	return Span{T0: b.StartTime, T1: b.EndTime}
}

// IsEmpty reports whether the bucket has no constituents.
func (b *Bucket) IsEmpty() bool {
	return b.Count == 0
}

// Absorb folds a later adjacent bucket into this one. The receiver keeps
// its StartTime/First; EndTime/Last are taken from the absorbed bucket.
// Percentile fields are not merged; they are recomputed by the owner from
// sketches when enabled.
func (b *Bucket) Absorb(other Bucket) {
	if other.Count == 0 {
		return
	}
	if b.Count == 0 {
		*b = other
		return
	}

	b.Count += other.Count
	b.Sum += other.Sum
	if other.Min < b.Min {
		b.Min = other.Min
	}
	if other.Max > b.Max {
		b.Max = other.Max
	}
	b.EndTime = other.EndTime
	b.Last = other.Last
	b.P50, b.P90, b.P95, b.P99 = nil, nil, nil, nil
}

// MergeBuckets reduces an ordered sequence of buckets into a single bucket.
// Returns a zero bucket if the input is empty.
func MergeBuckets(buckets []Bucket) Bucket {
	var out Bucket
	for _, b := range buckets {
		out.Absorb(b)
	}
	return out
}

// SetPercentiles sets all percentile values.
func (b *Bucket) SetPercentiles(p50, p90, p95, p99 float64) {
	b.P50 = &p50
	b.P90 = &p90
	b.P95 = &p95
	b.P99 = &p99
}

// HasPercentiles returns true if percentile data is available.
func (b *Bucket) HasPercentiles() bool {
	return b.P50 != nil
}
