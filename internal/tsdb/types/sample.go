package types

import "math"

// Sample represents a single timestamped measurement on a channel.
// This is the primary data unit flowing through the storage system.
// Samples are immutable once appended.
type Sample struct {
	// Timestamp in seconds. Within a series timestamps are monotonically
	// non-decreasing; ties are permitted and preserved in insertion order.
	Timestamp float64

	// Value is the measured value.
	Value float64
}

// Valid reports whether both timestamp and value are finite.
func (s Sample) Valid() bool {
	return isFinite(s.Timestamp) && isFinite(s.Value)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Span is a closed time interval [T0, T1].
type Span struct {
	T0 float64
	T1 float64
}

// NewSpan returns a span, swapping the bounds if given in reverse order.
func NewSpan(t0, t1 float64) Span {
	if t1 < t0 {
		t0, t1 = t1, t0
	}
	return Span{T0: t0, T1: t1}
}

// Contains reports whether t lies within the span.
func (sp Span) Contains(t float64) bool {
	return t >= sp.T0 && t <= sp.T1
}

// Duration returns the span length in seconds.
func (sp Span) Duration() float64 {
	return sp.T1 - sp.T0
}

// Overlaps reports whether the two closed intervals intersect.
func (sp Span) Overlaps(other Span) bool {
	return sp.T0 <= other.T1 && other.T0 <= sp.T1
}

// SampleBatch represents a collection of samples for batch appends.
type SampleBatch struct {
	Samples []Sample
}

// NewSampleBatch creates a new batch with the given capacity.
func NewSampleBatch(capacity int) *SampleBatch {
	return &SampleBatch{
		Samples: make([]Sample, 0, capacity),
	}
}

// Add appends a sample to the batch.
func (b *SampleBatch) Add(s Sample) {
	b.Samples = append(b.Samples, s)
}

// Len returns the number of samples in the batch.
func (b *SampleBatch) Len() int {
	return len(b.Samples)
}

// Clear resets the batch for reuse.
func (b *SampleBatch) Clear() {
	b.Samples = b.Samples[:0]
}
