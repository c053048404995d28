package types

import (
	"math"
	"testing"
)

func TestFromSample_Degenerate(t *testing.T) {
	b := FromSample(Sample{Timestamp: 5.0, Value: 42.0})

	if b.StartTime != 5.0 || b.EndTime != 5.0 {
		t.Errorf("expected time range [5, 5], got [%f, %f]", b.StartTime, b.EndTime)
	}
	if b.Count != 1 {
		t.Errorf("expected count=1, got %d", b.Count)
	}
	if b.Min != 42.0 || b.Max != 42.0 || b.First != 42.0 || b.Last != 42.0 {
		t.Errorf("expected all values 42, got min=%f max=%f first=%f last=%f",
			b.Min, b.Max, b.First, b.Last)
	}
	if b.Mean() != 42.0 {
		t.Errorf("expected mean=42, got %f", b.Mean())
	}
}

func TestBucket_Absorb(t *testing.T) {
	a := Bucket{
		StartTime: 0, EndTime: 1,
		Count: 2, Sum: 30, Min: 10, Max: 20, First: 10, Last: 20,
	}
	b := Bucket{
		StartTime: 2, EndTime: 3,
		Count: 2, Sum: 10, Min: 3, Max: 7, First: 7, Last: 3,
	}

	a.Absorb(b)

	if a.Count != 4 {
		t.Errorf("expected count=4, got %d", a.Count)
	}
	if a.Sum != 40 {
		t.Errorf("expected sum=40, got %f", a.Sum)
	}
	if a.Min != 3 {
		t.Errorf("expected min=3, got %f", a.Min)
	}
	if a.Max != 20 {
		t.Errorf("expected max=20, got %f", a.Max)
	}
	if a.First != 10 {
		t.Errorf("expected first=10 (kept), got %f", a.First)
	}
	if a.Last != 3 {
		t.Errorf("expected last=3 (taken), got %f", a.Last)
	}
	if a.StartTime != 0 || a.EndTime != 3 {
		t.Errorf("expected time range [0, 3], got [%f, %f]", a.StartTime, a.EndTime)
	}
}

func TestBucket_AbsorbIntoEmpty(t *testing.T) {
	var a Bucket
	b := FromSample(Sample{Timestamp: 1, Value: 9})

	a.Absorb(b)

	if a != b {
		t.Errorf("absorbing into an empty bucket should copy, got %+v", a)
	}
}

func TestBucket_AbsorbEmpty(t *testing.T) {
	a := FromSample(Sample{Timestamp: 1, Value: 9})
	before := a

	a.Absorb(Bucket{})

	if a != before {
		t.Errorf("absorbing an empty bucket should be a no-op, got %+v", a)
	}
}

func TestBucket_AbsorbClearsPercentiles(t *testing.T) {
	a := FromSample(Sample{Timestamp: 1, Value: 9})
	a.SetPercentiles(1, 2, 3, 4)

	a.Absorb(FromSample(Sample{Timestamp: 2, Value: 10}))

	if a.HasPercentiles() {
		t.Error("absorb should clear percentiles")
	}
}

func TestMergeBuckets(t *testing.T) {
	buckets := []Bucket{
		FromSample(Sample{Timestamp: 0, Value: 5}),
		FromSample(Sample{Timestamp: 1, Value: -5}),
		FromSample(Sample{Timestamp: 2, Value: 0}),
	}

	m := MergeBuckets(buckets)

	if m.Count != 3 {
		t.Errorf("expected count=3, got %d", m.Count)
	}
	if m.Min != -5 || m.Max != 5 {
		t.Errorf("expected min=-5 max=5, got min=%f max=%f", m.Min, m.Max)
	}
	if m.First != 5 || m.Last != 0 {
		t.Errorf("expected first=5 last=0, got first=%f last=%f", m.First, m.Last)
	}

	empty := MergeBuckets(nil)
	if !empty.IsEmpty() {
		t.Error("merging no buckets should yield an empty bucket")
	}
}

func TestSample_Valid(t *testing.T) {
	cases := []struct {
		name   string
		sample Sample
		want   bool
	}{
		{"finite", Sample{Timestamp: 1, Value: 2}, true},
		{"nan value", Sample{Timestamp: 1, Value: math.NaN()}, false},
		{"inf value", Sample{Timestamp: 1, Value: math.Inf(1)}, false},
		{"nan timestamp", Sample{Timestamp: math.NaN(), Value: 2}, false},
		{"neg inf timestamp", Sample{Timestamp: math.Inf(-1), Value: 2}, false},
	}

	for _, tc := range cases {
		if got := tc.sample.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSpan(t *testing.T) {
	sp := NewSpan(5, 1)
	if sp.T0 != 1 || sp.T1 != 5 {
		t.Errorf("NewSpan should swap reversed bounds, got [%f, %f]", sp.T0, sp.T1)
	}

	if !sp.Contains(1) || !sp.Contains(5) || !sp.Contains(3) {
		t.Error("span should contain its bounds and interior points")
	}
	if sp.Contains(0.5) || sp.Contains(5.5) {
		t.Error("span should not contain outside points")
	}

	if !sp.Overlaps(Span{T0: 5, T1: 9}) {
		t.Error("touching spans overlap (closed intervals)")
	}
	if sp.Overlaps(Span{T0: 6, T1: 9}) {
		t.Error("disjoint spans should not overlap")
	}
}

func TestSampleBatch_Reuse(t *testing.T) {
	b := NewSampleBatch(4)
	for i := 0; i < 3; i++ {
		b.Add(Sample{Timestamp: float64(i), Value: float64(i * 10)})
	}
	if b.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", b.Len())
	}
	if b.Samples[2].Value != 20 {
		t.Errorf("unexpected last value: %v", b.Samples[2].Value)
	}

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Clear left %d samples", b.Len())
	}
	if cap(b.Samples) < 3 {
		t.Errorf("Clear dropped the backing capacity: %d", cap(b.Samples))
	}

	b.Add(Sample{Timestamp: 9, Value: 9})
	if b.Len() != 1 || b.Samples[0].Timestamp != 9 {
		t.Errorf("reuse after Clear failed: %+v", b.Samples)
	}
}
