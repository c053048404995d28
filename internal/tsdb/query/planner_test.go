package query

import (
	"math"
	"testing"

	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/series"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// sineSeries fills a series with n samples of a noisy-free sine sampled
// at 1 Hz.
func sineSeries(t *testing.T, n, fanout int) *series.Series {
	t.Helper()

	opts := series.DefaultOptions()
	opts.Fanout = fanout
	s, err := series.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < n; i++ {
		sample := types.Sample{
			Timestamp: float64(i),
			Value:     math.Sin(float64(i) * 0.1),
		}
		if err := s.Append(sample); err != nil {
			t.Fatalf("Append sample %d: %v", i, err)
		}
	}
	return s
}

func TestRange_InvalidBudget(t *testing.T) {
	p := New()
	s := sineSeries(t, 10, 4)

	for _, budget := range []int{0, -1} {
		_, err := p.Range(s, types.Span{T0: 0, T1: 10}, budget)
		if !errors.Is(err, errors.ErrInvalidBudget) {
			t.Errorf("budget %d: expected ErrInvalidBudget, got %v", budget, err)
		}
	}
}

func TestRange_EmptySpan(t *testing.T) {
	p := New()
	s := sineSeries(t, 100, 4)

	buckets, err := p.Range(s, types.Span{T0: 1000, T1: 2000}, 10)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if buckets != nil {
		t.Errorf("expected nil result for empty span, got %d buckets", len(buckets))
	}
}

func TestRange_RawPassThrough(t *testing.T) {
	p := New()
	s := sineSeries(t, 100, 4)

	// 11 raw samples in [10, 20], budget 50: raw pass-through.
	buckets, err := p.Range(s, types.Span{T0: 10, T1: 20}, 50)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(buckets) != 11 {
		t.Fatalf("expected 11 degenerate buckets, got %d", len(buckets))
	}
	for i, b := range buckets {
		if b.Count != 1 {
			t.Errorf("bucket %d: expected count=1, got %d", i, b.Count)
		}
		if b.Min != b.Max {
			t.Errorf("bucket %d: raw bucket must be degenerate", i)
		}
	}
}

func TestRange_BudgetRespected(t *testing.T) {
	p := New()
	s := sineSeries(t, 1000, 8)

	full := types.Span{T0: 0, T1: 1000}
	for _, budget := range []int{1, 2, 10, 50, 100, 500, 999, 1000} {
		buckets, err := p.Range(s, full, budget)
		if err != nil {
			t.Fatalf("Range budget=%d: %v", budget, err)
		}
		if len(buckets) > budget {
			t.Errorf("budget=%d: got %d buckets", budget, len(buckets))
		}
		if len(buckets) == 0 {
			t.Errorf("budget=%d: expected a non-empty result", budget)
		}
	}
}

func TestRange_BudgetHeldDuringAppends(t *testing.T) {
	opts := series.DefaultOptions()
	opts.Fanout = 4
	s, err := series.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			s.Append(types.Sample{Timestamp: float64(i), Value: math.Sin(float64(i))})
		}
	}()

	// Level selection and bucket fetch share one lock acquisition, so a
	// seal landing between them cannot push the result past the budget.
	p := New()
	sp := types.Span{T0: 0, T1: 5000}
	const budget = 10
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}

		buckets, err := p.Range(s, sp, budget)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(buckets) > budget {
			t.Fatalf("budget exceeded during concurrent appends: %d > %d", len(buckets), budget)
		}
	}
}

func TestRange_EnvelopeSuperset(t *testing.T) {
	p := New()
	s := sineSeries(t, 1000, 8)

	sp := types.Span{T0: 100, T1: 900}
	raw := s.RawRange(sp)

	rawMin, rawMax := raw[0].Value, raw[0].Value
	for _, sample := range raw {
		if sample.Value < rawMin {
			rawMin = sample.Value
		}
		if sample.Value > rawMax {
			rawMax = sample.Value
		}
	}

	for _, budget := range []int{5, 20, 100} {
		buckets, err := p.Range(s, sp, budget)
		if err != nil {
			t.Fatalf("Range budget=%d: %v", budget, err)
		}

		envMin, envMax := buckets[0].Min, buckets[0].Max
		var total int64
		for _, b := range buckets {
			if b.Min < envMin {
				envMin = b.Min
			}
			if b.Max > envMax {
				envMax = b.Max
			}
			total += b.Count
		}

		// Partial-overlap buckets are included whole, so the envelope
		// must contain the raw envelope and may exceed it.
		if envMin > rawMin || envMax < rawMax {
			t.Errorf("budget=%d: envelope [%f, %f] does not contain raw [%f, %f]",
				budget, envMin, envMax, rawMin, rawMax)
		}
		if total < int64(len(raw)) {
			t.Errorf("budget=%d: buckets cover %d samples, raw range has %d",
				budget, total, len(raw))
		}
	}
}

func TestRange_CoverageContiguous(t *testing.T) {
	p := New()
	s := sineSeries(t, 1000, 8)

	buckets, err := p.Range(s, types.Span{T0: 0, T1: 1000}, 40)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	for i := 1; i < len(buckets); i++ {
		if buckets[i].StartTime < buckets[i-1].EndTime {
			t.Errorf("bucket %d overlaps its predecessor: %f < %f",
				i, buckets[i].StartTime, buckets[i-1].EndTime)
		}
	}
}

func TestRange_CoarsestLevel(t *testing.T) {
	p := New()
	// Budget 3 is below every mid-level bucket count, so the planner
	// climbs to a level coarse enough to fit.
	s := sineSeries(t, 512, 8)

	buckets, err := p.Range(s, types.Span{T0: 0, T1: 512}, 3)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(buckets) == 0 || len(buckets) > 3 {
		t.Fatalf("expected 1..3 buckets, got %d", len(buckets))
	}

	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	if total != 512 {
		t.Errorf("merged buckets must conserve count, got %d", total)
	}
}

func TestMergePairs(t *testing.T) {
	var buckets []types.Bucket
	for i := 0; i < 5; i++ {
		buckets = append(buckets, types.FromSample(types.Sample{
			Timestamp: float64(i), Value: float64(i),
		}))
	}

	merged := mergePairs(buckets)
	if len(merged) != 3 {
		t.Fatalf("expected 3 buckets from 5, got %d", len(merged))
	}
	if merged[0].Count != 2 || merged[1].Count != 2 || merged[2].Count != 1 {
		t.Errorf("unexpected counts: %d %d %d",
			merged[0].Count, merged[1].Count, merged[2].Count)
	}
	if merged[2].First != 4 {
		t.Errorf("odd trailing bucket must carry over, got first=%f", merged[2].First)
	}
}

func TestSummary_Exact(t *testing.T) {
	p := New()
	s := sineSeries(t, 100, 8)

	b, ok := p.Summary(s, types.Span{T0: 10, T1: 20})
	if !ok {
		t.Fatal("expected a summary")
	}
	if b.Count != 11 {
		t.Errorf("expected count=11, got %d", b.Count)
	}

	// Small ranges are computed exactly from raw data.
	raw := s.RawRange(types.Span{T0: 10, T1: 20})
	wantMin, wantMax := raw[0].Value, raw[0].Value
	for _, sample := range raw {
		wantMin = math.Min(wantMin, sample.Value)
		wantMax = math.Max(wantMax, sample.Value)
	}
	if b.Min != wantMin || b.Max != wantMax {
		t.Errorf("expected exact extrema [%f, %f], got [%f, %f]",
			wantMin, wantMax, b.Min, b.Max)
	}
}

func TestSummary_Empty(t *testing.T) {
	p := New()
	s := sineSeries(t, 10, 8)

	if _, ok := p.Summary(s, types.Span{T0: 100, T1: 200}); ok {
		t.Error("expected no summary for an empty span")
	}
}

func TestSummary_CoarseContainsEnvelope(t *testing.T) {
	p := New()
	s := sineSeries(t, 5000, 8)

	sp := types.Span{T0: 0, T1: 5000}
	b, ok := p.Summary(s, sp)
	if !ok {
		t.Fatal("expected a summary")
	}
	if b.Count != 5000 {
		t.Errorf("expected count=5000, got %d", b.Count)
	}

	// The sine covers nearly [-1, 1]; the summary must contain it.
	if b.Min > -0.99 || b.Max < 0.99 {
		t.Errorf("summary envelope [%f, %f] too narrow", b.Min, b.Max)
	}
}

func TestMetrics(t *testing.T) {
	p := New()
	s := sineSeries(t, 300, 8)

	b, ok := p.Metrics(s)
	if !ok {
		t.Fatal("expected metrics")
	}
	if b.Count != 300 {
		t.Errorf("expected count=300, got %d", b.Count)
	}

	empty, err := series.New(series.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.Metrics(empty); ok {
		t.Error("expected no metrics for an empty series")
	}
}
