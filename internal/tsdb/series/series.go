package series

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// Series owns one raw sample level (level 0) plus a stack of zoom levels.
// Exactly one writer may append; readers may run concurrently with the
// writer and with each other.
type Series struct {
	mu   sync.RWMutex
	opts Options

	// raw is level 0: the append-only raw sample sequence.
	raw []types.Sample

	// levels holds zoom levels 1..len(levels). Level k folds opts.Fanout
	// consecutive entries of level k-1 per bucket.
	levels []*level

	// Statistics
	stats Stats
}

// level is one zoom level: sealed buckets plus the in-progress tail.
type level struct {
	sealed []types.Bucket

	// sketches is parallel to sealed; entries are nil when percentiles
	// are disabled. Kept so upper levels can merge distributions.
	sketches []*ddsketch.DDSketch

	open *accum
}

// Stats holds per-series counters.
type Stats struct {
	SamplesAppended int64
	SamplesRejected int64
	SamplesClamped  int64
	BucketsSealed   int64
}

// LevelView is an immutable snapshot of one zoom level, used by external
// snapshotting: all sealed buckets plus the in-progress tail.
type LevelView struct {
	Level  int
	Sealed []types.Bucket
	Open   *types.Bucket
}

// New creates an empty series with the given options.
func New(opts Options) (*Series, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Series{opts: opts}, nil
}

// MustNew is New for options known to be valid; it panics otherwise.
func MustNew(opts Options) *Series {
	s, err := New(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// Options returns the series configuration.
func (s *Series) Options() Options {
	return s.opts
}

// Append validates and appends a single sample, then propagates the update
// through the zoom pyramid. On error no state is modified.
func (s *Series) Append(sample types.Sample) error {
	if !sample.Valid() {
		return fmt.Errorf("%w: non-finite timestamp or value (t=%v v=%v)",
			errors.ErrInvalidSample, sample.Timestamp, sample.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.raw); n > 0 {
		last := s.raw[n-1].Timestamp
		if sample.Timestamp < last {
			if last-sample.Timestamp > s.opts.Tolerance && s.opts.Policy == PolicyReject {
				s.stats.SamplesRejected++
				return fmt.Errorf("%w: timestamp %v precedes last %v by more than tolerance %v",
					errors.ErrOutOfOrderSample, sample.Timestamp, last, s.opts.Tolerance)
			}
			// Clamp so level 0 stays non-decreasing.
			sample.Timestamp = last
			s.stats.SamplesClamped++
		}
	}

	s.raw = append(s.raw, sample)
	s.stats.SamplesAppended++
	s.feed(1, types.FromSample(sample), nil)

	return nil
}

// AppendBatch appends samples in order. It is equivalent to repeated
// single appends; on error the samples before the failing one remain
// appended, and both the applied count and the failing index are reported.
func (s *Series) AppendBatch(samples []types.Sample) (applied int, err error) {
	for i, sample := range samples {
		if err := s.Append(sample); err != nil {
			return i, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return len(samples), nil
}

// feed delivers a constituent entry from level k-1 into level k, sealing
// and propagating upward when the open bucket reaches fanout constituents.
// Levels are created lazily: level 1 on the first raw sample, level k+1 on
// the first seal at level k.
func (s *Series) feed(k int, entry types.Bucket, entrySketch *ddsketch.DDSketch) {
	if k > len(s.levels) {
		s.levels = append(s.levels, &level{})
	}
	lvl := s.levels[k-1]

	if lvl.open == nil {
		lvl.open = newAccum(entry, entrySketch, s.opts)
	} else {
		lvl.open.absorb(entry, entrySketch)
	}

	if lvl.open.n < s.opts.Fanout {
		return
	}

	sealed := lvl.open.seal()
	sketch := lvl.open.sketch
	lvl.sealed = append(lvl.sealed, sealed)
	lvl.sketches = append(lvl.sketches, sketch)
	lvl.open = nil
	s.stats.BucketsSealed++

	s.feed(k+1, sealed, sketch)
}

// Len returns the raw sample count (level 0 length).
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.raw)
}

// Stats returns a copy of the series counters.
func (s *Series) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// TimeRange returns the span covered by the recorded samples.
// ok is false for an empty series.
func (s *Series) TimeRange() (sp types.Span, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.raw) == 0 {
		return types.Span{}, false
	}
	return types.Span{
		T0: s.raw[0].Timestamp,
		T1: s.raw[len(s.raw)-1].Timestamp,
	}, true
}

// NumLevels returns the number of materialized zoom levels.
func (s *Series) NumLevels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.levels)
}

// LevelLen returns the bucket count of zoom level k (1-based), counting
// the in-progress tail bucket. Each level holds ceil(len(below)/fanout)
// buckets, where level 0 is the raw sequence.
func (s *Series) LevelLen(k int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k < 1 || k > len(s.levels) {
		return 0
	}
	n := len(s.levels[k-1].sealed)
	if _, ok := s.openViewLocked(k); ok {
		n++
	}
	return n
}

// openViewLocked materializes the in-progress tail bucket of level k. The
// tail covers the constituents not yet sealed at level k plus, below
// level 1, the tail of level k-1, so a partial bucket at every level
// reflects all recorded samples. Callers must hold at least a read lock.
func (s *Series) openViewLocked(k int) (types.Bucket, bool) {
	if k < 1 || k > len(s.levels) {
		return types.Bucket{}, false
	}
	lvl := s.levels[k-1]

	var view types.Bucket
	ok := false
	if lvl.open != nil {
		view = lvl.open.snapshot()
		ok = true
	}
	if k >= 2 {
		if below, bok := s.openViewLocked(k - 1); bok {
			view.Absorb(below)
			ok = true
		}
	}
	return view, ok
}

// Raw returns an immutable view of all raw samples.
func (s *Series) Raw() []types.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw[:len(s.raw):len(s.raw)]
}

// RawRange returns an immutable view of the raw samples whose timestamps
// fall within the span.
func (s *Series) RawRange(sp types.Span) []types.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.rawIndexRange(sp)
	return s.raw[lo:hi:hi]
}

// RawCountInRange returns the number of raw samples within the span.
func (s *Series) RawCountInRange(sp types.Span) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.rawIndexRange(sp)
	return hi - lo
}

// RawWithin returns the raw samples within the span when there are at most
// limit of them, as an immutable view. ok is false when the span holds more.
// Count and fetch happen under one lock acquisition, so the result cannot
// exceed limit even with a concurrent writer.
func (s *Series) RawWithin(sp types.Span, limit int) (samples []types.Sample, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := s.rawIndexRange(sp)
	if hi-lo > limit {
		return nil, false
	}
	return s.raw[lo:hi:hi], true
}

// rawIndexRange locates [lo, hi) in level 0 by binary search.
// Callers must hold at least a read lock.
func (s *Series) rawIndexRange(sp types.Span) (lo, hi int) {
	n := len(s.raw)
	lo = sort.Search(n, func(i int) bool { return s.raw[i].Timestamp >= sp.T0 })
	hi = sort.Search(n, func(i int) bool { return s.raw[i].Timestamp > sp.T1 })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// LevelBuckets returns the buckets of zoom level k whose time ranges
// overlap the span, in order. Partially overlapping buckets are included
// whole. The in-progress tail is returned as a copy.
func (s *Series) LevelBuckets(k int, sp types.Span) []types.Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levelBucketsLocked(k, sp)
}

// LevelBucketsWithin returns the level-k buckets overlapping the span when
// there are at most limit of them. ok is false when the level holds more.
// Like RawWithin, count and fetch share one lock acquisition.
func (s *Series) LevelBucketsWithin(k int, sp types.Span, limit int) (buckets []types.Bucket, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.levelBucketsLocked(k, sp)
	if len(out) > limit {
		return nil, false
	}
	return out, true
}

// levelBucketsLocked implements LevelBuckets. Callers must hold at least a
// read lock.
func (s *Series) levelBucketsLocked(k int, sp types.Span) []types.Bucket {
	if k < 1 || k > len(s.levels) {
		return nil
	}
	lvl := s.levels[k-1]

	// Sealed buckets are ordered and non-overlapping, so both EndTime and
	// StartTime are non-decreasing across the slice.
	n := len(lvl.sealed)
	lo := sort.Search(n, func(i int) bool { return lvl.sealed[i].EndTime >= sp.T0 })
	hi := sort.Search(n, func(i int) bool { return lvl.sealed[i].StartTime > sp.T1 })
	if hi < lo {
		hi = lo
	}

	out := lvl.sealed[lo:hi:hi]
	if openView, ok := s.openViewLocked(k); ok && openView.Span().Overlaps(sp) {
		out = append(out[:len(out):len(out)], openView)
	}
	return out
}

// LevelCountInRange returns the number of level-k buckets overlapping the
// span, counting the in-progress tail.
func (s *Series) LevelCountInRange(k int, sp types.Span) int {
	return len(s.LevelBuckets(k, sp))
}

// Snapshot enumerates the series state for external snapshotting: the raw
// sample view plus, per level, all sealed buckets and a copy of the
// in-progress tail.
func (s *Series) Snapshot() ([]types.Sample, []LevelView) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.raw[:len(s.raw):len(s.raw)]
	views := make([]LevelView, 0, len(s.levels))
	for i, lvl := range s.levels {
		view := LevelView{
			Level:  i + 1,
			Sealed: lvl.sealed[:len(lvl.sealed):len(lvl.sealed)],
		}
		if open, ok := s.openViewLocked(i + 1); ok {
			view.Open = &open
		}
		views = append(views, view)
	}
	return raw, views
}
