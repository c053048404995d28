package tsdb

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/logging"
	"github.com/xtxerr/scopedb/internal/tsdb/query"
	"github.com/xtxerr/scopedb/internal/tsdb/registry"
	"github.com/xtxerr/scopedb/internal/tsdb/series"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// DB is the store facade. It owns the channel registry and the query
// planner and exposes the in-process call interface.
type DB struct {
	cfg     config.TSDBConfig
	reg     *registry.Registry
	planner *query.Planner
	log     *slog.Logger

	// Statistics
	samplesAppended atomic.Int64
	appendErrors    atomic.Int64
	queriesExecuted atomic.Int64
	bucketsReturned atomic.Int64
}

// Stats holds store counters.
type Stats struct {
	Channels        int
	SamplesAppended int64
	AppendErrors    int64
	QueriesExecuted int64
	BucketsReturned int64
}

// Open creates a store from the given configuration.
func Open(cfg config.TSDBConfig) (*DB, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(opts)
	if err != nil {
		return nil, err
	}

	return &DB{
		cfg:     cfg,
		reg:     reg,
		planner: query.New(),
		log:     logging.Component("tsdb"),
	}, nil
}

// OpenDefault creates a store with default configuration, for tests and
// embedding.
func OpenDefault() *DB {
	db, err := Open(config.DefaultConfig().TSDB)
	if err != nil {
		panic(err) // defaults always validate
	}
	return db
}

// optionsFromConfig translates the config section into series options.
func optionsFromConfig(cfg config.TSDBConfig) (series.Options, error) {
	policy, err := series.ParsePolicy(cfg.OutOfOrder.Policy)
	if err != nil {
		return series.Options{}, err
	}

	opts := series.Options{
		Fanout:             cfg.Fanout,
		Policy:             policy,
		Tolerance:          cfg.OutOfOrder.ToleranceSec,
		PercentileEnabled:  cfg.Features.Percentile.Enabled,
		PercentileAccuracy: cfg.Features.Percentile.Accuracy,
	}
	if opts.Fanout == 0 {
		opts.Fanout = config.DefaultConfig().TSDB.Fanout
	}
	if opts.PercentileEnabled && opts.PercentileAccuracy == 0 {
		opts.PercentileAccuracy = 0.01
	}
	return opts, opts.Validate()
}

// AppendSample appends a single sample to the named channel, creating the
// channel on first use.
func (db *DB) AppendSample(channel string, timestamp, value float64) error {
	s, err := db.reg.GetOrCreate(channel)
	if err != nil {
		return err
	}

	if err := s.Append(types.Sample{Timestamp: timestamp, Value: value}); err != nil {
		db.appendErrors.Add(1)
		return fmt.Errorf("channel %q: %w", channel, err)
	}

	db.samplesAppended.Add(1)
	return nil
}

// AppendSamples appends an ordered batch to the named channel. Equivalent
// to repeated AppendSample calls.
func (db *DB) AppendSamples(channel string, samples []types.Sample) error {
	s, err := db.reg.GetOrCreate(channel)
	if err != nil {
		return err
	}

	applied, err := s.AppendBatch(samples)
	db.samplesAppended.Add(int64(applied))
	if err != nil {
		db.appendErrors.Add(1)
		return fmt.Errorf("channel %q: %w", channel, err)
	}
	return nil
}

// QueryRange returns at most budget buckets covering [t0, t1] on the
// named channel. A budget <= 0 selects the configured default; larger
// budgets are capped at the configured maximum. Unknown channels fail.
func (db *DB) QueryRange(channel string, t0, t1 float64, budget int) ([]types.Bucket, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return nil, err
	}

	if budget <= 0 {
		budget = db.cfg.Query.DefaultPointBudget
	}
	if max := db.cfg.Query.MaxPointBudget; max > 0 && budget > max {
		budget = max
	}

	buckets, err := db.planner.Range(s, types.NewSpan(t0, t1), budget)
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", channel, err)
	}

	db.queriesExecuted.Add(1)
	db.bucketsReturned.Add(int64(len(buckets)))
	return buckets, nil
}

// QuerySummary reduces [t0, t1] on the named channel to a single bucket
// for axis auto-scaling. Returns nil (and no error) when the span holds
// no data.
func (db *DB) QuerySummary(channel string, t0, t1 float64) (*types.Bucket, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return nil, err
	}

	db.queriesExecuted.Add(1)
	b, ok := db.planner.Summary(s, types.NewSpan(t0, t1))
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// Metrics reduces the whole channel to a single bucket.
func (db *DB) Metrics(channel string) (*types.Bucket, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return nil, err
	}

	b, ok := db.planner.Metrics(s)
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// ListChannels returns the sorted channel names.
func (db *DB) ListChannels() []string {
	return db.reg.Names()
}

// ChannelLength returns the raw sample count of the named channel.
func (db *DB) ChannelLength(channel string) (int, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return 0, err
	}
	return s.Len(), nil
}

// TimeRange returns the span covered by the named channel's samples.
func (db *DB) TimeRange(channel string) (types.Span, bool, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return types.Span{}, false, err
	}
	sp, ok := s.TimeRange()
	return sp, ok, nil
}

// Snapshot enumerates a channel's state (raw samples, sealed buckets per
// level, in-progress tails) for an external snapshotting mechanism.
func (db *DB) Snapshot(channel string) ([]types.Sample, []series.LevelView, error) {
	s, err := db.reg.Lookup(channel)
	if err != nil {
		return nil, nil, err
	}
	raw, levels := s.Snapshot()
	return raw, levels, nil
}

// Stats returns store counters.
func (db *DB) Stats() Stats {
	return Stats{
		Channels:        db.reg.Len(),
		SamplesAppended: db.samplesAppended.Load(),
		AppendErrors:    db.appendErrors.Load(),
		QueriesExecuted: db.queriesExecuted.Load(),
		BucketsReturned: db.bucketsReturned.Load(),
	}
}
