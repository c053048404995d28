// Package console provides offline query access to snapshot directories.
// It runs DuckDB over the per-channel Parquet files the snapshotter
// writes, so recorded data can be inspected without a running daemon.
package console

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// Console queries a snapshot directory through an in-memory DuckDB.
type Console struct {
	db  *sql.DB
	dir string
}

// New opens a console over the given snapshot directory.
func New(dir string) (*Console, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Console{
		db:  db,
		dir: dir,
	}, nil
}

// Close closes the console.
func (c *Console) Close() error {
	return c.db.Close()
}

func (c *Console) rawPattern() string {
	return filepath.Join(c.dir, "*"+rawGlobSuffix)
}

func (c *Console) levelsPattern() string {
	return filepath.Join(c.dir, "*"+levelsGlobSuffix)
}

// Matches the snapshot package's file naming.
const (
	rawGlobSuffix    = ".raw.parquet"
	levelsGlobSuffix = ".levels.parquet"
)

// Channels lists all channel names found in the snapshot directory.
func (c *Console) Channels(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT channel
		FROM read_parquet($1)
		ORDER BY channel
	`

	rows, err := c.db.QueryContext(ctx, query, c.rawPattern())
	if err != nil {
		// No files yet.
		return nil, nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Len returns the number of raw samples recorded for a channel.
func (c *Console) Len(ctx context.Context, channel string) (int64, error) {
	query := `
		SELECT count(*)
		FROM read_parquet($1)
		WHERE channel = $2
	`

	var n int64
	err := c.db.QueryRowContext(ctx, query, c.rawPattern(), channel).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// TimeRange returns the first and last timestamp of a channel. The bool
// is false when the channel is empty.
func (c *Console) TimeRange(ctx context.Context, channel string) (t0, t1 float64, ok bool, err error) {
	query := `
		SELECT min(timestamp), max(timestamp)
		FROM read_parquet($1)
		WHERE channel = $2
	`

	var lo, hi sql.NullFloat64
	err = c.db.QueryRowContext(ctx, query, c.rawPattern(), channel).Scan(&lo, &hi)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query time range: %w", err)
	}
	if !lo.Valid {
		return 0, 0, false, nil
	}
	return lo.Float64, hi.Float64, true, nil
}

// Summary aggregates a channel's raw samples over a time range into a
// single bucket. The bool is false when no samples fall in the range.
func (c *Console) Summary(ctx context.Context, channel string, span types.Span) (types.Bucket, bool, error) {
	query := `
		SELECT
			min(timestamp), max(timestamp),
			count(*), sum(value),
			min(value), max(value),
			first(value ORDER BY timestamp),
			last(value ORDER BY timestamp)
		FROM read_parquet($1)
		WHERE channel = $2
		  AND timestamp >= $3
		  AND timestamp <= $4
	`

	var (
		start, end  sql.NullFloat64
		count       int64
		sum, lo, hi sql.NullFloat64
		first, last sql.NullFloat64
	)
	err := c.db.QueryRowContext(ctx, query,
		c.rawPattern(), channel, span.T0, span.T1,
	).Scan(&start, &end, &count, &sum, &lo, &hi, &first, &last)
	if err != nil {
		return types.Bucket{}, false, fmt.Errorf("query summary: %w", err)
	}
	if count == 0 {
		return types.Bucket{}, false, nil
	}

	return types.Bucket{
		StartTime: start.Float64,
		EndTime:   end.Float64,
		Count:     count,
		Sum:       sum.Float64,
		Min:       lo.Float64,
		Max:       hi.Float64,
		First:     first.Float64,
		Last:      last.Float64,
	}, true, nil
}

// Envelope returns at most budget buckets covering the requested range,
// mirroring the live store's planner: raw samples when they fit, else
// the lowest recorded zoom level that fits, else the topmost level
// merged down pairwise.
func (c *Console) Envelope(ctx context.Context, channel string, span types.Span, budget int) ([]types.Bucket, error) {
	if budget < 1 {
		return nil, fmt.Errorf("budget must be >= 1, got %d", budget)
	}

	rawCount, err := c.rawCount(ctx, channel, span)
	if err != nil {
		return nil, err
	}
	if rawCount == 0 {
		return nil, nil
	}
	if rawCount <= int64(budget) {
		return c.rawBuckets(ctx, channel, span)
	}

	top, err := c.maxLevel(ctx, channel)
	if err != nil {
		return nil, err
	}

	for level := int32(1); level <= top; level++ {
		n, err := c.levelCount(ctx, channel, level, span)
		if err != nil {
			return nil, err
		}
		if n > 0 && n <= int64(budget) {
			return c.levelBuckets(ctx, channel, level, span)
		}
	}

	// Even the coarsest level exceeds the budget. Merge pairs until it
	// fits.
	buckets, err := c.levelBuckets(ctx, channel, top, span)
	if err != nil {
		return nil, err
	}
	for len(buckets) > budget {
		buckets = mergePairs(buckets)
	}
	return buckets, nil
}

func (c *Console) rawCount(ctx context.Context, channel string, span types.Span) (int64, error) {
	query := `
		SELECT count(*)
		FROM read_parquet($1)
		WHERE channel = $2
		  AND timestamp >= $3
		  AND timestamp <= $4
	`

	var n int64
	err := c.db.QueryRowContext(ctx, query, c.rawPattern(), channel, span.T0, span.T1).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count raw samples: %w", err)
	}
	return n, nil
}

func (c *Console) rawBuckets(ctx context.Context, channel string, span types.Span) ([]types.Bucket, error) {
	query := `
		SELECT timestamp, value
		FROM read_parquet($1)
		WHERE channel = $2
		  AND timestamp >= $3
		  AND timestamp <= $4
		ORDER BY timestamp
	`

	rows, err := c.db.QueryContext(ctx, query, c.rawPattern(), channel, span.T0, span.T1)
	if err != nil {
		return nil, fmt.Errorf("query raw samples: %w", err)
	}
	defer rows.Close()

	var buckets []types.Bucket
	for rows.Next() {
		var s types.Sample
		if err := rows.Scan(&s.Timestamp, &s.Value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		buckets = append(buckets, types.FromSample(s))
	}
	return buckets, rows.Err()
}

func (c *Console) maxLevel(ctx context.Context, channel string) (int32, error) {
	query := `
		SELECT max(level)
		FROM read_parquet($1)
		WHERE channel = $2
	`

	var top sql.NullInt32
	err := c.db.QueryRowContext(ctx, query, c.levelsPattern(), channel).Scan(&top)
	if err != nil {
		return 0, fmt.Errorf("query max level: %w", err)
	}
	return top.Int32, nil
}

func (c *Console) levelCount(ctx context.Context, channel string, level int32, span types.Span) (int64, error) {
	query := `
		SELECT count(*)
		FROM read_parquet($1)
		WHERE channel = $2
		  AND level = $3
		  AND end_time >= $4
		  AND start_time <= $5
	`

	var n int64
	err := c.db.QueryRowContext(ctx, query, c.levelsPattern(), channel, level, span.T0, span.T1).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count level buckets: %w", err)
	}
	return n, nil
}

func (c *Console) levelBuckets(ctx context.Context, channel string, level int32, span types.Span) ([]types.Bucket, error) {
	query := `
		SELECT
			start_time, end_time,
			count, sum, min, max, first, last,
			p50, p90, p95, p99
		FROM read_parquet($1)
		WHERE channel = $2
		  AND level = $3
		  AND end_time >= $4
		  AND start_time <= $5
		ORDER BY start_time
	`

	rows, err := c.db.QueryContext(ctx, query, c.levelsPattern(), channel, level, span.T0, span.T1)
	if err != nil {
		return nil, fmt.Errorf("query level buckets: %w", err)
	}
	defer rows.Close()

	var buckets []types.Bucket
	for rows.Next() {
		var b types.Bucket
		var p50, p90, p95, p99 sql.NullFloat64

		err := rows.Scan(
			&b.StartTime, &b.EndTime,
			&b.Count, &b.Sum, &b.Min, &b.Max, &b.First, &b.Last,
			&p50, &p90, &p95, &p99,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}

		if p50.Valid {
			b.SetPercentiles(p50.Float64, p90.Float64, p95.Float64, p99.Float64)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// mergePairs folds adjacent bucket pairs, halving the count. An odd
// trailing bucket is carried over unchanged.
func mergePairs(buckets []types.Bucket) []types.Bucket {
	out := make([]types.Bucket, 0, (len(buckets)+1)/2)
	for i := 0; i < len(buckets); i += 2 {
		b := buckets[i]
		if i+1 < len(buckets) {
			b.Absorb(buckets[i+1])
		}
		out = append(out, b)
	}
	return out
}

// SQL executes an ad-hoc query and returns column names plus rows
// rendered as strings.
func (c *Console) SQL(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var results [][]string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}

		row := make([]string, len(columns))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
				continue
			}
			row[i] = fmt.Sprintf("%v", v)
		}
		results = append(results, row)
	}

	return columns, results, rows.Err()
}
