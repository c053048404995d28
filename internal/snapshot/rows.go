// Package snapshot is the external persistence collaborator: it consumes
// the store's enumeration interface (raw samples plus sealed buckets and
// in-progress tails per level) and writes per-channel Parquet files.
// Restoring replays the raw level through the normal append path, which
// rebuilds the pyramid deterministically; the level files exist for
// offline tooling such as the console.
package snapshot

import (
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// SampleRow represents a raw sample in Parquet format.
type SampleRow struct {
	Channel   string  `parquet:"channel,zstd"`
	Timestamp float64 `parquet:"timestamp"`
	Value     float64 `parquet:"value"`
}

// BucketRow represents one zoom-level bucket in Parquet format.
type BucketRow struct {
	Channel   string  `parquet:"channel,zstd"`
	Level     int32   `parquet:"level"`
	Sealed    bool    `parquet:"sealed"`
	StartTime float64 `parquet:"start_time"`
	EndTime   float64 `parquet:"end_time"`
	Count     int64   `parquet:"count"`
	Sum       float64 `parquet:"sum"`
	Min       float64 `parquet:"min"`
	Max       float64 `parquet:"max"`
	First     float64 `parquet:"first"`
	Last      float64 `parquet:"last"`
	P50       float64 `parquet:"p50,optional"`
	P90       float64 `parquet:"p90,optional"`
	P95       float64 `parquet:"p95,optional"`
	P99       float64 `parquet:"p99,optional"`
}

// SampleToRow converts a sample to its Parquet row.
func SampleToRow(channel string, s types.Sample) SampleRow {
	return SampleRow{
		Channel:   channel,
		Timestamp: s.Timestamp,
		Value:     s.Value,
	}
}

// RowToSample converts a Parquet row back to a sample.
func RowToSample(r *SampleRow) types.Sample {
	return types.Sample{
		Timestamp: r.Timestamp,
		Value:     r.Value,
	}
}

// BucketToRow converts a bucket to its Parquet row.
func BucketToRow(channel string, level int, sealed bool, b types.Bucket) BucketRow {
	row := BucketRow{
		Channel:   channel,
		Level:     int32(level),
		Sealed:    sealed,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Count:     b.Count,
		Sum:       b.Sum,
		Min:       b.Min,
		Max:       b.Max,
		First:     b.First,
		Last:      b.Last,
	}

	if b.P50 != nil {
		row.P50 = *b.P50
	}
	if b.P90 != nil {
		row.P90 = *b.P90
	}
	if b.P95 != nil {
		row.P95 = *b.P95
	}
	if b.P99 != nil {
		row.P99 = *b.P99
	}

	return row
}

// RowToBucket converts a Parquet row back to a bucket.
func RowToBucket(r *BucketRow) types.Bucket {
	b := types.Bucket{
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Count:     r.Count,
		Sum:       r.Sum,
		Min:       r.Min,
		Max:       r.Max,
		First:     r.First,
		Last:      r.Last,
	}

	if r.P50 != 0 || r.P90 != 0 || r.P95 != 0 || r.P99 != 0 {
		b.SetPercentiles(r.P50, r.P90, r.P95, r.P99)
	}

	return b
}

// codecFor returns the parquet-go compression codec for the configured
// algorithm.
func codecFor(cfg config.CompressionConfig) compress.Codec {
	switch cfg.Algorithm {
	case "snappy":
		return &parquet.Snappy
	case "zstd":
		return &parquet.Zstd
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	case "none", "":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}
