package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/tsdb/series"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// File suffixes for the two per-channel Parquet files.
const (
	rawSuffix    = ".raw.parquet"
	levelsSuffix = ".levels.parquet"
)

// ChannelFile returns the raw-sample file path for a channel.
func ChannelFile(dir, channel string) string {
	return filepath.Join(dir, sanitize(channel)+rawSuffix)
}

// LevelsFile returns the bucket file path for a channel.
func LevelsFile(dir, channel string) string {
	return filepath.Join(dir, sanitize(channel)+levelsSuffix)
}

// sanitize maps a channel name to a filesystem-safe base name. The real
// channel name travels in the file's channel column.
func sanitize(channel string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, channel)
}

// WriteChannel writes one channel's state (raw samples plus all zoom
// levels) to the snapshot directory. Files are written to a temporary
// name and renamed, so concurrent readers never see partial snapshots.
func WriteChannel(dir, channel string, raw []types.Sample, levels []series.LevelView, cfg config.CompressionConfig) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if err := writeRaw(dir, channel, raw, cfg); err != nil {
		return err
	}
	return writeLevels(dir, channel, levels, cfg)
}

func writeRaw(dir, channel string, raw []types.Sample, cfg config.CompressionConfig) error {
	rows := make([]SampleRow, len(raw))
	for i, s := range raw {
		rows[i] = SampleToRow(channel, s)
	}
	return writeRows(ChannelFile(dir, channel), rows, cfg)
}

func writeLevels(dir, channel string, levels []series.LevelView, cfg config.CompressionConfig) error {
	var rows []BucketRow
	for _, view := range levels {
		for _, b := range view.Sealed {
			rows = append(rows, BucketToRow(channel, view.Level, true, b))
		}
		if view.Open != nil {
			rows = append(rows, BucketToRow(channel, view.Level, false, *view.Open))
		}
	}
	return writeRows(LevelsFile(dir, channel), rows, cfg)
}

// writeRows writes rows to path via a temporary file and rename.
func writeRows[T any](path string, rows []T, cfg config.CompressionConfig) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[T](f, parquet.Compression(codecFor(cfg)))

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
