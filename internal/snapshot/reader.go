package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// ReadRaw reads all raw samples from one channel file. The returned
// channel name comes from the file's channel column.
func ReadRaw(path string) (channel string, samples []types.Sample, err error) {
	rows, err := readRows[SampleRow](path)
	if err != nil {
		return "", nil, err
	}

	samples = make([]types.Sample, len(rows))
	for i := range rows {
		if channel == "" {
			channel = rows[i].Channel
		}
		samples[i] = RowToSample(&rows[i])
	}
	return channel, samples, nil
}

// ReadLevels reads all bucket rows from one channel level file.
func ReadLevels(path string) (channel string, rows []BucketRow, err error) {
	rows, err = readRows[BucketRow](path)
	if err != nil {
		return "", nil, err
	}
	if len(rows) > 0 {
		channel = rows[0].Channel
	}
	return channel, rows, nil
}

// ListRawFiles returns the raw sample files in a snapshot directory.
func ListRawFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), rawSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Store is the append interface a restore target must provide.
// *tsdb.DB satisfies it.
type Store interface {
	AppendSamples(channel string, samples []types.Sample) error
}

// Restore replays every channel's raw samples from a snapshot directory
// into the store. The zoom pyramid is rebuilt by the appends themselves,
// so restored state matches what a live run would have produced.
func Restore(dir string, store Store) error {
	files, err := ListRawFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		channel, samples, err := ReadRaw(path)
		if err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		if channel == "" {
			continue // empty channel file
		}
		if err := store.AppendSamples(channel, samples); err != nil {
			return fmt.Errorf("restore channel %q: %w", channel, err)
		}
	}
	return nil
}

// readRows reads a whole Parquet file into memory.
func readRows[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pf, err := parquet.OpenFile(f, st.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	n := reader.NumRows()
	if n == 0 {
		return nil, nil
	}

	rows := make([]T, n)
	read, err := reader.Read(rows)
	if err != nil && read == 0 {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:read], nil
}
