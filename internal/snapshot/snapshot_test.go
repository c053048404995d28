package snapshot

import (
	"context"
	"math"
	"testing"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/tsdb"
)

func fillChannel(t *testing.T, db *tsdb.DB, channel string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := db.AppendSample(channel, float64(i), math.Sin(float64(i)*0.1)); err != nil {
			t.Fatalf("AppendSample %d: %v", i, err)
		}
	}
}

func writeTestChannel(t *testing.T, dir string, db *tsdb.DB, channel string) {
	t.Helper()

	raw, levels, err := db.Snapshot(channel)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	cfg := config.CompressionConfig{Algorithm: "snappy"}
	if err := WriteChannel(dir, channel, raw, levels, cfg); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}
}

func TestWriteReadRaw_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	db := tsdb.OpenDefault()
	fillChannel(t, db, "sig", 200)

	writeTestChannel(t, dir, db, "sig")

	channel, samples, err := ReadRaw(ChannelFile(dir, "sig"))
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if channel != "sig" {
		t.Errorf("channel = %q, want sig", channel)
	}
	if len(samples) != 200 {
		t.Fatalf("expected 200 samples, got %d", len(samples))
	}

	orig, _, _ := db.Snapshot("sig")
	for i := range samples {
		if samples[i] != orig[i] {
			t.Errorf("sample %d = %+v, want %+v", i, samples[i], orig[i])
		}
	}
}

func TestWriteReadLevels_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	db := tsdb.OpenDefault()
	fillChannel(t, db, "sig", 200)

	writeTestChannel(t, dir, db, "sig")

	channel, rows, err := ReadLevels(LevelsFile(dir, "sig"))
	if err != nil {
		t.Fatalf("ReadLevels: %v", err)
	}
	if channel != "sig" {
		t.Errorf("channel = %q, want sig", channel)
	}
	if len(rows) == 0 {
		t.Fatal("expected level rows")
	}

	_, levels, _ := db.Snapshot("sig")
	var want int
	for _, view := range levels {
		want += len(view.Sealed)
		if view.Open != nil {
			want++
		}
	}
	if len(rows) != want {
		t.Errorf("expected %d bucket rows, got %d", want, len(rows))
	}

	// Level-1 sealed rows carry the original bucket stats.
	var checked bool
	for _, row := range rows {
		if row.Level != 1 || !row.Sealed {
			continue
		}
		b := RowToBucket(&row)
		if b.Count != levels[0].Sealed[0].Count {
			t.Errorf("bucket count = %d, want %d", b.Count, levels[0].Sealed[0].Count)
		}
		checked = true
		break
	}
	if !checked {
		t.Error("no sealed level-1 row found")
	}
}

func TestRestore_RebuildsPyramid(t *testing.T) {
	dir := t.TempDir()
	src := tsdb.OpenDefault()
	fillChannel(t, src, "a", 300)
	fillChannel(t, src, "b", 77)

	for _, name := range src.ListChannels() {
		writeTestChannel(t, dir, src, name)
	}

	dst := tsdb.OpenDefault()
	if err := Restore(dir, dst); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	names := dst.ListChannels()
	if len(names) != 2 {
		t.Fatalf("expected 2 channels, got %v", names)
	}

	for _, name := range names {
		srcRaw, srcLevels, _ := src.Snapshot(name)
		dstRaw, dstLevels, _ := dst.Snapshot(name)

		if len(srcRaw) != len(dstRaw) {
			t.Fatalf("%s: raw length %d vs %d", name, len(srcRaw), len(dstRaw))
		}
		if len(srcLevels) != len(dstLevels) {
			t.Fatalf("%s: level count %d vs %d", name, len(srcLevels), len(dstLevels))
		}

		// Replaying the raw level rebuilds identical sealed buckets.
		for k := range srcLevels {
			if len(srcLevels[k].Sealed) != len(dstLevels[k].Sealed) {
				t.Fatalf("%s level %d: sealed count %d vs %d", name, k+1,
					len(srcLevels[k].Sealed), len(dstLevels[k].Sealed))
			}
			for i := range srcLevels[k].Sealed {
				if srcLevels[k].Sealed[i] != dstLevels[k].Sealed[i] {
					t.Errorf("%s level %d bucket %d differs", name, k+1, i)
				}
			}
		}
	}
}

func TestListRawFiles(t *testing.T) {
	dir := t.TempDir()
	db := tsdb.OpenDefault()
	fillChannel(t, db, "one", 10)
	fillChannel(t, db, "two", 10)

	for _, name := range db.ListChannels() {
		writeTestChannel(t, dir, db, name)
	}

	files, err := ListRawFiles(dir)
	if err != nil {
		t.Fatalf("ListRawFiles: %v", err)
	}
	// Level files must not be listed.
	if len(files) != 2 {
		t.Errorf("expected 2 raw files, got %v", files)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"cpu.load":       "cpu.load",
		"net/rx":         "net_rx",
		"weird name*?":   "weird_name__",
		"UPPER-case_0.9": "UPPER-case_0.9",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteChannel_EmptyChannel(t *testing.T) {
	dir := t.TempDir()

	cfg := config.CompressionConfig{Algorithm: "none"}
	if err := WriteChannel(dir, "empty", nil, nil, cfg); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}

	channel, samples, err := ReadRaw(ChannelFile(dir, "empty"))
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if channel != "" || len(samples) != 0 {
		t.Errorf("expected empty file, got channel=%q samples=%d", channel, len(samples))
	}
}

func TestSnapshotter_SnapshotAll(t *testing.T) {
	dir := t.TempDir()
	db := tsdb.OpenDefault()
	fillChannel(t, db, "x", 50)
	fillChannel(t, db, "y", 60)

	cfg := config.DefaultConfig().Snapshot
	cfg.Enabled = true
	cfg.Dir = dir
	cfg.Workers = 2

	snap := New(cfg, db)
	if err := snap.SnapshotAll(context.Background()); err != nil {
		t.Fatalf("SnapshotAll: %v", err)
	}

	files, err := ListRawFiles(dir)
	if err != nil {
		t.Fatalf("ListRawFiles: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 raw files, got %v", files)
	}

	stats := snap.Stats()
	if stats.Runs != 1 || stats.ChannelsWritten != 2 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
