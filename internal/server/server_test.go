package server

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/xtxerr/scopedb/internal/client"
	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb"
	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// startTestServer binds 127.0.0.1:0 and serves until the test ends.
func startTestServer(t *testing.T, db *tsdb.DB) string {
	t.Helper()

	cfg := config.DefaultConfig().Server
	cfg.Listen = "127.0.0.1:0"

	srv := New(cfg, db)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return srv.Addr().String()
}

// waitForLength polls until the channel reaches the wanted length.
func waitForLength(t *testing.T, db *tsdb.DB, channel string, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, err := db.ChannelLength(channel); err == nil && n >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	n, err := db.ChannelLength(channel)
	t.Fatalf("channel %q never reached %d samples (len=%d err=%v)", channel, want, n, err)
}

func TestServer_IngestBatch(t *testing.T) {
	db := tsdb.OpenDefault()
	addr := startTestServer(t, db)

	c := client.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	samples := make([]types.Sample, 50)
	for i := range samples {
		samples[i] = types.Sample{Timestamp: float64(i), Value: float64(i * 2)}
	}
	if err := c.SendBatch("net.rx", samples); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	waitForLength(t, db, "net.rx", 50)

	buckets, err := db.QueryRange("net.rx", 0, 50, 100)
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(buckets) != 50 {
		t.Errorf("expected 50 raw buckets, got %d", len(buckets))
	}
}

func TestServer_MultipleChannels(t *testing.T) {
	db := tsdb.OpenDefault()
	addr := startTestServer(t, db)

	c := client.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	for i := 0; i < 10; i++ {
		if err := c.Send("a", float64(i), 1); err != nil {
			t.Fatalf("Send a: %v", err)
		}
		if err := c.Send("b", float64(i), 2); err != nil {
			t.Fatalf("Send b: %v", err)
		}
	}

	waitForLength(t, db, "a", 10)
	waitForLength(t, db, "b", 10)

	names := db.ListChannels()
	if len(names) != 2 {
		t.Errorf("expected 2 channels, got %v", names)
	}
}

func TestServer_RejectionReply(t *testing.T) {
	db := tsdb.OpenDefault()
	addr := startTestServer(t, db)

	c := client.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.SendBatch("ch", []types.Sample{
		{Timestamp: 10, Value: 1},
		{Timestamp: 20, Value: 2},
	}); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	waitForLength(t, db, "ch", 2)

	// Out-of-order under the default reject policy: the daemon replies
	// with an error envelope.
	if err := c.SendBatch("ch", []types.Sample{{Timestamp: 5, Value: 3}}); err != nil {
		t.Fatalf("SendBatch out-of-order: %v", err)
	}

	err := c.Drain(5 * time.Second)
	if !errors.Is(err, errors.ErrOutOfOrderSample) {
		t.Errorf("expected ErrOutOfOrderSample from Drain, got %v", err)
	}

	// The store keeps its prior state.
	if n, _ := db.ChannelLength("ch"); n != 2 {
		t.Errorf("rejected batch changed length: %d", n)
	}
}

func TestServer_ConnectionGoroutinesReleased(t *testing.T) {
	db := tsdb.OpenDefault()
	addr := startTestServer(t, db)

	before := runtime.NumGoroutine()

	for i := 0; i < 50; i++ {
		c := client.New(addr)
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("Connect %d: %v", i, err)
		}
		if err := c.Send("gone", float64(i), 1); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		c.Close()
	}
	waitForLength(t, db, "gone", 50)

	// Per-connection goroutines must exit once their connection closes,
	// not linger until server shutdown.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+5 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("goroutines before=%d after=%d: per-connection goroutines not released",
		before, runtime.NumGoroutine())
}

func TestServer_DrainTimeoutWithoutErrors(t *testing.T) {
	db := tsdb.OpenDefault()
	addr := startTestServer(t, db)

	c := client.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.Send("ok", 1, 2); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitForLength(t, db, "ok", 1)

	if err := c.Drain(100 * time.Millisecond); err != nil {
		t.Errorf("Drain with no pending errors should time out silently, got %v", err)
	}
}
