// scopedbd is the scope sample store daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/scopedb/internal/adapter/snmp"
	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/logging"
	"github.com/xtxerr/scopedb/internal/server"
	"github.com/xtxerr/scopedb/internal/snapshot"
	"github.com/xtxerr/scopedb/internal/tsdb"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	snapshotDir := flag.String("snapshot-dir", "", "snapshot directory (overrides config, enables snapshots)")
	restore := flag.Bool("restore", false, "restore channels from the snapshot directory at startup")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	logJSON := flag.Bool("log-json", false, "JSON log output")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *snapshotDir != "" {
		cfg.Snapshot.Enabled = true
		cfg.Snapshot.Dir = *snapshotDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logJSON {
		cfg.Log.JSON = true
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	logger := logging.Component("scopedbd")
	logger.Info("starting", "version", Version)

	// Open the store
	db, err := tsdb.Open(cfg.TSDB)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	// Replay snapshots into the store before accepting traffic.
	if *restore {
		if cfg.Snapshot.Dir == "" {
			logger.Error("restore requested but no snapshot directory configured")
			os.Exit(1)
		}
		if err := snapshot.Restore(cfg.Snapshot.Dir, db); err != nil {
			logger.Error("restore failed", "error", err)
			os.Exit(1)
		}
		logger.Info("restore complete", "channels", len(db.ListChannels()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Ingest server
	srv := server.New(cfg.Server, db)
	if err := srv.Listen(); err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
	g.Go(func() error {
		return srv.Run(ctx)
	})

	// Periodic snapshotter
	if cfg.Snapshot.Enabled {
		snap := snapshot.New(cfg.Snapshot, db)
		logger.Info("snapshots enabled",
			"dir", cfg.Snapshot.Dir,
			"interval", cfg.Snapshot.Interval)
		g.Go(func() error {
			return snap.Run(ctx)
		})
	}

	// SNMP adapters
	if len(cfg.Adapters.SNMP) > 0 {
		adapter := snmp.New(cfg.Adapters.SNMP, db)
		logger.Info("snmp adapter enabled", "targets", len(cfg.Adapters.SNMP))
		g.Go(func() error {
			return adapter.Run(ctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown with error", "error", err)
		os.Exit(1)
	}

	stats := db.Stats()
	logger.Info("shutdown complete",
		"channels", stats.Channels,
		"samples_appended", stats.SamplesAppended,
		"queries_executed", stats.QueriesExecuted)
}
