package snapshot

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/logging"
	"github.com/xtxerr/scopedb/internal/tsdb"
)

// Snapshotter periodically writes every channel's state to Parquet.
type Snapshotter struct {
	cfg config.SnapshotConfig
	db  *tsdb.DB
	log *slog.Logger

	// Statistics
	runs     atomic.Int64
	channels atomic.Int64
	errs     atomic.Int64
}

// Stats holds snapshotter counters.
type Stats struct {
	Runs            int64
	ChannelsWritten int64
	Errors          int64
}

// New creates a snapshotter for the given store.
func New(cfg config.SnapshotConfig, db *tsdb.DB) *Snapshotter {
	return &Snapshotter{
		cfg: cfg,
		db:  db,
		log: logging.Component("snapshot"),
	}
}

// Run snapshots on the configured interval until the context is
// cancelled. A final snapshot is taken on shutdown.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Last snapshot so a restart loses at most nothing.
			if err := s.SnapshotAll(context.Background()); err != nil {
				s.log.Error("final snapshot failed", "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.SnapshotAll(ctx); err != nil {
				s.log.Error("snapshot failed", "error", err)
			}
		}
	}
}

// SnapshotAll writes all channels, fanning out across the configured
// number of workers. The first error aborts outstanding work.
func (s *Snapshotter) SnapshotAll(ctx context.Context) error {
	start := time.Now()
	names := s.db.ListChannels()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.snapshotChannel(name); err != nil {
				s.errs.Add(1)
				return err
			}
			s.channels.Add(1)
			return nil
		})
	}

	err := g.Wait()
	s.runs.Add(1)

	if err == nil {
		s.log.Debug("snapshot complete",
			"channels", len(names),
			"elapsed", time.Since(start))
	}
	return err
}

// snapshotChannel writes one channel's raw and level files.
func (s *Snapshotter) snapshotChannel(name string) error {
	raw, levels, err := s.db.Snapshot(name)
	if err != nil {
		return err
	}
	return WriteChannel(s.cfg.Dir, name, raw, levels, s.cfg.Compression)
}

// Stats returns snapshotter counters.
func (s *Snapshotter) Stats() Stats {
	return Stats{
		Runs:            s.runs.Load(),
		ChannelsWritten: s.channels.Load(),
		Errors:          s.errs.Load(),
	}
}
