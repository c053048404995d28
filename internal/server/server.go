// Package server provides the TCP sample ingest listener.
//
// Producers stream length-delimited append envelopes; each connection is
// served by its own goroutine, which feeds batches into the store and
// reports rejected envelopes back as error replies. The transport is the
// only concurrency boundary in front of the store: one connection per
// channel keeps the single-writer-per-channel contract.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/scopedb/internal/config"
	scoperr "github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/logging"
	"github.com/xtxerr/scopedb/internal/tsdb"
	"github.com/xtxerr/scopedb/internal/wire"
)

// Server accepts producer connections and feeds their samples into the store.
type Server struct {
	cfg config.ServerConfig
	db  *tsdb.DB
	log *slog.Logger

	ln net.Listener

	// Statistics
	connsAccepted  atomic.Int64
	batchesApplied atomic.Int64
	batchesFailed  atomic.Int64
}

// Stats holds server counters.
type Stats struct {
	ConnsAccepted  int64
	BatchesApplied int64
	BatchesFailed  int64
}

// New creates an ingest server for the given store.
func New(cfg config.ServerConfig, db *tsdb.DB) *Server {
	return &Server{
		cfg: cfg,
		db:  db,
		log: logging.Component("server"),
	}
}

// Listen binds the configured address. Separate from Run so tests can
// bind :0 and read the actual address before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln
	s.log.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run serves connections until the context is cancelled. Listen must have
// been called first.
func (s *Server) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// Close the listener on cancellation to unblock Accept.
	g.Go(func() error {
		<-ctx.Done()
		s.ln.Close()
		return ctx.Err()
	})

	g.Go(func() error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}

			s.connsAccepted.Add(1)
			g.Go(func() error {
				s.handleConn(ctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleConn serves one producer connection until EOF, error, or shutdown.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	log := s.log.With("peer", peer)
	log.Debug("connection opened")

	defer func() {
		conn.Close()
		log.Debug("connection closed")
	}()

	// Unblock the read loop on shutdown; released when the connection ends
	// so short-lived producers do not accumulate watchers.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	wc := wire.NewConn(conn)
	wc.Reader = wire.NewReaderSize(conn, s.cfg.MaxMessageSize)

	for {
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		env, err := wc.Read()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			log.Warn("read failed", "error", err)
			return
		}

		if env.Append == nil {
			log.Warn("envelope without append payload", "id", env.ID)
			continue
		}

		if err := s.db.AppendSamples(env.Append.Channel, env.Append.Samples); err != nil {
			s.batchesFailed.Add(1)
			log.Warn("append rejected",
				"channel", env.Append.Channel,
				"samples", len(env.Append.Samples),
				"error", err)

			reply := wire.NewError(env.ID, scoperr.ErrorToCode(err), err.Error())
			if werr := wc.Write(reply); werr != nil {
				log.Debug("error reply failed", "error", werr)
				return
			}
			continue
		}

		s.batchesApplied.Add(1)
	}
}

// Stats returns server counters.
func (s *Server) Stats() Stats {
	return Stats{
		ConnsAccepted:  s.connsAccepted.Load(),
		BatchesApplied: s.batchesApplied.Load(),
		BatchesFailed:  s.batchesFailed.Load(),
	}
}
