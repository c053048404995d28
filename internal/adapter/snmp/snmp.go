// Package snmp feeds channels from SNMP agents. Each configured target
// is polled on its own interval; every polled OID's value becomes one
// sample in its configured channel.
package snmp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/scopedb/internal/config"
	"github.com/xtxerr/scopedb/internal/logging"
)

// Sink receives polled samples. *tsdb.DB satisfies it.
type Sink interface {
	AppendSample(channel string, timestamp, value float64) error
}

// Defaults applied when a target omits timing fields.
const (
	defaultTimeoutMs = 2000
	defaultRetries   = 1
	defaultPort      = 161
)

// Adapter polls all configured SNMP targets into a sink.
type Adapter struct {
	targets []config.SNMPTargetConfig
	sink    Sink
	log     *slog.Logger

	// Statistics
	polls    atomic.Int64
	pollErrs atomic.Int64
	samples  atomic.Int64
}

// Stats holds adapter counters.
type Stats struct {
	Polls          int64
	PollErrors     int64
	SamplesWritten int64
}

// New creates an adapter for the configured targets.
func New(targets []config.SNMPTargetConfig, sink Sink) *Adapter {
	return &Adapter{
		targets: targets,
		sink:    sink,
		log:     logging.Component("snmp"),
	}
}

// Run polls every target on its interval until the context is
// cancelled. One target failing does not stop the others.
func (a *Adapter) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, target := range a.targets {
		g.Go(func() error {
			a.pollLoop(ctx, target)
			return nil
		})
	}

	return g.Wait()
}

func (a *Adapter) pollLoop(ctx context.Context, target config.SNMPTargetConfig) {
	log := a.log.With("host", target.Host)

	ticker := time.NewTicker(target.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.pollTarget(ctx, target); err != nil {
				a.pollErrs.Add(1)
				log.Warn("poll failed", "error", err)
			}
		}
	}
}

// pollTarget issues one GET for all of a target's OIDs and appends the
// returned values as samples.
func (a *Adapter) pollTarget(ctx context.Context, target config.SNMPTargetConfig) error {
	a.polls.Add(1)

	client := newClient(target)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Conn.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	oids := make([]string, len(target.OIDs))
	for i, o := range target.OIDs {
		oids[i] = o.OID
	}

	pdu, err := client.Get(oids)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}

	now := float64(time.Now().UnixNano()) / 1e9

	for i, variable := range pdu.Variables {
		if i >= len(target.OIDs) {
			break
		}
		channel := target.OIDs[i].Channel

		value, ok := numericValue(variable)
		if !ok {
			a.log.Debug("skipping non-numeric variable",
				"host", target.Host,
				"oid", target.OIDs[i].OID,
				"type", variable.Type)
			continue
		}

		if err := a.sink.AppendSample(channel, now, value); err != nil {
			a.log.Warn("append failed",
				"channel", channel,
				"error", err)
			continue
		}
		a.samples.Add(1)
	}

	return nil
}

// numericValue extracts a float64 from an SNMP variable. Non-numeric
// types report false.
func numericValue(variable gosnmp.SnmpPDU) (float64, bool) {
	switch variable.Type {
	case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.Uinteger32:
		return float64(gosnmp.ToBigInt(variable.Value).Uint64()), true

	case gosnmp.Integer:
		return float64(variable.Value.(int)), true

	case gosnmp.TimeTicks:
		return float64(gosnmp.ToBigInt(variable.Value).Uint64()), true

	case gosnmp.OpaqueFloat:
		return float64(variable.Value.(float32)), true

	case gosnmp.OpaqueDouble:
		return variable.Value.(float64), true

	default:
		return 0, false
	}
}

func newClient(target config.SNMPTargetConfig) *gosnmp.GoSNMP {
	port := target.Port
	if port == 0 {
		port = defaultPort
	}

	timeout := target.TimeoutMs
	if timeout == 0 {
		timeout = defaultTimeoutMs
	}

	retries := target.Retries
	if retries == 0 {
		retries = defaultRetries
	}

	return &gosnmp.GoSNMP{
		Target:    target.Host,
		Port:      port,
		Version:   gosnmp.Version2c,
		Community: target.Community,
		Timeout:   time.Duration(timeout) * time.Millisecond,
		Retries:   retries,
	}
}

// Stats returns adapter counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Polls:          a.polls.Load(),
		PollErrors:     a.pollErrs.Load(),
		SamplesWritten: a.samples.Load(),
	}
}
