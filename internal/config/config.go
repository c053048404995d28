// Package config provides YAML configuration for the scopedb daemon and
// its components.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete scopedb configuration.
type Config struct {
	// TSDB configures the in-memory time-series store.
	TSDB TSDBConfig `yaml:"tsdb"`

	// Server configures the TCP sample ingest listener.
	Server ServerConfig `yaml:"server"`

	// Snapshot configures the periodic Parquet snapshotter.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Adapters configures built-in sample source adapters.
	Adapters AdaptersConfig `yaml:"adapters"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`
}

// TSDBConfig configures the store core.
type TSDBConfig struct {
	// Fanout is the number of entries folded into one bucket at the next
	// zoom level up. Trades memory overhead against level count.
	Fanout int `yaml:"fanout"`

	// OutOfOrder configures handling of backwards timestamps.
	OutOfOrder OutOfOrderConfig `yaml:"out_of_order"`

	// Features configures optional features.
	Features FeaturesConfig `yaml:"features"`

	// Query configures query defaults.
	Query QueryConfig `yaml:"query"`
}

// OutOfOrderConfig configures handling of backwards timestamps.
type OutOfOrderConfig struct {
	// Policy is "reject" or "clamp".
	Policy string `yaml:"policy"`

	// ToleranceSec is the maximum backwards step accepted without
	// invoking the policy, in seconds.
	ToleranceSec float64 `yaml:"tolerance_sec"`
}

// FeaturesConfig configures optional features.
type FeaturesConfig struct {
	// Percentile configures DDSketch percentile calculation.
	Percentile PercentileConfig `yaml:"percentile"`
}

// PercentileConfig configures DDSketch percentile calculation.
type PercentileConfig struct {
	// Enabled enables per-bucket percentile tracking.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// QueryConfig configures query defaults.
type QueryConfig struct {
	// DefaultPointBudget is used when a caller passes no budget.
	DefaultPointBudget int `yaml:"default_point_budget"`

	// MaxPointBudget caps caller-supplied budgets.
	MaxPointBudget int `yaml:"max_point_budget"`
}

// ServerConfig configures the TCP ingest listener.
type ServerConfig struct {
	// Listen is the listen address.
	Listen string `yaml:"listen"`

	// MaxMessageSize limits framed message size to prevent OOM.
	MaxMessageSize int `yaml:"max_message_size"`

	// ReadTimeout is the per-connection idle read timeout.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// SnapshotConfig configures the periodic Parquet snapshotter.
type SnapshotConfig struct {
	// Enabled enables periodic snapshots.
	Enabled bool `yaml:"enabled"`

	// Dir is the snapshot output directory.
	Dir string `yaml:"dir"`

	// Interval is the snapshot interval.
	Interval time.Duration `yaml:"interval"`

	// Workers is the number of channels snapshotted in parallel.
	Workers int `yaml:"workers"`

	// Compression configures the Parquet codec.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures Parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// AdaptersConfig configures built-in sample source adapters.
type AdaptersConfig struct {
	// SNMP lists SNMP polling targets feeding channels.
	SNMP []SNMPTargetConfig `yaml:"snmp"`
}

// SNMPTargetConfig configures one SNMP polling target.
type SNMPTargetConfig struct {
	// Host is the SNMP agent address.
	Host string `yaml:"host"`

	// Port is the SNMP agent port (default 161).
	Port uint16 `yaml:"port"`

	// Community is the SNMPv2c community string.
	Community string `yaml:"community"`

	// Interval is the polling interval.
	Interval time.Duration `yaml:"interval"`

	// TimeoutMs is the per-request timeout in milliseconds.
	TimeoutMs uint32 `yaml:"timeout_ms"`

	// Retries is the per-request retry count.
	Retries int `yaml:"retries"`

	// OIDs maps polled OIDs to channel names.
	OIDs []SNMPOIDConfig `yaml:"oids"`
}

// SNMPOIDConfig maps one OID to a channel.
type SNMPOIDConfig struct {
	// OID is the numeric object identifier to poll.
	OID string `yaml:"oid"`

	// Channel is the destination channel name.
	Channel string `yaml:"channel"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// JSON switches output to JSON format.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TSDB: TSDBConfig{
			Fanout: 8,
			OutOfOrder: OutOfOrderConfig{
				Policy:       "reject",
				ToleranceSec: 0,
			},
			Features: FeaturesConfig{
				Percentile: PercentileConfig{
					Enabled:  false,
					Accuracy: 0.01,
				},
			},
			Query: QueryConfig{
				DefaultPointBudget: 1000,
				MaxPointBudget:     100000,
			},
		},
		Server: ServerConfig{
			Listen:         "0.0.0.0:9317",
			MaxMessageSize: 16 * 1024 * 1024, // 16MB
			ReadTimeout:    5 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Enabled:  false,
			Dir:      "/var/lib/scopedb/snapshots",
			Interval: 10 * time.Minute,
			Workers:  4,
			Compression: CompressionConfig{
				Algorithm: "zstd",
				Level:     3,
			},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.TSDB.Fanout < 2 {
		return fmt.Errorf("tsdb.fanout must be >= 2, got %d", c.TSDB.Fanout)
	}

	switch c.TSDB.OutOfOrder.Policy {
	case "reject", "clamp", "":
	default:
		return fmt.Errorf("tsdb.out_of_order.policy must be reject or clamp, got %q", c.TSDB.OutOfOrder.Policy)
	}

	if c.TSDB.OutOfOrder.ToleranceSec < 0 {
		return fmt.Errorf("tsdb.out_of_order.tolerance_sec must be >= 0")
	}

	if c.TSDB.Features.Percentile.Enabled {
		acc := c.TSDB.Features.Percentile.Accuracy
		if acc <= 0 || acc >= 1 {
			return fmt.Errorf("tsdb.features.percentile.accuracy must be in (0, 1), got %v", acc)
		}
	}

	if c.TSDB.Query.DefaultPointBudget < 1 {
		return fmt.Errorf("tsdb.query.default_point_budget must be >= 1")
	}
	if c.TSDB.Query.MaxPointBudget < c.TSDB.Query.DefaultPointBudget {
		return fmt.Errorf("tsdb.query.max_point_budget must be >= default_point_budget")
	}

	if c.Server.MaxMessageSize <= 0 {
		return fmt.Errorf("server.max_message_size must be > 0")
	}

	if c.Snapshot.Enabled {
		if c.Snapshot.Dir == "" {
			return fmt.Errorf("snapshot.dir is required when snapshots are enabled")
		}
		if c.Snapshot.Interval <= 0 {
			return fmt.Errorf("snapshot.interval must be > 0")
		}
		if c.Snapshot.Workers < 1 {
			return fmt.Errorf("snapshot.workers must be >= 1")
		}
	}

	for i, target := range c.Adapters.SNMP {
		if target.Host == "" {
			return fmt.Errorf("adapters.snmp[%d].host is required", i)
		}
		if target.Community == "" {
			return fmt.Errorf("adapters.snmp[%d].community is required (refusing to use insecure default)", i)
		}
		if target.Interval <= 0 {
			return fmt.Errorf("adapters.snmp[%d].interval must be > 0", i)
		}
		if len(target.OIDs) == 0 {
			return fmt.Errorf("adapters.snmp[%d].oids must not be empty", i)
		}
		for j, oid := range target.OIDs {
			if oid.OID == "" || oid.Channel == "" {
				return fmt.Errorf("adapters.snmp[%d].oids[%d] requires oid and channel", i, j)
			}
		}
	}

	return nil
}
