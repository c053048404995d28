package series

import (
	"fmt"

	"github.com/xtxerr/scopedb/internal/errors"
)

// Policy controls how out-of-order samples are handled.
type Policy int

const (
	// PolicyReject fails the append for samples older than the last
	// accepted timestamp by more than the tolerance.
	PolicyReject Policy = iota

	// PolicyClamp accepts such samples with their timestamp raised to the
	// last accepted timestamp, preserving level-0 ordering.
	PolicyClamp
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyClamp:
		return "clamp"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePolicy parses a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "reject", "":
		return PolicyReject, nil
	case "clamp":
		return PolicyClamp, nil
	default:
		return PolicyReject, fmt.Errorf("%w: out-of-order policy %q", errors.ErrInvalidConfig, s)
	}
}

// Options configures a series.
type Options struct {
	// Fanout is the number of entries from one level folded into a single
	// bucket at the next level up. Must be at least 2.
	Fanout int

	// Policy selects reject or clamp handling for out-of-order samples.
	Policy Policy

	// Tolerance is the maximum backwards timestamp step, in seconds,
	// accepted without invoking the policy. Accepted stragglers are
	// clamped to the last timestamp so level 0 stays non-decreasing.
	Tolerance float64

	// PercentileEnabled enables DDSketch percentile tracking per bucket.
	PercentileEnabled bool

	// PercentileAccuracy is the DDSketch relative accuracy (0.01 = 1%).
	PercentileAccuracy float64
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Fanout:             8,
		Policy:             PolicyReject,
		Tolerance:          0,
		PercentileEnabled:  false,
		PercentileAccuracy: 0.01,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Fanout < 2 {
		return fmt.Errorf("%w: fanout must be >= 2, got %d", errors.ErrInvalidConfig, o.Fanout)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0", errors.ErrInvalidConfig)
	}
	if o.PercentileEnabled && (o.PercentileAccuracy <= 0 || o.PercentileAccuracy >= 1) {
		return fmt.Errorf("%w: percentile accuracy must be in (0, 1)", errors.ErrInvalidConfig)
	}
	return nil
}
