// Package registry maps channel names to their series. It is an explicit
// object with its own lifecycle, created at process start and passed by
// reference, so multiple independent instances can coexist in tests.
//
// Write paths create channels on first use via GetOrCreate; read paths use
// Lookup, which fails on a missing channel instead of silently creating
// an empty series. Entries are never removed here; eviction is an
// external concern.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/series"
	"github.com/xtxerr/scopedb/internal/validation"
)

// Registry maps channel name to series.
type Registry struct {
	mu     sync.RWMutex
	opts   series.Options
	series map[string]*series.Series
}

// New creates an empty registry; every created series inherits opts.
func New(opts series.Options) (*Registry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		opts:   opts,
		series: make(map[string]*series.Series),
	}, nil
}

// GetOrCreate returns the series for name, creating an empty one on first
// reference. This is the write-path entry point.
func (r *Registry) GetOrCreate(name string) (*series.Series, error) {
	if err := validation.ValidateChannel(name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	s, ok := r.series[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.series[name]; ok {
		return s, nil
	}
	s = series.MustNew(r.opts)
	r.series[name] = s
	return s, nil
}

// Lookup returns the series for name, or ErrUnknownChannel if it was
// never created. This is the read-path entry point.
func (r *Registry) Lookup(name string) (*series.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownChannel, name)
	}
	return s, nil
}

// Names returns the sorted list of channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.series)
}
