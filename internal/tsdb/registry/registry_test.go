package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/xtxerr/scopedb/internal/errors"
	"github.com/xtxerr/scopedb/internal/tsdb/series"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(series.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := newTestRegistry(t)

	a, err := r.GetOrCreate("cpu")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b, err := r.GetOrCreate("cpu")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if a != b {
		t.Error("same name must return the same series")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 channel, got %d", r.Len())
	}
}

func TestRegistry_EmptyNameRejected(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.GetOrCreate("")
	if !errors.Is(err, errors.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Lookup("missing")
	if !errors.Is(err, errors.ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}

	// Lookup must not create the channel.
	if r.Len() != 0 {
		t.Errorf("Lookup created a channel, len=%d", r.Len())
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := r.GetOrCreate(name); err != nil {
			t.Fatalf("GetOrCreate %q: %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	results := make([]*series.Series, 16)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate("shared")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate returned distinct series")
		}
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 channel, got %d", r.Len())
	}
}

func TestRegistry_ManyChannels(t *testing.T) {
	r := newTestRegistry(t)

	for i := 0; i < 100; i++ {
		if _, err := r.GetOrCreate(fmt.Sprintf("ch-%03d", i)); err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	}
	if r.Len() != 100 {
		t.Errorf("expected 100 channels, got %d", r.Len())
	}
}
