// README: Config provider: backend-or-snapshot fare configuration, plus the fare resolver.
package pricing

import (
	"context"
	"log"
	"sync"

	"kiosk/internal/types"
)

// Backend is the slice of the backend client this module consumes.
type Backend interface {
	ListStations(ctx context.Context) ([]Station, error)
	FareMatrix(ctx context.Context) ([]FareEntry, error)
	MinimumFare(ctx context.Context) (types.Money, error)
}

// view is one immutable configuration generation. Re-initialization swaps in
// a fresh view; callers that cached the previous Table keep their copy.
type view struct {
	stations       []Station
	table          *Table
	startedOffline bool
}

// Provider hands the rest of the terminal its fare configuration. After
// Initialize has run once the accessors never fail and never return empty;
// before Initialize they degrade silently to the bundled snapshot so a tap
// is never blocked on configuration.
type Provider struct {
	backend      Backend
	snapshotPath string

	mu      sync.RWMutex
	current *view
}

func NewProvider(backend Backend, snapshotPath string) *Provider {
	return &Provider{backend: backend, snapshotPath: snapshotPath}
}

// Initialize pulls stations, the fare matrix, and the minimum fare from the
// backend in parallel. All three must succeed; any failure falls back to the
// static snapshot with StartedOffline set. Safe to call again: a later
// success replaces an offline view with a backend-built one.
func (p *Provider) Initialize(ctx context.Context) error {
	var (
		stations []Station
		entries  []FareEntry
		minimum  types.Money

		wg   sync.WaitGroup
		errs [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		stations, errs[0] = p.backend.ListStations(ctx)
	}()
	go func() {
		defer wg.Done()
		entries, errs[1] = p.backend.FareMatrix(ctx)
	}()
	go func() {
		defer wg.Done()
		minimum, errs[2] = p.backend.MinimumFare(ctx)
	}()
	wg.Wait()

	// Partial success is not accepted: a table mixing backend rows with
	// snapshot rows could price a pair with a stale entry.
	for _, err := range errs {
		if err != nil {
			log.Printf("config: backend fetch failed, using static snapshot: %v", err)
			return p.loadSnapshot(true)
		}
	}
	if len(stations) == 0 {
		log.Printf("config: backend returned no stations, using static snapshot")
		return p.loadSnapshot(true)
	}

	table, err := NewTable(entries, minimum)
	if err != nil {
		log.Printf("config: backend fare data rejected, using static snapshot: %v", err)
		return p.loadSnapshot(true)
	}

	p.install(&view{stations: stations, table: table, startedOffline: false})
	return nil
}

// loadSnapshot installs the static snapshot as the current view.
func (p *Provider) loadSnapshot(offline bool) error {
	snap, err := LoadSnapshot(p.snapshotPath)
	if err != nil {
		return err
	}
	table, err := NewTable(snap.Pricing, snap.MinimumFare)
	if err != nil {
		return err
	}
	p.install(&view{stations: snap.Stations, table: table, startedOffline: offline})
	return nil
}

func (p *Provider) install(v *view) {
	p.mu.Lock()
	p.current = v
	p.mu.Unlock()
}

// ensure returns the current view, lazily loading the snapshot when
// Initialize has never run. The bundled snapshot is compiled in and
// validated at build time of the image, so a load failure here is a
// programming error worth crashing on.
func (p *Provider) ensure() *view {
	p.mu.RLock()
	v := p.current
	p.mu.RUnlock()
	if v != nil {
		return v
	}
	if err := p.loadSnapshot(true); err != nil {
		log.Fatalf("config: bundled snapshot unusable: %v", err)
	}
	p.mu.RLock()
	v = p.current
	p.mu.RUnlock()
	return v
}

func (p *Provider) Stations() []Station {
	return p.ensure().stations
}

// Table returns the current immutable fare table.
func (p *Provider) Table() *Table {
	return p.ensure().table
}

func (p *Provider) MinimumFare() types.Money {
	return p.ensure().table.Minimum()
}

// FareBetween resolves the fare for an unordered station pair against the
// current table, defaulting to the minimum fare for unknown pairs.
func (p *Provider) FareBetween(a, b int) types.Money {
	return p.ensure().table.FareBetween(a, b)
}

// StartedOffline reports whether the current view came from the static
// snapshot. Diagnostics only; pricing never branches on it.
func (p *Provider) StartedOffline() bool {
	return p.ensure().startedOffline
}
