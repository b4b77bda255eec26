// README: Fare table model: station-pair fares with a system-wide minimum.
package pricing

import (
	"fmt"

	"kiosk/internal/types"
)

type Station struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FareEntry prices travel between an unordered pair of stations.
type FareEntry struct {
	StationA int         `json:"station_a_id"`
	StationB int         `json:"station_b_id"`
	Fare     types.Money `json:"price"`
}

// pair is the canonical unordered station pair: lower id first.
type pair struct {
	lo, hi int
}

func pairOf(a, b int) pair {
	if a > b {
		a, b = b, a
	}
	return pair{lo: a, hi: b}
}

// Table is an immutable fare table for one session. Lookups for a pair with
// no entry resolve to the minimum fare, never to an error.
type Table struct {
	entries map[pair]types.Money
	minimum types.Money
}

// NewTable builds a table from entries. A duplicate unordered pair or a
// non-positive minimum fare is a construction error.
func NewTable(entries []FareEntry, minimum types.Money) (*Table, error) {
	if minimum <= 0 {
		return nil, fmt.Errorf("fare table: minimum fare must be positive, got %s", minimum)
	}
	m := make(map[pair]types.Money, len(entries))
	for _, e := range entries {
		if e.StationA == e.StationB {
			return nil, fmt.Errorf("fare table: self-pair for station %d", e.StationA)
		}
		p := pairOf(e.StationA, e.StationB)
		if _, dup := m[p]; dup {
			return nil, fmt.Errorf("fare table: duplicate entry for stations %d/%d", p.lo, p.hi)
		}
		m[p] = e.Fare
	}
	return &Table{entries: m, minimum: minimum}, nil
}

// FareBetween returns the fare for the unordered pair (a, b), or the minimum
// fare when the pair has no entry. Symmetric and pure.
func (t *Table) FareBetween(a, b int) types.Money {
	if fare, ok := t.entries[pairOf(a, b)]; ok {
		return fare
	}
	return t.minimum
}

func (t *Table) Minimum() types.Money { return t.minimum }

func (t *Table) Len() int { return len(t.entries) }
