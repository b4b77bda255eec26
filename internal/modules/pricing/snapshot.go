// README: Bundled static fare snapshot, the offline fallback for the config provider.
package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"kiosk/internal/types"
)

// snapshot.json ships inside the terminal image; it is the source of truth
// whenever the backend cannot be reached at boot.
//
//go:embed snapshot.json
var bundledSnapshot []byte

// Snapshot is the versioned static configuration document.
type Snapshot struct {
	Version     int         `json:"version"`
	Stations    []Station   `json:"stations"`
	Pricing     []FareEntry `json:"pricing"`
	MinimumFare types.Money `json:"minimumFare"`
}

// LoadSnapshot reads and validates the snapshot at path, or the bundled one
// when path is empty. A schema violation is a fatal load error for that
// snapshot: the provider must treat initialization as failed rather than
// run with a partial table.
func LoadSnapshot(path string) (Snapshot, error) {
	data := bundledSnapshot
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot: read %s: %w", path, err)
		}
		data = b
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: parse: %w", err)
	}
	if err := snap.validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s Snapshot) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("snapshot: missing or invalid version")
	}
	if len(s.Stations) == 0 {
		return fmt.Errorf("snapshot: no stations")
	}
	seen := make(map[int]bool, len(s.Stations))
	for _, st := range s.Stations {
		if st.ID <= 0 || st.Name == "" {
			return fmt.Errorf("snapshot: malformed station %+v", st)
		}
		if seen[st.ID] {
			return fmt.Errorf("snapshot: duplicate station id %d", st.ID)
		}
		seen[st.ID] = true
	}
	if s.MinimumFare <= 0 {
		return fmt.Errorf("snapshot: minimumFare must be positive")
	}
	for _, e := range s.Pricing {
		if e.Fare <= 0 {
			return fmt.Errorf("snapshot: non-positive fare for stations %d/%d", e.StationA, e.StationB)
		}
		if !seen[e.StationA] || !seen[e.StationB] {
			return fmt.Errorf("snapshot: fare references unknown station %d/%d", e.StationA, e.StationB)
		}
	}
	return nil
}
