// README: Local card ledger model: balance and at-most-one active trip per card.
package card

import (
	"time"

	"kiosk/internal/types"
)

// ActiveTrip is the record of an unfinished journey: where and when the card
// entered, plus the backend trip id once the fire-and-forget create call has
// reported back. BackendTripID stays zero while the entry is only local.
type ActiveTrip struct {
	SourceStationID int       `json:"source_station_id"`
	EnteredAt       time.Time `json:"entered_at"`
	BackendTripID   int64     `json:"backend_trip_id,omitempty"`
}

// State is the terminal's working truth for one card. The backend is the
// long-term system of record; this record exists for instant passenger
// feedback at the gate.
type State struct {
	UUID    string      `json:"uuid"`
	Balance types.Money `json:"balance"`
	// BackendCardID is the backend's numeric id for this card, learned from
	// sync responses; zero until known.
	BackendCardID int64 `json:"backend_card_id,omitempty"`
	// Synthesized marks a record invented on first sight of an unknown card
	// so reconciliation can tell it from a backend-confirmed balance.
	Synthesized bool        `json:"synthesized,omitempty"`
	ActiveTrip  *ActiveTrip `json:"active_trip,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (s State) HasActiveTrip() bool { return s.ActiveTrip != nil }
