// README: Trip lifecycle commands, results, and sync payloads.
package trip

import (
	"fmt"

	"kiosk/internal/modules/card"
	"kiosk/internal/types"
)

// A card at this terminal is either idle or riding; completion returns it to
// idle. Rejected entries never leave idle. Cancellation is a backend-only
// concept and does not exist at the gate.

type EnterCommand struct {
	CardUUID  string
	StationID int
}

type EnterResult struct {
	Card card.State
}

type ExitCommand struct {
	CardUUID  string
	StationID int
}

type ExitResult struct {
	Card card.State
	// Fare is the amount debited. FarePaid is false for a no-fare exit
	// (no active trip on the card).
	Fare     types.Money
	FarePaid bool
}

type TopUpCommand struct {
	CardUUID string
	Amount   types.Money
}

type IssueCommand struct {
	InitialBalance types.Money
}

// ShortfallError is the passenger-facing "insufficient balance" condition.
// It is an expected outcome with a recovery path (top up), not a system
// error.
type ShortfallError struct {
	Required types.Money
	Balance  types.Money
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s (short %s)", e.Balance, e.Required, e.Shortfall())
}

// Shortfall is exactly Required - Balance.
func (e *ShortfallError) Shortfall() types.Money {
	return e.Required.Sub(e.Balance)
}

// Sync payloads mirror the backend request bodies so a recorded failed
// operation can be replayed against the backend as-is.

type createTripPayload struct {
	CardUUID        string `json:"card_uuid"`
	SourceStationID int    `json:"source_station_id"`
}

type completeTripPayload struct {
	TripID               int64       `json:"trip_id,omitempty"`
	CardUUID             string      `json:"card_uuid"`
	DestinationStationID int         `json:"destination_station_id"`
	FinalCost            types.Money `json:"final_cost"`
}

type createCardPayload struct {
	UUID           string      `json:"uuid"`
	InitialBalance types.Money `json:"initial_balance"`
}

type addFundsPayload struct {
	CardUUID      string      `json:"card_uuid"`
	BackendCardID int64       `json:"backend_card_id,omitempty"`
	Amount        types.Money `json:"amount"`
}
