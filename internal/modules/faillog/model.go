// README: Failed backend operation records kept for manual reconciliation.
package faillog

import (
	"encoding/json"
	"time"
)

type OpType string

const (
	OpCreateTrip   OpType = "CREATE_TRIP"
	OpCompleteTrip OpType = "COMPLETE_TRIP"
	OpCreateCard   OpType = "CREATE_CARD"
	OpAddFunds     OpType = "ADD_FUNDS"
)

// FailedOperation is one backend write that could not complete. The id
// doubles as an idempotency key for whoever replays the backlog.
type FailedOperation struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	KioskID   string          `json:"kiosk_id"`
	Type      OpType          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
}
