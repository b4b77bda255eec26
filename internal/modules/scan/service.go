// README: Scan dispatcher: routes a screen's scan request to the trip engine and shapes the UI outcome.
package scan

import (
	"context"
	"errors"
	"fmt"

	"kiosk/internal/modules/card"
	"kiosk/internal/modules/trip"
	"kiosk/internal/types"
)

// Screen is the UI context a scan arrived from. This package is the only
// place allowed to know screen names; the engine underneath is
// screen-agnostic.
type Screen string

const (
	ScreenEntry        Screen = "entry"
	ScreenExit         Screen = "exit"
	ScreenTopUpScan    Screen = "topup_scan"
	ScreenTopUpPayment Screen = "topup_payment"
	ScreenIssuePayment Screen = "issue_payment"
	ScreenHistory      Screen = "history"
)

type DisplayState string

const (
	DisplayIdle    DisplayState = "idle"
	DisplaySuccess DisplayState = "success"
	DisplayError   DisplayState = "error"
)

// How long a result screen stays up before returning to idle.
const (
	successTimeoutMs = 3000
	errorTimeoutMs   = 5000
)

type Request struct {
	Screen    Screen      `json:"screen"`
	CardUUID  string      `json:"card_uuid"`
	StationID int         `json:"station_id"`
	Amount    types.Money `json:"amount"`
}

// Outcome is what the rendering layer needs to paint the result: nothing in
// it requires knowledge of the engine's internals.
type Outcome struct {
	Accepted bool         `json:"accepted"`
	Display  DisplayState `json:"display_state"`
	Message  string       `json:"message,omitempty"`
	// RecoverableShortfall tells the UI to offer the top-up shortcut with
	// the scanned card preselected.
	RecoverableShortfall bool   `json:"is_recoverable_shortfall"`
	TimeoutMs            int    `json:"timeout_ms,omitempty"`
	CardUUID             string `json:"card_uuid,omitempty"`
}

// Engine is the slice of the trip lifecycle engine the dispatcher consumes.
type Engine interface {
	Enter(ctx context.Context, cmd trip.EnterCommand) (trip.EnterResult, error)
	Exit(ctx context.Context, cmd trip.ExitCommand) (trip.ExitResult, error)
	TopUp(ctx context.Context, cmd trip.TopUpCommand) (card.State, error)
	IssueCard(ctx context.Context, cmd trip.IssueCommand) (card.State, error)
	CardStatus(ctx context.Context, cardUUID string) (card.State, error)
}

type Dispatcher struct {
	engine Engine
	// defaultStationID stands in when a request does not name a station
	// (the terminal knows where it is installed).
	defaultStationID int
}

func NewDispatcher(engine Engine, defaultStationID int) *Dispatcher {
	return &Dispatcher{engine: engine, defaultStationID: defaultStationID}
}

// Dispatch routes the scan by screen context and converts the engine result
// into a UI-facing outcome. Unknown screens are an error outcome, not a
// panic: a stale UI build must not take the terminal down.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	station := req.StationID
	if station == 0 {
		station = d.defaultStationID
	}

	switch req.Screen {
	case ScreenEntry:
		res, err := d.engine.Enter(ctx, trip.EnterCommand{CardUUID: req.CardUUID, StationID: station})
		if err != nil {
			return errorOutcome(err, req.CardUUID)
		}
		return successOutcome(fmt.Sprintf("Welcome aboard. Balance: $%s", res.Card.Balance), res.Card.UUID)

	case ScreenExit:
		res, err := d.engine.Exit(ctx, trip.ExitCommand{CardUUID: req.CardUUID, StationID: station})
		if err != nil {
			return errorOutcome(err, req.CardUUID)
		}
		if !res.FarePaid {
			return successOutcome("No active trip. Exit free of charge.", res.Card.UUID)
		}
		return successOutcome(fmt.Sprintf("Fare $%s charged. Balance: $%s", res.Fare, res.Card.Balance), res.Card.UUID)

	case ScreenTopUpScan, ScreenHistory:
		st, err := d.engine.CardStatus(ctx, req.CardUUID)
		if err != nil {
			return errorOutcome(err, req.CardUUID)
		}
		msg := fmt.Sprintf("Balance: $%s", st.Balance)
		if st.HasActiveTrip() {
			msg += fmt.Sprintf(", trip in progress from station %d", st.ActiveTrip.SourceStationID)
		}
		return successOutcome(msg, st.UUID)

	case ScreenTopUpPayment:
		st, err := d.engine.TopUp(ctx, trip.TopUpCommand{CardUUID: req.CardUUID, Amount: req.Amount})
		if err != nil {
			return errorOutcome(err, req.CardUUID)
		}
		return successOutcome(fmt.Sprintf("Added $%s. New balance: $%s", req.Amount, st.Balance), st.UUID)

	case ScreenIssuePayment:
		st, err := d.engine.IssueCard(ctx, trip.IssueCommand{InitialBalance: req.Amount})
		if err != nil {
			return errorOutcome(err, req.CardUUID)
		}
		return successOutcome(fmt.Sprintf("Card issued with $%s", st.Balance), st.UUID)

	default:
		return Outcome{
			Display:   DisplayError,
			Message:   fmt.Sprintf("unknown screen %q", req.Screen),
			TimeoutMs: errorTimeoutMs,
		}
	}
}

func successOutcome(msg, cardUUID string) Outcome {
	return Outcome{
		Accepted:  true,
		Display:   DisplaySuccess,
		Message:   msg,
		TimeoutMs: successTimeoutMs,
		CardUUID:  cardUUID,
	}
}

func errorOutcome(err error, cardUUID string) Outcome {
	out := Outcome{
		Display:   DisplayError,
		TimeoutMs: errorTimeoutMs,
		CardUUID:  cardUUID,
	}
	var sf *trip.ShortfallError
	switch {
	case errors.As(err, &sf):
		out.Message = fmt.Sprintf("Insufficient balance: need $%s more", sf.Shortfall())
		out.RecoverableShortfall = true
	case errors.Is(err, trip.ErrNoCard):
		out.Message = "No card detected. Please tap again."
	default:
		out.Message = "Something went wrong. Please try again."
	}
	return out
}
