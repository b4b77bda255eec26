// README: Trip lifecycle engine: entry/exit/top-up/issuance with local-first mutations and fire-and-forget backend sync.
package trip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/backend"
	"kiosk/internal/modules/card"
	"kiosk/internal/modules/faillog"
	"kiosk/internal/types"
)

var ErrNoCard = errors.New("no card scanned")

// Backend is the slice of the backend client the engine consumes. Calls are
// made off the tap path and their failures are routed to the sink, never to
// the passenger.
type Backend interface {
	CreateTrip(ctx context.Context, cardUUID string, sourceStationID int) (backend.Trip, error)
	CompleteTrip(ctx context.Context, tripID int64, destinationStationID int, fare types.Money) error
	CreateCard(ctx context.Context, initialBalance types.Money, cardUUID string) (backend.Card, error)
	AddFunds(ctx context.Context, cardID int64, amount types.Money) (backend.Card, error)
	GetCardByUUID(ctx context.Context, cardUUID string) (backend.Card, error)
}

// FareSource answers fare questions from the current table.
type FareSource interface {
	FareBetween(a, b int) types.Money
	MinimumFare() types.Money
}

// Sink receives every backend write that could not complete.
type Sink interface {
	Record(ctx context.Context, typ faillog.OpType, payload any, reason string)
}

// Service is the trip lifecycle engine. The local ledger mutation always
// completes before any backend call is attempted, and is never rolled back
// when a sync fails: the gate already opened or the balance already moved,
// and undoing that would contradict what the passenger experienced.
type Service struct {
	ledger  *card.Store
	fares   FareSource
	backend Backend
	sink    Sink
	// syncTimeout bounds every fire-and-forget backend call so a hung
	// network cannot delay failure capture indefinitely.
	syncTimeout time.Duration

	wg  sync.WaitGroup
	now func() time.Time
}

func NewService(ledger *card.Store, fares FareSource, be Backend, sink Sink, syncTimeout time.Duration) *Service {
	if syncTimeout <= 0 {
		syncTimeout = 3 * time.Second
	}
	return &Service{
		ledger:      ledger,
		fares:       fares,
		backend:     be,
		sink:        sink,
		syncTimeout: syncTimeout,
		now:         time.Now,
	}
}

// Enter handles a tap at an entry gate. The decision is made on local data
// only; the backend trip creation happens after the result is returned.
func (s *Service) Enter(ctx context.Context, cmd EnterCommand) (EnterResult, error) {
	if cmd.CardUUID == "" {
		return EnterResult{}, ErrNoCard
	}
	st, err := s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return EnterResult{}, err
	}

	minimum := s.fares.MinimumFare()
	if st.Balance < minimum {
		return EnterResult{}, &ShortfallError{Required: minimum, Balance: st.Balance}
	}

	// An existing active trip is overwritten: the backend cancels the stale
	// trip on its side when it sees a duplicate entry.
	if err := s.ledger.SetActiveTrip(ctx, cmd.CardUUID, cmd.StationID, s.now()); err != nil {
		return EnterResult{}, err
	}
	st, err = s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return EnterResult{}, err
	}

	s.goSync(func(ctx context.Context) {
		t, err := s.backend.CreateTrip(ctx, cmd.CardUUID, cmd.StationID)
		if err != nil {
			s.sink.Record(ctx, faillog.OpCreateTrip, createTripPayload{
				CardUUID:        cmd.CardUUID,
				SourceStationID: cmd.StationID,
			}, err.Error())
			return
		}
		if err := s.ledger.SetBackendTripID(ctx, cmd.CardUUID, t.ID); err != nil {
			log.Printf("trip: record backend trip id %d for %s: %v", t.ID, cmd.CardUUID, err)
		}
		if t.CardID != 0 {
			if err := s.ledger.SetBackendCardID(ctx, cmd.CardUUID, t.CardID); err != nil {
				log.Printf("trip: record backend card id for %s: %v", cmd.CardUUID, err)
			}
		}
	})

	return EnterResult{Card: st}, nil
}

// Exit handles a tap at an exit gate. A card with no active trip exits
// without charge; an insufficient balance keeps the trip open so the
// passenger can top up and re-tap.
func (s *Service) Exit(ctx context.Context, cmd ExitCommand) (ExitResult, error) {
	if cmd.CardUUID == "" {
		return ExitResult{}, ErrNoCard
	}
	st, err := s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return ExitResult{}, err
	}

	if !st.HasActiveTrip() {
		return ExitResult{Card: st}, nil
	}
	active := *st.ActiveTrip

	fare := s.fares.FareBetween(active.SourceStationID, cmd.StationID)
	if st.Balance < fare {
		return ExitResult{}, &ShortfallError{Required: fare, Balance: st.Balance}
	}

	if err := s.ledger.SetBalance(ctx, cmd.CardUUID, st.Balance.Sub(fare)); err != nil {
		return ExitResult{}, err
	}
	if err := s.ledger.ClearActiveTrip(ctx, cmd.CardUUID); err != nil {
		return ExitResult{}, err
	}
	st, err = s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return ExitResult{}, err
	}

	payload := completeTripPayload{
		TripID:               active.BackendTripID,
		CardUUID:             cmd.CardUUID,
		DestinationStationID: cmd.StationID,
		FinalCost:            fare,
	}
	if active.BackendTripID == 0 {
		// The entry never reached the backend, so there is no trip to
		// complete remotely; the whole journey goes to the sink.
		s.sink.Record(ctx, faillog.OpCompleteTrip, payload, "no backend trip id: entry was recorded offline")
	} else {
		s.goSync(func(ctx context.Context) {
			if err := s.backend.CompleteTrip(ctx, active.BackendTripID, cmd.StationID, fare); err != nil {
				s.sink.Record(ctx, faillog.OpCompleteTrip, payload, err.Error())
			}
		})
	}

	return ExitResult{Card: st, Fare: fare, FarePaid: true}, nil
}

// TopUp credits the card locally and syncs the credit in the background.
// Amount limits are a UI concern; this layer accepts any positive amount.
func (s *Service) TopUp(ctx context.Context, cmd TopUpCommand) (card.State, error) {
	if cmd.CardUUID == "" {
		return card.State{}, ErrNoCard
	}
	if cmd.Amount <= 0 {
		return card.State{}, fmt.Errorf("top-up amount must be positive, got %s", cmd.Amount)
	}
	st, err := s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return card.State{}, err
	}
	if err := s.ledger.SetBalance(ctx, cmd.CardUUID, st.Balance.Add(cmd.Amount)); err != nil {
		return card.State{}, err
	}
	st, err = s.ledger.Read(ctx, cmd.CardUUID)
	if err != nil {
		return card.State{}, err
	}

	backendCardID := st.BackendCardID
	s.goSync(func(ctx context.Context) {
		payload := addFundsPayload{CardUUID: cmd.CardUUID, BackendCardID: backendCardID, Amount: cmd.Amount}
		id := backendCardID
		if id == 0 {
			c, err := s.backend.GetCardByUUID(ctx, cmd.CardUUID)
			if err != nil {
				s.sink.Record(ctx, faillog.OpAddFunds, payload, "resolve backend card id: "+err.Error())
				return
			}
			id = c.ID
			if err := s.ledger.SetBackendCardID(ctx, cmd.CardUUID, id); err != nil {
				log.Printf("trip: record backend card id for %s: %v", cmd.CardUUID, err)
			}
		}
		if _, err := s.backend.AddFunds(ctx, id, cmd.Amount); err != nil {
			payload.BackendCardID = id
			s.sink.Record(ctx, faillog.OpAddFunds, payload, err.Error())
		}
	})

	return st, nil
}

// IssueCard creates a new card locally with a fresh identifier and syncs the
// issuance in the background.
func (s *Service) IssueCard(ctx context.Context, cmd IssueCommand) (card.State, error) {
	if cmd.InitialBalance < 0 {
		return card.State{}, fmt.Errorf("initial balance must not be negative, got %s", cmd.InitialBalance)
	}
	cardUUID := uuid.NewString()
	st, err := s.ledger.Create(ctx, cardUUID, cmd.InitialBalance)
	if err != nil {
		return card.State{}, err
	}

	s.goSync(func(ctx context.Context) {
		c, err := s.backend.CreateCard(ctx, cmd.InitialBalance, cardUUID)
		if err != nil {
			s.sink.Record(ctx, faillog.OpCreateCard, createCardPayload{
				UUID:           cardUUID,
				InitialBalance: cmd.InitialBalance,
			}, err.Error())
			return
		}
		if err := s.ledger.SetBackendCardID(ctx, cardUUID, c.ID); err != nil {
			log.Printf("trip: record backend card id for %s: %v", cardUUID, err)
		}
	})

	return st, nil
}

// CardStatus is the read-only accessor for the UI's status and history
// screens. No mutation path for UI code exists beyond the commands above.
func (s *Service) CardStatus(ctx context.Context, cardUUID string) (card.State, error) {
	if cardUUID == "" {
		return card.State{}, ErrNoCard
	}
	return s.ledger.Read(ctx, cardUUID)
}

// goSync runs a backend call off the tap path. The only externally visible
// effect of the goroutine is either silent success or a sink record.
func (s *Service) goSync(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until all in-flight sync attempts have finished. Used at
// shutdown so captured failures are persisted before the process exits.
func (s *Service) Wait() {
	s.wg.Wait()
}
