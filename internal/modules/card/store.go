// README: Card ledger store over the local key-value surface.
package card

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kiosk/internal/kv"
	"kiosk/internal/types"
)

const keyPrefix = "card:"

// Store is the device-local card ledger. All operations are synchronous and
// local; no network access happens here. Balance validation is the trip
// engine's job, not this layer's.
//
// The mutex serializes read-modify-write cycles: sync goroutines write back
// backend ids concurrently with tap-path debits, and an interleaved update
// must never restore a state read before another writer committed.
type Store struct {
	mu sync.Mutex
	kv kv.Store
	// defaultBalance seeds a record synthesized for a never-seen card.
	defaultBalance types.Money
	now            func() time.Time
}

func NewStore(store kv.Store, defaultBalance types.Money) *Store {
	return &Store{kv: store, defaultBalance: defaultBalance, now: time.Now}
}

// Read returns the card's state, synthesizing a new record with the policy
// default balance the first time a uuid is seen.
func (s *Store) Read(ctx context.Context, uuid string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, uuid)
}

func (s *Store) read(ctx context.Context, uuid string) (State, error) {
	data, ok, err := s.kv.Get(ctx, keyPrefix+uuid)
	if err != nil {
		return State{}, fmt.Errorf("card ledger: read %s: %w", uuid, err)
	}
	if !ok {
		st := State{
			UUID:        uuid,
			Balance:     s.defaultBalance,
			Synthesized: true,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.write(ctx, st); err != nil {
			return State{}, err
		}
		return st, nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("card ledger: decode %s: %w", uuid, err)
	}
	return st, nil
}

// Create stores a brand-new card record with a caller-chosen balance,
// overwriting any previous record under the same uuid.
func (s *Store) Create(ctx context.Context, uuid string, balance types.Money) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		UUID:      uuid,
		Balance:   balance,
		CreatedAt: s.now().UTC(),
	}
	if err := s.write(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// SetBalance overwrites the balance. The caller has already validated
// non-negativity.
func (s *Store) SetBalance(ctx context.Context, uuid string, balance types.Money) error {
	return s.update(ctx, uuid, func(st *State) {
		st.Balance = balance
	})
}

// SetActiveTrip records the entry; an existing active trip is overwritten
// silently (the entry flow decides about duplicates, the ledger does not).
func (s *Store) SetActiveTrip(ctx context.Context, uuid string, sourceStationID int, enteredAt time.Time) error {
	return s.update(ctx, uuid, func(st *State) {
		st.ActiveTrip = &ActiveTrip{SourceStationID: sourceStationID, EnteredAt: enteredAt.UTC()}
	})
}

// SetBackendTripID attaches the backend's trip id to the active trip, if it
// is still the same entry. Called from the async sync path.
func (s *Store) SetBackendTripID(ctx context.Context, uuid string, tripID int64) error {
	return s.update(ctx, uuid, func(st *State) {
		if st.ActiveTrip != nil {
			st.ActiveTrip.BackendTripID = tripID
		}
	})
}

// SetBackendCardID records the backend's numeric id for this card.
func (s *Store) SetBackendCardID(ctx context.Context, uuid string, cardID int64) error {
	return s.update(ctx, uuid, func(st *State) {
		st.BackendCardID = cardID
		st.Synthesized = false
	})
}

func (s *Store) ClearActiveTrip(ctx context.Context, uuid string) error {
	return s.update(ctx, uuid, func(st *State) {
		st.ActiveTrip = nil
	})
}

func (s *Store) update(ctx context.Context, uuid string, mutate func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read(ctx, uuid)
	if err != nil {
		return err
	}
	mutate(&st)
	return s.write(ctx, st)
}

func (s *Store) write(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("card ledger: encode %s: %w", st.UUID, err)
	}
	if err := s.kv.Set(ctx, keyPrefix+st.UUID, data); err != nil {
		return fmt.Errorf("card ledger: write %s: %w", st.UUID, err)
	}
	return nil
}
