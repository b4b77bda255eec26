// README: Durable failure sink: persists backend writes that could not complete and exports them for pickup.
package faillog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/kv"
)

const backlogKey = "failed_operations"

// persistTimeout bounds the sink's own storage writes, independent of
// whatever context the failed backend call was running under.
const persistTimeout = 5 * time.Second

// Sink captures backend writes that failed, persists them on the local
// key-value surface, and drops export artifacts for out-of-band pickup.
// Nothing here is retried automatically; replay is an operator concern.
type Sink struct {
	kv      kv.Store
	kioskID string
	// cap bounds the persisted backlog; oldest entries are evicted first.
	cap       int
	exportDir string
	now       func() time.Time
}

func NewSink(store kv.Store, kioskID string, retentionCap int, exportDir string) *Sink {
	if retentionCap <= 0 {
		retentionCap = 200
	}
	return &Sink{kv: store, kioskID: kioskID, cap: retentionCap, exportDir: exportDir, now: time.Now}
}

// Record persists one failed operation. Persist or export trouble is logged
// and swallowed: a sink failure must never block the ledger or the gate.
// The passenger's local transaction already succeeded by the time this runs.
func (s *Sink) Record(ctx context.Context, typ OpType, payload any, reason string) {
	// The incoming context usually belongs to the backend call that just
	// failed; when that call timed out it is already expired here.
	// Persistence runs under its own deadline so the record cannot share
	// the failed call's fate.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("faillog: marshal %s payload: %v", typ, err)
		raw = []byte("{}")
	}
	op := FailedOperation{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		KioskID:   s.kioskID,
		Type:      typ,
		Payload:   raw,
		Reason:    reason,
	}

	backlog, err := s.load(ctx)
	if err != nil {
		// Never overwrite the persisted backlog with a partial batch: the
		// blob still holds earlier operations this read could not see.
		// The new record goes out through the export path only.
		log.Printf("faillog: load backlog: %v; skipping merged persist for %s %s", err, typ, op.ID)
		if err := s.export([]FailedOperation{op}); err != nil {
			log.Printf("faillog: export: %v", err)
		}
		return
	}
	backlog = append(backlog, op)
	if len(backlog) > s.cap {
		evicted := backlog[:len(backlog)-s.cap]
		for _, e := range evicted {
			log.Printf("faillog: retention cap %d exceeded, dropping %s %s from %s", s.cap, e.Type, e.ID, e.Timestamp.Format(time.RFC3339))
		}
		backlog = backlog[len(backlog)-s.cap:]
	}
	if err := s.store(ctx, backlog); err != nil {
		log.Printf("faillog: persist backlog: %v", err)
	}
	log.Printf("faillog: recorded %s (%s): %s", typ, op.ID, reason)

	if err := s.export(backlog); err != nil {
		log.Printf("faillog: export: %v", err)
	}
}

// ExportAll returns the whole persisted backlog. Idempotent: repeated calls
// without an intervening Record return the same content.
func (s *Sink) ExportAll(ctx context.Context) ([]FailedOperation, error) {
	return s.load(ctx)
}

// Clear wipes the backlog. Operator-invoked only, after out-of-band
// confirmation that the exported operations were reconciled.
func (s *Sink) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, backlogKey)
}

func (s *Sink) load(ctx context.Context) ([]FailedOperation, error) {
	data, ok, err := s.kv.Get(ctx, backlogKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ops []FailedOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("decode backlog: %w", err)
	}
	return ops, nil
}

func (s *Sink) store(ctx context.Context, ops []FailedOperation) error {
	data, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, backlogKey, data)
}

// export writes the current backlog as a timestamped artifact for manual
// pickup. Best effort only.
func (s *Sink) export(ops []FailedOperation) error {
	if s.exportDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("failed_operations_%s.json", s.now().UTC().Format("20060102T150405Z"))
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.exportDir, name), data, 0o644)
}
