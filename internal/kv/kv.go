// README: Small persisted key-value surface backing the card ledger and the failure backlog.
package kv

import "context"

// Store is the device-local persistence surface: small JSON blobs under
// string keys, read and written whole. Implementations must be safe for the
// terminal's single-threaded tap loop plus background sync goroutines.
type Store interface {
	// Get returns the stored blob and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
