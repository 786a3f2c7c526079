package driven

import "time"

// SessionStore is the key-value store backing wizard session state.
// For a single-node deployment an in-memory map suffices; multi-node
// deployments substitute a shared cache. Entries expire after their
// TTL.
type SessionStore interface {
	// Put stores a value under the session key with a TTL.
	Put(key string, value []byte, ttl time.Duration) error

	// Get retrieves a value. Returns domain.ErrNotFound for missing or
	// expired keys.
	Get(key string) ([]byte, error)

	// Delete removes a key.
	Delete(key string) error
}
