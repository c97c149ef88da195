// Package storage is the persistent key-value layer. Values are JSON blobs
// wrapped in a versioned envelope so old payloads can be migrated forward.
// The store is deliberately forgiving: a broken backend degrades to defaults
// and failed writes report false, they never panic or error past the boundary.
package storage

import (
	"encoding/json"
	"time"
)

// CurrentVersion is the schema version stamped on every write.
const CurrentVersion = 1

// Store is the persistence contract consumed by the timer, ledger and
// achievement engine. Implementations must write each value as one serialized
// unit so readers never observe a torn state.
type Store interface {
	// Get unmarshals the value at key into out and reports whether a usable
	// value existed. Missing keys, corrupt payloads and unavailable backends
	// all report false; callers fall back to defaults.
	Get(key string, out any) bool

	// Set stores v at key and reports success. A false return means the
	// in-memory value remains authoritative and storage is stale.
	Set(key string, v any) bool

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string)

	// Subscribe registers fn for change notifications, including changes made
	// by other processes sharing the backend. The returned func cancels the
	// subscription.
	Subscribe(fn func(Change)) (cancel func())

	Close() error
}

// Change describes a single key mutation.
type Change struct {
	Key      string
	Removed  bool
	External bool // true when another process wrote the key
}

// QuotaEvent describes a write rejected by the size ceiling.
type QuotaEvent struct {
	Key  string
	Size int64
}

// MigrateFunc transforms a payload written at an older schema version into
// the next version's shape. It is keyed by (storage key, from version).
type MigrateFunc func(data json.RawMessage) (json.RawMessage, error)

// envelope is the on-disk wrapper around every value.
type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

type migrationKey struct {
	key  string
	from int
}
