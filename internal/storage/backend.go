package storage

// Kind selects a backend implementation.
type Kind string

const (
	// KindMemory is a process-local, non-persistent backend.
	KindMemory Kind = "memory"

	// KindJSONFile persists the namespace to a human-inspectable JSON file.
	// Values are restricted to JSON-interchangeable data; string fields
	// under keys ending in "_at" are revived as time.Time on load.
	KindJSONFile Kind = "json"

	// KindGobFile persists the namespace to a binary gob file and accepts
	// any gob-encodable value, including registered custom types.
	KindGobFile Kind = "gob"

	// KindBadger stores the namespace as a key prefix in a Badger database
	// shared across namespaces, for high-churn data where full-file
	// rewrites are wasteful.
	KindBadger Kind = "badger"
)

// Backend is the uniform key-value contract over a single namespace.
//
// Implementations are safe for concurrent use. A missing key is reported
// through the boolean result, never as an error; errors are reserved for
// irrecoverable I/O and serialization failures (*StorageError).
//
// Batch operations are conveniences over the single-key operations and
// carry no cross-key atomicity guarantee, except that SetMany is fail-fast:
// it validates every value's serializability before applying any of them.
type Backend interface {
	// Namespace returns the namespace this backend owns.
	Namespace() string

	// Get retrieves a value by key.
	Get(key string) (any, bool)

	// Set stores a value, overwriting unconditionally.
	Set(key string, value any) error

	// Delete removes a key. It reports whether the key existed.
	Delete(key string) (bool, error)

	// Exists checks if a key exists.
	Exists(key string) bool

	// Clear removes all keys in the namespace. Idempotent.
	Clear() error

	// Keys returns a consistent snapshot of all keys, in no particular order.
	Keys() []string

	// Len returns the number of keys.
	Len() int

	// GetMany retrieves the subset of keys that exist.
	GetMany(keys []string) map[string]any

	// SetMany stores all entries, rejecting the whole call if any value
	// fails serialization validation.
	SetMany(entries map[string]any) error

	// DeleteMany removes the given keys and returns how many existed.
	DeleteMany(keys []string) (int, error)
}

// Flusher is implemented by backends that batch writes and can be forced
// to sync their final state to disk.
type Flusher interface {
	Flush() error
}
