package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/glanceboard/storekit/internal/telemetry/logger"
)

// badgerValue wraps stored values so they decode back into `any`.
type badgerValue struct {
	V any
}

func init() {
	gob.Register(badgerValue{})
}

// BadgerBackend stores one namespace inside a Badger database shared by the
// manager. Isolation comes from the key prefix "ns/<namespace>/"; values are
// gob-encoded. Durability is per-write, without the full-file rewrites of
// the file backends, so it suits high-churn namespaces.
type BadgerBackend struct {
	namespace string
	prefix    []byte
	db        *badger.DB
	log       logger.Logger
}

// NewBadgerBackend creates a namespace view over a shared Badger DB.
func NewBadgerBackend(namespace string, db *badger.DB, log logger.Logger) *BadgerBackend {
	if log == nil {
		log = logger.Default()
	}
	return &BadgerBackend{
		namespace: namespace,
		prefix:    []byte("ns/" + namespace + "/"),
		db:        db,
		log:       log,
	}
}

func (b *BadgerBackend) dbKey(key string) []byte {
	return append(append([]byte{}, b.prefix...), key...)
}

// Namespace returns the namespace this backend owns.
func (b *BadgerBackend) Namespace() string {
	return b.namespace
}

// Get retrieves a value by key. Read errors other than a missing key are
// logged and reported as absence; modules treat that as "no cached value".
func (b *BadgerBackend) Get(key string) (any, bool) {
	var value any
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.dbKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(raw []byte) error {
			v, err := decodeBadgerValue(raw)
			if err != nil {
				return err
			}
			value = v
			found = true
			return nil
		})
	})
	if err != nil {
		b.log.Error("badger read failed", "namespace", b.namespace, "key", key, "error", err)
		return nil, false
	}
	return value, found
}

// Set stores a value, overwriting unconditionally.
func (b *BadgerBackend) Set(key string, value any) error {
	raw, err := encodeBadgerValue(value)
	if err != nil {
		return storageErr(b.namespace, "set", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.dbKey(key), raw)
	})
	if err != nil {
		return storageErr(b.namespace, "set", err)
	}
	return nil
}

// Delete removes a key. It reports whether the key existed.
func (b *BadgerBackend) Delete(key string) (bool, error) {
	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		dbKey := b.dbKey(key)
		if _, err := txn.Get(dbKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(dbKey)
	})
	if err != nil {
		return false, storageErr(b.namespace, "delete", err)
	}
	return existed, nil
}

// Exists checks if a key exists.
func (b *BadgerBackend) Exists(key string) bool {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(b.dbKey(key))
		return err
	})
	return err == nil
}

// Clear removes all keys in the namespace. Idempotent.
func (b *BadgerBackend) Clear() error {
	keys := b.rawKeys()
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr(b.namespace, "clear", err)
	}
	return nil
}

// Keys returns all keys in the namespace.
func (b *BadgerBackend) Keys() []string {
	raw := b.rawKeys()
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, string(k[len(b.prefix):]))
	}
	return keys
}

// Len returns the number of keys.
func (b *BadgerBackend) Len() int {
	return len(b.rawKeys())
}

// rawKeys snapshots all prefixed database keys in one read transaction.
func (b *BadgerBackend) rawKeys() [][]byte {
	var keys [][]byte
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys
}

// GetMany retrieves the subset of keys that exist.
func (b *BadgerBackend) GetMany(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := b.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// SetMany stores all entries. Fail-fast: every value is encoded before any
// write happens, then all writes go through one transaction.
func (b *BadgerBackend) SetMany(entries map[string]any) error {
	encoded := make(map[string][]byte, len(entries))
	for key, value := range entries {
		raw, err := encodeBadgerValue(value)
		if err != nil {
			return storageErr(b.namespace, "setmany", fmt.Errorf("key %q: %w", key, err))
		}
		encoded[key] = raw
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for key, raw := range encoded {
			if err := txn.Set(b.dbKey(key), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr(b.namespace, "setmany", err)
	}
	return nil
}

// DeleteMany removes the given keys and returns how many existed.
func (b *BadgerBackend) DeleteMany(keys []string) (int, error) {
	deleted := 0
	for _, key := range keys {
		ok, err := b.Delete(key)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

func encodeBadgerValue(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(badgerValue{V: value}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBadgerValue(raw []byte) (any, error) {
	var wrapped badgerValue
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wrapped); err != nil {
		return nil, err
	}
	return wrapped.V, nil
}
