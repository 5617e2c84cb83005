package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/glanceboard/storekit/internal/telemetry/logger"
	"github.com/glanceboard/storekit/internal/telemetry/metric"
	"github.com/glanceboard/storekit/pkg/aead"
)

// File permissions follow the usual private-data convention.
const (
	fileMode = 0600
	dirMode  = 0750
)

// FileBackend persists one namespace's key-value map as a single file.
// The serialization strategy is pluggable: JSON for structured values,
// gob for opaque objects.
//
// Every mutation rewrites the whole file via temp-file + fsync + atomic
// rename, so a crash mid-write leaves the previous valid content intact.
// An optional debounce batches rewrites under sustained write pressure;
// Flush and Close always force the final state to disk.
type FileBackend struct {
	namespace string
	path      string
	codec     codec
	cipher    *aead.Cipher
	log       logger.Logger
	metrics   *metric.Metrics

	mu   sync.RWMutex
	data map[string]any

	limiter    *rate.Limiter
	debounce   time.Duration
	flushTimer *time.Timer
	dirty      bool
}

// FileOption configures a FileBackend.
type FileOption func(*FileBackend)

// WithFileCipher encrypts the namespace file at rest. The namespace name is
// bound as associated data, so ciphertext cannot move between namespaces.
func WithFileCipher(c *aead.Cipher) FileOption {
	return func(b *FileBackend) {
		b.cipher = c
	}
}

// WithFileLogger sets the diagnostic logger.
func WithFileLogger(l logger.Logger) FileOption {
	return func(b *FileBackend) {
		b.log = l
	}
}

// WithFileMetrics enables rewrite metrics.
func WithFileMetrics(m *metric.Metrics) FileOption {
	return func(b *FileBackend) {
		b.metrics = m
	}
}

// WithWriteDebounce batches file rewrites: up to burst immediate rewrites
// per second; beyond that the rewrite is deferred by the given window.
// The final state is always flushed on Close.
func WithWriteDebounce(perSecond float64, burst int, window time.Duration) FileOption {
	return func(b *FileBackend) {
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		b.debounce = window
	}
}

// NewJSONFileBackend creates a structured-file backend at path.
func NewJSONFileBackend(namespace, path string, opts ...FileOption) (*FileBackend, error) {
	return newFileBackend(namespace, path, jsonCodec{}, opts...)
}

// NewGobFileBackend creates an opaque-file backend at path.
func NewGobFileBackend(namespace, path string, opts ...FileOption) (*FileBackend, error) {
	return newFileBackend(namespace, path, gobCodec{}, opts...)
}

func newFileBackend(namespace, path string, c codec, opts ...FileOption) (*FileBackend, error) {
	b := &FileBackend{
		namespace: namespace,
		path:      path,
		codec:     c,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, storageErr(namespace, "init", err)
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// load reads the namespace file. A missing file is an empty namespace; a
// file that cannot be decoded is a corrupt-file error, never a silent reset.
func (b *FileBackend) load() error {
	payload, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.data = make(map[string]any)
			return nil
		}
		return storageErr(b.namespace, "load", err)
	}

	if b.cipher != nil {
		payload, err = b.cipher.Open(payload, []byte(b.namespace))
		if err != nil {
			return storageErr(b.namespace, "load", fmt.Errorf("%w: decrypt: %v", ErrCorruptFile, err))
		}
	}

	data, err := b.codec.decode(payload)
	if err != nil {
		return storageErr(b.namespace, "load", fmt.Errorf("%w: decode %s: %v", ErrCorruptFile, b.codec.name(), err))
	}

	b.data = data
	b.log.Debug("namespace loaded", "namespace", b.namespace, "keys", len(data))
	return nil
}

// Namespace returns the namespace this backend owns.
func (b *FileBackend) Namespace() string {
	return b.namespace
}

// Path returns the namespace file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Get retrieves a value by key.
func (b *FileBackend) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Set stores a value, overwriting unconditionally. The value is validated
// for serializability before any state changes.
func (b *FileBackend) Set(key string, value any) error {
	if err := b.codec.validate(value); err != nil {
		return storageErr(b.namespace, "set", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return b.scheduleSaveLocked()
}

// Delete removes a key. Removing an absent key is a no-op.
func (b *FileBackend) Delete(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data[key]; !ok {
		return false, nil
	}
	delete(b.data, key)
	return true, b.scheduleSaveLocked()
}

// Exists checks if a key exists.
func (b *FileBackend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

// Clear removes all keys and rewrites the file. Idempotent.
func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = make(map[string]any)
	return b.scheduleSaveLocked()
}

// Keys returns a consistent snapshot of all keys.
func (b *FileBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of keys.
func (b *FileBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// GetMany retrieves the subset of keys that exist.
func (b *FileBackend) GetMany(keys []string) map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := b.data[key]; ok {
			out[key] = v
		}
	}
	return out
}

// SetMany stores all entries with a single file rewrite. Fail-fast: if any
// value fails validation, nothing is applied.
func (b *FileBackend) SetMany(entries map[string]any) error {
	for key, value := range entries {
		if err := b.codec.validate(value); err != nil {
			return storageErr(b.namespace, "setmany", fmt.Errorf("key %q: %w", key, err))
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, value := range entries {
		b.data[key] = value
	}
	return b.scheduleSaveLocked()
}

// DeleteMany removes the given keys with a single file rewrite.
func (b *FileBackend) DeleteMany(keys []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deleted := 0
	for _, key := range keys {
		if _, ok := b.data[key]; ok {
			delete(b.data, key)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, b.scheduleSaveLocked()
}

// Flush forces any deferred rewrite to disk.
func (b *FileBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil
	}
	return b.saveLocked()
}

// Close flushes pending state. The backend must not be used afterwards.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	if !b.dirty {
		return nil
	}
	return b.saveLocked()
}

// scheduleSaveLocked rewrites the file immediately unless the debounce
// limiter defers it. Callers hold the write lock.
func (b *FileBackend) scheduleSaveLocked() error {
	if b.limiter == nil || b.limiter.Allow() {
		return b.saveLocked()
	}

	b.dirty = true
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.debounce, func() {
			b.mu.Lock()
			b.flushTimer = nil
			if !b.dirty {
				b.mu.Unlock()
				return
			}
			err := b.saveLocked()
			b.mu.Unlock()
			if err != nil {
				b.log.Error("deferred namespace flush failed",
					"namespace", b.namespace,
					"error", err)
			}
		})
	}
	return nil
}

// saveLocked rewrites the namespace file: encode, optionally encrypt, write
// to a temp file, fsync, and atomically rename over the previous file.
func (b *FileBackend) saveLocked() error {
	payload, err := b.codec.encode(b.data)
	if err != nil {
		return storageErr(b.namespace, "save", err)
	}
	if b.cipher != nil {
		payload, err = b.cipher.Seal(payload, []byte(b.namespace))
		if err != nil {
			return storageErr(b.namespace, "save", err)
		}
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".storekit-*.tmp")
	if err != nil {
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}
	if err := tmp.Close(); err != nil {
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return b.saveFailed(storageErr(b.namespace, "save", err))
	}

	b.dirty = false
	if b.metrics != nil {
		b.metrics.FileRewrites.WithLabelValues(b.namespace).Inc()
	}
	return nil
}

func (b *FileBackend) saveFailed(err error) error {
	if b.metrics != nil {
		b.metrics.FileRewriteErrors.WithLabelValues(b.namespace).Inc()
	}
	return err
}
