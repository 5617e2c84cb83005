package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/glanceboard/storekit/internal/telemetry/logger"
	"github.com/glanceboard/storekit/internal/telemetry/metric"
	"github.com/glanceboard/storekit/pkg/aead"
)

// modulePrefix scopes module namespaces apart from explicitly named ones.
const modulePrefix = "module:"

// cacheID keys memoized cache wrappers. The same namespace with a different
// default TTL is a distinct wrapper over the same backend instance.
type cacheID struct {
	name string
	ttl  time.Duration
}

// Manager is the registry that lazily creates and memoizes backends and
// cache wrappers per namespace. It is the single source of truth for which
// namespaces have live instances; modules never construct backends
// themselves. The manager owns instance lifetimes but never schedules
// maintenance; callers drive CleanupExpiredCaches (see Sweeper).
type Manager struct {
	root    string
	log     logger.Logger
	metrics *metric.Metrics
	cipher  *aead.Cipher
	clock   Clock

	defaultTTL      time.Duration
	maxCacheEntries int

	debounceRate   float64
	debounceBurst  int
	debounceWindow time.Duration

	backupKeep int

	mu       sync.Mutex
	closed   bool
	backends map[string]Backend
	kinds    map[string]Kind
	caches   map[cacheID]*CachedStorage
	badgerDB *badger.DB
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the diagnostic logger for the manager and everything it
// creates.
func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// WithMetrics wires the subsystem's Prometheus metrics.
func WithMetrics(mt *metric.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithCipher encrypts all file-backed namespaces at rest.
func WithCipher(c *aead.Cipher) ManagerOption {
	return func(m *Manager) {
		m.cipher = c
	}
}

// WithManagerClock injects the time source handed to cache wrappers.
func WithManagerClock(c Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithDefaultTTL sets the TTL the embedding application should hand to
// module caches that do not choose their own. Exposed via DefaultTTL.
func WithDefaultTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.defaultTTL = ttl
	}
}

// WithMaxCacheEntries bounds each cache wrapper's in-memory index.
func WithMaxCacheEntries(n int) ManagerOption {
	return func(m *Manager) {
		m.maxCacheEntries = n
	}
}

// WithWriteDebounceAll batches file rewrites on every file backend the
// manager creates. See WithWriteDebounce.
func WithWriteDebounceAll(perSecond float64, burst int, window time.Duration) ManagerOption {
	return func(m *Manager) {
		m.debounceRate = perSecond
		m.debounceBurst = burst
		m.debounceWindow = window
	}
}

// WithBackupRetention keeps the newest n backups when pruning.
func WithBackupRetention(n int) ManagerOption {
	return func(m *Manager) {
		m.backupKeep = n
	}
}

// NewManager creates a manager rooted at the given storage directory. The
// directory comes from the embedding application's configuration; the
// manager never guesses platform config paths itself.
func NewManager(root string, opts ...ManagerOption) (*Manager, error) {
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}

	m := &Manager{
		root:            root,
		log:             logger.Default(),
		clock:           SystemClock{},
		defaultTTL:      time.Hour,
		maxCacheEntries: DefaultMaxCacheEntries,
		backupKeep:      5,
		backends:        make(map[string]Backend),
		kinds:           make(map[string]Kind),
		caches:          make(map[cacheID]*CachedStorage),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return m, nil
}

// Root returns the storage root directory.
func (m *Manager) Root() string {
	return m.root
}

// GetBackend lazily constructs or returns the memoized backend for name.
//
// Requesting an existing namespace with a different kind is a programming
// error and panics: two backends silently diverging over the same file is
// exactly what the registry exists to prevent.
func (m *Manager) GetBackend(name string, kind Kind) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBackendLocked(name, kind)
}

func (m *Manager) getBackendLocked(name string, kind Kind) (Backend, error) {
	if m.closed {
		return nil, ErrClosed
	}

	if existing, ok := m.backends[name]; ok {
		if m.kinds[name] != kind {
			panic(fmt.Sprintf("storage: namespace %q already registered as %q, requested %q",
				name, m.kinds[name], kind))
		}
		return existing, nil
	}

	backend, err := m.buildBackendLocked(name, kind)
	if err != nil {
		return nil, err
	}

	m.backends[name] = backend
	m.kinds[name] = kind
	if m.metrics != nil {
		m.metrics.BackendsLive.Set(float64(len(m.backends)))
	}
	m.log.Debug("backend created", "namespace", name, "kind", string(kind))
	return backend, nil
}

func (m *Manager) buildBackendLocked(name string, kind Kind) (Backend, error) {
	switch kind {
	case KindMemory:
		return NewMemoryBackend(name), nil

	case KindJSONFile, KindGobFile:
		opts := []FileOption{
			WithFileLogger(m.log),
		}
		if m.metrics != nil {
			opts = append(opts, WithFileMetrics(m.metrics))
		}
		if m.cipher != nil {
			opts = append(opts, WithFileCipher(m.cipher))
		}
		if m.debounceWindow > 0 {
			opts = append(opts, WithWriteDebounce(m.debounceRate, m.debounceBurst, m.debounceWindow))
		}
		if kind == KindJSONFile {
			return NewJSONFileBackend(name, m.namespacePath(name, jsonCodec{}), opts...)
		}
		return NewGobFileBackend(name, m.namespacePath(name, gobCodec{}), opts...)

	case KindBadger:
		db, err := m.openBadgerLocked()
		if err != nil {
			return nil, err
		}
		return NewBadgerBackend(name, db, m.log), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// namespacePath derives the deterministic file path for a namespace.
func (m *Manager) namespacePath(name string, c codec) string {
	return filepath.Join(m.root, sanitizeNamespace(name)+c.ext())
}

// sanitizeNamespace maps a namespace string to a safe file stem.
// Characters outside [A-Za-z0-9._-] become underscores.
func sanitizeNamespace(name string) string {
	stem := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '_', ch == '-':
			stem[i] = ch
		default:
			stem[i] = '_'
		}
	}
	return string(stem)
}

// openBadgerLocked opens the shared Badger database on first use.
func (m *Manager) openBadgerLocked() (*badger.DB, error) {
	if m.badgerDB != nil {
		return m.badgerDB, nil
	}

	opts := badger.DefaultOptions(filepath.Join(m.root, "badger"))
	opts.Logger = &badgerLogAdapter{log: m.log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	m.badgerDB = db
	return db, nil
}

// DefaultTTL returns the configured application-wide cache TTL.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// GetCachedStorage lazily constructs or returns the memoized cache wrapper
// for (name, defaultTTL). Different TTLs yield distinct wrappers over the
// same backend instance. A defaultTTL <= 0 means entries never expire
// unless stored through SetTTL.
func (m *Manager) GetCachedStorage(name string, defaultTTL time.Duration) (*CachedStorage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	id := cacheID{name: name, ttl: defaultTTL}
	if cached, ok := m.caches[id]; ok {
		return cached, nil
	}

	// The backend, not the cache policy, is the thing identified by name.
	// Reuse a live backend of any kind; create the structured default
	// otherwise.
	backend, ok := m.backends[name]
	if !ok {
		var err error
		backend, err = m.getBackendLocked(name, KindJSONFile)
		if err != nil {
			return nil, err
		}
	}

	opts := []CacheOption{
		WithMaxEntries(m.maxCacheEntries),
		WithClock(m.clock),
		WithCacheLogger(m.log),
	}
	if m.metrics != nil {
		opts = append(opts, WithCacheMetrics(m.metrics))
	}

	cached := NewCachedStorage(backend, defaultTTL, opts...)
	m.caches[id] = cached
	if m.metrics != nil {
		m.metrics.CachesLive.Set(float64(len(m.caches)))
	}
	return cached, nil
}

// GetModuleStorage returns the structured-file backend for a module.
func (m *Manager) GetModuleStorage(moduleID string) (Backend, error) {
	return m.GetBackend(modulePrefix+moduleID, KindJSONFile)
}

// GetModuleCache returns a TTL cache over a module's backend.
func (m *Manager) GetModuleCache(moduleID string, defaultTTL time.Duration) (*CachedStorage, error) {
	return m.GetCachedStorage(modulePrefix+moduleID, defaultTTL)
}

// CleanupExpiredCaches sweeps every live cache wrapper and returns the
// total number of evicted entries. Intended for a periodic maintenance
// tick owned by the caller.
func (m *Manager) CleanupExpiredCaches() (int, error) {
	start := time.Now()

	m.mu.Lock()
	caches := make([]*CachedStorage, 0, len(m.caches))
	for _, c := range m.caches {
		caches = append(caches, c)
	}
	m.mu.Unlock()

	total := 0
	var errs []error
	for _, c := range caches {
		n, err := c.CleanupExpired()
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if m.metrics != nil {
		m.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	m.log.Debug("expiry sweep finished",
		"evicted", total,
		"caches", len(caches),
		"elapsed", time.Since(start))
	return total, errors.Join(errs...)
}

// ClearAll clears every live cache and backend. Used for full application
// reset and test teardown.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	caches := make([]*CachedStorage, 0, len(m.caches))
	for _, c := range m.caches {
		caches = append(caches, c)
	}
	backends := make([]Backend, 0, len(m.backends))
	for _, b := range m.backends {
		backends = append(backends, b)
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range caches {
		if err := c.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range backends {
		if err := b.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats is a read-only snapshot of the registry.
type Stats struct {
	Backends   int
	Caches     int
	TotalKeys  int
	Namespaces []string
}

// GetStats returns registry counts for observability.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Backends: len(m.backends),
		Caches:   len(m.caches),
	}
	for name, b := range m.backends {
		s.Namespaces = append(s.Namespaces, name)
		s.TotalKeys += b.Len()
	}
	sort.Strings(s.Namespaces)
	return s
}

// Close flushes and releases every backend. The manager must not be used
// afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, b := range m.backends {
		if fb, ok := b.(*FileBackend); ok {
			if err := fb.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if m.badgerDB != nil {
		if err := m.badgerDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: close badger: %w", err))
		}
		m.badgerDB = nil
	}

	m.log.Info("storage manager closed", "namespaces", len(m.backends))
	return errors.Join(errs...)
}

// badgerLogAdapter bridges Badger's printf-style logger to ours.
type badgerLogAdapter struct {
	log logger.Logger
}

func (a *badgerLogAdapter) Errorf(format string, args ...any) {
	a.log.Error(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Warningf(format string, args ...any) {
	a.log.Warn(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Infof(format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...))
}

func (a *badgerLogAdapter) Debugf(format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...))
}
