package storage

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/glanceboard/storekit/internal/telemetry/logger"
	"github.com/glanceboard/storekit/internal/telemetry/metric"
)

// cachePrefix marks envelope keys in the underlying backend, so Clear can
// remove cache entries without touching a module's plain storage keys.
const cachePrefix = "cache:"

// DefaultMaxCacheEntries bounds the in-memory cache index per wrapper.
const DefaultMaxCacheEntries = 1000

// cacheEntry is the expiry envelope around a stored value.
// A zero expiresAt means the entry never expires.
type cacheEntry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	ttl       time.Duration
}

// envelope converts the entry to its stored form. Timestamp fields use
// "_at" keys so the JSON codec revives them as time.Time on reload.
func (e cacheEntry) envelope() map[string]any {
	m := map[string]any{
		"value":       e.value,
		"created_at":  e.createdAt,
		"ttl_seconds": int64(e.ttl / time.Second),
	}
	if !e.expiresAt.IsZero() {
		m["expires_at"] = e.expiresAt
	}
	return m
}

// parseEnvelope converts a stored form back to a cacheEntry. Anything that
// does not look like an envelope is treated as absent rather than an error.
func parseEnvelope(raw any) (cacheEntry, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return cacheEntry{}, false
	}
	createdAt, ok := m["created_at"].(time.Time)
	if !ok {
		return cacheEntry{}, false
	}

	e := cacheEntry{value: m["value"], createdAt: createdAt}
	if exp, ok := m["expires_at"].(time.Time); ok {
		e.expiresAt = exp
	}
	switch ttl := m["ttl_seconds"].(type) {
	case int64:
		e.ttl = time.Duration(ttl) * time.Second
	case float64: // JSON round trip
		e.ttl = time.Duration(ttl) * time.Second
	}
	return e, true
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// CacheInfo is expiry metadata for diagnostics and tests.
type CacheInfo struct {
	CreatedAt time.Time
	// ExpiresAt is zero when the entry never expires.
	ExpiresAt time.Time
	TTL       time.Duration
}

// CacheStats reports cache usage counters.
type CacheStats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Size       int
	MaxEntries int
}

// HitRate returns hits / (hits + misses), or 0 with no lookups yet.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedStorage decorates a Backend with per-key TTL and lazy expiry.
//
// Values are wrapped in an expiry envelope before delegation, so the cache
// survives process restarts on durable backends. A bounded in-memory index
// keeps hot lookups off the backend and is trimmed LRU-first under
// pressure; trimming the index never discards the durable envelope.
//
// Every mutation commits to the backend and the index while holding c.mu,
// so the index can never serve a value the backend has already superseded.
type CachedStorage struct {
	backend    Backend
	defaultTTL time.Duration
	maxEntries int
	clock      Clock
	log        logger.Logger
	metrics    *metric.Metrics

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	stats   CacheStats
}

type indexItem struct {
	key   string
	entry cacheEntry
}

// CacheOption configures a CachedStorage.
type CacheOption func(*CachedStorage)

// WithMaxEntries bounds the in-memory index. Zero or negative disables
// the bound.
func WithMaxEntries(n int) CacheOption {
	return func(c *CachedStorage) {
		c.maxEntries = n
	}
}

// WithClock injects the time source used for expiry decisions.
func WithClock(clock Clock) CacheOption {
	return func(c *CachedStorage) {
		c.clock = clock
	}
}

// WithCacheLogger sets the diagnostic logger.
func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *CachedStorage) {
		c.log = l
	}
}

// WithCacheMetrics enables hit/miss/eviction metrics.
func WithCacheMetrics(m *metric.Metrics) CacheOption {
	return func(c *CachedStorage) {
		c.metrics = m
	}
}

// NewCachedStorage wraps backend with a TTL policy. A defaultTTL <= 0
// means entries never expire unless SetTTL says otherwise.
func NewCachedStorage(backend Backend, defaultTTL time.Duration, opts ...CacheOption) *CachedStorage {
	c := &CachedStorage{
		backend:    backend,
		defaultTTL: defaultTTL,
		maxEntries: DefaultMaxCacheEntries,
		clock:      SystemClock{},
		log:        logger.Default(),
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the underlying backend instance.
func (c *CachedStorage) Backend() Backend {
	return c.backend
}

// DefaultTTL returns the wrapper's default TTL.
func (c *CachedStorage) DefaultTTL() time.Duration {
	return c.defaultTTL
}

func cacheKey(key string) string {
	return cachePrefix + key
}

// Set stores a value under the default TTL.
func (c *CachedStorage) Set(key string, value any) error {
	return c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores a value with an explicit TTL. A ttl <= 0 means the entry
// never expires.
func (c *CachedStorage) SetTTL(key string, value any, ttl time.Duration) error {
	now := c.clock.Now()
	entry := cacheEntry{value: value, createdAt: now, ttl: ttl}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	// The envelope is fully built before it reaches the backend, and the
	// backend write and index update happen under one lock: two racing
	// writers commit durably and in the index in the same order.
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Set(cacheKey(key), entry.envelope()); err != nil {
		return err
	}
	c.ensureSpaceLocked()
	c.insertLocked(cacheKey(key), entry)
	return nil
}

// Get returns the cached value, or def if the key is absent or expired.
// An expired entry is evicted from the underlying backend eagerly.
func (c *CachedStorage) Get(key string, def any) any {
	if v, ok := c.lookup(key); ok {
		return v
	}
	return def
}

// lookup resolves a key through the index, falling back to the backend.
func (c *CachedStorage) lookup(key string) (any, bool) {
	ck := cacheKey(key)
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[ck]; ok {
		item := elem.Value.(*indexItem)
		if item.entry.expired(now) {
			c.evictLocked(ck)
			c.miss()
			return nil, false
		}
		c.order.MoveToFront(elem)
		c.hit()
		return item.entry.value, true
	}

	// Index miss: consult the backend (e.g. after a restart).
	raw, ok := c.backend.Get(ck)
	if !ok {
		c.miss()
		return nil, false
	}
	entry, ok := parseEnvelope(raw)
	if !ok {
		c.miss()
		return nil, false
	}
	if entry.expired(now) {
		c.evictLocked(ck)
		c.miss()
		return nil, false
	}

	c.ensureSpaceLocked()
	c.insertLocked(ck, entry)
	c.hit()
	return entry.value, true
}

// Exists reports whether a non-expired entry is present.
func (c *CachedStorage) Exists(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Delete removes the value and its expiry metadata.
func (c *CachedStorage) Delete(key string) (bool, error) {
	ck := cacheKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeIndexLocked(ck)
	return c.backend.Delete(ck)
}

// GetCacheInfo returns expiry metadata, or nil for an absent or already
// logically expired key.
func (c *CachedStorage) GetCacheInfo(key string) *CacheInfo {
	ck := cacheKey(key)
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var entry cacheEntry
	if elem, ok := c.entries[ck]; ok {
		entry = elem.Value.(*indexItem).entry
	} else {
		raw, ok := c.backend.Get(ck)
		if !ok {
			return nil
		}
		entry, ok = parseEnvelope(raw)
		if !ok {
			return nil
		}
	}
	if entry.expired(now) {
		return nil
	}
	return &CacheInfo{
		CreatedAt: entry.createdAt,
		ExpiresAt: entry.expiresAt,
		TTL:       entry.ttl,
	}
}

// CleanupExpired scans the whole namespace and evicts every expired entry.
// Returns the number evicted. This is the only full-scan operation; it is
// meant for a periodic maintenance tick, not the access path.
//
// The key snapshot is taken without the lock; each key is then re-checked
// and evicted under it, so a write landing mid-sweep is never deleted.
func (c *CachedStorage) CleanupExpired() (int, error) {
	evicted := 0

	for _, ck := range c.backend.Keys() {
		if !strings.HasPrefix(ck, cachePrefix) {
			continue
		}
		ok, err := c.evictIfExpired(ck)
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}

	if evicted > 0 && c.metrics != nil {
		c.metrics.ExpiredSwept.Add(float64(evicted))
	}
	return evicted, nil
}

// evictIfExpired removes one envelope if it is expired, with the expiry
// check and the backend delete as a single locked step.
func (c *CachedStorage) evictIfExpired(ck string) (bool, error) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var entry cacheEntry
	if elem, ok := c.entries[ck]; ok {
		entry = elem.Value.(*indexItem).entry
	} else {
		raw, found := c.backend.Get(ck)
		if !found {
			return false, nil
		}
		parsed, ok := parseEnvelope(raw)
		if !ok {
			return false, nil
		}
		entry = parsed
	}
	if !entry.expired(now) {
		return false, nil
	}

	c.removeIndexLocked(ck)
	_, err := c.backend.Delete(ck)
	return true, err
}

// Clear removes every cache entry from the backend and resets the index
// and statistics. Plain (non-envelope) keys in the namespace are untouched.
func (c *CachedStorage) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.stats = CacheStats{MaxEntries: c.maxEntries}

	for _, ck := range c.backend.Keys() {
		if !strings.HasPrefix(ck, cachePrefix) {
			continue
		}
		if _, err := c.backend.Delete(ck); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *CachedStorage) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.entries)
	s.MaxEntries = c.maxEntries
	return s
}

func (c *CachedStorage) hit() {
	c.stats.Hits++
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
}

func (c *CachedStorage) miss() {
	c.stats.Misses++
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
}

// insertLocked adds or replaces an index entry at the front of the order.
func (c *CachedStorage) insertLocked(ck string, entry cacheEntry) {
	if elem, ok := c.entries[ck]; ok {
		elem.Value.(*indexItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}
	c.entries[ck] = c.order.PushFront(&indexItem{key: ck, entry: entry})
}

// evictLocked removes an expired entry from both index and backend.
func (c *CachedStorage) evictLocked(ck string) {
	c.removeIndexLocked(ck)
	if _, err := c.backend.Delete(ck); err != nil {
		c.log.Warn("stale cache evict failed",
			"namespace", c.backend.Namespace(),
			"key", ck,
			"error", err)
	}
}

func (c *CachedStorage) removeIndexLocked(ck string) {
	if elem, ok := c.entries[ck]; ok {
		c.order.Remove(elem)
		delete(c.entries, ck)
	}
}

// ensureSpaceLocked trims least-recently-used index entries when the bound
// is reached. Only the index shrinks; durable envelopes stay in the backend
// and can be re-indexed on their next read.
func (c *CachedStorage) ensureSpaceLocked() {
	if c.maxEntries <= 0 || len(c.entries) < c.maxEntries {
		return
	}

	evict := len(c.entries) - c.maxEntries + 1
	if evict > 10 {
		evict = 10
	}
	for i := 0; i < evict; i++ {
		back := c.order.Back()
		if back == nil {
			break
		}
		item := back.Value.(*indexItem)
		c.order.Remove(back)
		delete(c.entries, item.key)
		c.stats.Evictions++
		if c.metrics != nil {
			c.metrics.CacheEvictions.Inc()
		}
	}
}
