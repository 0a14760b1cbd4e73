package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit/storekit/pkg/errors"
	"github.com/storekit/storekit/pkg/types"
)

// Config configures one cache manager instance.
type Config struct {
	// Dir is the storage root for blob files and the index snapshot.
	Dir string
	// MaxSize is the total payload budget in bytes that triggers
	// size-bound eviction.
	MaxSize int64
	// DefaultTTL applies when a write specifies no TTL.
	DefaultTTL time.Duration

	// Compression requests the compress stage for new writes.
	Compression          bool
	CompressionAlgorithm string // gzip (default) or brotli
	CompressionLevel     int

	// Encryption requests the encrypt stage for new writes. Key is the
	// secret material; with an empty key the stage degrades to off.
	Encryption    bool
	EncryptionKey string

	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Recorder receives hit/miss and size observations; nil disables it.
	Recorder Recorder
}

// Recorder receives cache observations for metrics export. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordHit(sizeBytes int64)
	RecordMiss()
	RecordEviction(n int)
	UpdateUsage(totalSize int64, totalFiles int)
}

// Manager is the offline cache: persistent key-value storage with TTL
// expiry, size-bound eviction, and an optional compress/encrypt pipeline.
//
// A Manager is safe for concurrent use within one process. Two processes
// sharing one cache directory are not coordinated: the last index snapshot
// writer wins. That is an accepted limitation, not a supported mode.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	store  *blobStore
	index  *cacheIndex
	codec  *codecPipeline
	stats  *statsCollector
	logger *slog.Logger
	rec    Recorder

	// now is swappable in tests.
	now func() time.Time
}

// New creates a cache manager rooted at cfg.Dir, loading any existing
// index snapshot. A corrupt or missing snapshot degrades to an empty
// cache with a logged warning.
func New(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "cache directory must not be empty")
	}
	if cfg.MaxSize <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "cache max size must be greater than 0")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "cache default TTL must be greater than 0")
	}
	if cfg.CompressionAlgorithm == "" {
		cfg.CompressionAlgorithm = "gzip"
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = 6
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache")

	store, err := newBlobStore(cfg.Dir)
	if err != nil {
		return nil, err
	}

	codec, err := newCodecPipeline(cfg.CompressionAlgorithm, cfg.CompressionLevel, cfg.EncryptionKey, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		index:  newCacheIndex(cfg.Dir, logger),
		codec:  codec,
		stats:  &statsCollector{},
		logger: logger,
		rec:    cfg.Recorder,
		now:    time.Now,
	}
	m.index.load()
	m.reportUsage()

	return m, nil
}

// ContentKey returns the deterministic fingerprint used as the index and
// storage key for a caller key.
func ContentKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Set stores a structured value under key, serialized with encoding/json.
// A zero ttl applies the configured default. Any existing entry for the
// same key is overwritten unconditionally.
func (m *Manager) Set(key string, value interface{}, ttl time.Duration) (*types.CacheEntry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeValidationFailed, "value for key %q is not serializable", key).WithCause(err)
	}
	return m.setBytes(key, raw, types.ValueKindJSON, ttl)
}

// SetString stores a raw text value under key.
func (m *Manager) SetString(key, value string, ttl time.Duration) (*types.CacheEntry, error) {
	return m.setBytes(key, []byte(value), types.ValueKindText, ttl)
}

func (m *Manager) setBytes(key string, raw []byte, kind types.ValueKind, ttl time.Duration) (*types.CacheEntry, error) {
	if ttl < 0 {
		return nil, errors.Newf(errors.ErrCodeValidationFailed, "negative ttl %v", ttl)
	}
	if ttl == 0 {
		ttl = m.cfg.DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, compressed, encrypted := m.codec.encode(raw, m.cfg.Compression, m.cfg.Encryption)

	contentKey := ContentKey(key)
	if err := m.store.write(contentKey, encoded); err != nil {
		// A failed write leaves the index untouched.
		return nil, err
	}

	entry := &types.CacheEntry{
		Key:        key,
		ContentKey: contentKey,
		CreatedAt:  m.now(),
		TTL:        ttl,
		SizeBytes:  int64(len(encoded)),
		Compressed: compressed,
		Encrypted:  encrypted,
		ValueKind:  kind,
	}
	m.index.upsert(entry)
	m.reportUsage()

	if err := m.persistLocked(); err != nil {
		return nil, err
	}

	result := *entry
	return &result, nil
}

// Get retrieves the value stored under key into dst. For JSON entries dst
// is any json.Unmarshal target; for text entries dst must be a *string.
// The first return value reports whether the entry was found and fresh.
func (m *Manager) Get(key string, dst interface{}) (bool, error) {
	raw, entry, found, err := m.getBytes(key)
	if err != nil || !found {
		return false, err
	}

	switch entry.ValueKind {
	case types.ValueKindText:
		s, ok := dst.(*string)
		if !ok {
			return false, errors.Newf(errors.ErrCodeValidationFailed,
				"entry %q holds text, destination must be *string", key)
		}
		*s = string(raw)
	default:
		if err := json.Unmarshal(raw, dst); err != nil {
			return false, errors.Newf(errors.ErrCodeCodecDecode,
				"failed to deserialize entry %q", key).WithCause(err)
		}
	}
	return true, nil
}

// GetString retrieves a text value stored with SetString.
func (m *Manager) GetString(key string) (string, bool, error) {
	var s string
	found, err := m.Get(key, &s)
	return s, found, err
}

// getBytes is the shared read path: lookup, lazy expiry, consistency
// self-heal, blob read, codec decode, and hit/miss accounting.
func (m *Manager) getBytes(key string) ([]byte, *types.CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contentKey := ContentKey(key)
	entry, ok := m.index.lookup(contentKey)
	if !ok {
		m.missLocked()
		return nil, nil, false, nil
	}

	if entry.Expired(m.now()) {
		m.removeEntryLocked(contentKey)
		m.missLocked()
		if err := m.persistLocked(); err != nil {
			return nil, nil, false, err
		}
		return nil, nil, false, nil
	}

	encoded, err := m.store.read(contentKey)
	if err != nil {
		if errors.IsNotFound(err) {
			// Index said the blob exists but it does not: self-heal by
			// dropping the stale entry and treating this as a miss.
			m.logger.Warn("index entry has no blob, removing stale entry", "key", key)
			m.removeEntryLocked(contentKey)
			m.missLocked()
			if perr := m.persistLocked(); perr != nil {
				return nil, nil, false, perr
			}
			return nil, nil, false, nil
		}
		m.missLocked()
		return nil, nil, false, err
	}

	raw, err := m.codec.decode(encoded, entry.Compressed, entry.Encrypted)
	if err != nil {
		// The blob is unreadable but real; leave it for operator
		// inspection instead of silently deleting it.
		m.logger.Error("failed to decode blob", "key", key, "error", err)
		m.missLocked()
		return nil, nil, false, err
	}

	m.stats.recordHit()
	if m.rec != nil {
		m.rec.RecordHit(entry.SizeBytes)
	}
	return raw, entry, true, nil
}

// Has reports whether a fresh entry exists for key, without reading the
// blob or touching the hit/miss counters. An expired entry is lazily
// removed, like in Get.
func (m *Manager) Has(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contentKey := ContentKey(key)
	entry, ok := m.index.lookup(contentKey)
	if !ok {
		return false, nil
	}
	if entry.Expired(m.now()) {
		m.removeEntryLocked(contentKey)
		if err := m.persistLocked(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Delete removes the entry and blob for key, reporting whether anything
// was removed.
func (m *Manager) Delete(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	contentKey := ContentKey(key)
	_, existed := m.index.lookup(contentKey)

	if err := m.store.remove(contentKey); err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	m.index.remove(contentKey)
	m.reportUsage()
	if err := m.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// Clear removes every blob, resets the index and stats, and returns the
// number of entries removed.
func (m *Manager) Clear() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	var firstErr error
	for contentKey := range m.index.entries {
		if err := m.store.remove(contentKey); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	if firstErr != nil {
		return removed, firstErr
	}

	m.index.reset()
	m.stats.reset()
	m.reportUsage()
	if err := m.persistLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Stats returns an immutable snapshot of the cache counters and aggregates.
func (m *Manager) Stats() types.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

// Close persists a final snapshot.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

// removeEntryLocked drops an entry's blob and index record. Blob removal
// failures are logged, not propagated: the index is authoritative and the
// orphaned file is swept up by a later cleanup.
func (m *Manager) removeEntryLocked(contentKey string) {
	if err := m.store.remove(contentKey); err != nil {
		m.logger.Warn("failed to remove blob", "content_key", contentKey, "error", err)
	}
	m.index.remove(contentKey)
	m.reportUsage()
}

func (m *Manager) missLocked() {
	m.stats.recordMiss()
	if m.rec != nil {
		m.rec.RecordMiss()
	}
}

func (m *Manager) statsLocked() types.CacheStats {
	return m.stats.snapshot(m.index.totalSize(), m.index.count(), m.cfg.MaxSize)
}

func (m *Manager) persistLocked() error {
	return m.index.persist(m.statsLocked())
}

func (m *Manager) reportUsage() {
	if m.rec != nil {
		m.rec.UpdateUsage(m.index.totalSize(), m.index.count())
	}
}
