package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/storekit/storekit/pkg/errors"
	"github.com/storekit/storekit/pkg/types"
)

const (
	indexFileName   = "cache-index.json"
	snapshotVersion = 1
)

// indexSnapshot is the on-disk form of the cache index: one JSON document
// holding the format version, a save timestamp, all entry metadata, and
// the stats at save time.
type indexSnapshot struct {
	Version int                          `json:"version"`
	SavedAt time.Time                    `json:"saved_at"`
	Entries map[string]*types.CacheEntry `json:"entries"`
	Stats   types.CacheStats             `json:"stats"`
}

// cacheIndex is the authoritative in-memory map of what exists in the
// cache. The manager persists it after every mutating operation.
//
// The index does no locking of its own; the manager's mutex serializes
// all access.
type cacheIndex struct {
	path    string
	entries map[string]*types.CacheEntry
	logger  *slog.Logger
}

func newCacheIndex(dir string, logger *slog.Logger) *cacheIndex {
	return &cacheIndex{
		path:    filepath.Join(dir, indexFileName),
		entries: make(map[string]*types.CacheEntry),
		logger:  logger,
	}
}

// load reads the snapshot file. A missing or unparsable snapshot is
// recovered locally by starting from an empty index; it never fails the
// caller.
func (ix *cacheIndex) load() {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.logger.Warn("failed to read index snapshot, starting with empty index",
				"path", ix.path, "error", err)
		}
		return
	}

	var snap indexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		ix.logger.Warn("index snapshot is corrupt, starting with empty index",
			"path", ix.path,
			"error", errors.New(errors.ErrCodeIndexCorrupt, "unparsable snapshot").WithCause(err))
		return
	}
	if snap.Version != snapshotVersion {
		ix.logger.Warn("index snapshot has unknown format version, starting with empty index",
			"path", ix.path, "version", snap.Version)
		return
	}

	for contentKey, entry := range snap.Entries {
		if entry == nil || entry.ContentKey != contentKey {
			ix.logger.Warn("dropping malformed index entry", "content_key", contentKey)
			continue
		}
		ix.entries[contentKey] = entry
	}
}

// persist writes the full index plus stats atomically as one snapshot.
func (ix *cacheIndex) persist(stats types.CacheStats) error {
	snap := indexSnapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
		Entries: ix.entries,
		Stats:   stats,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return errors.New(errors.ErrCodeIndexPersist, "failed to encode index snapshot").WithCause(err)
	}

	tmpPath := ix.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return errors.New(errors.ErrCodeIndexPersist, "failed to write index snapshot").WithCause(err)
	}
	if err := os.Rename(tmpPath, ix.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexPersist, "failed to replace index snapshot").WithCause(err)
	}
	return nil
}

func (ix *cacheIndex) lookup(contentKey string) (*types.CacheEntry, bool) {
	entry, ok := ix.entries[contentKey]
	return entry, ok
}

func (ix *cacheIndex) upsert(entry *types.CacheEntry) {
	ix.entries[entry.ContentKey] = entry
}

func (ix *cacheIndex) remove(contentKey string) {
	delete(ix.entries, contentKey)
}

func (ix *cacheIndex) count() int {
	return len(ix.entries)
}

// totalSize sums the on-disk payload sizes of all entries.
func (ix *cacheIndex) totalSize() int64 {
	var total int64
	for _, entry := range ix.entries {
		total += entry.SizeBytes
	}
	return total
}

// reset replaces the index with an empty one.
func (ix *cacheIndex) reset() {
	ix.entries = make(map[string]*types.CacheEntry)
}
