package cache

import (
	"sort"

	"github.com/storekit/storekit/pkg/types"
)

// CleanupExpired removes every entry past its expiry time and returns the
// number removed. The sweep is idempotent.
func (m *Manager) CleanupExpired() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var expired []string
	for contentKey, entry := range m.index.entries {
		if entry.Expired(now) {
			expired = append(expired, contentKey)
		}
	}

	for _, contentKey := range expired {
		m.removeEntryLocked(contentKey)
	}
	m.stats.recordEvictions(len(expired))
	m.stats.markCleanup(now)
	if m.rec != nil && len(expired) > 0 {
		m.rec.RecordEviction(len(expired))
	}

	if err := m.persistLocked(); err != nil {
		return len(expired), err
	}
	return len(expired), nil
}

// CleanupOversized evicts oldest-written entries until the total payload
// size fits the configured budget. Entries are removed strictly in
// ascending created-at order; eviction is by age of write, not by last
// access, so frequently read but long-ago-written entries are still
// candidates.
func (m *Manager) CleanupOversized() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totalSize := m.index.totalSize()
	if totalSize <= m.cfg.MaxSize {
		return 0, nil
	}

	ordered := make([]*types.CacheEntry, 0, m.index.count())
	for _, entry := range m.index.entries {
		ordered = append(ordered, entry)
	}
	// Oldest first; equal timestamps fall back to content key so one
	// sweep always removes in a deterministic order.
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ContentKey < ordered[j].ContentKey
	})

	removed := 0
	for _, entry := range ordered {
		if totalSize <= m.cfg.MaxSize {
			break
		}
		m.removeEntryLocked(entry.ContentKey)
		totalSize -= entry.SizeBytes
		removed++
	}

	m.stats.recordEvictions(removed)
	m.stats.markCleanup(m.now())
	if m.rec != nil && removed > 0 {
		m.rec.RecordEviction(removed)
	}

	if err := m.persistLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Cleanup runs the expiry sweep followed by the size-bound sweep. It is
// always safe to call with no pending work and returns the total number
// of entries removed.
func (m *Manager) Cleanup() (int, error) {
	expired, err := m.CleanupExpired()
	if err != nil {
		return expired, err
	}
	evicted, err := m.CleanupOversized()
	return expired + evicted, err
}
