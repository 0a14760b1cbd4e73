package cache

import (
	"time"

	"github.com/storekit/storekit/pkg/types"
)

// statsCollector keeps the running counters that are not derivable from
// the index. Aggregates (total size, file count) are recomputed from the
// index at snapshot time so they cannot drift.
type statsCollector struct {
	hits          uint64
	misses        uint64
	evictions     uint64
	lastCleanupAt time.Time
}

func (s *statsCollector) recordHit()  { s.hits++ }
func (s *statsCollector) recordMiss() { s.misses++ }

func (s *statsCollector) recordEvictions(n int) {
	s.evictions += uint64(n)
}

func (s *statsCollector) markCleanup(t time.Time) {
	s.lastCleanupAt = t
}

func (s *statsCollector) reset() {
	*s = statsCollector{}
}

// snapshot builds an immutable stats view from the counters and the
// current index aggregates.
func (s *statsCollector) snapshot(totalSize int64, totalFiles int, capacity int64) types.CacheStats {
	stats := types.CacheStats{
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
		TotalSize:     totalSize,
		TotalFiles:    totalFiles,
		Capacity:      capacity,
		LastCleanupAt: s.lastCleanupAt,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	if capacity > 0 {
		stats.Utilization = float64(totalSize) / float64(capacity)
	}
	return stats
}
