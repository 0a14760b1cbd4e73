// Package types defines shared data structures for the storekit cache and tooling.
package types

import "time"

// ValueKind tags how a cached value was serialized so reads can reverse it.
type ValueKind string

const (
	// ValueKindText marks a raw string payload stored byte-for-byte.
	ValueKindText ValueKind = "text"
	// ValueKindJSON marks a structured value serialized with encoding/json.
	ValueKindJSON ValueKind = "json"
)

// Valid reports whether the kind is one of the known tags.
func (k ValueKind) Valid() bool {
	return k == ValueKindText || k == ValueKindJSON
}

// CacheEntry is the metadata for one cached value. It lives in the index
// and is persisted as part of the index snapshot.
type CacheEntry struct {
	// Key is the caller-supplied identifier.
	Key string `json:"key"`
	// ContentKey is the hex SHA-256 of Key; it is the index lookup key
	// and the blob filename.
	ContentKey string `json:"content_key"`
	// CreatedAt is set fresh on every write, including overwrites.
	CreatedAt time.Time `json:"created_at"`
	// TTL is the requested lifetime. Zero means the store default was applied.
	TTL time.Duration `json:"ttl"`
	// SizeBytes is the encoded (post-codec) payload length on disk.
	SizeBytes int64 `json:"size_bytes"`
	// Compressed and Encrypted record which codec stages were actually
	// applied, not which were requested.
	Compressed bool `json:"compressed"`
	Encrypted  bool `json:"encrypted"`
	// ValueKind records the serialization used for the raw value.
	ValueKind ValueKind `json:"value_kind"`
}

// ExpiresAt returns the instant the entry stops being servable.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// CacheStats is a read-only snapshot of cache counters and aggregates.
// Hits and Misses are monotonic for the lifetime of one manager instance;
// TotalSize and TotalFiles are recomputed from the index after every
// structural change.
type CacheStats struct {
	Hits          uint64    `json:"hits"`
	Misses        uint64    `json:"misses"`
	Evictions     uint64    `json:"evictions"`
	TotalSize     int64     `json:"total_size"`
	TotalFiles    int       `json:"total_files"`
	Capacity      int64     `json:"capacity"`
	HitRate       float64   `json:"hit_rate"`
	Utilization   float64   `json:"utilization"`
	LastCleanupAt time.Time `json:"last_cleanup_at,omitempty"`
}
