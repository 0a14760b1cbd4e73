/*
Package cache implements the offline cache for the storekit toolkit: a
persistent, single-process key-value cache with time-based expiration,
size-bound eviction, and an optional compress/encrypt pipeline for stored
values.

# Architecture

	┌─────────────────────────────────────────────┐
	│              Cache Manager                  │
	│   Set / Get / Has / Delete / Cleanup /      │
	│          Clear / Stats                      │
	└─────────────────────────────────────────────┘
	        │            │             │
	┌───────────────┐ ┌──────────┐ ┌──────────────┐
	│  Cache Index  │ │ Codec    │ │  Blob Store  │
	│  (snapshot)   │ │ Pipeline │ │ (one file    │
	│               │ │          │ │  per key)    │
	└───────────────┘ └──────────┘ └──────────────┘

On disk, a cache directory contains one blob file per content key (the
hex SHA-256 of the caller key) plus a single cache-index.json snapshot
holding the format version, all entry metadata, and the stats at save
time. The index is persisted after every mutating operation, so a restart
sees a consistent view.

Writes run the value through the codec pipeline (compress, then encrypt),
store the blob, and upsert the index. Reads look up the index, lazily
drop expired entries, self-heal entries whose blob has gone missing, and
reverse the codec stages recorded in the entry metadata.

Encoding degrades gracefully: a failing codec stage stores the pre-stage
bytes and records the stage as not applied. Decoding is strict; a blob
that cannot be reversed per its recorded flags is a hard decode error and
the blob is left in place for inspection.

Eviction is two independent idempotent sweeps: expiry removal, and
oldest-written-first removal until the total size fits the configured
budget.

A Manager is safe for concurrent use within one process. Sharing a cache
directory between processes is unsupported; concurrent snapshot writers
race and the last one wins.
*/
package cache
