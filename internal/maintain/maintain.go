// Package maintain holds the maintenance tasks for the remote JSON data
// store: backup, validation, and offline sync. Each task is thin
// orchestration over the remote content API and the offline cache.
package maintain

import (
	"context"
	"time"

	"github.com/storekit/storekit/internal/remote"
	"github.com/storekit/storekit/pkg/types"
)

// Fetcher is the slice of the remote client the tasks read with.
type Fetcher interface {
	FetchFile(ctx context.Context, path string) (*remote.FileContent, error)
}

// Store is the slice of the cache manager the sync task writes through.
type Store interface {
	SetString(key, value string, ttl time.Duration) (*types.CacheEntry, error)
	GetString(key string) (string, bool, error)
}
