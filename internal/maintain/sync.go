package maintain

import (
	"context"
	"log/slog"
	"time"

	"github.com/storekit/storekit/pkg/errors"
)

// SyncResult reports one offline sync run.
type SyncResult struct {
	Revision string
	Bytes    int
	Changed  bool
}

// Sync fetches the canonical data file and refreshes the offline cache
// entry holding it, so tooling on this device can run without the remote.
// Changed reports whether the cached copy differed from the remote one.
func Sync(ctx context.Context, client Fetcher, store Store, dataFile, cacheKey string, ttl time.Duration, logger *slog.Logger) (*SyncResult, error) {
	content, err := client.FetchFile(ctx, dataFile)
	if err != nil {
		return nil, err
	}

	cached, found, err := store.GetString(cacheKey)
	if err != nil && !errors.IsDecode(err) {
		// A decode failure means the cached copy is unreadable; the fresh
		// write below replaces it either way.
		return nil, err
	}
	changed := !found || cached != string(content.Data)

	if _, err := store.SetString(cacheKey, string(content.Data), ttl); err != nil {
		return nil, err
	}

	logger.Info("sync complete", "revision", content.Revision, "bytes", len(content.Data), "changed", changed)
	return &SyncResult{
		Revision: content.Revision,
		Bytes:    len(content.Data),
		Changed:  changed,
	}, nil
}
