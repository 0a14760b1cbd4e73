package maintain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/storekit/storekit/pkg/errors"
)

// BackupResult reports one completed backup run.
type BackupResult struct {
	Path     string
	Bytes    int
	Revision string
	Pruned   int
}

// Backup fetches the canonical data file and writes a timestamped copy
// under dir, pruning old copies beyond the retention count.
func Backup(ctx context.Context, client Fetcher, dataFile, dir string, retain int, logger *slog.Logger) (*BackupResult, error) {
	content, err := client.FetchFile(ctx, dataFile)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Newf(errors.ErrCodeStorageWrite, "failed to create backup directory %s", dir).WithCause(err)
	}

	base := strings.TrimSuffix(filepath.Base(dataFile), filepath.Ext(dataFile))
	name := fmt.Sprintf("%s-%s.json", base, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content.Data, 0600); err != nil {
		return nil, errors.Newf(errors.ErrCodeStorageWrite, "failed to write backup %s", path).WithCause(err)
	}

	pruned, err := pruneBackups(dir, base, retain)
	if err != nil {
		return nil, err
	}

	logger.Info("backup complete", "path", path, "bytes", len(content.Data), "pruned", pruned)
	return &BackupResult{
		Path:     path,
		Bytes:    len(content.Data),
		Revision: content.Revision,
		Pruned:   pruned,
	}, nil
}

// pruneBackups removes the oldest timestamped copies beyond retain.
// Backup names embed a sortable UTC timestamp, so lexical order is
// chronological.
func pruneBackups(dir, base string, retain int) (int, error) {
	pattern := filepath.Join(dir, base+"-*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeStorageRead, "failed to list backups in %s", dir).WithCause(err)
	}
	if len(matches) <= retain {
		return 0, nil
	}

	sort.Strings(matches)
	excess := matches[:len(matches)-retain]
	for _, path := range excess {
		if err := os.Remove(path); err != nil {
			return 0, errors.Newf(errors.ErrCodeStorageDelete, "failed to prune backup %s", path).WithCause(err)
		}
	}
	return len(excess), nil
}
