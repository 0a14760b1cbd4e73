package metrics

import (
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestRecordHitAndMiss(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHit(1024)
	c.RecordHit(2048)
	c.RecordMiss()

	hits := c.cacheRequests.With(prometheus.Labels{"result": "hit"})
	misses := c.cacheRequests.With(prometheus.Labels{"result": "miss"})
	assert.Equal(t, 2.0, testutil.ToFloat64(hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(misses))
}

func TestRecordEviction(t *testing.T) {
	c := newTestCollector(t)

	c.RecordEviction(3)
	c.RecordEviction(2)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.cacheEvictions))
}

func TestUpdateUsage(t *testing.T) {
	c := newTestCollector(t)

	c.UpdateUsage(4096, 7)
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.cacheSizeBytes))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.cacheEntries))

	// Gauges track the latest value, not a running total.
	c.UpdateUsage(1024, 3)
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.cacheSizeBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheEntries))
}

func TestObserveOperation(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveOperation("backup", 50*time.Millisecond, nil)
	c.ObserveOperation("backup", 80*time.Millisecond, stderrors.New("boom"))
	c.ObserveOperation("sync", 10*time.Millisecond, nil)

	backupErrors := c.opErrors.With(prometheus.Labels{"operation": "backup"})
	assert.Equal(t, 1.0, testutil.ToFloat64(backupErrors))

	count := testutil.CollectAndCount(c.opDuration)
	assert.Equal(t, 2, count, "one histogram series per operation label")
}

func TestNewCollectorDefaults(t *testing.T) {
	c, err := NewCollector(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/metrics", c.config.Path)
	assert.Equal(t, "storekit", c.config.Namespace)
}

func TestStartDisabledIsNoop(t *testing.T) {
	c := newTestCollector(t)
	require.NoError(t, c.Start())
	assert.Nil(t, c.server)
}
