package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storekit/storekit/pkg/errors"
)

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()

	cfg := Config{
		Dir:        t.TempDir(),
		MaxSize:    10 * 1024 * 1024,
		DefaultTTL: time.Hour,
		Logger:     testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func blobPath(m *Manager, key string) string {
	return filepath.Join(m.cfg.Dir, ContentKey(key)+blobExtension)
}

type profile struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestManagerSetGet(t *testing.T) {
	m := newTestManager(t, nil)

	want := profile{Name: "a", Age: 30}
	if _, err := m.Set("profile", want, 10*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got profile
	found, err := m.Get("profile", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Get did not find the entry")
	}
	if got != want {
		t.Errorf("Get returned %+v, want %+v", got, want)
	}

	stats := m.Stats()
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 0 {
		t.Errorf("misses = %d, want 0", stats.Misses)
	}
}

func TestManagerSetStringGetString(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.SetString("greeting", "hello", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	got, found, err := m.GetString("greeting")
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if !found || got != "hello" {
		t.Errorf("GetString = (%q, %t), want (hello, true)", got, found)
	}
}

func TestManagerGetMiss(t *testing.T) {
	m := newTestManager(t, nil)

	var dst string
	found, err := m.Get("absent", &dst)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Get found a value for an absent key")
	}
	if stats := m.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestManagerDefaultTTL(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.DefaultTTL = 42 * time.Minute
	})

	entry, err := m.SetString("k", "v", 0)
	if err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if entry.TTL != 42*time.Minute {
		t.Errorf("TTL = %v, want 42m", entry.TTL)
	}

	if _, err := m.SetString("k", "v", -time.Second); err == nil {
		t.Error("expected error for negative ttl")
	}
}

func TestManagerTTLBoundary(t *testing.T) {
	m := newTestManager(t, nil)

	base := time.Now()
	current := base
	m.now = func() time.Time { return current }

	if _, err := m.SetString("k", "v", time.Second); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	// Just inside the TTL the value is served.
	current = base.Add(999 * time.Millisecond)
	got, found, err := m.GetString("k")
	if err != nil || !found || got != "v" {
		t.Fatalf("GetString inside TTL = (%q, %t, %v), want (v, true, nil)", got, found, err)
	}

	// Just past the TTL it is a miss and the entry is lazily removed.
	current = base.Add(1001 * time.Millisecond)
	_, found, err = m.GetString("k")
	if err != nil {
		t.Fatalf("GetString past TTL failed: %v", err)
	}
	if found {
		t.Error("expired entry still served")
	}
	if _, ok := m.index.lookup(ContentKey("k")); ok {
		t.Error("expired entry still in index")
	}
	if _, err := os.Stat(blobPath(m, "k")); !os.IsNotExist(err) {
		t.Error("expired blob still on disk")
	}

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %d hits / %d misses, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestManagerOverwrite(t *testing.T) {
	m := newTestManager(t, nil)

	base := time.Now()
	current := base
	m.now = func() time.Time { return current }

	first, err := m.SetString("k", "old", time.Hour)
	if err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	current = base.Add(time.Minute)
	second, err := m.SetString("k", "new", time.Hour)
	if err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	if second.ContentKey != first.ContentKey {
		t.Error("overwrite changed the content key")
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Error("overwrite did not refresh created_at")
	}
	if m.index.count() != 1 {
		t.Errorf("index has %d entries, want 1", m.index.count())
	}

	got, _, err := m.GetString("k")
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if got != "new" {
		t.Errorf("GetString = %q, want new", got)
	}
}

func TestManagerHas(t *testing.T) {
	m := newTestManager(t, nil)

	base := time.Now()
	current := base
	m.now = func() time.Time { return current }

	if _, err := m.SetString("k", "v", time.Second); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	found, err := m.Has("k")
	if err != nil || !found {
		t.Errorf("Has = (%t, %v), want (true, nil)", found, err)
	}
	found, err = m.Has("absent")
	if err != nil || found {
		t.Errorf("Has absent = (%t, %v), want (false, nil)", found, err)
	}

	// Has removes expired entries like Get, but never touches hit/miss.
	current = base.Add(2 * time.Second)
	found, err = m.Has("k")
	if err != nil || found {
		t.Errorf("Has expired = (%t, %v), want (false, nil)", found, err)
	}
	if _, ok := m.index.lookup(ContentKey("k")); ok {
		t.Error("expired entry still in index after Has")
	}

	stats := m.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Has touched stats: %d hits / %d misses", stats.Hits, stats.Misses)
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.SetString("k", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	removed, err := m.Delete("k")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete reported nothing removed")
	}
	if _, err := os.Stat(blobPath(m, "k")); !os.IsNotExist(err) {
		t.Error("blob still on disk after Delete")
	}

	removed, err = m.Delete("k")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removed {
		t.Error("second Delete reported something removed")
	}
}

func TestManagerClear(t *testing.T) {
	m := newTestManager(t, nil)

	for _, key := range []string{"a", "b", "c"} {
		if _, err := m.SetString(key, "v", 0); err != nil {
			t.Fatalf("SetString failed: %v", err)
		}
	}
	var dst string
	if _, err := m.Get("missing", &dst); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	removed, err := m.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Clear removed %d entries, want 3", removed)
	}

	stats := m.Stats()
	if stats.TotalFiles != 0 || stats.TotalSize != 0 {
		t.Errorf("stats after Clear = %+v", stats)
	}
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Error("Clear did not reset counters")
	}
}

func TestManagerPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Dir:        dir,
		MaxSize:    1024 * 1024,
		DefaultTTL: time.Hour,
		Logger:     testLogger(),
	}

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := m.SetString("persisted", "value", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, found, err := reopened.GetString("persisted")
	if err != nil {
		t.Fatalf("GetString after reopen failed: %v", err)
	}
	if !found || got != "value" {
		t.Errorf("GetString after reopen = (%q, %t), want (value, true)", got, found)
	}
}

func TestManagerSelfHealsMissingBlob(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.SetString("k", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := os.Remove(blobPath(m, "k")); err != nil {
		t.Fatalf("failed to remove blob: %v", err)
	}

	_, found, err := m.GetString("k")
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if found {
		t.Error("entry served despite missing blob")
	}
	if _, ok := m.index.lookup(ContentKey("k")); ok {
		t.Error("stale index entry not purged")
	}
	if stats := m.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestManagerDecodeFailureLeavesBlob(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Compression = true
	})

	if _, err := m.SetString("k", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := os.WriteFile(blobPath(m, "k"), []byte("corrupted bytes"), 0600); err != nil {
		t.Fatalf("failed to corrupt blob: %v", err)
	}

	_, _, err := m.GetString("k")
	if !errors.IsDecode(err) {
		t.Fatalf("expected decode error, got %v", err)
	}

	// The unreadable entry stays in place for operator inspection.
	if _, ok := m.index.lookup(ContentKey("k")); !ok {
		t.Error("entry purged after decode failure")
	}
	if _, err := os.Stat(blobPath(m, "k")); err != nil {
		t.Error("blob purged after decode failure")
	}
	if stats := m.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestManagerCompressedEntry(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Compression = true
	})

	large := make([]byte, 10000)
	for i := range large {
		large[i] = 'x'
	}

	entry, err := m.SetString("big", string(large), 0)
	if err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if !entry.Compressed {
		t.Error("entry not marked compressed")
	}
	if entry.SizeBytes >= 10000 {
		t.Errorf("stored size %d not smaller than raw 10000", entry.SizeBytes)
	}

	got, found, err := m.GetString("big")
	if err != nil || !found {
		t.Fatalf("GetString = (_, %t, %v)", found, err)
	}
	if got != string(large) {
		t.Error("round trip through compression corrupted the value")
	}
}

func TestManagerStatsAccounting(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.SetString("present", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	var dst string
	outcomes := []struct {
		key     string
		wantHit bool
	}{
		{"present", true},
		{"absent", false},
		{"present", true},
		{"also-absent", false},
		{"absent", false},
	}
	for _, o := range outcomes {
		if _, err := m.Get(o.key, &dst); err != nil {
			t.Fatalf("Get %s failed: %v", o.key, err)
		}
	}

	stats := m.Stats()
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 3 {
		t.Errorf("misses = %d, want 3", stats.Misses)
	}
	if stats.Hits+stats.Misses != uint64(len(outcomes)) {
		t.Errorf("hits+misses = %d, want %d", stats.Hits+stats.Misses, len(outcomes))
	}
	if stats.HitRate != 0.4 {
		t.Errorf("hit rate = %f, want 0.4", stats.HitRate)
	}
}

func TestManagerTextKindNeedsStringDst(t *testing.T) {
	m := newTestManager(t, nil)

	if _, err := m.SetString("k", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	var wrong int
	if _, err := m.Get("k", &wrong); err == nil {
		t.Error("expected error reading a text entry into *int")
	}
}
