package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type collector struct {
	mu    sync.Mutex
	calls []map[string]fsnotify.Op
}

func (c *collector) OnChanges(files map[string]fsnotify.Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, files)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func waitForCalls(t *testing.T, c *collector, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d debounced flush(es), got %d", n, c.count())
}

func TestWatcherFlushesWriteAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Config{Paths: []string{dir}, DebounceDelay: 20 * time.Millisecond}, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForCalls(t, c, 1)
}

func TestWatcherFileFilterExcludesPath(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Config{
		Paths:         []string{dir},
		DebounceDelay: 20 * time.Millisecond,
		FileFilter:    func(path string) bool { return filepath.Base(path) != "ignored.go" },
	}, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "ignored.go"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if c.count() != 0 {
		t.Fatalf("FileFilter did not suppress the event: got %d flushes", c.count())
	}
}

func TestWatcherSkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(Config{Paths: []string{dir}, DebounceDelay: 20 * time.Millisecond}, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if c.count() != 0 {
		t.Fatalf("dotfile should be skipped: got %d flushes", c.count())
	}
}

func TestIsRemove(t *testing.T) {
	if !IsRemove(fsnotify.Remove) {
		t.Error("IsRemove(Remove) = false")
	}
	if IsRemove(fsnotify.Write) {
		t.Error("IsRemove(Write) = true")
	}
}

func TestStatsReportsWatchedPaths(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Paths: []string{dir}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	stats := w.Stats()
	if !stats.Enabled {
		t.Error("Stats().Enabled = false")
	}
	if stats.DirsWatched < 1 {
		t.Errorf("DirsWatched = %d, want at least 1", stats.DirsWatched)
	}
}
