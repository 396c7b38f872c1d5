package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, root string, debounce time.Duration) (*Watcher, chan struct{}) {
	t.Helper()
	changes := make(chan struct{}, 16)
	w := New(root, func() { changes <- struct{}{} }, WithDebounce(debounce))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, changes
}

func waitChange(t *testing.T, ch chan struct{}, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	w, changes := startWatcher(t, root, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		name := filepath.Join(root, "doc"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if !waitChange(t, changes, 2*time.Second) {
		t.Fatal("expected a change notification")
	}
	if !w.Stale() {
		t.Error("watcher should be stale after changes")
	}

	// The burst must have settled into a single notification.
	if waitChange(t, changes, 300*time.Millisecond) {
		t.Error("burst produced more than one notification")
	}

	w.MarkCompiled()
	if w.Stale() {
		t.Error("MarkCompiled should clear the stale flag")
	}
}

func TestWatcherIgnoresInternalJSON(t *testing.T) {
	root := t.TempDir()
	w, changes := startWatcher(t, root, 50*time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "vector-store.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if waitChange(t, changes, 400*time.Millisecond) {
		t.Error("json state files must not trigger notifications")
	}
	if w.Stale() {
		t.Error("json state files must not mark the index stale")
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	_, changes := startWatcher(t, root, 50*time.Millisecond)

	sub := filepath.Join(root, "group-1")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if !waitChange(t, changes, 2*time.Second) {
		t.Fatal("expected notification for new directory")
	}

	// Files inside the new directory are watched too.
	if err := os.WriteFile(filepath.Join(sub, "doc.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitChange(t, changes, 2*time.Second) {
		t.Error("expected notification for file in new directory")
	}
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "groups")
	w := New(root, nil, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("watched root should be created: %v", err)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, _ := startWatcher(t, t.TempDir(), 50*time.Millisecond)
	w.Stop()
	w.Stop()
}
