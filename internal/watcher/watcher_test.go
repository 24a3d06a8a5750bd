package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, root string, exclude []string, debounce time.Duration) (*Watcher, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32

	w, err := New(root, exclude, debounce, func() { calls.Add(1) }, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return w, &calls
}

func TestWatcherTriggersOnChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "blog", "first"), 0o755))

	w, calls := newTestWatcher(t, root, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "blog", "first", "content.md"), []byte("+++\n+++\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	// directories created after start are watched as well
	newDir := filepath.Join(root, "blog", "second")
	prev := calls.Load()
	require.NoError(t, os.MkdirAll(newDir, 0o755))
	require.Eventually(t, func() bool { return calls.Load() > prev }, 2*time.Second, 10*time.Millisecond)

	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "content.md"), []byte("+++\n+++\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherDebounce(t *testing.T) {
	root := t.TempDir()

	w, calls := newTestWatcher(t, root, nil, 100*time.Millisecond)

	for n := 0; n < 5; n++ {
		w.handleEvent(fsnotify.Event{Name: filepath.Join(root, "content.md"), Op: fsnotify.Write})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return calls.Load() > 1 }, 300*time.Millisecond, 20*time.Millisecond)
}

func TestWatcherFiltersEvents(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "html")
	require.NoError(t, os.MkdirAll(out, 0o755))

	w, calls := newTestWatcher(t, root, []string{out}, 0)

	testCases := []struct {
		name    string
		ev      fsnotify.Event
		trigger bool
	}{
		{name: "write", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a", "content.md"), Op: fsnotify.Write}, trigger: true},
		{name: "remove", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a"), Op: fsnotify.Remove}, trigger: true},
		{name: "rename", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "b"), Op: fsnotify.Rename}, trigger: true},
		{name: "chmod only", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a", "content.md"), Op: fsnotify.Chmod}},
		{name: "swap file", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a", ".content.md.swp"), Op: fsnotify.Create}},
		{name: "backup file", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a", "content.md~"), Op: fsnotify.Write}},
		{name: "emacs lock", ev: fsnotify.Event{Name: filepath.Join(root, "blog", "a", "#content.md#"), Op: fsnotify.Write}},
		{name: "hidden dir", ev: fsnotify.Event{Name: filepath.Join(root, "blog", ".git", "index"), Op: fsnotify.Write}},
		{name: "output dir", ev: fsnotify.Event{Name: filepath.Join(out, "blog", "a.html"), Op: fsnotify.Create}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := calls.Load()
			w.handleEvent(tc.ev)

			if tc.trigger {
				require.Equal(t, before+1, calls.Load())
			} else {
				require.Equal(t, before, calls.Load())
			}
		})
	}
}

func TestNewFailsOnMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil, 0, func() {}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
