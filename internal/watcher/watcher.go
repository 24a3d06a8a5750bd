package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jgivc/livesite/internal/metrics"
)

// Watcher reports changes anywhere below root. Directories created later are watched too.
type Watcher struct {
	fw       *fsnotify.Watcher
	root     string
	exclude  []string
	debounce time.Duration
	onChange func()
	rec      metrics.Recorder
	log      *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

/*
New starts watching root. onChange is called for every event that may change the site; with a
positive debounce, bursts of events closer than debounce collapse into one call. Paths under
exclude (the output directory, for instance) never trigger.
*/
func New(root string, exclude []string, debounce time.Duration, onChange func(), rec metrics.Recorder, log *slog.Logger) (*Watcher, error) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", root, err)
	}

	if _, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", absRoot, err)
	}

	var absExclude []string
	for _, dir := range exclude {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", dir, err)
		}

		absExclude = append(absExclude, abs)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}

	w := &Watcher{
		fw:       fw,
		root:     absRoot,
		exclude:  absExclude,
		debounce: debounce,
		onChange: onChange,
		rec:      rec,
		log:      log.With(slog.String("item", "Watcher")),
	}

	if err := w.addDirsRecursive(absRoot); err != nil {
		_ = fw.Close()

		return nil, err
	}

	return w, nil
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	w.log.Info("Start watching", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}

			w.handleEvent(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			w.rec.IncWatcherError()
			w.log.Error("Watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.fw.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// attribute changes do not change content
	if ev.Op == fsnotify.Chmod {
		return
	}

	if w.ignored(ev.Name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addDirsRecursive(ev.Name); err != nil {
				w.log.Error("Cannot watch new directory", slog.String("path", ev.Name), slog.Any("error", err))
			}
		}
	}

	w.log.Debug("Change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
	w.rec.IncWatcherEvent(ev.Op.String())
	w.trigger()
}

func (w *Watcher) trigger() {
	if w.debounce <= 0 {
		w.onChange()

		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// the directory may be gone already
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}

		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}

		return nil
	})
}

// ignored reports whether path is in an excluded directory, a hidden one, or is editor noise.
func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.exclude {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}

	return IsEditorNoise(path)
}

// IsEditorNoise reports whether the base name of path is a temp, swap or lock file.
func IsEditorNoise(path string) bool {
	base := filepath.Base(path)

	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}

	return false
}
