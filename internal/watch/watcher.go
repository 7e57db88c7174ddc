// Package watch reports diagram files that change on disk.
//
// The Watcher follows the diagram folder recursively with fsnotify, collapses
// bursts of events per file, and publishes one diagram.changed event per file
// on the bus. Views that embed a diagram re-render from it; the session
// manager uses it to notice external edits of targets it has open.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last event for a
// path before reporting it. Editors often emit several events per save.
const DefaultDebounce = 50 * time.Millisecond

// ignoredDirs are never descended into.
var ignoredDirs = []string{".git", ".trash", "node_modules", ".DS_Store"}

// Options configures a Watcher.
type Options struct {
	// Folder is the vault-relative folder to watch. Empty watches the whole vault.
	Folder string
	// Patterns are glob patterns matched against file base names.
	Patterns []string
	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
}

// Watcher publishes diagram.changed events for matching files under a folder.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string // absolute vault root
	dir      string // absolute watched folder
	matchers []glob.Glob
	debounce time.Duration
	bus      *event.Bus
	logger   *logging.Logger

	mu      sync.Mutex
	started bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a stopped Watcher over root/opts.Folder. bus and logger may be nil.
func New(root string, opts Options, bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if len(opts.Patterns) == 0 {
		return nil, errors.NewValidationError("watch needs at least one pattern").WithField("patterns")
	}
	matchers := make([]glob.Glob, 0, len(opts.Patterns))
	for _, p := range opts.Patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, errors.NewValidationError("invalid watch pattern").WithField("patterns").WithValue(p)
		}
		matchers = append(matchers, g)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve vault root")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		root:     abs,
		dir:      filepath.Join(abs, filepath.FromSlash(opts.Folder)),
		matchers: matchers,
		debounce: opts.Debounce,
		bus:      bus,
		logger:   logger.WithComponent("watch"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the folder and its subfolders to the watcher and begins
// reporting changes. The folder must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}
	info, err := os.Stat(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewValidationError("watched folder does not exist").WithValue(w.dir)
		}
		return err
	}
	if !info.IsDir() {
		return errors.NewValidationError("watched path is not a directory").WithValue(w.dir)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.watchDirRecursive(w.dir)

	w.started = true
	go w.watchLoop()
	w.logger.Info("watching diagrams", "dir", w.dir)
	return nil
}

// Stop stops the watcher and releases its resources. It is safe to call more
// than once, and on a watcher that was never started.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()

		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.doneCh
		}
	})
}

// Watched returns the directories currently watched, relative to the vault root.
func (w *Watcher) Watched() []string {
	var out []string
	for _, dir := range w.watcher.WatchList() {
		if rel, ok := w.relative(dir); ok {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// watchDirRecursive adds every subdirectory of root to the watcher.
func (w *Watcher) watchDirRecursive(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && isIgnored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Debug("failed to watch directory", "dir", p, "error", err)
		}
		return nil
	})
}

func isIgnored(name string) bool {
	for _, ignore := range ignoredDirs {
		if name == ignore {
			return true
		}
	}
	return false
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	// path -> removed
	pending := make(map[string]bool)

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !isIgnored(filepath.Base(ev.Name)) {
						w.watchDirRecursive(ev.Name)
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}

			pending[ev.Name] = ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			batch := pending
			pending = make(map[string]bool)
			w.flush(batch)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// flush publishes one event per path, in path order.
func (w *Watcher) flush(batch map[string]bool) {
	paths := make([]string, 0, len(batch))
	for p := range batch {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rel, ok := w.relative(p)
		if !ok {
			continue
		}
		removed := batch[p]
		if removed {
			// A rename-over leaves the file in place.
			if _, err := os.Stat(p); err == nil {
				removed = false
			}
		}
		w.logger.Debug("diagram changed", "target", rel, "removed", removed)
		w.bus.Publish(event.NewDiagramChangedEvent(rel, removed))
	}
}

func (w *Watcher) matches(p string) bool {
	base := strings.ToLower(filepath.Base(p))
	for _, m := range w.matchers {
		if m.Match(base) {
			return true
		}
	}
	return false
}

// relative converts an absolute path into a slash-separated vault path.
func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
