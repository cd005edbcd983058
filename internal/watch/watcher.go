// Package watch turns raw filesystem notifications into debounced change
// batches for the build pipelines and the preview server.
//
// Editors emit several events per save, so events are collected until the
// tree has been quiet for the debounce interval and then delivered as one
// batch. Batches never overlap: if changes arrive while the callback is still
// running they are queued and delivered in a single follow-up call.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/tandem/internal/logging"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 50 * time.Millisecond

// flightKey identifies the single in-flight delivery.
const flightKey = "changes"

// ChangeFunc receives a sorted, de-duplicated batch of changed paths.
type ChangeFunc func(paths []string)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is delivered.
	Debounce time.Duration
	// Ignore lists base names of files or directories that never trigger
	// a batch and are not descended into.
	Ignore []string
	// Exclude lists absolute paths whose trees never trigger a batch.
	Exclude []string
	// Filter, if set, must return true for a path to be delivered.
	Filter func(path string) bool
}

// Watcher watches one or more directory trees recursively.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange ChangeFunc
	debounce time.Duration
	ignore   []string
	exclude  []string
	filter   func(string) bool
	logger   *logging.Logger

	group singleflight.Group

	mu     sync.Mutex
	roots  []string
	queued []string

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

// New creates a Watcher that calls onChange with each batch. A nil logger
// discards watcher errors.
func New(opts Options, onChange ChangeFunc, logger *logging.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watch: onChange callback is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:  fw,
		onChange: onChange,
		debounce: debounce,
		ignore:   slices.Clone(opts.Ignore),
		exclude:  cleanPaths(opts.Exclude),
		filter:   opts.Filter,
		logger:   logger.WithComponent("watch"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Add starts watching root and every directory below it that is not
// ignored. root must be an existing directory.
func (w *Watcher) Add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("watch root does not exist: %s", root)
		}
		return fmt.Errorf("failed to stat watch root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root is not a directory: %s", root)
	}

	root = filepath.Clean(root)
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()

	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return w.watchDirRecursive(root)
}

// Roots returns the directories passed to Add.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.roots)
}

// watchDirRecursive adds all subdirectories to the watcher
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if path != root && w.isIgnored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// Start begins delivering batches. Calling Start more than once is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.watchLoop()
}

// Stop stops the watcher and releases its resources. A batch that is being
// delivered is allowed to finish. Stop is idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()

		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.done
		}
	})
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	defer debounceTimer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.accept(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			pending = make(map[string]struct{})
			w.trigger(batch)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// accept reports whether an event belongs in a batch, and starts watching
// newly created directories.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.isIgnored(event.Name) {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchDirRecursive(event.Name)
		}
	}
	if w.filter != nil && !w.filter(event.Name) {
		return false
	}
	return true
}

// isIgnored matches exclude entries against the absolute path and ignore
// names against the components below the watch root, so a root that itself
// lives under an ignored name is still watched.
func (w *Watcher) isIgnored(path string) bool {
	sep := string(filepath.Separator)
	for _, ex := range w.exclude {
		if path == ex || strings.HasPrefix(path, ex+sep) {
			return true
		}
	}
	rel := w.relative(path)
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, sep) {
		if slices.Contains(w.ignore, part) {
			return true
		}
	}
	return false
}

// relative returns path relative to the deepest root containing it, or the
// base name when no root does.
func (w *Watcher) relative(path string) string {
	sep := string(filepath.Separator)
	w.mu.Lock()
	defer w.mu.Unlock()

	root := ""
	for _, r := range w.roots {
		if (path == r || strings.HasPrefix(path, r+sep)) && len(r) > len(root) {
			root = r
		}
	}
	if root == "" {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}

// trigger queues a batch and makes sure exactly one delivery goroutine is
// draining the queue.
func (w *Watcher) trigger(batch []string) {
	w.mu.Lock()
	w.queued = append(w.queued, batch...)
	w.mu.Unlock()

	ch := w.group.DoChan(flightKey, func() (any, error) {
		w.drain()
		return nil, nil
	})

	// A batch queued just as the running delivery finished joins that
	// delivery without being seen; re-trigger once it completes.
	go func() {
		<-ch
		w.mu.Lock()
		leftover := len(w.queued) > 0
		w.mu.Unlock()
		if leftover {
			select {
			case <-w.stopCh:
			default:
				w.trigger(nil)
			}
		}
	}()
}

func (w *Watcher) drain() {
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.mu.Lock()
		batch := w.queued
		w.queued = nil
		w.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		w.onChange(dedupe(batch))
	}
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

func dedupe(paths []string) []string {
	sort.Strings(paths)
	return slices.Compact(paths)
}
