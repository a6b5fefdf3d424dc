// SPDX-License-Identifier: MPL-2.0

// Package watch notices edits to local module sources and manifests.
//
// Directories in Config.Roots are watched recursively and single files in
// Config.Files through their parent directory. Events inside the debounce
// window are coalesced so the callback fires once with every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period before OnChange fires. Editors often
// write a temp file and rename it; both events land in one callback.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are matched against paths relative to the watched root and
// never trigger a callback.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// ErrNothingToWatch is returned by New when Config names no roots and no files.
var ErrNothingToWatch = errors.New("watch: nothing to watch")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are directories watched recursively.
		Roots []string

		// Files are single files. Only events on these exact paths count,
		// even though their parent directory is what gets registered.
		Files []string

		// Exclude are directories that are never registered or reported,
		// e.g. the workspace the callback itself writes into.
		Exclude []string

		// Ignore are doublestar patterns, relative to the root an event
		// belongs to, merged with the built-in defaults.
		Ignore []string

		// Debounce falls back to defaultDebounce when zero or negative.
		Debounce time.Duration

		// OnChange receives the sorted absolute paths that changed. Errors are
		// logged and watching continues.
		OnChange func(ctx context.Context, changed []string) error

		// Logger defaults to the charmbracelet/log default logger.
		Logger *log.Logger
	}

	// Watcher fires a debounced callback when watched paths change. Run must
	// be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		files    map[string]struct{}
		exclude  []string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New resolves every configured path and registers the directories with
// fsnotify. Roots that do not exist are an error; files may be missing as
// long as their directory exists.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 && len(cfg.Files) == 0 {
		return nil, ErrNothingToWatch
	}
	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}

	roots, err := absAll(cfg.Roots)
	if err != nil {
		return nil, err
	}
	exclude, err := absAll(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	files := make(map[string]struct{}, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, absErr := filepath.Abs(f)
		if absErr != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", f, absErr)
		}
		files[abs] = struct{}{}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    roots,
		files:    files,
		exclude:  exclude,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		logger:   logger,
	}

	if err := w.register(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("watch: close after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when fsnotify reports an unrecoverable condition.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire runs on the timer goroutine. A callback still in progress pushes
	// the timer out again instead of running concurrently.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("watch: previous sync still running, retrying later")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("watch: callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("watch: close fsnotify", "err", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if !w.relevant(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("watch: fsnotify error", "err", err)
		}
	}
}

// register adds every root tree and the parent directory of every file.
func (w *Watcher) register() error {
	for _, root := range w.roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watch: %s is not a directory", root)
		}
		if err := w.addTree(root, root); err != nil {
			return err
		}
	}

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for _, dir := range slices.Sorted(maps.Keys(dirs)) {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", dir, err)
		}
	}
	return nil
}

// addTree registers start and every directory below it that is neither
// excluded nor ignored. Ignore patterns are matched relative to root.
func (w *Watcher) addTree(root, start string) error {
	err := filepath.WalkDir(start, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("watch: skipping inaccessible path", "path", path, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", start, err)
	}
	return nil
}

// maybeAddDir extends a recursive watch to a directory created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	root, ok := w.rootOf(path)
	if !ok {
		return
	}
	if err := w.addTree(root, path); err != nil {
		w.logger.Warn("watch: add new directory", "path", path, "err", err)
	}
}

// relevant reports whether an event on path should be reported.
func (w *Watcher) relevant(path string) bool {
	if w.excluded(path) {
		return false
	}
	if _, ok := w.files[path]; ok {
		return true
	}
	root, ok := w.rootOf(path)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !w.isIgnored(rel)
}

func (w *Watcher) skipDir(root, dir string) bool {
	if w.excluded(dir) {
		return true
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return false
	}
	return w.isIgnored(rel) || w.isIgnored(rel+"/")
}

// rootOf returns the innermost root containing path.
func (w *Watcher) rootOf(path string) (string, bool) {
	best := ""
	for _, root := range w.roots {
		if within(root, path) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

func (w *Watcher) excluded(path string) bool {
	for _, dir := range w.exclude {
		if within(dir, path) {
			return true
		}
	}
	return false
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}
	return nil
}

func absAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// within reports whether path is dir or lies below it. Both must be clean
// absolute paths.
func within(dir, path string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
