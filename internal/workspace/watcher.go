package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is how long the watcher waits for a path to settle.
const DefaultDebounce = 100 * time.Millisecond

var (
	ErrNoPathsConfigured = errors.New("no paths configured for watching")
	ErrPathNotDirectory  = errors.New("watch path is not a directory")
	ErrInvalidPattern    = errors.New("invalid exclude pattern")
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Paths are the directories to watch recursively.
	Paths []string
	// ExcludePatterns are glob patterns for paths to ignore.
	ExcludePatterns []string
	Debounce        time.Duration
}

// Change reports the units invalidated by one settled file event.
type Change struct {
	Path        string
	Invalidated []*Unit
}

// Watcher refreshes workspace units when files on disk change.
type Watcher struct {
	ws       *Workspace
	config   WatchConfig
	fsw      *fsnotify.Watcher
	excludes []glob.Glob

	mu      sync.Mutex
	pending map[string]*time.Timer
	changes chan Change
	closed  bool
}

// CompilePatterns compiles '/'-separated glob patterns.
func CompilePatterns(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// MatchAny reports whether path matches one of globs.
func MatchAny(globs []glob.Glob, path string) bool {
	path = filepath.ToSlash(path)
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// NewWatcher creates a watcher over the OS file system.
func (w *Workspace) NewWatcher(config WatchConfig) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, ErrNoPathsConfigured
	}
	for _, p := range config.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, ErrPathNotDirectory
		}
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	excludes, err := CompilePatterns(config.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		ws:       w,
		config:   config,
		fsw:      fsw,
		excludes: excludes,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. The returned channel closes when ctx ends or Close
// is called.
func (w *Watcher) Start(ctx context.Context) (<-chan Change, error) {
	w.changes = make(chan Change, 16)
	for _, p := range w.config.Paths {
		if err := w.addRecursive(p); err != nil {
			close(w.changes)
			return nil, err
		}
	}
	go w.loop(ctx)
	return w.changes, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if MatchAny(w.excludes, path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.ws.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if MatchAny(w.excludes, ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.ws.logger.Warn("watch add failed", "path", ev.Name, "error", err)
			}
			return
		}
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	w.schedule(ev.Name)
}

// schedule restarts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	units := w.ws.Refresh(path)
	if len(units) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	// The units are already invalidated, so a dropped notice only delays
	// the rebuild until the next change.
	select {
	case w.changes <- Change{Path: Normalize(path), Invalidated: units}:
	default:
		w.ws.logger.Warn("watch change dropped", "path", path)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = nil
	_ = w.fsw.Close()
	close(w.changes)
}
