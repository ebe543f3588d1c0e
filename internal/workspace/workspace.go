// Package workspace owns compilation units: one per normalized path per
// project, each with a lazily parsed, memoized syntax tree that is dropped
// when the file or anything it depends on changes.
package workspace

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/syntax"
)

// UnitKind tags what a unit holds.
type UnitKind int

const (
	Source UnitKind = iota
	DeclarativeMarkup
	Resource
)

func (k UnitKind) String() string {
	switch k {
	case Source:
		return "source"
	case DeclarativeMarkup:
		return "markup"
	case Resource:
		return "resource"
	}
	return "unknown"
}

// UnitSpec is what an owner knows about a path before it is parsed.
type UnitSpec struct {
	Kind           UnitKind
	QualifiedNames []string
	Source         syntax.Source
	// Library units are resolvable dependencies that are never emitted.
	Library bool
}

// Owner is the project a unit belongs to. Describe reports whether the path
// lies on one of the owner's search paths and what kind of unit it is.
type Owner interface {
	ID() string
	Describe(path string) (UnitSpec, bool)
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithFs sets the file system units are read from. Defaults to the OS.
func WithFs(fs afero.Fs) Option {
	return func(w *Workspace) { w.fs = fs }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithBodyCacheSize bounds the number of parsed function bodies kept in memory.
func WithBodyCacheSize(n int) Option {
	return func(w *Workspace) { w.bodyCacheSize = n }
}

// DefaultBodyCacheSize is used when no size is configured.
const DefaultBodyCacheSize = 1024

// Workspace is the registry of compilation units. Independent workspaces
// share no state.
type Workspace struct {
	fs            afero.Fs
	logger        *slog.Logger
	bodyCacheSize int
	bodies        *BodyCache

	mu         sync.Mutex
	units      map[string]map[string]*Unit
	owners     map[string]Owner
	dependents map[*Unit]map[*Unit]struct{}

	parses atomic.Int64
}

func New(opts ...Option) *Workspace {
	w := &Workspace{
		fs:            afero.NewOsFs(),
		logger:        slog.Default(),
		bodyCacheSize: DefaultBodyCacheSize,
		units:         make(map[string]map[string]*Unit),
		owners:        make(map[string]Owner),
		dependents:    make(map[*Unit]map[*Unit]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.bodies = NewBodyCache(w.bodyCacheSize)
	return w
}

// Fs returns the file system the workspace reads from.
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Bodies returns the shared function body cache.
func (w *Workspace) Bodies() *BodyCache { return w.bodies }

// Parses returns how many times a unit's content has been parsed.
func (w *Workspace) Parses() int64 { return w.parses.Load() }

// Normalize returns the absolute, cleaned form of path used as unit identity.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Units returns the units for path within owner, creating them on first
// request. Repeated and concurrent requests get the same instance. A path
// the owner does not cover yields no units.
func (w *Workspace) Units(path string, owner Owner) []*Unit {
	path = Normalize(path)
	id := owner.ID()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.owners[id] = owner
	byPath := w.units[id]
	if u, ok := byPath[path]; ok {
		return []*Unit{u}
	}
	spec, ok := owner.Describe(path)
	if !ok {
		return nil
	}
	if spec.Source == nil {
		spec.Source = syntax.Resource
	}
	u := newUnit(w, id, path, spec)
	if byPath == nil {
		byPath = make(map[string]*Unit)
		w.units[id] = byPath
	}
	byPath[path] = u
	w.logger.Debug("unit created", "unit", path, "kind", spec.Kind.String(), "owner", id)
	return []*Unit{u}
}

// Lookup returns an existing unit without creating one.
func (w *Workspace) Lookup(path string, owner Owner) (*Unit, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.units[owner.ID()][Normalize(path)]
	return u, ok
}

// All returns every unit of owner, sorted by path.
func (w *Workspace) All(owner Owner) []*Unit {
	w.mu.Lock()
	out := make([]*Unit, 0, len(w.units[owner.ID()]))
	for _, u := range w.units[owner.ID()] {
		out = append(out, u)
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Invalidate drops the cached tree of every unit at path and of every unit
// that transitively depends on one of them. It returns the affected units
// sorted by path.
func (w *Workspace) Invalidate(path string) []*Unit {
	path = Normalize(path)

	w.mu.Lock()
	var start []*Unit
	for _, byPath := range w.units {
		if u, ok := byPath[path]; ok {
			start = append(start, u)
		}
	}
	affected := w.closureLocked(start)
	w.mu.Unlock()

	invalidateAll(affected)
	if len(affected) > 0 {
		w.logger.Debug("units invalidated", "path", path, "count", len(affected))
	}
	return affected
}

// closureLocked returns start plus every unit that transitively depends on
// one of them. w.mu must be held.
func (w *Workspace) closureLocked(start []*Unit) []*Unit {
	queue := append([]*Unit(nil), start...)
	seen := make(map[*Unit]bool)
	var out []*Unit
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		for d := range w.dependents[u] {
			queue = append(queue, d)
		}
	}
	return out
}

// unresolvedLocked returns owner's units whose recorded dependency set
// still has names it could not resolve. w.mu must be held.
func (w *Workspace) unresolvedLocked(owner string) []*Unit {
	var out []*Unit
	for _, u := range w.units[owner] {
		if u.hasUnresolved() {
			out = append(out, u)
		}
	}
	return out
}

// invalidateAll invalidates units and sorts them by path.
func invalidateAll(units []*Unit) {
	for _, u := range units {
		u.invalidate()
	}
	sort.Slice(units, func(i, j int) bool { return units[i].path < units[j].path })
}

// Refresh re-hashes the file at path and invalidates only when its content
// differs from what the units last parsed. A new file that an owner covers
// invalidates that owner's units with unresolved dependencies, since it may
// define one of the missing names.
func (w *Workspace) Refresh(path string) []*Unit {
	path = Normalize(path)
	content, err := afero.ReadFile(w.fs, path)
	fp := ""
	if err == nil {
		fp = hashBytes(content)
	}

	w.mu.Lock()
	changed, known := false, false
	for _, byPath := range w.units {
		if u, ok := byPath[path]; ok {
			known = true
			if u.lastFingerprint() != fp {
				changed = true
			}
		}
	}
	var waiting []*Unit
	if !known && err == nil {
		for id, owner := range w.owners {
			if _, ok := owner.Describe(path); ok {
				waiting = append(waiting, w.unresolvedLocked(id)...)
			}
		}
		waiting = w.closureLocked(waiting)
	}
	w.mu.Unlock()

	if changed {
		return w.Invalidate(path)
	}
	invalidateAll(waiting)
	if len(waiting) > 0 {
		w.logger.Debug("units invalidated", "path", path, "reason", "new file", "count", len(waiting))
	}
	return waiting
}

// Reresolve invalidates owner's units whose dependency set may change after
// a change to its search configuration: units with unresolved names and
// everything that depends on them.
func (w *Workspace) Reresolve(owner Owner) []*Unit {
	w.mu.Lock()
	affected := w.closureLocked(w.unresolvedLocked(owner.ID()))
	w.mu.Unlock()
	invalidateAll(affected)
	return affected
}

// Evict drops owner's units whose path the owner no longer covers and
// returns their paths. Units that depended on an evicted unit, and units
// with unresolved names that new search paths may satisfy, are invalidated
// so their dependency sets are resolved again.
func (w *Workspace) Evict(owner Owner) []string {
	id := owner.ID()
	w.mu.Lock()

	var evicted []string
	var gone []*Unit
	for path, u := range w.units[id] {
		if _, ok := owner.Describe(path); ok {
			continue
		}
		gone = append(gone, u)
		evicted = append(evicted, path)
	}

	goneSet := make(map[*Unit]bool, len(gone))
	for _, u := range gone {
		goneSet[u] = true
	}
	var stale []*Unit
	for _, u := range w.closureLocked(append(gone, w.unresolvedLocked(id)...)) {
		if !goneSet[u] {
			stale = append(stale, u)
		}
	}

	for _, u := range gone {
		delete(w.units[id], u.path)
		delete(w.dependents, u)
		for _, set := range w.dependents {
			delete(set, u)
		}
	}
	w.mu.Unlock()

	invalidateAll(stale)
	sort.Strings(evicted)
	if len(evicted) > 0 || len(stale) > 0 {
		w.logger.Debug("units evicted", "owner", id, "count", len(evicted), "invalidated", len(stale))
	}
	return evicted
}

// SetDependencies records the resolved dependencies of u for the given
// content version and updates the reverse index used by Invalidate.
func (w *Workspace) SetDependencies(u *Unit, version int64, deps []*Unit, ds []diag.Diagnostic) {
	w.mu.Lock()
	defer w.mu.Unlock()

	u.mu.Lock()
	old := u.deps
	if u.version != version {
		u.mu.Unlock()
		return
	}
	u.deps = deps
	u.depDiags = ds
	u.depsVersion = version
	u.depsKnown = true
	u.mu.Unlock()

	for _, d := range old {
		delete(w.dependents[d], u)
	}
	for _, d := range deps {
		set := w.dependents[d]
		if set == nil {
			set = make(map[*Unit]struct{})
			w.dependents[d] = set
		}
		set[u] = struct{}{}
	}
}

// Dependents returns the units that directly depend on u, sorted by path.
func (w *Workspace) Dependents(u *Unit) []*Unit {
	w.mu.Lock()
	out := make([]*Unit, 0, len(w.dependents[u]))
	for d := range w.dependents[u] {
		out = append(out, d)
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
