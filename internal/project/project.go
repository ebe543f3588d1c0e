// Package project maps qualified names to files on ordered source and
// library paths and computes the set of units reachable from a root.
package project

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/syntax"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// NamespaceMapping binds a markup namespace URI to a package.
type NamespaceMapping struct {
	URI     string
	Package string
}

type extension struct {
	kind   workspace.UnitKind
	source syntax.Source
}

// Option configures a Project.
type Option func(*Project)

// WithExtension registers a file extension (".kn") and the parser for it.
func WithExtension(ext string, kind workspace.UnitKind, src syntax.Source) Option {
	return func(p *Project) { p.extensions[ext] = extension{kind: kind, source: src} }
}

// WithResourceExtensions registers extensions of opaque resource files.
func WithResourceExtensions(exts ...string) Option {
	return func(p *Project) {
		for _, ext := range exts {
			p.extensions[ext] = extension{kind: workspace.Resource, source: syntax.Resource}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Project) { p.logger = l }
}

var projectSeq atomic.Int64

// Project is one build configuration over a workspace.
type Project struct {
	id     string
	name   string
	ws     *workspace.Workspace
	logger *slog.Logger

	mu           sync.RWMutex
	sourcePaths  []string
	libraryPaths []string
	namespaces   map[string]string
	excludes     []glob.Glob
	extensions   map[string]extension
}

func New(name string, ws *workspace.Workspace, opts ...Option) *Project {
	p := &Project{
		id:         fmt.Sprintf("%s#%d", name, projectSeq.Add(1)),
		name:       name,
		ws:         ws,
		logger:     slog.Default(),
		namespaces: make(map[string]string),
		extensions: make(map[string]extension),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID identifies the project within its workspace.
func (p *Project) ID() string { return p.id }

func (p *Project) Name() string { return p.name }

func (p *Project) Workspace() *workspace.Workspace { return p.ws }

// SetSourcePath replaces the ordered source roots. Units that no longer lie
// on any search path are evicted.
func (p *Project) SetSourcePath(paths ...string) {
	p.mu.Lock()
	p.sourcePaths = normalizeAll(paths)
	p.mu.Unlock()
	p.ws.Evict(p)
}

// SetLibraries replaces the ordered library roots.
func (p *Project) SetLibraries(paths ...string) {
	p.mu.Lock()
	p.libraryPaths = normalizeAll(paths)
	p.mu.Unlock()
	p.ws.Evict(p)
}

// SetNamespaceMappings replaces the markup namespace mappings.
func (p *Project) SetNamespaceMappings(mappings ...NamespaceMapping) {
	p.mu.Lock()
	p.namespaces = make(map[string]string, len(mappings))
	for _, m := range mappings {
		p.namespaces[m.URI] = m.Package
	}
	p.mu.Unlock()
	p.ws.Reresolve(p)
}

// SetExcludes sets glob patterns for files that are never treated as units.
func (p *Project) SetExcludes(patterns ...string) error {
	globs, err := workspace.CompilePatterns(patterns)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.excludes = globs
	p.mu.Unlock()
	p.ws.Evict(p)
	return nil
}

func (p *Project) SourcePaths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.sourcePaths...)
}

func (p *Project) LibraryPaths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.libraryPaths...)
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if path != "" {
			out = append(out, workspace.Normalize(path))
		}
	}
	return out
}

// Describe implements workspace.Owner.
func (p *Project) Describe(path string) (workspace.UnitSpec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ext, ok := p.extensions[filepath.Ext(path)]
	if !ok || workspace.MatchAny(p.excludes, path) {
		return workspace.UnitSpec{}, false
	}
	rel, library, ok := p.relative(path)
	if !ok {
		return workspace.UnitSpec{}, false
	}
	name := filepath.ToSlash(rel)
	if ext.kind != workspace.Resource {
		name = strings.ReplaceAll(strings.TrimSuffix(name, filepath.Ext(name)), "/", ".")
	}
	return workspace.UnitSpec{
		Kind:           ext.kind,
		QualifiedNames: []string{name},
		Source:         ext.source,
		Library:        library,
	}, true
}

// relative finds the first root containing path. Caller holds p.mu.
func (p *Project) relative(path string) (rel string, library bool, ok bool) {
	for _, root := range p.sourcePaths {
		if r, ok := within(root, path); ok {
			return r, false, true
		}
	}
	for _, root := range p.libraryPaths {
		if r, ok := within(root, path); ok {
			return r, true, true
		}
	}
	return "", false, false
}

func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// Units returns the units for path in this project.
func (p *Project) Units(path string) []*workspace.Unit {
	return p.ws.Units(path, p)
}

// Resolve finds the unit defining qname, searching source paths before
// library paths and extensions in sorted order.
func (p *Project) Resolve(qname string) (*workspace.Unit, bool) {
	if qname == "" {
		return nil, false
	}
	p.mu.RLock()
	roots := append(append([]string(nil), p.sourcePaths...), p.libraryPaths...)
	var exts []string
	for ext, e := range p.extensions {
		if e.kind != workspace.Resource {
			exts = append(exts, ext)
		}
	}
	p.mu.RUnlock()
	sort.Strings(exts)

	rel := filepath.FromSlash(strings.ReplaceAll(qname, ".", "/"))
	for _, root := range roots {
		for _, ext := range exts {
			if u, ok := p.existing(filepath.Join(root, rel+ext)); ok {
				return u, true
			}
		}
	}
	return nil, false
}

// ResolveResource finds a resource unit by its root-relative path.
func (p *Project) ResolveResource(rel string) (*workspace.Unit, bool) {
	roots := append(p.SourcePaths(), p.LibraryPaths()...)
	for _, root := range roots {
		if u, ok := p.existing(filepath.Join(root, filepath.FromSlash(rel))); ok {
			return u, true
		}
	}
	return nil, false
}

func (p *Project) existing(path string) (*workspace.Unit, bool) {
	if _, err := p.ws.Fs().Stat(path); err != nil {
		return nil, false
	}
	units := p.Units(path)
	if len(units) == 0 {
		return nil, false
	}
	return units[0], true
}

// QualifiedName turns a name as written in f into a qualified name.
// Markup names ("k:Button") go through the file's namespace prefixes and the
// project's namespace mappings; bare names try the imports, then the file's
// own package. It returns "" for a markup name whose namespace is unmapped.
func (p *Project) QualifiedName(f *ast.File, name string) string {
	if f == nil {
		f = &ast.File{}
	}
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		uri, known := f.Namespaces[prefix]
		if !known {
			return ""
		}
		p.mu.RLock()
		pkg, mapped := p.namespaces[uri]
		p.mu.RUnlock()
		if !mapped {
			return ""
		}
		return joinName(pkg, local)
	}
	if strings.Contains(name, ".") || f.Package == nil {
		return name
	}
	for _, imp := range f.Package.Imports {
		if imp.Name == name || strings.HasSuffix(imp.Name, "."+name) {
			return imp.Name
		}
	}
	return joinName(f.Package.Name, name)
}

func joinName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// Discover lists every recognized, non-excluded file on the source paths.
func (p *Project) Discover() ([]string, error) {
	var found []string
	for _, root := range p.SourcePaths() {
		err := afero.Walk(p.ws.Fs(), root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				p.mu.RLock()
				skip := path != root && workspace.MatchAny(p.excludes, path)
				p.mu.RUnlock()
				if skip {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := p.Describe(path); ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", root, err)
		}
	}
	sort.Strings(found)
	return found, nil
}
