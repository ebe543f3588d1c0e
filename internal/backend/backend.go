// Package backend defines what a code generation target provides: the
// file kinds it compiles, how it resolves its settings and orders a build,
// and the emitter and walker that turn one unit's tree into text.
package backend

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/syntax"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// Extension is a source file extension a backend compiles.
type Extension struct {
	Ext    string
	Kind   workspace.UnitKind
	Source syntax.Source
}

// Settings are a backend's resolved options.
type Settings struct {
	Backend    string
	OutputRoot string
	Subdir     string
	Extension  string
	Values     map[string]string
}

// Bool reads a boolean option; unset or malformed values are false.
func (s Settings) Bool(key string) bool {
	v, err := strconv.ParseBool(s.Values[key])
	return err == nil && v
}

// Get reads a string option.
func (s Settings) Get(key string) string { return s.Values[key] }

// SettingsResolver validates raw options for one backend.
type SettingsResolver interface {
	Resolve(outputRoot string, options map[string]string) (Settings, error)
}

// Target orders the units of a build.
type Target interface {
	Build(ctx context.Context, root *workspace.Unit) (*target.Plan, []diag.Diagnostic, error)
}

// Backend bundles everything needed to compile to one target language.
type Backend interface {
	Name() string
	Extensions() []Extension
	OutputExtension() string
	OutputSubdir() string
	NewSettingsResolver() SettingsResolver
	NewTarget(p *project.Project, s Settings) Target
	// NewBuffer returns an empty buffer for one unit's output.
	NewBuffer(s Settings) *Buffer
	// NewEmitter returns an emitter writing into buf. Each unit gets its own.
	NewEmitter(buf *Buffer, s Settings) Emitter
	NewWalker(u *workspace.Unit, f *ast.File, e Emitter, p *project.Project) Walker
}

// ProjectOptions registers the backend's extensions on a project.
func ProjectOptions(b Backend) []project.Option {
	var opts []project.Option
	for _, e := range b.Extensions() {
		opts = append(opts, project.WithExtension(e.Ext, e.Kind, e.Source))
	}
	return opts
}

// OptionResolver is a SettingsResolver that accepts a fixed set of keys
// with defaults.
type OptionResolver struct {
	Backend   string
	Subdir    string
	Extension string
	Defaults  map[string]string
}

func (r OptionResolver) Resolve(outputRoot string, options map[string]string) (Settings, error) {
	if outputRoot == "" {
		return Settings{}, fmt.Errorf("%s: output root is required", r.Backend)
	}
	values := make(map[string]string, len(r.Defaults))
	for k, v := range r.Defaults {
		values[k] = v
	}
	for k, v := range options {
		if _, known := r.Defaults[k]; !known {
			return Settings{}, fmt.Errorf("%s: unknown option %q", r.Backend, k)
		}
		values[k] = v
	}
	return Settings{
		Backend:    r.Backend,
		OutputRoot: outputRoot,
		Subdir:     r.Subdir,
		Extension:  r.Extension,
		Values:     values,
	}, nil
}

// Registry holds the available backends by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("no backend named %q", name)
	}
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
