// Package typescript is the ES module TypeScript backend.
package typescript

import (
	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/syntax/kn"
	"github.com/efebarandurmaz/kiln/internal/syntax/markup"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

const (
	Name = "typescript"

	// OptionStrict annotates untyped declarations with "any".
	OptionStrict = "strict"
	// OptionExport marks top-level declarations with "export".
	OptionExport = "export"
	OptionIndent = "indent"
)

type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string            { return Name }
func (b *Backend) OutputExtension() string { return "ts" }
func (b *Backend) OutputSubdir() string    { return "ts" }

func (b *Backend) Extensions() []backend.Extension {
	return []backend.Extension{
		{Ext: kn.Extension, Kind: workspace.Source, Source: kn.New()},
		{Ext: markup.Extension, Kind: workspace.DeclarativeMarkup, Source: markup.New()},
	}
}

func (b *Backend) NewSettingsResolver() backend.SettingsResolver {
	return backend.OptionResolver{
		Backend:   Name,
		Subdir:    b.OutputSubdir(),
		Extension: b.OutputExtension(),
		Defaults: map[string]string{
			OptionStrict: "true",
			OptionExport: "true",
			OptionIndent: "  ",
		},
	}
}

func (b *Backend) NewTarget(p *project.Project, _ backend.Settings) backend.Target {
	return target.New(p, target.Emittable)
}

func (b *Backend) NewBuffer(s backend.Settings) *backend.Buffer {
	return backend.NewBuffer(s.Get(OptionIndent))
}

func (b *Backend) NewEmitter(buf *backend.Buffer, s backend.Settings) backend.Emitter {
	return NewEmitter(buf, s)
}

func (b *Backend) NewWalker(u *workspace.Unit, f *ast.File, e backend.Emitter, p *project.Project) backend.Walker {
	return backend.NewBlockWalker(u, f, e, p.Workspace().Bodies(), p)
}
