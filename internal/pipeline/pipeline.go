// Package pipeline assembles a ready-to-build project from configuration:
// the workspace, the project with its paths, the selected backend with
// resolved settings and the artifact writer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/backend/js"
	"github.com/efebarandurmaz/kiln/internal/backend/typescript"
	"github.com/efebarandurmaz/kiln/internal/build"
	"github.com/efebarandurmaz/kiln/internal/config"
	"github.com/efebarandurmaz/kiln/internal/extern"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/output"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// DefaultRegistry returns a registry holding every built-in backend.
func DefaultRegistry() *backend.Registry {
	r := backend.NewRegistry()
	r.Register(js.New())
	r.Register(typescript.New())
	return r
}

type Option func(*Pipeline)

// WithFs replaces the OS file system, mostly for tests.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.Fs = fs }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.Logger = l }
}

func WithMetrics(m *observability.KilnMetrics) Option {
	return func(p *Pipeline) { p.Metrics = m }
}

// WithWriter overrides the artifact writer chosen from the artifacts
// section.
func WithWriter(w output.Writer) Option {
	return func(p *Pipeline) { p.Writer = w }
}

// Pipeline is one configured project bound to one backend.
type Pipeline struct {
	Config    *config.Config
	Fs        afero.Fs
	Workspace *workspace.Workspace
	Project   *project.Project
	Backend   backend.Backend
	Settings  backend.Settings
	Writer    output.Writer
	Logger    *slog.Logger
	Metrics   *observability.KilnMetrics
}

// New builds the pipeline described by cfg.Build. Unknown backends,
// invalid options and malformed exclude globs are setup errors.
func New(cfg *config.Config, reg *backend.Registry, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{Config: cfg, Fs: afero.NewOsFs(), Logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}

	be, err := reg.Get(cfg.Build.Backend)
	if err != nil {
		return nil, err
	}
	settings, err := be.NewSettingsResolver().Resolve(cfg.Build.OutputRoot, cfg.Build.Backends[be.Name()])
	if err != nil {
		return nil, fmt.Errorf("backend settings: %w", err)
	}

	wsOpts := []workspace.Option{workspace.WithFs(p.Fs), workspace.WithLogger(p.Logger)}
	if cfg.Build.BodyCacheSize > 0 {
		wsOpts = append(wsOpts, workspace.WithBodyCacheSize(cfg.Build.BodyCacheSize))
	}
	ws := workspace.New(wsOpts...)

	name := cfg.Build.Project
	if name == "" {
		name = "kiln"
	}
	projOpts := append(backend.ProjectOptions(be), project.WithLogger(p.Logger))
	proj := project.New(name, ws, projOpts...)
	proj.SetSourcePath(cfg.Build.SourcePaths...)
	proj.SetLibraries(cfg.Build.LibraryPaths...)
	proj.SetNamespaceMappings(cfg.Build.NamespaceMappings()...)
	if err := proj.SetExcludes(cfg.Build.Excludes...); err != nil {
		return nil, fmt.Errorf("build excludes: %w", err)
	}

	if p.Writer == nil {
		if cfg.Artifacts.Enabled() {
			ow, err := output.NewObjectWriter(cfg.Artifacts.ObjectConfig())
			if err != nil {
				return nil, fmt.Errorf("artifact store: %w", err)
			}
			p.Writer = ow
		} else {
			p.Writer = output.NewFSWriter(p.Fs, settings.OutputRoot)
		}
	}

	p.Workspace = ws
	p.Project = proj
	p.Backend = be
	p.Settings = settings
	return p, nil
}

// Builder returns a build driver for the pipeline's project.
func (p *Pipeline) Builder() *build.Builder {
	opts := []build.Option{build.WithJobs(p.Config.Build.Jobs), build.WithLogger(p.Logger)}
	if p.Metrics != nil {
		opts = append(opts, build.WithMetrics(p.Metrics))
	}
	return build.New(p.Project, p.Backend, p.Settings, p.Writer, opts...)
}

// Build compiles root and everything it reaches.
func (p *Pipeline) Build(ctx context.Context, root string) (*build.Result, error) {
	return p.Builder().Build(ctx, root)
}

// Extern runs the extern compiler configured in the extern section. Stubs
// always go to the local as-root.
func Extern(ctx context.Context, fs afero.Fs, ec config.ExternConfig, logger *slog.Logger, m *observability.KilnMetrics) (*extern.Result, error) {
	cfg, err := extern.NewConfig(fs, ec.Options())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []extern.Option{extern.WithLogger(logger)}
	if m != nil {
		opts = append(opts, extern.WithMetrics(m))
	}
	return extern.Run(ctx, fs, cfg, output.NewFSWriter(fs, cfg.ASRoot), opts...)
}
