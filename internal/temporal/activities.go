package temporal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/afero"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/build"
	"github.com/efebarandurmaz/kiln/internal/config"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/extern"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/pipeline"
)

// Non-retryable error types reported by the activities.
const (
	ErrTypeSetup           = "SetupError"
	ErrTypeRootNotFound    = "RootNotInProject"
	ErrTypeMissingFile     = "MissingFile"
	ErrTypeMalformedExtern = "MalformedExclusionArgument"
)

// CompileResult is the serializable outcome of one root's build.
type CompileResult struct {
	Root        string
	Success     bool
	Artifacts   []string
	Errors      int
	Warnings    int
	Diagnostics []string
}

// ExternResult is the serializable outcome of an extern run.
type ExternResult struct {
	Success     bool
	Files       []string
	Excluded    int
	Errors      int
	Warnings    int
	Diagnostics []string
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Fs       afero.Fs
	Registry *backend.Registry

	// Artifacts selects the artifact sink for every build the worker runs.
	Artifacts config.ArtifactsConfig
	Logger    *slog.Logger
	Metrics   *observability.KilnMetrics
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func current() *Dependencies {
	d := Dependencies{Fs: afero.NewOsFs(), Logger: slog.Default()}
	if deps != nil {
		d = *deps
	}
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Registry == nil {
		d.Registry = pipeline.DefaultRegistry()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &d
}

// CompileActivity builds root with the given build section. Configuration
// problems fail without retry; unit-scoped problems come back as
// diagnostics in the result.
func CompileActivity(ctx context.Context, bc config.BuildConfig, root string) (CompileResult, error) {
	d := current()
	cfg := config.Default()
	cfg.Build = bc
	cfg.Artifacts = d.Artifacts

	opts := []pipeline.Option{pipeline.WithFs(d.Fs), pipeline.WithLogger(d.Logger.With("root", root))}
	if d.Metrics != nil {
		opts = append(opts, pipeline.WithMetrics(d.Metrics))
	}
	p, err := pipeline.New(cfg, d.Registry, opts...)
	if err != nil {
		return CompileResult{}, sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSetup, err)
	}

	res, err := p.Build(ctx, root)
	switch {
	case errors.Is(err, build.ErrRootNotInProject):
		return CompileResult{}, sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRootNotFound, err)
	case err != nil:
		return CompileResult{}, err
	}

	out := CompileResult{
		Root:        root,
		Success:     res.Success,
		Errors:      res.Report.Errors,
		Warnings:    res.Report.Warnings,
		Diagnostics: diagnostics(res.Diagnostics),
	}
	for _, a := range res.Artifacts {
		out.Artifacts = append(out.Artifacts, a.Path)
	}
	return out, nil
}

// ExternActivity compiles the declaration corpus into stubs under the
// configured as-root.
func ExternActivity(ctx context.Context, ec config.ExternConfig) (ExternResult, error) {
	d := current()
	res, err := pipeline.Extern(ctx, d.Fs, ec, d.Logger, d.Metrics)
	switch {
	case errors.Is(err, extern.ErrMissingFile):
		return ExternResult{}, sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMissingFile, err)
	case errors.Is(err, extern.ErrMalformedExclusionArgument):
		return ExternResult{}, sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeMalformedExtern, err)
	case err != nil:
		return ExternResult{}, err
	}
	errs, warns := diag.Count(res.Diagnostics)
	return ExternResult{
		Success:     res.Success,
		Files:       res.Files,
		Excluded:    res.Excluded,
		Errors:      errs,
		Warnings:    warns,
		Diagnostics: diagnostics(res.Diagnostics),
	}, nil
}

func diagnostics(ds []diag.Diagnostic) []string {
	if len(ds) == 0 {
		return nil
	}
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
