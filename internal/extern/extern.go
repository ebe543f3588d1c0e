package extern

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/output"
)

type runOptions struct {
	logger  *slog.Logger
	metrics *observability.KilnMetrics
}

type Option func(*runOptions)

func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

func WithMetrics(m *observability.KilnMetrics) Option {
	return func(o *runOptions) { o.metrics = m }
}

// Result is the outcome of one extern run.
type Result struct {
	diag.Result
	Model    *Model
	Files    []string
	Excluded int
}

// Run compiles the corpus named by cfg and writes the stubs the policy
// keeps through w. A missing external file aborts the run before anything
// is written.
func Run(ctx context.Context, fsys afero.Fs, cfg *Config, w output.Writer, opts ...Option) (*Result, error) {
	o := runOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := observability.StartExternSpan(ctx, len(cfg.Externals))
	defer span.End()

	compiler := NewCompiler(fsys, WithCompilerLogger(o.logger))
	if _, err := compiler.Files(cfg.Externals); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	model, ds, err := compiler.Compile(ctx, cfg.Externals)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if err := w.Prepare(ctx); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("prepare as-root %s: %w", cfg.ASRoot, err)
	}

	em := NewEmitter(model, cfg, w, o.logger)
	if err := em.Emit(ctx); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	ds = append(ds, em.Diagnostics()...)

	res := &Result{Result: diag.NewResult(ds), Model: model, Files: em.Files(), Excluded: em.Excluded()}
	errs, warns := diag.Count(ds)
	if o.metrics != nil {
		o.metrics.RecordExtern(model.Len(), res.Excluded)
	}
	observability.RecordExternResult(span, len(model.Classes), res.Excluded, errs)
	o.logger.Info("extern finished",
		"as_root", cfg.ASRoot,
		"classes", len(model.Classes),
		"files", len(res.Files),
		"excluded", res.Excluded,
		"errors", errs,
		"warnings", warns,
	)
	return res, nil
}
