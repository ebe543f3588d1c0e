// Package build drives one compilation: it orders the units reachable from a
// root, walks each emittable unit through a backend on a bounded worker pool
// and writes one artifact per unit.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/metrics"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/output"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// ErrRootNotInProject is returned when the root file is not on any of the
// project's source or library paths.
var ErrRootNotInProject = errors.New("root file is not in the project")

type Option func(*Builder)

// WithJobs bounds the number of units emitted concurrently. Values below 1
// mean GOMAXPROCS.
func WithJobs(n int) Option {
	return func(b *Builder) { b.jobs = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

func WithMetrics(m *observability.KilnMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// Builder compiles roots of one project with one backend.
type Builder struct {
	project  *project.Project
	backend  backend.Backend
	settings backend.Settings
	writer   output.Writer
	jobs     int
	logger   *slog.Logger
	metrics  *observability.KilnMetrics
}

func New(p *project.Project, be backend.Backend, s backend.Settings, w output.Writer, opts ...Option) *Builder {
	b := &Builder{project: p, backend: be, settings: s, writer: w, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	if b.jobs < 1 {
		b.jobs = runtime.GOMAXPROCS(0)
	}
	return b
}

// Artifact is one written output file.
type Artifact struct {
	Unit  *workspace.Unit
	Path  string
	Bytes int
}

// Result is the outcome of a build. Success is false iff Diagnostics holds
// an error.
type Result struct {
	diag.Result
	Plan      *target.Plan
	Artifacts []Artifact
	Report    *metrics.BuildReport
}

// unitOutcome is the slot one worker fills for one unit.
type unitOutcome struct {
	artifact *Artifact
	diags    []diag.Diagnostic
	elapsed  time.Duration
}

// Build compiles the unit at rootPath and everything it reaches. Problems
// scoped to a unit come back as diagnostics; the returned error is reserved
// for setup failures and cancellation.
func (b *Builder) Build(ctx context.Context, rootPath string) (*Result, error) {
	units := b.project.Units(rootPath)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRootNotInProject, rootPath)
	}
	root := units[0]
	report := metrics.New(b.backend.Name(), root.Path())
	report.Output.Root = b.settings.OutputRoot

	ctx, span := observability.StartBuildSpan(ctx, b.backend.Name(), root.Path())
	defer span.End()

	if err := b.writer.Prepare(ctx); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	plan, ds, err := b.backend.NewTarget(b.project, b.settings).Build(ctx, root)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	for _, u := range plan.Reachable {
		res, err := u.SyntaxTree(ctx)
		if err != nil {
			return nil, err
		}
		ds = append(ds, res.Diagnostics...)
		switch {
		case u.Kind() == workspace.Resource:
			report.Plan.Resources++
		case u.Library():
			report.Plan.Libraries++
		}
	}
	report.Plan.Reachable = len(plan.Reachable)
	report.Plan.Emittable = len(plan.Emit)

	slots := make([]unitOutcome, len(plan.Emit))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs)
	for i, u := range plan.Emit {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = b.emit(gctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fps, err := workspace.Fingerprints(ctx, plan.Reachable)
	if err != nil {
		return nil, err
	}

	result := &Result{Plan: plan, Report: report}
	for i, u := range plan.Emit {
		slot := slots[i]
		ds = append(ds, slot.diags...)
		um := metrics.UnitMetrics{Name: u.Name(), Path: u.Path(), Duration: slot.elapsed, Skipped: slot.artifact == nil}
		if fp := fps[u.Path()]; fp != nil {
			um.Fingerprint = fp.CompositeHash
		}
		if a := slot.artifact; a != nil {
			result.Artifacts = append(result.Artifacts, *a)
			um.Artifact, um.Bytes = a.Path, a.Bytes
		}
		report.AddUnit(um)
		if b.metrics != nil {
			b.metrics.RecordUnit(slot.elapsed, um.Bytes, len(diag.Filter(slot.diags, diag.KindIO)) > 0)
		}
	}

	bodies := b.project.Workspace().Bodies()
	hits, misses := bodies.Stats()
	report.BodyCache = metrics.CacheMetrics{Entries: bodies.Len(), Hits: hits, Misses: misses}

	result.Result = diag.NewResult(ds)
	report.Finish(result.Result)
	if b.metrics != nil {
		b.metrics.RecordBuild(report.Duration, result.Success)
		b.metrics.RecordBodyCache(bodies.Len(), hits, misses)
	}
	observability.RecordBuildResult(span, result.Success, len(plan.Emit), report.Errors, report.Warnings)
	b.logger.Info("build finished",
		"backend", b.backend.Name(),
		"root", root.Path(),
		"units", len(plan.Emit),
		"artifacts", len(result.Artifacts),
		"errors", report.Errors,
		"warnings", report.Warnings,
		"duration", report.Duration,
	)
	return result, nil
}

// emit walks one unit into a private buffer and writes its artifact. A unit
// with parse errors is skipped; its diagnostics were already collected.
func (b *Builder) emit(ctx context.Context, u *workspace.Unit) (out unitOutcome) {
	start := time.Now()
	ctx, span := observability.StartUnitSpan(ctx, u.Name())
	defer span.End()
	if b.metrics != nil {
		b.metrics.ActiveWorkers.Inc()
		defer b.metrics.ActiveWorkers.Dec()
	}

	defer func() { out.elapsed = time.Since(start) }()

	res, err := u.SyntaxTree(ctx)
	if err != nil || res.HasErrors() {
		return out
	}

	buf := b.backend.NewBuffer(b.settings)
	w := b.backend.NewWalker(u, res.File, b.backend.NewEmitter(buf, b.settings), b.project)
	w.Walk(res.File)
	out.diags = append(out.diags, w.Diagnostics()...)
	if diag.HasErrors(out.diags) {
		b.logger.Debug("unit skipped", "unit", u.Path(), "reason", "body errors")
		return out
	}

	rel := output.ArtifactPath(b.settings.Subdir, u.Name(), b.settings.Extension)
	if err := b.writer.Write(ctx, rel, buf.Bytes()); err != nil {
		observability.RecordError(span, err)
		out.diags = append(out.diags, diag.Errorf(diag.KindIO, u.Path(), 0, "write %s: %v", rel, err))
		return out
	}
	out.artifact = &Artifact{Unit: u, Path: rel, Bytes: buf.Len()}
	b.logger.Debug("unit emitted", "unit", u.Path(), "artifact", rel, "bytes", buf.Len())
	return out
}
