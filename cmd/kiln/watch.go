package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/efebarandurmaz/kiln/internal/graph"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/output"
	"github.com/efebarandurmaz/kiln/internal/pipeline"
	"github.com/efebarandurmaz/kiln/internal/server"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// runWatch builds root once, then again after every settled change on the
// project's paths, until ctx ends.
func runWatch(ctx context.Context, f *buildFlags, root, listen string, store bool) error {
	metrics := observability.NewKilnMetrics()
	p, tp, err := setup(ctx, f, pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}
	cfg := p.Config
	if listen == "" {
		listen = cfg.Server.Listen
	}

	status := server.NewBuildStatus()
	events := server.NewEventHub()
	gs := server.NewGracefulServer(
		&server.HealthConfig{Version: version, Status: status, Metrics: metrics.Handler(), Events: events},
		&server.ShutdownConfig{Timeout: cfg.Server.ShutdownTimeout, Logger: p.Logger},
	)
	if fw, ok := p.Writer.(*output.FSWriter); ok {
		gs.Health.RegisterCheck("output", server.OutputRootHealthChecker(p.Fs, fw.Root()))
	}

	watcher, err := p.Workspace.NewWatcher(workspace.WatchConfig{
		Paths:           append(p.Project.SourcePaths(), p.Project.LibraryPaths()...),
		ExcludePatterns: cfg.Build.Excludes,
	})
	if err != nil {
		tp.Shutdown(context.Background())
		return fmt.Errorf("watch: %w", err)
	}
	gs.RegisterHook(server.WatcherShutdownHook(watcher.Close))
	gs.RegisterHook(server.TracingShutdownHook(tp.Shutdown))

	var repo graph.Repository
	if store {
		if repo, err = openRepository(ctx, cfg.Graph, true); err != nil {
			watcher.Close()
			tp.Shutdown(context.Background())
			return err
		}
		gs.RegisterHook(server.GraphShutdownHook(repo.Close))
		gs.Health.RegisterCheck("graph", server.DependencyHealthChecker("Graph", func(ctx context.Context) error {
			_, err := repo.LoadGraph(ctx, p.Project.ID())
			if errors.Is(err, graph.ErrNotFound) {
				return nil
			}
			return err
		}))
	}

	if listen != "" {
		gs.Start(listen)
		p.Logger.Info("serving health endpoints", "addr", listen)
	} else {
		gs.Shutdown.Start()
	}

	buildCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			gs.Shutdown.Shutdown()
		case <-gs.Shutdown.ShutdownCh():
		}
		cancel()
	}()

	changes, err := watcher.Start(buildCtx)
	if err != nil {
		gs.Shutdown.Shutdown()
		gs.Wait()
		return fmt.Errorf("watch: %w", err)
	}

	rebuild := func(changed []string) {
		events.Broadcast(server.Event{Type: server.EventBuildStarted, Data: map[string]any{"root": root, "changed": changed}})
		start := time.Now()
		res, err := p.Build(buildCtx, root)
		summary := server.BuildSummary{Root: root, Backend: p.Backend.Name(), Changed: changed}
		switch {
		case err != nil:
			if buildCtx.Err() != nil {
				return
			}
			p.Logger.Error("build failed", "root", root, "error", err)
			summary.Errors = 1
			summary.Duration = time.Since(start)
		default:
			printDiagnostics(res.Diagnostics)
			summary.Success = res.Success
			summary.Artifacts = len(res.Artifacts)
			summary.Errors = res.Report.Errors
			summary.Warnings = res.Report.Warnings
			summary.Duration = res.Report.Duration
		}
		if repo != nil && err == nil {
			storeGraph(buildCtx, p, repo, root)
		}
		s := status.Record(summary)
		events.Broadcast(server.Event{Type: server.EventBuildFinished, Data: s})
		fmt.Printf("[%d] %s: %d artifact(s), %d error(s), %d warning(s) in %s\n",
			s.Sequence, root, s.Artifacts, s.Errors, s.Warnings, s.Duration.Round(time.Millisecond))
		gs.Health.SetReady(true)
	}

	rebuild(nil)
	for ch := range changes {
		rebuild(drain(ch, changes))
	}

	gs.Shutdown.Shutdown()
	gs.Wait()
	return nil
}

// storeGraph refreshes the persisted graph; failures are logged and do not
// affect the build.
func storeGraph(ctx context.Context, p *pipeline.Pipeline, repo graph.Repository, root string) {
	g, _, err := analyzeGraph(ctx, p, root)
	if err == nil {
		err = repo.StoreGraph(ctx, p.Project.ID(), g)
	}
	if err != nil {
		p.Logger.Warn("graph store failed", "root", root, "error", err)
	}
}

// drain collects the change just received plus any already queued behind
// it, so that a burst of saves triggers one build.
func drain(first workspace.Change, changes <-chan workspace.Change) []string {
	seen := map[string]bool{first.Path: true}
	for {
		select {
		case ch, ok := <-changes:
			if !ok {
				return sortedPaths(seen)
			}
			seen[ch.Path] = true
		default:
			return sortedPaths(seen)
		}
	}
}

func sortedPaths(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
