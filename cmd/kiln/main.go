package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/kiln/internal/config"
	"github.com/efebarandurmaz/kiln/internal/depgraph"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/graph"
	graphneo4j "github.com/efebarandurmaz/kiln/internal/graph/neo4j"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/pipeline"
)

const version = "0.1.0"

// buildFlags override the build section of the config file.
type buildFlags struct {
	configPath   string
	backend      string
	output       string
	sourcePaths  []string
	libraryPaths []string
	namespaces   []string
	jobs         int
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Backend name (see `kiln backends`)")
	cmd.Flags().StringVar(&f.output, "output", "", "Output root")
	cmd.Flags().StringSliceVar(&f.sourcePaths, "source-path", nil, "Source root (repeatable)")
	cmd.Flags().StringSliceVar(&f.libraryPaths, "library-path", nil, "Library root (repeatable)")
	cmd.Flags().StringArrayVar(&f.namespaces, "namespace", nil, "Markup namespace mapping uri=package (repeatable)")
	cmd.Flags().IntVar(&f.jobs, "jobs", 0, "Units emitted concurrently (default GOMAXPROCS)")
}

func main() {
	var (
		bf         buildFlags
		jsonReport bool
	)

	rootCmd := &cobra.Command{
		Use:          "kiln",
		Short:        "Incremental multi-backend compiler",
		Version:      version,
		SilenceUsage: true,
	}

	buildCmd := &cobra.Command{
		Use:   "build <root-file>",
		Short: "Compile a root file and everything it reaches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), &bf, args[0], jsonReport)
		},
	}
	bf.register(buildCmd)
	buildCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the build report as JSON")

	var (
		externConfig string
		ec           config.ExternConfig
	)
	externCmd := &cobra.Command{
		Use:   "extern",
		Short: "Generate reference stubs from a declaration corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtern(cmd.Context(), cmd, externConfig, ec)
		},
	}
	externCmd.Flags().StringVar(&externConfig, "config", "", "Config file path")
	externCmd.Flags().StringVar(&ec.ASRoot, "as-root", "", "Directory receiving the stubs")
	externCmd.Flags().StringSliceVar(&ec.External, "external", nil, "Declaration file or directory (repeatable)")
	externCmd.Flags().StringSliceVar(&ec.ClassToFunction, "class-to-function", nil, "Class emitted as a function")
	externCmd.Flags().StringSliceVar(&ec.ClassExclude, "class-exclude", nil, "Class to exclude")
	externCmd.Flags().StringSliceVar(&ec.FieldExclude, "field-exclude", nil, "Field to exclude, as class,field")
	externCmd.Flags().StringSliceVar(&ec.Exclude, "exclude", nil, "Member to exclude, as class,member")

	var (
		graphFormat string
		store       bool
		dependents  string
	)
	graphCmd := &cobra.Command{
		Use:   "graph <root-file>",
		Short: "Analyze the unit dependency graph of a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.Context(), &bf, args[0], graphFormat, store, dependents)
		},
	}
	bf.register(graphCmd)
	graphCmd.Flags().StringVar(&graphFormat, "format", "text", "Output format: text, dot, mermaid, json")
	graphCmd.Flags().BoolVar(&store, "store", false, "Persist the graph to the configured Neo4j database")
	graphCmd.Flags().StringVar(&dependents, "dependents", "", "Print the units that transitively import this unit ID")

	var (
		listen     string
		watchStore bool
	)
	watchCmd := &cobra.Command{
		Use:   "watch <root-file>",
		Short: "Rebuild a root whenever its sources change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), &bf, args[0], listen, watchStore)
		},
	}
	bf.register(watchCmd)
	watchCmd.Flags().BoolVar(&watchStore, "store", false, "Keep the Neo4j dependency graph current after every build")
	watchCmd.Flags().StringVar(&listen, "listen", "", "Serve health probes, /status, /events and /metrics on this address")

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "List available backends",
		Run: func(cmd *cobra.Command, args []string) {
			reg := pipeline.DefaultRegistry()
			fmt.Println("Available backends:")
			fmt.Println()
			for _, name := range reg.Names() {
				be, _ := reg.Get(name)
				fmt.Printf("  %-12s %s/*.%s\n", name, be.OutputSubdir(), be.OutputExtension())
			}
		},
	}

	rootCmd.AddCommand(buildCmd, externCmd, graphCmd, watchCmd, backendsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *buildFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.backend != "" {
		cfg.Build.Backend = f.backend
	}
	if f.output != "" {
		cfg.Build.OutputRoot = f.output
	}
	if len(f.sourcePaths) > 0 {
		cfg.Build.SourcePaths = f.sourcePaths
	}
	if len(f.libraryPaths) > 0 {
		cfg.Build.LibraryPaths = f.libraryPaths
	}
	if f.jobs > 0 {
		cfg.Build.Jobs = f.jobs
	}
	mappings, err := parseNamespaces(f.namespaces)
	if err != nil {
		return nil, err
	}
	if len(mappings) > 0 && cfg.Build.Namespaces == nil {
		cfg.Build.Namespaces = make(map[string]string, len(mappings))
	}
	for uri, pkg := range mappings {
		cfg.Build.Namespaces[uri] = pkg
	}
	if len(cfg.Build.SourcePaths) == 0 {
		cfg.Build.SourcePaths = []string{"."}
	}
	return cfg, nil
}

// parseNamespaces parses uri=package values. The URI may itself contain
// '=', so the last one separates the package.
func parseNamespaces(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, "=")
		if i <= 0 {
			return nil, fmt.Errorf("namespace %q: expected uri=package", v)
		}
		out[v[:i]] = v[i+1:]
	}
	return out, nil
}

// setup loads configuration and builds the logger, tracer and pipeline
// shared by the build, graph and watch commands.
func setup(ctx context.Context, f *buildFlags, opts ...pipeline.Option) (*pipeline.Pipeline, *observability.TracerProvider, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Log.Observability(), os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	tp, err := observability.InitTracing(ctx, cfg.Tracing.Observability())
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}
	p, err := pipeline.New(cfg, pipeline.DefaultRegistry(), append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)...)
	if err != nil {
		tp.Shutdown(ctx)
		return nil, nil, err
	}
	return p, tp, nil
}

func runBuild(ctx context.Context, f *buildFlags, root string, jsonReport bool) error {
	p, tp, err := setup(ctx, f)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	res, err := p.Build(ctx, root)
	if err != nil {
		return err
	}
	printDiagnostics(res.Diagnostics)

	if jsonReport {
		data, err := res.Report.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		res.Report.PrintSummary(os.Stdout)
	}

	if !res.Success {
		return fmt.Errorf("build failed with %d error(s)", res.Report.Errors)
	}
	return nil
}

func runExtern(ctx context.Context, cmd *cobra.Command, configPath string, flags config.ExternConfig) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Log.Observability(), os.Stderr)
	if err != nil {
		return err
	}

	// Flags given on the command line replace the file's lists.
	ec := cfg.Extern
	set := cmd.Flags().Changed
	if set("as-root") {
		ec.ASRoot = flags.ASRoot
	}
	if set("external") {
		ec.External = flags.External
	}
	if set("class-to-function") {
		ec.ClassToFunction = flags.ClassToFunction
	}
	if set("class-exclude") {
		ec.ClassExclude = flags.ClassExclude
	}
	if set("field-exclude") {
		ec.FieldExclude = flags.FieldExclude
	}
	if set("exclude") {
		ec.Exclude = flags.Exclude
	}

	res, err := pipeline.Extern(ctx, afero.NewOsFs(), ec, logger, nil)
	if err != nil {
		return err
	}
	printDiagnostics(res.Diagnostics)
	fmt.Printf("Wrote %d stub(s) under %s (%d excluded)\n", len(res.Files), ec.ASRoot, res.Excluded)
	if !res.Success {
		errs, _ := diag.Count(res.Diagnostics)
		return fmt.Errorf("extern failed with %d error(s)", errs)
	}
	return nil
}

func runGraph(ctx context.Context, f *buildFlags, root, format string, store bool, dependents string) error {
	p, tp, err := setup(ctx, f)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	g, ds, err := analyzeGraph(ctx, p, root)
	if err != nil {
		return err
	}
	printDiagnostics(ds)

	repo, err := openRepository(ctx, p.Config.Graph, store)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())
	if err := repo.StoreGraph(ctx, p.Project.ID(), g); err != nil {
		return fmt.Errorf("store graph: %w", err)
	}

	if dependents != "" {
		ids, err := repo.QueryDependents(ctx, p.Project.ID(), dependents)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	switch format {
	case "text", "":
		fmt.Print(depgraph.FormatStats(g))
	case "dot":
		fmt.Print(depgraph.ExportDOT(g))
	case "mermaid":
		fmt.Print(depgraph.ExportMermaid(g))
	case "json":
		data, err := depgraph.ExportJSON(g)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q (want text, dot, mermaid or json)", format)
	}
	return nil
}

// analyzeGraph orders the units reachable from root and builds their
// dependency graph.
func analyzeGraph(ctx context.Context, p *pipeline.Pipeline, root string) (*depgraph.Graph, []diag.Diagnostic, error) {
	units := p.Project.Units(root)
	if len(units) == 0 {
		return nil, nil, fmt.Errorf("%s is not on a source or library path", root)
	}
	plan, ds, err := p.Backend.NewTarget(p.Project, p.Settings).Build(ctx, units[0])
	if err != nil {
		return nil, nil, err
	}

	ctx, span := observability.StartGraphSpan(ctx, "analyze", len(plan.Reachable))
	defer span.End()
	g, err := depgraph.Analyze(ctx, p.Project, plan)
	return g, ds, err
}

// openRepository returns the Neo4j store when persist is set, otherwise an
// in-process one.
func openRepository(ctx context.Context, gc config.GraphConfig, persist bool) (graph.Repository, error) {
	if !persist {
		return graph.NewMemory(), nil
	}
	if gc.URI == "" {
		return nil, fmt.Errorf("--store needs graph.uri in the config")
	}
	return graphneo4j.NewNeo4j(ctx, gc.URI, gc.Username, gc.Password, gc.Database)
}

func printDiagnostics(ds []diag.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(os.Stderr, d.String())
	}
}
