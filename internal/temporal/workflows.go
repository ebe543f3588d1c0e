package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/kiln/internal/config"
)

// BuildInput holds the workflow parameters.
type BuildInput struct {
	Build config.BuildConfig
	Roots []string

	// Extern, when set, runs before the builds so that generated stubs
	// can sit on a library path.
	Extern *config.ExternConfig
}

// BuildOutput holds the workflow result.
type BuildOutput struct {
	Success   bool
	Artifacts int
	Errors    int
	Warnings  int
	Roots     []CompileResult
	Extern    *ExternResult
}

// BuildWorkflow runs the optional extern step, then compiles every root in
// parallel. Results keep the order of input.Roots.
func BuildWorkflow(ctx workflow.Context, input BuildInput) (*BuildOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	out := &BuildOutput{Success: true}

	if input.Extern != nil {
		var er ExternResult
		if err := workflow.ExecuteActivity(ctx, ExternActivity, *input.Extern).Get(ctx, &er); err != nil {
			return nil, fmt.Errorf("extern: %w", err)
		}
		out.Extern = &er
		out.Errors += er.Errors
		out.Warnings += er.Warnings
		if !er.Success {
			out.Success = false
			logger.Warn("extern step failed; skipping builds", "errors", er.Errors)
			return out, nil
		}
	}

	futures := make([]workflow.Future, len(input.Roots))
	for i, root := range input.Roots {
		futures[i] = workflow.ExecuteActivity(ctx, CompileActivity, input.Build, root)
	}
	for i, f := range futures {
		var cr CompileResult
		if err := f.Get(ctx, &cr); err != nil {
			return nil, fmt.Errorf("compile %s: %w", input.Roots[i], err)
		}
		out.Roots = append(out.Roots, cr)
		out.Artifacts += len(cr.Artifacts)
		out.Errors += cr.Errors
		out.Warnings += cr.Warnings
		if !cr.Success {
			out.Success = false
		}
	}

	logger.Info("build workflow finished",
		"roots", len(input.Roots),
		"artifacts", out.Artifacts,
		"errors", out.Errors,
	)
	return out, nil
}
