package temporal

import (
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/efebarandurmaz/kiln/internal/config"
)

func newWorkflowEnv() *testsuite.TestWorkflowEnvironment {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(CompileActivity)
	env.RegisterActivity(ExternActivity)
	return env
}

func TestBuildWorkflow(t *testing.T) {
	setupTestDeps(t)
	env := newWorkflowEnv()

	env.ExecuteWorkflow(BuildWorkflow, BuildInput{
		Build:  buildConfig(),
		Roots:  []string{"/src/app/Other.kn", "/src/app/Main.kn"},
		Extern: &config.ExternConfig{ASRoot: "/as", External: []string{"/ext"}},
	})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatal(err)
	}
	var out BuildOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Error("a root with parse errors should fail the workflow result")
	}
	if out.Extern == nil || !out.Extern.Success {
		t.Errorf("extern = %+v", out.Extern)
	}
	if len(out.Roots) != 2 || out.Roots[0].Root != "/src/app/Other.kn" || !out.Roots[0].Success || out.Roots[1].Success {
		t.Fatalf("roots = %+v", out.Roots)
	}
	if out.Errors == 0 || out.Artifacts != len(out.Roots[0].Artifacts)+len(out.Roots[1].Artifacts) {
		t.Errorf("totals = %+v", out)
	}
}

func TestBuildWorkflow_NoExtern(t *testing.T) {
	setupTestDeps(t)
	env := newWorkflowEnv()

	env.ExecuteWorkflow(BuildWorkflow, BuildInput{
		Build: buildConfig(),
		Roots: []string{"/src/app/Fine.kn", "/src/app/Other.kn"},
	})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatal(err)
	}
	var out BuildOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Extern != nil || len(out.Roots) != 2 {
		t.Fatalf("unexpected output %+v", out)
	}
	// Fine.js is written by both roots.
	if out.Artifacts != 3 {
		t.Errorf("artifacts = %d, want 3", out.Artifacts)
	}
}
