package target

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/syntax/kn"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

func TestBuildFiltersLibraryAndResources(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/src/app/Main.kn": "package app\nimport lib.Base\nclass Main extends Base\nend\n",
		"/lib/lib/Base.kn": "package lib\nclass Base\nend\n",
	}
	for p, c := range files {
		if err := afero.WriteFile(fs, p, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := project.New("t", workspace.New(workspace.WithFs(fs)), project.WithExtension(kn.Extension, workspace.Source, kn.New()))
	p.SetSourcePath("/src")
	p.SetLibraries("/lib")

	root := p.Units("/src/app/Main.kn")[0]
	plan, ds, err := New(p, nil).Build(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 0 {
		t.Errorf("diagnostics: %v", ds)
	}
	if len(plan.Reachable) != 2 {
		t.Fatalf("reachable = %d, want 2", len(plan.Reachable))
	}
	if len(plan.Emit) != 1 || plan.Emit[0] != root {
		t.Errorf("emit = %v, want only the root", plan.Emit)
	}
}

func TestBuildCustomFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/src/A.kn", []byte("class A\nend\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := project.New("t", workspace.New(workspace.WithFs(fs)), project.WithExtension(kn.Extension, workspace.Source, kn.New()))
	p.SetSourcePath("/src")

	plan, _, err := New(p, func(*workspace.Unit) bool { return false }).Build(context.Background(), p.Units("/src/A.kn")[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Emit) != 0 {
		t.Errorf("emit = %v, want none", plan.Emit)
	}
}
