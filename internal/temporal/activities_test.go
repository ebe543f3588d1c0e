package temporal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/kiln/internal/config"
	"github.com/efebarandurmaz/kiln/internal/observability"
	"github.com/efebarandurmaz/kiln/internal/pipeline"
)

var appTree = map[string]string{
	"/src/app/Main.kn":   "package app\nimport app.Broken\nimport app.Fine\nclass Main\nend\n",
	"/src/app/Broken.kn": "package app\nclass Broken\n  bogus member\nend\n",
	"/src/app/Fine.kn":   "package app\nclass Fine\nend\n",
	"/src/app/Other.kn":  "package app\nimport app.Fine\nclass Other\nend\n",
	"/ext/lib.js":        "/** @constructor */\nfunction Thing() {}\n",
}

// setupTestDeps installs an in-memory file system holding appTree.
func setupTestDeps(t *testing.T) (afero.Fs, *observability.KilnMetrics) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, c := range appTree {
		if err := afero.WriteFile(fs, p, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	m := observability.NewKilnMetrics()
	SetDependencies(&Dependencies{Fs: fs, Registry: pipeline.DefaultRegistry(), Metrics: m})
	t.Cleanup(func() { SetDependencies(nil) })
	return fs, m
}

func buildConfig() config.BuildConfig {
	return config.BuildConfig{Backend: "js", OutputRoot: "/out", SourcePaths: []string{"/src"}, Jobs: 2}
}

func TestSetDependencies(t *testing.T) {
	fs := afero.NewMemMapFs()
	SetDependencies(&Dependencies{Fs: fs})
	defer SetDependencies(nil)

	if deps == nil || deps.Fs != fs {
		t.Fatal("SetDependencies did not set the file system")
	}
	d := current()
	if d.Registry == nil || d.Logger == nil {
		t.Error("missing dependencies should fall back to defaults")
	}
}

func TestCompileActivity(t *testing.T) {
	fs, m := setupTestDeps(t)

	res, err := CompileActivity(context.Background(), buildConfig(), "/src/app/Other.kn")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Errors != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if fmt.Sprint(res.Artifacts) != "[js/app/Fine.js js/app/Other.js]" {
		t.Errorf("artifacts = %v", res.Artifacts)
	}
	if ok, _ := afero.Exists(fs, "/out/js/app/Other.js"); !ok {
		t.Error("artifact not written")
	}
	if m.BuildsTotal.Value() != 1 {
		t.Errorf("builds = %f", m.BuildsTotal.Value())
	}
}

func TestCompileActivity_ParseErrorIsResult(t *testing.T) {
	setupTestDeps(t)

	res, err := CompileActivity(context.Background(), buildConfig(), "/src/app/Main.kn")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Errors == 0 || len(res.Diagnostics) == 0 {
		t.Fatalf("expected failed build with diagnostics, got %+v", res)
	}
}

func TestCompileActivity_NonRetryable(t *testing.T) {
	setupTestDeps(t)

	tests := []struct {
		name    string
		mutate  func(*config.BuildConfig)
		root    string
		errType string
	}{
		{"unknown backend", func(bc *config.BuildConfig) { bc.Backend = "cobol" }, "/src/app/Fine.kn", ErrTypeSetup},
		{"root outside project", func(bc *config.BuildConfig) {}, "/elsewhere/X.kn", ErrTypeRootNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := buildConfig()
			tt.mutate(&bc)
			_, err := CompileActivity(context.Background(), bc, tt.root)
			var appErr *sdktemporal.ApplicationError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected application error, got %v", err)
			}
			if !appErr.NonRetryable() || appErr.Type() != tt.errType {
				t.Errorf("error type = %s, non-retryable = %v", appErr.Type(), appErr.NonRetryable())
			}
		})
	}
}

func TestExternActivity(t *testing.T) {
	fs, _ := setupTestDeps(t)

	res, err := ExternActivity(context.Background(), config.ExternConfig{ASRoot: "/as", External: []string{"/ext"}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || fmt.Sprint(res.Files) != "[classes/Thing.as]" {
		t.Fatalf("unexpected result %+v", res)
	}
	if ok, _ := afero.Exists(fs, "/as/classes/Thing.as"); !ok {
		t.Error("stub not written")
	}
}

func TestExternActivity_NonRetryable(t *testing.T) {
	setupTestDeps(t)

	tests := []struct {
		name    string
		ec      config.ExternConfig
		errType string
	}{
		{"missing file", config.ExternConfig{ASRoot: "/as", External: []string{"/nope.js"}}, ErrTypeMissingFile},
		{"odd exclude", config.ExternConfig{ASRoot: "/as", Exclude: []string{"Thing"}}, ErrTypeMalformedExtern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExternActivity(context.Background(), tt.ec)
			var appErr *sdktemporal.ApplicationError
			if !errors.As(err, &appErr) || appErr.Type() != tt.errType {
				t.Fatalf("expected %s, got %v", tt.errType, err)
			}
		})
	}
}
