package typescript

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

func emit(t *testing.T, files map[string]string, path string, options map[string]string) string {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, c := range files {
		if err := afero.WriteFile(fs, p, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	b := New()
	p := project.New("test", workspace.New(workspace.WithFs(fs)), backend.ProjectOptions(b)...)
	p.SetSourcePath("/src")
	p.SetNamespaceMappings(project.NamespaceMapping{URI: "urn:ui", Package: "lib.ui"})

	units := p.Units(path)
	if len(units) != 1 {
		t.Fatalf("Units(%s) = %d units", path, len(units))
	}
	res, err := units[0].SyntaxTree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.HasErrors() {
		t.Fatalf("parse errors: %v", res.Diagnostics)
	}
	s, err := b.NewSettingsResolver().Resolve("/out", options)
	if err != nil {
		t.Fatal(err)
	}
	buf := b.NewBuffer(s)
	w := b.NewWalker(units[0], res.File, b.NewEmitter(buf, s), p)
	w.Walk(res.File)
	if ds := w.Diagnostics(); len(ds) != 0 {
		t.Fatalf("body diagnostics: %v", ds)
	}
	return buf.String()
}

func TestEmitClass(t *testing.T) {
	src := `package com.example
import com.example.base.Base

/// A drawable widget.
class Widget extends Base implements IDrawable
  var count: int = 0
  static const MAX: int = 10
  function Widget(start: int)
    count = start
  end
  function draw(x: int, y: int = 2): void
    var total = x + y * 2
    if total > MAX
      return
    end
    trace("tick", total)
  end
end
`
	got := emit(t, map[string]string{"/src/com/example/Widget.kn": src}, "/src/com/example/Widget.kn", nil)
	want := `// Generated from com.example.Widget.
import { IDrawable } from "./IDrawable";
import { Base } from "./base/Base";

/** A drawable widget. */
export class Widget extends Base implements IDrawable {
  count: number = 0;
  static readonly MAX: number = 10;

  constructor(start: number) {
    super();
    this.count = start;
  }

  draw(x: number, y: number = 2): void {
    let total = x + y * 2;
    if (total > Widget.MAX) {
      return;
    }
    trace("tick", total);
  }
}
`
	if got != want {
		t.Errorf("output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestEmitInterfaceAndFunctions(t *testing.T) {
	src := `package com.example
interface IDrawable extends IBase
  function draw(x: int): void
  var size
end
const ORIGIN: Point = new Point(0, 0)
function area(w, h: Number): Number
  return w * h
end
`
	got := emit(t, map[string]string{"/src/com/example/shapes.kn": src}, "/src/com/example/shapes.kn", map[string]string{OptionStrict: "false"})
	for _, frag := range []string{
		`import { IBase } from "./IBase";`,
		`import { Point } from "./Point";`,
		"export interface IDrawable extends IBase {\n  draw(x: number): void;\n  size;\n}\n",
		"export const ORIGIN: Point = new Point(0, 0);",
		"export function area(w, h: number): number {\n  return w * h;\n}\n",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in\n%s", frag, got)
		}
	}
}

func TestEmitWithoutExport(t *testing.T) {
	src := "package p\nclass A\n  var n\nend\n"
	got := emit(t, map[string]string{"/src/p/A.kn": src}, "/src/p/A.kn", map[string]string{OptionExport: "false"})
	want := "// Generated from p.A.\n\nclass A {\n  n: any;\n}\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmitMarkup(t *testing.T) {
	src := `package: app.views
class: MainView
extends: k:Panel
namespaces:
  k: urn:ui
properties:
  - name: title
    type: String
    value: Home
children:
  - id: ok
    type: k:Button
`
	got := emit(t, map[string]string{"/src/app/views/MainView.knx": src}, "/src/app/views/MainView.knx", nil)
	for _, frag := range []string{
		`import { Button } from "../../lib/ui/Button";`,
		`import { Panel } from "../../lib/ui/Panel";`,
		"export class MainView extends Panel {",
		`  title: string = "Home";`,
		"  ok: Button = new Button();",
		"    super();",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in\n%s", frag, got)
		}
	}
}

func TestModulePath(t *testing.T) {
	tests := []struct{ from, qname, want string }{
		{"com.example", "com.example.Widget", "./Widget"},
		{"com.example", "com.example.base.Base", "./base/Base"},
		{"com.example.ui", "com.example.Base", "../Base"},
		{"", "Top", "./Top"},
		{"a", "b.C", "../b/C"},
	}
	for _, tt := range tests {
		if got := modulePath(tt.from, tt.qname); got != tt.want {
			t.Errorf("modulePath(%q, %q) = %q, want %q", tt.from, tt.qname, got, tt.want)
		}
	}
}
