package kn

import (
	"testing"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

const widgetSrc = `package com.example
import com.example.base.Base

/// A drawable widget.
class Widget extends Base implements IDrawable, ISized
  var count: int = 0
  static const MAX: int = 10
  function draw(x: int, y: int = 2): void
    var total = x + y * 2
    if total > MAX
      return
    else
      count = count + 1
    end
    while count < 3
      trace("tick", count)
    end
  end
end
`

func TestParseDeclarations(t *testing.T) {
	f, diags := New().Parse("/src/com/example/Widget.kn", []byte(widgetSrc))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if f.Package.Name != "com.example" {
		t.Errorf("package = %q", f.Package.Name)
	}
	if len(f.Package.Imports) != 1 || f.Package.Imports[0].Name != "com.example.base.Base" {
		t.Errorf("imports = %+v", f.Package.Imports)
	}
	if len(f.Package.Decls) != 1 {
		t.Fatalf("decls = %d, want 1", len(f.Package.Decls))
	}
	c, ok := f.Package.Decls[0].(*ast.Class)
	if !ok {
		t.Fatalf("decl is %T, want *ast.Class", f.Package.Decls[0])
	}
	if c.Name != "Widget" || c.Extends != "Base" || len(c.Implements) != 2 || c.Doc != "A drawable widget." {
		t.Errorf("class header = %+v", c)
	}
	if len(c.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(c.Members))
	}
	max := c.Members[1].(*ast.Variable)
	if !max.Static || !max.Const || max.Type != "int" {
		t.Errorf("MAX = %+v", max)
	}
	fn := c.Members[2].(*ast.Function)
	if fn.Name != "draw" || len(fn.Params) != 2 || fn.Result != "void" {
		t.Errorf("draw = %+v", fn)
	}
	if fn.Params[1].Default == nil {
		t.Error("default value for y not parsed")
	}
	if fn.Body == nil || len(fn.Body.Lines) != 9 {
		t.Fatalf("body lines not captured: %+v", fn.Body)
	}
}

func TestLazyBodyParse(t *testing.T) {
	f, _ := New().Parse("W.kn", []byte(widgetSrc))
	fn := f.Package.Decls[0].(*ast.Class).Members[2].(*ast.Function)

	blk, diags := fn.Body.Parse()
	if len(diags) != 0 {
		t.Fatalf("body diagnostics: %v", diags)
	}
	if len(blk.Stmts) != 3 {
		t.Fatalf("stmts = %d, want 3", len(blk.Stmts))
	}
	vs := blk.Stmts[0].(*ast.VarStmt)
	sum, ok := vs.Var.Init.(*ast.Binary)
	if !ok || sum.Op != "+" {
		t.Fatalf("init = %#v", vs.Var.Init)
	}
	if mul, ok := sum.Y.(*ast.Binary); !ok || mul.Op != "*" {
		t.Errorf("precedence broken: %#v", sum.Y)
	}
	ifs := blk.Stmts[1].(*ast.IfStmt)
	if ifs.Else == nil || len(ifs.Then.Stmts) != 1 || len(ifs.Else.Stmts) != 1 {
		t.Errorf("if = %+v", ifs)
	}
	w := blk.Stmts[2].(*ast.WhileStmt)
	call := w.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Call)
	if len(call.Args) != 2 {
		t.Errorf("call args = %d", len(call.Args))
	}
}

func TestParseInterface(t *testing.T) {
	src := "package p\ninterface IDrawable extends IBase, IOther\n  function draw(x: int): void\nend\n"
	f, diags := New().Parse("IDrawable.kn", []byte(src))
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %v", diags)
	}
	i := f.Package.Decls[0].(*ast.Interface)
	if len(i.Extends) != 2 || len(i.Members) != 1 {
		t.Fatalf("interface = %+v", i)
	}
	if i.Members[0].(*ast.Function).Body != nil {
		t.Error("interface method should have no body")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"missing end", "package p\nclass A\n  var x: int\n", 2},
		{"bad top level", "package p\nwhatever x\n", 2},
		{"bad initializer", "package p\nclass A\n  var x = (1 +\nend\n", 3},
		{"late package", "import a.B\npackage p\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, diags := New().Parse("A.kn", []byte(tt.src))
			if f == nil {
				t.Fatal("Parse returned nil file")
			}
			if !diag.HasErrors(diags) {
				t.Fatal("expected a parse error")
			}
			if diags[0].Line != tt.line || diags[0].Kind != diag.KindParse {
				t.Errorf("diag = %+v, want line %d", diags[0], tt.line)
			}
		})
	}
}

func TestBodyErrorsAreDeferred(t *testing.T) {
	src := "package p\nclass A\n  function f()\n    x = = 1\n  end\nend\n"
	f, diags := New().Parse("A.kn", []byte(src))
	if len(diags) != 0 {
		t.Fatalf("declaration parse should not look at bodies: %v", diags)
	}
	fn := f.Package.Decls[0].(*ast.Class).Members[0].(*ast.Function)
	_, bodyDiags := fn.Body.Parse()
	if len(bodyDiags) != 1 || bodyDiags[0].Line != 4 {
		t.Errorf("body diagnostics = %v", bodyDiags)
	}
}

func TestNewExpression(t *testing.T) {
	x, err := parseExpr(`new k:Button("ok").label`, 1)
	if err != nil {
		t.Fatal(err)
	}
	m := x.(*ast.Member)
	n := m.X.(*ast.New)
	if n.Type != "k:Button" || len(n.Args) != 1 || m.Name != "label" {
		t.Errorf("got %#v", x)
	}
}
