package backend

import (
	"strings"
	"testing"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

type mockBackend struct{ name string }

func (m *mockBackend) Name() string                          { return m.name }
func (m *mockBackend) Extensions() []Extension               { return nil }
func (m *mockBackend) OutputExtension() string               { return "txt" }
func (m *mockBackend) OutputSubdir() string                  { return "txt" }
func (m *mockBackend) NewSettingsResolver() SettingsResolver { return OptionResolver{Backend: m.name} }
func (m *mockBackend) NewBuffer(_ Settings) *Buffer          { return NewBuffer("\t") }
func (m *mockBackend) NewEmitter(buf *Buffer, _ Settings) Emitter {
	return &exprEmitter{ScriptEmitter{Buf: buf}}
}
func (m *mockBackend) NewTarget(p *project.Project, _ Settings) Target {
	return target.New(p, target.Emittable)
}
func (m *mockBackend) NewWalker(u *workspace.Unit, f *ast.File, e Emitter, p *project.Project) Walker {
	return NewBlockWalker(u, f, e, nil, p)
}

// exprEmitter exercises the shared script operations; declarations are no-ops.
type exprEmitter struct{ ScriptEmitter }

func (e *exprEmitter) EmitFile(*ast.File)           {}
func (e *exprEmitter) EmitPackage(*ast.Package)     {}
func (e *exprEmitter) EmitClass(*ast.Class)         {}
func (e *exprEmitter) EmitInterface(*ast.Interface) {}
func (e *exprEmitter) EmitFunction(*ast.Function)   {}
func (e *exprEmitter) EmitVariable(*ast.Variable)   {}

func newExprEmitter() (*exprEmitter, *BlockWalker) {
	e := &exprEmitter{ScriptEmitter{Buf: NewBuffer("  ")}}
	e.DeclareLocal = func(v *ast.Variable) string { return "let " + v.Name }
	e.TypeRef = func(q string) string { return q }
	w := NewBlockWalker(nil, &ast.File{Package: &ast.Package{Name: "p"}}, e, nil, nil)
	return e, w
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockBackend{name: "zeta"})
	r.Register(&mockBackend{name: "alpha"})

	if _, err := r.Get("zeta"); err != nil {
		t.Errorf("expected backend, got error: %v", err)
	}
	if _, err := r.Get("unknown"); err == nil {
		t.Error("expected error for unknown backend")
	}
	if got := strings.Join(r.Names(), ","); got != "alpha,zeta" {
		t.Errorf("Names() = %s", got)
	}
}

func TestOptionResolver(t *testing.T) {
	r := OptionResolver{Backend: "js", Subdir: "js", Extension: "js", Defaults: map[string]string{"jsdoc": "true", "indent": "  "}}

	s, err := r.Resolve("/out", map[string]string{"jsdoc": "false"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Bool("jsdoc") {
		t.Error("jsdoc should be overridden to false")
	}
	if s.Get("indent") != "  " {
		t.Errorf("indent = %q, want default", s.Get("indent"))
	}
	if s.OutputRoot != "/out" || s.Subdir != "js" || s.Extension != "js" {
		t.Errorf("unexpected settings %+v", s)
	}

	if _, err := r.Resolve("/out", map[string]string{"bogus": "1"}); err == nil {
		t.Error("expected error for unknown option")
	}
	if _, err := r.Resolve("", nil); err == nil {
		t.Error("expected error for empty output root")
	}
}

func TestSettingsBoolMalformed(t *testing.T) {
	s := Settings{Values: map[string]string{"a": "yes", "b": "1"}}
	if s.Bool("a") || s.Bool("missing") {
		t.Error("malformed or missing values should be false")
	}
	if !s.Bool("b") {
		t.Error("b should be true")
	}
}

func TestBufferIndentation(t *testing.T) {
	b := NewBuffer("  ")
	b.Line("a {")
	b.Indent()
	b.Write("b;\n\nc;\n")
	b.Indent()
	b.Writef("%s;", "d")
	b.Newline()
	b.Dedent()
	b.Dedent()
	b.Dedent()
	b.Line("}")

	want := "a {\n  b;\n\n  c;\n    d;\n}\n"
	if b.String() != want {
		t.Errorf("got %q, want %q", b.String(), want)
	}
	if b.Len() != len(want) {
		t.Errorf("Len() = %d", b.Len())
	}
}

func TestScriptExpressions(t *testing.T) {
	e, _ := newExprEmitter()
	e.EnterClass(map[string]string{"count": "this", "MAX": "p.C"})
	e.EnterFunction([]ast.Param{{Name: "n"}})

	sub := &ast.Binary{Op: "-", X: &ast.Ident{Name: "a"}, Y: &ast.Binary{Op: "-", X: &ast.Ident{Name: "b"}, Y: &ast.Ident{Name: "c"}}}
	tests := []struct {
		name string
		x    ast.Expr
		want string
	}{
		{"member resolution", &ast.Binary{Op: "+", X: &ast.Ident{Name: "count"}, Y: &ast.Ident{Name: "n"}}, "this.count + n"},
		{"static member", &ast.Ident{Name: "MAX"}, "p.C.MAX"},
		{"strict equality", &ast.Binary{Op: "!=", X: &ast.Ident{Name: "n"}, Y: &ast.Literal{Kind: ast.Null, Value: "null"}}, "n !== null"},
		{"right operand grouping", sub, "a - (b - c)"},
		{"precedence", &ast.Binary{Op: "*", X: &ast.Binary{Op: "+", X: &ast.Ident{Name: "n"}, Y: &ast.Literal{Kind: ast.Number, Value: "1"}}, Y: &ast.Literal{Kind: ast.Number, Value: "2"}}, "(n + 1) * 2"},
		{"string literal", &ast.Literal{Kind: ast.String, Value: `say "hi"`}, `"say \"hi\""`},
		{"call and member", &ast.Call{Fun: &ast.Member{X: &ast.Ident{Name: "console"}, Name: "log"}, Args: []ast.Expr{&ast.Ident{Name: "n"}, &ast.Literal{Kind: ast.Bool, Value: "true"}}}, "console.log(n, true)"},
		{"new", &ast.New{Type: "Point", Args: []ast.Expr{&ast.Literal{Kind: ast.Number, Value: "0"}}}, "new Point(0)"},
		{"unary", &ast.Unary{Op: "!", X: &ast.Binary{Op: "&&", X: &ast.Ident{Name: "a"}, Y: &ast.Ident{Name: "b"}}}, "!(a && b)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Expr(tt.x); got != tt.want {
				t.Errorf("Expr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScriptLocalsShadowMembers(t *testing.T) {
	e, w := newExprEmitter()
	e.EnterClass(map[string]string{"count": "this"})
	e.EnterFunction(nil)
	w.Walk(&ast.Block{Stmts: []ast.Stmt{
		&ast.ExprStmt{X: &ast.Ident{Name: "count"}},
		&ast.VarStmt{Var: &ast.Variable{Name: "count", Init: &ast.Literal{Kind: ast.Number, Value: "1"}}},
		&ast.IfStmt{
			Cond: &ast.Binary{Op: ">", X: &ast.Ident{Name: "count"}, Y: &ast.Literal{Kind: ast.Number, Value: "0"}},
			Then: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{Value: &ast.Ident{Name: "count"}}}},
			Else: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{}}},
		},
	}})
	want := "this.count;\nlet count = 1;\nif (count > 0) {\n  return count;\n} else {\n  return;\n}\n"
	if got := e.Buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

type unknownNode struct{ ast.Node }

func TestWalkerPanicsOnUnknownNode(t *testing.T) {
	_, w := newExprEmitter()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown node")
		}
	}()
	w.Walk(unknownNode{})
}

func TestWalkerBodyCollectsDiagnostics(t *testing.T) {
	_, w := newExprEmitter()
	parse := func(file string, lines []ast.Line) (*ast.Block, []diag.Diagnostic) {
		return &ast.Block{}, []diag.Diagnostic{diag.Errorf(diag.KindParse, file, lines[0].Num, "bad")}
	}
	fn := &ast.Function{Name: "f", Body: ast.NewLazyBody("/src/p/f.kn", ast.Pos{Line: 3}, []ast.Line{{Num: 4, Text: "?"}}, parse)}
	if blk := w.Body(fn); blk == nil {
		t.Fatal("expected a block")
	}
	if ds := w.Diagnostics(); len(ds) != 1 || ds[0].Line != 4 {
		t.Errorf("diagnostics = %v", ds)
	}
	if w.Body(&ast.Function{Name: "g"}) != nil {
		t.Error("function without a body should give nil")
	}
}
