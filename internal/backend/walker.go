package backend

import (
	"fmt"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// Emitter has one operation per tree variant. Container operations call
// back into the walker for their children.
type Emitter interface {
	SetWalker(w Walker)

	EmitFile(f *ast.File)
	EmitPackage(p *ast.Package)
	EmitClass(c *ast.Class)
	EmitInterface(i *ast.Interface)
	EmitFunction(fn *ast.Function)
	EmitVariable(v *ast.Variable)

	EmitBlock(b *ast.Block)
	EmitVarStmt(s *ast.VarStmt)
	EmitExprStmt(s *ast.ExprStmt)
	EmitReturn(s *ast.ReturnStmt)
	EmitIf(s *ast.IfStmt)
	EmitWhile(s *ast.WhileStmt)

	EmitIdent(x *ast.Ident)
	EmitLiteral(x *ast.Literal)
	EmitBinary(x *ast.Binary)
	EmitUnary(x *ast.Unary)
	EmitCall(x *ast.Call)
	EmitMember(x *ast.Member)
	EmitNew(x *ast.New)
}

// Walker drives an emitter over one unit's tree.
type Walker interface {
	Walk(n ast.Node)
	// Body resolves a function body on demand.
	Body(fn *ast.Function) *ast.Block
	// QualifiedName resolves a type name as written in the unit.
	QualifiedName(name string) string
	Unit() *workspace.Unit
	File() *ast.File
	Diagnostics() []diag.Diagnostic
}

// NameResolver turns names as written in a file into qualified names.
type NameResolver interface {
	QualifiedName(f *ast.File, name string) string
}

// BlockWalker is the standard Walker: an exhaustive dispatch over the
// closed set of tree variants.
type BlockWalker struct {
	unit    *workspace.Unit
	file    *ast.File
	emitter Emitter
	bodies  *workspace.BodyCache
	names   NameResolver
	diags   []diag.Diagnostic
}

// NewBlockWalker wires a walker to e. bodies may be nil, in which case
// every body is parsed when visited.
func NewBlockWalker(u *workspace.Unit, f *ast.File, e Emitter, bodies *workspace.BodyCache, names NameResolver) *BlockWalker {
	w := &BlockWalker{unit: u, file: f, emitter: e, bodies: bodies, names: names}
	e.SetWalker(w)
	return w
}

func (w *BlockWalker) Unit() *workspace.Unit           { return w.unit }
func (w *BlockWalker) File() *ast.File                 { return w.file }
func (w *BlockWalker) Diagnostics() []diag.Diagnostic { return w.diags }

func (w *BlockWalker) Walk(n ast.Node) {
	switch n := n.(type) {
	case nil:
	case *ast.File:
		w.emitter.EmitFile(n)
	case *ast.Package:
		w.emitter.EmitPackage(n)
	case *ast.Class:
		w.emitter.EmitClass(n)
	case *ast.Interface:
		w.emitter.EmitInterface(n)
	case *ast.Function:
		w.emitter.EmitFunction(n)
	case *ast.Variable:
		w.emitter.EmitVariable(n)
	case *ast.Block:
		w.emitter.EmitBlock(n)
	case *ast.VarStmt:
		w.emitter.EmitVarStmt(n)
	case *ast.ExprStmt:
		w.emitter.EmitExprStmt(n)
	case *ast.ReturnStmt:
		w.emitter.EmitReturn(n)
	case *ast.IfStmt:
		w.emitter.EmitIf(n)
	case *ast.WhileStmt:
		w.emitter.EmitWhile(n)
	case *ast.Ident:
		w.emitter.EmitIdent(n)
	case *ast.Literal:
		w.emitter.EmitLiteral(n)
	case *ast.Binary:
		w.emitter.EmitBinary(n)
	case *ast.Unary:
		w.emitter.EmitUnary(n)
	case *ast.Call:
		w.emitter.EmitCall(n)
	case *ast.Member:
		w.emitter.EmitMember(n)
	case *ast.New:
		w.emitter.EmitNew(n)
	case *ast.Import:
		// imports are emitted by EmitPackage
	default:
		panic(fmt.Sprintf("backend: unhandled node %T", n))
	}
}

func (w *BlockWalker) Body(fn *ast.Function) *ast.Block {
	if fn.Body == nil {
		return nil
	}
	var (
		blk *ast.Block
		ds  []diag.Diagnostic
	)
	if w.bodies != nil {
		blk, ds = w.bodies.Resolve(fn.Body)
	} else {
		blk, ds = fn.Body.Parse()
	}
	w.diags = append(w.diags, ds...)
	return blk
}

func (w *BlockWalker) QualifiedName(name string) string {
	if w.names == nil || name == "" {
		return name
	}
	if q := w.names.QualifiedName(w.file, name); q != "" {
		return q
	}
	return name
}
