package backend

import (
	"strconv"

	"github.com/efebarandurmaz/kiln/internal/ast"
)

var scriptPrec = map[string]int{
	"=":  1,
	"||": 2,
	"&&": 3,
	"==": 4,
	"!=": 4,
	"<":  5,
	">":  5,
	"<=": 5,
	">=": 5,
	"+":  6,
	"-":  6,
	"*":  7,
	"/":  7,
	"%":  7,
}

var strictEquality = map[string]string{"==": "===", "!=": "!=="}

// ScriptEmitter implements the statement and expression operations shared by
// ECMAScript-family targets. Embedders emit declarations and set the hooks.
type ScriptEmitter struct {
	Buf *Buffer
	W   Walker

	// DeclareLocal renders the head of a local declaration ("var x").
	DeclareLocal func(v *ast.Variable) string
	// TypeRef renders a qualified type name in an expression position.
	TypeRef func(qname string) string

	members map[string]string
	locals  map[string]bool
}

func (e *ScriptEmitter) SetWalker(w Walker) { e.W = w }

// EnterClass makes bare references to members resolve through qualifier:
// instance members through "this", statics through the class name.
func (e *ScriptEmitter) EnterClass(members map[string]string) {
	e.members = members
}

func (e *ScriptEmitter) LeaveClass() { e.members = nil }

// EnterFunction starts a fresh local scope seeded with params.
func (e *ScriptEmitter) EnterFunction(params []ast.Param) {
	e.locals = make(map[string]bool, len(params))
	for _, p := range params {
		e.locals[p.Name] = true
	}
}

func (e *ScriptEmitter) LeaveFunction() { e.locals = nil }

func (e *ScriptEmitter) EmitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		e.W.Walk(s)
	}
}

func (e *ScriptEmitter) EmitVarStmt(s *ast.VarStmt) {
	e.Buf.Write(e.DeclareLocal(s.Var))
	if s.Var.Init != nil {
		e.Buf.Write(" = ")
		e.W.Walk(s.Var.Init)
	}
	e.Buf.Write(";\n")
	if e.locals != nil {
		e.locals[s.Var.Name] = true
	}
}

func (e *ScriptEmitter) EmitExprStmt(s *ast.ExprStmt) {
	e.W.Walk(s.X)
	e.Buf.Write(";\n")
}

func (e *ScriptEmitter) EmitReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		e.Buf.Write("return;\n")
		return
	}
	e.Buf.Write("return ")
	e.W.Walk(s.Value)
	e.Buf.Write(";\n")
}

func (e *ScriptEmitter) EmitIf(s *ast.IfStmt) {
	e.Buf.Write("if (")
	e.W.Walk(s.Cond)
	e.Buf.Write(") {\n")
	e.nested(s.Then)
	if s.Else != nil {
		e.Buf.Write("} else {\n")
		e.nested(s.Else)
	}
	e.Buf.Write("}\n")
}

func (e *ScriptEmitter) EmitWhile(s *ast.WhileStmt) {
	e.Buf.Write("while (")
	e.W.Walk(s.Cond)
	e.Buf.Write(") {\n")
	e.nested(s.Body)
	e.Buf.Write("}\n")
}

func (e *ScriptEmitter) nested(b *ast.Block) {
	e.Buf.Indent()
	e.W.Walk(b)
	e.Buf.Dedent()
}

func (e *ScriptEmitter) EmitIdent(x *ast.Ident) {
	if e.locals[x.Name] {
		e.Buf.Write(x.Name)
		return
	}
	if q, ok := e.members[x.Name]; ok {
		e.Buf.Write(q + "." + x.Name)
		return
	}
	e.Buf.Write(x.Name)
}

func (e *ScriptEmitter) EmitLiteral(x *ast.Literal) {
	if x.Kind == ast.String {
		e.Buf.Write(strconv.Quote(x.Value))
		return
	}
	e.Buf.Write(x.Value)
}

func (e *ScriptEmitter) EmitBinary(x *ast.Binary) {
	prec := scriptPrec[x.Op]
	rightAssoc := x.Op == "="
	e.operand(x.X, prec, rightAssoc)
	op := x.Op
	if strict, ok := strictEquality[op]; ok {
		op = strict
	}
	e.Buf.Write(" " + op + " ")
	e.operand(x.Y, prec, !rightAssoc)
}

// operand parenthesizes a nested binary that binds looser than its parent,
// or equally loose on the side where associativity would regroup it.
func (e *ScriptEmitter) operand(x ast.Expr, parent int, parenOnTie bool) {
	if b, ok := x.(*ast.Binary); ok {
		p := scriptPrec[b.Op]
		if p < parent || (p == parent && parenOnTie) {
			e.Buf.Write("(")
			e.W.Walk(x)
			e.Buf.Write(")")
			return
		}
	}
	e.W.Walk(x)
}

func (e *ScriptEmitter) EmitUnary(x *ast.Unary) {
	e.Buf.Write(x.Op)
	if _, ok := x.X.(*ast.Binary); ok {
		e.Buf.Write("(")
		e.W.Walk(x.X)
		e.Buf.Write(")")
		return
	}
	e.W.Walk(x.X)
}

func (e *ScriptEmitter) EmitCall(x *ast.Call) {
	e.W.Walk(x.Fun)
	e.args(x.Args)
}

func (e *ScriptEmitter) EmitMember(x *ast.Member) {
	e.W.Walk(x.X)
	e.Buf.Write("." + x.Name)
}

func (e *ScriptEmitter) EmitNew(x *ast.New) {
	e.Buf.Write("new " + e.TypeRef(e.W.QualifiedName(x.Type)))
	e.args(x.Args)
}

func (e *ScriptEmitter) args(args []ast.Expr) {
	e.Buf.Write("(")
	for i, a := range args {
		if i > 0 {
			e.Buf.Write(", ")
		}
		e.W.Walk(a)
	}
	e.Buf.Write(")")
}

// Expr renders x through the walker into a string, for use in headers.
func (e *ScriptEmitter) Expr(x ast.Expr) string {
	saved := e.Buf
	tmp := NewBuffer("")
	e.Buf = tmp
	e.W.Walk(x)
	e.Buf = saved
	return tmp.String()
}
