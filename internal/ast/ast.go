// Package ast defines the closed set of syntax tree nodes shared by every
// front end and backend. The marker methods are unexported so no other
// package can add a variant; walkers switch over the concrete types.
package ast

// Pos is a 1-based source line. Zero means unknown.
type Pos struct {
	Line int
}

func (p Pos) Position() Pos { return p }

// Node is implemented by every tree node.
type Node interface {
	Position() Pos
	node()
}

// Decl is a declaration inside a package or type body.
type Decl interface {
	Node
	decl()
}

// Stmt is a statement inside a function body.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression.
type Expr interface {
	Node
	expr()
}

// File is the root of one unit's tree.
type File struct {
	Pos
	Path    string
	Package *Package
	// Namespaces maps markup prefixes to namespace URIs.
	Namespaces map[string]string
	// Resources lists resource paths the file embeds, relative to a source root.
	Resources []string
}

// Package holds the imports and top-level declarations of a file.
type Package struct {
	Pos
	Name    string
	Imports []Import
	Decls   []Decl
}

type Import struct {
	Pos
	Name string
}

type Class struct {
	Pos
	Name       string
	Extends    string
	Implements []string
	Members    []Decl
	Doc        string
}

type Interface struct {
	Pos
	Name    string
	Extends []string
	Members []Decl
	Doc     string
}

type Param struct {
	Name    string
	Type    string
	Default Expr
}

// Function is a method, constructor or interface signature. Body is nil for
// signatures; otherwise it is resolved on demand.
type Function struct {
	Pos
	Name   string
	Params []Param
	Result string
	Static bool
	Body   *LazyBody
	Doc    string
}

type Variable struct {
	Pos
	Name   string
	Type   string
	Static bool
	Const  bool
	Init   Expr
	Doc    string
}

type Block struct {
	Pos
	Stmts []Stmt
}

type VarStmt struct {
	Pos
	Var *Variable
}

type ExprStmt struct {
	Pos
	X Expr
}

type ReturnStmt struct {
	Pos
	Value Expr
}

type IfStmt struct {
	Pos
	Cond Expr
	Then *Block
	Else *Block
}

type WhileStmt struct {
	Pos
	Cond Expr
	Body *Block
}

type Ident struct {
	Pos
	Name string
}

type LitKind int

const (
	Number LitKind = iota
	String
	Bool
	Null
)

type Literal struct {
	Pos
	Kind  LitKind
	Value string
}

type Binary struct {
	Pos
	Op   string
	X, Y Expr
}

type Unary struct {
	Pos
	Op string
	X  Expr
}

type Call struct {
	Pos
	Fun  Expr
	Args []Expr
}

type Member struct {
	Pos
	X    Expr
	Name string
}

type New struct {
	Pos
	Type string
	Args []Expr
}

func (*File) node()       {}
func (*Package) node()    {}
func (*Import) node()     {}
func (*Class) node()      {}
func (*Interface) node()  {}
func (*Function) node()   {}
func (*Variable) node()   {}
func (*Block) node()      {}
func (*VarStmt) node()    {}
func (*ExprStmt) node()   {}
func (*ReturnStmt) node() {}
func (*IfStmt) node()     {}
func (*WhileStmt) node()  {}
func (*Ident) node()      {}
func (*Literal) node()    {}
func (*Binary) node()     {}
func (*Unary) node()      {}
func (*Call) node()       {}
func (*Member) node()     {}
func (*New) node()        {}

func (*Class) decl()     {}
func (*Interface) decl() {}
func (*Function) decl()  {}
func (*Variable) decl()  {}

func (*Block) stmt()      {}
func (*VarStmt) stmt()    {}
func (*ExprStmt) stmt()   {}
func (*ReturnStmt) stmt() {}
func (*IfStmt) stmt()     {}
func (*WhileStmt) stmt()  {}

func (*Ident) expr()   {}
func (*Literal) expr() {}
func (*Binary) expr()  {}
func (*Unary) expr()   {}
func (*Call) expr()    {}
func (*Member) expr()  {}
func (*New) expr()     {}
