package typescript

import (
	"sort"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/backend"
)

// Emitter writes one ES module per unit using class syntax.
type Emitter struct {
	backend.ScriptEmitter

	settings backend.Settings
	pkg      string
	class    string
}

func NewEmitter(buf *backend.Buffer, s backend.Settings) *Emitter {
	e := &Emitter{settings: s}
	e.Buf = buf
	e.DeclareLocal = func(v *ast.Variable) string {
		kw := "let "
		if v.Const {
			kw = "const "
		}
		if v.Type == "" && v.Init != nil {
			return kw + v.Name
		}
		return kw + v.Name + e.annotation(v.Type)
	}
	e.TypeRef = localName
	return e
}

func localName(qname string) string {
	if i := strings.LastIndex(qname, "."); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

var primitives = map[string]string{
	"int":     "number",
	"uint":    "number",
	"float":   "number",
	"Number":  "number",
	"number":  "number",
	"String":  "string",
	"string":  "string",
	"Boolean": "boolean",
	"boolean": "boolean",
	"bool":    "boolean",
	"void":    "void",
	"Object":  "object",
	"Array":   "any[]",
	"*":       "any",
}

func (e *Emitter) typeName(t string) string {
	if t == "" {
		return "any"
	}
	if p, ok := primitives[t]; ok {
		return p
	}
	return localName(e.W.QualifiedName(t))
}

// annotation renders ": T", or nothing for an untyped declaration outside
// strict mode.
func (e *Emitter) annotation(t string) string {
	if t == "" && !e.settings.Bool(OptionStrict) {
		return ""
	}
	return ": " + e.typeName(t)
}

func (e *Emitter) export() string {
	if e.settings.Bool(OptionExport) {
		return "export "
	}
	return ""
}

func (e *Emitter) EmitFile(f *ast.File) {
	if u := e.W.Unit(); u != nil {
		e.Buf.Line("// Generated from %s.", u.Name())
	}
	if f.Package != nil {
		e.W.Walk(f.Package)
	}
}

func (e *Emitter) EmitPackage(p *ast.Package) {
	e.pkg = p.Name
	for _, q := range e.imports(p) {
		e.Buf.Line("import { %s } from %q;", localName(q), modulePath(p.Name, q))
	}
	for _, d := range p.Decls {
		if e.Buf.Len() > 0 {
			e.Buf.Newline()
		}
		e.W.Walk(d)
	}
}

// imports lists the qualified names of every type the file refers to
// outside itself, sorted.
func (e *Emitter) imports(p *ast.Package) []string {
	own := make(map[string]bool)
	for _, d := range p.Decls {
		if name := declName(d); name != "" {
			own[name] = true
		}
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || own[name] {
			return
		}
		if _, ok := primitives[name]; ok {
			return
		}
		q := e.W.QualifiedName(name)
		if !strings.Contains(q, ".") || seen[q] || own[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}
	for _, ref := range ast.References(e.W.File()) {
		if ref.Kind != ast.RefResource {
			add(ref.Name)
		}
	}
	for _, d := range p.Decls {
		signatureTypes(d, add)
	}
	sort.Strings(out)
	return out
}

// signatureTypes reports every type named in d's declared signatures.
func signatureTypes(d ast.Decl, add func(string)) {
	switch d := d.(type) {
	case *ast.Class:
		for _, m := range d.Members {
			signatureTypes(m, add)
		}
	case *ast.Interface:
		for _, m := range d.Members {
			signatureTypes(m, add)
		}
	case *ast.Function:
		for _, p := range d.Params {
			add(p.Type)
		}
		add(d.Result)
	case *ast.Variable:
		add(d.Type)
		if n, ok := d.Init.(*ast.New); ok {
			add(n.Type)
		}
	}
}

// modulePath is the import specifier of qname relative to package from.
func modulePath(from, qname string) string {
	var src []string
	if from != "" {
		src = strings.Split(from, ".")
	}
	dst := strings.Split(qname, ".")
	common := 0
	for common < len(src) && common < len(dst)-1 && src[common] == dst[common] {
		common++
	}
	var parts []string
	if common == len(src) {
		parts = append(parts, ".")
	}
	for range src[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, dst[common:]...)
	return strings.Join(parts, "/")
}

func declName(d ast.Decl) string {
	switch d := d.(type) {
	case *ast.Class:
		return d.Name
	case *ast.Interface:
		return d.Name
	case *ast.Function:
		return d.Name
	case *ast.Variable:
		return d.Name
	}
	return ""
}

func (e *Emitter) EmitClass(c *ast.Class) {
	members := make(map[string]string)
	var ctor *ast.Function
	for _, m := range c.Members {
		switch m := m.(type) {
		case *ast.Variable:
			members[m.Name] = qualifier(m.Static, c.Name)
		case *ast.Function:
			if m.Name == c.Name && !m.Static {
				ctor = m
				continue
			}
			members[m.Name] = qualifier(m.Static, c.Name)
		}
	}

	e.doc(c.Doc)
	header := e.export() + "class " + c.Name
	if c.Extends != "" {
		header += " extends " + e.typeName(c.Extends)
	}
	if len(c.Implements) > 0 {
		names := make([]string, len(c.Implements))
		for i, x := range c.Implements {
			names[i] = e.typeName(x)
		}
		header += " implements " + strings.Join(names, ", ")
	}
	e.Buf.Line("%s {", header)
	e.Buf.Indent()
	e.EnterClass(members)
	e.class = c.Name

	first := true
	sep := func() {
		if !first {
			e.Buf.Newline()
		}
		first = false
	}
	for _, m := range c.Members {
		if v, ok := m.(*ast.Variable); ok {
			e.W.Walk(v)
			first = false
		}
	}
	if ctor != nil || c.Extends != "" {
		sep()
		e.constructor(c, ctor)
	}
	for _, m := range c.Members {
		if fn, ok := m.(*ast.Function); ok && fn != ctor {
			sep()
			e.W.Walk(fn)
		}
	}

	e.class = ""
	e.LeaveClass()
	e.Buf.Dedent()
	e.Buf.Line("}")
}

func qualifier(static bool, class string) string {
	if static {
		return class
	}
	return "this"
}

func (e *Emitter) constructor(c *ast.Class, ctor *ast.Function) {
	var params []ast.Param
	if ctor != nil {
		params = ctor.Params
		e.doc(ctor.Doc)
	}
	e.EnterFunction(params)
	e.Buf.Line("constructor(%s) {", e.params(params))
	e.Buf.Indent()
	if c.Extends != "" {
		e.Buf.Line("super();")
	}
	if ctor != nil {
		e.W.Walk(e.W.Body(ctor))
	}
	e.Buf.Dedent()
	e.Buf.Line("}")
	e.LeaveFunction()
}

func (e *Emitter) EmitInterface(i *ast.Interface) {
	e.doc(i.Doc)
	header := e.export() + "interface " + i.Name
	if len(i.Extends) > 0 {
		names := make([]string, len(i.Extends))
		for k, x := range i.Extends {
			names[k] = e.typeName(x)
		}
		header += " extends " + strings.Join(names, ", ")
	}
	e.Buf.Line("%s {", header)
	e.Buf.Indent()
	for _, m := range i.Members {
		switch m := m.(type) {
		case *ast.Function:
			e.doc(m.Doc)
			e.Buf.Line("%s(%s)%s;", m.Name, e.params(m.Params), e.result(m.Result))
		case *ast.Variable:
			e.doc(m.Doc)
			e.Buf.Line("%s%s;", m.Name, e.annotation(m.Type))
		}
	}
	e.Buf.Dedent()
	e.Buf.Line("}")
}

func (e *Emitter) EmitFunction(fn *ast.Function) {
	e.doc(fn.Doc)
	var head string
	switch {
	case e.class == "":
		head = e.export() + "function " + fn.Name
	case fn.Static:
		head = "static " + fn.Name
	default:
		head = fn.Name
	}
	e.EnterFunction(fn.Params)
	e.Buf.Line("%s(%s)%s {", head, e.params(fn.Params), e.result(fn.Result))
	e.Buf.Indent()
	e.W.Walk(e.W.Body(fn))
	e.Buf.Dedent()
	e.Buf.Line("}")
	e.LeaveFunction()
}

// EmitVariable writes class fields and module-level bindings.
func (e *Emitter) EmitVariable(v *ast.Variable) {
	e.doc(v.Doc)
	switch {
	case e.class == "":
		kw := "let "
		if v.Const {
			kw = "const "
		}
		e.Buf.Write(e.export() + kw)
	case v.Static && v.Const:
		e.Buf.Write("static readonly ")
	case v.Static:
		e.Buf.Write("static ")
	case v.Const:
		e.Buf.Write("readonly ")
	}
	e.Buf.Write(v.Name + e.annotation(v.Type))
	if v.Init != nil {
		e.Buf.Write(" = ")
		e.W.Walk(v.Init)
	}
	e.Buf.Write(";\n")
}

func (e *Emitter) params(params []ast.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		s := p.Name + e.annotation(p.Type)
		if p.Default != nil {
			s += " = " + e.Expr(p.Default)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func (e *Emitter) result(t string) string {
	if t == "" {
		return ""
	}
	return ": " + e.typeName(t)
}

func (e *Emitter) doc(text string) {
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		e.Buf.Line("/** %s */", lines[0])
		return
	}
	e.Buf.Line("/**")
	for _, l := range lines {
		e.Buf.Line(" * %s", l)
	}
	e.Buf.Line(" */")
}
