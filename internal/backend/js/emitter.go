package js

import (
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/backend"
)

// Emitter writes Closure-style JavaScript: goog.provide/require, prototype
// methods and JSDoc type annotations.
type Emitter struct {
	backend.ScriptEmitter

	settings backend.Settings
	doc      *DocEmitter

	pkg   string
	class string
	iface bool
}

func NewEmitter(buf *backend.Buffer, s backend.Settings) *Emitter {
	e := &Emitter{
		settings: s,
		doc:      &DocEmitter{buf: buf, enabled: s.Bool(OptionJSDoc)},
	}
	e.Buf = buf
	e.DeclareLocal = func(v *ast.Variable) string { return "var " + v.Name }
	e.TypeRef = func(qname string) string { return qname }
	return e
}

func (e *Emitter) qualify(name string) string {
	if e.pkg == "" {
		return name
	}
	return e.pkg + "." + name
}

// typeName maps a declared type to a Closure type expression.
func (e *Emitter) typeName(t string) string {
	switch t {
	case "", "*":
		return "*"
	case "int", "uint", "float", "Number", "number":
		return "number"
	case "String", "string":
		return "string"
	case "Boolean", "boolean", "bool":
		return "boolean"
	case "void", "Object", "Array", "Function":
		return t
	}
	return e.W.QualifiedName(t)
}

func (e *Emitter) EmitFile(f *ast.File) {
	e.doc.Begin()
	if u := e.W.Unit(); u != nil {
		e.doc.Tag("fileoverview", "Generated from "+u.Name()+".")
	}
	e.doc.End()
	if f.Package != nil {
		e.W.Walk(f.Package)
	}
}

func (e *Emitter) EmitPackage(p *ast.Package) {
	e.pkg = p.Name
	if e.settings.Bool(OptionClosureProvides) {
		var provides []string
		for _, d := range p.Decls {
			if name := declName(d); name != "" {
				provides = append(provides, e.qualify(name))
			}
		}
		for _, q := range provides {
			e.Buf.Line("goog.provide('%s');", q)
		}
		if requires := e.requires(provides); len(requires) > 0 {
			e.Buf.Newline()
			for _, q := range requires {
				e.Buf.Line("goog.require('%s');", q)
			}
		}
	}
	for _, d := range p.Decls {
		if e.Buf.Len() > 0 {
			e.Buf.Newline()
		}
		e.W.Walk(d)
	}
}

// requires lists the qualified type dependencies of the file, sorted.
func (e *Emitter) requires(provided []string) []string {
	skip := make(map[string]bool, len(provided))
	for _, q := range provided {
		skip[q] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, ref := range ast.References(e.W.File()) {
		if ref.Kind == ast.RefResource {
			continue
		}
		q := e.W.QualifiedName(ref.Name)
		if !strings.Contains(q, ".") || skip[q] || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

func (e *Emitter) EmitClass(c *ast.Class) {
	q := e.qualify(c.Name)
	var ctor *ast.Function
	members := make(map[string]string)
	var instanceVars []*ast.Variable
	for _, m := range c.Members {
		switch m := m.(type) {
		case *ast.Variable:
			if m.Static {
				members[m.Name] = q
			} else {
				members[m.Name] = "this"
				instanceVars = append(instanceVars, m)
			}
		case *ast.Function:
			if m.Name == c.Name && !m.Static {
				ctor = m
				continue
			}
			if m.Static {
				members[m.Name] = q
			} else {
				members[m.Name] = "this"
			}
		}
	}
	extends := ""
	if c.Extends != "" {
		extends = e.W.QualifiedName(c.Extends)
	}

	e.doc.Begin()
	e.doc.Text(c.Doc)
	e.doc.Tag("constructor", "")
	if extends != "" {
		e.doc.Tag("extends", "{"+extends+"}")
	}
	for _, i := range c.Implements {
		e.doc.Tag("implements", "{"+e.W.QualifiedName(i)+"}")
	}
	var params []ast.Param
	if ctor != nil {
		params = ctor.Params
		e.paramDocs(params)
	}
	e.doc.End()

	e.EnterClass(members)
	e.EnterFunction(params)
	e.Buf.Line("%s = function(%s) {", q, paramNames(params))
	e.Buf.Indent()
	e.defaults(params)
	if extends != "" {
		e.Buf.Line("%s.base(this, 'constructor');", q)
	}
	for _, v := range instanceVars {
		e.doc.Begin()
		e.doc.Text(v.Doc)
		e.doc.Tag("type", "{"+e.typeName(v.Type)+"}")
		e.doc.End()
		init := "null"
		if v.Init != nil {
			init = e.Expr(v.Init)
		}
		e.Buf.Line("this.%s = %s;", v.Name, init)
	}
	if ctor != nil {
		e.W.Walk(e.W.Body(ctor))
	}
	e.Buf.Dedent()
	e.Buf.Line("};")
	e.LeaveFunction()
	if extends != "" {
		e.Buf.Line("goog.inherits(%s, %s);", q, extends)
	}

	e.class = q
	for _, m := range c.Members {
		if v, ok := m.(*ast.Variable); ok && !v.Static {
			continue
		}
		if m == ast.Decl(ctor) {
			continue
		}
		e.Buf.Newline()
		e.W.Walk(m)
	}
	e.class = ""
	e.LeaveClass()
}

func (e *Emitter) EmitInterface(i *ast.Interface) {
	q := e.qualify(i.Name)
	e.doc.Begin()
	e.doc.Text(i.Doc)
	e.doc.Tag("interface", "")
	for _, x := range i.Extends {
		e.doc.Tag("extends", "{"+e.W.QualifiedName(x)+"}")
	}
	e.doc.End()
	e.Buf.Line("%s = function() {};", q)

	e.class, e.iface = q, true
	for _, m := range i.Members {
		e.Buf.Newline()
		e.W.Walk(m)
	}
	e.class, e.iface = "", false
}

func (e *Emitter) EmitFunction(fn *ast.Function) {
	e.doc.Begin()
	e.doc.Text(fn.Doc)
	e.paramDocs(fn.Params)
	if fn.Result != "" {
		e.doc.Tag("return", "{"+e.typeName(fn.Result)+"}")
	}
	e.doc.End()

	var target string
	switch {
	case e.class == "":
		target = e.qualify(fn.Name)
	case fn.Static:
		target = e.class + "." + fn.Name
	default:
		target = e.class + ".prototype." + fn.Name
	}
	if e.iface {
		e.Buf.Line("%s = function(%s) {};", target, paramNames(fn.Params))
		return
	}

	e.EnterFunction(fn.Params)
	e.Buf.Line("%s = function(%s) {", target, paramNames(fn.Params))
	e.Buf.Indent()
	e.defaults(fn.Params)
	e.W.Walk(e.W.Body(fn))
	e.Buf.Dedent()
	e.Buf.Line("};")
	e.LeaveFunction()
}

// EmitVariable handles static fields, interface properties and package
// level variables. Instance fields are initialized in the constructor.
func (e *Emitter) EmitVariable(v *ast.Variable) {
	e.doc.Begin()
	e.doc.Text(v.Doc)
	if v.Const {
		e.doc.Tag("const", "")
	}
	e.doc.Tag("type", "{"+e.typeName(v.Type)+"}")
	e.doc.End()

	switch {
	case e.iface:
		e.Buf.Line("%s.prototype.%s;", e.class, v.Name)
		return
	case e.class != "":
		e.Buf.Writef("%s.%s", e.class, v.Name)
	default:
		e.Buf.Write(e.qualify(v.Name))
	}
	if v.Init != nil {
		e.Buf.Write(" = ")
		e.W.Walk(v.Init)
	}
	e.Buf.Write(";\n")
}

func (e *Emitter) paramDocs(params []ast.Param) {
	for _, p := range params {
		t := e.typeName(p.Type)
		if p.Default != nil {
			t += "="
		}
		e.doc.Tag("param", fmt.Sprintf("{%s} %s", t, p.Name))
	}
}

func (e *Emitter) defaults(params []ast.Param) {
	for _, p := range params {
		if p.Default != nil {
			e.Buf.Line("%s = %s !== undefined ? %s : %s;", p.Name, p.Name, p.Name, e.Expr(p.Default))
		}
	}
}

func paramNames(params []ast.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
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
