package extern

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/output"
)

// Extension of the generated ActionScript files.
const Extension = "as"

// Emitter writes ActionScript stubs for a Model under a Config's policy.
// Paths handed to the writer are relative to the as-root.
type Emitter struct {
	model  *Model
	cfg    *Config
	writer output.Writer
	logger *slog.Logger

	files    []string
	excluded int
	diags    []diag.Diagnostic
}

func NewEmitter(m *Model, cfg *Config, w output.Writer, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{model: m, cfg: cfg, writer: w, logger: logger}
}

// Emit writes every class, interface, function, constant and typedef the
// policy keeps, in name order. Write failures are diagnostics; only
// cancellation stops emission.
func (e *Emitter) Emit(ctx context.Context) error {
	for _, name := range e.model.ClassNames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := e.model.Classes[name]
		if d := e.cfg.Policy.Evaluate(c.Entry); d.Excluded {
			e.exclude(c.Entry, d)
			continue
		}
		if e.cfg.ClassToFunction[name] {
			e.classToFunction(ctx, c)
			if !c.HasInstanceMembers() {
				continue
			}
		}
		e.class(ctx, c)
	}
	for _, group := range [][]Entry{e.model.Functions, e.model.Constants, e.model.TypeDefs} {
		for _, ent := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d := e.cfg.Policy.Evaluate(ent); d.Excluded {
				e.exclude(ent, d)
				continue
			}
			e.topLevel(ctx, ent)
		}
	}
	return ctx.Err()
}

// Files lists the written paths in emission order.
func (e *Emitter) Files() []string { return e.files }

// Excluded counts the entries the policy removed.
func (e *Emitter) Excluded() int { return e.excluded }

func (e *Emitter) Diagnostics() []diag.Diagnostic { return e.diags }

func (e *Emitter) exclude(ent Entry, d Decision) {
	e.excluded++
	msg := fmt.Sprintf("%s %s excluded", ent.Kind, ent.QualifiedName())
	if d.Reason != "" {
		msg += ": " + d.Reason
	}
	e.diags = append(e.diags, diag.Warnf(diag.KindExcluded, ent.File, ent.Line, "%s", msg))
}

func (e *Emitter) write(ctx context.Context, dir, qname string, buf *backend.Buffer, from Entry) {
	rel := output.ArtifactPath(dir, qname, Extension)
	if err := e.writer.Write(ctx, rel, buf.Bytes()); err != nil {
		e.diags = append(e.diags, diag.Errorf(diag.KindIO, from.File, from.Line, "write %s: %v", rel, err))
		return
	}
	e.files = append(e.files, rel)
	e.logger.Debug("extern stub written", "path", rel, "bytes", buf.Len())
}

func openPackage(buf *backend.Buffer, qname string) string {
	pkg, name := SplitName(qname)
	if pkg == "" {
		buf.Write("package {\n")
	} else {
		buf.Write("package " + pkg + " {\n")
	}
	return name
}

func (e *Emitter) class(ctx context.Context, c *ClassReference) {
	buf := backend.NewBuffer("    ")
	name := openPackage(buf, c.Name)
	writeDoc(buf, c.Doc)

	static := e.cfg.ClassToFunction[c.Name]
	if c.IsInterface() {
		buf.Write("public interface " + name)
		if len(c.Extends) > 0 {
			buf.Write(" extends " + strings.Join(c.Extends, ", "))
		}
	} else {
		buf.Write("public class " + name)
		if len(c.Extends) > 0 {
			buf.Write(" extends " + c.Extends[0])
		}
		if len(c.Implements) > 0 {
			buf.Write(" implements " + strings.Join(c.Implements, ", "))
		}
	}
	buf.Write(" {\n")
	buf.Indent()
	if !c.IsInterface() {
		buf.Write("public function " + name + "(" + paramList(c.Params) + ") {}\n")
	}
	for _, m := range c.Members() {
		if static && m.Static {
			continue
		}
		decl := memberDecl(m, c.IsInterface())
		if d := e.cfg.Policy.Evaluate(m); d.Excluded {
			e.exclude(m, d)
			buf.Write(d.Placeholder(decl) + "\n")
			continue
		}
		writeDoc(buf, m.Doc)
		buf.Write(decl + "\n")
	}
	buf.Dedent()
	buf.Write("}\n}\n")

	dir := ClassesDir
	if c.IsInterface() {
		dir = InterfacesDir
	}
	e.write(ctx, dir, c.Name, buf, c.Entry)
}

// classToFunction emits the static surface of c as top-level functions and
// constants in the package that holds c.
func (e *Emitter) classToFunction(ctx context.Context, c *ClassReference) {
	pkg, _ := SplitName(c.Name)
	for _, m := range c.Members() {
		if !m.Static {
			continue
		}
		if d := e.cfg.Policy.Evaluate(m); d.Excluded {
			e.exclude(m, d)
			continue
		}
		top := m
		top.Owner, top.Static = "", false
		top.Name = m.Name
		if pkg != "" {
			top.Name = pkg + "." + m.Name
		}
		if m.Kind == KindMethod {
			top.Kind = KindFunction
		} else {
			top.Kind = KindConstant
		}
		e.topLevel(ctx, top)
	}
}

func (e *Emitter) topLevel(ctx context.Context, ent Entry) {
	buf := backend.NewBuffer("    ")
	name := openPackage(buf, ent.Name)
	writeDoc(buf, ent.Doc)
	switch ent.Kind {
	case KindFunction:
		buf.Write("public function " + name + signature(ent) + "\n")
	case KindTypeDef:
		writeTypeDef(buf, name, ent.Type)
	default:
		buf.Write("public const " + name + ":" + asType(ent.Type) + ";\n")
	}
	buf.Write("}\n")
	e.write(ctx, Dir(ent.Kind), ent.Name, buf, ent)
}

// writeTypeDef renders a record typedef as a class with one field per
// record field. Any other typedef becomes an empty class documenting the
// aliased type.
func writeTypeDef(buf *backend.Buffer, name, typ string) {
	fields, record := recordFields(typ)
	if !record {
		buf.Write("/** @typedef {" + typ + "} */\n")
	}
	buf.Write("public class " + name + " {\n")
	buf.Indent()
	for _, f := range fields {
		buf.Write("public var " + f.Name + ":" + asType(f.Type) + ";\n")
	}
	buf.Dedent()
	buf.Write("}\n")
}

// memberDecl renders one member on a single line.
func memberDecl(m Entry, iface bool) string {
	if iface {
		if m.Kind == KindMethod {
			return "function " + m.Name + "(" + paramList(m.Params) + "):" + returnType(m.Type) + ";"
		}
		return "function get " + m.Name + "():" + asType(m.Type) + ";"
	}
	mod := "public "
	if m.Static {
		mod += "static "
	}
	switch m.Kind {
	case KindMethod:
		return mod + "function " + m.Name + signature(m)
	case KindConstant:
		return mod + "const " + m.Name + ":" + asType(m.Type) + ";"
	}
	return mod + "var " + m.Name + ":" + asType(m.Type) + ";"
}

// signature renders "(params):Result { body }" for a function with a stub
// body returning the result type's zero value.
func signature(fn Entry) string {
	ret := returnType(fn.Type)
	var body string
	switch ret {
	case "void":
		body = "{}"
	case "Number":
		body = "{ return 0; }"
	case "Boolean":
		body = "{ return false; }"
	default:
		body = "{ return null; }"
	}
	return "(" + paramList(fn.Params) + "):" + ret + " " + body
}

func paramList(params []Param) string {
	out := make([]string, len(params))
	for i, p := range params {
		switch {
		case p.Rest:
			out[i] = "..." + p.Name
		case p.Optional:
			t := asType(p.Type)
			out[i] = p.Name + ":" + t + " = " + defaultValue(t)
		default:
			out[i] = p.Name + ":" + asType(p.Type)
		}
	}
	return strings.Join(out, ", ")
}

func defaultValue(t string) string {
	switch t {
	case "Number":
		return "NaN"
	case "Boolean":
		return "false"
	}
	return "null"
}

func writeDoc(buf *backend.Buffer, doc string) {
	if doc == "" {
		return
	}
	buf.Write("/**\n")
	for _, l := range strings.Split(doc, "\n") {
		if l == "" {
			buf.Write(" *\n")
			continue
		}
		buf.Write(" * " + l + "\n")
	}
	buf.Write(" */\n")
}
