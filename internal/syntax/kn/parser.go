// Package kn parses .kn source files: a small line-oriented class language
// whose blocks close with "end". Declarations are parsed eagerly; function
// bodies are captured as raw lines and parsed only when a walker asks.
package kn

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

// Extension is the file extension handled by Parser.
const Extension = ".kn"

// Parser implements syntax.Source for .kn files.
type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(path string, content []byte) (*ast.File, []diag.Diagnostic) {
	d := &declParser{path: path, lines: splitLines(content)}
	pkg := &ast.Package{Pos: ast.Pos{Line: 1}}
	f := &ast.File{Pos: ast.Pos{Line: 1}, Path: path, Package: pkg}
	sawPackage := false

	for {
		ln, ok := d.next()
		if !ok {
			break
		}
		kw, rest := cut(stripComment(ln.Text))
		switch kw {
		case "package":
			if sawPackage || len(pkg.Imports) > 0 || len(pkg.Decls) > 0 {
				d.errorf(ln.Num, "package clause must come first")
				continue
			}
			sawPackage = true
			pkg.Name = rest
			pkg.Line = ln.Num
		case "import":
			if rest == "" {
				d.errorf(ln.Num, "import needs a qualified name")
				continue
			}
			pkg.Imports = append(pkg.Imports, ast.Import{Pos: ast.Pos{Line: ln.Num}, Name: rest})
		case "class":
			if c := d.class(ln, rest); c != nil {
				pkg.Decls = append(pkg.Decls, c)
			}
		case "interface":
			if i := d.iface(ln, rest); i != nil {
				pkg.Decls = append(pkg.Decls, i)
			}
		case "static", "var", "const", "function":
			if m := d.member(ln, false); m != nil {
				pkg.Decls = append(pkg.Decls, m)
			}
		default:
			d.errorf(ln.Num, "unexpected %q at top level", kw)
		}
	}
	return f, d.diags
}

type declParser struct {
	path  string
	lines []ast.Line
	pos   int
	doc   []string
	diags []diag.Diagnostic
}

func splitLines(content []byte) []ast.Line {
	raw := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	lines := make([]ast.Line, len(raw))
	for i, text := range raw {
		lines[i] = ast.Line{Num: i + 1, Text: text}
	}
	return lines
}

func (d *declParser) errorf(line int, format string, args ...any) {
	d.diags = append(d.diags, diag.Errorf(diag.KindParse, d.path, line, format, args...))
}

// next returns the next significant line, collecting /// doc lines on the way.
func (d *declParser) next() (ast.Line, bool) {
	for d.pos < len(d.lines) {
		ln := d.lines[d.pos]
		d.pos++
		text := strings.TrimSpace(ln.Text)
		switch {
		case strings.HasPrefix(text, "///"):
			d.doc = append(d.doc, strings.TrimSpace(strings.TrimPrefix(text, "///")))
		case text == "" || strings.HasPrefix(text, "//"):
		default:
			ln.Text = text
			return ln, true
		}
	}
	return ast.Line{}, false
}

func (d *declParser) takeDoc() string {
	doc := strings.Join(d.doc, "\n")
	d.doc = nil
	return doc
}

func (d *declParser) class(ln ast.Line, header string) *ast.Class {
	words := strings.Fields(strings.ReplaceAll(header, ",", " "))
	if len(words) == 0 {
		d.errorf(ln.Num, "class needs a name")
		d.skipBlock()
		return nil
	}
	c := &ast.Class{Pos: ast.Pos{Line: ln.Num}, Name: words[0], Doc: d.takeDoc()}
	mode := ""
	for _, w := range words[1:] {
		switch {
		case w == "extends" || w == "implements":
			mode = w
		case mode == "extends" && c.Extends == "":
			c.Extends = w
		case mode == "implements":
			c.Implements = append(c.Implements, w)
		default:
			d.errorf(ln.Num, "unexpected %q in class header", w)
		}
	}
	c.Members = d.members(ln, "class "+c.Name, false)
	return c
}

func (d *declParser) iface(ln ast.Line, header string) *ast.Interface {
	words := strings.Fields(strings.ReplaceAll(header, ",", " "))
	if len(words) == 0 {
		d.errorf(ln.Num, "interface needs a name")
		d.skipBlock()
		return nil
	}
	i := &ast.Interface{Pos: ast.Pos{Line: ln.Num}, Name: words[0], Doc: d.takeDoc()}
	if len(words) > 1 {
		if words[1] != "extends" {
			d.errorf(ln.Num, "unexpected %q in interface header", words[1])
		} else {
			i.Extends = words[2:]
		}
	}
	i.Members = d.members(ln, "interface "+i.Name, true)
	return i
}

// members parses declarations up to the "end" closing the block opened at ln.
func (d *declParser) members(ln ast.Line, what string, signaturesOnly bool) []ast.Decl {
	var out []ast.Decl
	for {
		m, ok := d.next()
		if !ok {
			d.errorf(ln.Num, "missing end for %s", what)
			return out
		}
		if stripComment(m.Text) == "end" {
			return out
		}
		if decl := d.member(m, signaturesOnly); decl != nil {
			out = append(out, decl)
		}
	}
}

func (d *declParser) member(ln ast.Line, signaturesOnly bool) ast.Decl {
	text := stripComment(ln.Text)
	doc := d.takeDoc()
	static := false
	kw, rest := cut(text)
	if kw == "static" {
		static = true
		kw, rest = cut(rest)
	}
	switch kw {
	case "var", "const":
		v, err := parseVariable(rest, ln.Num)
		if err != nil {
			d.errorf(ln.Num, "%v", err)
			return nil
		}
		v.Static = static
		v.Const = kw == "const"
		v.Doc = doc
		return v
	case "function":
		name, params, result, err := parseSignature(rest, ln.Num)
		if err != nil {
			d.errorf(ln.Num, "%v", err)
			if !signaturesOnly {
				d.body()
			}
			return nil
		}
		fn := &ast.Function{Pos: ast.Pos{Line: ln.Num}, Name: name, Params: params, Result: result, Static: static, Doc: doc}
		if !signaturesOnly {
			lines, closed := d.body()
			if !closed {
				d.errorf(ln.Num, "missing end for function %s", name)
			}
			fn.Body = ast.NewLazyBody(d.path, ast.Pos{Line: ln.Num}, lines, parseBody)
		}
		return fn
	}
	d.errorf(ln.Num, "unexpected %q in declaration", kw)
	return nil
}

// body captures raw lines until the "end" matching the current function.
func (d *declParser) body() ([]ast.Line, bool) {
	depth := 0
	var lines []ast.Line
	for d.pos < len(d.lines) {
		ln := d.lines[d.pos]
		d.pos++
		kw, _ := cut(stripComment(strings.TrimSpace(ln.Text)))
		switch kw {
		case "if", "while":
			depth++
		case "end":
			if depth == 0 {
				return lines, true
			}
			depth--
		}
		lines = append(lines, ln)
	}
	return lines, false
}

// skipBlock drops lines through the matching "end" after a bad header.
func (d *declParser) skipBlock() {
	d.body()
}

func cut(s string) (string, string) {
	kw, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	return kw, strings.TrimSpace(rest)
}

// parseVariable parses "name[: Type] [= init]".
func parseVariable(spec string, line int) (*ast.Variable, error) {
	left, right := spec, ""
	if i := assignIndex(spec); i >= 0 {
		left, right = spec[:i], strings.TrimSpace(spec[i+1:])
	}
	name, typ, _ := strings.Cut(left, ":")
	name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
	if !isIdent(name) {
		return nil, fmt.Errorf("invalid variable name %q", name)
	}
	v := &ast.Variable{Pos: ast.Pos{Line: line}, Name: name, Type: typ}
	if right != "" {
		init, err := parseExpr(right, line)
		if err != nil {
			return nil, fmt.Errorf("initializer of %s: %w", name, err)
		}
		v.Init = init
	}
	return v, nil
}

// assignIndex finds the first lone "=" outside string literals.
func assignIndex(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '=':
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.ContainsRune("=!<>", rune(s[i-1])) {
				continue
			}
			return i
		}
	}
	return -1
}

// parseSignature parses "name(a: T, b: U = 1)[: R]".
func parseSignature(spec string, line int) (string, []ast.Param, string, error) {
	open := strings.Index(spec, "(")
	end := strings.LastIndex(spec, ")")
	if open < 0 || end < open {
		return "", nil, "", fmt.Errorf("malformed function signature %q", spec)
	}
	name := strings.TrimSpace(spec[:open])
	if !isIdent(name) {
		return "", nil, "", fmt.Errorf("invalid function name %q", name)
	}
	result := ""
	if tail := strings.TrimSpace(spec[end+1:]); tail != "" {
		if !strings.HasPrefix(tail, ":") {
			return "", nil, "", fmt.Errorf("unexpected %q after parameters", tail)
		}
		result = strings.TrimSpace(tail[1:])
	}
	var params []ast.Param
	for _, raw := range splitTopLevel(spec[open+1 : end]) {
		v, err := parseVariable(raw, line)
		if err != nil {
			return "", nil, "", fmt.Errorf("parameter of %s: %w", name, err)
		}
		params = append(params, ast.Param{Name: v.Name, Type: v.Type, Default: v.Init})
	}
	return name, params, result, nil
}

// splitTopLevel splits on commas that are not nested in parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
