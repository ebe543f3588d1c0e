package extern

import (
	"regexp"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/diag"
)

// statement is one top-level externs statement with the JSDoc block that
// precedes it.
type statement struct {
	doc  string
	text string
	line int
}

// scan splits an externs file into statements. Comments other than JSDoc
// blocks are dropped; a JSDoc block attaches to the next statement.
func scan(src string) []statement {
	var out []statement
	doc, line := "", 1
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "/*"):
			body, next := blockComment(src, i)
			if strings.HasPrefix(src[i:], "/**") {
				doc = body
			}
			line += strings.Count(src[i:next], "\n")
			i = next
		case strings.HasPrefix(src[i:], "//"):
			next := strings.IndexByte(src[i:], '\n')
			if next < 0 {
				return out
			}
			i += next
		default:
			end := statementEnd(src, i)
			text := src[i:end]
			out = append(out, statement{doc: doc, text: strings.TrimSpace(text), line: line})
			line += strings.Count(text, "\n")
			doc = ""
			i = end
		}
	}
	return out
}

func blockComment(src string, i int) (string, int) {
	open := 2
	if strings.HasPrefix(src[i:], "/**") {
		open = 3
	}
	end := strings.Index(src[i+open:], "*/")
	if end < 0 {
		return src[i+open:], len(src)
	}
	return src[i+open : i+open+end], i + open + end + 2
}

// statementEnd finds the end of the statement starting at i: a semicolon
// at nesting depth zero, or the closing brace of a function declaration.
func statementEnd(src string, i int) int {
	fnDecl := strings.HasPrefix(src[i:], "function ")
	depth := 0
	var quote byte
	for j := i; j < len(src); j++ {
		c := src[j]
		if quote != 0 {
			switch c {
			case '\\':
				j++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 && c == '}' && fnDecl {
				return j + 1
			}
		case ';':
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(src)
}

// jsDoc is the subset of JSDoc the reference model needs.
type jsDoc struct {
	text        []string
	constructor bool
	iface       bool
	constant    bool
	typedef     bool
	extends     []string
	implements  []string
	params      []Param
	returns     string
	typ         string
}

func parseDoc(raw string) jsDoc {
	var d jsDoc
	var tags []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
		switch {
		case strings.HasPrefix(l, "@"):
			tags = append(tags, l)
		case len(tags) > 0:
			if l != "" {
				tags[len(tags)-1] += " " + l
			}
		case l != "" || len(d.text) > 0:
			d.text = append(d.text, l)
		}
	}
	for len(d.text) > 0 && d.text[len(d.text)-1] == "" {
		d.text = d.text[:len(d.text)-1]
	}

	for _, tag := range tags {
		name, rest, _ := strings.Cut(tag, " ")
		typ, rest := braced(strings.TrimSpace(rest))
		switch name {
		case "@constructor":
			d.constructor = true
		case "@interface", "@record":
			d.iface = true
		case "@extends":
			d.extends = append(d.extends, typeOrWord(typ, rest))
		case "@implements":
			d.implements = append(d.implements, typeOrWord(typ, rest))
		case "@param":
			d.params = append(d.params, docParam(typ, rest))
		case "@return", "@returns":
			d.returns = typ
		case "@type":
			d.typ = typ
		case "@const", "@define":
			d.constant = true
			if typ != "" {
				d.typ = typ
			}
		case "@typedef":
			d.typedef = true
			d.typ = typ
		}
	}
	return d
}

// braced splits a leading {type} off s. Nested braces in record types are
// balanced.
func braced(s string) (string, string) {
	if !strings.HasPrefix(s, "{") {
		return "", s
	}
	depth := 0
	for i, c := range s {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i]), strings.TrimSpace(s[i+1:])
			}
		}
	}
	return strings.TrimSpace(s[1:]), ""
}

func typeOrWord(typ, rest string) string {
	if typ != "" {
		return strings.TrimPrefix(typ, "!")
	}
	w, _, _ := strings.Cut(rest, " ")
	return strings.TrimPrefix(w, "!")
}

func docParam(typ, rest string) Param {
	name, _, _ := strings.Cut(rest, " ")
	p := Param{Name: strings.Trim(name, "[]"), Type: typ}
	if strings.HasPrefix(name, "[") {
		p.Optional = true
	}
	if strings.HasSuffix(typ, "=") {
		p.Optional = true
		p.Type = strings.TrimSuffix(typ, "=")
	}
	if strings.HasPrefix(p.Type, "...") {
		p.Rest = true
		p.Type = strings.TrimPrefix(p.Type, "...")
	}
	return p
}

var (
	funcDeclPattern = regexp.MustCompile(`^function\s+([\w$]+)\s*\(([^)]*)\)`)
	assignPattern   = regexp.MustCompile(`(?s)^(?:var\s+|let\s+|const\s+)?([\w$.]+)\s*=\s*(.*)$`)
	declarePattern  = regexp.MustCompile(`^(?:var\s+|let\s+|const\s+)?([\w$.]+)$`)
	funcExprPattern = regexp.MustCompile(`^function\s*\(([^)]*)\)`)
)

// decl is a parsed declaration before owners are resolved against the
// whole corpus.
type decl struct {
	Entry
	extends    []string
	implements []string
	namespace  bool

	// dotted marks Owner.Name declarations where Owner may be a class
	// (static member) or a namespace (top-level entry).
	dotted bool
}

// parseFile parses one externs file. Statements that declare nothing the
// model understands come back as warnings.
func parseFile(path, src string) ([]decl, []diag.Diagnostic) {
	var out []decl
	var ds []diag.Diagnostic
	for _, st := range scan(src) {
		text := strings.TrimSpace(strings.TrimSuffix(st.text, ";"))
		if text == "" || strings.HasPrefix(text, "'use strict'") || strings.HasPrefix(text, `"use strict"`) {
			continue
		}
		doc := parseDoc(st.doc)
		at := Entry{Doc: strings.Join(doc.text, "\n"), File: path, Line: st.line}

		if m := funcDeclPattern.FindStringSubmatch(text); m != nil {
			out = append(out, function(at, m[1], m[2], doc))
			continue
		}
		if m := assignPattern.FindStringSubmatch(text); m != nil {
			rhs := strings.TrimSpace(m[2])
			if f := funcExprPattern.FindStringSubmatch(rhs); f != nil {
				out = append(out, function(at, m[1], f[1], doc))
				continue
			}
			if strings.HasPrefix(rhs, "{") && !doc.typedef && doc.typ == "" {
				at.Name = m[1]
				out = append(out, decl{Entry: at, namespace: true})
				continue
			}
			out = append(out, property(at, m[1], doc))
			continue
		}
		if m := declarePattern.FindStringSubmatch(text); m != nil {
			if len(doc.params) > 0 || doc.returns != "" {
				out = append(out, function(at, m[1], "", doc))
				continue
			}
			out = append(out, property(at, m[1], doc))
			continue
		}
		ds = append(ds, diag.Warnf(diag.KindUnrecognized, path, st.line, "unrecognized declaration %q", firstLine(text)))
	}
	return out, ds
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// function builds a class, interface, method or free function.
func function(at Entry, name, paramList string, doc jsDoc) decl {
	at.Params = params(paramList, doc.params)
	at.Type = doc.returns
	switch {
	case doc.constructor || doc.iface:
		at.Name = name
		at.Kind = KindClass
		if doc.iface {
			at.Kind = KindInterface
		}
		return decl{Entry: at, extends: doc.extends, implements: doc.implements}
	case strings.Contains(name, ".prototype."):
		at.Owner, at.Name, _ = strings.Cut(name, ".prototype.")
		at.Kind = KindMethod
		return decl{Entry: at}
	case strings.Contains(name, "."):
		at.Owner, at.Name = SplitName(name)
		at.Kind = KindMethod
		at.Static = true
		return decl{Entry: at, dotted: true}
	}
	at.Name = name
	at.Kind = KindFunction
	return decl{Entry: at}
}

// property builds a typedef, field or constant.
func property(at Entry, name string, doc jsDoc) decl {
	at.Type = doc.typ
	kind := KindField
	if doc.constant {
		kind = KindConstant
	}
	switch {
	case doc.typedef:
		at.Name = name
		at.Kind = KindTypeDef
		return decl{Entry: at}
	case strings.Contains(name, ".prototype."):
		at.Owner, at.Name, _ = strings.Cut(name, ".prototype.")
		at.Kind = kind
		return decl{Entry: at}
	case strings.Contains(name, "."):
		at.Owner, at.Name = SplitName(name)
		at.Kind = kind
		at.Static = true
		return decl{Entry: at, dotted: true}
	}
	at.Name = name
	at.Kind = KindConstant
	return decl{Entry: at}
}

// params pairs the declared parameter names with their documented types.
// Documented parameters missing from the list are appended when the
// statement carries no list of its own.
func params(list string, documented []Param) []Param {
	byName := make(map[string]Param, len(documented))
	for _, p := range documented {
		byName[p.Name] = p
	}
	var out []Param
	for _, n := range strings.Split(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		p, ok := byName[n]
		if !ok {
			p = Param{Name: n}
		}
		out = append(out, p)
	}
	if strings.TrimSpace(list) == "" && len(out) == 0 {
		out = append(out, documented...)
	}
	return out
}
