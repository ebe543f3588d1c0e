package kn

import (
	"strings"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

// parseBody is the ast.BodyParser for .kn function bodies.
func parseBody(file string, lines []ast.Line) (*ast.Block, []diag.Diagnostic) {
	b := &bodyParser{file: file, lines: lines}
	start := ast.Pos{}
	if len(lines) > 0 {
		start.Line = lines[0].Num
	}
	blk, term := b.block(start)
	if term != "" {
		b.errorf(start.Line, "unexpected %q", term)
	}
	return blk, b.diags
}

type bodyParser struct {
	file  string
	lines []ast.Line
	pos   int
	diags []diag.Diagnostic
}

func (b *bodyParser) errorf(line int, format string, args ...any) {
	b.diags = append(b.diags, diag.Errorf(diag.KindParse, b.file, line, format, args...))
}

// block parses statements until one of stop is reached or the lines run out.
// It returns the terminator it consumed, or "" at the end of input.
func (b *bodyParser) block(pos ast.Pos, stop ...string) (*ast.Block, string) {
	blk := &ast.Block{Pos: pos}
	for b.pos < len(b.lines) {
		ln := b.lines[b.pos]
		text := stripComment(strings.TrimSpace(ln.Text))
		if text == "" {
			b.pos++
			continue
		}
		kw, rest := cut(text)
		for _, s := range stop {
			if kw == s {
				b.pos++
				return blk, kw
			}
		}
		b.pos++
		if st := b.statement(ln.Num, kw, rest, text); st != nil {
			blk.Stmts = append(blk.Stmts, st)
		}
	}
	return blk, ""
}

func (b *bodyParser) statement(line int, kw, rest, text string) ast.Stmt {
	at := ast.Pos{Line: line}
	switch kw {
	case "var", "const":
		v, err := parseVariable(rest, line)
		if err != nil {
			b.errorf(line, "%v", err)
			return nil
		}
		v.Const = kw == "const"
		return &ast.VarStmt{Pos: at, Var: v}
	case "return":
		if rest == "" {
			return &ast.ReturnStmt{Pos: at}
		}
		x, err := parseExpr(rest, line)
		if err != nil {
			b.errorf(line, "%v", err)
			return nil
		}
		return &ast.ReturnStmt{Pos: at, Value: x}
	case "if":
		cond, err := parseExpr(rest, line)
		if err != nil {
			b.errorf(line, "%v", err)
		}
		then, term := b.block(at, "else", "end")
		st := &ast.IfStmt{Pos: at, Cond: cond, Then: then}
		if term == "else" {
			st.Else, term = b.block(at, "end")
		}
		if term != "end" {
			b.errorf(line, "missing end for if")
		}
		if cond == nil {
			return nil
		}
		return st
	case "while":
		cond, err := parseExpr(rest, line)
		if err != nil {
			b.errorf(line, "%v", err)
		}
		body, term := b.block(at, "end")
		if term != "end" {
			b.errorf(line, "missing end for while")
		}
		if cond == nil {
			return nil
		}
		return &ast.WhileStmt{Pos: at, Cond: cond, Body: body}
	case "else", "end":
		b.errorf(line, "unexpected %q", kw)
		return nil
	}
	x, err := parseExpr(text, line)
	if err != nil {
		b.errorf(line, "%v", err)
		return nil
	}
	return &ast.ExprStmt{Pos: at, X: x}
}
