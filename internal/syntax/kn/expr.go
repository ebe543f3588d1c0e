package kn

import (
	"fmt"

	"github.com/efebarandurmaz/kiln/internal/ast"
)

var binaryPrec = map[string]int{
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

type exprParser struct {
	toks []token
	pos  int
	line int
}

// parseExpr parses a complete expression from s.
func parseExpr(s string, line int) (ast.Expr, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks, line: line}
	x, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s after expression", t)
	}
	return x, nil
}

func (p *exprParser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	t := p.peek()
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) expect(op string) error {
	if t := p.next(); t.kind != tokOp || t.text != op {
		return fmt.Errorf("expected %q, found %s", op, t)
	}
	return nil
}

func (p *exprParser) at() ast.Pos { return ast.Pos{Line: p.line} }

func (p *exprParser) binary(minPrec int) (ast.Expr, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		prec, ok := binaryPrec[t.text]
		if t.kind != tokOp || !ok || prec < minPrec {
			return x, nil
		}
		p.next()
		// assignment is right-associative
		nextMin := prec + 1
		if t.text == "=" {
			nextMin = prec
		}
		y, err := p.binary(nextMin)
		if err != nil {
			return nil, err
		}
		x = &ast.Binary{Pos: p.at(), Op: t.text, X: x, Y: y}
	}
}

func (p *exprParser) unary() (ast.Expr, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "!") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Pos: p.at(), Op: t.text, X: x}, nil
	}
	return p.postfix()
}

func (p *exprParser) postfix() (ast.Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tokOp && t.text == ".":
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, fmt.Errorf("expected member name, found %s", name)
			}
			x = &ast.Member{Pos: p.at(), X: x, Name: name.text}
		case t.kind == tokOp && t.text == "(":
			p.next()
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			x = &ast.Call{Pos: p.at(), Fun: x, Args: args}
		default:
			return x, nil
		}
	}
}

// args parses a comma-separated list up to and including the closing paren.
func (p *exprParser) args() ([]ast.Expr, error) {
	var args []ast.Expr
	if t := p.peek(); t.kind == tokOp && t.text == ")" {
		p.next()
		return args, nil
	}
	for {
		a, err := p.binary(1)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		t := p.next()
		if t.kind == tokOp && t.text == ")" {
			return args, nil
		}
		if t.kind != tokOp || t.text != "," {
			return nil, fmt.Errorf("expected \",\" or \")\", found %s", t)
		}
	}
}

func (p *exprParser) primary() (ast.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &ast.Literal{Pos: p.at(), Kind: ast.Number, Value: t.text}, nil
	case tokString:
		return &ast.Literal{Pos: p.at(), Kind: ast.String, Value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			return &ast.Literal{Pos: p.at(), Kind: ast.Bool, Value: t.text}, nil
		case "null":
			return &ast.Literal{Pos: p.at(), Kind: ast.Null, Value: t.text}, nil
		case "new":
			return p.newExpr()
		}
		return &ast.Ident{Pos: p.at(), Name: t.text}, nil
	case tokOp:
		if t.text == "(" {
			x, err := p.binary(1)
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, fmt.Errorf("unexpected %s", t)
}

func (p *exprParser) newExpr() (ast.Expr, error) {
	name := p.next()
	if name.kind != tokIdent {
		return nil, fmt.Errorf("expected type name after new, found %s", name)
	}
	typ := name.text
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "." && t.text != ":") {
			break
		}
		p.next()
		part := p.next()
		if part.kind != tokIdent {
			return nil, fmt.Errorf("expected type name, found %s", part)
		}
		typ += t.text + part.text
	}
	var args []ast.Expr
	if t := p.peek(); t.kind == tokOp && t.text == "(" {
		p.next()
		var err error
		if args, err = p.args(); err != nil {
			return nil, err
		}
	}
	return &ast.New{Pos: p.at(), Type: typ, Args: args}, nil
}
