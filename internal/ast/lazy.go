package ast

import "github.com/efebarandurmaz/kiln/internal/diag"

// Line is one raw source line kept for deferred parsing.
type Line struct {
	Num  int
	Text string
}

// BodyParser turns the raw lines of a function body into a block.
type BodyParser func(file string, lines []Line) (*Block, []diag.Diagnostic)

// LazyBody is a function body whose statements have not been parsed yet.
// Parse does not retain its result; callers that revisit bodies cache them.
type LazyBody struct {
	Pos
	File  string
	Lines []Line
	parse BodyParser
}

func NewLazyBody(file string, pos Pos, lines []Line, parse BodyParser) *LazyBody {
	return &LazyBody{Pos: pos, File: file, Lines: lines, parse: parse}
}

func (b *LazyBody) Parse() (*Block, []diag.Diagnostic) {
	if b.parse == nil || len(b.Lines) == 0 {
		return &Block{Pos: b.Pos}, nil
	}
	return b.parse(b.File, b.Lines)
}
