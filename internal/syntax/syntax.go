// Package syntax declares the parser contract the workspace consumes.
package syntax

import (
	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

// Source turns file content into a tree. A parse failure is reported as
// error diagnostics; the returned tree may be partial but is never nil.
type Source interface {
	Parse(path string, content []byte) (*ast.File, []diag.Diagnostic)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(path string, content []byte) (*ast.File, []diag.Diagnostic)

func (f SourceFunc) Parse(path string, content []byte) (*ast.File, []diag.Diagnostic) {
	return f(path, content)
}

// Resource is the Source for opaque resource units: an empty tree.
var Resource Source = SourceFunc(func(path string, _ []byte) (*ast.File, []diag.Diagnostic) {
	return &ast.File{Path: path}, nil
})
