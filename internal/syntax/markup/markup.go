// Package markup parses .knx declarative markup documents. A document
// describes one component class: its base component, namespaced child
// components, typed properties and embedded resources.
//
//	package: com.example.views
//	class: MainView
//	extends: k:Group
//	namespaces:
//	  k: library://kiln/core
//	properties:
//	  - name: title
//	    type: String
//	    value: '"Hello"'
//	children:
//	  - id: okButton
//	    type: k:Button
//	resources:
//	  - assets/logo.png
package markup

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

// Extension is the file extension handled by Parser.
const Extension = ".knx"

type document struct {
	Package    string            `yaml:"package"`
	Class      string            `yaml:"class"`
	Extends    string            `yaml:"extends"`
	Implements []string          `yaml:"implements"`
	Namespaces map[string]string `yaml:"namespaces"`
	Properties []property        `yaml:"properties"`
	Children   []child           `yaml:"children"`
	Resources  []string          `yaml:"resources"`
}

type property struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Value yaml.Node `yaml:"value"`
}

type child struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Line int    `yaml:"-"`
}

func (c *child) UnmarshalYAML(n *yaml.Node) error {
	type plain child
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = child(p)
	c.Line = n.Line
	return nil
}

// Parser implements syntax.Source for .knx files.
type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(path string, content []byte) (*ast.File, []diag.Diagnostic) {
	f := &ast.File{Pos: ast.Pos{Line: 1}, Path: path, Package: &ast.Package{Pos: ast.Pos{Line: 1}}}
	var diags []diag.Diagnostic
	errorf := func(line int, format string, args ...any) {
		diags = append(diags, diag.Errorf(diag.KindParse, path, line, format, args...))
	}

	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		errorf(yamlErrorLine(err), "%v", err)
		return f, diags
	}
	var doc document
	if err := root.Decode(&doc); err != nil {
		errorf(yamlErrorLine(err), "%v", err)
		return f, diags
	}
	if doc.Class == "" {
		errorf(1, "markup document needs a class")
		return f, diags
	}

	f.Package.Name = doc.Package
	f.Namespaces = doc.Namespaces
	f.Resources = doc.Resources

	c := &ast.Class{Pos: ast.Pos{Line: keyLine(&root, "class")}, Name: doc.Class, Extends: doc.Extends, Implements: doc.Implements}
	for _, ref := range append([]string{doc.Extends}, doc.Implements...) {
		if prefix, _, ok := strings.Cut(ref, ":"); ok {
			if _, known := doc.Namespaces[prefix]; !known {
				errorf(c.Line, "undeclared namespace prefix %q", prefix)
			}
		}
	}

	for _, prop := range doc.Properties {
		line := prop.Value.Line
		if prop.Name == "" {
			errorf(line, "property without a name")
			continue
		}
		v := &ast.Variable{Pos: ast.Pos{Line: line}, Name: prop.Name, Type: prop.Type}
		if prop.Value.Kind == yaml.ScalarNode {
			v.Init = literal(prop.Value, line)
		}
		c.Members = append(c.Members, v)
	}

	for _, ch := range doc.Children {
		if ch.ID == "" || ch.Type == "" {
			errorf(ch.Line, "child component needs an id and a type")
			continue
		}
		if prefix, _, ok := strings.Cut(ch.Type, ":"); ok {
			if _, known := doc.Namespaces[prefix]; !known {
				errorf(ch.Line, "undeclared namespace prefix %q", prefix)
				continue
			}
		}
		c.Members = append(c.Members, &ast.Variable{
			Pos:  ast.Pos{Line: ch.Line},
			Name: ch.ID,
			Type: ch.Type,
			Init: &ast.New{Pos: ast.Pos{Line: ch.Line}, Type: ch.Type},
		})
	}

	f.Package.Decls = append(f.Package.Decls, c)
	return f, diags
}

func literal(n yaml.Node, line int) ast.Expr {
	pos := ast.Pos{Line: line}
	switch n.Tag {
	case "!!int", "!!float":
		return &ast.Literal{Pos: pos, Kind: ast.Number, Value: n.Value}
	case "!!bool":
		return &ast.Literal{Pos: pos, Kind: ast.Bool, Value: strings.ToLower(n.Value)}
	case "!!null":
		return &ast.Literal{Pos: pos, Kind: ast.Null, Value: "null"}
	}
	return &ast.Literal{Pos: pos, Kind: ast.String, Value: strings.Trim(n.Value, `"`)}
}

func keyLine(root *yaml.Node, key string) int {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		m := root.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			if m.Content[i].Value == key {
				return m.Content[i].Line
			}
		}
	}
	return 1
}

// yamlErrorLine pulls "line N" out of a yaml.v3 error message.
func yamlErrorLine(err error) int {
	var line int
	msg := err.Error()
	if i := strings.Index(msg, "line "); i >= 0 {
		fmt.Sscanf(msg[i:], "line %d", &line)
	}
	if line == 0 {
		line = 1
	}
	return line
}
