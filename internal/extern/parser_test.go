package extern

import (
	"testing"

	"github.com/efebarandurmaz/kiln/internal/diag"
)

func TestScan(t *testing.T) {
	src := "// header\n/** A */\nvar a;\n\n/* plain */\nfunction f(x) {\n}\nb.c = function() { return ';'; };\n"
	got := scan(src)
	want := []statement{
		{doc: " A ", text: "var a;", line: 3},
		{text: "function f(x) {\n}", line: 6},
		{text: "b.c = function() { return ';'; };", line: 8},
	}
	if len(got) != len(want) {
		t.Fatalf("scan() = %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestParseDoc(t *testing.T) {
	d := parseDoc(`
 * Draws things.
 *
 * Twice.
 * @constructor
 * @extends {!Base}
 * @implements Drawable
 * @param {{x: number,
 *     y: number}} point
 * @param {string=} label
 * @param {...number} rest
 * @return {boolean}
 `)
	if len(d.text) != 3 || d.text[0] != "Draws things." || d.text[1] != "" || d.text[2] != "Twice." {
		t.Errorf("text = %q", d.text)
	}
	if !d.constructor || len(d.extends) != 1 || d.extends[0] != "Base" {
		t.Errorf("constructor=%v extends=%v", d.constructor, d.extends)
	}
	if len(d.implements) != 1 || d.implements[0] != "Drawable" {
		t.Errorf("implements = %v", d.implements)
	}
	want := []Param{
		{Name: "point", Type: "{x: number, y: number}"},
		{Name: "label", Type: "string", Optional: true},
		{Name: "rest", Type: "number", Rest: true},
	}
	if len(d.params) != len(want) {
		t.Fatalf("params = %+v", d.params)
	}
	for i := range want {
		if d.params[i] != want[i] {
			t.Errorf("param %d = %+v, want %+v", i, d.params[i], want[i])
		}
	}
	if d.returns != "boolean" {
		t.Errorf("returns = %q", d.returns)
	}
}

func TestParseFileKinds(t *testing.T) {
	src := `/** @interface */
var Shape = function() {};
/** @return {number} */
Shape.prototype.area;
/** @const */
var ns = {};
ns.sub = {};
/** @param {string} s */
ns.sub.trim = function(s) {};
/** @define {boolean} */
var DEBUG = true;
Shape.prototype.sides = 4;
for (;;) {}
`
	decls, ds := parseFile("/x.js", src)
	got := make([]string, 0, len(decls))
	for _, d := range decls {
		switch {
		case d.namespace:
			got = append(got, "namespace "+d.Name)
		default:
			got = append(got, d.Kind.String()+" "+d.QualifiedName())
		}
	}
	want := []string{
		"interface Shape",
		"method Shape.area",
		"namespace ns",
		"namespace ns.sub",
		"method ns.sub.trim",
		"constant DEBUG",
		"field Shape.sides",
	}
	if len(got) != len(want) {
		t.Fatalf("decls = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("decl %d = %q, want %q", i, got[i], want[i])
		}
	}
	if len(ds) != 1 || ds[0].Kind != diag.KindUnrecognized || ds[0].Line != 13 {
		t.Errorf("diagnostics = %v", ds)
	}

	m := NewModel()
	if mds := m.build(decls); len(mds) != 0 {
		t.Errorf("build diagnostics = %v", mds)
	}
	if len(m.Functions) != 1 || m.Functions[0].Name != "ns.sub.trim" || m.Functions[0].Kind != KindFunction {
		t.Errorf("functions = %+v", m.Functions)
	}
	shape, ok := m.Class("Shape")
	if !ok || !shape.IsInterface() || len(shape.Functions) != 1 || len(shape.Fields) != 1 {
		t.Fatalf("Shape = %+v", shape)
	}
	if shape.Functions[0].Type != "number" {
		t.Errorf("area result = %q", shape.Functions[0].Type)
	}
}
