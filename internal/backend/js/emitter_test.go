package js

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

func emit(t *testing.T, path, source string, options map[string]string) string {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	b := New()
	p := project.New("test", workspace.New(workspace.WithFs(fs)), backend.ProjectOptions(b)...)
	p.SetSourcePath("/src")

	units := p.Units(path)
	if len(units) != 1 {
		t.Fatalf("Units(%s) = %d units", path, len(units))
	}
	res, err := units[0].SyntaxTree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.HasErrors() {
		t.Fatalf("parse errors: %v", res.Diagnostics)
	}

	s, err := b.NewSettingsResolver().Resolve("/out", options)
	if err != nil {
		t.Fatal(err)
	}
	buf := b.NewBuffer(s)
	w := b.NewWalker(units[0], res.File, b.NewEmitter(buf, s), p)
	w.Walk(res.File)
	if ds := w.Diagnostics(); len(ds) != 0 {
		t.Fatalf("body diagnostics: %v", ds)
	}
	return buf.String()
}

const widgetSource = `package com.example
import com.example.base.Base

/// A drawable widget.
class Widget extends Base implements IDrawable
  var count: int = 0
  static const MAX: int = 10
  function Widget(start: int)
    count = start
  end
  function draw(x: int, y: int = 2): void
    var total = x + y * 2
    if total > MAX
      return
    end
    trace("tick", total)
  end
end
`

func TestEmitClass(t *testing.T) {
	got := emit(t, "/src/com/example/Widget.kn", widgetSource, nil)
	want := `/**
 * @fileoverview Generated from com.example.Widget.
 */
goog.provide('com.example.Widget');

goog.require('com.example.IDrawable');
goog.require('com.example.base.Base');

/**
 * A drawable widget.
 * @constructor
 * @extends {com.example.base.Base}
 * @implements {com.example.IDrawable}
 * @param {number} start
 */
com.example.Widget = function(start) {
  com.example.Widget.base(this, 'constructor');
  /**
   * @type {number}
   */
  this.count = 0;
  this.count = start;
};
goog.inherits(com.example.Widget, com.example.base.Base);

/**
 * @const
 * @type {number}
 */
com.example.Widget.MAX = 10;

/**
 * @param {number} x
 * @param {number=} y
 * @return {void}
 */
com.example.Widget.prototype.draw = function(x, y) {
  y = y !== undefined ? y : 2;
  var total = x + y * 2;
  if (total > com.example.Widget.MAX) {
    return;
  }
  trace("tick", total);
};
`
	if got != want {
		t.Errorf("output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestEmitInterfaceWithoutClosure(t *testing.T) {
	src := "package com.example\ninterface IDrawable extends IBase\n  function draw(x: int): void\n  var size: int\nend\n"
	got := emit(t, "/src/com/example/IDrawable.kn", src, map[string]string{
		OptionClosureProvides: "false",
		OptionJSDoc:           "false",
	})
	want := "com.example.IDrawable = function() {};\n" +
		"\n" +
		"com.example.IDrawable.prototype.draw = function(x) {};\n" +
		"\n" +
		"com.example.IDrawable.prototype.size;\n"
	if got != want {
		t.Errorf("output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestEmitStrictEqualityAndParens(t *testing.T) {
	src := `package util
function check(a, b): Boolean
  while (a + b) * 2 != 0
    a = a - 1
  end
  return a == b && !(a > b)
end
`
	got := emit(t, "/src/util/check.kn", src, map[string]string{OptionJSDoc: "false"})
	for _, frag := range []string{
		"goog.provide('util.check');",
		"util.check = function(a, b) {",
		"while ((a + b) * 2 !== 0) {",
		"    a = a - 1;",
		"return a === b && !(a > b);",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in\n%s", frag, got)
		}
	}
}

func TestEmitNewUsesQualifiedType(t *testing.T) {
	src := `package app
import lib.Point
class Shape
  var origin: Point = new Point(0, 0)
end
`
	got := emit(t, "/src/app/Shape.kn", src, nil)
	for _, frag := range []string{
		"goog.require('lib.Point');",
		" * @type {lib.Point}",
		"this.origin = new lib.Point(0, 0);",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in\n%s", frag, got)
		}
	}
}

func TestSettingsRejectUnknownOption(t *testing.T) {
	if _, err := New().NewSettingsResolver().Resolve("/out", map[string]string{"minify": "true"}); err == nil {
		t.Fatal("expected error for unknown option")
	}
}
