package extern

import "testing"

func TestASType(t *testing.T) {
	tests := map[string]string{
		"number":                      "Number",
		"?string":                     "String",
		"!boolean":                    "Boolean",
		"*":                           "*",
		"?":                           "*",
		"":                            "*",
		"string|number":               "*",
		"(string|undefined)":          "String",
		"?(Element|null)":             "Element",
		"!Array<string>":              "Array",
		"Array.<number>":              "Array",
		"Object<string, number>":      "Object",
		"function(string): boolean":   "Function",
		"{x: number}":                 "Object",
		"!goog.events.Event":          "goog.events.Event",
		"number=":                     "Number",
		"undefined":                   "void",
		"Promise<!Array<(a|b)>>":      "Promise",
		"(function(): void|string)":   "*",
	}
	for in, want := range tests {
		if got := asType(in); got != want {
			t.Errorf("asType(%q) = %q, want %q", in, got, want)
		}
	}
	if got := returnType(""); got != "void" {
		t.Errorf("returnType(\"\") = %q", got)
	}
}

func TestRecordFields(t *testing.T) {
	fields, ok := recordFields("{a: number, b: {c: string}, d: function(x, y): void}")
	if !ok || len(fields) != 3 {
		t.Fatalf("recordFields() = %+v, %v", fields, ok)
	}
	if fields[1].Name != "b" || fields[1].Type != "{c: string}" || fields[2].Type != "function(x, y): void" {
		t.Errorf("fields = %+v", fields)
	}
	if _, ok := recordFields("string"); ok {
		t.Error("non-record accepted")
	}
}
