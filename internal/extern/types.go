package extern

import "strings"

var primitiveTypes = map[string]string{
	"number":    "Number",
	"string":    "String",
	"boolean":   "Boolean",
	"Number":    "Number",
	"String":    "String",
	"Boolean":   "Boolean",
	"Object":    "Object",
	"Array":     "Array",
	"Function":  "Function",
	"void":      "void",
	"undefined": "void",
	"*":         "*",
	"?":         "*",
}

// asType maps a Closure type expression to an ActionScript type.
// Nullability markers are dropped, unions that do not reduce to a single
// type become "*", and parameterized types lose their parameters.
func asType(closure string) string {
	t := strings.TrimSpace(closure)
	t = strings.TrimSuffix(t, "=")
	t = strings.TrimPrefix(t, "...")
	if len(t) > 1 {
		t = strings.TrimLeft(t, "!?")
	}
	for strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") && balanced(t[1:len(t)-1]) {
		t = strings.TrimSpace(t[1 : len(t)-1])
	}
	if t == "" {
		return "*"
	}
	if parts := splitTop(t, '|'); len(parts) > 1 {
		var kept []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "null" && p != "undefined" {
				kept = append(kept, p)
			}
		}
		if len(kept) != 1 {
			return "*"
		}
		return asType(kept[0])
	}
	switch {
	case strings.HasPrefix(t, "function"):
		return "Function"
	case strings.HasPrefix(t, "{"):
		return "Object"
	}
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = strings.TrimSuffix(t[:i], ".")
	}
	if p, ok := primitiveTypes[t]; ok {
		return p
	}
	return t
}

// returnType is asType with void for an undeclared result.
func returnType(closure string) string {
	if strings.TrimSpace(closure) == "" {
		return "void"
	}
	return asType(closure)
}

func balanced(s string) bool {
	depth := 0
	for _, c := range s {
		switch c {
		case '(', '<', '{':
			depth++
		case ')', '>', '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// splitTop splits s on sep outside any brackets.
func splitTop(s string, sep rune) []string {
	var out []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '(', '<', '{', '[':
			depth++
		case ')', '>', '}', ']':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// recordFields parses the fields of a record type "{a: T, b: U}". ok is
// false when t is not a record.
func recordFields(t string) ([]Param, bool) {
	t = strings.TrimSpace(t)
	if !strings.HasPrefix(t, "{") || !strings.HasSuffix(t, "}") {
		return nil, false
	}
	var out []Param
	for _, f := range splitTop(t[1:len(t)-1], ',') {
		name, typ, _ := strings.Cut(f, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Param{Name: name, Type: strings.TrimSpace(typ)})
	}
	return out, true
}
