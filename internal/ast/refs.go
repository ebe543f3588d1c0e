package ast

import "strings"

// RefKind says where in a file a type reference came from.
type RefKind int

const (
	RefImport RefKind = iota
	RefExtends
	RefImplements
	RefComponent
	RefResource
)

func (k RefKind) String() string {
	switch k {
	case RefImport:
		return "import"
	case RefExtends:
		return "extends"
	case RefImplements:
		return "implements"
	case RefComponent:
		return "component"
	case RefResource:
		return "resource"
	}
	return "unknown"
}

// Ref is a name a file depends on, unresolved.
type Ref struct {
	Name string
	Kind RefKind
	Line int
}

// IsNamespaced reports whether the name carries a markup prefix ("k:Button").
func (r Ref) IsNamespaced() bool {
	return strings.Contains(r.Name, ":")
}

// References lists the names f depends on in declaration order: imports,
// then each type's extends and implements clauses, then namespaced component
// types, then resources. Duplicates keep their first position.
func References(f *File) []Ref {
	if f == nil {
		return nil
	}
	var refs []Ref
	seen := make(map[string]bool)
	add := func(name string, kind RefKind, line int) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		refs = append(refs, Ref{Name: name, Kind: kind, Line: line})
	}

	if f.Package != nil {
		for _, imp := range f.Package.Imports {
			add(imp.Name, RefImport, imp.Line)
		}
		var components []Ref
		for _, d := range f.Package.Decls {
			switch d := d.(type) {
			case *Class:
				add(d.Extends, RefExtends, d.Line)
				for _, name := range d.Implements {
					add(name, RefImplements, d.Line)
				}
				for _, m := range d.Members {
					if v, ok := m.(*Variable); ok && strings.Contains(v.Type, ":") {
						components = append(components, Ref{Name: v.Type, Kind: RefComponent, Line: v.Line})
					}
				}
			case *Interface:
				for _, name := range d.Extends {
					add(name, RefExtends, d.Line)
				}
			}
		}
		for _, c := range components {
			add(c.Name, c.Kind, c.Line)
		}
	}
	for _, r := range f.Resources {
		add(r, RefResource, 0)
	}
	return refs
}

// TypeDecls returns the class and interface declarations of f in source order.
func TypeDecls(f *File) []Decl {
	if f == nil || f.Package == nil {
		return nil
	}
	var out []Decl
	for _, d := range f.Package.Decls {
		switch d.(type) {
		case *Class, *Interface:
			out = append(out, d)
		}
	}
	return out
}
