// Package extern derives an ActionScript API surface from Closure-style
// JavaScript externs. Compile parses the corpus into a Model, a Policy
// decides what is left out, and an Emitter writes one stub file per
// declaration under the as-root.
package extern

import (
	"sort"
	"strings"
)

// EntryKind classifies a declaration found in the corpus.
type EntryKind int

const (
	KindClass EntryKind = iota
	KindInterface
	KindField
	KindMethod
	KindConstant
	KindFunction
	KindTypeDef
)

func (k EntryKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindConstant:
		return "constant"
	case KindFunction:
		return "function"
	case KindTypeDef:
		return "typedef"
	}
	return "unknown"
}

// Param is one function parameter with its Closure type.
type Param struct {
	Name     string
	Type     string
	Optional bool
	Rest     bool
}

// Entry is one declaration with its provenance. Members carry the owning
// class in Owner and their simple name in Name; top-level entries have an
// empty Owner and a qualified Name.
type Entry struct {
	Kind   EntryKind
	Owner  string
	Name   string
	Static bool
	// Type is the Closure type expression: @type for fields and constants,
	// @return for functions, the aliased type for typedefs.
	Type   string
	Params []Param
	Doc    string

	File string
	Line int
}

// QualifiedName is Owner.Name for members and Name otherwise.
func (e Entry) QualifiedName() string {
	if e.Owner == "" {
		return e.Name
	}
	return e.Owner + "." + e.Name
}

// IsMember reports whether the entry belongs to a class or interface.
func (e Entry) IsMember() bool { return e.Owner != "" }

// ClassReference is a class or interface with its members in source order.
type ClassReference struct {
	Entry
	// Extends holds the superclass of a class, or every extended
	// interface of an interface.
	Extends    []string
	Implements []string

	Fields    []Entry
	Functions []Entry
	Constants []Entry
}

func (c *ClassReference) IsInterface() bool { return c.Kind == KindInterface }

// Members returns constants, fields and functions, each group in source
// order.
func (c *ClassReference) Members() []Entry {
	out := make([]Entry, 0, len(c.Fields)+len(c.Constants)+len(c.Functions))
	out = append(out, c.Constants...)
	out = append(out, c.Fields...)
	out = append(out, c.Functions...)
	return out
}

// HasInstanceMembers reports whether any field or function is non-static.
func (c *ClassReference) HasInstanceMembers() bool {
	for _, m := range c.Members() {
		if !m.Static {
			return true
		}
	}
	return false
}

// member finds a member by name and static-ness.
func (c *ClassReference) member(name string, static bool) (Entry, bool) {
	for _, m := range c.Members() {
		if m.Name == name && m.Static == static {
			return m, true
		}
	}
	return Entry{}, false
}

func (c *ClassReference) add(e Entry) {
	switch e.Kind {
	case KindMethod:
		c.Functions = append(c.Functions, e)
	case KindConstant:
		c.Constants = append(c.Constants, e)
	default:
		c.Fields = append(c.Fields, e)
	}
}

// Model is the parsed reference surface of a corpus.
type Model struct {
	Classes   map[string]*ClassReference
	TypeDefs  []Entry
	Functions []Entry
	Constants []Entry

	namespaces map[string]bool
}

func NewModel() *Model {
	return &Model{Classes: make(map[string]*ClassReference), namespaces: make(map[string]bool)}
}

// ClassNames returns the qualified class and interface names, sorted.
func (m *Model) ClassNames() []string {
	names := make([]string, 0, len(m.Classes))
	for n := range m.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Class looks up a class or interface by qualified name.
func (m *Model) Class(name string) (*ClassReference, bool) {
	c, ok := m.Classes[name]
	return c, ok
}

// Len counts every class, member and top-level entry.
func (m *Model) Len() int {
	n := len(m.TypeDefs) + len(m.Functions) + len(m.Constants)
	for _, c := range m.Classes {
		n += 1 + len(c.Fields) + len(c.Functions) + len(c.Constants)
	}
	return n
}

// lookupTop finds a top-level entry with the given qualified name.
func (m *Model) lookupTop(name string) (Entry, bool) {
	for _, group := range [][]Entry{m.TypeDefs, m.Functions, m.Constants} {
		for _, e := range group {
			if e.Name == name {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// SplitName splits a qualified name into package and simple name.
func SplitName(qname string) (pkg, name string) {
	i := strings.LastIndex(qname, ".")
	if i < 0 {
		return "", qname
	}
	return qname[:i], qname[i+1:]
}
