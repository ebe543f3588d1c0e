package extern

import "strings"

// Scope says what an exclusion rule matches.
type Scope int

const (
	// ScopeClass matches a class, or a top-level entry, by qualified name.
	ScopeClass Scope = iota
	// ScopeField matches a field or constant of a class.
	ScopeField
	// ScopeMember matches any member of a class.
	ScopeMember
)

func (s Scope) String() string {
	switch s {
	case ScopeClass:
		return "class"
	case ScopeField:
		return "field"
	case ScopeMember:
		return "member"
	}
	return "unknown"
}

// ParseScope maps the configuration spelling of a scope.
func ParseScope(s string) (Scope, bool) {
	switch strings.ToLower(s) {
	case "class", "class-exclude":
		return ScopeClass, true
	case "field", "field-exclude":
		return ScopeField, true
	case "member", "exclude":
		return ScopeMember, true
	}
	return 0, false
}

// Rule is one exclusion. Member is empty for class-scope rules.
type Rule struct {
	Scope       Scope
	Class       string
	Member      string
	Description string
}

func (r Rule) matches(class, member string) bool {
	if r.Class != class {
		return false
	}
	return r.Scope == ScopeClass || r.Member == member
}

// Decision is the outcome of evaluating one entry.
type Decision struct {
	Excluded bool
	// Reason is the matching rule's description, possibly empty.
	Reason string
	Rule   *Rule
}

// Policy holds exclusion rules grouped by scope, each group in the order
// the rules were added.
type Policy struct {
	class  []Rule
	field  []Rule
	member []Rule
}

func NewPolicy(rules ...Rule) *Policy {
	p := &Policy{}
	for _, r := range rules {
		p.Add(r)
	}
	return p
}

func (p *Policy) Add(r Rule) {
	switch r.Scope {
	case ScopeClass:
		p.class = append(p.class, r)
	case ScopeField:
		p.field = append(p.field, r)
	default:
		p.member = append(p.member, r)
	}
}

// Len is the number of rules.
func (p *Policy) Len() int { return len(p.class) + len(p.field) + len(p.member) }

// Evaluate decides whether e is emitted. Class-scope rules are tried first
// against the entry's class (or, for top-level entries, its own name),
// then field-scope rules for fields and constants, then member-scope
// rules. The first matching rule decides.
func (p *Policy) Evaluate(e Entry) Decision {
	class := e.Owner
	if !e.IsMember() {
		class = e.Name
	}
	if d, ok := first(p.class, class, ""); ok {
		return d
	}
	if !e.IsMember() {
		return Decision{}
	}
	if e.Kind == KindField || e.Kind == KindConstant {
		if d, ok := first(p.field, e.Owner, e.Name); ok {
			return d
		}
	}
	if d, ok := first(p.member, e.Owner, e.Name); ok {
		return d
	}
	return Decision{}
}

func first(rules []Rule, class, member string) (Decision, bool) {
	for i := range rules {
		if rules[i].matches(class, member) {
			return Decision{Excluded: true, Reason: rules[i].Description, Rule: &rules[i]}, true
		}
	}
	return Decision{}, false
}

// Placeholder renders the comment standing in for an excluded declaration:
// the reason on its own line when there is one, then the declaration
// commented out.
func (d Decision) Placeholder(declaration string) string {
	var b strings.Builder
	if d.Reason != "" {
		b.WriteString("// " + d.Reason + "\n")
	}
	b.WriteString("//" + declaration)
	return b.String()
}
