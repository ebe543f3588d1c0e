package extern

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrMalformedExclusionArgument is returned when a paired option has an
// odd number of values or an empty element.
var ErrMalformedExclusionArgument = errors.New("malformed exclusion argument")

// Output subdirectories under the as-root.
const (
	ClassesDir    = "classes"
	InterfacesDir = "interfaces"
	FunctionsDir  = "functions"
	ConstantsDir  = "constants"
	TypeDefsDir   = "typedefs"
)

// Pair is one (class, name) element of a paired option.
type Pair struct {
	Class string
	Name  string
}

// ParsePairs turns a flat "class name class name ..." list into pairs.
func ParsePairs(option string, values []string) ([]Pair, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("%w: %s expects class/name pairs, got %d values", ErrMalformedExclusionArgument, option, len(values))
	}
	pairs := make([]Pair, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		if values[i] == "" || values[i+1] == "" {
			return nil, fmt.Errorf("%w: %s has an empty element at position %d", ErrMalformedExclusionArgument, option, i+1)
		}
		pairs = append(pairs, Pair{Class: values[i], Name: values[i+1]})
	}
	return pairs, nil
}

// RuleSpec is the structured form of an exclusion rule as it appears in a
// configuration file.
type RuleSpec struct {
	Scope       string `mapstructure:"scope" yaml:"scope"`
	Class       string `mapstructure:"class" yaml:"class"`
	Member      string `mapstructure:"member" yaml:"member"`
	Description string `mapstructure:"description" yaml:"description"`
}

// Options are the raw extern settings before validation.
type Options struct {
	ASRoot          string
	Externals       []string
	ClassToFunction []string
	ClassExcludes   []string

	// FieldExcludes and Excludes are flat class/name lists.
	FieldExcludes []string
	Excludes      []string
	Rules         []RuleSpec
}

// Config is a validated extern configuration.
type Config struct {
	ASRoot          string
	Externals       []string
	ClassToFunction map[string]bool
	Policy          *Policy
}

// NewConfig validates opts: paired options must pair up, structured rules
// must name a known scope, and every external path must exist on fsys.
func NewConfig(fsys afero.Fs, opts Options) (*Config, error) {
	if opts.ASRoot == "" {
		return nil, errors.New("as-root is required")
	}
	cfg := &Config{
		ASRoot:          filepath.Clean(opts.ASRoot),
		ClassToFunction: make(map[string]bool, len(opts.ClassToFunction)),
		Policy:          NewPolicy(),
	}
	for _, c := range opts.ClassToFunction {
		cfg.ClassToFunction[c] = true
	}
	for _, c := range opts.ClassExcludes {
		cfg.Policy.Add(Rule{Scope: ScopeClass, Class: c})
	}
	fields, err := ParsePairs("field-exclude", opts.FieldExcludes)
	if err != nil {
		return nil, err
	}
	for _, p := range fields {
		cfg.Policy.Add(Rule{Scope: ScopeField, Class: p.Class, Member: p.Name})
	}
	members, err := ParsePairs("exclude", opts.Excludes)
	if err != nil {
		return nil, err
	}
	for _, p := range members {
		cfg.Policy.Add(Rule{Scope: ScopeMember, Class: p.Class, Member: p.Name})
	}
	for i, rs := range opts.Rules {
		scope, ok := ParseScope(rs.Scope)
		if !ok {
			return nil, fmt.Errorf("%w: exclude-rules[%d] has unknown scope %q", ErrMalformedExclusionArgument, i, rs.Scope)
		}
		if rs.Class == "" || (scope != ScopeClass && rs.Member == "") {
			return nil, fmt.Errorf("%w: exclude-rules[%d] needs a class and, outside class scope, a member", ErrMalformedExclusionArgument, i)
		}
		cfg.Policy.Add(Rule{Scope: scope, Class: rs.Class, Member: rs.Member, Description: rs.Description})
	}
	for _, p := range opts.Externals {
		if err := cfg.AddExternal(fsys, p); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// AddExternal records an external path after checking that it exists.
func (c *Config) AddExternal(fsys afero.Fs, path string) error {
	path = filepath.Clean(path)
	if ok, err := afero.Exists(fsys, path); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	} else if !ok {
		return fmt.Errorf("%w: %s does not exist.", ErrMissingFile, path)
	}
	c.Externals = append(c.Externals, path)
	return nil
}

// Dir is the as-root subdirectory for a declaration kind.
func Dir(kind EntryKind) string {
	switch kind {
	case KindInterface:
		return InterfacesDir
	case KindFunction, KindMethod:
		return FunctionsDir
	case KindConstant, KindField:
		return ConstantsDir
	case KindTypeDef:
		return TypeDefsDir
	}
	return ClassesDir
}
