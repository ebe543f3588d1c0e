package extern

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/diag"
)

// ErrMissingFile is returned when an external path does not exist.
var ErrMissingFile = errors.New("external file does not exist")

// Compiler builds a Model from an externs corpus.
type Compiler struct {
	fs     afero.Fs
	logger *slog.Logger
}

type CompilerOption func(*Compiler)

func WithCompilerLogger(l *slog.Logger) CompilerOption {
	return func(c *Compiler) { c.logger = l }
}

func NewCompiler(fsys afero.Fs, opts ...CompilerOption) *Compiler {
	c := &Compiler{fs: fsys, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Files expands paths into the externs files to read: files are taken as
// given and directories contribute their *.js files, sorted. Every path
// must exist.
func (c *Compiler) Files(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		p = filepath.Clean(p)
		info, err := c.fs.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s does not exist.", ErrMissingFile, p)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		var found []string
		err = afero.Walk(c.fs, p, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && strings.HasSuffix(path, ".js") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

// Compile parses every externs file reachable from paths into one Model.
// Declarations repeated across the corpus keep their first occurrence and
// produce a warning.
func (c *Compiler) Compile(ctx context.Context, paths []string) (*Model, []diag.Diagnostic, error) {
	files, err := c.Files(paths)
	if err != nil {
		return nil, nil, err
	}
	var decls []decl
	var ds []diag.Diagnostic
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		content, err := afero.ReadFile(c.fs, f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil, fmt.Errorf("%w: %s does not exist.", ErrMissingFile, f)
			}
			return nil, nil, fmt.Errorf("read %s: %w", f, err)
		}
		fd, fds := parseFile(f, string(content))
		decls = append(decls, fd...)
		ds = append(ds, fds...)
	}

	m := NewModel()
	ds = append(ds, m.build(decls)...)
	c.logger.Debug("externs compiled", "files", len(files), "classes", len(m.Classes), "entries", m.Len())
	return m, ds, nil
}

// build resolves owners and records declarations. Classes and namespaces
// are known before any member is placed, so declaration order across
// files does not matter.
func (m *Model) build(decls []decl) []diag.Diagnostic {
	var ds []diag.Diagnostic
	dup := func(e Entry, first Entry) {
		ds = append(ds, diag.Warnf(diag.KindDuplicate, e.File, e.Line,
			"%s %s already declared at %s:%d", e.Kind, e.QualifiedName(), first.File, first.Line))
	}

	for _, d := range decls {
		switch {
		case d.namespace:
			m.namespaces[d.Name] = true
		case d.Kind == KindClass || d.Kind == KindInterface:
			if prev, ok := m.Classes[d.Name]; ok {
				dup(d.Entry, prev.Entry)
				continue
			}
			m.Classes[d.Name] = &ClassReference{Entry: d.Entry, Extends: d.extends, Implements: d.implements}
		}
	}

	for _, d := range decls {
		if d.namespace || d.Kind == KindClass || d.Kind == KindInterface {
			continue
		}
		e := d.Entry
		if d.dotted {
			if _, ok := m.Classes[e.Owner]; !ok && m.namespaces[e.Owner] {
				e.Name, e.Owner, e.Static = e.QualifiedName(), "", false
				if e.Kind == KindMethod {
					e.Kind = KindFunction
				} else if e.Kind == KindField {
					e.Kind = KindConstant
				}
			}
		}
		if e.Kind == KindTypeDef || !e.IsMember() {
			if first, ok := m.lookupTop(e.Name); ok {
				dup(e, first)
				continue
			}
			if c, ok := m.Classes[e.Name]; ok {
				dup(e, c.Entry)
				continue
			}
			switch e.Kind {
			case KindTypeDef:
				m.TypeDefs = append(m.TypeDefs, e)
			case KindFunction:
				m.Functions = append(m.Functions, e)
			default:
				m.Constants = append(m.Constants, e)
			}
			continue
		}
		c, ok := m.Classes[e.Owner]
		if !ok {
			ds = append(ds, diag.Warnf(diag.KindUnresolved, e.File, e.Line,
				"%s %s dropped: owner %s is not declared", e.Kind, e.QualifiedName(), e.Owner))
			continue
		}
		if first, ok := c.member(e.Name, e.Static); ok {
			dup(e, first)
			continue
		}
		c.add(e)
	}
	return ds
}
