package project

import (
	"context"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// Dependencies resolves the units u depends on, in declaration order. The
// result is recorded in the workspace so that a change to any dependency
// invalidates u. Unresolvable qualified or imported names are warnings;
// bare names that match nothing are treated as built-ins.
func (p *Project) Dependencies(ctx context.Context, u *workspace.Unit) ([]*workspace.Unit, []diag.Diagnostic, error) {
	if deps, ds, ok := u.Dependencies(); ok {
		return deps, ds, nil
	}
	res, err := u.SyntaxTree(ctx)
	if err != nil {
		return nil, nil, err
	}

	var deps []*workspace.Unit
	var ds []diag.Diagnostic
	seen := map[*workspace.Unit]bool{u: true}
	add := func(d *workspace.Unit) {
		if !seen[d] {
			seen[d] = true
			deps = append(deps, d)
		}
	}

	for _, ref := range ast.References(res.File) {
		if ref.Kind == ast.RefResource {
			if d, ok := p.ResolveResource(ref.Name); ok {
				add(d)
			} else {
				ds = append(ds, diag.Warnf(diag.KindUnresolved, u.Path(), ref.Line, "resource %s not found", ref.Name))
			}
			continue
		}
		qname := p.QualifiedName(res.File, ref.Name)
		if qname == "" {
			ds = append(ds, diag.Warnf(diag.KindUnresolved, u.Path(), ref.Line, "no namespace mapping for %s", ref.Name))
			continue
		}
		if d, ok := p.Resolve(qname); ok {
			add(d)
			continue
		}
		if ref.Kind == ast.RefImport || strings.ContainsAny(ref.Name, ".:") {
			ds = append(ds, diag.Warnf(diag.KindUnresolved, u.Path(), ref.Line, "cannot resolve %s (%s)", qname, ref.Kind))
		}
	}

	p.ws.SetDependencies(u, res.Version, deps, ds)
	return deps, ds, nil
}

type frame struct {
	unit *workspace.Unit
	deps []*workspace.Unit
	next int
}

// ComputeReachable returns every unit reachable from roots in link order:
// each unit appears once, after all of its dependencies. A dependency that
// leads back to a unit still on the traversal stack is a cycle; that edge is
// dropped and reported as a warning. The traversal uses an explicit stack so
// deep dependency chains cannot overflow.
func (p *Project) ComputeReachable(ctx context.Context, roots ...*workspace.Unit) ([]*workspace.Unit, []diag.Diagnostic, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*workspace.Unit]int)
	var order []*workspace.Unit
	var ds []diag.Diagnostic

	push := func(stack []frame, u *workspace.Unit) ([]frame, error) {
		deps, depDiags, err := p.Dependencies(ctx, u)
		if err != nil {
			return stack, err
		}
		ds = append(ds, depDiags...)
		state[u] = visiting
		return append(stack, frame{unit: u, deps: deps}), nil
	}

	for _, root := range roots {
		if state[root] != unvisited {
			continue
		}
		stack, err := push(nil, root)
		if err != nil {
			return nil, nil, err
		}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			top := &stack[len(stack)-1]
			if top.next == len(top.deps) {
				state[top.unit] = done
				order = append(order, top.unit)
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.deps[top.next]
			top.next++
			switch state[dep] {
			case visiting:
				ds = append(ds, diag.Warnf(diag.KindCycle, top.unit.Path(), 0,
					"dependency cycle: %s -> %s; edge dropped", displayName(top.unit), displayName(dep)))
			case unvisited:
				if stack, err = push(stack, dep); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	if cycles := len(diag.Filter(ds, diag.KindCycle)); cycles > 0 {
		p.logger.Warn("dependency cycles broken", "project", p.name, "count", cycles)
	}
	return order, ds, nil
}

func displayName(u *workspace.Unit) string {
	if n := u.Name(); n != "" {
		return n
	}
	return u.Path()
}
