// Package target fixes which units a build emits and in what order.
package target

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/kiln/internal/diag"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// Plan is the outcome of ordering a build.
type Plan struct {
	Root *workspace.Unit
	// Reachable holds every unit reachable from Root in link order.
	Reachable []*workspace.Unit
	// Emit is the subset of Reachable that produces artifacts, same order.
	Emit []*workspace.Unit
}

// Filter decides whether a reachable unit is emitted.
type Filter func(*workspace.Unit) bool

// Emittable accepts source and markup units that are not library units.
func Emittable(u *workspace.Unit) bool {
	if u.Library() {
		return false
	}
	return u.Kind() == workspace.Source || u.Kind() == workspace.DeclarativeMarkup
}

// Orchestrator orders a build over one project.
type Orchestrator struct {
	project *project.Project
	filter  Filter
}

func New(p *project.Project, filter Filter) *Orchestrator {
	if filter == nil {
		filter = Emittable
	}
	return &Orchestrator{project: p, filter: filter}
}

// Build computes the plan for root.
func (o *Orchestrator) Build(ctx context.Context, root *workspace.Unit) (*Plan, []diag.Diagnostic, error) {
	reachable, ds, err := o.project.ComputeReachable(ctx, root)
	if err != nil {
		return nil, nil, fmt.Errorf("compute reachable units from %s: %w", root.Path(), err)
	}
	plan := &Plan{Root: root, Reachable: reachable}
	for _, u := range reachable {
		if o.filter(u) {
			plan.Emit = append(plan.Emit, u)
		}
	}
	return plan, ds, nil
}
