// Package pipeline defines the read-only view of a compiled program the
// optimization passes consume: the set of named functions and their
// fixed realization order.
//
// A pipeline function defines an array value pointwise or via reduction.
// Its definition is built by the front end; this package only carries
// what the passes inspect — the value expressions, the free variables
// they are indexed by, and the update/extern flags that exclude a
// function from copy elision.
//
// The package also carries a reference lowering (Lower) and a reference
// interpreter (Evaluate) over the lowered tree, used to check that a
// transformed tree computes the same values as the original.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/ir"
)

// Function is one named stage of the pipeline. Read-only for the passes.
type Function struct {
	Name string

	// Args are the free variables of the definition, one per dimension,
	// in dimension order. The value expressions index other functions
	// with expressions over these variables.
	Args []string

	// Values are the tuple components of the definition; a single-valued
	// function has exactly one entry.
	Values []ir.Expr

	// Device pins the function's loop nest to an execution domain when
	// lowering; DeviceNone means host.
	Device backends.DeviceAPI

	// HasUpdateDefinition marks functions with update stages. They can
	// never take part in copy elision, on either side.
	HasUpdateDefinition bool

	// HasExternDefinition marks functions defined by an external
	// routine. They can never take part in copy elision either.
	HasExternDefinition bool
}

// Graph is the pipeline graph: the function environment plus the
// realization order decided by the scheduler. It is queried but never
// mutated by the passes.
type Graph struct {
	funcs map[string]Function
	order []string
}

// NewGraph builds a Graph from the functions and their realization
// order. The order must name each function exactly once.
func NewGraph(funcs []Function, order []string) (*Graph, error) {
	g := &Graph{
		funcs: make(map[string]Function, len(funcs)),
		order: order,
	}
	for _, f := range funcs {
		if _, dup := g.funcs[f.Name]; dup {
			return nil, errors.Errorf("pipeline: duplicate function %q", f.Name)
		}
		g.funcs[f.Name] = f
	}
	if len(order) != len(funcs) {
		return nil, errors.Errorf("pipeline: realization order has %d entries for %d functions",
			len(order), len(funcs))
	}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := g.funcs[name]; !ok {
			return nil, errors.Errorf("pipeline: realization order names unknown function %q", name)
		}
		if seen[name] {
			return nil, errors.Errorf("pipeline: realization order names %q twice", name)
		}
		seen[name] = true
	}
	return g, nil
}

// Order returns the realization order. The caller must not mutate it.
func (g *Graph) Order() []string { return g.order }

// Func returns the function with the given name.
func (g *Graph) Func(name string) (Function, bool) {
	f, ok := g.funcs[name]
	return f, ok
}

// Contains returns whether the graph has a function with the given name.
func (g *Graph) Contains(name string) bool {
	_, ok := g.funcs[name]
	return ok
}

// Output returns the last function in the realization order: the
// pipeline's output.
func (g *Graph) Output() Function {
	return g.funcs[g.order[len(g.order)-1]]
}
