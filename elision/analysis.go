package elision

import (
	"slices"
	"strings"

	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/ir"
)

// apiSet is the set of device APIs under which something happened.
type apiSet map[backends.DeviceAPI]bool

func (s apiSet) single() (backends.DeviceAPI, bool) {
	if len(s) != 1 {
		return backends.DeviceNone, false
	}
	for api := range s {
		return api, true
	}
	panic("unreachable")
}

// analysis is what one walk over the statement tree learns about every
// function's storage: where it is written and read (device-API wise),
// its realization bounds, and whether it is referenced in ways the pass
// cannot rewrite.
type analysis struct {
	// writes and reads record the device context of every Provide to and
	// every Call of a function.
	writes map[string]apiSet
	reads  map[string]apiSet

	// bounds records each function's realization domain.
	bounds map[string][]ir.Bound

	// opaque marks functions whose storage is referenced by extern calls
	// the pass cannot rewrite.
	opaque map[string]bool

	// updateWrites marks functions written outside their own producer
	// section. The classifier already excludes update definitions; this
	// re-checks from the tree itself.
	updateWrites map[string]bool
}

// analyze walks the tree once, tracking the current device context down
// For nests (DeviceNone inherits, the root runs on the host).
func analyze(s ir.Stmt) *analysis {
	a := &analysis{
		writes:       make(map[string]apiSet),
		reads:        make(map[string]apiSet),
		bounds:       make(map[string][]ir.Bound),
		opaque:       make(map[string]bool),
		updateWrites: make(map[string]bool),
	}
	a.stmt(s, backends.DeviceHost, nil)
	return a
}

func record(m map[string]apiSet, name string, api backends.DeviceAPI) {
	set, ok := m[name]
	if !ok {
		set = make(apiSet)
		m[name] = set
	}
	set[api] = true
}

// stmt walks s under device context api; producing is the stack of
// enclosing Produce sections.
func (a *analysis) stmt(s ir.Stmt, api backends.DeviceAPI, producing []string) {
	switch n := s.(type) {
	case nil:
	case *ir.Block:
		for _, child := range n.Stmts {
			a.stmt(child, api, producing)
		}
	case *ir.For:
		api = n.Device.Inherit(api)
		a.expr(n.Min, api)
		a.expr(n.Extent, api)
		a.stmt(n.Body, api, producing)
	case *ir.Realize:
		if _, seen := a.bounds[n.Name]; !seen {
			a.bounds[n.Name] = n.Bounds
		}
		for _, b := range n.Bounds {
			a.expr(b.Min, api)
			a.expr(b.Extent, api)
		}
		a.stmt(n.Body, api, producing)
	case *ir.Produce:
		a.stmt(n.Body, api, append(producing, n.Name))
	case *ir.Provide:
		record(a.writes, n.Name, api)
		if !slices.Contains(producing, n.Name) {
			a.updateWrites[n.Name] = true
		}
		for _, v := range n.Values {
			a.expr(v, api)
		}
		for _, arg := range n.Args {
			a.expr(arg, api)
		}
	case *ir.Evaluate:
		a.expr(n.Value, api)
	}
}

func (a *analysis) expr(e ir.Expr, api backends.DeviceAPI) {
	switch n := e.(type) {
	case nil:
	case *ir.Var, *ir.IntImm:
	case *ir.Add:
		a.expr(n.A, api)
		a.expr(n.B, api)
	case *ir.Mul:
		a.expr(n.A, api)
		a.expr(n.B, api)
	case *ir.Call:
		switch n.Type {
		case ir.FuncCall:
			record(a.reads, n.Name, api)
		case ir.ExternCall:
			// Whatever storage an extern call references cannot be
			// rewritten; mark it opaque.
			for _, arg := range n.Args {
				a.markOpaque(arg)
			}
		}
		for _, arg := range n.Args {
			a.expr(arg, api)
		}
	}
}

// markOpaque marks every function storage reference inside an extern
// call's argument: direct calls, and symbolic "<name>.buffer" variables
// the lowering uses to pass whole buffers.
func (a *analysis) markOpaque(e ir.Expr) {
	ir.Walk(e, func(node ir.Node) bool {
		switch n := node.(type) {
		case *ir.Call:
			if n.Type == ir.FuncCall {
				a.opaque[n.Name] = true
			}
		case *ir.Var:
			if name, ok := strings.CutSuffix(n.Name, ".buffer"); ok {
				a.opaque[name] = true
			}
		}
		return true
	})
}
