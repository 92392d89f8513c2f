package pipeline

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/arrayflow/arrayflow/ir"
)

// Image is an external input, queried at absolute indices.
type Image func(indices []int64) int64

// Values is the materialized content of one function: one map per tuple
// component, keyed by the (padded) store indices.
type Values []map[[4]int64]int64

// Evaluate interprets a lowered statement tree and returns the contents
// of every storage it wrote, keyed by function name. It is a reference
// interpreter for tests: int64 values only, serial execution, device
// annotations ignored.
//
// lets pre-binds free variables (typically the symbolic extents
// introduced by Lower); images supplies external inputs.
func Evaluate(s ir.Stmt, lets map[string]int64, images map[string]Image) map[string]Values {
	in := &interp{
		vars:     make(map[string]int64, len(lets)),
		images:   images,
		storages: make(map[string]Values),
	}
	for name, value := range lets {
		in.vars[name] = value
	}
	in.stmt(s)
	return in.storages
}

type interp struct {
	vars     map[string]int64
	images   map[string]Image
	storages map[string]Values
}

func (in *interp) stmt(s ir.Stmt) {
	switch n := s.(type) {
	case nil:
	case *ir.Block:
		for _, child := range n.Stmts {
			in.stmt(child)
		}
	case *ir.For:
		min, extent := in.expr(n.Min), in.expr(n.Extent)
		outer, shadowed := in.vars[n.Name]
		for i := min; i < min+extent; i++ {
			in.vars[n.Name] = i
			in.stmt(n.Body)
		}
		if shadowed {
			in.vars[n.Name] = outer
		} else {
			delete(in.vars, n.Name)
		}
	case *ir.Realize:
		// Bounds are evaluated for effect (they must be well-formed);
		// the storage itself is sparse and needs no sizing.
		for _, b := range n.Bounds {
			in.expr(b.Min)
			in.expr(b.Extent)
		}
		in.ensureStorage(n.Name, len(n.Types))
		in.stmt(n.Body)
	case *ir.Produce:
		in.stmt(n.Body)
	case *ir.Provide:
		storage := in.ensureStorage(n.Name, len(n.Values))
		if len(n.Values) != len(storage) {
			exceptions.Panicf("pipeline.Evaluate: %q stores %d values into storage with %d components",
				n.Name, len(n.Values), len(storage))
		}
		key := in.key(n.Args)
		for i, v := range n.Values {
			storage[i][key] = in.expr(v)
		}
	case *ir.Evaluate:
		in.expr(n.Value)
	default:
		klog.Fatalf("internal error: pipeline.Evaluate: unhandled statement type %T", s)
	}
}

func (in *interp) expr(e ir.Expr) int64 {
	switch n := e.(type) {
	case *ir.IntImm:
		return n.Value
	case *ir.Var:
		value, ok := in.vars[n.Name]
		if !ok {
			exceptions.Panicf("pipeline.Evaluate: unbound variable %q", n.Name)
		}
		return value
	case *ir.Add:
		return in.expr(n.A) + in.expr(n.B)
	case *ir.Mul:
		return in.expr(n.A) * in.expr(n.B)
	case *ir.Call:
		return in.call(n)
	default:
		klog.Fatalf("internal error: pipeline.Evaluate: unhandled expression type %T", e)
		return 0
	}
}

func (in *interp) call(c *ir.Call) int64 {
	switch c.Type {
	case ir.ImageCall:
		image, ok := in.images[c.Name]
		if !ok {
			exceptions.Panicf("pipeline.Evaluate: no image %q supplied", c.Name)
		}
		indices := make([]int64, len(c.Args))
		for i, arg := range c.Args {
			indices[i] = in.expr(arg)
		}
		return image(indices)
	case ir.FuncCall:
		storage, ok := in.storages[c.Name]
		if !ok {
			exceptions.Panicf("pipeline.Evaluate: read of %q before any store", c.Name)
		}
		if c.ValueIndex < 0 || c.ValueIndex >= len(storage) {
			exceptions.Panicf("pipeline.Evaluate: %q has %d components, component %d read",
				c.Name, len(storage), c.ValueIndex)
		}
		value, ok := storage[c.ValueIndex][in.key(c.Args)]
		if !ok {
			exceptions.Panicf("pipeline.Evaluate: read of %q at an index never stored", c.Name)
		}
		return value
	}
	exceptions.Panicf("pipeline.Evaluate: cannot interpret extern call %q", c.Name)
	return 0
}

func (in *interp) key(args []ir.Expr) (key [4]int64) {
	if len(args) > len(key) {
		exceptions.Panicf("pipeline.Evaluate: %d-dimensional access, only %d supported", len(args), len(key))
	}
	for i, arg := range args {
		key[i] = in.expr(arg)
	}
	return
}

func (in *interp) ensureStorage(name string, components int) Values {
	if storage, ok := in.storages[name]; ok {
		return storage
	}
	storage := make(Values, components)
	for i := range storage {
		storage[i] = make(map[[4]int64]int64)
	}
	in.storages[name] = storage
	return storage
}
