package pipeline

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/ir"
	"github.com/arrayflow/arrayflow/types/etypes"
)

// Lower turns a Graph into the canonical statement tree: one Realize per
// non-output function, each wrapping the function's Produce section and
// everything realized after it, so every consumer sits inside its
// producer's realization scope. All functions share the same iteration
// domain, given by extents (min 0 per dimension).
//
//	realize f1 {
//	  produce f1 { for ... { f1(...) = {...} } }
//	  realize f2 {
//	    produce f2 { ... }
//	    produce output { ... }
//	  }
//	}
//
// The output function's storage is supplied by the caller and is not
// realized. This is a reference lowering: it applies no schedule beyond
// the realization order and each function's Device.
func Lower(g *Graph) ir.Stmt {
	order := g.Order()
	return lowerFrom(g, order, 0)
}

func lowerFrom(g *Graph, order []string, at int) ir.Stmt {
	f, _ := g.Func(order[at])
	if at == len(order)-1 {
		return produce(f)
	}
	rest := lowerFrom(g, order, at+1)
	bounds := make([]ir.Bound, len(f.Args))
	for i := range bounds {
		bounds[i] = ir.Bound{
			Min:    &ir.IntImm{Value: 0},
			Extent: &ir.Var{Name: extentVar(f.Args[i])},
		}
	}
	types := make([]etypes.ElemType, len(f.Values))
	for i := range types {
		types[i] = etypes.Of(dtypes.Int64)
	}
	return &ir.Realize{
		Name:   f.Name,
		Types:  types,
		Bounds: bounds,
		Body:   &ir.Block{Stmts: []ir.Stmt{produce(f), rest}},
	}
}

// produce builds the loop nest computing f: one For per free variable,
// first variable innermost (dense dimension), with a single Provide in
// the middle. The function's Device pins the outermost loop.
func produce(f Function) ir.Stmt {
	args := make([]ir.Expr, len(f.Args))
	for i, name := range f.Args {
		args[i] = &ir.Var{Name: name}
	}
	var body ir.Stmt = &ir.Provide{Name: f.Name, Values: f.Values, Args: args}
	for i, name := range f.Args {
		device := backends.DeviceNone
		if i == len(f.Args)-1 {
			device = f.Device
		}
		body = &ir.For{
			Name:   name,
			Min:    &ir.IntImm{Value: 0},
			Extent: &ir.Var{Name: extentVar(name)},
			Device: device,
			Body:   body,
		}
	}
	return &ir.Produce{Name: f.Name, Body: body}
}

// extentVar names the symbolic extent of a dimension variable.
func extentVar(dim string) string { return dim + ".extent" }
