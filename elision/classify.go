// Package elision implements copy elision: detecting pipeline functions
// whose entire definition is a pointwise, identity-indexed copy of
// another function, and rewriting the lowered statement tree so the copy
// never materializes — consumers read the producer's storage directly.
//
// The transformation is always optional: whenever a safety check fails
// the pair is skipped and the tree left unchanged for it, which only
// costs a redundant copy at run time, never correctness.
package elision

import (
	"github.com/arrayflow/arrayflow/ir"
	"github.com/arrayflow/arrayflow/pipeline"
)

// CopyPair names one elidable copy: Consumer's definition is a pointwise
// copy of Producer's value. A consumer appears in at most one pair.
type CopyPair struct {
	Producer string // copy from
	Consumer string // store into
}

// PointwiseCopyProducer returns the name of the function f copies from,
// if f's entire definition is a pointwise copy of a single other
// function: every value is a call to that function with f's own free
// variables as arguments, in order — identity indexing, no offset, no
// reordering, no computation. If f is tuple-valued, every component i
// must read component i of the same producer; partial-tuple copying
// would leave the remaining components unaliased and unallocated, so it
// disqualifies the whole function.
//
// Functions with update or extern definitions are never copies. Returns
// "" when f is not a pointwise copy.
func PointwiseCopyProducer(f pipeline.Function) string {
	if f.HasUpdateDefinition || f.HasExternDefinition {
		return ""
	}
	if len(f.Values) == 0 {
		return ""
	}
	producer := ""
	for component, value := range f.Values {
		call, ok := value.(*ir.Call)
		if !ok || call.Type != ir.FuncCall {
			return ""
		}
		if call.ValueIndex != component {
			return ""
		}
		if !identityIndexed(call.Args, f.Args) {
			return ""
		}
		if producer == "" {
			producer = call.Name
		} else if producer != call.Name {
			return ""
		}
	}
	if producer == f.Name {
		return ""
	}
	return producer
}

// identityIndexed returns whether args are exactly the free variables,
// in the same order, for every dimension.
func identityIndexed(args []ir.Expr, freeVars []string) bool {
	if len(args) != len(freeVars) {
		return false
	}
	for i, arg := range args {
		v, ok := arg.(*ir.Var)
		if !ok || v.Name != freeVars[i] {
			return false
		}
	}
	return true
}

// PointwiseCopies runs the classifier over every function in the
// realization order and returns the full set of copy pairs. A producer
// with an update or extern definition disqualifies its pair. Chains
// (A copies B, B copies C) yield one pair per link; no transitivity is
// inferred here.
func PointwiseCopies(g *pipeline.Graph) []CopyPair {
	var pairs []CopyPair
	for _, name := range g.Order() {
		f, ok := g.Func(name)
		if !ok {
			continue
		}
		producer := PointwiseCopyProducer(f)
		if producer == "" {
			continue
		}
		p, ok := g.Func(producer)
		if !ok || p.HasUpdateDefinition || p.HasExternDefinition {
			continue
		}
		pairs = append(pairs, CopyPair{Producer: producer, Consumer: name})
	}
	return pairs
}
