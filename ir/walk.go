package ir

import "k8s.io/klog/v2"

// Walk visits node and its children top-down. If f returns false for a
// node, its children are not visited. A nil node is a no-op.
func Walk(node Node, f func(Node) bool) {
	if node == nil {
		return
	}
	if !f(node) {
		return
	}
	switch n := node.(type) {
	case *Var, *IntImm:
	case *Add:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Mul:
		Walk(n.A, f)
		Walk(n.B, f)
	case *Call:
		for _, arg := range n.Args {
			Walk(arg, f)
		}
	case *Block:
		for _, s := range n.Stmts {
			Walk(s, f)
		}
	case *For:
		Walk(n.Min, f)
		Walk(n.Extent, f)
		Walk(n.Body, f)
	case *Realize:
		for _, b := range n.Bounds {
			Walk(b.Min, f)
			Walk(b.Extent, f)
		}
		Walk(n.Body, f)
	case *Produce:
		Walk(n.Body, f)
	case *Provide:
		for _, v := range n.Values {
			Walk(v, f)
		}
		for _, arg := range n.Args {
			Walk(arg, f)
		}
	case *Evaluate:
		Walk(n.Value, f)
	default:
		klog.Fatalf("internal error: ir.Walk: unhandled node type %T", node)
	}
}
