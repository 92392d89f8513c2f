package ir

// Mutate rebuilds the tree bottom-up, applying exprFn to every rebuilt
// expression and stmtFn to every rebuilt statement. Either function may
// be nil, meaning identity.
//
// stmtFn may return nil to delete a statement: a Block drops deleted
// children (and dissolves entirely if all are deleted), and deleting the
// body of a For, Realize or Produce deletes the node itself. Unchanged
// subtrees are shared, not copied.
func Mutate(s Stmt, exprFn func(Expr) Expr, stmtFn func(Stmt) Stmt) Stmt {
	m := mutator{exprFn: exprFn, stmtFn: stmtFn}
	return m.mutateStmt(s)
}

// MutateExprs rewrites every expression in s bottom-up.
func MutateExprs(s Stmt, exprFn func(Expr) Expr) Stmt {
	return Mutate(s, exprFn, nil)
}

type mutator struct {
	exprFn func(Expr) Expr
	stmtFn func(Stmt) Stmt
}

func (m mutator) applyExpr(e Expr) Expr {
	if m.exprFn == nil {
		return e
	}
	return m.exprFn(e)
}

func (m mutator) applyStmt(s Stmt) Stmt {
	if m.stmtFn == nil {
		return s
	}
	return m.stmtFn(s)
}

func (m mutator) mutateExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *Var, *IntImm:
	case *Add:
		a, b := m.mutateExpr(n.A), m.mutateExpr(n.B)
		if a != n.A || b != n.B {
			e = &Add{A: a, B: b}
		}
	case *Mul:
		a, b := m.mutateExpr(n.A), m.mutateExpr(n.B)
		if a != n.A || b != n.B {
			e = &Mul{A: a, B: b}
		}
	case *Call:
		args, changed := m.mutateExprs(n.Args)
		if changed {
			e = &Call{Type: n.Type, Name: n.Name, Args: args, ValueIndex: n.ValueIndex}
		}
	}
	return m.applyExpr(e)
}

func (m mutator) mutateExprs(exprs []Expr) (result []Expr, changed bool) {
	result = exprs
	for i, e := range exprs {
		mutated := m.mutateExpr(e)
		if mutated != e && !changed {
			changed = true
			result = make([]Expr, len(exprs))
			copy(result, exprs[:i])
		}
		if changed {
			result[i] = mutated
		}
	}
	return
}

func (m mutator) mutateStmt(s Stmt) Stmt {
	if s == nil {
		return nil
	}
	switch n := s.(type) {
	case *Block:
		stmts := make([]Stmt, 0, len(n.Stmts))
		changed := false
		for _, child := range n.Stmts {
			mutated := m.mutateStmt(child)
			if mutated != child {
				changed = true
			}
			if mutated != nil {
				stmts = append(stmts, mutated)
			}
		}
		if changed {
			switch len(stmts) {
			case 0:
				return nil
			case 1:
				// Already mutated and applied as a child.
				return stmts[0]
			}
			s = &Block{Stmts: stmts}
		}
	case *For:
		min, extent := m.mutateExpr(n.Min), m.mutateExpr(n.Extent)
		body := m.mutateStmt(n.Body)
		if body == nil {
			return nil
		}
		if min != n.Min || extent != n.Extent || body != n.Body {
			s = &For{Name: n.Name, Min: min, Extent: extent, Device: n.Device, Body: body}
		}
	case *Realize:
		bounds := n.Bounds
		boundsChanged := false
		for i, b := range n.Bounds {
			min, extent := m.mutateExpr(b.Min), m.mutateExpr(b.Extent)
			if (min != b.Min || extent != b.Extent) && !boundsChanged {
				boundsChanged = true
				bounds = make([]Bound, len(n.Bounds))
				copy(bounds, n.Bounds[:i])
			}
			if boundsChanged {
				bounds[i] = Bound{Min: min, Extent: extent}
			}
		}
		body := m.mutateStmt(n.Body)
		if body == nil {
			return nil
		}
		if boundsChanged || body != n.Body {
			s = &Realize{Name: n.Name, Types: n.Types, Bounds: bounds, Body: body}
		}
	case *Produce:
		body := m.mutateStmt(n.Body)
		if body == nil {
			return nil
		}
		if body != n.Body {
			s = &Produce{Name: n.Name, Body: body}
		}
	case *Provide:
		values, valuesChanged := m.mutateExprs(n.Values)
		args, argsChanged := m.mutateExprs(n.Args)
		if valuesChanged || argsChanged {
			s = &Provide{Name: n.Name, Values: values, Args: args}
		}
	case *Evaluate:
		value := m.mutateExpr(n.Value)
		if value != n.Value {
			s = &Evaluate{Value: value}
		}
	}
	return m.applyStmt(s)
}
