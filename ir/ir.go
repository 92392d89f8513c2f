// Package ir defines the lowered statement tree the optimization passes
// operate on, together with a generic walk/mutate facility.
//
// The tree is deliberately small: it carries exactly the node kinds the
// lowering of a pipeline produces and the copy-elision pass inspects —
// loop nests (For), storage realization (Realize), producer sections
// (Produce), multi-dimensional stores (Provide) and loads (Call). Nodes
// are treated as immutable: passes rebuild the spine of the tree and
// share unchanged subtrees.
package ir

import (
	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/types/etypes"
)

// Node is implemented by every expression and statement node.
type Node interface {
	node()
}

// Expr is an expression node, yielding one scalar value per evaluation.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// CallType distinguishes what a Call loads from.
type CallType int

const (
	// FuncCall reads the storage of another pipeline function.
	FuncCall CallType = iota

	// ImageCall reads an external input image or array.
	ImageCall

	// ExternCall invokes an externally defined routine; its arguments
	// may reference buffers by name in ways the compiler cannot rewrite.
	ExternCall
)

// Var is a reference to a loop variable or free variable by name.
type Var struct {
	Name string
}

// IntImm is an integer immediate.
type IntImm struct {
	Value int64
}

// Add is the sum of two expressions.
type Add struct {
	A, B Expr
}

// Mul is the product of two expressions.
type Mul struct {
	A, B Expr
}

// Call is a multi-dimensional load: it reads component ValueIndex of the
// value named Name at the indices given by Args. For FuncCall the name is
// a pipeline function; for ImageCall an external input; for ExternCall an
// opaque routine (and Args are its actual arguments, not indices).
type Call struct {
	Type       CallType
	Name       string
	Args       []Expr
	ValueIndex int
}

// Block is a sequence of statements.
type Block struct {
	Stmts []Stmt
}

// For is a serial loop over [Min, Min+Extent). Device pins the loop nest
// to an execution domain; DeviceNone inherits from the enclosing loop.
type For struct {
	Name        string
	Min, Extent Expr
	Device      backends.DeviceAPI
	Body        Stmt
}

// Bound is one dimension of a realization domain.
type Bound struct {
	Min, Extent Expr
}

// Realize allocates storage for the function Name over Bounds, for the
// duration of Body. Types has one entry per tuple component.
type Realize struct {
	Name   string
	Types  []etypes.ElemType
	Bounds []Bound
	Body   Stmt
}

// Produce marks Body as the producer section computing the function
// Name. Consumers of Name appear after the Produce within the enclosing
// Realize.
type Produce struct {
	Name string
	Body Stmt
}

// Provide is a multi-dimensional store: it writes Values (one per tuple
// component) to the storage of Name at the indices given by Args.
type Provide struct {
	Name   string
	Values []Expr
	Args   []Expr
}

// Evaluate executes an expression for its effect, discarding the value.
type Evaluate struct {
	Value Expr
}

func (*Var) node()    {}
func (*IntImm) node() {}
func (*Add) node()    {}
func (*Mul) node()    {}
func (*Call) node()   {}

func (*Var) exprNode()    {}
func (*IntImm) exprNode() {}
func (*Add) exprNode()    {}
func (*Mul) exprNode()    {}
func (*Call) exprNode()   {}

func (*Block) node()    {}
func (*For) node()      {}
func (*Realize) node()  {}
func (*Produce) node()  {}
func (*Provide) node()  {}
func (*Evaluate) node() {}

func (*Block) stmtNode()    {}
func (*For) stmtNode()      {}
func (*Realize) stmtNode()  {}
func (*Produce) stmtNode()  {}
func (*Provide) stmtNode()  {}
func (*Evaluate) stmtNode() {}
