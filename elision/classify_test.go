package elision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrayflow/arrayflow/ir"
	"github.com/arrayflow/arrayflow/pipeline"
)

func x() ir.Expr { return &ir.Var{Name: "x"} }
func y() ir.Expr { return &ir.Var{Name: "y"} }

func callF(name string, valueIndex int, args ...ir.Expr) ir.Expr {
	return &ir.Call{Type: ir.FuncCall, Name: name, Args: args, ValueIndex: valueIndex}
}

func TestPointwiseCopyProducer(t *testing.T) {
	tests := []struct {
		name     string
		f        pipeline.Function
		producer string
	}{
		{
			name: "single value identity copy",
			f: pipeline.Function{Name: "g", Args: []string{"x", "y"},
				Values: []ir.Expr{callF("f", 0, x(), y())}},
			producer: "f",
		},
		{
			name: "tuple copying the same producer componentwise",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{callF("f", 0, x()), callF("f", 1, x())}},
			producer: "f",
		},
		{
			name: "tuple components from different producers",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{callF("f", 0, x()), callF("h", 1, x())}},
			producer: "",
		},
		{
			name: "tuple component index remapped",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{callF("f", 1, x()), callF("f", 0, x())}},
			producer: "",
		},
		{
			name: "offset indexing",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{callF("f", 0, &ir.Add{A: x(), B: &ir.IntImm{Value: 1}})}},
			producer: "",
		},
		{
			name: "reordered indices",
			f: pipeline.Function{Name: "g", Args: []string{"x", "y"},
				Values: []ir.Expr{callF("f", 0, y(), x())}},
			producer: "",
		},
		{
			name: "missing index",
			f: pipeline.Function{Name: "g", Args: []string{"x", "y"},
				Values: []ir.Expr{callF("f", 0, x())}},
			producer: "",
		},
		{
			name: "computation on the value",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{&ir.Add{A: callF("f", 0, x()), B: &ir.IntImm{Value: 1}}}},
			producer: "",
		},
		{
			name: "image load is not a function copy",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{&ir.Call{Type: ir.ImageCall, Name: "in", Args: []ir.Expr{x()}}}},
			producer: "",
		},
		{
			name: "update definition disqualifies regardless of values",
			f: pipeline.Function{Name: "g", Args: []string{"x"}, HasUpdateDefinition: true,
				Values: []ir.Expr{callF("f", 0, x())}},
			producer: "",
		},
		{
			name: "extern definition disqualifies regardless of values",
			f: pipeline.Function{Name: "g", Args: []string{"x"}, HasExternDefinition: true,
				Values: []ir.Expr{callF("f", 0, x())}},
			producer: "",
		},
		{
			name:     "no values",
			f:        pipeline.Function{Name: "g", Args: []string{"x"}},
			producer: "",
		},
		{
			name: "self copy",
			f: pipeline.Function{Name: "g", Args: []string{"x"},
				Values: []ir.Expr{callF("g", 0, x())}},
			producer: "",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.producer, PointwiseCopyProducer(test.f))
		})
	}
}

func TestPointwiseCopies(t *testing.T) {
	graph, err := pipeline.NewGraph([]pipeline.Function{
		{Name: "c", Args: []string{"x"}, Values: []ir.Expr{
			&ir.Mul{A: &ir.Call{Type: ir.ImageCall, Name: "in", Args: []ir.Expr{x()}},
				B: &ir.IntImm{Value: 2}}}},
		{Name: "b", Args: []string{"x"}, Values: []ir.Expr{callF("c", 0, x())}},
		{Name: "a", Args: []string{"x"}, Values: []ir.Expr{callF("b", 0, x())}},
		{Name: "out", Args: []string{"x"}, Values: []ir.Expr{
			&ir.Add{A: callF("a", 0, x()), B: &ir.IntImm{Value: 1}}}},
	}, []string{"c", "b", "a", "out"})
	require.NoError(t, err)

	pairs := PointwiseCopies(graph)
	assert.Equal(t, []CopyPair{
		{Producer: "c", Consumer: "b"},
		{Producer: "b", Consumer: "a"},
	}, pairs)
}

func TestPointwiseCopiesExcludesFlaggedProducers(t *testing.T) {
	graph, err := pipeline.NewGraph([]pipeline.Function{
		{Name: "f", Args: []string{"x"}, HasUpdateDefinition: true,
			Values: []ir.Expr{&ir.IntImm{Value: 0}}},
		{Name: "g", Args: []string{"x"}, Values: []ir.Expr{callF("f", 0, x())}},
	}, []string{"f", "g"})
	require.NoError(t, err)
	assert.Empty(t, PointwiseCopies(graph), "flagged producers disqualify the pair")
}
