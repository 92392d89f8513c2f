// Package etypes defines ElemType, the element type of a pipeline value:
// a scalar data type (dtypes.DType) plus a vector width in lanes.
//
// Lanes > 1 only occurs transiently inside the compiler, after
// vectorization; storage-level entities (buffers, arguments) require
// Lanes == 1, one array element per logical cell.
package etypes

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// ElemType is the type of one element of a pipeline value.
type ElemType struct {
	DType dtypes.DType
	Lanes int
}

// Of returns the scalar ElemType for the given dtype.
func Of(dtype dtypes.DType) ElemType {
	return ElemType{DType: dtype, Lanes: 1}
}

// FromGenericsType returns the scalar ElemType corresponding to the Go
// type T.
func FromGenericsType[T dtypes.Supported]() ElemType {
	return Of(dtypes.FromGenericsType[T]())
}

// Vector returns a copy of t with the given number of lanes.
func (t ElemType) Vector(lanes int) ElemType {
	if lanes < 1 {
		exceptions.Panicf("ElemType(%s).Vector(%d): lanes must be >= 1", t, lanes)
	}
	t.Lanes = lanes
	return t
}

// IsVector returns whether t has more than one lane.
func (t ElemType) IsVector() bool { return t.Lanes > 1 }

// Ok returns whether t is a valid element type. The zero ElemType is
// invalid.
func (t ElemType) Ok() bool { return t.DType != dtypes.InvalidDType && t.Lanes >= 1 }

// Bytes returns the byte width of one scalar element of this type.
func (t ElemType) Bytes() int { return int(t.DType.Memory()) }

// String implements fmt.Stringer.
func (t ElemType) String() string {
	if t.IsVector() {
		return fmt.Sprintf("%sx%d", t.DType, t.Lanes)
	}
	return t.DType.String()
}
