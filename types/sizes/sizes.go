// Package sizes implements overflow-checked arithmetic for buffer size
// computations.
//
// Whenever a buffer's total element or byte count is computed from
// user-supplied extents, the multiplication must be checked: a wrapped
// product would silently under-allocate. Overflow is detected with the
// division identity `(a*c)/a == c` rather than hardware overflow flags,
// so the check is portable across unsigned widths.
package sizes

import (
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// CheckedMul returns a*c and whether the product fit in T without
// overflowing. A zero `a` always yields (0, true).
func CheckedMul[T constraints.Unsigned](a, c T) (result T, ok bool) {
	if a == 0 {
		return 0, true
	}
	result = a * c
	if result/a != c {
		return 0, false
	}
	return result, true
}

// MustCheckedMul is CheckedMul for internally computed quantities, where
// overflow means the compiler's own arithmetic is wrong. It aborts the
// process on overflow: there is no recovery path for a compiler bug.
//
// Caller-supplied sizes must never reach this function; they go through
// CheckedMul and report a catchable error instead.
func MustCheckedMul[T constraints.Unsigned](a, c T) T {
	result, ok := CheckedMul(a, c)
	if !ok {
		klog.Fatalf("internal error: overflow in checked multiply (%d * %d)", a, c)
	}
	return result
}
