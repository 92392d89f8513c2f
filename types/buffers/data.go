package buffers

import (
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/arrayflow/arrayflow/types/etypes"
)

// flatSlice returns the host storage viewed as a []T of NumElements
// entries. It assumes dense row-major packing, which holds for every
// owning buffer; for wrapped descriptors the caller vouches for the
// layout.
func flatSlice[T dtypes.Supported](b Buffer) []T {
	if b.Type() != etypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("buffer %q has element type %s, incompatible with a %T view",
			b.Name(), b.Type(), v)
	}
	host := b.HostPtr()
	if host == nil {
		exceptions.Panicf("buffer %q has no host storage", b.Name())
	}
	return unsafe.Slice((*T)(unsafe.Pointer(host)), b.NumElements())
}

// ConstFlatData calls accessFn with the buffer's host storage as a flat
// slice of T, in row-major order. The slice is the actual storage, not a
// copy; it must not be mutated, or the device side would silently go out
// of sync. See MutableFlatData for write access.
//
// If the device side is dirty, the caller must CopyToHost first; the
// dirty bits are advisory and not consulted here.
func ConstFlatData[T dtypes.Supported](b Buffer, accessFn func(flat []T)) {
	accessFn(flatSlice[T](b))
}

// MutableFlatData calls accessFn with the buffer's host storage as a
// mutable flat slice of T, and marks the host side dirty afterwards.
func MutableFlatData[T dtypes.Supported](b Buffer, accessFn func(flat []T)) {
	accessFn(flatSlice[T](b))
	b.SetHostDirty(true)
}

// FromFlatData constructs an owning buffer with the given extents and
// copies data into it. len(data) must equal the product of the nonzero
// extents.
func FromFlatData[T dtypes.Supported](data []T, extents ...int) Buffer {
	b := New(etypes.FromGenericsType[T](), extents...)
	if len(data) != b.NumElements() {
		defer b.Release()
		exceptions.Panicf("buffer %q: %d values given for extents %v, which hold %d elements",
			b.Name(), len(data), extents, b.NumElements())
	}
	MutableFlatData(b, func(flat []T) {
		copy(flat, data)
	})
	return b
}
