// Package buffers implements Buffer, the reference-counted handle to one
// multi-dimensional array shared between the compiler core and generated
// code.
//
// A Buffer wraps a backends.RawBuffer descriptor (the fixed-layout
// structure passed into compiled entry points) with the element type, a
// debug name, a reference count, and an optional link to the compiled
// module whose hooks know how to synchronize the buffer with device
// memory.
//
// The host and device sides carry independent dirty bits. They are
// advisory flags, not synchronization primitives: both may be set only
// transiently, and a CopyToHost/CopyToDevice call must be issued before
// the stale side is read.
//
// Buffers are either owning (the host allocation was made here and is
// released with the last handle) or wrapping (an externally supplied
// descriptor whose memory is never freed by this package). In both cases
// the last Release first invokes the module's free-device-buffer hook, if
// one is attached.
//
// Reference counting is a plain counter: the compile phase is
// single-threaded, and callers that share a buffer across goroutines
// must serialize Acquire/Release themselves.
package buffers

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"

	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/types/etypes"
	"github.com/arrayflow/arrayflow/types/sizes"
)

// maxBytes is the exclusive upper bound on an owned host allocation, from
// the 32-bit size fields of the buffer ABI.
const maxBytes = 1<<31 - 1

// hostAlignment is the alignment of owned host allocations, required by
// the vector loads generated code may issue.
const hostAlignment = 32

// nameCounter feeds auto-generated buffer names. Process-wide, zero at
// process start; names are never reclaimed.
var nameCounter atomic.Int64

func nextName() string {
	return fmt.Sprintf("b%d", nameCounter.Add(1)-1)
}

// bufferContents is the shared record behind every handle to the same
// buffer.
type bufferContents struct {
	// raw is the descriptor shared with generated code.
	raw backends.RawBuffer

	// etype is the element type of the allocation. RawBuffer only tracks
	// the element byte size, so the full type lives here.
	etype etypes.ElemType

	// allocation backs raw.Host when the buffer owns its host memory;
	// nil for wrapping buffers, which never free memory they did not
	// allocate.
	allocation []byte

	// refCount counts the Buffer handles pointing at this record. Plain
	// counter; see the package doc for the threading contract.
	refCount int

	name string

	// module is the compiled module that realized this buffer, if any.
	// It owns the hooks that know how to synchronize the buffer with
	// device memory, so it must be kept alive as long as the buffer is.
	module *backends.Module
}

// Buffer is a handle to a shared buffer record. The zero Buffer is a
// valid but unusable empty handle: Defined reports false and every other
// accessor throws a user-facing error.
type Buffer struct {
	contents *bufferContents
}

// New constructs an owning buffer of the given element type and up to 4
// extents, with a zero-filled host allocation aligned to 32 bytes.
//
// It throws a user-facing error for vector element types, more than 4
// extents, negative extents, overflow in the size computation, or a total
// size at or above 2^31-1 bytes.
func New(etype etypes.ElemType, extents ...int) Buffer {
	return newBuffer(etype, nil, nextName(), extents)
}

// NewNamed is New with an explicit debug name.
func NewNamed(name string, etype etypes.ElemType, extents ...int) Buffer {
	if name == "" {
		name = nextName()
	}
	return newBuffer(etype, nil, name, extents)
}

// NewWithData constructs a buffer over an externally supplied host
// pointer: extents, strides and mins are filled as in New, but no
// allocation is made and the memory is never freed by this package.
func NewWithData(etype etypes.ElemType, host *byte, extents ...int) Buffer {
	if host == nil {
		exceptions.Panicf("buffers.NewWithData: nil host pointer; use New to allocate")
	}
	return newBuffer(etype, host, nextName(), extents)
}

func newBuffer(etype etypes.ElemType, host *byte, name string, extents []int) Buffer {
	if etype.IsVector() {
		exceptions.Panicf("buffer %q: cannot create a buffer of a vector type %s", name, etype)
	}
	if len(extents) > backends.MaxDimensions {
		exceptions.Panicf("buffer %q: dimensions greater than %d are not supported, %d given",
			name, backends.MaxDimensions, len(extents))
	}
	c := &bufferContents{
		etype:    etype,
		refCount: 1,
		name:     name,
	}
	c.raw.ElemSize = int32(etype.Bytes())

	elems := uint64(1)
	for dim, extent := range extents {
		if extent < 0 || extent > math.MaxInt32 {
			exceptions.Panicf("buffer %q: extent %d for dimension %d out of the descriptor's 32-bit range",
				name, extent, dim)
		}
		c.raw.Extent[dim] = int32(extent)
		if extent == 0 {
			continue
		}
		var ok bool
		elems, ok = sizes.CheckedMul(elems, uint64(extent))
		if !ok {
			exceptions.Panicf("buffer %q: overflow computing the number of elements from extents %v", name, extents)
		}
	}

	if host != nil {
		c.raw.Host = host
	} else {
		nbytes, ok := sizes.CheckedMul(elems, uint64(c.raw.ElemSize))
		if !ok {
			exceptions.Panicf("buffer %q: overflow computing the allocation size from extents %v", name, extents)
		}
		if nbytes >= maxBytes {
			exceptions.Panicf("buffer %q: total size of %s exceeds the limit of %s",
				name, humanize.IBytes(nbytes), humanize.IBytes(maxBytes))
		}
		// Padding slack so the aligned host pointer still has nbytes of
		// room. The sum cannot overflow: nbytes < 2^31-1.
		c.allocation = make([]byte, nbytes+hostAlignment)
		p := uintptr(unsafe.Pointer(&c.allocation[0]))
		offset := (hostAlignment - p&(hostAlignment-1)) & (hostAlignment - 1)
		c.raw.Host = &c.allocation[offset]
	}

	// Dense row-major strides: stride[i] is the product of extents[0..i).
	c.raw.Stride[0] = 1
	for dim := 1; dim < backends.MaxDimensions; dim++ {
		c.raw.Stride[dim] = c.raw.Stride[dim-1] * c.raw.Extent[dim-1]
	}
	return Buffer{contents: c}
}

// FromRaw constructs a buffer wrapping a pre-built descriptor. The
// descriptor is copied verbatim — extents, strides, mins, host and device
// pointers, dirty bits — and no allocation is made: the buffer never owns
// the host memory, and never frees it.
//
// name may be empty, in which case a unique name is generated.
func FromRaw(etype etypes.ElemType, raw *backends.RawBuffer, name string) Buffer {
	if name == "" {
		name = nextName()
	}
	if etype.IsVector() {
		exceptions.Panicf("buffer %q: cannot create a buffer of a vector type %s", name, etype)
	}
	if raw == nil {
		exceptions.Panicf("buffer %q: nil descriptor", name)
	}
	return Buffer{contents: &bufferContents{
		raw:      *raw,
		etype:    etype,
		refCount: 1,
		name:     name,
	}}
}

// Defined returns whether the handle is bound to a concrete buffer. The
// zero Buffer and a fully released Buffer are not defined.
func (b Buffer) Defined() bool {
	return b.contents != nil
}

func (b Buffer) assertDefined() {
	if !b.Defined() {
		exceptions.Panicf("buffer is undefined")
	}
}

func (b Buffer) assertDim(dim int) {
	if dim < 0 || dim >= backends.MaxDimensions {
		exceptions.Panicf("buffer %q: dimension %d out of range, only %d-dimensional buffers are supported",
			b.contents.name, dim, backends.MaxDimensions)
	}
}

// Acquire adds a reference to the shared buffer record and returns the
// same handle, for chaining.
func (b Buffer) Acquire() Buffer {
	b.assertDefined()
	b.contents.refCount++
	return b
}

// Release drops one reference. The last release destroys the buffer:
// first the module's free-device-buffer hook runs on the current device
// handle (if a module with a data interface is attached), then the host
// allocation is dropped if owned. Wrapped host memory is never freed.
//
// The handle itself remains, but is no longer Defined.
func (b *Buffer) Release() {
	b.assertDefined()
	c := b.contents
	c.refCount--
	if c.refCount == 0 {
		if c.module != nil && c.module.Data != nil {
			c.module.Data.FreeDeviceBuffer(nil, &c.raw)
		}
		c.allocation = nil
		c.raw.Host = nil
	}
	b.contents = nil
}

// HostPtr returns the host address of the buffer's storage.
func (b Buffer) HostPtr() *byte {
	b.assertDefined()
	return b.contents.raw.Host
}

// Raw returns the shared low-level descriptor. The pointer stays valid
// and stable for the lifetime of the buffer; generated code mutates it in
// place (device handle, dirty bits).
func (b Buffer) Raw() *backends.RawBuffer {
	b.assertDefined()
	return &b.contents.raw
}

// DeviceHandle returns the buffer's 64-bit device handle, zero if no
// device allocation was made.
func (b Buffer) DeviceHandle() uint64 {
	b.assertDefined()
	return b.contents.raw.Dev
}

// HostDirty returns whether the host side holds writes not yet copied to
// the device.
func (b Buffer) HostDirty() bool {
	b.assertDefined()
	return b.contents.raw.HostDirty
}

// SetHostDirty marks the host side as holding the most recent writes.
func (b Buffer) SetHostDirty(dirty bool) {
	b.assertDefined()
	b.contents.raw.HostDirty = dirty
}

// DeviceDirty returns whether the device side holds writes not yet
// copied to the host.
func (b Buffer) DeviceDirty() bool {
	b.assertDefined()
	return b.contents.raw.DevDirty
}

// SetDeviceDirty marks the device side as holding the most recent
// writes.
func (b Buffer) SetDeviceDirty(dirty bool) {
	b.assertDefined()
	b.contents.raw.DevDirty = dirty
}

// Dimensions returns the number of leading dimensions with nonzero
// extent, 0 to 4. A zero extent terminates the scan: gaps are not
// supported.
func (b Buffer) Dimensions() int {
	for dim := 0; dim < backends.MaxDimensions; dim++ {
		if b.Extent(dim) == 0 {
			return dim
		}
	}
	return backends.MaxDimensions
}

// Extent returns the size of the given dimension, in [0,4).
func (b Buffer) Extent(dim int) int {
	b.assertDefined()
	b.assertDim(dim)
	return int(b.contents.raw.Extent[dim])
}

// Stride returns the element stride of the given dimension, in [0,4).
func (b Buffer) Stride(dim int) int {
	b.assertDefined()
	b.assertDim(dim)
	return int(b.contents.raw.Stride[dim])
}

// Min returns the coordinate of the first element along the given
// dimension, in [0,4).
func (b Buffer) Min(dim int) int {
	b.assertDefined()
	b.assertDim(dim)
	return int(b.contents.raw.Min[dim])
}

// SetMin sets the coordinates of the buffer's first element.
func (b Buffer) SetMin(m0, m1, m2, m3 int) {
	b.assertDefined()
	b.contents.raw.Min = [backends.MaxDimensions]int32{int32(m0), int32(m1), int32(m2), int32(m3)}
}

// Type returns the buffer's element type.
func (b Buffer) Type() etypes.ElemType {
	b.assertDefined()
	return b.contents.etype
}

// Name returns the buffer's debug name.
func (b Buffer) Name() string {
	b.assertDefined()
	return b.contents.name
}

// OwnsHostAllocation returns whether the host memory was allocated by
// this package and is released with the last handle.
func (b Buffer) OwnsHostAllocation() bool {
	b.assertDefined()
	return b.contents.allocation != nil
}

// SameAs returns whether two handles share the same buffer record.
func (b Buffer) SameAs(other Buffer) bool {
	return b.contents == other.contents
}

// NumElements returns the product of the nonzero extents: the number of
// elements a dense buffer of this shape holds. A zero-dimensional buffer
// holds one element.
//
// The extents were validated at construction, so an overflowing product
// here is a broken compiler invariant, not a user error; it aborts.
func (b Buffer) NumElements() int {
	n := uint64(1)
	for dim := 0; dim < b.Dimensions(); dim++ {
		n = sizes.MustCheckedMul(n, uint64(b.Extent(dim)))
	}
	return int(n)
}

// Argument converts the buffer to the generic pipeline-argument
// descriptor used when assembling a call signature for compiled entry
// points.
func (b Buffer) Argument() backends.Argument {
	return backends.Argument{
		Name:     b.Name(),
		IsBuffer: true,
		Type:     b.Type(),
	}
}

// SetModule attaches the compiled module that realized this buffer. The
// module supplies the synchronization hooks used by CopyToHost,
// CopyToDevice and FreeDeviceBuffer.
func (b Buffer) SetModule(module *backends.Module) {
	b.assertDefined()
	b.contents.module = module
}

// Module returns the attached compiled module, or nil.
func (b Buffer) Module() *backends.Module {
	b.assertDefined()
	return b.contents.module
}

// CopyToHost synchronizes the host side with device memory through the
// attached module's hook. Without a module or data interface this is a
// silent no-op: a buffer that never touched a device pays nothing.
//
// The hook runs with a nil execution context, valid only in the
// embedded/just-in-time execution mode this runtime targets.
func (b Buffer) CopyToHost() {
	b.assertDefined()
	c := b.contents
	if c.module == nil || c.module.Data == nil {
		return
	}
	c.module.Data.CopyToHost(nil, &c.raw)
}

// CopyToDevice synchronizes device memory with the host side through the
// attached module's hook; a silent no-op without one.
func (b Buffer) CopyToDevice() {
	b.assertDefined()
	c := b.contents
	if c.module == nil || c.module.Data == nil {
		return
	}
	c.module.Data.CopyToDevice(nil, &c.raw)
}

// FreeDeviceBuffer releases the device-side allocation through the
// attached module's hook; a silent no-op without one. The host side is
// unaffected.
func (b Buffer) FreeDeviceBuffer() {
	b.assertDefined()
	c := b.contents
	if c.module == nil || c.module.Data == nil {
		return
	}
	c.module.Data.FreeDeviceBuffer(nil, &c.raw)
}

// String implements fmt.Stringer.
func (b Buffer) String() string {
	if !b.Defined() {
		return "Buffer<undefined>"
	}
	dims := b.Dimensions()
	extents := make([]int, dims)
	for dim := range extents {
		extents[dim] = b.Extent(dim)
	}
	return fmt.Sprintf("Buffer<%s>(%s)%v", b.Name(), b.Type(), extents)
}
