package buffers

import (
	"fmt"
	"math"
	"testing"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/arrayflow/arrayflow/backends"
	"github.com/arrayflow/arrayflow/types/etypes"
)

// recordingData is a DataInterface that records every hook invocation.
type recordingData struct {
	calls   []string
	lastCtx any
	lastBuf *backends.RawBuffer
}

func (r *recordingData) CopyToHost(ctx any, buf *backends.RawBuffer) {
	r.calls = append(r.calls, "copy_to_host")
	r.lastCtx, r.lastBuf = ctx, buf
}

func (r *recordingData) CopyToDevice(ctx any, buf *backends.RawBuffer) {
	r.calls = append(r.calls, "copy_to_device")
	r.lastCtx, r.lastBuf = ctx, buf
}

func (r *recordingData) FreeDeviceBuffer(ctx any, buf *backends.RawBuffer) {
	r.calls = append(r.calls, "free_device_buffer")
	r.lastCtx, r.lastBuf = ctx, buf
}

func TestNewDimensions(t *testing.T) {
	f32 := etypes.Of(dtypes.Float32)
	tests := []struct {
		extents []int
		dims    int
	}{
		{nil, 0},
		{[]int{7}, 1},
		{[]int{4, 5}, 2},
		{[]int{4, 5, 6}, 3},
		{[]int{4, 5, 6, 7}, 4},
		// A zero extent terminates dimensionality scanning.
		{[]int{4, 0, 6}, 1},
		{[]int{0, 5}, 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.extents), func(t *testing.T) {
			b := New(f32, test.extents...)
			defer b.Release()
			assert.Equal(t, test.dims, b.Dimensions())
			for dim, extent := range test.extents {
				assert.Equal(t, extent, b.Extent(dim))
			}
		})
	}
}

func TestNewStridesAndMins(t *testing.T) {
	b := New(etypes.Of(dtypes.Int32), 4, 5, 6, 7)
	defer b.Release()
	assert.Equal(t, 1, b.Stride(0))
	assert.Equal(t, 4, b.Stride(1))
	assert.Equal(t, 20, b.Stride(2))
	assert.Equal(t, 120, b.Stride(3))
	for dim := 0; dim < backends.MaxDimensions; dim++ {
		assert.Equal(t, 0, b.Min(dim))
	}
	b.SetMin(-1, 2, 0, 3)
	assert.Equal(t, -1, b.Min(0))
	assert.Equal(t, 2, b.Min(1))
	assert.Equal(t, 3, b.Min(3))
}

func TestNewAlignmentAndZeroFill(t *testing.T) {
	for _, extent := range []int{1, 3, 63, 1000} {
		b := New(etypes.Of(dtypes.Uint8), extent)
		assert.Zero(t, uintptr(unsafe.Pointer(b.HostPtr()))&31,
			"host allocation must be 32-byte aligned")
		ConstFlatData(b, func(flat []uint8) {
			for _, v := range flat {
				require.Zero(t, v)
			}
		})
		b.Release()
	}
}

func TestNewPreconditions(t *testing.T) {
	f32 := etypes.Of(dtypes.Float32)

	// Vector element types model more than one element per cell.
	require.Panics(t, func() { New(f32.Vector(4), 10) })

	// More than 4 dimensions.
	require.Panics(t, func() { New(f32, 2, 2, 2, 2, 2) })

	// Negative extent.
	require.Panics(t, func() { New(f32, -1) })

	// Total size at or above 2^31-1 bytes. This is a user error, and must
	// be catchable.
	e := exceptions.Try(func() { New(f32, 1<<15, 1<<15) })
	require.NotNil(t, e)

	// Extent outside the descriptor's 32-bit range.
	require.Panics(t, func() { New(f32, 1 << 31) })

	// Overflow in the element-count product.
	require.Panics(t, func() { New(f32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32) })
}

func TestFromRawNeverOwns(t *testing.T) {
	data := make([]byte, 64)
	raw := &backends.RawBuffer{
		Host:     &data[0],
		ElemSize: 1,
		Extent:   [4]int32{64, 0, 0, 0},
		Stride:   [4]int32{1, 64, 0, 0},
		Min:      [4]int32{-3, 0, 0, 0},
		Dev:      42,
		DevDirty: true,
	}
	b := FromRaw(etypes.Of(dtypes.Uint8), raw, "wrapped")
	assert.Equal(t, "wrapped", b.Name())
	assert.False(t, b.OwnsHostAllocation())
	assert.Equal(t, 1, b.Dimensions())
	assert.Equal(t, 64, b.Extent(0))
	assert.Equal(t, -3, b.Min(0))
	assert.Equal(t, uint64(42), b.DeviceHandle())
	assert.True(t, b.DeviceDirty())
	assert.False(t, b.HostDirty())

	// The descriptor is copied, not shared.
	raw.Extent[0] = 1
	assert.Equal(t, 64, b.Extent(0))

	data[7] = 0xaa
	b.Release()
	assert.False(t, b.Defined())
	assert.Equal(t, byte(0xaa), data[7], "wrapped memory must survive Release")
}

func TestReleaseRunsDeviceFreeOnce(t *testing.T) {
	rec := &recordingData{}
	module := backends.NewModule(nil, rec)

	b := New(etypes.Of(dtypes.Float32), 8)
	b.SetModule(module)
	b.Raw().Dev = 7

	b2 := b.Acquire()
	b.Release()
	assert.Empty(t, rec.calls, "device free must wait for the last release")

	raw := b2.Raw()
	b2.Release()
	require.Equal(t, []string{"free_device_buffer"}, rec.calls)
	assert.Nil(t, rec.lastCtx)
	assert.Same(t, raw, rec.lastBuf)
	assert.False(t, b2.Defined())
}

func TestSyncHooks(t *testing.T) {
	// No module attached: silent no-ops.
	b := New(etypes.Of(dtypes.Float32), 8)
	b.CopyToHost()
	b.CopyToDevice()
	b.FreeDeviceBuffer()

	// Module without a data interface: still no-ops.
	b.SetModule(backends.NewModule(nil, nil))
	b.CopyToHost()
	b.CopyToDevice()

	rec := &recordingData{}
	b.SetModule(backends.NewModule(nil, rec))
	b.CopyToDevice()
	b.CopyToHost()
	b.FreeDeviceBuffer()
	assert.Equal(t, []string{"copy_to_device", "copy_to_host", "free_device_buffer"}, rec.calls)
	assert.Nil(t, rec.lastCtx, "hooks run with a nil execution context when embedded")
	assert.Same(t, b.Raw(), rec.lastBuf)
	b.Release()
}

func TestDirtyBitsIndependent(t *testing.T) {
	b := New(etypes.Of(dtypes.Float32), 4)
	defer b.Release()
	assert.False(t, b.HostDirty())
	assert.False(t, b.DeviceDirty())
	b.SetHostDirty(true)
	assert.True(t, b.HostDirty())
	assert.False(t, b.DeviceDirty())
	b.SetDeviceDirty(true)
	assert.True(t, b.HostDirty())
	assert.True(t, b.DeviceDirty())
	b.SetHostDirty(false)
	assert.True(t, b.DeviceDirty())
}

func TestUndefinedHandle(t *testing.T) {
	var b Buffer
	assert.False(t, b.Defined())
	require.Panics(t, func() { b.Extent(0) })
	require.Panics(t, func() { b.HostPtr() })
	require.Panics(t, func() { b.Name() })
	require.Panics(t, func() { b.Release() })

	b = New(etypes.Of(dtypes.Float32), 4)
	defer b.Release()
	require.Panics(t, func() { b.Extent(-1) })
	require.Panics(t, func() { b.Extent(4) })
	require.Panics(t, func() { b.Stride(4) })
	require.Panics(t, func() { b.Min(4) })
}

func TestFlatData(t *testing.T) {
	b := FromFlatData([]int32{1, 2, 3, 4, 5, 6}, 3, 2)
	defer b.Release()
	assert.True(t, b.HostDirty(), "FromFlatData writes through MutableFlatData")

	ConstFlatData(b, func(flat []int32) {
		assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, flat)
	})

	b.SetHostDirty(false)
	MutableFlatData(b, func(flat []int32) {
		flat[0] = 100
	})
	assert.True(t, b.HostDirty())
	ConstFlatData(b, func(flat []int32) {
		assert.Equal(t, int32(100), flat[0])
	})

	// Mismatched element type.
	require.Panics(t, func() { ConstFlatData(b, func(flat []float32) {}) })

	// Wrong number of values.
	require.Panics(t, func() { FromFlatData([]int32{1, 2, 3}, 2, 2) })
}

func TestFloat16Data(t *testing.T) {
	values := []float16.Float16{
		float16.Fromfloat32(0.5),
		float16.Fromfloat32(-1.25),
		float16.Fromfloat32(3.0),
	}
	b := FromFlatData(values, 3)
	defer b.Release()
	assert.Equal(t, etypes.Of(dtypes.Float16), b.Type())
	assert.Equal(t, 2, b.Type().Bytes())
	ConstFlatData(b, func(flat []float16.Float16) {
		assert.Equal(t, float32(-1.25), flat[1].Float32())
	})
}

func TestNamesAndArgument(t *testing.T) {
	b1 := New(etypes.Of(dtypes.Float32), 4)
	b2 := New(etypes.Of(dtypes.Float32), 4)
	defer b1.Release()
	defer b2.Release()
	assert.NotEqual(t, b1.Name(), b2.Name(), "auto-generated names are unique")
	assert.True(t, b1.SameAs(b1))
	assert.False(t, b1.SameAs(b2))

	named := NewNamed("input", etypes.Of(dtypes.Int64), 10)
	defer named.Release()
	arg := named.Argument()
	assert.Equal(t, backends.Argument{Name: "input", IsBuffer: true, Type: etypes.Of(dtypes.Int64)}, arg)
}

func TestString(t *testing.T) {
	var undef Buffer
	assert.Equal(t, "Buffer<undefined>", undef.String())
	b := NewNamed("weights", etypes.Of(dtypes.Float32), 3, 4)
	defer b.Release()
	assert.Equal(t, "Buffer<weights>(Float32)[3 4]", b.String())
}
