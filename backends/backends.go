// Package backends defines the boundary between the compiler core and the
// device backends that compile and execute pipelines.
//
// The core never contains device-specific allocation or transfer logic;
// it only orchestrates hooks supplied by whatever backend compiled the
// pipeline. A backend hands the runtime an opaque Module carrying a
// DataInterface with three operations: copy a buffer to the host, copy it
// to the device, and free its device-side allocation. A backend that
// never touches a device simply provides no DataInterface, and every
// synchronization call on its buffers is a no-op.
//
// RawBuffer is the fixed-layout descriptor passed across the boundary
// into generated code; it must stay bit-compatible with the structure
// compiled entry points expect.
package backends

import (
	"github.com/arrayflow/arrayflow/types/etypes"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// MaxDimensions is the maximum number of dimensions a buffer can have.
const MaxDimensions = 4

// RawBuffer is the low-level buffer descriptor shared with generated
// code. Its field layout is part of the ABI: host address, 64-bit device
// handle, element byte size, four extents, four strides, four mins, and
// the two dirty flags.
//
// A RawBuffer is constructible standalone for interop with externally
// produced buffers; see buffers.FromRaw.
type RawBuffer struct {
	Dev       uint64
	Host      *byte
	Extent    [MaxDimensions]int32
	Stride    [MaxDimensions]int32
	Min       [MaxDimensions]int32
	ElemSize  int32
	HostDirty bool
	DevDirty  bool
}

// DataInterface is the API a backend provides to synchronize a buffer
// between host and device memory.
//
// The ctx argument is the backend's execution context; it is nil in the
// embedded/just-in-time execution mode this runtime targets.
type DataInterface interface {
	// CopyToHost transfers the device-side contents of buf into its host
	// allocation.
	CopyToHost(ctx any, buf *RawBuffer)

	// CopyToDevice transfers the host-side contents of buf onto the
	// device.
	CopyToDevice(ctx any, buf *RawBuffer)

	// FreeDeviceBuffer releases the device-side allocation of buf, if
	// any.
	FreeDeviceBuffer(ctx any, buf *RawBuffer)
}

// NotImplemented is a DataInterface for backends with no device memory:
// every operation is a no-op. Buffers that never touch a device must not
// pay any synchronization cost or fail.
type NotImplemented struct{}

func (NotImplemented) CopyToHost(ctx any, buf *RawBuffer)       {}
func (NotImplemented) CopyToDevice(ctx any, buf *RawBuffer)     {}
func (NotImplemented) FreeDeviceBuffer(ctx any, buf *RawBuffer) {}

// Module is a handle to one compiled pipeline. Buffers realized by a
// compiled pipeline keep a reference to its Module: the module may hold
// internal state that tells the runtime how to use the buffer — in
// particular, if the buffer was written on a device and not copied back
// yet, only the module knows how to do that.
type Module struct {
	// ID identifies the module in logs and debug output.
	ID string

	// Entrypoint is the backend's compiled entry point, opaque to the
	// core; argument marshalling happens in the backend.
	Entrypoint any

	// Data is the synchronization interface for buffers realized by this
	// module, or nil if the backend has no device memory.
	Data DataInterface
}

// NewModule returns a Module with a fresh unique ID.
func NewModule(entrypoint any, data DataInterface) *Module {
	m := &Module{
		ID:         uuid.NewString(),
		Entrypoint: entrypoint,
		Data:       data,
	}
	klog.V(2).Infof("backends: new compiled module %s (device data interface: %v)", m.ID, data != nil)
	return m
}

// Argument describes one parameter of a compiled entry point's call
// signature: either a buffer or a scalar.
type Argument struct {
	Name     string
	IsBuffer bool
	Type     etypes.ElemType
}
