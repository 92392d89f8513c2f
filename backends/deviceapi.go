package backends

// DeviceAPI identifies the execution domain under which a piece of the
// statement tree runs, and therefore where a buffer's storage is valid.
// Crossing device APIs requires real data movement.
type DeviceAPI int

//go:generate stringer -type=DeviceAPI

const (
	// DeviceNone means "inherit": a loop with DeviceNone runs under the
	// device API of its enclosing loop. The root of a statement tree runs
	// on DeviceHost.
	DeviceNone DeviceAPI = iota

	// DeviceHost is plain host execution.
	DeviceHost

	// DeviceDefaultGPU is whatever single accelerator the backend
	// targets. The core never interprets it beyond inequality with
	// DeviceHost.
	DeviceDefaultGPU

	// DeviceCUDA, DeviceOpenCL and DeviceMetal are concrete accelerator
	// APIs a backend may pin a loop nest to.
	DeviceCUDA
	DeviceOpenCL
	DeviceMetal
)

// Inherit resolves d against the enclosing device API: DeviceNone takes
// the parent's value, anything else stands.
func (d DeviceAPI) Inherit(parent DeviceAPI) DeviceAPI {
	if d == DeviceNone {
		return parent
	}
	return d
}
