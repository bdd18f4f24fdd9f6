package gpu

import (
	"errors"
	"fmt"
)

var (
	ErrNoAccelerator       = errors.New("no accelerator device available")
	ErrUnknownDevice       = errors.New("unknown device")
	ErrNotInitialized      = errors.New("backend not initialized")
	ErrDeviceInitialized   = errors.New("memory growth cannot be modified after device has been initialized")
	ErrLengthMismatch      = errors.New("input length mismatch")
	ErrOutOfMemory         = errors.New("device out of memory")
	ErrUnsupportedOp       = errors.New("operation has no kernel for this device")
	ErrBackendNotAvailable = errors.New("backend not available")
)

// DeviceKind identifies the backend family of a device.
type DeviceKind string

const (
	KindCPU      DeviceKind = "cpu"
	KindEmulated DeviceKind = "emulated"
	KindCUDA     DeviceKind = "cuda"
)

// DeviceInfo contains information about a compute device
type DeviceInfo struct {
	ID                int        `json:"id"`
	Kind              DeviceKind `json:"kind"`
	Name              string     `json:"name"`
	TotalMemory       int64      `json:"totalMemory"`     // in bytes
	AvailableMemory   int64      `json:"availableMemory"` // in bytes
	ComputeCapability string     `json:"computeCapability"`
	DriverVersion     string     `json:"driverVersion"`
	CUDAVersion       string     `json:"cudaVersion,omitempty"`
	Cores             int        `json:"cores"`
	MemoryGrowth      bool       `json:"memoryGrowth"`
}

// Path is the logical device name used in placement logs and reports,
// e.g. "/device:GPU:0".
func (d DeviceInfo) Path() string {
	if d.Kind == KindCPU {
		return "/device:CPU:0"
	}
	return fmt.Sprintf("/device:GPU:%d", d.ID)
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, %s, %d MiB)", d.Path(), d.Name, d.Kind, d.TotalMemory/(1<<20))
}

// DeviceList prints like a list literal so an empty probe still reports "[]".
type DeviceList []DeviceInfo

func (l DeviceList) String() string {
	s := "["
	for i, d := range l {
		if i > 0 {
			s += ", "
		}
		s += d.String()
	}
	return s + "]"
}

// ElementwiseOp is a scalar binary function that a backend compiles into a
// kernel applied to every index of two equal-length vectors. Name selects the
// native kernel on backends that cannot run Go code (CUDA).
type ElementwiseOp struct {
	Name string
	Fn   func(a, b float32) float32
}

// OpAdd is the elementwise sum out[i] = a[i] + b[i].
var OpAdd = ElementwiseOp{
	Name: "add",
	Fn:   func(a, b float32) float32 { return a + b },
}

// Kernel is a compiled elementwise operation bound to one device.
type Kernel interface {
	// Launch applies the operation to every index of a and b and returns the
	// result in host memory. a and b must have the same length.
	Launch(a, b []float32) ([]float32, error)

	// Device reports where the kernel executes.
	Device() DeviceInfo
}

// GPUBackend defines the interface for compute backends
// This interface allows for multiple implementations (CUDA, emulated, CPU)
// and provides a consistent API for the probe and the benchmark.
//
// Implementation notes:
// - Backends should handle memory management internally
// - Fallback to CPU is handled by the Manager, not the backend
// - SetMemoryGrowth must be called before Initialize
type GPUBackend interface {
	// MatrixMultiply performs matrix multiplication C = A * B
	// where A is m×k, B is k×n, and C is m×n, all in row-major order.
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)

	// Compile builds a kernel for op on this device. It is called once,
	// before any timing, and the returned kernel may be launched repeatedly.
	Compile(op ElementwiseOp) (Kernel, error)

	// SetMemoryGrowth selects between reserving device memory incrementally
	// (true) and reserving it all on Initialize (false).
	SetMemoryGrowth(enable bool) error

	// GetDeviceInfo returns information about the device
	GetDeviceInfo() DeviceInfo

	// IsAvailable checks if the backend is available for use
	// This should perform a quick check without heavy initialization
	IsAvailable() bool

	// Initialize prepares the backend for use. Calling it twice is a no-op.
	Initialize() error

	// Cleanup releases any resources held by the backend
	Cleanup() error
}

func validateMatrices(a, b []float32, m, k, n int) error {
	if len(a) != m*k {
		return fmt.Errorf("matrix A size mismatch: expected %d, got %d", m*k, len(a))
	}
	if len(b) != k*n {
		return fmt.Errorf("matrix B size mismatch: expected %d, got %d", k*n, len(b))
	}
	return nil
}

func validateVectors(a, b []float32) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	return nil
}
