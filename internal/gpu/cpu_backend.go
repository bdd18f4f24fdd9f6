package gpu

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// CPUBackend implements GPUBackend on the host. It is the fallback device
// when no accelerator is present.
type CPUBackend struct {
	logger      *zap.Logger
	launch      LaunchConfig
	initialized bool
}

// NewCPUBackend creates a new CPU backend instance
func NewCPUBackend(logger *zap.Logger, blockSize int) *CPUBackend {
	return &CPUBackend{
		logger: logger,
		launch: LaunchConfig{BlockSize: blockSize, Workers: hostCores()},
	}
}

// Initialize prepares the CPU backend for use
func (c *CPUBackend) Initialize() error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.logger.Debug("CPU backend initialized", zap.Int("cores", c.launch.Workers))
	return nil
}

// Cleanup releases any resources (none for CPU backend)
func (c *CPUBackend) Cleanup() error {
	c.initialized = false
	return nil
}

// IsAvailable checks if the backend is available (always true for CPU)
func (c *CPUBackend) IsAvailable() bool {
	return true
}

// SetMemoryGrowth is accepted and ignored: host memory is managed by the Go
// runtime.
func (c *CPUBackend) SetMemoryGrowth(bool) error {
	return nil
}

// GetDeviceInfo returns device information for CPU
func (c *CPUBackend) GetDeviceInfo() DeviceInfo {
	total, available := systemMemory()
	return DeviceInfo{
		Kind:              KindCPU,
		Name:              hostDeviceName(),
		TotalMemory:       total,
		AvailableMemory:   available,
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
		Cores:             c.launch.Workers,
		MemoryGrowth:      true,
	}
}

// MatrixMultiply performs matrix multiplication using gonum's float32 BLAS
// Implements C = A * B where A is m×k, B is k×n, and C is m×n
func (c *CPUBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if !c.initialized {
		return nil, fmt.Errorf("CPU %w", ErrNotInitialized)
	}
	if err := validateMatrices(a, b, m, k, n); err != nil {
		return nil, err
	}

	result := make([]float32, m*n)
	if m == 0 || n == 0 || k == 0 {
		return result, nil
	}

	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: result})

	return result, nil
}

// Compile returns a kernel that spreads op over the host cores using the
// same grid/block launch as an accelerator.
func (c *CPUBackend) Compile(op ElementwiseOp) (Kernel, error) {
	if !c.initialized {
		return nil, fmt.Errorf("CPU %w", ErrNotInitialized)
	}
	if op.Fn == nil {
		return nil, fmt.Errorf("%w: %q has no host implementation", ErrUnsupportedOp, op.Name)
	}
	c.logger.Debug("compiled host kernel",
		zap.String("op", op.Name),
		zap.Int("block_size", c.launch.BlockSize),
		zap.Int("workers", c.launch.Workers))
	return &hostKernel{op: op, launch: c.launch, info: c.GetDeviceInfo()}, nil
}

type hostKernel struct {
	op     ElementwiseOp
	launch LaunchConfig
	info   DeviceInfo
}

func (k *hostKernel) Launch(a, b []float32) ([]float32, error) {
	if err := validateVectors(a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	if err := launchGrid(k.launch, len(a), elementwise(k.op.Fn, a, b, out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *hostKernel) Device() DeviceInfo {
	return k.info
}
