//go:build !cuda

package gpu

import "go.uber.org/zap"

// CUDABackend is a stub type when built without the cuda tag
type CUDABackend struct {
	logger *zap.Logger
	id     int
}

func cudaDeviceCount() int {
	return 0
}

func NewCUDABackend(logger *zap.Logger, id int) *CUDABackend {
	return &CUDABackend{logger: logger, id: id}
}

func (c *CUDABackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	return nil, ErrBackendNotAvailable
}

func (c *CUDABackend) Compile(op ElementwiseOp) (Kernel, error) {
	return nil, ErrBackendNotAvailable
}

func (c *CUDABackend) SetMemoryGrowth(bool) error {
	return ErrBackendNotAvailable
}

func (c *CUDABackend) GetDeviceInfo() DeviceInfo {
	return DeviceInfo{ID: c.id, Kind: KindCUDA, Name: "CUDA not available"}
}

func (c *CUDABackend) IsAvailable() bool {
	return false
}

func (c *CUDABackend) Initialize() error {
	return ErrBackendNotAvailable
}

func (c *CUDABackend) Cleanup() error {
	return nil
}
