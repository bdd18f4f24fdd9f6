//go:build cuda

package gpu

/*
#cgo CFLAGS: -I${SRCDIR}/../../cuda
#cgo LDFLAGS: -L${SRCDIR}/../../cuda -lvecbench_cuda -lcudart -lcublas
#include "vecbench_cuda.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// CUDABackend implements GPUBackend for one NVIDIA device
type CUDABackend struct {
	logger *zap.Logger
	id     int

	mu          sync.Mutex
	initialized bool
	growth      bool
	deviceInfo  DeviceInfo
}

// cudaDeviceCount returns the number of visible CUDA devices, 0 when the
// driver or runtime is missing.
func cudaDeviceCount() int {
	return int(C.vb_cuda_device_count())
}

// NewCUDABackend creates a backend bound to CUDA device id
func NewCUDABackend(logger *zap.Logger, id int) *CUDABackend {
	backend := &CUDABackend{
		logger: logger.With(zap.Int("device", id)),
		id:     id,
	}

	var info C.VbCudaDeviceInfo
	if result := C.vb_cuda_get_device_info(C.int(id), &info); result != C.cudaSuccess {
		backend.logger.Warn("CUDA device info not available", zap.String("error", cudaErrorString(result)))
	} else {
		backend.deviceInfo = backend.convertInfo(&info)
	}
	return backend
}

func (c *CUDABackend) convertInfo(info *C.VbCudaDeviceInfo) DeviceInfo {
	return DeviceInfo{
		ID:                c.id,
		Kind:              KindCUDA,
		Name:              C.GoString(&info.name[0]),
		TotalMemory:       int64(info.total_memory),
		AvailableMemory:   int64(info.free_memory),
		ComputeCapability: fmt.Sprintf("%d.%d", int(info.major), int(info.minor)),
		DriverVersion:     formatCUDAVersion(int(info.driver_version)),
		CUDAVersion:       formatCUDAVersion(int(info.runtime_version)),
		Cores:             int(info.multiprocessor_count),
	}
}

// IsAvailable checks if the device answered the info query
func (c *CUDABackend) IsAvailable() bool {
	return c.deviceInfo.Name != ""
}

func (c *CUDABackend) SetMemoryGrowth(enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return fmt.Errorf("/device:GPU:%d: %w", c.id, ErrDeviceInitialized)
	}
	c.growth = enable
	c.deviceInfo.MemoryGrowth = enable
	return nil
}

// Initialize creates the CUDA context. Without memory growth the free device
// memory is reserved in one allocation.
func (c *CUDABackend) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.IsAvailable() {
		return fmt.Errorf("CUDA device %d: %w", c.id, ErrBackendNotAvailable)
	}
	if c.initialized {
		return nil
	}

	reserveAll := C.int(1)
	if c.growth {
		reserveAll = 0
	}
	if result := C.vb_cuda_init(C.int(c.id), reserveAll); result != C.cudaSuccess {
		return fmt.Errorf("failed to initialize CUDA device %d: %v", c.id, cudaErrorString(result))
	}

	c.initialized = true
	c.logger.Info("CUDA backend initialized",
		zap.String("device_name", c.deviceInfo.Name),
		zap.String("compute_capability", c.deviceInfo.ComputeCapability),
		zap.Bool("memory_growth", c.growth),
		zap.Float64("total_memory_gb", float64(c.deviceInfo.TotalMemory)/(1<<30)))
	return nil
}

// Cleanup releases CUDA resources
func (c *CUDABackend) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}

	if result := C.vb_cuda_cleanup(C.int(c.id)); result != C.cudaSuccess {
		return fmt.Errorf("failed to cleanup CUDA device %d: %v", c.id, cudaErrorString(result))
	}
	c.initialized = false
	return nil
}

// GetDeviceInfo returns information about the CUDA device
func (c *CUDABackend) GetDeviceInfo() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceInfo
}

// MatrixMultiply performs matrix multiplication with cuBLAS
func (c *CUDABackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := validateMatrices(a, b, m, k, n); err != nil {
		return nil, err
	}

	result := make([]float32, m*n)
	if len(result) == 0 || k == 0 {
		return result, nil
	}

	c.logger.Debug("Performing CUDA matrix multiplication",
		zap.Int("m", m), zap.Int("k", k), zap.Int("n", n))

	cudaResult := C.vb_cuda_matmul(C.int(c.id),
		(*C.float)(unsafe.Pointer(&a[0])),
		(*C.float)(unsafe.Pointer(&b[0])),
		(*C.float)(unsafe.Pointer(&result[0])),
		C.int(m), C.int(n), C.int(k))
	if cudaResult != C.cudaSuccess {
		return nil, fmt.Errorf("CUDA matrix multiplication failed: %v", cudaErrorString(cudaResult))
	}
	return result, nil
}

// Compile selects the native kernel for op. Only operations with a kernel in
// vecbench_cuda.cu can run on the device.
func (c *CUDABackend) Compile(op ElementwiseOp) (Kernel, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if op.Name != OpAdd.Name {
		return nil, fmt.Errorf("%w: %q on CUDA", ErrUnsupportedOp, op.Name)
	}
	return &cudaKernel{device: c}, nil
}

func (c *CUDABackend) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return fmt.Errorf("CUDA device %d: %w", c.id, ErrNotInitialized)
	}
	return nil
}

type cudaKernel struct {
	device *CUDABackend
}

func (k *cudaKernel) Launch(a, b []float32) ([]float32, error) {
	if err := validateVectors(a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	if len(a) == 0 {
		return out, nil
	}
	result := C.vb_cuda_vector_add(C.int(k.device.id),
		(*C.float)(unsafe.Pointer(&a[0])),
		(*C.float)(unsafe.Pointer(&b[0])),
		(*C.float)(unsafe.Pointer(&out[0])),
		C.int(len(a)))
	if result != C.cudaSuccess {
		return nil, fmt.Errorf("CUDA vector add failed: %v", cudaErrorString(result))
	}
	return out, nil
}

func (k *cudaKernel) Device() DeviceInfo {
	return k.device.GetDeviceInfo()
}

// cudaErrorString converts CUDA error code to string
func cudaErrorString(err C.cudaError_t) string {
	return C.GoString(C.vb_cuda_error_string(err))
}

// formatCUDAVersion renders CUDA's 1000*major + 10*minor encoding.
func formatCUDAVersion(v int) string {
	if v == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d.%d", v/1000, (v%1000)/10)
}
