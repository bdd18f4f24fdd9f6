package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// EmulatedBackend is an accelerator device emulated on the host. It has its
// own memory pool and runs kernels over a grid of thread blocks, so device
// enumeration, memory growth and kernel launches behave like a real GPU on
// machines that have none.
type EmulatedBackend struct {
	logger *zap.Logger
	id     int
	launch LaunchConfig
	memory *MemoryPool

	mu          sync.Mutex
	initialized bool
	growth      bool
}

// NewEmulatedBackend creates device id with the given memory capacity in
// bytes. Like a real GPU runtime it reserves all of it on Initialize unless
// memory growth is enabled first.
func NewEmulatedBackend(logger *zap.Logger, id int, capacity int64, blockSize int) *EmulatedBackend {
	memory := NewMemoryPool(capacity)
	memory.SetGrowth(false)
	return &EmulatedBackend{
		logger: logger.With(zap.Int("device", id)),
		id:     id,
		launch: LaunchConfig{BlockSize: blockSize, Workers: hostCores()},
		memory: memory,
	}
}

func (e *EmulatedBackend) IsAvailable() bool {
	return true
}

func (e *EmulatedBackend) SetMemoryGrowth(enable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return fmt.Errorf("%s: %w", e.path(), ErrDeviceInitialized)
	}
	e.growth = enable
	e.memory.SetGrowth(enable)
	return nil
}

func (e *EmulatedBackend) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	e.memory.Reserve()
	e.initialized = true

	stats := e.memory.Stats()
	e.logger.Info("Emulated device initialized",
		zap.String("device_path", e.path()),
		zap.Bool("memory_growth", e.growth),
		zap.Int64("reserved_mb", stats.Reserved/(1<<20)),
		zap.Int64("capacity_mb", stats.Capacity/(1<<20)))
	return nil
}

func (e *EmulatedBackend) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	e.memory.Release()
	e.initialized = false
	return nil
}

func (e *EmulatedBackend) GetDeviceInfo() DeviceInfo {
	e.mu.Lock()
	growth := e.growth
	e.mu.Unlock()
	stats := e.memory.Stats()
	return DeviceInfo{
		ID:                e.id,
		Kind:              KindEmulated,
		Name:              fmt.Sprintf("Emulated GPU %d", e.id),
		TotalMemory:       stats.Capacity,
		AvailableMemory:   stats.Capacity - stats.Used,
		ComputeCapability: fmt.Sprintf("emulated (block=%d, workers=%d)", e.launch.BlockSize, e.launch.Workers),
		DriverVersion:     runtime.Version(),
		Cores:             e.launch.Workers,
		MemoryGrowth:      growth,
	}
}

func (e *EmulatedBackend) MemoryStats() MemoryStats {
	return e.memory.Stats()
}

// MatrixMultiply runs one thread per output element.
func (e *EmulatedBackend) MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateMatrices(a, b, m, k, n); err != nil {
		return nil, err
	}

	bufs, err := e.upload(a, b, m*n)
	if err != nil {
		return nil, err
	}
	defer e.release(bufs...)
	dA, dB, dC := bufs[0].Float32(), bufs[1].Float32(), bufs[2].Float32()

	err = launchGrid(e.launch, m*n, func(start, end int) {
		for idx := start; idx < end; idx++ {
			i, j := idx/n, idx%n
			var sum float32
			for l := 0; l < k; l++ {
				sum += dA[i*k+l] * dB[l*n+j]
			}
			dC[idx] = sum
		}
	})
	if err != nil {
		return nil, err
	}

	result := make([]float32, m*n)
	copy(result, dC)
	return result, nil
}

func (e *EmulatedBackend) Compile(op ElementwiseOp) (Kernel, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if op.Fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOp, op.Name)
	}
	e.logger.Debug("compiled device kernel",
		zap.String("op", op.Name),
		zap.Int("block_size", e.launch.BlockSize))
	return &emulatedKernel{device: e, op: op}, nil
}

func (e *EmulatedBackend) ready() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return fmt.Errorf("%s: %w", e.path(), ErrNotInitialized)
	}
	return nil
}

func (e *EmulatedBackend) path() string {
	return fmt.Sprintf("/device:GPU:%d", e.id)
}

// upload allocates device buffers for a, b and an output of outLen values and
// copies the inputs host-to-device.
func (e *EmulatedBackend) upload(a, b []float32, outLen int) ([]Buffer, error) {
	var bufs []Buffer
	for _, n := range []int{len(a), len(b), outLen} {
		buf, err := e.memory.Alloc(n)
		if err != nil {
			e.release(bufs...)
			return nil, fmt.Errorf("%s: %w", e.path(), err)
		}
		bufs = append(bufs, buf)
	}
	copy(bufs[0].Float32(), a)
	copy(bufs[1].Float32(), b)
	return bufs, nil
}

func (e *EmulatedBackend) release(bufs ...Buffer) {
	for _, buf := range bufs {
		e.memory.Free(buf)
	}
}

type emulatedKernel struct {
	device *EmulatedBackend
	op     ElementwiseOp
}

func (k *emulatedKernel) Launch(a, b []float32) ([]float32, error) {
	if err := validateVectors(a, b); err != nil {
		return nil, err
	}
	if err := k.device.ready(); err != nil {
		return nil, err
	}

	bufs, err := k.device.upload(a, b, len(a))
	if err != nil {
		return nil, err
	}
	defer k.device.release(bufs...)
	dA, dB, dC := bufs[0].Float32(), bufs[1].Float32(), bufs[2].Float32()

	if err := launchGrid(k.device.launch, len(a), elementwise(k.op.Fn, dA, dB, dC)); err != nil {
		return nil, err
	}

	out := make([]float32, len(a))
	copy(out, dC)
	return out, nil
}

func (k *emulatedKernel) Device() DeviceInfo {
	return k.device.GetDeviceInfo()
}
