package gpu

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options controls device discovery and kernel placement.
type Options struct {
	// EmulatedDevices adds this many emulated accelerators after any CUDA
	// devices.
	EmulatedDevices int
	// EmulatedMemory is the capacity of each emulated device in bytes.
	EmulatedMemory int64
	// BlockSize is the number of threads per block for host and emulated
	// kernel launches.
	BlockSize int
	// RequireAccelerator makes Compile fail instead of falling back to the
	// host when no accelerator exists.
	RequireAccelerator bool
	// LogDevicePlacement logs the device every operation is placed on.
	LogDevicePlacement bool
}

// Manager owns the host backend and the accelerator devices, and tracks which
// device is bound for the current scope.
type Manager struct {
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	cpu     *CPUBackend
	devices []GPUBackend
	bound   []int
}

// NewManager discovers the accelerator devices. Accelerators are initialized
// lazily so that memory growth can still be configured after discovery.
func NewManager(logger *zap.Logger, opts Options) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BlockSize < 1 {
		opts.BlockSize = 256
	}

	m := &Manager{
		logger: logger,
		opts:   opts,
	}

	m.cpu = NewCPUBackend(logger, opts.BlockSize)
	if err := m.cpu.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize CPU backend: %w", err)
	}

	m.discover()
	return m, nil
}

func (m *Manager) discover() {
	for i := 0; i < cudaDeviceCount(); i++ {
		backend := NewCUDABackend(m.logger, i)
		if !backend.IsAvailable() {
			continue
		}
		m.devices = append(m.devices, backend)
	}
	for i := 0; i < m.opts.EmulatedDevices; i++ {
		m.devices = append(m.devices, NewEmulatedBackend(m.logger, len(m.devices), m.opts.EmulatedMemory, m.opts.BlockSize))
	}

	m.logger.Info("Device discovery completed",
		zap.Int("accelerators", len(m.devices)),
		zap.String("host", m.cpu.GetDeviceInfo().Name))
}

// Devices lists the accelerator devices. The host CPU is not included.
func (m *Manager) Devices() DeviceList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make(DeviceList, 0, len(m.devices))
	for _, d := range m.devices {
		list = append(list, d.GetDeviceInfo())
	}
	return list
}

func (m *Manager) DeviceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// Device returns accelerator id.
func (m *Manager) Device(id int) (GPUBackend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.device(id)
}

func (m *Manager) device(id int) (GPUBackend, error) {
	if id < 0 || id >= len(m.devices) {
		return nil, fmt.Errorf("%w: /device:GPU:%d (%d devices)", ErrUnknownDevice, id, len(m.devices))
	}
	return m.devices[id], nil
}

// CPU returns the host backend.
func (m *Manager) CPU() *CPUBackend {
	return m.cpu
}

// SetMemoryGrowth configures the allocation policy of accelerator id. It
// fails once the device has been initialized.
func (m *Manager) SetMemoryGrowth(id int, enable bool) error {
	backend, err := m.Device(id)
	if err != nil {
		return err
	}
	if err := backend.SetMemoryGrowth(enable); err != nil {
		return err
	}
	m.logger.Debug("Memory growth configured", zap.Int("device", id), zap.Bool("enabled", enable))
	return nil
}

// WithDevice binds accelerator id for the duration of fn. The previously
// bound device, if any, is restored when fn returns or panics.
func (m *Manager) WithDevice(id int, fn func(GPUBackend) error) error {
	m.mu.Lock()
	backend, err := m.device(id)
	if err == nil {
		err = backend.Initialize()
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.bound = append(m.bound, id)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.bound = m.bound[:len(m.bound)-1]
		m.mu.Unlock()
	}()

	m.logPlacement("bind", backend.GetDeviceInfo())
	return fn(backend)
}

// Current returns the bound accelerator, or the host backend outside any
// WithDevice scope.
func (m *Manager) Current() GPUBackend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.bound) == 0 {
		return m.cpu
	}
	return m.devices[m.bound[len(m.bound)-1]]
}

// GetBackend is kept for callers that only need the active backend.
func (m *Manager) GetBackend() GPUBackend {
	return m.Current()
}

// MatrixMultiply runs on the bound device
func (m *Manager) MatrixMultiply(a, b []float32, rows, k, n int) ([]float32, error) {
	backend := m.Current()
	m.logPlacement("MatMul", backend.GetDeviceInfo())
	return backend.MatrixMultiply(a, b, rows, k, n)
}

// Compile builds op for the bound accelerator, or the first accelerator when
// none is bound. Without accelerators the kernel is compiled for the host
// unless RequireAccelerator is set.
func (m *Manager) Compile(op ElementwiseOp) (Kernel, error) {
	backend, err := m.acceleratorForCompile()
	if err != nil {
		return nil, err
	}
	if backend == nil {
		m.logger.Warn("No accelerator available, compiling for host",
			zap.String("op", op.Name),
			zap.String("device", m.cpu.GetDeviceInfo().Path()))
		backend = m.cpu
	}
	if err := backend.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", backend.GetDeviceInfo().Path(), err)
	}

	kernel, err := backend.Compile(op)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %q for %s: %w", op.Name, backend.GetDeviceInfo().Path(), err)
	}
	m.logPlacement("Compile/"+op.Name, kernel.Device())
	return kernel, nil
}

func (m *Manager) acceleratorForCompile() (GPUBackend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case len(m.bound) > 0:
		return m.devices[m.bound[len(m.bound)-1]], nil
	case len(m.devices) > 0:
		return m.devices[0], nil
	case m.opts.RequireAccelerator:
		return nil, ErrNoAccelerator
	default:
		return nil, nil
	}
}

// IsGPUAvailable returns true if at least one accelerator was discovered
func (m *Manager) IsGPUAvailable() bool {
	return m.DeviceCount() > 0
}

// GetBackendType describes the backend Compile would use by default.
func (m *Manager) GetBackendType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.devices) == 0 {
		return string(KindCPU)
	}
	return string(m.devices[0].GetDeviceInfo().Kind)
}

// Cleanup releases every device. All devices are attempted even if one fails.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, d := range m.devices {
		err = multierr.Append(err, d.Cleanup())
	}
	err = multierr.Append(err, m.cpu.Cleanup())
	m.bound = nil
	return err
}

func (m *Manager) logPlacement(op string, info DeviceInfo) {
	if !m.opts.LogDevicePlacement {
		return
	}
	m.logger.Info("Device placement", zap.String("op", op), zap.String("device", info.Path()))
}
