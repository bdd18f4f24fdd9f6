// Package probe checks that the accelerator runtime is usable: it reports the
// runtime version, lists devices, configures memory growth and runs a small
// matrix multiplication on every device.
package probe

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/fxnlabs/vecbench/internal/gpu"
	"github.com/fxnlabs/vecbench/internal/metrics"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	Separator        = "\n=================================\n"
	InstalledMessage = "GPU runtime installed properly !!"
)

var ErrMatMulMismatch = errors.New("device matrix multiplication result differs from host reference")

// Probe matrices: a is 2x3, b is 3x2, row-major.
var (
	matA = []float32{1, 2, 3, 4, 5, 6}
	matB = []float32{1, 2, 3, 4, 5, 6}
)

const (
	matM = 2
	matK = 3
	matN = 2
)

// DeviceManager is the part of *gpu.Manager the probe uses.
type DeviceManager interface {
	Devices() gpu.DeviceList
	SetMemoryGrowth(id int, enable bool) error
	WithDevice(id int, fn func(gpu.GPUBackend) error) error
	MatrixMultiply(a, b []float32, m, k, n int) ([]float32, error)
}

type Config struct {
	MemoryGrowth bool
}

// Run writes the probe report to w. Zero devices is not an error: the device
// list prints as [] and no multiplication runs.
func Run(w io.Writer, manager DeviceManager, cfg Config, log *zap.Logger) error {
	fmt.Fprintf(w, "Go runtime %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprint(w, Separator+"\n")

	devices := manager.Devices()
	fmt.Fprintln(w, devices)
	metrics.DevicesDiscovered.Set(float64(len(devices)))
	log.Info("Accelerator devices listed", zap.Int("count", len(devices)))

	for _, d := range devices {
		metrics.GPUMemoryTotalBytes.WithLabelValues(d.Path()).Set(float64(d.TotalMemory))
		if !cfg.MemoryGrowth {
			continue
		}
		if err := manager.SetMemoryGrowth(d.ID, true); err != nil {
			return fmt.Errorf("failed to enable memory growth on %s: %w", d.Path(), err)
		}
	}

	reference := hostReference()
	for _, d := range devices {
		var result *mat.Dense
		err := manager.WithDevice(d.ID, func(gpu.GPUBackend) error {
			var err error
			result, err = multiply(manager, log)
			return err
		})
		if err != nil {
			metrics.ProbeMatMulTotal.WithLabelValues(d.Path(), "error").Inc()
			return fmt.Errorf("probe matrix multiplication failed on %s: %w", d.Path(), err)
		}

		fmt.Fprintf(w, "%s\n%v\n", d.Path(), mat.Formatted(result))
		if !mat.EqualApprox(result, reference, 1e-6) {
			metrics.ProbeMatMulTotal.WithLabelValues(d.Path(), "mismatch").Inc()
			log.Error("Probe result mismatch",
				zap.String("device", d.Path()),
				zap.Any("got", result.RawMatrix().Data),
				zap.Any("want", reference.RawMatrix().Data))
			return fmt.Errorf("%w on %s", ErrMatMulMismatch, d.Path())
		}
		metrics.ProbeMatMulTotal.WithLabelValues(d.Path(), "ok").Inc()
	}

	fmt.Fprint(w, InstalledMessage+"\n\n")
	return nil
}

// multiply runs the probe product on whatever device is bound.
func multiply(manager DeviceManager, log *zap.Logger) (*mat.Dense, error) {
	start := time.Now()
	flat, err := manager.MatrixMultiply(matA, matB, matM, matK, matN)
	if err != nil {
		return nil, err
	}
	log.Debug("Probe matrix multiplication completed", zap.Duration("compute_time", time.Since(start)))
	if len(flat) != matM*matN {
		return nil, fmt.Errorf("result size mismatch: expected %d, got %d", matM*matN, len(flat))
	}
	return mat.NewDense(matM, matN, gpu.Float32ToFloat64(flat)), nil
}

func hostReference() *mat.Dense {
	a := mat.NewDense(matM, matK, gpu.Float32ToFloat64(matA))
	b := mat.NewDense(matK, matN, gpu.Float32ToFloat64(matB))
	var c mat.Dense
	c.Mul(a, b)
	return &c
}
