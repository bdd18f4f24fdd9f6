// Package bench times a serial CPU elementwise sum against the same sum
// compiled for an accelerator.
package bench

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxnlabs/vecbench/internal/gpu"
	"github.com/fxnlabs/vecbench/internal/metrics"
	"go.uber.org/zap"
)

var ErrOutputMismatch = errors.New("accelerator output differs from CPU output")

type Config struct {
	NumElements   int
	FillValue     float32
	VerifyOutputs bool
}

// Compiler builds an elementwise kernel for some device. *gpu.Manager
// satisfies it.
type Compiler interface {
	Compile(op gpu.ElementwiseOp) (gpu.Kernel, error)
}

// Vectors is the benchmark input: two sequences of identical length.
type Vectors struct {
	A, B []float32
}

// NewVectors allocates two vectors of n elements, every element set to fill.
func NewVectors(n int, fill float32) (Vectors, error) {
	if n < 1 {
		return Vectors{}, fmt.Errorf("element count must be positive, got %d", n)
	}
	v := Vectors{A: make([]float32, n), B: make([]float32, n)}
	for i := range v.A {
		v.A[i] = fill
		v.B[i] = fill
	}
	return v, nil
}

// VectorAddCPU is the reference implementation: one index at a time on the
// calling goroutine, with no vectorized helpers. b must be at least as long
// as a.
func VectorAddCPU(a, b []float32) []float32 {
	c := make([]float32, len(a))
	for i := 0; i < len(a); i++ {
		c[i] = a[i] + b[i]
	}
	return c
}

// Timing is one benchmark sample.
type Timing struct {
	Elements int
	CPU      time.Duration
	GPU      time.Duration
	Device   gpu.DeviceInfo
	Verified bool
}

// Speedup is CPU time over accelerator time, 0 when the accelerator time is 0.
func (t Timing) Speedup() float64 {
	if t.GPU <= 0 {
		return 0
	}
	return t.CPU.Seconds() / t.GPU.Seconds()
}

type Harness struct {
	cfg      Config
	compiler Compiler
	log      *zap.Logger
}

func NewHarness(cfg Config, compiler Compiler, log *zap.Logger) *Harness {
	return &Harness{cfg: cfg, compiler: compiler, log: log}
}

// Run compiles the accelerator kernel, then times the CPU path and the
// accelerator path once each. Outputs are compared only after both timings
// have been taken.
func (h *Harness) Run() (Timing, error) {
	vectors, err := NewVectors(h.cfg.NumElements, h.cfg.FillValue)
	if err != nil {
		return Timing{}, err
	}

	kernel, err := h.compiler.Compile(gpu.OpAdd)
	if err != nil {
		return Timing{}, fmt.Errorf("failed to compile accelerator kernel: %w", err)
	}
	timing := Timing{Elements: h.cfg.NumElements, Device: kernel.Device()}

	h.log.Info("Running CPU vector add", zap.Int("elements", h.cfg.NumElements))
	start := time.Now()
	cpuOut := VectorAddCPU(vectors.A, vectors.B)
	timing.CPU = time.Since(start)

	h.log.Info("Running accelerator vector add",
		zap.Int("elements", h.cfg.NumElements),
		zap.String("device", timing.Device.Path()),
		zap.String("backend", string(timing.Device.Kind)))
	start = time.Now()
	gpuOut, err := kernel.Launch(vectors.A, vectors.B)
	timing.GPU = time.Since(start)
	if err != nil {
		return Timing{}, fmt.Errorf("accelerator vector add failed on %s: %w", timing.Device.Path(), err)
	}

	if h.cfg.VerifyOutputs {
		if diff := gpu.MaxAbsDiff(cpuOut, gpuOut); diff != 0 {
			h.log.Error("Output verification failed", zap.Float64("max_abs_diff", diff))
			return Timing{}, fmt.Errorf("%w: max abs diff %g", ErrOutputMismatch, diff)
		}
		timing.Verified = true
	}

	h.record(timing)
	h.log.Info("Vector add benchmark completed",
		zap.Duration("cpu_time", timing.CPU),
		zap.Duration("gpu_time", timing.GPU),
		zap.Float64("speedup", timing.Speedup()),
		zap.Bool("verified", timing.Verified))
	return timing, nil
}

func (h *Harness) record(t Timing) {
	metrics.BenchmarkElements.Set(float64(t.Elements))
	metrics.BenchmarkDuration.WithLabelValues(metrics.PathCPU).Set(t.CPU.Seconds())
	metrics.BenchmarkDuration.WithLabelValues(metrics.PathGPU).Set(t.GPU.Seconds())
	metrics.BenchmarkSpeedup.Set(t.Speedup())
	metrics.BenchmarkBackend.WithLabelValues(string(t.Device.Kind)).Inc()
}

// Report prints the two timing lines.
func Report(w io.Writer, t Timing) error {
	if _, err := fmt.Fprintf(w, "CPU function took %f seconds.\n", t.CPU.Seconds()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "GPU function took %f seconds.\n", t.GPU.Seconds())
	return err
}
