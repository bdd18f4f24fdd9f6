package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Path labels for BenchmarkDuration.
const (
	PathCPU = "cpu"
	PathGPU = "gpu"
)

var (
	// Probe Metrics
	DevicesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vecbench_devices_discovered",
		Help: "Number of accelerator devices found by the environment probe",
	})

	ProbeMatMulTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecbench_probe_matmul_total",
		Help: "Total number of probe matrix multiplications by device and result",
	}, []string{"device", "result"})

	// Vector Add Benchmark Metrics
	BenchmarkDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vecbench_vector_add_duration_seconds",
		Help: "Wall-clock duration of the last elementwise sum by execution path",
	}, []string{"path"})

	BenchmarkElements = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vecbench_vector_add_elements",
		Help: "Number of elements in each input vector of the last benchmark",
	})

	BenchmarkSpeedup = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vecbench_vector_add_speedup_ratio",
		Help: "CPU duration divided by accelerator duration for the last benchmark",
	})

	BenchmarkBackend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vecbench_vector_add_backend_total",
		Help: "Total number of accelerator-path runs by backend kind",
	}, []string{"backend"})

	// GPU Metrics
	GPUMemoryTotalBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vecbench_gpu_memory_total_bytes",
		Help: "Total memory of each accelerator device in bytes",
	}, []string{"device"})
)

// WriteTextfile writes every registered metric in the text exposition format,
// for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
