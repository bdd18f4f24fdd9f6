package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newCPUBackend(t *testing.T, blockSize int) *CPUBackend {
	t.Helper()
	backend := NewCPUBackend(zaptest.NewLogger(t), blockSize)
	require.NoError(t, backend.Initialize())
	t.Cleanup(func() { _ = backend.Cleanup() })
	return backend
}

func TestCPUBackend_Lifecycle(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t), 256)
	assert.True(t, backend.IsAvailable())

	_, err := backend.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, backend.Initialize())
	require.NoError(t, backend.Initialize())
	assert.NoError(t, backend.SetMemoryGrowth(false))

	info := backend.GetDeviceInfo()
	assert.Equal(t, KindCPU, info.Kind)
	assert.Equal(t, "/device:CPU:0", info.Path())
	assert.Contains(t, info.Name, "CPU")
	assert.Positive(t, info.Cores)

	require.NoError(t, backend.Cleanup())
	_, err = backend.Compile(OpAdd)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestCPUBackend_MatrixMultiply(t *testing.T) {
	backend := newCPUBackend(t, 256)

	testCases := []struct {
		name    string
		a, b    []float32
		m, k, n int
		want    []float32
	}{
		{
			name: "environment check product",
			a:    []float32{1, 2, 3, 4, 5, 6},
			b:    []float32{1, 2, 3, 4, 5, 6},
			m:    2,
			k:    3,
			n:    2,
			want: []float32{22, 28, 49, 64},
		},
		{
			name: "2x3 by 3x4",
			a:    []float32{1, 2, 3, 4, 5, 6},
			b:    []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			m:    2,
			k:    3,
			n:    4,
			want: []float32{38, 44, 50, 56, 83, 98, 113, 128},
		},
		{
			name: "empty inner dimension",
			m:    2,
			k:    0,
			n:    2,
			want: []float32{0, 0, 0, 0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := backend.MatrixMultiply(tc.a, tc.b, tc.m, tc.k, tc.n)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCPUBackend_MatrixMultiplySizeMismatch(t *testing.T) {
	backend := newCPUBackend(t, 256)

	testCases := []struct {
		name    string
		a, b    []float32
		wantErr string
	}{
		{"short A", make([]float32, 5), make([]float32, 6), "matrix A size mismatch"},
		{"short B", make([]float32, 6), make([]float32, 5), "matrix B size mismatch"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := backend.MatrixMultiply(tc.a, tc.b, 2, 3, 2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCPUBackend_Compile(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t), 4)
	require.NoError(t, backend.Initialize())
	defer backend.Cleanup()

	kernel, err := backend.Compile(OpAdd)
	require.NoError(t, err)
	assert.Equal(t, KindCPU, kernel.Device().Kind)

	testCases := []struct {
		name string
		a, b []float32
		want []float32
	}{
		{name: "empty", a: []float32{}, b: []float32{}, want: []float32{}},
		{name: "single", a: []float32{1.5}, b: []float32{2.5}, want: []float32{4}},
		{name: "partial last block", a: []float32{1, 2, 3, 4, 5, 6}, b: []float32{6, 5, 4, 3, 2, 1}, want: []float32{7, 7, 7, 7, 7, 7}},
		{name: "constants", a: []float32{1, 1, 1, 1}, b: []float32{1, 1, 1, 1}, want: []float32{2, 2, 2, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := kernel.Launch(tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}

	t.Run("length mismatch", func(t *testing.T) {
		_, err := kernel.Launch([]float32{1, 2}, []float32{1})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}

func TestCPUBackend_CompileErrors(t *testing.T) {
	backend := NewCPUBackend(zaptest.NewLogger(t), 256)

	_, err := backend.Compile(OpAdd)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, backend.Initialize())
	_, err = backend.Compile(ElementwiseOp{Name: "native-only"})
	assert.ErrorIs(t, err, ErrUnsupportedOp)
}
