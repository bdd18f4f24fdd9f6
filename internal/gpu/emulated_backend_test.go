package gpu

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmulatedBackend_Lifecycle(t *testing.T) {
	backend := NewEmulatedBackend(zaptest.NewLogger(t), 3, 4<<20, 128)

	assert.True(t, backend.IsAvailable())
	info := backend.GetDeviceInfo()
	assert.Equal(t, 3, info.ID)
	assert.Equal(t, KindEmulated, info.Kind)
	assert.Equal(t, "/device:GPU:3", info.Path())
	assert.Equal(t, int64(4<<20), info.TotalMemory)

	_, err := backend.MatrixMultiply([]float32{1}, []float32{1}, 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, backend.Initialize())
	require.NoError(t, backend.Initialize())
	require.NoError(t, backend.Cleanup())
	require.NoError(t, backend.Cleanup())
}

func TestEmulatedBackend_MemoryGrowth(t *testing.T) {
	t.Run("growth reserves on demand", func(t *testing.T) {
		backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 4<<20, 128)
		require.NoError(t, backend.SetMemoryGrowth(true))
		require.NoError(t, backend.Initialize())
		defer backend.Cleanup()

		assert.Equal(t, int64(0), backend.MemoryStats().Reserved)
		assert.True(t, backend.GetDeviceInfo().MemoryGrowth)

		kernel, err := backend.Compile(OpAdd)
		require.NoError(t, err)
		_, err = kernel.Launch(make([]float32, 1024), make([]float32, 1024))
		require.NoError(t, err)

		stats := backend.MemoryStats()
		assert.Equal(t, int64(3*1024*4), stats.Reserved)
		assert.Equal(t, int64(0), stats.Used)
		assert.Equal(t, int64(3*1024*4), stats.Peak)
	})

	t.Run("no growth reserves everything", func(t *testing.T) {
		backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 4<<20, 128)
		require.NoError(t, backend.SetMemoryGrowth(false))
		require.NoError(t, backend.Initialize())
		defer backend.Cleanup()

		assert.Equal(t, int64(4<<20), backend.MemoryStats().Reserved)
	})

	t.Run("frozen after initialize", func(t *testing.T) {
		backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 1<<20, 128)
		require.NoError(t, backend.Initialize())
		defer backend.Cleanup()

		assert.ErrorIs(t, backend.SetMemoryGrowth(true), ErrDeviceInitialized)
	})
}

func TestEmulatedBackend_Kernel(t *testing.T) {
	for _, growth := range []bool{true, false} {
		t.Run(fmt.Sprintf("growth=%v", growth), func(t *testing.T) {
			backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 8<<20, 100)
			require.NoError(t, backend.SetMemoryGrowth(growth))
			require.NoError(t, backend.Initialize())
			defer backend.Cleanup()

			kernel, err := backend.Compile(OpAdd)
			require.NoError(t, err)

			const n = 12345
			a := make([]float32, n)
			b := make([]float32, n)
			for i := range a {
				a[i] = float32(i)
				b[i] = float32(2 * i)
			}

			// Launch twice to exercise buffer reuse
			for run := 0; run < 2; run++ {
				out, err := kernel.Launch(a, b)
				require.NoError(t, err)
				require.Len(t, out, n)
				for i := range out {
					if out[i] != float32(3*i) {
						t.Fatalf("run %d: out[%d] = %f, want %d", run, i, out[i], 3*i)
					}
				}
			}
			assert.Equal(t, int64(0), backend.MemoryStats().Used)
		})
	}
}

func TestEmulatedBackend_OutOfMemory(t *testing.T) {
	backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 1024, 64)
	require.NoError(t, backend.Initialize())
	defer backend.Cleanup()

	kernel, err := backend.Compile(OpAdd)
	require.NoError(t, err)

	// 3 buffers of 100 float32 = 1200 bytes > 1024
	_, err = kernel.Launch(make([]float32, 100), make([]float32, 100))
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(0), backend.MemoryStats().Used)

	out, err := kernel.Launch(make([]float32, 10), make([]float32, 10))
	require.NoError(t, err)
	assert.Len(t, out, 10)
}

func TestEmulatedBackend_MatrixMultiply(t *testing.T) {
	backend := NewEmulatedBackend(zaptest.NewLogger(t), 0, 1<<20, 3)
	require.NoError(t, backend.Initialize())
	defer backend.Cleanup()

	cpu := NewCPUBackend(zaptest.NewLogger(t), 3)
	require.NoError(t, cpu.Initialize())

	testCases := []struct {
		name    string
		m, k, n int
	}{
		{"probe shape", 2, 3, 2},
		{"square", 16, 16, 16},
		{"rectangular", 7, 5, 11},
		{"vector outer product", 4, 1, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := make([]float32, tc.m*tc.k)
			b := make([]float32, tc.k*tc.n)
			for i := range a {
				a[i] = float32(i%7) - 3
			}
			for i := range b {
				b[i] = float32(i%5) + 0.5
			}

			got, err := backend.MatrixMultiply(a, b, tc.m, tc.k, tc.n)
			require.NoError(t, err)
			want, err := cpu.MatrixMultiply(a, b, tc.m, tc.k, tc.n)
			require.NoError(t, err)
			assert.LessOrEqual(t, MaxAbsDiff(got, want), 1e-4)
		})
	}

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := backend.MatrixMultiply(make([]float32, 5), make([]float32, 6), 2, 3, 2)
		assert.ErrorContains(t, err, "matrix A size mismatch")
	})
}
