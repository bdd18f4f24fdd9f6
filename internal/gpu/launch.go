package gpu

import (
	"golang.org/x/sync/errgroup"
)

// LaunchConfig describes a one-dimensional kernel launch: n threads split into
// blocks of BlockSize, with blocks spread over at most Workers goroutines.
type LaunchConfig struct {
	BlockSize int
	Workers   int
}

// GridSize is the number of blocks needed to cover n threads.
func (lc LaunchConfig) GridSize(n int) int {
	return (n + lc.BlockSize - 1) / lc.BlockSize
}

// launchGrid runs body once per block. Each worker owns a contiguous run of
// blocks so neighbouring blocks stay on one core.
func launchGrid(lc LaunchConfig, n int, body func(start, end int)) error {
	if n == 0 {
		return nil
	}
	if lc.BlockSize < 1 {
		lc.BlockSize = 1
	}
	gridSize := lc.GridSize(n)

	numWorkers := lc.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	var g errgroup.Group
	g.SetLimit(numWorkers)
	for w := 0; w < numWorkers; w++ {
		startBlock := w * blocksPerWorker
		endBlock := min(startBlock+blocksPerWorker, gridSize)
		g.Go(func() error {
			for block := startBlock; block < endBlock; block++ {
				start := block * lc.BlockSize
				end := min(start+lc.BlockSize, n)
				body(start, end)
			}
			return nil
		})
	}
	return g.Wait()
}

// elementwise returns a block body that applies fn to one thread per index.
func elementwise(fn func(a, b float32) float32, a, b, out []float32) func(start, end int) {
	return func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(a[i], b[i])
		}
	}
}
