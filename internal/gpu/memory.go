package gpu

import (
	"fmt"
	"sync"
)

const (
	defaultTotalMemory     = 8 * 1024 * 1024 * 1024 // 8GB
	defaultAvailableMemory = 4 * 1024 * 1024 * 1024 // 4GB
	float32Size            = 4
)

// Buffer is a region of device memory holding float32 values.
type Buffer struct {
	data   []float32
	offset int // start within the arena, -1 for grown buffers
}

// Float32 exposes the buffer contents.
func (b Buffer) Float32() []float32 {
	return b.data
}

// MemoryStats reports pool usage in bytes.
type MemoryStats struct {
	Capacity int64
	Reserved int64
	Used     int64
	Peak     int64
}

// MemoryPool manages the memory of one emulated device. With growth enabled
// buffers are reserved on demand and kept on a free list for reuse; with
// growth disabled the whole capacity is reserved by Reserve and buffers are
// carved out of that arena.
type MemoryPool struct {
	mu       sync.Mutex
	capacity int64
	growth   bool

	arena    []float32
	top      int
	live     int
	freeList [][]float32
	reserved int64
	used     int64
	peak     int64
}

func NewMemoryPool(capacity int64) *MemoryPool {
	return &MemoryPool{capacity: capacity, growth: true}
}

// SetGrowth must be called before Reserve.
func (p *MemoryPool) SetGrowth(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.growth = enable
}

// Reserve claims the full capacity up front when growth is disabled.
func (p *MemoryPool) Reserve() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.growth || p.arena != nil {
		return
	}
	p.arena = make([]float32, p.capacity/float32Size)
	p.reserved = p.capacity
}

// Alloc returns a zeroed buffer of n float32 values.
func (p *MemoryPool) Alloc(n int) (Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := int64(n) * float32Size
	if p.used+size > p.capacity {
		return Buffer{}, fmt.Errorf("%w: requested %d bytes, %d of %d in use", ErrOutOfMemory, size, p.used, p.capacity)
	}

	var buf Buffer
	if p.arena != nil {
		if p.top+n > len(p.arena) {
			return Buffer{}, fmt.Errorf("%w: arena fragmented, requested %d bytes", ErrOutOfMemory, size)
		}
		buf = Buffer{data: p.arena[p.top : p.top+n : p.top+n], offset: p.top}
		clear(buf.data)
		p.top += n
		p.live++
	} else {
		buf = Buffer{data: p.takeFree(n), offset: -1}
	}

	p.used += size
	if p.used > p.peak {
		p.peak = p.used
	}
	return buf, nil
}

// takeFree reuses a previously freed slice when one is large enough.
func (p *MemoryPool) takeFree(n int) []float32 {
	for i, s := range p.freeList {
		if cap(s) >= n {
			p.freeList = append(p.freeList[:i], p.freeList[i+1:]...)
			s = s[:n]
			clear(s)
			return s
		}
	}
	p.reserved += int64(n) * float32Size
	return make([]float32, n)
}

// Free returns a buffer to the pool. The arena is rewound once every buffer
// carved from it has been freed.
func (p *MemoryPool) Free(b Buffer) {
	if b.data == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.used -= int64(len(b.data)) * float32Size
	if b.offset >= 0 {
		p.live--
		if p.live == 0 {
			p.top = 0
		}
		return
	}
	p.freeList = append(p.freeList, b.data)
}

// Release drops every reservation.
func (p *MemoryPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arena = nil
	p.freeList = nil
	p.top, p.live = 0, 0
	p.reserved, p.used = 0, 0
}

func (p *MemoryPool) Stats() MemoryStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return MemoryStats{
		Capacity: p.capacity,
		Reserved: p.reserved,
		Used:     p.used,
		Peak:     p.peak,
	}
}
