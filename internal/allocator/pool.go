package allocator

import (
	"fmt"
	"sync"
	"unsafe"
)

// Blocks added when a pool grows and its current population is small.
const minGrowthBlocks = 32

// MemoryPool is a fixed-block pool. Every block it hands out has the same
// size; blocks come from large chunks carved at construction and on growth.
// Chunks never move, so outstanding pointers stay valid across growth.
type MemoryPool struct {
	mu          sync.Mutex
	config      *Config
	blockSize   uintptr
	chunks      [][]byte
	freeList    []unsafe.Pointer
	allocated   map[unsafe.Pointer]struct{}
	totalBlocks uintptr
	bytesHeld   uintptr
	allocCount  uint64
	freeCount   uint64
	growCount   uint64
	doubleFree  uint64
	foreignFree uint64
}

// PoolStats provides statistics for a single pool.
type PoolStats struct {
	BlockSize    uintptr
	TotalBlocks  uintptr
	FreeBlocks   int
	ChunkCount   int
	BytesHeld    uintptr
	AllocCount   uint64
	FreeCount    uint64
	GrowCount    uint64
	DoubleFrees  uint64
	ForeignFrees uint64
}

// NewMemoryPool creates a pool of fixed-size blocks. The initial chunk holds
// config.ChunkBlocks blocks.
func NewMemoryPool(blockSize uintptr, config *Config) (*MemoryPool, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("pool block size must be greater than 0")
	}

	p := &MemoryPool{
		config:    config,
		blockSize: alignUp(blockSize, config.AlignmentSize),
		allocated: make(map[unsafe.Pointer]struct{}),
	}

	initial := config.ChunkBlocks
	if initial == 0 {
		initial = minGrowthBlocks
	}

	if err := p.addChunk(initial); err != nil {
		return nil, fmt.Errorf("failed to create pool of size %d: %w", blockSize, err)
	}

	return p, nil
}

// Alloc pops a block from the free list. When the free list is empty the
// pool grows once and retries once; a nil return means the growth failed.
// A block is never handed out twice while outstanding.
func (p *MemoryPool) Alloc() unsafe.Pointer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ptr := p.popFree(); ptr != nil {
		return ptr
	}

	if err := p.grow(); err != nil {
		return nil
	}

	return p.popFree()
}

// popFree takes the last free block and marks it allocated. Caller holds the lock.
func (p *MemoryPool) popFree() unsafe.Pointer {
	if len(p.freeList) == 0 {
		return nil
	}

	ptr := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	p.allocated[ptr] = struct{}{}
	p.allocCount++

	return ptr
}

// Free returns a block to the pool. Blocks that did not come from this pool
// and blocks that are already free are rejected; both are counted, and the
// free list is never corrupted by them.
func (p *MemoryPool) Free(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allocated[ptr]; !ok {
		if p.containsLocked(ptr) {
			p.doubleFree++
		} else {
			p.foreignFree++
		}

		return false
	}

	delete(p.allocated, ptr)
	p.freeList = append(p.freeList, ptr)
	p.freeCount++

	return true
}

// grow adds one chunk holding half the current block population, but never
// fewer than minGrowthBlocks blocks. Caller holds the lock.
func (p *MemoryPool) grow() error {
	blocks := (p.totalBlocks + 1) / 2
	if blocks < minGrowthBlocks {
		blocks = minGrowthBlocks
	}

	p.growCount++

	return p.addChunk(blocks)
}

// addChunk carves a fresh chunk into free-list blocks. Caller holds the lock
// (or is the constructor).
func (p *MemoryPool) addChunk(blocks uintptr) error {
	chunkSize := blocks * p.blockSize

	if p.config.MemoryLimit > 0 && p.bytesHeld+chunkSize > p.config.MemoryLimit {
		return fmt.Errorf("pool memory limit exceeded: held %d, requested %d, limit %d",
			p.bytesHeld, chunkSize, p.config.MemoryLimit)
	}

	chunk, err := allocChunk(chunkSize)
	if err != nil {
		return err
	}

	p.chunks = append(p.chunks, chunk)
	p.bytesHeld += uintptr(len(chunk))

	// The chunk may be page-rounded; carve only whole blocks.
	usable := uintptr(len(chunk)) / p.blockSize
	for i := uintptr(0); i < usable; i++ {
		p.freeList = append(p.freeList, unsafe.Pointer(&chunk[i*p.blockSize]))
	}
	p.totalBlocks += usable

	return nil
}

// Contains reports whether ptr lies inside this pool at a block boundary.
func (p *MemoryPool) Contains(ptr unsafe.Pointer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.containsLocked(ptr)
}

func (p *MemoryPool) containsLocked(ptr unsafe.Pointer) bool {
	ptrAddr := uintptr(ptr)

	for _, chunk := range p.chunks {
		chunkStart := uintptr(unsafe.Pointer(&chunk[0]))
		chunkEnd := chunkStart + uintptr(len(chunk))

		if ptrAddr >= chunkStart && ptrAddr < chunkEnd {
			// Must sit on a block boundary.
			offset := ptrAddr - chunkStart
			if offset%p.blockSize == 0 {
				return true
			}
		}
	}

	return false
}

// FreeCount returns the number of blocks on the free list.
func (p *MemoryPool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.freeList)
}

// BlockSize returns the aligned block size.
func (p *MemoryPool) BlockSize() uintptr {
	return p.blockSize
}

// TotalBlocks returns the number of blocks the pool holds, free or not.
func (p *MemoryPool) TotalBlocks() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalBlocks
}

// Stats returns statistics for this pool.
func (p *MemoryPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		BlockSize:    p.blockSize,
		TotalBlocks:  p.totalBlocks,
		FreeBlocks:   len(p.freeList),
		ChunkCount:   len(p.chunks),
		BytesHeld:    p.bytesHeld,
		AllocCount:   p.allocCount,
		FreeCount:    p.freeCount,
		GrowCount:    p.growCount,
		DoubleFrees:  p.doubleFree,
		ForeignFrees: p.foreignFree,
	}
}

// Reset releases every chunk. All outstanding pointers become invalid.
func (p *MemoryPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, chunk := range p.chunks {
		releaseChunk(chunk)
	}

	p.chunks = nil
	p.freeList = p.freeList[:0]
	p.allocated = make(map[unsafe.Pointer]struct{})
	p.totalBlocks = 0
	p.bytesHeld = 0
}
