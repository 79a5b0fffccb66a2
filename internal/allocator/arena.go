package allocator

import (
	"fmt"
	"sync"
	"unsafe"
)

// ArenaAllocatorImpl is a bump allocator over one contiguous mapping.
// Individual frees are no-ops; memory comes back on Reset.
type ArenaAllocatorImpl struct {
	config         *Config
	buffer         []byte
	current        uintptr
	size           uintptr
	allocations    uint64
	totalAllocated uintptr
	peakUsage      uintptr
	closed         bool
	mu             sync.RWMutex
}

// NewArenaAllocator creates a new arena allocator backed by one chunk.
func NewArenaAllocator(size uintptr, config *Config) (*ArenaAllocatorImpl, error) {
	if size == 0 {
		return nil, fmt.Errorf("arena size must be greater than 0")
	}

	buffer, err := allocChunk(size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate arena buffer: %w", err)
	}

	return &ArenaAllocatorImpl{
		config:  config,
		buffer:  buffer,
		current: 0,
		size:    uintptr(len(buffer)),
	}, nil
}

// Alloc allocates memory from the arena.
func (aa *ArenaAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	alignedSize := alignUp(size, aa.config.AlignmentSize)

	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.closed || aa.current+alignedSize > aa.size {
		return nil // Out of arena space
	}

	ptr := unsafe.Pointer(&aa.buffer[aa.current])

	aa.current += alignedSize
	aa.allocations++
	aa.totalAllocated += alignedSize

	if aa.current > aa.peakUsage {
		aa.peakUsage = aa.current
	}

	return ptr
}

// AllocAligned allocates memory at a caller-chosen alignment.
func (aa *ArenaAllocatorImpl) AllocAligned(size, alignment uintptr) unsafe.Pointer {
	if size == 0 || alignment == 0 {
		return nil
	}

	aa.mu.Lock()
	defer aa.mu.Unlock()

	alignedCurrent := alignUp(aa.current, alignment)
	alignedSize := alignUp(size, aa.config.AlignmentSize)

	if aa.closed || alignedCurrent+alignedSize > aa.size {
		return nil // Out of arena space
	}

	ptr := unsafe.Pointer(&aa.buffer[alignedCurrent])

	aa.current = alignedCurrent + alignedSize
	aa.allocations++
	aa.totalAllocated += alignedSize

	if aa.current > aa.peakUsage {
		aa.peakUsage = aa.current
	}

	return ptr
}

// Free is a no-op; arena memory is reclaimed by Reset.
func (aa *ArenaAllocatorImpl) Free(ptr unsafe.Pointer) {}

// Realloc allocates a fresh block and copies over as much of the old one as
// is provably inside the arena's used range.
func (aa *ArenaAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return aa.Alloc(newSize)
	}

	if newSize == 0 {
		return nil
	}

	aa.mu.RLock()
	if aa.closed || len(aa.buffer) == 0 {
		aa.mu.RUnlock()

		return nil
	}
	base := uintptr(unsafe.Pointer(&aa.buffer[0]))
	used := aa.current
	aa.mu.RUnlock()

	offset := uintptr(ptr) - base

	newPtr := aa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	// The old allocation's length is unknown, but it cannot extend past the
	// bump cursor captured above.
	copySize := newSize
	if offset < used && used-offset < copySize {
		copySize = used - offset
	}

	copyMemory(newPtr, ptr, copySize)

	return newPtr
}

// TotalAllocated returns total allocated bytes.
func (aa *ArenaAllocatorImpl) TotalAllocated() uintptr {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return aa.totalAllocated
}

// TotalFreed returns total freed bytes (always 0 for arena).
func (aa *ArenaAllocatorImpl) TotalFreed() uintptr {
	return 0
}

// ActiveAllocations returns the number of active allocations.
func (aa *ArenaAllocatorImpl) ActiveAllocations() int {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return int(aa.allocations)
}

// Stats returns allocation statistics.
func (aa *ArenaAllocatorImpl) Stats() AllocatorStats {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return AllocatorStats{
		TotalAllocated:    aa.totalAllocated,
		TotalFreed:        0,
		ActiveAllocations: int(aa.allocations),
		PeakAllocations:   int(aa.allocations),
		AllocationCount:   aa.allocations,
		FreeCount:         0,
		BytesInUse:        aa.current,
		SystemMemory:      aa.size,
	}
}

// Reset rewinds the arena. All outstanding pointers become invalid.
func (aa *ArenaAllocatorImpl) Reset() {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	aa.current = 0
	aa.allocations = 0
	aa.totalAllocated = 0
}

// Close releases the backing chunk. The arena is unusable afterwards.
func (aa *ArenaAllocatorImpl) Close() {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.closed {
		return
	}

	aa.closed = true
	releaseChunk(aa.buffer)
	aa.buffer = nil
	aa.current = 0
	aa.size = 0
}

// Available returns the amount of available space in the arena.
func (aa *ArenaAllocatorImpl) Available() uintptr {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return aa.size - aa.current
}

// Used returns the amount of used space in the arena.
func (aa *ArenaAllocatorImpl) Used() uintptr {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return aa.current
}

// Size returns the total size of the arena.
func (aa *ArenaAllocatorImpl) Size() uintptr {
	return aa.size
}

// PeakUsage returns the peak memory usage.
func (aa *ArenaAllocatorImpl) PeakUsage() uintptr {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return aa.peakUsage
}

// ArenaState is a watermark for scratch-scope rollback.
type ArenaState struct {
	Current     uintptr
	Allocations uint64
}

// SaveState captures the current bump cursor.
func (aa *ArenaAllocatorImpl) SaveState() ArenaState {
	aa.mu.RLock()
	defer aa.mu.RUnlock()

	return ArenaState{
		Current:     aa.current,
		Allocations: aa.allocations,
	}
}

// RestoreState rewinds to a previously saved watermark. Allocations made
// after the save become invalid.
func (aa *ArenaAllocatorImpl) RestoreState(state ArenaState) {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if state.Current <= aa.current {
		aa.current = state.Current
		aa.allocations = state.Allocations
	}
}
