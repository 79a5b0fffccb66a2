package allocator

import (
	"fmt"
	"sort"
	"sync/atomic"
	"unsafe"
)

// headerSize is the number of bytes reserved in front of every payload.
const headerSize = 8

// largePoolIndex marks allocations routed past the pools to the system
// allocator.
const largePoolIndex = 0xFFFF

// Header flags.
const (
	headerFlagPooled uint16 = 1 << iota
	headerFlagLarge
)

// AllocationHeader sits immediately before every payload returned by the
// default allocator. Free and Realloc route on it, so its layout is fixed
// at exactly headerSize bytes.
type AllocationHeader struct {
	Size      uint32
	PoolIndex uint16
	Flags     uint16
}

// DefaultAllocator routes small allocations to power-of-two block pools and
// large ones to the system allocator. Every payload is preceded by an
// AllocationHeader recording the requested size and the owning pool.
type DefaultAllocator struct {
	config  *Config
	classes []uintptr
	pools   []*MemoryPool
	system  *SystemAllocatorImpl

	pooledAllocated uintptr
	pooledFreed     uintptr
	allocCount      uint64
	freeCount       uint64
	corruptHeaders  uint64
}

// NewDefaultAllocator creates a size-classed allocator with one pool per
// configured class size.
func NewDefaultAllocator(config *Config) (*DefaultAllocator, error) {
	if len(config.PoolSizes) == 0 {
		return nil, fmt.Errorf("pool sizes cannot be empty")
	}
	if len(config.PoolSizes) >= largePoolIndex {
		return nil, fmt.Errorf("too many pool sizes: %d", len(config.PoolSizes))
	}

	classes := make([]uintptr, len(config.PoolSizes))
	copy(classes, config.PoolSizes)
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	pools := make([]*MemoryPool, len(classes))
	for i, class := range classes {
		pool, err := NewMemoryPool(class+headerSize, config)
		if err != nil {
			return nil, err
		}

		pools[i] = pool
	}

	return &DefaultAllocator{
		config:  config,
		classes: classes,
		pools:   pools,
		system:  NewSystemAllocator(config),
	}, nil
}

// classFor returns the index of the smallest class that fits size, or -1
// when the size exceeds every class.
func (da *DefaultAllocator) classFor(size uintptr) int {
	for i, class := range da.classes {
		if size <= class {
			return i
		}
	}

	return -1
}

// Alloc returns a payload pointer of at least size bytes, or nil when the
// request cannot be satisfied.
func (da *DefaultAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	if size > 1<<32-1-headerSize {
		return nil // Header cannot record the size
	}

	idx := da.classFor(size)
	if idx < 0 {
		return da.allocLarge(size)
	}

	base := da.pools[idx].Alloc()
	if base == nil {
		return nil
	}

	hdr := (*AllocationHeader)(base)
	hdr.Size = uint32(size)
	hdr.PoolIndex = uint16(idx)
	hdr.Flags = headerFlagPooled

	atomic.AddUintptr(&da.pooledAllocated, size)
	atomic.AddUint64(&da.allocCount, 1)

	return unsafe.Add(base, headerSize)
}

// allocLarge routes an oversized request to the system allocator, header
// included so Free can recognize it.
func (da *DefaultAllocator) allocLarge(size uintptr) unsafe.Pointer {
	base := da.system.Alloc(size + headerSize)
	if base == nil {
		return nil
	}

	hdr := (*AllocationHeader)(base)
	hdr.Size = uint32(size)
	hdr.PoolIndex = largePoolIndex
	hdr.Flags = headerFlagLarge

	atomic.AddUint64(&da.allocCount, 1)

	return unsafe.Add(base, headerSize)
}

// Free returns a payload to its pool, or to the system allocator for large
// allocations. The header decides the route.
func (da *DefaultAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	base := unsafe.Add(ptr, -headerSize)
	hdr := (*AllocationHeader)(base)

	if hdr.PoolIndex == largePoolIndex {
		da.system.Free(base)
		atomic.AddUint64(&da.freeCount, 1)

		return
	}

	if int(hdr.PoolIndex) >= len(da.pools) {
		atomic.AddUint64(&da.corruptHeaders, 1)

		return
	}

	size := uintptr(hdr.Size)
	if da.pools[hdr.PoolIndex].Free(base) {
		atomic.AddUintptr(&da.pooledFreed, size)
		atomic.AddUint64(&da.freeCount, 1)
	}
}

// Realloc grows or shrinks an allocation, preserving min(old, new) bytes.
// A request staying inside the same size class keeps the block.
func (da *DefaultAllocator) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return da.Alloc(newSize)
	}
	if newSize == 0 {
		da.Free(ptr)

		return nil
	}

	base := unsafe.Add(ptr, -headerSize)
	hdr := (*AllocationHeader)(base)
	oldSize := uintptr(hdr.Size)

	if hdr.PoolIndex != largePoolIndex {
		if idx := da.classFor(newSize); idx == int(hdr.PoolIndex) {
			hdr.Size = uint32(newSize)

			return ptr
		}
	}

	newPtr := da.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	copySize := oldSize
	if newSize < oldSize {
		copySize = newSize
	}
	if copySize > 0 {
		copyMemory(newPtr, ptr, copySize)
	}

	da.Free(ptr)

	return newPtr
}

// AllocSize reports the requested size recorded in an allocation's header.
func (da *DefaultAllocator) AllocSize(ptr unsafe.Pointer) uintptr {
	if ptr == nil {
		return 0
	}

	hdr := (*AllocationHeader)(unsafe.Add(ptr, -headerSize))

	return uintptr(hdr.Size)
}

// TotalAllocated returns total allocated payload bytes.
func (da *DefaultAllocator) TotalAllocated() uintptr {
	return atomic.LoadUintptr(&da.pooledAllocated) + da.system.TotalAllocated()
}

// TotalFreed returns total freed payload bytes.
func (da *DefaultAllocator) TotalFreed() uintptr {
	return atomic.LoadUintptr(&da.pooledFreed) + da.system.TotalFreed()
}

// ActiveAllocations returns the number of active allocations.
func (da *DefaultAllocator) ActiveAllocations() int {
	alloc := atomic.LoadUint64(&da.allocCount)
	freed := atomic.LoadUint64(&da.freeCount)

	return int(alloc - freed)
}

// Stats returns aggregated statistics across the pools and the large path.
func (da *DefaultAllocator) Stats() AllocatorStats {
	systemStats := da.system.Stats()

	pooledAllocated := atomic.LoadUintptr(&da.pooledAllocated)
	pooledFreed := atomic.LoadUintptr(&da.pooledFreed)

	return AllocatorStats{
		TotalAllocated:    pooledAllocated + systemStats.TotalAllocated,
		TotalFreed:        pooledFreed + systemStats.TotalFreed,
		ActiveAllocations: da.ActiveAllocations(),
		PeakAllocations:   systemStats.PeakAllocations,
		AllocationCount:   atomic.LoadUint64(&da.allocCount),
		FreeCount:         atomic.LoadUint64(&da.freeCount),
		BytesInUse:        (pooledAllocated - pooledFreed) + systemStats.BytesInUse,
		SystemMemory:      systemStats.SystemMemory,
	}
}

// PoolInfo describes one size class of the allocator.
type PoolInfo struct {
	ClassSize uintptr
	PoolStats
}

// Pools returns per-class statistics, smallest class first.
func (da *DefaultAllocator) Pools() []PoolInfo {
	info := make([]PoolInfo, len(da.pools))
	for i, pool := range da.pools {
		info[i] = PoolInfo{
			ClassSize: da.classes[i],
			PoolStats: pool.Stats(),
		}
	}

	return info
}

// CorruptHeaders returns the number of frees rejected for an unroutable
// header.
func (da *DefaultAllocator) CorruptHeaders() uint64 {
	return atomic.LoadUint64(&da.corruptHeaders)
}

// Reset releases every pool chunk and live system allocation.
func (da *DefaultAllocator) Reset() {
	for _, pool := range da.pools {
		pool.Reset()
	}

	da.system.Reset()

	atomic.StoreUintptr(&da.pooledAllocated, 0)
	atomic.StoreUintptr(&da.pooledFreed, 0)
	atomic.StoreUint64(&da.allocCount, 0)
	atomic.StoreUint64(&da.freeCount, 0)
	atomic.StoreUint64(&da.corruptHeaders, 0)
}
