// Package allocator provides memory allocation services for the Limitly runtime.
// It implements fixed-block pools, a size-classed default allocator with
// per-allocation headers, and a tracking system allocator used for large
// allocations and diagnostics.
package allocator

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// AllocatorKind defines the type of allocator.
type AllocatorKind int

const (
	SystemAllocatorKind AllocatorKind = iota
	DefaultAllocatorKind
	ArenaAllocatorKind
)

// Allocation size bounds for the size-classed path. Payloads above
// MaxAllocSize are routed to the system allocator.
const (
	MinAllocSize = 8
	MaxAllocSize = 256
)

// Allocator defines the interface for memory allocators.
type Allocator interface {
	Alloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
	Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer
	TotalAllocated() uintptr
	TotalFreed() uintptr
	ActiveAllocations() int
	Stats() AllocatorStats
	Reset()
}

// AllocatorStats provides allocation statistics.
type AllocatorStats struct {
	TotalAllocated    uintptr
	TotalFreed        uintptr
	ActiveAllocations int
	PeakAllocations   int
	AllocationCount   uint64
	FreeCount         uint64
	BytesInUse        uintptr
	SystemMemory      uintptr
}

// New constructs an allocator of the requested kind. Callers own the
// returned allocator; there is no package-level instance.
func New(kind AllocatorKind, options ...Option) (Allocator, error) {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}

	switch kind {
	case SystemAllocatorKind:
		return NewSystemAllocator(config), nil
	case DefaultAllocatorKind:
		return NewDefaultAllocator(config)
	case ArenaAllocatorKind:
		return NewArenaAllocator(config.ArenaSize, config)
	default:
		return nil, fmt.Errorf("unknown allocator kind: %v", kind)
	}
}

// Configuration for allocators.
type Config struct {
	PoolSizes       []uintptr
	ChunkBlocks     uintptr
	ArenaSize       uintptr
	MemoryLimit     uintptr
	AlignmentSize   uintptr
	EnableTracking  bool
	EnableAudit     bool
	EnableLeakCheck bool
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		PoolSizes:       []uintptr{8, 16, 32, 64, 128, 256},
		ChunkBlocks:     1024,
		ArenaSize:       64 * 1024 * 1024, // 64MB default arena
		MemoryLimit:     1024 * 1024 * 1024,
		AlignmentSize:   8, // 8-byte alignment
		EnableTracking:  true,
		EnableAudit:     false,
		EnableLeakCheck: true,
	}
}

// Option functions.
func WithTracking(enabled bool) Option {
	return func(c *Config) { c.EnableTracking = enabled }
}

func WithAudit(enabled bool) Option {
	return func(c *Config) { c.EnableAudit = enabled }
}

func WithPoolSizes(sizes []uintptr) Option {
	return func(c *Config) { c.PoolSizes = sizes }
}

func WithChunkBlocks(blocks uintptr) Option {
	return func(c *Config) { c.ChunkBlocks = blocks }
}

func WithArenaSize(size uintptr) Option {
	return func(c *Config) { c.ArenaSize = size }
}

func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.AlignmentSize = alignment }
}

// Allocation metadata for tracking.
type AllocationInfo struct {
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
	Generation uint64
}

// SystemAllocatorImpl wraps Go's memory allocator. It backs the large
// allocation path of the default allocator and is usable standalone.
type SystemAllocatorImpl struct {
	config            *Config
	activeAllocations map[unsafe.Pointer]*AllocationInfo
	allocatedSlices   map[unsafe.Pointer][]byte
	totalAllocated    uintptr
	totalFreed        uintptr
	allocationCount   uint64
	freeCount         uint64
	peakAllocations   int
	mu                sync.RWMutex
}

// NewSystemAllocator creates a new system allocator.
func NewSystemAllocator(config *Config) *SystemAllocatorImpl {
	return &SystemAllocatorImpl{
		config:            config,
		activeAllocations: make(map[unsafe.Pointer]*AllocationInfo),
		allocatedSlices:   make(map[unsafe.Pointer][]byte),
	}
}

func (sa *SystemAllocatorImpl) shouldCheckMemoryLimit() bool {
	return sa.config.MemoryLimit > 0
}

// Alloc allocates memory using the system allocator.
func (sa *SystemAllocatorImpl) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	alignedSize := alignUp(size, sa.config.AlignmentSize)
	if alignedSize == 0 {
		return nil // Overflow or invalid size
	}

	if sa.shouldCheckMemoryLimit() {
		current := atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed)
		if current+alignedSize > sa.config.MemoryLimit {
			return nil // Out of memory
		}
	}

	slice := make([]byte, alignedSize)
	if len(slice) != int(alignedSize) || len(slice) == 0 {
		return nil
	}

	ptr := unsafe.Pointer(&slice[0])

	// The slice reference must be retained or the GC reclaims the block
	// behind the raw pointer.
	sa.mu.Lock()
	sa.allocatedSlices[ptr] = slice
	if sa.config.EnableTracking {
		info := &AllocationInfo{
			Size:      alignedSize,
			Timestamp: time.Now().UnixNano(),
		}
		if sa.config.EnableAudit {
			info.StackTrace = captureStackTrace()
		}
		sa.activeAllocations[ptr] = info
		if len(sa.activeAllocations) > sa.peakAllocations {
			sa.peakAllocations = len(sa.activeAllocations)
		}
	}
	sa.mu.Unlock()

	atomic.AddUintptr(&sa.totalAllocated, alignedSize)
	atomic.AddUint64(&sa.allocationCount, 1)

	return ptr
}

// Free frees memory allocated by the system allocator.
func (sa *SystemAllocatorImpl) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	var size uintptr

	sa.mu.Lock()
	if info, exists := sa.activeAllocations[ptr]; exists {
		size = info.Size

		delete(sa.activeAllocations, ptr)
	}
	if slice, exists := sa.allocatedSlices[ptr]; exists {
		size = uintptr(len(slice)) // Get actual size

		delete(sa.allocatedSlices, ptr)
	}
	sa.mu.Unlock()

	atomic.AddUintptr(&sa.totalFreed, size)
	atomic.AddUint64(&sa.freeCount, 1)
}

// Realloc reallocates memory.
func (sa *SystemAllocatorImpl) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sa.Alloc(newSize)
	}

	if newSize == 0 {
		sa.Free(ptr)

		return nil
	}

	var oldSize uintptr

	sa.mu.RLock()
	if slice, exists := sa.allocatedSlices[ptr]; exists {
		oldSize = uintptr(len(slice))
	}
	sa.mu.RUnlock()

	newPtr := sa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if oldSize > 0 {
		copySize := oldSize
		if newSize < oldSize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
	}

	sa.Free(ptr)

	return newPtr
}

// TotalAllocated returns total allocated bytes.
func (sa *SystemAllocatorImpl) TotalAllocated() uintptr {
	return atomic.LoadUintptr(&sa.totalAllocated)
}

// TotalFreed returns total freed bytes.
func (sa *SystemAllocatorImpl) TotalFreed() uintptr {
	return atomic.LoadUintptr(&sa.totalFreed)
}

// ActiveAllocations returns the number of active allocations.
func (sa *SystemAllocatorImpl) ActiveAllocations() int {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return len(sa.allocatedSlices)
}

// Stats returns allocation statistics.
func (sa *SystemAllocatorImpl) Stats() AllocatorStats {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	return AllocatorStats{
		TotalAllocated:    atomic.LoadUintptr(&sa.totalAllocated),
		TotalFreed:        atomic.LoadUintptr(&sa.totalFreed),
		ActiveAllocations: len(sa.allocatedSlices),
		PeakAllocations:   sa.peakAllocations,
		AllocationCount:   atomic.LoadUint64(&sa.allocationCount),
		FreeCount:         atomic.LoadUint64(&sa.freeCount),
		BytesInUse:        atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed),
		SystemMemory:      getSystemMemory(),
	}
}

// Reset drops every live allocation and zeroes the counters.
func (sa *SystemAllocatorImpl) Reset() {
	sa.mu.Lock()
	sa.activeAllocations = make(map[unsafe.Pointer]*AllocationInfo)
	sa.allocatedSlices = make(map[unsafe.Pointer][]byte)
	sa.peakAllocations = 0
	sa.mu.Unlock()

	atomic.StoreUintptr(&sa.totalAllocated, 0)
	atomic.StoreUintptr(&sa.totalFreed, 0)
	atomic.StoreUint64(&sa.allocationCount, 0)
	atomic.StoreUint64(&sa.freeCount, 0)
}

// Utility functions.

// alignUp aligns a size up to the nearest multiple of alignment.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies memory from src to dst.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	dstSlice := (*[1 << 30]byte)(dst)[:size:size]
	srcSlice := (*[1 << 30]byte)(src)[:size:size]
	copy(dstSlice, srcSlice)
}

// captureStackTrace captures the current stack trace.
func captureStackTrace() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	return pcs[:n]
}

// getSystemMemory returns system memory usage.
func getSystemMemory() uintptr {
	var m runtime.MemStats

	runtime.ReadMemStats(&m)

	return uintptr(m.Sys)
}

// Memory leak detection.

// CheckLeaks checks for memory leaks.
func (sa *SystemAllocatorImpl) CheckLeaks() []LeakInfo {
	if !sa.config.EnableLeakCheck || !sa.config.EnableTracking {
		return nil
	}

	sa.mu.RLock()
	defer sa.mu.RUnlock()

	var leaks []LeakInfo
	for ptr, info := range sa.activeAllocations {
		leaks = append(leaks, LeakInfo{
			Pointer:    ptr,
			Size:       info.Size,
			Timestamp:  info.Timestamp,
			StackTrace: info.StackTrace,
		})
	}

	return leaks
}

// LeakInfo represents information about a memory leak.
type LeakInfo struct {
	Pointer    unsafe.Pointer
	StackTrace []uintptr
	Size       uintptr
	Timestamp  int64
}

// FormatLeaks formats leak information for display.
func FormatLeaks(leaks []LeakInfo) string {
	if len(leaks) == 0 {
		return "No memory leaks detected"
	}

	result := fmt.Sprintf("Detected %d memory leaks:\n", len(leaks))
	for i, leak := range leaks {
		result += fmt.Sprintf("  Leak %d: %d bytes at %p\n", i+1, leak.Size, leak.Pointer)
		if len(leak.StackTrace) > 0 {
			result += "    Stack trace:\n"
			frames := runtime.CallersFrames(leak.StackTrace)

			for {
				frame, more := frames.Next()
				result += fmt.Sprintf("      %s:%d %s\n", frame.File, frame.Line, frame.Function)

				if !more {
					break
				}
			}
		}
	}

	return result
}
