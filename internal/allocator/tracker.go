package allocator

import (
	"sync"
	"time"
	"unsafe"
)

// AllocationTracker indexes live allocations for audit-mode diagnostics.
// It answers point lookups by address and range queries by size.
type AllocationTracker struct {
	mu          sync.RWMutex
	byPointer   map[unsafe.Pointer]*AllocationInfo
	bySize      map[uintptr]map[unsafe.Pointer]struct{}
	trackStacks bool
	totalBytes  uintptr
	peakCount   int
}

// NewAllocationTracker creates an empty tracker. With trackStacks set every
// tracked allocation records its call stack.
func NewAllocationTracker(trackStacks bool) *AllocationTracker {
	return &AllocationTracker{
		byPointer:   make(map[unsafe.Pointer]*AllocationInfo),
		bySize:      make(map[uintptr]map[unsafe.Pointer]struct{}),
		trackStacks: trackStacks,
	}
}

// Track records a live allocation.
func (t *AllocationTracker) Track(ptr unsafe.Pointer, size uintptr, generation uint64) {
	if ptr == nil {
		return
	}

	info := &AllocationInfo{
		Size:       size,
		Timestamp:  time.Now().UnixNano(),
		Generation: generation,
	}
	if t.trackStacks {
		info.StackTrace = captureStackTrace()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byPointer[ptr]; exists {
		return // Already tracked; a double alloc is the caller's bug
	}

	t.byPointer[ptr] = info

	set, ok := t.bySize[size]
	if !ok {
		set = make(map[unsafe.Pointer]struct{})
		t.bySize[size] = set
	}
	set[ptr] = struct{}{}

	t.totalBytes += size
	if len(t.byPointer) > t.peakCount {
		t.peakCount = len(t.byPointer)
	}
}

// Untrack removes an allocation and returns its record.
func (t *AllocationTracker) Untrack(ptr unsafe.Pointer) (*AllocationInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.byPointer[ptr]
	if !ok {
		return nil, false
	}

	delete(t.byPointer, ptr)

	if set, ok := t.bySize[info.Size]; ok {
		delete(set, ptr)
		if len(set) == 0 {
			delete(t.bySize, info.Size)
		}
	}

	t.totalBytes -= info.Size

	return info, true
}

// Lookup returns the record for a tracked pointer.
func (t *AllocationTracker) Lookup(ptr unsafe.Pointer) (*AllocationInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.byPointer[ptr]

	return info, ok
}

// BySize returns the live pointers of exactly the given size.
func (t *AllocationTracker) BySize(size uintptr) []unsafe.Pointer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set, ok := t.bySize[size]
	if !ok {
		return nil
	}

	ptrs := make([]unsafe.Pointer, 0, len(set))
	for ptr := range set {
		ptrs = append(ptrs, ptr)
	}

	return ptrs
}

// SizeRange returns live pointers whose size s satisfies min <= s <= max.
func (t *AllocationTracker) SizeRange(min, max uintptr) []unsafe.Pointer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ptrs []unsafe.Pointer
	for size, set := range t.bySize {
		if size < min || size > max {
			continue
		}
		for ptr := range set {
			ptrs = append(ptrs, ptr)
		}
	}

	return ptrs
}

// Walk visits every live allocation until fn returns false.
func (t *AllocationTracker) Walk(fn func(ptr unsafe.Pointer, info *AllocationInfo) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for ptr, info := range t.byPointer {
		if !fn(ptr, info) {
			return
		}
	}
}

// Count returns the number of live tracked allocations.
func (t *AllocationTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.byPointer)
}

// PeakCount returns the highest simultaneous allocation count seen.
func (t *AllocationTracker) PeakCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.peakCount
}

// TotalBytes returns the bytes held by live tracked allocations.
func (t *AllocationTracker) TotalBytes() uintptr {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.totalBytes
}

// Reset forgets every tracked allocation.
func (t *AllocationTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byPointer = make(map[unsafe.Pointer]*AllocationInfo)
	t.bySize = make(map[uintptr]map[unsafe.Pointer]struct{})
	t.totalBytes = 0
	t.peakCount = 0
}
