package runtime

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/tliron/commonlog"

	"github.com/limitly-lang/limitly/internal/allocator"
)

var log = commonlog.GetLogger("limitly.runtime")

// ManagerOption configures a MemoryManager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	kind      allocator.AllocatorKind
	allocOpts []allocator.Option
	audit     bool
}

// WithAllocatorKind selects the backing allocator. The size-classed
// allocator is the default.
func WithAllocatorKind(kind allocator.AllocatorKind) ManagerOption {
	return func(c *managerConfig) { c.kind = kind }
}

// WithAllocatorOptions forwards options to the backing allocator.
func WithAllocatorOptions(options ...allocator.Option) ManagerOption {
	return func(c *managerConfig) { c.allocOpts = append(c.allocOpts, options...) }
}

// WithAuditMode enables allocation tracking, double free reporting, and
// per-allocation stack capture.
func WithAuditMode(enabled bool) ManagerOption {
	return func(c *managerConfig) { c.audit = enabled }
}

// MemoryManager is the composition root of the memory subsystem: one
// backing allocator, the open regions, the audit tracker, and the
// analyzer. Components receive their manager explicitly; there is no
// process-wide instance.
type MemoryManager struct {
	mu       sync.RWMutex
	regions  map[string]*Region
	alloc    allocator.Allocator
	tracker  *allocator.AllocationTracker
	analyzer *MemoryAnalyzer

	audit      int32
	generation uint64
}

// NewManager builds a manager and its backing allocator.
func NewManager(options ...ManagerOption) (*MemoryManager, error) {
	cfg := managerConfig{kind: allocator.DefaultAllocatorKind}
	for _, opt := range options {
		opt(&cfg)
	}

	if cfg.audit {
		cfg.allocOpts = append(cfg.allocOpts, allocator.WithTracking(true), allocator.WithAudit(true))
	}

	alloc, err := allocator.New(cfg.kind, cfg.allocOpts...)
	if err != nil {
		return nil, err
	}

	m := &MemoryManager{
		regions:  make(map[string]*Region),
		alloc:    alloc,
		tracker:  allocator.NewAllocationTracker(cfg.audit),
		analyzer: NewMemoryAnalyzer(),
	}
	if cfg.audit {
		m.audit = 1
	}

	return m, nil
}

// Allocate returns size bytes of zeroed memory. Allocation failure is
// synchronous: the caller gets an error, nothing is retried.
func (m *MemoryManager) Allocate(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, &AllocationError{Message: "zero-size allocation", Code: ErrorInvalidSize}
	}

	ptr := m.alloc.Alloc(size)
	if ptr == nil {
		return nil, &AllocationError{Message: "allocator exhausted", Code: ErrorOutOfMemory, Size: size}
	}

	allocator.Memzero(ptr, size)

	if m.AuditMode() {
		gen := atomic.AddUint64(&m.generation, 1)
		m.tracker.Track(ptr, size, gen)
		m.analyzer.RecordAllocation(ptr, size)
		log.Debugf("allocated %d bytes at %p", size, ptr)
	}

	return ptr, nil
}

// Deallocate releases ptr. Nil is a no-op. In audit mode a pointer with
// no live record is reported and not forwarded to the allocator.
func (m *MemoryManager) Deallocate(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	if m.AuditMode() {
		if _, ok := m.tracker.Untrack(ptr); !ok {
			m.analyzer.RecordFree(ptr)
			log.Errorf("free of untracked pointer %p", ptr)

			return &AllocationError{Message: "free of untracked pointer", Code: ErrorDoubleFree}
		}
		m.analyzer.RecordFree(ptr)
	}

	m.alloc.Free(ptr)

	return nil
}

// Reallocate resizes an allocation, preserving contents up to the smaller
// size. A nil ptr behaves like Allocate, a zero size like Deallocate.
// Bytes beyond the old size are not zeroed.
func (m *MemoryManager) Reallocate(ptr unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	if ptr == nil {
		return m.Allocate(size)
	}
	if size == 0 {
		return nil, m.Deallocate(ptr)
	}

	next := m.alloc.Realloc(ptr, size)
	if next == nil {
		return nil, &AllocationError{Message: "allocator exhausted", Code: ErrorOutOfMemory, Size: size}
	}

	if m.AuditMode() {
		if _, ok := m.tracker.Untrack(ptr); ok {
			m.analyzer.RecordFree(ptr)
		}
		gen := atomic.AddUint64(&m.generation, 1)
		m.tracker.Track(next, size, gen)
		m.analyzer.RecordAllocation(next, size)
	}

	return next, nil
}

// OpenRegion creates a region observed by the analyzer and registers it
// with the manager.
func (m *MemoryManager) OpenRegion(name string) *Region {
	r := NewRegion(name)
	r.SetObserver(m.analyzer)
	m.analyzer.RegionOpened()

	m.mu.Lock()
	m.regions[r.ID()] = r
	m.mu.Unlock()

	if m.AuditMode() {
		log.Debugf("region %s opened (%s)", r.Name(), r.ID())
	}

	return r
}

// CloseRegion closes a managed region, invalidating every handle into it,
// and forgets it. It returns the number of objects released.
func (m *MemoryManager) CloseRegion(id string) (int, error) {
	m.mu.Lock()
	r, ok := m.regions[id]
	if ok {
		delete(m.regions, id)
	}
	m.mu.Unlock()

	if !ok {
		return 0, &InvalidReferenceError{Code: ErrorInvalidHandle, Region: id}
	}

	released := r.Close()
	if m.AuditMode() {
		log.Debugf("region %s closed, released %d objects", r.Name(), released)
	}

	return released, nil
}

// Region returns a managed region by ID.
func (m *MemoryManager) Region(id string) (*Region, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.regions[id]

	return r, ok
}

// Regions returns the open managed regions sorted by name.
func (m *MemoryManager) Regions() []*Region {
	m.mu.RLock()
	out := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// ManagerStats aggregates allocator, analyzer, and region state.
type ManagerStats struct {
	Allocator          allocator.AllocatorStats
	Analyzer           AnalyzerStats
	Regions            int
	LiveObjects        int
	TrackedAllocations int
}

// Stats returns a snapshot across the whole subsystem.
func (m *MemoryManager) Stats() ManagerStats {
	m.mu.RLock()
	regions := len(m.regions)
	live := 0
	for _, r := range m.regions {
		live += r.Len()
	}
	m.mu.RUnlock()

	return ManagerStats{
		Allocator:          m.alloc.Stats(),
		Analyzer:           m.analyzer.Stats(),
		Regions:            regions,
		LiveObjects:        live,
		TrackedAllocations: m.tracker.Count(),
	}
}

// LeakRecord describes one allocation still live when leaks were checked.
type LeakRecord struct {
	Address    uintptr
	Size       uintptr
	Timestamp  int64
	Generation uint64
	StackTrace []uintptr
}

// CheckLeaks returns the outstanding tracked allocations sorted by
// address. Only audit-mode allocations are visible here.
func (m *MemoryManager) CheckLeaks() []LeakRecord {
	var leaks []LeakRecord
	m.tracker.Walk(func(ptr unsafe.Pointer, info *allocator.AllocationInfo) bool {
		leaks = append(leaks, LeakRecord{
			Address:    uintptr(ptr),
			Size:       info.Size,
			Timestamp:  info.Timestamp,
			Generation: info.Generation,
			StackTrace: info.StackTrace,
		})

		return true
	})

	sort.Slice(leaks, func(i, j int) bool { return leaks[i].Address < leaks[j].Address })

	return leaks
}

// Shutdown closes every open region, reports outstanding allocations, and
// resets the backing allocator. The manager must not be used afterwards.
func (m *MemoryManager) Shutdown() error {
	m.mu.Lock()
	regions := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		regions = append(regions, r)
	}
	m.regions = make(map[string]*Region)
	m.mu.Unlock()

	for _, r := range regions {
		r.Close()
	}

	leaks := m.CheckLeaks()
	m.tracker.Reset()
	m.alloc.Reset()

	if len(leaks) > 0 {
		log.Warningf("shutdown with %d leaked allocations", len(leaks))

		return fmt.Errorf("shutdown with %d leaked allocations", len(leaks))
	}

	return nil
}

// Allocator exposes the backing allocator.
func (m *MemoryManager) Allocator() allocator.Allocator {
	return m.alloc
}

// Analyzer exposes the session analyzer.
func (m *MemoryManager) Analyzer() *MemoryAnalyzer {
	return m.analyzer
}

// Tracker exposes the audit tracker.
func (m *MemoryManager) Tracker() *allocator.AllocationTracker {
	return m.tracker
}

// AuditMode reports whether audit mode is on.
func (m *MemoryManager) AuditMode() bool {
	return atomic.LoadInt32(&m.audit) != 0
}

// SetAuditMode toggles audit mode at runtime. Only allocations made while
// audit mode is on are tracked, so frees of earlier allocations will be
// reported as untracked.
func (m *MemoryManager) SetAuditMode(enabled bool) {
	var v int32
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&m.audit, v)
}
