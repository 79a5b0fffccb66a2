package runtime

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"
)

// AnalyzerStats holds the analyzer counters at one point in time.
type AnalyzerStats struct {
	ActiveRegions int64  `cbor:"1,keyasint"`
	ActiveRefs    int64  `cbor:"2,keyasint"`
	ActiveLinears int64  `cbor:"3,keyasint"`
	LiveObjects   int64  `cbor:"4,keyasint"`
	LiveBytes     int64  `cbor:"5,keyasint"`
	PeakLiveBytes int64  `cbor:"6,keyasint"`
	TotalAllocs   uint64 `cbor:"7,keyasint"`
	TotalFrees    uint64 `cbor:"8,keyasint"`
	DoubleFrees   uint64 `cbor:"9,keyasint"`
	TrackedBlocks int    `cbor:"10,keyasint"`
}

type blockRecord struct {
	address   uintptr
	size      uintptr
	allocated time.Time
}

// MemoryAnalyzer observes allocations, regions, and handles, and keeps
// the counters that the snapshot codec and the metrics endpoint expose.
// All methods are safe for concurrent use.
type MemoryAnalyzer struct {
	sessionID string
	startTime time.Time

	mu     sync.RWMutex
	blocks map[uintptr]*blockRecord

	activeRegions int64
	activeRefs    int64
	activeLinears int64
	liveObjects   int64
	liveBytes     int64
	peakLiveBytes int64
	totalAllocs   uint64
	totalFrees    uint64
	doubleFrees   uint64
}

// NewMemoryAnalyzer creates an analyzer with a fresh session ID.
func NewMemoryAnalyzer() *MemoryAnalyzer {
	return &MemoryAnalyzer{
		sessionID: uuid.NewString(),
		startTime: time.Now(),
		blocks:    make(map[uintptr]*blockRecord),
	}
}

// SessionID returns the analyzer session identifier.
func (ma *MemoryAnalyzer) SessionID() string {
	return ma.sessionID
}

// StartTime returns when the session began.
func (ma *MemoryAnalyzer) StartTime() time.Time {
	return ma.startTime
}

// RecordAllocation notes one raw allocation.
func (ma *MemoryAnalyzer) RecordAllocation(ptr unsafe.Pointer, size uintptr) {
	addr := uintptr(ptr)

	ma.mu.Lock()
	ma.blocks[addr] = &blockRecord{address: addr, size: size, allocated: time.Now()}
	ma.mu.Unlock()

	atomic.AddUint64(&ma.totalAllocs, 1)
	live := atomic.AddInt64(&ma.liveBytes, int64(size))
	for {
		peak := atomic.LoadInt64(&ma.peakLiveBytes)
		if live <= peak || atomic.CompareAndSwapInt64(&ma.peakLiveBytes, peak, live) {
			break
		}
	}
}

// RecordFree notes one raw free. It returns false when ptr was not an
// outstanding allocation, which counts as a double free.
func (ma *MemoryAnalyzer) RecordFree(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)

	ma.mu.Lock()
	rec, ok := ma.blocks[addr]
	if ok {
		delete(ma.blocks, addr)
	}
	ma.mu.Unlock()

	if !ok {
		atomic.AddUint64(&ma.doubleFrees, 1)

		return false
	}

	atomic.AddUint64(&ma.totalFrees, 1)
	atomic.AddInt64(&ma.liveBytes, -int64(rec.size))

	return true
}

// RegionOpened notes a new region under observation.
func (ma *MemoryAnalyzer) RegionOpened() {
	atomic.AddInt64(&ma.activeRegions, 1)
}

// RegionEvent implements RegionObserver.
func (ma *MemoryAnalyzer) RegionEvent(kind RegionEventKind, r *Region, h Handle) {
	switch kind {
	case EventObjectCreated:
		atomic.AddInt64(&ma.liveObjects, 1)
	case EventObjectReleased:
		atomic.AddInt64(&ma.liveObjects, -1)
	case EventRegionClosed:
		atomic.AddInt64(&ma.activeRegions, -1)
	case EventRefAcquired:
		atomic.AddInt64(&ma.activeRefs, 1)
	case EventRefReleased:
		atomic.AddInt64(&ma.activeRefs, -1)
	case EventLinearCreated:
		atomic.AddInt64(&ma.activeLinears, 1)
	case EventLinearReleased:
		atomic.AddInt64(&ma.activeLinears, -1)
	}
}

// Stats returns the current counters.
func (ma *MemoryAnalyzer) Stats() AnalyzerStats {
	ma.mu.RLock()
	tracked := len(ma.blocks)
	ma.mu.RUnlock()

	return AnalyzerStats{
		ActiveRegions: atomic.LoadInt64(&ma.activeRegions),
		ActiveRefs:    atomic.LoadInt64(&ma.activeRefs),
		ActiveLinears: atomic.LoadInt64(&ma.activeLinears),
		LiveObjects:   atomic.LoadInt64(&ma.liveObjects),
		LiveBytes:     atomic.LoadInt64(&ma.liveBytes),
		PeakLiveBytes: atomic.LoadInt64(&ma.peakLiveBytes),
		TotalAllocs:   atomic.LoadUint64(&ma.totalAllocs),
		TotalFrees:    atomic.LoadUint64(&ma.totalFrees),
		DoubleFrees:   atomic.LoadUint64(&ma.doubleFrees),
		TrackedBlocks: tracked,
	}
}

// LiveBlocks returns the outstanding raw allocations sorted by address.
func (ma *MemoryAnalyzer) LiveBlocks() []BlockSnapshot {
	ma.mu.RLock()
	defer ma.mu.RUnlock()

	now := time.Now()
	out := make([]BlockSnapshot, 0, len(ma.blocks))
	for _, rec := range ma.blocks {
		out = append(out, BlockSnapshot{
			Address:   uint64(rec.address),
			Size:      uint64(rec.size),
			AgeMillis: now.Sub(rec.allocated).Milliseconds(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	return out
}

// Snapshot captures the session state for encoding.
func (ma *MemoryAnalyzer) Snapshot() AnalyzerSnapshot {
	now := time.Now()

	return AnalyzerSnapshot{
		SessionID:    ma.sessionID,
		TakenAtNanos: now.UnixNano(),
		UptimeMillis: now.Sub(ma.startTime).Milliseconds(),
		Stats:        ma.Stats(),
		LiveBlocks:   ma.LiveBlocks(),
	}
}

// Report renders a human-readable session summary.
func (ma *MemoryAnalyzer) Report() string {
	stats := ma.Stats()

	return fmt.Sprintf(
		"session %s: regions=%d objects=%d refs=%d linears=%d live=%dB peak=%dB allocs=%d frees=%d doubleFrees=%d",
		ma.sessionID, stats.ActiveRegions, stats.LiveObjects, stats.ActiveRefs, stats.ActiveLinears,
		stats.LiveBytes, stats.PeakLiveBytes, stats.TotalAllocs, stats.TotalFrees, stats.DoubleFrees)
}

// Reset clears every counter and forgets tracked blocks. The session ID
// and start time are kept.
func (ma *MemoryAnalyzer) Reset() {
	ma.mu.Lock()
	ma.blocks = make(map[uintptr]*blockRecord)
	ma.mu.Unlock()

	atomic.StoreInt64(&ma.activeRegions, 0)
	atomic.StoreInt64(&ma.activeRefs, 0)
	atomic.StoreInt64(&ma.activeLinears, 0)
	atomic.StoreInt64(&ma.liveObjects, 0)
	atomic.StoreInt64(&ma.liveBytes, 0)
	atomic.StoreInt64(&ma.peakLiveBytes, 0)
	atomic.StoreUint64(&ma.totalAllocs, 0)
	atomic.StoreUint64(&ma.totalFrees, 0)
	atomic.StoreUint64(&ma.doubleFrees, 0)
}
