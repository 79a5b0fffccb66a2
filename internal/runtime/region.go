// Package runtime implements region-scoped object lifetime for the Limitly
// runtime. Objects live in regions as generation-stamped slots, are reached
// through Linear and Ref handles that validate before every access, and are
// reclaimed in bulk when their region closes. The MemoryManager ties regions
// to the block allocators and to the leak analyzer.
package runtime

import (
	"sync"

	"github.com/google/uuid"
)

// Handle names one slot in one region. The index selects the slot, the
// generation proves the slot still holds the object this handle was issued
// for. A zero generation never matches a live slot.
type Handle struct {
	Index      uint32
	Generation uint64
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

// RegionEventKind identifies lifecycle events observed on a region.
type RegionEventKind int

const (
	EventObjectCreated RegionEventKind = iota
	EventObjectReleased
	EventRegionClosed
	EventRefAcquired
	EventRefReleased
	EventLinearCreated
	EventLinearReleased
)

// RegionObserver receives lifecycle events from regions and their handles.
type RegionObserver interface {
	RegionEvent(kind RegionEventKind, r *Region, h Handle)
}

// RegionStats holds region counters.
type RegionStats struct {
	Created    uint64
	Released   uint64
	Live       int
	Capacity   int
	Generation uint64
	Closed     bool
}

type slot struct {
	value      any
	generation uint64
	live       bool
}

// Region owns a set of objects with a common lifetime. Slots are recycled
// through a free list, but generations are drawn from a per-region counter
// that only moves forward, so a handle into a recycled slot can never
// observe the new occupant.
type Region struct {
	mu       sync.RWMutex
	id       string
	name     string
	slots    []slot
	freeList []uint32
	scopes   [][]Handle
	observer RegionObserver

	generation uint64
	created    uint64
	released   uint64
	live       int
	closed     bool
}

// NewRegion creates an open region. The name is for diagnostics only and
// need not be unique; identity is the generated ID.
func NewRegion(name string) *Region {
	return &Region{
		id:   uuid.NewString(),
		name: name,
	}
}

// ID returns the unique region identifier.
func (r *Region) ID() string {
	return r.id
}

// Name returns the diagnostic region name.
func (r *Region) Name() string {
	return r.name
}

// Create stores value in a fresh slot and returns its handle.
func (r *Region) Create(value any) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Handle{}, &AllocationError{
			Message: "create on closed region",
			Code:    ErrorRegionClosed,
			Region:  r.id,
		}
	}

	r.generation++
	gen := r.generation

	var index uint32
	if n := len(r.freeList); n > 0 {
		index = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.slots[index] = slot{value: value, generation: gen, live: true}
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, slot{value: value, generation: gen, live: true})
	}

	r.created++
	r.live++

	h := Handle{Index: index, Generation: gen}
	if n := len(r.scopes); n > 0 {
		r.scopes[n-1] = append(r.scopes[n-1], h)
	}
	if r.observer != nil {
		r.observer.RegionEvent(EventObjectCreated, r, h)
	}

	return h, nil
}

// EnterScope opens a nested frame. Objects created while it is open
// belong to it and are released together by the matching ExitScope.
func (r *Region) EnterScope() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.scopes = append(r.scopes, nil)
}

// ExitScope releases every still-live object created since the matching
// EnterScope and returns how many it released. Objects released early are
// skipped. Without an open frame ExitScope is a no-op.
func (r *Region) ExitScope() int {
	r.mu.Lock()

	n := len(r.scopes)
	if n == 0 || r.closed {
		r.mu.Unlock()

		return 0
	}

	frame := r.scopes[n-1]
	r.scopes = r.scopes[:n-1]

	var dead []Handle
	for _, h := range frame {
		if r.validateLocked(h) != nil {
			continue
		}
		r.releaseSlotLocked(h.Index)
		r.freeList = append(r.freeList, h.Index)
		dead = append(dead, h)
	}

	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		for _, h := range dead {
			observer.RegionEvent(EventObjectReleased, r, h)
		}
	}

	return len(dead)
}

// ScopeDepth returns the number of open scope frames.
func (r *Region) ScopeDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.scopes)
}

// Get returns the value behind h, validating index and generation first.
func (r *Region) Get(h Handle) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.validateLocked(h); err != nil {
		return nil, err
	}

	return r.slots[h.Index].value, nil
}

// Set replaces the value behind h. The slot keeps its generation: handles
// name the slot's occupancy, not a particular stored value.
func (r *Region) Set(h Handle, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateLocked(h); err != nil {
		return err
	}

	r.slots[h.Index].value = value

	return nil
}

// Release frees the slot behind h and recycles its index. Releasing through
// a stale or already-released handle fails without touching the slot.
func (r *Region) Release(h Handle) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()

		return &InvalidReferenceError{Code: ErrorRegionClosed, Region: r.id, Index: h.Index, Want: h.Generation}
	}

	if int(h.Index) >= len(r.slots) || h.Generation == 0 {
		r.mu.Unlock()

		return &InvalidReferenceError{Code: ErrorInvalidHandle, Region: r.id, Index: h.Index, Want: h.Generation}
	}

	s := &r.slots[h.Index]
	if !s.live {
		r.mu.Unlock()

		return &InvalidReferenceError{Code: ErrorDoubleFree, Region: r.id, Index: h.Index, Want: h.Generation}
	}

	if s.generation != h.Generation {
		r.mu.Unlock()

		return &InvalidReferenceError{Code: ErrorStaleGeneration, Region: r.id, Index: h.Index, Have: s.generation, Want: h.Generation}
	}

	r.releaseSlotLocked(h.Index)
	r.freeList = append(r.freeList, h.Index)
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer.RegionEvent(EventObjectReleased, r, h)
	}

	return nil
}

// Valid reports whether h currently resolves to a live slot.
func (r *Region) Valid(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.validateLocked(h) == nil
}

// GenerationOf returns the current generation of the slot at index, or zero
// when the slot is dead or the index was never used.
func (r *Region) GenerationOf(index uint32) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(index) >= len(r.slots) || !r.slots[index].live {
		return 0
	}

	return r.slots[index].generation
}

// Close releases every live slot and marks the region closed. Handles into
// the region all become invalid at once. Close is idempotent and returns
// the number of objects released by this call.
func (r *Region) Close() int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return 0
	}

	var dead []Handle
	for i := range r.slots {
		if r.slots[i].live {
			dead = append(dead, Handle{Index: uint32(i), Generation: r.slots[i].generation})
			r.releaseSlotLocked(uint32(i))
		}
	}

	r.freeList = nil
	r.scopes = nil
	r.closed = true
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		for _, h := range dead {
			observer.RegionEvent(EventObjectReleased, r, h)
		}
		observer.RegionEvent(EventRegionClosed, r, Handle{})
	}

	return len(dead)
}

// Closed reports whether the region has been closed.
func (r *Region) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.closed
}

// Len returns the number of live objects.
func (r *Region) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.live
}

// Stats returns a snapshot of the region counters.
func (r *Region) Stats() RegionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegionStats{
		Created:    r.created,
		Released:   r.released,
		Live:       r.live,
		Capacity:   len(r.slots),
		Generation: r.generation,
		Closed:     r.closed,
	}
}

// SetObserver installs an observer for lifecycle events. Pass nil to detach.
func (r *Region) SetObserver(obs RegionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

func (r *Region) notify(kind RegionEventKind, h Handle) {
	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()

	if observer != nil {
		observer.RegionEvent(kind, r, h)
	}
}

// releaseSlotLocked kills one live slot. Caller holds the write lock and
// has validated the slot.
func (r *Region) releaseSlotLocked(index uint32) {
	r.slots[index].live = false
	r.slots[index].value = nil
	r.released++
	r.live--
}

// validateLocked checks h against the current slot state. Caller holds at
// least the read lock.
func (r *Region) validateLocked(h Handle) error {
	if r.closed {
		return &InvalidReferenceError{
			Code:   ErrorRegionClosed,
			Region: r.id,
			Index:  h.Index,
			Want:   h.Generation,
		}
	}

	if int(h.Index) >= len(r.slots) || h.Generation == 0 {
		return &InvalidReferenceError{
			Code:   ErrorInvalidHandle,
			Region: r.id,
			Index:  h.Index,
			Want:   h.Generation,
		}
	}

	s := &r.slots[h.Index]
	if !s.live {
		return &InvalidReferenceError{
			Code:   ErrorStaleGeneration,
			Region: r.id,
			Index:  h.Index,
			Want:   h.Generation,
		}
	}

	if s.generation != h.Generation {
		return &InvalidReferenceError{
			Code:   ErrorStaleGeneration,
			Region: r.id,
			Index:  h.Index,
			Have:   s.generation,
			Want:   h.Generation,
		}
	}

	return nil
}
