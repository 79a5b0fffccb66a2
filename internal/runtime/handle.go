package runtime

import (
	"sync"
	"sync/atomic"
)

// Linear is a move-only handle: exactly one live owner at a time. Moving
// transfers the slot to the new handle and poisons the source, so the old
// name can never reach the object again. Release is idempotent.
type Linear[T any] struct {
	mu       sync.Mutex
	region   *Region
	handle   Handle
	released bool
}

// NewLinear stores value in r and returns its owning handle.
func NewLinear[T any](r *Region, value T) (*Linear[T], error) {
	h, err := r.Create(value)
	if err != nil {
		return nil, err
	}

	r.notify(EventLinearCreated, h)

	return &Linear[T]{region: r, handle: h}, nil
}

// Value returns the owned value.
func (l *Linear[T]) Value() (T, error) {
	var zero T

	l.mu.Lock()
	if l.released {
		l.mu.Unlock()

		return zero, l.useAfterMoveError()
	}
	h := l.handle
	l.mu.Unlock()

	raw, err := l.region.Get(h)
	if err != nil {
		return zero, err
	}

	v, ok := raw.(T)
	if !ok {
		return zero, &InvalidReferenceError{Code: ErrorInvalidHandle, Region: l.region.id, Index: h.Index, Want: h.Generation}
	}

	return v, nil
}

// Set replaces the owned value.
func (l *Linear[T]) Set(value T) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()

		return l.useAfterMoveError()
	}
	h := l.handle
	l.mu.Unlock()

	return l.region.Set(h, value)
}

// Move transfers ownership to a fresh handle and invalidates l. Every use
// of l after a move fails with ErrorUseAfterMove.
func (l *Linear[T]) Move() (*Linear[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil, l.useAfterMoveError()
	}

	l.released = true

	return &Linear[T]{region: l.region, handle: l.handle}, nil
}

// Release frees the owned slot. Calling Release again, or on a moved-from
// handle, is a no-op.
func (l *Linear[T]) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()

		return
	}
	l.released = true
	h := l.handle
	l.mu.Unlock()

	_ = l.region.Release(h)
	l.region.notify(EventLinearReleased, h)
}

// Released reports whether l has been moved from or released.
func (l *Linear[T]) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.released
}

// Handle returns the underlying slot handle.
func (l *Linear[T]) Handle() Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.handle
}

func (l *Linear[T]) useAfterMoveError() error {
	return &InvalidReferenceError{
		Code:   ErrorUseAfterMove,
		Region: l.region.id,
		Index:  l.handle.Index,
		Want:   l.handle.Generation,
	}
}

// Ref is a counted handle. Clones share one counter; the clone that takes
// it to zero releases the slot, and only if the slot is still the one the
// handle was issued for. Stale and closed-region cases degrade to no-ops
// because the region validates before freeing.
type Ref[T any] struct {
	region   *Region
	handle   Handle
	count    *int32
	released int32
}

// NewRef stores value in r and returns a counted handle with count one.
func NewRef[T any](r *Region, value T) (*Ref[T], error) {
	h, err := r.Create(value)
	if err != nil {
		return nil, err
	}

	count := new(int32)
	*count = 1
	r.notify(EventRefAcquired, h)

	return &Ref[T]{region: r, handle: h, count: count}, nil
}

// Clone returns a new handle sharing the count. Cloning a released handle
// returns nil.
func (rf *Ref[T]) Clone() *Ref[T] {
	if atomic.LoadInt32(&rf.released) != 0 {
		return nil
	}

	atomic.AddInt32(rf.count, 1)
	rf.region.notify(EventRefAcquired, rf.handle)

	return &Ref[T]{region: rf.region, handle: rf.handle, count: rf.count}
}

// Deref returns the shared value, validating the slot generation first.
func (rf *Ref[T]) Deref() (T, error) {
	var zero T

	if atomic.LoadInt32(&rf.released) != 0 {
		return zero, &InvalidReferenceError{Code: ErrorInvalidHandle, Region: rf.region.id, Index: rf.handle.Index, Want: rf.handle.Generation}
	}

	raw, err := rf.region.Get(rf.handle)
	if err != nil {
		return zero, err
	}

	v, ok := raw.(T)
	if !ok {
		return zero, &InvalidReferenceError{Code: ErrorInvalidHandle, Region: rf.region.id, Index: rf.handle.Index, Want: rf.handle.Generation}
	}

	return v, nil
}

// Set replaces the shared value.
func (rf *Ref[T]) Set(value T) error {
	if atomic.LoadInt32(&rf.released) != 0 {
		return &InvalidReferenceError{Code: ErrorInvalidHandle, Region: rf.region.id, Index: rf.handle.Index, Want: rf.handle.Generation}
	}

	return rf.region.Set(rf.handle, value)
}

// Release drops this clone's share of the count. The call that reaches
// zero frees the slot when it is still valid. Release is idempotent per
// clone.
func (rf *Ref[T]) Release() {
	if !atomic.CompareAndSwapInt32(&rf.released, 0, 1) {
		return
	}

	rf.region.notify(EventRefReleased, rf.handle)

	if atomic.AddInt32(rf.count, -1) == 0 {
		_ = rf.region.Release(rf.handle)
	}
}

// Valid reports whether this clone can still reach a live slot.
func (rf *Ref[T]) Valid() bool {
	return atomic.LoadInt32(&rf.released) == 0 && rf.region.Valid(rf.handle)
}

// Count returns the current shared count.
func (rf *Ref[T]) Count() int32 {
	return atomic.LoadInt32(rf.count)
}

// Handle returns the underlying slot handle.
func (rf *Ref[T]) Handle() Handle {
	return rf.handle
}
