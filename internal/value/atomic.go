package value

import (
	"strconv"
	"sync/atomic"
)

// AtomicValue is a lock-free integer cell.
type AtomicValue struct {
	n int64
}

// NewAtomic builds an atomic cell holding initial.
func NewAtomic(initial int64) *AtomicValue {
	return &AtomicValue{n: initial}
}

// Load returns the current value.
func (a *AtomicValue) Load() int64 {
	return atomic.LoadInt64(&a.n)
}

// Store replaces the current value.
func (a *AtomicValue) Store(v int64) {
	atomic.StoreInt64(&a.n, v)
}

// Add adds delta and returns the new value.
func (a *AtomicValue) Add(delta int64) int64 {
	return atomic.AddInt64(&a.n, delta)
}

// CompareAndSwap replaces old with new when the cell still holds old.
func (a *AtomicValue) CompareAndSwap(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&a.n, old, new)
}

// String renders the loaded value.
func (a *AtomicValue) String() string {
	return strconv.FormatInt(a.Load(), 10)
}
