package allocator

import (
	"bytes"
	"unsafe"
)

// Raw block operations over allocator memory. Callers are responsible for
// the pointers being live and the spans being in bounds; these are the
// primitives the zero-fill and realloc paths are built on.

// Memset fills size bytes at ptr with b.
func Memset(ptr unsafe.Pointer, b byte, size uintptr) {
	if ptr == nil || size == 0 {
		return
	}

	dst := (*[1 << 30]byte)(ptr)[:size:size]
	for i := range dst {
		dst[i] = b
	}
}

// Memzero clears size bytes at ptr.
func Memzero(ptr unsafe.Pointer, size uintptr) {
	Memset(ptr, 0, size)
}

// Memcopy copies size bytes from src to dst. The spans must not overlap.
func Memcopy(dst, src unsafe.Pointer, size uintptr) {
	if dst == nil || src == nil || size == 0 {
		return
	}

	copyMemory(dst, src, size)
}

// Memmove copies size bytes from src to dst, tolerating overlap.
func Memmove(dst, src unsafe.Pointer, size uintptr) {
	if dst == nil || src == nil || size == 0 {
		return
	}

	// copy has move semantics for overlapping slices.
	copyMemory(dst, src, size)
}

// Memcompare compares two spans of size bytes, with bytes.Compare ordering.
func Memcompare(a, b unsafe.Pointer, size uintptr) int {
	if size == 0 {
		return 0
	}

	as := (*[1 << 30]byte)(a)[:size:size]
	bs := (*[1 << 30]byte)(b)[:size:size]

	return bytes.Compare(as, bs)
}
