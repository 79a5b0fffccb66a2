//go:build !linux
// +build !linux

package allocator

import "fmt"

// allocChunk allocates a pool chunk from the Go heap on platforms without
// an mmap path. The chunk is pinned by the pool's chunk list.
func allocChunk(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0")
	}

	chunk := make([]byte, size)
	if len(chunk) != int(size) {
		return nil, fmt.Errorf("failed to allocate chunk of %d bytes", size)
	}

	return chunk, nil
}

// releaseChunk is a no-op on the heap path; dropping the reference is enough.
func releaseChunk(chunk []byte) {
	_ = chunk
}
