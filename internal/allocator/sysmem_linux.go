//go:build linux
// +build linux

package allocator

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// allocChunk maps an anonymous read-write region for pool chunks. The
// returned slice is page-rounded, so it may be larger than requested.
// Mapped chunks are invisible to the Go garbage collector, which keeps
// pool memory out of GC scan work.
func allocChunk(size uintptr) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0")
	}

	pageSize := uintptr(os.Getpagesize())
	mapSize := alignUp(size, pageSize)

	chunk, err := unix.Mmap(-1, 0, int(mapSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap of %d bytes failed: %w", mapSize, err)
	}

	return chunk, nil
}

// releaseChunk unmaps a chunk obtained from allocChunk.
func releaseChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	_ = unix.Munmap(chunk)
}
