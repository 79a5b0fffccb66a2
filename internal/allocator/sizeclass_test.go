package allocator

import (
	"testing"
	"unsafe"
)

func TestAllocationHeaderLayout(t *testing.T) {
	if size := unsafe.Sizeof(AllocationHeader{}); size != headerSize {
		t.Fatalf("Header size is %d bytes, want %d", size, headerSize)
	}
}

// TestDefaultAllocator tests the size-classed allocator
func TestDefaultAllocator(t *testing.T) {
	config := defaultConfig()
	config.ChunkBlocks = 64

	da, err := NewDefaultAllocator(config)
	if err != nil {
		t.Fatalf("Failed to create default allocator: %v", err)
	}

	t.Run("ClassRouting", func(t *testing.T) {
		// One request per class boundary, plus odd sizes inside classes.
		sizes := []uintptr{1, 8, 9, 16, 24, 32, 64, 100, 128, 200, 256}

		for _, size := range sizes {
			ptr := da.Alloc(size)
			if ptr == nil {
				t.Errorf("Allocation failed for size %d", size)
				continue
			}

			if got := da.AllocSize(ptr); got != size {
				t.Errorf("Header records size %d, want %d", got, size)
			}

			// Write the full payload
			data := (*[256]byte)(ptr)[:size:size]
			for i := range data {
				data[i] = byte(i % 256)
			}
			for i := range data {
				if data[i] != byte(i%256) {
					t.Errorf("Data corruption at index %d for size %d", i, size)
				}
			}

			da.Free(ptr)
		}
	})

	t.Run("LargeAllocation", func(t *testing.T) {
		before := da.system.Stats().AllocationCount

		ptr := da.Alloc(4096)
		if ptr == nil {
			t.Fatal("Large allocation failed")
		}

		if got := da.AllocSize(ptr); got != 4096 {
			t.Errorf("Header records size %d, want 4096", got)
		}

		hdr := (*AllocationHeader)(unsafe.Add(ptr, -headerSize))
		if hdr.PoolIndex != largePoolIndex {
			t.Errorf("Large allocation pool index is %#x, want %#x", hdr.PoolIndex, largePoolIndex)
		}
		if hdr.Flags&headerFlagLarge == 0 {
			t.Error("Large allocation missing large flag")
		}

		if after := da.system.Stats().AllocationCount; after != before+1 {
			t.Errorf("Large allocation did not route to the system allocator")
		}

		da.Free(ptr)
	})

	t.Run("ZeroAllocation", func(t *testing.T) {
		if ptr := da.Alloc(0); ptr != nil {
			t.Error("Zero allocation should return nil")
		}
	})

	t.Run("PoolReuse", func(t *testing.T) {
		ptr1 := da.Alloc(64)
		if ptr1 == nil {
			t.Fatal("Allocation failed")
		}
		da.Free(ptr1)

		// The freed block is on top of the free list.
		ptr2 := da.Alloc(64)
		if ptr2 != ptr1 {
			t.Errorf("Expected block reuse, got %p then %p", ptr1, ptr2)
		}
		da.Free(ptr2)
	})

	t.Run("ReallocSameClass", func(t *testing.T) {
		ptr := da.Alloc(100)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		// 100 and 120 both land in the 128 class; the block must not move.
		newPtr := da.Realloc(ptr, 120)
		if newPtr != ptr {
			t.Errorf("Same-class realloc moved the block: %p -> %p", ptr, newPtr)
		}
		if got := da.AllocSize(newPtr); got != 120 {
			t.Errorf("Header records size %d after realloc, want 120", got)
		}

		da.Free(newPtr)
	})

	t.Run("ReallocCrossClass", func(t *testing.T) {
		ptr := da.Alloc(32)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := (*[32]byte)(ptr)
		for i := 0; i < 32; i++ {
			data[i] = byte(i)
		}

		newPtr := da.Realloc(ptr, 200)
		if newPtr == nil {
			t.Fatal("Realloc failed")
		}
		if newPtr == ptr {
			t.Error("Cross-class realloc should move the block")
		}

		newData := (*[200]byte)(newPtr)
		for i := 0; i < 32; i++ {
			if newData[i] != byte(i) {
				t.Errorf("Data corruption after realloc at index %d", i)
			}
		}

		da.Free(newPtr)
	})

	t.Run("Statistics", func(t *testing.T) {
		before := da.Stats()

		ptr := da.Alloc(64)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		mid := da.Stats()
		if mid.AllocationCount != before.AllocationCount+1 {
			t.Error("Allocation count not updated")
		}
		if mid.TotalAllocated != before.TotalAllocated+64 {
			t.Errorf("Total allocated moved by %d, want 64", mid.TotalAllocated-before.TotalAllocated)
		}

		da.Free(ptr)

		after := da.Stats()
		if after.FreeCount != mid.FreeCount+1 {
			t.Error("Free count not updated")
		}
	})

	t.Run("PoolInfo", func(t *testing.T) {
		info := da.Pools()
		if len(info) != len(config.PoolSizes) {
			t.Fatalf("Expected %d pools, got %d", len(config.PoolSizes), len(info))
		}

		for i := 1; i < len(info); i++ {
			if info[i].ClassSize <= info[i-1].ClassSize {
				t.Error("Pool info not sorted by class size")
			}
		}

		for _, pi := range info {
			if pi.BlockSize != pi.ClassSize+headerSize {
				t.Errorf("Class %d has block size %d, want %d",
					pi.ClassSize, pi.BlockSize, pi.ClassSize+headerSize)
			}
		}
	})
}

func TestDefaultAllocatorConcurrency(t *testing.T) {
	config := defaultConfig()

	da, err := NewDefaultAllocator(config)
	if err != nil {
		t.Fatalf("Failed to create default allocator: %v", err)
	}

	const numGoroutines = 8
	const opsPerGoroutine = 200

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(seed int) {
			defer func() { done <- true }()

			sizes := []uintptr{8, 24, 64, 100, 256, 1024}

			var ptrs []unsafe.Pointer
			for j := 0; j < opsPerGoroutine; j++ {
				size := sizes[(seed+j)%len(sizes)]
				ptr := da.Alloc(size)
				if ptr == nil {
					t.Errorf("Concurrent allocation of %d bytes failed", size)

					return
				}
				ptrs = append(ptrs, ptr)
			}

			for _, ptr := range ptrs {
				da.Free(ptr)
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	if active := da.ActiveAllocations(); active != 0 {
		t.Errorf("Expected 0 active allocations after paired ops, got %d", active)
	}
	if corrupt := da.CorruptHeaders(); corrupt != 0 {
		t.Errorf("Expected 0 corrupt headers, got %d", corrupt)
	}
}

func BenchmarkDefaultAllocator(b *testing.B) {
	config := defaultConfig()
	config.EnableTracking = false

	da, err := NewDefaultAllocator(config)
	if err != nil {
		b.Fatalf("Failed to create default allocator: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ptr := da.Alloc(128)
			if ptr != nil {
				da.Free(ptr)
			}
		}
	})
}
