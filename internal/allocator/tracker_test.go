package allocator

import (
	"testing"
	"unsafe"
)

func TestAllocationTracker(t *testing.T) {
	tracker := NewAllocationTracker(false)

	// Backing array so the tracked pointers are real addresses.
	var backing [8][64]byte
	ptrAt := func(i int) unsafe.Pointer { return unsafe.Pointer(&backing[i][0]) }

	t.Run("TrackUntrack", func(t *testing.T) {
		tracker.Track(ptrAt(0), 64, 1)

		info, ok := tracker.Lookup(ptrAt(0))
		if !ok {
			t.Fatal("Tracked pointer not found")
		}
		if info.Size != 64 {
			t.Errorf("Recorded size %d, want 64", info.Size)
		}
		if info.Generation != 1 {
			t.Errorf("Recorded generation %d, want 1", info.Generation)
		}

		removed, ok := tracker.Untrack(ptrAt(0))
		if !ok || removed.Size != 64 {
			t.Error("Untrack should return the original record")
		}

		if _, ok := tracker.Lookup(ptrAt(0)); ok {
			t.Error("Pointer still tracked after untrack")
		}
		if _, ok := tracker.Untrack(ptrAt(0)); ok {
			t.Error("Second untrack should fail")
		}
	})

	t.Run("SizeQueries", func(t *testing.T) {
		tracker.Reset()

		tracker.Track(ptrAt(0), 16, 1)
		tracker.Track(ptrAt(1), 16, 2)
		tracker.Track(ptrAt(2), 64, 3)
		tracker.Track(ptrAt(3), 256, 4)

		if got := len(tracker.BySize(16)); got != 2 {
			t.Errorf("BySize(16) returned %d pointers, want 2", got)
		}
		if got := len(tracker.BySize(32)); got != 0 {
			t.Errorf("BySize(32) returned %d pointers, want 0", got)
		}

		if got := len(tracker.SizeRange(16, 64)); got != 3 {
			t.Errorf("SizeRange(16, 64) returned %d pointers, want 3", got)
		}
		if got := len(tracker.SizeRange(0, 1024)); got != 4 {
			t.Errorf("SizeRange(0, 1024) returned %d pointers, want 4", got)
		}

		if tracker.Count() != 4 {
			t.Errorf("Count is %d, want 4", tracker.Count())
		}
		if tracker.TotalBytes() != 16+16+64+256 {
			t.Errorf("TotalBytes is %d, want %d", tracker.TotalBytes(), 16+16+64+256)
		}
	})

	t.Run("Walk", func(t *testing.T) {
		tracker.Reset()

		tracker.Track(ptrAt(0), 8, 1)
		tracker.Track(ptrAt(1), 8, 2)
		tracker.Track(ptrAt(2), 8, 3)

		visited := 0
		tracker.Walk(func(ptr unsafe.Pointer, info *AllocationInfo) bool {
			visited++

			return true
		})
		if visited != 3 {
			t.Errorf("Walk visited %d records, want 3", visited)
		}

		// Early stop
		visited = 0
		tracker.Walk(func(ptr unsafe.Pointer, info *AllocationInfo) bool {
			visited++

			return false
		})
		if visited != 1 {
			t.Errorf("Walk with early stop visited %d records, want 1", visited)
		}
	})

	t.Run("PeakCount", func(t *testing.T) {
		tracker.Reset()

		tracker.Track(ptrAt(0), 8, 1)
		tracker.Track(ptrAt(1), 8, 2)
		tracker.Untrack(ptrAt(0))
		tracker.Untrack(ptrAt(1))

		if peak := tracker.PeakCount(); peak != 2 {
			t.Errorf("Peak count is %d, want 2", peak)
		}
		if tracker.Count() != 0 {
			t.Errorf("Count is %d after untracking all, want 0", tracker.Count())
		}
	})

	t.Run("Stacks", func(t *testing.T) {
		st := NewAllocationTracker(true)
		st.Track(ptrAt(0), 8, 1)

		info, ok := st.Lookup(ptrAt(0))
		if !ok {
			t.Fatal("Tracked pointer not found")
		}
		if len(info.StackTrace) == 0 {
			t.Error("Stack-tracking tracker recorded no stack")
		}
	})
}
