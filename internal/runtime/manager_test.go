package runtime

import (
	"testing"

	"github.com/limitly-lang/limitly/internal/allocator"
)

func TestManagerAllocate(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	t.Run("ZeroFill", func(t *testing.T) {
		ptr, err := m.Allocate(64)
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}

		buf := (*[64]byte)(ptr)
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("byte %d = %d, want 0", i, b)
			}
		}

		// Dirty the block, free it, and take it again: the pool hands the
		// same block back and it must come back zeroed.
		for i := range buf {
			buf[i] = 0xAB
		}
		if err := m.Deallocate(ptr); err != nil {
			t.Fatalf("Deallocate failed: %v", err)
		}

		again, err := m.Allocate(64)
		if err != nil {
			t.Fatalf("second Allocate failed: %v", err)
		}
		buf = (*[64]byte)(again)
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("reused byte %d = %d, want 0", i, b)
			}
		}
		m.Deallocate(again)
	})

	t.Run("ZeroSize", func(t *testing.T) {
		_, err := m.Allocate(0)
		ae, ok := err.(*AllocationError)
		if !ok || ae.Code != ErrorInvalidSize {
			t.Fatalf("Allocate(0) error = %v, want AllocationError[InvalidSize]", err)
		}
	})

	t.Run("NilDeallocate", func(t *testing.T) {
		if err := m.Deallocate(nil); err != nil {
			t.Errorf("Deallocate(nil) = %v, want nil", err)
		}
	})
}

func TestManagerReallocate(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	ptr, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	src := (*[32]byte)(ptr)
	for i := range src {
		src[i] = byte(i)
	}

	next, err := m.Reallocate(ptr, 200)
	if err != nil {
		t.Fatalf("Reallocate failed: %v", err)
	}

	dst := (*[32]byte)(next)
	for i := range dst {
		if dst[i] != byte(i) {
			t.Fatalf("byte %d = %d after realloc, want %d", i, dst[i], i)
		}
	}

	if err := m.Deallocate(next); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}

	t.Run("NilGrowsFromNothing", func(t *testing.T) {
		p, err := m.Reallocate(nil, 16)
		if err != nil || p == nil {
			t.Fatalf("Reallocate(nil, 16) = %v, %v", p, err)
		}
		m.Deallocate(p)
	})

	t.Run("ZeroSizeFrees", func(t *testing.T) {
		p, _ := m.Allocate(16)
		q, err := m.Reallocate(p, 0)
		if err != nil || q != nil {
			t.Fatalf("Reallocate(p, 0) = %v, %v, want nil, nil", q, err)
		}
	})
}

func TestManagerAuditMode(t *testing.T) {
	m, err := NewManager(WithAuditMode(true))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if !m.AuditMode() {
		t.Fatal("audit mode not enabled")
	}

	t.Run("DoubleFreeReported", func(t *testing.T) {
		ptr, _ := m.Allocate(64)
		if err := m.Deallocate(ptr); err != nil {
			t.Fatalf("first Deallocate failed: %v", err)
		}

		err := m.Deallocate(ptr)
		ae, ok := err.(*AllocationError)
		if !ok || ae.Code != ErrorDoubleFree {
			t.Fatalf("second Deallocate error = %v, want AllocationError[DoubleFree]", err)
		}

		if m.Analyzer().Stats().DoubleFrees == 0 {
			t.Error("analyzer did not count the double free")
		}
	})

	t.Run("LeaksVisible", func(t *testing.T) {
		ptr, _ := m.Allocate(128)

		leaks := m.CheckLeaks()
		found := false
		for _, leak := range leaks {
			if leak.Address == uintptr(ptr) {
				found = true
				if leak.Size != 128 {
					t.Errorf("leak size = %d, want 128", leak.Size)
				}
				if len(leak.StackTrace) == 0 {
					t.Error("audit leak has no stack trace")
				}
			}
		}
		if !found {
			t.Fatal("outstanding allocation not in leak report")
		}

		if err := m.Shutdown(); err == nil {
			t.Fatal("Shutdown with leaks returned nil")
		}
	})
}

func TestManagerRegions(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	r := m.OpenRegion("request")
	if _, ok := m.Region(r.ID()); !ok {
		t.Fatal("opened region not registered")
	}

	h, _ := r.Create("x")

	released, err := m.CloseRegion(r.ID())
	if err != nil {
		t.Fatalf("CloseRegion failed: %v", err)
	}
	if released != 1 {
		t.Errorf("CloseRegion released %d, want 1", released)
	}
	if _, ok := m.Region(r.ID()); ok {
		t.Error("closed region still registered")
	}
	if _, err := r.Get(h); err == nil {
		t.Error("handle survived region close")
	}

	if _, err := m.CloseRegion("no-such-region"); err == nil {
		t.Error("CloseRegion of unknown id succeeded")
	}
}

func TestManagerStats(t *testing.T) {
	m, err := NewManager(WithAllocatorKind(allocator.DefaultAllocatorKind))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	r1 := m.OpenRegion("a")
	r2 := m.OpenRegion("b")
	r1.Create(1)
	r2.Create(2)
	r2.Create(3)

	ptr, _ := m.Allocate(64)

	stats := m.Stats()
	if stats.Regions != 2 {
		t.Errorf("Regions = %d, want 2", stats.Regions)
	}
	if stats.LiveObjects != 3 {
		t.Errorf("LiveObjects = %d, want 3", stats.LiveObjects)
	}
	if stats.Allocator.ActiveAllocations == 0 {
		t.Error("allocator shows no active allocations")
	}

	regions := m.Regions()
	if len(regions) != 2 || regions[0].Name() != "a" || regions[1].Name() != "b" {
		t.Errorf("Regions() not sorted by name: %v", regions)
	}

	m.Deallocate(ptr)
}

func TestManagerSetAuditMode(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	if m.AuditMode() {
		t.Fatal("audit on by default")
	}

	m.SetAuditMode(true)
	ptr, _ := m.Allocate(32)
	if m.Tracker().Count() != 1 {
		t.Errorf("tracked = %d after audit enable, want 1", m.Tracker().Count())
	}
	m.Deallocate(ptr)

	m.SetAuditMode(false)
	ptr2, _ := m.Allocate(32)
	if m.Tracker().Count() != 0 {
		t.Errorf("tracked = %d with audit off, want 0", m.Tracker().Count())
	}
	m.Deallocate(ptr2)
}

func BenchmarkManagerAllocate(b *testing.B) {
	m, err := NewManager()
	if err != nil {
		b.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr, _ := m.Allocate(64)
		m.Deallocate(ptr)
	}
}
