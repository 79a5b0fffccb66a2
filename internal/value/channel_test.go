package value

import (
	"sync"
	"testing"
)

func TestChannelSendReceive(t *testing.T) {
	t.Run("Buffered", func(t *testing.T) {
		ch, err := NewChannel(2)
		if err != nil {
			t.Fatalf("NewChannel: %v", err)
		}
		if ch.Cap() != 2 {
			t.Errorf("Cap = %d", ch.Cap())
		}

		if err := ch.Send(NewInt(1)); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if err := ch.Send(NewInt(2)); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if ch.Len() != 2 {
			t.Errorf("Len = %d", ch.Len())
		}

		v, ok := ch.Receive()
		if !ok || !v.Equal(NewInt(1)) {
			t.Errorf("Receive = %s, %v", v.String(), ok)
		}
	})

	t.Run("TryReceiveEmpty", func(t *testing.T) {
		ch, _ := NewChannel(1)
		if _, ok := ch.TryReceive(); ok {
			t.Fatal("TryReceive on empty channel resolved")
		}
	})

	t.Run("NegativeCapacity", func(t *testing.T) {
		if _, err := NewChannel(-1); err == nil {
			t.Fatal("negative capacity should be rejected")
		}
	})

	t.Run("Unbuffered", func(t *testing.T) {
		ch, _ := NewChannel(0)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ch.Send(NewInt(9))
		}()

		v, ok := ch.Receive()
		if !ok || !v.Equal(NewInt(9)) {
			t.Errorf("Receive = %s, %v", v.String(), ok)
		}
		wg.Wait()
	})
}

func TestChannelClose(t *testing.T) {
	t.Run("SendAfterCloseFails", func(t *testing.T) {
		ch, _ := NewChannel(1)
		ch.Close()

		if err := ch.Send(NewInt(1)); err == nil {
			t.Fatal("send on closed channel should fail")
		}
		if !ch.Closed() {
			t.Error("Closed() = false")
		}
	})

	t.Run("BufferedValuesDrainAfterClose", func(t *testing.T) {
		ch, _ := NewChannel(2)
		_ = ch.Send(NewInt(1))
		_ = ch.Send(NewInt(2))
		ch.Close()

		v, ok := ch.Receive()
		if !ok || !v.Equal(NewInt(1)) {
			t.Fatalf("first drain = %s, %v", v.String(), ok)
		}
		v, ok = ch.Receive()
		if !ok || !v.Equal(NewInt(2)) {
			t.Fatalf("second drain = %s, %v", v.String(), ok)
		}
		if _, ok := ch.Receive(); ok {
			t.Fatal("drained channel should report closed")
		}
	})

	t.Run("CloseIdempotent", func(t *testing.T) {
		ch, _ := NewChannel(1)
		ch.Close()
		ch.Close()

		if !ch.Closed() {
			t.Error("Closed() = false")
		}
	})

	t.Run("Display", func(t *testing.T) {
		ch, _ := NewChannel(3)
		if got := ch.String(); got != "Channel(cap=3, open)" {
			t.Errorf("String() = %q", got)
		}
		ch.Close()
		if got := ch.String(); got != "Channel(cap=3, closed)" {
			t.Errorf("String() = %q", got)
		}
	})
}

func TestAtomicOps(t *testing.T) {
	t.Run("LoadStoreAdd", func(t *testing.T) {
		a := NewAtomic(5)
		if a.Load() != 5 {
			t.Errorf("Load = %d", a.Load())
		}
		a.Store(10)
		if got := a.Add(-3); got != 7 {
			t.Errorf("Add = %d", got)
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		a := NewAtomic(1)
		if !a.CompareAndSwap(1, 2) {
			t.Fatal("CAS(1, 2) failed")
		}
		if a.CompareAndSwap(1, 3) {
			t.Fatal("CAS(1, 3) succeeded against 2")
		}
		if a.Load() != 2 {
			t.Errorf("Load = %d", a.Load())
		}
	})

	t.Run("ConcurrentAdds", func(t *testing.T) {
		a := NewAtomic(0)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					a.Add(1)
				}
			}()
		}
		wg.Wait()

		if a.Load() != 800 {
			t.Errorf("Load = %d, want 800", a.Load())
		}
	})

	t.Run("DisplayShowsValue", func(t *testing.T) {
		v := NewAtomicValue(NewAtomic(42))
		if got := v.String(); got != "42" {
			t.Errorf("String() = %q", got)
		}
	})
}
