package value

import (
	"fmt"
	"sync"
)

// ChannelValue is a buffered value channel. Close only signals: buffered
// elements stay receivable until drained, and sends after close fail
// instead of panicking.
type ChannelValue struct {
	ch        chan Value
	done      chan struct{}
	closeOnce sync.Once
	capacity  int
}

// NewChannel builds a channel payload with the given buffer capacity.
func NewChannel(capacity int) (*ChannelValue, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("channel capacity must be non-negative, got %d", capacity)
	}

	return &ChannelValue{ch: make(chan Value, capacity), done: make(chan struct{}), capacity: capacity}, nil
}

// Send delivers v, blocking while the buffer is full. Sending on a
// closed channel returns an error.
func (c *ChannelValue) Send(v Value) error {
	select {
	case <-c.done:
		return fmt.Errorf("send on closed channel")
	default:
	}

	select {
	case c.ch <- v:
		return nil
	case <-c.done:
		return fmt.Errorf("send on closed channel")
	}
}

// Receive blocks until a value arrives or the channel is closed and
// drained.
func (c *ChannelValue) Receive() (Value, bool) {
	select {
	case v := <-c.ch:
		return v, true
	case <-c.done:
		select {
		case v := <-c.ch:
			return v, true
		default:
			return Value{}, false
		}
	}
}

// TryReceive returns a buffered value without blocking.
func (c *ChannelValue) TryReceive() (Value, bool) {
	select {
	case v := <-c.ch:
		return v, true
	default:
		return Value{}, false
	}
}

// Close marks the channel closed. Closing twice is a no-op.
func (c *ChannelValue) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called.
func (c *ChannelValue) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Len returns the buffered element count.
func (c *ChannelValue) Len() int {
	return len(c.ch)
}

// Cap returns the buffer capacity.
func (c *ChannelValue) Cap() int {
	return c.capacity
}

// String renders the display form.
func (c *ChannelValue) String() string {
	state := "open"
	if c.Closed() {
		state = "closed"
	}

	return fmt.Sprintf("Channel(cap=%d, %s)", c.capacity, state)
}
