package value

import "fmt"

type iteratorKind int

const (
	iterList iteratorKind = iota
	iterDict
	iterRange
	iterChannel
)

func (k iteratorKind) String() string {
	switch k {
	case iterList:
		return "list"
	case iterDict:
		return "dict"
	case iterRange:
		return "range"
	case iterChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// IteratorValue walks a list snapshot, a dict's sorted keys, a range, or
// a channel. Channel iteration consumes the channel and buffers one
// received element between HasNext and Next.
type IteratorValue struct {
	kind iteratorKind

	items []Value
	pos   int

	rng *RangeValue
	cur int64

	ch       *ChannelValue
	buffered bool
	pending  Value
}

// NewListIterator iterates over a snapshot of the list's elements.
func NewListIterator(l *ListValue) *IteratorValue {
	return &IteratorValue{kind: iterList, items: append([]Value(nil), l.items...)}
}

// NewDictIterator iterates over the dict's keys in sorted order.
func NewDictIterator(d *DictValue) *IteratorValue {
	return &IteratorValue{kind: iterDict, items: d.Keys()}
}

// NewRangeIterator iterates the integers of a range.
func NewRangeIterator(r *RangeValue) (*IteratorValue, error) {
	if r.Step == 0 {
		return nil, fmt.Errorf("range step must be non-zero")
	}

	return &IteratorValue{kind: iterRange, rng: r, cur: r.Start}, nil
}

// NewChannelIterator iterates values received from a channel until it is
// closed and drained.
func NewChannelIterator(ch *ChannelValue) *IteratorValue {
	return &IteratorValue{kind: iterChannel, ch: ch}
}

// HasNext reports whether Next will produce an element. For channel
// iterators this blocks until a value arrives or the channel closes.
func (it *IteratorValue) HasNext() bool {
	switch it.kind {
	case iterRange:
		if it.rng.Step > 0 {
			return it.cur < it.rng.End
		}

		return it.cur > it.rng.End
	case iterChannel:
		if it.buffered {
			return true
		}
		v, ok := it.ch.Receive()
		if !ok {
			return false
		}
		it.pending = v
		it.buffered = true

		return true
	default:
		return it.pos < len(it.items)
	}
}

// Next returns the next element. Calling Next past the end returns an
// IndexOutOfBounds error.
func (it *IteratorValue) Next() (Value, *ErrorValue) {
	switch it.kind {
	case iterRange:
		if !it.HasNext() {
			return Value{}, IndexOutOfBounds(0, 0)
		}
		v := NewInt(it.cur)
		it.cur += it.rng.Step

		return v, nil
	case iterChannel:
		if !it.HasNext() {
			return Value{}, IndexOutOfBounds(0, 0)
		}
		it.buffered = false

		return it.pending, nil
	default:
		if it.pos >= len(it.items) {
			return Value{}, IndexOutOfBounds(it.pos, len(it.items))
		}
		v := it.items[it.pos]
		it.pos++

		return v, nil
	}
}

// Reset rewinds the iterator to its start. Channel iterators cannot be
// rewound.
func (it *IteratorValue) Reset() error {
	switch it.kind {
	case iterChannel:
		return fmt.Errorf("channel iterators cannot be reset")
	case iterRange:
		it.cur = it.rng.Start
	default:
		it.pos = 0
	}

	return nil
}

// String renders the display form.
func (it *IteratorValue) String() string {
	return fmt.Sprintf("Iterator(%s)", it.kind.String())
}
