package value

import "strings"

// ListValue is a growable ordered collection with a declared element
// type.
type ListValue struct {
	ElemType *Type
	items    []Value
}

// NewList builds a list payload. A nil element type means any.
func NewList(elemType *Type, items ...Value) *ListValue {
	if elemType == nil {
		elemType = AnyType
	}

	return &ListValue{ElemType: elemType, items: append([]Value(nil), items...)}
}

// Len returns the element count.
func (l *ListValue) Len() int {
	return len(l.items)
}

// Append adds one element to the end.
func (l *ListValue) Append(v Value) {
	l.items = append(l.items, v)
}

// Extend appends every element of other.
func (l *ListValue) Extend(other *ListValue) {
	l.items = append(l.items, other.items...)
}

// normalize maps a possibly negative index onto the slice. ok is false
// when the index falls outside the list.
func (l *ListValue) normalize(index int) (int, bool) {
	if index < 0 {
		index += len(l.items)
	}
	if index < 0 || index >= len(l.items) {
		return 0, false
	}

	return index, true
}

// At returns the element at index. Negative indices count from the end.
func (l *ListValue) At(index int) (Value, *ErrorValue) {
	i, ok := l.normalize(index)
	if !ok {
		return Value{}, IndexOutOfBounds(index, len(l.items))
	}

	return l.items[i], nil
}

// Set replaces the element at index.
func (l *ListValue) Set(index int, v Value) *ErrorValue {
	i, ok := l.normalize(index)
	if !ok {
		return IndexOutOfBounds(index, len(l.items))
	}
	l.items[i] = v

	return nil
}

// Insert places v before index. An index equal to the length appends.
func (l *ListValue) Insert(index int, v Value) *ErrorValue {
	if index < 0 {
		index += len(l.items)
	}
	if index < 0 || index > len(l.items) {
		return IndexOutOfBounds(index, len(l.items))
	}

	l.items = append(l.items, Value{})
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = v

	return nil
}

// Pop removes and returns the element at index. The default pop target
// is the last element.
func (l *ListValue) Pop(index int) (Value, *ErrorValue) {
	i, ok := l.normalize(index)
	if !ok {
		return Value{}, IndexOutOfBounds(index, len(l.items))
	}

	v := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)

	return v, nil
}

// Slice returns a copy of the half-open range [start, end). Negative
// bounds count from the end and the range is clamped to the list.
func (l *ListValue) Slice(start, end int) *ListValue {
	n := len(l.items)
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return NewList(l.ElemType)
	}

	return NewList(l.ElemType, l.items[start:end]...)
}

// Items returns the backing elements. Mutation through the returned
// slice is visible to the list.
func (l *ListValue) Items() []Value {
	return l.items
}

func (l *ListValue) equal(other *ListValue) bool {
	if other == nil || len(l.items) != len(other.items) {
		return false
	}
	for i, v := range l.items {
		if !v.Equal(other.items[i]) {
			return false
		}
	}

	return true
}

// String renders the display form.
func (l *ListValue) String() string {
	return l.render(false)
}

func (l *ListValue) render(raw bool) string {
	parts := make([]string, len(l.items))
	for i, v := range l.items {
		parts[i] = v.render(raw)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
