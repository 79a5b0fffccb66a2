package value

import "strings"

// TupleValue is a fixed-arity sequence. Elements keep their own types.
type TupleValue struct {
	Elems []Value
}

// NewTuple builds a tuple payload.
func NewTuple(elems ...Value) *TupleValue {
	return &TupleValue{Elems: append([]Value(nil), elems...)}
}

// Len returns the arity.
func (t *TupleValue) Len() int {
	return len(t.Elems)
}

// At returns the element at index. Tuples do not wrap negative indices.
func (t *TupleValue) At(index int) (Value, *ErrorValue) {
	if index < 0 || index >= len(t.Elems) {
		return Value{}, IndexOutOfBounds(index, len(t.Elems))
	}

	return t.Elems[index], nil
}

func (t *TupleValue) equal(other *TupleValue) bool {
	if other == nil || len(t.Elems) != len(other.Elems) {
		return false
	}
	for i, v := range t.Elems {
		if !v.Equal(other.Elems[i]) {
			return false
		}
	}

	return true
}

// String renders the display form.
func (t *TupleValue) String() string {
	return t.render(false)
}

func (t *TupleValue) render(raw bool) string {
	parts := make([]string, len(t.Elems))
	for i, v := range t.Elems {
		parts[i] = v.render(raw)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}
