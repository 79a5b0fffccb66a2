package value

import "fmt"

// FunctionValue describes a compiled function: its name, signature, and
// the half-open instruction range [Start, End) it occupies.
type FunctionValue struct {
	Name  string
	Type  *FunctionType
	Start int
	End   int
}

// NewFunction builds a function descriptor.
func NewFunction(name string, ft *FunctionType, start, end int) (*FunctionValue, error) {
	fv := &FunctionValue{Name: name, Type: ft, Start: start, End: end}
	if !fv.Valid() {
		return nil, fmt.Errorf("invalid function %q: range [%d, %d)", name, start, end)
	}

	return fv, nil
}

// Valid reports whether the descriptor names a function with a
// non-empty instruction range.
func (fv *FunctionValue) Valid() bool {
	return fv.Name != "" && fv.Start >= 0 && fv.Start < fv.End
}

// Arity returns the declared parameter count.
func (fv *FunctionValue) Arity() int {
	if fv.Type == nil {
		return 0
	}

	return len(fv.Type.Params)
}

// String renders the display form.
func (fv *FunctionValue) String() string {
	return fmt.Sprintf("Function(%s @%d..%d)", fv.Name, fv.Start, fv.End)
}
