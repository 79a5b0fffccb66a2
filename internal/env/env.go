// Package env implements lexical scoping for interpreted programs:
// visibility-tagged bindings, nested scope chains, and closures that
// capture their definition environment by value.
package env

import (
	"sort"
	"sync"

	"github.com/limitly-lang/limitly/internal/value"
)

// Visibility controls who may read a binding. Bindings default to
// Private.
type Visibility int

const (
	Private Visibility = iota // visible inside the defining scope chain
	Protected                 // visible to the module and its children
	Public                    // visible to external callers
	Const                     // public and immutable
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	case Const:
		return "const"
	default:
		return "unknown"
	}
}

// External reports whether the binding may be read from outside its
// defining scope.
func (v Visibility) External() bool {
	return v == Public || v == Const
}

type symbol struct {
	value      value.Value
	visibility Visibility
}

// Environment is one lexical scope. Lookup order is captured values,
// local bindings, the closure's definition chain, then the enclosing
// scope. Locks are released before recursing into a parent so that
// diamond-shaped chains cannot deadlock.
type Environment struct {
	mu            sync.RWMutex
	values        map[string]symbol
	captured      map[string]value.Value
	closureParent *Environment
	enclosing     *Environment
}

// NewEnvironment builds a root scope.
func NewEnvironment() *Environment {
	return &Environment{
		values:   make(map[string]symbol),
		captured: make(map[string]value.Value),
	}
}

// NewEnclosedEnvironment builds a child scope of outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	e := NewEnvironment()
	e.enclosing = outer

	return e
}

// Define binds name in this scope with Private visibility.
func (e *Environment) Define(name string, v value.Value) {
	e.DefineWith(name, v, Private)
}

// DefineWith binds name in this scope with an explicit visibility.
func (e *Environment) DefineWith(name string, v value.Value, vis Visibility) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values[name] = symbol{value: v, visibility: vis}
}

// CaptureVariable stores a by-value snapshot consulted before local
// bindings.
func (e *Environment) CaptureVariable(name string, v value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.captured[name] = v
}

func (e *Environment) lookupOwn(name string) (value.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if v, ok := e.captured[name]; ok {
		return v, true
	}
	if s, ok := e.values[name]; ok {
		return s.value, true
	}

	return value.Value{}, false
}

func (e *Environment) parents() (*Environment, *Environment) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.closureParent, e.enclosing
}

// Get resolves name through the scope chain.
func (e *Environment) Get(name string) (value.Value, error) {
	if v, ok := e.lookupOwn(name); ok {
		return v, nil
	}

	closureParent, enclosing := e.parents()
	if closureParent != nil {
		if v, err := closureParent.Get(name); err == nil {
			return v, nil
		}
	}
	if enclosing != nil {
		return enclosing.Get(name)
	}

	return value.Value{}, &UndefinedVariableError{Name: name}
}

// GetExternal resolves name for an outside caller. Only Public and
// Const bindings are readable; anything else is an access violation.
func (e *Environment) GetExternal(name string) (value.Value, error) {
	e.mu.RLock()
	s, ok := e.values[name]
	e.mu.RUnlock()

	if ok {
		if !s.visibility.External() {
			return value.Value{}, &AccessViolationError{Name: name, Visibility: s.visibility}
		}

		return s.value, nil
	}

	_, enclosing := e.parents()
	if enclosing != nil {
		return enclosing.GetExternal(name)
	}

	return value.Value{}, &UndefinedVariableError{Name: name}
}

// Assign rebinds an existing name, walking the scope chain to the
// scope that defines it. Const bindings reject reassignment.
func (e *Environment) Assign(name string, v value.Value) error {
	e.mu.Lock()
	if s, ok := e.values[name]; ok {
		if s.visibility == Const {
			e.mu.Unlock()

			return &AccessViolationError{Name: name, Visibility: Const, Write: true}
		}
		e.values[name] = symbol{value: v, visibility: s.visibility}
		e.mu.Unlock()

		return nil
	}
	if _, ok := e.captured[name]; ok {
		e.captured[name] = v
		e.mu.Unlock()

		return nil
	}
	closureParent, enclosing := e.closureParent, e.enclosing
	e.mu.Unlock()

	if closureParent != nil {
		if err := closureParent.Assign(name, v); err == nil {
			return nil
		} else if _, undefined := err.(*UndefinedVariableError); !undefined {
			return err
		}
	}
	if enclosing != nil {
		return enclosing.Assign(name, v)
	}

	return &UndefinedVariableError{Name: name}
}

// AssignInCurrentScope rebinds name in this scope only.
func (e *Environment) AssignInCurrentScope(name string, v value.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.values[name]
	if !ok {
		return &UndefinedVariableError{Name: name}
	}
	if s.visibility == Const {
		return &AccessViolationError{Name: name, Visibility: Const, Write: true}
	}
	e.values[name] = symbol{value: v, visibility: s.visibility}

	return nil
}

// VisibilityOf returns the visibility of a binding in this scope.
func (e *Environment) VisibilityOf(name string) (Visibility, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.values[name]

	return s.visibility, ok
}

// CanAccessExternally reports whether an outside caller may read name
// from this scope.
func (e *Environment) CanAccessExternally(name string) bool {
	vis, ok := e.VisibilityOf(name)

	return ok && vis.External()
}

// DefinedHere reports whether name is bound directly in this scope.
func (e *Environment) DefinedHere(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.values[name]

	return ok
}

// Names returns this scope's own binding names in sorted order.
func (e *Environment) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// CapturedNames returns the captured snapshot names in sorted order.
func (e *Environment) CapturedNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.captured))
	for name := range e.captured {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
