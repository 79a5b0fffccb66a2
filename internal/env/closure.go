package env

import (
	"fmt"
	"strings"
	"sync"

	"github.com/limitly-lang/limitly/internal/value"
)

// ClosureValue is a function value bound to its definition environment.
// Captured variables are snapshotted at creation, so later reassignment
// of the originals does not change what the closure sees.
type ClosureValue struct {
	FunctionName      string
	StartAddress      int
	EndAddress        int
	CapturedEnv       *Environment
	CapturedVariables []string

	cleanup sync.Once
}

var _ value.Closure = (*ClosureValue)(nil)

// NewClosure builds a closure over defEnv, capturing the named
// variables by value. Names with no binding are skipped.
func NewClosure(name string, start, end int, defEnv *Environment, captures []string) (*ClosureValue, error) {
	if name == "" {
		return nil, fmt.Errorf("closure name must be non-empty")
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("closure %q: invalid range [%d, %d)", name, start, end)
	}

	captureEnv, capturedNames := NewClosureEnvironment(defEnv, captures)

	return &ClosureValue{
		FunctionName:      name,
		StartAddress:      start,
		EndAddress:        end,
		CapturedEnv:       captureEnv,
		CapturedVariables: capturedNames,
	}, nil
}

// NewClosureEnvironment builds the scope a closure body runs in: the
// named variables snapshotted by value, with defEnv as the fallback
// chain for everything else. The returned slice lists the names that
// were actually captured.
func NewClosureEnvironment(defEnv *Environment, names []string) (*Environment, []string) {
	captureEnv := NewEnvironment()
	captureEnv.closureParent = defEnv

	captured := make([]string, 0, len(names))
	for _, name := range names {
		if defEnv == nil {
			break
		}
		v, err := defEnv.Get(name)
		if err != nil {
			continue
		}
		captureEnv.CaptureVariable(name, v)
		captured = append(captured, name)
	}

	return captureEnv, captured
}

// Valid reports whether the closure still names a callable body.
func (c *ClosureValue) Valid() bool {
	return c.FunctionName != "" && c.StartAddress >= 0 && c.StartAddress < c.EndAddress && c.CapturedEnv != nil
}

// ClosureID returns a process-unique identity for the closure.
func (c *ClosureValue) ClosureID() string {
	return fmt.Sprintf("%s_%p", c.FunctionName, c)
}

// Resolve looks name up through the closure's environment.
func (c *ClosureValue) Resolve(name string) (value.Value, error) {
	if c.CapturedEnv == nil {
		return value.Value{}, &UndefinedVariableError{Name: name}
	}

	return c.CapturedEnv.Get(name)
}

// Cleanup breaks the reference cycle between the closure and its
// captured environment. Calling it again is a no-op.
func (c *ClosureValue) Cleanup() {
	c.cleanup.Do(func() {
		env := c.CapturedEnv
		if env == nil {
			return
		}
		env.mu.Lock()
		env.captured = make(map[string]value.Value)
		env.closureParent = nil
		env.mu.Unlock()
		c.CapturedEnv = nil
	})
}

// HasMemoryLeaks reports whether any captured value is itself a
// closure, the shape that forms uncollectable cycles.
func (c *ClosureValue) HasMemoryLeaks() bool {
	env := c.CapturedEnv
	if env == nil {
		return false
	}

	env.mu.RLock()
	defer env.mu.RUnlock()

	for _, v := range env.captured {
		if _, ok := v.ClosureRef(); ok {
			return true
		}
	}

	return false
}

// String renders the display form.
func (c *ClosureValue) String() string {
	return fmt.Sprintf("Closure(%s, captures: [%s])", c.FunctionName, strings.Join(c.CapturedVariables, ", "))
}
