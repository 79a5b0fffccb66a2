package value

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// ModuleValue is a loaded module: a name, a semantic version, and a
// member table with an export set. Only exported members are visible to
// importers.
type ModuleValue struct {
	Name    string
	Version *semver.Version

	members  map[string]Value
	exported map[string]bool
}

// NewModule builds a module payload. The version must parse as semver.
func NewModule(name, version string) (*ModuleValue, error) {
	if name == "" {
		return nil, fmt.Errorf("module name must be non-empty")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("module %s: invalid version %q: %w", name, version, err)
	}

	return &ModuleValue{
		Name:     name,
		Version:  v,
		members:  make(map[string]Value),
		exported: make(map[string]bool),
	}, nil
}

// Define stores a member. Exported members are visible through Member.
func (m *ModuleValue) Define(name string, v Value, exported bool) {
	m.members[name] = v
	if exported {
		m.exported[name] = true
	} else {
		delete(m.exported, name)
	}
}

// Member returns an exported member.
func (m *ModuleValue) Member(name string) (Value, bool) {
	if !m.exported[name] {
		return Value{}, false
	}
	v, ok := m.members[name]

	return v, ok
}

// LocalMember returns a member regardless of export status. Module-local
// code resolves through this path.
func (m *ModuleValue) LocalMember(name string) (Value, bool) {
	v, ok := m.members[name]

	return v, ok
}

// Exports returns the exported member names in sorted order.
func (m *ModuleValue) Exports() []string {
	names := make([]string, 0, len(m.exported))
	for name := range m.exported {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Requires reports whether the module version satisfies a semver
// constraint such as ">= 1.2.0, < 2.0.0".
func (m *ModuleValue) Requires(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("module %s: invalid constraint %q: %w", m.Name, constraint, err)
	}

	return c.Check(m.Version), nil
}

// String renders the display form.
func (m *ModuleValue) String() string {
	return fmt.Sprintf("Module(%s@%s)", m.Name, m.Version.String())
}
