package value

import (
	"sort"
	"strings"
)

type dictEntry struct {
	key   Value
	value Value
}

// DictValue is a mapping with declared key and value types. Entries are
// keyed by the key's display form, so iteration order is deterministic.
type DictValue struct {
	KeyType   *Type
	ValueType *Type
	entries   map[string]dictEntry
}

// NewDict builds an empty dict payload. Nil key or value types mean any.
func NewDict(keyType, valueType *Type) *DictValue {
	if keyType == nil {
		keyType = AnyType
	}
	if valueType == nil {
		valueType = AnyType
	}

	return &DictValue{KeyType: keyType, ValueType: valueType, entries: make(map[string]dictEntry)}
}

// Len returns the entry count.
func (d *DictValue) Len() int {
	return len(d.entries)
}

// Get returns the value stored under key.
func (d *DictValue) Get(key Value) (Value, bool) {
	e, ok := d.entries[key.String()]
	if !ok {
		return Value{}, false
	}

	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (d *DictValue) Set(key, value Value) {
	d.entries[key.String()] = dictEntry{key: key, value: value}
}

// SetDefault returns the value under key, storing and returning fallback
// when the key is absent.
func (d *DictValue) SetDefault(key, fallback Value) Value {
	if v, ok := d.Get(key); ok {
		return v
	}
	d.Set(key, fallback)

	return fallback
}

// Pop removes and returns the value under key.
func (d *DictValue) Pop(key Value) (Value, bool) {
	k := key.String()
	e, ok := d.entries[k]
	if !ok {
		return Value{}, false
	}
	delete(d.entries, k)

	return e.value, true
}

// Update copies every entry of other into the dict.
func (d *DictValue) Update(other *DictValue) {
	for k, e := range other.entries {
		d.entries[k] = e
	}
}

// Contains reports whether key has an entry.
func (d *DictValue) Contains(key Value) bool {
	_, ok := d.entries[key.String()]

	return ok
}

func (d *DictValue) sortedKeys() []string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Keys returns the keys sorted by display form.
func (d *DictValue) Keys() []Value {
	keys := d.sortedKeys()
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = d.entries[k].key
	}

	return out
}

// Values returns the values in key-sorted order.
func (d *DictValue) Values() []Value {
	keys := d.sortedKeys()
	out := make([]Value, len(keys))
	for i, k := range keys {
		out[i] = d.entries[k].value
	}

	return out
}

func (d *DictValue) equal(other *DictValue) bool {
	if other == nil || len(d.entries) != len(other.entries) {
		return false
	}
	for k, e := range d.entries {
		oe, ok := other.entries[k]
		if !ok || !e.value.Equal(oe.value) {
			return false
		}
	}

	return true
}

// String renders the display form with keys sorted.
func (d *DictValue) String() string {
	return d.render(false)
}

func (d *DictValue) render(raw bool) string {
	if len(d.entries) == 0 {
		return "{}"
	}

	keys := d.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		e := d.entries[k]
		parts[i] = e.key.String() + ": " + e.value.render(raw)
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
