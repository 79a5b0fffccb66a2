package value

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
)

var (
	genericListType = NewListType(AnyType)
	genericDictType = NewDictType(AnyType, AnyType)
)

var builtinTypes = map[string]*Type{
	"nil":     NilType,
	"bool":    BoolType,
	"int":     IntType,
	"i8":      Int8Type,
	"i16":     Int16Type,
	"i32":     Int32Type,
	"i64":     Int64Type,
	"uint":    UIntType,
	"u8":      UInt8Type,
	"u16":     UInt16Type,
	"u32":     UInt32Type,
	"u64":     UInt64Type,
	"f32":     Float32Type,
	"f64":     Float64Type,
	"float":   Float64Type,
	"string":  StringType,
	"str":     StringType,
	"list":    genericListType,
	"dict":    genericDictType,
	"range":   RangeType,
	"atomic":  AtomicType,
	"chan":    ChannelType,
	"channel": ChannelType,
	"module":  ModuleType,
	"any":     AnyType,
	"error":   ErrType,
}

var builtinErrorTypes = []string{
	"DivisionByZero",
	"IndexOutOfBounds",
	"NullReference",
	"TypeConversion",
	"IOError",
	"ParseError",
	"NetworkError",
}

// TypeSystem is the named type registry: builtins, user-defined types,
// aliases, and error types. The builtin error types are pre-registered.
type TypeSystem struct {
	mu         sync.RWMutex
	types      map[string]*Type
	aliases    map[string]string
	errorTypes map[string]*Type
}

// NewTypeSystem builds a registry with the builtin error types in place.
func NewTypeSystem() *TypeSystem {
	ts := &TypeSystem{
		types:      make(map[string]*Type),
		aliases:    make(map[string]string),
		errorTypes: make(map[string]*Type),
	}
	for _, name := range builtinErrorTypes {
		ts.errorTypes[name] = NewErrorTypeFor(name)
	}

	return ts
}

// Register stores a named type. Builtin names and already registered
// names are rejected.
func (ts *TypeSystem) Register(name string, t *Type) error {
	if name == "" {
		return fmt.Errorf("type name must be non-empty")
	}
	if t == nil {
		return fmt.Errorf("type %q must be non-nil", name)
	}
	if _, ok := builtinTypes[name]; ok {
		return fmt.Errorf("type %q shadows a builtin", name)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.types[name]; ok {
		return fmt.Errorf("type %q already registered", name)
	}
	if _, ok := ts.aliases[name]; ok {
		return fmt.Errorf("type %q already registered as an alias", name)
	}
	ts.types[name] = t

	return nil
}

// RegisterAlias stores an alternate name for an existing type. The
// target must already resolve.
func (ts *TypeSystem) RegisterAlias(alias, target string) error {
	if alias == "" {
		return fmt.Errorf("alias must be non-empty")
	}
	if _, ok := ts.Lookup(target); !ok {
		return fmt.Errorf("alias %q targets unknown type %q", alias, target)
	}
	if _, ok := builtinTypes[alias]; ok {
		return fmt.Errorf("alias %q shadows a builtin", alias)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.types[alias]; ok {
		return fmt.Errorf("alias %q collides with a registered type", alias)
	}
	if _, ok := ts.aliases[alias]; ok {
		return fmt.Errorf("alias %q already registered", alias)
	}
	ts.aliases[alias] = target

	return nil
}

// RegisterErrorType returns the error type for name, creating it on
// first use. Registration is idempotent.
func (ts *TypeSystem) RegisterErrorType(name string) *Type {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t, ok := ts.errorTypes[name]; ok {
		return t
	}
	t := NewErrorTypeFor(name)
	ts.errorTypes[name] = t

	return t
}

// Lookup resolves a name to a type: builtins first, then registered
// types, aliases, and error types.
func (ts *TypeSystem) Lookup(name string) (*Type, bool) {
	if t, ok := builtinTypes[name]; ok {
		return t, true
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()

	seen := make(map[string]bool)
	for {
		if t, ok := ts.types[name]; ok {
			return t, true
		}
		if t, ok := ts.errorTypes[name]; ok {
			return t, true
		}
		target, ok := ts.aliases[name]
		if !ok || seen[name] {
			return nil, false
		}
		seen[name] = true
		if t, ok := builtinTypes[target]; ok {
			return t, true
		}
		name = target
	}
}

// IsErrorType reports whether name is a registered error type.
func (ts *TypeSystem) IsErrorType(name string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	_, ok := ts.errorTypes[name]

	return ok
}

// Names returns every resolvable name in sorted order.
func (ts *TypeSystem) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(builtinTypes)+len(ts.types)+len(ts.aliases)+len(ts.errorTypes))
	for name := range builtinTypes {
		names = append(names, name)
	}
	for name := range ts.types {
		names = append(names, name)
	}
	for name := range ts.aliases {
		names = append(names, name)
	}
	for name := range ts.errorTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func integerWidth(tag TypeTag) int {
	switch tag {
	case TagInt8, TagUInt8:
		return 8
	case TagInt16, TagUInt16:
		return 16
	case TagInt32, TagUInt32:
		return 32
	default:
		return 64
	}
}

// CanConvert reports whether a value of type from may be used where to is
// expected without losing information. Widening conversions, any, union
// membership, and error union packing are allowed.
func CanConvert(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Equal(to) {
		return true
	}
	if to.Tag == TagAny {
		return true
	}

	if from.Tag.IsInteger() && to.Tag.IsInteger() {
		wf, wt := integerWidth(from.Tag), integerWidth(to.Tag)
		switch {
		case from.Tag.IsSigned() && to.Tag.IsSigned():
			return wf <= wt
		case from.Tag.IsUnsigned() && to.Tag.IsUnsigned():
			return wf <= wt
		case from.Tag.IsUnsigned() && to.Tag.IsSigned():
			return wf < wt
		default:
			return false
		}
	}
	if from.Tag.IsInteger() && to.Tag == TagFloat64 {
		return integerWidth(from.Tag) <= 32
	}
	if from.Tag.IsInteger() && to.Tag == TagFloat32 {
		return integerWidth(from.Tag) <= 16
	}
	if from.Tag == TagFloat32 && to.Tag == TagFloat64 {
		return true
	}

	if to.Tag == TagUnion && to.Union != nil {
		for _, alt := range to.Union.Alternatives {
			if from.Equal(alt) {
				return true
			}
		}

		return false
	}

	if to.Tag == TagErrorUnion && to.ErrorUnion != nil {
		if from.Tag == TagErrorUnion && from.ErrorUnion != nil {
			if !CanConvert(from.ErrorUnion.Success, to.ErrorUnion.Success) {
				return false
			}
			if to.ErrorUnion.IsGenericError {
				return true
			}
			if from.ErrorUnion.IsGenericError {
				return false
			}
			for _, name := range from.ErrorUnion.ErrorTypes {
				if !to.ErrorUnion.Accepts(name) {
					return false
				}
			}

			return true
		}
		if from.Tag == TagError {
			return to.ErrorUnion.Accepts(from.Name)
		}

		return CanConvert(from, to.ErrorUnion.Success)
	}

	return false
}

var numericRank = map[TypeTag]int{
	TagUInt8:   1,
	TagInt8:    2,
	TagUInt16:  3,
	TagInt16:   4,
	TagUInt32:  5,
	TagInt32:   6,
	TagUInt64:  7,
	TagUInt:    7,
	TagInt64:   8,
	TagInt:     8,
	TagFloat32: 9,
	TagFloat64: 10,
}

// WiderOf returns the wider of two numeric types, or nil when either is
// not numeric.
func WiderOf(a, b *Type) *Type {
	if a == nil || b == nil || !a.Tag.IsNumeric() || !b.Tag.IsNumeric() {
		return nil
	}
	if numericRank[b.Tag] > numericRank[a.Tag] {
		return b
	}

	return a
}

// ZeroValue builds the zero value of a type. Types without a meaningful
// zero, such as functions and closures, return an error.
func ZeroValue(t *Type) (Value, error) {
	if t == nil {
		return NewNil(), nil
	}

	switch t.Tag {
	case TagNil:
		return NewNil(), nil
	case TagBool:
		return NewBool(false), nil
	case TagInt, TagInt8, TagInt16, TagInt32, TagInt64,
		TagUInt, TagUInt8, TagUInt16, TagUInt32, TagUInt64:
		return NewInteger(t, big.NewInt(0))
	case TagFloat32, TagFloat64:
		return Value{Type: t, data: float64(0)}, nil
	case TagString:
		return NewString(""), nil
	case TagList:
		elem := AnyType
		if t.List != nil {
			elem = t.List.Elem
		}

		return Value{Type: t, data: NewList(elem)}, nil
	case TagDict:
		key, val := AnyType, AnyType
		if t.Dict != nil {
			key, val = t.Dict.Key, t.Dict.Value
		}

		return Value{Type: t, data: NewDict(key, val)}, nil
	case TagTuple:
		if t.Tuple == nil {
			return Value{Type: t, data: NewTuple()}, nil
		}
		elems := make([]Value, len(t.Tuple.Elems))
		for i, et := range t.Tuple.Elems {
			v, err := ZeroValue(et)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}

		return Value{Type: t, data: NewTuple(elems...)}, nil
	case TagEnum:
		if t.Enum == nil || len(t.Enum.Variants) == 0 {
			return Value{}, fmt.Errorf("enum %s has no variants", t.String())
		}

		return NewEnumValue(t, t.Enum.Variants[0])
	case TagErrorUnion:
		if t.ErrorUnion == nil {
			return Value{}, fmt.Errorf("error union %s has no success type", t.String())
		}
		success, err := ZeroValue(t.ErrorUnion.Success)
		if err != nil {
			return Value{}, err
		}

		return Success(success).ToValue(t)
	case TagRange:
		return NewRange(0, 0, 1)
	case TagAtomic:
		return NewAtomicValue(NewAtomic(0)), nil
	case TagUserDefined:
		if t.User == nil {
			return Value{}, fmt.Errorf("record %s has no field layout", t.String())
		}
		fields := make([]Value, len(t.User.Fields))
		for i, f := range t.User.Fields {
			v, err := ZeroValue(f.Type)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
		}

		return NewRecordValue(t, fields...)
	default:
		return Value{}, fmt.Errorf("type %s has no zero value", t.String())
	}
}
