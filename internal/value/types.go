package value

import (
	"fmt"
	"strings"
)

// Type describes the runtime shape of a value: a tag, an optional name,
// and a composite descriptor exactly when the tag calls for one.
type Type struct {
	Tag  TypeTag
	Name string

	List       *ListType
	Dict       *DictType
	Tuple      *TupleType
	Enum       *EnumType
	Function   *FunctionType
	Sum        *SumType
	Union      *UnionType
	ErrorUnion *ErrorUnionType
	User       *UserDefinedType
}

// ListType describes list element types.
type ListType struct {
	Elem *Type
}

// DictType describes dict key and value types.
type DictType struct {
	Key   *Type
	Value *Type
}

// TupleType describes the element types of a fixed-arity tuple.
type TupleType struct {
	Elems []*Type
}

// EnumType is a named set of variant labels.
type EnumType struct {
	Name     string
	Variants []string
}

// AddVariant appends a variant label. Registering a duplicate errors.
func (et *EnumType) AddVariant(name string) error {
	for _, v := range et.Variants {
		if v == name {
			return fmt.Errorf("enum %s: variant %q already registered", et.Name, name)
		}
	}

	et.Variants = append(et.Variants, name)

	return nil
}

// HasVariant reports whether name is a registered variant.
func (et *EnumType) HasVariant(name string) bool {
	for _, v := range et.Variants {
		if v == name {
			return true
		}
	}

	return false
}

// FunctionType describes a function signature.
type FunctionType struct {
	Params []*Type
	Return *Type
}

// SumType lists the member types of a sum.
type SumType struct {
	Variants []*Type
}

// UnionType lists the alternative types of an untagged union.
type UnionType struct {
	Alternatives []*Type
}

// ErrorUnionType describes a fallible result type. IsGenericError means
// any error type is accepted; otherwise ErrorTypes names the allowed set.
type ErrorUnionType struct {
	Success        *Type
	ErrorTypes     []string
	IsGenericError bool
}

// Accepts reports whether an error of the named type fits this union.
func (eut *ErrorUnionType) Accepts(errorType string) bool {
	if eut.IsGenericError {
		return true
	}
	for _, name := range eut.ErrorTypes {
		if name == errorType {
			return true
		}
	}

	return false
}

// Field is one named, typed slot of a user-defined record.
type Field struct {
	Name string
	Type *Type
}

// UserDefinedType is a named record with ordered fields.
type UserDefinedType struct {
	Name   string
	Fields []Field
}

// FieldIndex returns the position of a field, -1 when absent.
func (udt *UserDefinedType) FieldIndex(name string) int {
	for i, f := range udt.Fields {
		if f.Name == name {
			return i
		}
	}

	return -1
}

// Prototype singletons for the primitive types. Composite types are built
// with the New*Type constructors.
var (
	NilType     = &Type{Tag: TagNil, Name: "nil"}
	BoolType    = &Type{Tag: TagBool, Name: "bool"}
	IntType     = &Type{Tag: TagInt, Name: "int"}
	Int8Type    = &Type{Tag: TagInt8, Name: "i8"}
	Int16Type   = &Type{Tag: TagInt16, Name: "i16"}
	Int32Type   = &Type{Tag: TagInt32, Name: "i32"}
	Int64Type   = &Type{Tag: TagInt64, Name: "i64"}
	UIntType    = &Type{Tag: TagUInt, Name: "uint"}
	UInt8Type   = &Type{Tag: TagUInt8, Name: "u8"}
	UInt16Type  = &Type{Tag: TagUInt16, Name: "u16"}
	UInt32Type  = &Type{Tag: TagUInt32, Name: "u32"}
	UInt64Type  = &Type{Tag: TagUInt64, Name: "u64"}
	Float32Type = &Type{Tag: TagFloat32, Name: "f32"}
	Float64Type = &Type{Tag: TagFloat64, Name: "f64"}
	StringType  = &Type{Tag: TagString, Name: "string"}
	RangeType   = &Type{Tag: TagRange, Name: "range"}
	AtomicType  = &Type{Tag: TagAtomic, Name: "atomic"}
	ChannelType = &Type{Tag: TagChannel, Name: "channel"}
	ModuleType  = &Type{Tag: TagModule, Name: "module"}
	ClosureType = &Type{Tag: TagClosure, Name: "closure"}
	AnyType     = &Type{Tag: TagAny, Name: "any"}
	ErrType     = &Type{Tag: TagError, Name: "error"}
)

// NewListType builds a list type over elem.
func NewListType(elem *Type) *Type {
	return &Type{Tag: TagList, List: &ListType{Elem: elem}}
}

// NewDictType builds a dict type over key and value.
func NewDictType(key, value *Type) *Type {
	return &Type{Tag: TagDict, Dict: &DictType{Key: key, Value: value}}
}

// NewTupleType builds a tuple type over the element types.
func NewTupleType(elems ...*Type) *Type {
	return &Type{Tag: TagTuple, Tuple: &TupleType{Elems: elems}}
}

// NewEnumType builds a named enum. Duplicate variants error.
func NewEnumType(name string, variants ...string) (*Type, error) {
	et := &EnumType{Name: name}
	for _, v := range variants {
		if err := et.AddVariant(v); err != nil {
			return nil, err
		}
	}

	return &Type{Tag: TagEnum, Name: name, Enum: et}, nil
}

// NewFunctionType builds a function signature type.
func NewFunctionType(params []*Type, ret *Type) *Type {
	return &Type{Tag: TagFunction, Function: &FunctionType{Params: params, Return: ret}}
}

// NewSumType builds a sum over the member types.
func NewSumType(variants ...*Type) *Type {
	return &Type{Tag: TagSum, Sum: &SumType{Variants: variants}}
}

// NewUnionType builds a union over the alternative types.
func NewUnionType(alternatives ...*Type) *Type {
	return &Type{Tag: TagUnion, Union: &UnionType{Alternatives: alternatives}}
}

// NewErrorUnionType builds a fallible result type constrained to the named
// error types.
func NewErrorUnionType(success *Type, errorTypes ...string) *Type {
	return &Type{Tag: TagErrorUnion, ErrorUnion: &ErrorUnionType{
		Success:    success,
		ErrorTypes: errorTypes,
	}}
}

// NewGenericErrorUnionType builds a fallible result type accepting any
// error type.
func NewGenericErrorUnionType(success *Type) *Type {
	return &Type{Tag: TagErrorUnion, ErrorUnion: &ErrorUnionType{
		Success:        success,
		IsGenericError: true,
	}}
}

// NewUserDefinedType builds a named record type with ordered fields.
// Duplicate field names error.
func NewUserDefinedType(name string, fields []Field) (*Type, error) {
	udt := &UserDefinedType{Name: name, Fields: fields}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("type %s: field %q already declared", name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	return &Type{Tag: TagUserDefined, Name: name, User: udt}, nil
}

// NewErrorTypeFor builds a named error type.
func NewErrorTypeFor(name string) *Type {
	return &Type{Tag: TagError, Name: name}
}

// String renders the type in source notation.
func (t *Type) String() string {
	if t == nil {
		return "nil"
	}

	switch t.Tag {
	case TagList:
		if t.List != nil {
			return "list[" + t.List.Elem.String() + "]"
		}
	case TagDict:
		if t.Dict != nil {
			return "dict[" + t.Dict.Key.String() + ", " + t.Dict.Value.String() + "]"
		}
	case TagTuple:
		if t.Tuple != nil {
			parts := make([]string, len(t.Tuple.Elems))
			for i, e := range t.Tuple.Elems {
				parts[i] = e.String()
			}

			return "(" + strings.Join(parts, ", ") + ")"
		}
	case TagFunction:
		if t.Function != nil {
			params := make([]string, len(t.Function.Params))
			for i, p := range t.Function.Params {
				params[i] = p.String()
			}
			ret := "nil"
			if t.Function.Return != nil {
				ret = t.Function.Return.String()
			}

			return "fn(" + strings.Join(params, ", ") + ") -> " + ret
		}
	case TagSum:
		if t.Sum != nil {
			parts := make([]string, len(t.Sum.Variants))
			for i, v := range t.Sum.Variants {
				parts[i] = v.String()
			}

			return strings.Join(parts, " + ")
		}
	case TagUnion:
		if t.Union != nil {
			parts := make([]string, len(t.Union.Alternatives))
			for i, a := range t.Union.Alternatives {
				parts[i] = a.String()
			}

			return strings.Join(parts, " | ")
		}
	case TagErrorUnion:
		if t.ErrorUnion != nil {
			return t.ErrorUnion.Success.String() + "?"
		}
	}

	if t.Name != "" {
		return t.Name
	}

	return t.Tag.String()
}

// Equal reports structural type equality.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	if t.Tag != other.Tag {
		return false
	}

	switch t.Tag {
	case TagList:
		return t.List != nil && other.List != nil && t.List.Elem.Equal(other.List.Elem)
	case TagDict:
		return t.Dict != nil && other.Dict != nil &&
			t.Dict.Key.Equal(other.Dict.Key) && t.Dict.Value.Equal(other.Dict.Value)
	case TagTuple:
		if t.Tuple == nil || other.Tuple == nil || len(t.Tuple.Elems) != len(other.Tuple.Elems) {
			return false
		}
		for i := range t.Tuple.Elems {
			if !t.Tuple.Elems[i].Equal(other.Tuple.Elems[i]) {
				return false
			}
		}

		return true
	case TagFunction:
		if t.Function == nil || other.Function == nil {
			return false
		}
		if len(t.Function.Params) != len(other.Function.Params) {
			return false
		}
		for i := range t.Function.Params {
			if !t.Function.Params[i].Equal(other.Function.Params[i]) {
				return false
			}
		}

		return t.Function.Return.Equal(other.Function.Return)
	case TagErrorUnion:
		if t.ErrorUnion == nil || other.ErrorUnion == nil {
			return false
		}
		if !t.ErrorUnion.Success.Equal(other.ErrorUnion.Success) {
			return false
		}
		if t.ErrorUnion.IsGenericError != other.ErrorUnion.IsGenericError {
			return false
		}
		if len(t.ErrorUnion.ErrorTypes) != len(other.ErrorUnion.ErrorTypes) {
			return false
		}
		for i := range t.ErrorUnion.ErrorTypes {
			if t.ErrorUnion.ErrorTypes[i] != other.ErrorUnion.ErrorTypes[i] {
				return false
			}
		}

		return true
	case TagEnum, TagUserDefined, TagError:
		return t.Name == other.Name
	default:
		return true
	}
}
