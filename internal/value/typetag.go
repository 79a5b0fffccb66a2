// Package value implements the tagged runtime value model for the Limitly
// virtual machine: a closed set of type tags, a parallel Type description
// used for dynamic checks, and the Value payloads the interpreter passes
// around (scalars over arbitrary-precision integers, containers, error
// unions, closures, iterators, channels, modules).
package value

import "fmt"

// TypeTag identifies the runtime kind of a Value.
type TypeTag int

const (
	TagNil TypeTag = iota
	TagBool
	TagInt
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUInt
	TagUInt8
	TagUInt16
	TagUInt32
	TagUInt64
	TagFloat32
	TagFloat64
	TagString
	TagList
	TagDict
	TagTuple
	TagEnum
	TagSum
	TagUnion
	TagErrorUnion
	TagRange
	TagFunction
	TagClosure
	TagIterator
	TagChannel
	TagAtomic
	TagModule
	TagAny
	TagUserDefined
	TagObject
	TagError
)

// String returns the canonical type name for a tag.
func (tt TypeTag) String() string {
	switch tt {
	case TagNil:
		return "nil"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagInt8:
		return "i8"
	case TagInt16:
		return "i16"
	case TagInt32:
		return "i32"
	case TagInt64:
		return "i64"
	case TagUInt:
		return "uint"
	case TagUInt8:
		return "u8"
	case TagUInt16:
		return "u16"
	case TagUInt32:
		return "u32"
	case TagUInt64:
		return "u64"
	case TagFloat32:
		return "f32"
	case TagFloat64:
		return "f64"
	case TagString:
		return "string"
	case TagList:
		return "list"
	case TagDict:
		return "dict"
	case TagTuple:
		return "tuple"
	case TagEnum:
		return "enum"
	case TagSum:
		return "sum"
	case TagUnion:
		return "union"
	case TagErrorUnion:
		return "error_union"
	case TagRange:
		return "range"
	case TagFunction:
		return "function"
	case TagClosure:
		return "closure"
	case TagIterator:
		return "iterator"
	case TagChannel:
		return "channel"
	case TagAtomic:
		return "atomic"
	case TagModule:
		return "module"
	case TagAny:
		return "any"
	case TagUserDefined:
		return "user_defined"
	case TagObject:
		return "object"
	case TagError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(tt))
	}
}

// IsNumeric reports whether the tag is an integer or float kind.
func (tt TypeTag) IsNumeric() bool {
	return tt.IsInteger() || tt == TagFloat32 || tt == TagFloat64
}

// IsInteger reports whether the tag is an integer kind of any width.
func (tt TypeTag) IsInteger() bool {
	switch tt {
	case TagInt, TagInt8, TagInt16, TagInt32, TagInt64,
		TagUInt, TagUInt8, TagUInt16, TagUInt32, TagUInt64:
		return true
	default:
		return false
	}
}

// IsSigned reports whether the tag is a signed integer kind.
func (tt TypeTag) IsSigned() bool {
	switch tt {
	case TagInt, TagInt8, TagInt16, TagInt32, TagInt64:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether the tag is an unsigned integer kind.
func (tt TypeTag) IsUnsigned() bool {
	switch tt {
	case TagUInt, TagUInt8, TagUInt16, TagUInt32, TagUInt64:
		return true
	default:
		return false
	}
}
