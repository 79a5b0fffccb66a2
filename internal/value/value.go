package value

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Value is one runtime value: a type description plus the payload for
// that type's tag. Integer payloads are stored as arbitrary-precision
// integers regardless of the declared width and narrowed on read.
type Value struct {
	Type *Type
	data any
}

// Closure is implemented by closure payloads. The concrete type lives in
// the environment package; values only need identity and display.
type Closure interface {
	ClosureID() string
	String() string
}

// ConversionError reports a numeric read that would not preserve the
// stored value.
type ConversionError struct {
	From    string
	To      string
	Message string
}

func (ce *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", ce.From, ce.To, ce.Message)
}

type unionData struct {
	variant int
	payload Value
}

type sumData struct {
	variant int
	payload Value
}

type enumData struct {
	variant string
}

// RangeValue is a half-open integer range with a non-zero step.
type RangeValue struct {
	Start int64
	End   int64
	Step  int64
}

// RecordValue is an instance of a user-defined record type, fields in
// declaration order.
type RecordValue struct {
	Type   *UserDefinedType
	Fields []Value
}

// ObjectValue is a class instance: a class name and named fields.
type ObjectValue struct {
	ClassName string
	Fields    map[string]Value
}

// NewNil returns the nil value.
func NewNil() Value {
	return Value{Type: NilType}
}

// NewBool builds a bool value.
func NewBool(b bool) Value {
	return Value{Type: BoolType, data: b}
}

// NewInt builds an int value.
func NewInt(i int64) Value {
	return Value{Type: IntType, data: big.NewInt(i)}
}

// NewUint builds a uint value.
func NewUint(u uint64) Value {
	return Value{Type: UIntType, data: new(big.Int).SetUint64(u)}
}

// NewInteger builds an integer value of the declared type from an
// arbitrary-precision payload. The payload is stored as is.
func NewInteger(t *Type, z *big.Int) (Value, error) {
	if t == nil || !t.Tag.IsInteger() {
		return Value{}, fmt.Errorf("NewInteger: %s is not an integer type", t.String())
	}

	return Value{Type: t, data: new(big.Int).Set(z)}, nil
}

// NewFloat32 builds an f32 value.
func NewFloat32(f float32) Value {
	return Value{Type: Float32Type, data: float64(f)}
}

// NewFloat64 builds an f64 value.
func NewFloat64(f float64) Value {
	return Value{Type: Float64Type, data: f}
}

// NewString builds a string value.
func NewString(s string) Value {
	return Value{Type: StringType, data: s}
}

// NewListValue wraps a list payload.
func NewListValue(l *ListValue) Value {
	return Value{Type: NewListType(l.ElemType), data: l}
}

// NewDictValue wraps a dict payload.
func NewDictValue(d *DictValue) Value {
	return Value{Type: NewDictType(d.KeyType, d.ValueType), data: d}
}

// NewTupleValue wraps a tuple payload.
func NewTupleValue(tv *TupleValue) Value {
	elems := make([]*Type, len(tv.Elems))
	for i, e := range tv.Elems {
		elems[i] = e.Type
	}

	return Value{Type: NewTupleType(elems...), data: tv}
}

// NewEnumValue builds an enum value. The variant must be registered.
func NewEnumValue(t *Type, variant string) (Value, error) {
	if t == nil || t.Tag != TagEnum || t.Enum == nil {
		return Value{}, fmt.Errorf("NewEnumValue: %s is not an enum type", t.String())
	}
	if !t.Enum.HasVariant(variant) {
		return Value{}, fmt.Errorf("enum %s has no variant %q", t.Enum.Name, variant)
	}

	return Value{Type: t, data: enumData{variant: variant}}, nil
}

// NewSumValue builds a sum value holding the payload of one variant.
func NewSumValue(t *Type, variant int, payload Value) (Value, error) {
	if t == nil || t.Tag != TagSum || t.Sum == nil {
		return Value{}, fmt.Errorf("NewSumValue: %s is not a sum type", t.String())
	}
	if variant < 0 || variant >= len(t.Sum.Variants) {
		return Value{}, fmt.Errorf("sum %s has no variant %d", t.String(), variant)
	}

	return Value{Type: t, data: sumData{variant: variant, payload: payload}}, nil
}

// NewUnionValue builds a union value with an active variant index.
func NewUnionValue(t *Type, variant int, payload Value) (Value, error) {
	if t == nil || t.Tag != TagUnion || t.Union == nil {
		return Value{}, fmt.Errorf("NewUnionValue: %s is not a union type", t.String())
	}
	if variant < 0 || variant >= len(t.Union.Alternatives) {
		return Value{}, fmt.Errorf("union %s has no alternative %d", t.String(), variant)
	}

	return Value{Type: t, data: unionData{variant: variant, payload: payload}}, nil
}

// NewErrorValue wraps a structured error as a value.
func NewErrorValue(ev *ErrorValue) Value {
	t := ErrType
	if ev != nil && ev.ErrorType != "" {
		t = NewErrorTypeFor(ev.ErrorType)
	}

	return Value{Type: t, data: ev}
}

// NewRange builds a range value. Step must be non-zero.
func NewRange(start, end, step int64) (Value, error) {
	if step == 0 {
		return Value{}, fmt.Errorf("range step must be non-zero")
	}

	return Value{Type: RangeType, data: &RangeValue{Start: start, End: end, Step: step}}, nil
}

// NewFunctionValue wraps a function descriptor.
func NewFunctionValue(fv *FunctionValue) Value {
	return Value{Type: &Type{Tag: TagFunction, Name: fv.Name, Function: fv.Type}, data: fv}
}

// NewClosureValue wraps a closure payload.
func NewClosureValue(c Closure) Value {
	return Value{Type: ClosureType, data: c}
}

// NewIteratorValue wraps an iterator payload.
func NewIteratorValue(it *IteratorValue) Value {
	return Value{Type: &Type{Tag: TagIterator, Name: "iterator"}, data: it}
}

// NewChannelValue wraps a channel payload.
func NewChannelValue(ch *ChannelValue) Value {
	return Value{Type: ChannelType, data: ch}
}

// NewAtomicValue wraps an atomic integer cell.
func NewAtomicValue(av *AtomicValue) Value {
	return Value{Type: AtomicType, data: av}
}

// NewModuleValue wraps a module payload.
func NewModuleValue(mv *ModuleValue) Value {
	return Value{Type: ModuleType, data: mv}
}

// NewRecordValue builds an instance of a user-defined record. Fields are
// positional and must match the declared arity.
func NewRecordValue(t *Type, fields ...Value) (Value, error) {
	if t == nil || t.Tag != TagUserDefined || t.User == nil {
		return Value{}, fmt.Errorf("NewRecordValue: %s is not a record type", t.String())
	}
	if len(fields) != len(t.User.Fields) {
		return Value{}, fmt.Errorf("record %s wants %d fields, got %d",
			t.User.Name, len(t.User.Fields), len(fields))
	}

	return Value{Type: t, data: &RecordValue{Type: t.User, Fields: fields}}, nil
}

// NewObjectValue builds a class instance value.
func NewObjectValue(className string, fields map[string]Value) Value {
	if fields == nil {
		fields = make(map[string]Value)
	}

	return Value{Type: &Type{Tag: TagObject, Name: className}, data: &ObjectValue{ClassName: className, Fields: fields}}
}

// Kind returns the value's type tag.
func (v Value) Kind() TypeTag {
	if v.Type == nil {
		return TagNil
	}

	return v.Type.Tag
}

// IsNil reports whether the value is nil.
func (v Value) IsNil() bool {
	return v.Type == nil || v.Type.Tag == TagNil
}

// Payload accessors. Each returns false when the value holds a different
// kind of payload.

// AsBool returns the bool payload.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.data.(bool)

	return b, ok
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	s, ok := v.data.(string)

	return s, ok
}

// AsBigInt returns the stored arbitrary-precision integer.
func (v Value) AsBigInt() (*big.Int, bool) {
	z, ok := v.data.(*big.Int)

	return z, ok
}

// List returns the list payload.
func (v Value) List() (*ListValue, bool) {
	l, ok := v.data.(*ListValue)

	return l, ok
}

// Dict returns the dict payload.
func (v Value) Dict() (*DictValue, bool) {
	d, ok := v.data.(*DictValue)

	return d, ok
}

// Tuple returns the tuple payload.
func (v Value) Tuple() (*TupleValue, bool) {
	t, ok := v.data.(*TupleValue)

	return t, ok
}

// Range returns the range payload.
func (v Value) Range() (*RangeValue, bool) {
	r, ok := v.data.(*RangeValue)

	return r, ok
}

// Function returns the function payload.
func (v Value) Function() (*FunctionValue, bool) {
	f, ok := v.data.(*FunctionValue)

	return f, ok
}

// ClosureRef returns the closure payload.
func (v Value) ClosureRef() (Closure, bool) {
	c, ok := v.data.(Closure)

	return c, ok
}

// Iterator returns the iterator payload.
func (v Value) Iterator() (*IteratorValue, bool) {
	it, ok := v.data.(*IteratorValue)

	return it, ok
}

// Channel returns the channel payload.
func (v Value) Channel() (*ChannelValue, bool) {
	ch, ok := v.data.(*ChannelValue)

	return ch, ok
}

// Atomic returns the atomic payload.
func (v Value) Atomic() (*AtomicValue, bool) {
	a, ok := v.data.(*AtomicValue)

	return a, ok
}

// Module returns the module payload.
func (v Value) Module() (*ModuleValue, bool) {
	m, ok := v.data.(*ModuleValue)

	return m, ok
}

// Record returns the record payload.
func (v Value) Record() (*RecordValue, bool) {
	r, ok := v.data.(*RecordValue)

	return r, ok
}

// Object returns the object payload.
func (v Value) Object() (*ObjectValue, bool) {
	o, ok := v.data.(*ObjectValue)

	return o, ok
}

// EnumVariant returns the active variant of an enum value.
func (v Value) EnumVariant() (string, bool) {
	e, ok := v.data.(enumData)
	if !ok {
		return "", false
	}

	return e.variant, true
}

// SumVariant returns the active variant index and payload of a sum value.
func (v Value) SumVariant() (int, Value, bool) {
	s, ok := v.data.(sumData)
	if !ok {
		return 0, Value{}, false
	}

	return s.variant, s.payload, true
}

// UnionVariant returns the active variant index and payload of a union
// value.
func (v Value) UnionVariant() (int, Value, bool) {
	u, ok := v.data.(unionData)
	if !ok {
		return 0, Value{}, false
	}

	return u.variant, u.payload, true
}

// ActiveUnionVariantType resolves the declared type of the active union
// variant.
func (v Value) ActiveUnionVariantType() (*Type, bool) {
	u, ok := v.data.(unionData)
	if !ok || v.Type == nil || v.Type.Union == nil {
		return nil, false
	}
	if u.variant < 0 || u.variant >= len(v.Type.Union.Alternatives) {
		return nil, false
	}

	return v.Type.Union.Alternatives[u.variant], true
}

// MatchesUnionVariant reports whether the active union variant has the
// given type.
func (v Value) MatchesUnionVariant(t *Type) bool {
	active, ok := v.ActiveUnionVariantType()

	return ok && active.Equal(t)
}

// Narrowing reads. Storage is arbitrary precision; each read checks that
// the stored integer fits the requested width and signedness, returning a
// ConversionError instead of truncating.

func (v Value) narrowError(to string, z *big.Int) error {
	return &ConversionError{
		From:    v.Type.String(),
		To:      to,
		Message: fmt.Sprintf("value %s does not fit", z.String()),
	}
}

func (v Value) integerPayload(to string) (*big.Int, error) {
	z, ok := v.data.(*big.Int)
	if !ok {
		return nil, &ConversionError{From: v.Type.String(), To: to, Message: "not an integer payload"}
	}

	return z, nil
}

// AsInt64 narrows the stored integer to int64.
func (v Value) AsInt64() (int64, error) {
	z, err := v.integerPayload("i64")
	if err != nil {
		return 0, err
	}
	if !z.IsInt64() {
		return 0, v.narrowError("i64", z)
	}

	return z.Int64(), nil
}

// AsInt32 narrows the stored integer to int32.
func (v Value) AsInt32() (int32, error) {
	z, err := v.integerPayload("i32")
	if err != nil {
		return 0, err
	}
	if !z.IsInt64() || z.Int64() < math.MinInt32 || z.Int64() > math.MaxInt32 {
		return 0, v.narrowError("i32", z)
	}

	return int32(z.Int64()), nil
}

// AsInt16 narrows the stored integer to int16.
func (v Value) AsInt16() (int16, error) {
	z, err := v.integerPayload("i16")
	if err != nil {
		return 0, err
	}
	if !z.IsInt64() || z.Int64() < math.MinInt16 || z.Int64() > math.MaxInt16 {
		return 0, v.narrowError("i16", z)
	}

	return int16(z.Int64()), nil
}

// AsInt8 narrows the stored integer to int8.
func (v Value) AsInt8() (int8, error) {
	z, err := v.integerPayload("i8")
	if err != nil {
		return 0, err
	}
	if !z.IsInt64() || z.Int64() < math.MinInt8 || z.Int64() > math.MaxInt8 {
		return 0, v.narrowError("i8", z)
	}

	return int8(z.Int64()), nil
}

// AsUint64 narrows the stored integer to uint64. Negative values error.
func (v Value) AsUint64() (uint64, error) {
	z, err := v.integerPayload("u64")
	if err != nil {
		return 0, err
	}
	if z.Sign() < 0 || !z.IsUint64() {
		return 0, v.narrowError("u64", z)
	}

	return z.Uint64(), nil
}

// AsUint32 narrows the stored integer to uint32.
func (v Value) AsUint32() (uint32, error) {
	z, err := v.integerPayload("u32")
	if err != nil {
		return 0, err
	}
	if z.Sign() < 0 || !z.IsUint64() || z.Uint64() > math.MaxUint32 {
		return 0, v.narrowError("u32", z)
	}

	return uint32(z.Uint64()), nil
}

// AsUint16 narrows the stored integer to uint16.
func (v Value) AsUint16() (uint16, error) {
	z, err := v.integerPayload("u16")
	if err != nil {
		return 0, err
	}
	if z.Sign() < 0 || !z.IsUint64() || z.Uint64() > math.MaxUint16 {
		return 0, v.narrowError("u16", z)
	}

	return uint16(z.Uint64()), nil
}

// AsUint8 narrows the stored integer to uint8.
func (v Value) AsUint8() (uint8, error) {
	z, err := v.integerPayload("u8")
	if err != nil {
		return 0, err
	}
	if z.Sign() < 0 || !z.IsUint64() || z.Uint64() > math.MaxUint8 {
		return 0, v.narrowError("u8", z)
	}

	return uint8(z.Uint64()), nil
}

// AsFloat64 reads a numeric payload as float64. Integer payloads convert
// exactly or error.
func (v Value) AsFloat64() (float64, error) {
	switch data := v.data.(type) {
	case float64:
		return data, nil
	case *big.Int:
		f, acc := new(big.Float).SetInt(data).Float64()
		if acc != big.Exact {
			return 0, &ConversionError{
				From:    v.Type.String(),
				To:      "f64",
				Message: fmt.Sprintf("value %s is not exactly representable", data.String()),
			}
		}

		return f, nil
	default:
		return 0, &ConversionError{From: v.Type.String(), To: "f64", Message: "not a numeric payload"}
	}
}

// IsTruthy reports the value's boolean interpretation.
func (v Value) IsTruthy() bool {
	switch data := v.data.(type) {
	case nil:
		return false
	case bool:
		return data
	case *big.Int:
		return data.Sign() != 0
	case float64:
		return data != 0
	case string:
		return data != ""
	case *ListValue:
		return data.Len() > 0
	case *DictValue:
		return data.Len() > 0
	case *TupleValue:
		return data.Len() > 0
	case *ErrorValue:
		return false
	case errorUnionData:
		return data.state == unionStateSuccess && data.value.IsTruthy()
	default:
		return true
	}
}

// IsError reports whether the value carries an error payload, either a
// bare error or an error union in its error state. The payload decides,
// not the type tag.
func (v Value) IsError() bool {
	switch data := v.data.(type) {
	case *ErrorValue:
		return data != nil
	case errorUnionData:
		return data.state == unionStateError
	default:
		return false
	}
}

// GetErrorValue returns the error payload of a bare error or an error
// union in its error state.
func (v Value) GetErrorValue() (*ErrorValue, bool) {
	switch data := v.data.(type) {
	case *ErrorValue:
		return data, data != nil
	case errorUnionData:
		if data.state == unionStateError {
			return data.err, true
		}
	}

	return nil, false
}

// Equal reports deep value equality.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}

	switch data := v.data.(type) {
	case nil:
		return other.data == nil
	case bool:
		b, ok := other.data.(bool)

		return ok && data == b
	case *big.Int:
		z, ok := other.data.(*big.Int)

		return ok && data.Cmp(z) == 0
	case float64:
		f, ok := other.data.(float64)

		return ok && data == f
	case string:
		s, ok := other.data.(string)

		return ok && data == s
	case *ListValue:
		l, ok := other.data.(*ListValue)

		return ok && data.equal(l)
	case *DictValue:
		d, ok := other.data.(*DictValue)

		return ok && data.equal(d)
	case *TupleValue:
		tp, ok := other.data.(*TupleValue)

		return ok && data.equal(tp)
	case enumData:
		e, ok := other.data.(enumData)

		return ok && v.Type.Equal(other.Type) && data.variant == e.variant
	case *RangeValue:
		r, ok := other.data.(*RangeValue)

		return ok && *data == *r
	case *ErrorValue:
		e, ok := other.data.(*ErrorValue)

		return ok && data.ErrorType == e.ErrorType && data.Message == e.Message
	case errorUnionData:
		eu, ok := other.data.(errorUnionData)
		if !ok || data.state != eu.state {
			return false
		}
		if data.state == unionStateSuccess {
			return data.value.Equal(eu.value)
		}

		return data.err.ErrorType == eu.err.ErrorType && data.err.Message == eu.err.Message
	case sumData:
		s, ok := other.data.(sumData)

		return ok && data.variant == s.variant && data.payload.Equal(s.payload)
	case unionData:
		u, ok := other.data.(unionData)

		return ok && data.variant == u.variant && data.payload.Equal(u.payload)
	case Closure:
		c, ok := other.data.(Closure)

		return ok && data.ClosureID() == c.ClosureID()
	default:
		return v.data == other.data
	}
}

// String renders the display form: strings quoted, containers structured,
// errors as Error(type: message).
func (v Value) String() string {
	return v.render(false)
}

// RawString renders interpolation-ready text: strings unquoted, container
// elements rendered raw.
func (v Value) RawString() string {
	return v.render(true)
}

func (v Value) render(raw bool) string {
	switch data := v.data.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(data)
	case *big.Int:
		return data.String()
	case float64:
		return strconv.FormatFloat(data, 'g', -1, 64)
	case string:
		if raw {
			return data
		}

		return strconv.Quote(data)
	case *ListValue:
		return data.render(raw)
	case *DictValue:
		return data.render(raw)
	case *TupleValue:
		return data.render(raw)
	case enumData:
		if v.Type != nil && v.Type.Enum != nil && v.Type.Enum.Name != "" {
			return v.Type.Enum.Name + "." + data.variant
		}

		return data.variant
	case sumData:
		return data.payload.render(raw)
	case unionData:
		return data.payload.render(raw)
	case *RangeValue:
		return fmt.Sprintf("range(%d, %d, %d)", data.Start, data.End, data.Step)
	case *ErrorValue:
		return data.String()
	case errorUnionData:
		if data.state == unionStateError {
			return data.err.String()
		}

		return data.value.render(raw)
	case *FunctionValue:
		return data.String()
	case Closure:
		return data.String()
	case *IteratorValue:
		return data.String()
	case *ChannelValue:
		return data.String()
	case *AtomicValue:
		return data.String()
	case *ModuleValue:
		return data.String()
	case *RecordValue:
		return data.render(raw)
	case *ObjectValue:
		return data.render(raw)
	default:
		return fmt.Sprintf("%v", data)
	}
}

func (rv *RecordValue) render(raw bool) string {
	parts := make([]string, len(rv.Fields))
	for i, f := range rv.Fields {
		parts[i] = rv.Type.Fields[i].Name + ": " + f.render(raw)
	}

	return rv.Type.Name + "{" + strings.Join(parts, ", ") + "}"
}

func (ov *ObjectValue) render(raw bool) string {
	names := make([]string, 0, len(ov.Fields))
	for name := range ov.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + ov.Fields[name].render(raw)
	}

	return ov.ClassName + "{" + strings.Join(parts, ", ") + "}"
}
