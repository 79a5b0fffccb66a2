package value

import "testing"

func TestTypeSystemLookup(t *testing.T) {
	ts := NewTypeSystem()

	t.Run("Builtins", func(t *testing.T) {
		cases := []struct {
			name string
			want TypeTag
		}{
			{"int", TagInt},
			{"i64", TagInt64},
			{"u32", TagUInt32},
			{"f64", TagFloat64},
			{"float", TagFloat64},
			{"string", TagString},
			{"str", TagString},
			{"bool", TagBool},
			{"list", TagList},
			{"dict", TagDict},
			{"any", TagAny},
		}
		for _, tc := range cases {
			typ, ok := ts.Lookup(tc.name)
			if !ok {
				t.Errorf("Lookup(%q) missed", tc.name)

				continue
			}
			if typ.Tag != tc.want {
				t.Errorf("Lookup(%q).Tag = %v, want %v", tc.name, typ.Tag, tc.want)
			}
		}
	})

	t.Run("UserTypes", func(t *testing.T) {
		pt, err := NewUserDefinedType("Point", []Field{{Name: "x", Type: IntType}})
		if err != nil {
			t.Fatalf("NewUserDefinedType: %v", err)
		}
		if err := ts.Register("Point", pt); err != nil {
			t.Fatalf("Register: %v", err)
		}

		got, ok := ts.Lookup("Point")
		if !ok || got != pt {
			t.Errorf("Lookup(Point) = %v, %v", got, ok)
		}
		if err := ts.Register("Point", pt); err == nil {
			t.Fatal("duplicate registration should fail")
		}
		if err := ts.Register("int", pt); err == nil {
			t.Fatal("shadowing a builtin should fail")
		}
	})

	t.Run("Aliases", func(t *testing.T) {
		if err := ts.RegisterAlias("Coord", "Point"); err != nil {
			t.Fatalf("RegisterAlias: %v", err)
		}
		if _, ok := ts.Lookup("Coord"); !ok {
			t.Fatal("alias did not resolve")
		}

		if err := ts.RegisterAlias("Broken", "NoSuchType"); err == nil {
			t.Fatal("alias to unknown target should fail")
		}
		if err := ts.RegisterAlias("str", "string"); err == nil {
			t.Fatal("alias shadowing a builtin should fail")
		}
		if err := ts.RegisterAlias("Coord", "Point"); err == nil {
			t.Fatal("duplicate alias should fail")
		}
	})

	t.Run("AliasToBuiltin", func(t *testing.T) {
		if err := ts.RegisterAlias("Integer", "int"); err != nil {
			t.Fatalf("RegisterAlias: %v", err)
		}
		got, ok := ts.Lookup("Integer")
		if !ok || got.Tag != TagInt {
			t.Errorf("Lookup(Integer) = %v, %v", got, ok)
		}
	})

	t.Run("BuiltinErrorTypes", func(t *testing.T) {
		for _, name := range []string{"DivisionByZero", "IndexOutOfBounds", "NullReference", "TypeConversion", "IOError", "ParseError", "NetworkError"} {
			typ, ok := ts.Lookup(name)
			if !ok || typ.Tag != TagError {
				t.Errorf("Lookup(%q) = %v, %v", name, typ, ok)
			}
			if !ts.IsErrorType(name) {
				t.Errorf("IsErrorType(%q) = false", name)
			}
		}
	})

	t.Run("RegisterErrorTypeIdempotent", func(t *testing.T) {
		a := ts.RegisterErrorType("CustomFault")
		b := ts.RegisterErrorType("CustomFault")
		if a != b {
			t.Error("repeated registration should return the same type")
		}
		if a.Name != "CustomFault" || a.Tag != TagError {
			t.Errorf("error type = %v", a)
		}
	})
}

func TestCanConvert(t *testing.T) {
	t.Run("WideningMatrix", func(t *testing.T) {
		cases := []struct {
			name string
			from *Type
			to   *Type
			want bool
		}{
			{"I8ToI64", Int8Type, Int64Type, true},
			{"I64ToI8", Int64Type, Int8Type, false},
			{"U8ToU32", UInt8Type, UInt32Type, true},
			{"U32ToU8", UInt32Type, UInt8Type, false},
			{"U8ToI16", UInt8Type, Int16Type, true},
			{"U32ToI32", UInt32Type, Int32Type, false},
			{"U32ToI64", UInt32Type, Int64Type, true},
			{"I8ToU16", Int8Type, UInt16Type, false},
			{"I32ToF64", Int32Type, Float64Type, true},
			{"I64ToF64", Int64Type, Float64Type, false},
			{"I16ToF32", Int16Type, Float32Type, true},
			{"I32ToF32", Int32Type, Float32Type, false},
			{"F32ToF64", Float32Type, Float64Type, true},
			{"F64ToF32", Float64Type, Float32Type, false},
			{"IntToInt", IntType, IntType, true},
			{"StringToInt", StringType, IntType, false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := CanConvert(tc.from, tc.to); got != tc.want {
					t.Errorf("CanConvert(%s, %s) = %v, want %v", tc.from.String(), tc.to.String(), got, tc.want)
				}
			})
		}
	})

	t.Run("AnyAcceptsAll", func(t *testing.T) {
		for _, from := range []*Type{IntType, StringType, NewListType(IntType), ErrType} {
			if !CanConvert(from, AnyType) {
				t.Errorf("CanConvert(%s, any) = false", from.String())
			}
		}
	})

	t.Run("UnionMembership", func(t *testing.T) {
		ut := NewUnionType(IntType, StringType)
		if !CanConvert(IntType, ut) {
			t.Error("int should convert into int | string")
		}
		if CanConvert(BoolType, ut) {
			t.Error("bool should not convert into int | string")
		}
	})

	t.Run("ErrorUnions", func(t *testing.T) {
		named := NewErrorUnionType(IntType, "IOError", "ParseError")
		narrow := NewErrorUnionType(IntType, "IOError")
		generic := NewGenericErrorUnionType(IntType)

		if !CanConvert(IntType, named) {
			t.Error("success type should pack into its error union")
		}
		if !CanConvert(NewErrorTypeFor("IOError"), named) {
			t.Error("accepted error type should pack")
		}
		if CanConvert(NewErrorTypeFor("NetworkError"), named) {
			t.Error("unaccepted error type should not pack")
		}

		if !CanConvert(narrow, named) {
			t.Error("subset error sets should convert")
		}
		if CanConvert(named, narrow) {
			t.Error("superset error sets should not convert")
		}
		if !CanConvert(named, generic) {
			t.Error("generic unions should accept any error set")
		}
		if CanConvert(generic, named) {
			t.Error("generic unions should not narrow to named sets")
		}
	})
}

func TestWiderOf(t *testing.T) {
	cases := []struct {
		name string
		a    *Type
		b    *Type
		want *Type
	}{
		{"IntAndFloat", IntType, Float64Type, Float64Type},
		{"I8AndI32", Int8Type, Int32Type, Int32Type},
		{"U16AndI16", UInt16Type, Int16Type, Int16Type},
		{"F32AndI64", Float32Type, Int64Type, Float32Type},
		{"SameType", IntType, IntType, IntType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WiderOf(tc.a, tc.b); got != tc.want {
				t.Errorf("WiderOf(%s, %s) = %v", tc.a.String(), tc.b.String(), got)
			}
		})
	}

	t.Run("NonNumeric", func(t *testing.T) {
		if got := WiderOf(StringType, IntType); got != nil {
			t.Errorf("WiderOf(string, int) = %v, want nil", got)
		}
	})
}

func TestZeroValue(t *testing.T) {
	t.Run("Primitives", func(t *testing.T) {
		cases := []struct {
			name string
			typ  *Type
			want string
		}{
			{"Int", IntType, "0"},
			{"U8", UInt8Type, "0"},
			{"Float", Float64Type, "0"},
			{"Bool", BoolType, "false"},
			{"String", StringType, `""`},
			{"Nil", NilType, "nil"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				v, err := ZeroValue(tc.typ)
				if err != nil {
					t.Fatalf("ZeroValue: %v", err)
				}
				if got := v.String(); got != tc.want {
					t.Errorf("String() = %q, want %q", got, tc.want)
				}
				if !v.Type.Equal(tc.typ) {
					t.Errorf("zero value type = %s", v.Type.String())
				}
			})
		}
	})

	t.Run("Containers", func(t *testing.T) {
		lv, err := ZeroValue(NewListType(IntType))
		if err != nil {
			t.Fatalf("ZeroValue(list): %v", err)
		}
		l, ok := lv.List()
		if !ok || l.Len() != 0 || l.ElemType != IntType {
			t.Errorf("zero list = %v", lv.String())
		}

		tv, err := ZeroValue(NewTupleType(IntType, StringType))
		if err != nil {
			t.Fatalf("ZeroValue(tuple): %v", err)
		}
		if got := tv.String(); got != `(0, "")` {
			t.Errorf("zero tuple = %q", got)
		}
	})

	t.Run("ErrorUnionStartsInSuccess", func(t *testing.T) {
		v, err := ZeroValue(NewGenericErrorUnionType(IntType))
		if err != nil {
			t.Fatalf("ZeroValue: %v", err)
		}
		eu, err := ErrorUnionFromValue(v)
		if err != nil {
			t.Fatalf("ErrorUnionFromValue: %v", err)
		}
		if !eu.IsSuccess() {
			t.Fatal("zero error union should be in success state")
		}
	})

	t.Run("EnumFirstVariant", func(t *testing.T) {
		et, _ := NewEnumType("Color", "Red", "Green")
		v, err := ZeroValue(et)
		if err != nil {
			t.Fatalf("ZeroValue: %v", err)
		}
		variant, _ := v.EnumVariant()
		if variant != "Red" {
			t.Errorf("variant = %q", variant)
		}
	})

	t.Run("RecordZerosFields", func(t *testing.T) {
		rt, _ := NewUserDefinedType("P", []Field{{Name: "x", Type: IntType}, {Name: "s", Type: StringType}})
		v, err := ZeroValue(rt)
		if err != nil {
			t.Fatalf("ZeroValue: %v", err)
		}
		if got := v.String(); got != `P{x: 0, s: ""}` {
			t.Errorf("String() = %q", got)
		}
	})

	t.Run("NoZeroForFunctions", func(t *testing.T) {
		ft := NewFunctionType([]*Type{IntType}, IntType)
		if _, err := ZeroValue(ft); err == nil {
			t.Fatal("functions should have no zero value")
		}
	})
}
