package value

import "testing"

func TestErrorValueDisplay(t *testing.T) {
	t.Run("Plain", func(t *testing.T) {
		ev := NewError("ParseError", "unexpected token")
		if got := ev.String(); got != "Error(ParseError: unexpected token)" {
			t.Errorf("String() = %q", got)
		}
		if ev.Error() != ev.String() {
			t.Error("Error() and String() should agree")
		}
	})

	t.Run("WithArguments", func(t *testing.T) {
		ev := IndexOutOfBounds(5, 3)
		want := "Error(IndexOutOfBounds: index 5 out of bounds for length 3, args: [5, 3])"
		if got := ev.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	})

	t.Run("BuiltinConstructors", func(t *testing.T) {
		cases := []struct {
			name string
			ev   *ErrorValue
			typ  string
		}{
			{"DivisionByZero", DivisionByZero(""), "DivisionByZero"},
			{"NullReference", NullReference(""), "NullReference"},
			{"TypeConversion", TypeConversion("string", "int"), "TypeConversion"},
			{"IOError", IOError("boom"), "IOError"},
			{"ParseError", ParseError("bad"), "ParseError"},
			{"NetworkError", NetworkError("down"), "NetworkError"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if tc.ev.ErrorType != tc.typ {
					t.Errorf("ErrorType = %q, want %q", tc.ev.ErrorType, tc.typ)
				}
				if tc.ev.Message == "" {
					t.Error("message should not be empty")
				}
			})
		}
	})
}

func TestErrorUnionStates(t *testing.T) {
	t.Run("SuccessSide", func(t *testing.T) {
		eu := Success(NewInt(42))
		if !eu.IsSuccess() || eu.IsError() {
			t.Fatal("wrong state")
		}

		v, err := eu.SuccessValue()
		if err != nil {
			t.Fatalf("SuccessValue: %v", err)
		}
		if !v.Equal(NewInt(42)) {
			t.Errorf("SuccessValue = %s", v.String())
		}

		_, err = eu.ErrorPayload()
		if err == nil {
			t.Fatal("ErrorPayload on success should fail")
		}
		if _, ok := err.(*StateMismatchError); !ok {
			t.Fatalf("want *StateMismatchError, got %T", err)
		}
	})

	t.Run("ErrorSide", func(t *testing.T) {
		eu := Failure(NewError("IOError", "gone"))
		if eu.IsSuccess() || !eu.IsError() {
			t.Fatal("wrong state")
		}

		ev, err := eu.ErrorPayload()
		if err != nil {
			t.Fatalf("ErrorPayload: %v", err)
		}
		if ev.ErrorType != "IOError" {
			t.Errorf("ErrorType = %q", ev.ErrorType)
		}

		_, err = eu.SuccessValue()
		if err == nil {
			t.Fatal("SuccessValue on error should fail")
		}
		if _, ok := err.(*StateMismatchError); !ok {
			t.Fatalf("want *StateMismatchError, got %T", err)
		}
	})

	t.Run("SuccessOr", func(t *testing.T) {
		if got := Success(NewInt(1)).SuccessOr(NewInt(9)); !got.Equal(NewInt(1)) {
			t.Errorf("SuccessOr = %s", got.String())
		}
		if got := Failure(IOError("x")).SuccessOr(NewInt(9)); !got.Equal(NewInt(9)) {
			t.Errorf("SuccessOr fallback = %s", got.String())
		}
	})
}

func TestErrorUnionRoundTrip(t *testing.T) {
	ut := NewErrorUnionType(IntType, "E")

	t.Run("ErrorSide", func(t *testing.T) {
		packed, err := Failure(NewError("E", "failed")).ToValue(ut)
		if err != nil {
			t.Fatalf("ToValue: %v", err)
		}

		eu, err := ErrorUnionFromValue(packed)
		if err != nil {
			t.Fatalf("ErrorUnionFromValue: %v", err)
		}
		ev, err := eu.ErrorPayload()
		if err != nil {
			t.Fatalf("ErrorPayload: %v", err)
		}
		if ev.ErrorType != "E" {
			t.Errorf("ErrorType = %q, want E", ev.ErrorType)
		}
	})

	t.Run("SuccessSide", func(t *testing.T) {
		packed, err := WrapSuccess(ut, NewInt(7))
		if err != nil {
			t.Fatalf("WrapSuccess: %v", err)
		}

		eu, err := ErrorUnionFromValue(packed)
		if err != nil {
			t.Fatalf("ErrorUnionFromValue: %v", err)
		}
		v, err := eu.SuccessValue()
		if err != nil {
			t.Fatalf("SuccessValue: %v", err)
		}
		if !v.Equal(NewInt(7)) {
			t.Errorf("SuccessValue = %s", v.String())
		}
	})

	t.Run("UnacceptedErrorType", func(t *testing.T) {
		if _, err := WrapError(ut, NewError("Other", "no")); err == nil {
			t.Fatal("unaccepted error type should be rejected")
		}
	})

	t.Run("GenericAcceptsAny", func(t *testing.T) {
		gt := NewGenericErrorUnionType(IntType)
		if _, err := WrapError(gt, NewError("Whatever", "ok")); err != nil {
			t.Fatalf("generic union should accept any error type: %v", err)
		}
	})

	t.Run("NotAnErrorUnion", func(t *testing.T) {
		if _, err := ErrorUnionFromValue(NewInt(1)); err == nil {
			t.Fatal("plain int should not unpack")
		}
	})
}

func TestIsErrorToleratesBothForms(t *testing.T) {
	t.Run("BareError", func(t *testing.T) {
		v := NewErrorValue(NewError("IOError", "x"))
		if !v.IsError() {
			t.Fatal("bare error not detected")
		}
		ev, ok := v.GetErrorValue()
		if !ok || ev.ErrorType != "IOError" {
			t.Errorf("GetErrorValue = %v, %v", ev, ok)
		}
	})

	t.Run("ErrorUnionErrorState", func(t *testing.T) {
		ut := NewGenericErrorUnionType(IntType)
		v, err := WrapError(ut, NewError("IOError", "x"))
		if err != nil {
			t.Fatalf("WrapError: %v", err)
		}
		if !v.IsError() {
			t.Fatal("error union in error state not detected")
		}
		ev, ok := v.GetErrorValue()
		if !ok || ev.ErrorType != "IOError" {
			t.Errorf("GetErrorValue = %v, %v", ev, ok)
		}
	})

	t.Run("ErrorUnionSuccessState", func(t *testing.T) {
		ut := NewGenericErrorUnionType(IntType)
		v, err := WrapSuccess(ut, NewInt(1))
		if err != nil {
			t.Fatalf("WrapSuccess: %v", err)
		}
		if v.IsError() {
			t.Fatal("success state misreported as error")
		}
		if _, ok := v.GetErrorValue(); ok {
			t.Fatal("GetErrorValue should not resolve on success")
		}
	})

	t.Run("PlainValue", func(t *testing.T) {
		if NewInt(1).IsError() {
			t.Fatal("int misreported as error")
		}
	})
}
