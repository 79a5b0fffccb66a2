package env

import (
	"sync"
	"testing"

	"github.com/limitly-lang/limitly/internal/value"
)

func TestDefineAndGet(t *testing.T) {
	t.Run("Local", func(t *testing.T) {
		e := NewEnvironment()
		e.Define("x", value.NewInt(1))

		v, err := e.Get("x")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !v.Equal(value.NewInt(1)) {
			t.Errorf("Get = %s", v.String())
		}
	})

	t.Run("ThroughEnclosing", func(t *testing.T) {
		root := NewEnvironment()
		root.Define("x", value.NewInt(7))
		child := NewEnclosedEnvironment(NewEnclosedEnvironment(root))

		v, err := child.Get("x")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !v.Equal(value.NewInt(7)) {
			t.Errorf("Get = %s", v.String())
		}
	})

	t.Run("Shadowing", func(t *testing.T) {
		root := NewEnvironment()
		root.Define("x", value.NewInt(1))
		child := NewEnclosedEnvironment(root)
		child.Define("x", value.NewInt(2))

		v, _ := child.Get("x")
		if !v.Equal(value.NewInt(2)) {
			t.Errorf("child sees %s, want the shadowing binding", v.String())
		}
		v, _ = root.Get("x")
		if !v.Equal(value.NewInt(1)) {
			t.Errorf("root sees %s", v.String())
		}
	})

	t.Run("Undefined", func(t *testing.T) {
		_, err := NewEnvironment().Get("ghost")
		if err == nil {
			t.Fatal("Get should fail")
		}
		if !IsUndefined(err) {
			t.Fatalf("want UndefinedVariableError, got %T", err)
		}
	})

	t.Run("CapturedShadowsLocal", func(t *testing.T) {
		e := NewEnvironment()
		e.Define("x", value.NewInt(1))
		e.CaptureVariable("x", value.NewInt(9))

		v, _ := e.Get("x")
		if !v.Equal(value.NewInt(9)) {
			t.Errorf("Get = %s, want the captured snapshot", v.String())
		}
	})

	t.Run("Names", func(t *testing.T) {
		e := NewEnvironment()
		e.Define("b", value.NewInt(2))
		e.Define("a", value.NewInt(1))

		got := e.Names()
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("Names = %v", got)
		}
	})
}

func TestVisibility(t *testing.T) {
	t.Run("DefaultsToPrivate", func(t *testing.T) {
		e := NewEnvironment()
		e.Define("x", value.NewInt(1))

		vis, ok := e.VisibilityOf("x")
		if !ok || vis != Private {
			t.Errorf("VisibilityOf = %v, %v", vis, ok)
		}
	})

	t.Run("PrivateBlockedExternally", func(t *testing.T) {
		e := NewEnvironment()
		e.Define("secret", value.NewInt(1))

		_, err := e.GetExternal("secret")
		if err == nil {
			t.Fatal("external read of a private binding should fail")
		}
		ave, ok := err.(*AccessViolationError)
		if !ok {
			t.Fatalf("want *AccessViolationError, got %T", err)
		}
		if ave.Name != "secret" || ave.Visibility != Private {
			t.Errorf("violation = %v", ave)
		}

		if _, err := e.Get("secret"); err != nil {
			t.Errorf("internal read should still work: %v", err)
		}
	})

	t.Run("ProtectedBlockedExternally", func(t *testing.T) {
		e := NewEnvironment()
		e.DefineWith("x", value.NewInt(1), Protected)

		if _, err := e.GetExternal("x"); !IsAccessViolation(err) {
			t.Fatalf("want access violation, got %v", err)
		}
	})

	t.Run("PublicAndConstVisible", func(t *testing.T) {
		e := NewEnvironment()
		e.DefineWith("api", value.NewInt(1), Public)
		e.DefineWith("pi", value.NewFloat64(3.14), Const)

		if _, err := e.GetExternal("api"); err != nil {
			t.Errorf("GetExternal(api): %v", err)
		}
		if _, err := e.GetExternal("pi"); err != nil {
			t.Errorf("GetExternal(pi): %v", err)
		}
		if !e.CanAccessExternally("pi") {
			t.Error("CanAccessExternally(pi) = false")
		}
		if e.CanAccessExternally("missing") {
			t.Error("CanAccessExternally(missing) = true")
		}
	})

	t.Run("ExternalWalksEnclosing", func(t *testing.T) {
		root := NewEnvironment()
		root.DefineWith("api", value.NewInt(1), Public)
		child := NewEnclosedEnvironment(root)

		if _, err := child.GetExternal("api"); err != nil {
			t.Errorf("GetExternal through chain: %v", err)
		}
		if _, err := child.GetExternal("missing"); !IsUndefined(err) {
			t.Errorf("want undefined, got %v", err)
		}
	})
}

func TestAssign(t *testing.T) {
	t.Run("RebindsWhereDefined", func(t *testing.T) {
		root := NewEnvironment()
		root.Define("x", value.NewInt(1))
		child := NewEnclosedEnvironment(root)

		if err := child.Assign("x", value.NewInt(2)); err != nil {
			t.Fatalf("Assign: %v", err)
		}
		v, _ := root.Get("x")
		if !v.Equal(value.NewInt(2)) {
			t.Errorf("root x = %s after child assign", v.String())
		}
		if child.DefinedHere("x") {
			t.Error("assign should not create a child binding")
		}
	})

	t.Run("UndefinedFails", func(t *testing.T) {
		if err := NewEnvironment().Assign("ghost", value.NewInt(1)); !IsUndefined(err) {
			t.Fatalf("want undefined, got %v", err)
		}
	})

	t.Run("ConstImmutable", func(t *testing.T) {
		e := NewEnvironment()
		e.DefineWith("pi", value.NewFloat64(3.14), Const)

		err := e.Assign("pi", value.NewFloat64(3))
		if !IsAccessViolation(err) {
			t.Fatalf("want access violation, got %v", err)
		}
		v, _ := e.Get("pi")
		if !v.Equal(value.NewFloat64(3.14)) {
			t.Errorf("pi = %s after rejected assign", v.String())
		}
	})

	t.Run("CurrentScopeOnly", func(t *testing.T) {
		root := NewEnvironment()
		root.Define("x", value.NewInt(1))
		child := NewEnclosedEnvironment(root)

		if err := child.AssignInCurrentScope("x", value.NewInt(2)); !IsUndefined(err) {
			t.Fatalf("want undefined in child, got %v", err)
		}
		if err := root.AssignInCurrentScope("x", value.NewInt(2)); err != nil {
			t.Fatalf("AssignInCurrentScope: %v", err)
		}
	})

	t.Run("KeepsVisibility", func(t *testing.T) {
		e := NewEnvironment()
		e.DefineWith("api", value.NewInt(1), Public)
		if err := e.Assign("api", value.NewInt(2)); err != nil {
			t.Fatalf("Assign: %v", err)
		}

		vis, _ := e.VisibilityOf("api")
		if vis != Public {
			t.Errorf("visibility after assign = %v", vis)
		}
	})
}

func TestScopeChainConcurrency(t *testing.T) {
	root := NewEnvironment()
	root.Define("shared", value.NewInt(0))

	left := NewEnclosedEnvironment(root)
	right := NewEnclosedEnvironment(root)
	leftLeaf := NewEnclosedEnvironment(left)
	rightLeaf := NewEnclosedEnvironment(right)

	var wg sync.WaitGroup
	for _, e := range []*Environment{leftLeaf, rightLeaf} {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(e *Environment) {
				defer wg.Done()
				for j := 0; j < 200; j++ {
					if _, err := e.Get("shared"); err != nil {
						t.Errorf("Get: %v", err)

						return
					}
					if err := e.Assign("shared", value.NewInt(int64(j))); err != nil {
						t.Errorf("Assign: %v", err)

						return
					}
				}
			}(e)
		}
	}
	wg.Wait()

	if _, err := root.Get("shared"); err != nil {
		t.Fatalf("Get after concurrent traffic: %v", err)
	}
}
