package assay

import (
	"errors"
	"reflect"
	"testing"
)

func noopType(name string) HandlerType {
	return HandlerType{Name: name, New: func(string, Kwargs) (Handler, error) {
		return nil, errors.New("not constructible")
	}}
}

func TestRegistry_RegisterLookup(t *testing.T) {
	g := NewRegistry()
	if err := g.Register("FMT_A", noopType("HandlerA")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	h, err := g.Lookup("FMT_A")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if h.Name != "HandlerA" {
		t.Errorf("expected HandlerA, got %q", h.Name)
	}
}

func TestRegistry_Lookup_UnknownSpec(t *testing.T) {
	g := NewRegistry()
	if _, err := g.Lookup("FMT_MISSING"); !errors.Is(err, ErrUnknownSpec) {
		t.Errorf("expected ErrUnknownSpec, got: %v", err)
	}
}

func TestRegistry_Register_DuplicateDifferentType(t *testing.T) {
	g := NewRegistry()
	if err := g.Register("FMT_A", noopType("HandlerA")); err != nil {
		t.Fatal(err)
	}
	err := g.Register("FMT_A", noopType("HandlerB"))
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("expected ErrDuplicateHandler, got: %v", err)
	}
	// The original mapping survives.
	h, _ := g.Lookup("FMT_A")
	if h.Name != "HandlerA" {
		t.Errorf("original mapping clobbered: %q", h.Name)
	}
}

func TestRegistry_Register_SameTypeIsNoop(t *testing.T) {
	g := NewRegistry()
	if err := g.Register("FMT_A", noopType("HandlerA")); err != nil {
		t.Fatal(err)
	}
	if err := g.Register("FMT_A", noopType("HandlerA")); err != nil {
		t.Errorf("re-registering the identical type should be a no-op, got: %v", err)
	}
}

func TestRegistry_Register_Validation(t *testing.T) {
	g := NewRegistry()
	if err := g.Register("FMT_A", HandlerType{Name: "NoCtor"}); err == nil {
		t.Error("expected error for nil constructor")
	}
	if err := g.Register("FMT_A", HandlerType{New: noopType("x").New}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestRegistry_Deregister(t *testing.T) {
	g := NewRegistry()
	if err := g.Register("FMT_A", noopType("HandlerA")); err != nil {
		t.Fatal(err)
	}

	h, ok := g.Deregister("FMT_A")
	if !ok || h.Name != "HandlerA" {
		t.Errorf("expected removed HandlerA, got (%q, %v)", h.Name, ok)
	}
	if _, err := g.Lookup("FMT_A"); !errors.Is(err, ErrUnknownSpec) {
		t.Errorf("spec should be gone after deregister, got: %v", err)
	}

	// Removing an absent spec is a reported no-op, not an error.
	if _, ok := g.Deregister("FMT_A"); ok {
		t.Error("deregistering an absent spec should report ok=false")
	}
}

func TestRegistry_Specs_Sorted(t *testing.T) {
	g := NewRegistry()
	for _, spec := range []string{"FMT_C", "FMT_A", "FMT_B"} {
		if err := g.Register(spec, noopType("H_"+spec)); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"FMT_A", "FMT_B", "FMT_C"}
	if got := g.Specs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Specs() = %v, want %v", got, want)
	}
}
