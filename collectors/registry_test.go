package collectors

import (
	"testing"
)

// TestRegistry_RegisterAll verifies that multiple probes can be registered
// and retrieved by name, and that All returns all of them.
func TestRegistry_RegisterAll(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"cpu", "cores", "disk", "network"} {
		reg.Register(&StubProbe{ProbeName: name})
	}

	for _, want := range []string{"cpu", "cores", "disk", "network"} {
		got, ok := reg.Get(want)
		if !ok {
			t.Errorf("Get(%q) returned false, want true", want)
			continue
		}
		if got.Name() != want {
			t.Errorf("Get(%q).Name() = %q, want %q", want, got.Name(), want)
		}
	}

	all := reg.All()
	if len(all) != 4 {
		t.Fatalf("All() returned %d probes, want 4", len(all))
	}

	// All returns a copy.
	all[0] = &StubProbe{ProbeName: "mutated"}
	if names := reg.Names(); names[0] != "cpu" {
		t.Errorf("registry was mutated via All() slice: got %q, want %q", names[0], "cpu")
	}
}

// TestRegistry_DuplicateRegistration verifies that registering a probe with
// the same name as an existing one replaces it in place.
func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()

	first := &StubProbe{ProbeName: "cpu"}
	other := &StubProbe{ProbeName: "disk"}
	second := &StubProbe{ProbeName: "cpu"}

	reg.Register(first)
	reg.Register(other)
	reg.Register(second)

	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d probes after duplicate registration, want 2", len(all))
	}
	got, _ := reg.Get("cpu")
	if got != second {
		t.Error("Get(cpu) should return the replacement probe")
	}
	if all[0] != second {
		t.Error("replacement should keep the original position")
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Get("nope"); ok {
		t.Error("Get on empty registry returned true")
	}
}
