package namespace

import "testing"

func TestRegistry_CreateRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("cities"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create("cities"); err == nil {
		t.Fatal("expected error creating duplicate namespace")
	}
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("cities")
	b := r.GetOrCreate("cities")
	if a != b {
		t.Fatal("expected GetOrCreate to return the same namespace instance")
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Fatal("expected ok=false for missing namespace")
	}
}

func TestRegistry_DropAndNames(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("b")
	r.GetOrCreate("a")
	r.GetOrCreate("c")

	names := r.Names()
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if names[i] != w {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	if !r.Drop("b") {
		t.Fatal("expected Drop to report true for existing namespace")
	}
	if r.Drop("b") {
		t.Fatal("expected second Drop to report false")
	}
	if len(r.Names()) != 2 {
		t.Fatalf("expected 2 namespaces after drop, got %v", r.Names())
	}
}

func TestRegistry_All(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("x")
	r.GetOrCreate("y")
	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d, want 2", len(all))
	}
}
