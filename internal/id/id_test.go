package id

import "testing"

func TestSlabInsertGet(t *testing.T) {
	s := NewSlab[string]()
	k := s.Insert("hello")

	v, ok := s.Get(k)
	if !ok || v != "hello" {
		t.Fatalf("Get(%v) = (%q, %v), want (\"hello\", true)", k, v, ok)
	}
}

func TestSlabGetUnknownKey(t *testing.T) {
	s := NewSlab[int]()
	if _, ok := s.Get(Null()); ok {
		t.Fatal("Get(Null()) should fail")
	}
	if _, ok := s.Get(TypedKey{index: 5, gen: 1}); ok {
		t.Fatal("Get of an out-of-range key should fail")
	}
}

func TestSlabMutate(t *testing.T) {
	s := NewSlab[int]()
	k := s.Insert(1)
	if ok := s.Mutate(k, func(v *int) { *v += 41 }); !ok {
		t.Fatal("Mutate on a live key should succeed")
	}
	v, _ := s.Get(k)
	if v != 42 {
		t.Fatalf("value after Mutate = %d, want 42", v)
	}
}

func TestSlabRemoveThenGenerationMismatch(t *testing.T) {
	s := NewSlab[int]()
	k1 := s.Insert(1)
	if _, ok := s.Remove(k1); !ok {
		t.Fatal("Remove of a live key should succeed")
	}
	if _, ok := s.Get(k1); ok {
		t.Fatal("Get after Remove should fail")
	}

	// Reinsert reuses the freed slot index, but the new generation must
	// invalidate the stale key.
	k2 := s.Insert(2)
	if k2.index != k1.index {
		t.Fatalf("expected the freed slot to be reused, got index %d want %d", k2.index, k1.index)
	}
	if _, ok := s.Get(k1); ok {
		t.Fatal("stale key from before Remove+reinsert must not resolve to the new entry")
	}
	v, ok := s.Get(k2)
	if !ok || v != 2 {
		t.Fatalf("Get(k2) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestSlabLenAndEach(t *testing.T) {
	s := NewSlab[int]()
	s.Insert(1)
	k2 := s.Insert(2)
	s.Remove(k2)
	s.Insert(3)

	if got := s.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	seen := map[int]bool{}
	s.Each(func(_ TypedKey, v *int) { seen[*v] = true })
	if !seen[1] || !seen[3] || seen[2] {
		t.Fatalf("Each visited %v, want exactly {1, 3}", seen)
	}
}

func TestTypedKeyIsNull(t *testing.T) {
	if !Null().IsNull() {
		t.Fatal("Null() should report IsNull")
	}
	s := NewSlab[int]()
	k := s.Insert(0)
	if k.IsNull() {
		t.Fatal("a key returned by Insert should not be null")
	}
}

type shipTag struct{}
type stationTag struct{}

func TestGenericRoundTrip(t *testing.T) {
	typed := NewId[shipTag](TypedKey{index: 3, gen: 1}, TypedKey{index: 7, gen: 1})
	generic := ToGeneric(typed)

	back, ok := FromGeneric[shipTag](generic)
	if !ok {
		t.Fatal("FromGeneric with matching type tag should succeed")
	}
	if back.Typed() != typed.Typed() || back.Generic() != typed.Generic() {
		t.Fatalf("round-tripped id = %+v, want %+v", back, typed)
	}
}

func TestGenericTypeMismatch(t *testing.T) {
	typed := NewId[shipTag](TypedKey{index: 1, gen: 1}, TypedKey{index: 1, gen: 1})
	generic := ToGeneric(typed)

	if _, ok := FromGeneric[stationTag](generic); ok {
		t.Fatal("FromGeneric against a different type tag should fail")
	}
}

func TestIdIsNull(t *testing.T) {
	if !NullId[shipTag]().IsNull() {
		t.Fatal("NullId() should report IsNull")
	}
}
