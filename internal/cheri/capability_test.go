package cheri

import "testing"

func TestRootsAreValidAndUnsealed(t *testing.T) {
	for name, r := range map[string]Register{
		"executable": ExecutableRoot(),
		"sealing":    SealingRoot(),
		"memory":     MemoryRoot(),
	} {
		if !r.IsValid() {
			t.Errorf("%s root should be tagged", name)
		}
		if r.IsSealed() {
			t.Errorf("%s root should be unsealed", name)
		}
		if r.Base() != 0 {
			t.Errorf("%s root base should be 0, got %d", name, r.Base())
		}
		if r.Top() != topOfAddressSpace {
			t.Errorf("%s root top should be 2^33, got %d", name, r.Top())
		}
	}
}

func TestAndPermMonotone(t *testing.T) {
	r := MemoryRoot()
	before := r.Perms()
	r.AndPerm(PermLoad | PermStore)
	if r.Perms()&^before != 0 {
		t.Error("and_perm must not set bits absent from the prior set")
	}
	if r.HasPermission(PermExecute) {
		t.Error("PermExecute should have been cleared")
	}
	if !r.HasPermission(PermLoad) || !r.HasPermission(PermStore) {
		t.Error("PermLoad/PermStore should remain")
	}
}

func TestAndPermAllIsIdentity(t *testing.T) {
	r := MemoryRoot()
	before := r.Perms()
	r.AndPerm(PermAll)
	if r.Perms() != before {
		t.Error("and_perm(all) should be a no-op on any prior permission set")
	}
}

func TestIsInBounds(t *testing.T) {
	r := MemoryRoot()
	r.SetBounds(0x1000, 0x100, true)
	if !r.IsInBounds(r.Base(), 0) {
		t.Error("is_in_bounds(base, 0) should hold")
	}
	if !r.IsInBounds(uint32(r.Top())-1, 1) {
		t.Error("is_in_bounds(top-1, 1) should hold")
	}
	if r.IsInBounds(uint32(r.Top()), 1) {
		t.Error("is_in_bounds(top, 1) should not hold")
	}
}

func TestSetAddressIdempotent(t *testing.T) {
	r := MemoryRoot()
	r.SetAddress(0x2000)
	tag1, base1, top1, addr1 := r.Tag(), r.Base(), r.Top(), r.Address()
	r.SetAddress(0x2000)
	if r.Tag() != tag1 || r.Base() != base1 || r.Top() != top1 || r.Address() != addr1 {
		t.Error("set_address(a); set_address(a) should equal set_address(a)")
	}
}

func TestSetBoundsExactFailureClearsTag(t *testing.T) {
	r := MemoryRoot()
	// A length that does not align to the representable grid at this
	// magnitude should fail exact narrowing.
	r.SetBounds(1, 0x1000, true)
	if r.IsValid() {
		t.Error("exact set_bounds with unrepresentable bounds should clear the tag")
	}
}

func TestSealUnsealRoundTrip(t *testing.T) {
	sealing := SealingRoot()
	sealing.SetAddress(5)

	target := MemoryRoot()
	target.Seal(sealing)
	if !target.IsValid() {
		t.Fatal("seal with a valid sealing capability should succeed")
	}
	if !target.IsSealed() {
		t.Fatal("target should be sealed")
	}

	target.Unseal(sealing)
	if !target.IsValid() {
		t.Fatal("unseal with the matching sealing capability should succeed")
	}
	if target.IsSealed() {
		t.Error("target should be unsealed after Unseal")
	}
}

func TestUnsealWrongTypeFails(t *testing.T) {
	sealing := SealingRoot()
	sealing.SetAddress(5)
	other := SealingRoot()
	other.SetAddress(6)

	target := MemoryRoot()
	target.Seal(sealing)
	target.Unseal(other)
	if target.IsValid() {
		t.Error("unseal with a mismatched otype source should clear the tag")
	}
}
