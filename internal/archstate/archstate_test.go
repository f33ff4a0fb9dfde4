package archstate

import (
	"testing"

	"github.com/cheriot32/simcore/internal/cheri"
)

func newState() *ArchState {
	return New(Config{MaxPhys: 4096, ResetVector: 0x8000_0000})
}

func TestResetVector(t *testing.T) {
	s := newState()
	if s.PCC().Address() != 0x8000_0000 {
		t.Errorf("pcc address got %#x want %#x", s.PCC().Address(), 0x8000_0000)
	}
	if !s.PCC().HasPermission(cheri.PermExecute) {
		t.Error("pcc should be executable")
	}
	if s.Register(0).IsValid() {
		t.Error("x0 should be the distinguished null capability")
	}
	for i := 1; i < 32; i++ {
		if !s.Register(i).IsValid() {
			t.Errorf("register %d should reset to a valid (memory root) capability", i)
		}
	}
}

func TestRegisterByNameAliases(t *testing.T) {
	s := newState()
	gp, _ := s.RegisterByName("gp")
	cgp, _ := s.RegisterByName("cgp")
	x3, _ := s.RegisterByName("x3")
	if gp != cgp || gp != x3 {
		t.Error("gp, cgp, and x3 must all resolve to the same underlying register")
	}
}

// S2. Move mtdc to x10, set address, store word, load word back.
func TestScalarStoreLoadRoundTrip(t *testing.T) {
	s := newState()
	mtdc := s.Mtdc()
	auth := *mtdc
	auth.SetAddress(0)

	res := s.StoreScalar(&auth, 10, 0x10, 4, 0xdead_beef, s.PCC().Address())
	if res.Trapped {
		t.Fatalf("unexpected trap storing word")
	}
	if res.Mask != 0xf {
		t.Errorf("mask got %#x want 0xf", res.Mask)
	}

	loaded := s.LoadScalar(&auth, 10, 0x10, 4, s.PCC().Address())
	if loaded.Trapped {
		t.Fatal("unexpected trap loading word")
	}
	if loaded.Data != 0xdead_beef {
		t.Errorf("got %#x want 0xdead_beef", loaded.Data)
	}
}

// S4. Bounds violation on fetch-equivalent load: narrowed capability,
// out-of-bounds access traps with the CHERI taxonomy.
func TestBoundsViolationTraps(t *testing.T) {
	s := newState()
	auth := s.Register(5)
	auth.SetBounds(0, 4, true)

	res := s.LoadScalar(auth, 5, 8, 4, 0x8000_0000)
	if !res.Trapped {
		t.Fatal("expected a bounds trap")
	}
	pending := s.Trap().Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one trap pushed, got %d", len(pending))
	}
	if pending[0].Cause != 0x1c {
		t.Errorf("mcause got %#x want 0x1c", pending[0].Cause)
	}
	wantTval := (uint32(5) << 5) | 0x01 // CapCauseBounds
	if pending[0].Tval != wantTval {
		t.Errorf("tval got %#x want %#x", pending[0].Tval, wantTval)
	}
}

func TestUntaggedAuthFailsOnTagFirst(t *testing.T) {
	s := newState()
	auth := s.Register(6)
	*auth = cheri.Null()

	res := s.LoadScalar(auth, 6, 0, 4, 0)
	if !res.Trapped {
		t.Fatal("expected trap for untagged authorizing capability")
	}
	pending := s.Trap().Pending()
	got := pending[len(pending)-1].Tval & 0x1f
	if got != 0x02 { // CapCauseTag
		t.Errorf("expected tag violation (0x02) to win check-order first, got %#x", got)
	}
}

// S6-equivalent: ecall raises a trap and bumps the handler depth.
func TestEcallTrapsAndAccounts(t *testing.T) {
	s := newState()
	s.Ecall(0x8000_0020)
	if s.Trap().InterruptHandlerDepth() != 1 {
		t.Errorf("depth got %d want 1", s.Trap().InterruptHandlerDepth())
	}
	if !s.TrapSet {
		t.Error("TrapSet should be set after ecall")
	}
}

func TestEbreakHandlerListFirstWins(t *testing.T) {
	s := newState()
	var calledFirst, calledSecond bool
	s.AddEbreakHandler(func() bool { calledFirst = true; return false })
	s.AddEbreakHandler(func() bool { calledSecond = true; return true })
	s.EBreak(0x8000_0000)
	if !calledFirst || !calledSecond {
		t.Error("both handlers should run until one reports handled")
	}
	if s.TrapSet {
		t.Error("a handled ebreak should not fall through to the default Breakpoint trap")
	}
}

func TestMustRevoke(t *testing.T) {
	s := New(Config{MaxPhys: 4096, RevocationBase: 0x1000, RevocationSize: 256})
	if s.MustRevoke(0x1000) {
		t.Fatal("should start clear")
	}
	s.SetMustRevoke(0x1000, true)
	if !s.MustRevoke(0x1000) {
		t.Error("expected revocation bit to be set")
	}
	if s.MustRevoke(0x2000) {
		t.Error("out-of-range base should report false")
	}
}
