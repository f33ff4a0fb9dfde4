package trap

import (
	"testing"

	"github.com/cheriot32/simcore/internal/cheri"
)

func newTestEngine() (*Engine, *cheri.Register, *cheri.Register, *cheri.Register, *uint32, *uint32) {
	pcc := cheri.ExecutableRoot()
	pcc.SetAddress(0x8000_0000)
	mtcc := cheri.ExecutableRoot()
	mtcc.SetAddress(0x8000_1000)
	var mepcc cheri.Register
	var mcause, mtval uint32
	e := NewEngine(&pcc, &mepcc, &mtcc,
		func(v uint32) { mcause = v },
		func(v uint32) { mtval = v })
	return e, &pcc, &mepcc, &mtcc, &mcause, &mtval
}

// S4-style bounds violation trap: mcause = 0x1c, mtval encodes reg<<5|cause.
func TestHandleCheriRegException(t *testing.T) {
	e, pcc, mepcc, mtcc, mcause, mtval := newTestEngine()

	e.HandleCheriRegException(0x8000_0008, CapCauseBounds, 1)

	if *mcause != CauseCheri {
		t.Errorf("mcause got %#x want %#x", *mcause, CauseCheri)
	}
	if *mtval != (1<<5)|CapCauseBounds {
		t.Errorf("mtval got %#x want %#x", *mtval, (1<<5)|CapCauseBounds)
	}
	if mepcc.Address() != 0x8000_0008 {
		t.Errorf("mepcc address got %#x want %#x", mepcc.Address(), 0x8000_0008)
	}
	if pcc.Address() != mtcc.Address() {
		t.Errorf("pcc should hand off to mtcc's entry, got %#x want %#x", pcc.Address(), mtcc.Address())
	}
}

func TestTrapPushesInterruptInfo(t *testing.T) {
	e, _, _, _, _, _ := newTestEngine()
	e.Trap(true, 0, 0x7, 0x8000_0020)
	pending := e.Pending()
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if !pending[0].IsInterrupt || pending[0].Cause != 0x7 || pending[0].Epc != 0x8000_0020 {
		t.Errorf("unexpected InterruptInfo: %+v", pending[0])
	}
}

// S6. Trap accounting and return.
func TestTrapAccounting(t *testing.T) {
	e, _, _, _, _, _ := newTestEngine()
	if e.InterruptHandlerDepth() != 0 {
		t.Fatal("depth should start at 0")
	}
	e.Trap(false, 0, CauseEnvCallFromMMode, 0x8000_0020)
	if e.InterruptHandlerDepth() != 1 {
		t.Errorf("depth got %d want 1", e.InterruptHandlerDepth())
	}
	e.SignalReturnFromInterrupt()
	if e.InterruptHandlerDepth() != 0 {
		t.Errorf("depth got %d want 0 after return", e.InterruptHandlerDepth())
	}
	if e.TakenCount() != 1 || e.ReturnedCount() != 1 {
		t.Errorf("got taken=%d returned=%d want 1,1", e.TakenCount(), e.ReturnedCount())
	}
}

func TestOnTrapHandledSkipsDefaultDelivery(t *testing.T) {
	e, pcc, _, mtcc, mcause, _ := newTestEngine()
	originalPC := pcc.Address()
	e.OnTrap = func(InterruptInfo) bool { return true }
	e.Trap(false, 0, CauseBreakpoint, 0x8000_0004)
	if pcc.Address() != originalPC {
		t.Error("handled trap should not move pcc to mtcc")
	}
	if *mcause != 0 {
		t.Error("handled trap should not write mcause")
	}
	_ = mtcc
}

func TestCheckForInterruptPriority(t *testing.T) {
	mip := uint32(1<<BitMachineTimerInterrupt | 1<<BitMachineExternalInterrupt)
	mie := mip
	cause, ok := CheckForInterrupt(mip, mie, true)
	if !ok || cause != BitMachineExternalInterrupt {
		t.Errorf("expected external interrupt to win priority, got cause=%d ok=%v", cause, ok)
	}
}

func TestCheckForInterruptGlobalDisable(t *testing.T) {
	mip := uint32(1 << BitMachineExternalInterrupt)
	if _, ok := CheckForInterrupt(mip, mip, false); ok {
		t.Error("mstatus.MIE=false should suppress all interrupts")
	}
}
