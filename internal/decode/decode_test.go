package decode

import (
	"testing"

	"github.com/cheriot32/simcore/internal/archstate"
)

func newState() *archstate.ArchState {
	return archstate.New(archstate.Config{MaxPhys: 64 * 1024, ResetVector: 0x8000_0000})
}

func encodeU(rd uint32, imm20 uint32) uint32 {
	return (imm20 << 12) | (rd << 7) | 0x37
}

func encodeIArith(rd, rs1, imm uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | rd<<7 | 0x13
}

func encodeB(rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits105 := (u >> 5) & 0x3f
	bits41 := (u >> 1) & 0xf
	return bit12<<31 | bits105<<25 | rs2<<20 | rs1<<15 | bits41<<8 | bit11<<7 | 0x63
}

// S1. lui x12, 0x80002; addi x12, x12, 0x468.
func TestScenarioS1(t *testing.T) {
	s := newState()
	word := encodeU(12, 0x80002)
	i := Decode(s, 0x8000_0000, word)
	i.Execute(s)
	if got := s.Register(12).Address(); got != 0x8000_2000 {
		t.Errorf("lui: got %#x want 0x8000_2000", got)
	}
	if got := s.PCC().Address(); got != 0x8000_0004 {
		t.Errorf("pc got %#x want 0x8000_0004", got)
	}

	word = encodeIArith(12, 12, 0x468)
	i = Decode(s, 0x8000_0004, word)
	i.Execute(s)
	if got := s.Register(12).Address(); got != 0x8000_2468 {
		t.Errorf("addi: got %#x want 0x8000_2468", got)
	}
	if got := s.PCC().Address(); got != 0x8000_0008 {
		t.Errorf("pc got %#x want 0x8000_0008", got)
	}
}

// S3. Taken branch.
func TestScenarioS3TakenBranch(t *testing.T) {
	s := newState()
	s.Register(1).SetAddress(5)
	s.Register(2).SetAddress(5)
	word := encodeB(1, 2, 0x124)
	i := Decode(s, 0x8000_0000, word)
	i.Execute(s)
	if got := s.PCC().Address(); got != 0x8000_0124 {
		t.Errorf("pc got %#x want 0x8000_0124", got)
	}
}

func TestBranchNotTakenFallsThrough(t *testing.T) {
	s := newState()
	s.Register(1).SetAddress(5)
	s.Register(2).SetAddress(6)
	word := encodeB(1, 2, 0x124)
	i := Decode(s, 0x8000_0000, word)
	i.Execute(s)
	if got := s.PCC().Address(); got != 0x8000_0004 {
		t.Errorf("pc got %#x want 0x8000_0004 (fallthrough)", got)
	}
}

func TestMisalignedFetchTraps(t *testing.T) {
	s := newState()
	i := Decode(s, 0x8000_0001, 0)
	i.Execute(s)
	pending := s.Trap().Pending()
	if len(pending) != 1 || pending[0].Cause != 0 {
		t.Fatalf("expected one InstructionAddressMisaligned trap, got %+v", pending)
	}
}

func TestLwSwRoundTrip(t *testing.T) {
	s := newState()
	// sw x11, 0(x10); lw x13, 0(x10)
	s.Register(10).SetAddress(0x10)
	s.Register(11).SetAddress(0xdead_beef)
	swWord := uint32(0)<<25 | 11<<20 | 10<<15 | 2<<12 | 0<<7 | 0x23
	i := Decode(s, 0x8000_0000, swWord)
	i.Execute(s)
	if i.Op != "sw" {
		t.Fatalf("expected sw, got %s", i.Op)
	}

	lwWord := uint32(0)<<20 | 10<<15 | 2<<12 | 13<<7 | 0x03
	i = Decode(s, 0x8000_0004, lwWord)
	i.Execute(s)
	if got := s.Register(13).Address(); got != 0xdead_beef {
		t.Errorf("got %#x want 0xdead_beef", got)
	}
}

func TestUnknownOpcodeIsIllegal(t *testing.T) {
	s := newState()
	i := Decode(s, 0x8000_0000, 0x0000007f) // opcode 0x7f is reserved/unassigned
	i.Execute(s)
	pending := s.Trap().Pending()
	if len(pending) != 1 || pending[0].Cause != 0x2 {
		t.Fatalf("expected IllegalInstruction, got %+v", pending)
	}
}

func TestCompressedAddi(t *testing.T) {
	s := newState()
	s.Register(8).SetAddress(5)
	// c.addi x8, 3: quadrant 01, funct3 000, rd/rs1=8, imm=3 (imm[5]=0,imm[4:0]=3)
	word := uint16(0b000_0_01000_00011_01)
	i := Decode(s, 0x8000_0000, uint32(word))
	i.Execute(s)
	if got := s.Register(8).Address(); got != 8 {
		t.Errorf("got %d want 8", got)
	}
	if i.Size != 2 {
		t.Errorf("compressed instruction should be size 2, got %d", i.Size)
	}
}
