package encoding

import "testing"

func TestRFields(t *testing.T) {
	// add x1, x2, x3 -> 0b0000000 00011 00010 000 00001 0110011
	word := uint32(0)
	word |= 3 << 20 // rs2
	word |= 2 << 15 // rs1
	word |= 0 << 12 // funct3
	word |= 1 << 7  // rd
	word |= 0x33    // opcode
	if Opcode(word) != 0x33 {
		t.Errorf("opcode got %#x", Opcode(word))
	}
	if Rd(word) != 1 || Rs1(word) != 2 || Rs2(word) != 3 {
		t.Errorf("fields got rd=%d rs1=%d rs2=%d", Rd(word), Rs1(word), Rs2(word))
	}
}

func TestIImmSignExtends(t *testing.T) {
	word := uint32(0xfff) << 20 // imm = -1
	if IImm(word) != -1 {
		t.Errorf("got %d want -1", IImm(word))
	}
	word = uint32(0x7ff) << 20 // imm = 2047
	if IImm(word) != 2047 {
		t.Errorf("got %d want 2047", IImm(word))
	}
}

func TestSImm(t *testing.T) {
	// encode S-immediate = -4: binary 111...11100, split imm[11:5]=0x7f, imm[4:0]=0x1c
	word := uint32(0x7f)<<25 | uint32(0x1c)<<7
	if SImm(word) != -4 {
		t.Errorf("got %d want -4", SImm(word))
	}
}

func TestBImm12Zero(t *testing.T) {
	if BImm12(0) != 0 {
		t.Errorf("got %d want 0", BImm12(0))
	}
}

func TestUImm12MasksLowBits(t *testing.T) {
	word := uint32(0xdeadc123)
	if UImm12(word) != 0xdeadc000 {
		t.Errorf("got %#x want %#x", UImm12(word), uint32(0xdeadc000))
	}
}

func TestJImmZero(t *testing.T) {
	if JImm(0) != 0 {
		t.Errorf("got %d want 0", JImm(0))
	}
}

func TestCReg(t *testing.T) {
	if CReg(0) != 8 || CReg(7) != 15 {
		t.Errorf("CReg mapping wrong: CReg(0)=%d CReg(7)=%d", CReg(0), CReg(7))
	}
}

func TestCompressedQuadrantAndFunct3(t *testing.T) {
	word := uint16(0b111_00000_000_000_01) // funct3=111, quadrant=01
	if CFunct3(word) != 0x7 {
		t.Errorf("funct3 got %#x want 0x7", CFunct3(word))
	}
	if COp(word) != 0x1 {
		t.Errorf("quadrant got %#x want 0x1", COp(word))
	}
}

func TestAtomicFields(t *testing.T) {
	word := uint32(0x1f)<<27 | 1<<26 | 1<<25
	if AFunct5(word) != 0x1f {
		t.Errorf("funct5 got %#x want 0x1f", AFunct5(word))
	}
	if !AAq(word) || !ARl(word) {
		t.Error("expected both aq and rl set")
	}
}
