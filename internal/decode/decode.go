/*
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package decode implements the length-preserving ISA decoder (C7): it
// classifies an instruction word as 16- or 32-bit, looks up its opcode and
// format in the decode tables, binds operands via C6, and returns an
// Instruction (C8) whose semantic function (C11) is ready to execute.
package decode

import (
	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/encoding"
	"github.com/cheriot32/simcore/internal/inst"
	"github.com/cheriot32/simcore/internal/operand"
	"github.com/cheriot32/simcore/internal/semantics"
	"github.com/cheriot32/simcore/internal/trap"
)

// format names the bit layout used to build an entry's operand lists.
type format int

const (
	fmtR format = iota
	fmtIArith
	fmtIShift
	fmtILoad
	fmtS
	fmtB
	fmtU
	fmtJ
	fmtSystem
	fmtCsr
	fmtCsrImm
	fmtCheriR2    // cd, cs1
	fmtCheriR2Rs2 // cd, cs1, rs2
	fmtCheriI5    // cd, cs1, 5-bit immediate
	fmtCheriScr   // cd, scr(rs2 field), cs1
)

// entry32 is one row of the 32-bit decode table: a bit-pattern match plus
// the format used to bind operands and the semantic function to run.
type entry32 struct {
	opcode   uint32
	funct3   int32 // -1 matches any
	funct7   int32 // -1 matches any
	name     string
	format   format
	semantic inst.Semantic
}

// cheriOpcode is the major opcode CHERIoT capability instructions decode
// under, by convention in the upstream RISC-V CHERI extension (0x5b, the
// "custom-2" encoding space). No retrieved original_source file fixes this
// constant, so it is chosen directly from spec.md's description of a single
// CHERIoT capability-instruction opcode class.
const cheriOpcode = 0x5b

var table32 = []entry32{
	{0x37, -1, -1, "lui", fmtU, semantics.Lui},
	{0x6f, -1, -1, "jal", fmtJ, semantics.Jal},
	{0x67, 0, -1, "jalr", fmtIArith, semantics.Jalr},

	{0x63, 0, -1, "beq", fmtB, semantics.BranchOp(func(a, b int32) bool { return a == b })},
	{0x63, 1, -1, "bne", fmtB, semantics.BranchOp(func(a, b int32) bool { return a != b })},
	{0x63, 4, -1, "blt", fmtB, semantics.BranchOp(func(a, b int32) bool { return a < b })},
	{0x63, 5, -1, "bge", fmtB, semantics.BranchOp(func(a, b int32) bool { return a >= b })},
	{0x63, 6, -1, "bltu", fmtB, semantics.BranchOpU(func(a, b uint32) bool { return a < b })},
	{0x63, 7, -1, "bgeu", fmtB, semantics.BranchOpU(func(a, b uint32) bool { return a >= b })},

	{0x03, 0, -1, "lb", fmtILoad, semantics.LoadOp(1, true)},
	{0x03, 1, -1, "lh", fmtILoad, semantics.LoadOp(2, true)},
	{0x03, 2, -1, "lw", fmtILoad, semantics.LoadOp(4, false)},
	{0x03, 4, -1, "lbu", fmtILoad, semantics.LoadOp(1, false)},
	{0x03, 5, -1, "lhu", fmtILoad, semantics.LoadOp(2, false)},

	{0x23, 0, -1, "sb", fmtS, semantics.StoreOp(1)},
	{0x23, 1, -1, "sh", fmtS, semantics.StoreOp(2)},
	{0x23, 2, -1, "sw", fmtS, semantics.StoreOp(4)},

	{0x13, 0, -1, "addi", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 { return a + b })},
	{0x13, 2, -1, "slti", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 {
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	})},
	{0x13, 3, -1, "sltiu", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 {
		if a < b {
			return 1
		}
		return 0
	})},
	{0x13, 4, -1, "xori", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 { return a ^ b })},
	{0x13, 6, -1, "ori", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 { return a | b })},
	{0x13, 7, -1, "andi", fmtIArith, semantics.AluOp(func(a, b uint32) uint32 { return a & b })},
	{0x13, 1, 0, "slli", fmtIShift, semantics.AluOp(func(a, b uint32) uint32 { return a << (b & 0x1f) })},
	{0x13, 5, 0, "srli", fmtIShift, semantics.AluOp(func(a, b uint32) uint32 { return a >> (b & 0x1f) })},
	{0x13, 5, 0x20, "srai", fmtIShift, semantics.AluOp(func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 0x1f)) })},

	{0x33, 0, 0, "add", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a + b })},
	{0x33, 0, 0x20, "sub", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a - b })},
	{0x33, 1, 0, "sll", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a << (b & 0x1f) })},
	{0x33, 2, 0, "slt", fmtR, semantics.AluOp(func(a, b uint32) uint32 {
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	})},
	{0x33, 3, 0, "sltu", fmtR, semantics.AluOp(func(a, b uint32) uint32 {
		if a < b {
			return 1
		}
		return 0
	})},
	{0x33, 4, 0, "xor", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a ^ b })},
	{0x33, 5, 0, "srl", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a >> (b & 0x1f) })},
	{0x33, 5, 0x20, "sra", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 0x1f)) })},
	{0x33, 6, 0, "or", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a | b })},
	{0x33, 7, 0, "and", fmtR, semantics.AluOp(func(a, b uint32) uint32 { return a & b })},

	{0x0f, 0, -1, "fence", fmtSystem, semantics.Fence},

	{0x73, 1, -1, "csrrw", fmtCsr, semantics.CsrOp(func(old, src uint32) uint32 { return src })},
	{0x73, 2, -1, "csrrs", fmtCsr, semantics.CsrOp(func(old, src uint32) uint32 { return old | src })},
	{0x73, 3, -1, "csrrc", fmtCsr, semantics.CsrOp(func(old, src uint32) uint32 { return old &^ src })},
	{0x73, 5, -1, "csrrwi", fmtCsrImm, semantics.CsrOp(func(old, src uint32) uint32 { return src })},
	{0x73, 6, -1, "csrrsi", fmtCsrImm, semantics.CsrOp(func(old, src uint32) uint32 { return old | src })},
	{0x73, 7, -1, "csrrci", fmtCsrImm, semantics.CsrOp(func(old, src uint32) uint32 { return old &^ src })},

	// funct3 == 0 (ecall/ebreak, told apart by the I-type immediate: 1 is
	// ebreak) is handled by systemEntry, since both share opcode 0x73 funct3 0.

	{cheriOpcode, 0, 0x00, "cgetperm", fmtCheriR2, semantics.CGetPerm},
	{cheriOpcode, 0, 0x01, "cgettype", fmtCheriR2, semantics.CGetType},
	{cheriOpcode, 0, 0x02, "cgetbase", fmtCheriR2, semantics.CGetBase},
	{cheriOpcode, 0, 0x03, "cgetlen", fmtCheriR2, semantics.CGetLen},
	{cheriOpcode, 0, 0x04, "cgettag", fmtCheriR2, semantics.CGetTag},
	{cheriOpcode, 0, 0x05, "cgetaddr", fmtCheriR2, semantics.CGetAddr},
	{cheriOpcode, 0, 0x0b, "cmove", fmtCheriR2, semantics.CMove},
	{cheriOpcode, 0, 0x0b | 0x40, "ccleartag", fmtCheriR2, semantics.CClearTag},
	{cheriOpcode, 1, -1, "csetaddr", fmtCheriR2Rs2, semantics.CSetAddr},
	{cheriOpcode, 2, -1, "cincoffsetimm", fmtCheriI5, semantics.CIncOffsetImm},
	{cheriOpcode, 3, -1, "csetboundsimm", fmtCheriI5, semantics.CSetBoundsImm},
	{cheriOpcode, 4, -1, "cspecialrw", fmtCheriScr, semantics.CSpecialRW},
	{cheriOpcode, 5, -1, "cjalr", fmtCheriR2, semantics.CJALR},
}

func lookup32(word uint32) (*entry32, bool) {
	op := encoding.Opcode(word)
	f3 := int32(encoding.Funct3(word))
	f7 := int32(encoding.Funct7(word))
	if op == 0x73 && f3 == 0 {
		return systemEntry(word), true
	}
	for i := range table32 {
		e := &table32[i]
		if e.opcode != op {
			continue
		}
		if e.funct3 != -1 && e.funct3 != f3 {
			continue
		}
		if e.funct7 != -1 && e.funct7 != f7 {
			continue
		}
		return e, true
	}
	return nil, false
}

func systemEntry(word uint32) *entry32 {
	if encoding.UImmI(word) == 1 {
		return &entry32{name: "ebreak", format: fmtSystem, semantic: semantics.Ebreak}
	}
	return &entry32{name: "ecall", format: fmtSystem, semantic: semantics.Ecall}
}

func buildOperands(f format, word uint32) (sources, destinations []operand.Operand) {
	rd := encoding.Rd(word)
	rs1 := encoding.Rs1(word)
	rs2 := encoding.Rs2(word)
	switch f {
	case fmtR:
		return []operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindRs2, Reg: rs2}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtIArith:
		return []operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindImm, Imm: encoding.IImm(word)}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtIShift:
		shamt := int32((word >> 20) & 0x1f)
		return []operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindImm, Imm: shamt}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtILoad:
		return []operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindImm, Imm: encoding.IImm(word)}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtS:
		return []operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindImm, Imm: encoding.SImm(word)}, {Kind: operand.KindRs2, Reg: rs2}},
			nil
	case fmtB:
		return []operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindRs2, Reg: rs2}, {Kind: operand.KindImm, Imm: encoding.BImm12(word)}},
			nil
	case fmtU:
		return []operand.Operand{{Kind: operand.KindImm, Imm: int32(encoding.UImm12(word))}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtJ:
		return []operand.Operand{{Kind: operand.KindImm, Imm: encoding.JImm(word)}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}}
	case fmtCsr:
		return []operand.Operand{{Kind: operand.KindCsr, Reg: uint32(encoding.UImmI(word))}, {Kind: operand.KindRs1, Reg: rs1}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}, {Kind: operand.KindCsr, Reg: uint32(encoding.UImmI(word))}}
	case fmtCsrImm:
		return []operand.Operand{{Kind: operand.KindCsr, Reg: uint32(encoding.UImmI(word))}, {Kind: operand.KindImm, Imm: int32(rs1)}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}, {Kind: operand.KindCsr, Reg: uint32(encoding.UImmI(word))}}
	case fmtCheriR2:
		return []operand.Operand{{Kind: operand.KindCs1, Reg: rs1}}, []operand.Operand{{Kind: operand.KindCd, Reg: rd}}
	case fmtCheriR2Rs2:
		return []operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindRs2, Reg: rs2}},
			[]operand.Operand{{Kind: operand.KindCd, Reg: rd}}
	case fmtCheriI5:
		return []operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindImm, Imm: int32(encoding.I5Imm(word))}},
			[]operand.Operand{{Kind: operand.KindCd, Reg: rd}}
	case fmtCheriScr:
		return []operand.Operand{{Kind: operand.KindScr, Reg: rs2}, {Kind: operand.KindCs1, Reg: rs1}},
			[]operand.Operand{{Kind: operand.KindCd, Reg: rd}}
	default:
		return nil, nil
	}
}

func trapPseudo(cause uint32, size uint32) *inst.Instruction {
	return inst.New(0, size, "trap", "<trap>", func(s *archstate.ArchState, i *inst.Instruction) {
		s.TrapSet = true
		s.Trap().Trap(false, i.Address, cause, i.Address)
	}, nil, nil)
}

// Decode implements the C7 contract: decode(address, word) -> Instruction.
// word carries the full 32-bit fetch; for a compressed instruction only its
// low half is consulted.
func Decode(s *archstate.ArchState, address uint32, word uint32) *inst.Instruction {
	if address&1 != 0 {
		i := trapPseudo(trap.CauseInstructionAddressMisaligned, 1)
		i.Address = address
		return i
	}
	if address > s.Memory().Size() {
		i := trapPseudo(trap.CauseInstructionAccessFault, 1)
		i.Address = address
		return i
	}

	if word&0x3 != 0x3 {
		return decode16(s, address, uint16(word))
	}

	e, ok := lookup32(word)
	if !ok {
		i := inst.New(address, 4, "illegal", "<illegal>", func(s *archstate.ArchState, i *inst.Instruction) {
			s.TrapSet = true
			s.Trap().Trap(false, word, trap.CauseIllegalInstruction, i.Address)
		}, nil, nil)
		return i
	}
	sources, destinations := buildOperands(e.format, word)
	return inst.New(address, 4, inst.Opcode(e.name), e.name, e.semantic, sources, destinations)
}
