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

package decode

import (
	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/encoding"
	"github.com/cheriot32/simcore/internal/inst"
	"github.com/cheriot32/simcore/internal/operand"
	"github.com/cheriot32/simcore/internal/semantics"
	"github.com/cheriot32/simcore/internal/trap"
)

// clOffset reconstructs the c.lw/c.sw byte offset from its scattered CL/CS
// immediate fields.
func clOffset(word uint16) uint32 {
	w := uint32(word)
	imm53 := (w >> 10) & 0x7
	imm6 := (w >> 5) & 0x1
	imm2 := (w >> 6) & 0x1
	return (imm6 << 6) | (imm53 << 3) | (imm2 << 2)
}

func illegalCompressed(address uint32, word uint16) *inst.Instruction {
	return inst.New(address, 2, "illegal", "<illegal>", func(s *archstate.ArchState, i *inst.Instruction) {
		s.TrapSet = true
		s.Trap().Trap(false, uint32(word), trap.CauseIllegalInstruction, i.Address)
	}, nil, nil)
}

func decode16(s *archstate.ArchState, address uint32, word uint16) *inst.Instruction {
	q := encoding.COp(word)
	f3 := encoding.CFunct3(word)

	switch {
	case q == 0x1 && f3 == 0x0: // c.addi
		rd := encoding.CIRdRs1(word)
		imm := encoding.CIImm6(word)
		return inst.New(address, 2, "c.addi", "c.addi", semantics.AluOp(func(a, b uint32) uint32 { return a + b }),
			[]operand.Operand{{Kind: operand.KindRs1, Reg: rd}, {Kind: operand.KindImm, Imm: imm}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}})

	case q == 0x1 && f3 == 0x2: // c.li
		rd := encoding.CIRdRs1(word)
		imm := encoding.CIImm6(word)
		return inst.New(address, 2, "c.li", "c.li", semantics.AluOp(func(a, b uint32) uint32 { return b }),
			[]operand.Operand{{Kind: operand.KindRs1, Reg: 0}, {Kind: operand.KindImm, Imm: imm}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}})

	case q == 0x2 && f3 == 0x4 && (word>>12)&1 == 0: // c.mv
		rd := encoding.CRRdRs1(word)
		rs2 := encoding.CRRs2(word)
		if rs2 == 0 {
			return illegalCompressed(address, word)
		}
		return inst.New(address, 2, "c.mv", "c.mv", semantics.AluOp(func(a, b uint32) uint32 { return b }),
			[]operand.Operand{{Kind: operand.KindRs1, Reg: 0}, {Kind: operand.KindRs2, Reg: rs2}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}})

	case q == 0x1 && f3 == 0x5: // c.j: an unconditional jump, link discarded into x0
		target := encoding.CJTarget12(word)
		return inst.New(address, 2, "c.j", "c.j", semantics.Jal,
			[]operand.Operand{{Kind: operand.KindImm, Imm: target}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: 0}})

	case q == 0x1 && f3 == 0x1: // c.jal (rd = x1)
		target := encoding.CJTarget12(word)
		return inst.New(address, 2, "c.jal", "c.jal", semantics.Jal,
			[]operand.Operand{{Kind: operand.KindImm, Imm: target}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: 1}})

	case q == 0x1 && f3 == 0x6: // c.beqz
		rs1 := encoding.CBRs1Prime(word)
		offset := encoding.CBOffset9(word)
		return inst.New(address, 2, "c.beqz", "c.beqz", semantics.BranchOp(func(a, b int32) bool { return a == b }),
			[]operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindRs1, Reg: 0}, {Kind: operand.KindImm, Imm: offset}},
			nil)

	case q == 0x1 && f3 == 0x7: // c.bnez
		rs1 := encoding.CBRs1Prime(word)
		offset := encoding.CBOffset9(word)
		return inst.New(address, 2, "c.bnez", "c.bnez", semantics.BranchOp(func(a, b int32) bool { return a != b }),
			[]operand.Operand{{Kind: operand.KindRs1, Reg: rs1}, {Kind: operand.KindRs1, Reg: 0}, {Kind: operand.KindImm, Imm: offset}},
			nil)

	case q == 0x0 && f3 == 0x2: // c.lw
		rs1 := encoding.CLRs1Prime(word)
		rd := encoding.CLRdPrime(word)
		off := clOffset(word)
		return inst.New(address, 2, "c.lw", "c.lw", semantics.LoadOp(4, false),
			[]operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindImm, Imm: int32(off)}},
			[]operand.Operand{{Kind: operand.KindRd, Reg: rd}})

	case q == 0x0 && f3 == 0x6: // c.sw
		rs1 := encoding.CSRs1Prime(word)
		rs2 := encoding.CSRs2Prime(word)
		off := clOffset(word)
		return inst.New(address, 2, "c.sw", "c.sw", semantics.StoreOp(4),
			[]operand.Operand{{Kind: operand.KindCs1, Reg: rs1}, {Kind: operand.KindImm, Imm: int32(off)}, {Kind: operand.KindRs2, Reg: rs2}},
			nil)

	default:
		return illegalCompressed(address, word)
	}
}
