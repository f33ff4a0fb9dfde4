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

// Package semantics implements the per-opcode behavior (C11): RV32I, Zicsr,
// a representative CHERIoT capability subset, and a handful of RVC
// instructions, wired as Semantic closures bound by the decoder's tables.
package semantics

import (
	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/cheri"
	"github.com/cheriot32/simcore/internal/inst"
	"github.com/cheriot32/simcore/internal/operand"
	"github.com/cheriot32/simcore/internal/trap"
)

// advance moves pcc to the next instruction unless the instruction just
// executed took a branch or trap; both of those already redirected pcc
// themselves (4.6.3, branch semantics below).
func advance(s *archstate.ArchState, i *inst.Instruction) {
	if s.TrapSet {
		return
	}
	if s.BranchTaken {
		s.BranchTaken = false
		return
	}
	s.PCC().SetAddress(i.Address + i.Size)
}

func sExt(v uint32) int32 { return int32(v) }

// --- RV32I ---

func Lui(s *archstate.ArchState, i *inst.Instruction) {
	operand.SetInt(s, i.Destinations[0], operand.GetInt(s, i.Sources[0]))
	advance(s, i)
}

func Jal(s *archstate.ArchState, i *inst.Instruction) {
	link := i.Address + i.Size
	target := uint32(int32(i.Address) + sExt(operand.GetInt(s, i.Sources[0])))
	operand.SetInt(s, i.Destinations[0], link)
	s.PCC().SetAddress(target)
	s.BranchTaken = true
	advance(s, i)
}

func Jalr(s *archstate.ArchState, i *inst.Instruction) {
	base := operand.GetInt(s, i.Sources[0])
	imm := sExt(operand.GetInt(s, i.Sources[1]))
	link := i.Address + i.Size
	target := uint32(int32(base)+imm) &^ 1
	operand.SetInt(s, i.Destinations[0], link)
	s.PCC().SetAddress(target)
	s.BranchTaken = true
	advance(s, i)
}

// BranchOp builds a conditional-branch semantic for the given comparator.
func BranchOp(cmp func(a, b int32) bool) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		a := int32(operand.GetInt(s, i.Sources[0]))
		b := int32(operand.GetInt(s, i.Sources[1]))
		if cmp(a, b) {
			target := uint32(int32(i.Address) + sExt(operand.GetInt(s, i.Sources[2])))
			s.PCC().SetAddress(target)
			s.BranchTaken = true
		}
		advance(s, i)
	}
}

// BranchOpU is BranchOp with an unsigned comparator (bltu/bgeu).
func BranchOpU(cmp func(a, b uint32) bool) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		a := operand.GetInt(s, i.Sources[0])
		b := operand.GetInt(s, i.Sources[1])
		if cmp(a, b) {
			target := uint32(int32(i.Address) + sExt(operand.GetInt(s, i.Sources[2])))
			s.PCC().SetAddress(target)
			s.BranchTaken = true
		}
		advance(s, i)
	}
}

func loadAddr(s *archstate.ArchState, i *inst.Instruction) (regIndex, addr uint32) {
	auth := operand.GetCap(s, i.Sources[0])
	imm := sExt(operand.GetInt(s, i.Sources[1]))
	return i.Sources[0].Reg, uint32(int32(auth.Address()) + imm)
}

// LoadOp builds a scalar-load semantic for the given size in bytes and
// whether the result sign-extends.
func LoadOp(size uint32, signed bool) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		auth := operand.GetCap(s, i.Sources[0])
		regIndex, addr := loadAddr(s, i)
		res := s.LoadScalar(auth, regIndex, addr, size, i.Address)
		if res.Trapped {
			return
		}
		data := res.Data
		if signed {
			switch size {
			case 1:
				data = uint32(int32(int8(data)))
			case 2:
				data = uint32(int32(int16(data)))
			}
		}
		operand.SetInt(s, i.Destinations[0], data)
		advance(s, i)
	}
}

// StoreOp builds a scalar-store semantic for the given size in bytes.
func StoreOp(size uint32) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		auth := operand.GetCap(s, i.Sources[0])
		regIndex, addr := loadAddr(s, i)
		data := operand.GetInt(s, i.Sources[2])
		res := s.StoreScalar(auth, regIndex, addr, size, data, i.Address)
		if res.Trapped {
			return
		}
		advance(s, i)
	}
}

// AluOp builds an integer ALU semantic over two source operands.
func AluOp(fn func(a, b uint32) uint32) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		a := operand.GetInt(s, i.Sources[0])
		b := operand.GetInt(s, i.Sources[1])
		operand.SetInt(s, i.Destinations[0], fn(a, b))
		advance(s, i)
	}
}

func Ecall(s *archstate.ArchState, i *inst.Instruction) {
	s.Ecall(i.Address)
	advance(s, i)
}

func Ebreak(s *archstate.ArchState, i *inst.Instruction) {
	s.EBreak(i.Address)
	advance(s, i)
}

func Fence(s *archstate.ArchState, i *inst.Instruction) {
	advance(s, i) // single-threaded core: fence is a structural no-op
}

// --- Zicsr ---

// CsrOp builds a CSR read-modify-write semantic: fn combines the CSR's old
// value with the source operand to produce the new value (csrrw discards
// old entirely, csrrs/csrrc set/clear bits).
func CsrOp(fn func(old, src uint32) uint32) inst.Semantic {
	return func(s *archstate.ArchState, i *inst.Instruction) {
		if _, err := s.CSRs().Read(uint16(i.Sources[0].Reg)); err != nil {
			s.TrapSet = true // unregistered CSR
			s.Trap().Trap(false, 0, trap.CauseIllegalInstruction, i.Address)
			return
		}
		old := operand.GetInt(s, i.Sources[0]) // Csr source operand
		src := operand.GetInt(s, i.Sources[1]) // Rs1 or zimm
		operand.SetInt(s, i.Destinations[0], old)
		operand.SetInt(s, i.Destinations[1], fn(old, src)) // Csr destination
		advance(s, i)
	}
}

// --- CHERIoT capability subset ---

func CGetAddr(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	operand.SetInt(s, i.Destinations[0], cs1.Address())
	advance(s, i)
}

func CGetBase(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	operand.SetInt(s, i.Destinations[0], cs1.Base())
	advance(s, i)
}

func CGetLen(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	top, base := cs1.Top(), uint64(cs1.Base())
	length := top - base
	if length > 0xffffffff {
		length = 0xffffffff // CHERIoT reports a saturated 32-bit length
	}
	operand.SetInt(s, i.Destinations[0], uint32(length))
	advance(s, i)
}

func CGetPerm(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	operand.SetInt(s, i.Destinations[0], uint32(cs1.Perms()))
	advance(s, i)
}

func CGetTag(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	v := uint32(0)
	if cs1.Tag() {
		v = 1
	}
	operand.SetInt(s, i.Destinations[0], v)
	advance(s, i)
}

func CGetType(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	operand.SetInt(s, i.Destinations[0], cs1.OType())
	advance(s, i)
}

func CSetAddr(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	rs2 := operand.GetInt(s, i.Sources[1])
	cd := *cs1
	cd.SetAddress(rs2)
	*operand.GetCap(s, i.Destinations[0]) = cd
	advance(s, i)
}

func CIncOffsetImm(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	imm := sExt(operand.GetInt(s, i.Sources[1]))
	cd := *cs1
	cd.SetAddress(uint32(int32(cs1.Address()) + imm))
	*operand.GetCap(s, i.Destinations[0]) = cd
	advance(s, i)
}

func CSetBoundsImm(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	length := operand.GetInt(s, i.Sources[1])
	cd := *cs1
	cd.SetBounds(cs1.Address(), length, false)
	*operand.GetCap(s, i.Destinations[0]) = cd
	advance(s, i)
}

func CMove(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	*operand.GetCap(s, i.Destinations[0]) = *cs1
	advance(s, i)
}

func CClearTag(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	dst := operand.GetCap(s, i.Destinations[0])
	*dst = *cs1
	dst.ClearTag()
	advance(s, i)
}

// CSpecialRW reads the special capability register named by the decoded
// Scr operand into cd, then (if rs1 != c0) writes rs1's value into the SCR.
// Scr resolution for values outside 28..31 yields null, signaling illegal,
// per 4.5.
func CSpecialRW(s *archstate.ArchState, i *inst.Instruction) {
	scr := operand.GetCap(s, i.Sources[0])
	if scr == nil {
		s.TrapSet = true
		s.Trap().HandleCheriRegException(i.Address, trap.CapCauseTag, i.Sources[0].Reg)
		return
	}
	old := *scr
	rs1 := operand.GetCap(s, i.Sources[1])
	if i.Sources[1].Reg != 0 {
		*scr = *rs1
	}
	*operand.GetCap(s, i.Destinations[0]) = old
	advance(s, i)
}

// CJALR performs a capability jump-and-link: cd <- pcc (return capability),
// pcc <- cs1 with address updated to the jump target.
func CJALR(s *archstate.ArchState, i *inst.Instruction) {
	cs1 := operand.GetCap(s, i.Sources[0])
	if !cs1.IsValid() || !cs1.HasPermission(cheri.PermExecute) {
		s.TrapSet = true
		cause := trap.CapCauseTag
		if cs1.IsValid() {
			cause = trap.CapCausePermitExecute
		}
		s.Trap().HandleCheriRegException(i.Address, cause, i.Sources[0].Reg)
		return
	}
	link := *s.PCC()
	link.SetAddressRaw(i.Address + i.Size)
	*operand.GetCap(s, i.Destinations[0]) = link
	target := cs1.Address()
	*s.PCC() = *cs1
	s.PCC().SetAddressRaw(target)
	s.BranchTaken = true
	advance(s, i)
}
