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

// Package operand implements the operand namespace (C6): an enum of operand
// kinds plus fixed getter/setter closures over an archstate.ArchState, the
// way a decoded instruction's source and destination lists are built.
package operand

import (
	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/cheri"
)

// Kind enumerates every operand a decoded instruction can bind. Named after
// what it reads, not the instruction that uses it.
type Kind int

const (
	KindNone Kind = iota
	KindRd
	KindRs1
	KindRs2
	KindCd
	KindCs1
	KindCs2
	KindFrd
	KindFrs1
	KindFrs2
	KindFrs3
	KindRm
	KindScr
	KindCsr
	KindImm
	KindPC
	KindVm
	KindVd
	KindVs1
	KindVs2
	KindVs3
	KindPastMaxValue
)

// vectorGroupSize gives, per vector-register-group operand position (an
// index into this table, not a Kind), the number of underlying architectural
// vector registers the group spans for the widest supported LMUL: register
// 0, 8, 16, 24 each head a group of 8; 4, 12, 20, 28 a group of 4; 2, 6, 10,
// 14, 18, 22, 26, 30 a group of 2; every odd register a group of 1.
var vectorGroupSize = [8]int{8, 1, 2, 1, 4, 1, 2, 1}

// VectorGroupSize returns vectorGroupSize[i], bounds-checked.
func VectorGroupSize(i int) int {
	if i < 0 || i >= len(vectorGroupSize) {
		return 1
	}
	return vectorGroupSize[i]
}

// VectorGroup is the composite operand a vector register-group getter
// builds: the base vector register plus the number of consecutive
// (wraparound mod 32) registers the group spans. The synthetic all-ones
// mask (Vm, unmasked) has no backing register and sets AllOnes instead.
type VectorGroup struct {
	Base    int
	Count   int
	AllOnes bool
}

// Registers resolves the group to the underlying architectural vector
// registers it spans, in group order. Returns nil for the synthetic
// all-ones mask, which has no backing register.
func (g VectorGroup) Registers(s *archstate.ArchState) []*archstate.VectorReg {
	if g.AllOnes {
		return nil
	}
	regs := make([]*archstate.VectorReg, g.Count)
	for i := range regs {
		regs[i] = s.VReg(g.Base + i)
	}
	return regs
}

// Operand is a single bound operand: its kind plus the register/CSR index or
// immediate value the decoder extracted.
type Operand struct {
	Kind Kind
	Reg  uint32
	Imm  int32
}

// IntGetter reads an operand's value as an unsigned 32-bit scalar.
type IntGetter func(s *archstate.ArchState, op Operand) uint32

// IntSetter writes an unsigned 32-bit scalar operand.
type IntSetter func(s *archstate.ArchState, op Operand, v uint32)

// CapGetter reads an operand's value as a capability register pointer
// (nil if the operand kind has no capability representation).
type CapGetter func(s *archstate.ArchState, op Operand) *cheri.Register

// intGetters is the fixed source-getter registry, indexed by Kind, mirroring
// the teacher's table-of-closures convention for per-opcode semantics.
var intGetters = [KindPastMaxValue]IntGetter{
	KindRd:  func(s *archstate.ArchState, op Operand) uint32 { return s.Register(int(op.Reg)).Address() },
	KindRs1: func(s *archstate.ArchState, op Operand) uint32 { return s.Register(int(op.Reg)).Address() },
	KindRs2: func(s *archstate.ArchState, op Operand) uint32 { return s.Register(int(op.Reg)).Address() },
	KindImm: func(s *archstate.ArchState, op Operand) uint32 { return uint32(op.Imm) },
	KindPC:  func(s *archstate.ArchState, op Operand) uint32 { return s.PCC().Address() },
	KindCsr: func(s *archstate.ArchState, op Operand) uint32 {
		v, _ := s.CSRs().Read(uint16(op.Reg))
		return v
	},
	KindRm: func(s *archstate.ArchState, op Operand) uint32 { return uint32(s.FP().Frm) },
}

// GetInt dispatches through intGetters; an unbound kind reads as zero.
func GetInt(s *archstate.ArchState, op Operand) uint32 {
	if g := intGetters[op.Kind]; g != nil {
		return g(s, op)
	}
	return 0
}

// intSetters mirrors intGetters for destination operands.
var intSetters = [KindPastMaxValue]IntSetter{
	KindRd: func(s *archstate.ArchState, op Operand, v uint32) {
		if op.Reg == 0 {
			return // x0 is hard-wired null, writes are discarded
		}
		s.Register(int(op.Reg)).SetAddress(v)
	},
	KindCsr: func(s *archstate.ArchState, op Operand, v uint32) { _ = s.CSRs().Write(uint16(op.Reg), v) },
	KindRm:  func(s *archstate.ArchState, op Operand, v uint32) { s.FP().Frm = uint8(v) },
}

// SetInt dispatches through intSetters; unbound kinds are a no-op.
func SetInt(s *archstate.ArchState, op Operand, v uint32) {
	if st := intSetters[op.Kind]; st != nil {
		st(s, op, v)
	}
}

// capGetters returns a capability register pointer for the capability-typed
// operand kinds: general registers used as capabilities (Cd/Cs1/Cs2), the
// program counter capability, and the SCR space.
var capGetters = [KindPastMaxValue]CapGetter{
	KindCd:  func(s *archstate.ArchState, op Operand) *cheri.Register { return s.Register(int(op.Reg)) },
	KindCs1: func(s *archstate.ArchState, op Operand) *cheri.Register { return s.Register(int(op.Reg)) },
	KindCs2: func(s *archstate.ArchState, op Operand) *cheri.Register { return s.Register(int(op.Reg)) },
	KindPC:  func(s *archstate.ArchState, op Operand) *cheri.Register { return s.PCC() },
	KindScr: func(s *archstate.ArchState, op Operand) *cheri.Register {
		switch uint16(op.Reg) {
		case 28:
			return s.Mtcc()
		case 29:
			return s.Mtdc()
		case 30:
			return s.Mscratchc()
		case 31:
			return s.Mepcc()
		default:
			return nil
		}
	},
}

// GetCap dispatches through capGetters; nil means the operand has no
// capability representation.
func GetCap(s *archstate.ArchState, op Operand) *cheri.Register {
	if g := capGetters[op.Kind]; g != nil {
		return g(s, op)
	}
	return nil
}

// VectorGetter resolves a vector register-group operand (Vd/Vs1/Vs2/Vs3) or
// the vector mask operand (Vm) to its composite.
type VectorGetter func(s *archstate.ArchState, op Operand) VectorGroup

// vectorGroupGetter computes group size from op.Reg modulo 8 via
// vectorGroupSize, per the register-group convention. Aligned group bases
// (0, 8, 16, 24 for the 8-register groups, and so on) never run past v31;
// op.Reg is still reduced mod 32 defensively before use.
func vectorGroupGetter(s *archstate.ArchState, op Operand) VectorGroup {
	base := int(op.Reg) % 32
	return VectorGroup{Base: base, Count: VectorGroupSize(base % 8)}
}

// vectorMaskGetter resolves Vm: op.Imm carries the instruction's raw vm bit
// (1 = unmasked). Unmasked resolves to the synthetic all-ones mask; masked
// resolves to vector register 0, the architecturally fixed mask register.
func vectorMaskGetter(s *archstate.ArchState, op Operand) VectorGroup {
	if op.Imm != 0 {
		return VectorGroup{AllOnes: true}
	}
	return VectorGroup{Base: 0, Count: 1}
}

// vectorGetters is the register-group registry, indexed by Kind, mirroring
// intGetters/capGetters for the vector-typed operand kinds.
var vectorGetters = [KindPastMaxValue]VectorGetter{
	KindVd:  vectorGroupGetter,
	KindVs1: vectorGroupGetter,
	KindVs2: vectorGroupGetter,
	KindVs3: vectorGroupGetter,
	KindVm:  vectorMaskGetter,
}

// GetVectorGroup dispatches through vectorGetters; ok is false for a kind
// with no vector-group binding.
func GetVectorGroup(s *archstate.ArchState, op Operand) (group VectorGroup, ok bool) {
	if g := vectorGetters[op.Kind]; g != nil {
		return g(s, op), true
	}
	return VectorGroup{}, false
}

// PCSource models RiscVCheri32PcSourceOperand: a source operand over the
// program-counter capability's address, used wherever an instruction reads
// its own PC as a plain scalar (e.g. AUIPC-equivalents, branch targets).
func PCSource(s *archstate.ArchState) uint32 { return s.PCC().Address() }
