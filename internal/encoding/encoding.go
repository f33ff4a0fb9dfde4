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

// Package encoding implements the bit-field extractors (C5) for every
// instruction format: standard RISC-V R/I/S/B/U/J, the compressed formats
// CA/CB/CI/CIW/CJ/CL/CR/CS/CSS/CSH, and the CHERIoT-specific I2/I5/R2 and
// atomic A formats. Every extractor is a pure function of the instruction
// word.
package encoding

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// Opcode returns the low 7-bit opcode field of a 32-bit instruction.
func Opcode(word uint32) uint32 { return word & 0x7f }

// Rd, Rs1, Rs2, Funct3, Funct7 are the standard 32-bit field positions
// shared by R/I/S/B formats.
func Rd(word uint32) uint32     { return (word >> 7) & 0x1f }
func Funct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func Rs1(word uint32) uint32    { return (word >> 15) & 0x1f }
func Rs2(word uint32) uint32    { return (word >> 20) & 0x1f }
func Funct7(word uint32) uint32 { return (word >> 25) & 0x7f }

// IImm extracts the sign-extended 12-bit I-type immediate.
func IImm(word uint32) int32 {
	return signExtend(word>>20, 12)
}

// UImmI extracts the unsigned 12-bit I-type immediate (CSR index field).
func UImmI(word uint32) uint32 {
	return (word >> 20) & 0xfff
}

// SImm extracts the sign-extended 12-bit S-type immediate.
func SImm(word uint32) int32 {
	v := ((word >> 25) & 0x7f << 5) | ((word >> 7) & 0x1f)
	return signExtend(v, 12)
}

// BImm12 extracts the sign-extended 13-bit B-type immediate (bit 0 always
// zero, branches are half-word aligned at minimum).
func BImm12(word uint32) int32 {
	v := ((word >> 31 & 1) << 12) | ((word >> 7 & 1) << 11) |
		((word >> 25 & 0x3f) << 5) | ((word >> 8 & 0xf) << 1)
	return signExtend(v, 13)
}

// UImm12 extracts the upper-immediate field unshifted (LUI/AUIPC), unsigned.
func UImm12(word uint32) uint32 {
	return word & 0xfffff000
}

// JImm extracts the sign-extended 21-bit J-type immediate.
func JImm(word uint32) int32 {
	v := ((word >> 31 & 1) << 20) | ((word >> 12 & 0xff) << 12) |
		((word >> 20 & 1) << 11) | ((word >> 21 & 0x3ff) << 1)
	return signExtend(v, 21)
}

// --- Compressed (16-bit) formats ---

// COp returns the 2-bit compressed quadrant and CFunct3 the 3-bit funct
// field shared by most compressed formats.
func COp(word uint16) uint32     { return uint32(word) & 0x3 }
func CFunct3(word uint16) uint32 { return uint32(word>>13) & 0x7 }
func CFunct4(word uint16) uint32 { return uint32(word>>12) & 0xf }
func CFunct2(word uint16) uint32 { return uint32(word>>5) & 0x3 }
func CFunct6(word uint16) uint32 { return uint32(word>>10) & 0x3f }

// CReg expands a 3-bit compressed register field (rs1'/rs2'/rd') to its
// full 5-bit encoding: registers x8..x15.
func CReg(field uint32) uint32 { return field + 8 }

// CR format: funct4 | rd/rs1 | rs2.
func CRRdRs1(word uint16) uint32 { return uint32(word>>7) & 0x1f }
func CRRs2(word uint16) uint32   { return uint32(word>>2) & 0x1f }

// CI format: funct3 | rd/rs1 | imm[5] | imm[4:0].
func CIRdRs1(word uint16) uint32 { return uint32(word>>7) & 0x1f }
func CIImm6(word uint16) int32 {
	v := ((uint32(word)>>12&1)<<5 | (uint32(word)>>2&0x1f))
	return signExtend(v, 6)
}

// CSS format: funct3 | imm | rs2.
func CSSRs2(word uint16) uint32  { return uint32(word>>2) & 0x1f }
func CSSImm6(word uint16) uint32 { return uint32(word>>7) & 0x3f }

// CIW format: funct3 | imm[7:0] | rd' (3-bit, expand via CReg).
func CIWRdPrime(word uint16) uint32 { return CReg(uint32(word>>2) & 0x7) }
func CIWImm8(word uint16) uint32    { return uint32(word>>5) & 0xff }

// CL format: funct3 | imm | rs1' | imm | rd'.
func CLRs1Prime(word uint16) uint32 { return CReg(uint32(word>>7) & 0x7) }
func CLRdPrime(word uint16) uint32  { return CReg(uint32(word>>2) & 0x7) }

// CS format: funct3 | imm | rs1' | imm | rs2'.
func CSRs1Prime(word uint16) uint32 { return CReg(uint32(word>>7) & 0x7) }
func CSRs2Prime(word uint16) uint32 { return CReg(uint32(word>>2) & 0x7) }

// CA format: funct6 | rd'/rs1' | funct2 | rs2'.
func CARdRs1Prime(word uint16) uint32 { return CReg(uint32(word>>7) & 0x7) }
func CARs2Prime(word uint16) uint32   { return CReg(uint32(word>>2) & 0x7) }

// CB format: funct3 | offset[8] offset[4:3] | rs1' | offset[7:6] offset[2:1] offset[5].
func CBRs1Prime(word uint16) uint32 { return CReg(uint32(word>>7) & 0x7) }
func CBOffset9(word uint16) int32 {
	w := uint32(word)
	v := ((w >> 12 & 1) << 8) | ((w >> 10 & 3) << 3) | ((w >> 5 & 3) << 6) |
		((w >> 3 & 3) << 1) | ((w >> 2 & 1) << 5)
	return signExtend(v, 9)
}

// CJ format: funct3 | jump target[11:1].
func CJTarget12(word uint16) int32 {
	w := uint32(word)
	v := ((w >> 12 & 1) << 11) | ((w >> 11 & 1) << 4) | ((w >> 9 & 3) << 8) |
		((w >> 8 & 1) << 10) | ((w >> 7 & 1) << 6) | ((w >> 6 & 1) << 7) |
		((w >> 3 & 7) << 1) | ((w >> 2 & 1) << 5)
	return signExtend(v, 12)
}

// CSH is CHERIoT's compressed capability-load/store-halfword-style format:
// same physical layout as CL/CS but the decoded operands are capability
// registers rather than general registers.
func CSHRs1Prime(word uint16) uint32 { return CLRs1Prime(word) }
func CSHRdPrime(word uint16) uint32  { return CLRdPrime(word) }

// --- CHERIoT-specific 32-bit formats ---

// I2 carries a 2-bit immediate in the position a standard I-type would put
// the low bits of its immediate (used by small capability adjustments such
// as shift-amount-like operands).
func I2Imm(word uint32) uint32 { return (word >> 20) & 0x3 }

// I5 carries a 5-bit immediate, used for e.g. CSetBoundsImm-style opcodes.
func I5Imm(word uint32) uint32 { return (word >> 20) & 0x1f }

// R2 is a two-register capability format: opcode | rd | funct3 | rs1 |
// funct7, with rs2 unused/fixed (CMove, CClear, CGetX-style getters).
func R2Rd(word uint32) uint32  { return Rd(word) }
func R2Rs1(word uint32) uint32 { return Rs1(word) }

// Atomic format A: opcode | rd | funct3 | rs1 | rs2 | aq | rl | funct5.
func AFunct5(word uint32) uint32 { return (word >> 27) & 0x1f }
func AAq(word uint32) bool       { return (word>>26)&1 != 0 }
func ARl(word uint32) bool       { return (word>>25)&1 != 0 }
