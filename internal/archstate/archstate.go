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

// Package archstate implements the architectural state (C4): the register
// file and its aliases, the CSR set, the tagged-memory handle, FP/vector
// sub-state, and the trap/ecall/wfi/cease/ebreak callback surface.
package archstate

import (
	"github.com/cheriot32/simcore/internal/cheri"
	"github.com/cheriot32/simcore/internal/csr"
	"github.com/cheriot32/simcore/internal/memory"
	"github.com/cheriot32/simcore/internal/trap"
)

// abiNames gives the standard RISC-V ABI name for each general register.
// cgp (index 3) is additionally reachable by name "cgp", aliasing the same
// register as "gp" -- a real CHERIoT convention (cheriot_state.h documents
// cgp as "aliased with c3") carried forward even though it costs nothing
// once the alias map exists.
var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// FPState holds rounding mode and accumulated flags. FP flags are
// accumulated, never surfaced as traps (spec.md section 7).
type FPState struct {
	Frm    uint8
	Fflags uint8
}

// VectorState holds the vector CSR-adjacent fields; vl/vtype/vstart/vxsat/
// vxrm/vcsr/vlenb in CSR space are thin adapters over these.
type VectorState struct {
	Vl     uint32
	Vtype  uint32
	Vstart uint32
	Vxsat  uint32
	Vxrm   uint32
	Vlenb  uint32
}

// VectorRegBytes is the per-register width (VLEN/8) backing the vector
// register file: 128 bits, the width cheriot_vector_state.cc's
// vector_register_byte_length_ is constructed with on the CHERIoT targets
// this core models.
const VectorRegBytes = 16

// VectorReg is the storage for one architectural vector register. No
// element-width interpretation is attached here: that belongs to the
// (out of scope) vector semantic functions, not the register file.
type VectorReg [VectorRegBytes]byte

// Config captures the boot-time, configuration-populated fields: memory
// size, reset vector, enabled extensions, and revocation layout. Mirrors
// the teacher's pattern of config-populated CPU fields set via
// config.RegisterOption/RegisterSwitch callbacks in cpu.go's init().
type Config struct {
	MaxPhys         uint32
	ResetVector     uint32
	EnableVector    bool
	EnableFloat     bool
	EnableCompressed bool
	RevocationBase  uint32
	RevocationSize  uint32
}

// ArchState is the architectural state machine (C4).
type ArchState struct {
	registers [32]cheri.Register
	pcc       cheri.Register

	mtcc      cheri.Register
	mtdc      cheri.Register
	mscratchc cheri.Register
	mepcc     cheri.Register

	csrs  *csr.Set
	mem   *memory.Memory
	trapE *trap.Engine

	fp     FPState
	vector VectorState
	vregs  [32]VectorReg

	onEcall func() bool
	onWfi   func() bool
	onCease func() bool
	onEbreak []func() bool

	revocation     []uint64
	revocationBase uint32

	instRetired uint64
	misa        uint32
	resetVector uint32
	cfg         Config

	// BranchTaken is set by a semantic function to indicate that PC advance
	// must read pcc.address rather than adding the instruction size.
	BranchTaken bool
	// TrapSet mirrors the state's trap_set flag the retirement adapter
	// polls: true iff the instruction just executed caused a Trap call.
	TrapSet bool

	// LastMem* capture the most recent scalar memory access for the
	// retirement adapter (C10) to report; ClearMemCapture resets them
	// before each instruction.
	LastMemAddr  uint32
	LastMemRdata uint32
	LastMemWdata uint32
	LastMemRmask uint8
	LastMemWmask uint8
}

// ClearMemCapture resets the memory capture fields; called once per
// instruction by the retirement adapter before decode/execute.
func (s *ArchState) ClearMemCapture() {
	s.LastMemAddr = 0
	s.LastMemRdata = 0
	s.LastMemWdata = 0
	s.LastMemRmask = 0
	s.LastMemWmask = 0
}

// New constructs an ArchState from configuration and immediately resets it.
func New(cfg Config) *ArchState {
	if cfg.MaxPhys == 0 {
		cfg.MaxPhys = memory.DefaultMaxPhys
	}
	s := &ArchState{
		mem:         memory.New(cfg.MaxPhys),
		resetVector: cfg.ResetVector,
		cfg:         cfg,
	}
	if cfg.RevocationSize > 0 {
		s.revocation = make([]uint64, (cfg.RevocationSize+63)/64)
		s.revocationBase = cfg.RevocationBase
	}
	s.csrs = csr.NewSet()
	s.trapE = trap.NewEngine(&s.pcc, &s.mepcc, &s.mtcc,
		func(v uint32) { _ = s.csrs.Write(mcauseIndex, v) },
		func(v uint32) { _ = s.csrs.Write(mtvalIndex, v) })
	s.installCSRs()
	s.Reset()
	return s
}

// Reset implements 4.6.1: all capability registers to the memory root
// except x0 (distinguished, null) and pcc (executable root at the reset
// vector). SCRs reset to the memory root, same as general registers.
func (s *ArchState) Reset() {
	s.registers[0] = cheri.Null()
	for i := 1; i < 32; i++ {
		s.registers[i] = cheri.MemoryRoot()
	}
	s.pcc = cheri.ExecutableRoot()
	s.pcc.SetAddressRaw(s.resetVector)

	s.mtcc = cheri.MemoryRoot()
	s.mtdc = cheri.MemoryRoot()
	s.mscratchc = cheri.MemoryRoot()
	s.mepcc = cheri.MemoryRoot()

	s.vregs = [32]VectorReg{}

	s.instRetired = 0
	s.BranchTaken = false
	s.TrapSet = false

	s.misa = 1 << ('I' - 'A') // base integer ISA always present
	if s.cfg.EnableVector {
		s.misa |= 1 << ('V' - 'A')
	}
	if s.cfg.EnableFloat {
		s.misa |= 1 << ('F' - 'A')
	}
	if s.cfg.EnableCompressed {
		s.misa |= 1 << ('C' - 'A')
	}
}

// Register returns a pointer to general register i (0..31).
func (s *ArchState) Register(i int) *cheri.Register {
	return &s.registers[i]
}

// RegisterByName resolves a register by numeric (x0..x31, c0..c31) or ABI
// name (including the cgp alias of c3/x3).
func (s *ArchState) RegisterByName(name string) (*cheri.Register, bool) {
	idx, ok := s.resolveName(name)
	if !ok {
		return nil, false
	}
	return &s.registers[idx], true
}

func (s *ArchState) resolveName(name string) (int, bool) {
	if name == "cgp" {
		return 3, true
	}
	for i, n := range abiNames {
		if n == name {
			return i, true
		}
	}
	if len(name) >= 2 && (name[0] == 'x' || name[0] == 'c') {
		n := 0
		for _, ch := range name[1:] {
			if ch < '0' || ch > '9' {
				return 0, false
			}
			n = n*10 + int(ch-'0')
		}
		if n >= 0 && n < 32 {
			return n, true
		}
	}
	return 0, false
}

// VReg returns a pointer to vector register i, wrapping modulo 32 the same
// way register-group composites wrap their member indices.
func (s *ArchState) VReg(i int) *VectorReg {
	return &s.vregs[i%32]
}

// PCC, Mtcc, Mtdc, Mscratchc, Mepcc return pointers to the program-counter
// capability and the four special capability registers.
func (s *ArchState) PCC() *cheri.Register       { return &s.pcc }
func (s *ArchState) Mtcc() *cheri.Register       { return &s.mtcc }
func (s *ArchState) Mtdc() *cheri.Register       { return &s.mtdc }
func (s *ArchState) Mscratchc() *cheri.Register  { return &s.mscratchc }
func (s *ArchState) Mepcc() *cheri.Register      { return &s.mepcc }

// CSRs, Memory, Trap, FP, and Vector expose the owned sub-components.
func (s *ArchState) CSRs() *csr.Set         { return s.csrs }
func (s *ArchState) Memory() *memory.Memory { return s.mem }
func (s *ArchState) Trap() *trap.Engine     { return s.trapE }
func (s *ArchState) FP() *FPState           { return &s.fp }
func (s *ArchState) Vector() *VectorState   { return &s.vector }
func (s *ArchState) Misa() uint32           { return s.misa }

// InstRetired returns minstret's binding: the count the retirement adapter
// bumps once per instruction.
func (s *ArchState) InstRetired() uint64 { return s.instRetired }

// BumpInstRetired increments the instruction counter; called by the
// retirement adapter (C10) once per retired instruction.
func (s *ArchState) BumpInstRetired() { s.instRetired++ }

// MustRevoke reads one bit from the revocation bitmap indexed by capability
// base, per 4.6.5. Consulted only by revocation-sweep instructions, never
// by the generic load/store path.
func (s *ArchState) MustRevoke(base uint32) bool {
	if s.revocation == nil || base < s.revocationBase {
		return false
	}
	bit := base - s.revocationBase
	idx := bit / 64
	if int(idx) >= len(s.revocation) {
		return false
	}
	return s.revocation[idx]&(uint64(1)<<(bit%64)) != 0
}

// SetMustRevoke sets or clears the revocation bit for a capability base;
// used by whatever maintains the revocation sweep (out of this core's
// scope to drive, but the bitmap itself lives here).
func (s *ArchState) SetMustRevoke(base uint32, v bool) {
	if s.revocation == nil || base < s.revocationBase {
		return
	}
	bit := base - s.revocationBase
	idx := bit / 64
	if int(idx) >= len(s.revocation) {
		return
	}
	if v {
		s.revocation[idx] |= uint64(1) << (bit % 64)
	} else {
		s.revocation[idx] &^= uint64(1) << (bit % 64)
	}
}

// SetEcallHandler, SetWfiHandler, and SetCeaseHandler install the single
// callbacks for their respective environment calls.
func (s *ArchState) SetEcallHandler(fn func() bool) { s.onEcall = fn }
func (s *ArchState) SetWfiHandler(fn func() bool)    { s.onWfi = fn }
func (s *ArchState) SetCeaseHandler(fn func() bool)  { s.onCease = fn }

// AddEbreakHandler appends to the ordered list of ebreak callbacks (unlike
// ecall/wfi/cease, ebreak is a list: cheriot_state.h's AddEbreakHandler
// appends to a vector, tried in order until one reports handled).
func (s *ArchState) AddEbreakHandler(fn func() bool) {
	s.onEbreak = append(s.onEbreak, fn)
}

// Ecall raises an environment-call trap unless the registered handler
// reports it handled.
func (s *ArchState) Ecall(epc uint32) {
	if s.onEcall != nil && s.onEcall() {
		return
	}
	s.TrapSet = true
	s.trapE.Trap(false, 0, trap.CauseEnvCallFromMMode, epc)
}

// EBreak tries each registered handler in order; the first to report
// handled wins. If none handle it, raises Breakpoint.
func (s *ArchState) EBreak(epc uint32) {
	for _, h := range s.onEbreak {
		if h() {
			return
		}
	}
	s.TrapSet = true
	s.trapE.Trap(false, 0, trap.CauseBreakpoint, epc)
}

// Wfi invokes the wfi callback; wfi is never a real wait in this core, the
// host chooses whether to return (spec.md section 5).
func (s *ArchState) Wfi() bool {
	if s.onWfi != nil {
		return s.onWfi()
	}
	return false
}

// Cease invokes the cease callback, if any.
func (s *ArchState) Cease() {
	if s.onCease != nil {
		s.onCease()
	}
}
