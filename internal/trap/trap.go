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

// Package trap implements the trap/interrupt engine (C9): the sole
// exception path (mtcc/mepcc/mcause/mtval routing), the CHERIoT capability
// exception taxonomy, and interrupt nesting-depth accounting. This
// generalizes the teacher's storePSW/lpsw/suppress trio (PSW-pair
// save/restore on a trap) from plain register-pair swapping to
// capability-aware mepcc/pcc swapping.
package trap

import "github.com/cheriot32/simcore/internal/cheri"

// Standard RISC-V mcause values the core surfaces.
const (
	CauseInstructionAddressMisaligned uint32 = 0x0
	CauseInstructionAccessFault       uint32 = 0x1
	CauseIllegalInstruction           uint32 = 0x2
	CauseBreakpoint                   uint32 = 0x3
	CauseLoadAddressMisaligned        uint32 = 0x4
	CauseLoadAccessFault              uint32 = 0x5
	CauseStoreAddressMisaligned       uint32 = 0x6
	CauseStoreAccessFault             uint32 = 0x7
	CauseEnvCallFromUMode             uint32 = 0x8
	CauseEnvCallFromMMode             uint32 = 0xb
	// CauseCheri is the reserved mcause value for all capability faults;
	// the specific cause is encoded in mtval via HandleCheriRegException.
	CauseCheri uint32 = 0x1c
)

// CHERIoT capability cause codes, used in tval, never in mcause. Check
// order at each dereference is tag -> permission -> seal -> bounds; the
// first failing check wins.
const (
	CapCauseBounds                  uint32 = 0x01
	CapCauseTag                     uint32 = 0x02
	CapCauseSeal                    uint32 = 0x03
	CapCausePermitExecute           uint32 = 0x11
	CapCausePermitLoad              uint32 = 0x12
	CapCausePermitStore             uint32 = 0x13
	CapCausePermitStoreCap          uint32 = 0x15
	CapCausePermitStoreLocalCap     uint32 = 0x16
	CapCausePermitAccessSysRegs     uint32 = 0x18
)

const interruptBit uint32 = 1 << 31

// InterruptInfo records one trap for introspection, mirroring the fields
// the reference state tracks verbatim.
type InterruptInfo struct {
	IsInterrupt bool
	Cause       uint32
	Tval        uint32
	Epc         uint32
}

// Engine is the trap/interrupt machinery owned by the architectural state.
// Its register pointers are bound once at construction time by ArchState.
type Engine struct {
	Pcc  *cheri.Register
	Mepcc *cheri.Register
	Mtcc *cheri.Register

	WriteMcause func(uint32)
	WriteMtval  func(uint32)

	// OnTrap is invoked with the pushed InterruptInfo before the default
	// delivery steps; returning true skips the default (mepcc/mcause/mtval
	// update and the pcc<-mtcc handoff).
	OnTrap func(InterruptInfo) bool

	pending  []InterruptInfo
	taken    uint64
	returned uint64
}

// NewEngine wires an Engine to the three capability registers trap delivery
// touches and the CSR write hooks for mcause/mtval.
func NewEngine(pcc, mepcc, mtcc *cheri.Register, writeMcause, writeMtval func(uint32)) *Engine {
	return &Engine{Pcc: pcc, Mepcc: mepcc, Mtcc: mtcc, WriteMcause: writeMcause, WriteMtval: writeMtval}
}

// Trap is the sole exception path (4.6.3): push an InterruptInfo, deliver
// unless a registered handler reports the trap already handled.
func (e *Engine) Trap(isInterrupt bool, tval, cause, epc uint32) {
	info := InterruptInfo{IsInterrupt: isInterrupt, Cause: cause, Tval: tval, Epc: epc}
	e.pending = append(e.pending, info)

	if e.OnTrap != nil && e.OnTrap(info) {
		return
	}

	*e.Mepcc = *e.Pcc
	e.Mepcc.SetAddressRaw(epc)

	if e.WriteMtval != nil {
		e.WriteMtval(tval)
	}
	reported := cause
	if isInterrupt {
		reported |= interruptBit
	}
	if e.WriteMcause != nil {
		e.WriteMcause(reported)
	}

	*e.Pcc = *e.Mtcc

	e.taken++
}

// HandleCheriRegException computes tval = (reg_index << 5) | code, sets
// cause to the reserved CHERI cause, and calls Trap.
func (e *Engine) HandleCheriRegException(epc uint32, code uint32, regIndex uint32) {
	tval := (regIndex << 5) | code
	e.Trap(false, tval, CauseCheri, epc)
}

// SignalReturnFromInterrupt is invoked on the mret/cjalr-through-mepcc
// return convention.
func (e *Engine) SignalReturnFromInterrupt() {
	e.returned++
}

// InterruptHandlerDepth is taken - returned.
func (e *Engine) InterruptHandlerDepth() uint64 {
	return e.taken - e.returned
}

// TakenCount and ReturnedCount expose the raw counters for testing and for
// the retirement adapter's trap-accounting scenarios.
func (e *Engine) TakenCount() uint64    { return e.taken }
func (e *Engine) ReturnedCount() uint64 { return e.returned }

// Pending returns the full history of InterruptInfo pushed so far.
func (e *Engine) Pending() []InterruptInfo {
	return e.pending
}

// Standard machine-mode interrupt bit positions (timer/software/external),
// used by CheckForInterrupt's fixed RISC-V priority order: external first,
// then software, then timer.
const (
	BitMachineSoftwareInterrupt uint32 = 3
	BitMachineTimerInterrupt    uint32 = 7
	BitMachineExternalInterrupt uint32 = 11
)

var priorityOrder = []uint32{BitMachineExternalInterrupt, BitMachineSoftwareInterrupt, BitMachineTimerInterrupt}

// CheckForInterrupt picks the highest-priority pending enabled interrupt
// per RISC-V rules. mstatusMIE gates interrupts globally; mip/mie are the
// pending and enabled bitmasks.
func CheckForInterrupt(mip, mie uint32, mstatusMIE bool) (cause uint32, available bool) {
	if !mstatusMIE {
		return 0, false
	}
	active := mip & mie
	for _, bit := range priorityOrder {
		if active&(1<<bit) != 0 {
			return bit, true
		}
	}
	return 0, false
}

// TakeAvailableInterrupt delivers the interrupt chosen by CheckForInterrupt.
func (e *Engine) TakeAvailableInterrupt(epc, cause uint32) {
	e.Trap(true, 0, cause, epc)
}
