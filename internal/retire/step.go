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

package retire

import (
	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/cheri"
	"github.com/cheriot32/simcore/internal/decode"
	"github.com/cheriot32/simcore/internal/inst"
	"github.com/cheriot32/simcore/internal/operand"
	"github.com/cheriot32/simcore/internal/trap"
)

// Adapter drives the per-instruction Step procedure (4.8) and tracks the
// negotiated trace version.
type Adapter struct {
	Version int  // 1 or 2
	Strict  bool // strict-trace: reject non-zero upper half of 16-bit insn words
}

// NewAdapter returns a v1 adapter, the default until a set-version command
// negotiates otherwise.
func NewAdapter() *Adapter {
	return &Adapter{Version: 1}
}

// decodedTriple recovers the (rd, rs1, rs2) register numbers the way the
// reference implementation reports them for trace purposes: a field with no
// corresponding operand in the instruction's source/destination lists
// reports as zero, per the per-format zeroing table (8.4).
func decodedTriple(i *inst.Instruction) (rd, rs1, rs2 uint32) {
	for _, op := range i.Sources {
		switch op.Kind {
		case operand.KindRs1, operand.KindCs1:
			rs1 = op.Reg
		case operand.KindRs2, operand.KindCs2:
			rs2 = op.Reg
		}
	}
	for _, op := range i.Destinations {
		switch op.Kind {
		case operand.KindRd, operand.KindCd:
			rd = op.Reg
		}
	}
	return rd, rs1, rs2
}

// preExecuteCheck implements the fetch-time pcc check (4.8 step 4): v1
// checks executable + bounds; v2 additionally checks the tag.
func (a *Adapter) preExecuteCheck(s *archstate.ArchState, pc uint32, size uint32) bool {
	pcc := s.PCC()
	if a.Version >= 2 && !pcc.IsValid() {
		s.TrapSet = true
		s.Trap().HandleCheriRegException(pc, trap.CapCauseTag, 0)
		return false
	}
	if !pcc.HasPermission(cheri.PermExecute) {
		s.TrapSet = true
		s.Trap().HandleCheriRegException(pc, trap.CapCausePermitExecute, 0)
		return false
	}
	if !pcc.IsInBounds(pc, size) {
		s.TrapSet = true
		s.Trap().HandleCheriRegException(pc, trap.CapCauseBounds, 0)
		return false
	}
	return true
}

// Step executes the instruction word insnWord (supplied directly by the
// test-rig harness, bypassing a physical fetch) and returns the v1
// execution packet for it. order is the minstret value the caller expects
// after completion (rvfi_order).
func (a *Adapter) Step(s *archstate.ArchState, insnWord uint32, order uint64) ExecutionPacket {
	pc := s.PCC().Address()
	s.TrapSet = false
	s.BranchTaken = false
	s.ClearMemCapture()

	i := decode.Decode(s, pc, insnWord)
	rd, rs1, rs2 := decodedTriple(i)
	rs1Data := s.Register(int(rs1)).Address()
	rs2Data := s.Register(int(rs2)).Address()

	if a.Strict && insnWord&0x3 != 0x3 && insnWord>>16 != 0 {
		// Strict trace: a compressed instruction word must arrive with its
		// upper half zero; anything else is reported as illegal.
		s.TrapSet = true
		s.Trap().Trap(false, insnWord, trap.CauseIllegalInstruction, pc)
	} else if a.preExecuteCheck(s, pc, i.Size) {
		i.Execute(s)
	}

	pkt := ExecutionPacket{
		Order:   order,
		PcRdata: uint64(pc),
		Insn:    uint64(insnWord),
		Rs1Addr: uint8(rs1),
		Rs2Addr: uint8(rs2),
	}

	if s.TrapSet {
		pkt.Trap = 1
		pkt.PcWdata = uint64(s.PCC().Address())
		if causeIsMemAccessFault(s) {
			pending := s.Trap().Pending()
			pkt.MemAddr = uint64(pending[len(pending)-1].Tval) // mtval: the faulting address
		}
		s.BumpInstRetired()
		return pkt
	}

	nextPC := s.PCC().Address()
	pkt.PcWdata = uint64(nextPC)
	pkt.Rs1Data = uint64(rs1Data)
	pkt.Rs2Data = uint64(rs2Data)
	pkt.RdAddr = uint8(rd)
	pkt.RdWdata = uint64(s.Register(int(rd)).Address())
	pkt.MemAddr = uint64(s.LastMemAddr)
	pkt.MemRdata = uint64(s.LastMemRdata)
	pkt.MemWdata = uint64(s.LastMemWdata)
	pkt.MemRmask = s.LastMemRmask
	pkt.MemWmask = s.LastMemWmask

	s.BumpInstRetired()
	return pkt
}

// causeIsMemAccessFault reports whether the most recently pushed trap was a
// load or store access fault, the one case where mem_addr is populated on a
// trapping packet (4.8 step 6).
func causeIsMemAccessFault(s *archstate.ArchState) bool {
	pending := s.Trap().Pending()
	if len(pending) == 0 {
		return false
	}
	cause := pending[len(pending)-1].Cause
	return cause == trap.CauseLoadAccessFault || cause == trap.CauseStoreAccessFault
}

// HandleEndOfTrace implements the reference test rig's end-of-trace Reset:
// resets the architectural state and reports the halt code the caller must
// place in the reply reset/execution packet's halt field. insnWord ==
// VersionQueryInsn ("VERS") is a version query, reported as
// 1 | max_supported_version; any other value is a plain end-of-trace,
// reported as 1 (cheriot_test_rig_main.cc's kEndOfTrace case computes halt
// the same way before calling Reset, for both sub-cases).
func (a *Adapter) HandleEndOfTrace(s *archstate.ArchState, insnWord uint32) uint8 {
	var halt uint8
	if insnWord == VersionQueryInsn {
		halt = 1 | MaxSupportedVersion
	} else {
		halt = 1
	}
	s.Reset()
	return halt
}

// HandleSetVersion switches the adapter's negotiated trace format and
// returns the echoed version packet.
func (a *Adapter) HandleSetVersion(requested uint32) VersionPacket {
	a.Version = int(requested)
	return NewVersionPacket(uint64(requested))
}
