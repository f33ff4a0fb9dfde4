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

package archstate

import (
	"github.com/cheriot32/simcore/internal/cheri"
	"github.com/cheriot32/simcore/internal/trap"
)

// MemResult captures the fields the retirement adapter (C10) wants to
// capture from a memory entrypoint: the address touched and the byte
// mask/data it read or wrote, or the fact that the access trapped.
type MemResult struct {
	Addr    uint32
	Data    uint32
	Mask    uint8
	Trapped bool
}

// checkDeref implements the CHERIoT dereference check in the fixed order
// tag -> permission -> seal -> bounds (4.9); the first failing check wins.
// regIndex identifies the authorizing register for HandleCheriRegException.
func (s *ArchState) checkDeref(auth *cheri.Register, regIndex uint32, addr, size uint32, perm cheri.Permission, permCause uint32, epc uint32) bool {
	if !auth.IsValid() {
		s.TrapSet = true
		s.trapE.HandleCheriRegException(epc, trap.CapCauseTag, regIndex)
		return false
	}
	if !auth.HasPermission(perm) {
		s.TrapSet = true
		s.trapE.HandleCheriRegException(epc, permCause, regIndex)
		return false
	}
	if auth.IsSealed() {
		s.TrapSet = true
		s.trapE.HandleCheriRegException(epc, trap.CapCauseSeal, regIndex)
		return false
	}
	if !auth.IsInBounds(addr, size) {
		s.TrapSet = true
		s.trapE.HandleCheriRegException(epc, trap.CapCauseBounds, regIndex)
		return false
	}
	return true
}

func maskFor(size uint32) uint8 {
	return uint8((1 << size) - 1)
}

// LoadScalar is the scalar-load entrypoint (4.6.2): checks auth's
// permit-load/bounds/tag/seal, then issues the underlying tagged-memory
// request. size is in bytes (1, 2, or 4).
func (s *ArchState) LoadScalar(auth *cheri.Register, regIndex, addr, size, epc uint32) MemResult {
	if !s.checkDeref(auth, regIndex, addr, size, cheri.PermLoad, trap.CapCausePermitLoad, epc) {
		return MemResult{Trapped: true}
	}
	var data uint32
	var fault bool
	switch size {
	case 1:
		var b byte
		b, fault = s.mem.ReadByte(addr)
		data = uint32(b)
	case 2:
		var h uint16
		h, fault = s.mem.ReadHalf(addr)
		data = uint32(h)
	default:
		data, fault = s.mem.ReadWord(addr)
	}
	if fault {
		s.TrapSet = true
		s.trapE.Trap(false, addr, trap.CauseLoadAccessFault, epc)
		return MemResult{Trapped: true}
	}
	s.LastMemAddr = addr
	s.LastMemRdata = data
	s.LastMemRmask = maskFor(size)
	return MemResult{Addr: addr, Data: data, Mask: maskFor(size)}
}

// StoreScalar is the scalar-store entrypoint.
func (s *ArchState) StoreScalar(auth *cheri.Register, regIndex, addr, size, data, epc uint32) MemResult {
	if !s.checkDeref(auth, regIndex, addr, size, cheri.PermStore, trap.CapCausePermitStore, epc) {
		return MemResult{Trapped: true}
	}
	var fault bool
	switch size {
	case 1:
		fault = s.mem.WriteByte(addr, byte(data))
	case 2:
		fault = s.mem.WriteHalf(addr, uint16(data))
	default:
		fault = s.mem.WriteWord(addr, data)
	}
	if fault {
		s.TrapSet = true
		s.trapE.Trap(false, addr, trap.CauseStoreAccessFault, epc)
		return MemResult{Trapped: true}
	}
	s.LastMemAddr = addr
	s.LastMemWdata = data
	s.LastMemWmask = maskFor(size)
	return MemResult{Addr: addr, Data: data, Mask: maskFor(size)}
}

// LoadCapability returns both the compressed capability word and its tag
// for the slot addressed. The taxonomy table has no dedicated
// permit-load-capability cause; capability loads report the same
// permit-load cause (0x12) as scalar loads, gated on PermLoadCap.
func (s *ArchState) LoadCapability(auth *cheri.Register, regIndex, addr, epc uint32) (data uint64, tag bool, trapped bool) {
	if !s.checkDeref(auth, regIndex, addr, 8, cheri.PermLoadCap, trap.CapCausePermitLoad, epc) {
		return 0, false, true
	}
	data, tag, fault := s.mem.LoadCapability(addr)
	if fault {
		s.TrapSet = true
		s.trapE.Trap(false, addr, trap.CauseLoadAccessFault, epc)
		return 0, false, true
	}
	return data, tag, false
}

// StoreCapability writes a capability and propagates its tag. Storing an
// untagged value only requires PermStore; storing a tagged, non-global
// capability additionally requires PermStoreLocalCap (permit-store-local-
// capability, cause 0x16); storing any tagged capability requires
// PermStoreCap (permit-store-capability, cause 0x15).
func (s *ArchState) StoreCapability(auth *cheri.Register, regIndex, addr uint32, data uint64, tag bool, global bool, epc uint32) (trapped bool) {
	perm, cause := cheri.PermStore, uint32(trap.CapCausePermitStore)
	if tag {
		perm, cause = cheri.PermStoreCap, trap.CapCausePermitStoreCap
	}
	if !s.checkDeref(auth, regIndex, addr, 8, perm, cause, epc) {
		return true
	}
	if tag && !global && !auth.HasPermission(cheri.PermStoreLocalCap) {
		s.TrapSet = true
		s.trapE.HandleCheriRegException(epc, trap.CapCausePermitStoreLocalCap, regIndex)
		return true
	}
	if fault := s.mem.StoreCapability(addr, data, tag); fault {
		s.TrapSet = true
		s.trapE.Trap(false, addr, trap.CauseStoreAccessFault, epc)
		return true
	}
	return false
}
