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

import "github.com/cheriot32/simcore/internal/csr"

// Standard RISC-V CSR indices this core exposes. mepc/mtvec/mscratch are
// intentionally absent: CHERIoT routes those through the capability-typed
// mepcc/mtcc/mscratchc SCRs instead (CSR-space indices 28-31).
const (
	csrFflags   uint16 = 0x001
	csrFrm      uint16 = 0x002
	csrFcsr     uint16 = 0x003
	csrVstart   uint16 = 0x008
	csrVxsat    uint16 = 0x009
	csrVxrm     uint16 = 0x00a
	csrVcsr     uint16 = 0x00f
	csrMstatus  uint16 = 0x300
	csrMisa     uint16 = 0x301
	csrMie      uint16 = 0x304
	mcauseIndex uint16 = 0x342
	mtvalIndex  uint16 = 0x343
	csrMip      uint16 = 0x344
	csrVl       uint16 = 0xc20
	csrVtype    uint16 = 0xc21
	csrVlenb    uint16 = 0xc22
	csrMcycle   uint16 = 0xb00
	csrMinstret uint16 = 0xb02
	csrMcycleh  uint16 = 0xb80
	csrMinstreth uint16 = 0xb82
)

// installCSRs registers the named+numbered CSR set (C3) and binds the
// CHERIoT special capability registers at indices 28-31. mcycle/minstret
// bind to the same counter the retirement adapter bumps; vl/vtype/vstart/
// vxsat/vxrm/vcsr/vlenb are thin adapters over VectorState; fcsr packs frm
// and fflags per the RISC-V convention.
func (s *ArchState) installCSRs() {
	add := func(index uint16, name string, readMask, writeMask uint32) {
		s.csrs.Add(&csr.CSR{Index: index, Name: name, ReadMask: readMask, WriteMask: writeMask})
	}

	add(csrMstatus, "mstatus", 0xffffffff, 0xffffffff)
	s.csrs.Add(&csr.CSR{Index: csrMisa, Name: "misa", ReadMask: 0xffffffff,
		Get: func() uint32 { return s.misa }}) // read-only snapshot of configured extensions
	add(csrMie, "mie", 0xffffffff, 0xffffffff)
	add(mcauseIndex, "mcause", 0xffffffff, 0xffffffff)
	add(mtvalIndex, "mtval", 0xffffffff, 0xffffffff)
	add(csrMip, "mip", 0xffffffff, 0xffffffff)

	s.csrs.Add(&csr.CSR{Index: csrMcycle, Name: "mcycle", ReadMask: 0xffffffff,
		Get: func() uint32 { return uint32(s.instRetired) }})
	s.csrs.Add(&csr.CSR{Index: csrMcycleh, Name: "mcycleh", ReadMask: 0xffffffff,
		Get: func() uint32 { return uint32(s.instRetired >> 32) }})
	s.csrs.Add(&csr.CSR{Index: csrMinstret, Name: "minstret", ReadMask: 0xffffffff,
		Get: func() uint32 { return uint32(s.instRetired) }})
	s.csrs.Add(&csr.CSR{Index: csrMinstreth, Name: "minstreth", ReadMask: 0xffffffff,
		Get: func() uint32 { return uint32(s.instRetired >> 32) }})

	s.csrs.Add(&csr.CSR{Index: csrVl, Name: "vl", ReadMask: 0xffffffff,
		Get: func() uint32 { return s.vector.Vl }})
	s.csrs.Add(&csr.CSR{Index: csrVtype, Name: "vtype", ReadMask: 0xffffffff, WriteMask: 0xffffffff,
		Get: func() uint32 { return s.vector.Vtype }, Set: func(v uint32) { s.vector.Vtype = v }})
	s.csrs.Add(&csr.CSR{Index: csrVstart, Name: "vstart", ReadMask: 0xffffffff, WriteMask: 0xffffffff,
		Get: func() uint32 { return s.vector.Vstart }, Set: func(v uint32) { s.vector.Vstart = v }})
	s.csrs.Add(&csr.CSR{Index: csrVxsat, Name: "vxsat", ReadMask: 0x1, WriteMask: 0x1,
		Get: func() uint32 { return s.vector.Vxsat }, Set: func(v uint32) { s.vector.Vxsat = v }})
	s.csrs.Add(&csr.CSR{Index: csrVxrm, Name: "vxrm", ReadMask: 0x3, WriteMask: 0x3,
		Get: func() uint32 { return s.vector.Vxrm }, Set: func(v uint32) { s.vector.Vxrm = v }})
	s.csrs.Add(&csr.CSR{Index: csrVcsr, Name: "vcsr", ReadMask: 0x7, WriteMask: 0x7,
		Get: func() uint32 { return s.vector.Vxrm<<1 | s.vector.Vxsat },
		Set: func(v uint32) { s.vector.Vxsat = v & 0x1; s.vector.Vxrm = (v >> 1) & 0x3 }})
	s.csrs.Add(&csr.CSR{Index: csrVlenb, Name: "vlenb", ReadMask: 0xffffffff,
		Get: func() uint32 { return s.vector.Vlenb }})

	s.csrs.Add(&csr.CSR{Index: csrFflags, Name: "fflags", ReadMask: 0x1f, WriteMask: 0x1f,
		Get: func() uint32 { return uint32(s.fp.Fflags) },
		Set: func(v uint32) { s.fp.Fflags = uint8(v & 0x1f) }})
	s.csrs.Add(&csr.CSR{Index: csrFrm, Name: "frm", ReadMask: 0x7, WriteMask: 0x7,
		Get: func() uint32 { return uint32(s.fp.Frm) },
		Set: func(v uint32) { s.fp.Frm = uint8(v & 0x7) }})
	s.csrs.Add(&csr.CSR{Index: csrFcsr, Name: "fcsr", ReadMask: 0xff, WriteMask: 0xff,
		Get: func() uint32 { return uint32(s.fp.Frm)<<5 | uint32(s.fp.Fflags) },
		Set: func(v uint32) { s.fp.Fflags = uint8(v & 0x1f); s.fp.Frm = uint8((v >> 5) & 0x7) }})

	s.csrs.BindSCR(csr.ScrMTCC, &s.mtcc)
	s.csrs.BindSCR(csr.ScrMTDC, &s.mtdc)
	s.csrs.BindSCR(csr.ScrMScratchC, &s.mscratchc)
	s.csrs.BindSCR(csr.ScrMEPCC, &s.mepcc)
}
