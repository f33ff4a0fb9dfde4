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

// Package retire implements the test-rig retirement adapter (C10): the
// per-instruction Step procedure plus the v1 fixed packets and v2
// extensible packets, and the version-negotiation handshake between the
// two.
package retire

import (
	"encoding/binary"
)

// Trace commands an instruction packet may carry.
const (
	CmdEndOfTrace  uint8 = 0
	CmdInstruction uint8 = 1
	CmdSetVersion  uint8 = 0x76
)

// VersionQueryInsn is the magic "VERS" value that, carried by an
// end-of-trace instruction packet, asks the simulator which trace versions
// it supports.
const VersionQueryInsn uint32 = 0x56455253

// MaxSupportedVersion is echoed (as 1 | version) in the halt field of the
// reply to a version query.
const MaxSupportedVersion uint8 = 2

// InstructionPacket is the v1 instruction-packet layout. The source
// struct (test_rig_packets.h) is naturally 8 bytes -- insn(4) + time(2) +
// cmd(1) + pad(1) -- despite spec.md's prose describing it as 12 bytes;
// this implementation follows the original struct's field layout.
type InstructionPacket struct {
	Insn    uint32
	Time    uint16
	Cmd     uint8
	Padding uint8
}

const InstructionPacketSize = 8

func (p *InstructionPacket) Marshal() []byte {
	b := make([]byte, InstructionPacketSize)
	binary.LittleEndian.PutUint32(b[0:4], p.Insn)
	binary.LittleEndian.PutUint16(b[4:6], p.Time)
	b[6] = p.Cmd
	b[7] = p.Padding
	return b
}

func UnmarshalInstructionPacket(b []byte) InstructionPacket {
	return InstructionPacket{
		Insn:    binary.LittleEndian.Uint32(b[0:4]),
		Time:    binary.LittleEndian.Uint16(b[4:6]),
		Cmd:     b[6],
		Padding: b[7],
	}
}

// ExecutionPacket is the v1 execution-packet layout, 88 bytes.
type ExecutionPacket struct {
	Order     uint64
	PcRdata   uint64
	PcWdata   uint64
	Insn      uint64
	Rs1Data   uint64
	Rs2Data   uint64
	RdWdata   uint64
	MemAddr   uint64
	MemRdata  uint64
	MemWdata  uint64
	MemRmask  uint8
	MemWmask  uint8
	Rs1Addr   uint8
	Rs2Addr   uint8
	RdAddr    uint8
	Trap      uint8
	Halt      uint8
	Intr      uint8
}

const ExecutionPacketSize = 88

func (p *ExecutionPacket) Marshal() []byte {
	b := make([]byte, ExecutionPacketSize)
	binary.LittleEndian.PutUint64(b[0:8], p.Order)
	binary.LittleEndian.PutUint64(b[8:16], p.PcRdata)
	binary.LittleEndian.PutUint64(b[16:24], p.PcWdata)
	binary.LittleEndian.PutUint64(b[24:32], p.Insn)
	binary.LittleEndian.PutUint64(b[32:40], p.Rs1Data)
	binary.LittleEndian.PutUint64(b[40:48], p.Rs2Data)
	binary.LittleEndian.PutUint64(b[48:56], p.RdWdata)
	binary.LittleEndian.PutUint64(b[56:64], p.MemAddr)
	binary.LittleEndian.PutUint64(b[64:72], p.MemRdata)
	binary.LittleEndian.PutUint64(b[72:80], p.MemWdata)
	b[80] = p.MemRmask
	b[81] = p.MemWmask
	b[82] = p.Rs1Addr
	b[83] = p.Rs2Addr
	b[84] = p.RdAddr
	b[85] = p.Trap
	b[86] = p.Halt
	b[87] = p.Intr
	return b
}

// NewResetPacketV1 builds the v1 reply to an end-of-trace command: a
// zeroed execution packet carrying only the halt code, matching
// CheriotTestRig::ResetV1 (std::memset(&ep, 0, sizeof(ep)); ep.rvfi_halt =
// halt).
func NewResetPacketV1(halt uint8) ExecutionPacket {
	return ExecutionPacket{Halt: halt}
}

// NewResetPacketV2 builds the v2 reply to an end-of-trace command,
// matching CheriotTestRig::ResetV2: a header-only packet (no extension
// fields present) with trace_size set to the header's own length and only
// the halt code populated.
func NewResetPacketV2(halt uint8) ExecutionPacketV2 {
	p := ExecutionPacketV2{TraceSize: executionPacketV2HeaderSize}
	p.Meta.Halt = halt
	return p
}

// VersionPacket is sent in reply to a set-version command, echoing the
// negotiated version back to the host.
type VersionPacket struct {
	VersionText [8]byte
	Version     uint64
}

const VersionPacketSize = 16

func NewVersionPacket(version uint64) VersionPacket {
	var vp VersionPacket
	copy(vp.VersionText[:], "version=")
	vp.Version = version
	return vp
}

func (p *VersionPacket) Marshal() []byte {
	b := make([]byte, VersionPacketSize)
	copy(b[0:8], p.VersionText[:])
	binary.LittleEndian.PutUint64(b[8:16], p.Version)
	return b
}

// --- v2 packets ---

const (
	ModeUser       uint8 = 0
	ModeSupervisor uint8 = 1
	ModeMachine    uint8 = 3

	XL32 uint8 = 1
	XL64 uint8 = 2

	FieldIntegerData uint64 = 0x1
	FieldMemoryAccess uint64 = 0x2
)

type ExecutionPacketMetaData struct {
	Order   uint64
	Insn    uint64
	Trap    uint8
	Halt    uint8
	Intr    uint8
	Mode    uint8
	Ixl     uint8
	Valid   uint8
	padding [2]uint8
}

// executionPacketMetaDataSize is order(8) + insn(8) + six status bytes
// padded out to the next 8-byte boundary.
const executionPacketMetaDataSize = 24

type ExecutionPacketPC struct {
	PcRdata uint64
	PcWdata uint64
}

const executionPacketPCSize = 16

type ExecutionPacketExtInteger struct {
	RdWdata  uint64
	Rs1Rdata uint64
	Rs2Rdata uint64
	RdAddr   uint8
	Rs1Addr  uint8
	Rs2Addr  uint8
}

// executionPacketExtIntegerSize is magic(8) + 3*u64(24) + 3 address bytes,
// padded out to the next 8-byte boundary (5 bytes of padding).
const executionPacketExtIntegerSize = 8 + 24 + 3 + 5

func (e *ExecutionPacketExtInteger) Marshal() []byte {
	b := make([]byte, executionPacketExtIntegerSize)
	copy(b[0:8], "int-data")
	binary.LittleEndian.PutUint64(b[8:16], e.RdWdata)
	binary.LittleEndian.PutUint64(b[16:24], e.Rs1Rdata)
	binary.LittleEndian.PutUint64(b[24:32], e.Rs2Rdata)
	b[32] = e.RdAddr
	b[33] = e.Rs1Addr
	b[34] = e.Rs2Addr
	return b
}

type ExecutionPacketExtMemAccess struct {
	MemRdata [4]uint64
	MemWdata [4]uint64
	MemRmask uint32
	MemWmask uint32
	MemAddr  uint64
}

const executionPacketExtMemAccessSize = 8 + 32 + 32 + 4 + 4 + 8

func (e *ExecutionPacketExtMemAccess) Marshal() []byte {
	b := make([]byte, executionPacketExtMemAccessSize)
	copy(b[0:8], "mem-data")
	off := 8
	for _, v := range e.MemRdata {
		binary.LittleEndian.PutUint64(b[off:off+8], v)
		off += 8
	}
	for _, v := range e.MemWdata {
		binary.LittleEndian.PutUint64(b[off:off+8], v)
		off += 8
	}
	binary.LittleEndian.PutUint32(b[off:off+4], e.MemRmask)
	off += 4
	binary.LittleEndian.PutUint32(b[off:off+4], e.MemWmask)
	off += 4
	binary.LittleEndian.PutUint64(b[off:off+8], e.MemAddr)
	return b
}

// ExecutionPacketV2 is the v2 header: magic, trace_size, metadata, pc data,
// and the available-fields bitmask. trace_size grows by each present
// extension's size.
type ExecutionPacketV2 struct {
	TraceSize       uint64
	Meta            ExecutionPacketMetaData
	PC              ExecutionPacketPC
	AvailableFields uint64
}

const executionPacketV2HeaderSize = 8 + 8 + executionPacketMetaDataSize + executionPacketPCSize + 8

func (p *ExecutionPacketV2) Marshal() []byte {
	b := make([]byte, executionPacketV2HeaderSize)
	copy(b[0:8], "trace-v2")
	binary.LittleEndian.PutUint64(b[8:16], p.TraceSize)
	binary.LittleEndian.PutUint64(b[16:24], p.Meta.Order)
	binary.LittleEndian.PutUint64(b[24:32], p.Meta.Insn)
	b[32] = p.Meta.Trap
	b[33] = p.Meta.Halt
	b[34] = p.Meta.Intr
	b[35] = p.Meta.Mode
	b[36] = p.Meta.Ixl
	b[37] = p.Meta.Valid
	binary.LittleEndian.PutUint64(b[40:48], p.PC.PcRdata)
	binary.LittleEndian.PutUint64(b[48:56], p.PC.PcWdata)
	binary.LittleEndian.PutUint64(b[56:64], p.AvailableFields)
	return b
}
