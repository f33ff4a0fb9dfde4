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

// Package memory implements tagged physical memory (C1): a flat byte array
// plus one tag bit per 8-byte capability-aligned slot.
package memory

const (
	// CapSize is the size in bytes of a capability-aligned slot.
	CapSize = 8
	// DefaultMaxPhys is used when configuration does not set a size.
	DefaultMaxPhys = 16 * 1024 * 1024
)

// Memory is the physical memory backing an architectural state. Unlike the
// teacher's package-level singleton, this is a struct so more than one
// simulator state can exist in the same process (tests run many in
// parallel).
type Memory struct {
	mem  []byte
	tags []uint64 // one bit per CapSize-aligned slot, packed 64 per word
	size uint32
}

// New allocates a Memory of maxPhys bytes, rounded down to a CapSize multiple.
func New(maxPhys uint32) *Memory {
	size := maxPhys - (maxPhys % CapSize)
	return &Memory{
		mem:  make([]byte, size),
		tags: make([]uint64, (size/CapSize+63)/64),
		size: size,
	}
}

// Size returns the configured memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.size
}

// CheckAddr reports whether addr is in range.
func (m *Memory) CheckAddr(addr uint32) bool {
	return addr < m.size
}

func (m *Memory) slot(addr uint32) uint32 {
	return addr / CapSize
}

func (m *Memory) tagBit(slot uint32) bool {
	return m.tags[slot/64]&(uint64(1)<<(slot%64)) != 0
}

func (m *Memory) setTagBit(slot uint32, v bool) {
	idx, bit := slot/64, uint64(1)<<(slot%64)
	if v {
		m.tags[idx] |= bit
	} else {
		m.tags[idx] &^= bit
	}
}

// clearTag invalidates the tag of every slot that [addr, addr+n) overlaps.
// A partial write anywhere in a capability slot destroys that slot's tag.
func (m *Memory) clearTag(addr, n uint32) {
	for s := m.slot(addr); s <= m.slot(addr+n-1); s++ {
		m.setTagBit(s, false)
	}
}

// ReadByte/WriteByte/ReadHalf/WriteHalf/ReadWord/WriteWord follow the
// teacher's bounds-checked accessor pattern: a bool result of true means the
// address was out of range, to be reported by the caller as an access fault.

func (m *Memory) ReadByte(addr uint32) (value byte, fault bool) {
	if !m.CheckAddr(addr) {
		return 0, true
	}
	return m.mem[addr], false
}

func (m *Memory) WriteByte(addr uint32, v byte) (fault bool) {
	if !m.CheckAddr(addr) {
		return true
	}
	m.mem[addr] = v
	m.clearTag(addr, 1)
	return false
}

func (m *Memory) ReadHalf(addr uint32) (value uint16, fault bool) {
	if !m.CheckAddr(addr) || !m.CheckAddr(addr+1) {
		return 0, true
	}
	return uint16(m.mem[addr]) | uint16(m.mem[addr+1])<<8, false
}

func (m *Memory) WriteHalf(addr uint32, v uint16) (fault bool) {
	if !m.CheckAddr(addr) || !m.CheckAddr(addr+1) {
		return true
	}
	m.mem[addr] = byte(v)
	m.mem[addr+1] = byte(v >> 8)
	m.clearTag(addr, 2)
	return false
}

func (m *Memory) ReadWord(addr uint32) (value uint32, fault bool) {
	if !m.CheckAddr(addr) || !m.CheckAddr(addr+3) {
		return 0, true
	}
	v := uint32(m.mem[addr]) | uint32(m.mem[addr+1])<<8 |
		uint32(m.mem[addr+2])<<16 | uint32(m.mem[addr+3])<<24
	return v, false
}

func (m *Memory) WriteWord(addr uint32, v uint32) (fault bool) {
	if !m.CheckAddr(addr) || !m.CheckAddr(addr+3) {
		return true
	}
	m.mem[addr] = byte(v)
	m.mem[addr+1] = byte(v >> 8)
	m.mem[addr+2] = byte(v >> 16)
	m.mem[addr+3] = byte(v >> 24)
	m.clearTag(addr, 4)
	return false
}

// LoadTag returns the tag bit of the CapSize-aligned slot containing addr.
// An out-of-range address reports a clear tag.
func (m *Memory) LoadTag(addr uint32) bool {
	if !m.CheckAddr(addr) {
		return false
	}
	return m.tagBit(m.slot(addr))
}

// LoadCapability reads the 8-byte compressed capability word at a
// CapSize-aligned address together with its tag.
func (m *Memory) LoadCapability(addr uint32) (data uint64, tag bool, fault bool) {
	if addr%CapSize != 0 || !m.CheckAddr(addr) || !m.CheckAddr(addr+CapSize-1) {
		return 0, false, true
	}
	lo, _ := m.ReadWord(addr)
	hi, _ := m.ReadWord(addr + 4)
	return uint64(lo) | uint64(hi)<<32, m.tagBit(m.slot(addr)), false
}

// StoreCapability writes the 8-byte compressed capability word and
// propagates tag, which must already be false if the source capability was
// untagged.
func (m *Memory) StoreCapability(addr uint32, data uint64, tag bool) (fault bool) {
	if addr%CapSize != 0 || !m.CheckAddr(addr) || !m.CheckAddr(addr+CapSize-1) {
		return true
	}
	_ = m.WriteWord(addr, uint32(data))
	_ = m.WriteWord(addr+4, uint32(data>>32))
	m.setTagBit(m.slot(addr), tag)
	return false
}

// AtomicRMW performs a read-modify-write of a word under op and returns the
// word's prior value. It is the sole entrypoint atomic instructions use so a
// future multi-hart extension has one place to add locking.
func (m *Memory) AtomicRMW(addr uint32, op func(uint32) uint32) (old uint32, fault bool) {
	old, fault = m.ReadWord(addr)
	if fault {
		return 0, true
	}
	_ = m.WriteWord(addr, op(old))
	return old, false
}
