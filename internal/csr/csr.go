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

// Package csr implements the CSR set (C3): named and numbered
// control/status registers with read/write masks and side effects, plus the
// four CHERIoT special capability registers.
package csr

import (
	"errors"

	"github.com/cheriot32/simcore/internal/cheri"
)

// Special capability register indices (CSR-space 28-31).
const (
	ScrMTCC      uint16 = 28
	ScrMTDC      uint16 = 29
	ScrMScratchC uint16 = 30
	ScrMEPCC     uint16 = 31
)

var (
	// ErrNotFound is returned when an index or name has no registered CSR.
	ErrNotFound = errors.New("csr: not found")
	// ErrReadOnly is returned when writing a CSR whose write mask is zero.
	ErrReadOnly = errors.New("csr: read only")
)

// CSR is one control/status register. Get/Set, when non-nil, redirect
// storage to external state (vector sub-state, the instruction counter,
// ...); otherwise the plain value field is used.
type CSR struct {
	Index     uint16
	Name      string
	ReadMask  uint32
	WriteMask uint32
	value     uint32
	Get       func() uint32
	Set       func(uint32)
}

func (c *CSR) raw() uint32 {
	if c.Get != nil {
		return c.Get()
	}
	return c.value
}

func (c *CSR) store(v uint32) {
	if c.Set != nil {
		c.Set(v)
		return
	}
	c.value = v
}

// Read returns the masked value, per the invariant `value & read_mask`.
func (c *CSR) Read() uint32 {
	return c.raw() & c.ReadMask
}

// Write implements `(old &~ write_mask) | (new & write_mask)`.
func (c *CSR) Write(newVal uint32) {
	old := c.raw()
	c.store((old &^ c.WriteMask) | (newVal & c.WriteMask))
}

// SetBits implements the "set destination" (OR) side effect.
func (c *CSR) SetBits(mask uint32) {
	c.Write(c.raw() | mask)
}

// ClearBits implements the "clear destination" (AND-NOT) side effect.
func (c *CSR) ClearBits(mask uint32) {
	c.Write(c.raw() &^ mask)
}

// Set is the CSR set owned by the architectural state: a dense numeric
// index plus a name lookup over the same entries, and the four SCRs.
type Set struct {
	byIndex map[uint16]*CSR
	byName  map[string]*CSR
	scrs    [4]*cheri.Register
}

// NewSet returns an empty CSR set.
func NewSet() *Set {
	return &Set{
		byIndex: make(map[uint16]*CSR),
		byName:  make(map[string]*CSR),
	}
}

// Add registers a CSR under both its numeric index and its name.
func (s *Set) Add(c *CSR) {
	s.byIndex[c.Index] = c
	s.byName[c.Name] = c
}

// scrSlot maps a CSR index to its SCR slot, or -1 if index is not an SCR.
func scrSlot(index uint16) int {
	switch index {
	case ScrMTCC:
		return 0
	case ScrMTDC:
		return 1
	case ScrMScratchC:
		return 2
	case ScrMEPCC:
		return 3
	default:
		return -1
	}
}

// BindSCR registers the capability register backing one of the four SCR
// indices. ArchState calls this once at construction for mtcc/mtdc/
// mscratchc/mepcc.
func (s *Set) BindSCR(index uint16, reg *cheri.Register) {
	if slot := scrSlot(index); slot >= 0 {
		s.scrs[slot] = reg
	}
}

// IsSCR reports whether index addresses a special capability register.
func IsSCR(index uint16) bool { return scrSlot(index) >= 0 }

// ReadSCR returns the full capability at an SCR index (operating on the
// whole capability, not just its address, per spec).
func (s *Set) ReadSCR(index uint16) (cheri.Register, error) {
	slot := scrSlot(index)
	if slot < 0 || s.scrs[slot] == nil {
		return cheri.Register{}, ErrNotFound
	}
	return *s.scrs[slot], nil
}

// WriteSCR overwrites the full capability at an SCR index.
func (s *Set) WriteSCR(index uint16, v cheri.Register) error {
	slot := scrSlot(index)
	if slot < 0 || s.scrs[slot] == nil {
		return ErrNotFound
	}
	*s.scrs[slot] = v
	return nil
}

// Lookup finds a CSR, preferring the numeric index when both an index and a
// name are supplied (matching the spec's stated precedence). Pass name =
// "" to look up purely by index.
func (s *Set) Lookup(index uint16, name string) (*CSR, error) {
	if c, ok := s.byIndex[index]; ok {
		return c, nil
	}
	if name != "" {
		if c, ok := s.byName[name]; ok {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// ByName looks a CSR up by name alone.
func (s *Set) ByName(name string) (*CSR, error) {
	if c, ok := s.byName[name]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

// Read reads a CSR by index, failing with ErrNotFound if unregistered (the
// caller turns this into IllegalInstruction).
func (s *Set) Read(index uint16) (uint32, error) {
	c, err := s.Lookup(index, "")
	if err != nil {
		return 0, err
	}
	return c.Read(), nil
}

// Write writes a CSR by index. Writing a CSR whose write mask is entirely
// zero is treated as writing a read-only register.
func (s *Set) Write(index uint16, v uint32) error {
	c, err := s.Lookup(index, "")
	if err != nil {
		return err
	}
	if c.WriteMask == 0 {
		return ErrReadOnly
	}
	c.Write(v)
	return nil
}
