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

// Package inst implements the Instruction record (C8): a decoded
// instruction's address, width, opcode, disassembly, bound operand lists,
// and semantic function, plus the single-consumer reference-count
// convention the retirement adapter relies on to observe it past the
// execution boundary.
package inst

import (
	"sync/atomic"

	"github.com/cheriot32/simcore/internal/archstate"
	"github.com/cheriot32/simcore/internal/operand"
)

// Opcode names the decoded operation. Kept as a plain string enum rather
// than a deep per-instruction type hierarchy, per the single
// CapabilityRegister-style flattening used throughout this core.
type Opcode string

// Semantic executes an instruction's behavior against architectural state.
type Semantic func(s *archstate.ArchState, i *Instruction)

// Instruction is the decoded, executable unit the test-rig retirement
// adapter steps one at a time.
type Instruction struct {
	Address uint32
	Size    uint32
	Op      Opcode
	Disasm  string

	Semantic Semantic

	Sources      []operand.Operand
	Destinations []operand.Operand

	// Child is set when a compressed or macro instruction expands into a
	// second, dependent instruction (e.g. an auipcc+jalr pair). One-way
	// only: a child must never point back at its parent.
	Child *Instruction

	refs int32
}

// New constructs an Instruction with a zero refcount; the decoder owns the
// initial reference implicitly until the first Clone.
func New(address, size uint32, op Opcode, disasm string, semantic Semantic, sources, destinations []operand.Operand) *Instruction {
	return &Instruction{
		Address:      address,
		Size:         size,
		Op:           op,
		Disasm:       disasm,
		Semantic:     semantic,
		Sources:      sources,
		Destinations: destinations,
	}
}

// Execute invokes the bound semantic function, if any.
func (i *Instruction) Execute(s *archstate.ArchState) {
	if i.Semantic != nil {
		i.Semantic(s, i)
	}
}

// Clone takes the single permitted extra reference: the retirement
// adapter's hold on the instruction past the execution boundary. Calling it
// more than once per instruction violates the single-consumer convention
// this type is built around.
func (i *Instruction) Clone() *Instruction {
	atomic.AddInt32(&i.refs, 1)
	return i
}

// Release drops the adapter's reference. It does not free anything in Go
// (the garbage collector owns that); it exists so callers can express the
// same retire-then-release sequencing the source model depends on.
func (i *Instruction) Release() {
	atomic.AddInt32(&i.refs, -1)
}

// RefCount reports the current reference count, for tests that want to
// assert the single-consumer invariant holds.
func (i *Instruction) RefCount() int32 {
	return atomic.LoadInt32(&i.refs)
}
