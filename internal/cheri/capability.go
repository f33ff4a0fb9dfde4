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

// Package cheri implements the CHERIoT capability register (C2): a tagged
// fat pointer with compressed bounds, permissions, and a seal type.
package cheri

// Permission is a bitset over the fixed CHERIoT permission lattice. The only
// legal mutation is monotone clearing via AndPerm.
type Permission uint32

const (
	PermGlobal Permission = 1 << iota
	PermExecute
	PermLoad
	PermStore
	PermLoadCap
	PermStoreCap
	PermStoreLocalCap
	PermSeal
	PermUnseal
	PermAccessSysRegs
	PermUser0

	PermAll = PermGlobal | PermExecute | PermLoad | PermStore | PermLoadCap |
		PermStoreCap | PermStoreLocalCap | PermSeal | PermUnseal |
		PermAccessSysRegs | PermUser0
)

// topOfAddressSpace is 2^33, the top value a root capability may carry (the
// CHERIoT address space is 32 bits but top is tracked one bit wider so that
// base=0/top=2^32 capabilities can express "one past the last address").
const topOfAddressSpace = uint64(1) << 33

// mantissaBits bounds the precision of representable bounds, loosely
// modeling the compressed-capability grid: a set_bounds or set_address that
// would require finer precision than this is inexact.
const mantissaBits = 9

// Register is a single CHERIoT capability register: tag plus the fields the
// compressed 64-bit representation decodes to.
type Register struct {
	tag     bool
	address uint32
	base    uint32
	top     uint64
	perms   Permission
	otype   uint32 // 0 = unsealed
}

// ExecutableRoot, SealingRoot, and MemoryRoot are the three boot-time root
// capabilities: full permissions, base 0, top = 2^33. Every tagged
// capability in a running program derives from one of these by monotone
// operations.
func ExecutableRoot() Register { return Register{tag: true, perms: PermAll, top: topOfAddressSpace} }
func SealingRoot() Register    { return Register{tag: true, perms: PermAll, top: topOfAddressSpace} }
func MemoryRoot() Register     { return Register{tag: true, perms: PermAll, top: topOfAddressSpace} }

// Null returns the untagged null capability (c0): base=top=address=0, no
// permissions.
func Null() Register { return Register{} }

// ResetAs loads one of the three root values, preserving the root's address
// of 0 unless the caller sets it afterward (pcc does, to the reset vector).
func (r *Register) ResetAs(root Register) {
	*r = root
}

func representableAlignment(length uint64) uint64 {
	align := uint64(1)
	for length > (uint64(1) << mantissaBits) {
		length >>= 1
		align <<= 1
	}
	return align
}

// SetAddress sets the address field. If the new address falls outside the
// representable window for the capability's current bounds, the tag is
// cleared (inexact behavior — there is no trap).
func (r *Register) SetAddress(a uint32) {
	align := representableAlignment(r.top - uint64(r.base))
	lo := uint64(r.base)
	if lo > align {
		lo -= align
	} else {
		lo = 0
	}
	hi := r.top + align
	if uint64(a) < lo || uint64(a) > hi {
		r.tag = false
	}
	r.address = a
}

// Address returns the current address field.
func (r *Register) Address() uint32 { return r.address }

// SetAddressRaw sets the address field directly, without the
// representable-window check that SetAddress performs. Used by trap
// delivery, which materializes mepcc/pcc as structural copies rather than
// as an instruction-level mutation, and so must not spuriously invalidate
// the tag.
func (r *Register) SetAddressRaw(a uint32) { r.address = a }

// Base and Top return the current bounds. Top may be 2^33.
func (r *Register) Base() uint32  { return r.base }
func (r *Register) Top() uint64   { return r.top }
func (r *Register) Tag() bool     { return r.tag }
func (r *Register) Perms() Permission { return r.perms }
func (r *Register) OType() uint32 { return r.otype }

// SetBounds narrows [base, base+len) onto the register. When exact is true
// and the requested bounds cannot be represented precisely on the
// compression grid, the operation fails by clearing the tag (the bounds
// fields are still updated, matching the reference behavior that an
// untagged capability's fields remain implementation-observable). When
// exact is false, bounds are rounded outward to the nearest representable
// step and the operation never fails on precision grounds.
func (r *Register) SetBounds(newBase, newLen uint32, exact bool) {
	newTop := uint64(newBase) + uint64(newLen)
	align := representableAlignment(uint64(newLen))

	if exact {
		if uint64(newBase)%align != 0 || newTop%align != 0 {
			r.tag = false
		}
	} else {
		newBase -= uint32(uint64(newBase) % align)
		rem := newTop % align
		if rem != 0 {
			newTop += align - rem
		}
	}

	if uint64(newBase) < uint64(r.base) || newTop > r.top {
		r.tag = false
	}

	r.base = newBase
	r.top = newTop
}

// AndPerm clears permission bits; it can never set a bit that was not
// already set.
func (r *Register) AndPerm(mask Permission) {
	r.perms &= mask
}

// HasPermission is a simple predicate over the permission bitset.
func (r *Register) HasPermission(p Permission) bool {
	return r.perms&p == p
}

// IsInBounds reports whether [a, a+size) lies within [base, top).
func (r *Register) IsInBounds(a, size uint32) bool {
	return uint64(r.base) <= uint64(a) && uint64(a)+uint64(size) <= r.top
}

// IsSealed reports whether the capability carries a nonzero object type.
func (r *Register) IsSealed() bool { return r.otype != 0 }

// IsValid reports whether the tag bit is set.
func (r *Register) IsValid() bool { return r.tag }

// ClearTag forces the tag bit false, leaving every other field untouched.
// Used directly by the CClearTag instruction; nothing else should need it,
// since every other tag-clearing path is a side effect of a failed check.
func (r *Register) ClearTag() { r.tag = false }

// Seal requires the otype source to be an in-bounds, unsealed, tagged
// capability bearing PermSeal, and its address to fall within the sealing
// range implied by otypeCap's own bounds. On success the receiver's otype
// becomes otypeCap's address plus one (0 is reserved for "unsealed") and the
// receiver stays tagged; on any failure the receiver's tag is cleared.
func (r *Register) Seal(otypeCap Register) {
	if !otypeCap.IsValid() || otypeCap.IsSealed() || !otypeCap.HasPermission(PermSeal) ||
		!otypeCap.IsInBounds(otypeCap.Address(), 1) {
		r.tag = false
		return
	}
	if !r.IsValid() || r.IsSealed() {
		r.tag = false
		return
	}
	r.otype = otypeCap.Address() + 1 // 0 remains reserved for "unsealed"
}

// Unseal is the inverse of Seal: otypeCap must be tagged, unsealed, bear
// PermUnseal, and its address (+1, matching Seal's encoding) must equal the
// receiver's otype. On success otype is cleared; on any failure the
// receiver's tag is cleared.
func (r *Register) Unseal(otypeCap Register) {
	if !otypeCap.IsValid() || otypeCap.IsSealed() || !otypeCap.HasPermission(PermUnseal) {
		r.tag = false
		return
	}
	if !r.IsSealed() || otypeCap.Address()+1 != r.otype {
		r.tag = false
		return
	}
	r.otype = 0
}
