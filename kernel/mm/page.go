package mm

import "math"

// Frame describes a physical page number (PPN).
type Frame uint64

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address of the start of this Frame.
func (f Frame) Address() uint64 {
	return uint64(f) << PageShift
}

// FrameFromAddress returns a Frame that corresponds to
// the given physical address. This function can handle
// both page-aligned and not aligned addresses. in the
// latter case, the input address will be rounded down
// to the frame that contains it.
func FrameFromAddress(physAddr uint64) Frame {
	return Frame((physAddr >> PageShift) & ppnMask)
}

// Page describes a virtual page number (VPN). Only the low 27 bits are
// significant.
type Page uint64

// Address returns the virtual address of the start of this Page. SV39
// addresses are sign-extended from bit 38 so the top of the VPN space maps
// to the top of the 64-bit address space.
func (p Page) Address() uint64 {
	addr := (uint64(p) & vpnMask) << PageShift
	if addr&(1<<(VirtAddrBits-1)) != 0 {
		addr |= ^((uint64(1) << VirtAddrBits) - 1)
	}
	return addr
}

// Indexes returns the three 9-bit page-table indices of this page, starting
// with the index into the root table.
func (p Page) Indexes() [PageTableLevels]uint64 {
	var idx [PageTableLevels]uint64
	vpn := uint64(p)
	for level := PageTableLevels - 1; level >= 0; level-- {
		idx[level] = vpn & (EntriesPerTable - 1)
		vpn >>= 9
	}
	return idx
}

// PageFromAddress returns the Page that contains the given virtual address.
// Unaligned addresses are rounded down.
func PageFromAddress(virtAddr uint64) Page {
	return Page((virtAddr >> PageShift) & vpnMask)
}

// PageFromAddressCeil returns the first Page that starts at or above the
// given virtual address.
func PageFromAddressCeil(virtAddr uint64) Page {
	if virtAddr == 0 {
		return 0
	}
	return PageFromAddress(virtAddr-1) + 1
}

// PageOffset returns the offset of the address within its page.
func PageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}

// PageAligned returns true if addr is a multiple of PageSize.
func PageAligned(addr uint64) bool {
	return PageOffset(addr) == 0
}

// CanonicalAddress returns true if bits 63..39 of addr all equal bit 38.
func CanonicalAddress(addr uint64) bool {
	top := addr >> (VirtAddrBits - 1)
	return top == 0 || top == (uint64(1)<<(64-VirtAddrBits+1))-1
}
