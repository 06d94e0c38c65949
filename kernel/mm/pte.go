package mm

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

const (
	// FlagValid is set for every entry that points somewhere.
	FlagValid PageTableEntryFlag = 1 << iota
	// FlagRead marks a leaf as readable.
	FlagRead
	// FlagWrite marks a leaf as writable.
	FlagWrite
	// FlagExec marks a leaf as executable.
	FlagExec
	// FlagUser makes a leaf accessible from user mode.
	FlagUser
	// FlagGlobal marks a mapping present in all address spaces.
	FlagGlobal
	// FlagAccessed is set by the MMU when the page is touched.
	FlagAccessed
	// FlagDirty is set by the MMU when the page is written.
	FlagDirty

	// FlagLeafMask covers the permission bits that turn an entry into a leaf.
	FlagLeafMask = FlagRead | FlagWrite | FlagExec

	pteFlagMask   = uint64(0x3ff)
	ptePPNShift   = 10
	ptePhysPgMask = ppnMask << ptePPNShift
)

// PageTableEntry describes an SV39 page table entry. Bits 10-53 hold the PPN
// and the low byte holds the flags.
type PageTableEntry uint64

// NewPageTableEntry returns an entry pointing to frame with the given flags.
func NewPageTableEntry(frame Frame, flags PageTableEntryFlag) PageTableEntry {
	pte := PageTableEntry(0)
	pte.SetFrame(frame)
	pte.SetFlags(flags)
	return pte
}

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) &^ uint64(flags))
}

// Flags returns the flag bits of the entry.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint64(pte) & pteFlagMask)
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() Frame {
	return Frame((uint64(pte) & ptePhysPgMask) >> ptePPNShift)
}

// SetFrame updates the page table entry to point the the given physical frame.
func (pte *PageTableEntry) SetFrame(frame Frame) {
	*pte = (PageTableEntry)((uint64(*pte) &^ ptePhysPgMask) | ((uint64(frame) & ppnMask) << ptePPNShift))
}

// Valid returns true if the entry has FlagValid set.
func (pte PageTableEntry) Valid() bool {
	return pte.HasFlags(FlagValid)
}

// IsLeaf returns true for valid entries that carry at least one of R, W or X.
// Valid entries without them point to the next level table.
func (pte PageTableEntry) IsLeaf() bool {
	return pte.Valid() && pte.HasAnyFlag(FlagLeafMask)
}
