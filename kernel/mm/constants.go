package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = uint64(1 << PageShift)

	// PageTableLevels is the number of levels of an SV39 page table.
	PageTableLevels = 3

	// EntriesPerTable is the number of PTEs stored in one page table frame.
	EntriesPerTable = 512

	// PTEShift is equal to log2(size of a PTE in bytes).
	PTEShift = 3

	// VirtAddrBits is the number of significant bits in an SV39 virtual
	// address; bits 63..39 must replicate bit 38.
	VirtAddrBits = 39

	// PhysAddrBits is the width of a physical address.
	PhysAddrBits = 56

	vpnBits = VirtAddrBits - PageShift
	ppnBits = PhysAddrBits - PageShift
	vpnMask = (uint64(1) << vpnBits) - 1
	ppnMask = (uint64(1) << ppnBits) - 1
)
