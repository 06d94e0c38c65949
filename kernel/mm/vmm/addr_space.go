package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

var (
	errAreaOverlap     = &kernel.Error{Module: "vmm", Message: "area overlaps an existing mapping"}
	errAreaNotFound    = &kernel.Error{Module: "vmm", Message: "no area starts at the requested address"}
	errAreaShrinkBelow = &kernel.Error{Module: "vmm", Message: "area end cannot move below its start"}
	errSpaceReleased   = &kernel.Error{Module: "vmm", Message: "address space released twice"}
	errNoReserveSpace  = &kernel.Error{Module: "vmm", Message: "remaining virtual address space not large enough to satisfy reservation request"}

	// switchSATPFn is used by tests to observe address space switches.
	switchSATPFn = func(hart *cpu.Hart, satp uint64) { hart.SetSATP(satp) }
)

// AddressSpace is a page table plus the areas mapped through it. Areas never
// overlap and every framed page is backed by exactly one frame owned by its
// area.
type AddressSpace struct {
	alloc      *pmm.FrameAllocator
	table      *PageTable
	areas      []*MapArea
	trampoline mm.Frame
	released   bool
}

// NewAddressSpace returns an empty address space.
func NewAddressSpace(alloc *pmm.FrameAllocator) (*AddressSpace, *kernel.Error) {
	table, err := NewPageTable(alloc)
	if err != nil {
		return nil, err
	}
	return &AddressSpace{alloc: alloc, table: table, trampoline: mm.InvalidFrame}, nil
}

// PageTable returns the translation tree backing the space.
func (as *AddressSpace) PageTable() *PageTable {
	return as.table
}

// SATP returns the satp value that activates the space.
func (as *AddressSpace) SATP() uint64 {
	return as.table.SATP()
}

// Areas returns the areas of the space in insertion order.
func (as *AddressSpace) Areas() []*MapArea {
	return as.areas
}

// MapTrampoline maps the shared trampoline frame at the top of the space.
// The page is not tracked as an area so it is never freed with the space.
func (as *AddressSpace) MapTrampoline(frame mm.Frame) *kernel.Error {
	if err := as.table.Map(mm.PageFromAddress(mm.Trampoline), frame, mm.FlagRead|mm.FlagExec); err != nil {
		return err
	}
	as.trampoline = frame
	return nil
}

// InsertArea maps every page of area and adds it to the space. If the pages
// cannot all be mapped the space is left unchanged and an error is returned.
func (as *AddressSpace) InsertArea(area *MapArea) *kernel.Error {
	return as.InsertAreaWithData(area, nil, 0)
}

// InsertAreaWithData behaves like InsertArea and then copies data into the
// area starting offset bytes into its first page. Only framed areas can
// receive data.
func (as *AddressSpace) InsertAreaWithData(area *MapArea, data []byte, offset uint64) *kernel.Error {
	for _, existing := range as.areas {
		if existing.overlaps(area) {
			return errAreaOverlap
		}
	}

	if err := area.mapRange(as.table, area.start, area.end); err != nil {
		return err
	}
	if len(data) > 0 && area.mapType == MapFramed {
		area.copyData(data, offset)
	}

	as.areas = append(as.areas, area)
	return nil
}

// InsertFramedArea maps a new framed area covering [startVA, endVA).
func (as *AddressSpace) InsertFramedArea(startVA, endVA uint64, perm Permission) *kernel.Error {
	return as.InsertArea(NewFramedArea(startVA, endVA, perm))
}

// FindArea returns the area whose first page is start.
func (as *AddressSpace) FindArea(start mm.Page) *MapArea {
	if index := as.areaIndex(start); index >= 0 {
		return as.areas[index]
	}
	return nil
}

// AreaContaining returns the area that covers page, if any.
func (as *AddressSpace) AreaContaining(page mm.Page) *MapArea {
	for _, area := range as.areas {
		if area.Contains(page) {
			return area
		}
	}
	return nil
}

// RemoveArea unmaps and frees the area that starts at the page containing
// startVA. It returns false if no such area exists.
func (as *AddressSpace) RemoveArea(startVA uint64) bool {
	index := as.areaIndex(mm.PageFromAddress(startVA))
	if index < 0 {
		return false
	}

	area := as.areas[index]
	area.unmapRange(as.table, area.start, area.end)
	as.areas = append(as.areas[:index], as.areas[index+1:]...)
	return true
}

// ChangeAreaEnd moves the end of the area starting at the page containing
// startVA to the page boundary at or above newEndVA. Growing maps new framed
// pages and fails without side effects when they would collide with another
// area or the pool runs dry; shrinking unmaps and frees the trailing pages.
func (as *AddressSpace) ChangeAreaEnd(startVA, newEndVA uint64) *kernel.Error {
	index := as.areaIndex(mm.PageFromAddress(startVA))
	if index < 0 {
		return errAreaNotFound
	}

	area := as.areas[index]
	newEnd := mm.PageFromAddressCeil(newEndVA)

	switch {
	case newEnd < area.start:
		return errAreaShrinkBelow
	case newEnd < area.end:
		area.shrinkTo(as.table, newEnd)
	case newEnd > area.end:
		grown := &MapArea{start: area.end, end: newEnd}
		for i, other := range as.areas {
			if i != index && other.overlaps(grown) {
				return errAreaOverlap
			}
		}
		return area.growTo(as.table, newEnd)
	}

	return nil
}

// Translate returns the leaf entry for page.
func (as *AddressSpace) Translate(page mm.Page) (mm.PageTableEntry, bool) {
	return as.table.Translate(page)
}

// Activate installs the space on hart and flushes its TLB.
func (as *AddressSpace) Activate(hart *cpu.Hart) {
	switchSATPFn(hart, as.SATP())
}

// Release unmaps every area, frees their frames and then the page table
// nodes. Releasing a space twice is a kernel bug.
func (as *AddressSpace) Release() {
	if as.released {
		kfmt.Panic(errSpaceReleased)
		return
	}

	for _, area := range as.areas {
		area.unmapRange(as.table, area.start, area.end)
	}
	as.areas = nil
	as.table.Release()
	as.released = true
}

func (as *AddressSpace) areaIndex(start mm.Page) int {
	for index, area := range as.areas {
		if area.start == start {
			return index
		}
	}
	return -1
}

// RegionReserver hands out page-aligned regions of virtual address space,
// growing down from a fixed top address. Reserved regions are never
// returned to the reserver.
type RegionReserver struct {
	lastUsed uint64
	floor    uint64
}

// NewRegionReserver returns a reserver that allocates below top and never
// crosses floor.
func NewRegionReserver(top, floor uint64) RegionReserver {
	return RegionReserver{lastUsed: top, floor: floor}
}

// Reserve returns the start address of a fresh region of at least size
// bytes. Sizes are rounded up to a multiple of mm.PageSize.
func (r *RegionReserver) Reserve(size uint64) (uint64, *kernel.Error) {
	// reserving a region of the requested size would cross the floor
	if size == 0 || size > r.lastUsed-r.floor {
		return 0, errNoReserveSpace
	}

	if size = (size + (mm.PageSize - 1)) &^ (mm.PageSize - 1); size > r.lastUsed-r.floor {
		return 0, errNoReserveSpace
	}

	r.lastUsed -= size
	return r.lastUsed, nil
}

// Next returns the address the next reservation will end at.
func (r *RegionReserver) Next() uint64 {
	return r.lastUsed
}
