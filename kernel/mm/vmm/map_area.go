package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

// MapType selects how the pages of an area are backed.
type MapType uint8

const (
	// MapDirect maps every page to a frame at a fixed distance from it. The
	// kernel uses it for its identity mapped image, RAM and MMIO windows.
	MapDirect MapType = iota

	// MapFramed backs every page with a frame allocated from the pool and
	// owned by the area.
	MapFramed
)

// String implements fmt.Stringer for MapType.
func (t MapType) String() string {
	if t == MapDirect {
		return "direct"
	}
	return "framed"
}

// Permission is the subset of PTE flags an area may request.
type Permission uint8

const (
	PermRead  = Permission(mm.FlagRead)
	PermWrite = Permission(mm.FlagWrite)
	PermExec  = Permission(mm.FlagExec)
	PermUser  = Permission(mm.FlagUser)
)

// String returns the permission in "rwxu" notation.
func (p Permission) String() string {
	out := []byte("----")
	for i, bit := range []Permission{PermRead, PermWrite, PermExec, PermUser} {
		if p&bit != 0 {
			out[i] = "rwxu"[i]
		}
	}
	return string(out)
}

func (p Permission) pteFlags() mm.PageTableEntryFlag {
	return mm.PageTableEntryFlag(p)
}

// MapArea is a contiguous page range [start, end) sharing a map type and a
// permission set.
type MapArea struct {
	start, end mm.Page
	mapType    MapType
	perm       Permission

	// frameOffset is added to a page number to get the backing frame of a
	// direct area.
	frameOffset uint64

	frames map[mm.Page]*pmm.FrameHandle
}

// NewFramedArea returns an unmapped framed area covering [startVA, endVA).
// The start is rounded down and the end rounded up to page boundaries.
func NewFramedArea(startVA, endVA uint64, perm Permission) *MapArea {
	return &MapArea{
		start:   mm.PageFromAddress(startVA),
		end:     mm.PageFromAddressCeil(endVA),
		mapType: MapFramed,
		perm:    perm,
		frames:  make(map[mm.Page]*pmm.FrameHandle),
	}
}

// NewDirectArea returns an unmapped area that maps [startVA, endVA) onto
// physical memory starting at physStart. Identity maps pass physStart ==
// startVA.
func NewDirectArea(startVA, endVA, physStart uint64, perm Permission) *MapArea {
	start := mm.PageFromAddress(startVA)
	return &MapArea{
		start:       start,
		end:         mm.PageFromAddressCeil(endVA),
		mapType:     MapDirect,
		perm:        perm,
		frameOffset: uint64(mm.FrameFromAddress(physStart)) - uint64(start),
	}
}

// Start returns the first page of the area.
func (a *MapArea) Start() mm.Page { return a.start }

// End returns the page right after the area.
func (a *MapArea) End() mm.Page { return a.end }

// Pages returns the number of pages covered by the area.
func (a *MapArea) Pages() uint64 { return uint64(a.end - a.start) }

// Type returns the backing strategy of the area.
func (a *MapArea) Type() MapType { return a.mapType }

// Permission returns the access rights of the area.
func (a *MapArea) Permission() Permission { return a.perm }

// Contains returns true if page lies inside the area.
func (a *MapArea) Contains(page mm.Page) bool {
	return page >= a.start && page < a.end
}

// overlaps returns true if the two areas share at least one page.
func (a *MapArea) overlaps(other *MapArea) bool {
	return a.start < other.end && other.start < a.end
}

func (a *MapArea) mapOne(pt *PageTable, page mm.Page) *kernel.Error {
	var frame mm.Frame

	switch a.mapType {
	case MapDirect:
		frame = mm.Frame(uint64(page) + a.frameOffset)
	case MapFramed:
		handle, err := pt.alloc.Alloc()
		if err != nil {
			return err
		}
		a.frames[page] = handle
		frame = handle.Frame()
	}

	if err := pt.Map(page, frame, a.perm.pteFlags()); err != nil {
		if handle, ok := a.frames[page]; ok {
			handle.Release()
			delete(a.frames, page)
		}
		return err
	}

	return nil
}

func (a *MapArea) unmapOne(pt *PageTable, page mm.Page) {
	if handle, ok := a.frames[page]; ok {
		handle.Release()
		delete(a.frames, page)
	}
	pt.Unmap(page)
}

// mapRange maps [from, to). If a page cannot be mapped every page mapped by
// this call is unmapped again before the error is returned.
func (a *MapArea) mapRange(pt *PageTable, from, to mm.Page) *kernel.Error {
	for page := from; page < to; page++ {
		if err := a.mapOne(pt, page); err != nil {
			a.unmapRange(pt, from, page)
			return err
		}
	}
	return nil
}

func (a *MapArea) unmapRange(pt *PageTable, from, to mm.Page) {
	for page := from; page < to; page++ {
		a.unmapOne(pt, page)
	}
}

// growTo extends the area up to newEnd, mapping the new pages.
func (a *MapArea) growTo(pt *PageTable, newEnd mm.Page) *kernel.Error {
	if err := a.mapRange(pt, a.end, newEnd); err != nil {
		return err
	}
	a.end = newEnd
	return nil
}

// shrinkTo drops every page at or above newEnd.
func (a *MapArea) shrinkTo(pt *PageTable, newEnd mm.Page) {
	a.unmapRange(pt, newEnd, a.end)
	a.end = newEnd
}

// copyData writes data into the freshly mapped frames of a framed area,
// starting offset bytes into its first page. Bytes past the area are
// ignored.
func (a *MapArea) copyData(data []byte, offset uint64) {
	for page := a.start; page < a.end && len(data) > 0; page++ {
		dst := a.frames[page].Bytes()[offset:]
		data = data[kernel.Memcopy(data, dst):]
		offset = 0
	}
}

// clone returns an unmapped area with the same range, type and permission.
func (a *MapArea) clone() *MapArea {
	dup := *a
	if a.mapType == MapFramed {
		dup.frames = make(map[mm.Page]*pmm.FrameHandle, len(a.frames))
	}
	return &dup
}
