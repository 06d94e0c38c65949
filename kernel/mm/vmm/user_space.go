package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/loader"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

var errSegmentRange = &kernel.Error{Module: "vmm", Message: "loadable segment outside of the user address range"}

// UserImage is an address space freshly built from an executable.
type UserImage struct {
	Space *AddressSpace

	// Entry is the address of the first user instruction.
	Entry uint64

	// HeapBase is the page aligned address right above the highest
	// segment. The heap area starts empty at this address.
	HeapBase uint64

	// StackTop is the initial user stack pointer.
	StackTop uint64
}

// FromELF builds a user address space for an executable image. Every
// loadable segment becomes a framed user area with the segment's access
// rights; file bytes are copied in and the rest of the segment is left
// zeroed. The space also receives an empty heap area, the user stack, the
// trap context page and the trampoline.
func FromELF(alloc *pmm.FrameAllocator, data []byte, trampoline mm.Frame) (*UserImage, *kernel.Error) {
	img, err := loader.Parse(data)
	if err != nil {
		return nil, err
	}

	space, err := NewAddressSpace(alloc)
	if err != nil {
		return nil, err
	}

	heapBase, err := loadSegments(space, img.Segments)
	if err == nil {
		err = space.MapTrampoline(trampoline)
	}
	if err == nil {
		err = space.InsertFramedArea(heapBase, heapBase, PermRead|PermWrite|PermUser)
	}
	if err == nil {
		err = space.InsertFramedArea(mm.UserStackBottom, mm.UserStackTop, PermRead|PermWrite|PermUser)
	}
	if err == nil {
		err = space.InsertFramedArea(mm.TrapContextBase, mm.Trampoline, PermRead|PermWrite)
	}
	if err != nil {
		space.Release()
		return nil, err
	}

	return &UserImage{
		Space:    space,
		Entry:    img.Entry,
		HeapBase: heapBase,
		StackTop: mm.UserStackTop,
	}, nil
}

// loadSegments maps the loadable segments and returns the page aligned end
// of the highest one.
func loadSegments(space *AddressSpace, segments []loader.Segment) (uint64, *kernel.Error) {
	var maxEnd mm.Page

	for _, seg := range segments {
		if seg.End() < seg.VirtAddr || seg.End() > mm.MmapTop {
			return 0, errSegmentRange
		}

		perm := PermUser
		if seg.Flags&loader.SegmentRead != 0 {
			perm |= PermRead
		}
		if seg.Flags&loader.SegmentWrite != 0 {
			perm |= PermWrite
		}
		if seg.Flags&loader.SegmentExec != 0 {
			perm |= PermExec
		}
		if perm == PermUser {
			perm |= PermRead
		}

		area := NewFramedArea(seg.VirtAddr, seg.End(), perm)
		if err := space.InsertAreaWithData(area, seg.Data, mm.PageOffset(seg.VirtAddr)); err != nil {
			return 0, err
		}
		if area.End() > maxEnd {
			maxEnd = area.End()
		}
	}

	return maxEnd.Address(), nil
}

// FromAnother returns a copy of src that shares no framed pages with it.
// Framed areas get fresh frames holding the same bytes; direct areas and the
// trampoline are mapped onto the same frames as in src.
func FromAnother(src *AddressSpace) (*AddressSpace, *kernel.Error) {
	dst, err := NewAddressSpace(src.alloc)
	if err != nil {
		return nil, err
	}

	if src.trampoline.Valid() {
		if err = dst.MapTrampoline(src.trampoline); err != nil {
			dst.Release()
			return nil, err
		}
	}

	for _, area := range src.areas {
		dup := area.clone()
		if err = dst.InsertArea(dup); err != nil {
			dst.Release()
			return nil, err
		}

		if area.mapType != MapFramed {
			continue
		}
		for page, handle := range area.frames {
			kernel.Memcopy(handle.Bytes(), dup.frames[page].Bytes())
		}
	}

	return dst, nil
}
