package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
	"testing"
)

func TestAddressSpaceInsertAndRemove(t *testing.T) {
	_, alloc := newTestAllocator(32)
	space, err := NewAddressSpace(alloc)
	if err != nil {
		t.Fatal(err)
	}
	initialFree := alloc.FreeFrames()

	if err = space.InsertFramedArea(0x1000, 0x3800, PermRead|PermWrite|PermUser); err != nil {
		t.Fatal(err)
	}

	area := space.FindArea(mm.PageFromAddress(0x1000))
	if area == nil || area.Pages() != 3 || area.Type() != MapFramed {
		t.Fatalf("expected a 3 page framed area; got %+v", area)
	}
	if got := area.Permission().String(); got != "rw-u" {
		t.Fatalf("expected permission rw-u; got %s", got)
	}

	for page := area.Start(); page < area.End(); page++ {
		pte, ok := space.Translate(page)
		if !ok || !alloc.Live(pte.Frame()) {
			t.Fatalf("expected page %x to be backed by a live frame", page)
		}
	}

	overlapping := []struct{ start, end uint64 }{
		{0x0, 0x2000},
		{0x3000, 0x5000},
		{0x2000, 0x2001},
		{0x0, 0x10000},
	}
	for specIndex, spec := range overlapping {
		if err := space.InsertFramedArea(spec.start, spec.end, PermRead); err != errAreaOverlap {
			t.Errorf("[spec %d] expected errAreaOverlap; got %v", specIndex, err)
		}
	}

	if err = space.InsertFramedArea(0x4000, 0x5000, PermRead); err != nil {
		t.Fatalf("expected adjacent area to be accepted; got %v", err)
	}

	if !space.RemoveArea(0x1000) {
		t.Fatal("expected area to be removed")
	}
	if space.RemoveArea(0x1000) {
		t.Fatal("expected second removal to report a missing area")
	}
	if _, ok := space.Translate(mm.PageFromAddress(0x2000)); ok {
		t.Fatal("expected removed pages to be unmapped")
	}

	space.Release()
	if alloc.FreeFrames() != initialFree+1 {
		t.Fatalf("expected all frames to be returned; %d free, expected %d", alloc.FreeFrames(), initialFree+1)
	}
}

func TestAddressSpaceInsertOutOfMemory(t *testing.T) {
	_, alloc := newTestAllocator(6)
	space, _ := NewAddressSpace(alloc)
	before := alloc.FreeFrames()

	// Two nodes plus eight frames do not fit in five free frames.
	if err := space.InsertFramedArea(0x1000, 0x9000, PermRead); err != pmm.ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory; got %v", err)
	}
	if len(space.Areas()) != 0 {
		t.Fatalf("expected failed insertion to leave no area; got %d", len(space.Areas()))
	}
	// The intermediate nodes stay with the table; every data frame is back.
	if exp := before - 2; alloc.FreeFrames() != exp {
		t.Fatalf("expected %d free frames; got %d", exp, alloc.FreeFrames())
	}
}

func TestAddressSpaceChangeAreaEnd(t *testing.T) {
	_, alloc := newTestAllocator(32)
	space, _ := NewAddressSpace(alloc)

	const heapBase = uint64(0x20000)
	if err := space.InsertFramedArea(heapBase, heapBase, PermRead|PermWrite|PermUser); err != nil {
		t.Fatal(err)
	}
	if err := space.InsertFramedArea(0x30000, 0x31000, PermRead); err != nil {
		t.Fatal(err)
	}

	heap := space.FindArea(mm.PageFromAddress(heapBase))

	specs := []struct {
		newEnd   uint64
		expErr   *kernel.Error
		expPages uint64
	}{
		{heapBase + 1, nil, 1},
		{heapBase + 3*mm.PageSize, nil, 3},
		{heapBase + 0x2001, nil, 3},
		{heapBase + mm.PageSize, nil, 1},
		{0x30001, errAreaOverlap, 1},
		{heapBase, nil, 0},
		{heapBase - 1, nil, 0},
		{heapBase - mm.PageSize - 1, errAreaShrinkBelow, 0},
	}

	for specIndex, spec := range specs {
		err := space.ChangeAreaEnd(heapBase, spec.newEnd)
		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
		if heap.Pages() != spec.expPages {
			t.Errorf("[spec %d] expected %d heap pages; got %d", specIndex, spec.expPages, heap.Pages())
		}
		for page := heap.Start(); page < heap.Start()+4; page++ {
			if _, mapped := space.Translate(page); mapped != (page < heap.End()) {
				t.Errorf("[spec %d] page %x mapped=%t does not match heap end %x", specIndex, page, mapped, heap.End())
			}
		}
	}

	if err := space.ChangeAreaEnd(0x50000, 0x51000); err != errAreaNotFound {
		t.Fatalf("expected errAreaNotFound; got %v", err)
	}
}

func TestAddressSpaceActivate(t *testing.T) {
	defer func() {
		switchSATPFn = func(hart *cpu.Hart, satp uint64) { hart.SetSATP(satp) }
	}()

	mem, alloc := newTestAllocator(4)
	space, _ := NewAddressSpace(alloc)
	hart := cpu.NewHart(mem)

	var switched uint64
	switchSATPFn = func(h *cpu.Hart, satp uint64) {
		switched = satp
		h.SetSATP(satp)
	}

	space.Activate(hart)
	if switched != space.SATP() || hart.ReadCSR(cpu.CSRSatp) != space.SATP() {
		t.Fatalf("expected satp %x to be installed; got %x", space.SATP(), hart.ReadCSR(cpu.CSRSatp))
	}
}

func TestAddressSpaceDoubleRelease(t *testing.T) {
	_, alloc := newTestAllocator(4)
	space, _ := NewAddressSpace(alloc)
	space.Release()

	expectHalt(t, space.Release)
}

func TestRegionReserver(t *testing.T) {
	r := NewRegionReserver(0x10000, 0x8000)

	specs := []struct {
		size    uint64
		expAddr uint64
		expErr  *kernel.Error
	}{
		{1, 0xf000, nil},
		{mm.PageSize, 0xe000, nil},
		{0x1800, 0xc000, nil},
		{0x5000, 0, errNoReserveSpace},
		{0, 0, errNoReserveSpace},
		{^uint64(0), 0, errNoReserveSpace},
		{0x4000, 0x8000, nil},
		{1, 0, errNoReserveSpace},
	}

	for specIndex, spec := range specs {
		addr, err := r.Reserve(spec.size)
		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
			continue
		}
		if err == nil && addr != spec.expAddr {
			t.Errorf("[spec %d] expected address %x; got %x", specIndex, spec.expAddr, addr)
		}
	}

	if r.Next() != 0x8000 {
		t.Fatalf("expected reserver to stop at its floor; got %x", r.Next())
	}
}
