package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

var (
	errRemap              = &kernel.Error{Module: "vmm", Message: "page is already mapped"}
	errUnmapMissing       = &kernel.Error{Module: "vmm", Message: "page is not mapped"}
	errNoHugePageSupport  = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errReadOnlyPageTable  = &kernel.Error{Module: "vmm", Message: "page table was not created by this kernel and cannot be modified"}
	errPageTableReleased  = &kernel.Error{Module: "vmm", Message: "page table used after release"}
	errInvalidLeafMapping = &kernel.Error{Module: "vmm", Message: "leaf mapping needs at least one of R, W or X"}
)

// PageTable is a three level SV39 translation tree. Every intermediate node
// is owned by the table and freed by Release; the leaf frames belong to
// whoever mapped them.
type PageTable struct {
	alloc    *pmm.FrameAllocator
	mem      *pmm.Memory
	root     mm.Frame
	nodes    []*pmm.FrameHandle
	released bool
}

// NewPageTable allocates an empty root node.
func NewPageTable(alloc *pmm.FrameAllocator) (*PageTable, *kernel.Error) {
	root, err := alloc.Alloc()
	if err != nil {
		return nil, err
	}

	return &PageTable{
		alloc: alloc,
		mem:   alloc.Memory(),
		root:  root.Frame(),
		nodes: []*pmm.FrameHandle{root},
	}, nil
}

// FromSATP returns a read-only view of the page table selected by a satp
// value. It is used to translate user pointers handed to the kernel.
func FromSATP(mem *pmm.Memory, satp uint64) *PageTable {
	return &PageTable{
		mem:  mem,
		root: mm.Frame(cpu.SATPRoot(satp)),
	}
}

// Root returns the frame holding the root node.
func (pt *PageTable) Root() mm.Frame {
	return pt.root
}

// SATP returns the satp value that activates this table in SV39 mode.
func (pt *PageTable) SATP() uint64 {
	return cpu.MakeSATP(uint64(pt.root))
}

// Nodes returns the number of frames used by the tree itself.
func (pt *PageTable) Nodes() int {
	return len(pt.nodes)
}

// Map installs a leaf mapping page -> frame. flags must contain at least one
// of the R/W/X bits; V is added automatically. Missing intermediate nodes
// are allocated on the way down and an error is returned if the allocator
// runs dry. Mapping a page that is already mapped is a kernel bug.
func (pt *PageTable) Map(page mm.Page, frame mm.Frame, flags mm.PageTableEntryFlag) *kernel.Error {
	pt.checkWritable()
	kfmt.Assert(flags&mm.FlagLeafMask != 0, errInvalidLeafMapping)

	var err *kernel.Error

	walk(pt.mem, pt.root, page, func(level uint8, ref entryRef) bool {
		pte := ref.load()

		if level == mm.PageTableLevels-1 {
			if pte.Valid() {
				kfmt.Panic(errRemap)
			}
			ref.store(mm.NewPageTableEntry(frame, flags|mm.FlagValid))
			return true
		}

		if pte.Valid() {
			if pte.IsLeaf() {
				kfmt.Panic(errNoHugePageSupport)
			}
			return true
		}

		var node *pmm.FrameHandle
		if node, err = pt.alloc.Alloc(); err != nil {
			return false
		}
		pt.nodes = append(pt.nodes, node)
		ref.store(mm.NewPageTableEntry(node.Frame(), mm.FlagValid))
		return true
	})

	return err
}

// Unmap clears the leaf mapping for page. Intermediate nodes are kept until
// the table is released. Unmapping a page that is not mapped is a kernel bug.
func (pt *PageTable) Unmap(page mm.Page) {
	pt.checkWritable()

	walk(pt.mem, pt.root, page, func(level uint8, ref entryRef) bool {
		pte := ref.load()

		switch {
		case !pte.Valid():
			kfmt.Panic(errUnmapMissing)
			return false
		case level == mm.PageTableLevels-1:
			ref.store(0)
			return true
		case pte.IsLeaf():
			kfmt.Panic(errNoHugePageSupport)
			return false
		}
		return true
	})
}

// Translate returns the leaf entry for page. The boolean is false if any
// level of the walk hits an invalid entry.
func (pt *PageTable) Translate(page mm.Page) (mm.PageTableEntry, bool) {
	var (
		leaf  mm.PageTableEntry
		found bool
	)

	walk(pt.mem, pt.root, page, func(level uint8, ref entryRef) bool {
		pte := ref.load()
		if !pte.Valid() {
			return false
		}

		if level == mm.PageTableLevels-1 {
			leaf, found = pte, true
			return true
		}

		// Superpages are never created by the kernel; report them as unmapped.
		return !pte.IsLeaf()
	})

	return leaf, found
}

// TranslateAddr converts a virtual address to a physical one.
func (pt *PageTable) TranslateAddr(virtAddr uint64) (uint64, bool) {
	pte, ok := pt.Translate(mm.PageFromAddress(virtAddr))
	if !ok {
		return 0, false
	}
	return pte.Frame().Address() + mm.PageOffset(virtAddr), true
}

// Release frees every intermediate node, root included.
func (pt *PageTable) Release() {
	pt.checkWritable()
	for _, node := range pt.nodes {
		node.Release()
	}
	pt.nodes = nil
	pt.released = true
}

func (pt *PageTable) checkWritable() {
	switch {
	case pt.alloc == nil:
		kfmt.Panic(errReadOnlyPageTable)
	case pt.released:
		kfmt.Panic(errPageTableReleased)
	}
}
