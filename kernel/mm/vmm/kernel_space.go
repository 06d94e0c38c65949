package vmm

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

// Section is a [Start, End) range of the kernel image.
type Section struct {
	Start, End uint64
}

// KernelLayout describes the linked kernel image and the physical memory
// that follows it.
type KernelLayout struct {
	// Text starts with the trampoline page.
	Text   Section
	Rodata Section
	Data   Section
	BSS    Section

	// MemoryEnd is the end of the RAM managed by the kernel.
	MemoryEnd uint64

	MMIO []mm.MMIORange
}

// TrampolineFrame returns the frame holding the trap trampoline.
func (l KernelLayout) TrampolineFrame() mm.Frame {
	return mm.FrameFromAddress(l.Text.Start)
}

// FirstFreeFrame returns the first frame past the kernel image.
func (l KernelLayout) FirstFreeFrame() mm.Frame {
	return mm.FrameFromAddress(l.BSS.End + mm.PageSize - 1)
}

// NewKernelSpace builds the kernel address space: the trampoline, an
// identity map of every image section with its own permissions, the rest of
// RAM and the MMIO windows.
func NewKernelSpace(alloc *pmm.FrameAllocator, layout KernelLayout) (*AddressSpace, *kernel.Error) {
	space, err := NewAddressSpace(alloc)
	if err != nil {
		return nil, err
	}

	if err = space.MapTrampoline(layout.TrampolineFrame()); err != nil {
		return nil, err
	}

	areas := []*MapArea{
		identityArea(layout.Text, PermRead|PermExec),
		identityArea(layout.Rodata, PermRead),
		identityArea(layout.Data, PermRead|PermWrite),
		identityArea(layout.BSS, PermRead|PermWrite),
		identityArea(Section{Start: layout.BSS.End, End: layout.MemoryEnd}, PermRead|PermWrite),
	}
	for _, window := range layout.MMIO {
		areas = append(areas, identityArea(Section{Start: window.Base, End: window.Base + window.Size}, PermRead|PermWrite))
	}

	for _, area := range areas {
		if area.Pages() == 0 {
			continue
		}
		if err = space.InsertArea(area); err != nil {
			return nil, err
		}
	}

	kfmt.Logger("vmm").Info("kernel space ready",
		"text", kfmt.Range(layout.Text.Start, layout.Text.End),
		"memory_end", kfmt.Hex(layout.MemoryEnd),
		"mmio", len(layout.MMIO),
		"page_table_nodes", space.table.Nodes(),
	)
	return space, nil
}

func identityArea(sec Section, perm Permission) *MapArea {
	return NewDirectArea(sec.Start, sec.End, sec.Start, perm)
}
