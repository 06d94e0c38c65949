package vmm

import (
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
)

// entryRef points to a single slot inside a page table node.
type entryRef struct {
	table pmm.PTEView
	index uint64
}

func (r entryRef) load() mm.PageTableEntry {
	return r.table.Get(r.index)
}

func (r entryRef) store(pte mm.PageTableEntry) {
	r.table.Set(r.index, pte)
}

// pageTableWalker is invoked by walk for each level of the translation. It
// returns false to abort the walk. Before returning true for a non-leaf level
// the walker must make sure the entry points to a valid table.
type pageTableWalker func(level uint8, ref entryRef) bool

// walk performs an SV39 translation of page starting at root, invoking
// walkFn with the entry of every level it visits (root first).
func walk(mem *pmm.Memory, root mm.Frame, page mm.Page, walkFn pageTableWalker) {
	var (
		table   = root
		indexes = page.Indexes()
	)

	for level, index := range indexes {
		ref := entryRef{table: mem.PageTable(table), index: index}
		if !walkFn(uint8(level), ref) || level == mm.PageTableLevels-1 {
			return
		}

		table = ref.load().Frame()
	}
}
