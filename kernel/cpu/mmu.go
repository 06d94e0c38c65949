package cpu

import (
	"encoding/binary"
	"mikuos/kernel/mm"
)

type accessKind uint8

const (
	accessFetch accessKind = iota
	accessLoad
	accessStore
)

func (k accessKind) pageFault() uint64 {
	switch k {
	case accessFetch:
		return CauseInstructionPageFault
	case accessLoad:
		return CauseLoadPageFault
	}
	return CauseStorePageFault
}

func (k accessKind) accessFault() uint64 {
	switch k {
	case accessFetch:
		return CauseInstructionFault
	case accessLoad:
		return CauseLoadFault
	}
	return CauseStoreFault
}

// exception is a synchronous trap raised while executing an instruction.
type exception struct {
	cause uint64
	tval  uint64
}

// tlbEntry caches a leaf PTE together with the level it was found at.
type tlbEntry struct {
	pte     mm.PageTableEntry
	pteAddr uint64
	level   int
}

// Translate returns the physical address backing va for a load at the
// current privilege. It is meant for debugging and tests.
func (h *Hart) Translate(va uint64) (uint64, bool) {
	pa, _, raised := h.translate(va, accessLoad)
	return pa, !raised
}

// access moves len(p) bytes between p and virtual memory, splitting the
// access at page boundaries.
func (h *Hart) access(va uint64, p []byte, kind accessKind) (exception, bool) {
	for done := 0; done < len(p); {
		cur := va + uint64(done)
		chunk := int(mm.PageSize - mm.PageOffset(cur))
		if rem := len(p) - done; chunk > rem {
			chunk = rem
		}

		pa, exc, raised := h.translate(cur, kind)
		if raised {
			return exc, true
		}

		var ok bool
		if kind == accessStore {
			ok = h.mem.WritePhys(pa, p[done:done+chunk])
		} else {
			ok = h.mem.ReadPhys(pa, p[done:done+chunk])
		}
		if !ok {
			return exception{kind.accessFault(), cur}, true
		}
		done += chunk
	}
	return exception{}, false
}

// translate walks the SV39 page table rooted at satp. Superpage leaves at
// levels 1 and 2 are honoured.
func (h *Hart) translate(va uint64, kind accessKind) (uint64, exception, bool) {
	if h.satp>>satpModeShift == SATPModeBare {
		return va, exception{}, false
	}

	fault := exception{kind.pageFault(), va}
	if !mm.CanonicalAddress(va) {
		return 0, fault, true
	}

	page := mm.PageFromAddress(va)
	entry, cached := h.tlb[uint64(page)]
	if !cached || (kind == accessStore && !entry.pte.HasFlags(mm.FlagDirty)) {
		var (
			walked bool
			exc    exception
		)
		if entry, exc, walked = h.walk(page, kind, va); !walked {
			return 0, exc, true
		}
	}

	if !h.permitted(entry.pte, kind) {
		return 0, fault, true
	}

	if !entry.pte.HasFlags(mm.FlagAccessed) || (kind == accessStore && !entry.pte.HasFlags(mm.FlagDirty)) {
		entry.pte.SetFlags(mm.FlagAccessed)
		if kind == accessStore {
			entry.pte.SetFlags(mm.FlagDirty)
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(entry.pte))
		if !h.mem.WritePhys(entry.pteAddr, buf[:]) {
			return 0, exception{kind.accessFault(), va}, true
		}
	}
	h.tlb[uint64(page)] = entry

	// Low bits of the PPN come from the VPN for superpages.
	levelMask := (uint64(1) << (9 * entry.level)) - 1
	ppn := uint64(entry.pte.Frame())&^levelMask | uint64(page)&levelMask
	return ppn<<mm.PageShift | mm.PageOffset(va), exception{}, false
}

func (h *Hart) walk(page mm.Page, kind accessKind, va uint64) (tlbEntry, exception, bool) {
	var (
		buf   [8]byte
		idx   = page.Indexes()
		table = SATPRoot(h.satp) << mm.PageShift
		fault = exception{kind.pageFault(), va}
	)

	for depth := 0; depth < mm.PageTableLevels; depth++ {
		pteAddr := table + idx[depth]<<mm.PTEShift
		if !h.mem.ReadPhys(pteAddr, buf[:]) {
			return tlbEntry{}, exception{kind.accessFault(), va}, false
		}

		pte := mm.PageTableEntry(binary.LittleEndian.Uint64(buf[:]))
		if !pte.Valid() || (!pte.HasFlags(mm.FlagRead) && pte.HasFlags(mm.FlagWrite)) {
			return tlbEntry{}, fault, false
		}

		level := mm.PageTableLevels - 1 - depth
		if pte.IsLeaf() {
			if misaligned := uint64(pte.Frame()) & ((uint64(1) << (9 * level)) - 1); misaligned != 0 {
				return tlbEntry{}, fault, false
			}
			return tlbEntry{pte: pte, pteAddr: pteAddr, level: level}, exception{}, true
		}

		table = pte.Frame().Address()
	}

	return tlbEntry{}, fault, false
}

// permitted applies the R/W/X/U checks of a leaf for the current privilege.
func (h *Hart) permitted(pte mm.PageTableEntry, kind accessKind) bool {
	user := pte.HasFlags(mm.FlagUser)
	switch {
	case h.priv == PrivUser && !user:
		return false
	case h.priv == PrivSupervisor && user && (kind == accessFetch || h.sstatus&SstatusSUM == 0):
		return false
	}

	switch kind {
	case accessFetch:
		return pte.HasFlags(mm.FlagExec)
	case accessLoad:
		return pte.HasFlags(mm.FlagRead)
	default:
		return pte.HasFlags(mm.FlagWrite)
	}
}
