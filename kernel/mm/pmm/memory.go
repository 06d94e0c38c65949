// Package pmm manages physical memory: the frame arena holding the bytes of
// DRAM and the allocator handing out frames from it.
package pmm

import (
	"encoding/binary"
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
)

var (
	errFrameOutOfRange = &kernel.Error{Module: "pmm", Message: "frame outside of physical memory"}
)

// Memory is the arena backing the physical range [base, end). Frames are
// addressed by PPN and only reachable through bounds-checked views.
type Memory struct {
	base uint64
	data []byte
}

// NewMemory allocates the arena for [base, end). Both bounds are rounded to
// page boundaries.
func NewMemory(base, end uint64) *Memory {
	base = mm.FrameFromAddress(base).Address()
	end = mm.FrameFromAddress(end + mm.PageSize - 1).Address()
	return &Memory{base: base, data: make([]byte, end-base)}
}

// Base returns the first physical address of the arena.
func (m *Memory) Base() uint64 { return m.base }

// End returns the first physical address past the arena.
func (m *Memory) End() uint64 { return m.base + uint64(len(m.data)) }

// Size returns the arena size.
func (m *Memory) Size() mm.Size { return mm.Size(len(m.data)) }

// ContainsFrame returns true if the frame lies inside the arena.
func (m *Memory) ContainsFrame(frame mm.Frame) bool {
	addr := frame.Address()
	return addr >= m.base && addr < m.End()
}

// Bytes returns the 4 KiB view of a frame. Asking for a frame outside the
// arena is a kernel bug.
func (m *Memory) Bytes(frame mm.Frame) []byte {
	if !m.ContainsFrame(frame) {
		kfmt.Panic(errFrameOutOfRange)
	}
	off := frame.Address() - m.base
	return m.data[off : off+mm.PageSize : off+mm.PageSize]
}

// PageTable returns a view of a frame as an array of page table entries.
func (m *Memory) PageTable(frame mm.Frame) PTEView {
	return PTEView{buf: m.Bytes(frame)}
}

func (m *Memory) slice(pa uint64, n int) ([]byte, bool) {
	if pa < m.base || pa+uint64(n) > m.End() || pa+uint64(n) < pa {
		return nil, false
	}
	off := pa - m.base
	return m.data[off : off+uint64(n)], true
}

// ReadPhys copies len(p) bytes starting at physical address pa into p.
func (m *Memory) ReadPhys(pa uint64, p []byte) bool {
	src, ok := m.slice(pa, len(p))
	if ok {
		copy(p, src)
	}
	return ok
}

// WritePhys copies p to physical address pa.
func (m *Memory) WritePhys(pa uint64, p []byte) bool {
	dst, ok := m.slice(pa, len(p))
	if ok {
		copy(dst, p)
	}
	return ok
}

// PTEView is a typed view of a page table frame.
type PTEView struct {
	buf []byte
}

// Get returns the entry at index.
func (v PTEView) Get(index uint64) mm.PageTableEntry {
	return mm.PageTableEntry(binary.LittleEndian.Uint64(v.buf[index<<mm.PTEShift:]))
}

// Set stores pte at index.
func (v PTEView) Set(index uint64, pte mm.PageTableEntry) {
	binary.LittleEndian.PutUint64(v.buf[index<<mm.PTEShift:], uint64(pte))
}
