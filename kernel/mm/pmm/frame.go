package pmm

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
)

var (
	errDoubleRelease = &kernel.Error{Module: "frame_alloc", Message: "frame handle released twice"}
	errUseAfterFree  = &kernel.Error{Module: "frame_alloc", Message: "frame handle used after release"}
)

// FrameHandle owns one allocated frame. The frame is zeroed when the handle
// is created and goes back to the pool when Release is called, exactly once.
type FrameHandle struct {
	alloc    *FrameAllocator
	frame    mm.Frame
	released bool
}

func newFrameHandle(alloc *FrameAllocator, frame mm.Frame) *FrameHandle {
	kernel.Memset(alloc.mem.Bytes(frame), 0)
	return &FrameHandle{alloc: alloc, frame: frame}
}

// Frame returns the PPN owned by the handle.
func (h *FrameHandle) Frame() mm.Frame {
	return h.frame
}

// Bytes returns the contents of the frame.
func (h *FrameHandle) Bytes() []byte {
	if h.released {
		kfmt.Panic(errUseAfterFree)
	}
	return h.alloc.mem.Bytes(h.frame)
}

// PageTable returns the frame viewed as a page table node.
func (h *FrameHandle) PageTable() PTEView {
	return PTEView{buf: h.Bytes()}
}

// Release returns the frame to the allocator.
func (h *FrameHandle) Release() {
	if h.released {
		kfmt.Panic(errDoubleRelease)
		return
	}
	h.released = true
	h.alloc.Dealloc(h.frame)
}
