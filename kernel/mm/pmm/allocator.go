package pmm

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/sync"
)

var (
	// ErrOutOfMemory is returned when the frame pool is exhausted.
	ErrOutOfMemory = &kernel.Error{Module: "frame_alloc", Message: "out of memory"}

	errFrameNotAllocated = &kernel.Error{Module: "frame_alloc", Message: "frame is not allocated"}
	errZeroFrames        = &kernel.Error{Module: "frame_alloc", Message: "contiguous allocation of zero frames"}
)

// poolState is the mutable part of the allocator. Frames in [start, current)
// have been handed out at least once; those on the recycled stack are free
// again.
type poolState struct {
	current  mm.Frame
	end      mm.Frame
	recycled []mm.Frame
	free     map[mm.Frame]struct{}
}

// FrameAllocator hands out the frames of [start, end). It bumps a boundary
// for fresh frames and keeps a LIFO stack of released ones, which it prefers.
type FrameAllocator struct {
	mem   *Memory
	start mm.Frame
	pool  *sync.ExclusiveCell[poolState]
}

// NewFrameAllocator returns an allocator for the frames of [start, end). The
// range must lie inside mem.
func NewFrameAllocator(mem *Memory, start, end mm.Frame) *FrameAllocator {
	if start > end || !mem.ContainsFrame(start) || (end > start && !mem.ContainsFrame(end-1)) {
		kfmt.Panic(errFrameOutOfRange)
	}

	return &FrameAllocator{
		mem:   mem,
		start: start,
		pool: sync.NewExclusiveCell(poolState{
			current: start,
			end:     end,
			free:    make(map[mm.Frame]struct{}),
		}),
	}
}

// Memory returns the arena the allocator carves frames from.
func (a *FrameAllocator) Memory() *Memory {
	return a.mem
}

// Range returns the [start, end) frames managed by the allocator.
func (a *FrameAllocator) Range() (mm.Frame, mm.Frame) {
	st := a.pool.Borrow()
	defer a.pool.Return()
	return a.start, st.end
}

// AllocFrame reserves a frame without wrapping it in a handle or clearing it.
func (a *FrameAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	st := a.pool.Borrow()
	defer a.pool.Return()

	if n := len(st.recycled); n > 0 {
		frame := st.recycled[n-1]
		st.recycled = st.recycled[:n-1]
		delete(st.free, frame)
		return frame, nil
	}

	if st.current == st.end {
		return mm.InvalidFrame, ErrOutOfMemory
	}

	frame := st.current
	st.current++
	return frame, nil
}

// Alloc reserves a zero-filled frame and wraps it in a handle that returns
// it to the pool once released.
func (a *FrameAllocator) Alloc() (*FrameHandle, *kernel.Error) {
	frame, err := a.AllocFrame()
	if err != nil {
		return nil, err
	}
	return newFrameHandle(a, frame), nil
}

// Dealloc returns a frame to the pool. Freeing a frame that is not currently
// allocated is a kernel bug.
func (a *FrameAllocator) Dealloc(frame mm.Frame) {
	st := a.pool.Borrow()
	defer a.pool.Return()

	if !st.live(a.start, frame) {
		kfmt.Panic(errFrameNotAllocated)
		return
	}

	st.recycled = append(st.recycled, frame)
	st.free[frame] = struct{}{}
}

// AllocContiguous reserves count physically contiguous frames from the bump
// region. Either all frames are reserved or none are.
func (a *FrameAllocator) AllocContiguous(count uint64) ([]*FrameHandle, *kernel.Error) {
	if count == 0 {
		return nil, errZeroFrames
	}

	st := a.pool.Borrow()
	if uint64(st.end-st.current) < count {
		a.pool.Return()
		return nil, ErrOutOfMemory
	}
	first := st.current
	st.current += mm.Frame(count)
	a.pool.Return()

	handles := make([]*FrameHandle, count)
	for i := range handles {
		handles[i] = newFrameHandle(a, first+mm.Frame(i))
	}
	return handles, nil
}

// DeallocContiguous returns count frames starting at first.
func (a *FrameAllocator) DeallocContiguous(first mm.Frame, count uint64) {
	for i := uint64(0); i < count; i++ {
		a.Dealloc(first + mm.Frame(i))
	}
}

// Live returns true if frame is currently allocated.
func (a *FrameAllocator) Live(frame mm.Frame) bool {
	st := a.pool.Borrow()
	defer a.pool.Return()
	return st.live(a.start, frame)
}

// FreeFrames returns the number of frames that can still be allocated.
func (a *FrameAllocator) FreeFrames() uint64 {
	st := a.pool.Borrow()
	defer a.pool.Return()
	return uint64(st.end-st.current) + uint64(len(st.recycled))
}

// Occupancy reports, for each frame of the managed range, whether it is
// currently allocated.
func (a *FrameAllocator) Occupancy() []bool {
	st := a.pool.Borrow()
	defer a.pool.Return()

	used := make([]bool, st.end-a.start)
	for frame := a.start; frame < st.current; frame++ {
		_, free := st.free[frame]
		used[frame-a.start] = !free
	}
	return used
}

func (st *poolState) live(start, frame mm.Frame) bool {
	if frame < start || frame >= st.current {
		return false
	}
	_, free := st.free[frame]
	return !free
}
