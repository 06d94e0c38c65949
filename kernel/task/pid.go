package task

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/sync"
)

var (
	errPidNotAllocated = &kernel.Error{Module: "task", Message: "pid is not allocated"}
	errPidReleased     = &kernel.Error{Module: "task", Message: "pid released twice"}
)

type pidPool struct {
	next     uint64
	recycled []uint64
}

// PidAllocator hands out process identifiers. Released identifiers are
// reused before new ones are minted.
type PidAllocator struct {
	pool *sync.ExclusiveCell[pidPool]
}

// NewPidAllocator returns an allocator whose first pid is 0.
func NewPidAllocator() *PidAllocator {
	return &PidAllocator{pool: sync.NewExclusiveCell(pidPool{})}
}

// Alloc returns a handle for an unused pid.
func (a *PidAllocator) Alloc() *PidHandle {
	p := a.pool.Borrow()
	defer a.pool.Return()

	var pid uint64
	if n := len(p.recycled); n > 0 {
		pid = p.recycled[n-1]
		p.recycled = p.recycled[:n-1]
	} else {
		pid = p.next
		p.next++
	}
	return &PidHandle{pid: pid, alloc: a}
}

func (a *PidAllocator) dealloc(pid uint64) {
	p := a.pool.Borrow()
	defer a.pool.Return()

	kfmt.Assert(pid < p.next, errPidNotAllocated)
	for _, free := range p.recycled {
		kfmt.Assert(free != pid, errPidNotAllocated)
	}
	p.recycled = append(p.recycled, pid)
}

// PidHandle owns a pid until released.
type PidHandle struct {
	pid      uint64
	alloc    *PidAllocator
	released bool
}

// Pid returns the identifier.
func (h *PidHandle) Pid() uint64 { return h.pid }

// Release returns the pid to its allocator.
func (h *PidHandle) Release() {
	kfmt.Assert(!h.released, errPidReleased)
	h.released = true
	h.alloc.dealloc(h.pid)
}
