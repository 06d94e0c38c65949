package task

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/vmm"
	"mikuos/kernel/sync"
)

var errKernelStackReleased = &kernel.Error{Module: "task", Message: "kernel stack released twice"}

// KernelStack is the per-process kernel stack. It is a framed area of the
// kernel space placed by pid below the trampoline, with a guard page under
// each stack.
type KernelStack struct {
	space    *sync.ExclusiveCell[*vmm.AddressSpace]
	bottom   uint64
	top      uint64
	released bool
}

// NewKernelStack maps the kernel stack for pid.
func NewKernelStack(space *sync.ExclusiveCell[*vmm.AddressSpace], pid uint64) (*KernelStack, *kernel.Error) {
	bottom, top := mm.KernelStackRange(pid)

	var err *kernel.Error
	space.With(func(ks **vmm.AddressSpace) {
		err = (*ks).InsertFramedArea(bottom, top, vmm.PermRead|vmm.PermWrite)
	})
	if err != nil {
		return nil, err
	}
	return &KernelStack{space: space, bottom: bottom, top: top}, nil
}

// Top returns the initial stack pointer.
func (s *KernelStack) Top() uint64 { return s.top }

// Bottom returns the lowest stack address.
func (s *KernelStack) Bottom() uint64 { return s.bottom }

// Release unmaps the stack and frees its frames.
func (s *KernelStack) Release() {
	kfmt.Assert(!s.released, errKernelStackReleased)
	s.released = true
	s.space.With(func(ks **vmm.AddressSpace) {
		(*ks).RemoveArea(s.bottom)
	})
}
