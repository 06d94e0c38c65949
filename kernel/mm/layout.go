package mm

import "math"

// Virtual layout shared by the kernel and user binaries.
const (
	// Trampoline is the top page of every address space. It holds the trap
	// entry and return routines and is mapped at the same address in the
	// kernel and in every user space.
	Trampoline = uint64(math.MaxUint64) - PageSize + 1

	// TrapContextBase is the page right below the trampoline that stores the
	// saved registers of the process owning the address space.
	TrapContextBase = Trampoline - PageSize

	// UserStackSize is the size of a user stack in bytes.
	UserStackSize = 2 * PageSize

	// UserStackTop is the initial user stack pointer. A guard page separates
	// the stack from the trap context.
	UserStackTop = TrapContextBase - PageSize

	// UserStackBottom is the lowest address of the user stack.
	UserStackBottom = UserStackTop - UserStackSize

	// MmapTop is where the mmap region starts growing down from, one guard
	// page below the user stack.
	MmapTop = UserStackBottom - PageSize

	// LowerHalfEnd is one past the last canonical address of the lower half.
	// User images and the heap live below it.
	LowerHalfEnd = uint64(1) << (VirtAddrBits - 1)

	// UpperHalfBase is the first canonical address of the upper half. The
	// mmap region never grows below it.
	UpperHalfBase = uint64(math.MaxUint64) - LowerHalfEnd + 1

	// KernelStackSize is the size of a kernel stack in bytes.
	KernelStackSize = 2 * PageSize
)

// KernelStackRange returns the [bottom, top) range of the kernel stack for
// the process with the given pid. Stacks are stacked down from the
// trampoline and separated by one guard page each.
func KernelStackRange(pid uint64) (bottom, top uint64) {
	top = Trampoline - pid*(KernelStackSize+PageSize)
	return top - KernelStackSize, top
}

// Physical layout of the QEMU virt board.
const (
	// RAMBase is the first byte of DRAM.
	RAMBase = uint64(0x8000_0000)

	// KernelBase is where the SBI firmware jumps to the kernel image.
	KernelBase = uint64(0x8020_0000)

	// DefaultMemoryEnd is the end of the physical memory managed by the
	// kernel (8 MiB of DRAM).
	DefaultMemoryEnd = uint64(0x8080_0000)
)

// MMIORange describes a device register window.
type MMIORange struct {
	Name string
	Base uint64
	Size uint64
}

// MMIO lists the device windows identity-mapped into the kernel space.
var MMIO = []MMIORange{
	{"virt_test", 0x0010_0000, 0x1000},
	{"clint", 0x0200_0000, 0x1_0000},
	{"plic", 0x0c00_0000, 0x21_0000},
	{"uart0", 0x1000_0000, 0x1000},
	{"virtio0", 0x1000_1000, 0x1000},
}
