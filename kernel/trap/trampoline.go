package trap

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
)

// Entry points shared by every address space. The save and restore routines
// live in the trampoline page; the handler and return routines live in the
// kernel text right after it.
const (
	// SaveEntry is installed in stvec. User traps land here.
	SaveEntry = mm.Trampoline

	// RestoreEntry is where trap return switches to the user space.
	RestoreEntry = mm.Trampoline + 0x80

	// HandlerEntry is the kernel routine that dispatches a saved trap.
	HandlerEntry = mm.KernelBase + mm.PageSize

	// ReturnEntry is the kernel routine that returns to user mode. A fresh
	// task context points its ra here.
	ReturnEntry = HandlerEntry + 0x400
)

var (
	errNotAtEntry = &kernel.Error{Module: "trap", Message: "hart did not trap into the trampoline"}
	errFrameFault = &kernel.Error{Module: "trap", Message: "trap context page is not reachable through the active translation"}
)

// Save performs trap entry on a hart that has just trapped from user mode
// into SaveEntry. The user registers, sstatus and sepc are spilled into the
// trap context page through the user translation. The hart is then left on
// the kernel stack, with the kernel page table active and its PC at the
// handler recorded in the page.
func Save(hart *cpu.Hart) {
	kfmt.Assert(hart.PC == SaveEntry, errNotAtEntry)

	// csrrw sp, sscratch, sp
	userSP := hart.X[cpu.RegSP]
	hart.X[cpu.RegSP] = hart.ReadCSR(cpu.CSRSscratch)
	hart.WriteCSR(cpu.CSRSscratch, userSP)

	frame := hart.X[cpu.RegSP]
	spill := func(slot int, v uint64) {
		if t := hart.Store64(frame+uint64(slot)*8, v); t != nil {
			kfmt.Panic(errFrameFault)
		}
	}

	spill(cpu.RegRA, hart.X[cpu.RegRA])
	for reg := cpu.RegGP; reg < len(hart.X); reg++ {
		spill(reg, hart.X[reg])
	}
	spill(SlotSstatus, hart.ReadCSR(cpu.CSRSstatus))
	spill(SlotSepc, hart.ReadCSR(cpu.CSRSepc))
	spill(cpu.RegSP, hart.ReadCSR(cpu.CSRSscratch))

	satp, handler, kernelSP := load(hart, frame, SlotKernelSATP), load(hart, frame, SlotTrapHandler), load(hart, frame, SlotKernelSP)

	hart.X[cpu.RegSP] = kernelSP
	hart.SetSATP(satp)
	hart.PC = handler
}

// Return leaves the kernel for the user space selected by userSATP. It
// points stvec at the trampoline, switches to the user page table, reloads
// every register from the trap context page and executes sret. sscratch is
// left pointing at the trap context for the next trap entry.
func Return(hart *cpu.Hart, userSATP uint64) {
	hart.WriteCSR(cpu.CSRStvec, SaveEntry)
	hart.PC = RestoreEntry

	// __restore(a0 = trap context, a1 = user satp)
	hart.X[cpu.RegA0] = mm.TrapContextBase
	hart.X[cpu.RegA1] = userSATP
	hart.SetSATP(userSATP)

	frame := mm.TrapContextBase
	hart.X[cpu.RegSP] = frame
	hart.WriteCSR(cpu.CSRSstatus, load(hart, frame, SlotSstatus))
	hart.WriteCSR(cpu.CSRSepc, load(hart, frame, SlotSepc))
	hart.WriteCSR(cpu.CSRSscratch, load(hart, frame, cpu.RegSP))

	hart.X[cpu.RegRA] = load(hart, frame, cpu.RegRA)
	for reg := cpu.RegGP; reg < len(hart.X); reg++ {
		hart.X[reg] = load(hart, frame, reg)
	}

	// csrrw sp, sscratch, sp
	hart.X[cpu.RegSP], frame = hart.ReadCSR(cpu.CSRSscratch), hart.X[cpu.RegSP]
	hart.WriteCSR(cpu.CSRSscratch, frame)

	hart.Sret()
}

func load(hart *cpu.Hart, frame uint64, slot int) uint64 {
	v, t := hart.Load64(frame + uint64(slot)*8)
	if t != nil {
		kfmt.Panic(errFrameFault)
	}
	return v
}
