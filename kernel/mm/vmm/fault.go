package vmm

import (
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
)

// FaultReason explains a memory fault raised while the space behind pt was
// active.
func FaultReason(pt *PageTable, cause, faultAddress uint64) string {
	_, mapped := pt.Translate(mm.PageFromAddress(faultAddress))

	switch {
	case cause == cpu.CauseLoadPageFault && !mapped:
		return "read from non-present page"
	case cause == cpu.CauseLoadPageFault:
		return "page protection violation (read)"
	case cause == cpu.CauseStorePageFault && !mapped:
		return "write to non-present page"
	case cause == cpu.CauseStorePageFault:
		return "page protection violation (write)"
	case cause == cpu.CauseInstructionPageFault && !mapped:
		return "instruction fetch from non-present page"
	case cause == cpu.CauseInstructionPageFault:
		return "page protection violation (fetch)"
	case cause == cpu.CauseLoadFault, cause == cpu.CauseStoreFault, cause == cpu.CauseInstructionFault:
		return "access outside of physical memory"
	default:
		return "unknown"
	}
}

// ReportFault prints a fault raised by user code at pc to the console.
func ReportFault(pt *PageTable, cause, faultAddress, pc uint64) {
	kfmt.Printf("\n%s while accessing address: 0x%16x\nReason: %s\nInstruction: 0x%x\n",
		cpu.CauseName(cause), faultAddress, FaultReason(pt, cause, faultAddress), pc)
}
