// Package cpu models the single RV64 hart the kernel runs on: its general
// purpose registers, the supervisor CSRs, the SV39 MMU and a user-mode
// instruction interpreter.
package cpu

import "mikuos/kernel"

var (
	// ErrHalted is the value a halted hart panics with. The host recovers
	// it to tear the machine down.
	ErrHalted = &kernel.Error{Module: "cpu", Message: "hart halted"}
)

// Halt stops instruction execution. It never returns.
func Halt() {
	panic(ErrHalted)
}

// Privilege is the privilege level the hart is executing at.
type Privilege uint8

const (
	// PrivUser is U-mode.
	PrivUser Privilege = 0
	// PrivSupervisor is S-mode.
	PrivSupervisor Privilege = 1
)

// String implements fmt.Stringer.
func (p Privilege) String() string {
	if p == PrivUser {
		return "U"
	}
	return "S"
}

// Supervisor CSR numbers.
const (
	CSRSstatus  = 0x100
	CSRSie      = 0x104
	CSRStvec    = 0x105
	CSRSscratch = 0x140
	CSRSepc     = 0x141
	CSRScause   = 0x142
	CSRStval    = 0x143
	CSRSip      = 0x144
	CSRStimecmp = 0x14d
	CSRSatp     = 0x180
	CSRCycle    = 0xc00
	CSRTime     = 0xc01
	CSRInstret  = 0xc02
)

// sstatus bits.
const (
	SstatusSIE  = uint64(1) << 1
	SstatusSPIE = uint64(1) << 5
	SstatusSPP  = uint64(1) << 8
	SstatusSUM  = uint64(1) << 18
)

// sie/sip bits.
const (
	SieSSIE = uint64(1) << 1
	SieSTIE = uint64(1) << 5
	SieSEIE = uint64(1) << 9
)

// InterruptBit is set in scause for asynchronous traps.
const InterruptBit = uint64(1) << 63

// scause values.
const (
	CauseInstructionMisaligned = uint64(0)
	CauseInstructionFault      = uint64(1)
	CauseIllegalInstruction    = uint64(2)
	CauseBreakpoint            = uint64(3)
	CauseLoadMisaligned        = uint64(4)
	CauseLoadFault             = uint64(5)
	CauseStoreMisaligned       = uint64(6)
	CauseStoreFault            = uint64(7)
	CauseUserEnvCall           = uint64(8)
	CauseSupervisorEnvCall     = uint64(9)
	CauseInstructionPageFault  = uint64(12)
	CauseLoadPageFault         = uint64(13)
	CauseStorePageFault        = uint64(15)

	CauseSupervisorSoft  = InterruptBit | 1
	CauseSupervisorTimer = InterruptBit | 5
	CauseSupervisorExt   = InterruptBit | 9
)

// CauseName returns a human readable name for an scause value.
func CauseName(cause uint64) string {
	switch cause {
	case CauseInstructionMisaligned:
		return "instruction address misaligned"
	case CauseInstructionFault:
		return "instruction access fault"
	case CauseIllegalInstruction:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseLoadMisaligned:
		return "load address misaligned"
	case CauseLoadFault:
		return "load access fault"
	case CauseStoreMisaligned:
		return "store address misaligned"
	case CauseStoreFault:
		return "store access fault"
	case CauseUserEnvCall:
		return "environment call from U-mode"
	case CauseSupervisorEnvCall:
		return "environment call from S-mode"
	case CauseInstructionPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStorePageFault:
		return "store page fault"
	case CauseSupervisorSoft:
		return "supervisor software interrupt"
	case CauseSupervisorTimer:
		return "supervisor timer interrupt"
	case CauseSupervisorExt:
		return "supervisor external interrupt"
	}
	return "unknown"
}

// SATP modes.
const (
	SATPModeBare = uint64(0)
	SATPModeSv39 = uint64(8)

	satpModeShift = 60
	satpPPNMask   = (uint64(1) << 44) - 1
)

// MakeSATP packs a root page table PPN with the SV39 mode tag.
func MakeSATP(rootPPN uint64) uint64 {
	return SATPModeSv39<<satpModeShift | rootPPN&satpPPNMask
}

// SATPRoot extracts the root PPN from a satp value.
func SATPRoot(satp uint64) uint64 {
	return satp & satpPPNMask
}

// Register ABI names used by the kernel.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegS0   = 8
	RegS1   = 9
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA6   = 16
	RegA7   = 17
	RegS2   = 18
)

// CalleeSavedRegs lists s0..s11 in order.
var CalleeSavedRegs = [12]int{8, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}
