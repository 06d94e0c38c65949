package cpu

import "encoding/binary"

// PhysMemory is the physical address space seen by the hart. Accesses
// outside of any backing store return false and surface as access faults.
type PhysMemory interface {
	ReadPhys(pa uint64, p []byte) bool
	WritePhys(pa uint64, p []byte) bool
}

// Trap describes a trap taken by the hart.
type Trap struct {
	Cause uint64
	Tval  uint64
	PC    uint64
}

// IsInterrupt returns true for asynchronous traps.
func (t Trap) IsInterrupt() bool {
	return t.Cause&InterruptBit != 0
}

// Hart is a single RV64IM hardware thread with U and S privilege levels.
// Kernel code runs as Go code in S-mode and drives the hart through its CSR
// accessors; user code is interpreted by Run.
type Hart struct {
	// X holds the general purpose registers. X[0] always reads as zero.
	X [32]uint64

	// PC is the address of the next instruction.
	PC uint64

	priv Privilege

	sstatus  uint64
	sie      uint64
	stvec    uint64
	sscratch uint64
	sepc     uint64
	scause   uint64
	stval    uint64
	satp     uint64
	stimecmp uint64

	time    uint64
	instret uint64

	mem PhysMemory
	tlb map[uint64]tlbEntry
}

// NewHart returns a hart in S-mode with translation disabled.
func NewHart(mem PhysMemory) *Hart {
	return &Hart{
		priv:     PrivSupervisor,
		stimecmp: ^uint64(0),
		mem:      mem,
		tlb:      make(map[uint64]tlbEntry),
	}
}

// Privilege returns the current privilege level.
func (h *Hart) Privilege() Privilege {
	return h.priv
}

// Time returns the value of the time CSR.
func (h *Hart) Time() uint64 {
	return h.time
}

// Advance moves the time counter forward. The kernel charges its own work
// to the clock with it.
func (h *Hart) Advance(ticks uint64) {
	h.time += ticks
}

// Retired returns the number of retired user instructions.
func (h *Hart) Retired() uint64 {
	return h.instret
}

// ReadCSR returns the value of a CSR.
func (h *Hart) ReadCSR(csr uint16) uint64 {
	switch csr {
	case CSRSstatus:
		return h.sstatus
	case CSRSie:
		return h.sie
	case CSRStvec:
		return h.stvec
	case CSRSscratch:
		return h.sscratch
	case CSRSepc:
		return h.sepc
	case CSRScause:
		return h.scause
	case CSRStval:
		return h.stval
	case CSRSip:
		return h.sip()
	case CSRStimecmp:
		return h.stimecmp
	case CSRSatp:
		return h.satp
	case CSRTime, CSRCycle:
		return h.time
	case CSRInstret:
		return h.instret
	}
	return 0
}

// WriteCSR updates a CSR. Writes to read-only counters are ignored. Writing
// satp does not flush the TLB; that takes an explicit FlushTLB.
func (h *Hart) WriteCSR(csr uint16, v uint64) {
	switch csr {
	case CSRSstatus:
		h.sstatus = v & (SstatusSIE | SstatusSPIE | SstatusSPP | SstatusSUM)
	case CSRSie:
		h.sie = v & (SieSSIE | SieSTIE | SieSEIE)
	case CSRStvec:
		h.stvec = v
	case CSRSscratch:
		h.sscratch = v
	case CSRSepc:
		h.sepc = v
	case CSRScause:
		h.scause = v
	case CSRStval:
		h.stval = v
	case CSRStimecmp:
		h.stimecmp = v
	case CSRSatp:
		mode := v >> satpModeShift
		if mode == SATPModeBare || mode == SATPModeSv39 {
			h.satp = v
		}
	}
}

// SetCSRBits sets bits of a CSR (csrs).
func (h *Hart) SetCSRBits(csr uint16, bits uint64) {
	h.WriteCSR(csr, h.ReadCSR(csr)|bits)
}

// ClearCSRBits clears bits of a CSR (csrc).
func (h *Hart) ClearCSRBits(csr uint16, bits uint64) {
	h.WriteCSR(csr, h.ReadCSR(csr)&^bits)
}

// SetSATP installs a new root page table and flushes the TLB.
func (h *Hart) SetSATP(satp uint64) {
	h.WriteCSR(CSRSatp, satp)
	h.FlushTLB()
}

// FlushTLB drops every cached translation (sfence.vma).
func (h *Hart) FlushTLB() {
	for vpn := range h.tlb {
		delete(h.tlb, vpn)
	}
}

// Sret returns from S-mode to the privilege recorded in sstatus.SPP and
// resumes at sepc.
func (h *Hart) Sret() {
	if h.sstatus&SstatusSPP != 0 {
		h.priv = PrivSupervisor
	} else {
		h.priv = PrivUser
	}

	if h.sstatus&SstatusSPIE != 0 {
		h.sstatus |= SstatusSIE
	} else {
		h.sstatus &^= SstatusSIE
	}
	h.sstatus |= SstatusSPIE
	h.sstatus &^= SstatusSPP
	h.PC = h.sepc
}

// sip reports pending interrupts; the timer is pending once time reaches
// stimecmp.
func (h *Hart) sip() uint64 {
	if h.time >= h.stimecmp {
		return SieSTIE
	}
	return 0
}

// pendingInterrupt returns the cause of an interrupt that must be taken
// before the next instruction.
func (h *Hart) pendingInterrupt() (uint64, bool) {
	enabled := h.priv == PrivUser || h.sstatus&SstatusSIE != 0
	if !enabled {
		return 0, false
	}
	if h.sip()&h.sie&SieSTIE != 0 {
		return CauseSupervisorTimer, true
	}
	return 0, false
}

// takeTrap performs the hardware part of trap entry.
func (h *Hart) takeTrap(cause, tval uint64) Trap {
	h.sepc = h.PC
	h.scause = cause
	h.stval = tval

	if h.priv == PrivSupervisor {
		h.sstatus |= SstatusSPP
	} else {
		h.sstatus &^= SstatusSPP
	}
	if h.sstatus&SstatusSIE != 0 {
		h.sstatus |= SstatusSPIE
	} else {
		h.sstatus &^= SstatusSPIE
	}
	h.sstatus &^= SstatusSIE
	h.priv = PrivSupervisor

	// Only direct mode; the low two bits select vectored mode which the
	// kernel never uses.
	h.PC = h.stvec &^ 3

	return Trap{Cause: cause, Tval: tval, PC: h.sepc}
}

// Run interprets instructions until a trap is taken. The trap has already
// been entered when Run returns: privilege is S, PC holds stvec and
// sepc/scause/stval describe it.
func (h *Hart) Run() Trap {
	for {
		if cause, pending := h.pendingInterrupt(); pending {
			return h.takeTrap(cause, 0)
		}

		if exc, raised := h.step(); raised {
			return h.takeTrap(exc.cause, exc.tval)
		}
	}
}

// Step executes a single user instruction. It returns the trap if the
// instruction (or a pending interrupt) caused one.
func (h *Hart) Step() (Trap, bool) {
	if cause, pending := h.pendingInterrupt(); pending {
		return h.takeTrap(cause, 0), true
	}
	if exc, raised := h.step(); raised {
		return h.takeTrap(exc.cause, exc.tval), true
	}
	return Trap{}, false
}

// Load64 reads a doubleword at a virtual address using the current
// privilege and translation mode. Kernel code uses it to reach pages that
// are only visible through the active satp.
func (h *Hart) Load64(va uint64) (uint64, *Trap) {
	var buf [8]byte
	if exc, raised := h.access(va, buf[:], accessLoad); raised {
		return 0, &Trap{Cause: exc.cause, Tval: exc.tval, PC: h.PC}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Store64 writes a doubleword at a virtual address using the current
// privilege and translation mode.
func (h *Hart) Store64(va, v uint64) *Trap {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	if exc, raised := h.access(va, buf[:], accessStore); raised {
		return &Trap{Cause: exc.cause, Tval: exc.tval, PC: h.PC}
	}
	return nil
}
