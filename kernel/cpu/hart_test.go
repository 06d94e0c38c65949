package cpu

import (
	"encoding/binary"
	"mikuos/kernel/mm"
	"testing"
)

// flatMemory backs the physical range [0, len(buf)).
type flatMemory struct {
	buf []byte
}

func (m *flatMemory) ReadPhys(pa uint64, p []byte) bool {
	if pa+uint64(len(p)) > uint64(len(m.buf)) {
		return false
	}
	copy(p, m.buf[pa:])
	return true
}

func (m *flatMemory) WritePhys(pa uint64, p []byte) bool {
	if pa+uint64(len(p)) > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[pa:], p)
	return true
}

func (m *flatMemory) putInstrs(pa uint64, instrs ...uint32) {
	for i, instr := range instrs {
		binary.LittleEndian.PutUint32(m.buf[pa+uint64(i*4):], instr)
	}
}

func (m *flatMemory) setPTE(table mm.Frame, index uint64, pte mm.PageTableEntry) {
	binary.LittleEndian.PutUint64(m.buf[table.Address()+index*8:], uint64(pte))
}

func (m *flatMemory) pte(table mm.Frame, index uint64) mm.PageTableEntry {
	return mm.PageTableEntry(binary.LittleEndian.Uint64(m.buf[table.Address()+index*8:]))
}

func encI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encS(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1f)<<7 | opStore
}

func encR(opcode, funct7, rd, funct3, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encB(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u>>1&0xf)<<8 | (u>>11&1)<<7 | opBranch
}

func encJ(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | rd<<7 | opJal
}

func enterUser(h *Hart, entry uint64) {
	h.ClearCSRBits(CSRSstatus, SstatusSPP)
	h.WriteCSR(CSRSepc, entry)
	h.Sret()
}

func TestHartBareModeExecution(t *testing.T) {
	mem := &flatMemory{buf: make([]byte, 0x4000)}
	mem.putInstrs(0x1000,
		encI(opImm, 1, 0, 0, 5),            // addi ra, zero, 5
		encI(opImm, 2, 0, 1, -3),           // addi sp, ra, -3
		encR(opReg, 0, 3, 0, 1, 2),         // add gp, ra, sp
		encR(opReg, funct7Alt, 4, 0, 2, 1), // sub tp, sp, ra
		encS(0b011, 0, 3, 0x800-8),         // sd gp, 0x7f8(zero)
		encI(opLoad, 5, 0b011, 0, 0x7f8),   // ld t0, 0x7f8(zero)
		instrEcall,
	)

	h := NewHart(mem)
	h.WriteCSR(CSRStvec, 0x3000)
	enterUser(h, 0x1000)

	if h.Privilege() != PrivUser {
		t.Fatalf("expected sret to drop to U-mode; got %s", h.Privilege())
	}

	trap := h.Run()
	if trap.Cause != CauseUserEnvCall {
		t.Fatalf("expected an environment call trap; got %s", CauseName(trap.Cause))
	}

	if exp := uint64(0x1018); h.ReadCSR(CSRSepc) != exp || trap.PC != exp {
		t.Fatalf("expected sepc to point at the ecall (%x); got %x", exp, h.ReadCSR(CSRSepc))
	}

	if h.PC != 0x3000 || h.Privilege() != PrivSupervisor {
		t.Fatalf("expected the trap to enter S-mode at stvec; got pc %x in %s", h.PC, h.Privilege())
	}

	specs := []struct {
		reg int
		exp uint64
	}{
		{1, 5},
		{2, 2},
		{3, 7},
		{4, ^uint64(2)},
		{5, 7},
	}
	for _, spec := range specs {
		if got := h.X[spec.reg]; got != spec.exp {
			t.Errorf("expected x%d to be %d; got %d", spec.reg, spec.exp, got)
		}
	}

	if h.Retired() != 6 || h.Time() != 6 {
		t.Errorf("expected 6 retired instructions; got %d (time %d)", h.Retired(), h.Time())
	}
}

func TestHartBranchesAndJumps(t *testing.T) {
	mem := &flatMemory{buf: make([]byte, 0x4000)}
	// Sum 1..10 into a0.
	mem.putInstrs(0x1000,
		encI(opImm, 10, 0, 0, 0),     // li a0, 0
		encI(opImm, 5, 0, 0, 10),     // li t0, 10
		encR(opReg, 0, 10, 0, 10, 5), // loop: add a0, a0, t0
		encI(opImm, 5, 0, 5, -1),     // addi t0, t0, -1
		encB(0b001, 5, 0, -8),        // bnez t0, loop
		encJ(1, 8),                   // jal ra, +8
		encI(opImm, 10, 0, 0, 0),     // skipped
		instrEcall,
	)

	h := NewHart(mem)
	enterUser(h, 0x1000)
	h.Run()

	if h.X[10] != 55 {
		t.Fatalf("expected a0 to hold 55; got %d", h.X[10])
	}
	if h.X[1] != 0x1018 {
		t.Fatalf("expected ra to hold the return address 0x1018; got %x", h.X[1])
	}
}

// buildTable maps VA 0x10000 to PA 0x8000 (code) and VA 0x11000 to PA 0x9000
// (data) with a root at 0x1000 and intermediate tables at 0x2000/0x3000.
func buildTable(mem *flatMemory, dataFlags mm.PageTableEntryFlag) uint64 {
	root, mid, leaf := mm.Frame(1), mm.Frame(2), mm.Frame(3)
	mem.setPTE(root, 0, mm.NewPageTableEntry(mid, mm.FlagValid))
	mem.setPTE(mid, 0, mm.NewPageTableEntry(leaf, mm.FlagValid))
	mem.setPTE(leaf, 0x10, mm.NewPageTableEntry(mm.Frame(8), mm.FlagValid|mm.FlagRead|mm.FlagExec|mm.FlagUser))
	mem.setPTE(leaf, 0x11, mm.NewPageTableEntry(mm.Frame(9), mm.FlagValid|dataFlags))
	return MakeSATP(uint64(root))
}

func TestHartSv39Translation(t *testing.T) {
	mem := &flatMemory{buf: make([]byte, 0x10000)}
	satp := buildTable(mem, mm.FlagRead|mm.FlagWrite|mm.FlagUser)
	mem.putInstrs(0x8000,
		encI(opImm, 5, 0, 0, 0x7ff),   // li t0, 0x7ff
		encI(opImm, 6, 0, 0, 0x11),    // li t1, 0x11
		encI(opImm, 6, 0b001, 6, 12),  // slli t1, t1, 12
		encS(0b010, 6, 5, 16),         // sw t0, 16(t1)
		encI(opLoad, 7, 0b100, 6, 16), // lbu t2, 16(t1)
		encS(0b011, 0, 5, 0),          // sd t0, 0(zero) -> fault
	)

	h := NewHart(mem)
	h.SetSATP(satp)
	enterUser(h, 0x10000)
	trap := h.Run()

	if trap.Cause != CauseStorePageFault || trap.Tval != 0 {
		t.Fatalf("expected a store page fault at address 0; got %s at %x", CauseName(trap.Cause), trap.Tval)
	}

	if h.X[7] != 0xff {
		t.Fatalf("expected t2 to hold 0xff; got %x", h.X[7])
	}

	if got := binary.LittleEndian.Uint32(mem.buf[0x9010:]); got != 0x7ff {
		t.Fatalf("expected the store to land in frame 9; got %x", got)
	}

	dataPTE := mem.pte(mm.Frame(3), 0x11)
	if !dataPTE.HasFlags(mm.FlagAccessed | mm.FlagDirty) {
		t.Fatalf("expected the MMU to set A and D on the data page; got flags %x", dataPTE.Flags())
	}

	if pa, ok := h.Translate(0x11abc); ok {
		// S-mode cannot read user pages without SUM.
		t.Fatalf("expected S-mode translation of a user page to fail; got %x", pa)
	}

	h.SetCSRBits(CSRSstatus, SstatusSUM)
	if pa, ok := h.Translate(0x11abc); !ok || pa != 0x9abc {
		t.Fatalf("expected 0x11abc to translate to 0x9abc with SUM set; got %x, %t", pa, ok)
	}
}

func TestHartPermissionFaults(t *testing.T) {
	specs := []struct {
		descr     string
		dataFlags mm.PageTableEntryFlag
		instr     uint32
		expCause  uint64
	}{
		{"store to read-only page", mm.FlagRead | mm.FlagUser, encS(0b011, 6, 0, 0), CauseStorePageFault},
		{"load from supervisor page", mm.FlagRead | mm.FlagWrite, encI(opLoad, 5, 0b011, 6, 0), CauseLoadPageFault},
		{"jump to data page", mm.FlagRead | mm.FlagWrite | mm.FlagUser, encI(opJalr, 0, 0, 6, 0), CauseInstructionPageFault},
		{"sret in user mode", mm.FlagRead | mm.FlagUser, 0x10200073, CauseIllegalInstruction},
		{"csr write in user mode", mm.FlagRead | mm.FlagUser, encI(opSystem, 0, 0b001, 5, CSRSatp), CauseIllegalInstruction},
		{"compressed instruction", mm.FlagRead | mm.FlagUser, 0x00000001, CauseIllegalInstruction},
		{"breakpoint", mm.FlagRead | mm.FlagUser, instrEbrk, CauseBreakpoint},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			mem := &flatMemory{buf: make([]byte, 0x10000)}
			satp := buildTable(mem, spec.dataFlags)
			mem.putInstrs(0x8000,
				encI(opImm, 6, 0, 0, 0x11),   // li t1, 0x11
				encI(opImm, 6, 0b001, 6, 12), // slli t1, t1, 12
				spec.instr,
			)

			h := NewHart(mem)
			h.SetSATP(satp)
			enterUser(h, 0x10000)

			if trap := h.Run(); trap.Cause != spec.expCause {
				t.Fatalf("expected %s; got %s", CauseName(spec.expCause), CauseName(trap.Cause))
			}
		})
	}
}

func TestHartTimerInterrupt(t *testing.T) {
	mem := &flatMemory{buf: make([]byte, 0x4000)}
	mem.putInstrs(0x1000, encJ(0, 0)) // j .

	h := NewHart(mem)
	h.WriteCSR(CSRStimecmp, 100)
	h.SetCSRBits(CSRSie, SieSTIE)
	enterUser(h, 0x1000)

	trap := h.Run()
	if trap.Cause != CauseSupervisorTimer || !trap.IsInterrupt() {
		t.Fatalf("expected a timer interrupt; got %s", CauseName(trap.Cause))
	}

	if h.Time() != 100 {
		t.Fatalf("expected the interrupt to fire at time 100; got %d", h.Time())
	}

	if h.ReadCSR(CSRSepc) != 0x1000 {
		t.Fatalf("expected sepc to point at the interrupted instruction; got %x", h.ReadCSR(CSRSepc))
	}

	if h.ReadCSR(CSRSip)&SieSTIE == 0 {
		t.Fatal("expected the timer to be pending")
	}

	h.WriteCSR(CSRStimecmp, 200)
	if h.ReadCSR(CSRSip)&SieSTIE != 0 {
		t.Fatal("expected re-arming the timer to clear the pending bit")
	}
}

func TestSretRestoresInterruptState(t *testing.T) {
	h := NewHart(&flatMemory{})
	h.WriteCSR(CSRSstatus, SstatusSPP|SstatusSPIE)
	h.WriteCSR(CSRSepc, 0x42)
	h.Sret()

	if h.Privilege() != PrivSupervisor || h.PC != 0x42 {
		t.Fatalf("expected to return to S-mode at 0x42; got %s at %x", h.Privilege(), h.PC)
	}

	status := h.ReadCSR(CSRSstatus)
	if status&SstatusSIE == 0 || status&SstatusSPIE == 0 || status&SstatusSPP != 0 {
		t.Fatalf("unexpected sstatus after sret: %x", status)
	}
}

func TestKernelAccessors(t *testing.T) {
	mem := &flatMemory{buf: make([]byte, 0x10000)}
	satp := buildTable(mem, mm.FlagRead|mm.FlagWrite)

	h := NewHart(mem)
	h.SetSATP(satp)

	if tr := h.Store64(0x11008, 0xdeadbeef); tr != nil {
		t.Fatalf("unexpected trap storing to a kernel page: %s", CauseName(tr.Cause))
	}

	v, tr := h.Load64(0x11008)
	if tr != nil || v != 0xdeadbeef {
		t.Fatalf("expected to read back 0xdeadbeef; got %x (trap %v)", v, tr)
	}

	if _, tr := h.Load64(0x20000); tr == nil || tr.Cause != CauseLoadPageFault {
		t.Fatalf("expected a load page fault for an unmapped address; got %v", tr)
	}

	if _, tr := h.Load64(0x40_0000_0000); tr == nil || tr.Tval != 0x40_0000_0000 {
		t.Fatalf("expected a fault for a non-canonical address; got %v", tr)
	}
}

func TestSATPEncoding(t *testing.T) {
	satp := MakeSATP(0x80400)
	if satp != 8<<60|0x80400 {
		t.Fatalf("expected satp %x; got %x", uint64(8<<60|0x80400), satp)
	}
	if SATPRoot(satp) != 0x80400 {
		t.Fatalf("expected root 0x80400; got %x", SATPRoot(satp))
	}

	h := NewHart(&flatMemory{})
	h.WriteCSR(CSRSatp, 5<<60|1)
	if h.ReadCSR(CSRSatp) != 0 {
		t.Fatal("expected writes selecting an unsupported mode to be ignored")
	}
}
