package asm

// Add emits rd = rs1 + rs2.
func (a *Assembler) Add(rd, rs1, rs2 Reg) { a.emit(encodeR(0, 0b000, rd, rs1, rs2, opReg)) }

// Sub emits rd = rs1 - rs2.
func (a *Assembler) Sub(rd, rs1, rs2 Reg) { a.emit(encodeR(0b0100000, 0b000, rd, rs1, rs2, opReg)) }

// Mul emits rd = rs1 * rs2.
func (a *Assembler) Mul(rd, rs1, rs2 Reg) { a.emit(encodeR(0b0000001, 0b000, rd, rs1, rs2, opReg)) }

// Addi emits rd = rs1 + imm.
func (a *Assembler) Addi(rd, rs1 Reg, imm int64) {
	if !fits(imm, 12) {
		a.fail("asm: addi immediate %d out of range", imm)
	}
	a.emit(encodeI(imm, 0b000, rd, rs1, opImm))
}

// Addiw emits the 32-bit rd = rs1 + imm.
func (a *Assembler) Addiw(rd, rs1 Reg, imm int64) {
	if !fits(imm, 12) {
		a.fail("asm: addiw immediate %d out of range", imm)
	}
	a.emit(encodeI(imm, 0b000, rd, rs1, opImm32))
}

// Andi emits rd = rs1 & imm.
func (a *Assembler) Andi(rd, rs1 Reg, imm int64) { a.emit(encodeI(imm, 0b111, rd, rs1, opImm)) }

// Slli emits rd = rs1 << shamt.
func (a *Assembler) Slli(rd, rs1 Reg, shamt uint) {
	a.emit(encodeI(int64(shamt&0x3f), 0b001, rd, rs1, opImm))
}

// Lui emits rd = imm << 12.
func (a *Assembler) Lui(rd Reg, imm int64) { a.emit(uint32(imm&0xfffff)<<12 | uint32(rd)<<7 | opLui) }

// Ld emits a doubleword load.
func (a *Assembler) Ld(rd, rs1 Reg, off int64) { a.emit(encodeI(off, 0b011, rd, rs1, opLoad)) }

// Lw emits a sign-extending word load.
func (a *Assembler) Lw(rd, rs1 Reg, off int64) { a.emit(encodeI(off, 0b010, rd, rs1, opLoad)) }

// Lbu emits a zero-extending byte load.
func (a *Assembler) Lbu(rd, rs1 Reg, off int64) { a.emit(encodeI(off, 0b100, rd, rs1, opLoad)) }

// Sd emits a doubleword store of rs2.
func (a *Assembler) Sd(rs2, rs1 Reg, off int64) { a.emit(encodeS(off, 0b011, rs1, rs2)) }

// Sw emits a word store of rs2.
func (a *Assembler) Sw(rs2, rs1 Reg, off int64) { a.emit(encodeS(off, 0b010, rs1, rs2)) }

// Sb emits a byte store of rs2.
func (a *Assembler) Sb(rs2, rs1 Reg, off int64) { a.emit(encodeS(off, 0b000, rs1, rs2)) }

func (a *Assembler) branch(funct3 uint32, rs1, rs2 Reg, label string) {
	a.emitFixup(fixBranch, label, uint32(rs2)<<20|uint32(rs1)<<15|funct3<<12|opBranch)
}

// Beq branches to label when rs1 == rs2.
func (a *Assembler) Beq(rs1, rs2 Reg, label string) { a.branch(0b000, rs1, rs2, label) }

// Bne branches to label when rs1 != rs2.
func (a *Assembler) Bne(rs1, rs2 Reg, label string) { a.branch(0b001, rs1, rs2, label) }

// Blt branches to label when rs1 < rs2 (signed).
func (a *Assembler) Blt(rs1, rs2 Reg, label string) { a.branch(0b100, rs1, rs2, label) }

// Bge branches to label when rs1 >= rs2 (signed).
func (a *Assembler) Bge(rs1, rs2 Reg, label string) { a.branch(0b101, rs1, rs2, label) }

// Bltu branches to label when rs1 < rs2 (unsigned).
func (a *Assembler) Bltu(rs1, rs2 Reg, label string) { a.branch(0b110, rs1, rs2, label) }

// Jal jumps to label, saving the return address in rd.
func (a *Assembler) Jal(rd Reg, label string) { a.emitFixup(fixJump, label, uint32(rd)<<7|opJal) }

// Jalr jumps to rs1 + off, saving the return address in rd.
func (a *Assembler) Jalr(rd, rs1 Reg, off int64) { a.emit(encodeI(off, 0b000, rd, rs1, opJalr)) }

// Ecall emits a system call trap.
func (a *Assembler) Ecall() { a.emit(0x00000073) }

// Rdtime reads the time counter into rd.
func (a *Assembler) Rdtime(rd Reg) { a.emit(encodeI(csrTime, 0b010, rd, Zero, opSystem)) }

// Word emits a raw instruction word.
func (a *Assembler) Word(w uint32) { a.emit(w) }

// Sret emits sret, which is illegal outside S-mode.
func (a *Assembler) Sret() { a.emit(0x10200073) }

// Pseudo-instructions.

// Nop emits addi zero, zero, 0.
func (a *Assembler) Nop() { a.Addi(Zero, Zero, 0) }

// Mv copies rs into rd.
func (a *Assembler) Mv(rd, rs Reg) { a.Addi(rd, rs, 0) }

// Li loads a 32-bit signed constant into rd.
func (a *Assembler) Li(rd Reg, imm int64) {
	switch {
	case fits(imm, 12):
		a.Addi(rd, Zero, imm)
	case fits(imm, 32):
		hi, lo := splitImm(imm)
		a.Lui(rd, hi)
		a.Addiw(rd, rd, lo)
	default:
		a.fail("asm: li immediate %d out of range", imm)
	}
}

// La loads the address of a label or data symbol into rd.
func (a *Assembler) La(rd Reg, label string) {
	a.emitFixup(fixPCRel, label, uint32(rd)<<7|opAuipc)
	a.emit(encodeI(0, 0b000, rd, rd, opImm))
}

// J jumps to label.
func (a *Assembler) J(label string) { a.Jal(Zero, label) }

// Beqz branches to label when rs == 0.
func (a *Assembler) Beqz(rs Reg, label string) { a.Beq(rs, Zero, label) }

// Bnez branches to label when rs != 0.
func (a *Assembler) Bnez(rs Reg, label string) { a.Bne(rs, Zero, label) }

// Call jumps to label saving the return address in ra.
func (a *Assembler) Call(label string) { a.Jal(RA, label) }

// Ret returns to ra.
func (a *Assembler) Ret() { a.Jalr(Zero, RA, 0) }

// Syscall loads id into a7 and traps. Arguments go in a0-a5 beforehand.
func (a *Assembler) Syscall(id int64) {
	a.Li(A7, id)
	a.Ecall()
}
