package asm

const (
	opLoad   = 0b0000011
	opImm    = 0b0010011
	opAuipc  = 0b0010111
	opImm32  = 0b0011011
	opStore  = 0b0100011
	opReg    = 0b0110011
	opLui    = 0b0110111
	opBranch = 0b1100011
	opJalr   = 0b1100111
	opJal    = 0b1101111
	opSystem = 0b1110011

	csrTime = 0xc01
)

func encodeR(funct7, funct3 uint32, rd, rs1, rs2 Reg, opcode uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeI(imm int64, funct3 uint32, rd, rs1 Reg, opcode uint32) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeS(imm int64, funct3 uint32, rs1, rs2 Reg) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | (u&0x1f)<<7 | opStore
}

// encodeB returns the immediate bits of a branch.
func encodeB(off int64) uint32 {
	u := uint32(off)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | (u>>1&0xf)<<8 | (u>>11&1)<<7
}

// encodeJ returns the immediate bits of a jal.
func encodeJ(off int64) uint32 {
	u := uint32(off)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12
}
