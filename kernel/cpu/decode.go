package cpu

// Instruction formats. Immediates are sign-extended on decode.

type iType struct {
	imm    int64
	rs1    uint32
	funct3 uint32
	rd     uint32
}

func parseI(instr uint32) iType {
	return iType{
		imm:    int64(int32(instr) >> 20),
		rs1:    (instr >> 15) & 0x1f,
		funct3: (instr >> 12) & 0x7,
		rd:     (instr >> 7) & 0x1f,
	}
}

type sType struct {
	imm    int64
	rs1    uint32
	rs2    uint32
	funct3 uint32
}

func parseS(instr uint32) sType {
	return sType{
		imm:    int64(int32(instr&0xfe000000)>>20) | int64((instr>>7)&0x1f),
		rs1:    (instr >> 15) & 0x1f,
		rs2:    (instr >> 20) & 0x1f,
		funct3: (instr >> 12) & 0x7,
	}
}

type bType struct {
	imm    int64
	rs1    uint32
	rs2    uint32
	funct3 uint32
}

func parseB(instr uint32) bType {
	imm := int64(int32(instr&0x80000000)>>19) | // imm[12]
		int64((instr&0x80)<<4) | // imm[11]
		int64((instr>>20)&0x7e0) | // imm[10:5]
		int64((instr>>7)&0x1e) // imm[4:1]
	return bType{
		imm:    imm,
		rs1:    (instr >> 15) & 0x1f,
		rs2:    (instr >> 20) & 0x1f,
		funct3: (instr >> 12) & 0x7,
	}
}

type uType struct {
	imm int64
	rd  uint32
}

func parseU(instr uint32) uType {
	return uType{
		imm: int64(int32(instr & 0xfffff000)),
		rd:  (instr >> 7) & 0x1f,
	}
}

type jType struct {
	imm int64
	rd  uint32
}

func parseJ(instr uint32) jType {
	imm := int64(int32(instr&0x80000000)>>11) | // imm[20]
		int64(instr&0xff000) | // imm[19:12]
		int64((instr>>9)&0x800) | // imm[11]
		int64((instr>>20)&0x7fe) // imm[10:1]
	return jType{
		imm: imm,
		rd:  (instr >> 7) & 0x1f,
	}
}

type rType struct {
	rs1    uint32
	rs2    uint32
	rd     uint32
	funct3 uint32
	funct7 uint32
}

func parseR(instr uint32) rType {
	return rType{
		rs1:    (instr >> 15) & 0x1f,
		rs2:    (instr >> 20) & 0x1f,
		rd:     (instr >> 7) & 0x1f,
		funct3: (instr >> 12) & 0x7,
		funct7: instr >> 25,
	}
}
