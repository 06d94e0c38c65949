package cpu

import (
	"encoding/binary"
	"math/bits"
)

// Major opcodes.
const (
	opLoad     = 0b0000011
	opMiscMem  = 0b0001111
	opImm      = 0b0010011
	opAuipc    = 0b0010111
	opImm32    = 0b0011011
	opStore    = 0b0100011
	opReg      = 0b0110011
	opLui      = 0b0110111
	opReg32    = 0b0111011
	opBranch   = 0b1100011
	opJalr     = 0b1100111
	opJal      = 0b1101111
	opSystem   = 0b1110011
	funct7Mul  = 0b0000001
	funct7Alt  = 0b0100000
	instrEcall = 0x00000073
	instrEbrk  = 0x00100073
)

func (h *Hart) fetch() (uint32, exception, bool) {
	if h.PC&3 != 0 {
		return 0, exception{CauseInstructionMisaligned, h.PC}, true
	}

	var buf [4]byte
	if exc, raised := h.access(h.PC, buf[:], accessFetch); raised {
		return 0, exc, true
	}
	return binary.LittleEndian.Uint32(buf[:]), exception{}, false
}

func (h *Hart) setReg(rd uint32, v uint64) {
	if rd != 0 {
		h.X[rd] = v
	}
}

func (h *Hart) load(va uint64, size int) (uint64, exception, bool) {
	var buf [8]byte
	if exc, raised := h.access(va, buf[:size], accessLoad); raised {
		return 0, exc, true
	}
	return binary.LittleEndian.Uint64(buf[:]), exception{}, false
}

func (h *Hart) store(va uint64, size int, v uint64) (exception, bool) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return h.access(va, buf[:size], accessStore)
}

// step executes one instruction. Each retired instruction advances the time
// counter by one tick.
func (h *Hart) step() (exception, bool) {
	instr, exc, raised := h.fetch()
	if raised {
		return exc, true
	}

	illegal := exception{CauseIllegalInstruction, uint64(instr)}
	if instr&0b11 != 0b11 {
		// Compressed encodings are not implemented.
		return exception{CauseIllegalInstruction, uint64(instr & 0xffff)}, true
	}

	pc := h.PC
	next := pc + 4

	switch instr & 0x7f {
	case opLui:
		op := parseU(instr)
		h.setReg(op.rd, uint64(op.imm))
	case opAuipc:
		op := parseU(instr)
		h.setReg(op.rd, pc+uint64(op.imm))
	case opJal:
		op := parseJ(instr)
		h.setReg(op.rd, next)
		next = pc + uint64(op.imm)
	case opJalr:
		op := parseI(instr)
		if op.funct3 != 0 {
			return illegal, true
		}
		target := (h.X[op.rs1] + uint64(op.imm)) &^ 1
		h.setReg(op.rd, next)
		next = target
	case opBranch:
		op := parseB(instr)
		a, b := h.X[op.rs1], h.X[op.rs2]
		var taken bool
		switch op.funct3 {
		case 0b000: // BEQ
			taken = a == b
		case 0b001: // BNE
			taken = a != b
		case 0b100: // BLT
			taken = int64(a) < int64(b)
		case 0b101: // BGE
			taken = int64(a) >= int64(b)
		case 0b110: // BLTU
			taken = a < b
		case 0b111: // BGEU
			taken = a >= b
		default:
			return illegal, true
		}
		if taken {
			next = pc + uint64(op.imm)
		}
	case opLoad:
		op := parseI(instr)
		addr := h.X[op.rs1] + uint64(op.imm)
		var (
			size   int
			signed bool
		)
		switch op.funct3 {
		case 0b000: // LB
			size, signed = 1, true
		case 0b001: // LH
			size, signed = 2, true
		case 0b010: // LW
			size, signed = 4, true
		case 0b011: // LD
			size = 8
		case 0b100: // LBU
			size = 1
		case 0b101: // LHU
			size = 2
		case 0b110: // LWU
			size = 4
		default:
			return illegal, true
		}
		v, exc, raised := h.load(addr, size)
		if raised {
			return exc, true
		}
		if signed {
			shift := uint(64 - 8*size)
			v = uint64(int64(v<<shift) >> shift)
		}
		h.setReg(op.rd, v)
	case opStore:
		op := parseS(instr)
		if op.funct3 > 0b011 {
			return illegal, true
		}
		addr := h.X[op.rs1] + uint64(op.imm)
		if exc, raised := h.store(addr, 1<<op.funct3, h.X[op.rs2]); raised {
			return exc, true
		}
	case opImm:
		op := parseI(instr)
		v, ok := aluImm(op.funct3, h.X[op.rs1], op.imm, instr)
		if !ok {
			return illegal, true
		}
		h.setReg(op.rd, v)
	case opImm32:
		op := parseI(instr)
		v, ok := aluImm32(op.funct3, h.X[op.rs1], op.imm, instr)
		if !ok {
			return illegal, true
		}
		h.setReg(op.rd, v)
	case opReg:
		op := parseR(instr)
		v, ok := alu(op, h.X[op.rs1], h.X[op.rs2])
		if !ok {
			return illegal, true
		}
		h.setReg(op.rd, v)
	case opReg32:
		op := parseR(instr)
		v, ok := alu32(op, h.X[op.rs1], h.X[op.rs2])
		if !ok {
			return illegal, true
		}
		h.setReg(op.rd, v)
	case opMiscMem:
		// fence and fence.i have nothing to order on a single hart.
	case opSystem:
		switch {
		case instr == instrEcall:
			if h.priv == PrivUser {
				return exception{CauseUserEnvCall, 0}, true
			}
			return exception{CauseSupervisorEnvCall, 0}, true
		case instr == instrEbrk:
			return exception{CauseBreakpoint, pc}, true
		}

		op := parseI(instr)
		csr := uint16(uint32(op.imm) & 0xfff)
		switch op.funct3 {
		case 0b010, 0b110: // CSRRS, CSRRSI
			// Only reads of the user counters are permitted from U-mode.
			if op.rs1 != 0 || (h.priv == PrivUser && csr != CSRCycle && csr != CSRTime && csr != CSRInstret) {
				return illegal, true
			}
			h.setReg(op.rd, h.ReadCSR(csr))
		default:
			// sret, wfi, sfence.vma and csr writes are privileged.
			return illegal, true
		}
	default:
		return illegal, true
	}

	h.PC = next
	h.instret++
	h.time++
	return exception{}, false
}

func shamt(instr uint32, width uint) uint {
	return uint(instr>>20) & (width - 1)
}

func aluImm(funct3 uint32, a uint64, imm int64, instr uint32) (uint64, bool) {
	b := uint64(imm)
	switch funct3 {
	case 0b000: // ADDI
		return a + b, true
	case 0b010: // SLTI
		return boolToUint(int64(a) < imm), true
	case 0b011: // SLTIU
		return boolToUint(a < b), true
	case 0b100: // XORI
		return a ^ b, true
	case 0b110: // ORI
		return a | b, true
	case 0b111: // ANDI
		return a & b, true
	case 0b001: // SLLI
		if instr>>26 != 0 {
			return 0, false
		}
		return a << shamt(instr, 64), true
	case 0b101:
		switch instr >> 26 {
		case 0: // SRLI
			return a >> shamt(instr, 64), true
		case 0b010000: // SRAI
			return uint64(int64(a) >> shamt(instr, 64)), true
		}
	}
	return 0, false
}

func aluImm32(funct3 uint32, a uint64, imm int64, instr uint32) (uint64, bool) {
	switch funct3 {
	case 0b000: // ADDIW
		return sext32(uint32(a + uint64(imm))), true
	case 0b001: // SLLIW
		if instr>>25 != 0 {
			return 0, false
		}
		return sext32(uint32(a) << shamt(instr, 32)), true
	case 0b101:
		switch instr >> 25 {
		case 0: // SRLIW
			return sext32(uint32(a) >> shamt(instr, 32)), true
		case funct7Alt: // SRAIW
			return sext32(uint32(int32(a) >> shamt(instr, 32))), true
		}
	}
	return 0, false
}

func alu(op rType, a, b uint64) (uint64, bool) {
	switch op.funct7 {
	case 0:
		switch op.funct3 {
		case 0b000:
			return a + b, true
		case 0b001:
			return a << (b & 63), true
		case 0b010:
			return boolToUint(int64(a) < int64(b)), true
		case 0b011:
			return boolToUint(a < b), true
		case 0b100:
			return a ^ b, true
		case 0b101:
			return a >> (b & 63), true
		case 0b110:
			return a | b, true
		case 0b111:
			return a & b, true
		}
	case funct7Alt:
		switch op.funct3 {
		case 0b000: // SUB
			return a - b, true
		case 0b101: // SRA
			return uint64(int64(a) >> (b & 63)), true
		}
	case funct7Mul:
		switch op.funct3 {
		case 0b000: // MUL
			return a * b, true
		case 0b001: // MULH
			return mulh(int64(a), int64(b)), true
		case 0b010: // MULHSU
			return mulhsu(int64(a), b), true
		case 0b011: // MULHU
			hi, _ := bits.Mul64(a, b)
			return hi, true
		case 0b100: // DIV
			return uint64(div(int64(a), int64(b))), true
		case 0b101: // DIVU
			if b == 0 {
				return ^uint64(0), true
			}
			return a / b, true
		case 0b110: // REM
			return uint64(rem(int64(a), int64(b))), true
		case 0b111: // REMU
			if b == 0 {
				return a, true
			}
			return a % b, true
		}
	}
	return 0, false
}

func alu32(op rType, a, b uint64) (uint64, bool) {
	x, y := uint32(a), uint32(b)
	switch op.funct7 {
	case 0:
		switch op.funct3 {
		case 0b000: // ADDW
			return sext32(x + y), true
		case 0b001: // SLLW
			return sext32(x << (y & 31)), true
		case 0b101: // SRLW
			return sext32(x >> (y & 31)), true
		}
	case funct7Alt:
		switch op.funct3 {
		case 0b000: // SUBW
			return sext32(x - y), true
		case 0b101: // SRAW
			return sext32(uint32(int32(x) >> (y & 31))), true
		}
	case funct7Mul:
		switch op.funct3 {
		case 0b000: // MULW
			return sext32(x * y), true
		case 0b100: // DIVW
			return sext32(uint32(div32(int32(x), int32(y)))), true
		case 0b101: // DIVUW
			if y == 0 {
				return ^uint64(0), true
			}
			return sext32(x / y), true
		case 0b110: // REMW
			return sext32(uint32(rem32(int32(x), int32(y)))), true
		case 0b111: // REMUW
			if y == 0 {
				return sext32(x), true
			}
			return sext32(x % y), true
		}
	}
	return 0, false
}

func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func mulh(a, b int64) uint64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	// Convert the unsigned product to a signed one.
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return hi
}

func mulhsu(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return hi
}

// Division follows the RISC-V rules: no traps, x/0 = -1, x%0 = x and the
// overflow case returns the dividend.

func div(a, b int64) int64 {
	switch {
	case b == 0:
		return -1
	case a == -1<<63 && b == -1:
		return a
	}
	return a / b
}

func rem(a, b int64) int64 {
	switch {
	case b == 0:
		return a
	case a == -1<<63 && b == -1:
		return 0
	}
	return a % b
}

func div32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == -1<<31 && b == -1:
		return a
	}
	return a / b
}

func rem32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == -1<<31 && b == -1:
		return 0
	}
	return a % b
}
