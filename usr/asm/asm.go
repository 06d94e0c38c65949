// Package asm is a small RV64IM assembler used to build the user programs
// that ship with the kernel. Programs are written as Go calls, one per
// instruction, with symbolic labels resolved when the program is linked.
package asm

import (
	"encoding/binary"
	"fmt"
	"mikuos/usr/image"
)

// Reg is an integer register number.
type Reg uint32

// ABI register names.
const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

type fixupKind uint8

const (
	fixBranch fixupKind = iota
	fixJump
	fixPCRel
)

type fixup struct {
	kind  fixupKind
	index int
	label string
}

type symbol struct {
	offset uint64
	size   uint64
	bss    bool
}

// Assembler accumulates instructions, data and labels. The first error is
// kept and reported by Link; later calls become no-ops.
type Assembler struct {
	text    []uint32
	labels  map[string]int
	data    []byte
	bss     uint64
	symbols map[string]symbol
	fixups  []fixup
	err     error
}

// New returns an empty assembler.
func New() *Assembler {
	return &Assembler{
		labels:  make(map[string]int),
		symbols: make(map[string]symbol),
	}
}

func (a *Assembler) fail(format string, args ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf(format, args...)
	}
}

func (a *Assembler) emit(instr uint32) {
	if a.err == nil {
		a.text = append(a.text, instr)
	}
}

func (a *Assembler) emitFixup(kind fixupKind, label string, instr uint32) {
	a.fixups = append(a.fixups, fixup{kind: kind, index: len(a.text), label: label})
	a.emit(instr)
}

func (a *Assembler) defined(name string) bool {
	_, isLabel := a.labels[name]
	_, isSymbol := a.symbols[name]
	return isLabel || isSymbol
}

// Label binds name to the next instruction.
func (a *Assembler) Label(name string) {
	if a.defined(name) {
		a.fail("asm: label %q redefined", name)
		return
	}
	a.labels[name] = len(a.text)
}

// String places s in the data section under name.
func (a *Assembler) String(name, s string) {
	a.Bytes(name, []byte(s))
}

// CString places s followed by a NUL byte in the data section.
func (a *Assembler) CString(name, s string) {
	a.Bytes(name, append([]byte(s), 0))
}

// Bytes places b in the data section, 8-byte aligned.
func (a *Assembler) Bytes(name string, b []byte) {
	if a.defined(name) {
		a.fail("asm: symbol %q redefined", name)
		return
	}
	for len(a.data)%8 != 0 {
		a.data = append(a.data, 0)
	}
	a.symbols[name] = symbol{offset: uint64(len(a.data)), size: uint64(len(b))}
	a.data = append(a.data, b...)
}

// Zero reserves n zeroed bytes, 8-byte aligned, in the bss.
func (a *Assembler) Zero(name string, n uint64) {
	if a.defined(name) {
		a.fail("asm: symbol %q redefined", name)
		return
	}
	a.bss = (a.bss + 7) &^ 7
	a.symbols[name] = symbol{offset: a.bss, size: n, bss: true}
	a.bss += n
}

// Len returns the size of a data or bss symbol.
func (a *Assembler) Len(name string) int64 {
	sym, ok := a.symbols[name]
	if !ok {
		a.fail("asm: undefined symbol %q", name)
		return 0
	}
	return int64(sym.size)
}

// Link resolves every label and returns the program starting at entry.
func (a *Assembler) Link(entry string) (image.Program, error) {
	if a.err != nil {
		return image.Program{}, a.err
	}

	start, ok := a.labels[entry]
	if !ok {
		return image.Program{}, fmt.Errorf("asm: undefined entry label %q", entry)
	}

	textLen := uint64(len(a.text)) * 4
	dataBase := image.DataBase(textLen)
	dataLen := (uint64(len(a.data)) + 7) &^ 7

	for _, fix := range a.fixups {
		pc := image.TextBase + uint64(fix.index)*4

		var target uint64
		if index, ok := a.labels[fix.label]; ok {
			target = image.TextBase + uint64(index)*4
		} else if sym, ok := a.symbols[fix.label]; ok && fix.kind == fixPCRel {
			target = dataBase + sym.offset
			if sym.bss {
				target = dataBase + dataLen + sym.offset
			}
		} else {
			return image.Program{}, fmt.Errorf("asm: undefined label %q", fix.label)
		}

		if err := a.patch(fix, int64(target-pc)); err != nil {
			return image.Program{}, err
		}
	}

	text := make([]byte, textLen)
	for i, instr := range a.text {
		binary.LittleEndian.PutUint32(text[i*4:], instr)
	}

	data := append([]byte(nil), a.data...)
	for uint64(len(data)) < dataLen {
		data = append(data, 0)
	}

	return image.Program{
		Entry: uint64(start) * 4,
		Text:  text,
		Data:  data,
		BSS:   a.bss,
	}, nil
}

// Build links the program and wraps it in an ELF executable.
func (a *Assembler) Build(entry string) ([]byte, error) {
	prog, err := a.Link(entry)
	if err != nil {
		return nil, err
	}
	return image.Build(prog), nil
}

func (a *Assembler) patch(fix fixup, off int64) error {
	instr := a.text[fix.index]

	switch fix.kind {
	case fixBranch:
		if !fits(off, 13) {
			return fmt.Errorf("asm: branch to %q out of range", fix.label)
		}
		a.text[fix.index] = instr | encodeB(off)
	case fixJump:
		if !fits(off, 21) {
			return fmt.Errorf("asm: jump to %q out of range", fix.label)
		}
		a.text[fix.index] = instr | encodeJ(off)
	case fixPCRel:
		if !fits(off, 32) {
			return fmt.Errorf("asm: %q out of pc-relative range", fix.label)
		}
		hi, lo := splitImm(off)
		a.text[fix.index] = instr | uint32(hi)<<12
		a.text[fix.index+1] |= uint32(lo&0xfff) << 20
	}
	return nil
}

// splitImm splits v into a 20-bit upper part and a sign-extended 12-bit
// lower part so that hi<<12 + lo == v.
func splitImm(v int64) (int64, int64) {
	hi := (v + 0x800) >> 12
	lo := v - hi<<12
	return hi & 0xfffff, lo
}

func fits(v int64, bits uint) bool {
	limit := int64(1) << (bits - 1)
	return v >= -limit && v < limit
}
