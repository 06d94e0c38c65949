// Package image links assembled user programs into RV64 ELF executables.
package image

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	// TextBase is the load address of every program's text segment.
	TextBase = uint64(0x10000)

	pageSize   = uint64(4096)
	headerSize = 64
	progSize   = 56
)

// Program is the output of the assembler.
type Program struct {
	// Entry is the offset of the first instruction within Text.
	Entry uint64
	Text  []byte
	Data  []byte
	// BSS is the number of zero bytes that follow Data in memory.
	BSS uint64
}

// DataBase returns the load address of the data segment for a program whose
// text is textLen bytes long.
func DataBase(textLen uint64) uint64 {
	return alignUp(TextBase+textLen, pageSize)
}

// Build emits an ELF executable with one R|X text segment and, when the
// program has data or bss, one R|W data segment starting on the next page.
func Build(p Program) []byte {
	var (
		progs    []elf.Prog64
		textOff  = pageSize
		dataOff  = alignUp(textOff+uint64(len(p.Text)), pageSize)
		dataSize = uint64(len(p.Data)) + p.BSS
	)

	progs = append(progs, elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    textOff,
		Vaddr:  TextBase,
		Paddr:  TextBase,
		Filesz: uint64(len(p.Text)),
		Memsz:  uint64(len(p.Text)),
		Align:  pageSize,
	})
	if dataSize > 0 {
		base := DataBase(uint64(len(p.Text)))
		progs = append(progs, elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(elf.PF_R | elf.PF_W),
			Off:    dataOff,
			Vaddr:  base,
			Paddr:  base,
			Filesz: uint64(len(p.Data)),
			Memsz:  dataSize,
			Align:  pageSize,
		})
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     TextBase + p.Entry,
		Phoff:     headerSize,
		Ehsize:    headerSize,
		Phentsize: progSize,
		Phnum:     uint16(len(progs)),
		Shentsize: 64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, hdr)
	for _, prog := range progs {
		_ = binary.Write(&buf, binary.LittleEndian, prog)
	}

	pad(&buf, textOff)
	buf.Write(p.Text)
	if dataSize > 0 {
		pad(&buf, dataOff)
		buf.Write(p.Data)
	}

	return buf.Bytes()
}

func pad(buf *bytes.Buffer, off uint64) {
	if n := int(off) - buf.Len(); n > 0 {
		buf.Write(make([]byte, n))
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
