// Package loader parses user program images.
package loader

import (
	"bytes"
	"debug/elf"
	"io"
	"mikuos/kernel"
)

var (
	errBadImage     = &kernel.Error{Module: "loader", Message: "malformed ELF image"}
	errWrongClass   = &kernel.Error{Module: "loader", Message: "image is not a 64-bit little endian ELF"}
	errWrongMachine = &kernel.Error{Module: "loader", Message: "image is not built for RISC-V"}
	errNotExec      = &kernel.Error{Module: "loader", Message: "image is not an executable"}
	errBadSegment   = &kernel.Error{Module: "loader", Message: "segment file size exceeds its memory size"}
)

// SegmentFlag describes the access rights of a loadable segment.
type SegmentFlag uint8

const (
	SegmentRead SegmentFlag = 1 << iota
	SegmentWrite
	SegmentExec
)

// String returns the flags in "rwx" notation.
func (f SegmentFlag) String() string {
	out := []byte("---")
	for i, bit := range []SegmentFlag{SegmentRead, SegmentWrite, SegmentExec} {
		if f&bit != 0 {
			out[i] = "rwx"[i]
		}
	}
	return string(out)
}

// Segment is a PT_LOAD program header together with its file contents.
type Segment struct {
	VirtAddr uint64
	MemSize  uint64
	Flags    SegmentFlag
	Data     []byte
}

// End returns the first virtual address past the segment.
func (s Segment) End() uint64 {
	return s.VirtAddr + s.MemSize
}

// Image is a parsed executable.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// Parse validates an RV64 executable and extracts its loadable segments.
func Parse(data []byte) (*Image, *kernel.Error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errBadImage
	}
	defer f.Close()

	switch {
	case f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB:
		return nil, errWrongClass
	case f.Machine != elf.EM_RISCV:
		return nil, errWrongMachine
	case f.Type != elf.ET_EXEC:
		return nil, errNotExec
	}

	img := &Image{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, errBadSegment
		}

		seg := Segment{
			VirtAddr: prog.Vaddr,
			MemSize:  prog.Memsz,
			Flags:    segmentFlags(prog.Flags),
			Data:     make([]byte, prog.Filesz),
		}
		if _, err := io.ReadFull(prog.Open(), seg.Data); err != nil {
			return nil, errBadImage
		}
		img.Segments = append(img.Segments, seg)
	}

	return img, nil
}

func segmentFlags(flags elf.ProgFlag) SegmentFlag {
	var out SegmentFlag
	if flags&elf.PF_R != 0 {
		out |= SegmentRead
	}
	if flags&elf.PF_W != 0 {
		out |= SegmentWrite
	}
	if flags&elf.PF_X != 0 {
		out |= SegmentExec
	}
	return out
}
