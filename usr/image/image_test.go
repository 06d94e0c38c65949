package image

import (
	"bytes"
	"debug/elf"
	"testing"
)

func TestBuild(t *testing.T) {
	p := Program{
		Entry: 8,
		Text:  bytes.Repeat([]byte{0x13, 0, 0, 0}, 1100),
		Data:  []byte("abc"),
		BSS:   100,
	}

	f, err := elf.NewFile(bytes.NewReader(Build(p)))
	if err != nil {
		t.Fatal(err)
	}

	if f.Machine != elf.EM_RISCV || f.Type != elf.ET_EXEC || f.Class != elf.ELFCLASS64 {
		t.Fatalf("unexpected header: machine %v type %v class %v", f.Machine, f.Type, f.Class)
	}
	if f.Entry != TextBase+8 {
		t.Fatalf("expected entry %x; got %x", TextBase+8, f.Entry)
	}

	// 4400 bytes of text spill into a second page.
	if exp := TextBase + 2*pageSize; DataBase(uint64(len(p.Text))) != exp {
		t.Fatalf("expected data base %x; got %x", exp, DataBase(uint64(len(p.Text))))
	}

	specs := []struct {
		vaddr  uint64
		filesz uint64
		memsz  uint64
		flags  elf.ProgFlag
	}{
		{TextBase, 4400, 4400, elf.PF_R | elf.PF_X},
		{TextBase + 2*pageSize, 3, 103, elf.PF_R | elf.PF_W},
	}

	if len(f.Progs) != len(specs) {
		t.Fatalf("expected %d program headers; got %d", len(specs), len(f.Progs))
	}
	for specIndex, spec := range specs {
		prog := f.Progs[specIndex]
		if prog.Vaddr != spec.vaddr || prog.Filesz != spec.filesz || prog.Memsz != spec.memsz || prog.Flags != spec.flags {
			t.Errorf("[spec %d] unexpected program header %+v", specIndex, prog.ProgHeader)
		}
		if prog.Off%pageSize != prog.Vaddr%pageSize {
			t.Errorf("[spec %d] expected file offset and vaddr to agree modulo the page size", specIndex)
		}
	}

	data := make([]byte, 3)
	if _, err := f.Progs[1].ReadAt(data, 0); err != nil || string(data) != "abc" {
		t.Fatalf("expected data segment contents %q; got %q (%v)", "abc", data, err)
	}
}

func TestBuildBSSOnly(t *testing.T) {
	f, err := elf.NewFile(bytes.NewReader(Build(Program{Text: []byte{0x73, 0, 0, 0}, BSS: 64})))
	if err != nil {
		t.Fatal(err)
	}

	if len(f.Progs) != 2 || f.Progs[1].Filesz != 0 || f.Progs[1].Memsz != 64 {
		t.Fatalf("expected a zero-filled data segment; got %d headers", len(f.Progs))
	}
}
