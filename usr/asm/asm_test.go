package asm

import (
	"encoding/binary"
	"mikuos/kernel/cpu"
	"mikuos/kernel/mm/pmm"
	"mikuos/usr/image"
	"strings"
	"testing"
)

func TestEncoding(t *testing.T) {
	specs := []struct {
		descr string
		emit  func(a *Assembler)
		exp   uint32
	}{
		{"addi", func(a *Assembler) { a.Li(A7, 64) }, 0x04000893},
		{"ecall", func(a *Assembler) { a.Ecall() }, 0x00000073},
		{"add", func(a *Assembler) { a.Add(A0, A1, A2) }, 0x00c58533},
		{"sub", func(a *Assembler) { a.Sub(A0, A1, A2) }, 0x40c58533},
		{"mul", func(a *Assembler) { a.Mul(A0, A1, A2) }, 0x02c58533},
		{"ld", func(a *Assembler) { a.Ld(A0, SP, 8) }, 0x00813503},
		{"sd", func(a *Assembler) { a.Sd(RA, SP, 8) }, 0x00113423},
		{"ret", func(a *Assembler) { a.Ret() }, 0x00008067},
		{"rdtime", func(a *Assembler) { a.Rdtime(A0) }, 0xc0102573},
		{"sret", func(a *Assembler) { a.Sret() }, 0x10200073},
	}

	for _, spec := range specs {
		a := New()
		a.Label("_start")
		spec.emit(a)

		prog, err := a.Link("_start")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", spec.descr, err)
		}
		if got := binary.LittleEndian.Uint32(prog.Text); got != spec.exp {
			t.Errorf("[%s] expected encoding %08x; got %08x", spec.descr, spec.exp, got)
		}
	}
}

func TestLinkErrors(t *testing.T) {
	specs := []struct {
		descr string
		emit  func(a *Assembler)
		msg   string
	}{
		{"undefined label", func(a *Assembler) { a.J("nowhere") }, "undefined label"},
		{"redefined label", func(a *Assembler) { a.Label("_start") }, "redefined"},
		{"wide li", func(a *Assembler) { a.Li(A0, 1<<40) }, "out of range"},
		{"wide addi", func(a *Assembler) { a.Addi(A0, A0, 4096) }, "out of range"},
		{"unknown symbol", func(a *Assembler) { a.Li(A2, a.Len("msg")) }, "undefined symbol"},
	}

	for _, spec := range specs {
		a := New()
		a.Label("_start")
		spec.emit(a)

		if _, err := a.Link("_start"); err == nil || !strings.Contains(err.Error(), spec.msg) {
			t.Errorf("[%s] expected an error containing %q; got %v", spec.descr, spec.msg, err)
		}
	}

	if _, err := New().Link("main"); err == nil {
		t.Fatal("expected an error for a missing entry label")
	}
}

// run loads prog into an untranslated arena and executes it in S-mode up
// to the first ecall.
func run(t *testing.T, prog image.Program) *cpu.Hart {
	t.Helper()

	mem := pmm.NewMemory(image.TextBase, image.TextBase+0x10000)
	mem.WritePhys(image.TextBase, prog.Text)
	mem.WritePhys(image.DataBase(uint64(len(prog.Text))), prog.Data)

	hart := cpu.NewHart(mem)
	hart.PC = image.TextBase + prog.Entry
	hart.X[cpu.RegSP] = mem.End()

	for steps := 0; steps < 10000; steps++ {
		if tr, trapped := hart.Step(); trapped {
			if tr.Cause != cpu.CauseSupervisorEnvCall {
				t.Fatalf("unexpected trap %s at %x", cpu.CauseName(tr.Cause), tr.PC)
			}
			return hart
		}
	}
	t.Fatal("program did not reach ecall")
	return nil
}

func TestProgramExecution(t *testing.T) {
	a := New()
	a.CString("msg", "hi")
	a.Zero("counter", 8)

	a.Label("double")
	a.Add(A0, A0, A0)
	a.Ret()

	a.Label("_start")
	a.Li(S0, 0x12345678)
	a.Li(S1, -2048)
	a.Li(S2, 0x7fffffff)
	a.La(T0, "msg")
	a.Lbu(S3, T0, 1)

	// counter += 1, five times
	a.La(T1, "counter")
	a.Li(T2, 5)
	a.Label("loop")
	a.Ld(T3, T1, 0)
	a.Addi(T3, T3, 1)
	a.Sd(T3, T1, 0)
	a.Addi(T2, T2, -1)
	a.Bnez(T2, "loop")
	a.Ld(S4, T1, 0)

	a.Li(A0, 21)
	a.Call("double")
	a.Mv(S5, A0)
	a.Li(A2, a.Len("msg"))
	a.Ecall()

	prog, err := a.Link("_start")
	if err != nil {
		t.Fatal(err)
	}
	if prog.Entry != 8 || prog.BSS != 8 || len(prog.Data) != 8 {
		t.Fatalf("unexpected layout: entry %d, data %d, bss %d", prog.Entry, len(prog.Data), prog.BSS)
	}

	hart := run(t, prog)

	specs := []struct {
		reg int
		exp uint64
	}{
		{cpu.RegS0, 0x12345678},
		{cpu.RegS1, uint64(0xfffffffffffff800)},
		{cpu.RegS2, 0x7fffffff},
		{int(S3), 'i'},
		{int(S4), 5},
		{int(S5), 42},
		{cpu.RegA2, 3},
	}
	for _, spec := range specs {
		if got := hart.X[spec.reg]; got != spec.exp {
			t.Errorf("expected x%d to be %x; got %x", spec.reg, spec.exp, got)
		}
	}
}
