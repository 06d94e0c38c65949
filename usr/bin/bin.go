// Package bin holds the user programs built into the kernel image.
package bin

import (
	"fmt"
	"mikuos/kernel/syscall"
	. "mikuos/usr/asm"
)

// Image is an assembled program ready to be loaded.
type Image struct {
	Name string
	ELF  []byte
}

type program struct {
	name  string
	build func(a *Assembler)
}

// InitApps lists the programs initproc runs, in order.
var InitApps = []string{"hello", "yield", "sbrk", "fork", "mmap", "motd", "sysinfo", "exit_code", "page_fault", "illegal", "spin"}

var programs = []program{
	{"initproc", initproc},
	{"hello", hello},
	{"yield", yield},
	{"sbrk", sbrk},
	{"fork", fork},
	{"mmap", mmap},
	{"motd", motd},
	{"sysinfo", sysinfo},
	{"page_fault", pageFault},
	{"illegal", illegal},
	{"spin", spin},
	{"exit_code", exitCode},
}

// Names returns the names of the built-in programs.
func Names() []string {
	names := make([]string, len(programs))
	for i, prog := range programs {
		names[i] = prog.name
	}
	return names
}

// Build assembles a single program.
func Build(name string) ([]byte, error) {
	for _, prog := range programs {
		if prog.name != name {
			continue
		}

		a := New()
		a.Label("_start")
		prog.build(a)

		elf, err := a.Build("_start")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return elf, nil
	}
	return nil, fmt.Errorf("no built-in program named %q", name)
}

// Images assembles every built-in program.
func Images() ([]Image, error) {
	images := make([]Image, 0, len(programs))
	for _, prog := range programs {
		elf, err := Build(prog.name)
		if err != nil {
			return nil, err
		}
		images = append(images, Image{Name: prog.name, ELF: elf})
	}
	return images, nil
}

// puts writes the data symbol sym to stdout.
func puts(a *Assembler, sym string) {
	a.Li(A0, 1)
	a.La(A1, sym)
	a.Li(A2, a.Len(sym))
	a.Syscall(syscall.SysWrite)
}

func exit(a *Assembler, code int64) {
	a.Li(A0, code)
	a.Syscall(syscall.SysExit)
}

// fail emits the shared failure exit under the label "fail".
func fail(a *Assembler) {
	a.Label("fail")
	exit(a, 1)
}
