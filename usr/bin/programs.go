package bin

import (
	"fmt"
	"mikuos/kernel/syscall"
	. "mikuos/usr/asm"
)

// initproc runs every program of InitApps in turn, waiting for each one,
// then reaps whatever is left and exits.
func initproc(a *Assembler) {
	a.Zero("status", 8)

	for i, name := range InitApps {
		path, parent := fmt.Sprintf("path_%d", i), fmt.Sprintf("parent_%d", i)
		a.CString(path, "/"+name)

		a.Syscall(syscall.SysFork)
		a.Bnez(A0, parent)

		// child: execve(path, {path, NULL}, NULL)
		a.Addi(SP, SP, -16)
		a.La(T0, path)
		a.Sd(T0, SP, 0)
		a.Sd(Zero, SP, 8)
		a.Mv(A0, T0)
		a.Mv(A1, SP)
		a.Li(A2, 0)
		a.Syscall(syscall.SysExecve)
		exit(a, -1)

		a.Label(parent)
		a.La(A1, "status")
		a.Li(A2, 0)
		a.Syscall(syscall.SysWaitpid)
	}

	a.Label("reap")
	a.Li(A0, -1)
	a.La(A1, "status")
	a.Li(A2, 0)
	a.Syscall(syscall.SysWaitpid)
	a.Li(T0, -1)
	a.Bne(A0, T0, "reap")
	exit(a, 0)
}

func hello(a *Assembler) {
	a.String("msg", "Hello, world!\n")
	puts(a, "msg")
	exit(a, 0)
}

func yield(a *Assembler) {
	a.String("msg", "yield: done\n")

	a.Li(S0, 3)
	a.Label("loop")
	a.Syscall(syscall.SysSchedYield)
	a.Addi(S0, S0, -1)
	a.Bnez(S0, "loop")

	puts(a, "msg")
	exit(a, 0)
}

// sbrk grows the heap by two pages, touches the second one and gives the
// memory back.
func sbrk(a *Assembler) {
	a.String("msg", "sbrk: ok\n")

	a.Li(A0, 0)
	a.Syscall(syscall.SysBrk)
	a.Mv(S0, A0)

	a.Li(T0, 8192)
	a.Add(A0, S0, T0)
	a.Syscall(syscall.SysBrk)
	a.Bne(A0, S0, "fail")

	a.Li(T0, 4096)
	a.Add(T1, S0, T0)
	a.Li(T2, 0x5a)
	a.Sb(T2, T1, 0)
	a.Lbu(T3, T1, 0)
	a.Bne(T2, T3, "fail")

	a.Mv(A0, S0)
	a.Syscall(syscall.SysBrk)
	a.Li(T0, -1)
	a.Beq(A0, T0, "fail")

	puts(a, "msg")
	exit(a, 0)
	fail(a)
}

func fork(a *Assembler) {
	a.String("child", "fork: hello from child\n")
	a.String("parent_msg", "fork: child exited with 7\n")
	a.Zero("status", 8)

	a.Syscall(syscall.SysFork)
	a.Bnez(A0, "parent")
	puts(a, "child")
	exit(a, 7)

	a.Label("parent")
	a.Mv(S0, A0)
	a.La(A1, "status")
	a.Li(A2, 0)
	a.Syscall(syscall.SysWaitpid)
	a.Bne(A0, S0, "fail")
	a.La(T0, "status")
	a.Lw(T1, T0, 0)
	a.Li(T2, 7)
	a.Bne(T1, T2, "fail")

	puts(a, "parent_msg")
	exit(a, 0)
	fail(a)
}

// mmap maps two anonymous pages, writes to both and unmaps them.
func mmap(a *Assembler) {
	a.String("msg", "mmap: ok\n")

	a.Li(A0, 0)
	a.Li(A1, 8192)
	a.Li(A2, syscall.ProtRead|syscall.ProtWrite)
	a.Li(A3, syscall.MapPrivate|syscall.MapAnonymous)
	a.Li(A4, -1)
	a.Li(A5, 0)
	a.Syscall(syscall.SysMmap)
	a.Li(T0, -1)
	a.Beq(A0, T0, "fail")
	a.Mv(S0, A0)

	a.Li(T1, 0x1234)
	a.Sd(T1, S0, 0)
	a.Li(T0, 4096)
	a.Add(T2, S0, T0)
	a.Sd(T1, T2, 8)
	a.Ld(T3, T2, 8)
	a.Bne(T1, T3, "fail")

	a.Mv(A0, S0)
	a.Li(A1, 8192)
	a.Syscall(syscall.SysMunmap)
	a.Bnez(A0, "fail")

	puts(a, "msg")
	exit(a, 0)
	fail(a)
}

// motd prints /motd twice: once with read and once through a file backed
// mapping.
func motd(a *Assembler) {
	a.CString("path", "motd")
	a.Zero("buf", 128)

	a.Li(A0, syscall.AtFdCwd)
	a.La(A1, "path")
	a.Li(A2, 0)
	a.Li(A3, 0)
	a.Syscall(syscall.SysOpenat)
	a.Li(T0, -1)
	a.Beq(A0, T0, "fail")
	a.Mv(S0, A0)

	a.Mv(A0, S0)
	a.La(A1, "buf")
	a.Li(A2, a.Len("buf"))
	a.Syscall(syscall.SysRead)
	a.Mv(S1, A0)
	a.Li(A0, 1)
	a.La(A1, "buf")
	a.Mv(A2, S1)
	a.Syscall(syscall.SysWrite)

	a.Li(A0, 0)
	a.Li(A1, 4096)
	a.Li(A2, syscall.ProtRead)
	a.Li(A3, syscall.MapPrivate)
	a.Mv(A4, S0)
	a.Li(A5, 0)
	a.Syscall(syscall.SysMmap)
	a.Li(T0, -1)
	a.Beq(A0, T0, "fail")
	a.Mv(A1, A0)
	a.Li(A0, 1)
	a.Mv(A2, S1)
	a.Syscall(syscall.SysWrite)

	a.Mv(A0, S0)
	a.Syscall(syscall.SysClose)
	a.Bnez(A0, "fail")
	exit(a, 0)
	fail(a)
}

// sysinfo exercises the informational calls and exits with 0 only if all
// of them succeed.
func sysinfo(a *Assembler) {
	a.String("msg", "sysinfo: ok\n")
	a.Zero("tv", 16)
	a.Zero("tms", 32)

	a.Syscall(syscall.SysGetpid)
	a.Blt(A0, Zero, "fail")
	a.Mv(S0, A0)
	a.Syscall(syscall.SysGetppid)
	a.Blt(A0, Zero, "fail")
	a.Beq(A0, S0, "fail")

	a.La(A0, "tv")
	a.Li(A1, 0)
	a.Syscall(syscall.SysGetTimeOfDay)
	a.Bnez(A0, "fail")

	a.La(A0, "tms")
	a.Syscall(syscall.SysTimes)
	a.Blt(A0, Zero, "fail")

	puts(a, "msg")
	exit(a, 0)
	fail(a)
}

// pageFault stores to address zero, which no user space maps.
func pageFault(a *Assembler) {
	a.String("msg", "page_fault: storing to 0x0\n")
	puts(a, "msg")
	a.Sd(Zero, Zero, 0)
	exit(a, 0)
}

// illegal executes sret in user mode.
func illegal(a *Assembler) {
	a.String("msg", "illegal: executing sret\n")
	puts(a, "msg")
	a.Sret()
	exit(a, 0)
}

// spin burns enough instructions to be preempted a few times.
func spin(a *Assembler) {
	a.String("msg", "spin: done\n")

	a.Li(T0, 300000)
	a.Label("loop")
	a.Addi(T0, T0, -1)
	a.Bnez(T0, "loop")

	puts(a, "msg")
	exit(a, 0)
}

func exitCode(a *Assembler) {
	exit(a, 42)
}
