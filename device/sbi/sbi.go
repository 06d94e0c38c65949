// Package sbi implements the supervisor binary interface firmware the kernel
// calls into for console, timer and shutdown services.
package sbi

import (
	"io"
	"mikuos/kernel/cpu"
)

// Legacy SBI extension IDs.
const (
	EIDSetTimer       = 0
	EIDConsolePutchar = 1
	EIDConsoleGetchar = 2
	EIDShutdown       = 8
)

// Exit codes written to the VIRT_TEST device on shutdown.
const (
	ExitSuccess = 0x5555
	ExitFailure = 0x3333
)

// Firmware is the set of SBI services used by the kernel.
type Firmware interface {
	// ConsolePutchar writes one byte to the debug console.
	ConsolePutchar(c byte)

	// ConsoleGetchar returns the next input byte or -1 if none is pending.
	ConsoleGetchar() int

	// SetTimer programs the next timer interrupt for the given time value
	// and clears the pending one.
	SetTimer(stimeValue uint64)

	// Shutdown powers the machine off, reporting failure when set.
	Shutdown(failure bool)
}

// Machine is the firmware of the emulated board. Console output goes to an
// io.Writer, input is read from a channel without blocking and the timer is
// the hart's stimecmp.
type Machine struct {
	hart *cpu.Hart
	out  io.Writer
	in   <-chan byte

	halted   bool
	exitCode uint32
}

// NewMachine returns firmware for hart. in may be nil when the machine has
// no console input.
func NewMachine(hart *cpu.Hart, out io.Writer, in <-chan byte) *Machine {
	return &Machine{hart: hart, out: out, in: in}
}

// ConsolePutchar implements Firmware.
func (m *Machine) ConsolePutchar(c byte) {
	_, _ = m.out.Write([]byte{c})
}

// ConsoleGetchar implements Firmware.
func (m *Machine) ConsoleGetchar() int {
	select {
	case c, ok := <-m.in:
		if ok {
			return int(c)
		}
	default:
	}
	return -1
}

// SetTimer implements Firmware.
func (m *Machine) SetTimer(stimeValue uint64) {
	m.hart.WriteCSR(cpu.CSRStimecmp, stimeValue)
}

// Shutdown implements Firmware.
func (m *Machine) Shutdown(failure bool) {
	m.halted = true
	m.exitCode = ExitSuccess
	if failure {
		m.exitCode = ExitFailure
	}
}

// Halted reports whether the machine was shut down and the VIRT_TEST code it
// was shut down with.
func (m *Machine) Halted() (bool, uint32) {
	return m.halted, m.exitCode
}

// Write sends p to the console one byte at a time, which lets the firmware
// console serve as the kernel output sink.
func (m *Machine) Write(p []byte) (int, error) {
	for _, c := range p {
		m.ConsolePutchar(c)
	}
	return len(p), nil
}

// Call dispatches a legacy SBI call made with ecall from S-mode: eid in a7
// and the arguments in a0-a2. The return value is the one left in a0.
func Call(fw Firmware, eid uint64, args [3]uint64) int64 {
	switch eid {
	case EIDSetTimer:
		fw.SetTimer(args[0])
	case EIDConsolePutchar:
		fw.ConsolePutchar(byte(args[0]))
	case EIDConsoleGetchar:
		return int64(fw.ConsoleGetchar())
	case EIDShutdown:
		fw.Shutdown(args[0] != 0)
	default:
		return -2 // SBI_ERR_NOT_SUPPORTED
	}
	return 0
}
