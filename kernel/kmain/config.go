package kmain

import (
	"mikuos/kernel"
	"mikuos/kernel/mm"
	"mikuos/kernel/timer"
)

var (
	errMemoryEnd   = &kernel.Error{Module: "kmain", Message: "memory end must be page aligned and leave room above the kernel image"}
	errClockFreq   = &kernel.Error{Module: "kmain", Message: "clock frequency must be non-zero"}
	errTicksPerSec = &kernel.Error{Module: "kmain", Message: "ticks per second must be between 1 and the clock frequency"}
	errNoInit      = &kernel.Error{Module: "kmain", Message: "no init program configured"}
)

// minFreeFrames is the smallest pool a kernel will boot with.
const minFreeFrames = 64

// Config selects the board the kernel boots on and what it runs.
type Config struct {
	// MemoryEnd is the end of the RAM managed by the kernel.
	MemoryEnd uint64

	ClockFreq   uint64
	TicksPerSec uint64

	// LogLevel is passed to kfmt.SetLogLevel.
	LogLevel string

	// Init names the first process.
	Init string

	// Apps are extra executables added to the built-in programs. An entry
	// replaces a built-in program of the same name.
	Apps map[string][]byte
}

// DefaultConfig returns the QEMU virt board running initproc.
func DefaultConfig() Config {
	return Config{
		MemoryEnd:   mm.DefaultMemoryEnd,
		ClockFreq:   timer.ClockFreq,
		TicksPerSec: timer.TicksPerSec,
		LogLevel:    "info",
		Init:        "initproc",
	}
}

// Validate checks that the kernel can boot with c.
func (c Config) Validate() *kernel.Error {
	imageEnd := imageLayout(c.MemoryEnd).BSS.End
	switch {
	case !mm.PageAligned(c.MemoryEnd), c.MemoryEnd < imageEnd+minFreeFrames*mm.PageSize:
		return errMemoryEnd
	case c.ClockFreq == 0:
		return errClockFreq
	case c.TicksPerSec == 0, c.TicksPerSec > c.ClockFreq:
		return errTicksPerSec
	case c.Init == "":
		return errNoInit
	}
	return nil
}
