package kfmt

import (
	"fmt"
	"mikuos/kernel"
	"mikuos/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// hart. Calls to Panic never return. Assertion failures anywhere in the kernel
// (remapping a live page, freeing a free frame, a second borrow of an
// exclusive cell) end up here.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	case fmt.Stringer:
		errRuntimePanic.Message = t.String()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// Assert panics with err unless cond holds.
func Assert(cond bool, err *kernel.Error) {
	if !cond {
		Panic(err)
	}
}

func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
