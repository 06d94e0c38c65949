package task

import (
	"mikuos/kernel/cpu"
	"mikuos/kernel/trap"
)

// TaskContext holds the registers a voluntary switch preserves.
type TaskContext struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// GotoTrapReturn returns the context of a task that has never run: the
// first switch into it lands in trap return on an empty kernel stack.
func GotoTrapReturn(kstackTop uint64) TaskContext {
	return TaskContext{RA: trap.ReturnEntry, SP: kstackTop}
}

// Switch saves the callee-saved registers of hart into current and loads
// next.
func Switch(hart *cpu.Hart, current, next *TaskContext) {
	current.RA = hart.X[cpu.RegRA]
	current.SP = hart.X[cpu.RegSP]
	for i, reg := range cpu.CalleeSavedRegs {
		current.S[i] = hart.X[reg]
	}

	hart.X[cpu.RegRA] = next.RA
	hart.X[cpu.RegSP] = next.SP
	for i, reg := range cpu.CalleeSavedRegs {
		hart.X[reg] = next.S[i]
	}
}
