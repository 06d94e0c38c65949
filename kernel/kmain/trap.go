package kmain

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm/vmm"
	"mikuos/kernel/syscall"
	"mikuos/kernel/task"
)

// Exit codes of processes killed by the kernel.
const (
	ExitMemoryFault        = -2
	ExitIllegalInstruction = -3
	ExitBadSyscall         = -4
)

var errUnexpectedTrap = &kernel.Error{Module: "kmain", Message: "unexpected interrupt"}

// handleTrap dispatches a trap taken by the current process p.
func (k *Kernel) handleTrap(p *task.Process, t cpu.Trap) {
	switch t.Cause {
	case cpu.CauseUserEnvCall:
		k.syscall(p)
	case cpu.CauseSupervisorTimer:
		k.clock.SetNextTrigger()
		k.processor.Suspend()
	case cpu.CauseLoadFault, cpu.CauseStoreFault, cpu.CauseInstructionFault,
		cpu.CauseLoadPageFault, cpu.CauseStorePageFault, cpu.CauseInstructionPageFault,
		cpu.CauseLoadMisaligned, cpu.CauseStoreMisaligned, cpu.CauseInstructionMisaligned:
		vmm.ReportFault(p.Space().PageTable(), t.Cause, t.Tval, t.PC)
		k.kill(p, t, ExitMemoryFault)
	case cpu.CauseIllegalInstruction, cpu.CauseBreakpoint:
		k.kill(p, t, ExitIllegalInstruction)
	default:
		kfmt.Panic(errUnexpectedTrap)
	}
}

// syscall runs the system call p trapped with. The result goes to a0
// unless the process exited or blocked; a blocked waitpid is restarted
// once the process is woken.
func (k *Kernel) syscall(p *task.Process) {
	ctx := p.TrapContext()
	ctx.SetSepc(ctx.Sepc() + 4)

	id, args := ctx.SyscallArgs()
	ret, ok := syscall.Dispatch(k, id, args)
	if !ok {
		k.log.Warn("unsupported syscall", "pid", p.Pid(), "id", id, "pc", kfmt.Hex(ctx.Sepc()-4))
		k.exit(p, ExitBadSyscall)
		return
	}

	if state := p.State(); state == task.StateZombie || state == task.StateBlocked {
		return
	}

	// exec installs a new trap context page.
	p.TrapContext().SetReg(cpu.RegA0, uint64(ret))
}

func (k *Kernel) kill(p *task.Process, t cpu.Trap, code int32) {
	k.log.Warn("process killed",
		"pid", p.Pid(),
		"cause", cpu.CauseName(t.Cause),
		"pc", kfmt.Hex(t.PC),
		"stval", kfmt.Hex(t.Tval),
		"code", code,
	)
	k.exit(p, code)
}

// exit records p's exit and turns it into a zombie.
func (k *Kernel) exit(p *task.Process, code int32) {
	k.processor.ExitCurrent(code)
	k.exits = append(k.exits, ExitRecord{Pid: p.Pid(), Name: k.names[p], Code: code, Times: p.Times()})
	delete(k.names, p)
}
