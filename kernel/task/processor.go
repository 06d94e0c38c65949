package task

import (
	"log/slog"
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/trap"
)

var (
	errNotTrapReturn = &kernel.Error{Module: "task", Message: "task context does not resume at trap return"}
	errNoCurrent     = &kernel.Error{Module: "task", Message: "no process is running"}
)

// Outcome tells the processor what to do once a trap has been handled.
type Outcome uint8

const (
	// OutcomeResume returns to the trapped process.
	OutcomeResume Outcome = iota
	// OutcomeYield puts the process at the back of the ready queue.
	OutcomeYield
	// OutcomeBlock parks the process until a child exits.
	OutcomeBlock
	// OutcomeExit drops the process, which is now a zombie.
	OutcomeExit
)

// TrapHandler handles a trap taken by p. The handler decides the outcome
// by calling Suspend, Park or ExitCurrent; otherwise p is resumed.
type TrapHandler func(p *Process, t cpu.Trap)

// Processor runs the ready processes on the hart one at a time.
type Processor struct {
	hart    *cpu.Hart
	manager *Manager
	root    *Process
	current *Process
	idle    TaskContext
	pending Outcome
	log     *slog.Logger
}

// NewProcessor returns a processor scheduling from manager. Orphans are
// handed to root.
func NewProcessor(hart *cpu.Hart, manager *Manager, root *Process) *Processor {
	return &Processor{hart: hart, manager: manager, root: root, log: kfmt.Logger("task")}
}

// Current returns the running process.
func (pr *Processor) Current() *Process { return pr.current }

// Root returns the process that adopts orphans.
func (pr *Processor) Root() *Process { return pr.root }

// Manager returns the ready queue.
func (pr *Processor) Manager() *Manager { return pr.manager }

// Schedule makes a new process runnable.
func (pr *Processor) Schedule(p *Process) {
	p.acct.Start(pr.hart.Time())
	p.state = StateReady
	pr.manager.Add(p)
}

// Run switches to ready processes until the queue is empty.
func (pr *Processor) Run(handle TrapHandler) {
	for {
		next := pr.manager.Fetch()
		if next == nil {
			pr.log.Info("no runnable processes")
			return
		}

		next.state = StateRunning
		pr.current = next
		Switch(pr.hart, &pr.idle, &next.ctx)
		pr.runCurrent(handle)
		pr.current = nil
	}
}

// runCurrent executes on the kernel stack of the current process. It loops
// over trap return and trap entry until the handler gives up the hart.
func (pr *Processor) runCurrent(handle TrapHandler) {
	p := pr.current
	kfmt.Assert(pr.hart.X[cpu.RegRA] == trap.ReturnEntry, errNotTrapReturn)

	for {
		p.acct.EnterUser(pr.hart.Time())
		trap.Return(pr.hart, p.SATP())
		t := pr.hart.Run()
		trap.Save(pr.hart)
		p.acct.EnterKernel(pr.hart.Time())

		pr.pending = OutcomeResume
		handle(p, t)
		if pr.pending == OutcomeResume {
			continue
		}

		// Once switched back to, the handler returns into trap return.
		pr.hart.X[cpu.RegRA] = trap.ReturnEntry
		Switch(pr.hart, &p.ctx, &pr.idle)

		if pr.pending == OutcomeYield {
			p.state = StateReady
			pr.manager.Add(p)
		}
		return
	}
}

// Suspend moves the current process to the back of the ready queue once
// the trap handler returns.
func (pr *Processor) Suspend() {
	kfmt.Assert(pr.current != nil, errNoCurrent)
	pr.pending = OutcomeYield
}

// Park blocks the current process until a child matching pid (-1 for any)
// becomes a zombie.
func (pr *Processor) Park(pid int64) {
	kfmt.Assert(pr.current != nil, errNoCurrent)
	pr.current.state = StateBlocked
	pr.current.waitFor = pid
	pr.pending = OutcomeBlock
}

// ExitCurrent terminates the current process with code. Its children are
// reparented to the root and a parent blocked on it is woken.
func (pr *Processor) ExitCurrent(code int32) {
	p := pr.current
	kfmt.Assert(p != nil, errNoCurrent)

	parent := p.parent
	orphans := p.exit(code, pr.root)
	pr.pending = OutcomeExit
	pr.log.Debug("process exited", "pid", p.Pid(), "code", code)

	pr.wake(parent, p)
	for _, child := range orphans {
		if child.state == StateZombie {
			pr.wake(child.parent, child)
		}
	}
}

func (pr *Processor) wake(parent, child *Process) {
	if parent == nil || parent.state != StateBlocked {
		return
	}
	if parent.waitFor == -1 || parent.waitFor == int64(child.Pid()) {
		parent.state = StateReady
		pr.manager.Add(parent)
	}
}
