// Package task implements processes, the ready queue and the processor
// that moves the hart between them.
package task

import (
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/fs"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
	"mikuos/kernel/mm/vmm"
	"mikuos/kernel/sync"
	"mikuos/kernel/timer"
	"mikuos/kernel/trap"
	"path"
)

var (
	errNoTrapContext = &kernel.Error{Module: "task", Message: "address space has no trap context page"}
	errProcessExited = &kernel.Error{Module: "task", Message: "process has already exited"}
	errMmapNoAccess  = &kernel.Error{Module: "task", Message: "mapping needs at least one of read, write or exec"}
)

// Env is the part of the kernel context processes are built from.
type Env struct {
	Frames      *pmm.FrameAllocator
	KernelSpace *sync.ExclusiveCell[*vmm.AddressSpace]
	KernelSATP  uint64
	Pids        *PidAllocator
	Trampoline  mm.Frame

	// Stdio is installed as descriptors 0-2 of every new process.
	Stdio [3]fs.File
}

// State is the scheduling state of a process.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateZombie
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	}
	return "zombie"
}

type mmapRegion struct {
	start, end uint64
}

// Process is a user program together with the kernel resources it owns.
type Process struct {
	env    *Env
	pid    *PidHandle
	kstack *KernelStack

	space     *vmm.AddressSpace
	trapFrame mm.Frame
	heapBase  uint64
	brk       uint64

	ctx      TaskContext
	state    State
	waitFor  int64
	exitCode int32

	parent   *Process
	children []*Process

	fds  []fs.File
	cwd  string
	acct timer.Accounting

	mmapBase vmm.RegionReserver
	mmaps    []mmapRegion
}

// NewProcess creates a ready process running the executable image data.
func NewProcess(env *Env, data []byte) (*Process, *kernel.Error) {
	img, err := vmm.FromELF(env.Frames, data, env.Trampoline)
	if err != nil {
		return nil, err
	}

	p, err := newProcess(env, img.Space, img.HeapBase)
	if err != nil {
		img.Space.Release()
		return nil, err
	}

	p.fds = append(p.fds, env.Stdio[:]...)
	trap.InitApp(p.TrapContext(), img.Entry, img.StackTop, env.KernelSATP, p.kstack.Top(), trap.HandlerEntry)
	return p, nil
}

func newProcess(env *Env, space *vmm.AddressSpace, heapBase uint64) (*Process, *kernel.Error) {
	trapFrame, err := trapFrameOf(space)
	if err != nil {
		return nil, err
	}

	pid := env.Pids.Alloc()
	kstack, err := NewKernelStack(env.KernelSpace, pid.Pid())
	if err != nil {
		pid.Release()
		return nil, err
	}

	return &Process{
		env:       env,
		pid:       pid,
		kstack:    kstack,
		space:     space,
		trapFrame: trapFrame,
		heapBase:  heapBase,
		brk:       heapBase,
		ctx:       GotoTrapReturn(kstack.Top()),
		state:     StateReady,
		cwd:       "/",
		mmapBase:  vmm.NewRegionReserver(mm.MmapTop, mm.UpperHalfBase),
	}, nil
}

func trapFrameOf(space *vmm.AddressSpace) (mm.Frame, *kernel.Error) {
	pte, ok := space.Translate(mm.PageFromAddress(mm.TrapContextBase))
	if !ok {
		return mm.InvalidFrame, errNoTrapContext
	}
	return pte.Frame(), nil
}

// Pid returns the process identifier.
func (p *Process) Pid() uint64 { return p.pid.Pid() }

// State returns the scheduling state.
func (p *Process) State() State { return p.state }

// ExitCode returns the code recorded at exit.
func (p *Process) ExitCode() int32 { return p.exitCode }

// Parent returns the parent process or nil for the root.
func (p *Process) Parent() *Process { return p.parent }

// Children returns the live and zombie children not yet reaped.
func (p *Process) Children() []*Process { return p.children }

// Space returns the user address space; it is nil once the process exits.
func (p *Process) Space() *vmm.AddressSpace { return p.space }

// KernelStack returns the kernel stack of the process.
func (p *Process) KernelStack() *KernelStack { return p.kstack }

// Context returns the saved task context.
func (p *Process) Context() *TaskContext { return &p.ctx }

// SATP returns the token that activates the user address space.
func (p *Process) SATP() uint64 {
	kfmt.Assert(p.space != nil, errProcessExited)
	return p.space.SATP()
}

// TrapContext returns the trap context page of the process.
func (p *Process) TrapContext() trap.Context {
	kfmt.Assert(p.space != nil, errProcessExited)
	return trap.ContextAt(p.env.Frames.Memory().Bytes(p.trapFrame))
}

// HeapBase returns the lowest heap address.
func (p *Process) HeapBase() uint64 { return p.heapBase }

// Break returns the current program break.
func (p *Process) Break() uint64 { return p.brk }

// Cwd returns the working directory.
func (p *Process) Cwd() string { return p.cwd }

// Chdir changes the working directory. dir must be absolute.
func (p *Process) Chdir(dir string) bool {
	if !path.IsAbs(dir) {
		return false
	}
	p.cwd = path.Clean(dir)
	return true
}

// Times returns the accumulated process times.
func (p *Process) Times() timer.Tms { return p.acct.Times() }

// Fork duplicates the process. The child gets a copy of every user page,
// the descriptor table and the break; it resumes from the same trap with
// a0 cleared.
func (p *Process) Fork() (*Process, *kernel.Error) {
	space, err := vmm.FromAnother(p.space)
	if err != nil {
		return nil, err
	}

	child, err := newProcess(p.env, space, p.heapBase)
	if err != nil {
		space.Release()
		return nil, err
	}

	child.brk = p.brk
	child.cwd = p.cwd
	child.fds = append([]fs.File(nil), p.fds...)
	child.mmapBase = p.mmapBase
	child.mmaps = append([]mmapRegion(nil), p.mmaps...)
	child.parent = p
	p.children = append(p.children, child)

	ctx := child.TrapContext()
	ctx.SetKernelSP(child.kstack.Top())
	ctx.SetReg(cpu.RegA0, 0)
	return child, nil
}

// Exec replaces the user image of the process with data and pushes argv
// onto the new stack. The pid and descriptor table are kept. It returns
// argc, which is also left in a0 with the argv pointer in a1.
func (p *Process) Exec(data []byte, argv []string) (int, *kernel.Error) {
	img, err := vmm.FromELF(p.env.Frames, data, p.env.Trampoline)
	if err != nil {
		return 0, err
	}

	sp, argvBase, err := pushArgs(img.Space.PageTable(), img.StackTop, argv)
	if err != nil {
		img.Space.Release()
		return 0, err
	}

	trapFrame, err := trapFrameOf(img.Space)
	if err != nil {
		img.Space.Release()
		return 0, err
	}

	// The hart is on the kernel space here, so the old user pages can go.
	p.space.Release()
	p.space = img.Space
	p.trapFrame = trapFrame
	p.heapBase, p.brk = img.HeapBase, img.HeapBase
	p.mmapBase = vmm.NewRegionReserver(mm.MmapTop, mm.UpperHalfBase)
	p.mmaps = nil

	ctx := p.TrapContext()
	trap.InitApp(ctx, img.Entry, sp, p.env.KernelSATP, p.kstack.Top(), trap.HandlerEntry)
	ctx.SetReg(cpu.RegA0, uint64(len(argv)))
	ctx.SetReg(cpu.RegA1, argvBase)
	return len(argv), nil
}

// pushArgs lays argv out below top: the pointer array first, then the
// strings, with the final stack pointer aligned to 8 bytes.
func pushArgs(pt *vmm.PageTable, top uint64, argv []string) (uint64, uint64, *kernel.Error) {
	sp := top - uint64(len(argv)+1)*8
	argvBase := sp

	for i, arg := range argv {
		sp -= uint64(len(arg)) + 1
		if err := pt.WriteBytes(sp, append([]byte(arg), 0)); err != nil {
			return 0, 0, err
		}
		if err := pt.WriteUint64(argvBase+uint64(i)*8, sp); err != nil {
			return 0, 0, err
		}
	}
	if err := pt.WriteUint64(argvBase+uint64(len(argv))*8, 0); err != nil {
		return 0, 0, err
	}

	return sp &^ 7, argvBase, nil
}

// SetBreak moves the program break by delta bytes and returns the old
// break. It fails when the break would drop below the heap base, leave the
// lower half of the address space or the heap cannot grow.
func (p *Process) SetBreak(delta int64) (uint64, bool) {
	old := p.brk
	newBrk := old
	if delta >= 0 {
		if uint64(delta) >= mm.LowerHalfEnd-old {
			return 0, false
		}
		newBrk += uint64(delta)
	} else {
		// uint64(-delta) is the magnitude, math.MinInt64 included.
		shrink := uint64(-delta)
		if shrink > old-p.heapBase {
			return 0, false
		}
		newBrk -= shrink
	}

	if err := p.space.ChangeAreaEnd(p.heapBase, newBrk); err != nil {
		return 0, false
	}
	p.brk = newBrk
	return old, true
}

// AllocFd installs f at the lowest free descriptor.
func (p *Process) AllocFd(f fs.File) int {
	for fd, slot := range p.fds {
		if slot == nil {
			p.fds[fd] = f
			return fd
		}
	}
	p.fds = append(p.fds, f)
	return len(p.fds) - 1
}

// File returns the file open at fd.
func (p *Process) File(fd int64) (fs.File, bool) {
	if fd < 0 || fd >= int64(len(p.fds)) || p.fds[fd] == nil {
		return nil, false
	}
	return p.fds[fd], true
}

// CloseFd frees a descriptor.
func (p *Process) CloseFd(fd int64) bool {
	if _, ok := p.File(fd); !ok {
		return false
	}
	p.fds[fd] = nil
	return true
}

// Mmap maps a fresh region of length bytes below the previous mappings,
// fills it with data and returns its start address.
func (p *Process) Mmap(length uint64, perm vmm.Permission, data []byte) (uint64, *kernel.Error) {
	if perm&(vmm.PermRead|vmm.PermWrite|vmm.PermExec) == 0 {
		return 0, errMmapNoAccess
	}

	start, err := p.mmapBase.Reserve(length)
	if err != nil {
		return 0, err
	}

	end := mm.PageFromAddressCeil(start + length).Address()
	if err = p.space.InsertAreaWithData(vmm.NewFramedArea(start, end, perm|vmm.PermUser), data, 0); err != nil {
		return 0, err
	}

	p.mmaps = append(p.mmaps, mmapRegion{start: start, end: end})
	return start, nil
}

// Munmap removes the region that Mmap returned for start and length.
func (p *Process) Munmap(start, length uint64) bool {
	end := mm.PageFromAddressCeil(start + length).Address()
	for i, region := range p.mmaps {
		if region.start != start || region.end != end {
			continue
		}
		p.space.RemoveArea(start)
		p.mmaps = append(p.mmaps[:i], p.mmaps[i+1:]...)
		return true
	}
	return false
}

// exit turns the process into a zombie: its user memory and descriptors
// are released and its children move to root. The children are returned.
func (p *Process) exit(code int32, root *Process) []*Process {
	if root == p {
		root = nil
	}

	orphans := p.children
	for _, child := range orphans {
		child.parent = root
		if root != nil {
			root.children = append(root.children, child)
		}
	}
	p.children = nil

	p.space.Release()
	p.space = nil
	p.trapFrame = mm.InvalidFrame
	p.fds = nil
	p.mmaps = nil
	p.exitCode = code
	p.state = StateZombie
	return orphans
}

// WaitResult is the outcome of WaitChild.
type WaitResult uint8

const (
	// WaitNoChild means no child matches.
	WaitNoChild WaitResult = iota
	// WaitPending means matching children exist but none has exited.
	WaitPending
	// WaitReaped means a zombie child was reaped.
	WaitReaped
)

// WaitChild reaps a zombie child matching pid; -1 matches any child. The
// child's kernel stack and pid are released and its times folded into the
// parent's.
func (p *Process) WaitChild(pid int64) (uint64, int32, WaitResult) {
	result := WaitNoChild
	for i, child := range p.children {
		if pid != -1 && int64(child.Pid()) != pid {
			continue
		}
		if child.state != StateZombie {
			result = WaitPending
			continue
		}

		p.children = append(p.children[:i], p.children[i+1:]...)
		p.acct.AddChild(child.acct.Times())
		childPid, code := child.Pid(), child.exitCode
		child.reap()
		return childPid, code, WaitReaped
	}
	return 0, 0, result
}

func (p *Process) reap() {
	p.kstack.Release()
	p.pid.Release()
	p.parent = nil
}
