// Package kmain assembles the kernel: it boots the emulated board, loads
// the init process and runs the scheduler until no process is left.
package kmain

import (
	"io"
	"log/slog"
	"mikuos/device"
	"mikuos/device/sbi"
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/fs"
	"mikuos/kernel/hal"
	"mikuos/kernel/kfmt"
	"mikuos/kernel/loader"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/pmm"
	"mikuos/kernel/mm/vmm"
	"mikuos/kernel/sync"
	"mikuos/kernel/task"
	"mikuos/kernel/timer"
	"mikuos/usr/bin"
)

var (
	errNoConsole   = &kernel.Error{Module: "kmain", Message: "no console driver initialized"}
	errBuiltinApps = &kernel.Error{Module: "kmain", Message: "built-in programs failed to assemble"}
	errInitMissing = &kernel.Error{Module: "kmain", Message: "init program is not registered"}
)

// motd is the content of /motd.
const motd = "Welcome to mikuos!\n"

// ExitRecord describes a process that has exited.
type ExitRecord struct {
	Pid   uint64
	Name  string
	Code  int32
	Times timer.Tms
}

// Kernel is the kernel context. It is built once by Boot and shared by
// reference with every subsystem.
type Kernel struct {
	cfg Config

	mem     *pmm.Memory
	frames  *pmm.FrameAllocator
	hart    *cpu.Hart
	machine *sbi.Machine
	clock   *timer.Clock
	devices *hal.Devices

	kernelSpace *sync.ExclusiveCell[*vmm.AddressSpace]
	env         *task.Env

	apps  *loader.Registry
	files *fs.MemFS

	init      *task.Process
	processor *task.Processor

	names map[*task.Process]string
	exits []ExitRecord

	log *slog.Logger
}

// imageLayout places the kernel image at KernelBase: the trampoline and
// trap handler pages followed by one page each for rodata, data and bss.
func imageLayout(memoryEnd uint64) vmm.KernelLayout {
	section := func(first, pages uint64) vmm.Section {
		start := mm.KernelBase + first*mm.PageSize
		return vmm.Section{Start: start, End: start + pages*mm.PageSize}
	}

	return vmm.KernelLayout{
		Text:      section(0, 2),
		Rodata:    section(2, 1),
		Data:      section(3, 1),
		BSS:       section(4, 1),
		MemoryEnd: memoryEnd,
		MMIO:      mm.MMIO,
	}
}

// Boot brings the board up. Console output goes to out and console input
// is read from in, which may be nil. Running out of memory while building
// the kernel space is fatal.
func Boot(cfg Config, out io.Writer, in <-chan byte) (*Kernel, *kernel.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kfmt.SetLogLevel(cfg.LogLevel)

	k := &Kernel{
		cfg:   cfg,
		apps:  loader.NewRegistry(),
		files: fs.NewMemFS(),
		names: make(map[*task.Process]string),
		log:   kfmt.Logger("kmain"),
	}

	k.mem = pmm.NewMemory(mm.KernelBase, cfg.MemoryEnd)
	k.hart = cpu.NewHart(k.mem)
	k.machine = sbi.NewMachine(k.hart, out, in)
	k.clock = timer.NewClock(k.hart, k.machine, cfg.ClockFreq, cfg.TicksPerSec)

	var drivers device.Registry
	drivers.RegisterDriver(sbi.ConsoleDriverInfo(k.machine))
	drivers.RegisterDriver(sbi.TimerDriverInfo(k.hart, k.machine, cfg.ClockFreq))
	if k.devices = hal.DetectHardware(&drivers); k.devices.Console == nil {
		return nil, errNoConsole
	}

	layout := imageLayout(cfg.MemoryEnd)
	k.frames = pmm.NewFrameAllocator(k.mem, layout.FirstFreeFrame(), mm.FrameFromAddress(cfg.MemoryEnd))

	ks, err := vmm.NewKernelSpace(k.frames, layout)
	if err != nil {
		kfmt.Panic(err)
	}
	ks.Activate(k.hart)
	k.kernelSpace = sync.NewExclusiveCell(ks)

	k.env = &task.Env{
		Frames:      k.frames,
		KernelSpace: k.kernelSpace,
		KernelSATP:  ks.SATP(),
		Pids:        task.NewPidAllocator(),
		Trampoline:  layout.TrampolineFrame(),
		Stdio:       fs.Stdio(k.machine),
	}

	if err = k.registerApps(); err != nil {
		return nil, err
	}
	k.files.WriteFile("/motd", []byte(motd))

	data, ok := k.apps.Lookup(cfg.Init)
	if !ok {
		return nil, errInitMissing
	}
	if k.init, err = task.NewProcess(k.env, data); err != nil {
		return nil, err
	}
	k.names[k.init] = cfg.Init

	k.processor = task.NewProcessor(k.hart, task.NewManager(), k.init)
	k.processor.Schedule(k.init)

	k.log.Info("kernel initialized",
		"memory", mm.Size(cfg.MemoryEnd-mm.KernelBase),
		"free_frames", k.frames.FreeFrames(),
		"apps", len(k.apps.Names()),
		"init", cfg.Init,
	)
	return k, nil
}

func (k *Kernel) registerApps() *kernel.Error {
	images, err := bin.Images()
	if err != nil {
		k.log.Error("cannot assemble built-in programs", "err", err)
		return errBuiltinApps
	}
	for _, img := range images {
		k.apps.Add(img.Name, img.ELF)
	}

	for name, data := range k.cfg.Apps {
		if _, err := loader.Parse(data); err != nil {
			k.log.Warn("skipping app", "name", name, "err", err.Message)
			continue
		}
		k.apps.Add(name, data)
	}
	return nil
}

// Run arms the preemption timer and schedules processes until none is
// runnable. The machine is then shut down, reporting failure when init
// exited with a non-zero code or the kernel halted. Run returns the
// VIRT_TEST exit status.
func (k *Kernel) Run() (status uint32) {
	defer func() {
		if r := recover(); r != nil {
			if r != cpu.ErrHalted {
				panic(r)
			}
			k.machine.Shutdown(true)
			_, status = k.machine.Halted()
		}
	}()

	k.clock.SetNextTrigger()
	k.processor.Run(k.handleTrap)

	code := k.init.ExitCode()
	k.log.Info("shutting down", "init_exit_code", code, "uptime", k.clock.Now())
	k.machine.Shutdown(k.init.State() != task.StateZombie || code != 0)

	_, status = k.machine.Halted()
	return status
}

// Hart returns the hart the kernel runs on.
func (k *Kernel) Hart() *cpu.Hart { return k.hart }

// Frames returns the physical frame allocator.
func (k *Kernel) Frames() *pmm.FrameAllocator { return k.frames }

// Clock returns the board clock.
func (k *Kernel) Clock() *timer.Clock { return k.clock }

// Files returns the in-memory file system.
func (k *Kernel) Files() *fs.MemFS { return k.files }

// Apps returns the program registry.
func (k *Kernel) Apps() *loader.Registry { return k.apps }

// Devices returns the drivers found at boot.
func (k *Kernel) Devices() *hal.Devices { return k.devices }

// Init returns the first process.
func (k *Kernel) Init() *task.Process { return k.init }

// Processor returns the scheduler.
func (k *Kernel) Processor() *task.Processor { return k.processor }

// Exits returns the processes that exited, in exit order.
func (k *Kernel) Exits() []ExitRecord { return k.exits }
