// Package syscall decodes system calls and routes them to the kernel.
package syscall

// System call numbers.
const (
	SysChdir        = 49
	SysOpenat       = 56
	SysClose        = 57
	SysRead         = 63
	SysWrite        = 64
	SysExit         = 93
	SysSchedYield   = 124
	SysTimes        = 153
	SysGetTimeOfDay = 169
	SysGetpid       = 172
	SysGetppid      = 173
	SysBrk          = 214
	SysMunmap       = 215
	SysFork         = 220
	SysExecve       = 221
	SysMmap         = 222
	SysWaitpid      = 260
)

// Argument flags.
const (
	// AtFdCwd resolves openat paths against the working directory.
	AtFdCwd = -100

	// WNoHang makes waitpid return -2 instead of blocking.
	WNoHang = 1

	ProtRead  = 1
	ProtWrite = 2
	ProtExec  = 4

	MapShared    = 0x01
	MapPrivate   = 0x02
	MapAnonymous = 0x20
)

// Kernel carries out system calls on behalf of the process that trapped.
// Pointer arguments are user virtual addresses.
type Kernel interface {
	Chdir(path uint64) int64
	Openat(dirfd int64, path uint64, flags uint32, mode uint32) int64
	Close(fd int64) int64
	Read(fd int64, buf, length uint64) int64
	Write(fd int64, buf, length uint64) int64
	Exit(code int32)
	SchedYield() int64
	Times(tms uint64) int64
	GetTimeOfDay(tv, tz uint64) int64
	Getpid() int64
	Getppid() int64
	Brk(addr uint64) int64
	Munmap(addr, length uint64) int64
	Fork() int64
	Execve(path, argv, envp uint64) int64
	Mmap(addr, length uint64, prot, flags uint32, fd int64, offset uint64) int64
	Waitpid(pid int64, status uint64, options uint32) int64
}

type handlerFn func(k Kernel, a [6]uint64) int64

var table = map[uint64]handlerFn{
	SysChdir: func(k Kernel, a [6]uint64) int64 { return k.Chdir(a[0]) },
	SysOpenat: func(k Kernel, a [6]uint64) int64 {
		return k.Openat(int64(a[0]), a[1], uint32(a[2]), uint32(a[3]))
	},
	SysClose: func(k Kernel, a [6]uint64) int64 { return k.Close(int64(a[0])) },
	SysRead:  func(k Kernel, a [6]uint64) int64 { return k.Read(int64(a[0]), a[1], a[2]) },
	SysWrite: func(k Kernel, a [6]uint64) int64 { return k.Write(int64(a[0]), a[1], a[2]) },
	SysExit: func(k Kernel, a [6]uint64) int64 {
		k.Exit(int32(a[0]))
		return 0
	},
	SysSchedYield:   func(k Kernel, _ [6]uint64) int64 { return k.SchedYield() },
	SysTimes:        func(k Kernel, a [6]uint64) int64 { return k.Times(a[0]) },
	SysGetTimeOfDay: func(k Kernel, a [6]uint64) int64 { return k.GetTimeOfDay(a[0], a[1]) },
	SysGetpid:       func(k Kernel, _ [6]uint64) int64 { return k.Getpid() },
	SysGetppid:      func(k Kernel, _ [6]uint64) int64 { return k.Getppid() },
	SysBrk:          func(k Kernel, a [6]uint64) int64 { return k.Brk(a[0]) },
	SysMunmap:       func(k Kernel, a [6]uint64) int64 { return k.Munmap(a[0], a[1]) },
	SysFork:         func(k Kernel, _ [6]uint64) int64 { return k.Fork() },
	SysExecve:       func(k Kernel, a [6]uint64) int64 { return k.Execve(a[0], a[1], a[2]) },
	SysMmap: func(k Kernel, a [6]uint64) int64 {
		return k.Mmap(a[0], a[1], uint32(a[2]), uint32(a[3]), int64(a[4]), a[5])
	},
	SysWaitpid: func(k Kernel, a [6]uint64) int64 {
		return k.Waitpid(int64(a[0]), a[1], uint32(a[2]))
	},
}

// Dispatch invokes system call id. It returns false for an unknown id.
func Dispatch(k Kernel, id uint64, args [6]uint64) (int64, bool) {
	fn, ok := table[id]
	if !ok {
		return 0, false
	}
	return fn(k, args), true
}

var names = map[uint64]string{
	SysChdir:        "chdir",
	SysOpenat:       "openat",
	SysClose:        "close",
	SysRead:         "read",
	SysWrite:        "write",
	SysExit:         "exit",
	SysSchedYield:   "sched_yield",
	SysTimes:        "times",
	SysGetTimeOfDay: "gettimeofday",
	SysGetpid:       "getpid",
	SysGetppid:      "getppid",
	SysBrk:          "brk",
	SysMunmap:       "munmap",
	SysFork:         "fork",
	SysExecve:       "execve",
	SysMmap:         "mmap",
	SysWaitpid:      "waitpid",
}

// Name returns the name of a system call.
func Name(id uint64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "unknown"
}
