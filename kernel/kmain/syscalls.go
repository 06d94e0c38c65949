package kmain

import (
	"encoding/binary"
	"mikuos/kernel/fs"
	"mikuos/kernel/mm"
	"mikuos/kernel/mm/vmm"
	"mikuos/kernel/syscall"
	"mikuos/kernel/task"
	"path"
)

const (
	// maxPathLen bounds the strings read by openat and execve.
	maxPathLen = 255

	// maxArgs bounds the argv array read by execve.
	maxArgs = 32

	// waitNoHangResult is returned by waitpid when WNOHANG is set and no
	// child has exited yet.
	waitNoHangResult = -2
)

func (k *Kernel) current() *task.Process {
	return k.processor.Current()
}

// userTable opens the page table of the current process from its satp.
func (k *Kernel) userTable() *vmm.PageTable {
	return vmm.FromSATP(k.mem, k.current().SATP())
}

func (k *Kernel) resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(k.current().Cwd(), name)
}

// Chdir implements syscall.Kernel. The target must be an existing
// directory.
func (k *Kernel) Chdir(pathAddr uint64) int64 {
	name, err := k.userTable().ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return -1
	}

	dir := k.resolve(name)
	if !k.files.IsDir(dir) || !k.current().Chdir(dir) {
		return -1
	}
	return 0
}

// Openat implements syscall.Kernel. Only paths relative to the working
// directory or absolute paths are supported.
func (k *Kernel) Openat(dirfd int64, pathAddr uint64, flags, _ uint32) int64 {
	if dirfd != syscall.AtFdCwd {
		return -1
	}

	name, err := k.userTable().ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return -1
	}

	f, err := k.files.Open(k.resolve(name), fs.OpenFlag(flags))
	if err != nil {
		return -1
	}
	return int64(k.current().AllocFd(f))
}

// Close implements syscall.Kernel.
func (k *Kernel) Close(fd int64) int64 {
	if !k.current().CloseFd(fd) {
		return -1
	}
	return 0
}

// Read implements syscall.Kernel. It never blocks: a console with no
// pending input reads zero bytes.
func (k *Kernel) Read(fd int64, buf, length uint64) int64 {
	f, ok := k.current().File(fd)
	if !ok || !f.Readable() {
		return -1
	}

	bufs, err := k.userTable().UserBuffers(buf, length, true)
	if err != nil {
		return -1
	}

	var total int64
	for _, b := range bufs {
		n, err := f.Read(b)
		if err != nil {
			return -1
		}
		total += int64(n)
		if n < len(b) {
			break
		}
	}
	return total
}

// Write implements syscall.Kernel.
func (k *Kernel) Write(fd int64, buf, length uint64) int64 {
	f, ok := k.current().File(fd)
	if !ok || !f.Writable() {
		return -1
	}

	bufs, err := k.userTable().UserBuffers(buf, length, false)
	if err != nil {
		return -1
	}

	var total int64
	for _, b := range bufs {
		n, err := f.Write(b)
		if err != nil {
			return -1
		}
		total += int64(n)
	}
	return total
}

// Exit implements syscall.Kernel.
func (k *Kernel) Exit(code int32) {
	k.exit(k.current(), code)
}

// SchedYield implements syscall.Kernel.
func (k *Kernel) SchedYield() int64 {
	k.processor.Suspend()
	return 0
}

// Times implements syscall.Kernel. It fills a struct tms and returns the
// counter value.
func (k *Kernel) Times(tms uint64) int64 {
	times := k.current().Times()

	var buf [32]byte
	for i, v := range []int64{times.Utime, times.Stime, times.CUtime, times.CStime} {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	if err := k.userTable().WriteBytes(tms, buf[:]); err != nil {
		return -1
	}
	return int64(k.clock.Ticks())
}

// GetTimeOfDay implements syscall.Kernel. The time zone argument is
// ignored.
func (k *Kernel) GetTimeOfDay(tv, _ uint64) int64 {
	now := k.clock.Now()
	pt := k.userTable()
	if pt.WriteUint64(tv, now.Sec) != nil || pt.WriteUint64(tv+8, now.Usec) != nil {
		return -1
	}
	return 0
}

// Getpid implements syscall.Kernel.
func (k *Kernel) Getpid() int64 {
	return int64(k.current().Pid())
}

// Getppid implements syscall.Kernel. The root process reports 0.
func (k *Kernel) Getppid() int64 {
	if parent := k.current().Parent(); parent != nil {
		return int64(parent.Pid())
	}
	return 0
}

// Brk implements syscall.Kernel. brk(0) returns the current break;
// otherwise the break moves to addr and the old break is returned.
func (k *Kernel) Brk(addr uint64) int64 {
	p := k.current()
	if addr == 0 {
		return int64(p.Break())
	}

	if addr >= mm.LowerHalfEnd {
		return -1
	}

	old, ok := p.SetBreak(int64(addr) - int64(p.Break()))
	if !ok {
		return -1
	}
	return int64(old)
}

// Mmap implements syscall.Kernel. The address hint is ignored; mappings
// are placed below the previous ones. A file backed mapping is filled
// with the file contents starting at offset.
func (k *Kernel) Mmap(_, length uint64, prot, flags uint32, fd int64, offset uint64) int64 {
	if length == 0 {
		return -1
	}

	var perm vmm.Permission
	if prot&syscall.ProtRead != 0 {
		perm |= vmm.PermRead
	}
	// SV39 reserves write-only leaves.
	if prot&syscall.ProtWrite != 0 {
		perm |= vmm.PermRead | vmm.PermWrite
	}
	if prot&syscall.ProtExec != 0 {
		perm |= vmm.PermExec
	}

	p := k.current()

	var data []byte
	if flags&syscall.MapAnonymous == 0 {
		f, ok := p.File(fd)
		if !ok || !f.Readable() {
			return -1
		}
		contents, ok := k.files.ReadFile(f.Path())
		if !ok {
			return -1
		}
		if offset < uint64(len(contents)) {
			data = contents[offset:]
		}
		if uint64(len(data)) > length {
			data = data[:length]
		}
	}

	start, err := p.Mmap(length, perm, data)
	if err != nil {
		return -1
	}
	return int64(start)
}

// Munmap implements syscall.Kernel.
func (k *Kernel) Munmap(addr, length uint64) int64 {
	if !k.current().Munmap(addr, length) {
		return -1
	}
	return 0
}

// Fork implements syscall.Kernel.
func (k *Kernel) Fork() int64 {
	p := k.current()
	child, err := p.Fork()
	if err != nil {
		k.log.Warn("fork failed", "pid", p.Pid(), "err", err.Message)
		return -1
	}

	k.names[child] = k.names[p]
	k.processor.Schedule(child)
	return int64(child.Pid())
}

// Execve implements syscall.Kernel. The environment is ignored.
func (k *Kernel) Execve(pathAddr, argvAddr, _ uint64) int64 {
	p := k.current()
	pt := k.userTable()

	name, err := pt.ReadCString(pathAddr, maxPathLen)
	if err != nil {
		return -1
	}

	var argv []string
	for argvAddr != 0 && len(argv) < maxArgs {
		ptr, err := pt.ReadUint64(argvAddr + uint64(len(argv))*8)
		if err != nil {
			return -1
		}
		if ptr == 0 {
			break
		}
		arg, err := pt.ReadCString(ptr, maxPathLen)
		if err != nil {
			return -1
		}
		argv = append(argv, arg)
	}

	data, ok := k.apps.Lookup(k.resolve(name))
	if !ok {
		return -1
	}

	argc, err := p.Exec(data, argv)
	if err != nil {
		k.log.Warn("exec failed", "pid", p.Pid(), "path", name, "err", err.Message)
		return -1
	}

	k.names[p] = path.Base(name)
	k.log.Debug("exec", "pid", p.Pid(), "path", name, "argc", argc)
	return int64(argc)
}

// Waitpid implements syscall.Kernel. Without WNOHANG a caller with live
// matching children is parked and the call is restarted once one of them
// exits.
func (k *Kernel) Waitpid(pid int64, status uint64, options uint32) int64 {
	p := k.current()

	childPid, code, result := p.WaitChild(pid)
	switch result {
	case task.WaitNoChild:
		return -1
	case task.WaitReaped:
		if status != 0 {
			if err := k.userTable().WriteUint32(status, uint32(code)); err != nil {
				return -1
			}
		}
		return int64(childPid)
	}

	if options&syscall.WNoHang != 0 {
		return waitNoHangResult
	}

	ctx := p.TrapContext()
	ctx.SetSepc(ctx.Sepc() - 4)
	k.processor.Park(pid)
	return 0
}
