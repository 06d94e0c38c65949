package syscall

import "testing"

type recorder struct {
	call string
	args []uint64
}

func (r *recorder) record(call string, args ...uint64) int64 {
	r.call, r.args = call, args
	return int64(len(call))
}

func (r *recorder) Chdir(path uint64) int64 { return r.record("chdir", path) }
func (r *recorder) Openat(dirfd int64, path uint64, flags, mode uint32) int64 {
	return r.record("openat", uint64(dirfd), path, uint64(flags), uint64(mode))
}
func (r *recorder) Close(fd int64) int64 { return r.record("close", uint64(fd)) }
func (r *recorder) Read(fd int64, buf, length uint64) int64 {
	return r.record("read", uint64(fd), buf, length)
}
func (r *recorder) Write(fd int64, buf, length uint64) int64 {
	return r.record("write", uint64(fd), buf, length)
}
func (r *recorder) Exit(code int32) { r.record("exit", uint64(code)) }
func (r *recorder) SchedYield() int64 { return r.record("sched_yield") }
func (r *recorder) Times(tms uint64) int64 { return r.record("times", tms) }
func (r *recorder) GetTimeOfDay(tv, tz uint64) int64 {
	return r.record("gettimeofday", tv, tz)
}
func (r *recorder) Getpid() int64 { return r.record("getpid") }
func (r *recorder) Getppid() int64 { return r.record("getppid") }
func (r *recorder) Brk(addr uint64) int64 { return r.record("brk", addr) }
func (r *recorder) Munmap(addr, n uint64) int64 { return r.record("munmap", addr, n) }
func (r *recorder) Fork() int64 { return r.record("fork") }
func (r *recorder) Execve(p, argv, envp uint64) int64 {
	return r.record("execve", p, argv, envp)
}
func (r *recorder) Mmap(addr, n uint64, prot, flags uint32, fd int64, off uint64) int64 {
	return r.record("mmap", addr, n, uint64(prot), uint64(flags), uint64(fd), off)
}
func (r *recorder) Waitpid(pid int64, status uint64, options uint32) int64 {
	return r.record("waitpid", uint64(pid), status, uint64(options))
}

func TestDispatch(t *testing.T) {
	args := [6]uint64{1, 2, 3, 4, 5, 6}

	specs := []struct {
		id     uint64
		call   string
		argc   int
		expRet int64
	}{
		{SysChdir, "chdir", 1, 5},
		{SysOpenat, "openat", 4, 6},
		{SysClose, "close", 1, 5},
		{SysRead, "read", 3, 4},
		{SysWrite, "write", 3, 5},
		{SysExit, "exit", 1, 0},
		{SysSchedYield, "sched_yield", 0, 11},
		{SysTimes, "times", 1, 5},
		{SysGetTimeOfDay, "gettimeofday", 2, 12},
		{SysGetpid, "getpid", 0, 6},
		{SysGetppid, "getppid", 0, 7},
		{SysBrk, "brk", 1, 3},
		{SysMunmap, "munmap", 2, 6},
		{SysFork, "fork", 0, 4},
		{SysExecve, "execve", 3, 6},
		{SysMmap, "mmap", 6, 4},
		{SysWaitpid, "waitpid", 3, 7},
	}

	for _, spec := range specs {
		var r recorder
		ret, ok := Dispatch(&r, spec.id, args)
		if !ok {
			t.Errorf("[%s] expected syscall %d to be supported", spec.call, spec.id)
			continue
		}
		if r.call != spec.call || len(r.args) != spec.argc || ret != spec.expRet {
			t.Errorf("[%s] expected %d args and result %d; got %s with %v returning %d", spec.call, spec.argc, spec.expRet, r.call, r.args, ret)
			continue
		}
		for i, arg := range r.args {
			if arg != args[i] {
				t.Errorf("[%s] expected argument %d to be %d; got %d", spec.call, i, args[i], arg)
			}
		}
		if Name(spec.id) != spec.call {
			t.Errorf("expected name %q; got %q", spec.call, Name(spec.id))
		}
	}

	if _, ok := Dispatch(&recorder{}, 999, args); ok {
		t.Fatal("expected an unknown syscall to be rejected")
	}
	if Name(999) != "unknown" {
		t.Fatalf("expected an unknown syscall name; got %q", Name(999))
	}
}
