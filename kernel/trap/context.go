// Package trap implements the trap-context frame and the trampoline that
// moves a hart between user code and the kernel.
package trap

import (
	"encoding/binary"
	"mikuos/kernel"
	"mikuos/kernel/cpu"
)

// Slots of the trap context page. Each slot holds one 8-byte value; slots
// 0-31 hold x0..x31.
const (
	SlotSstatus     = 32
	SlotSepc        = 33
	SlotKernelSP    = 34
	SlotKernelSATP  = 35
	SlotTrapHandler = 36

	// ContextSize is the number of bytes used at the start of the page.
	ContextSize = (SlotTrapHandler + 1) * 8
)

// Context is a view of the trap context stored at the start of a frame.
type Context struct {
	buf []byte
}

// ContextAt returns the trap context view of a frame.
func ContextAt(frame []byte) Context {
	return Context{buf: frame[:ContextSize]}
}

func (c Context) slot(index int) uint64 {
	return binary.LittleEndian.Uint64(c.buf[index*8:])
}

func (c Context) setSlot(index int, v uint64) {
	binary.LittleEndian.PutUint64(c.buf[index*8:], v)
}

// Reg returns the saved value of register x<index>.
func (c Context) Reg(index int) uint64 { return c.slot(index) }

// SetReg overwrites the saved value of register x<index>.
func (c Context) SetReg(index int, v uint64) { c.setSlot(index, v) }

// Sstatus returns the saved sstatus.
func (c Context) Sstatus() uint64 { return c.slot(SlotSstatus) }

// Sepc returns the user PC at which the trap was taken.
func (c Context) Sepc() uint64 { return c.slot(SlotSepc) }

// SetSepc changes the user PC that trap return resumes at.
func (c Context) SetSepc(v uint64) { c.setSlot(SlotSepc, v) }

// KernelSP returns the kernel stack pointer loaded on trap entry.
func (c Context) KernelSP() uint64 { return c.slot(SlotKernelSP) }

// SetKernelSP changes the kernel stack pointer loaded on trap entry.
func (c Context) SetKernelSP(v uint64) { c.setSlot(SlotKernelSP, v) }

// KernelSATP returns the satp value loaded on trap entry.
func (c Context) KernelSATP() uint64 { return c.slot(SlotKernelSATP) }

// TrapHandler returns the kernel address trap entry jumps to.
func (c Context) TrapHandler() uint64 { return c.slot(SlotTrapHandler) }

// SyscallArgs returns the syscall number (a7) and its arguments (a0-a5).
func (c Context) SyscallArgs() (uint64, [6]uint64) {
	var args [6]uint64
	for i := range args {
		args[i] = c.Reg(cpu.RegA0 + i)
	}
	return c.Reg(cpu.RegA7), args
}

// InitApp prepares a context that enters user code at entry with the given
// stack pointer. Every other register is cleared and sstatus selects U-mode
// as the privilege to return to.
func InitApp(c Context, entry, userSP, kernelSATP, kernelSP, handler uint64) {
	kernel.Memset(c.buf, 0)

	c.SetReg(cpu.RegSP, userSP)
	c.setSlot(SlotSstatus, cpu.SstatusSPIE)
	c.setSlot(SlotSepc, entry)
	c.setSlot(SlotKernelSP, kernelSP)
	c.setSlot(SlotKernelSATP, kernelSATP)
	c.setSlot(SlotTrapHandler, handler)
}
