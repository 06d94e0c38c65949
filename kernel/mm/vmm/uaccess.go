package vmm

import (
	"encoding/binary"
	"mikuos/kernel"
	"mikuos/kernel/mm"
)

var (
	errBadUserAddress = &kernel.Error{Module: "vmm", Message: "user buffer is not mapped with the required access"}
	errUnterminated   = &kernel.Error{Module: "vmm", Message: "user string is not NUL terminated"}
)

// UserBuffers returns the physical byte slices backing the user range
// [virtAddr, virtAddr+length), one per page touched. Every page must be
// mapped with the U bit and must be writable when write is set, and the
// whole range must sit in one canonical half, otherwise an error is
// returned.
func (pt *PageTable) UserBuffers(virtAddr, length uint64, write bool) ([][]byte, *kernel.Error) {
	need := mm.FlagValid | mm.FlagUser | mm.FlagRead
	if write {
		need |= mm.FlagWrite
	}

	if virtAddr+length < virtAddr || !mm.CanonicalAddress(virtAddr) {
		return nil, errBadUserAddress
	}
	if length != 0 {
		last := virtAddr + length - 1
		if !mm.CanonicalAddress(last) || (virtAddr < mm.LowerHalfEnd) != (last < mm.LowerHalfEnd) {
			return nil, errBadUserAddress
		}
	}

	var bufs [][]byte
	for addr, end := virtAddr, virtAddr+length; addr < end; {
		pte, ok := pt.Translate(mm.PageFromAddress(addr))
		if !ok || !pte.HasFlags(need) || !pt.mem.ContainsFrame(pte.Frame()) {
			return nil, errBadUserAddress
		}

		off := mm.PageOffset(addr)
		chunk := mm.PageSize - off
		if rem := end - addr; rem < chunk {
			chunk = rem
		}

		bufs = append(bufs, pt.mem.Bytes(pte.Frame())[off:off+chunk])
		addr += chunk
	}

	return bufs, nil
}

// ReadBytes copies len(buf) bytes of user memory starting at virtAddr.
func (pt *PageTable) ReadBytes(virtAddr uint64, buf []byte) *kernel.Error {
	bufs, err := pt.UserBuffers(virtAddr, uint64(len(buf)), false)
	if err != nil {
		return err
	}
	for _, src := range bufs {
		buf = buf[kernel.Memcopy(src, buf):]
	}
	return nil
}

// WriteBytes copies data into user memory starting at virtAddr.
func (pt *PageTable) WriteBytes(virtAddr uint64, data []byte) *kernel.Error {
	bufs, err := pt.UserBuffers(virtAddr, uint64(len(data)), true)
	if err != nil {
		return err
	}
	for _, dst := range bufs {
		data = data[kernel.Memcopy(data, dst):]
	}
	return nil
}

// ReadUint64 loads a little endian double word from user memory.
func (pt *PageTable) ReadUint64(virtAddr uint64) (uint64, *kernel.Error) {
	var buf [8]byte
	if err := pt.ReadBytes(virtAddr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteUint64 stores a little endian double word to user memory.
func (pt *PageTable) WriteUint64(virtAddr, v uint64) *kernel.Error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return pt.WriteBytes(virtAddr, buf[:])
}

// WriteUint32 stores a little endian word to user memory.
func (pt *PageTable) WriteUint32(virtAddr uint64, v uint32) *kernel.Error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return pt.WriteBytes(virtAddr, buf[:])
}

// ReadCString reads a NUL terminated string of at most maxLen bytes
// (terminator excluded) from user memory.
func (pt *PageTable) ReadCString(virtAddr uint64, maxLen int) (string, *kernel.Error) {
	out := make([]byte, 0, 32)
	for len(out) <= maxLen {
		var b [1]byte
		if err := pt.ReadBytes(virtAddr+uint64(len(out)), b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
	return "", errUnterminated
}
