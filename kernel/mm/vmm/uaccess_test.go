package vmm

import (
	"mikuos/kernel/mm"
	"testing"
)

func TestUserAccessors(t *testing.T) {
	_, alloc := newTestAllocator(32)
	space, _ := NewAddressSpace(alloc)

	_ = space.InsertFramedArea(0x1000, 0x3000, PermRead|PermWrite|PermUser)
	_ = space.InsertFramedArea(0x3000, 0x4000, PermRead|PermUser)
	_ = space.InsertFramedArea(0x5000, 0x6000, PermRead|PermWrite)
	pt := space.PageTable()

	// Writes straddling a page boundary land in two frames.
	if err := pt.WriteBytes(0x1ffc, []byte("boundary\x00")); err != nil {
		t.Fatal(err)
	}
	bufs, err := pt.UserBuffers(0x1ffc, 9, false)
	if err != nil || len(bufs) != 2 || len(bufs[0]) != 4 || len(bufs[1]) != 5 {
		t.Fatalf("expected a 4+5 byte split; got %d buffers (%v)", len(bufs), err)
	}

	if s, err := pt.ReadCString(0x1ffc, 64); err != nil || s != "boundary" {
		t.Fatalf("expected to read back %q; got %q (%v)", "boundary", s, err)
	}
	if _, err := pt.ReadCString(0x1ffc, 4); err != errUnterminated {
		t.Fatalf("expected errUnterminated for a short limit; got %v", err)
	}

	if err := pt.WriteUint64(0x2000, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	if v, err := pt.ReadUint64(0x2000); err != nil || v != 0x1122334455667788 {
		t.Fatalf("expected round trip value; got %x (%v)", v, err)
	}

	specs := []struct {
		descr string
		addr  uint64
		size  uint64
		write bool
	}{
		{"unmapped", 0x4000, 1, false},
		{"runs into unmapped page", 0x2ff8, 0x1010, false},
		{"write to read-only page", 0x3000, 1, true},
		{"kernel-only page", 0x5000, 1, false},
		{"wrapping range", ^uint64(0) - 2, 8, false},
		{"non-canonical alias of a mapped page", 0x1000 + 1<<39, 1, false},
		{"non-canonical alias, empty", 0x1000 + 1<<39, 0, false},
		{"range crossing into the hole", mm.LowerHalfEnd - 1, 2, false},
		{"range spanning the hole", mm.LowerHalfEnd - 1, mm.UpperHalfBase - mm.LowerHalfEnd + 2, false},
	}
	for _, spec := range specs {
		if _, err := pt.UserBuffers(spec.addr, spec.size, spec.write); err != errBadUserAddress {
			t.Errorf("[%s] expected errBadUserAddress; got %v", spec.descr, err)
		}
	}

	if bufs, err := pt.UserBuffers(0x4000, 0, false); err != nil || len(bufs) != 0 {
		t.Fatalf("expected an empty range to succeed; got %d buffers (%v)", len(bufs), err)
	}
}
