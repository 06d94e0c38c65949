package kernel

import "testing"

func TestMemset(t *testing.T) {
	for _, size := range []int{0, 1, 3, 4096, 4097} {
		buf := make([]byte, size)
		Memset(buf, 0xfe)

		for i, b := range buf {
			if b != 0xfe {
				t.Fatalf("[size %d] expected byte %d to be 0xfe; got %x", size, i, b)
			}
		}
	}
}

func TestMemcopy(t *testing.T) {
	src := []byte("trampoline")
	dst := make([]byte, 4)

	if n := Memcopy(src, dst); n != 4 || string(dst) != "tram" {
		t.Fatalf("expected to copy 4 bytes (\"tram\"); copied %d (%q)", n, dst)
	}
}
