package kernel

// Memset sets every byte of buf to value. Instead of a byte-by-byte loop it
// performs log2(len(buf)) copy calls, which is noticeably faster for page
// sized buffers.
func Memset(buf []byte, value byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = value
	for index := 1; index < len(buf); index *= 2 {
		copy(buf[index:], buf[:index])
	}
}

// Memcopy copies min(len(src), len(dst)) bytes from src to dst and returns
// the number of bytes copied.
func Memcopy(src, dst []byte) int {
	return copy(dst, src)
}
