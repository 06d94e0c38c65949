package kfmt

import "io"

// bootLogSize is the capacity of the buffer that holds Printf output
// produced before a console sink is attached.
const bootLogSize = 4096

// bootLog keeps the most recent bootLogSize bytes written to it. Older bytes
// are overwritten and counted in dropped.
type bootLog struct {
	data    [bootLogSize]byte
	head    int
	size    int
	dropped int
}

func (l *bootLog) Write(p []byte) (int, error) {
	for _, b := range p {
		tail := (l.head + l.size) % bootLogSize
		l.data[tail] = b
		if l.size == bootLogSize {
			l.head = (l.head + 1) % bootLogSize
			l.dropped++
			continue
		}
		l.size++
	}
	return len(p), nil
}

// Read drains buffered bytes in write order. It returns io.EOF once the log
// is empty.
func (l *bootLog) Read(p []byte) (int, error) {
	if l.size == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && l.size > 0 {
		p[n] = l.data[l.head]
		l.head = (l.head + 1) % bootLogSize
		l.size--
		n++
	}
	return n, nil
}

func (l *bootLog) reset() {
	l.head, l.size, l.dropped = 0, 0, 0
}
