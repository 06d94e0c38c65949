package fs

import "mikuos/kernel"

// Console is the byte level interface the standard streams are bound to.
type Console interface {
	ConsolePutchar(c byte)
	ConsoleGetchar() int
}

// Stdin reads from the console. Reads return at most one byte; zero bytes
// means no input is pending.
type Stdin struct {
	Console Console
}

// Readable implements File.
func (Stdin) Readable() bool { return true }

// Writable implements File.
func (Stdin) Writable() bool { return false }

// Path implements File.
func (Stdin) Path() string { return "/dev/stdin" }

// Read implements File.
func (s Stdin) Read(buf []byte) (int, *kernel.Error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c := s.Console.ConsoleGetchar()
	if c < 0 {
		return 0, nil
	}
	buf[0] = byte(c)
	return 1, nil
}

// Write implements File.
func (Stdin) Write([]byte) (int, *kernel.Error) { return 0, errNotWritable }

// Stdout writes to the console.
type Stdout struct {
	Console Console
}

// Readable implements File.
func (Stdout) Readable() bool { return false }

// Writable implements File.
func (Stdout) Writable() bool { return true }

// Path implements File.
func (Stdout) Path() string { return "/dev/stdout" }

// Read implements File.
func (Stdout) Read([]byte) (int, *kernel.Error) { return 0, errNotReadable }

// Write implements File.
func (s Stdout) Write(buf []byte) (int, *kernel.Error) {
	return putBytes(s.Console, buf), nil
}

// Stderr writes to the console like Stdout.
type Stderr struct {
	Console Console
}

// Readable implements File.
func (Stderr) Readable() bool { return false }

// Writable implements File.
func (Stderr) Writable() bool { return true }

// Path implements File.
func (Stderr) Path() string { return "/dev/stderr" }

// Read implements File.
func (Stderr) Read([]byte) (int, *kernel.Error) { return 0, errNotReadable }

// Write implements File.
func (s Stderr) Write(buf []byte) (int, *kernel.Error) {
	return putBytes(s.Console, buf), nil
}

func putBytes(cons Console, buf []byte) int {
	for _, c := range buf {
		cons.ConsolePutchar(c)
	}
	return len(buf)
}

// Stdio returns the three standard streams bound to cons, indexed by their
// descriptor numbers.
func Stdio(cons Console) [3]File {
	return [3]File{Stdin{Console: cons}, Stdout{Console: cons}, Stderr{Console: cons}}
}
