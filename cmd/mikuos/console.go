package main

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	tty "github.com/mattn/go-tty"
)

// ctrlC aborts the run while the terminal is in raw mode.
const ctrlC = 0x03

// console connects the board's SBI console to the host terminal.
type console struct {
	io.Writer

	// in carries keyboard input; it is nil when stdin is not a terminal.
	in chan byte

	closeFn func() error
}

// openConsole attaches to the controlling terminal in raw mode when stdin
// is one, so single key presses reach the kernel. Otherwise the kernel gets
// no input and writes to stdout.
func openConsole() (*console, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return &console{
			Writer:  colorable.NewColorableStdout(),
			closeFn: func() error { return nil },
		}, nil
	}

	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	restore, err := t.Raw()
	if err != nil {
		t.Close()
		return nil, err
	}

	cons := &console{
		Writer: crlfWriter{w: t.Output()},
		in:     make(chan byte, 64),
		closeFn: func() error {
			restore()
			return t.Close()
		},
	}
	go cons.readLoop(t)
	return cons, nil
}

func (c *console) readLoop(t *tty.TTY) {
	var buf [utf8.UTFMax]byte
	for {
		r, err := t.ReadRune()
		if err != nil {
			return
		}
		if r == ctrlC {
			c.Close()
			os.Exit(130)
		}

		for _, b := range buf[:utf8.EncodeRune(buf[:], r)] {
			select {
			case c.in <- b:
			default:
				// The kernel is not reading; drop the key.
			}
		}
	}
}

// Close restores the terminal.
func (c *console) Close() error {
	return c.closeFn()
}

// crlfWriter expands \n to \r\n, which a raw mode terminal no longer does.
type crlfWriter struct {
	w io.Writer
}

func (cw crlfWriter) Write(p []byte) (int, error) {
	if _, err := cw.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
