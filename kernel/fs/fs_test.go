package fs

import (
	"testing"
)

type fakeConsole struct {
	in  []byte
	out []byte
}

func (c *fakeConsole) ConsolePutchar(b byte) { c.out = append(c.out, b) }
func (c *fakeConsole) ConsoleGetchar() int {
	if len(c.in) == 0 {
		return -1
	}
	b := c.in[0]
	c.in = c.in[1:]
	return int(b)
}

func TestStdio(t *testing.T) {
	cons := &fakeConsole{in: []byte("ab")}
	stdio := Stdio(cons)

	specs := []struct {
		readable, writable bool
		path               string
	}{
		{true, false, "/dev/stdin"},
		{false, true, "/dev/stdout"},
		{false, true, "/dev/stderr"},
	}
	for fd, spec := range specs {
		f := stdio[fd]
		if f.Readable() != spec.readable || f.Writable() != spec.writable || f.Path() != spec.path {
			t.Errorf("[fd %d] unexpected capabilities for %s", fd, f.Path())
		}
	}

	buf := make([]byte, 4)
	if n, err := stdio[0].Read(buf); n != 1 || err != nil || buf[0] != 'a' {
		t.Fatalf("expected stdin to return one byte; got %d %q (%v)", n, buf[:n], err)
	}
	_, _ = stdio[0].Read(buf)
	if n, _ := stdio[0].Read(buf); n != 0 {
		t.Fatalf("expected an empty read without pending input; got %d bytes", n)
	}

	_, _ = stdio[1].Write([]byte("out "))
	_, _ = stdio[2].Write([]byte("err"))
	if string(cons.out) != "out err" {
		t.Fatalf("expected console output %q; got %q", "out err", cons.out)
	}

	if _, err := stdio[0].Write(buf); err != errNotWritable {
		t.Fatalf("expected errNotWritable; got %v", err)
	}
	if _, err := stdio[1].Read(buf); err != errNotReadable {
		t.Fatalf("expected errNotReadable; got %v", err)
	}
}

func TestMemFS(t *testing.T) {
	fs := NewMemFS()
	fs.WriteFile("notes.txt", []byte("hello world"))

	if _, err := fs.Open("/missing", ReadOnly); err != errNotFound {
		t.Fatalf("expected errNotFound; got %v", err)
	}

	f, err := fs.Open("/notes.txt", ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if f.Path() != "/notes.txt" || !f.Readable() || f.Writable() {
		t.Fatalf("unexpected read-only file %s", f.Path())
	}

	buf := make([]byte, 5)
	var got []byte
	for {
		n, _ := f.Read(buf)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello world" {
		t.Fatalf("expected to read back the file; got %q", got)
	}
	if _, err := f.Write(buf); err != errNotWritable {
		t.Fatalf("expected errNotWritable; got %v", err)
	}

	specs := []struct {
		flags OpenFlag
		write string
		exp   string
	}{
		{WriteOnly, "HELLO", "HELLO world"},
		{ReadWrite | Truncate, "new", "new"},
		{WriteOnly | Append, "er", "newer"},
		{WriteOnly | Create, "x", "xewer"},
	}
	for specIndex, spec := range specs {
		f, err := fs.Open("notes.txt", spec.flags)
		if err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		if _, err := f.Write([]byte(spec.write)); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		if data, _ := fs.ReadFile("notes.txt"); string(data) != spec.exp {
			t.Errorf("[spec %d] expected contents %q; got %q", specIndex, spec.exp, data)
		}
	}

	created, err := fs.Open("dir/../log", WriteOnly|Create)
	if err != nil {
		t.Fatal(err)
	}
	if created.Path() != "/log" || created.Readable() {
		t.Fatalf("unexpected created file %s", created.Path())
	}
	_, _ = created.Write([]byte("abc"))
	if created.(*MemFile).Size() != 3 {
		t.Fatal("expected the created file to grow")
	}

	if names := fs.Names(); len(names) != 2 || names[0] != "/log" || names[1] != "/notes.txt" {
		t.Fatalf("unexpected file list %v", names)
	}
}

func TestMemFSIsDir(t *testing.T) {
	fs := NewMemFS()
	fs.WriteFile("/etc/hostname", []byte("miku"))
	fs.WriteFile("/etcetera", nil)

	specs := []struct {
		name string
		exp  bool
	}{
		{"/", true},
		{"", true},
		{"/etc", true},
		{"etc/", true},
		{"/etc/hostname", false},
		{"/etcetera", false},
		{"/et", false},
		{"/usr", false},
	}

	for specIndex, spec := range specs {
		if got := fs.IsDir(spec.name); got != spec.exp {
			t.Errorf("[spec %d] expected IsDir(%q) to be %t; got %t", specIndex, spec.name, spec.exp, got)
		}
	}
}
