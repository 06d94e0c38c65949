package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBootLogDrain(t *testing.T) {
	var l bootLog

	if n, err := l.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Fatalf("expected an empty log to report EOF; got %d, %v", n, err)
	}

	l.Write([]byte("sbi: "))
	l.Write([]byte("console ready"))

	small := make([]byte, 3)
	n, err := l.Read(small)
	if err != nil || string(small[:n]) != "sbi" {
		t.Fatalf("expected a partial read to return the oldest bytes; got %q, %v", small[:n], err)
	}

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, &l); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != ": console ready" {
		t.Fatalf("expected the remaining bytes to drain in order; got %q", got)
	}
}

func TestBootLogOverwrite(t *testing.T) {
	var l bootLog

	l.Write([]byte(strings.Repeat("a", bootLogSize-2)))
	l.Write([]byte("wxyz"))

	if l.dropped != 2 {
		t.Fatalf("expected 2 dropped bytes; got %d", l.dropped)
	}

	var buf bytes.Buffer
	io.Copy(&buf, &l)
	got := buf.String()
	if len(got) != bootLogSize || !strings.HasSuffix(got, "aawxyz") {
		t.Fatalf("expected the newest %d bytes to survive; got %d bytes ending in %q", bootLogSize, len(got), got[len(got)-6:])
	}

	l.reset()
	if l.size != 0 || l.dropped != 0 {
		t.Fatal("expected reset to empty the log")
	}
}
