package kfmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{
			func() { printfn("no args") },
			"no args",
		},
		{
			func() { printfn("%t", true) },
			"true",
		},
		{
			func() { printfn("'%4s' arg with padding", "ABC") },
			"' ABC' arg with padding",
		},
		{
			func() { printfn("uint arg: %o", uint16(0777)) },
			"uint arg: 777",
		},
		{
			func() { printfn("satp: %#016x", uint64(8<<60|0x80400)) },
			"satp: 0x8000000000080400",
		},
		{
			func() { printfn("%d %s", -2, "killed") },
			"-2 killed",
		},
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestPrintfToEarlyLog(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	outputSink = nil
	earlyLog.reset()

	exp := "hart 0 booting"
	Printf("hart %d booting", 0)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got := buf.String(); got != exp {
		t.Fatalf("expected early output to be flushed to the new sink as %q; got %q", exp, got)
	}

	if GetOutputSink() != &buf {
		t.Fatal("expected GetOutputSink to return the registered sink")
	}

	buf.Reset()
	sinkWriter{}.Write([]byte("forwarded"))
	if got := buf.String(); got != "forwarded" {
		t.Fatalf("expected sinkWriter to forward to the active sink; got %q", got)
	}
}

func TestEarlyLogOverflowNote(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	outputSink = nil
	earlyLog.reset()

	Printf("%s", strings.Repeat("x", bootLogSize+10))

	var buf bytes.Buffer
	SetOutputSink(&buf)

	exp := "[kfmt] 10 bytes of early output lost\n"
	if got := buf.String(); !strings.HasPrefix(got, exp) || len(got) != len(exp)+bootLogSize {
		t.Fatalf("expected the flush to start with %q followed by %d bytes; got %d bytes", exp, bootLogSize, len(got))
	}
	if earlyLog.dropped != 0 {
		t.Fatal("expected the dropped counter to be cleared after the flush")
	}
}
