package kfmt

import (
	"fmt"
	"io"
)

var (
	// earlyLog stores Printf output until a console sink is attached.
	earlyLog bootLog

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to earlyLog.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and flushes
// any early output to it, noting how many bytes did not fit.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}
	if earlyLog.dropped != 0 {
		fmt.Fprintf(w, "[kfmt] %d bytes of early output lost\n", earlyLog.dropped)
		earlyLog.dropped = 0
	}
	io.Copy(w, &earlyLog)
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf formats according to a format specifier and writes to the active
// output sink. If no sink is attached yet, the output is buffered and
// flushed to the first sink registered via SetOutputSink.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. A nil writer selects the early log.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		w = &earlyLog
	}
	fmt.Fprintf(w, format, args...)
}

// sinkWriter forwards writes to whatever sink is active at the time of the
// write so long-lived loggers follow sink changes.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	if outputSink == nil {
		return earlyLog.Write(p)
	}
	return outputSink.Write(p)
}
