package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter tags every line written through it with Prefix before
// passing it on to Sink. The hal uses it to label driver output with
// "[hal] name(version): ".
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	// midLine is set while the last write ended without a newline.
	midLine bool
}

// Write returns the number of bytes of p that reached the sink. Prefix bytes
// are not counted.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
			w.midLine = false
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(line):]
	}
	return written, nil
}
