// Package fs provides the file capability used by the descriptor table, the
// console backed standard streams and an in-memory file system.
package fs

import "mikuos/kernel"

var (
	errNotReadable = &kernel.Error{Module: "fs", Message: "file is not open for reading"}
	errNotWritable = &kernel.Error{Module: "fs", Message: "file is not open for writing"}
)

// File is an open file. Read and Write transfer bytes at the current
// position and return how many were moved.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, *kernel.Error)
	Write(buf []byte) (int, *kernel.Error)

	// Path returns the name the file was opened with.
	Path() string
}
