package fs

import (
	"mikuos/kernel"
	"path"
	"sort"
	"strings"
)

// OpenFlag selects the access mode and creation behaviour of Open. The
// values match the Linux ABI used by openat.
type OpenFlag uint32

const (
	ReadOnly  OpenFlag = 0
	WriteOnly OpenFlag = 1 << 0
	ReadWrite OpenFlag = 1 << 1
	Create    OpenFlag = 1 << 6
	Truncate  OpenFlag = 1 << 9
	Append    OpenFlag = 1 << 10

	accessMask = WriteOnly | ReadWrite
)

var errNotFound = &kernel.Error{Module: "fs", Message: "no such file"}

type inode struct {
	data []byte
}

// MemFS is a flat file system held in kernel memory.
type MemFS struct {
	files map[string]*inode
}

// NewMemFS returns an empty file system.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]*inode)}
}

// WriteFile creates or replaces a file.
func (fs *MemFS) WriteFile(name string, data []byte) {
	fs.files[clean(name)] = &inode{data: append([]byte(nil), data...)}
}

// ReadFile returns a copy of a file's contents.
func (fs *MemFS) ReadFile(name string) ([]byte, bool) {
	node, ok := fs.files[clean(name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), node.data...), true
}

// Names lists the files in lexical order.
func (fs *MemFS) Names() []string {
	names := make([]string, 0, len(fs.files))
	for name := range fs.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsDir reports whether name is a directory: the root or a path that some
// file lives beneath.
func (fs *MemFS) IsDir(name string) bool {
	name = clean(name)
	if name == "/" {
		return true
	}

	prefix := name + "/"
	for file := range fs.files {
		if strings.HasPrefix(file, prefix) {
			return true
		}
	}
	return false
}

// Open opens a file with the given flags. Missing files are created when
// Create is set.
func (fs *MemFS) Open(name string, flags OpenFlag) (File, *kernel.Error) {
	name = clean(name)

	node, ok := fs.files[name]
	switch {
	case !ok && flags&Create == 0:
		return nil, errNotFound
	case !ok:
		node = new(inode)
		fs.files[name] = node
	}

	f := &MemFile{
		node:     node,
		path:     name,
		readable: flags&accessMask != WriteOnly,
		writable: flags&accessMask != ReadOnly,
		append:   flags&Append != 0,
	}
	if flags&Truncate != 0 && f.writable {
		node.data = node.data[:0]
	}
	return f, nil
}

func clean(name string) string {
	return path.Clean("/" + name)
}

// MemFile is an open MemFS file with its own position.
type MemFile struct {
	node     *inode
	path     string
	offset   int
	readable bool
	writable bool
	append   bool
}

// Readable implements File.
func (f *MemFile) Readable() bool { return f.readable }

// Writable implements File.
func (f *MemFile) Writable() bool { return f.writable }

// Path implements File.
func (f *MemFile) Path() string { return f.path }

// Size returns the current file length.
func (f *MemFile) Size() int { return len(f.node.data) }

// Read implements File.
func (f *MemFile) Read(buf []byte) (int, *kernel.Error) {
	if !f.readable {
		return 0, errNotReadable
	}
	if f.offset >= len(f.node.data) {
		return 0, nil
	}

	n := kernel.Memcopy(f.node.data[f.offset:], buf)
	f.offset += n
	return n, nil
}

// Write implements File.
func (f *MemFile) Write(buf []byte) (int, *kernel.Error) {
	if !f.writable {
		return 0, errNotWritable
	}
	if f.append {
		f.offset = len(f.node.data)
	}

	if end := f.offset + len(buf); end > len(f.node.data) {
		f.node.data = append(f.node.data, make([]byte, end-len(f.node.data))...)
	}
	n := kernel.Memcopy(buf, f.node.data[f.offset:])
	f.offset += n
	return n, nil
}
