package loader

import (
	"sort"
	"strings"
)

// Registry holds the executable images linked into the kernel, keyed by
// program name.
type Registry struct {
	images map[string][]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{images: make(map[string][]byte)}
}

// Add registers image under name, replacing any previous image.
func (r *Registry) Add(name string, image []byte) {
	r.images[name] = image
}

// Lookup returns the image registered under name. A leading slash is
// ignored so "/hello" and "hello" refer to the same program.
func (r *Registry) Lookup(name string) ([]byte, bool) {
	image, ok := r.images[strings.TrimPrefix(name, "/")]
	return image, ok
}

// Names returns the registered program names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.images))
	for name := range r.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
