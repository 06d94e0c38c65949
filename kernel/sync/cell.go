package sync

import (
	"mikuos/kernel"
	"mikuos/kernel/kfmt"
)

var (
	errAlreadyBorrowed = &kernel.Error{Module: "sync", Message: "exclusive cell already borrowed"}
	errNotBorrowed     = &kernel.Error{Module: "sync", Message: "exclusive cell returned without a borrow"}
)

// ExclusiveCell wraps a value that may have at most one outstanding borrow.
// The kernel runs on a single hart and the trap handler is not re-entrant,
// so a second borrow can only be a bug; it halts the kernel instead of
// spinning forever.
type ExclusiveCell[T any] struct {
	lock  Spinlock
	value T
}

// NewExclusiveCell returns a cell holding v.
func NewExclusiveCell[T any](v T) *ExclusiveCell[T] {
	return &ExclusiveCell[T]{value: v}
}

// Borrow grants exclusive access to the wrapped value until Return is called.
func (c *ExclusiveCell[T]) Borrow() *T {
	if !c.lock.TryToAcquire() {
		kfmt.Panic(errAlreadyBorrowed)
	}
	return &c.value
}

// Return ends the current borrow.
func (c *ExclusiveCell[T]) Return() {
	if c.lock.TryToAcquire() {
		c.lock.Release()
		kfmt.Panic(errNotBorrowed)
	}
	c.lock.Release()
}

// With runs fn with the value borrowed and returns it afterwards.
func (c *ExclusiveCell[T]) With(fn func(*T)) {
	v := c.Borrow()
	defer c.Return()
	fn(v)
}
