package task

import "mikuos/kernel/sync"

// Manager is the FIFO ready queue.
type Manager struct {
	ready *sync.ExclusiveCell[[]*Process]
}

// NewManager returns an empty queue.
func NewManager() *Manager {
	return &Manager{ready: sync.NewExclusiveCell[[]*Process](nil)}
}

// Add appends p to the back of the queue.
func (m *Manager) Add(p *Process) {
	m.ready.With(func(q *[]*Process) {
		*q = append(*q, p)
	})
}

// Fetch pops the process at the front of the queue.
func (m *Manager) Fetch() *Process {
	q := m.ready.Borrow()
	defer m.ready.Return()

	if len(*q) == 0 {
		return nil
	}
	p := (*q)[0]
	(*q)[0] = nil
	*q = (*q)[1:]
	return p
}

// Len returns the number of ready processes.
func (m *Manager) Len() int {
	q := m.ready.Borrow()
	defer m.ready.Return()
	return len(*q)
}
