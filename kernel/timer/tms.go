package timer

// Tms mirrors struct tms: user and system time of a process and of its
// reaped children, in counter ticks.
type Tms struct {
	Utime  int64
	Stime  int64
	CUtime int64
	CStime int64
}

// Accounting tracks where a process spends its time. The kernel calls
// EnterKernel on every trap entry and EnterUser right before trap return;
// time between the two calls is system time, the rest is user time.
type Accounting struct {
	tms  Tms
	mark uint64
}

// Start resets the accounting mark, typically when the process is first
// scheduled.
func (a *Accounting) Start(now uint64) {
	a.mark = now
}

// EnterKernel charges the time since the last mark as user time.
func (a *Accounting) EnterKernel(now uint64) {
	a.tms.Utime += int64(now - a.mark)
	a.mark = now
}

// EnterUser charges the time since the last mark as system time.
func (a *Accounting) EnterUser(now uint64) {
	a.tms.Stime += int64(now - a.mark)
	a.mark = now
}

// AddChild folds the times of a reaped child into the children totals.
func (a *Accounting) AddChild(child Tms) {
	a.tms.CUtime += child.Utime + child.CUtime
	a.tms.CStime += child.Stime + child.CStime
}

// Times returns the current totals.
func (a *Accounting) Times() Tms {
	return a.tms
}
