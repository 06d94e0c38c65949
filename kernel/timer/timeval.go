// Package timer converts hart ticks into wall time and drives the
// preemption timer.
package timer

import "fmt"

const (
	// ClockFreq is the frequency of the time CSR on the QEMU virt board.
	ClockFreq = 12_500_000

	// TicksPerSec is the number of scheduling ticks per second (10ms each).
	TicksPerSec = 100

	MicroPerSec = 1_000_000
	MilliPerSec = 1_000
)

// TimeVal is a (seconds, microseconds) pair with Usec < MicroPerSec. Its
// memory layout matches the struct written by gettimeofday.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// FromTicks converts a time CSR reading at the given frequency.
func FromTicks(ticks, freq uint64) TimeVal {
	return TimeVal{
		Sec:  ticks / freq,
		Usec: ticks % freq * MicroPerSec / freq,
	}
}

// FromMicros builds a TimeVal from a microsecond count.
func FromMicros(usec uint64) TimeVal {
	return TimeVal{Sec: usec / MicroPerSec, Usec: usec % MicroPerSec}
}

// Micros returns the value in microseconds.
func (t TimeVal) Micros() uint64 {
	return t.Sec*MicroPerSec + t.Usec
}

// Millis returns the value in milliseconds.
func (t TimeVal) Millis() uint64 {
	return t.Sec*MilliPerSec + t.Usec/MilliPerSec
}

// Ticks returns the number of time CSR ticks at freq.
func (t TimeVal) Ticks(freq uint64) uint64 {
	return t.Sec*freq + t.Usec*freq/MicroPerSec
}

// Add returns t+o.
func (t TimeVal) Add(o TimeVal) TimeVal {
	sec, usec := t.Sec+o.Sec, t.Usec+o.Usec
	if usec >= MicroPerSec {
		sec++
		usec -= MicroPerSec
	}
	return TimeVal{Sec: sec, Usec: usec}
}

// Sub returns t-o, saturating at zero.
func (t TimeVal) Sub(o TimeVal) TimeVal {
	if t.Micros() <= o.Micros() {
		return TimeVal{}
	}
	return FromMicros(t.Micros() - o.Micros())
}

// Mul returns t*n.
func (t TimeVal) Mul(n uint64) TimeVal {
	return FromMicros(t.Micros() * n)
}

// Div returns t/n rounded down to the microsecond. Dividing by zero returns
// the zero value.
func (t TimeVal) Div(n uint64) TimeVal {
	if n == 0 {
		return TimeVal{}
	}
	return FromMicros(t.Micros() / n)
}

// Less returns true if t is earlier than o.
func (t TimeVal) Less(o TimeVal) bool {
	return t.Sec < o.Sec || t.Sec == o.Sec && t.Usec < o.Usec
}

// String formats the value as hh:mm:ss.uuuuuu.
func (t TimeVal) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Sec/3600, t.Sec/60%60, t.Sec%60, t.Usec)
}
