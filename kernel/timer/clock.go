package timer

// Source reads the free running time counter.
type Source interface {
	Time() uint64
}

// Alarm programs the next timer interrupt.
type Alarm interface {
	SetTimer(stimeValue uint64)
}

// Clock combines a time source with the firmware alarm.
type Clock struct {
	src      Source
	alarm    Alarm
	freq     uint64
	interval uint64
}

// NewClock returns a clock ticking at freq that fires ticksPerSec
// preemption interrupts per second.
func NewClock(src Source, alarm Alarm, freq, ticksPerSec uint64) *Clock {
	return &Clock{src: src, alarm: alarm, freq: freq, interval: freq / ticksPerSec}
}

// Freq returns the counter frequency.
func (c *Clock) Freq() uint64 {
	return c.freq
}

// Interval returns the number of counter ticks between two preemptions.
func (c *Clock) Interval() uint64 {
	return c.interval
}

// Ticks returns the raw counter value.
func (c *Clock) Ticks() uint64 {
	return c.src.Time()
}

// Now returns the time since boot.
func (c *Clock) Now() TimeVal {
	return FromTicks(c.src.Time(), c.freq)
}

// SetNextTrigger arms the timer one interval from now.
func (c *Clock) SetNextTrigger() {
	c.alarm.SetTimer(c.src.Time() + c.interval)
}
