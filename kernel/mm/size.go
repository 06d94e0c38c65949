package mm

import "fmt"

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// String renders the size using the largest unit that divides it evenly.
func (s Size) String() string {
	switch {
	case s >= Gb && s%Gb == 0:
		return fmt.Sprintf("%dGiB", s/Gb)
	case s >= Mb && s%Mb == 0:
		return fmt.Sprintf("%dMiB", s/Mb)
	case s >= Kb && s%Kb == 0:
		return fmt.Sprintf("%dKiB", s/Kb)
	}
	return fmt.Sprintf("%dB", uint64(s))
}

// Pages returns the number of pages needed to hold s bytes.
func (s Size) Pages() uint64 {
	return (uint64(s) + PageSize - 1) / PageSize
}
