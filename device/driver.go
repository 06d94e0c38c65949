package device

import (
	"io"
	"mikuos/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

const (
	// DetectOrderEarly drivers are probed first. Console drivers use it so
	// every later probe can log through them.
	DetectOrderEarly DetectOrder = -128 + iota

	// DetectOrderBeforeFirmware drivers are probed before the firmware
	// services are brought up.
	DetectOrderBeforeFirmware

	// DetectOrderFirmware drivers wrap SBI services.
	DetectOrderFirmware DetectOrder = 0

	// DetectOrderLast drivers are probed after every other driver.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is a driver-defined struct that is passed to calls to
// RegisterDriver.
type DriverInfo struct {
	// Order specifies at which stage of the HW detection step the probe
	// function is invoked.
	Order DetectOrder

	// Probe scans for the hardware and returns a driver, or nil if the
	// device is absent.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers that implements
// sort.Interface.
type DriverInfoList []*DriverInfo

// Len returns the length of the driver info list.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges 2 elements in the driver info list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less compares 2 elements of the driver info list.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

// Registry collects the drivers known to a kernel instance.
type Registry struct {
	drivers DriverInfoList
}

// RegisterDriver adds a driver to the registry.
func (r *Registry) RegisterDriver(info *DriverInfo) {
	r.drivers = append(r.drivers, info)
}

// DriverList returns the registered drivers in registration order.
func (r *Registry) DriverList() DriverInfoList {
	return r.drivers
}
