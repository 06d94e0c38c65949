package sbi

import (
	"io"
	"mikuos/device"
	"mikuos/kernel"
	"mikuos/kernel/cpu"
	"mikuos/kernel/kfmt"
)

var errNoTimebase = &kernel.Error{Module: "sbi_timer", Message: "timebase frequency is zero"}

// ConsoleDriver exposes the firmware console as a byte sink for the kernel.
type ConsoleDriver struct {
	fw Firmware
}

// DriverName implements device.Driver.
func (d *ConsoleDriver) DriverName() string { return "sbi_console" }

// DriverVersion implements device.Driver.
func (d *ConsoleDriver) DriverVersion() (uint16, uint16, uint16) { return 0, 2, 0 }

// DriverInit implements device.Driver.
func (d *ConsoleDriver) DriverInit(w io.Writer) *kernel.Error {
	kfmt.Fprintf(w, "legacy putchar/getchar console\n")
	return nil
}

// Write implements io.Writer.
func (d *ConsoleDriver) Write(p []byte) (int, error) {
	for _, c := range p {
		d.fw.ConsolePutchar(c)
	}
	return len(p), nil
}

// ConsoleDriverInfo returns the registration entry of the firmware console.
func ConsoleDriverInfo(fw Firmware) *device.DriverInfo {
	return &device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: func() device.Driver {
			if fw == nil {
				return nil
			}
			return &ConsoleDriver{fw: fw}
		},
	}
}

// TimerDriver enables the supervisor timer interrupt and programs the first
// deadline through the firmware.
type TimerDriver struct {
	hart *cpu.Hart
	fw   Firmware
	freq uint64
}

// DriverName implements device.Driver.
func (d *TimerDriver) DriverName() string { return "sbi_timer" }

// DriverVersion implements device.Driver.
func (d *TimerDriver) DriverVersion() (uint16, uint16, uint16) { return 0, 1, 0 }

// DriverInit implements device.Driver.
func (d *TimerDriver) DriverInit(w io.Writer) *kernel.Error {
	if d.freq == 0 {
		return errNoTimebase
	}

	// No interrupt until the scheduler arms the first slice.
	d.fw.SetTimer(^uint64(0))
	d.hart.SetCSRBits(cpu.CSRSie, cpu.SieSTIE)

	kfmt.Fprintf(w, "timebase %d Hz\n", d.freq)
	return nil
}

// TimerDriverInfo returns the registration entry of the firmware timer.
func TimerDriverInfo(hart *cpu.Hart, fw Firmware, freq uint64) *device.DriverInfo {
	return &device.DriverInfo{
		Order: device.DetectOrderFirmware,
		Probe: func() device.Driver {
			return &TimerDriver{hart: hart, fw: fw, freq: freq}
		},
	}
}
