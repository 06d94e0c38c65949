// Package hal probes the registered drivers and wires the ones the kernel
// depends on.
package hal

import (
	"bytes"
	"io"
	"mikuos/device"
	"mikuos/kernel/kfmt"
	"sort"
)

// Devices contains the devices discovered by the HAL.
type Devices struct {
	// Console is the first initialized driver that accepts output.
	Console io.Writer

	// Drivers tracks all initialized device drivers in probe order.
	Drivers []device.Driver
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers. The first console found becomes the kfmt output sink, so
// anything printed before it came up is flushed to it.
func DetectHardware(reg *device.Registry) *Devices {
	// Get driver list and sort by detection priority
	drivers := append(device.DriverInfoList(nil), reg.DriverList()...)
	sort.Stable(drivers)

	devices := new(Devices)
	devices.probe(drivers)
	return devices
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func (d *Devices) probe(driverInfoList device.DriverInfoList) {
	var (
		strBuf bytes.Buffer
		w      = kfmt.PrefixWriter{Sink: sinkWriter{}}
	)

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		d.onDriverInit(drv)
		kfmt.Fprintf(&w, "initialized\n")
		d.Drivers = append(d.Drivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func (d *Devices) onDriverInit(drv device.Driver) {
	if cons, ok := drv.(io.Writer); ok && d.Console == nil {
		d.Console = cons
		kfmt.SetOutputSink(cons)
	}
}

// sinkWriter resolves the kfmt sink on every write so that probe output
// follows the console once it is attached.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	if sink := kfmt.GetOutputSink(); sink != nil {
		return sink.Write(p)
	}
	kfmt.Fprintf(nil, "%s", p)
	return len(p), nil
}
