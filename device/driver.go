package device

import (
	"context"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Human-readable progress
	// output is written to the supplied io.Writer; structured diagnostics
	// go to the driver's logger.
	DriverInit(context.Context, io.Writer) error
}
