// Package acpi implements the ACPI driver. The driver loads the AML contained
// in the DSDT and SSDT tables, enumerates the devices described by the
// namespace and decodes their current resources.
package acpi

import (
	"context"
	"fmt"
	"gopheraml/device"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/vm"
	"gopheraml/device/acpi/table"
	"gopheraml/kernel"
	"io"
	"strings"
)

var errMissingDSDT = &kernel.Error{Module: "acpi", Message: "could not locate the DSDT", Errno: kernel.ENOENT}

// Driver loads the AML namespace and enumerates the ACPI devices.
type Driver struct {
	cfg    vm.Config
	tables *table.Set

	// regionHandlers are installed into the VM before any table is
	// loaded so that region accesses made by top-level code and _INI
	// methods succeed.
	regionHandlers map[object.RegionSpace]vm.RegionHandler

	// Progress, if set, is called once for every Device object visited
	// during enumeration.
	Progress func(path string)

	vm      *vm.VM
	devices []*Device
}

var _ device.Driver = (*Driver)(nil)

// NewDriver returns a driver for the given table set. Memory and I/O
// regions are backed by an empty vm.MemorySpace unless SetRegionHandler
// overrides them.
func NewDriver(tables *table.Set, cfg vm.Config) *Driver {
	return &Driver{
		cfg:    cfg,
		tables: tables,
		regionHandlers: map[object.RegionSpace]vm.RegionHandler{
			object.RegionSpaceSystemMemory: vm.NewMemorySpace(),
			object.RegionSpaceSystemIO:     vm.NewMemorySpace(),
		},
	}
}

// SetRegionHandler sets the handler installed for space when the driver
// initializes. A nil handler leaves the space unserviced.
func (drv *Driver) SetRegionHandler(space object.RegionSpace, h vm.RegionHandler) {
	if h == nil {
		delete(drv.regionHandlers, space)
		return
	}
	drv.regionHandlers[space] = h
}

// DriverName returns the name of this driver.
func (*Driver) DriverName() string {
	return "ACPI"
}

// DriverVersion returns the version of this driver.
func (*Driver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit loads the AML tables and enumerates the system devices.
func (drv *Driver) DriverInit(ctx context.Context, w io.Writer) error {
	drv.printTableInfo(w)

	if drv.tables.LookupTable(table.SignatureDSDT, 0) == nil {
		return errMissingDSDT
	}

	drv.vm = vm.New(drv.cfg, drv.tables)
	for space, h := range drv.regionHandlers {
		drv.vm.RegisterRegionHandler(space, h)
	}

	if err := drv.vm.Init(ctx); err != nil {
		return err
	}

	enum := &Enumerator{
		VM:       drv.vm,
		Tables:   drv.tables,
		Logger:   drv.cfg.Logger,
		Progress: drv.Progress,
	}

	devices, err := enum.Run(ctx)
	if err != nil && err != errSBNotPresent {
		return err
	}

	drv.devices = devices
	drv.printDeviceInfo(w)
	return nil
}

// VM returns the interpreter populated by DriverInit.
func (drv *Driver) VM() *vm.VM {
	return drv.vm
}

// Devices returns the devices found by DriverInit sorted by id.
func (drv *Driver) Devices() []*Device {
	return drv.devices
}

func (drv *Driver) printTableInfo(w io.Writer) {
	for _, t := range drv.tables.Tables() {
		fmt.Fprintf(w, "%s %6x rev %d (%6s %8s)\n",
			t.Signature(),
			t.Header.Length,
			t.Header.Revision,
			t.OEMID(),
			t.OEMTableID(),
		)
	}
}

func (drv *Driver) printDeviceInfo(w io.Writer) {
	for _, dev := range drv.devices {
		ids := dev.HID
		if dev.CID != "" {
			ids += " (" + dev.CID + ")"
		}

		var res []string
		for _, desc := range dev.Resources {
			res = append(res, desc.Item().String())
		}

		fmt.Fprintf(w, "%-24s %-20s %s\n", dev.Path, ids, strings.Join(res, ", "))
	}
}
