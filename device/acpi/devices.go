package acpi

import (
	"cmp"
	"context"
	"errors"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/vm"
	"gopheraml/device/acpi/resource"
	"gopheraml/device/acpi/table"
	"gopheraml/kernel"
	"log/slog"
	"slices"
	"strconv"
)

// Status holds the flags reported by a device's _STA method.
type Status uint64

// The list of _STA flags.
const (
	StatusPresent Status = 1 << iota
	StatusEnabled
	StatusShowInUI
	StatusFunctional
	StatusBatteryPresent

	// StatusDefault is assumed for devices without a _STA object.
	StatusDefault = StatusPresent | StatusEnabled | StatusShowInUI | StatusFunctional

	statusMask = StatusDefault | StatusBatteryPresent
)

// processorContainerHID identifies processor container devices, which are
// not reported.
const processorContainerHID = "ACPI0010"

var (
	errSBNotPresent = &kernel.Error{Module: "acpi", Message: `\_SB_ is not present`, Errno: kernel.ENOENT}
	errBadStatus    = &kernel.Error{Module: "acpi", Message: "_STA returned an invalid value", Errno: kernel.EILSEQ}
	errBadID        = &kernel.Error{Module: "acpi", Message: "device id must be a String or an EISA id Integer", Errno: kernel.EILSEQ}
)

// tableDevices lists devices described by static tables that firmware
// sometimes leaves out of the namespace.
var tableDevices = []struct {
	signature string
	hid       string
	path      string
}{
	{"HPET", "PNP0103", ".HPET"},
	{"APIC", "PNP0003", ".APIC"},
}

// Device is an enumerated ACPI device.
type Device struct {
	// Path is the absolute namespace path of the device. Devices added
	// because a static table describes them use a path starting with '.'.
	Path string

	HID string
	CID string

	Status Status

	// Resources holds the decoded _CRS template.
	Resources []resource.Descriptor
}

// Enumerator walks the devices below \_SB_, runs their _INI methods and
// collects their ids and current resources.
type Enumerator struct {
	VM     *vm.VM
	Tables table.Resolver
	Logger *slog.Logger

	// Progress, if set, is called once for every Device object visited.
	Progress func(path string)
}

// deviceNode caches the children of a Device object that enumeration
// needs.
type deviceNode struct {
	obj      *object.Object
	list     []*object.Object
	children map[string]*object.Object
}

func (e *Enumerator) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Enumerator) node(ctx context.Context, obj *object.Object) (*deviceNode, error) {
	children, err := e.VM.Children(ctx, obj)
	if err != nil {
		return nil, err
	}

	n := &deviceNode{obj: obj, list: children, children: make(map[string]*object.Object, len(children))}
	for _, child := range children {
		n.children[child.Name()] = child
	}
	return n, nil
}

// Run enumerates the namespace. The returned devices are sorted by id.
// Devices whose resources cannot be decoded are logged and left out.
func (e *Enumerator) Run(ctx context.Context) ([]*Device, error) {
	sbObj, err := e.VM.Lookup(ctx, `\_SB_`)
	if err != nil {
		return nil, err
	}

	sb, err := e.node(ctx, sbObj)
	if err != nil {
		return nil, err
	}

	sta, err := e.status(ctx, sb)
	if err != nil {
		return nil, err
	}

	if sta&StatusPresent == 0 {
		e.log().Info(`\_SB_ is not present; skipping device initialization`)
		return nil, errSBNotPresent
	}

	if err = e.initialize(ctx, sb); err != nil {
		return nil, err
	}

	var devices []*Device
	if err = e.walk(ctx, sb, &devices); err != nil {
		return nil, err
	}

	if e.Tables != nil {
		for _, td := range tableDevices {
			if e.Tables.LookupTable(td.signature, 0) != nil && !hasHID(devices, td.hid) {
				devices = append(devices, &Device{Path: td.path, HID: td.hid, Status: StatusDefault})
			}
		}
	}

	slices.SortStableFunc(devices, func(a, b *Device) int {
		return compareIDs(a.id(), b.id())
	})

	configured := devices[:0]
	for _, dev := range devices {
		if err = e.configure(ctx, dev); err != nil {
			e.log().Warn("failed to configure device", "path", dev.Path, "hid", dev.HID, "err", err)
			continue
		}
		configured = append(configured, dev)
	}

	return configured, nil
}

func (e *Enumerator) walk(ctx context.Context, parent *deviceNode, out *[]*Device) error {
	for _, child := range parent.list {
		if child.Type != object.TypeDevice {
			continue
		}

		path := child.Path()
		if e.Progress != nil {
			e.Progress(path)
		}

		dev, err := e.node(ctx, child)
		if err != nil {
			return err
		}

		sta, err := e.status(ctx, dev)
		if err != nil {
			return err
		}

		if sta&StatusPresent != 0 {
			if err = e.initialize(ctx, dev); err != nil {
				return err
			}

			if err = e.collectIDs(ctx, dev, sta, out); err != nil {
				return err
			}
		}

		if sta&(StatusPresent|StatusFunctional) != 0 {
			if err = e.walk(ctx, dev, out); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Enumerator) status(ctx context.Context, dev *deviceNode) (Status, error) {
	sta := dev.children["_STA"]
	if sta == nil {
		return StatusDefault, nil
	}

	res, err := e.VM.Evaluate(ctx, sta, object.TypeInteger)
	if err != nil {
		e.log().Error("failed to evaluate _STA", "path", dev.obj.Path(), "err", err)
		return 0, err
	}

	if Status(res.Integer)&^statusMask != 0 {
		e.log().Error("_STA returned an invalid value", "path", dev.obj.Path(), "value", res.Integer)
		return 0, errBadStatus
	}

	return Status(res.Integer), nil
}

func (e *Enumerator) initialize(ctx context.Context, dev *deviceNode) error {
	ini := dev.children["_INI"]
	if ini == nil {
		return nil
	}

	e.log().Debug("running _INI", "path", dev.obj.Path())
	if _, err := e.VM.Evaluate(ctx, ini, object.TypeAll); err != nil {
		e.log().Error("failed to evaluate _INI", "path", dev.obj.Path(), "err", err)
		return err
	}
	return nil
}

// collectIDs appends dev to out if it carries a _HID.
func (e *Enumerator) collectIDs(ctx context.Context, dev *deviceNode, sta Status, out *[]*Device) error {
	hid, err := e.id(ctx, dev, "_HID")
	if err != nil || hid == "" || hid == processorContainerHID {
		return err
	}

	cid, err := e.id(ctx, dev, "_CID")
	if err != nil {
		return err
	}

	*out = append(*out, &Device{Path: dev.obj.Path(), HID: hid, CID: cid, Status: sta})
	return nil
}

func (e *Enumerator) id(ctx context.Context, dev *deviceNode, name string) (string, error) {
	obj := dev.children[name]
	if obj == nil {
		return "", nil
	}

	res, err := e.VM.Evaluate(ctx, obj, object.TypeAll)
	if err != nil {
		return "", err
	}

	// A _CID may list several compatible ids; the first one is used.
	if res.Type == object.TypePackage && name == "_CID" && len(res.Elements) > 0 {
		if res, err = res.Elements[0].Deref(); err != nil {
			return "", err
		}
	}

	switch res.Type {
	case object.TypeString:
		return res.String(), nil
	case object.TypeInteger:
		return object.EISAIDToString(uint32(res.Integer)), nil
	}

	e.log().Error("device id has an invalid type", "path", dev.obj.Path(), "name", name, "type", res.Type.String())
	return "", errBadID
}

// configure decodes the current resources of dev.
func (e *Enumerator) configure(ctx context.Context, dev *Device) error {
	if dev.Path[0] == '.' {
		return nil
	}

	crs, err := e.VM.Lookup(ctx, dev.Path+"._CRS")
	if errors.Is(err, kernel.ENOENT) {
		// Devices without _CRS have no resources.
		return nil
	} else if err != nil {
		return err
	}

	res, err := e.VM.Evaluate(ctx, crs, object.TypeBuffer)
	if err != nil {
		return err
	}

	dev.Resources, err = resource.Decode(res.Bytes)
	return err
}

func (d *Device) id() string {
	if d.HID != "" {
		return d.HID
	}
	return d.CID
}

func hasHID(devices []*Device, hid string) bool {
	for _, dev := range devices {
		if dev.HID == hid {
			return true
		}
	}
	return false
}

// compareIDs orders device ids by their leading run of characters that are
// not upper case hex digits and then by the hex value that follows, so
// PNP0103 sorts before PNP0A03. Ids such as ACPI0007 start with hex digits
// and compare by the value of that prefix (0xAC).
func compareIDs(a, b string) int {
	i := 0
	for ; i < len(a) && i < len(b) && !isHexDigit(a[i]) && !isHexDigit(b[i]); i++ {
		if a[i] != b[i] {
			return cmp.Compare(a[i], b[i])
		}
	}

	return cmp.Compare(hexPrefix(a[i:]), hexPrefix(b[i:]))
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

// hexPrefix returns the value of the hex digits at the start of s.
func hexPrefix(s string) uint64 {
	n := 0
	for n < len(s) && n < 16 && (isHexDigit(s[n]) || (s[n] >= 'a' && s[n] <= 'f')) {
		n++
	}

	v, _ := strconv.ParseUint(s[:n], 16, 64)
	return v
}
