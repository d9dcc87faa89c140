package acpi

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"gopheraml/device/acpi/aml/amlasm"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"gopheraml/device/acpi/aml/vm"
	"gopheraml/device/acpi/resource"
	"gopheraml/device/acpi/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() vm.Config {
	cfg := vm.DefaultConfig()
	cfg.Logger = discardLogger
	return cfg
}

// testTables assembles dsdt and adds empty tables for each of the extra
// signatures.
func testTables(t *testing.T, dsdt *amlasm.AML, extra ...string) *table.Set {
	t.Helper()

	tbl, err := amlasm.Table(table.SignatureDSDT, 2, dsdt)
	require.NoError(t, err)

	set := table.NewSet()
	_, err = set.Add(tbl.Data)
	require.NoError(t, err)

	for _, sig := range extra {
		b, err := table.Build(sig, 1, table.DefaultOEMInfo, nil)
		require.NoError(t, err)
		_, err = set.Add(b)
		require.NoError(t, err)
	}

	return set
}

func testEnumerator(t *testing.T, set *table.Set) *Enumerator {
	t.Helper()

	machine := vm.New(testConfig(), set)
	require.NoError(t, machine.Init(context.Background()))

	return &Enumerator{VM: machine, Tables: set, Logger: discardLogger}
}

func increment(name string) *amlasm.AML {
	return amlasm.New().Store(amlasm.Expr(parser.OpAdd, amlasm.Path(name), amlasm.Int(1), nil), amlasm.Path(name))
}

func hid(id string) *amlasm.AML {
	return amlasm.New().Name("_HID", amlasm.Str(id))
}

func systemBus() *amlasm.AML {
	return amlasm.New().Scope(`\_SB_`, amlasm.New().
		Name("SINI", amlasm.Int(0)).
		Name("PINI", amlasm.Int(0)).
		Name("GINI", amlasm.Int(0)).
		Name("FINI", amlasm.Int(0)).
		Method("_INI", 0, false, 0, increment("SINI")).
		Device("PCI0", amlasm.New().
			Name("_HID", amlasm.New().EISAName("PNP0A03")).
			Name("_CID", amlasm.New().EISAName("PNP0A08")).
			Name("_CRS", amlasm.Buf(0x47, 0x01, 0x60, 0x00, 0x60, 0x00, 0x01, 0x01, 0x79, 0x00)).
			Method("_INI", 0, false, 0, increment(`\_SB_.PINI`)).
			Device("LPCB", hid("PNP0C09")).
			Device("GONE", amlasm.New().
				Name("_STA", amlasm.Int(0)).
				Append(hid("PNP0C0F")).
				Method("_INI", 0, false, 0, increment(`\_SB_.GINI`)).
				Device("CHLD", hid("PNP0C0C")),
			).
			Device("FUNC", amlasm.New().
				Name("_STA", amlasm.Int(uint64(StatusFunctional))).
				Append(hid("PNP0C0D")).
				Method("_INI", 0, false, 0, increment(`\_SB_.FINI`)).
				Device("CHLD", hid("PNP0C0E")),
			),
		).
		Device("CPUS", amlasm.New().
			Append(hid(processorContainerHID)).
			Device("CPU0", hid("ACPI0007")),
		).
		Device("BAD0", amlasm.New().
			Append(hid("PNP0B00")).
			Name("_CRS", amlasm.Buf(0x22, 0x02)),
		).
		Device("NOID", nil).
		Device("OBJS", amlasm.New().
			Append(hid("PNP0C02")).
			Name("_CID", amlasm.Pkg(amlasm.Str("PNP0C01"), amlasm.Str("PNP0C03"))).
			Method("_STA", 0, false, 0, amlasm.New().Return(amlasm.Int(0x1f))),
		),
	)
}

func evalInteger(t *testing.T, machine *vm.VM, path string) uint64 {
	t.Helper()

	res, err := machine.EvaluatePath(context.Background(), nil, path, object.TypeInteger)
	require.NoError(t, err)
	return res.Integer
}

func TestEnumerate(t *testing.T) {
	enum := testEnumerator(t, testTables(t, systemBus(), "HPET"))

	var visited []string
	enum.Progress = func(path string) { visited = append(visited, path) }

	devices, err := enum.Run(context.Background())
	require.NoError(t, err)

	exp := []*Device{
		{Path: ".HPET", HID: "PNP0103", Status: StatusDefault},
		{
			Path:      `\_SB_.PCI0`,
			HID:       "PNP0A03",
			CID:       "PNP0A08",
			Status:    StatusDefault,
			Resources: []resource.Descriptor{resource.IOPort{Decode16: true, Min: 0x60, Max: 0x60, Alignment: 1, Length: 1}},
		},
		{Path: `\_SB_.OBJS`, HID: "PNP0C02", CID: "PNP0C01", Status: StatusDefault | StatusBatteryPresent},
		{Path: `\_SB_.PCI0.LPCB`, HID: "PNP0C09", Status: StatusDefault},
		{Path: `\_SB_.PCI0.FUNC.CHLD`, HID: "PNP0C0E", Status: StatusDefault},
		{Path: `\_SB_.CPUS.CPU0`, HID: "ACPI0007", Status: StatusDefault},
	}
	assert.Equal(t, exp, devices)

	assert.Equal(t, []string{
		`\_SB_.BAD0`,
		`\_SB_.CPUS`,
		`\_SB_.CPUS.CPU0`,
		`\_SB_.NOID`,
		`\_SB_.OBJS`,
		`\_SB_.PCI0`,
		`\_SB_.PCI0.FUNC`,
		`\_SB_.PCI0.FUNC.CHLD`,
		`\_SB_.PCI0.GONE`,
		`\_SB_.PCI0.LPCB`,
	}, visited)

	// _INI only runs for present devices.
	assert.Equal(t, uint64(1), evalInteger(t, enum.VM, `\_SB_.SINI`))
	assert.Equal(t, uint64(1), evalInteger(t, enum.VM, `\_SB_.PINI`))
	assert.Equal(t, uint64(0), evalInteger(t, enum.VM, `\_SB_.GINI`))
	assert.Equal(t, uint64(0), evalInteger(t, enum.VM, `\_SB_.FINI`))
}

func TestEnumerateTableDevices(t *testing.T) {
	// An APIC device already present in the namespace is not duplicated.
	dsdt := amlasm.New().Scope(`\_SB_`, amlasm.New().Device("PIC0", hid("PNP0003")))
	devices, err := testEnumerator(t, testTables(t, dsdt, "APIC", "HPET")).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, devices, 2)
	assert.Equal(t, `\_SB_.PIC0`, devices[0].Path)
	assert.Equal(t, ".HPET", devices[1].Path)

	// Without a table resolver no table devices are added.
	enum := testEnumerator(t, testTables(t, amlasm.New(), "HPET"))
	enum.Tables = nil
	devices, err = enum.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestEnumerateErrors(t *testing.T) {
	specs := []struct {
		dsdt *amlasm.AML
		exp  error
	}{
		{
			amlasm.New().Scope(`\_SB_`, amlasm.New().Name("_STA", amlasm.Int(0))),
			errSBNotPresent,
		},
		{
			amlasm.New().Scope(`\_SB_`, amlasm.New().Device("DEV0", amlasm.New().Name("_STA", amlasm.Int(0x40)))),
			errBadStatus,
		},
		{
			amlasm.New().Scope(`\_SB_`, amlasm.New().Device("DEV0", amlasm.New().Name("_HID", amlasm.Buf(1, 2)))),
			errBadID,
		},
		{
			amlasm.New().Scope(`\_SB_`, amlasm.New().Device("DEV0", amlasm.New().
				Append(hid("PNP0C0A")).
				Name("_CID", amlasm.Pkg(amlasm.Buf(1))),
			)),
			errBadID,
		},
	}

	for specIndex, spec := range specs {
		devices, err := testEnumerator(t, testTables(t, spec.dsdt)).Run(context.Background())
		assert.Equal(t, spec.exp, err, "[spec %02d]", specIndex)
		assert.Nil(t, devices, "[spec %02d]", specIndex)
	}
}

func TestEnumerateFailingINI(t *testing.T) {
	dsdt := amlasm.New().Scope(`\_SB_`, amlasm.New().
		Device("DEV0", amlasm.New().
			Append(hid("PNP0C0A")).
			Method("_INI", 0, false, 0, amlasm.New().Store(amlasm.Path("NONE"), amlasm.Local(0))),
		),
	)

	_, err := testEnumerator(t, testTables(t, dsdt)).Run(context.Background())
	assert.Error(t, err)
}

func TestCompareIDs(t *testing.T) {
	specs := []struct {
		a, b string
		exp  int
	}{
		{"PNP0A03", "PNP0A03", 0},
		{"PNP0103", "PNP0A03", -1},
		{"PNP0C0F", "PNP0A03", 1},
		{"PNP0A03", "QEMU0002", -1},
		{"INT0800", "PNP0000", -1},
		// A and C are hex digits, so ACPI ids compare by their 0xAC prefix.
		{"ACPI0007", "PNP0A03", 1},
		{"ACPI0007", "ACPI000E", 0},
		{"PNP0a03", "PNP0A03", 0},
	}

	for specIndex, spec := range specs {
		got := compareIDs(spec.a, spec.b)
		switch {
		case spec.exp < 0:
			assert.Negative(t, got, "[spec %02d]", specIndex)
		case spec.exp > 0:
			assert.Positive(t, got, "[spec %02d]", specIndex)
		default:
			assert.Zero(t, got, "[spec %02d]", specIndex)
		}
	}
}
