package resource

import (
	"encoding/binary"
	"errors"
	"testing"

	"gopheraml/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var endTag = []byte{0x79, 0x00}

func template(items ...[]byte) []byte {
	var out []byte
	for _, item := range items {
		out = append(out, item...)
	}
	return append(out, endTag...)
}

func qwordAddress() []byte {
	b := []byte{0x8a, 43, 0x00, AddressSpaceMemory, 0x0c, 0x01}
	for _, v := range []uint64{0, 0x100000000, 0x1ffffffff, 0, 0x100000000} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	return b
}

func TestDecode(t *testing.T) {
	descs, err := Decode(template(
		[]byte{0x22, 0x02, 0x00},
		[]byte{0x23, 0x10, 0x01, 0x18},
		[]byte{0x2a, 0x04, 0x0c},
		[]byte{0x47, 0x01, 0x60, 0x00, 0x60, 0x00, 0x01, 0x01},
		[]byte{0x4b, 0x70, 0xfc, 0x02},
		[]byte{0x81, 0x09, 0x00, 0x00, 0xe0, 0x00, 0xe0, 0x00, 0x00, 0x00, 0x10, 0x00},
		[]byte{0x86, 0x09, 0x00, 0x01, 0x00, 0x00, 0xd0, 0xfe, 0x00, 0x04, 0x00, 0x00},
		[]byte{0x89, 0x06, 0x00, 0x09, 0x01, 0x14, 0x00, 0x00, 0x00},
		[]byte{0x88, 0x0d, 0x00, AddressSpaceBus, 0x0c, 0x00, 0, 0, 0, 0, 0xff, 0, 0, 0, 0x00, 0x01},
		qwordAddress(),
		[]byte{0x71, 0xaa},
	))
	require.NoError(t, err)

	exp := []Descriptor{
		IRQ{Mask: 0x0002, Info: FlagEdgeTriggered},
		IRQ{Mask: 0x0110, Info: FlagActiveLow | FlagShared},
		DMA{Channels: 0x04, Flags: 0x0c},
		IOPort{Decode16: true, Min: 0x60, Max: 0x60, Alignment: 1, Length: 1},
		FixedIO{Base: 0x70, Length: 2},
		Memory{Name: ItemMemory24, Min: 0xe000, Max: 0xe000, Length: 0x1000},
		Memory{Name: ItemFixedMemory32, Writable: true, Min: 0xfed00000, Max: 0xfed00000, Length: 0x400},
		ExtendedIRQ{Flags: 0x09, Interrupts: []uint32{0x14}},
		Address{Name: ItemWordAddress, ResourceType: AddressSpaceBus, GeneralFlags: 0x0c, Max: 0xff, Length: 0x100},
		Address{
			Name:         ItemQWordAddress,
			ResourceType: AddressSpaceMemory,
			GeneralFlags: 0x0c,
			TypeFlags:    0x01,
			Min:          0x100000000,
			Max:          0x1ffffffff,
			Length:       0x100000000,
		},
		Unknown{Name: 0x0e, Data: []byte{0xaa}},
	}
	assert.Equal(t, exp, descs)
}

func TestDecodeStopsAtEndTag(t *testing.T) {
	descs, err := Decode(append(template([]byte{0x22, 0x01, 0x00}), 0xff, 0xff))
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, ItemIRQ, descs[0].Item())
}

func TestDecodeErrors(t *testing.T) {
	specs := []struct {
		input []byte
		exp   error
	}{
		{nil, errNoEndTag},
		{[]byte{0x22, 0x02, 0x00}, errNoEndTag},
		{[]byte{0x22, 0x02}, errTruncated},
		{[]byte{0x86, 0x09}, errTruncated},
		{[]byte{0x86, 0x09, 0x00, 0x01}, errTruncated},
		{template([]byte{0x21, 0x02}), errShortItem},
		{template([]byte{0x86, 0x01, 0x00, 0x01}), errShortItem},
		{template([]byte{0x89, 0x02, 0x00, 0x09, 0x00}), errBadIRQCount},
		{template([]byte{0x89, 0x03, 0x00, 0x09, 0x02, 0x01}), errShortItem},
		{template([]byte{0x87, 0x03, 0x00, 0x00, 0x00, 0x00}), errShortItem},
	}

	for specIndex, spec := range specs {
		_, err := Decode(spec.input)
		assert.Equal(t, spec.exp, err, "[spec %02d]", specIndex)
		assert.True(t, errors.Is(err, kernel.EILSEQ), "[spec %02d]", specIndex)
	}
}

func TestIRQ(t *testing.T) {
	irq := IRQ{Mask: 0x8011, Info: FlagActiveLow | FlagShared}
	assert.Equal(t, []uint8{0, 4, 15}, irq.Lines())
	assert.False(t, irq.EdgeTriggered())
	assert.True(t, irq.ActiveLow())
	assert.True(t, irq.Shared())

	assert.Empty(t, IRQ{}.Lines())
}

func TestItemNameString(t *testing.T) {
	assert.Equal(t, "IO", ItemIOPort.String())
	assert.Equal(t, "QWordAddress", ItemQWordAddress.String())
	assert.Equal(t, "Item(0x8e)", ItemName(0x8e).String())
}
