// Package resource decodes ACPI resource templates such as the buffers
// returned by the _CRS and _PRS device methods.
package resource

import (
	"encoding/binary"
	"fmt"
	"gopheraml/kernel"
)

// ItemName identifies a resource descriptor. Large item names carry bit 7.
type ItemName uint8

// The list of supported descriptors.
const (
	ItemIRQ     ItemName = 0x04
	ItemDMA     ItemName = 0x05
	ItemIOPort  ItemName = 0x08
	ItemFixedIO ItemName = 0x09
	ItemEndTag  ItemName = 0x0f

	ItemMemory24      ItemName = 0x81
	ItemMemory32      ItemName = 0x85
	ItemFixedMemory32 ItemName = 0x86
	ItemDWordAddress  ItemName = 0x87
	ItemWordAddress   ItemName = 0x88
	ItemExtendedIRQ   ItemName = 0x89
	ItemQWordAddress  ItemName = 0x8a
)

const (
	largeItemFlag      ItemName = 0x80
	smallItemNameShift          = 3
)

var itemNames = map[ItemName]string{
	ItemIRQ:           "IRQ",
	ItemDMA:           "DMA",
	ItemIOPort:        "IO",
	ItemFixedIO:       "FixedIO",
	ItemEndTag:        "EndTag",
	ItemMemory24:      "Memory24",
	ItemMemory32:      "Memory32",
	ItemFixedMemory32: "Memory32Fixed",
	ItemDWordAddress:  "DWordAddress",
	ItemWordAddress:   "WordAddress",
	ItemExtendedIRQ:   "Interrupt",
	ItemQWordAddress:  "QWordAddress",
}

// String implements fmt.Stringer for ItemName.
func (n ItemName) String() string {
	if name, ok := itemNames[n]; ok {
		return name
	}

	return fmt.Sprintf("Item(0x%02x)", uint8(n))
}

var (
	errTruncated   = &kernel.Error{Module: "acpi_resource", Message: "resource descriptor extends past the end of the template", Errno: kernel.EILSEQ}
	errShortItem   = &kernel.Error{Module: "acpi_resource", Message: "resource descriptor is shorter than its fixed fields", Errno: kernel.EILSEQ}
	errNoEndTag    = &kernel.Error{Module: "acpi_resource", Message: "resource template has no end tag", Errno: kernel.EILSEQ}
	errBadIRQCount = &kernel.Error{Module: "acpi_resource", Message: "extended interrupt descriptor has an invalid interrupt count", Errno: kernel.EILSEQ}
)

// Descriptor is implemented by every decoded resource descriptor.
type Descriptor interface {
	Item() ItemName
}

// IRQ flag bits as they appear in the optional IRQ information byte and
// in the extended interrupt descriptor.
const (
	FlagEdgeTriggered = 1 << 0
	FlagActiveLow     = 1 << 3
	FlagShared        = 1 << 4
	FlagWakeCapable   = 1 << 5
)

// IRQ is a legacy IRQ descriptor. A descriptor without the information
// byte describes edge triggered, active high, exclusive interrupts.
type IRQ struct {
	Mask uint16
	Info uint8
}

// Item implements Descriptor.
func (IRQ) Item() ItemName { return ItemIRQ }

// Lines returns the IRQ numbers set in the mask in ascending order.
func (d IRQ) Lines() []uint8 {
	var lines []uint8
	for i := uint8(0); i < 16; i++ {
		if d.Mask&(1<<i) != 0 {
			lines = append(lines, i)
		}
	}
	return lines
}

// EdgeTriggered reports whether the interrupts are edge triggered.
func (d IRQ) EdgeTriggered() bool { return d.Info&FlagEdgeTriggered != 0 }

// ActiveLow reports whether the interrupts are active low.
func (d IRQ) ActiveLow() bool { return d.Info&FlagActiveLow != 0 }

// Shared reports whether the interrupts may be shared with other devices.
func (d IRQ) Shared() bool { return d.Info&FlagShared != 0 }

// DMA is a DMA channel descriptor.
type DMA struct {
	Channels uint8
	Flags    uint8
}

// Item implements Descriptor.
func (DMA) Item() ItemName { return ItemDMA }

// IOPort is an I/O port range descriptor.
type IOPort struct {
	Decode16  bool
	Min       uint16
	Max       uint16
	Alignment uint8
	Length    uint8
}

// Item implements Descriptor.
func (IOPort) Item() ItemName { return ItemIOPort }

// FixedIO is a fixed location I/O port descriptor that decodes 10 address
// bits.
type FixedIO struct {
	Base   uint16
	Length uint8
}

// Item implements Descriptor.
func (FixedIO) Item() ItemName { return ItemFixedIO }

// Memory describes a memory range. Memory24 descriptors store their
// fields in 256 byte units; the decoded values are always in bytes.
type Memory struct {
	Name      ItemName
	Writable  bool
	Min       uint32
	Max       uint32
	Alignment uint32
	Length    uint32
}

// Item implements Descriptor.
func (d Memory) Item() ItemName { return d.Name }

// Address space types used by the address space descriptors.
const (
	AddressSpaceMemory = 0
	AddressSpaceIO     = 1
	AddressSpaceBus    = 2
)

// Address is a Word, DWord or QWord address space descriptor.
type Address struct {
	Name              ItemName
	ResourceType      uint8
	GeneralFlags      uint8
	TypeFlags         uint8
	Granularity       uint64
	Min               uint64
	Max               uint64
	TranslationOffset uint64
	Length            uint64
}

// Item implements Descriptor.
func (d Address) Item() ItemName { return d.Name }

// ExtendedIRQ is an extended interrupt descriptor.
type ExtendedIRQ struct {
	Flags      uint8
	Interrupts []uint32
}

// Item implements Descriptor.
func (ExtendedIRQ) Item() ItemName { return ItemExtendedIRQ }

// Unknown holds the body of a descriptor this package does not decode.
type Unknown struct {
	Name ItemName
	Data []byte
}

// Item implements Descriptor.
func (d Unknown) Item() ItemName { return d.Name }

// Decode parses a resource template and returns its descriptors in order.
// Decoding stops at the end tag, which is not included in the result.
func Decode(template []byte) ([]Descriptor, error) {
	var out []Descriptor

	for off := 0; off < len(template); {
		name, body, next, err := splitItem(template, off)
		if err != nil {
			return nil, err
		}

		if name == ItemEndTag {
			return out, nil
		}

		desc, err := decodeItem(name, body)
		if err != nil {
			return nil, err
		}

		out = append(out, desc)
		off = next
	}

	return nil, errNoEndTag
}

// splitItem returns the name and body of the descriptor starting at off
// together with the offset of the following descriptor.
func splitItem(b []byte, off int) (ItemName, []byte, int, error) {
	tag := b[off]

	if ItemName(tag)&largeItemFlag == 0 {
		name := ItemName(tag>>smallItemNameShift) & 0x0f
		start, end := off+1, off+1+int(tag&0x07)
		if end > len(b) {
			return 0, nil, 0, errTruncated
		}
		return name, b[start:end], end, nil
	}

	if off+3 > len(b) {
		return 0, nil, 0, errTruncated
	}

	start := off + 3
	end := start + int(binary.LittleEndian.Uint16(b[off+1:]))
	if end > len(b) {
		return 0, nil, 0, errTruncated
	}

	return ItemName(tag), b[start:end], end, nil
}

func decodeItem(name ItemName, b []byte) (Descriptor, error) {
	switch name {
	case ItemIRQ:
		if len(b) < 2 {
			return nil, errShortItem
		}
		d := IRQ{Mask: binary.LittleEndian.Uint16(b), Info: FlagEdgeTriggered}
		if len(b) > 2 {
			d.Info = b[2]
		}
		return d, nil
	case ItemDMA:
		if len(b) < 2 {
			return nil, errShortItem
		}
		return DMA{Channels: b[0], Flags: b[1]}, nil
	case ItemIOPort:
		if len(b) < 7 {
			return nil, errShortItem
		}
		return IOPort{
			Decode16:  b[0]&0x1 != 0,
			Min:       binary.LittleEndian.Uint16(b[1:]),
			Max:       binary.LittleEndian.Uint16(b[3:]),
			Alignment: b[5],
			Length:    b[6],
		}, nil
	case ItemFixedIO:
		if len(b) < 3 {
			return nil, errShortItem
		}
		return FixedIO{Base: binary.LittleEndian.Uint16(b) & 0x3ff, Length: b[2]}, nil
	case ItemMemory24:
		if len(b) < 9 {
			return nil, errShortItem
		}
		return Memory{
			Name:      name,
			Writable:  b[0]&0x1 != 0,
			Min:       uint32(binary.LittleEndian.Uint16(b[1:])) << 8,
			Max:       uint32(binary.LittleEndian.Uint16(b[3:])) << 8,
			Alignment: uint32(binary.LittleEndian.Uint16(b[5:])),
			Length:    uint32(binary.LittleEndian.Uint16(b[7:])) << 8,
		}, nil
	case ItemMemory32:
		if len(b) < 17 {
			return nil, errShortItem
		}
		return Memory{
			Name:      name,
			Writable:  b[0]&0x1 != 0,
			Min:       binary.LittleEndian.Uint32(b[1:]),
			Max:       binary.LittleEndian.Uint32(b[5:]),
			Alignment: binary.LittleEndian.Uint32(b[9:]),
			Length:    binary.LittleEndian.Uint32(b[13:]),
		}, nil
	case ItemFixedMemory32:
		if len(b) < 9 {
			return nil, errShortItem
		}
		base := binary.LittleEndian.Uint32(b[1:])
		length := binary.LittleEndian.Uint32(b[5:])
		return Memory{
			Name:     name,
			Writable: b[0]&0x1 != 0,
			Min:      base,
			Max:      base,
			Length:   length,
		}, nil
	case ItemWordAddress:
		return decodeAddress(name, b, 2)
	case ItemDWordAddress:
		return decodeAddress(name, b, 4)
	case ItemQWordAddress:
		return decodeAddress(name, b, 8)
	case ItemExtendedIRQ:
		if len(b) < 2 {
			return nil, errShortItem
		}
		count := int(b[1])
		if count == 0 {
			return nil, errBadIRQCount
		}
		if len(b) < 2+4*count {
			return nil, errShortItem
		}
		d := ExtendedIRQ{Flags: b[0], Interrupts: make([]uint32, count)}
		for i := range d.Interrupts {
			d.Interrupts[i] = binary.LittleEndian.Uint32(b[2+4*i:])
		}
		return d, nil
	}

	return Unknown{Name: name, Data: append([]byte(nil), b...)}, nil
}

// decodeAddress decodes an address space descriptor whose numeric fields
// are width bytes wide. An optional resource source may follow the fixed
// fields; it is ignored.
func decodeAddress(name ItemName, b []byte, width int) (Descriptor, error) {
	if len(b) < 3+5*width {
		return nil, errShortItem
	}

	var fields [5]uint64
	for i := range fields {
		field := b[3+i*width:]
		switch width {
		case 2:
			fields[i] = uint64(binary.LittleEndian.Uint16(field))
		case 4:
			fields[i] = uint64(binary.LittleEndian.Uint32(field))
		default:
			fields[i] = binary.LittleEndian.Uint64(field)
		}
	}

	return Address{
		Name:              name,
		ResourceType:      b[0],
		GeneralFlags:      b[1],
		TypeFlags:         b[2],
		Granularity:       fields[0],
		Min:               fields[1],
		Max:               fields[2],
		TranslationOffset: fields[3],
		Length:            fields[4],
	}, nil
}
