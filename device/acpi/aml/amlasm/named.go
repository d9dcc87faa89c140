package amlasm

import (
	"encoding/binary"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

// Name appends DefName binding value to path.
func (a *AML) Name(path string, value *AML) *AML {
	return a.Op(parser.OpName).Path(path).Append(value)
}

// Alias appends DefAlias binding alias to the existing object source.
func (a *AML) Alias(source, alias string) *AML {
	return a.Op(parser.OpAlias).Path(source).Path(alias)
}

// Scope appends DefScope.
func (a *AML) Scope(path string, body *AML) *AML {
	return a.pkg(parser.OpScope, New().Path(path).Append(orEmpty(body)))
}

// Method appends DefMethod.
func (a *AML) Method(path string, argCount uint8, serialized bool, syncLevel uint8, body *AML) *AML {
	if argCount > 7 {
		return a.fail(errBadArgCount)
	}

	flags := argCount | (syncLevel&0xf)<<4
	if serialized {
		flags |= 1 << 3
	}

	return a.pkg(parser.OpMethod, New().Path(path).Raw(flags).Append(orEmpty(body)))
}

// External appends DefExternal.
func (a *AML) External(path string, objType, argCount uint8) *AML {
	return a.Op(parser.OpExternal).Path(path).Raw(objType, argCount)
}

// Device appends DefDevice.
func (a *AML) Device(path string, body *AML) *AML {
	return a.pkg(parser.OpDevice, New().Path(path).Append(orEmpty(body)))
}

// ThermalZone appends DefThermalZone.
func (a *AML) ThermalZone(path string, body *AML) *AML {
	return a.pkg(parser.OpThermalZone, New().Path(path).Append(orEmpty(body)))
}

// Processor appends the deprecated DefProcessor.
func (a *AML) Processor(path string, id uint8, blockAddr uint32, blockLen uint8, body *AML) *AML {
	content := New().Path(path).Raw(id).Raw(binary.LittleEndian.AppendUint32(nil, blockAddr)...).Raw(blockLen)
	return a.pkg(parser.OpProcessor, content.Append(orEmpty(body)))
}

// PowerResource appends DefPowerRes.
func (a *AML) PowerResource(path string, systemLevel uint8, resourceOrder uint16, body *AML) *AML {
	content := New().Path(path).Raw(systemLevel).Raw(binary.LittleEndian.AppendUint16(nil, resourceOrder)...)
	return a.pkg(parser.OpPowerRes, content.Append(orEmpty(body)))
}

// Mutex appends DefMutex.
func (a *AML) Mutex(path string, syncLevel uint8) *AML {
	return a.Op(parser.OpMutex).Path(path).Raw(syncLevel & 0xf)
}

// Event appends DefEvent.
func (a *AML) Event(path string) *AML {
	return a.Op(parser.OpEvent).Path(path)
}

// OpRegion appends DefOpRegion.
func (a *AML) OpRegion(path string, space object.RegionSpace, offset, length *AML) *AML {
	return a.Op(parser.OpOpRegion).Path(path).Raw(byte(space)).Append(offset, length)
}

// DataRegion appends DefDataRegion.
func (a *AML) DataRegion(path string, signature, oemID, oemTableID *AML) *AML {
	return a.Op(parser.OpDataRegion).Path(path).Append(signature, oemID, oemTableID)
}

// CreateField appends one of the CreateXField operators. CreateField
// takes a bit index and a bit count; the fixed size variants take a byte
// index (a bit index for CreateBitField) and ignore numBits.
func (a *AML) CreateField(op parser.Opcode, source, index, numBits *AML, name string) *AML {
	a.Op(op).Append(source, index)
	if op == parser.OpCreateField {
		a.Append(numBits)
	}

	return a.Path(name)
}

// FieldFlags packs an access type, lock rule and update rule.
func FieldFlags(access object.AccessType, lock bool, update object.UpdateRule) uint8 {
	flags := uint8(access)&0xf | uint8(update&0x3)<<5
	if lock {
		flags |= 1 << 4
	}
	return flags
}

// FieldEntry is an element of a FieldList.
type FieldEntry interface {
	encode(a *AML)
}

type namedField struct {
	name string
	bits uint32
}

func (f namedField) encode(a *AML) {
	enc, err := parser.EncodeFieldLength(f.bits)
	if err != nil {
		a.fail(err)
		return
	}

	a.Path(f.name).Raw(enc...)
}

// NamedField declares a field unit of the given width.
func NamedField(name string, bits uint32) FieldEntry { return namedField{name, bits} }

type reservedField uint32

func (f reservedField) encode(a *AML) {
	enc, err := parser.EncodeFieldLength(uint32(f))
	if err != nil {
		a.fail(err)
		return
	}

	a.Raw(0x00).Raw(enc...)
}

// ReservedField skips bits; it is what Offset() compiles to.
func ReservedField(bits uint32) FieldEntry { return reservedField(bits) }

type accessField struct {
	access object.AccessType
	attrib uint8
}

func (f accessField) encode(a *AML) {
	a.Raw(0x01, byte(f.access), f.attrib)
}

// AccessField changes the access type of the fields that follow.
func AccessField(access object.AccessType, attrib uint8) FieldEntry {
	return accessField{access, attrib}
}

func fieldList(entries []FieldEntry) *AML {
	list := New()
	for _, entry := range entries {
		entry.encode(list)
	}
	return list
}

// Field appends DefField.
func (a *AML) Field(region string, flags uint8, entries ...FieldEntry) *AML {
	return a.pkg(parser.OpField, New().Path(region).Raw(flags).Append(fieldList(entries)))
}

// IndexField appends DefIndexField.
func (a *AML) IndexField(index, data string, flags uint8, entries ...FieldEntry) *AML {
	return a.pkg(parser.OpIndexField, New().Path(index).Path(data).Raw(flags).Append(fieldList(entries)))
}

// BankField appends DefBankField.
func (a *AML) BankField(region, bank string, bankValue *AML, flags uint8, entries ...FieldEntry) *AML {
	return a.pkg(parser.OpBankField, New().Path(region).Path(bank).Append(bankValue).Raw(flags).Append(fieldList(entries)))
}
