package vm

import (
	"encoding/binary"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

// Field list entry prefixes.
const (
	fieldEntryReserved       = 0x00
	fieldEntryAccess         = 0x01
	fieldEntryConnect        = 0x02
	fieldEntryExtendedAccess = 0x03
)

// vmOpField handles the Field, IndexField and BankField declarations.
//
// Grammar:
// DefField := FieldOp PkgLength NameString FieldFlags FieldList
// DefIndexField := IndexFieldOp PkgLength NameString NameString FieldFlags FieldList
// DefBankField := BankFieldOp PkgLength NameString NameString BankValue FieldFlags FieldList
func vmOpField(c *execContext, op parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	var tmpl object.FieldUnit
	switch op {
	case parser.OpField:
		tmpl.Kind = object.FieldKindRegion
		if tmpl.Region, err = c.readFieldOwner(object.TypeOperationRegion); err != nil {
			return nil, err
		}
	case parser.OpIndexField:
		tmpl.Kind = object.FieldKindIndex
		if tmpl.Index, err = c.readFieldOwner(object.TypeFieldUnit); err != nil {
			return nil, err
		}
		if tmpl.Data, err = c.readFieldOwner(object.TypeFieldUnit); err != nil {
			return nil, err
		}
	case parser.OpBankField:
		tmpl.Kind = object.FieldKindBank
		if tmpl.Region, err = c.readFieldOwner(object.TypeOperationRegion); err != nil {
			return nil, err
		}
		if tmpl.Bank, err = c.readFieldOwner(object.TypeFieldUnit); err != nil {
			return nil, err
		}
		if tmpl.BankValue, err = c.evalInteger(); err != nil {
			return nil, err
		}
	}

	flags, err := c.readByte()
	if err != nil {
		return nil, err
	}
	tmpl.AccessType, tmpl.LockRule, tmpl.UpdateRule = object.FieldFlags(flags)

	return nil, c.parseFieldList(tmpl, end)
}

// readFieldOwner reads the name of the region or register a field list
// refers to and checks its type.
func (c *execContext) readFieldOwner(want object.Type) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	obj, err := c.lookup(path)
	if err != nil {
		return nil, err
	}

	if obj.Type != want {
		c.vm.log.Warn("field owner has the wrong type", "table", c.table, "offset", c.r.Offset(), "path", path, "type", obj.Type.String())
		if want == object.TypeOperationRegion {
			return nil, c.raise(ExceptionOperandType, errNotRegion)
		}
		return nil, c.raise(ExceptionOperandType, errNotField)
	}

	return obj, nil
}

// parseFieldList binds a field unit for every NamedField entry until end.
// Each unit starts as a copy of tmpl.
func (c *execContext) parseFieldList(tmpl object.FieldUnit, end uint32) error {
	var curBitOffset uint64

	for c.r.Offset() < end {
		next, err := c.readByte()
		if err != nil {
			return err
		}

		switch next {
		case fieldEntryReserved: // ReservedField; generated by the Offset() command
			width, err := c.r.ReadFieldLength()
			if err != nil {
				return c.raise(ExceptionParse, err)
			}
			curBitOffset += uint64(width)
		case fieldEntryAccess: // AccessField; set access attributes for following fields
			accessType, err := c.readByte()
			if err != nil {
				return err
			}
			attrib, err := c.readByte()
			if err != nil {
				return err
			}

			tmpl.AccessType = object.AccessType(accessType & 0xf)
			tmpl.AccessAttrib = attrib
			tmpl.AccessLength = 0
		case fieldEntryConnect: // ConnectField => <0x2> NameString> | <0x02> TermObj => Buffer
			peek, err := c.r.PeekByte()
			if err != nil {
				return c.raise(ExceptionParse, err)
			}

			// Connection resources only matter to GPIO and serial bus
			// handlers, which are not supported.
			if parser.IsNameStringStart(peek) {
				_, err = c.readName()
			} else {
				_, err = c.evalTermArg()
			}
			if err != nil {
				return err
			}
		case fieldEntryExtendedAccess: // ExtendedAccessField => <0x03> AccessType ExtendedAccessAttrib AccessLength
			var attrs [3]byte
			for i := range attrs {
				if attrs[i], err = c.readByte(); err != nil {
					return err
				}
			}

			tmpl.AccessType = object.AccessType(attrs[0] & 0xf)
			tmpl.AccessAttrib = attrs[1]
			tmpl.AccessLength = attrs[2]
		default: // NamedField
			_ = c.r.UnreadByte()
			name, err := c.r.ReadNameSeg()
			if err != nil {
				return c.raise(ExceptionBadName, err)
			}

			width, err := c.r.ReadFieldLength()
			if err != nil {
				return c.raise(ExceptionParse, err)
			}

			unit := tmpl
			unit.BitOffset = curBitOffset
			unit.BitLength = uint64(width)
			curBitOffset += uint64(width)

			if _, err = c.bind(name, object.NewFieldUnit(unit)); err != nil {
				return err
			}
		}
	}

	if c.r.Offset() != end {
		return c.raise(ExceptionParse, errBadTerm)
	}

	return nil
}

// accessWidth returns the access width in bits used for fu. AnyAcc picks
// the narrowest width that covers the field without crossing an alignment
// boundary, or a byte when no single access can.
func accessWidth(fu *object.FieldUnit) uint64 {
	switch fu.AccessType {
	case object.AccessWord:
		return 16
	case object.AccessDWord:
		return 32
	case object.AccessQWord:
		return 64
	case object.AccessAny:
		for _, w := range []uint64{8, 16, 32, 64} {
			if (fu.BitOffset%w)+fu.BitLength <= w {
				return w
			}
		}
	}

	return 8
}

// loadField reads a field unit. Fields that fit in an Integer yield an
// Integer; wider fields yield a Buffer.
func (c *execContext) loadField(obj *object.Object) (*object.Object, error) {
	fu := obj.FieldUnit
	size := (fu.BitLength + 7) / 8
	buf := make([]byte, max(size, 8))

	if err := c.accessField(fu, buf, false); err != nil {
		return nil, err
	}

	if size > uint64(object.IntegerSize()) {
		return &object.Object{Type: object.TypeBuffer, Bytes: buf[:size]}, nil
	}

	return object.NewInteger(binary.LittleEndian.Uint64(buf)), nil
}

// storeField writes an Integer or Buffer value to a field unit. Strings
// are stored as their bytes. Missing high bits are written as zero.
func (c *execContext) storeField(obj, value *object.Object) error {
	fu := obj.FieldUnit
	size := (fu.BitLength + 7) / 8
	buf := make([]byte, max(size, 8))

	switch value.Type {
	case object.TypeInteger:
		binary.LittleEndian.PutUint64(buf, value.Integer)
	case object.TypeBuffer, object.TypeString:
		copy(buf, value.Bytes)
	case object.TypeBufferField:
		v, err := value.BufferField.Load()
		if err != nil {
			return c.raise(ExceptionBufferLimit, err)
		}
		return c.storeField(obj, v)
	default:
		return c.raise(ExceptionOperandType, errFieldValue)
	}

	return c.accessField(fu, buf, true)
}

// accessField moves the bits of fu to (write == false) or from buf using
// accesses of the field's access width.
func (c *execContext) accessField(fu *object.FieldUnit, buf []byte, write bool) error {
	if fu.LockRule && c.vm.globalLock != nil {
		acquired, err := c.vm.acquire(c.caller, c.vm.globalLock, false)
		if err != nil {
			return c.raise(ExceptionMutexOrder, err)
		}
		if !acquired {
			return c.raise(ExceptionMutexNotAcquired, errMutexDeadlock)
		}
		defer func() { _ = c.vm.releaseMutex(c.caller, c.vm.globalLock) }()
	}

	if fu.Kind == object.FieldKindBank {
		if err := c.storeField(fu.Bank, object.NewInteger(fu.BankValue)); err != nil {
			return err
		}
	}

	var (
		width      = accessWidth(fu)
		byteOffset = (fu.BitOffset &^ (width - 1)) / 8
	)

	for pos := uint64(0); pos < fu.BitLength; byteOffset += width / 8 {
		inAccessOffset := (fu.BitOffset + pos) & (width - 1)
		bitsToAccess := min(fu.BitLength-pos, width-inAccessOffset)

		mask := ^uint64(0)
		if bitsToAccess < 64 {
			mask = (uint64(1) << bitsToAccess) - 1
		}

		if !write {
			v, err := c.readFieldAt(fu, byteOffset, width)
			if err != nil {
				return err
			}
			object.InsertBits(buf, pos, bitsToAccess, (v>>inAccessOffset)&mask)
		} else {
			var v uint64
			switch {
			case fu.UpdateRule == object.UpdateWriteAsOnes:
				v = ^uint64(0)
			case fu.UpdateRule == object.UpdateWriteAsZeros:
			case bitsToAccess < width:
				var err error
				if v, err = c.readFieldAt(fu, byteOffset, width); err != nil {
					return err
				}
			}

			v &^= mask << inAccessOffset
			v |= (object.ExtractBits(buf, pos, bitsToAccess) & mask) << inAccessOffset
			if width < 64 {
				v &= (uint64(1) << width) - 1
			}

			if err := c.writeFieldAt(fu, byteOffset, width, v); err != nil {
				return err
			}
		}

		pos += bitsToAccess
	}

	return nil
}

func (c *execContext) readFieldAt(fu *object.FieldUnit, byteOffset, width uint64) (uint64, error) {
	if fu.Kind != object.FieldKindIndex {
		return c.readRegion(fu.Region, byteOffset, width)
	}

	if err := c.storeField(fu.Index, object.NewInteger(byteOffset)); err != nil {
		return 0, err
	}

	v, err := c.loadField(fu.Data)
	if err != nil {
		return 0, err
	}

	if v.Type != object.TypeInteger {
		v, _ = object.ConvertTo(v, object.TypeInteger)
	}
	return v.Integer, nil
}

func (c *execContext) writeFieldAt(fu *object.FieldUnit, byteOffset, width, v uint64) error {
	if fu.Kind != object.FieldKindIndex {
		return c.writeRegion(fu.Region, byteOffset, width, v)
	}

	if err := c.storeField(fu.Index, object.NewInteger(byteOffset)); err != nil {
		return err
	}

	return c.storeField(fu.Data, object.NewInteger(v))
}
