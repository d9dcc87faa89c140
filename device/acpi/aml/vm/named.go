package vm

import (
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

func (c *execContext) readName() (string, error) {
	path, err := c.r.ReadNameString()
	if err != nil {
		return "", c.raise(ExceptionBadName, err)
	}

	return path, nil
}

func (c *execContext) readByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, c.raise(ExceptionParse, err)
	}

	return b, nil
}

// Args: NameString DataRefObject
func vmOpName(c *execContext, _ parser.Opcode) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	val, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	obj, err := object.Clone(val)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	_, err = c.bind(path, obj)
	return nil, err
}

// Args: SourceObject AliasObject
func vmOpAlias(c *execContext, _ parser.Opcode) (*object.Object, error) {
	srcPath, err := c.readName()
	if err != nil {
		return nil, err
	}

	aliasPath, err := c.readName()
	if err != nil {
		return nil, err
	}

	src := object.Find(c.scope, srcPath)
	if src == nil {
		c.vm.log.Warn("alias to an undefined name", "table", c.table, "offset", c.r.Offset(), "source", srcPath, "alias", aliasPath)
		return nil, c.raise(ExceptionNameNotFound, errNameNotFound)
	}

	_, err = c.bind(aliasPath, object.NewAlias(src))
	return nil, err
}

// Args: NameString TermList
//
// Scope opens an existing scope. Scopes that do not exist yet are created
// so that the terms they contain still get loaded.
func vmOpScope(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	scope := object.Find(c.scope, path)
	if scope == nil {
		c.vm.log.Warn("creating undefined scope", "table", c.table, "offset", c.r.Offset(), "path", path)
		if scope, err = c.bind(path, object.NewScope()); err != nil {
			return nil, err
		}
	}

	if scope, err = scope.Resolve(); err != nil || scope == nil {
		return nil, c.raise(ExceptionCircularReference, errBadScope)
	}

	if scope.Type&(object.TypeNamespaceScopes|object.TypeMethod) == 0 {
		c.vm.log.Warn("scope target is not a namespace scope", "table", c.table, "path", path, "type", scope.Type.String())
		return nil, c.raise(ExceptionOperandType, errBadScope)
	}

	return nil, c.execScope(scope, end)
}

// Args: NameString MethodFlags TermList
//
// MethodFlags := ByteData  // bit 0-2: ArgCount
//                          // bit 3: SerializeFlag
//                          // bit 4-7: SyncLevel
func vmOpMethod(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	flags, err := c.readByte()
	if err != nil {
		return nil, err
	}

	body, err := c.r.Slice(c.r.Offset(), end)
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	m := object.Method{
		ArgCount:   flags & 0x7,
		Serialized: flags&0x8 != 0,
		SyncLevel:  flags >> 4,
		Body:       body,
		Table:      c.table,
	}
	if m.Serialized {
		m.Lock = object.NewMutex(m.SyncLevel)
	}

	if err = c.seek(end); err != nil {
		return nil, err
	}

	_, err = c.bind(path, object.NewMethod(m))
	return nil, err
}

// Args: NameString ObjectType ArgumentCount
//
// External declarations only matter to compilers.
func vmOpExternal(c *execContext, _ parser.Opcode) (*object.Object, error) {
	if _, err := c.readName(); err != nil {
		return nil, err
	}

	if _, err := c.r.ReadBytes(2); err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	return nil, nil
}

// vmOpScopedObject handles Device, ThermalZone, Processor and PowerResource
// declarations and then executes their body in the new scope.
func vmOpScopedObject(c *execContext, op parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	var obj *object.Object
	switch op {
	case parser.OpDevice:
		obj = object.NewDevice()
	case parser.OpThermalZone:
		obj = object.NewThermalZone()
	case parser.OpProcessor:
		// ProcID PblkAddr PblkLen
		var p object.Processor
		if p.ID, err = c.readByte(); err != nil {
			return nil, err
		}
		if p.BlockAddress, err = c.r.ReadDWord(); err != nil {
			return nil, c.raise(ExceptionParse, err)
		}
		if p.BlockLength, err = c.readByte(); err != nil {
			return nil, err
		}
		obj = object.NewProcessor(p)
	case parser.OpPowerRes:
		// SystemLevel ResourceOrder
		var p object.PowerResource
		if p.SystemLevel, err = c.readByte(); err != nil {
			return nil, err
		}
		if p.ResourceOrder, err = c.r.ReadWord(); err != nil {
			return nil, c.raise(ExceptionParse, err)
		}
		obj = object.NewPowerResource(p)
	}

	scope, err := c.bind(path, obj)
	if err != nil {
		return nil, err
	}

	return nil, c.execScope(scope, end)
}

// Args: NameString SyncFlags
func vmOpMutex(c *execContext, _ parser.Opcode) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	flags, err := c.readByte()
	if err != nil {
		return nil, err
	}

	_, err = c.bind(path, object.NewMutex(flags&0xf))
	return nil, err
}

// Args: NameString
func vmOpEvent(c *execContext, _ parser.Opcode) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	_, err = c.bind(path, object.NewEvent())
	return nil, err
}

// Args: NameString RegionSpace RegionOffset RegionLen
func vmOpOpRegion(c *execContext, _ parser.Opcode) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	space, err := c.readByte()
	if err != nil {
		return nil, err
	}

	offset, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	length, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	region := object.NewRegion(object.Region{
		Space:  object.RegionSpace(space),
		Offset: offset,
		Length: length,
	})

	_, err = c.bind(path, region)
	return nil, err
}

// Args: NameString SignatureString OemIDString OemTableIDString
//
// DataTableRegion maps the contents of a loaded table.
func vmOpDataRegion(c *execContext, _ parser.Opcode) (*object.Object, error) {
	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	var ids [3]string
	for i := range ids {
		s, err := c.evalTermArg()
		if err != nil {
			return nil, err
		}

		if s, err = object.ConvertTo(s, object.TypeString); err != nil {
			return nil, c.raise(ExceptionOperandType, err)
		}
		ids[i] = s.String()
	}

	if c.vm.tableResolver == nil {
		return nil, c.raise(ExceptionNotFound, errTableNotFound)
	}

	for n := 0; ; n++ {
		t := c.vm.tableResolver.LookupTable(ids[0], n)
		if t == nil {
			c.vm.log.Warn("no table for DataTableRegion", "table", c.table, "signature", ids[0], "oem_id", ids[1], "oem_table_id", ids[2])
			return nil, c.raise(ExceptionNotFound, errTableNotFound)
		}

		if (ids[1] != "" && t.OEMID() != ids[1]) || (ids[2] != "" && t.OEMTableID() != ids[2]) {
			continue
		}

		region := object.NewRegion(object.Region{
			Space:  object.RegionSpaceSystemMemory,
			Length: uint64(len(t.Data)),
			Data:   t.Data,
		})

		_, err = c.bind(path, region)
		return nil, err
	}
}

// Args: SourceBuff ByteIndex/BitIndex [NumBits] NameString
func vmOpCreateField(c *execContext, op parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	if src.Type != object.TypeBuffer && src.Type != object.TypeString {
		if src, err = object.ConvertTo(src, object.TypeBuffer); err != nil {
			return nil, c.raise(ExceptionOperandType, err)
		}
	}

	index, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	var bitOffset, bitLength uint64
	switch op {
	case parser.OpCreateField:
		if bitLength, err = c.evalInteger(); err != nil {
			return nil, err
		}
		bitOffset = index
	case parser.OpCreateBitField:
		bitOffset, bitLength = index, 1
	case parser.OpCreateByteField:
		bitOffset, bitLength = index*8, 8
	case parser.OpCreateWordField:
		bitOffset, bitLength = index*8, 16
	case parser.OpCreateDWordField:
		bitOffset, bitLength = index*8, 32
	case parser.OpCreateQWordField:
		bitOffset, bitLength = index*8, 64
	}

	path, err := c.readName()
	if err != nil {
		return nil, err
	}

	if bitLength == 0 || bitOffset+bitLength < bitOffset || bitOffset+bitLength > uint64(len(src.Bytes))*8 {
		c.vm.log.Warn("buffer field outside of its source", "table", c.table, "offset", c.r.Offset(), "name", path, "bit_offset", bitOffset, "bit_length", bitLength)
		return nil, c.raise(ExceptionBufferLimit, errBufferLimit)
	}

	_, err = c.bind(path, object.NewBufferField(src, bitOffset, bitLength))
	return nil, err
}
