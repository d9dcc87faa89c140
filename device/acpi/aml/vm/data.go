package vm

import (
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

const (
	// maxPackageDepth bounds the nesting of packages bound on evaluation.
	maxPackageDepth = 32

	// maxPackageElements and maxBufferSize reject sizes that no firmware
	// table legitimately uses.
	maxPackageElements = 1 << 16
	maxBufferSize      = 1 << 24
)

// vmOpConst handles integer and string constants.
func vmOpConst(c *execContext, op parser.Opcode) (*object.Object, error) {
	var (
		v   uint64
		err error
	)

	switch op {
	case parser.OpZero:
	case parser.OpOne:
		v = 1
	case parser.OpOnes:
		v = object.IntegerOnes()
	case parser.OpBytePrefix:
		var b byte
		b, err = c.r.ReadByte()
		v = uint64(b)
	case parser.OpWordPrefix:
		var w uint16
		w, err = c.r.ReadWord()
		v = uint64(w)
	case parser.OpDwordPrefix:
		var dw uint32
		dw, err = c.r.ReadDWord()
		v = uint64(dw)
	case parser.OpQwordPrefix:
		v, err = c.r.ReadQWord()
	case parser.OpStringPrefix:
		s, err := c.r.ReadString()
		if err != nil {
			return nil, c.raise(ExceptionParse, err)
		}
		return object.NewString(s), nil
	case parser.OpRevision:
		v = c.vm.cfg.Revision
	}

	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	return object.NewInteger(v), nil
}

// Args: BufferSize ByteList
//
// The buffer is BufferSize bytes long; when the initializer is longer the
// buffer grows to fit it.
func vmOpBuffer(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	size, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	if size > maxBufferSize {
		return nil, c.raise(ExceptionBufferLimit, errBufferLimit)
	}

	init, err := c.r.Slice(c.r.Offset(), end)
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	buf := make([]byte, max(size, uint64(len(init))))
	copy(buf, init)

	if err = c.seek(end); err != nil {
		return nil, err
	}

	return &object.Object{Type: object.TypeBuffer, Bytes: buf}, nil
}

// Args: NumElements PackageElementList
//
// Package uses a byte for the element count while VarPackage evaluates a
// TermArg. Missing elements stay uninitialized; extra initializers are
// dropped.
func vmOpPackage(c *execContext, op parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	var count uint64
	if op == parser.OpPackage {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, c.raise(ExceptionParse, err)
		}
		count = uint64(b)
	} else if count, err = c.evalInteger(); err != nil {
		return nil, err
	}

	if count > maxPackageElements {
		return nil, c.raise(ExceptionPackageLimit, errIndexOutOfRange)
	}

	pkg := object.New()
	_ = pkg.SetPackage(int(count))

	var dropped int
	for index := 0; c.r.Offset() < end; index++ {
		elem, err := c.evalPackageElement()
		if err != nil {
			return nil, err
		}

		if index >= len(pkg.Elements) {
			dropped++
			continue
		}
		pkg.Elements[index] = elem
	}

	if dropped > 0 {
		c.vm.log.Warn("package initializer longer than its element count", "table", c.table, "offset", c.r.Offset(), "count", count, "dropped", dropped)
	}

	if err = c.seek(end); err != nil {
		return nil, err
	}

	return pkg, nil
}

// evalPackageElement evaluates a single PackageElement. Names become
// references to the named object; names that do not exist yet are kept as
// placeholders and bound when the package is evaluated.
func (c *execContext) evalPackageElement() (*object.Object, error) {
	next, err := c.r.PeekByte()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	if parser.IsNameStringStart(next) {
		path, err := c.r.ReadNameString()
		if err != nil {
			return nil, c.raise(ExceptionBadName, err)
		}

		if target := object.Find(c.scope, path); target != nil {
			return object.NewReference(target), nil
		}
		return object.NewUnresolved(path, c.scope), nil
	}

	elem, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	if elem.Flags&object.FlagNamed != 0 {
		return object.Clone(elem)
	}
	return elem, nil
}

// vmOpLocal reads LocalN. References held by the local are followed.
func vmOpLocal(c *execContext, op parser.Opcode) (*object.Object, error) {
	local := c.local(int(op - parser.OpLocal0))
	if local.Type == object.TypeUninitialized {
		return nil, c.raise(ExceptionUninitializedLocal, errUninitializedLocal)
	}

	obj, err := local.Deref()
	if err != nil {
		return nil, c.raise(ExceptionCircularReference, err)
	}
	return obj, nil
}

// vmOpArg reads ArgN. References held by the arg are followed.
func vmOpArg(c *execContext, op parser.Opcode) (*object.Object, error) {
	arg, err := c.arg(int(op - parser.OpArg0))
	if err != nil {
		return nil, err
	}

	obj, err := arg.Deref()
	if err != nil {
		return nil, c.raise(ExceptionCircularReference, err)
	}
	return obj, nil
}

func vmOpDebug(_ *execContext, _ parser.Opcode) (*object.Object, error) {
	return object.NewDebugObject(), nil
}
