package vm

import (
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

type targetKind uint8

const (
	targetNone targetKind = iota
	targetLocal
	targetArg
	targetDebug
	targetObject
)

// target describes where the result of an operator is written.
type target struct {
	kind  targetKind
	index int
	obj   *object.Object
}

// evalTarget parses an optional Target operand. A NullName (Zero) means
// the result is discarded.
func (c *execContext) evalTarget() (target, error) {
	next, err := c.r.PeekByte()
	if err != nil {
		return target{}, c.raise(ExceptionParse, err)
	}

	if next == 0x00 {
		_, _ = c.r.ReadByte()
		return target{kind: targetNone}, nil
	}

	return c.evalSuperName()
}

// evalSuperName parses a SuperName operand.
//
// Grammar:
// SuperName := SimpleName | DebugObj | ReferenceTypeOpcode
// SimpleName := NameString | ArgObj | LocalObj
func (c *execContext) evalSuperName() (target, error) {
	next, err := c.r.PeekByte()
	if err != nil {
		return target{}, c.raise(ExceptionParse, err)
	}

	if parser.IsNameStringStart(next) {
		path, err := c.r.ReadNameString()
		if err != nil {
			return target{}, c.raise(ExceptionBadName, err)
		}

		obj, err := c.lookup(path)
		if err != nil {
			return target{}, err
		}
		return target{kind: targetObject, obj: obj}, nil
	}

	op, err := c.r.PeekOpcode()
	if err != nil {
		return target{}, c.raise(ExceptionBadOpcode, err)
	}

	switch {
	case parser.OpIsLocalArg(op):
		_, _ = c.r.ReadOpcode()
		index := int(op - parser.OpLocal0)
		return target{kind: targetLocal, index: index, obj: c.local(index)}, nil
	case parser.OpIsMethodArg(op):
		_, _ = c.r.ReadOpcode()
		index := int(op - parser.OpArg0)
		return target{kind: targetArg, index: index, obj: c.state.args[index]}, nil
	case op == parser.OpDebug:
		_, _ = c.r.ReadOpcode()
		return target{kind: targetDebug}, nil
	case op == parser.OpRefOf || op == parser.OpDerefOf || op == parser.OpIndex:
		obj, err := c.execTerm()
		if err != nil {
			return target{}, err
		}

		if obj.Type == object.TypeObjectReference {
			obj = obj.Target
		}
		return target{kind: targetObject, obj: obj}, nil
	}

	c.vm.log.Warn("invalid store target", "table", c.table, "offset", c.r.Offset(), "opcode", op.String())
	return target{}, c.raise(ExceptionOperandType, errBadTarget)
}

// targetObject returns the object a target designates, following the
// references held by Locals and Args.
func (c *execContext) targetObject(t target) *object.Object {
	if t.obj == nil {
		return nil
	}

	obj, err := t.obj.Deref()
	if err != nil {
		return nil
	}
	return obj
}

// store writes value to t using the Store operator rules: Locals and
// unbound Args take the type of value; named objects keep their type and
// value is converted to it.
func (c *execContext) store(value *object.Object, t target) error {
	switch t.kind {
	case targetNone:
		return nil
	case targetDebug:
		c.debugStore(value)
		return nil
	case targetLocal:
		return c.copyInto(c.local(t.index), value)
	case targetArg:
		arg := c.state.args[t.index]
		if arg == nil {
			arg = object.NewArg(t.index)
			c.state.args[t.index] = arg
		}

		// Args passed by reference store through to the referenced
		// object.
		if arg.Type == object.TypeObjectReference {
			return c.storeObject(arg.Target, value)
		}
		return c.copyInto(arg, value)
	}

	return c.storeObject(t.obj, value)
}

func (c *execContext) copyInto(dst, value *object.Object) error {
	if err := object.CopyDataAndType(dst, value); err != nil {
		return c.raise(ExceptionOperandType, err)
	}

	return nil
}

// storeObject implements the store to a named object or to a package
// element reached through Index.
func (c *execContext) storeObject(dst, value *object.Object) error {
	dst, err := dst.Resolve()
	if err != nil || dst == nil {
		return c.raise(ExceptionCircularReference, errBadTarget)
	}

	// Named objects holding a reference store through it; package elements
	// are overwritten.
	if dst.Type == object.TypeObjectReference && dst.Flags&object.FlagNamed != 0 {
		if dst, err = dst.Deref(); err != nil || dst == nil {
			return c.raise(ExceptionCircularReference, errBadTarget)
		}
	}

	switch dst.Type {
	case object.TypeFieldUnit:
		return c.storeField(dst, value)
	case object.TypeBufferField:
		return c.storeBufferField(dst, value)
	case object.TypeDebugObject:
		c.debugStore(value)
		return nil
	}

	if dst.Flags&object.FlagNamed == 0 {
		return c.copyInto(dst, value)
	}

	switch {
	case dst.Type&object.TypeComputationalData != 0:
		if err := object.Convert(value, dst, dst.Type); err != nil {
			return c.raise(ExceptionOperandType, err)
		}
		return nil
	case dst.Type == object.TypeUninitialized || dst.Type&object.TypeDataRefObjects != 0:
		return c.copyInto(dst, value)
	}

	c.vm.log.Warn("store to a non-data object", "table", c.table, "offset", c.r.Offset(), "target", dst.Path(), "type", dst.Type.String())
	return c.raise(ExceptionOperandType, errBadTarget)
}

func (c *execContext) storeBufferField(dst, value *object.Object) error {
	var (
		v   = value
		err error
	)

	switch {
	case value.Type == object.TypeString:
		v, err = object.ConvertTo(value, object.TypeBuffer)
	case value.Type&(object.TypeInteger|object.TypeBuffer) == 0:
		v, err = object.ConvertTo(value, object.TypeInteger)
	}
	if err != nil {
		return c.raise(ExceptionOperandType, err)
	}

	if err = dst.BufferField.Store(v); err != nil {
		return c.raise(ExceptionBufferLimit, err)
	}

	return nil
}

// copyObjectTo implements the CopyObject operator: the target takes the
// type of value unless it is a field.
func (c *execContext) copyObjectTo(value *object.Object, t target) error {
	switch t.kind {
	case targetNone:
		return nil
	case targetDebug:
		c.debugStore(value)
		return nil
	case targetLocal:
		return c.copyInto(c.local(t.index), value)
	case targetArg:
		arg := c.state.args[t.index]
		if arg == nil {
			arg = object.NewArg(t.index)
			c.state.args[t.index] = arg
		}

		if err := object.CopyObject(arg, value); err != nil {
			return c.raise(ExceptionOperandType, err)
		}
		return nil
	}

	dst, err := t.obj.Resolve()
	if err != nil || dst == nil {
		return c.raise(ExceptionCircularReference, errBadTarget)
	}

	switch dst.Type {
	case object.TypeFieldUnit:
		return c.storeField(dst, value)
	case object.TypeBufferField:
		return c.storeBufferField(dst, value)
	}

	return c.copyInto(dst, value)
}
