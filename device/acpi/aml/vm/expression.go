package vm

import (
	"bytes"
	"cmp"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"math/bits"
	"time"
)

// timeNow returns the current time. Tests replace it to get a predictable
// Timer value.
var timeNow = time.Now

// storeResult writes res to the optional target that follows the operands
// and returns res.
func (c *execContext) storeResult(res *object.Object) (*object.Object, error) {
	t, err := c.evalTarget()
	if err != nil {
		return nil, err
	}

	if err = c.store(res, t); err != nil {
		return nil, err
	}
	return res, nil
}

// Args: Operand Operand Target
func vmOpBinary(c *execContext, op parser.Opcode) (*object.Object, error) {
	a, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	b, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	var res uint64
	switch op {
	case parser.OpAdd:
		res = a + b
	case parser.OpSubtract:
		res = a - b
	case parser.OpMultiply:
		res = a * b
	case parser.OpMod:
		if b == 0 {
			return nil, c.raise(ExceptionDivideByZero, errDivideByZero)
		}
		res = a % b
	case parser.OpShiftLeft:
		if b < 64 {
			res = a << b
		}
	case parser.OpShiftRight:
		if b < 64 {
			res = a >> b
		}
	case parser.OpAnd:
		res = a & b
	case parser.OpNand:
		res = ^(a & b)
	case parser.OpOr:
		res = a | b
	case parser.OpNor:
		res = ^(a | b)
	case parser.OpXor:
		res = a ^ b
	}

	return c.storeResult(object.NewInteger(res))
}

// Args: Dividend Divisor Remainder Quotient
func vmOpDivide(c *execContext, _ parser.Opcode) (*object.Object, error) {
	a, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	b, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	if b == 0 {
		return nil, c.raise(ExceptionDivideByZero, errDivideByZero)
	}

	if _, err = c.storeResult(object.NewInteger(a % b)); err != nil {
		return nil, err
	}

	return c.storeResult(object.NewInteger(a / b))
}

// Args: Operand Target
func vmOpUnary(c *execContext, op parser.Opcode) (*object.Object, error) {
	v, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	var res uint64
	switch op {
	case parser.OpNot:
		res = ^v
	case parser.OpFindSetLeftBit:
		res = uint64(bits.Len64(v))
	case parser.OpFindSetRightBit:
		if v != 0 {
			res = uint64(bits.TrailingZeros64(v)) + 1
		}
	case parser.OpToBCD:
		res = object.ToBCD(v)
	case parser.OpFromBCD:
		if res, err = object.FromBCD(v); err != nil {
			return nil, c.raise(ExceptionOperandValue, err)
		}
	}

	return c.storeResult(object.NewInteger(res))
}

// Args: SuperName
func vmOpIncDec(c *execContext, op parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	cur, err := c.operandValue(c.targetObject(t))
	if err != nil {
		return nil, err
	}

	v, err := object.ConvertTo(cur, object.TypeInteger)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	res := v.Integer + 1
	if op == parser.OpDecrement {
		res = v.Integer - 1
	}

	out := object.NewInteger(res)
	if err = c.store(out, t); err != nil {
		return nil, err
	}
	return out, nil
}

func boolResult(v bool) *object.Object {
	if v {
		return object.NewInteger(object.IntegerOnes())
	}

	return object.NewInteger(0)
}

// Args: Operand
func vmOpLogicalNot(c *execContext, _ parser.Opcode) (*object.Object, error) {
	v, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	return boolResult(v == 0), nil
}

// Args: Operand Operand
func vmOpLogicalAndOr(c *execContext, op parser.Opcode) (*object.Object, error) {
	a, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	b, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	if op == parser.OpLand {
		return boolResult(a != 0 && b != 0), nil
	}
	return boolResult(a != 0 || b != 0), nil
}

// compareObjects compares a and b after converting b to the type of a.
func compareObjects(a, b *object.Object) (int, error) {
	switch a.Type {
	case object.TypeInteger:
		other, err := object.ConvertTo(b, object.TypeInteger)
		if err != nil {
			return 0, err
		}
		return cmp.Compare(a.Integer, other.Integer&object.IntegerOnes()), nil
	case object.TypeString, object.TypeBuffer:
		other, err := object.ConvertTo(b, a.Type)
		if err != nil {
			return 0, err
		}
		return bytes.Compare(a.Bytes, other.Bytes), nil
	}

	return 0, errOperandType
}

// Args: Operand Operand
func vmOpCompare(c *execContext, op parser.Opcode) (*object.Object, error) {
	a, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	b, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	res, err := compareObjects(a, b)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	switch op {
	case parser.OpLEqual:
		return boolResult(res == 0), nil
	case parser.OpLGreater:
		return boolResult(res > 0), nil
	}
	return boolResult(res < 0), nil
}

// Args: Operand Target
func vmOpConvert(c *execContext, op parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	var res *object.Object
	switch op {
	case parser.OpToBuffer:
		res, err = object.ToBuffer(src)
	case parser.OpToDecimalString:
		res, err = object.ToDecimalString(src)
	case parser.OpToHexString:
		res, err = object.ToHexString(src)
	case parser.OpToInteger:
		res, err = object.ToInteger(src)
	}
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	return c.storeResult(res)
}

// Args: TermArg LengthArg Target
func vmOpToString(c *execContext, _ parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	length, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	res, err := object.ToString(src, length)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	return c.storeResult(res)
}

// Args: Source1 Source2 Target
func vmOpConcat(c *execContext, _ parser.Opcode) (*object.Object, error) {
	a, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	b, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	res, err := object.Concat(a, b)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	return c.storeResult(res)
}

// resourceTemplate returns the content of a resource template buffer
// without its end tag.
func (c *execContext) resourceTemplate() ([]byte, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	buf, err := object.ConvertTo(src, object.TypeBuffer)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	b := buf.Bytes
	if n := len(b); n >= 2 && b[n-2] == endTag {
		b = b[:n-2]
	}
	return b, nil
}

// endTag is the small resource descriptor that closes a resource template.
const endTag = 0x79

// Args: BufData BufData Target
//
// ConcatenateResTemplate joins two resource templates and appends a new end
// tag with a zero checksum.
func vmOpConcatRes(c *execContext, _ parser.Opcode) (*object.Object, error) {
	a, err := c.resourceTemplate()
	if err != nil {
		return nil, err
	}

	b, err := c.resourceTemplate()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(a)+len(b)+2)
	out = append(append(append(out, a...), b...), endTag, 0x00)
	return c.storeResult(&object.Object{Type: object.TypeBuffer, Bytes: out})
}

// Args: MidObj TermArg TermArg Target
func vmOpMid(c *execContext, _ parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	index, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	length, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	res, err := object.Mid(src, index, length)
	if err != nil {
		return nil, c.raise(ExceptionOperandType, err)
	}

	return c.storeResult(res)
}

// Args: SuperName
func vmOpRefOf(c *execContext, _ parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(t)
	if obj == nil {
		return nil, c.raise(ExceptionUninitializedArg, errUnboundArg)
	}

	return object.NewReference(obj), nil
}

// Args: SuperName Target
//
// CondRefOf returns Zero, rather than failing, if the operand names an
// object that does not exist.
func vmOpCondRefOf(c *execContext, _ parser.Opcode) (*object.Object, error) {
	next, err := c.r.PeekByte()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	var obj *object.Object
	switch op := parser.Opcode(next); {
	case parser.IsNameStringStart(next):
		path, err := c.readName()
		if err != nil {
			return nil, err
		}
		if obj = object.Find(c.scope, path); obj != nil {
			obj, _ = obj.Resolve()
		}
	case parser.OpIsLocalArg(op):
		_, _ = c.r.ReadByte()
		if local := c.local(int(op - parser.OpLocal0)); local.Type != object.TypeUninitialized {
			obj, _ = local.Deref()
		}
	case parser.OpIsMethodArg(op):
		_, _ = c.r.ReadByte()
		if arg := c.state.args[op-parser.OpArg0]; arg != nil {
			obj, _ = arg.Deref()
		}
	default:
		t, err := c.evalSuperName()
		if err != nil {
			return nil, err
		}
		obj = c.targetObject(t)
	}

	t, err := c.evalTarget()
	if err != nil {
		return nil, err
	}

	if obj == nil {
		return object.NewInteger(0), nil
	}

	if err = c.store(object.NewReference(obj), t); err != nil {
		return nil, err
	}
	return object.NewInteger(object.IntegerOnes()), nil
}

// Args: ObjReference
//
// The operand is either a reference or a string holding a path.
func vmOpDerefOf(c *execContext, _ parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArgRaw()
	if err != nil {
		return nil, err
	}

	var target *object.Object
	switch src.Type {
	case object.TypeObjectReference:
		target = src.Target
		if target != nil && target.Type == object.TypeUnresolved && !target.BindUnresolved() {
			return nil, c.raise(ExceptionNameNotFound, errNameNotFound)
		}
	case object.TypeString:
		if target, err = c.lookup(src.String()); err != nil {
			return nil, err
		}
	default:
		return c.operandValue(src)
	}

	if target, err = target.Deref(); err != nil || target == nil {
		return nil, c.raise(ExceptionCircularReference, errOperandType)
	}

	return c.operandValue(target)
}

// Args: BuffPkgStrObj IndexValue Target
//
// Index returns a reference to a package element or to a single byte of a
// buffer or string.
func vmOpIndex(c *execContext, _ parser.Opcode) (*object.Object, error) {
	src, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	index, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	var ref *object.Object
	switch src.Type {
	case object.TypePackage:
		if index >= uint64(len(src.Elements)) {
			return nil, c.raise(ExceptionPackageLimit, errIndexOutOfRange)
		}

		elem := src.Elements[index]
		elem.BindUnresolved()
		ref = object.NewReference(elem)
	case object.TypeBuffer, object.TypeString:
		if index >= uint64(len(src.Bytes)) {
			return nil, c.raise(ExceptionBufferLimit, errIndexOutOfRange)
		}
		ref = object.NewReference(object.NewBufferField(src, index*8, 8))
	default:
		return nil, c.raise(ExceptionOperandType, errOperandType)
	}

	return c.storeResult(ref)
}

// Match operators.
const (
	matchTrue = iota
	matchEqual
	matchLessEqual
	matchLess
	matchGreaterEqual
	matchGreater
)

func matches(op byte, elem, operand *object.Object) bool {
	if op == matchTrue {
		return true
	}

	res, err := compareObjects(elem, operand)
	if err != nil {
		return false
	}

	switch op {
	case matchEqual:
		return res == 0
	case matchLessEqual:
		return res <= 0
	case matchLess:
		return res < 0
	case matchGreaterEqual:
		return res >= 0
	case matchGreater:
		return res > 0
	}
	return false
}

// Args: SearchPkg MatchOpcode Operand MatchOpcode Operand StartIndex
//
// Match returns the index of the first element starting at StartIndex that
// satisfies both comparisons, or Ones.
func vmOpMatch(c *execContext, _ parser.Opcode) (*object.Object, error) {
	pkg, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	if pkg.Type != object.TypePackage {
		return nil, c.raise(ExceptionOperandType, errOperandType)
	}

	var (
		ops      [2]byte
		operands [2]*object.Object
	)
	for i := range ops {
		if ops[i], err = c.readByte(); err != nil {
			return nil, err
		}
		if ops[i] > matchGreater {
			return nil, c.raise(ExceptionOperandValue, errOperandType)
		}
		if operands[i], err = c.evalTermArg(); err != nil {
			return nil, err
		}
	}

	start, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	for i := start; i < uint64(len(pkg.Elements)); i++ {
		elem, err := pkg.Elements[i].Deref()
		if err != nil || elem == nil || elem.Type&object.TypeComputationalData == 0 {
			continue
		}

		if matches(ops[0], elem, operands[0]) && matches(ops[1], elem, operands[1]) {
			return object.NewInteger(i), nil
		}
	}

	return object.NewInteger(object.IntegerOnes()), nil
}

// Args: SuperName
func vmOpSizeOf(c *execContext, _ parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(t)
	if obj == nil {
		return nil, c.raise(ExceptionUninitializedArg, errUnboundArg)
	}

	switch obj.Type {
	case object.TypeBuffer, object.TypeString:
		return object.NewInteger(uint64(len(obj.Bytes))), nil
	case object.TypePackage:
		return object.NewInteger(uint64(len(obj.Elements))), nil
	}

	return nil, c.raise(ExceptionOperandType, errOperandType)
}

// Args: SuperName
func vmOpObjectType(c *execContext, _ parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(t)
	if obj == nil {
		return object.NewInteger(0), nil
	}

	return object.NewInteger(object.TypeCode(obj.Type)), nil
}

// vmOpTimer returns a monotonically increasing timer value in 100ns units.
func vmOpTimer(c *execContext, _ parser.Opcode) (*object.Object, error) {
	return object.NewInteger(uint64(timeNow().Sub(c.vm.started) / 100)), nil
}

// Args: TermArg SuperName
func vmOpStore(c *execContext, _ parser.Opcode) (*object.Object, error) {
	val, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	if err = c.store(val, t); err != nil {
		return nil, err
	}
	return val, nil
}

// Args: TermArg SimpleName
func vmOpCopyObject(c *execContext, _ parser.Opcode) (*object.Object, error) {
	val, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	if err = c.copyObjectTo(val, t); err != nil {
		return nil, err
	}
	return val, nil
}
