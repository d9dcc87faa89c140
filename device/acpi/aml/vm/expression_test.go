package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"gopheraml/device/acpi/aml/amlasm"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"gopheraml/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ret(value *amlasm.AML) *amlasm.AML {
	return amlasm.New().Return(value)
}

func binaryOp(op parser.Opcode, a, b uint64) *amlasm.AML {
	return ret(amlasm.Expr(op, amlasm.Int(a), amlasm.Int(b), nil))
}

func unaryOp(op parser.Opcode, v uint64) *amlasm.AML {
	return ret(amlasm.Expr(op, amlasm.Int(v), nil))
}

func TestIntegerExpressions(t *testing.T) {
	ones := ^uint64(0)

	specs := []struct {
		body *amlasm.AML
		exp  uint64
	}{
		{binaryOp(parser.OpAdd, 1, 2), 3},
		{binaryOp(parser.OpSubtract, 1, 2), ones},
		{binaryOp(parser.OpMultiply, 6, 7), 42},
		{binaryOp(parser.OpMod, 10, 3), 1},
		{binaryOp(parser.OpShiftLeft, 1, 4), 16},
		{binaryOp(parser.OpShiftLeft, 1, 64), 0},
		{binaryOp(parser.OpShiftRight, 0x80, 4), 8},
		{binaryOp(parser.OpAnd, 0xf0, 0x3c), 0x30},
		{binaryOp(parser.OpNand, 0xf0, 0x3c), ^uint64(0x30)},
		{binaryOp(parser.OpOr, 0xf0, 0x3c), 0xfc},
		{binaryOp(parser.OpNor, 0xf0, 0x3c), ^uint64(0xfc)},
		{binaryOp(parser.OpXor, 0xf0, 0x3c), 0xcc},
		{unaryOp(parser.OpNot, 0), ones},
		{unaryOp(parser.OpFindSetLeftBit, 0x100), 9},
		{unaryOp(parser.OpFindSetLeftBit, 0), 0},
		{unaryOp(parser.OpFindSetRightBit, 0x100), 9},
		{unaryOp(parser.OpFindSetRightBit, 0), 0},
		{unaryOp(parser.OpToBCD, 1234), 0x1234},
		{unaryOp(parser.OpFromBCD, 0x1234), 1234},
		{ret(amlasm.Expr(parser.OpLand, amlasm.Int(1), amlasm.Int(0))), 0},
		{ret(amlasm.Expr(parser.OpLor, amlasm.Int(0), amlasm.Int(1))), ones},
		{ret(amlasm.Expr(parser.OpLnot, amlasm.Int(0))), ones},
		{ret(amlasm.Expr(parser.OpLEqual, amlasm.Str("abc"), amlasm.Str("abc"))), ones},
		{ret(amlasm.Expr(parser.OpLLess, amlasm.Int(1), amlasm.Int(2))), ones},
		{ret(amlasm.Expr(parser.OpLGreater, amlasm.Str("a"), amlasm.Str("b"))), 0},
		// Integer comparisons convert the second operand.
		{ret(amlasm.Expr(parser.OpLEqual, amlasm.Int(0x1f), amlasm.Str("1F"))), ones},
		{ret(amlasm.Expr(parser.OpToInteger, amlasm.Str("0x1F"), nil)), 31},
		{ret(amlasm.Expr(parser.OpToInteger, amlasm.Str("123abc"), nil)), 123},
		// Divide stores the remainder before the quotient.
		{
			amlasm.New().
				Expr(parser.OpDivide, amlasm.Int(17), amlasm.Int(5), amlasm.Local(0), amlasm.Local(1)).
				Return(amlasm.Expr(parser.OpAdd, amlasm.Expr(parser.OpMultiply, amlasm.Local(1), amlasm.Int(100), nil), amlasm.Local(0), nil)),
			302,
		},
		{
			amlasm.New().
				Store(amlasm.Int(5), amlasm.Local(0)).
				Expr(parser.OpIncrement, amlasm.Local(0)).
				Expr(parser.OpIncrement, amlasm.Local(0)).
				Expr(parser.OpDecrement, amlasm.Local(0)).
				Return(amlasm.Local(0)),
			6,
		},
		{
			amlasm.New().
				Expr(parser.OpAdd, amlasm.Int(2), amlasm.Int(3), amlasm.Local(2)).
				Return(amlasm.Local(2)),
			5,
		},
		{
			amlasm.New().
				Store(amlasm.Str("hello"), amlasm.Local(0)).
				Return(amlasm.Expr(parser.OpSizeOf, amlasm.Local(0))),
			5,
		},
		{
			amlasm.New().
				Store(amlasm.Pkg(amlasm.Int(1), amlasm.Int(2)), amlasm.Local(0)).
				Return(amlasm.Expr(parser.OpSizeOf, amlasm.Local(0))),
			2,
		},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, testMethod(spec.body))

		res, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeInteger)
		if !assert.NoError(t, err, "[spec %02d]", specIndex) {
			continue
		}
		assert.Equal(t, spec.exp, res.Integer, "[spec %02d]", specIndex)
	}
}

func TestStringExpressions(t *testing.T) {
	specs := []struct {
		body *amlasm.AML
		exp  string
	}{
		{ret(amlasm.Expr(parser.OpConcat, amlasm.Str("ab"), amlasm.Str("cd"), nil)), "abcd"},
		{ret(amlasm.Expr(parser.OpConcat, amlasm.Str("v"), amlasm.Int(1), nil)), "v0000000000000001"},
		{ret(amlasm.Expr(parser.OpToHexString, amlasm.Int(0x1a), nil)), "000000000000001A"},
		{ret(amlasm.Expr(parser.OpToHexString, amlasm.Buf(1, 0xab), nil)), "01,AB"},
		{ret(amlasm.Expr(parser.OpToDecimalString, amlasm.Int(42), nil)), "42"},
		{ret(amlasm.Expr(parser.OpToDecimalString, amlasm.Buf(1, 20), nil)), "1,20"},
		{ret(amlasm.Expr(parser.OpMid, amlasm.Str("abcdef"), amlasm.Int(1), amlasm.Int(3), nil)), "bcd"},
		{ret(amlasm.Expr(parser.OpMid, amlasm.Str("abc"), amlasm.Int(8), amlasm.Int(3), nil)), ""},
		{ret(amlasm.Expr(parser.OpToString, amlasm.Buf('a', 'b', 0, 'c'), amlasm.New().Ones(), nil)), "ab"},
		{ret(amlasm.Expr(parser.OpToString, amlasm.Buf('a', 'b', 'c'), amlasm.Int(2), nil)), "ab"},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, testMethod(spec.body))

		res, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeString)
		if !assert.NoError(t, err, "[spec %02d]", specIndex) {
			continue
		}
		assert.Equal(t, object.TypeString, res.Type, "[spec %02d]", specIndex)
		assert.Equal(t, spec.exp, res.String(), "[spec %02d]", specIndex)
	}
}

func TestBufferExpressions(t *testing.T) {
	specs := []struct {
		body *amlasm.AML
		exp  []byte
	}{
		{ret(amlasm.Expr(parser.OpConcat, amlasm.Buf(1, 2), amlasm.Buf(3), nil)), []byte{1, 2, 3}},
		{ret(amlasm.Expr(parser.OpConcat, amlasm.Int(1), amlasm.Int(2), nil)), []byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}},
		{ret(amlasm.Expr(parser.OpToBuffer, amlasm.Str("ab"), nil)), []byte{'a', 'b', 0}},
		{ret(amlasm.Expr(parser.OpMid, amlasm.Buf(1, 2, 3, 4), amlasm.Int(2), amlasm.Int(8), nil)), []byte{3, 4}},
		{
			ret(amlasm.Expr(parser.OpConcatRes, amlasm.Buf(0x22, 0x01, 0x00, 0x79, 0x00), amlasm.Buf(0x2a, 0x02, 0x00, 0x79, 0x00), nil)),
			[]byte{0x22, 0x01, 0x00, 0x2a, 0x02, 0x00, 0x79, 0x00},
		},
		// The initializer may be shorter than the declared size.
		{ret(amlasm.New().Buffer(amlasm.Int(4), []byte{9})), []byte{9, 0, 0, 0}},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, testMethod(spec.body))

		res, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeBuffer)
		if !assert.NoError(t, err, "[spec %02d]", specIndex) {
			continue
		}
		assert.Equal(t, spec.exp, res.Bytes, "[spec %02d]", specIndex)
	}
}

func TestStoreConversions(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Name("INT_", amlasm.Int(5)).
		Name("STR_", amlasm.Str("abc")).
		Name("BUF_", amlasm.Buf(0xff, 0xff, 0xff, 0xff)).
		Name("CPY_", amlasm.Int(1)).
		Method("TEST", 0, false, 0, amlasm.New().
			Store(amlasm.Str("12"), amlasm.Path("INT_")).
			Store(amlasm.Int(0x41), amlasm.Path("STR_")).
			Store(amlasm.Int(0x0102), amlasm.Path("BUF_")).
			Expr(parser.OpCopyObject, amlasm.Str("x"), amlasm.Path("CPY_")).
			// Locals take the type of the stored value.
			Store(amlasm.Str("x"), amlasm.Local(0)).
			Store(amlasm.Int(1), amlasm.Local(0)).
			Return(amlasm.Expr(parser.OpObjectType, amlasm.Local(0)))))

	assert.Equal(t, object.TypeCode(object.TypeInteger), evalInteger(t, vm, "TEST"))

	ctx := context.Background()
	specs := []struct {
		path    string
		expType object.Type
		check   func(*object.Object)
	}{
		{`\INT_`, object.TypeInteger, func(obj *object.Object) { assert.Equal(t, uint64(0x12), obj.Integer) }},
		{`\STR_`, object.TypeString, func(obj *object.Object) { assert.Equal(t, "0000000000000041", obj.String()) }},
		{`\BUF_`, object.TypeBuffer, func(obj *object.Object) { assert.Equal(t, []byte{2, 1, 0, 0}, obj.Bytes) }},
		{`\CPY_`, object.TypeString, func(obj *object.Object) { assert.Equal(t, "x", obj.String()) }},
	}

	for specIndex, spec := range specs {
		obj, err := vm.Lookup(ctx, spec.path)
		require.NoError(t, err, "[spec %02d]", specIndex)
		require.Equal(t, spec.expType, obj.Type, "[spec %02d]", specIndex)
		spec.check(obj)
		assert.Equal(t, spec.path[1:], obj.Name(), "[spec %02d]", specIndex)
	}
}

func TestIndexAndReferences(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Name("FOO_", amlasm.Int(0x33)).
		Name("PKG_", amlasm.Pkg(amlasm.Int(5), amlasm.Int(10), amlasm.Int(15))).
		Name("BUF_", amlasm.Buf(1, 2, 3)).
		Method("SPKG", 0, false, 0, amlasm.New().
			Store(amlasm.Int(9), amlasm.Expr(parser.OpIndex, amlasm.Path("PKG_"), amlasm.Int(0), nil)).
			Return(amlasm.Expr(parser.OpDerefOf, amlasm.Expr(parser.OpIndex, amlasm.Path("PKG_"), amlasm.Int(0), nil)))).
		Method("SBUF", 0, false, 0, amlasm.New().
			Store(amlasm.Int(0xaa), amlasm.Expr(parser.OpIndex, amlasm.Path("BUF_"), amlasm.Int(1), nil)).
			Return(amlasm.Expr(parser.OpDerefOf, amlasm.Expr(parser.OpIndex, amlasm.Path("BUF_"), amlasm.Int(1), nil)))).
		Method("OOB_", 0, false, 0, amlasm.New().
			Return(amlasm.Expr(parser.OpIndex, amlasm.Path("PKG_"), amlasm.Int(3), nil))).
		Method("REF_", 0, false, 0, amlasm.New().
			Store(amlasm.Expr(parser.OpRefOf, amlasm.Path("FOO_")), amlasm.Local(0)).
			Return(amlasm.Expr(parser.OpDerefOf, amlasm.Local(0)))).
		Method("CREF", 0, false, 0, amlasm.New().
			If(amlasm.Expr(parser.OpCondRefOf, amlasm.Path(`\FOO_`), amlasm.Local(0)),
				amlasm.New().Return(amlasm.Expr(parser.OpDerefOf, amlasm.Local(0))),
				nil).
			Return(amlasm.Int(0xff))).
		Method("CMIS", 0, false, 0, amlasm.New().
			If(amlasm.Expr(parser.OpCondRefOf, amlasm.Path(`\MISS`), amlasm.Local(0)),
				amlasm.New().Return(amlasm.Int(1)),
				nil).
			Return(amlasm.Int(0xff))).
		Method("NAME", 0, false, 0, amlasm.New().
			Return(amlasm.Expr(parser.OpDerefOf, amlasm.Str(`\FOO_`)))))

	specs := []struct {
		path string
		exp  uint64
	}{
		{"SPKG", 9},
		{"SBUF", 0xaa},
		{"REF_", 0x33},
		{"CREF", 0x33},
		{"CMIS", 0xff},
		{"NAME", 0x33},
	}

	for specIndex, spec := range specs {
		res, err := vm.EvaluatePath(context.Background(), nil, spec.path, object.TypeInteger)
		if !assert.NoError(t, err, "[spec %02d]", specIndex) {
			continue
		}
		assert.Equal(t, spec.exp, res.Integer, "[spec %02d]", specIndex)
	}

	buf, err := vm.Lookup(context.Background(), `\BUF_`)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0xaa, 3}, buf.Bytes)

	_, err = vm.EvaluatePath(context.Background(), nil, "OOB_", object.TypeAll)
	assert.True(t, errors.Is(err, kernel.ERANGE))
}

func TestMatch(t *testing.T) {
	match := func(op1 byte, v1 uint64, op2 byte, v2 uint64, start uint64) *amlasm.AML {
		return ret(amlasm.Expr(parser.OpMatch,
			amlasm.Path("PKG_"),
			amlasm.New().Raw(op1), amlasm.Int(v1),
			amlasm.New().Raw(op2), amlasm.Int(v2),
			amlasm.Int(start)))
	}

	specs := []struct {
		body *amlasm.AML
		exp  uint64
	}{
		{match(matchEqual, 10, matchTrue, 0, 0), 1},
		{match(matchGreater, 5, matchLess, 20, 0), 1},
		{match(matchGreaterEqual, 5, matchTrue, 0, 1), 1},
		{match(matchLessEqual, 15, matchTrue, 0, 3), ^uint64(0)},
		{match(matchEqual, 99, matchTrue, 0, 0), ^uint64(0)},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, amlasm.New().
			Name("PKG_", amlasm.Pkg(amlasm.Int(5), amlasm.Int(10), amlasm.Int(15), amlasm.Str("x"))).
			Method("TEST", 0, false, 0, spec.body))

		res, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeInteger)
		if !assert.NoError(t, err, "[spec %02d]", specIndex) {
			continue
		}
		assert.Equal(t, spec.exp, res.Integer, "[spec %02d]", specIndex)
	}
}

func TestBufferFields(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Name("BUF_", amlasm.Buf(0, 0, 0, 0, 0, 0, 0, 0)).
		Method("TEST", 0, false, 0, amlasm.New().
			CreateField(parser.OpCreateWordField, amlasm.Path("BUF_"), amlasm.Int(1), nil, "WRD_").
			CreateField(parser.OpCreateBitField, amlasm.Path("BUF_"), amlasm.Int(0), nil, "BIT0").
			CreateField(parser.OpCreateField, amlasm.Path("BUF_"), amlasm.Int(36), amlasm.Int(4), "NIBL").
			Store(amlasm.Int(0xbeef), amlasm.Path("WRD_")).
			Store(amlasm.Int(1), amlasm.Path("BIT0")).
			Store(amlasm.Int(0xf), amlasm.Path("NIBL")).
			Return(amlasm.Path("WRD_"))).
		Method("OOB_", 0, false, 0, amlasm.New().
			CreateField(parser.OpCreateDWordField, amlasm.Path("BUF_"), amlasm.Int(6), nil, "DWRD")))

	assert.Equal(t, uint64(0xbeef), evalInteger(t, vm, "TEST"))

	buf, err := vm.Lookup(context.Background(), `\BUF_`)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xef, 0xbe, 0, 0xf0, 0, 0, 0}, buf.Bytes)

	_, err = vm.EvaluatePath(context.Background(), nil, "OOB_", object.TypeAll)
	assert.True(t, errors.Is(err, kernel.ERANGE))
}

func TestTimer(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	vm := newTestVM(t, testMethod(ret(amlasm.New().Op(parser.OpTimer))))
	now = base.Add(10 * time.Microsecond)

	assert.Equal(t, uint64(100), evalInteger(t, vm, "TEST"))
}

func TestExceptions(t *testing.T) {
	specs := []struct {
		body    *amlasm.AML
		expCode Exception
		expErr  kernel.Errno
	}{
		{binaryOp(parser.OpMod, 1, 0), ExceptionDivideByZero, kernel.EINVAL},
		{ret(amlasm.Expr(parser.OpDivide, amlasm.Int(1), amlasm.Int(0), nil, nil)), ExceptionDivideByZero, kernel.EINVAL},
		{ret(amlasm.Path("NOPE")), ExceptionNameNotFound, kernel.ENOENT},
		{ret(amlasm.Local(3)), ExceptionUninitializedLocal, kernel.EILSEQ},
		{ret(amlasm.Arg(0)), ExceptionUninitializedArg, kernel.EILSEQ},
		{amlasm.New().Break(), ExceptionNoWhile, kernel.EILSEQ},
		{unaryOp(parser.OpFromBCD, 0xa), ExceptionOperandValue, kernel.EINVAL},
		{amlasm.New().Raw(0x5b, 0x99), ExceptionBadOpcode, kernel.EILSEQ},
		{amlasm.New().Expr(parser.OpLoadTable, amlasm.Str("SSDT")), ExceptionError, kernel.ENOSYS},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, testMethod(spec.body))

		h := &recordingHandler{}
		require.NoError(t, vm.RegisterExceptionHandler(h))

		_, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeAll)
		if !assert.Error(t, err, "[spec %02d]", specIndex) {
			continue
		}

		assert.True(t, errors.Is(err, spec.expErr), "[spec %02d] expected errno %s; got %v", specIndex, spec.expErr, err)
		assert.Contains(t, h.codes, spec.expCode, "[spec %02d]", specIndex)
		assert.Contains(t, h.functions, `\TEST`, "[spec %02d]", specIndex)

		var vmErr *Error
		if assert.True(t, errors.As(err, &vmErr), "[spec %02d]", specIndex) {
			assert.Contains(t, vmErr.StackTrace(), `[DSDT] [\TEST():0x0]`, "[spec %02d]", specIndex)
		}
	}
}

func TestUseOfMissingReturnValue(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Method("NONE", 0, false, 0, nil).
		Method("TEST", 0, false, 0, ret(amlasm.Expr(parser.OpAdd, amlasm.Call("NONE"), amlasm.Int(1), nil))))

	h := &recordingHandler{}
	require.NoError(t, vm.RegisterExceptionHandler(h))

	// The placeholder result raises an exception but evaluation goes on.
	assert.Equal(t, uint64(1), evalInteger(t, vm, "TEST"))
	assert.Contains(t, h.codes, ExceptionParse)
}
