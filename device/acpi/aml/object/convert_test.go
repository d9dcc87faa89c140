package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	specs := []struct {
		src     *Object
		dst     *Object
		allowed Type
		expType Type
		expInt  uint64
		expData []byte
		expErr  error
	}{
		// Integer -> Buffer uses the integer width
		{NewInteger(0x0102), New(), TypeBuffer, TypeBuffer, 0, []byte{2, 1, 0, 0, 0, 0, 0, 0}, nil},
		// Integer -> existing Buffer keeps the buffer length
		{NewInteger(0x0a0b0c), NewBuffer([]byte{0xff, 0xff}), TypeBuffer, TypeBuffer, 0, []byte{0x0c, 0x0b}, nil},
		// Buffer is preferred over String
		{NewInteger(1), New(), TypeString | TypeBuffer, TypeBuffer, 0, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil},
		{NewInteger(0xbeef), New(), TypeString, TypeString, 0, []byte("000000000000BEEF"), nil},
		// Buffer -> Integer reads at most IntegerSize bytes
		{NewBuffer([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}), New(), TypeInteger, TypeInteger, 0x0807060504030201, nil, nil},
		{NewBuffer([]byte{0xde, 0xad}), New(), TypeString, TypeString, 0, []byte("DE AD"), nil},
		// String -> Integer stops at the first non-hex char
		{NewString("1Fzz"), New(), TypeInteger, TypeInteger, 0x1f, nil, nil},
		{NewString("ab"), New(), TypeBuffer, TypeBuffer, 0, []byte{'a', 'b', 0}, nil},
		{NewString(""), New(), TypeBuffer, TypeBuffer, 0, nil, nil},
		// String -> existing Buffer is NUL terminated within the buffer length
		{NewString("abcdef"), NewBuffer([]byte{9, 9, 9, 9}), TypeBuffer, TypeBuffer, 0, []byte{'a', 'b', 'c', 0}, nil},
		// plain copy when the type is already acceptable
		{NewString("copy"), New(), TypeString, TypeString, 0, []byte("copy"), nil},
		// errors
		{New(), New(), TypeInteger, TypeUninitialized, 0, nil, errUninitialized},
		{NewPackage(), New(), TypeInteger, TypeUninitialized, 0, nil, errNoConverter},
		{NewMutex(0), New(), TypeInteger, TypeUninitialized, 0, nil, errNotConvertible},
		{NewBuffer([]byte{1}), New(), TypePackage, TypeUninitialized, 0, nil, errNoConverter},
		{NewFieldUnit(FieldUnit{}), New(), TypeInteger, TypeUninitialized, 0, nil, errFieldUnitSource},
	}

	for specIndex, spec := range specs {
		err := Convert(spec.src, spec.dst, spec.allowed)
		require.Equal(t, spec.expErr, err, "[spec %02d]", specIndex)
		if err != nil {
			continue
		}

		assert.Equal(t, spec.expType, spec.dst.Type, "[spec %02d]", specIndex)
		if spec.expType == TypeInteger {
			assert.Equal(t, spec.expInt, spec.dst.Integer, "[spec %02d]", specIndex)
		} else {
			assert.Equal(t, spec.expData, spec.dst.Bytes, "[spec %02d]", specIndex)
		}
	}
}

func TestConvertBufferFieldSource(t *testing.T) {
	buf := NewBuffer([]byte{0x34, 0x12})
	field := NewBufferField(buf, 0, 16)

	dst := New()
	require.NoError(t, Convert(field, dst, TypeInteger))
	assert.Equal(t, uint64(0x1234), dst.Integer)

	dst = New()
	require.NoError(t, Convert(field, dst, TypeString))
	assert.Equal(t, "0000000000001234", dst.String())
}

func TestConvertIntegerIntoBufferField(t *testing.T) {
	buf := NewBuffer([]byte{0, 0})
	field := NewBufferField(buf, 4, 8)

	require.NoError(t, Convert(NewInteger(0xab), field, TypeBufferField))
	assert.Equal(t, []byte{0xb0, 0x0a}, buf.Bytes)
}

func TestConvertNarrowIntegers(t *testing.T) {
	defer SetRevision(2)
	SetRevision(1)

	dst := New()
	require.NoError(t, Convert(NewInteger(0xbeef), dst, TypeString))
	assert.Equal(t, "0000BEEF", dst.String())

	dst = New()
	require.NoError(t, Convert(NewString("123456789A"), dst, TypeInteger))
	assert.Equal(t, uint64(0x12345678), dst.Integer)
}

func TestConvertTo(t *testing.T) {
	src := NewInteger(5)
	got, err := ConvertTo(src, TypeInteger|TypeString)
	require.NoError(t, err)
	assert.Same(t, src, got)

	got, err = ConvertTo(src, TypeString)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000005", got.String())
}

func TestExplicitConversions(t *testing.T) {
	specs := []struct {
		fn      func(*Object) (*Object, error)
		src     *Object
		expType Type
		expInt  uint64
		expStr  string
		expErr  error
	}{
		{ToDecimalString, NewInteger(1234), TypeString, 0, "1234", nil},
		{ToDecimalString, NewBuffer([]byte{1, 2, 3}), TypeString, 0, "1,2,3", nil},
		{ToDecimalString, NewString("same"), TypeString, 0, "same", nil},
		{ToHexString, NewInteger(0xab), TypeString, 0, "00000000000000AB", nil},
		{ToHexString, NewBuffer([]byte{0x0a, 0xff}), TypeString, 0, "0A,FF", nil},
		{ToInteger, NewString("0x1A"), TypeInteger, 0x1a, "", nil},
		{ToInteger, NewString("42abc"), TypeInteger, 42, "", nil},
		{ToInteger, NewBuffer([]byte{0x01, 0x02}), TypeInteger, 0x0201, "", nil},
		{ToInteger, NewInteger(9), TypeInteger, 9, "", nil},
		{ToBuffer, NewString("hi"), TypeBuffer, 0, "hi\x00", nil},
		{ToBuffer, NewInteger(0x41), TypeBuffer, 0, "A\x00\x00\x00\x00\x00\x00\x00", nil},
		{ToInteger, NewString(""), TypeUninitialized, 0, "", errEmptyString},
		{ToInteger, NewPackage(), TypeUninitialized, 0, "", errBadExplicitType},
		{ToHexString, New(), TypeUninitialized, 0, "", errUninitialized},
		{ToBuffer, NewDevice(), TypeUninitialized, 0, "", errBadExplicitType},
	}

	for specIndex, spec := range specs {
		got, err := spec.fn(spec.src)
		require.Equal(t, spec.expErr, err, "[spec %02d]", specIndex)
		if err != nil {
			continue
		}

		assert.Equal(t, spec.expType, got.Type, "[spec %02d]", specIndex)
		if spec.expType == TypeInteger {
			assert.Equal(t, spec.expInt, got.Integer, "[spec %02d]", specIndex)
		} else {
			assert.Equal(t, spec.expStr, got.String(), "[spec %02d]", specIndex)
		}
	}
}

func TestToString(t *testing.T) {
	specs := []struct {
		src    *Object
		maxLen uint64
		exp    string
	}{
		{NewBuffer([]byte{'a', 'b', 0, 'c'}), 0xff, "ab"},
		{NewBuffer([]byte{'a', 'b', 'c'}), 2, "ab"},
		{NewString("xyz"), 0xff, "xyz"},
		{NewInteger(0x4142), 0xff, "BA"},
	}

	for specIndex, spec := range specs {
		got, err := ToString(spec.src, spec.maxLen)
		require.NoError(t, err, "[spec %02d]", specIndex)
		assert.Equal(t, TypeString, got.Type, "[spec %02d]", specIndex)
		assert.Equal(t, spec.exp, got.String(), "[spec %02d]", specIndex)
	}
}

func TestBCD(t *testing.T) {
	specs := []struct {
		bin, bcd uint64
	}{
		{0, 0},
		{9, 0x9},
		{10, 0x10},
		{1234, 0x1234},
		{99999999, 0x99999999},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.bcd, ToBCD(spec.bin), "[spec %02d]", specIndex)

		got, err := FromBCD(spec.bcd)
		require.NoError(t, err, "[spec %02d]", specIndex)
		assert.Equal(t, spec.bin, got, "[spec %02d]", specIndex)
	}

	_, err := FromBCD(0x1a)
	assert.Equal(t, errInvalidBCD, err)
}
