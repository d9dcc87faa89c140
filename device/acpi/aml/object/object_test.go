package object

import (
	"errors"
	"testing"

	"gopheraml/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	specs := []struct {
		t   Type
		exp string
	}{
		{TypeUninitialized, "Uninitialized"},
		{TypeInteger, "Integer"},
		{TypeInteger | TypeString, "Integer|String"},
		{TypeComputationalData, "Buffer|Integer|String"},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.exp, spec.t.String(), "[spec %02d]", specIndex)
	}
}

func TestSetters(t *testing.T) {
	obj := New()
	require.NoError(t, obj.SetInteger(0xbadf00d))
	assert.Equal(t, TypeInteger, obj.Type)
	assert.Equal(t, uint64(0xbadf00d), obj.Integer)

	// same type is fine, any other type is rejected
	require.NoError(t, obj.SetInteger(42))
	assert.Equal(t, errIncompatibleType, obj.SetString("foo"))
	assert.Equal(t, errIncompatibleType, obj.SetBuffer([]byte{1}))
	assert.Equal(t, errIncompatibleType, obj.SetPackage(1))

	str := New()
	require.NoError(t, str.SetStringEmpty(3))
	assert.Equal(t, []byte{0, 0, 0}, str.Bytes)
	require.NoError(t, str.SetString("AML"))
	assert.Equal(t, "AML", str.String())

	src := []byte{1, 2, 3}
	buf := New()
	require.NoError(t, buf.SetBuffer(src))
	src[0] = 0xff
	assert.Equal(t, []byte{1, 2, 3}, buf.Bytes, "SetBuffer must copy its input")

	pkg := New()
	require.NoError(t, pkg.SetPackage(2))
	require.Len(t, pkg.Elements, 2)
	for _, elem := range pkg.Elements {
		assert.Equal(t, TypeUninitialized, elem.Type)
	}

	ref := New()
	require.NoError(t, ref.SetReference(buf))
	assert.Equal(t, buf, ref.Target)

	dbg := New()
	require.NoError(t, dbg.SetDebugObject())
	assert.Equal(t, TypeDebugObject, dbg.Type)
}

func TestSetterKeepsNamespaceLinks(t *testing.T) {
	root := NewRoot()
	obj := New()
	require.NoError(t, root.AddChild("FOO_", obj))

	require.NoError(t, obj.SetInteger(1))
	assert.Equal(t, "FOO_", obj.Name())
	assert.Equal(t, root, obj.Parent())
	assert.NotZero(t, obj.Flags&FlagNamed)
}

func TestCheckUse(t *testing.T) {
	obj := NewInteger(0)
	obj.Flags |= FlagExceptionOnUse

	err := obj.CheckUse()
	assert.Equal(t, errExceptionOnUse, err)
	assert.True(t, errors.Is(err, kernel.EILSEQ))

	// the flag is cleared after the first use
	assert.NoError(t, obj.CheckUse())
}

func TestResolveAndDeref(t *testing.T) {
	target := NewInteger(7)
	alias := NewAlias(NewAlias(target))
	ref := NewReference(alias)

	got, err := alias.Resolve()
	require.NoError(t, err)
	assert.Equal(t, target, got)

	// Resolve stops at references, Deref follows them
	got, err = ref.Resolve()
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	got, err = ref.Deref()
	require.NoError(t, err)
	assert.Equal(t, target, got)

	loop := NewAlias(nil)
	loop.Target = loop
	_, err = loop.Resolve()
	assert.Equal(t, errAliasLoop, err)

	var nilObj *Object
	got, err = nilObj.Deref()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRevisionWidth(t *testing.T) {
	defer SetRevision(2)

	SetRevision(1)
	assert.Equal(t, 4, IntegerSize())
	assert.Equal(t, uint64(0xffffffff), IntegerOnes())
	assert.Equal(t, uint64(0xffffffff), NewInteger(0x1ffffffff).Integer)

	SetRevision(2)
	assert.Equal(t, 8, IntegerSize())
	assert.Equal(t, ^uint64(0), IntegerOnes())
}

func TestCopyDataAndType(t *testing.T) {
	inner := NewPackage(NewString("inner"))
	src := NewPackage(NewInteger(1), NewBuffer([]byte{0xaa}), inner, New())

	dst := New()
	require.NoError(t, CopyDataAndType(dst, src))
	require.Equal(t, TypePackage, dst.Type)
	require.Len(t, dst.Elements, 4)

	// mutating the copy must not affect the source
	dst.Elements[0].Integer = 99
	dst.Elements[1].Bytes[0] = 0xbb
	dst.Elements[2].Elements[0].Bytes[0] = 'X'

	assert.Equal(t, uint64(1), src.Elements[0].Integer)
	assert.Equal(t, []byte{0xaa}, src.Elements[1].Bytes)
	assert.Equal(t, "inner", src.Elements[2].Elements[0].String())
	assert.Equal(t, TypeUninitialized, dst.Elements[3].Type)

	specs := []struct {
		src    *Object
		expErr error
	}{
		{New(), errUninitialized},
		{NewMutex(0), errNotCopyable},
		{NewDevice(), errNotCopyable},
		{NewReference(src), nil},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.expErr, CopyDataAndType(New(), spec.src), "[spec %02d]", specIndex)
	}
}

func TestCopyObjectThroughReference(t *testing.T) {
	target := NewInteger(1)
	ref := NewReference(target)

	require.NoError(t, CopyObject(ref, NewString("new")))
	assert.Equal(t, TypeObjectReference, ref.Type)
	assert.Equal(t, TypeString, target.Type)
	assert.Equal(t, "new", target.String())

	assert.Equal(t, errUninitialized, CopyObject(NewReference(nil), NewInteger(1)))
}
