package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNameString(t *testing.T) {
	specs := []struct {
		payload []byte
		exp     string
		expErr  error
	}{
		{[]byte{'_', 'S', 'B', '_'}, "_SB_", nil},
		{[]byte{'\\', 0x00}, `\`, nil},
		{[]byte{0x00}, "", nil},
		{[]byte{'\\', '_', 'S', 'B', '_'}, `\_SB_`, nil},
		{[]byte{'^', '^', 'F', 'O', 'O', '_'}, `^^FOO_`, nil},
		{[]byte{0x2e, 'P', 'C', 'I', '0', 'S', 'B', 'R', 'G'}, "PCI0.SBRG", nil},
		{[]byte{'\\', 0x2f, 3, '_', 'S', 'B', '_', 'P', 'C', 'I', '0', 'L', 'P', 'C', '0'}, `\_SB_.PCI0.LPC0`, nil},
		// MultiNamePath with no segments
		{[]byte{0x2f, 0}, "", errInvalidSegCount},
		// lead char must be A-Z or _
		{[]byte{'0', 'A', 'B', 'C'}, "", errInvalidNamedPath},
		// lowercase chars are not valid NameChars
		{[]byte{'A', 'b', 'C', 'D'}, "", errInvalidNameSeg},
		// truncated
		{[]byte{'_', 'S', 'B'}, "", errUnexpectedEOF},
		{[]byte{0x2e, 'P', 'C', 'I', '0'}, "", errUnexpectedEOF},
		{[]byte{'^'}, "", errUnexpectedEOF},
	}

	for specIndex, spec := range specs {
		got, err := NewReader(spec.payload).ReadNameString()
		assert.Equal(t, spec.expErr, err, "[spec %02d]", specIndex)
		assert.Equal(t, spec.exp, got, "[spec %02d]", specIndex)
	}
}

func TestEncodeNameString(t *testing.T) {
	paths := []string{
		`\`,
		`\_SB_`,
		`_SB_.PCI0`,
		`\_SB_.PCI0.LPC0.EC0_`,
		`^^FOO_`,
		`^BAR_.BAZ_`,
	}

	for specIndex, path := range paths {
		enc, err := EncodeNameString(path)
		require.NoError(t, err, "[spec %02d]", specIndex)

		r := NewReader(enc)
		got, err := r.ReadNameString()
		require.NoError(t, err, "[spec %02d]", specIndex)
		assert.Equal(t, path, got, "[spec %02d]", specIndex)
		assert.True(t, r.EOF(), "[spec %02d]", specIndex)
	}

	enc, err := EncodeNameString("FOO")
	require.NoError(t, err)
	assert.Equal(t, []byte("FOO_"), enc)

	_, err = EncodeNameString("TOOLONG")
	assert.Equal(t, errInvalidNameSeg, err)
	_, err = EncodeNameString("FOO..BAR")
	assert.Equal(t, errInvalidNameSeg, err)
	_, err = EncodeNameString("1ABC")
	assert.Equal(t, errInvalidNameSeg, err)
}

func TestIsNameStringStart(t *testing.T) {
	for _, b := range []byte{'\\', '^', 0x2e, 0x2f, 'A', 'Z', '_'} {
		assert.True(t, IsNameStringStart(b), "0x%02x", b)
	}

	for _, b := range []byte{0x00, '0', 'a', 0x5b, 0x70} {
		assert.False(t, IsNameStringStart(b), "0x%02x", b)
	}
}
