package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpcodeTableMapping pinpoints opcodes whose table entry cannot be
// reached through the byte maps.
func TestOpcodeTableMapping(t *testing.T) {
	for tabIndex, info := range opcodeTable {
		got, ok := Lookup(info.Op)
		if !ok {
			t.Errorf("opcode table entry 0x%02x (%s) is not mapped", tabIndex, info.Name)
			continue
		}

		assert.Equal(t, info, got)
	}
}

func TestReadOpcode(t *testing.T) {
	specs := []struct {
		payload []byte
		exp     Opcode
		expErr  error
	}{
		{[]byte{0x72}, OpAdd, nil},
		{[]byte{0xff}, OpOnes, nil},
		{[]byte{0x62}, OpLocal0 + 2, nil},
		{[]byte{0x6e}, OpArg6, nil},
		{[]byte{0x5b, 0x82}, OpDevice, nil},
		{[]byte{0x5b, 0x01}, OpMutex, nil},
		{[]byte{0x5b, 0x31}, OpDebug, nil},
		{[]byte{0x5b}, 0, errUnexpectedEOF},
		{[]byte{0x5b, 0x00}, 0, errBadOpcode},
		{[]byte{0x02}, Opcode(0x02), errBadOpcode},
		{[]byte{0x5b, 0x7f}, Opcode(0xff + 0x7f), errBadOpcode},
	}

	for specIndex, spec := range specs {
		got, err := NewReader(spec.payload).ReadOpcode()
		assert.Equal(t, spec.expErr, err, "[spec %02d]", specIndex)
		assert.Equal(t, spec.exp, got, "[spec %02d]", specIndex)
	}
}

func TestPeekOpcode(t *testing.T) {
	r := NewReader([]byte{0x5b, 0x80})
	op, err := r.PeekOpcode()
	require.NoError(t, err)
	assert.Equal(t, OpOpRegion, op)
	assert.Zero(t, r.Offset())
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "Add", OpAdd.String())
	assert.Equal(t, "Local3", (OpLocal0 + 3).String())
	assert.Equal(t, "ThermalZone", OpThermalZone.String())
	assert.Equal(t, "unknown(0x2)", Opcode(2).String())
}

func TestOpcodeHelpers(t *testing.T) {
	assert.True(t, OpIsLocalArg(OpLocal7))
	assert.False(t, OpIsLocalArg(OpArg0))
	assert.True(t, OpIsMethodArg(OpArg0))
	assert.True(t, OpIsArg(OpLocal0))
	assert.True(t, OpIsDataObject(OpRevision))
	assert.False(t, OpIsDataObject(OpAdd))
	assert.True(t, OpIsBufferField(OpCreateQWordField))
	assert.False(t, OpIsBufferField(OpField))
}
