package parser

import (
	"fmt"
	"gopheraml/kernel"
)

// Opcode describes an AML opcode. While AML supports 256 opcodes, some of
// them are specified using a combination of an extension prefix and a code. To
// map each opcode into a single unique value the parser uses an uint16
// representation of the opcode values.
type Opcode uint16

// ExtOpPrefix introduces a two-byte opcode.
const ExtOpPrefix = 0x5b

const (
	// Regular opcode list
	OpZero             = Opcode(0x00)
	OpOne              = Opcode(0x01)
	OpAlias            = Opcode(0x06)
	OpName             = Opcode(0x08)
	OpBytePrefix       = Opcode(0x0a)
	OpWordPrefix       = Opcode(0x0b)
	OpDwordPrefix      = Opcode(0x0c)
	OpStringPrefix     = Opcode(0x0d)
	OpQwordPrefix      = Opcode(0x0e)
	OpScope            = Opcode(0x10)
	OpBuffer           = Opcode(0x11)
	OpPackage          = Opcode(0x12)
	OpVarPackage       = Opcode(0x13)
	OpMethod           = Opcode(0x14)
	OpExternal         = Opcode(0x15)
	OpLocal0           = Opcode(0x60)
	OpLocal7           = Opcode(0x67)
	OpArg0             = Opcode(0x68)
	OpArg6             = Opcode(0x6e)
	OpStore            = Opcode(0x70)
	OpRefOf            = Opcode(0x71)
	OpAdd              = Opcode(0x72)
	OpConcat           = Opcode(0x73)
	OpSubtract         = Opcode(0x74)
	OpIncrement        = Opcode(0x75)
	OpDecrement        = Opcode(0x76)
	OpMultiply         = Opcode(0x77)
	OpDivide           = Opcode(0x78)
	OpShiftLeft        = Opcode(0x79)
	OpShiftRight       = Opcode(0x7a)
	OpAnd              = Opcode(0x7b)
	OpNand             = Opcode(0x7c)
	OpOr               = Opcode(0x7d)
	OpNor              = Opcode(0x7e)
	OpXor              = Opcode(0x7f)
	OpNot              = Opcode(0x80)
	OpFindSetLeftBit   = Opcode(0x81)
	OpFindSetRightBit  = Opcode(0x82)
	OpDerefOf          = Opcode(0x83)
	OpConcatRes        = Opcode(0x84)
	OpMod              = Opcode(0x85)
	OpNotify           = Opcode(0x86)
	OpSizeOf           = Opcode(0x87)
	OpIndex            = Opcode(0x88)
	OpMatch            = Opcode(0x89)
	OpCreateDWordField = Opcode(0x8a)
	OpCreateWordField  = Opcode(0x8b)
	OpCreateByteField  = Opcode(0x8c)
	OpCreateBitField   = Opcode(0x8d)
	OpObjectType       = Opcode(0x8e)
	OpCreateQWordField = Opcode(0x8f)
	OpLand             = Opcode(0x90)
	OpLor              = Opcode(0x91)
	OpLnot             = Opcode(0x92)
	OpLEqual           = Opcode(0x93)
	OpLGreater         = Opcode(0x94)
	OpLLess            = Opcode(0x95)
	OpToBuffer         = Opcode(0x96)
	OpToDecimalString  = Opcode(0x97)
	OpToHexString      = Opcode(0x98)
	OpToInteger        = Opcode(0x99)
	OpToString         = Opcode(0x9c)
	OpCopyObject       = Opcode(0x9d)
	OpMid              = Opcode(0x9e)
	OpContinue         = Opcode(0x9f)
	OpIf               = Opcode(0xa0)
	OpElse             = Opcode(0xa1)
	OpWhile            = Opcode(0xa2)
	OpNoop             = Opcode(0xa3)
	OpReturn           = Opcode(0xa4)
	OpBreak            = Opcode(0xa5)
	OpBreakPoint       = Opcode(0xcc)
	OpOnes             = Opcode(0xff)
	// Extended opcodes
	OpMutex       = Opcode(0xff + 0x01)
	OpEvent       = Opcode(0xff + 0x02)
	OpCondRefOf   = Opcode(0xff + 0x12)
	OpCreateField = Opcode(0xff + 0x13)
	OpLoadTable   = Opcode(0xff + 0x1f)
	OpLoad        = Opcode(0xff + 0x20)
	OpStall       = Opcode(0xff + 0x21)
	OpSleep       = Opcode(0xff + 0x22)
	OpAcquire     = Opcode(0xff + 0x23)
	OpSignal      = Opcode(0xff + 0x24)
	OpWait        = Opcode(0xff + 0x25)
	OpReset       = Opcode(0xff + 0x26)
	OpRelease     = Opcode(0xff + 0x27)
	OpFromBCD     = Opcode(0xff + 0x28)
	OpToBCD       = Opcode(0xff + 0x29)
	OpUnload      = Opcode(0xff + 0x2a)
	OpRevision    = Opcode(0xff + 0x30)
	OpDebug       = Opcode(0xff + 0x31)
	OpFatal       = Opcode(0xff + 0x32)
	OpTimer       = Opcode(0xff + 0x33)
	OpOpRegion    = Opcode(0xff + 0x80)
	OpField       = Opcode(0xff + 0x81)
	OpDevice      = Opcode(0xff + 0x82)
	OpProcessor   = Opcode(0xff + 0x83)
	OpPowerRes    = Opcode(0xff + 0x84)
	OpThermalZone = Opcode(0xff + 0x85)
	OpIndexField  = Opcode(0xff + 0x86)
	OpBankField   = Opcode(0xff + 0x87)
	OpDataRegion  = Opcode(0xff + 0x88)
)

// Class groups opcodes by the grammar production that owns them.
type Class uint8

// The list of opcode classes.
const (
	ClassInvalid Class = iota
	ClassData
	ClassNamespaceModifier
	ClassNamedObject
	ClassStatement
	ClassExpression
	ClassLocal
	ClassArg
	ClassDebug
)

// Info describes a known opcode.
type Info struct {
	Op    Opcode
	Name  string
	Class Class
}

var errBadOpcode = &kernel.Error{Module: "acpi_aml_parser", Message: "invalid AML opcode", Errno: kernel.EILSEQ}

// The opcode table contains all opcode-related information that the parser
// knows. Locals and Args are expanded by init.
var opcodeTable = []Info{
	{OpZero, "Zero", ClassData},
	{OpOne, "One", ClassData},
	{OpAlias, "Alias", ClassNamespaceModifier},
	{OpName, "Name", ClassNamespaceModifier},
	{OpBytePrefix, "BytePrefix", ClassData},
	{OpWordPrefix, "WordPrefix", ClassData},
	{OpDwordPrefix, "DwordPrefix", ClassData},
	{OpStringPrefix, "StringPrefix", ClassData},
	{OpQwordPrefix, "QwordPrefix", ClassData},
	{OpScope, "Scope", ClassNamespaceModifier},
	{OpBuffer, "Buffer", ClassExpression},
	{OpPackage, "Package", ClassExpression},
	{OpVarPackage, "VarPackage", ClassExpression},
	{OpMethod, "Method", ClassNamedObject},
	{OpExternal, "External", ClassNamedObject},
	{OpStore, "Store", ClassExpression},
	{OpRefOf, "RefOf", ClassExpression},
	{OpAdd, "Add", ClassExpression},
	{OpConcat, "Concat", ClassExpression},
	{OpSubtract, "Subtract", ClassExpression},
	{OpIncrement, "Increment", ClassExpression},
	{OpDecrement, "Decrement", ClassExpression},
	{OpMultiply, "Multiply", ClassExpression},
	{OpDivide, "Divide", ClassExpression},
	{OpShiftLeft, "ShiftLeft", ClassExpression},
	{OpShiftRight, "ShiftRight", ClassExpression},
	{OpAnd, "And", ClassExpression},
	{OpNand, "Nand", ClassExpression},
	{OpOr, "Or", ClassExpression},
	{OpNor, "Nor", ClassExpression},
	{OpXor, "Xor", ClassExpression},
	{OpNot, "Not", ClassExpression},
	{OpFindSetLeftBit, "FindSetLeftBit", ClassExpression},
	{OpFindSetRightBit, "FindSetRightBit", ClassExpression},
	{OpDerefOf, "DerefOf", ClassExpression},
	{OpConcatRes, "ConcatRes", ClassExpression},
	{OpMod, "Mod", ClassExpression},
	{OpNotify, "Notify", ClassStatement},
	{OpSizeOf, "SizeOf", ClassExpression},
	{OpIndex, "Index", ClassExpression},
	{OpMatch, "Match", ClassExpression},
	{OpCreateDWordField, "CreateDWordField", ClassNamedObject},
	{OpCreateWordField, "CreateWordField", ClassNamedObject},
	{OpCreateByteField, "CreateByteField", ClassNamedObject},
	{OpCreateBitField, "CreateBitField", ClassNamedObject},
	{OpObjectType, "ObjectType", ClassExpression},
	{OpCreateQWordField, "CreateQWordField", ClassNamedObject},
	{OpLand, "Land", ClassExpression},
	{OpLor, "Lor", ClassExpression},
	{OpLnot, "Lnot", ClassExpression},
	{OpLEqual, "LEqual", ClassExpression},
	{OpLGreater, "LGreater", ClassExpression},
	{OpLLess, "LLess", ClassExpression},
	{OpToBuffer, "ToBuffer", ClassExpression},
	{OpToDecimalString, "ToDecimalString", ClassExpression},
	{OpToHexString, "ToHexString", ClassExpression},
	{OpToInteger, "ToInteger", ClassExpression},
	{OpToString, "ToString", ClassExpression},
	{OpCopyObject, "CopyObject", ClassExpression},
	{OpMid, "Mid", ClassExpression},
	{OpContinue, "Continue", ClassStatement},
	{OpIf, "If", ClassStatement},
	{OpElse, "Else", ClassStatement},
	{OpWhile, "While", ClassStatement},
	{OpNoop, "Noop", ClassStatement},
	{OpReturn, "Return", ClassStatement},
	{OpBreak, "Break", ClassStatement},
	{OpBreakPoint, "BreakPoint", ClassStatement},
	{OpOnes, "Ones", ClassData},
	{OpMutex, "Mutex", ClassNamedObject},
	{OpEvent, "Event", ClassNamedObject},
	{OpCondRefOf, "CondRefOf", ClassExpression},
	{OpCreateField, "CreateField", ClassNamedObject},
	{OpLoadTable, "LoadTable", ClassExpression},
	{OpLoad, "Load", ClassStatement},
	{OpStall, "Stall", ClassStatement},
	{OpSleep, "Sleep", ClassStatement},
	{OpAcquire, "Acquire", ClassExpression},
	{OpSignal, "Signal", ClassStatement},
	{OpWait, "Wait", ClassExpression},
	{OpReset, "Reset", ClassStatement},
	{OpRelease, "Release", ClassStatement},
	{OpFromBCD, "FromBCD", ClassExpression},
	{OpToBCD, "ToBCD", ClassExpression},
	{OpUnload, "Unload", ClassStatement},
	{OpRevision, "Revision", ClassData},
	{OpDebug, "Debug", ClassDebug},
	{OpFatal, "Fatal", ClassStatement},
	{OpTimer, "Timer", ClassExpression},
	{OpOpRegion, "OpRegion", ClassNamedObject},
	{OpField, "Field", ClassNamedObject},
	{OpDevice, "Device", ClassNamedObject},
	{OpProcessor, "Processor", ClassNamedObject},
	{OpPowerRes, "PowerRes", ClassNamedObject},
	{OpThermalZone, "ThermalZone", ClassNamedObject},
	{OpIndexField, "IndexField", ClassNamedObject},
	{OpBankField, "BankField", ClassNamedObject},
	{OpDataRegion, "DataRegion", ClassNamedObject},
}

const badOpcode = 0xff

// opcodeMap and extendedOpcodeMap translate an opcode byte into an index
// into opcodeTable (or badOpcode).
var (
	opcodeMap         [256]uint8
	extendedOpcodeMap [256]uint8
)

func init() {
	for i := 0; i < 8; i++ {
		opcodeTable = append(opcodeTable, Info{OpLocal0 + Opcode(i), fmt.Sprintf("Local%d", i), ClassLocal})
	}
	for i := 0; i < 7; i++ {
		opcodeTable = append(opcodeTable, Info{OpArg0 + Opcode(i), fmt.Sprintf("Arg%d", i), ClassArg})
	}

	for i := range opcodeMap {
		opcodeMap[i] = badOpcode
		extendedOpcodeMap[i] = badOpcode
	}

	for index, info := range opcodeTable {
		if info.Op <= 0xff {
			opcodeMap[info.Op] = uint8(index)
		} else {
			extendedOpcodeMap[info.Op-0xff] = uint8(index)
		}
	}
}

// Lookup returns the Info for op.
func Lookup(op Opcode) (Info, bool) {
	var index uint8
	switch {
	case op <= 0xff:
		index = opcodeMap[op]
	case op-0xff <= 0xff:
		index = extendedOpcodeMap[op-0xff]
	default:
		index = badOpcode
	}

	if index == badOpcode {
		return Info{}, false
	}

	return opcodeTable[index], true
}

// String implements fmt.Stringer for Opcode.
func (op Opcode) String() string {
	if info, ok := Lookup(op); ok {
		return info.Name
	}

	return fmt.Sprintf("unknown(0x%x)", uint16(op))
}

// ReadOpcode decodes the next opcode from the stream. Bytes that begin a
// NameString are not opcodes; callers must check IsNameStringStart first.
func (r *Reader) ReadOpcode() (Opcode, error) {
	next, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	op := Opcode(next)
	if next == ExtOpPrefix {
		ext, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		// Ones is 0xff; an extended opcode of 0x00 would alias it.
		if ext == 0 {
			return 0, errBadOpcode
		}
		op = Opcode(0xff + uint16(ext))
	}

	if _, ok := Lookup(op); !ok {
		return op, errBadOpcode
	}

	return op, nil
}

// PeekOpcode returns the next opcode without advancing the stream.
func (r *Reader) PeekOpcode() (Opcode, error) {
	off := r.offset
	op, err := r.ReadOpcode()
	r.offset = off
	return op, err
}

// OpIsLocalArg returns true if this opcode represents any of the supported local
// function args 0 to 7.
func OpIsLocalArg(op Opcode) bool {
	return op >= OpLocal0 && op <= OpLocal7
}

// OpIsMethodArg returns true if this opcode represents any of the supported
// input function args 0 to 6.
func OpIsMethodArg(op Opcode) bool {
	return op >= OpArg0 && op <= OpArg6
}

// OpIsArg returns true if this opcode is either a local or a method arg.
func OpIsArg(op Opcode) bool {
	return OpIsLocalArg(op) || OpIsMethodArg(op)
}

// OpIsDataObject returns true if this opcode is part of a DataObject definition
//
// Grammar:
// DataObject := ComputationalData | DefPackage | DefVarPackage
// ComputationalData := ByteConst | WordConst | DWordConst | QWordConst | String | ConstObj | RevisionOp | DefBuffer
// ConstObj := ZeroOp | OneOp | OnesOp
func OpIsDataObject(op Opcode) bool {
	switch op {
	case OpBytePrefix, OpWordPrefix, OpDwordPrefix, OpQwordPrefix, OpStringPrefix,
		OpZero, OpOne, OpOnes, OpRevision, OpBuffer, OpPackage, OpVarPackage:
		return true
	default:
		return false
	}
}

// OpIsBufferField returns true if this opcode describes a
// buffer field creation operation.
func OpIsBufferField(op Opcode) bool {
	switch op {
	case OpCreateField, OpCreateBitField, OpCreateByteField, OpCreateWordField, OpCreateDWordField, OpCreateQWordField:
		return true
	default:
		return false
	}
}
