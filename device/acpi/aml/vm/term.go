package vm

import (
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

// numOpcodes covers the plain and extended opcode ranges.
const numOpcodes = 0x200

// opHandler is a function that implements an AML opcode. Expression
// handlers return their result; statements return nil.
type opHandler func(c *execContext, op parser.Opcode) (*object.Object, error)

// populateJumpTable assigns the functions that implement the various AML
// opcodes to the VM's jump table.
func (vm *VM) populateJumpTable() {
	for i := 0; i < len(vm.jumpTable); i++ {
		vm.jumpTable[i] = opExecNotImplemented
	}

	// Data objects
	for _, op := range []parser.Opcode{
		parser.OpZero, parser.OpOne, parser.OpOnes, parser.OpBytePrefix, parser.OpWordPrefix,
		parser.OpDwordPrefix, parser.OpQwordPrefix, parser.OpStringPrefix, parser.OpRevision,
	} {
		vm.jumpTable[op] = vmOpConst
	}
	vm.jumpTable[parser.OpBuffer] = vmOpBuffer
	vm.jumpTable[parser.OpPackage] = vmOpPackage
	vm.jumpTable[parser.OpVarPackage] = vmOpPackage
	for op := parser.OpLocal0; op <= parser.OpLocal7; op++ {
		vm.jumpTable[op] = vmOpLocal
	}
	for op := parser.OpArg0; op <= parser.OpArg6; op++ {
		vm.jumpTable[op] = vmOpArg
	}
	vm.jumpTable[parser.OpDebug] = vmOpDebug

	// Namespace modifiers and named objects
	vm.jumpTable[parser.OpName] = vmOpName
	vm.jumpTable[parser.OpAlias] = vmOpAlias
	vm.jumpTable[parser.OpScope] = vmOpScope
	vm.jumpTable[parser.OpMethod] = vmOpMethod
	vm.jumpTable[parser.OpExternal] = vmOpExternal
	vm.jumpTable[parser.OpDevice] = vmOpScopedObject
	vm.jumpTable[parser.OpThermalZone] = vmOpScopedObject
	vm.jumpTable[parser.OpProcessor] = vmOpScopedObject
	vm.jumpTable[parser.OpPowerRes] = vmOpScopedObject
	vm.jumpTable[parser.OpMutex] = vmOpMutex
	vm.jumpTable[parser.OpEvent] = vmOpEvent
	vm.jumpTable[parser.OpOpRegion] = vmOpOpRegion
	vm.jumpTable[parser.OpDataRegion] = vmOpDataRegion
	vm.jumpTable[parser.OpField] = vmOpField
	vm.jumpTable[parser.OpIndexField] = vmOpField
	vm.jumpTable[parser.OpBankField] = vmOpField
	for _, op := range []parser.Opcode{
		parser.OpCreateField, parser.OpCreateBitField, parser.OpCreateByteField,
		parser.OpCreateWordField, parser.OpCreateDWordField, parser.OpCreateQWordField,
	} {
		vm.jumpTable[op] = vmOpCreateField
	}

	// Control-flow opcodes
	vm.jumpTable[parser.OpIf] = vmOpIf
	vm.jumpTable[parser.OpElse] = vmOpElse
	vm.jumpTable[parser.OpWhile] = vmOpWhile
	vm.jumpTable[parser.OpBreak] = vmOpBreak
	vm.jumpTable[parser.OpContinue] = vmOpBreak
	vm.jumpTable[parser.OpReturn] = vmOpReturn
	vm.jumpTable[parser.OpNoop] = vmOpNoop
	vm.jumpTable[parser.OpBreakPoint] = vmOpNoop

	// Other statements
	vm.jumpTable[parser.OpNotify] = vmOpNotify
	vm.jumpTable[parser.OpSleep] = vmOpSleep
	vm.jumpTable[parser.OpStall] = vmOpSleep
	vm.jumpTable[parser.OpFatal] = vmOpFatal
	vm.jumpTable[parser.OpLoad] = vmOpLoad
	vm.jumpTable[parser.OpLoadTable] = vmOpLoad
	vm.jumpTable[parser.OpUnload] = vmOpLoad

	// Synchronization opcodes
	vm.jumpTable[parser.OpAcquire] = vmOpAcquire
	vm.jumpTable[parser.OpRelease] = vmOpRelease
	vm.jumpTable[parser.OpSignal] = vmOpSignal
	vm.jumpTable[parser.OpReset] = vmOpReset
	vm.jumpTable[parser.OpWait] = vmOpWait

	// ALU opcodes
	for _, op := range []parser.Opcode{
		parser.OpAdd, parser.OpSubtract, parser.OpMultiply, parser.OpMod,
		parser.OpShiftLeft, parser.OpShiftRight, parser.OpAnd, parser.OpNand,
		parser.OpOr, parser.OpNor, parser.OpXor,
	} {
		vm.jumpTable[op] = vmOpBinary
	}
	vm.jumpTable[parser.OpDivide] = vmOpDivide
	vm.jumpTable[parser.OpIncrement] = vmOpIncDec
	vm.jumpTable[parser.OpDecrement] = vmOpIncDec
	for _, op := range []parser.Opcode{
		parser.OpNot, parser.OpFindSetLeftBit, parser.OpFindSetRightBit, parser.OpFromBCD, parser.OpToBCD,
	} {
		vm.jumpTable[op] = vmOpUnary
	}

	vm.jumpTable[parser.OpLnot] = vmOpLogicalNot
	vm.jumpTable[parser.OpLand] = vmOpLogicalAndOr
	vm.jumpTable[parser.OpLor] = vmOpLogicalAndOr
	vm.jumpTable[parser.OpLEqual] = vmOpCompare
	vm.jumpTable[parser.OpLLess] = vmOpCompare
	vm.jumpTable[parser.OpLGreater] = vmOpCompare

	// Conversion and string/buffer opcodes
	for _, op := range []parser.Opcode{
		parser.OpToBuffer, parser.OpToDecimalString, parser.OpToHexString, parser.OpToInteger,
	} {
		vm.jumpTable[op] = vmOpConvert
	}
	vm.jumpTable[parser.OpToString] = vmOpToString
	vm.jumpTable[parser.OpConcat] = vmOpConcat
	vm.jumpTable[parser.OpConcatRes] = vmOpConcatRes
	vm.jumpTable[parser.OpMid] = vmOpMid

	// Reference and object opcodes
	vm.jumpTable[parser.OpRefOf] = vmOpRefOf
	vm.jumpTable[parser.OpCondRefOf] = vmOpCondRefOf
	vm.jumpTable[parser.OpDerefOf] = vmOpDerefOf
	vm.jumpTable[parser.OpIndex] = vmOpIndex
	vm.jumpTable[parser.OpMatch] = vmOpMatch
	vm.jumpTable[parser.OpSizeOf] = vmOpSizeOf
	vm.jumpTable[parser.OpObjectType] = vmOpObjectType
	vm.jumpTable[parser.OpTimer] = vmOpTimer

	// Store-related opcodes
	vm.jumpTable[parser.OpStore] = vmOpStore
	vm.jumpTable[parser.OpCopyObject] = vmOpCopyObject
}

// opExecNotImplemented is a placeholder handler that returns a non-implemented
// opcode error.
func opExecNotImplemented(c *execContext, op parser.Opcode) (*object.Object, error) {
	c.vm.log.Warn("opcode not implemented", "table", c.table, "offset", c.r.Offset(), "opcode", op.String())
	return nil, c.raise(ExceptionBadOpcode, errBadOpcode)
}

// execTermList executes the terms between the current offset and end. It
// stops early when a term changes the control flow.
func (c *execContext) execTermList(end uint32) error {
	for c.r.Offset() < end && c.state.ctrlFlow == ctrlFlowTypeNextOpcode {
		start := c.r.Offset()
		instr := c.peekInstr()

		if _, err := c.execTerm(); err != nil {
			// Append an entry to the stack trace; the parent method
			// invocation will populate the missing method and table
			// information.
			return withFrame(err, &frame{offset: start, instr: instr})
		}

		if c.r.Offset() > end {
			c.vm.log.Error("term overruns its package", "table", c.table, "offset", start, "end", end)
			return withFrame(c.raise(ExceptionParse, errBadTerm), &frame{offset: start, instr: instr})
		}
	}

	return nil
}

// peekInstr returns a label for the term starting at the current offset.
func (c *execContext) peekInstr() string {
	next, err := c.r.PeekByte()
	if err != nil {
		return "EOF"
	}

	if parser.IsNameStringStart(next) {
		return "NameString"
	}

	op, _ := c.r.PeekOpcode()
	return op.String()
}

// execTerm executes the next TermObj or TermArg and returns its value.
func (c *execContext) execTerm() (*object.Object, error) {
	c.nesting++
	defer func() { c.nesting-- }()

	if c.nesting > c.vm.cfg.MaxNesting {
		return nil, c.raise(ExceptionInternal, errNesting)
	}

	next, err := c.r.PeekByte()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	if parser.IsNameStringStart(next) {
		return c.execNameTerm()
	}

	op, err := c.r.ReadOpcode()
	if err != nil {
		c.vm.log.Warn("invalid opcode", "table", c.table, "offset", c.r.Offset(), "byte", next)
		return nil, c.raise(ExceptionBadOpcode, err)
	}

	obj, err := c.vm.jumpTable[op](c, op)
	if err != nil {
		return nil, err
	}

	if info, _ := parser.Lookup(op); info.Class == parser.ClassExpression && obj != nil {
		c.state.last = obj
	}

	return obj, nil
}

// execNameTerm handles a NameString in term position: method names are
// invoked, anything else yields the named object.
func (c *execContext) execNameTerm() (*object.Object, error) {
	path, err := c.r.ReadNameString()
	if err != nil {
		return nil, c.raise(ExceptionBadName, err)
	}

	obj, err := c.lookup(path)
	if err != nil {
		return nil, err
	}

	if obj.Type != object.TypeMethod {
		return obj, nil
	}

	return c.callMethod(obj)
}

// lookup resolves path from the current scope and follows aliases.
func (c *execContext) lookup(path string) (*object.Object, error) {
	obj := object.Find(c.scope, path)
	if obj == nil {
		c.vm.log.Warn("name not found", "table", c.table, "offset", c.r.Offset(), "path", path, "scope", c.scope.Path())
		return nil, c.raise(ExceptionNameNotFound, errNameNotFound)
	}

	obj, err := obj.Resolve()
	if err != nil || obj == nil {
		return nil, c.raise(ExceptionCircularReference, errNameNotFound)
	}

	return obj, nil
}

// evalTermArg evaluates the next TermArg into a value: references held by
// Locals and Args are followed, field units are read and placeholder
// return values are checked.
func (c *execContext) evalTermArg() (*object.Object, error) {
	obj, err := c.execTerm()
	if err != nil {
		return nil, err
	}

	return c.operandValue(obj)
}

// evalTermArgRaw is like evalTermArg but yields the object held by a
// Local or Arg slot without following references.
func (c *execContext) evalTermArgRaw() (*object.Object, error) {
	next, err := c.r.PeekByte()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	op := parser.Opcode(next)
	switch {
	case parser.OpIsLocalArg(op):
		_, _ = c.r.ReadByte()
		local := c.local(int(op - parser.OpLocal0))
		if local.Type == object.TypeUninitialized {
			return nil, c.raise(ExceptionUninitializedLocal, errUninitializedLocal)
		}
		return local, nil
	case parser.OpIsMethodArg(op):
		_, _ = c.r.ReadByte()
		return c.arg(int(op - parser.OpArg0))
	}

	return c.evalTermArg()
}

func (c *execContext) operandValue(obj *object.Object) (*object.Object, error) {
	if obj == nil {
		return nil, c.raise(ExceptionNoOperand, errOperandType)
	}

	var err error
	switch obj.Type {
	case object.TypeFieldUnit:
		return c.loadField(obj)
	case object.TypeBufferField:
		if obj, err = obj.BufferField.Load(); err != nil {
			return nil, c.raise(ExceptionBufferLimit, err)
		}
	}

	if err := obj.CheckUse(); err != nil {
		c.vm.log.Warn("use of a method result that was never returned", "table", c.table, "offset", c.r.Offset())
		c.raise(ExceptionParse, err)
	}

	return obj, nil
}

// evalInteger evaluates the next TermArg and converts it to an Integer.
func (c *execContext) evalInteger() (uint64, error) {
	obj, err := c.evalTermArg()
	if err != nil {
		return 0, err
	}

	v, err := object.ConvertTo(obj, object.TypeInteger)
	if err != nil {
		return 0, c.raise(ExceptionOperandType, err)
	}

	return v.Integer & object.IntegerOnes(), nil
}

// evalPkgEnd reads a PkgLength and returns the offset where it ends.
func (c *execContext) evalPkgEnd() (uint32, error) {
	end, err := c.r.ReadPkgEnd(c.r.Len())
	if err != nil {
		return 0, c.raise(ExceptionParse, err)
	}

	return end, nil
}

// bind adds obj to the namespace under path and returns the object bound
// to that name. Names bound while a method runs are recorded so they can be
// removed when it returns.
func (c *execContext) bind(path string, obj *object.Object) (*object.Object, error) {
	parent, name := object.ResolveScopedPath(c.scope, path)
	if parent == nil || !parser.ValidNameSeg(name) {
		c.vm.log.Warn("unable to resolve scope for name", "table", c.table, "offset", c.r.Offset(), "path", path)
		return nil, c.raise(ExceptionNotFound, errNameNotFound)
	}

	if existing := parent.Child(name); existing != nil {
		// Duplicate definitions in firmware tables are common; the
		// first one wins. Inside a method they are a real error.
		if c.state.method == nil {
			c.vm.log.Warn("ignoring duplicate definition", "table", c.table, "offset", c.r.Offset(), "path", path)
			return existing, nil
		}
		return nil, c.raise(ExceptionError, errNameExists)
	}

	if err := parent.AddChild(name, obj); err != nil {
		return nil, c.raise(ExceptionBadName, err)
	}

	if c.state.method != nil {
		c.state.created = append(c.state.created, obj)
	}

	return obj, nil
}

// execScope runs the term list up to end with scope as the current scope.
func (c *execContext) execScope(scope *object.Object, end uint32) error {
	prev := c.scope
	c.scope = scope
	err := c.execTermList(end)
	c.scope = prev

	if err != nil {
		return err
	}

	if c.state.ctrlFlow == ctrlFlowTypeNextOpcode {
		return c.seek(end)
	}
	return nil
}

func (c *execContext) seek(offset uint32) error {
	if err := c.r.SetOffset(offset); err != nil {
		return c.raise(ExceptionParse, err)
	}

	return nil
}
