package vm

import (
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"time"
)

// sleep pauses the calling goroutine for d or until ctx is done. Tests
// replace it to avoid real delays.
var sleep = func(c *execContext, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Args: Predicate {TermList} [Else {TermList}]
//
// Execute the scoped term list if predicate evaluates to a non-zero value; If
// predicate evaluates to zero and the optional else block is defined then it
// will be executed instead.
func vmOpIf(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	pred, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	taken := pred != 0
	if taken {
		if err = c.execTermList(end); err != nil || c.state.ctrlFlow != ctrlFlowTypeNextOpcode {
			return nil, err
		}
	}

	if err = c.seek(end); err != nil {
		return nil, err
	}

	// Check for the optional else block
	if next, err := c.r.PeekByte(); err != nil || parser.Opcode(next) != parser.OpElse {
		return nil, nil
	}

	_, _ = c.r.ReadByte()
	elseEnd, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	if !taken {
		if err = c.execTermList(elseEnd); err != nil || c.state.ctrlFlow != ctrlFlowTypeNextOpcode {
			return nil, err
		}
	}

	return nil, c.seek(elseEnd)
}

// vmOpElse skips an Else block that does not follow an If.
func vmOpElse(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	c.vm.log.Warn("skipping Else without a matching If", "table", c.table, "offset", c.r.Offset())
	return nil, c.seek(end)
}

// Args: Predicate {TermList}
//
// Execute the scoped termlist block until predicate evaluates to zero or any
// of the instructions in the TermList changes the control flow to break or
// return.
func vmOpWhile(c *execContext, _ parser.Opcode) (*object.Object, error) {
	end, err := c.evalPkgEnd()
	if err != nil {
		return nil, err
	}

	predStart := c.r.Offset()
	c.state.loopDepth++
	defer func() { c.state.loopDepth-- }()

	for iter := 0; ; iter++ {
		if iter == c.vm.cfg.MaxLoopIterations {
			c.vm.log.Error("while loop iteration limit reached", "table", c.table, "offset", predStart, "limit", iter)
			return nil, c.raise(ExceptionMethodLimit, errLoopLimit)
		}

		if err = c.ctx.Err(); err != nil {
			return nil, err
		}

		if err = c.seek(predStart); err != nil {
			return nil, err
		}

		pred, err := c.evalInteger()
		if err != nil {
			return nil, err
		}

		if pred == 0 {
			break
		}

		if err = c.execTermList(end); err != nil {
			return nil, err
		}

		switch c.state.ctrlFlow {
		case ctrlFlowTypeFnReturn:
			// Preserve return flow type so we exit the innermost function
			return nil, nil
		case ctrlFlowTypeBreak:
			c.state.ctrlFlow = ctrlFlowTypeNextOpcode
			return nil, c.seek(end)
		}

		// Restart while block but reset to sequential execution so the
		// predicate and while body can be properly evaluated
		c.state.ctrlFlow = ctrlFlowTypeNextOpcode
	}

	return nil, c.seek(end)
}

func vmOpBreak(c *execContext, op parser.Opcode) (*object.Object, error) {
	if c.state.loopDepth == 0 {
		return nil, c.raise(ExceptionNoWhile, errBreakOutsideLoop)
	}

	c.state.ctrlFlow = ctrlFlowTypeBreak
	if op == parser.OpContinue {
		c.state.ctrlFlow = ctrlFlowTypeContinue
	}
	return nil, nil
}

// Args: val
// Set val as the return value and change the ctrlFlow type to
// ctrlFlowTypeFnReturn.
func vmOpReturn(c *execContext, _ parser.Opcode) (*object.Object, error) {
	val, err := c.evalTermArg()
	if err != nil {
		return nil, err
	}

	c.state.retVal = val
	c.state.ctrlFlow = ctrlFlowTypeFnReturn
	return nil, nil
}

func vmOpNoop(_ *execContext, _ parser.Opcode) (*object.Object, error) {
	return nil, nil
}

// Args: NotifyObject, NotifyValue
func vmOpNotify(c *execContext, _ parser.Opcode) (*object.Object, error) {
	target, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	value, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(target)
	if obj == nil || obj.Type&(object.TypeDevice|object.TypeProcessor|object.TypeThermalZone) == 0 {
		return nil, c.raise(ExceptionOperandType, errOperandType)
	}

	c.vm.log.Debug("notify", "target", obj.Path(), "value", value)
	if c.vm.notifyHandler != nil {
		c.vm.notifyHandler(obj, value)
	}
	return nil, nil
}

// Args: MsecTime (Sleep) or UsecTime (Stall)
func vmOpSleep(c *execContext, op parser.Opcode) (*object.Object, error) {
	v, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	d := time.Duration(v) * time.Millisecond
	if op == parser.OpStall {
		d = time.Duration(v) * time.Microsecond
	}

	return nil, sleep(c, d)
}

// Args: type, code, arg
//
// Generate an OEM-defined fatal error. The OSPM must catch this error,
// optionally log it and perform a controlled system shutdown
func vmOpFatal(c *execContext, _ parser.Opcode) (*object.Object, error) {
	errType, err := c.r.ReadByte()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	errCode, err := c.r.ReadDWord()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	errArg, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	c.vm.log.Error("fatal OEM-defined error", "type", errType, "code", errCode, "arg", errArg)
	if c.vm.fatalHandler != nil {
		c.vm.fatalHandler(errType, errCode, errArg)
	}
	return nil, c.raise(ExceptionError, errFatal)
}

// vmOpLoad rejects the dynamic table loading operators.
func vmOpLoad(c *execContext, op parser.Opcode) (*object.Object, error) {
	c.vm.log.Warn("dynamic table loading is not supported", "table", c.table, "offset", c.r.Offset(), "opcode", op.String())
	return nil, c.raise(ExceptionError, errNotImplemented)
}
