package vm

import (
	"context"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

// callMethod evaluates the arguments that follow a method name in the
// instruction stream and invokes the method.
func (c *execContext) callMethod(method *object.Object) (*object.Object, error) {
	args := make([]*object.Object, method.Method.ArgCount)
	for i := range args {
		arg, err := c.evalTermArgRaw()
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	ret, err := c.vm.invokeMethod(c.ctx, c.caller, method, args)
	if err != nil {
		return nil, err
	}

	c.state.last = ret
	return ret, nil
}

// invokeMethod runs method in a new frame. The returned object is never
// shared with the callee frame.
func (vm *VM) invokeMethod(ctx context.Context, caller *Caller, method *object.Object, args []*object.Object) (*object.Object, error) {
	if method == nil || method.Type != object.TypeMethod {
		return nil, errNotMethod
	}

	var (
		m    = method.Method
		path = method.Path()
	)

	if len(args) != int(m.ArgCount) || len(args) > maxMethodArgs {
		vm.log.Warn("method invoked with wrong number of args", "method", path, "want", m.ArgCount, "got", len(args))
		vm.raise(ExceptionError, path)
		return nil, errArgCount
	}

	if caller.depth >= vm.cfg.MaxCallDepth {
		vm.log.Error("maximum call depth exceeded", "method", path, "depth", caller.depth)
		vm.raise(ExceptionMethodLimit, path)
		return nil, errCallDepth
	}

	caller.depth++
	defer func() { caller.depth-- }()

	st := &state{method: method}
	for i, src := range args {
		arg, err := bindArg(i, src)
		if err != nil {
			vm.raise(ExceptionUninitializedArg, path)
			return nil, err
		}
		st.args[i] = arg
	}

	if m.Serialized && m.Lock != nil {
		acquired, err := vm.tryAcquire(caller, m.Lock)
		if err != nil {
			vm.raise(ExceptionMutexOrder, path)
			return nil, err
		}

		if !acquired {
			vm.raise(ExceptionMutexNotAcquired, path)
			return nil, errMutexDeadlock
		}

		defer func() {
			if err := vm.releaseMutex(caller, m.Lock); err != nil {
				vm.log.Warn("failed to release serialized method lock", "method", path, "err", err)
			}
		}()
	}

	if m.Native != nil {
		ret, err := m.Native(st.args[:len(args)])
		if err != nil {
			return nil, err
		}
		st.retVal = ret
		return methodResult(st)
	}

	c := &execContext{
		ctx:    ctx,
		vm:     vm,
		caller: caller,
		state:  st,
		r:      parser.NewReader(m.Body),
		table:  m.Table,
		scope:  method,
	}

	err := c.execTermList(c.r.Len())

	// Names created by the method only live for the duration of the call.
	for i := len(st.created) - 1; i >= 0; i-- {
		if parent := st.created[i].Parent(); parent != nil {
			parent.RemoveChild(st.created[i])
		}
	}

	if err != nil {
		fillTrace(err, m.Table, path)
		return nil, err
	}

	return methodResult(st)
}

// bindArg returns the object bound to ArgN for src. Data objects are
// copied; other objects are passed by reference.
func bindArg(n int, src *object.Object) (*object.Object, error) {
	arg := object.NewArg(n)
	if src == nil || src.Type == object.TypeUninitialized {
		return nil, errOperandType
	}

	if src.Type&object.TypeDataRefObjects != 0 || src.Type == object.TypeUnresolved {
		return arg, object.CopyDataAndType(arg, src)
	}

	return arg, arg.SetReference(src)
}

// methodResult picks the value returned to the caller: the explicit
// Return value, else the last evaluated expression. A method that yields
// neither returns a zero Integer that raises an exception when used.
func methodResult(st *state) (*object.Object, error) {
	ret := st.retVal
	if ret == nil {
		ret = st.last
	}

	if ret == nil || ret.Type == object.TypeUninitialized {
		ret = object.NewInteger(0)
		ret.Flags |= object.FlagExceptionOnUse
		return ret, nil
	}

	if ret.Type&object.TypeDataRefObjects != 0 {
		return object.Clone(ret)
	}

	return ret, nil
}
